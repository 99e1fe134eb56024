// Package output serializes resolved addresses to the portable
// address-database JSON schema.
package output

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/apex/log"
	"github.com/pkg/errors"

	"github.com/blacktop/addrdb/pkg/resolve"
)

// ErrOutput means the database could not be written.
var ErrOutput = errors.New("failed to write output")

// Database is the on-disk address-database schema.
type Database struct {
	Version     string         `json:"version"`
	GameVersion string         `json:"game_version"`
	Generated   string         `json:"generated"`
	Stats       DatabaseStats  `json:"stats"`
	Addresses   []AddressEntry `json:"Addresses"`
}

type DatabaseStats struct {
	Total      int `json:"total"`
	Resolved   int `json:"resolved"`
	Unresolved int `json:"unresolved"`
}

type AddressEntry struct {
	// Hash is a decimal string for downstream numeric-JSON-parser
	// compatibility.
	Hash string `json:"hash"`
	// Offset is "<segmentCode>:0x<HEX>".
	Offset string `json:"offset"`
}

// Build assembles the database document from resolved entries, dropping
// unresolved ones. Entry order is preserved, so sorted input yields
// byte-identical output across runs (modulo the generated timestamp).
func Build(entries []resolve.Entry, stats *resolve.Stats, gameVersion string) *Database {
	db := &Database{
		Version:     "1.0",
		GameVersion: gameVersion,
		Generated:   time.Now().UTC().Format("2006-01-02T15:04:05Z"),
		Stats: DatabaseStats{
			Total:      stats.Total,
			Resolved:   stats.ResolvedTotal(),
			Unresolved: stats.Unresolved,
		},
		// empty must serialize as [] rather than null
		Addresses: []AddressEntry{},
	}
	for _, entry := range entries {
		if entry.Source == resolve.SourceUnresolved {
			continue
		}
		db.Addresses = append(db.Addresses, AddressEntry{
			Hash:   strconv.FormatUint(uint64(entry.Hash), 10),
			Offset: fmt.Sprintf("%d:0x%X", entry.Category.Code(), entry.Offset),
		})
	}
	return db
}

// Write serializes db to path via a temporary file and an atomic rename, so
// a crash mid-write never corrupts a previous successful output.
func Write(db *Database, path string) error {
	data, err := json.MarshalIndent(db, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrOutput, err)
	}
	data = append(data, '\n')

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("%w: %v", ErrOutput, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("%w: %v", ErrOutput, err)
	}

	log.Infof("Wrote %d addresses to %s", len(db.Addresses), path)
	return nil
}
