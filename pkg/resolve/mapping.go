package resolve

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Mapping is the symbol-mapping input file: stable hashes paired with the
// mangled symbols they were generated from.
type Mapping struct {
	Version     string         `json:"version"`
	GameVersion string         `json:"game_version"`
	Mappings    []MappingEntry `json:"mappings"`
}

type MappingEntry struct {
	Hash   string `json:"hash"` // "0xHHHHHHHH"
	Symbol string `json:"symbol"`
}

// HashValue parses the entry's hash literal.
func (e MappingEntry) HashValue() (uint32, error) {
	if !strings.HasPrefix(e.Hash, "0x") {
		return 0, fmt.Errorf("hash %q missing 0x prefix", e.Hash)
	}
	v, err := strconv.ParseUint(e.Hash[2:], 16, 32)
	if err != nil {
		return 0, fmt.Errorf("bad hash %q: %w", e.Hash, err)
	}
	return uint32(v), nil
}

// LoadMapping reads and validates a symbol-mapping file. The caller asked
// for this file explicitly, so malformed JSON or records fail fast.
func LoadMapping(path string) (*Mapping, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read symbol mapping: %w", err)
	}

	var m Mapping
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("malformed symbol mapping %s: %w", path, err)
	}

	for i, entry := range m.Mappings {
		if entry.Symbol == "" {
			return nil, fmt.Errorf("symbol mapping %s: entry %d has no symbol", path, i)
		}
		if entry.Hash != "" {
			if _, err := entry.HashValue(); err != nil {
				return nil, fmt.Errorf("symbol mapping %s: entry %d: %w", path, i, err)
			}
		}
	}

	return &m, nil
}
