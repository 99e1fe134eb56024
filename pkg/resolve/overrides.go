package resolve

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/apex/log"

	"github.com/blacktop/addrdb/pkg/binary"
)

// Override is one manually supplied name to address mapping.
type Override struct {
	Name     string
	Address  uint64
	Category binary.Category
}

type overrideFile struct {
	Addresses []overrideRecord `json:"addresses"`
}

type overrideRecord struct {
	Name    string `json:"name"`
	Address string `json:"address"` // "0xHEX"
	Segment int    `json:"segment"` // 1=Code 2=ReadOnlyData 3=ReadWriteData
}

// LoadOverrides reads the manual-override file. A missing file is not an
// error (overrides are optional); malformed JSON is. Records with a bad
// address or segment code are skipped with a warning.
func LoadOverrides(path string) (map[string]Override, error) {
	overrides := make(map[string]Override)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return overrides, nil
		}
		return nil, fmt.Errorf("failed to read manual overrides: %w", err)
	}

	var f overrideFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("malformed manual overrides %s: %w", path, err)
	}

	for _, rec := range f.Addresses {
		if rec.Name == "" {
			log.Warn("skipping manual override with no name")
			continue
		}
		if !strings.HasPrefix(rec.Address, "0x") {
			log.Warnf("skipping manual override %s: address %q missing 0x prefix", rec.Name, rec.Address)
			continue
		}
		addr, err := strconv.ParseUint(rec.Address[2:], 16, 64)
		if err != nil {
			log.Warnf("skipping manual override %s: invalid address %q", rec.Name, rec.Address)
			continue
		}
		cat := binary.CategoryFromCode(rec.Segment)
		if cat == binary.Unknown {
			log.Warnf("skipping manual override %s: invalid segment code %d", rec.Name, rec.Segment)
			continue
		}
		overrides[rec.Name] = Override{
			Name:     rec.Name,
			Address:  addr,
			Category: cat,
		}
	}

	log.Infof("Loaded %d manual overrides", len(overrides))
	return overrides, nil
}
