// Package hashes loads the stable 32-bit function-identifying hash constants
// that the resolver must map to addresses.
package hashes

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"

	"github.com/apex/log"
	"github.com/pkg/errors"
)

// ErrNoSources means no hash-constant source file was found at any candidate
// location. A found file with zero matches is not an error.
var ErrNoSources = errors.New("no hash constant sources found")

// constexpr std::uint32_t NAME = 0xDEADBEEF; (U/L suffixes ignored)
var constPattern = regexp.MustCompile(`constexpr\s+std::uint32_t\s+(\w+)\s*=\s*(0x[0-9A-Fa-f]+|\d+)[UuLl]*\s*;`)

// Registry is the merged name to 32-bit hash mapping.
type Registry map[string]uint32

// Load scans candidate source files in order and merges their constants.
// When the same name appears in more than one source the value from the
// later-scanned source wins; this is a deliberate, order-dependent merge.
func Load(candidates []string) (Registry, error) {
	reg := make(Registry)
	loaded := 0

	for _, path := range candidates {
		content, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				log.WithError(err).Warnf("failed to read %s", path)
			}
			continue
		}

		log.Debugf("loading hash constants from %s", path)

		n := parseInto(reg, content)
		loaded++

		log.Debugf("parsed %d constants from %s", n, path)
	}

	if loaded == 0 {
		return nil, fmt.Errorf("%w: checked %d locations", ErrNoSources, len(candidates))
	}

	log.Infof("Loaded %d hash constants from %d file(s)", len(reg), loaded)
	return reg, nil
}

// LoadFile loads constants from a single explicitly given source file.
func LoadFile(path string) (Registry, error) {
	return Load([]string{path})
}

func parseInto(reg Registry, content []byte) int {
	n := 0
	for _, m := range constPattern.FindAllSubmatch(content, -1) {
		name := string(m[1])
		lit := string(m[2])

		var value uint64
		var err error
		if len(lit) > 2 && lit[0:2] == "0x" {
			value, err = strconv.ParseUint(lit[2:], 16, 64)
		} else {
			value, err = strconv.ParseUint(lit, 10, 64)
		}
		if err != nil {
			log.Warnf("skipping constant %s with bad literal %q", name, lit)
			continue
		}

		reg[name] = uint32(value & 0xFFFFFFFF)
		n++
	}
	return n
}

// DefaultCandidates returns the ordered list of locations scanned relative to
// a project root: the SDK header, the local source tree, and the deps
// fallback.
func DefaultCandidates(root string) []string {
	return []string{
		filepath.Join(root, "RED4ext.SDK", "include", "RED4ext", "Detail", "AddressHashes.hpp"),
		filepath.Join(root, "src", "dll", "Detail", "AddressHashes.hpp"),
		filepath.Join(root, "deps", "red4ext.sdk", "include", "RED4ext", "Detail", "AddressHashes.hpp"),
	}
}
