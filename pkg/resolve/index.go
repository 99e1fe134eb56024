package resolve

import (
	"context"
	"strings"
	"time"

	"github.com/apex/log"

	"github.com/blacktop/addrdb/internal/utils"
	"github.com/blacktop/addrdb/pkg/demangle"
)

// Index holds the two symbol lookup tables built from a mapping file:
// hash to mangled symbol (explicit in the mapping) and canonical name to
// mangled symbol (derived from demangled signatures).
type Index struct {
	hashToSym map[uint32]string
	nameToSym map[string]string
}

// NewIndex returns an empty index; every Resolve call will miss.
func NewIndex() *Index {
	return &Index{
		hashToSym: make(map[uint32]string),
		nameToSym: make(map[string]string),
	}
}

// BuildIndex demangles the mapping's C++ symbols through pool and derives
// the lookup tables. Individual demangling failures just leave that symbol
// out of the canonical index.
func BuildIndex(ctx context.Context, m *Mapping, pool *demangle.Pool, timeout time.Duration) *Index {
	defer utils.Timed("build symbol index")()

	ix := NewIndex()

	var mangled []string
	for _, entry := range m.Mappings {
		if entry.Hash != "" {
			if hash, err := entry.HashValue(); err == nil {
				ix.hashToSym[hash] = entry.Symbol
			}
		}
		if demangle.IsMangled(entry.Symbol) {
			mangled = append(mangled, entry.Symbol)
		}
	}

	log.Infof("Demangling %d C++ symbols...", len(mangled))
	demangled := pool.DemangleBatch(ctx, mangled, timeout)

	for sym, sig := range demangled {
		for _, key := range demangle.CanonicalNames(sig) {
			ix.nameToSym[key] = sym
		}
	}

	log.Infof("Indexed %d hash mappings, %d canonical names", len(ix.hashToSym), len(ix.nameToSym))
	return ix
}

// Resolve finds the mangled symbol for a hash-constant name. Strategies in
// order: exact hash match, exact canonical-name match, then a retry that
// splits on the first underscore and reconstructs the prefix_suffix key
// (covers names carrying extra qualifiers).
func (ix *Index) Resolve(name string, hash uint32) (string, bool) {
	if sym, ok := ix.hashToSym[hash]; ok {
		return sym, true
	}
	if sym, ok := ix.nameToSym[name]; ok {
		return sym, true
	}
	if prefix, suffix, ok := strings.Cut(name, "_"); ok {
		if sym, ok := ix.nameToSym[prefix+"_"+suffix]; ok {
			return sym, true
		}
	}
	return "", false
}
