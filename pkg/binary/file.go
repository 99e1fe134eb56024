package binary

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"sync"

	"github.com/apex/log"

	"github.com/blacktop/addrdb/internal/cache"
	"github.com/blacktop/addrdb/internal/utils"
)

// File ties an Inspector to the two-tier cache. Segment and symbol results
// are memoized in-process and on disk, keyed by (path, mtime) so a rebuilt
// binary misses naturally.
type File struct {
	Path string

	insp  Inspector
	cache *cache.Cache

	mu      sync.Mutex
	segmap  *SegmentMap
	symbols map[string]uint64
}

func NewFile(path string, insp Inspector, c *cache.Cache) *File {
	return &File{
		Path:  path,
		insp:  insp,
		cache: c,
	}
}

// Validate checks path existence, readability and magic.
func (f *File) Validate() error {
	return f.insp.Validate()
}

func (f *File) mtimeKey() string {
	fi, err := os.Stat(f.Path)
	if err != nil {
		return "0"
	}
	return strconv.FormatInt(fi.ModTime().UnixNano(), 10)
}

// SegmentMap parses (or loads from cache) the binary's segment table.
// A parse that yields zero segments is an error.
func (f *File) SegmentMap(ctx context.Context) (*SegmentMap, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.segmap != nil {
		return f.segmap, nil
	}

	defer utils.Timed("parse segments")()

	var segs []Segment
	if f.cache.Get(&segs, "segments", f.Path, f.mtimeKey()) {
		log.Debugf("loaded %d segments from cache", len(segs))
		f.segmap = NewSegmentMap(segs)
		return f.segmap, nil
	}

	segs, err := f.insp.Segments(ctx)
	if err != nil {
		return nil, err
	}
	if len(segs) == 0 {
		return nil, fmt.Errorf("%w: no segments found", ErrBinaryParse)
	}

	names := make([]string, len(segs))
	for i, seg := range segs {
		names[i] = seg.Name
	}
	log.WithField("segments", names).Info("Parsed segment table")

	f.cache.Set(segs, "segments", f.Path, f.mtimeKey())
	f.segmap = NewSegmentMap(segs)
	return f.segmap, nil
}

// Symbols returns the exported name to address table. Enumeration failures
// degrade to an empty table with a warning: later strategies can still
// resolve via manual override or pattern scan.
func (f *File) Symbols(ctx context.Context) map[string]uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.symbols != nil {
		return f.symbols
	}

	defer utils.Timed("load symbols")()

	var syms map[string]uint64
	if f.cache.Get(&syms, "symbols", f.Path, f.mtimeKey()) {
		log.Debugf("loaded %d symbols from cache", len(syms))
		f.symbols = syms
		return f.symbols
	}

	syms, err := f.insp.Symbols(ctx)
	if err != nil {
		log.WithError(err).Warn("failed to enumerate exported symbols, continuing without")
		f.symbols = map[string]uint64{}
		return f.symbols
	}
	log.Infof("Loaded %d exported symbols", len(syms))

	f.cache.Set(syms, "symbols", f.Path, f.mtimeKey())
	f.symbols = syms
	return f.symbols
}

// ResolveSymbol looks up an exported symbol's absolute address.
func (f *File) ResolveSymbol(ctx context.Context, name string) (uint64, bool) {
	addr, ok := f.Symbols(ctx)[name]
	return addr, ok
}
