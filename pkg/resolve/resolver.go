// Package resolve drives the multi-strategy address-resolution pipeline:
// manual overrides first, then symbol-table resolution through the hash and
// canonical-name indices. Pattern scanning is a reserved fallback with a
// fixed contract (pkg/scan) that the default chain does not invoke.
package resolve

import (
	"context"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/apex/log"
	"golang.org/x/sync/errgroup"

	"github.com/blacktop/addrdb/pkg/binary"
	"github.com/blacktop/addrdb/pkg/hashes"
)

// DefaultWorkers is the default resolution worker-pool size.
func DefaultWorkers() int {
	return min(runtime.GOMAXPROCS(0), 8)
}

// Entry is one resolved (or unresolved) address. Entries are created once
// per hash-constant name during a run and never mutated afterwards.
type Entry struct {
	Name       string
	Hash       uint32
	Address    uint64
	HasAddress bool
	Category   binary.Category
	Offset     uint64
	Source     Source
	Symbol     string
	Confidence float64
}

// Options tunes a resolution run.
type Options struct {
	// Workers bounds the resolution pool; 0 means DefaultWorkers.
	Workers int
	// TaskTimeout bounds each per-name resolution task; 0 means 30s.
	TaskTimeout time.Duration
	// OnResult, when set, is called once per finished name (progress).
	OnResult func()
}

// Resolver orchestrates the per-name fallback chain over a worker pool.
type Resolver struct {
	file      *binary.File
	segs      *binary.SegmentMap
	index     *Index
	overrides map[string]Override
}

func NewResolver(file *binary.File, segs *binary.SegmentMap, index *Index, overrides map[string]Override) *Resolver {
	if index == nil {
		index = NewIndex()
	}
	if overrides == nil {
		overrides = map[string]Override{}
	}
	return &Resolver{
		file:      file,
		segs:      segs,
		index:     index,
		overrides: overrides,
	}
}

// Resolve runs the fallback chain for every hash constant. Each name is
// independent; results are aggregated under one lock in no particular
// completion order and sorted by name afterwards. Cancelling ctx stops new
// submissions but whatever already completed is still returned.
func (r *Resolver) Resolve(ctx context.Context, reg hashes.Registry, opts Options) ([]Entry, *Stats) {
	workers := opts.Workers
	if workers <= 0 {
		workers = DefaultWorkers()
	}
	taskTimeout := opts.TaskTimeout
	if taskTimeout <= 0 {
		taskTimeout = 30 * time.Second
	}

	stats := NewStats(len(reg))
	entries := make([]Entry, 0, len(reg))
	var mu sync.Mutex

	// load the symbol table up front under the run context so enumeration
	// gets the inspector's own budget, not the first task's timeout
	r.file.Symbols(ctx)

	// deterministic submission order keeps runs reproducible
	names := make([]string, 0, len(reg))
	for name := range reg {
		names = append(names, name)
	}
	sort.Strings(names)

	var g errgroup.Group
	g.SetLimit(workers)

	for _, name := range names {
		if ctx.Err() != nil {
			log.Warn("cancellation requested, no further names will be submitted")
			break
		}
		hash := reg[name]
		g.Go(func() error {
			tctx, cancel := context.WithTimeout(ctx, taskTimeout)
			defer cancel()

			entry, err := r.resolveOne(tctx, name, hash)

			if err != nil && ctx.Err() != nil {
				// run cancelled, the name was never attempted: record nothing
				return nil
			}

			mu.Lock()
			if err != nil {
				log.WithError(err).Errorf("failed to resolve %s", name)
				stats.RecordError()
				entry = Entry{Name: name, Hash: hash, Source: SourceUnresolved, Confidence: 1.0}
			}
			stats.Record(entry.Source)
			entries = append(entries, entry)
			mu.Unlock()

			if opts.OnResult != nil {
				opts.OnResult()
			}
			return nil
		})
	}
	g.Wait()

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })

	stats.Finalize()
	return entries, stats
}

// resolveOne applies the strategy chain to a single name. The state machine
// is terminal: Pending -> Manual | Symbol | Pattern | Unresolved.
func (r *Resolver) resolveOne(ctx context.Context, name string, hash uint32) (Entry, error) {
	entry := Entry{
		Name:       name,
		Hash:       hash,
		Category:   binary.Code,
		Source:     SourceUnresolved,
		Confidence: 1.0,
	}

	if err := ctx.Err(); err != nil {
		return entry, err
	}

	// 1: manual override, highest priority
	if ov, ok := r.overrides[name]; ok {
		entry.Address = ov.Address
		entry.HasAddress = true
		entry.Category = ov.Category
		entry.Offset = r.segs.OffsetOf(ov.Address, ov.Category)
		entry.Source = SourceManual
		log.Debugf("✓ %s: manual -> %#x", name, ov.Address)
		return entry, nil
	}

	// 2: symbol resolution via hash index, canonical name, underscore variant
	if sym, ok := r.index.Resolve(name, hash); ok {
		if addr, ok := r.file.ResolveSymbol(ctx, sym); ok {
			entry.Address = addr
			entry.HasAddress = true
			entry.Symbol = sym
			entry.Category = r.segs.CategoryOf(addr)
			entry.Offset = r.segs.OffsetOf(addr, entry.Category)
			entry.Source = SourceSymbol
			log.Debugf("✓ %s: symbol %s -> %#x", name, sym, addr)
			return entry, nil
		}
	}

	// 3: pattern scanning is reserved; its contract lives in pkg/scan but
	// the default chain does not use it

	log.Debugf("✗ %s: unresolved (hash %#08x)", name, hash)
	return entry, ctx.Err()
}
