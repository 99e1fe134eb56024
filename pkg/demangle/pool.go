package demangle

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"time"

	"github.com/apex/log"
	"golang.org/x/sync/errgroup"

	"github.com/blacktop/addrdb/internal/cache"
)

const (
	// DefaultBatchTimeout bounds one batch round-trip before bisection.
	DefaultBatchTimeout = 5 * time.Second
	// names per batch handed to a single worker
	batchSize = 512
)

// worker is one long-lived c++filt process.
type worker struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *bufio.Reader
	dead   bool
}

func (w *worker) kill() {
	w.dead = true
	w.stdin.Close()
	w.cmd.Process.Kill()
	w.cmd.Wait()
}

// Pool is an explicitly constructed, caller-owned set of demangling workers.
// Workers are checked out and in under a lock; a worker that dies mid-batch
// is detected on write/read failure and lazily respawned on the next
// checkout.
type Pool struct {
	bin   string
	size  int
	cache *cache.Cache

	mu      sync.Mutex
	idle    []*worker
	started bool
	missing bool // demangler binary not installed
}

// NewPool creates a pool of size c++filt workers backed by the given cache
// for persistent memoization. Call Start before use and Stop when done.
func NewPool(size int, c *cache.Cache) *Pool {
	if size < 1 {
		size = 1
	}
	return &Pool{
		bin:   "c++filt",
		size:  size,
		cache: c,
	}
}

func (p *Pool) spawn() (*worker, error) {
	cmd := exec.Command(p.bin)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return &worker{
		cmd:    cmd,
		stdin:  stdin,
		stdout: bufio.NewReader(stdout),
	}, nil
}

// Start spawns the worker processes. A missing demangler binary is not
// fatal: the pool runs degraded and every demangle attempt misses.
func (p *Pool) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return nil
	}
	for range p.size {
		w, err := p.spawn()
		if err != nil {
			if len(p.idle) == 0 {
				log.WithError(err).Warnf("%s not found, demangling disabled", p.bin)
				p.missing = true
			}
			break
		}
		p.idle = append(p.idle, w)
	}
	p.started = true
	return nil
}

// Stop terminates all idle workers. Checked-out workers are killed by their
// holders on failure paths and simply not checked back in after Stop.
func (p *Pool) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, w := range p.idle {
		w.kill()
	}
	p.idle = nil
	p.started = false
}

// checkout takes an idle worker, respawning dead ones lazily.
func (p *Pool) checkout() *worker {
	p.mu.Lock()
	defer p.mu.Unlock()

	for len(p.idle) > 0 {
		w := p.idle[len(p.idle)-1]
		p.idle = p.idle[:len(p.idle)-1]
		if !w.dead {
			return w
		}
	}
	if p.missing || !p.started {
		return nil
	}
	w, err := p.spawn()
	if err != nil {
		log.WithError(err).Debug("failed to respawn demangler worker")
		return nil
	}
	return w
}

func (p *Pool) checkin(w *worker) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if w.dead {
		return
	}
	if !p.started {
		w.kill()
		return
	}
	p.idle = append(p.idle, w)
}

// runBatch feeds names through one worker and collects replies. A reply that
// echoes its input means c++filt could not demangle it; those names are
// omitted from the result.
func runBatch(w *worker, names []string) (map[string]string, error) {
	out := make(map[string]string, len(names))
	for _, name := range names {
		if _, err := fmt.Fprintln(w.stdin, Normalize(name)); err != nil {
			return nil, fmt.Errorf("demangler write: %w", err)
		}
		line, err := w.stdout.ReadString('\n')
		if err != nil {
			return nil, fmt.Errorf("demangler read: %w", err)
		}
		demangled := line[:len(line)-1]
		if demangled != "" && demangled != Normalize(name) {
			out[name] = demangled
		}
	}
	return out, nil
}

// demangleBatch runs one bounded batch, recursively bisecting on timeout so
// a single slow or poisoned name cannot block the rest. Names reduced to a
// batch of one that still times out are given up on. attempted records the
// names a worker actually processed (or definitively gave up on); names that
// never reached a worker stay unattempted so a later run can retry them.
func (p *Pool) demangleBatch(ctx context.Context, names []string, timeout time.Duration, results map[string]string, attempted map[string]bool, mu *sync.Mutex) {
	if len(names) == 0 || ctx.Err() != nil {
		return
	}

	w := p.checkout()
	if w == nil {
		return
	}

	type reply struct {
		out map[string]string
		err error
	}
	ch := make(chan reply, 1)
	go func() {
		out, err := runBatch(w, names)
		ch <- reply{out, err}
	}()

	select {
	case r := <-ch:
		if r.err != nil {
			// worker died mid-batch, replace it and retry by bisection
			w.kill()
			p.checkin(w)
			if len(names) > 1 {
				mid := len(names) / 2
				p.demangleBatch(ctx, names[:mid], timeout, results, attempted, mu)
				p.demangleBatch(ctx, names[mid:], timeout, results, attempted, mu)
			}
			return
		}
		p.checkin(w)
		mu.Lock()
		for k, v := range r.out {
			results[k] = v
		}
		for _, name := range names {
			attempted[name] = true
		}
		mu.Unlock()
	case <-time.After(timeout):
		// the worker may be wedged on this input, kill it
		w.kill()
		p.checkin(w)
		if len(names) == 1 {
			log.Debugf("giving up on slow symbol %s", names[0])
			mu.Lock()
			attempted[names[0]] = true
			mu.Unlock()
			return
		}
		mid := len(names) / 2
		p.demangleBatch(ctx, names[:mid], timeout, results, attempted, mu)
		p.demangleBatch(ctx, names[mid:], timeout, results, attempted, mu)
	case <-ctx.Done():
		w.kill()
		p.checkin(w)
	}
}

// DemangleBatch demangles names, consulting the persistent memo first so
// repeated runs over the same binary skip demangling entirely. Names that
// cannot be demangled are absent from the returned map.
func (p *Pool) DemangleBatch(ctx context.Context, names []string, timeout time.Duration) map[string]string {
	if timeout <= 0 {
		timeout = DefaultBatchTimeout
	}

	results := make(map[string]string, len(names))
	var mu sync.Mutex

	var todo []string
	for _, name := range names {
		var hit string
		if p.cache.Get(&hit, "demangle", name) {
			if hit != "" {
				results[name] = hit
			}
			continue
		}
		todo = append(todo, name)
	}

	if len(todo) > 0 {
		attempted := make(map[string]bool, len(todo))

		var g errgroup.Group
		g.SetLimit(p.size)
		for start := 0; start < len(todo); start += batchSize {
			end := min(start+batchSize, len(todo))
			chunk := todo[start:end]
			g.Go(func() error {
				p.demangleBatch(ctx, chunk, timeout, results, attempted, &mu)
				return nil
			})
		}
		g.Wait()

		mu.Lock()
		for _, name := range todo {
			// memoize attempted names only, failures included (as empty) so
			// poisoned names are not retried; names that never reached a
			// worker (missing binary, cancellation) stay uncached
			if attempted[name] {
				p.cache.Set(results[name], "demangle", name)
			}
		}
		mu.Unlock()
	}

	return results
}

// Demangle demangles a single name.
func (p *Pool) Demangle(ctx context.Context, name string) (string, bool) {
	out := p.DemangleBatch(ctx, []string{name}, DefaultBatchTimeout)
	demangled, ok := out[name]
	return demangled, ok
}
