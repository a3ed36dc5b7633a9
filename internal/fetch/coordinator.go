// Package fetch tracks in-flight record fetches, collapses duplicate
// requests, and carries advisory cancellation marks.
package fetch

import (
	"sync"
	"time"

	"github.com/Gammell53/packet-pilot/internal/cache"
	"github.com/Gammell53/packet-pilot/internal/chunk"
)

// Fetcher retrieves one window of records from the dissection engine:
// limit records starting after skip positions. Blocking; called off the
// caller's goroutine.
type Fetcher func(skip, limit int) ([]cache.Record, error)

// Result is the settlement handle for one in-flight fetch. Multiple
// collapsed requests for the same range share one Result.
type Result struct {
	done      chan struct{}
	records   []cache.Record
	err       error
	cancelled bool // cancel mark observed at settlement
}

// Done is closed when the fetch settles, successfully or not.
func (r *Result) Done() <-chan struct{} {
	return r.done
}

// Records returns the fetched records or the fetch error.
// Valid only after Done is closed.
func (r *Result) Records() ([]cache.Record, error) {
	return r.records, r.err
}

// Cancelled reports whether the range was marked cancelled at any point
// before the fetch settled. Valid only after Done is closed. A cancelled
// result must not be written to the cache.
func (r *Result) Cancelled() bool {
	return r.cancelled
}

// pendingRange is the bookkeeping for one in-flight fetch.
type pendingRange struct {
	rng      chunk.Range
	issuedAt time.Time
	result   *Result
}

// Coordinator deduplicates fetches by exact range key and tracks advisory
// cancellation. Exact-key matching (no interval merging) keeps lookups
// O(pending count); the chunk planner produces canonical aligned keys, so
// overlapping-but-distinct ranges are rare rather than structurally
// impossible. Safe for concurrent use.
type Coordinator struct {
	mu        sync.Mutex
	pending   map[chunk.Range]*pendingRange
	cancelled map[chunk.Range]struct{}
}

// NewCoordinator creates an empty Coordinator.
func NewCoordinator() *Coordinator {
	return &Coordinator{
		pending:   make(map[chunk.Range]*pendingRange),
		cancelled: make(map[chunk.Range]struct{}),
	}
}

// IsPending reports whether some in-flight fetch fully contains r.
// Used by callers before Request to skip ranges already covered by a
// larger in-flight fetch.
func (c *Coordinator) IsPending(r chunk.Range) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.pending {
		if key.Contains(r) {
			return true
		}
	}
	return false
}

// Request returns the in-flight Result for an identical range if one
// exists; otherwise it invokes f on a new goroutine and registers the
// range as pending. On settlement the pending entry and any cancel mark
// for the key are removed, regardless of outcome.
func (c *Coordinator) Request(r chunk.Range, f Fetcher) *Result {
	c.mu.Lock()
	if p, ok := c.pending[r]; ok {
		c.mu.Unlock()
		return p.result
	}
	p := &pendingRange{
		rng:      r,
		issuedAt: time.Now(),
		result:   &Result{done: make(chan struct{})},
	}
	c.pending[r] = p
	c.mu.Unlock()

	go c.run(p, f)
	return p.result
}

// run executes the fetch and settles its Result.
func (c *Coordinator) run(p *pendingRange, f Fetcher) {
	records, err := f(p.rng.Start, p.rng.Len())

	c.mu.Lock()
	_, cancelled := c.cancelled[p.rng]
	// Guard against a Clear that happened mid-flight: only remove our own
	// entry, not a newer fetch reusing the same key.
	if cur, ok := c.pending[p.rng]; ok && cur == p {
		delete(c.pending, p.rng)
		delete(c.cancelled, p.rng)
	}
	c.mu.Unlock()

	p.result.records = records
	p.result.err = err
	p.result.cancelled = cancelled
	close(p.result.done)
}

// CancelAll marks every currently pending range cancelled. Advisory only:
// the underlying fetches keep running; their results are discarded.
func (c *Coordinator) CancelAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.pending {
		c.cancelled[key] = struct{}{}
	}
}

// IsCancelled reports whether the exact range key currently carries a
// cancel mark.
func (c *Coordinator) IsCancelled(r chunk.Range) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.cancelled[r]
	return ok
}

// PendingCount returns the number of in-flight fetches.
func (c *Coordinator) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Clear drops all pending bookkeeping and cancel marks without waiting
// for in-flight fetches. Callers must keep stale settlements from
// mutating shared state themselves (the session does so with an epoch
// check at the point results would be written).
func (c *Coordinator) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = make(map[chunk.Range]*pendingRange)
	c.cancelled = make(map[chunk.Range]struct{})
}
