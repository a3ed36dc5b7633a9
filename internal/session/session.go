// Package session owns the windowed record delivery state for one active
// view (a loaded capture under one display filter): the bounded record
// cache, the request coordinator, and the chunked fetch planning that
// connects them to the dissection engine.
package session

import (
	"sync"

	"github.com/Gammell53/packet-pilot/internal/cache"
	"github.com/Gammell53/packet-pilot/internal/chunk"
	"github.com/Gammell53/packet-pilot/internal/fetch"
)

// Config tunes the delivery subsystem. All values are in records.
type Config struct {
	MaxCacheSize     int
	ChunkSize        int
	PrefetchDistance int
}

// DefaultConfig returns the tuning used for mid-sized captures.
func DefaultConfig() Config {
	return Config{
		MaxCacheSize:     20000,
		ChunkSize:        500,
		PrefetchDistance: 200,
	}
}

// EffectiveChunkSize picks a chunk size for a capture of the given total,
// starting from the configured base. Larger captures get larger chunks so
// a single scroll burst stays bounded in outstanding requests; one-by-one
// fetching is latency-bound, whole-range fetching stalls the cache.
func EffectiveChunkSize(base, total int) int {
	if base < 1 {
		base = DefaultConfig().ChunkSize
	}
	switch {
	case total > 10_000_000:
		return base * 8
	case total > 1_000_000:
		return base * 4
	case total > 100_000:
		return base * 2
	default:
		return base
	}
}

// Session coordinates fetching, caching, and invalidation for one view.
// Safe for concurrent use; fetch completions land on their own goroutines.
type Session struct {
	mu      sync.Mutex
	cfg     Config
	cache   *cache.RecordCache
	coord   *fetch.Coordinator
	fetcher fetch.Fetcher
	total   int
	epoch   uint64 // bumped on Clear; stale completions compare against it
	version uint64 // bumped on every observable mutation
	notify  func()
}

// Option configures a Session.
type Option func(*Session)

// WithConfig overrides the default tuning.
func WithConfig(cfg Config) Option {
	return func(s *Session) {
		if cfg.MaxCacheSize > 0 {
			s.cfg.MaxCacheSize = cfg.MaxCacheSize
		}
		if cfg.ChunkSize > 0 {
			s.cfg.ChunkSize = cfg.ChunkSize
		}
		if cfg.PrefetchDistance >= 0 {
			s.cfg.PrefetchDistance = cfg.PrefetchDistance
		}
	}
}

// WithNotify registers a callback invoked (without internal locks held)
// after each observable mutation. The rendering layer pairs it with
// Version to know when to re-read.
func WithNotify(fn func()) Option {
	return func(s *Session) { s.notify = fn }
}

// New creates a Session that fills its cache through fetcher.
func New(fetcher fetch.Fetcher, opts ...Option) *Session {
	s := &Session{
		cfg:     DefaultConfig(),
		coord:   fetch.NewCoordinator(),
		fetcher: fetcher,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.cache = cache.New(s.cfg.MaxCacheSize)
	return s
}

// SetTotal sets the number of records in the current view. Called after
// the engine reports the capture's frame count (or the filtered count).
func (s *Session) SetTotal(total int) {
	s.mu.Lock()
	if total < 0 {
		total = 0
	}
	s.total = total
	s.version++
	notify := s.notify
	s.mu.Unlock()
	if notify != nil {
		notify()
	}
}

// Total returns the record count of the current view.
func (s *Session) Total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

// GetRecord returns the cached record at a 1-based logical index.
// A hit promotes the record in the cache's recency order.
func (s *Session) GetRecord(index uint32) (cache.Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cache.Get(index)
}

// EnsureRange plans and issues the fetches needed so logical indices
// first..last (1-based, inclusive) plus the prefetch margin become cached.
// Fire-and-forget: results arrive via the notify callback. Degenerate
// ranges are a no-op.
func (s *Session) EnsureRange(first, last uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if first < 1 || last < first || s.total == 0 {
		return
	}
	visible := chunk.Range{Start: int(first) - 1, End: int(last)}
	chunks := chunk.Plan(visible, s.cfg.PrefetchDistance, s.cfg.ChunkSize, s.total)

	for _, ch := range chunks {
		if s.cache.HasRange(ch.FirstFrame(), ch.LastFrame()) {
			continue
		}
		if s.coord.IsPending(ch) {
			continue
		}
		res := s.coord.Request(ch, s.fetcher)
		go s.apply(ch, res, s.epoch)
	}
}

// apply waits for a fetch to settle and writes its records into the
// cache, unless the fetch failed, was marked cancelled, or the view was
// reset while it was in flight. Failed ranges stay unloaded until a
// future viewport event re-requests them.
//
// Records are keyed by logical position within the fetched window, not by
// their frame numbers: under a display filter the engine returns only
// matching frames, still carrying their original capture numbers.
func (s *Session) apply(ch chunk.Range, res *fetch.Result, issuedEpoch uint64) {
	<-res.Done()
	records, err := res.Records()
	if err != nil || res.Cancelled() || len(records) == 0 {
		return
	}
	for i := range records {
		records[i].Index = uint32(ch.Start+i) + 1
	}

	s.mu.Lock()
	if s.epoch != issuedEpoch {
		s.mu.Unlock()
		return
	}
	s.cache.SetMany(records)
	s.version++
	notify := s.notify
	s.mu.Unlock()

	if notify != nil {
		notify()
	}
}

// CancelPending advisorily marks all in-flight fetches cancelled; their
// results will be discarded on settlement. The fetches themselves keep
// running.
func (s *Session) CancelPending() {
	s.coord.CancelAll()
}

// Clear performs a full view reset: pending fetches are marked cancelled,
// coordinator bookkeeping is dropped, the cache is emptied, and the epoch
// advances so any still-unsettled results are discarded at write time.
// Called when a new capture is loaded or the display filter changes.
func (s *Session) Clear() {
	s.coord.CancelAll()
	s.mu.Lock()
	s.epoch++
	s.total = 0
	s.cache.Clear()
	s.version++
	notify := s.notify
	s.mu.Unlock()
	s.coord.Clear()
	if notify != nil {
		notify()
	}
}

// Version returns the mutation counter. The rendering layer re-reads
// records when it observes a change.
func (s *Session) Version() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version
}

// Stats returns the cache hit/miss counters for the current view.
func (s *Session) Stats() cache.Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cache.Stats()
}

// PendingCount returns the number of in-flight fetches.
func (s *Session) PendingCount() int {
	return s.coord.PendingCount()
}
