// Package cache implements a bounded LRU store for packet summary records,
// keyed by 1-based frame number.
package cache

import "container/list"

// Record is one packet summary row as returned by the dissection engine.
//
// Index is the 1-based logical position within the current view and is the
// cache key; it is assigned by the session when a fetch window resolves.
// Number is the capture's frame number. The two coincide on an unfiltered
// view but diverge under a display filter, where the engine returns only
// matching frames while keeping their original numbers.
type Record struct {
	Index      uint32   `json:"-"`
	Number     uint32   `json:"num"`
	Columns    []string `json:"c"`
	Foreground string   `json:"fg,omitempty"`
	Background string   `json:"bg,omitempty"`
}

// Stats reports cache effectiveness counters.
type Stats struct {
	Hits   uint64
	Misses uint64
}

// entry is one resident record plus its position in the recency list.
type entry struct {
	index  uint32
	record Record
}

// RecordCache is a true-LRU store bounded to maxSize records.
// Get and Set are O(1). Eviction happens only on insertion, never on a hit.
//
// It is not safe for concurrent use; callers must synchronize externally
// or confine access to a single goroutine (the session does the former).
type RecordCache struct {
	maxSize int
	entries map[uint32]*list.Element
	order   *list.List // front = most recently used
	stats   Stats
}

// New creates an empty cache holding at most maxSize records.
// A maxSize below 1 is treated as 1.
func New(maxSize int) *RecordCache {
	if maxSize < 1 {
		maxSize = 1
	}
	return &RecordCache{
		maxSize: maxSize,
		entries: make(map[uint32]*list.Element),
		order:   list.New(),
	}
}

// Get returns the record at the given logical index. On a hit the entry is
// promoted to most-recently-used and the hit counter increments; on a miss
// only the miss counter changes.
func (c *RecordCache) Get(index uint32) (Record, bool) {
	el, ok := c.entries[index]
	if !ok {
		c.stats.Misses++
		return Record{}, false
	}
	c.stats.Hits++
	c.order.MoveToFront(el)
	return el.Value.(*entry).record, true
}

// Set inserts or overwrites the record at the given logical index, making
// it the most-recently-used entry, then evicts least-recently-used entries
// until the size bound holds.
func (c *RecordCache) Set(index uint32, r Record) {
	if el, ok := c.entries[index]; ok {
		el.Value.(*entry).record = r
		c.order.MoveToFront(el)
		return
	}
	c.entries[index] = c.order.PushFront(&entry{index: index, record: r})
	c.evict()
}

// SetMany inserts all records keyed by their own logical indices.
// Idempotent and commutative across records with distinct indices.
func (c *RecordCache) SetMany(records []Record) {
	for _, r := range records {
		c.Set(r.Index, r)
	}
}

// HasRange reports whether every logical index in the inclusive range
// [first, last] is resident. Does not touch recency or counters.
func (c *RecordCache) HasRange(first, last uint32) bool {
	if last < first {
		return false
	}
	for index := first; index <= last; index++ {
		if _, ok := c.entries[index]; !ok {
			return false
		}
	}
	return true
}

// Len returns the number of resident records.
func (c *RecordCache) Len() int {
	return len(c.entries)
}

// Stats returns the hit/miss counters accumulated since the last Clear.
func (c *RecordCache) Stats() Stats {
	return c.stats
}

// Clear empties the store and resets the counters.
func (c *RecordCache) Clear() {
	c.entries = make(map[uint32]*list.Element)
	c.order.Init()
	c.stats = Stats{}
}

// evict removes least-recently-used entries until len <= maxSize.
func (c *RecordCache) evict() {
	for len(c.entries) > c.maxSize {
		oldest := c.order.Back()
		if oldest == nil {
			return
		}
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*entry).index)
	}
}
