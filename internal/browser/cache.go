package browser

import "github.com/Gammell53/packet-pilot/internal/sharkd"

// detailCache stores fetched frame dissections keyed by frame number,
// so revisiting a packet does not round-trip to the engine again.
// It is not safe for concurrent use; callers must confine access to a
// single goroutine (the Bubble Tea update loop).
type detailCache struct {
	entries map[uint32]*sharkd.FrameDetail
}

// newDetailCache creates an empty cache.
func newDetailCache() *detailCache {
	return &detailCache{entries: make(map[uint32]*sharkd.FrameDetail)}
}

// Get returns the cached dissection for the given frame, or nil and
// false on miss.
func (c *detailCache) Get(num uint32) (*sharkd.FrameDetail, bool) {
	d, ok := c.entries[num]
	return d, ok
}

// Set stores a dissection, replacing any existing entry.
func (c *detailCache) Set(num uint32, d *sharkd.FrameDetail) {
	c.entries[num] = d
}

// Invalidate clears all cached entries.
func (c *detailCache) Invalidate() {
	c.entries = make(map[uint32]*sharkd.FrameDetail)
}
