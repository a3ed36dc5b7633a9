package cache

import (
	"fmt"
	"testing"
)

// rec builds a minimal record at the given logical index.
func rec(num uint32) Record {
	return Record{Index: num, Number: num, Columns: []string{fmt.Sprint(num), "192.0.2.1", "192.0.2.2", "TCP"}}
}

func TestCache_GetEmpty(t *testing.T) {
	c := New(10)
	if _, ok := c.Get(1); ok {
		t.Fatal("expected miss on empty cache")
	}
	if s := c.Stats(); s.Misses != 1 || s.Hits != 0 {
		t.Errorf("stats = %+v, want 1 miss 0 hits", s)
	}
}

func TestCache_SetAndGet(t *testing.T) {
	c := New(10)
	c.Set(43, rec(43))

	got, ok := c.Get(43)
	if !ok {
		t.Fatal("expected hit after Set")
	}
	if got.Number != 43 {
		t.Errorf("got number %d, want 43", got.Number)
	}
	if s := c.Stats(); s.Hits != 1 {
		t.Errorf("hits = %d, want 1", s.Hits)
	}
}

func TestCache_SizeBoundHolds(t *testing.T) {
	const maxSize = 50
	c := New(maxSize)
	for i := uint32(1); i <= 500; i++ {
		c.Set(i, rec(i))
		if c.Len() > maxSize {
			t.Fatalf("after Set(%d): len = %d exceeds bound %d", i, c.Len(), maxSize)
		}
	}
	if c.Len() != maxSize {
		t.Errorf("len = %d, want %d", c.Len(), maxSize)
	}
}

func TestCache_GetPromotesToMostRecent(t *testing.T) {
	const maxSize = 4
	c := New(maxSize)
	for i := uint32(1); i <= maxSize; i++ {
		c.Set(i, rec(i))
	}

	// Touch the oldest entry, then insert maxSize further keys. The touched
	// key must survive longer than the untouched second-oldest.
	if _, ok := c.Get(1); !ok {
		t.Fatal("expected hit on key 1")
	}
	c.Set(100, rec(100))
	if _, ok := c.entries[2]; ok {
		t.Error("key 2 should have been evicted before promoted key 1")
	}
	if _, ok := c.entries[1]; !ok {
		t.Error("promoted key 1 should still be resident")
	}
}

func TestCache_OverwriteBecomesMostRecent(t *testing.T) {
	c := New(3)
	c.Set(1, rec(1))
	c.Set(2, rec(2))
	c.Set(3, rec(3))

	// Overwrite key 1; it must now outlive keys 2 and 3 under churn.
	c.Set(1, Record{Number: 1, Columns: []string{"1", "overwritten"}})
	c.Set(4, rec(4))

	if _, ok := c.entries[2]; ok {
		t.Error("key 2 should have been evicted")
	}
	got, ok := c.Get(1)
	if !ok {
		t.Fatal("overwritten key 1 should be resident")
	}
	if got.Columns[1] != "overwritten" {
		t.Errorf("columns = %v, want overwritten payload", got.Columns)
	}
}

func TestCache_SetManyIdempotent(t *testing.T) {
	c := New(10)
	records := []Record{rec(5), rec(6), rec(7)}

	c.SetMany(records)
	c.SetMany(records)

	if c.Len() != 3 {
		t.Errorf("len = %d, want 3", c.Len())
	}
	for _, r := range records {
		got, ok := c.Get(r.Number)
		if !ok || got.Number != r.Number {
			t.Errorf("Get(%d) = %+v, %v", r.Number, got, ok)
		}
	}
}

func TestCache_HasRange(t *testing.T) {
	c := New(100)
	c.SetMany([]Record{rec(10), rec(11), rec(12), rec(14)})

	tests := []struct {
		first, last uint32
		want        bool
	}{
		{10, 12, true},
		{10, 14, false}, // 13 missing
		{11, 11, true},
		{14, 10, false}, // inverted
		{15, 20, false},
	}
	for _, tt := range tests {
		if got := c.HasRange(tt.first, tt.last); got != tt.want {
			t.Errorf("HasRange(%d, %d) = %v, want %v", tt.first, tt.last, got, tt.want)
		}
	}
}

func TestCache_HasRangeNoRecencyEffect(t *testing.T) {
	c := New(2)
	c.Set(1, rec(1))
	c.Set(2, rec(2))

	// Coverage checks must not promote; key 1 stays oldest.
	c.HasRange(1, 2)
	c.Set(3, rec(3))

	if _, ok := c.entries[1]; ok {
		t.Error("key 1 should have been evicted despite HasRange touching it")
	}
}

func TestCache_Clear(t *testing.T) {
	c := New(10)
	c.SetMany([]Record{rec(1), rec(2)})
	c.Get(1)
	c.Get(99)

	c.Clear()

	if c.Len() != 0 {
		t.Errorf("len after Clear = %d, want 0", c.Len())
	}
	if s := c.Stats(); s.Hits != 0 || s.Misses != 0 {
		t.Errorf("stats after Clear = %+v, want zeroes", s)
	}
	if _, ok := c.Get(1); ok {
		t.Error("expected miss after Clear")
	}
}

func TestCache_MinimumCapacity(t *testing.T) {
	c := New(0)
	c.Set(1, rec(1))
	if c.Len() != 1 {
		t.Errorf("len = %d, want 1 (capacity floor)", c.Len())
	}
	c.Set(2, rec(2))
	if _, ok := c.entries[1]; ok {
		t.Error("key 1 should have been evicted at capacity 1")
	}
}
