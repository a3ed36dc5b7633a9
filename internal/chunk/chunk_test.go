package chunk

import (
	"reflect"
	"testing"
)

func TestAlign_SingleChunk(t *testing.T) {
	// Frames 650..700 sit at positions [649, 700); one 500-chunk covers them.
	got := Align(Range{Start: 649, End: 700}, 500)
	want := []Range{{Start: 500, End: 1000}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Align = %v, want %v", got, want)
	}
}

func TestAlign_SpansBoundary(t *testing.T) {
	got := Align(Range{Start: 480, End: 1010}, 500)
	want := []Range{{Start: 0, End: 500}, {Start: 500, End: 1000}, {Start: 1000, End: 1500}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Align = %v, want %v", got, want)
	}
}

func TestAlign_AlreadyAligned(t *testing.T) {
	got := Align(Range{Start: 40, End: 60}, 20)
	want := []Range{{Start: 40, End: 60}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Align = %v, want %v", got, want)
	}
}

func TestAlign_Degenerate(t *testing.T) {
	cases := []struct {
		name string
		r    Range
		size int
	}{
		{"empty", Range{Start: 10, End: 10}, 500},
		{"inverted", Range{Start: 20, End: 10}, 500},
		{"negative start", Range{Start: -5, End: 10}, 500},
		{"zero chunk size", Range{Start: 0, End: 10}, 0},
	}
	for _, tt := range cases {
		if got := Align(tt.r, tt.size); got != nil {
			t.Errorf("%s: Align = %v, want nil", tt.name, got)
		}
	}
}

func TestPlan_NoPrefetch(t *testing.T) {
	got := Plan(Range{Start: 649, End: 700}, 0, 500, 10000)
	want := []Range{{Start: 500, End: 1000}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Plan = %v, want %v", got, want)
	}
}

func TestPlan_PrefetchExpandsSymmetrically(t *testing.T) {
	// [600, 650) expanded by 200 → [400, 850) → chunks [0,500) and [500,1000).
	got := Plan(Range{Start: 600, End: 650}, 200, 500, 10000)
	want := []Range{{Start: 0, End: 500}, {Start: 500, End: 1000}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Plan = %v, want %v", got, want)
	}
}

func TestPlan_ClampsLowerBound(t *testing.T) {
	got := Plan(Range{Start: 10, End: 30}, 100, 50, 10000)
	// Expansion would reach -90; clamped to 0.
	want := []Range{{Start: 0, End: 50}, {Start: 50, End: 100}, {Start: 100, End: 150}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Plan = %v, want %v", got, want)
	}
}

func TestPlan_ClipsFinalChunkToTotal(t *testing.T) {
	got := Plan(Range{Start: 85, End: 95}, 0, 30, 100)
	want := []Range{{Start: 60, End: 90}, {Start: 90, End: 100}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Plan = %v, want %v", got, want)
	}
}

func TestPlan_Degenerate(t *testing.T) {
	if got := Plan(Range{Start: 50, End: 40}, 0, 20, 100); got != nil {
		t.Errorf("inverted range: Plan = %v, want nil", got)
	}
	if got := Plan(Range{Start: 0, End: 10}, 0, 20, 0); got != nil {
		t.Errorf("empty capture: Plan = %v, want nil", got)
	}
}

func TestRange_FrameConversion(t *testing.T) {
	r := Range{Start: 40, End: 60}
	if r.FirstFrame() != 41 {
		t.Errorf("FirstFrame = %d, want 41", r.FirstFrame())
	}
	if r.LastFrame() != 60 {
		t.Errorf("LastFrame = %d, want 60", r.LastFrame())
	}
	if r.Len() != 20 {
		t.Errorf("Len = %d, want 20", r.Len())
	}
}

func TestRange_Contains(t *testing.T) {
	outer := Range{Start: 100, End: 200}
	if !outer.Contains(Range{Start: 100, End: 150}) {
		t.Error("expected [100,200) to contain [100,150)")
	}
	if outer.Contains(Range{Start: 50, End: 150}) {
		t.Error("[100,200) must not contain [50,150)")
	}
}
