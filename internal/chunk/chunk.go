// Package chunk aligns requested record ranges to fixed-size fetch chunks.
//
// Ranges are half-open, 0-based position ranges: position p holds the frame
// with 1-based number p+1, so a range maps directly onto the engine's
// skip/limit pagination (skip = Start, limit = End-Start).
package chunk

// Range is a half-open position range [Start, End).
type Range struct {
	Start int
	End   int
}

// Len returns the number of positions covered.
func (r Range) Len() int {
	if r.End <= r.Start {
		return 0
	}
	return r.End - r.Start
}

// Contains reports whether r fully contains other.
func (r Range) Contains(other Range) bool {
	return r.Start <= other.Start && other.End <= r.End
}

// FirstFrame returns the 1-based frame number of the first covered record.
func (r Range) FirstFrame() uint32 {
	return uint32(r.Start + 1)
}

// LastFrame returns the 1-based frame number of the last covered record.
func (r Range) LastFrame() uint32 {
	return uint32(r.End)
}

// Align covers r with chunkSize-aligned chunks, each starting at a multiple
// of chunkSize. Returns nil for a degenerate range or chunk size.
func Align(r Range, chunkSize int) []Range {
	if chunkSize < 1 || r.Start < 0 || r.End <= r.Start {
		return nil
	}
	first := (r.Start / chunkSize) * chunkSize
	var chunks []Range
	for start := first; start < r.End; start += chunkSize {
		chunks = append(chunks, Range{Start: start, End: start + chunkSize})
	}
	return chunks
}

// Plan expands visible symmetrically by prefetch positions, clamps the
// result to [0, total), and returns the aligned chunk list covering it.
// The final chunk is clipped to total so the engine is never asked past
// the end of the capture. Degenerate input plans nothing.
func Plan(visible Range, prefetch, chunkSize, total int) []Range {
	if total < 1 || visible.End <= visible.Start {
		return nil
	}
	expanded := Range{Start: visible.Start - prefetch, End: visible.End + prefetch}
	if expanded.Start < 0 {
		expanded.Start = 0
	}
	if expanded.End > total {
		expanded.End = total
	}
	chunks := Align(expanded, chunkSize)
	if n := len(chunks); n > 0 && chunks[n-1].End > total {
		chunks[n-1].End = total
	}
	return chunks
}
