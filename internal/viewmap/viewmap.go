// Package viewmap converts between logical row indices and physical scroll
// offsets for captures whose natural pixel height can exceed the rendering
// surface's maximum representable scroll extent.
//
// When total*rowHeight fits under the ceiling the mapping is the trivial
// one-row-per-rowHeight case. Past the ceiling the mapper compresses the
// logical index space proportionally: the scrollbar thumb no longer tracks
// logical position 1:1, and visible rows are placed contiguously from the
// first visible row's offset (RowTop) rather than at their true unscaled
// positions.
package viewmap

import "math"

// Mapper is a pure mapping for one view geometry. It holds no state beyond
// the inputs and is cheap to rebuild on every scroll or resize event.
type Mapper struct {
	total           int     // logical rows, 1-based indices 1..total
	rowHeight       float64 // pixels per row
	containerHeight float64 // visible surface height in pixels
	maxExtent       float64 // platform ceiling on scrollable height
}

// New creates a Mapper for total logical rows rendered rowHeight pixels
// tall inside a containerHeight viewport, under a maxExtent scroll ceiling.
func New(total int, rowHeight, containerHeight, maxExtent float64) Mapper {
	if total < 0 {
		total = 0
	}
	return Mapper{
		total:           total,
		rowHeight:       rowHeight,
		containerHeight: containerHeight,
		maxExtent:       maxExtent,
	}
}

// naturalHeight is the uncapped pixel height of all rows.
func (m Mapper) naturalHeight() float64 {
	return float64(m.total) * m.rowHeight
}

// VirtualHeight returns the scrollable height actually presented to the
// rendering surface: the natural height, capped at the platform ceiling.
func (m Mapper) VirtualHeight() float64 {
	if h := m.naturalHeight(); h <= m.maxExtent {
		return h
	}
	return m.maxExtent
}

// Scaled reports whether the natural height exceeds the ceiling.
func (m Mapper) Scaled() bool {
	return m.naturalHeight() > m.maxExtent
}

// ScaleFactor returns naturalHeight/virtualHeight, or 1 in unscaled mode.
func (m Mapper) ScaleFactor() float64 {
	if !m.Scaled() {
		return 1
	}
	return m.naturalHeight() / m.VirtualHeight()
}

// OffsetForIndex maps a 1-based logical row index to its physical offset.
func (m Mapper) OffsetForIndex(index int) float64 {
	if m.total == 0 || index < 1 {
		return 0
	}
	if index > m.total {
		index = m.total
	}
	if !m.Scaled() {
		return float64(index-1) * m.rowHeight
	}
	return float64(index) / float64(m.total) * m.VirtualHeight()
}

// IndexForOffset maps a physical offset back to a 1-based logical row
// index, floored, clamped to [1, total]. Returns 0 for an empty view.
func (m Mapper) IndexForOffset(offset float64) int {
	if m.total == 0 {
		return 0
	}
	var index int
	if !m.Scaled() {
		index = int(math.Floor(offset/m.rowHeight)) + 1
	} else {
		index = int(math.Floor(offset / m.VirtualHeight() * float64(m.total)))
	}
	if index < 1 {
		index = 1
	}
	if index > m.total {
		index = m.total
	}
	return index
}

// VisibleRange returns the inclusive [first, last] logical indices visible
// at the given scroll offset, with one extra row of slack for partially
// visible rows at the bottom edge.
func (m Mapper) VisibleRange(offset float64) (first, last int) {
	if m.total == 0 || m.rowHeight <= 0 {
		return 0, 0
	}
	first = m.IndexForOffset(offset)
	rows := int(math.Ceil(m.containerHeight/m.rowHeight)) + 1
	last = first + rows - 1
	if last > m.total {
		last = m.total
	}
	return first, last
}

// RowTop returns the physical offset at which to place the row that is
// rowsFromFirst rows below the first visible row, given the first visible
// row's offset. Consecutive visible rows stay contiguous and evenly spaced
// even in scaled mode.
func (m Mapper) RowTop(firstVisibleOffset float64, rowsFromFirst int) float64 {
	return firstVisibleOffset + float64(rowsFromFirst)*m.rowHeight
}

// ScrollToIndex returns the offset that centers the given logical index in
// the viewport, clamped to the valid scroll range.
func (m Mapper) ScrollToIndex(index int) float64 {
	target := m.OffsetForIndex(index) - m.containerHeight/2 + m.rowHeight/2
	maxOffset := m.VirtualHeight() - m.containerHeight
	if maxOffset < 0 {
		maxOffset = 0
	}
	if target > maxOffset {
		target = maxOffset
	}
	if target < 0 {
		target = 0
	}
	return target
}
