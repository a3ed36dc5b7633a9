// Package browser implements the capture browsing TUI: a packet list
// pane driven by the windowed delivery session, with a dissection detail
// pane beneath it. Separate from the delivery subsystem itself, which
// knows nothing about rendering.
package browser

import (
	"github.com/Gammell53/packet-pilot/internal/fetch"
	"github.com/Gammell53/packet-pilot/internal/history"
	"github.com/Gammell53/packet-pilot/internal/sharkd"
)

// Mode represents the current browser input mode.
type Mode int

const (
	ModeBrowse Mode = iota // Normal navigation over the packet list.
	ModeFilter             // Editing the display filter in the input line.
)

// Focus represents which pane has keyboard focus.
type Focus int

const (
	PaneList   Focus = iota // Packet list pane has focus.
	PaneDetail              // Dissection detail viewport has focus.
)

// Engine is the browser's view of the dissection engine. Satisfied by
// *sharkd.Client; tests substitute a scripted fake.
type Engine interface {
	Load(path string) error
	StatusInfo() (sharkd.Status, error)
	Frame(num uint32) (sharkd.FrameDetail, error)
	CheckFilter(filter string) (bool, error)
	Fetcher(filter string) fetch.Fetcher
}

// HistoryRecorder persists opened captures for the recent command.
type HistoryRecorder interface {
	Record(e history.Entry) error
}

// --- tea.Msg types ---

// CaptureLoadedMsg carries the result of loading the capture file.
type CaptureLoadedMsg struct {
	Status sharkd.Status
	Err    error
}

// FilterAppliedMsg carries the result of validating and applying a
// display filter. Total is the matched record count (bounded by the
// match probe window); it is meaningless unless Valid is true.
type FilterAppliedMsg struct {
	Filter string
	Valid  bool
	Total  int
	Err    error
}

// RecordsUpdatedMsg signals that the session's cache changed and the
// list pane should re-read. Emitted by the update listener each time
// the session's notify callback fires.
type RecordsUpdatedMsg struct{}

// FrameDetailMsg carries the dissection of one frame for the detail pane.
type FrameDetailMsg struct {
	Number uint32
	Detail sharkd.FrameDetail
	Err    error
}

// fetchTickMsg fires when a scroll burst has settled. Stale ticks are
// identified by seq and dropped, so only the last event of a burst
// triggers fetch planning.
type fetchTickMsg struct {
	seq int
}
