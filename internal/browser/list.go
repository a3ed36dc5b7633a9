package browser

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Gammell53/packet-pilot/internal/cache"
	"github.com/Gammell53/packet-pilot/internal/session"
	"github.com/Gammell53/packet-pilot/internal/viewmap"
)

// CursorMarker is the prefix shown on the selected packet row.
const CursorMarker = "▸ "

// placeholderRow is shown for indices whose records are not cached yet.
const placeholderRow = "· · ·"

// listRowHeight is the terminal row height fed to the viewport mapper.
// Character cells are the pixel unit here.
const listRowHeight = 1

// listState manages the packet list pane: cursor, scroll offset, and the
// index/offset mapper over the session's record window.
type listState struct {
	sess    *session.Session
	mapper  viewmap.Mapper
	ceiling float64

	total  int
	cursor int // 1-based logical index of the selected row, 0 when empty
	offset float64

	width  int
	height int // rows available for packet lines, excluding the header

	fetchSeq int
	lastMove time.Time
}

// newListState returns a listState over the given session. The scroll
// ceiling caps the mapper's virtual extent for very large captures.
func newListState(sess *session.Session, ceiling float64) listState {
	return listState{sess: sess, ceiling: ceiling}
}

// setSize records the pane geometry and rebuilds the mapper. One line is
// reserved for the column header.
func (ls listState) setSize(width, height int) listState {
	ls.width = width
	ls.height = height - 1
	if ls.height < 1 {
		ls.height = 1
	}
	return ls.rebuild()
}

// setView swaps in a new session and record count, resetting the cursor
// and scroll position. Called when a capture loads or the filter changes.
func (ls listState) setView(sess *session.Session, total int) listState {
	ls.sess = sess
	ls.total = total
	ls.offset = 0
	ls.cursor = 0
	if total > 0 {
		ls.cursor = 1
	}
	return ls.rebuild()
}

// rebuild recreates the mapper for the current geometry and clamps the
// scroll offset into its valid range.
func (ls listState) rebuild() listState {
	ls.mapper = viewmap.New(ls.total, listRowHeight, float64(ls.height), ls.ceiling)
	maxOffset := ls.mapper.VirtualHeight() - float64(ls.height)
	if maxOffset < 0 {
		maxOffset = 0
	}
	if ls.offset > maxOffset {
		ls.offset = maxOffset
	}
	if ls.offset < 0 {
		ls.offset = 0
	}
	return ls
}

// visible returns the inclusive logical index range currently on screen,
// or (0, 0) for an empty view.
func (ls listState) visible() (first, last int) {
	return ls.mapper.VisibleRange(ls.offset)
}

// moveCursor shifts the selection by delta rows, scrolling to keep it on
// screen. The returned velocity is the instantaneous scroll rate in
// rows per second, used by the model to shed stale fetches during fast
// scrolling; bursts separated by more than a second report zero.
func (ls listState) moveCursor(delta int) (listState, float64) {
	if ls.total == 0 {
		return ls, 0
	}
	ls.cursor += delta
	if ls.cursor < 1 {
		ls.cursor = 1
	}
	if ls.cursor > ls.total {
		ls.cursor = ls.total
	}

	first, last := ls.visible()
	if ls.cursor < first || ls.cursor > last {
		ls.offset = ls.mapper.ScrollToIndex(ls.cursor)
	}

	now := time.Now()
	dt := now.Sub(ls.lastMove)
	ls.lastMove = now
	if dt <= 0 || dt > time.Second {
		return ls, 0
	}
	rows := delta
	if rows < 0 {
		rows = -rows
	}
	return ls, float64(rows) / dt.Seconds()
}

// pageSize returns the row count of one page jump.
func (ls listState) pageSize() int {
	if ls.height < 1 {
		return 1
	}
	return ls.height
}

// jumpTo moves the selection to an absolute logical index and centers it.
func (ls listState) jumpTo(index int) listState {
	if ls.total == 0 {
		return ls
	}
	if index < 1 {
		index = 1
	}
	if index > ls.total {
		index = ls.total
	}
	ls.cursor = index
	ls.offset = ls.mapper.ScrollToIndex(index)
	return ls
}

// selected returns the record under the cursor, if cached.
func (ls listState) selected() (cache.Record, bool) {
	if ls.cursor < 1 || ls.sess == nil {
		return cache.Record{}, false
	}
	return ls.sess.GetRecord(uint32(ls.cursor))
}

// scheduleFetch arms the scroll debounce: it advances the tick sequence
// and returns a command that fires a fetchTickMsg carrying it. Earlier
// ticks still in flight carry stale sequence numbers and are ignored, so
// a burst of scroll events resolves to a single fetch plan.
func (ls listState) scheduleFetch(debounce time.Duration) (listState, tea.Cmd) {
	ls.fetchSeq++
	seq := ls.fetchSeq
	return ls, tea.Tick(debounce, func(time.Time) tea.Msg {
		return fetchTickMsg{seq: seq}
	})
}

// requestVisible asks the session to make the on-screen range resident.
// Fire-and-forget; results arrive through the session's notify channel.
func (ls listState) requestVisible() {
	first, last := ls.visible()
	if first == 0 || ls.sess == nil {
		return
	}
	ls.sess.EnsureRange(uint32(first), uint32(last))
}

// listColumns is the header line for sharkd's default summary columns.
var listColumns = []string{"No.", "Time", "Source", "Destination", "Protocol", "Length", "Info"}

// View renders the packet list pane at the given width. Rows whose
// records are still in flight render as muted placeholders; rendering
// never blocks on a fetch.
func (ls listState) View(width int) string {
	var b strings.Builder
	b.WriteString(headerRow.Render(truncate(strings.Join(listColumns, "  "), width)))

	if ls.total == 0 {
		b.WriteString("\n")
		b.WriteString(mutedText.Render("No packets in view"))
		return b.String()
	}

	first, last := ls.visible()
	for i := first; i <= last; i++ {
		b.WriteByte('\n')
		marker := "  "
		if i == ls.cursor {
			marker = CursorMarker
		}

		rec, ok := ls.sess.GetRecord(uint32(i))
		if !ok {
			b.WriteString(marker)
			b.WriteString(mutedText.Render(fmt.Sprintf("%d  %s", i, placeholderRow)))
			continue
		}

		line := truncate(formatRecord(rec), width-2)
		switch {
		case i == ls.cursor:
			line = selectedRow.Render(line)
		case rec.Foreground != "" || rec.Background != "":
			line = recordStyle(rec.Foreground, rec.Background).Render(line)
		}
		b.WriteString(marker)
		b.WriteString(line)
	}
	return b.String()
}

// formatRecord joins a record's frame number and summary columns into
// one display line.
func formatRecord(rec cache.Record) string {
	parts := make([]string, 0, len(rec.Columns)+1)
	parts = append(parts, fmt.Sprint(rec.Number))
	// sharkd's first column duplicates the frame number; skip it when so.
	cols := rec.Columns
	if len(cols) > 0 && cols[0] == fmt.Sprint(rec.Number) {
		cols = cols[1:]
	}
	parts = append(parts, cols...)
	return strings.Join(parts, "  ")
}

// truncate clips a line to width runes.
func truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= width {
		return s
	}
	return string(runes[:width-1]) + "…"
}
