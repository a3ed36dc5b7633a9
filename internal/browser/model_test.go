package browser

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

func TestNewModel_Defaults(t *testing.T) {
	m := NewModel(&fakeEngine{}, testCfg(), "/captures/test.pcapng")
	if m.mode != ModeBrowse {
		t.Errorf("mode = %d, want ModeBrowse (%d)", m.mode, ModeBrowse)
	}
	if m.focus != PaneList {
		t.Errorf("focus = %d, want PaneList (%d)", m.focus, PaneList)
	}
	if !m.loading {
		t.Error("new model should start in loading state")
	}
}

func TestModel_CaptureLoadedSetsView(t *testing.T) {
	engine := &fakeEngine{frames: 1000}
	m := newSizedModel(t, engine, 100, 40)

	updated, _ := m.Update(loadCaptureMsg(engine))
	m = updated.(Model)

	if m.loading {
		t.Error("loading should clear once the capture is in")
	}
	if m.list.total != 1000 {
		t.Errorf("list total = %d, want 1000", m.list.total)
	}
	if m.list.cursor != 1 {
		t.Errorf("cursor = %d, want 1", m.list.cursor)
	}

	// The initial visible window is requested immediately; wait for the
	// async fetch to land.
	rec := waitRecord(t, m, 1)
	if rec.Number != 1 {
		t.Errorf("record 1 number = %d, want 1", rec.Number)
	}
}

func TestModel_CaptureLoadError(t *testing.T) {
	engine := &fakeEngine{}
	m := newSizedModel(t, engine, 100, 40)

	updated, _ := m.Update(CaptureLoadedMsg{Err: errWrongFile})
	m = updated.(Model)

	if m.err == nil {
		t.Fatal("load failure should be recorded")
	}
	if !strings.Contains(m.View(), "Error") {
		t.Errorf("View() should surface the load error, got %q", m.View())
	}
}

func TestModel_RecordsHistoryOnLoad(t *testing.T) {
	engine := &fakeEngine{frames: 42}
	rec := &fakeRecorder{}
	m := NewModel(engine, testCfg(), "/captures/test.pcapng", WithHistory(rec))

	updated, _ := m.Update(loadCaptureMsg(engine))
	_ = updated.(Model)

	if len(rec.entries) != 1 {
		t.Fatalf("recorded %d entries, want 1", len(rec.entries))
	}
	if rec.entries[0].Path != "/captures/test.pcapng" || rec.entries[0].Frames != 42 {
		t.Errorf("entry = %+v, want path and frame count from the load", rec.entries[0])
	}
}

func TestModel_TabTogglesFocus(t *testing.T) {
	m := newSizedModel(t, &fakeEngine{frames: 10}, 100, 40)

	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyTab})
	m = updated.(Model)
	if m.focus != PaneDetail {
		t.Errorf("after first Tab: focus = %d, want PaneDetail (%d)", m.focus, PaneDetail)
	}

	updated, _ = m.Update(tea.KeyMsg{Type: tea.KeyTab})
	m = updated.(Model)
	if m.focus != PaneList {
		t.Errorf("after second Tab: focus = %d, want PaneList (%d)", m.focus, PaneList)
	}
}

func TestModel_QuitKey(t *testing.T) {
	m := newSizedModel(t, &fakeEngine{frames: 10}, 100, 40)

	_, cmd := m.Update(keyRunes("q"))
	if cmd == nil {
		t.Fatal("q should return a quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q command should produce tea.QuitMsg")
	}
}

func TestModel_SlashEntersFilterMode(t *testing.T) {
	m := newSizedModel(t, &fakeEngine{frames: 10}, 100, 40)

	updated, _ := m.Update(keyRunes("/"))
	m = updated.(Model)
	if m.mode != ModeFilter {
		t.Fatalf("mode = %d, want ModeFilter (%d)", m.mode, ModeFilter)
	}

	// Escape abandons the edit without touching the active filter.
	updated, _ = m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	m = updated.(Model)
	if m.mode != ModeBrowse {
		t.Errorf("mode after esc = %d, want ModeBrowse (%d)", m.mode, ModeBrowse)
	}
	if m.filter != "" {
		t.Errorf("filter = %q, want empty", m.filter)
	}
}

func TestApplyFilter_ValidCountsMatches(t *testing.T) {
	engine := &fakeEngine{frames: 1000, matched: 37}

	msg := applyFilter(engine, "tcp", 1000)().(FilterAppliedMsg)

	if !msg.Valid || msg.Err != nil {
		t.Fatalf("msg = %+v, want valid without error", msg)
	}
	if msg.Total != 37 {
		t.Errorf("total = %d, want 37 matched records", msg.Total)
	}
}

func TestApplyFilter_Invalid(t *testing.T) {
	engine := &fakeEngine{frames: 1000}

	msg := applyFilter(engine, "bogus==1", 1000)().(FilterAppliedMsg)

	if msg.Valid {
		t.Error("bogus filter should not validate")
	}
	if msg.Err != nil {
		t.Errorf("invalid filter is not a transport error, got %v", msg.Err)
	}
}

func TestApplyFilter_EmptyRestoresUnfilteredTotal(t *testing.T) {
	msg := applyFilter(&fakeEngine{frames: 1000}, "", 1000)().(FilterAppliedMsg)
	if !msg.Valid || msg.Total != 1000 {
		t.Errorf("msg = %+v, want valid with unfiltered total", msg)
	}
}

func TestModel_FilterAppliedSwapsView(t *testing.T) {
	engine := &fakeEngine{frames: 1000, matched: 37}
	m := newSizedModel(t, engine, 100, 40)
	updated, _ := m.Update(loadCaptureMsg(engine))
	m = updated.(Model)
	oldSess := m.sess

	updated, _ = m.Update(FilterAppliedMsg{Filter: "tcp", Valid: true, Total: 37})
	m = updated.(Model)

	if m.sess == oldSess {
		t.Error("a new filter should build a fresh session")
	}
	if m.filter != "tcp" {
		t.Errorf("filter = %q, want tcp", m.filter)
	}
	if m.list.total != 37 {
		t.Errorf("list total = %d, want matched count 37", m.list.total)
	}
	if oldSess.Total() != 0 {
		t.Error("old session should have been cleared")
	}
}

func TestModel_InvalidFilterKeepsView(t *testing.T) {
	engine := &fakeEngine{frames: 1000}
	m := newSizedModel(t, engine, 100, 40)
	updated, _ := m.Update(loadCaptureMsg(engine))
	m = updated.(Model)
	oldSess := m.sess

	updated, _ = m.Update(FilterAppliedMsg{Filter: "bogus==1", Valid: false})
	m = updated.(Model)

	if m.sess != oldSess {
		t.Error("an invalid filter must not touch the active view")
	}
	if m.statusLine == "" {
		t.Error("invalid filter should be reported in the status line")
	}
}

func TestModel_EscClearsActiveFilter(t *testing.T) {
	engine := &fakeEngine{frames: 1000, matched: 37}
	m := newSizedModel(t, engine, 100, 40)
	updated, _ := m.Update(loadCaptureMsg(engine))
	m = updated.(Model)
	updated, _ = m.Update(FilterAppliedMsg{Filter: "tcp", Valid: true, Total: 37})
	m = updated.(Model)

	updated, _ = m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	m = updated.(Model)

	if m.filter != "" {
		t.Errorf("filter = %q, want cleared", m.filter)
	}
	if m.list.total != 1000 {
		t.Errorf("list total = %d, want unfiltered 1000", m.list.total)
	}
}

func TestModel_StaleFetchTickIgnored(t *testing.T) {
	engine := &fakeEngine{frames: 1000}
	m := newSizedModel(t, engine, 100, 40)
	updated, _ := m.Update(loadCaptureMsg(engine))
	m = updated.(Model)
	before := engine.callCount()
	m.list.fetchSeq = 5

	updated, _ = m.Update(fetchTickMsg{seq: 4})
	m = updated.(Model)

	if got := engine.callCount(); got != before {
		t.Errorf("stale tick issued %d fetches, want 0", got-before)
	}
}

func TestModel_ScrollDebounceFetchesOnce(t *testing.T) {
	engine := &fakeEngine{frames: 100_000}
	m := newSizedModel(t, engine, 100, 40)
	updated, _ := m.Update(loadCaptureMsg(engine))
	m = updated.(Model)
	waitRecord(t, m, 1)
	before := engine.callCount()

	// A burst of scroll events arms the debounce repeatedly; only the
	// final tick's sequence number survives.
	for i := 0; i < 5; i++ {
		updated, _ = m.Update(keyRunes("j"))
		m = updated.(Model)
	}
	staleTick := fetchTickMsg{seq: m.list.fetchSeq - 1}
	updated, _ = m.Update(staleTick)
	m = updated.(Model)
	if got := engine.callCount(); got != before {
		t.Fatalf("stale tick issued %d fetches, want 0", got-before)
	}

	// The live tick plans fetches for the visible window. Cursor is at
	// row 6 of an already-cached chunk, so no new fetch is needed; jump
	// far away instead and deliver its tick.
	updated, _ = m.Update(keyRunes("G"))
	m = updated.(Model)
	updated, _ = m.Update(fetchTickMsg{seq: m.list.fetchSeq})
	m = updated.(Model)

	waitRecord(t, m, uint32(m.list.total))
}

func TestModel_DetailFollowsSelection(t *testing.T) {
	engine := &fakeEngine{frames: 1000}
	m := newSizedModel(t, engine, 100, 40)
	updated, _ := m.Update(loadCaptureMsg(engine))
	m = updated.(Model)
	waitRecord(t, m, 1)

	updated, cmd := m.Update(fetchTickMsg{seq: m.list.fetchSeq})
	m = updated.(Model)

	if !m.detail.loading || m.detail.number != 1 {
		t.Fatalf("detail = %+v, want dissection of frame 1 in flight", m.detail)
	}
	if cmd == nil {
		t.Fatal("detail sync should issue a frame fetch command")
	}

	// Completing the fetch fills the pane; a result for another frame
	// would be dropped.
	updated, _ = m.Update(FrameDetailMsg{Number: 1, Detail: mustDetail(t, engine, 1)})
	m = updated.(Model)
	if m.detail.loading {
		t.Error("detail should finish loading")
	}
	if !strings.Contains(m.detail.vp.View(), "Frame 1") {
		t.Error("detail viewport should show the dissection tree")
	}
}

func TestModel_FastScrollShedsPendingFetches(t *testing.T) {
	engine := &fakeEngine{frames: 1_000_000}
	m := newSizedModel(t, engine, 100, 40)
	updated, _ := m.Update(loadCaptureMsg(engine))
	m = updated.(Model)
	waitRecord(t, m, 1)

	// Force a high instantaneous velocity, then scroll once more.
	m.list.lastMove = time.Now().Add(-time.Millisecond)
	updated, _ = m.Update(tea.KeyMsg{Type: tea.KeyPgDown})
	m = updated.(Model)

	// CancelAll marks in-flight fetches; their payloads are discarded at
	// settlement. The view stays consistent because the landing window
	// is re-requested by the debounce tick.
	updated, _ = m.Update(fetchTickMsg{seq: m.list.fetchSeq})
	m = updated.(Model)
	first, last := m.list.visible()
	waitRecord(t, m, uint32(first))
	waitRecord(t, m, uint32(last))
}

func TestModel_ViewRendersAllChrome(t *testing.T) {
	engine := &fakeEngine{frames: 1000}
	m := newSizedModel(t, engine, 100, 40)
	updated, _ := m.Update(loadCaptureMsg(engine))
	m = updated.(Model)
	waitRecord(t, m, 1)

	view := m.View()
	if !strings.Contains(view, "test.pcapng") {
		t.Error("status bar should show the capture name")
	}
	if !strings.Contains(view, "1000 packets") {
		t.Error("status bar should show the record count")
	}
	if !strings.Contains(view, CursorMarker) {
		t.Error("list should mark the selected row")
	}
}
