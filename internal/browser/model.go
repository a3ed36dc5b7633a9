package browser

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Gammell53/packet-pilot/internal/config"
	"github.com/Gammell53/packet-pilot/internal/history"
	"github.com/Gammell53/packet-pilot/internal/session"
	"github.com/Gammell53/packet-pilot/internal/sharkd"
)

// statusBarHeight is the number of lines for the status/filter bar.
const statusBarHeight = 1

// helpBarHeight is the number of lines reserved for the help bar at the bottom.
const helpBarHeight = 1

// borderChrome is the number of lines consumed by top + bottom borders.
const borderChrome = 2

// matchProbeLimit bounds the fetch used to count display filter matches.
// sharkd has no cheap matched-count query; the probe's returned length
// becomes the filtered view's record count, so views with more matches
// than this window are truncated.
const matchProbeLimit = 100_000

// updateBuffer sizes the session notify channel. Notifications are
// collapsed when the model is slow to drain them, so the depth only
// affects how bursty redraws can get.
const updateBuffer = 64

// Model is the root Bubble Tea model for the capture browser. It owns
// the delivery session for the active view and rebuilds it whenever the
// capture or the display filter changes.
type Model struct {
	engine   Engine
	cfg      config.Viewer
	path     string
	recorder HistoryRecorder

	mode   Mode
	focus  Focus
	width  int
	height int

	listHeight   int
	detailHeight int

	status     sharkd.Status
	filter     string
	statusLine string
	loading    bool
	err        error

	updates chan struct{}
	sess    *session.Session
	list    listState
	detail  detailState
	details *detailCache

	filterInput textinput.Model
	spinner     spinner.Model
	help        help.Model
}

// Option configures a Model.
type Option func(*Model)

// WithHistory registers a recorder that persists the capture to the
// recents list once it loads.
func WithHistory(rec HistoryRecorder) Option {
	return func(m *Model) { m.recorder = rec }
}

// NewModel creates a browser Model for one capture file.
func NewModel(engine Engine, cfg config.Viewer, path string, opts ...Option) Model {
	ti := textinput.New()
	ti.Prompt = "filter: "

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	m := Model{
		engine:      engine,
		cfg:         cfg,
		path:        path,
		mode:        ModeBrowse,
		focus:       PaneList,
		loading:     true,
		updates:     make(chan struct{}, updateBuffer),
		filterInput: ti,
		spinner:     sp,
		help:        help.New(),
		detail:      newDetailState(),
		details:     newDetailCache(),
	}
	for _, opt := range opts {
		opt(&m)
	}
	m.sess = m.newSession("", 0)
	m.list = newListState(m.sess, cfg.ScrollCeiling)
	return m
}

// newSession builds a delivery session bound to the given display
// filter, with the chunk size scaled for the view's record count and a
// notify hook feeding the update channel.
func (m Model) newSession(filter string, total int) *session.Session {
	updates := m.updates
	return session.New(m.engine.Fetcher(filter),
		session.WithConfig(session.Config{
			MaxCacheSize:     m.cfg.MaxCacheSize,
			ChunkSize:        session.EffectiveChunkSize(m.cfg.ChunkSize, total),
			PrefetchDistance: m.cfg.PrefetchDistance,
		}),
		session.WithNotify(func() {
			select {
			case updates <- struct{}{}:
			default:
			}
		}),
	)
}

// Init starts the capture load and the session update listener.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		loadCapture(m.engine, m.path),
		listenUpdates(m.updates),
	)
}

// loadCapture returns a tea.Cmd that loads the capture in the engine
// and reports its status.
func loadCapture(engine Engine, path string) tea.Cmd {
	return func() tea.Msg {
		if err := engine.Load(path); err != nil {
			return CaptureLoadedMsg{Err: err}
		}
		status, err := engine.StatusInfo()
		return CaptureLoadedMsg{Status: status, Err: err}
	}
}

// listenUpdates returns a tea.Cmd that blocks on the session notify
// channel and converts the next notification into a RecordsUpdatedMsg.
// Re-issued after each message to keep the subscription alive.
func listenUpdates(updates <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		<-updates
		return RecordsUpdatedMsg{}
	}
}

// applyFilter returns a tea.Cmd that validates a display filter against
// the engine and, when valid, probes its match count.
func applyFilter(engine Engine, filter string, unfilteredTotal int) tea.Cmd {
	return func() tea.Msg {
		if filter == "" {
			return FilterAppliedMsg{Valid: true, Total: unfilteredTotal}
		}
		ok, err := engine.CheckFilter(filter)
		if err != nil {
			return FilterAppliedMsg{Filter: filter, Err: err}
		}
		if !ok {
			return FilterAppliedMsg{Filter: filter, Valid: false}
		}
		records, err := engine.Fetcher(filter)(0, matchProbeLimit)
		if err != nil {
			return FilterAppliedMsg{Filter: filter, Err: err}
		}
		return FilterAppliedMsg{Filter: filter, Valid: true, Total: len(records)}
	}
}

// Update handles incoming messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m.resize(msg.Width, msg.Height), nil

	case spinner.TickMsg:
		if !m.loading && !m.detail.loading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case CaptureLoadedMsg:
		return m.handleCaptureLoaded(msg)

	case FilterAppliedMsg:
		return m.handleFilterApplied(msg)

	case RecordsUpdatedMsg:
		cmds := []tea.Cmd{listenUpdates(m.updates)}
		var cmd tea.Cmd
		m, cmd = m.syncDetail()
		if cmd != nil {
			cmds = append(cmds, cmd)
		}
		return m, tea.Batch(cmds...)

	case fetchTickMsg:
		if msg.seq != m.list.fetchSeq {
			return m, nil
		}
		m.list.requestVisible()
		var cmd tea.Cmd
		m, cmd = m.syncDetail()
		return m, cmd

	case FrameDetailMsg:
		if msg.Err == nil {
			m.details.Set(msg.Number, &msg.Detail)
		}
		m.detail = m.detail.apply(msg)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

// handleCaptureLoaded installs the loaded capture as the active view.
func (m Model) handleCaptureLoaded(msg CaptureLoadedMsg) (tea.Model, tea.Cmd) {
	m.loading = false
	if msg.Err != nil {
		m.err = msg.Err
		return m, nil
	}
	m.status = msg.Status
	m = m.applyView("", int(msg.Status.Frames))

	if m.recorder != nil {
		// Best-effort; a failed recents write never blocks browsing.
		_ = m.recorder.Record(history.Entry{
			Path:       m.path,
			Frames:     msg.Status.Frames,
			LastOpened: time.Now().UTC(),
		})
	}

	m.list.requestVisible()
	return m, nil
}

// handleFilterApplied installs a validated filter as the active view.
func (m Model) handleFilterApplied(msg FilterAppliedMsg) (tea.Model, tea.Cmd) {
	m.loading = false
	if msg.Err != nil {
		m.statusLine = fmt.Sprintf("filter failed: %v", msg.Err)
		return m, nil
	}
	if !msg.Valid {
		m.statusLine = fmt.Sprintf("invalid filter: %q", msg.Filter)
		return m, nil
	}

	m = m.applyView(msg.Filter, msg.Total)
	if msg.Filter == "" {
		m.statusLine = ""
	} else {
		m.statusLine = fmt.Sprintf("%d matching packets", msg.Total)
		if msg.Total == matchProbeLimit {
			m.statusLine += " (truncated)"
		}
	}
	m.list.requestVisible()
	return m, nil
}

// applyView tears down the current view and builds a fresh session for
// the given filter and record count. The old session's cache is cleared
// and its in-flight fetches are marked cancelled before it is dropped.
func (m Model) applyView(filter string, total int) Model {
	if m.sess != nil {
		m.sess.Clear()
	}
	m.filter = filter
	m.sess = m.newSession(filter, total)
	m.sess.SetTotal(total)
	m.list = m.list.setView(m.sess, total)

	m.detail.number = 0
	m.detail.loading = false
	m.detail.err = nil
	m.detail.vp.SetContent("")
	m.details.Invalidate()
	return m
}

// syncDetail shows the dissection of the selected packet when the
// detail pane is on a different frame, serving from the detail cache
// when possible. A no-op while the selected record is not cached yet or
// a dissection is already in flight.
func (m Model) syncDetail() (Model, tea.Cmd) {
	rec, ok := m.list.selected()
	if !ok || m.detail.loading || m.detail.number == rec.Number {
		return m, nil
	}
	m.detail = m.detail.begin(rec.Number)
	if d, ok := m.details.Get(rec.Number); ok {
		m.detail = m.detail.apply(FrameDetailMsg{Number: rec.Number, Detail: *d})
		return m, nil
	}
	return m, tea.Batch(m.spinner.Tick, loadFrame(m.engine, rec.Number))
}

// handleKey processes key messages with mode-based routing.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.mode == ModeFilter {
		return m.handleFilterKey(msg)
	}

	keys := BrowseKeyMap()
	switch {
	case key.Matches(msg, keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, keys.Tab):
		if m.focus == PaneList {
			m.focus = PaneDetail
		} else {
			m.focus = PaneList
		}
		return m, nil

	case key.Matches(msg, keys.Filter):
		m.mode = ModeFilter
		m.filterInput.SetValue(m.filter)
		m.filterInput.CursorEnd()
		m.filterInput.Focus()
		return m, textinput.Blink

	case key.Matches(msg, keys.Clear):
		if m.filter == "" {
			return m, nil
		}
		m = m.applyView("", int(m.status.Frames))
		m.statusLine = ""
		m.list.requestVisible()
		return m, nil
	}

	if m.focus == PaneDetail {
		var cmd tea.Cmd
		m.detail, cmd = m.detail.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, keys.Up):
		return m.scroll(-1)
	case key.Matches(msg, keys.Down):
		return m.scroll(1)
	case key.Matches(msg, keys.PageUp):
		return m.scroll(-m.list.pageSize())
	case key.Matches(msg, keys.PageDown):
		return m.scroll(m.list.pageSize())
	case key.Matches(msg, keys.Top):
		return m.jump(1)
	case key.Matches(msg, keys.Bottom):
		return m.jump(m.list.total)
	}

	return m, nil
}

// handleFilterKey processes key messages while editing the filter.
func (m Model) handleFilterKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	keys := FilterKeyMap()
	switch {
	case key.Matches(msg, keys.Cancel):
		m.mode = ModeBrowse
		m.filterInput.Blur()
		return m, nil

	case key.Matches(msg, keys.Apply):
		expr := strings.TrimSpace(m.filterInput.Value())
		m.mode = ModeBrowse
		m.filterInput.Blur()
		if expr == m.filter {
			return m, nil
		}
		m.loading = true
		m.statusLine = ""
		return m, tea.Batch(m.spinner.Tick, applyFilter(m.engine, expr, int(m.status.Frames)))
	}

	var cmd tea.Cmd
	m.filterInput, cmd = m.filterInput.Update(msg)
	return m, cmd
}

// scroll moves the selection and arms the fetch debounce. Crossing the
// fast-scroll threshold sheds the session's in-flight fetches so stale
// windows do not crowd out the one the user lands on.
func (m Model) scroll(delta int) (tea.Model, tea.Cmd) {
	var velocity float64
	m.list, velocity = m.list.moveCursor(delta)
	if velocity > m.cfg.FastScrollThreshold && m.sess != nil {
		m.sess.CancelPending()
	}
	var cmd tea.Cmd
	m.list, cmd = m.list.scheduleFetch(m.cfg.Debounce)
	return m, cmd
}

// jump moves the selection to an absolute index and arms the fetch debounce.
func (m Model) jump(index int) (tea.Model, tea.Cmd) {
	m.list = m.list.jumpTo(index)
	var cmd tea.Cmd
	m.list, cmd = m.list.scheduleFetch(m.cfg.Debounce)
	return m, cmd
}

// resize recomputes the pane geometry.
func (m Model) resize(width, height int) Model {
	m.width = width
	m.height = height
	m.help.Width = width
	m.filterInput.Width = width - len(m.filterInput.Prompt) - 1

	content := height - statusBarHeight - helpBarHeight - 2*borderChrome
	if content < 0 {
		content = 0
	}
	m.listHeight, m.detailHeight = PaneHeights(content)
	m.list = m.list.setSize(width-borderChrome, m.listHeight)
	m.detail = m.detail.setSize(width-borderChrome, m.detailHeight)
	return m
}

// View renders the status bar, the two panes, and the help bar.
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}
	if m.err != nil {
		return errorText.Render(fmt.Sprintf("Error: %v", m.err)) + "\n"
	}

	var listStyle, detailStyle lipgloss.Style
	if m.focus == PaneList {
		listStyle = FocusedBorder()
		detailStyle = UnfocusedBorder()
	} else {
		listStyle = UnfocusedBorder()
		detailStyle = FocusedBorder()
	}

	paneWidth := m.width - borderChrome
	if paneWidth < 0 {
		paneWidth = 0
	}
	listPane := listStyle.Width(paneWidth).Height(m.listHeight).Render(m.list.View(paneWidth))
	detailPane := detailStyle.Width(paneWidth).Height(m.detailHeight).Render(m.detail.View(m.spinner.View()))

	return lipgloss.JoinVertical(lipgloss.Left,
		m.statusBar(),
		listPane,
		detailPane,
		m.help.View(HelpBindings(m.mode)),
	)
}

// statusBar renders the top line: the filter input while editing,
// otherwise the capture summary.
func (m Model) statusBar() string {
	if m.mode == ModeFilter {
		return m.filterInput.View()
	}
	if m.loading {
		return fmt.Sprintf("%s Loading %s...", m.spinner.View(), m.path)
	}

	parts := []string{
		statusText.Render(fmt.Sprintf("%s  %d packets", m.status.Filename, m.list.total)),
	}
	if m.filter != "" {
		parts = append(parts, filterBadge.Render("filter: "+m.filter))
	}
	if m.statusLine != "" {
		parts = append(parts, mutedText.Render(m.statusLine))
	}
	return strings.Join(parts, "  ")
}
