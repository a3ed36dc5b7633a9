package browser

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Gammell53/packet-pilot/internal/cache"
	"github.com/Gammell53/packet-pilot/internal/config"
	"github.com/Gammell53/packet-pilot/internal/fetch"
	"github.com/Gammell53/packet-pilot/internal/history"
	"github.com/Gammell53/packet-pilot/internal/sharkd"
)

// fakeEngine is a scripted Engine: Fetcher synthesizes records on demand
// and every call is recorded for assertions.
type fakeEngine struct {
	mu      sync.Mutex
	frames  int // unfiltered record count
	matched int // record count under any non-empty filter
	loadErr error
	calls   [][2]int // recorded (skip, limit) pairs
}

func (e *fakeEngine) Load(path string) error {
	return e.loadErr
}

func (e *fakeEngine) StatusInfo() (sharkd.Status, error) {
	return sharkd.Status{Frames: uint64(e.frames), Filename: "test.pcapng"}, nil
}

func (e *fakeEngine) Frame(num uint32) (sharkd.FrameDetail, error) {
	if num == 0 {
		return sharkd.FrameDetail{}, errors.New("no such frame")
	}
	return sharkd.FrameDetail{
		Tree: []sharkd.ProtoNode{{Label: fmt.Sprintf("Frame %d", num)}},
	}, nil
}

func (e *fakeEngine) CheckFilter(filter string) (bool, error) {
	return !strings.Contains(filter, "bogus"), nil
}

func (e *fakeEngine) Fetcher(filter string) fetch.Fetcher {
	return func(skip, limit int) ([]cache.Record, error) {
		e.mu.Lock()
		e.calls = append(e.calls, [2]int{skip, limit})
		e.mu.Unlock()

		total := e.frames
		if filter != "" {
			total = e.matched
		}
		var out []cache.Record
		for i := 0; i < limit && skip+i < total; i++ {
			num := uint32(skip+i) + 1
			out = append(out, cache.Record{
				Number:  num,
				Columns: []string{fmt.Sprint(num), "0.1", "192.0.2.1", "192.0.2.2", "TCP", "60", "data"},
			})
		}
		return out, nil
	}
}

func (e *fakeEngine) callCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.calls)
}

// fakeRecorder captures history entries.
type fakeRecorder struct {
	mu      sync.Mutex
	entries []history.Entry
}

func (r *fakeRecorder) Record(e history.Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
	return nil
}

// testCfg returns viewer tuning with a short debounce for fast tests.
func testCfg() config.Viewer {
	cfg := config.DefaultConfig().Viewer
	cfg.Debounce = time.Millisecond
	return cfg
}

// newSizedModel builds a model over the fake engine and applies a window size.
func newSizedModel(t *testing.T, engine *fakeEngine, w, h int) Model {
	t.Helper()
	m := NewModel(engine, testCfg(), "/captures/test.pcapng")
	updated, _ := m.Update(tea.WindowSizeMsg{Width: w, Height: h})
	return updated.(Model)
}

// loadCaptureMsg synthesizes the message the load command would produce.
func loadCaptureMsg(engine *fakeEngine) CaptureLoadedMsg {
	status, _ := engine.StatusInfo()
	return CaptureLoadedMsg{Status: status}
}

// waitRecord polls until the model's session has the record at index.
func waitRecord(t *testing.T, m Model, index uint32) cache.Record {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if rec, ok := m.sess.GetRecord(index); ok {
			return rec
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("record %d never became resident", index)
	return cache.Record{}
}

// keyRunes builds a rune key message.
func keyRunes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// errWrongFile stands in for an engine load failure.
var errWrongFile = errors.New("sharkd: engine error -2001: loading /captures/test.pcapng")

// mustDetail fetches a frame dissection from the fake engine.
func mustDetail(t *testing.T, engine *fakeEngine, num uint32) sharkd.FrameDetail {
	t.Helper()
	d, err := engine.Frame(num)
	if err != nil {
		t.Fatalf("Frame(%d) error = %v", num, err)
	}
	return d
}
