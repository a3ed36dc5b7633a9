package browser

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/Gammell53/packet-pilot/internal/sharkd"
)

// detailState manages the dissection detail pane: a scrollable viewport
// over the selected frame's protocol tree and hex dump.
type detailState struct {
	vp      viewport.Model
	number  uint32 // frame currently shown, 0 when none
	loading bool
	err     error
}

// newDetailState returns an empty detail pane.
func newDetailState() detailState {
	return detailState{vp: viewport.New(0, 0)}
}

// setSize resizes the viewport.
func (ds detailState) setSize(width, height int) detailState {
	ds.vp.Width = width
	ds.vp.Height = height
	return ds
}

// loadFrame returns a tea.Cmd that fetches the dissection of one frame
// and wraps it in a FrameDetailMsg.
func loadFrame(engine Engine, num uint32) tea.Cmd {
	return func() tea.Msg {
		detail, err := engine.Frame(num)
		return FrameDetailMsg{Number: num, Detail: detail, Err: err}
	}
}

// begin marks the pane as loading the given frame.
func (ds detailState) begin(num uint32) detailState {
	ds.number = num
	ds.loading = true
	ds.err = nil
	return ds
}

// apply installs a fetched dissection. Results for a frame other than
// the one last requested are stale and dropped.
func (ds detailState) apply(msg FrameDetailMsg) detailState {
	if msg.Number != ds.number {
		return ds
	}
	ds.loading = false
	if msg.Err != nil {
		ds.err = msg.Err
		ds.vp.SetContent("")
		return ds
	}
	ds.vp.SetContent(renderDetail(msg.Detail))
	ds.vp.GotoTop()
	return ds
}

// Update routes viewport scrolling keys when the pane has focus.
func (ds detailState) Update(msg tea.Msg) (detailState, tea.Cmd) {
	var cmd tea.Cmd
	ds.vp, cmd = ds.vp.Update(msg)
	return ds, cmd
}

// View renders the detail pane content.
func (ds detailState) View(spinnerView string) string {
	if ds.number == 0 {
		return mutedText.Render("Select a packet to dissect")
	}
	if ds.loading {
		return fmt.Sprintf("%s Dissecting frame %d...", spinnerView, ds.number)
	}
	if ds.err != nil {
		return errorText.Render(fmt.Sprintf("Error: %v", ds.err))
	}
	return ds.vp.View()
}

// renderDetail formats a frame's protocol tree followed by its hex dump.
func renderDetail(d sharkd.FrameDetail) string {
	var b strings.Builder
	renderTree(&b, d.Tree, 0)
	if d.Bytes != "" {
		raw, err := base64.StdEncoding.DecodeString(d.Bytes)
		if err == nil && len(raw) > 0 {
			if b.Len() > 0 {
				b.WriteByte('\n')
			}
			writeHexDump(&b, raw)
		}
	}
	return b.String()
}

// renderTree writes the dissection tree with two-space indentation per
// protocol layer.
func renderTree(b *strings.Builder, nodes []sharkd.ProtoNode, depth int) {
	for _, n := range nodes {
		b.WriteString(strings.Repeat("  ", depth))
		b.WriteString(n.Label)
		b.WriteByte('\n')
		renderTree(b, n.Children, depth+1)
	}
}

// writeHexDump writes a classic 16-bytes-per-row hex dump with offsets
// and an ASCII gutter.
func writeHexDump(b *strings.Builder, data []byte) {
	for base := 0; base < len(data); base += 16 {
		end := base + 16
		if end > len(data) {
			end = len(data)
		}
		row := data[base:end]

		fmt.Fprintf(b, "%04x  ", base)
		for i := 0; i < 16; i++ {
			if i == 8 {
				b.WriteByte(' ')
			}
			if i < len(row) {
				fmt.Fprintf(b, "%02x ", row[i])
			} else {
				b.WriteString("   ")
			}
		}
		b.WriteByte(' ')
		for _, c := range row {
			if c < 0x20 || c > 0x7e {
				c = '.'
			}
			b.WriteByte(c)
		}
		b.WriteByte('\n')
	}
}
