package browser

import "github.com/charmbracelet/lipgloss"

// MinListHeight is the minimum row count for the packet list pane.
const MinListHeight = 5

// mutedText renders secondary content (placeholders, filtered-out hints).
var mutedText = lipgloss.NewStyle().
	Foreground(lipgloss.AdaptiveColor{Light: "240", Dark: "245"})

// errorText renders failure lines.
var errorText = lipgloss.NewStyle().
	Foreground(lipgloss.AdaptiveColor{Light: "1", Dark: "9"})

// selectedRow highlights the packet under the cursor.
var selectedRow = lipgloss.NewStyle().Reverse(true)

// headerRow renders the column header line of the packet list.
var headerRow = lipgloss.NewStyle().Bold(true).
	Foreground(lipgloss.AdaptiveColor{Light: "4", Dark: "12"})

// statusText renders the status bar above the panes.
var statusText = lipgloss.NewStyle().
	Foreground(lipgloss.AdaptiveColor{Light: "0", Dark: "7"})

// filterBadge renders the active display filter in the status bar.
var filterBadge = lipgloss.NewStyle().
	Foreground(lipgloss.AdaptiveColor{Light: "2", Dark: "10"})

// FocusedBorder returns a lipgloss style with an accent-colored rounded border.
func FocusedBorder() lipgloss.Style {
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.AdaptiveColor{Light: "4", Dark: "12"})
}

// UnfocusedBorder returns a lipgloss style with a dim rounded border.
func UnfocusedBorder() lipgloss.Style {
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.AdaptiveColor{Light: "240", Dark: "240"})
}

// recordStyle maps sharkd's per-frame coloring rule colors onto a row
// style. Empty strings leave the corresponding channel unstyled.
func recordStyle(fg, bg string) lipgloss.Style {
	s := lipgloss.NewStyle()
	if fg != "" {
		s = s.Foreground(lipgloss.Color("#" + fg))
	}
	if bg != "" {
		s = s.Background(lipgloss.Color("#" + bg))
	}
	return s
}

// PaneHeights splits the available content height between the packet
// list (top) and the dissection detail (bottom). The list gets two
// thirds, floored at MinListHeight; the detail takes the rest.
func PaneHeights(totalHeight int) (list, detail int) {
	if totalHeight <= 0 {
		return 0, 0
	}
	list = totalHeight * 2 / 3
	if list < MinListHeight {
		list = MinListHeight
	}
	if list > totalHeight {
		list = totalHeight
	}
	detail = totalHeight - list
	return list, detail
}
