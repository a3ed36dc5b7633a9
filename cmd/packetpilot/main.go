package main

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/alecthomas/kong"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"

	"github.com/Gammell53/packet-pilot/internal/browser"
	"github.com/Gammell53/packet-pilot/internal/cache"
	"github.com/Gammell53/packet-pilot/internal/config"
	"github.com/Gammell53/packet-pilot/internal/history"
	"github.com/Gammell53/packet-pilot/internal/sharkd"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Exit codes: engine/capture failures are distinguished from setup
// problems so scripts can tell a bad capture from a bad invocation.
const (
	exitSuccess = 0
	exitEngine  = 1
	exitSetup   = 2
)

// CLI is the top-level command structure for packetpilot.
type CLI struct {
	Version kong.VersionFlag `help:"Show version." short:"V"`
	View    ViewCmd          `cmd:"" help:"Browse a capture file interactively."`
	Frames  FramesCmd        `cmd:"" help:"Print a window of packet summaries."`
	Stats   StatsCmd         `cmd:"" help:"Print capture statistics."`
	Follow  FollowCmd        `cmd:"" help:"Dump a reassembled stream."`
	Recent  RecentCmd        `cmd:"" help:"List recently opened captures."`
}

// loadConfig loads layered config from user and project paths with env overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadLayered(
		os.ExpandEnv("$HOME/.config/packetpilot/config.yaml"),
		".packetpilot.yaml",
	)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// recentsPath is where the recently opened captures list lives.
func recentsPath() string {
	return os.ExpandEnv("$HOME/.config/packetpilot/recent.json")
}

// --- View command ---

// ViewCmd opens the interactive capture browser TUI.
type ViewCmd struct {
	Path   string `arg:"" help:"Capture file to open." type:"existingfile"`
	Sharkd string `help:"Override the sharkd binary to spawn."`
}

// teaRunner abstracts Bubble Tea program execution for testing.
type teaRunner interface {
	Run() (tea.Model, error)
}

// Run builds real dependencies and launches the browser TUI.
func (v *ViewCmd) Run() error {
	isTTY := isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("view: %w", err)
	}
	if v.Sharkd != "" {
		cfg.Sharkd.Binary = v.Sharkd
	}

	client, err := sharkd.Spawn(cfg.Sharkd.Binary)
	if err != nil {
		return fmt.Errorf("view: %w", err)
	}
	defer func() { _ = client.Close() }()

	m := browser.NewModel(client, cfg.Viewer, v.Path,
		browser.WithHistory(history.NewStore(recentsPath())),
	)
	prog := tea.NewProgram(m, tea.WithAltScreen())
	return v.run(isTTY, prog)
}

// run executes the tea program, enabling testable wiring. The TTY gate
// lives here so tests can exercise it without a terminal.
func (v *ViewCmd) run(isTTY bool, prog teaRunner) error {
	if !isTTY {
		return fmt.Errorf("view: requires a terminal (TTY); use frames for plain output")
	}
	_, err := prog.Run()
	return err
}

// --- Frames command ---

// FramesCmd prints a window of packet summaries without the TUI.
type FramesCmd struct {
	Path   string `arg:"" help:"Capture file to read." type:"existingfile"`
	Skip   int    `help:"Frames to skip before the window." default:"0"`
	Limit  int    `help:"Frames to print." default:"20"`
	Filter string `help:"Display filter restricting the output."`
	Sharkd string `help:"Override the sharkd binary to spawn."`
}

// frameSource abstracts the engine calls the frames command needs.
type frameSource interface {
	Load(path string) error
	CheckFilter(filter string) (bool, error)
	Frames(skip, limit int, filter string) ([]cache.Record, error)
}

// Run spawns the engine and prints the requested window.
func (f *FramesCmd) Run() error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("frames: %w", err)
	}
	if f.Sharkd != "" {
		cfg.Sharkd.Binary = f.Sharkd
	}

	client, err := sharkd.Spawn(cfg.Sharkd.Binary)
	if err != nil {
		return fmt.Errorf("frames: %w", err)
	}
	defer func() { _ = client.Close() }()

	return f.run(os.Stdout, client)
}

// run fetches and prints the window, enabling testable wiring.
func (f *FramesCmd) run(w io.Writer, src frameSource) error {
	if f.Skip < 0 || f.Limit < 1 {
		return fmt.Errorf("frames: window must have non-negative skip and positive limit")
	}

	if err := src.Load(f.Path); err != nil {
		return fmt.Errorf("frames: %w", err)
	}

	if f.Filter != "" {
		ok, err := src.CheckFilter(f.Filter)
		if err != nil {
			return fmt.Errorf("frames: %w", err)
		}
		if !ok {
			return fmt.Errorf("frames: invalid display filter %q", f.Filter)
		}
	}

	records, err := src.Frames(f.Skip, f.Limit, f.Filter)
	if err != nil {
		return fmt.Errorf("frames: %w", err)
	}

	for _, rec := range records {
		cols := rec.Columns
		if len(cols) > 0 && cols[0] == fmt.Sprint(rec.Number) {
			cols = cols[1:]
		}
		_, _ = fmt.Fprintf(w, "%d\t%s\n", rec.Number, strings.Join(cols, "\t"))
	}
	return nil
}

// --- Stats command ---

// StatsCmd prints protocol hierarchy, conversation, and endpoint
// statistics for a capture.
type StatsCmd struct {
	Path   string `arg:"" help:"Capture file to analyze." type:"existingfile"`
	Sharkd string `help:"Override the sharkd binary to spawn."`
}

// statsSource abstracts the engine calls the stats command needs.
type statsSource interface {
	Load(path string) error
	Stats() (sharkd.CaptureStats, error)
}

// Run spawns the engine and prints capture statistics.
func (s *StatsCmd) Run() error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("stats: %w", err)
	}
	if s.Sharkd != "" {
		cfg.Sharkd.Binary = s.Sharkd
	}

	client, err := sharkd.Spawn(cfg.Sharkd.Binary)
	if err != nil {
		return fmt.Errorf("stats: %w", err)
	}
	defer func() { _ = client.Close() }()

	return s.run(os.Stdout, client)
}

// run gathers and prints the statistics, enabling testable wiring.
func (s *StatsCmd) run(w io.Writer, src statsSource) error {
	if err := src.Load(s.Path); err != nil {
		return fmt.Errorf("stats: %w", err)
	}
	stats, err := src.Stats()
	if err != nil {
		return fmt.Errorf("stats: %w", err)
	}

	_, _ = fmt.Fprintln(w, "Protocol hierarchy:")
	writeHierarchy(w, stats.ProtocolHierarchy, 1)

	_, _ = fmt.Fprintln(w, "TCP conversations:")
	writeConversations(w, stats.TCPConversations)

	_, _ = fmt.Fprintln(w, "UDP conversations:")
	writeConversations(w, stats.UDPConversations)

	_, _ = fmt.Fprintln(w, "IPv4 endpoints:")
	for _, e := range stats.Endpoints {
		_, _ = fmt.Fprintf(w, "  %s\trx %d frames/%d bytes\ttx %d frames/%d bytes\n",
			hostPort(e.Host, e.Port), e.RxFrames, e.RxBytes, e.TxFrames, e.TxBytes)
	}
	return nil
}

// writeHierarchy prints protocol nodes with two-space nesting.
func writeHierarchy(w io.Writer, nodes []sharkd.ProtocolNode, depth int) {
	for _, n := range nodes {
		_, _ = fmt.Fprintf(w, "%s%s\t%d frames\t%d bytes\n",
			strings.Repeat("  ", depth), n.Protocol, n.Frames, n.Bytes)
		writeHierarchy(w, n.Children, depth+1)
	}
}

// writeConversations prints one line per address pair.
func writeConversations(w io.Writer, convs []sharkd.Conversation) {
	for _, c := range convs {
		_, _ = fmt.Fprintf(w, "  %s <-> %s\trx %d frames/%d bytes\ttx %d frames/%d bytes\n",
			hostPort(c.SourceAddr, c.SourcePort), hostPort(c.DestAddr, c.DestPort),
			c.RxFrames, c.RxBytes, c.TxFrames, c.TxBytes)
	}
}

// hostPort joins an address with its port when the tap reports one.
func hostPort(host, port string) string {
	if port == "" {
		return host
	}
	return host + ":" + port
}

// --- Follow command ---

// FollowCmd dumps the reassembled payload of one stream.
type FollowCmd struct {
	Path     string `arg:"" help:"Capture file to read." type:"existingfile"`
	Protocol string `arg:"" help:"Stream protocol (tcp, udp, or http)."`
	Stream   uint32 `arg:"" help:"Stream number."`
	Sharkd   string `help:"Override the sharkd binary to spawn."`
}

// streamSource abstracts the engine calls the follow command needs.
type streamSource interface {
	Load(path string) error
	FollowStream(protocol string, stream uint32) (sharkd.StreamData, error)
}

// Run spawns the engine and dumps the stream.
func (f *FollowCmd) Run() error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("follow: %w", err)
	}
	if f.Sharkd != "" {
		cfg.Sharkd.Binary = f.Sharkd
	}

	client, err := sharkd.Spawn(cfg.Sharkd.Binary)
	if err != nil {
		return fmt.Errorf("follow: %w", err)
	}
	defer func() { _ = client.Close() }()

	return f.run(os.Stdout, client)
}

// run fetches and prints the stream, enabling testable wiring.
func (f *FollowCmd) run(w io.Writer, src streamSource) error {
	if err := src.Load(f.Path); err != nil {
		return fmt.Errorf("follow: %w", err)
	}
	data, err := src.FollowStream(f.Protocol, f.Stream)
	if err != nil {
		return fmt.Errorf("follow: %w", err)
	}

	_, _ = fmt.Fprintf(w, "%s:%s <-> %s:%s\t%d server bytes\t%d client bytes\n",
		data.ServerHost, data.ServerPort, data.ClientHost, data.ClientPort,
		data.ServerBytes, data.ClientBytes)

	for _, p := range data.Payloads {
		raw, err := base64.StdEncoding.DecodeString(p.Data)
		if err != nil {
			return fmt.Errorf("follow: decoding segment: %w", err)
		}
		dir := "client -> server"
		if p.Direction == 1 {
			dir = "server -> client"
		}
		_, _ = fmt.Fprintf(w, "--- %s (%d bytes)\n", dir, p.Bytes)
		_, _ = w.Write(raw)
		if len(raw) > 0 && raw[len(raw)-1] != '\n' {
			_, _ = fmt.Fprintln(w)
		}
	}
	return nil
}

// --- Recent command ---

// RecentCmd lists recently opened captures.
type RecentCmd struct{}

// recentLister abstracts the history store for testing.
type recentLister interface {
	List() ([]history.Entry, error)
}

// Run prints the recents list.
func (r *RecentCmd) Run() error {
	return r.run(os.Stdout, history.NewStore(recentsPath()))
}

// run prints the recents list, enabling testable wiring.
func (r *RecentCmd) run(w io.Writer, store recentLister) error {
	entries, err := store.List()
	if err != nil {
		return fmt.Errorf("recent: %w", err)
	}
	if len(entries) == 0 {
		_, _ = fmt.Fprintln(w, "No recent captures")
		return nil
	}

	for _, e := range entries {
		line := fmt.Sprintf("%s\t%d frames\t%s", e.Path, e.Frames, e.LastOpened.Format("2006-01-02 15:04"))
		if e.Filter != "" {
			line += "\tfilter: " + e.Filter
		}
		_, _ = fmt.Fprintln(w, line)
	}
	return nil
}

// exitCode maps an error to the appropriate exit code.
func exitCode(err error) int {
	if err == nil {
		return exitSuccess
	}
	var ee *sharkd.EngineError
	if errors.As(err, &ee) {
		return exitEngine
	}
	if errors.Is(err, sharkd.ErrClosed) {
		return exitEngine
	}
	return exitSetup
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("packetpilot"),
		kong.Description("Browse large packet captures through a sharkd dissection engine."),
		kong.Vars{"version": version + " " + commit + " " + date},
	)
	err := ctx.Run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", err)
		os.Exit(exitCode(err))
	}
}
