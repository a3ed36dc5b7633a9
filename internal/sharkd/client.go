// Package sharkd bridges to a long-lived sharkd process (Wireshark's
// dissection daemon) over newline-delimited JSON-RPC on its stdio.
package sharkd

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"

	"github.com/Gammell53/packet-pilot/internal/cache"
	"github.com/Gammell53/packet-pilot/internal/fetch"
)

// Sentinel errors for caller-checkable conditions.
var (
	ErrNotFound = errors.New("sharkd: binary not found on PATH")
	ErrClosed   = errors.New("sharkd: engine closed")
)

// EngineError is a structured error returned by sharkd itself.
type EngineError struct {
	Code    int
	Message string
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("sharkd: engine error %d: %s", e.Code, e.Message)
}

// Status is the engine's summary of the loaded capture.
type Status struct {
	Frames   uint64  `json:"frames"`
	Duration float64 `json:"duration"`
	Filename string  `json:"filename"`
}

// ProtoNode is one node of a frame's dissection tree.
type ProtoNode struct {
	Label    string      `json:"l"`
	Children []ProtoNode `json:"n,omitempty"`
}

// FrameDetail is the full dissection of a single frame.
type FrameDetail struct {
	Tree  []ProtoNode `json:"tree"`
	Bytes string      `json:"bytes"` // base64 packet bytes
}

// StreamPayload is one reassembled segment of a followed stream.
type StreamPayload struct {
	Bytes     uint64 `json:"n"`
	Data      string `json:"d"` // base64 segment bytes
	Direction int    `json:"s"` // 0 = client to server, 1 = server to client
}

// StreamData is the result of following one stream end to end.
type StreamData struct {
	ServerHost  string          `json:"shost"`
	ServerPort  string          `json:"sport"`
	ClientHost  string          `json:"chost"`
	ClientPort  string          `json:"cport"`
	ServerBytes uint64          `json:"sbytes"`
	ClientBytes uint64          `json:"cbytes"`
	Payloads    []StreamPayload `json:"payloads"`
}

// ProtocolNode is one node of the capture's protocol hierarchy.
type ProtocolNode struct {
	Protocol string         `json:"proto"`
	Frames   uint64         `json:"frames"`
	Bytes    uint64         `json:"bytes"`
	Children []ProtocolNode `json:"protos,omitempty"`
}

// Conversation is one address pair reported by a conversation tap.
type Conversation struct {
	SourceAddr string  `json:"saddr"`
	DestAddr   string  `json:"daddr"`
	SourcePort string  `json:"sport,omitempty"`
	DestPort   string  `json:"dport,omitempty"`
	RxFrames   uint64  `json:"rxf"`
	RxBytes    uint64  `json:"rxb"`
	TxFrames   uint64  `json:"txf"`
	TxBytes    uint64  `json:"txb"`
	Start      float64 `json:"start,omitempty"`
	Stop       float64 `json:"stop,omitempty"`
	Filter     string  `json:"filter,omitempty"`
}

// Endpoint is one host reported by an endpoint tap.
type Endpoint struct {
	Host     string `json:"host"`
	Port     string `json:"port,omitempty"`
	RxFrames uint64 `json:"rxf"`
	RxBytes  uint64 `json:"rxb"`
	TxFrames uint64 `json:"txf"`
	TxBytes  uint64 `json:"txb"`
	Filter   string `json:"filter,omitempty"`
}

// CaptureStats aggregates the capture-wide tap results.
type CaptureStats struct {
	ProtocolHierarchy []ProtocolNode
	TCPConversations  []Conversation
	UDPConversations  []Conversation
	Endpoints         []Endpoint
}

// tapResult is one entry of a batched tap response, identified by its
// "tap" member. The payload member varies by tap kind.
type tapResult struct {
	Tap    string         `json:"tap"`
	Protos []ProtocolNode `json:"protos"`
	Convs  []Conversation `json:"convs"`
	Hosts  []Endpoint     `json:"hosts"`
}

// rpcRequest is one outbound JSON-RPC message.
type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

// rpcError is the error member of a JSON-RPC response.
type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// rpcResponse is one inbound JSON-RPC message.
type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

// Client speaks to one sharkd process. A request/response exchange holds
// the pipe for its full duration, so calls from multiple goroutines
// serialize; sharkd itself is single-threaded per connection anyway.
type Client struct {
	mu     sync.Mutex
	w      io.Writer
	r      *bufio.Reader
	nextID uint64
	cmd    *exec.Cmd // nil when attached to external pipes
	closer io.Closer // engine stdin; closing it ends the process
}

// Attach creates a Client over an existing duplex byte stream.
// Used by tests to drive the codec without a real process.
func Attach(w io.Writer, r io.Reader) *Client {
	return &Client{w: w, r: bufio.NewReader(r)}
}

// Spawn starts `binary -` (stdio mode) and verifies it responds to a
// status probe before returning.
func Spawn(binary string) (*Client, error) {
	path, err := exec.LookPath(binary)
	if err != nil {
		return nil, fmt.Errorf("%w (looked for %q)", ErrNotFound, binary)
	}

	cmd := exec.Command(path, "-")
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("sharkd: stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("sharkd: stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("sharkd: starting %s: %w", path, err)
	}

	c := Attach(stdin, stdout)
	c.cmd = cmd
	c.closer = stdin

	// "Hello in child." goes to stderr; prove liveness with a real request.
	if _, err := c.StatusInfo(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("sharkd: engine did not answer status probe: %w", err)
	}
	return c, nil
}

// Close shuts the engine down by closing its stdin and reaping the
// process. Safe to call on an Attach'd client (no-op beyond the closer).
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closer != nil {
		_ = c.closer.Close()
		c.closer = nil
	}
	if c.cmd != nil {
		err := c.cmd.Wait()
		c.cmd = nil
		return err
	}
	return nil
}

// request performs one JSON-RPC exchange. sharkd requires each request on
// its own newline-terminated line and answers one line per request.
func (c *Client) request(method string, params any) (json.RawMessage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.w == nil {
		return nil, ErrClosed
	}

	c.nextID++
	req := rpcRequest{JSONRPC: "2.0", ID: c.nextID, Method: method, Params: params}
	line, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("sharkd: encoding %s request: %w", method, err)
	}
	line = append(line, '\n')
	if _, err := c.w.Write(line); err != nil {
		return nil, fmt.Errorf("sharkd: writing %s request: %w", method, err)
	}

	resp, err := c.r.ReadBytes('\n')
	if err != nil {
		return nil, fmt.Errorf("sharkd: reading %s response: %w", method, err)
	}
	var parsed rpcResponse
	if err := json.Unmarshal(resp, &parsed); err != nil {
		return nil, fmt.Errorf("sharkd: parsing %s response: %w", method, err)
	}
	if parsed.Error != nil {
		return nil, &EngineError{Code: parsed.Error.Code, Message: parsed.Error.Message}
	}
	return parsed.Result, nil
}

// Load opens a capture file in the engine.
func (c *Client) Load(path string) error {
	result, err := c.request("load", map[string]any{"file": path})
	if err != nil {
		return err
	}
	var status struct {
		Status string `json:"status"`
		Err    *int   `json:"err"`
	}
	if err := json.Unmarshal(result, &status); err != nil {
		return fmt.Errorf("sharkd: parsing load result: %w", err)
	}
	if status.Err != nil {
		return &EngineError{Code: *status.Err, Message: fmt.Sprintf("loading %s", path)}
	}
	return nil
}

// StatusInfo returns the engine's view of the loaded capture.
func (c *Client) StatusInfo() (Status, error) {
	result, err := c.request("status", nil)
	if err != nil {
		return Status{}, err
	}
	var s Status
	if err := json.Unmarshal(result, &s); err != nil {
		return Status{}, fmt.Errorf("sharkd: parsing status: %w", err)
	}
	return s, nil
}

// Frames fetches limit packet summaries starting after skip frames,
// optionally restricted by a display filter. sharkd rejects an explicit
// skip of 0, so the field is omitted in that case.
func (c *Client) Frames(skip, limit int, filter string) ([]cache.Record, error) {
	params := map[string]any{"limit": limit}
	if skip > 0 {
		params["skip"] = skip
	}
	if filter != "" {
		params["filter"] = filter
	}

	result, err := c.request("frames", params)
	if err != nil {
		return nil, err
	}

	// The result is either a bare array or wrapped in {"frames": [...]}.
	var records []cache.Record
	if err := json.Unmarshal(result, &records); err == nil {
		return records, nil
	}
	var wrapped struct {
		Frames []cache.Record `json:"frames"`
	}
	if err := json.Unmarshal(result, &wrapped); err != nil {
		return nil, fmt.Errorf("sharkd: parsing frames: %w", err)
	}
	return wrapped.Frames, nil
}

// Frame fetches the full dissection tree and bytes for one frame.
func (c *Client) Frame(num uint32) (FrameDetail, error) {
	result, err := c.request("frame", map[string]any{
		"frame": num,
		"proto": true,
		"bytes": true,
	})
	if err != nil {
		return FrameDetail{}, err
	}
	var d FrameDetail
	if err := json.Unmarshal(result, &d); err != nil {
		return FrameDetail{}, fmt.Errorf("sharkd: parsing frame %d: %w", num, err)
	}
	return d, nil
}

// CheckFilter reports whether a display filter expression is valid.
func (c *Client) CheckFilter(filter string) (bool, error) {
	result, err := c.request("check", map[string]any{"filter": filter})
	if err != nil {
		// sharkd signals an invalid filter through the error member on
		// newer builds; treat that as "invalid", not a transport failure.
		var ee *EngineError
		if errors.As(err, &ee) {
			return false, nil
		}
		return false, err
	}
	var check struct {
		Filter *string `json:"filter"`
		Err    *int    `json:"err"`
	}
	if err := json.Unmarshal(result, &check); err != nil {
		return false, fmt.Errorf("sharkd: parsing check result: %w", err)
	}
	return check.Err == nil, nil
}

// FollowStream reassembles one TCP, UDP, or HTTP stream by id. sharkd
// wants the protocol uppercased in the follow member and lowercased in
// the stream-selecting filter.
func (c *Client) FollowStream(protocol string, stream uint32) (StreamData, error) {
	result, err := c.request("follow", map[string]any{
		"follow": strings.ToUpper(protocol),
		"filter": fmt.Sprintf("%s.stream==%d", strings.ToLower(protocol), stream),
	})
	if err != nil {
		return StreamData{}, err
	}
	var s StreamData
	if err := json.Unmarshal(result, &s); err != nil {
		return StreamData{}, fmt.Errorf("sharkd: parsing %s stream %d: %w", protocol, stream, err)
	}
	return s, nil
}

// Stats gathers the protocol hierarchy, TCP and UDP conversations, and
// IPv4 endpoints in one batched tap request. The engine may return the
// taps in any order, so each is matched by its "tap" member; a missing
// tap leaves its slice empty.
func (c *Client) Stats() (CaptureStats, error) {
	result, err := c.request("tap", map[string]any{
		"tap0": "phs",
		"tap1": "conv:TCP",
		"tap2": "conv:UDP",
		"tap3": "endpt:IPv4",
	})
	if err != nil {
		return CaptureStats{}, err
	}

	var wrapped struct {
		Taps []tapResult `json:"taps"`
	}
	if err := json.Unmarshal(result, &wrapped); err != nil {
		return CaptureStats{}, fmt.Errorf("sharkd: parsing tap result: %w", err)
	}

	var stats CaptureStats
	for _, tap := range wrapped.Taps {
		switch tap.Tap {
		case "phs":
			stats.ProtocolHierarchy = tap.Protos
		case "conv:TCP":
			stats.TCPConversations = tap.Convs
		case "conv:UDP":
			stats.UDPConversations = tap.Convs
		case "endpt:IPv4":
			stats.Endpoints = tap.Hosts
		}
	}
	return stats, nil
}

// Fetcher adapts the client to the delivery subsystem's injected fetch
// function, binding the view's display filter.
func (c *Client) Fetcher(filter string) fetch.Fetcher {
	return func(skip, limit int) ([]cache.Record, error) {
		return c.Frames(skip, limit, filter)
	}
}
