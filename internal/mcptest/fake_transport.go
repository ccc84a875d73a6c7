package mcptest

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/petrel-dev/mcp-registry/internal/mcp"
)

// FakeTransport is an in-memory transport.Transport for session-layer
// tests: every WriteMessage is handed to Respond (if set), and whatever
// Respond returns is queued for the next ReadMessage, mirroring the
// request/reply shape a real transport provides without any I/O.
type FakeTransport struct {
	// Respond computes a reply for an outbound frame. Returning ok=false
	// sends no reply (as a notification would draw none).
	Respond func(raw json.RawMessage) (reply json.RawMessage, ok bool)

	mu       sync.Mutex
	open     bool
	closed   bool
	queue    chan json.RawMessage
	writes   []json.RawMessage
	OpenErr  error
	CloseErr error
}

func NewFakeTransport() *FakeTransport {
	return &FakeTransport{queue: make(chan json.RawMessage, 64)}
}

// DefaultInitializeResponder replies to "initialize" with a minimal
// InitializeResult and answers every list call with an empty list; tests
// override Respond for anything more specific.
func (f *FakeTransport) DefaultInitializeResponder(raw json.RawMessage) (json.RawMessage, bool) {
	var req mcp.Request
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, false
	}

	var result any
	switch req.Method {
	case "initialize":
		result = mcp.InitializeResult{ProtocolVersion: mcp.ProtocolVersion, ServerInfo: mcp.ServerInfo{Name: "fake", Version: "0.0.0"}}
	case "tools/list":
		result = mcp.ListToolsResult{Tools: []mcp.Tool{}}
	case "resources/list":
		result = mcp.ListResourcesResult{Resources: []mcp.Resource{}}
	case "prompts/list":
		result = mcp.ListPromptsResult{Prompts: []mcp.Prompt{}}
	default:
		return nil, false
	}

	payload, _ := json.Marshal(result)
	resp := mcp.Response{JSONRPC: "2.0", ID: &req.ID, Result: payload}
	reply, _ := json.Marshal(resp)
	return reply, true
}

func (f *FakeTransport) Open(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.OpenErr != nil {
		return f.OpenErr
	}
	f.open = true
	return nil
}

func (f *FakeTransport) WriteMessage(ctx context.Context, msg json.RawMessage) error {
	f.mu.Lock()
	if !f.open || f.closed {
		f.mu.Unlock()
		return fmt.Errorf("fake transport: not open")
	}
	f.writes = append(f.writes, msg)
	respond := f.Respond
	f.mu.Unlock()

	if respond == nil {
		return nil
	}
	reply, ok := respond(msg)
	if !ok {
		return nil
	}
	select {
	case f.queue <- reply:
	default:
	}
	return nil
}

func (f *FakeTransport) ReadMessage(ctx context.Context) (json.RawMessage, error) {
	select {
	case msg := <-f.queue:
		return msg, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (f *FakeTransport) Close(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil
	}
	f.closed = true
	f.open = false
	return f.CloseErr
}

// Writes returns every frame WriteMessage has observed, for assertions.
func (f *FakeTransport) Writes() []json.RawMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]json.RawMessage, len(f.writes))
	copy(out, f.writes)
	return out
}

// IsClosed reports whether Close has been called.
func (f *FakeTransport) IsClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}
