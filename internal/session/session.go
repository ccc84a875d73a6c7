// Package session frames and correlates JSON-RPC traffic over a single
// transport.Transport: it owns the initialize handshake, request ids, and
// matching replies to their callers, so the transport layer below never has
// to reason about anything but raw frames.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/petrel-dev/mcp-registry/internal/mcp"
	"github.com/petrel-dev/mcp-registry/internal/mcperr"
	"github.com/petrel-dev/mcp-registry/internal/transport"
)

const clientName = "mcp-registry"
const clientVersion = "0.1.0"

// Session is a live, initialized connection to one downstream MCP server.
// Safe for concurrent use: multiple callers may have requests in flight at
// once, each correlated by its own request id.
type Session struct {
	tr   transport.Transport
	next atomic.Int64

	mu      sync.Mutex
	pending map[int64]chan *mcp.Response
	closed  bool

	readDone chan struct{}

	Info         mcp.ServerInfo
	Capabilities mcp.ServerCapabilities
}

// Open opens tr, performs the initialize handshake, and starts the
// background read loop. On any failure tr is closed before returning.
func Open(ctx context.Context, tr transport.Transport) (*Session, error) {
	if err := tr.Open(ctx); err != nil {
		return nil, mcperr.Connect(err, "opening transport")
	}

	s := &Session{
		tr:       tr,
		pending:  make(map[int64]chan *mcp.Response),
		readDone: make(chan struct{}),
	}
	go s.readLoop()

	result, err := s.initialize(ctx)
	if err != nil {
		_ = s.Close(ctx)
		return nil, err
	}
	s.Info = result.ServerInfo
	s.Capabilities = result.Capabilities

	return s, nil
}

func (s *Session) initialize(ctx context.Context) (*mcp.InitializeResult, error) {
	params := mcp.InitializeParams{
		ProtocolVersion: mcp.ProtocolVersion,
		Capabilities:    mcp.ClientCapabilities{},
		ClientInfo:      mcp.ClientInfo{Name: clientName, Version: clientVersion},
	}

	var result mcp.InitializeResult
	if err := s.call(ctx, "initialize", params, &result); err != nil {
		return nil, err
	}

	notif, err := mcp.NewNotification("notifications/initialized", nil)
	if err != nil {
		return nil, mcperr.Internal(err, "building initialized notification")
	}
	if err := s.tr.WriteMessage(ctx, notif); err != nil {
		return nil, mcperr.Transport(err, "sending initialized notification")
	}

	return &result, nil
}

func (s *Session) readLoop() {
	defer close(s.readDone)
	ctx := context.Background()
	for {
		raw, err := s.tr.ReadMessage(ctx)
		if err != nil {
			s.failAllPending(err)
			return
		}

		id, method, _, _, sniffErr := mcp.Sniff(raw)
		if sniffErr != nil {
			slog.Warn("session: dropping malformed frame", "error", sniffErr)
			continue
		}
		if method != "" {
			// Server-initiated notification; this registry does not
			// subscribe to listChanged/progress pushes, so it is logged
			// and dropped.
			slog.Debug("session: received notification", "method", method)
			continue
		}
		if id == nil {
			continue
		}

		var resp mcp.Response
		if err := json.Unmarshal(raw, &resp); err != nil {
			slog.Warn("session: dropping unparseable response", "error", err)
			continue
		}

		s.mu.Lock()
		ch, ok := s.pending[*id]
		if ok {
			delete(s.pending, *id)
		}
		s.mu.Unlock()

		if ok {
			ch <- &resp
		}
	}
}

func (s *Session) failAllPending(cause error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, ch := range s.pending {
		ch <- &mcp.Response{Error: &mcp.RPCError{Code: -32000, Message: fmt.Sprintf("transport closed: %v", cause)}}
		delete(s.pending, id)
	}
}

// call dispatches method with params and decodes the result into out (if
// non-nil). It blocks until a reply arrives, ctx is done, or the session is
// closed, whichever comes first.
func (s *Session) call(ctx context.Context, method string, params, out any) error {
	id := s.next.Add(1)

	raw, err := mcp.NewRequest(id, method, params)
	if err != nil {
		return mcperr.Internal(err, "encoding %s request", method)
	}

	ch := make(chan *mcp.Response, 1)
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return mcperr.NotInitialized("session closed")
	}
	s.pending[id] = ch
	s.mu.Unlock()

	if err := s.tr.WriteMessage(ctx, raw); err != nil {
		s.mu.Lock()
		delete(s.pending, id)
		s.mu.Unlock()
		return mcperr.Transport(err, "sending %s", method)
	}

	select {
	case resp := <-ch:
		if resp.Error != nil {
			return mcperr.Protocol(resp.Error.Code, resp.Error.Message)
		}
		if out != nil {
			if err := json.Unmarshal(resp.Result, out); err != nil {
				return mcperr.Protocol(0, fmt.Sprintf("decoding %s result: %v", method, err))
			}
		}
		return nil
	case <-ctx.Done():
		s.cancel(id, method)
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return mcperr.Timeout("%s timed out", method)
		}
		return mcperr.Cancelled("%s cancelled", method)
	case <-s.readDone:
		return mcperr.Transport(nil, "transport closed while awaiting %s", method)
	}
}

// cancel best-effort notifies the downstream server that a request was
// abandoned by its caller, then stops waiting for its reply locally.
func (s *Session) cancel(id int64, method string) {
	s.mu.Lock()
	delete(s.pending, id)
	s.mu.Unlock()

	notif, err := mcp.NewNotification("notifications/cancelled", mcp.CancelParams{
		RequestID: id,
		Reason:    fmt.Sprintf("%s cancelled by caller", method),
	})
	if err != nil {
		return
	}
	_ = s.tr.WriteMessage(context.Background(), notif)
}

// ListTools invokes tools/list.
func (s *Session) ListTools(ctx context.Context) ([]mcp.Tool, error) {
	var result mcp.ListToolsResult
	if err := s.call(ctx, "tools/list", nil, &result); err != nil {
		return nil, err
	}
	return result.Tools, nil
}

// ListResources invokes resources/list.
func (s *Session) ListResources(ctx context.Context) ([]mcp.Resource, error) {
	var result mcp.ListResourcesResult
	if err := s.call(ctx, "resources/list", nil, &result); err != nil {
		return nil, err
	}
	return result.Resources, nil
}

// ListPrompts invokes prompts/list.
func (s *Session) ListPrompts(ctx context.Context) ([]mcp.Prompt, error) {
	var result mcp.ListPromptsResult
	if err := s.call(ctx, "prompts/list", nil, &result); err != nil {
		return nil, err
	}
	return result.Prompts, nil
}

// CallTool invokes tools/call.
func (s *Session) CallTool(ctx context.Context, name string, arguments json.RawMessage) (*mcp.CallToolResult, error) {
	var result mcp.CallToolResult
	params := mcp.CallToolParams{Name: name, Arguments: arguments}
	if err := s.call(ctx, "tools/call", params, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ReadResource invokes resources/read.
func (s *Session) ReadResource(ctx context.Context, uri string) (*mcp.ReadResourceResult, error) {
	var result mcp.ReadResourceResult
	params := mcp.ReadResourceParams{URI: uri}
	if err := s.call(ctx, "resources/read", params, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetPrompt invokes prompts/get.
func (s *Session) GetPrompt(ctx context.Context, name string, arguments map[string]string) (*mcp.GetPromptResult, error) {
	var result mcp.GetPromptResult
	params := mcp.GetPromptParams{Name: name, Arguments: arguments}
	if err := s.call(ctx, "prompts/get", params, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Close tears the session down: it closes the transport and unblocks any
// pending calls with an error. Callers must close the session before the
// transport per the manager's reverse-order teardown contract.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	return s.tr.Close(ctx)
}
