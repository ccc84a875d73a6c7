// Package mcptest provides a minimal fake downstream MCP server for tests:
// an httptest.Server that speaks just enough streamable-HTTP JSON-RPC to
// exercise initialize and the six list/call operations, plus an in-memory
// transport.Transport pair for session-layer tests that don't need an HTTP
// round trip at all.
package mcptest

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"

	"github.com/petrel-dev/mcp-registry/internal/mcp"
)

// Server is a fake downstream MCP server advertising a fixed set of
// capabilities and a configurable tool call handler.
type Server struct {
	*httptest.Server

	mu          sync.Mutex
	tools       []mcp.Tool
	resources   []mcp.Resource
	prompts     []mcp.Prompt
	failListKey string // if set, that one list operation always errors
	CallTool    func(name string, args json.RawMessage) (*mcp.CallToolResult, error)
}

// NewServer starts a fake server advertising the given capabilities.
func NewServer(tools []mcp.Tool, resources []mcp.Resource, prompts []mcp.Prompt) *Server {
	s := &Server{tools: tools, resources: resources, prompts: prompts}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	return s
}

// FailListOperation makes one list method (e.g. "resources/list") return a
// JSON-RPC error on every call, for testing best-effort discovery.
func (s *Server) FailListOperation(method string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failListKey = method
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var envelope struct {
		ID     *int64          `json:"id"`
		Method string          `json:"method"`
		Params json.RawMessage `json:"params"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	if envelope.ID == nil {
		// Notification: the client does not await a reply.
		w.WriteHeader(http.StatusAccepted)
		return
	}

	req := mcp.Request{ID: *envelope.ID, Method: envelope.Method, Params: envelope.Params}

	s.mu.Lock()
	shouldFail := s.failListKey == req.Method
	s.mu.Unlock()

	if shouldFail {
		s.writeError(w, req.ID, -32000, "simulated failure")
		return
	}

	switch req.Method {
	case "initialize":
		s.writeResult(w, req.ID, mcp.InitializeResult{
			ProtocolVersion: mcp.ProtocolVersion,
			ServerInfo:      mcp.ServerInfo{Name: "mcptest-server", Version: "0.0.1"},
		})
	case "tools/list":
		s.writeResult(w, req.ID, mcp.ListToolsResult{Tools: s.tools})
	case "resources/list":
		s.writeResult(w, req.ID, mcp.ListResourcesResult{Resources: s.resources})
	case "prompts/list":
		s.writeResult(w, req.ID, mcp.ListPromptsResult{Prompts: s.prompts})
	case "tools/call":
		var params mcp.CallToolParams
		_ = json.Unmarshal(req.Params, &params)
		if s.CallTool == nil {
			s.writeResult(w, req.ID, mcp.CallToolResult{Content: []mcp.Content{{Type: "text", Text: ""}}})
			return
		}
		result, err := s.CallTool(params.Name, params.Arguments)
		if err != nil {
			s.writeError(w, req.ID, -32000, err.Error())
			return
		}
		s.writeResult(w, req.ID, result)
	case "resources/read":
		var params mcp.ReadResourceParams
		_ = json.Unmarshal(req.Params, &params)
		s.writeResult(w, req.ID, mcp.ReadResourceResult{Contents: []mcp.ResourceContent{{URI: params.URI, Text: "contents"}}})
	case "prompts/get":
		var params mcp.GetPromptParams
		_ = json.Unmarshal(req.Params, &params)
		s.writeResult(w, req.ID, mcp.GetPromptResult{Messages: []mcp.PromptMessage{{Role: "user", Content: mcp.Content{Type: "text", Text: "hi"}}}})
	default:
		s.writeError(w, req.ID, -32601, "method not found: "+req.Method)
	}
}

func (s *Server) writeResult(w http.ResponseWriter, id int64, result any) {
	payload, _ := json.Marshal(result)
	resp := mcp.Response{JSONRPC: "2.0", ID: &id, Result: payload}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (s *Server) writeError(w http.ResponseWriter, id int64, code int, message string) {
	resp := mcp.Response{JSONRPC: "2.0", ID: &id, Error: &mcp.RPCError{Code: code, Message: message}}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}
