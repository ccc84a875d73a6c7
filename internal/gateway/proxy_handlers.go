package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/petrel-dev/mcp-registry/internal/mcperr"
	"github.com/petrel-dev/mcp-registry/internal/session"
)

const perCallTimeout = 10 * time.Second

// rpcRequest/rpcResponse mirror JSON-RPC 2.0 at the gateway boundary. The
// id is kept as a raw JSON value (not assumed to be an integer) so it is
// echoed back to the caller byte-for-byte, independent of how
// internal/session correlates its own downstream request ids.
type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  any             `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

func (gw *Gateway) handleMessage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req rpcRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	var toolParams struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	}
	var resourceParams struct {
		URI string `json:"uri"`
	}
	var promptParams struct {
		Name      string            `json:"name"`
		Arguments map[string]string `json:"arguments"`
	}

	switch req.Method {
	case "tools/call":
		if err := json.Unmarshal(req.Params, &toolParams); err != nil || toolParams.Name == "" {
			writeJSON(w, http.StatusOK, rpcResponse{JSONRPC: "2.0", ID: req.ID, Error: &rpcError{Code: -32602, Message: "Invalid params: name is required"}})
			return
		}
	case "resources/read":
		if err := json.Unmarshal(req.Params, &resourceParams); err != nil || resourceParams.URI == "" {
			writeJSON(w, http.StatusOK, rpcResponse{JSONRPC: "2.0", ID: req.ID, Error: &rpcError{Code: -32602, Message: "Invalid params: uri is required"}})
			return
		}
	case "prompts/get":
		if err := json.Unmarshal(req.Params, &promptParams); err != nil || promptParams.Name == "" {
			writeJSON(w, http.StatusOK, rpcResponse{JSONRPC: "2.0", ID: req.ID, Error: &rpcError{Code: -32602, Message: "Invalid params: name is required"}})
			return
		}
	case "tools/list", "resources/list", "prompts/list":
		// no params required
	default:
		writeJSON(w, http.StatusOK, rpcResponse{JSONRPC: "2.0", ID: req.ID, Error: &rpcError{Code: -32601, Message: "Method not found: " + req.Method}})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), perCallTimeout)
	defer cancel()

	sess, err := gw.conns.Get(ctx, id)
	if err != nil {
		writeError(w, err)
		return
	}

	var result any
	switch req.Method {
	case "tools/list":
		result, err = sess.ListTools(ctx)
	case "resources/list":
		result, err = sess.ListResources(ctx)
	case "prompts/list":
		result, err = sess.ListPrompts(ctx)
	case "tools/call":
		result, err = sess.CallTool(ctx, toolParams.Name, toolParams.Arguments)
	case "resources/read":
		result, err = sess.ReadResource(ctx, resourceParams.URI)
	case "prompts/get":
		result, err = sess.GetPrompt(ctx, promptParams.Name, promptParams.Arguments)
	}

	if err != nil {
		if e, ok := mcperr.As(err); ok && e.Kind == mcperr.KindProtocol {
			writeJSON(w, http.StatusOK, rpcResponse{JSONRPC: "2.0", ID: req.ID, Error: &rpcError{Code: e.Code, Message: e.Message}})
			return
		}
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, rpcResponse{JSONRPC: "2.0", ID: req.ID, Result: result})
}

func (gw *Gateway) getSession(w http.ResponseWriter, r *http.Request, id string) (*session.Session, bool) {
	ctx, cancel := context.WithTimeout(r.Context(), perCallTimeout)
	defer cancel()

	sess, err := gw.conns.Get(ctx, id)
	if err != nil {
		writeError(w, err)
		return nil, false
	}
	return sess, true
}

type callToolBody struct {
	Arguments json.RawMessage `json:"arguments"`
}

type callToolResponse struct {
	Tool    string `json:"tool"`
	Content any    `json:"content"`
	IsError bool   `json:"isError"`
}

func (gw *Gateway) handleCallTool(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	name := chi.URLParam(r, "name")

	var body callToolBody
	if r.ContentLength != 0 {
		if err := decodeBody(r, &body); err != nil {
			writeError(w, err)
			return
		}
	}

	sess, ok := gw.getSession(w, r, id)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), perCallTimeout)
	defer cancel()

	result, err := sess.CallTool(ctx, name, body.Arguments)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, callToolResponse{Tool: name, Content: result.Content, IsError: result.IsError})
}

type readResourceBody struct {
	URI string `json:"uri"`
}

type readResourceResponse struct {
	URI      string `json:"uri"`
	Contents any    `json:"contents"`
}

func (gw *Gateway) handleReadResource(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var body readResourceBody
	if err := decodeBody(r, &body); err != nil {
		writeError(w, err)
		return
	}
	if body.URI == "" {
		writeError(w, mcperr.Validation("uri is required"))
		return
	}

	sess, ok := gw.getSession(w, r, id)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), perCallTimeout)
	defer cancel()

	result, err := sess.ReadResource(ctx, body.URI)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, readResourceResponse{URI: body.URI, Contents: result.Contents})
}

type getPromptBody struct {
	Name      string            `json:"name"`
	Arguments map[string]string `json:"arguments,omitempty"`
}

type getPromptResponse struct {
	Name     string `json:"name"`
	Messages any    `json:"messages"`
}

func (gw *Gateway) handleGetPrompt(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var body getPromptBody
	if err := decodeBody(r, &body); err != nil {
		writeError(w, err)
		return
	}
	if body.Name == "" {
		writeError(w, mcperr.Validation("name is required"))
		return
	}

	sess, ok := gw.getSession(w, r, id)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), perCallTimeout)
	defer cancel()

	result, err := sess.GetPrompt(ctx, body.Name, body.Arguments)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, getPromptResponse{Name: body.Name, Messages: result.Messages})
}
