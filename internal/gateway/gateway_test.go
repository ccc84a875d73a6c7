package gateway_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petrel-dev/mcp-registry/internal/gateway"
	"github.com/petrel-dev/mcp-registry/internal/manager"
	"github.com/petrel-dev/mcp-registry/internal/mcp"
	"github.com/petrel-dev/mcp-registry/internal/mcptest"
	"github.com/petrel-dev/mcp-registry/internal/registry"
	"github.com/petrel-dev/mcp-registry/internal/repository"
)

type harness struct {
	router http.Handler
	reg    *registry.Registry
	store  *repository.Store
	conns  *manager.Manager
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store, err := repository.Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	conns := manager.New(store, time.Hour, time.Hour)
	t.Cleanup(func() { conns.Shutdown(context.Background()) })

	reg := registry.New(store, conns)
	gw := gateway.New(reg, conns)
	return &harness{router: gateway.NewRouter(gw), reg: reg, store: store, conns: conns}
}

func (h *harness) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	return rec
}

func registerDownstream(t *testing.T, h *harness, upstream *mcptest.Server) string {
	t.Helper()
	rec := h.do(t, http.MethodPost, "/mcp/servers/register", map[string]any{
		"type":        "http",
		"description": "weather",
		"config":      map[string]any{"url": upstream.URL},
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var body struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotEmpty(t, body.ID)
	return body.ID
}

func TestRegisterDiscoversAndPersistsCapabilities(t *testing.T) {
	h := newHarness(t)
	upstream := mcptest.NewServer(
		[]mcp.Tool{{Name: "forecast", Description: "7 day forecast"}},
		nil, nil,
	)
	defer upstream.Close()

	id := registerDownstream(t, h, upstream)

	rec := h.do(t, http.MethodGet, "/mcp/servers/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Status       string `json:"status"`
		Capabilities struct {
			Tools []mcp.Tool `json:"tools"`
		} `json:"capabilities"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, repository.StatusActive, body.Status)
	require.Len(t, body.Capabilities.Tools, 1)
	assert.Equal(t, "forecast", body.Capabilities.Tools[0].Name)
}

func TestRegisterResponseIncludesFullTransportConfig(t *testing.T) {
	h := newHarness(t)
	upstream := mcptest.NewServer(nil, nil, nil)
	defer upstream.Close()

	rec := h.do(t, http.MethodPost, "/mcp/servers/register", map[string]any{
		"type": "http",
		"config": map[string]any{
			"url":     upstream.URL,
			"headers": map[string]string{"Authorization": "Bearer tok"},
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var created struct {
		ID     string `json:"id"`
		Config struct {
			URL     string            `json:"url"`
			Headers map[string]string `json:"headers"`
		} `json:"config"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, upstream.URL, created.Config.URL)
	assert.Equal(t, "Bearer tok", created.Config.Headers["Authorization"])

	// GET must round-trip the same config fields, not just the register
	// response.
	rec = h.do(t, http.MethodGet, "/mcp/servers/"+created.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var fetched struct {
		Config struct {
			URL     string            `json:"url"`
			Headers map[string]string `json:"headers"`
		} `json:"config"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &fetched))
	assert.Equal(t, upstream.URL, fetched.Config.URL)
	assert.Equal(t, "Bearer tok", fetched.Config.Headers["Authorization"])
}

func TestGatewayCallToolProxiesToDownstreamServer(t *testing.T) {
	h := newHarness(t)
	upstream := mcptest.NewServer([]mcp.Tool{{Name: "echo"}}, nil, nil)
	defer upstream.Close()
	upstream.CallTool = func(name string, args json.RawMessage) (*mcp.CallToolResult, error) {
		return &mcp.CallToolResult{Content: []mcp.Content{{Type: "text", Text: "pong"}}}, nil
	}

	id := registerDownstream(t, h, upstream)

	rec := h.do(t, http.MethodPost, "/mcp/gateway/"+id+"/tools/echo", map[string]any{
		"arguments": map[string]any{},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Tool    string `json:"tool"`
		Content []mcp.Content
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "echo", body.Tool)
}

func TestJSONRPCProxyReturnsMethodNotFoundForUnknownMethod(t *testing.T) {
	h := newHarness(t)
	upstream := mcptest.NewServer(nil, nil, nil)
	defer upstream.Close()
	id := registerDownstream(t, h, upstream)

	rec := h.do(t, http.MethodPost, "/mcp/gateway/"+id+"/message", map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "not/a/method",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Error *struct {
			Code int `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotNil(t, body.Error)
	assert.Equal(t, -32601, body.Error.Code)
}

func TestGetUnknownServerIDReturns404(t *testing.T) {
	h := newHarness(t)
	rec := h.do(t, http.MethodGet, "/mcp/servers/does-not-exist", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestReadResourceRejectsMissingURI(t *testing.T) {
	h := newHarness(t)
	upstream := mcptest.NewServer(nil, []mcp.Resource{{URI: "res://a"}}, nil)
	defer upstream.Close()
	id := registerDownstream(t, h, upstream)

	rec := h.do(t, http.MethodPost, "/mcp/gateway/"+id+"/resources/read", map[string]any{})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestHealthReportsHealthyWithNoPooledConnections(t *testing.T) {
	h := newHarness(t)
	rec := h.do(t, http.MethodGet, "/mcp/gateway/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Overall string `json:"overall"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body.Overall)
}

func TestSSEStreamEmitsConnectedThenDisconnectedOnClientGone(t *testing.T) {
	h := newHarness(t)
	upstream := mcptest.NewServer(nil, nil, nil)
	defer upstream.Close()
	id := registerDownstream(t, h, upstream)

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/mcp/gateway/"+id+"/sse", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		h.router.ServeHTTP(rec, req)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()
	<-done

	assert.Contains(t, rec.Body.String(), "event: connected")
	assert.Contains(t, rec.Body.String(), "event: disconnected")
}
