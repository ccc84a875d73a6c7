package session_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petrel-dev/mcp-registry/internal/mcp"
	"github.com/petrel-dev/mcp-registry/internal/mcperr"
	"github.com/petrel-dev/mcp-registry/internal/mcptest"
	"github.com/petrel-dev/mcp-registry/internal/session"
)

func TestOpenPerformsInitializeHandshake(t *testing.T) {
	tr := mcptest.NewFakeTransport()
	tr.Respond = tr.DefaultInitializeResponder

	sess, err := session.Open(context.Background(), tr)
	require.NoError(t, err)
	assert.Equal(t, "fake", sess.Info.Name)

	writes := tr.Writes()
	require.Len(t, writes, 2) // initialize request + initialized notification
	var first mcp.Request
	require.NoError(t, json.Unmarshal(writes[0], &first))
	assert.Equal(t, "initialize", first.Method)

	var second struct {
		Method string `json:"method"`
		ID     *int64 `json:"id"`
	}
	require.NoError(t, json.Unmarshal(writes[1], &second))
	assert.Equal(t, "notifications/initialized", second.Method)
	assert.Nil(t, second.ID)
}

func TestListOperationsRoundTrip(t *testing.T) {
	tr := mcptest.NewFakeTransport()
	tr.Respond = tr.DefaultInitializeResponder

	sess, err := session.Open(context.Background(), tr)
	require.NoError(t, err)

	tools, err := sess.ListTools(context.Background())
	require.NoError(t, err)
	assert.Empty(t, tools)
}

func TestEveryDispatchedRequestHasAUniqueID(t *testing.T) {
	tr := mcptest.NewFakeTransport()
	var mu []int64
	tr.Respond = func(raw json.RawMessage) (json.RawMessage, bool) {
		var req mcp.Request
		_ = json.Unmarshal(raw, &req)
		if req.Method == "" {
			return nil, false // notification
		}
		mu = append(mu, req.ID)
		var result any = mcp.InitializeResult{ProtocolVersion: mcp.ProtocolVersion}
		if req.Method != "initialize" {
			result = mcp.ListToolsResult{}
		}
		payload, _ := json.Marshal(result)
		resp := mcp.Response{JSONRPC: "2.0", ID: &req.ID, Result: payload}
		reply, _ := json.Marshal(resp)
		return reply, true
	}

	sess, err := session.Open(context.Background(), tr)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, err := sess.ListTools(context.Background())
		require.NoError(t, err)
	}

	seen := map[int64]bool{}
	for _, id := range mu {
		assert.False(t, seen[id], "request id %d reused", id)
		seen[id] = true
	}
}

func TestCallTimesOutWithoutAReply(t *testing.T) {
	tr := mcptest.NewFakeTransport()
	tr.Respond = func(raw json.RawMessage) (json.RawMessage, bool) {
		var req mcp.Request
		_ = json.Unmarshal(raw, &req)
		if req.Method != "initialize" {
			return nil, false // never answer list calls
		}
		result, _ := json.Marshal(mcp.InitializeResult{ProtocolVersion: mcp.ProtocolVersion})
		resp := mcp.Response{JSONRPC: "2.0", ID: &req.ID, Result: result}
		reply, _ := json.Marshal(resp)
		return reply, true
	}

	sess, err := session.Open(context.Background(), tr)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = sess.ListTools(ctx)
	require.Error(t, err)
	assert.True(t, mcperr.Is(err, mcperr.KindTimeout))
}

func TestProtocolErrorIsSurfaced(t *testing.T) {
	tr := mcptest.NewFakeTransport()
	tr.Respond = func(raw json.RawMessage) (json.RawMessage, bool) {
		var req mcp.Request
		_ = json.Unmarshal(raw, &req)
		if req.Method == "initialize" {
			result, _ := json.Marshal(mcp.InitializeResult{ProtocolVersion: mcp.ProtocolVersion})
			resp := mcp.Response{JSONRPC: "2.0", ID: &req.ID, Result: result}
			reply, _ := json.Marshal(resp)
			return reply, true
		}
		resp := mcp.Response{JSONRPC: "2.0", ID: &req.ID, Error: &mcp.RPCError{Code: -32601, Message: "method not found"}}
		reply, _ := json.Marshal(resp)
		return reply, true
	}

	sess, err := session.Open(context.Background(), tr)
	require.NoError(t, err)

	_, err = sess.ListTools(context.Background())
	require.Error(t, err)
	e, ok := mcperr.As(err)
	require.True(t, ok)
	assert.Equal(t, mcperr.KindProtocol, e.Kind)
	assert.Equal(t, -32601, e.Code)
}

func TestCloseIsIdempotentAndClosesTransport(t *testing.T) {
	tr := mcptest.NewFakeTransport()
	tr.Respond = tr.DefaultInitializeResponder

	sess, err := session.Open(context.Background(), tr)
	require.NoError(t, err)

	require.NoError(t, sess.Close(context.Background()))
	require.NoError(t, sess.Close(context.Background()))
	assert.True(t, tr.IsClosed())
}
