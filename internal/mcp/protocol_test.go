package mcp

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRequestEncodesEnvelope(t *testing.T) {
	raw, err := NewRequest(7, "tools/call", CallToolParams{Name: "echo"})
	require.NoError(t, err)

	var req Request
	require.NoError(t, json.Unmarshal(raw, &req))
	assert.Equal(t, "2.0", req.JSONRPC)
	assert.Equal(t, int64(7), req.ID)
	assert.Equal(t, "tools/call", req.Method)
}

func TestNewNotificationHasNoID(t *testing.T) {
	raw, err := NewNotification("notifications/cancelled", CancelParams{RequestID: 3})
	require.NoError(t, err)

	var generic map[string]any
	require.NoError(t, json.Unmarshal(raw, &generic))
	_, hasID := generic["id"]
	assert.False(t, hasID, "notifications must omit id")
}

func TestSniffDistinguishesReplyFromNotification(t *testing.T) {
	id := int64(5)
	reply, err := json.Marshal(Response{JSONRPC: "2.0", ID: &id, Result: json.RawMessage(`{"ok":true}`)})
	require.NoError(t, err)

	gotID, method, result, rpcErr, err := Sniff(reply)
	require.NoError(t, err)
	require.NotNil(t, gotID)
	assert.Equal(t, id, *gotID)
	assert.Empty(t, method)
	assert.Nil(t, rpcErr)
	assert.JSONEq(t, `{"ok":true}`, string(result))

	notif, err := NewNotification("notifications/progress", nil)
	require.NoError(t, err)
	gotID, method, _, _, err = Sniff(notif)
	require.NoError(t, err)
	assert.Nil(t, gotID)
	assert.Equal(t, "notifications/progress", method)
}

func TestSniffSurfacesRPCError(t *testing.T) {
	id := int64(9)
	reply, err := json.Marshal(Response{JSONRPC: "2.0", ID: &id, Error: &RPCError{Code: -32601, Message: "method not found"}})
	require.NoError(t, err)

	_, _, _, rpcErr, err := Sniff(reply)
	require.NoError(t, err)
	require.NotNil(t, rpcErr)
	assert.Equal(t, -32601, rpcErr.Code)
}
