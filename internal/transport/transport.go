// Package transport implements the three channel kinds a downstream MCP
// server can be reached over: a spawned stdio child process, a streamable
// HTTP endpoint, and a server-sent-events stream paired with an HTTP POST
// sink. All three speak the same narrow interface so the session layer
// above never needs to know which one it is holding.
package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Kind identifies one of the three supported channel kinds.
type Kind string

const (
	KindStdio Kind = "stdio"
	KindHTTP  Kind = "http"
	KindSSE   Kind = "sse"
)

// Config describes how to reach a single downstream server. Only the fields
// relevant to Kind need be set.
type Config struct {
	Kind Kind

	// stdio
	Command string
	Args    []string
	Env     map[string]string

	// http / sse
	URL     string
	Headers map[string]string

	Timeout time.Duration
}

// Transport is a raw JSON-RPC message channel: every frame written or read
// is one complete JSON-RPC request, response, or notification. Framing,
// correlation by id, and the initialize handshake all live one layer up in
// internal/session.
type Transport interface {
	// Open establishes the channel (spawns the process, marks the HTTP
	// sender ready, or opens the SSE stream). It must be called exactly
	// once before any Write/Read.
	Open(ctx context.Context) error

	// WriteMessage sends one complete JSON-RPC frame.
	WriteMessage(ctx context.Context, msg json.RawMessage) error

	// ReadMessage blocks for the next inbound frame: a response to a
	// previously written request, or an unsolicited notification.
	ReadMessage(ctx context.Context) (json.RawMessage, error)

	// Close tears the channel down. Safe to call more than once.
	Close(ctx context.Context) error
}

// New builds the Transport named by cfg.Kind.
func New(cfg Config) (Transport, error) {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	switch cfg.Kind {
	case KindStdio:
		return newStdioTransport(cfg), nil
	case KindHTTP:
		return newHTTPTransport(cfg), nil
	case KindSSE:
		return newSSETransport(cfg), nil
	default:
		return nil, fmt.Errorf("transport: unsupported kind %q", cfg.Kind)
	}
}
