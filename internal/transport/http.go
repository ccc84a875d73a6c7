package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
)

// httpTransport speaks streamable HTTP: every WriteMessage is a POST, and
// whatever body comes back (if any) is queued for the next ReadMessage.
// This keeps the same Write-then-Read contract the stdio and SSE
// transports expose even though HTTP itself is a synchronous call/response.
type httpTransport struct {
	cfg    Config
	client *http.Client

	mu     sync.Mutex
	open   bool
	queue  chan json.RawMessage
}

func newHTTPTransport(cfg Config) *httpTransport {
	return &httpTransport{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		queue:  make(chan json.RawMessage, 16),
	}
}

func (t *httpTransport) Open(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.open {
		return fmt.Errorf("http transport already open")
	}
	if t.cfg.URL == "" {
		return fmt.Errorf("http transport: url is required")
	}
	t.open = true
	return nil
}

func (t *httpTransport) WriteMessage(ctx context.Context, msg json.RawMessage) error {
	t.mu.Lock()
	if !t.open {
		t.mu.Unlock()
		return fmt.Errorf("http transport: not open")
	}
	t.mu.Unlock()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.cfg.URL, bytes.NewReader(msg))
	if err != nil {
		return fmt.Errorf("http transport: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, text/event-stream")
	for k, v := range t.cfg.Headers {
		req.Header.Set(k, v)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("http transport: request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("http transport: read body: %w", err)
	}

	if resp.StatusCode >= 300 {
		return fmt.Errorf("http transport: status %d: %s", resp.StatusCode, string(body))
	}

	if len(bytes.TrimSpace(body)) == 0 {
		// Notification accepted with no reply body (e.g. 202/204).
		return nil
	}

	select {
	case t.queue <- json.RawMessage(body):
	default:
		return fmt.Errorf("http transport: reply queue full")
	}
	return nil
}

func (t *httpTransport) ReadMessage(ctx context.Context) (json.RawMessage, error) {
	select {
	case msg := <-t.queue:
		return msg, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (t *httpTransport) Close(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.open = false
	t.client.CloseIdleConnections()
	return nil
}
