package transport

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
)

// sseTransport holds a persistent GET /sse stream open in the background
// and posts outgoing frames to /messages, pairing the two legs into one
// logical connection.
type sseTransport struct {
	cfg     Config
	baseURL string
	client  *http.Client

	mu     sync.Mutex
	open   bool
	cancel context.CancelFunc
	queue  chan json.RawMessage
}

func newSSETransport(cfg Config) *sseTransport {
	return &sseTransport{
		cfg:     cfg,
		baseURL: strings.TrimSuffix(cfg.URL, "/sse"),
		client:  &http.Client{Timeout: cfg.Timeout},
		queue:   make(chan json.RawMessage, 32),
	}
}

func (t *sseTransport) Open(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.open {
		return fmt.Errorf("sse transport already open")
	}
	if t.baseURL == "" {
		return fmt.Errorf("sse transport: url is required")
	}

	streamCtx, cancel := context.WithCancel(context.Background())
	req, err := http.NewRequestWithContext(streamCtx, http.MethodGet, t.baseURL+"/sse", nil)
	if err != nil {
		cancel()
		return fmt.Errorf("sse transport: build stream request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	for k, v := range t.cfg.Headers {
		req.Header.Set(k, v)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		cancel()
		return fmt.Errorf("sse transport: connect: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		cancel()
		return fmt.Errorf("sse transport: stream status %d: %s", resp.StatusCode, string(body))
	}

	t.cancel = cancel
	t.open = true
	go t.readEvents(resp.Body)

	return nil
}

func (t *sseTransport) readEvents(body io.ReadCloser) {
	defer body.Close()
	defer func() {
		t.mu.Lock()
		t.open = false
		t.mu.Unlock()
	}()

	scanner := bufio.NewScanner(body)
	var data strings.Builder
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			if data.Len() > 0 {
				msg := data.String()
				data.Reset()
				select {
				case t.queue <- json.RawMessage(msg):
				default:
					slog.Warn("sse transport: dropped event, queue full")
				}
			}
			continue
		}
		if rest, ok := strings.CutPrefix(line, "data:"); ok {
			data.WriteString(strings.TrimPrefix(rest, " "))
		}
	}
	if err := scanner.Err(); err != nil {
		slog.Debug("sse transport: stream ended", "error", err)
	}
}

func (t *sseTransport) WriteMessage(ctx context.Context, msg json.RawMessage) error {
	t.mu.Lock()
	if !t.open {
		t.mu.Unlock()
		return fmt.Errorf("sse transport: not open")
	}
	t.mu.Unlock()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/messages", bytes.NewReader(msg))
	if err != nil {
		return fmt.Errorf("sse transport: build message request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range t.cfg.Headers {
		req.Header.Set(k, v)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("sse transport: post message: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("sse transport: message post status %d", resp.StatusCode)
	}
	return nil
}

func (t *sseTransport) ReadMessage(ctx context.Context) (json.RawMessage, error) {
	select {
	case msg := <-t.queue:
		return msg, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (t *sseTransport) Close(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancel != nil {
		t.cancel()
	}
	t.open = false
	t.client.CloseIdleConnections()
	return nil
}
