package gateway

import (
	"fmt"
	"net/http"
	"time"
)

const ssePingInterval = 10 * time.Second

// handleSSE opens a keep-alive event stream for server id: one "connected"
// event, then a "ping" every ssePingInterval, until the client disconnects
// or a transport error occurs, always ending with "disconnected". This
// endpoint does not forward server-initiated MCP notifications; it is a
// keep-alive probe only.
func (gw *Gateway) handleSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, fmt.Errorf("gateway: streaming not supported"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	writeEvent(w, "connected", "{}")
	flusher.Flush()

	ticker := time.NewTicker(ssePingInterval)
	defer ticker.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			writeEvent(w, "disconnected", "{}")
			flusher.Flush()
			return
		case <-ticker.C:
			writeEvent(w, "ping", "{}")
			flusher.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, event, data string) {
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
}
