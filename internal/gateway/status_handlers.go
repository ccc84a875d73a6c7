package gateway

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/petrel-dev/mcp-registry/internal/manager"
)

type statusBody struct {
	ServerID     string `json:"server_id"`
	State        string `json:"state"`
	ConnectedAt  string `json:"connected_at,omitempty"`
	LastActivity string `json:"last_activity,omitempty"`
	RequestCount int64  `json:"request_count"`
	LastError    string `json:"last_error,omitempty"`
}

func toStatusBody(s manager.Status) statusBody {
	b := statusBody{ServerID: s.ServerID, State: s.State, RequestCount: s.RequestCount, LastError: s.LastError}
	if !s.ConnectedAt.IsZero() {
		b.ConnectedAt = s.ConnectedAt.UTC().Format("2006-01-02T15:04:05Z")
	}
	if !s.LastActivity.IsZero() {
		b.LastActivity = s.LastActivity.UTC().Format("2006-01-02T15:04:05Z")
	}
	return b
}

// handleStatus returns the pool entry's status, or a synthetic
// "disconnected" record if no pooled connection exists for id.
func (gw *Gateway) handleStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	status, _ := gw.conns.Status(id)
	writeJSON(w, http.StatusOK, toStatusBody(status))
}

type healthBody struct {
	Overall string       `json:"overall"`
	Servers []statusBody `json:"servers"`
}

// handleHealth aggregates every pooled connection's status: healthy when
// all are connected (or none exist), degraded when some are connected,
// unhealthy when none are.
func (gw *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	statuses := gw.conns.StatusAll()

	out := make([]statusBody, 0, len(statuses))
	connected, unhealthy := 0, 0
	for _, s := range statuses {
		out = append(out, toStatusBody(s))
		if s.State == "connected" {
			connected++
		} else {
			unhealthy++
		}
	}

	overall := "healthy"
	switch {
	case len(statuses) == 0:
		overall = "healthy"
	case unhealthy == 0:
		overall = "healthy"
	case connected == 0:
		overall = "unhealthy"
	default:
		overall = "degraded"
	}

	writeJSON(w, http.StatusOK, healthBody{Overall: overall, Servers: out})
}
