// Package gateway is the HTTP surface of this system: a stateless router
// that translates REST and JSON-RPC-shaped requests into operations
// against the pooled sessions internal/manager maintains, and exposes the
// registry CRUD endpoints backed by internal/registry.
package gateway

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/petrel-dev/mcp-registry/internal/manager"
	"github.com/petrel-dev/mcp-registry/internal/mcperr"
	"github.com/petrel-dev/mcp-registry/internal/registry"
)

// Gateway holds the two collaborators every route needs: the registry
// service for CRUD/search and the connection manager for live sessions.
type Gateway struct {
	reg   *registry.Registry
	conns *manager.Manager
}

func New(reg *registry.Registry, conns *manager.Manager) *Gateway {
	return &Gateway{reg: reg, conns: conns}
}

// NewRouter builds the full HTTP surface: registry CRUD and search under
// /mcp, and per-server gateway routes (message proxy, tool/resource/prompt
// invocation, SSE streaming, status) under /mcp/gateway/{id}.
func NewRouter(gw *Gateway) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Route("/mcp", func(r chi.Router) {
		// The blanket request timeout applies to every route except SSE:
		// those streams are meant to stay open for as long as the client
		// is connected, not get cut off on a fixed clock.
		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(60 * time.Second))

			r.Post("/servers/register", gw.handleRegister)
			r.Get("/servers", gw.handleListServers)
			r.Get("/servers/{id}", gw.handleGetServer)
			r.Delete("/servers/{id}", gw.handleDeleteServer)
			r.Post("/servers/{id}/verify", gw.handleVerify)
			r.Get("/search", gw.handleSearch)

			r.Get("/gateway/health", gw.handleHealth)
			r.Route("/gateway/{id}", func(r chi.Router) {
				r.Post("/message", gw.handleMessage)
				r.Post("/tools/{name}", gw.handleCallTool)
				r.Post("/resources/read", gw.handleReadResource)
				r.Post("/prompts/get", gw.handleGetPrompt)
				r.Get("/status", gw.handleStatus)
			})
		})

		r.Route("/gateway/{id}", func(r chi.Router) {
			r.Get("/sse", gw.handleSSE)
		})
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, err error) {
	status := mcperr.StatusCode(err)
	writeJSON(w, status, errorBody{Error: err.Error()})
}

func decodeBody(r *http.Request, out any) error {
	if r.Body == nil {
		return mcperr.Validation("request body is required")
	}
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(out); err != nil {
		return mcperr.Validation("invalid request body: %v", err)
	}
	return nil
}
