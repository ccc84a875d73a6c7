// Package agentcard is a thin, separately-routed A2A agent-card registry:
// a small CRUD surface over the same repository connection the MCP server
// registry uses, storing each card body as an opaque JSON column without
// ever validating its schema.
package agentcard

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/petrel-dev/mcp-registry/internal/mcperr"
	"github.com/petrel-dev/mcp-registry/internal/repository"
)

// Handler wires the agent-card CRUD routes to a repository.Store.
type Handler struct {
	store *repository.Store
}

func New(store *repository.Store) *Handler {
	return &Handler{store: store}
}

// Routes mounts the agent-card CRUD surface onto r.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/register", h.handleRegister)
	r.Get("/", h.handleList)
	r.Get("/{id}", h.handleGet)
	r.Delete("/{id}", h.handleDelete)
	r.Post("/{id}/heartbeat", h.handleHeartbeat)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, mcperr.StatusCode(err), map[string]string{"error": err.Error()})
}

type cardBody struct {
	ID            string          `json:"id,omitempty"`
	Owner         string          `json:"owner,omitempty"`
	Name          string          `json:"name"`
	Card          json.RawMessage `json:"card"`
	Streaming     bool            `json:"streaming,omitempty"`
	LastHeartbeat *string         `json:"last_heartbeat,omitempty"`
	CreatedAt     string          `json:"created_at,omitempty"`
}

func toCardBody(c *repository.AgentCard) cardBody {
	body := cardBody{
		ID:        c.ID,
		Owner:     c.Owner,
		Name:      c.Name,
		Card:      json.RawMessage(c.CardJSON),
		Streaming: c.Streaming,
		CreatedAt: c.CreatedAt,
	}
	if c.LastHeartbeat != nil {
		ts := c.LastHeartbeat.UTC().Format("2006-01-02T15:04:05Z")
		body.LastHeartbeat = &ts
	}
	return body
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var body cardBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, mcperr.Validation("invalid request body: %v", err))
		return
	}
	if body.Name == "" {
		writeError(w, mcperr.Validation("name is required"))
		return
	}

	id := uuid.NewString()
	if err := h.store.InsertAgentCard(r.Context(), repository.NewAgentCard{
		ID:        id,
		Owner:     body.Owner,
		Name:      body.Name,
		Card:      body.Card,
		Streaming: body.Streaming,
	}); err != nil {
		writeError(w, err)
		return
	}

	card, err := h.store.GetAgentCard(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCardBody(card))
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	cards, err := h.store.ListAgentCards(r.Context(), repository.AgentCardFilter{
		Owner:         q.Get("owner"),
		StreamingOnly: q.Get("streaming") == "true",
	})
	if err != nil {
		writeError(w, err)
		return
	}

	out := make([]cardBody, 0, len(cards))
	for i := range cards {
		out = append(out, toCardBody(&cards[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	card, err := h.store.GetAgentCard(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCardBody(card))
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.store.DeleteAgentCard(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.store.UpdateAgentHeartbeat(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
