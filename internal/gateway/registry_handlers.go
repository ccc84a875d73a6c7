package gateway

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/petrel-dev/mcp-registry/internal/mcp"
	"github.com/petrel-dev/mcp-registry/internal/mcperr"
	"github.com/petrel-dev/mcp-registry/internal/registry"
	"github.com/petrel-dev/mcp-registry/internal/repository"
)

type capabilitiesBody struct {
	Tools     []mcp.Tool     `json:"tools"`
	Resources []mcp.Resource `json:"resources"`
	Prompts   []mcp.Prompt   `json:"prompts"`
}

type serverConfigBody struct {
	Command string            `json:"command,omitempty"`
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
	URL     string            `json:"url,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
}

type serverBody struct {
	ID           string           `json:"id"`
	Type         string           `json:"type"`
	Description  string           `json:"description,omitempty"`
	Config       serverConfigBody `json:"config"`
	Status       string           `json:"status"`
	CreatedAt    string           `json:"created_at"`
	LastVerified string           `json:"last_verified"`
	Capabilities capabilitiesBody `json:"capabilities"`
}

func toServerBody(rec *repository.ServerRecord) (serverBody, error) {
	cfg, err := rec.TransportConfig()
	if err != nil {
		return serverBody{}, mcperr.Internal(err, "decoding stored transport config for %s", rec.ID)
	}

	return serverBody{
		ID:          rec.ID,
		Type:        rec.Transport,
		Description: rec.Description,
		Config: serverConfigBody{
			Command: cfg.Command,
			Args:    cfg.Args,
			Env:     cfg.Env,
			URL:     cfg.URL,
			Headers: cfg.Headers,
		},
		Status:       rec.Status,
		CreatedAt:    rec.CreatedAt,
		LastVerified: rec.LastVerified,
		Capabilities: capabilitiesBody{
			Tools:     orEmptyTools(rec.Tools),
			Resources: orEmptyResources(rec.Resources),
			Prompts:   orEmptyPrompts(rec.Prompts),
		},
	}, nil
}

func orEmptyTools(v []mcp.Tool) []mcp.Tool {
	if v == nil {
		return []mcp.Tool{}
	}
	return v
}

func orEmptyResources(v []mcp.Resource) []mcp.Resource {
	if v == nil {
		return []mcp.Resource{}
	}
	return v
}

func orEmptyPrompts(v []mcp.Prompt) []mcp.Prompt {
	if v == nil {
		return []mcp.Prompt{}
	}
	return v
}

type registerRequestBody struct {
	Type        string           `json:"type"`
	Description string           `json:"description,omitempty"`
	Config      serverConfigBody `json:"config"`
}

func (gw *Gateway) handleRegister(w http.ResponseWriter, r *http.Request) {
	var body registerRequestBody
	if err := decodeBody(r, &body); err != nil {
		writeError(w, err)
		return
	}

	rec, err := gw.reg.Register(r.Context(), registry.Request{
		Transport:   body.Type,
		Description: body.Description,
		Command:     body.Config.Command,
		Args:        body.Config.Args,
		Env:         body.Config.Env,
		URL:         body.Config.URL,
		Headers:     body.Config.Headers,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	resp, err := toServerBody(rec)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (gw *Gateway) handleListServers(w http.ResponseWriter, r *http.Request) {
	recs, err := gw.reg.List(r.Context(), r.URL.Query().Get("type"), r.URL.Query().Get("status"))
	if err != nil {
		writeError(w, err)
		return
	}

	out := make([]serverBody, 0, len(recs))
	for i := range recs {
		body, err := toServerBody(&recs[i])
		if err != nil {
			writeError(w, err)
			return
		}
		out = append(out, body)
	}
	writeJSON(w, http.StatusOK, out)
}

func (gw *Gateway) handleGetServer(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rec, err := gw.reg.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	body, err := toServerBody(rec)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, body)
}

func (gw *Gateway) handleDeleteServer(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := gw.reg.Delete(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (gw *Gateway) handleVerify(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rec, err := gw.reg.Verify(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	body, err := toServerBody(rec)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, body)
}

type searchMatchBody struct {
	ServerID         string         `json:"server_id"`
	ServerName       string         `json:"server_name"`
	ServerType       string         `json:"server_type"`
	MatchedTools     []mcp.Tool     `json:"matched_tools"`
	MatchedResources []mcp.Resource `json:"matched_resources"`
	MatchedPrompts   []mcp.Prompt   `json:"matched_prompts"`
}

func (gw *Gateway) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := 50
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, mcperr.Validation("limit must be an integer"))
			return
		}
		limit = n
	}

	matches, err := gw.reg.Search(r.Context(), q.Get("q"), q.Get("kind"), q.Get("type"), limit)
	if err != nil {
		writeError(w, err)
		return
	}

	out := make([]searchMatchBody, 0, len(matches))
	for _, m := range matches {
		out = append(out, searchMatchBody{
			ServerID:         m.ServerID,
			ServerName:       m.ServerName,
			ServerType:       m.ServerTransport,
			MatchedTools:     orEmptyTools(m.MatchedTools),
			MatchedResources: orEmptyResources(m.MatchedResources),
			MatchedPrompts:   orEmptyPrompts(m.MatchedPrompts),
		})
	}
	writeJSON(w, http.StatusOK, out)
}
