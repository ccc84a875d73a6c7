package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/petrel-dev/mcp-registry/internal/mcp"
	"github.com/petrel-dev/mcp-registry/internal/mcperr"
)

// Bounds SearchCapabilities enforces on limit.
const (
	MinSearchLimit = 1
	MaxSearchLimit = 1000
)

// SearchMatch groups every capability that matched a search across one
// server, carrying enough transport info for the gateway to act on it.
type SearchMatch struct {
	ServerID         string
	ServerName       string
	ServerTransport  string
	MatchedTools     []mcp.Tool
	MatchedResources []mcp.Resource
	MatchedPrompts   []mcp.Prompt
}

type capRow struct {
	ServerID    string `db:"server_id"`
	ServerName  string `db:"server_name"`
	Transport   string `db:"transport"`
	Name        string `db:"name"`
	URI         string `db:"uri"`
	Description string `db:"description"`
	MimeType    string `db:"mime_type"`
	InputSchema string `db:"input_schema"`
	Arguments   string `db:"arguments"`
}

// SearchCapabilities finds tools, resources, and prompts whose name,
// description, or (for resources) uri contains query, case-insensitively,
// restricted to servers with status=active. kind narrows the search to
// "tool", "resource", or "prompt"; empty searches all three kinds.
// transportKind further narrows by server transport type. limit must fall
// in [MinSearchLimit, MaxSearchLimit] and bounds the rows considered per
// kind.
//
// Every WHERE fragment below is a bound parameter — the query text itself
// never contains untrusted input — per the requirement that free-text
// search never be built by string concatenation.
func (s *Store) SearchCapabilities(ctx context.Context, query, kind, transportKind string, limit int) ([]SearchMatch, error) {
	if limit < MinSearchLimit || limit > MaxSearchLimit {
		return nil, mcperr.Validation("limit must be between %d and %d", MinSearchLimit, MaxSearchLimit)
	}

	like := "%" + strings.ToLower(query) + "%"
	order := make([]string, 0)
	byServer := make(map[string]*SearchMatch)

	addServer := func(row capRow) *SearchMatch {
		m, ok := byServer[row.ServerID]
		if !ok {
			m = &SearchMatch{ServerID: row.ServerID, ServerName: row.ServerName, ServerTransport: row.Transport}
			byServer[row.ServerID] = m
			order = append(order, row.ServerID)
		}
		return m
	}

	if kind == "" || kind == "tool" {
		var rows []capRow
		q := `
			SELECT s.id AS server_id, s.name AS server_name, s.transport AS transport,
			       t.name AS name, t.description AS description, t.input_schema AS input_schema
			FROM mcp_tools t JOIN mcp_servers s ON s.id = t.server_id
			WHERE s.status = ? AND (LOWER(t.name) LIKE ? OR LOWER(t.description) LIKE ?)`
		args := []any{StatusActive, like, like}
		if transportKind != "" {
			q += ` AND s.transport = ?`
			args = append(args, transportKind)
		}
		q += ` ORDER BY s.created_at DESC, t.position LIMIT ?`
		args = append(args, limit)
		if err := s.db.SelectContext(ctx, &rows, q, args...); err != nil {
			return nil, fmt.Errorf("repository: search tools: %w", err)
		}
		for _, r := range rows {
			m := addServer(r)
			schema := r.InputSchema
			if schema == "" {
				schema = "{}"
			}
			m.MatchedTools = append(m.MatchedTools, mcp.Tool{Name: r.Name, Description: r.Description, InputSchema: json.RawMessage(schema)})
		}
	}

	if kind == "" || kind == "resource" {
		var rows []capRow
		q := `
			SELECT s.id AS server_id, s.name AS server_name, s.transport AS transport,
			       r.uri AS uri, r.name AS name, r.description AS description, r.mime_type AS mime_type
			FROM mcp_resources r JOIN mcp_servers s ON s.id = r.server_id
			WHERE s.status = ? AND (LOWER(r.name) LIKE ? OR LOWER(r.description) LIKE ? OR LOWER(r.uri) LIKE ?)`
		args := []any{StatusActive, like, like, like}
		if transportKind != "" {
			q += ` AND s.transport = ?`
			args = append(args, transportKind)
		}
		q += ` ORDER BY s.created_at DESC, r.position LIMIT ?`
		args = append(args, limit)
		if err := s.db.SelectContext(ctx, &rows, q, args...); err != nil {
			return nil, fmt.Errorf("repository: search resources: %w", err)
		}
		for _, r := range rows {
			m := addServer(r)
			m.MatchedResources = append(m.MatchedResources, mcp.Resource{URI: r.URI, Name: r.Name, Description: r.Description, MimeType: r.MimeType})
		}
	}

	if kind == "" || kind == "prompt" {
		var rows []capRow
		q := `
			SELECT s.id AS server_id, s.name AS server_name, s.transport AS transport,
			       p.name AS name, p.description AS description, p.arguments AS arguments
			FROM mcp_prompts p JOIN mcp_servers s ON s.id = p.server_id
			WHERE s.status = ? AND (LOWER(p.name) LIKE ? OR LOWER(p.description) LIKE ?)`
		args := []any{StatusActive, like, like}
		if transportKind != "" {
			q += ` AND s.transport = ?`
			args = append(args, transportKind)
		}
		q += ` ORDER BY s.created_at DESC, p.position LIMIT ?`
		args = append(args, limit)
		if err := s.db.SelectContext(ctx, &rows, q, args...); err != nil {
			return nil, fmt.Errorf("repository: search prompts: %w", err)
		}
		for _, r := range rows {
			m := addServer(r)
			var promptArgs []mcp.PromptArgument
			_ = json.Unmarshal([]byte(r.Arguments), &promptArgs)
			m.MatchedPrompts = append(m.MatchedPrompts, mcp.Prompt{Name: r.Name, Description: r.Description, Arguments: promptArgs})
		}
	}

	matches := make([]SearchMatch, 0, len(order))
	for _, id := range order {
		matches = append(matches, *byServer[id])
	}
	return matches, nil
}
