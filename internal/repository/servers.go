package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/petrel-dev/mcp-registry/internal/mcp"
	"github.com/petrel-dev/mcp-registry/internal/mcperr"
)

// Status values a server record may hold. status=active implies the last
// verification (or the original registration) succeeded.
const (
	StatusActive   = "active"
	StatusInactive = "inactive"
	StatusError    = "error"
)

// ServerRecord is the persisted row for a registered MCP server plus its
// discovered capabilities.
type ServerRecord struct {
	ID           string `db:"id"`
	Name         string `db:"name"`
	Description  string `db:"description"`
	Transport    string `db:"transport"`
	Command      string `db:"command"`
	ArgsJSON     string `db:"args"`
	EnvJSON      string `db:"env"`
	URL          string `db:"url"`
	HeadersJSON  string `db:"headers"`
	Status       string `db:"status"`
	CreatedAt    string `db:"created_at"`
	LastVerified string `db:"last_verified"`

	Tools     []mcp.Tool     `db:"-"`
	Resources []mcp.Resource `db:"-"`
	Prompts   []mcp.Prompt   `db:"-"`
}

// NewServer describes a server to register along with the capabilities
// discovered for it.
type NewServer struct {
	ID          string
	Name        string
	Description string
	Transport   string
	Command     string
	Args        []string
	Env         map[string]string
	URL         string
	Headers     map[string]string
	Tools       []mcp.Tool
	Resources   []mcp.Resource
	Prompts     []mcp.Prompt
}

// InsertServer persists a newly discovered server and its capability list
// in one transaction: the server row and every tool/resource/prompt row
// succeed or fail together. Fails with mcperr.Conflict if id already
// exists.
func (s *Store) InsertServer(ctx context.Context, n NewServer) error {
	argsJSON, err := json.Marshal(n.Args)
	if err != nil {
		return mcperr.Internal(err, "encoding args")
	}
	envJSON, err := json.Marshal(n.Env)
	if err != nil {
		return mcperr.Internal(err, "encoding env")
	}
	headersJSON, err := json.Marshal(n.Headers)
	if err != nil {
		return mcperr.Internal(err, "encoding headers")
	}
	ts := now()

	return s.txDo(ctx, func(tx *sqlx.Tx) error {
		var exists int
		if err := tx.GetContext(ctx, &exists, `SELECT COUNT(1) FROM mcp_servers WHERE id = ?`, n.ID); err != nil {
			return fmt.Errorf("repository: check existing server: %w", err)
		}
		if exists > 0 {
			return mcperr.Conflict("server %s already registered", n.ID)
		}

		_, err := tx.ExecContext(ctx, `
			INSERT INTO mcp_servers (id, name, description, transport, command, args, env, url, headers, status, created_at, last_verified)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			n.ID, n.Name, n.Description, n.Transport, n.Command, string(argsJSON), string(envJSON), n.URL, string(headersJSON), StatusActive, ts, ts,
		)
		if err != nil {
			return fmt.Errorf("repository: insert server: %w", err)
		}

		if err := insertCapabilities(ctx, tx, n.ID, n.Tools, n.Resources, n.Prompts); err != nil {
			return err
		}
		return nil
	})
}

func insertCapabilities(ctx context.Context, tx *sqlx.Tx, serverID string, tools []mcp.Tool, resources []mcp.Resource, prompts []mcp.Prompt) error {
	for i, t := range tools {
		schema, _ := json.Marshal(t.InputSchema)
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO mcp_tools (server_id, position, name, description, input_schema)
			VALUES (?, ?, ?, ?, ?)`, serverID, i, t.Name, t.Description, string(schema)); err != nil {
			return fmt.Errorf("repository: insert tool %s: %w", t.Name, err)
		}
	}
	for i, r := range resources {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO mcp_resources (server_id, position, uri, name, description, mime_type)
			VALUES (?, ?, ?, ?, ?, ?)`, serverID, i, r.URI, r.Name, r.Description, r.MimeType); err != nil {
			return fmt.Errorf("repository: insert resource %s: %w", r.URI, err)
		}
	}
	for i, p := range prompts {
		args, _ := json.Marshal(p.Arguments)
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO mcp_prompts (server_id, position, name, description, arguments)
			VALUES (?, ?, ?, ?, ?)`, serverID, i, p.Name, p.Description, string(args)); err != nil {
			return fmt.Errorf("repository: insert prompt %s: %w", p.Name, err)
		}
	}
	return nil
}

// GetServer loads a server record with its full capability list.
func (s *Store) GetServer(ctx context.Context, id string) (*ServerRecord, error) {
	var rec ServerRecord
	err := s.db.GetContext(ctx, &rec, `SELECT * FROM mcp_servers WHERE id = ?`, id)
	if isNoRows(err) {
		return nil, mcperr.NotFound("server %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("repository: get server %s: %w", id, err)
	}

	if err := s.loadCapabilities(ctx, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *Store) loadCapabilities(ctx context.Context, rec *ServerRecord) error {
	var tools []struct {
		Name        string `db:"name"`
		Description string `db:"description"`
		InputSchema string `db:"input_schema"`
	}
	if err := s.db.SelectContext(ctx, &tools, `
		SELECT name, description, input_schema FROM mcp_tools
		WHERE server_id = ? ORDER BY position`, rec.ID); err != nil {
		return fmt.Errorf("repository: load tools: %w", err)
	}
	for _, t := range tools {
		rec.Tools = append(rec.Tools, mcp.Tool{Name: t.Name, Description: t.Description, InputSchema: json.RawMessage(t.InputSchema)})
	}

	var resources []struct {
		URI         string `db:"uri"`
		Name        string `db:"name"`
		Description string `db:"description"`
		MimeType    string `db:"mime_type"`
	}
	if err := s.db.SelectContext(ctx, &resources, `
		SELECT uri, name, description, mime_type FROM mcp_resources
		WHERE server_id = ? ORDER BY position`, rec.ID); err != nil {
		return fmt.Errorf("repository: load resources: %w", err)
	}
	for _, r := range resources {
		rec.Resources = append(rec.Resources, mcp.Resource{URI: r.URI, Name: r.Name, Description: r.Description, MimeType: r.MimeType})
	}

	var prompts []struct {
		Name        string `db:"name"`
		Description string `db:"description"`
		Arguments   string `db:"arguments"`
	}
	if err := s.db.SelectContext(ctx, &prompts, `
		SELECT name, description, arguments FROM mcp_prompts
		WHERE server_id = ? ORDER BY position`, rec.ID); err != nil {
		return fmt.Errorf("repository: load prompts: %w", err)
	}
	for _, p := range prompts {
		var args []mcp.PromptArgument
		_ = json.Unmarshal([]byte(p.Arguments), &args)
		rec.Prompts = append(rec.Prompts, mcp.Prompt{Name: p.Name, Description: p.Description, Arguments: args})
	}

	return nil
}

// ListFilter narrows ListServers; zero-value fields are not filtered on.
type ListFilter struct {
	Transport string
	Status    string
}

// ListServers returns every registered server matching filter, newest
// first, without capability detail (callers that need capabilities call
// GetServer per id).
func (s *Store) ListServers(ctx context.Context, filter ListFilter) ([]ServerRecord, error) {
	query := `SELECT * FROM mcp_servers WHERE 1=1`
	var args []any
	if filter.Transport != "" {
		query += ` AND transport = ?`
		args = append(args, filter.Transport)
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, filter.Status)
	}
	query += ` ORDER BY created_at DESC`

	var recs []ServerRecord
	if err := s.db.SelectContext(ctx, &recs, query, args...); err != nil {
		return nil, fmt.Errorf("repository: list servers: %w", err)
	}
	return recs, nil
}

// DeleteServer removes a server and, via ON DELETE CASCADE, every capability
// row associated with it.
func (s *Store) DeleteServer(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM mcp_servers WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("repository: delete server %s: %w", id, err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return mcperr.NotFound("server %s not found", id)
	}
	return nil
}

// UpdateStatus sets a server's status and, when it succeeded, bumps
// last_verified. Verification failure flips status to error but leaves
// last_verified at its previous value, per the rule that only a
// successful verification counts as "verified".
func (s *Store) UpdateStatus(ctx context.Context, id, status string, verified bool) error {
	var res interface {
		RowsAffected() (int64, error)
	}
	var err error
	if verified {
		res, err = s.db.ExecContext(ctx, `
			UPDATE mcp_servers SET status = ?, last_verified = ? WHERE id = ?`, status, now(), id)
	} else {
		res, err = s.db.ExecContext(ctx, `
			UPDATE mcp_servers SET status = ? WHERE id = ?`, status, id)
	}
	if err != nil {
		return fmt.Errorf("repository: update status %s: %w", id, err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return mcperr.NotFound("server %s not found", id)
	}
	return nil
}

// ReplaceCapabilities swaps a server's tool/resource/prompt rows wholesale,
// as a successful rediscovery (verify) does.
func (s *Store) ReplaceCapabilities(ctx context.Context, id string, tools []mcp.Tool, resources []mcp.Resource, prompts []mcp.Prompt) error {
	return s.txDo(ctx, func(tx *sqlx.Tx) error {
		for _, table := range []string{"mcp_tools", "mcp_resources", "mcp_prompts"} {
			if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE server_id = ?`, id); err != nil {
				return fmt.Errorf("repository: clear %s for %s: %w", table, id, err)
			}
		}
		return insertCapabilities(ctx, tx, id, tools, resources, prompts)
	})
}

