package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/petrel-dev/mcp-registry/internal/mcperr"
)

// AgentCard is a persisted A2A agent card. The card body itself is kept as
// an opaque JSON blob — this registry indexes owner, name, and streaming
// support for filtering, but never validates the card's schema.
type AgentCard struct {
	ID            string     `db:"id"`
	Owner         string     `db:"owner"`
	Name          string     `db:"name"`
	CardJSON      string     `db:"card"`
	Streaming     bool       `db:"streaming"`
	LastHeartbeat *time.Time `db:"last_heartbeat"`
	CreatedAt     string     `db:"created_at"`
}

// NewAgentCard registers a new agent card.
type NewAgentCard struct {
	ID        string
	Owner     string
	Name      string
	Card      json.RawMessage
	Streaming bool
}

func (s *Store) InsertAgentCard(ctx context.Context, n NewAgentCard) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO agent_cards (id, owner, name, card, streaming, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		n.ID, n.Owner, n.Name, string(n.Card), n.Streaming, now())
	if err != nil {
		return fmt.Errorf("repository: insert agent card: %w", err)
	}
	return nil
}

// AgentCardFilter narrows ListAgentCards; zero-value fields are not
// filtered on.
type AgentCardFilter struct {
	Owner           string
	StreamingOnly   bool
}

// ListAgentCards returns agent cards matching filter, newest first.
func (s *Store) ListAgentCards(ctx context.Context, filter AgentCardFilter) ([]AgentCard, error) {
	query := `SELECT * FROM agent_cards WHERE 1=1`
	var args []any
	if filter.Owner != "" {
		query += ` AND owner = ?`
		args = append(args, filter.Owner)
	}
	if filter.StreamingOnly {
		query += ` AND streaming = 1`
	}
	query += ` ORDER BY created_at DESC`

	var cards []AgentCard
	if err := s.db.SelectContext(ctx, &cards, query, args...); err != nil {
		return nil, fmt.Errorf("repository: list agent cards: %w", err)
	}
	return cards, nil
}

func (s *Store) GetAgentCard(ctx context.Context, id string) (*AgentCard, error) {
	var card AgentCard
	err := s.db.GetContext(ctx, &card, `SELECT * FROM agent_cards WHERE id = ?`, id)
	if isNoRows(err) {
		return nil, mcperr.NotFound("agent card %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("repository: get agent card %s: %w", id, err)
	}
	return &card, nil
}

func (s *Store) DeleteAgentCard(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM agent_cards WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("repository: delete agent card %s: %w", id, err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return mcperr.NotFound("agent card %s not found", id)
	}
	return nil
}

func (s *Store) UpdateAgentHeartbeat(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE agent_cards SET last_heartbeat = ? WHERE id = ?`, now(), id)
	if err != nil {
		return fmt.Errorf("repository: update heartbeat %s: %w", id, err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return mcperr.NotFound("agent card %s not found", id)
	}
	return nil
}
