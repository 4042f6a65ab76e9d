package prompt

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// overrideName is the row key for the chat system prompt override.
const overrideName = "chat"

// DB is the subset of pgxpool.Pool the store needs.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PGStore persists prompt overrides in the system_prompts table.
type PGStore struct {
	db DB
}

// NewPGStore creates a PGStore.
func NewPGStore(db DB) *PGStore {
	return &PGStore{db: db}
}

// GetOverride returns the stored override text, or ErrNoOverride.
func (s *PGStore) GetOverride(ctx context.Context) (string, error) {
	var content string
	err := s.db.QueryRow(ctx,
		`SELECT content FROM system_prompts WHERE name = $1`, overrideName).
		Scan(&content)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrNoOverride
		}
		return "", fmt.Errorf("fetching prompt override: %w", err)
	}
	return content, nil
}

// SetOverride stores the override text, replacing any previous one.
func (s *PGStore) SetOverride(ctx context.Context, text string) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO system_prompts (name, content, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (name) DO UPDATE SET
			content = EXCLUDED.content,
			updated_at = EXCLUDED.updated_at`,
		overrideName, text, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("storing prompt override: %w", err)
	}
	return nil
}
