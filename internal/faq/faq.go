// Package faq stores the curated question/answer entries behind the FAQ
// retrieval collection.
//
// The relational rows here are the source of truth; the vector index holds
// a derived record per entry and is refreshed synchronously by the indexing
// pipeline whenever a row changes.
package faq

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/skigaudi/skibot/internal/log"
)

var (
	// ErrNotFound indicates no FAQ entry exists with the given ID.
	ErrNotFound = errors.New("faq entry not found")

	// ErrInvalidInput indicates an empty question or answer.
	ErrInvalidInput = errors.New("invalid faq input")
)

// Entry is one curated question/answer pair.
type Entry struct {
	ID        string
	Question  string
	Answer    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// DB is the subset of pgxpool.Pool the store needs.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store manages FAQ entries.
// Safe for concurrent use by multiple goroutines.
type Store struct {
	db     DB
	logger log.Logger
}

// New creates a Store.
func New(db DB, logger log.Logger) *Store {
	return &Store{
		db:     db,
		logger: logger.With("component", "faq"),
	}
}

// Create inserts a new entry and returns it with a generated ID.
func (s *Store) Create(ctx context.Context, question, answer string) (Entry, error) {
	question = strings.TrimSpace(question)
	answer = strings.TrimSpace(answer)
	if question == "" || answer == "" {
		return Entry{}, fmt.Errorf("%w: question and answer must be non-empty", ErrInvalidInput)
	}

	entry := Entry{
		ID:        uuid.NewString(),
		Question:  question,
		Answer:    answer,
		CreatedAt: time.Now().UTC(),
	}
	entry.UpdatedAt = entry.CreatedAt

	_, err := s.db.Exec(ctx, `
		INSERT INTO faqs (id, question, answer, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)`,
		entry.ID, entry.Question, entry.Answer, entry.CreatedAt, entry.UpdatedAt)
	if err != nil {
		return Entry{}, fmt.Errorf("creating faq entry: %w", err)
	}

	s.logger.Debug("created faq entry", "id", entry.ID)
	return entry, nil
}

// Get returns the entry with the given ID.
func (s *Store) Get(ctx context.Context, id string) (Entry, error) {
	var entry Entry
	err := s.db.QueryRow(ctx, `
		SELECT id, question, answer, created_at, updated_at
		FROM faqs WHERE id = $1`, id).
		Scan(&entry.ID, &entry.Question, &entry.Answer, &entry.CreatedAt, &entry.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Entry{}, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return Entry{}, fmt.Errorf("fetching faq entry %q: %w", id, err)
	}
	return entry, nil
}

// Update replaces the question and/or answer of an existing entry.
// Empty strings keep the current value. Returns the updated entry.
func (s *Store) Update(ctx context.Context, id, question, answer string) (Entry, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return Entry{}, err
	}

	if q := strings.TrimSpace(question); q != "" {
		current.Question = q
	}
	if a := strings.TrimSpace(answer); a != "" {
		current.Answer = a
	}
	current.UpdatedAt = time.Now().UTC()

	tag, err := s.db.Exec(ctx, `
		UPDATE faqs SET question = $2, answer = $3, updated_at = $4
		WHERE id = $1`,
		current.ID, current.Question, current.Answer, current.UpdatedAt)
	if err != nil {
		return Entry{}, fmt.Errorf("updating faq entry %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return Entry{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	s.logger.Debug("updated faq entry", "id", id)
	return current, nil
}

// Delete removes the entry with the given ID.
func (s *Store) Delete(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM faqs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting faq entry %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	s.logger.Debug("deleted faq entry", "id", id)
	return nil
}

// List returns up to limit entries ordered by creation time, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]Entry, error) {
	const maxListLimit = 500
	if limit <= 0 || limit > maxListLimit {
		limit = maxListLimit
	}

	rows, err := s.db.Query(ctx, `
		SELECT id, question, answer, created_at, updated_at
		FROM faqs ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing faq entries: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

// Search returns entries whose question or answer contains the query,
// case-insensitive, ordered by creation time.
func (s *Store) Search(ctx context.Context, query string, limit int) ([]Entry, error) {
	const maxSearchLimit = 100
	if limit <= 0 || limit > maxSearchLimit {
		limit = maxSearchLimit
	}

	pattern := "%" + escapeLike(strings.TrimSpace(query)) + "%"
	rows, err := s.db.Query(ctx, `
		SELECT id, question, answer, created_at, updated_at
		FROM faqs
		WHERE question ILIKE $1 OR answer ILIKE $1
		ORDER BY created_at DESC LIMIT $2`, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("searching faq entries: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

func scanEntries(rows pgx.Rows) ([]Entry, error) {
	var entries []Entry
	for rows.Next() {
		var entry Entry
		if err := rows.Scan(&entry.ID, &entry.Question, &entry.Answer, &entry.CreatedAt, &entry.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning faq row: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating faq rows: %w", err)
	}
	return entries, nil
}

// escapeLike escapes LIKE wildcards so user input matches literally.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}
