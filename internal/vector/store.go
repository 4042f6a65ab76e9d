// Package vector implements the pgvector-backed document index behind
// both retrieval collections.
//
// One documents table holds every record; the collection column separates
// the FAQ corpus from the knowledge-chunk corpus. The Store embeds text on
// write and on query, so callers never touch raw vectors.
package vector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pgvector/pgvector-go"

	"github.com/skigaudi/skibot/internal/log"
)

var (
	// ErrEmptyEmbedding indicates the embedder returned no vector.
	ErrEmptyEmbedding = errors.New("empty embedding returned")

	// ErrInvalidCollection indicates an unknown collection name.
	ErrInvalidCollection = errors.New("invalid collection")
)

// DB is the subset of pgxpool.Pool the store needs.
// Defined by the consumer so tests can substitute a fake.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Store manages indexed documents with vector similarity search.
// It is safe for concurrent use by multiple goroutines.
type Store struct {
	db       DB
	embedder ai.Embedder
	logger   log.Logger
}

// New creates a Store.
func New(db DB, embedder ai.Embedder, logger log.Logger) *Store {
	return &Store{
		db:       db,
		embedder: embedder,
		logger:   logger.With("component", "vector"),
	}
}

func validCollection(collection string) error {
	switch collection {
	case CollectionFAQs, CollectionKnowledge:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrInvalidCollection, collection)
	}
}

// embed returns one vector per input text, preserving order.
func (s *Store) embed(ctx context.Context, texts []string) ([]pgvector.Vector, error) {
	docs := make([]*ai.Document, len(texts))
	for i, t := range texts {
		docs[i] = &ai.Document{Content: []*ai.Part{ai.NewTextPart(t)}}
	}

	resp, err := s.embedder.Embed(ctx, &ai.EmbedRequest{Input: docs})
	if err != nil {
		return nil, fmt.Errorf("generating embeddings: %w", err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("%w: got %d vectors for %d inputs", ErrEmptyEmbedding, len(resp.Embeddings), len(texts))
	}

	vectors := make([]pgvector.Vector, len(texts))
	for i, emb := range resp.Embeddings {
		if len(emb.Embedding) == 0 {
			return nil, fmt.Errorf("%w: input %d", ErrEmptyEmbedding, i)
		}
		vectors[i] = pgvector.NewVector(emb.Embedding)
	}
	return vectors, nil
}

// EmbedDocs computes and attaches the embedding of each document in place.
// Nothing is written to the database.
func (s *Store) EmbedDocs(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}

	texts := make([]string, len(docs))
	for i, doc := range docs {
		texts[i] = doc.embeddingInput()
	}
	vectors, err := s.embed(ctx, texts)
	if err != nil {
		return err
	}
	for i := range docs {
		docs[i].Embedding = vectors[i].Slice()
	}
	return nil
}

// Upsert embeds and writes the documents into the collection. Documents
// carrying a precomputed Embedding are written as-is; the rest are embedded
// first. Existing records with the same ID are replaced.
func (s *Store) Upsert(ctx context.Context, collection string, docs []Document) error {
	if err := validCollection(collection); err != nil {
		return err
	}
	if len(docs) == 0 {
		return nil
	}

	vectors := make([]pgvector.Vector, len(docs))
	var (
		missingTexts []string
		missingIdx   []int
	)
	for i, doc := range docs {
		if len(doc.Embedding) > 0 {
			vectors[i] = pgvector.NewVector(doc.Embedding)
			continue
		}
		missingIdx = append(missingIdx, i)
		missingTexts = append(missingTexts, doc.embeddingInput())
	}
	if len(missingTexts) > 0 {
		embedded, err := s.embed(ctx, missingTexts)
		if err != nil {
			return err
		}
		for j, i := range missingIdx {
			vectors[i] = embedded[j]
		}
	}

	for i, doc := range docs {
		metadataJSON, err := json.Marshal(doc.Metadata)
		if err != nil {
			return fmt.Errorf("marshaling metadata for %q: %w", doc.ID, err)
		}

		createdAt := doc.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}

		_, err = s.db.Exec(ctx, `
			INSERT INTO documents (id, collection, title, content, embedding, metadata, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (collection, id) DO UPDATE SET
				title = EXCLUDED.title,
				content = EXCLUDED.content,
				embedding = EXCLUDED.embedding,
				metadata = EXCLUDED.metadata`,
			doc.ID, collection, doc.Title, doc.Content, vectors[i], metadataJSON, createdAt)
		if err != nil {
			return fmt.Errorf("upserting document %q: %w", doc.ID, err)
		}
	}

	s.logger.Debug("upserted documents", "collection", collection, "count", len(docs))
	return nil
}

// DeleteByIDs removes the given records from the collection.
// Missing IDs are not an error.
func (s *Store) DeleteByIDs(ctx context.Context, collection string, ids []string) error {
	if err := validCollection(collection); err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}

	_, err := s.db.Exec(ctx,
		`DELETE FROM documents WHERE collection = $1 AND id = ANY($2)`,
		collection, ids)
	if err != nil {
		return fmt.Errorf("deleting documents: %w", err)
	}

	s.logger.Debug("deleted documents", "collection", collection, "count", len(ids))
	return nil
}

// DeleteByTitle removes every record in the collection carrying the title.
// Returns the number of removed records.
func (s *Store) DeleteByTitle(ctx context.Context, collection, title string) (int64, error) {
	if err := validCollection(collection); err != nil {
		return 0, err
	}

	tag, err := s.db.Exec(ctx,
		`DELETE FROM documents WHERE collection = $1 AND title = $2`,
		collection, title)
	if err != nil {
		return 0, fmt.Errorf("deleting documents by title %q: %w", title, err)
	}

	s.logger.Debug("deleted documents by title",
		"collection", collection, "title", title, "count", tag.RowsAffected())
	return tag.RowsAffected(), nil
}

// ListByTitle returns every record in the collection with the given title,
// ordered by ID for stable chunk ordering.
func (s *Store) ListByTitle(ctx context.Context, collection, title string) ([]Document, error) {
	if err := validCollection(collection); err != nil {
		return nil, err
	}

	rows, err := s.db.Query(ctx, `
		SELECT id, title, content, metadata, created_at
		FROM documents
		WHERE collection = $1 AND title = $2
		ORDER BY id`,
		collection, title)
	if err != nil {
		return nil, fmt.Errorf("listing documents by title %q: %w", title, err)
	}
	defer rows.Close()

	return s.scanDocuments(rows)
}

// ListTitles returns the distinct titles in the collection with their
// record counts, ordered by title.
func (s *Store) ListTitles(ctx context.Context, collection string) ([]TitleInfo, error) {
	if err := validCollection(collection); err != nil {
		return nil, err
	}

	rows, err := s.db.Query(ctx, `
		SELECT title, COUNT(*)
		FROM documents
		WHERE collection = $1
		GROUP BY title
		ORDER BY title`,
		collection)
	if err != nil {
		return nil, fmt.Errorf("listing titles: %w", err)
	}
	defer rows.Close()

	var infos []TitleInfo
	for rows.Next() {
		var info TitleInfo
		if err := rows.Scan(&info.Title, &info.Chunks); err != nil {
			return nil, fmt.Errorf("scanning title row: %w", err)
		}
		infos = append(infos, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating title rows: %w", err)
	}
	return infos, nil
}

// Query performs semantic search over one collection, ordered by descending
// similarity. A per-query timeout bounds slow vector scans.
func (s *Store) Query(ctx context.Context, collection, query string, opts ...SearchOption) ([]Result, error) {
	if err := validCollection(collection); err != nil {
		return nil, err
	}
	cfg := buildSearchConfig(opts)

	queryCtx, cancel := context.WithTimeout(ctx, cfg.timeout)
	defer cancel()

	vectors, err := s.embed(queryCtx, []string{query})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("embedding generation timeout: %w", err)
		}
		return nil, err
	}

	rows, err := s.db.Query(queryCtx, `
		SELECT id, title, content, metadata, created_at,
		       1 - (embedding <=> $1) AS similarity
		FROM documents
		WHERE collection = $2
		ORDER BY embedding <=> $1
		LIMIT $3`,
		vectors[0], collection, cfg.topK)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("search query timeout: %w", err)
		}
		return nil, fmt.Errorf("search failed: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var (
			doc          Document
			metadataJSON []byte
			similarity   float32
		)
		if err := rows.Scan(&doc.ID, &doc.Title, &doc.Content, &metadataJSON, &doc.CreatedAt, &similarity); err != nil {
			return nil, fmt.Errorf("scanning search row: %w", err)
		}
		doc.Metadata = s.parseMetadata(doc.ID, metadataJSON)
		results = append(results, Result{Document: doc, Similarity: similarity})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating search rows: %w", err)
	}
	return results, nil
}

func (s *Store) scanDocuments(rows pgx.Rows) ([]Document, error) {
	var docs []Document
	for rows.Next() {
		var (
			doc          Document
			metadataJSON []byte
		)
		if err := rows.Scan(&doc.ID, &doc.Title, &doc.Content, &metadataJSON, &doc.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning document row: %w", err)
		}
		doc.Metadata = s.parseMetadata(doc.ID, metadataJSON)
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating document rows: %w", err)
	}
	return docs, nil
}

func (s *Store) parseMetadata(docID string, metadataJSON []byte) map[string]string {
	if len(metadataJSON) == 0 {
		return map[string]string{}
	}
	var metadata map[string]string
	if err := json.Unmarshal(metadataJSON, &metadata); err != nil {
		s.logger.Warn("failed to parse metadata", "document_id", docID, "error", err)
		return map[string]string{}
	}
	if metadata == nil {
		metadata = map[string]string{}
	}
	return metadata
}
