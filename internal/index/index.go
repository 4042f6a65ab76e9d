// Package index coordinates the ingestion pipeline: it turns FAQ entries
// and uploaded files into embedded records in the vector store.
package index

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/skigaudi/skibot/internal/chunk"
	"github.com/skigaudi/skibot/internal/faq"
	"github.com/skigaudi/skibot/internal/log"
	"github.com/skigaudi/skibot/internal/vector"
)

var (
	// ErrChunkNotFound indicates a reindex target that is not stored.
	ErrChunkNotFound = errors.New("chunk not found")
)

// upsertBatch is how many chunks go into one embedding request.
const upsertBatch = 16

// upsertWorkers bounds concurrent embedding batches during ingestion.
const upsertWorkers = 4

// Store is the subset of the vector store the indexer needs.
type Store interface {
	EmbedDocs(ctx context.Context, docs []vector.Document) error
	Upsert(ctx context.Context, collection string, docs []vector.Document) error
	DeleteByIDs(ctx context.Context, collection string, ids []string) error
	DeleteByTitle(ctx context.Context, collection, title string) (int64, error)
	ListByTitle(ctx context.Context, collection, title string) ([]vector.Document, error)
	ListTitles(ctx context.Context, collection string) ([]vector.TitleInfo, error)
}

// Extractor converts uploaded bytes into plain text.
type Extractor interface {
	Text(ctx context.Context, data []byte, name, contentType string) (string, error)
}

// Indexer drives FAQ and knowledge ingestion.
type Indexer struct {
	store     Store
	extractor Extractor
	splitter  *chunk.Splitter
	logger    log.Logger
}

// New creates an Indexer.
func New(store Store, extractor Extractor, splitter *chunk.Splitter, logger log.Logger) *Indexer {
	return &Indexer{
		store:     store,
		extractor: extractor,
		splitter:  splitter,
		logger:    logger.With("component", "index"),
	}
}

// IndexFAQ embeds a FAQ entry. Question and answer are embedded together so
// retrieval matches either phrasing, while the stored content is the answer.
func (ix *Indexer) IndexFAQ(ctx context.Context, entry faq.Entry) error {
	doc := vector.Document{
		ID:        entry.ID,
		Title:     entry.Question,
		Content:   entry.Answer,
		EmbedText: entry.Question + "\n" + entry.Answer,
		Metadata:  map[string]string{"source": "faq"},
		CreatedAt: entry.CreatedAt,
	}
	if err := ix.store.Upsert(ctx, vector.CollectionFAQs, []vector.Document{doc}); err != nil {
		return fmt.Errorf("indexing faq %s: %w", entry.ID, err)
	}

	ix.logger.Info("faq indexed", "id", entry.ID)
	return nil
}

// DeleteFAQ removes a FAQ entry from the index.
func (ix *Indexer) DeleteFAQ(ctx context.Context, id string) error {
	if err := ix.store.DeleteByIDs(ctx, vector.CollectionFAQs, []string{id}); err != nil {
		return fmt.Errorf("removing faq %s from index: %w", id, err)
	}
	return nil
}

// IngestFile extracts, chunks, and embeds an uploaded file, returning the
// number of stored chunks. Every chunk is embedded before anything is
// written, so a failed extraction or embedding leaves the store untouched.
// Re-uploading a file replaces its previous chunks: new records are written
// first and stale ones removed after, so retrieval never sees the file
// disappear mid-ingest.
func (ix *Indexer) IngestFile(ctx context.Context, data []byte, name, contentType string) (int, error) {
	text, err := ix.extractor.Text(ctx, data, name, contentType)
	if err != nil {
		return 0, err
	}

	chunks := ix.splitter.Split(text)
	if len(chunks) == 0 {
		return 0, fmt.Errorf("no chunks produced for %s", name)
	}

	docs := make([]vector.Document, len(chunks))
	fresh := make(map[string]bool, len(chunks))
	for i, content := range chunks {
		id := chunkID(name, i)
		fresh[id] = true
		docs[i] = vector.Document{
			ID:      id,
			Title:   name,
			Content: content,
			Metadata: map[string]string{
				"source": "upload",
				"chunk":  fmt.Sprintf("%d", i),
			},
		}
	}

	existing, err := ix.store.ListByTitle(ctx, vector.CollectionKnowledge, name)
	if err != nil {
		return 0, fmt.Errorf("listing existing chunks for %s: %w", name, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(upsertWorkers)
	for start := 0; start < len(docs); start += upsertBatch {
		batch := docs[start:min(start+upsertBatch, len(docs))]
		g.Go(func() error {
			return ix.store.EmbedDocs(gctx, batch)
		})
	}
	if err := g.Wait(); err != nil {
		return 0, fmt.Errorf("ingesting %s: %w", name, err)
	}

	if err := ix.store.Upsert(ctx, vector.CollectionKnowledge, docs); err != nil {
		return 0, fmt.Errorf("ingesting %s: %w", name, err)
	}

	var stale []string
	for _, doc := range existing {
		if !fresh[doc.ID] {
			stale = append(stale, doc.ID)
		}
	}
	if len(stale) > 0 {
		if err := ix.store.DeleteByIDs(ctx, vector.CollectionKnowledge, stale); err != nil {
			return 0, fmt.Errorf("removing stale chunks for %s: %w", name, err)
		}
	}

	ix.logger.Info("file ingested",
		"name", name, "chunks", len(chunks), "stale_removed", len(stale))
	return len(chunks), nil
}

// DeleteFile removes every chunk of the named file, returning the count.
func (ix *Indexer) DeleteFile(ctx context.Context, name string) (int64, error) {
	n, err := ix.store.DeleteByTitle(ctx, vector.CollectionKnowledge, name)
	if err != nil {
		return 0, fmt.Errorf("deleting file %s: %w", name, err)
	}

	ix.logger.Info("file removed from index", "name", name, "chunks", n)
	return n, nil
}

// ListFiles returns the indexed files with their chunk counts.
func (ix *Indexer) ListFiles(ctx context.Context) ([]vector.TitleInfo, error) {
	return ix.store.ListTitles(ctx, vector.CollectionKnowledge)
}

// FileChunks returns the stored chunks of the named file, ordered by ID.
func (ix *Indexer) FileChunks(ctx context.Context, name string) ([]vector.Document, error) {
	return ix.store.ListByTitle(ctx, vector.CollectionKnowledge, name)
}

// ReindexChunk re-embeds a single stored chunk, for example after changing
// the embedding model. The chunk must belong to the named file.
func (ix *Indexer) ReindexChunk(ctx context.Context, name, id string) error {
	docs, err := ix.store.ListByTitle(ctx, vector.CollectionKnowledge, name)
	if err != nil {
		return fmt.Errorf("listing chunks for %s: %w", name, err)
	}
	for _, doc := range docs {
		if doc.ID == id {
			if err := ix.store.Upsert(ctx, vector.CollectionKnowledge, []vector.Document{doc}); err != nil {
				return fmt.Errorf("reindexing chunk %s: %w", id, err)
			}
			return nil
		}
	}
	return fmt.Errorf("%w: %s in %s", ErrChunkNotFound, id, name)
}

// chunkID derives the stable record ID of chunk i of a file. Slashes in the
// name are flattened so IDs stay path-safe.
func chunkID(name string, i int) string {
	return strings.ReplaceAll(name, "/", "__") + "__" + fmt.Sprintf("%d", i)
}
