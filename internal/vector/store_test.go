package vector

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/core/api"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/skigaudi/skibot/internal/log"
)

// fakeDB records Exec calls and returns canned command tags.
type fakeDB struct {
	execSQL  []string
	execArgs [][]any
	execTag  pgconn.CommandTag
	execErr  error
}

func (f *fakeDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.execSQL = append(f.execSQL, sql)
	f.execArgs = append(f.execArgs, args)
	return f.execTag, f.execErr
}

func (f *fakeDB) Query(_ context.Context, _ string, _ ...any) (pgx.Rows, error) {
	return nil, errors.New("not implemented")
}

// fakeEmbedder returns fixed-dimension vectors without a Genkit registry.
type fakeEmbedder struct {
	err error
}

func (f *fakeEmbedder) Name() string { return "fake/embedder" }

func (f *fakeEmbedder) Register(_ api.Registry) {}

func (f *fakeEmbedder) Embed(_ context.Context, req *ai.EmbedRequest) (*ai.EmbedResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	embeddings := make([]*ai.Embedding, len(req.Input))
	for i := range req.Input {
		embeddings[i] = &ai.Embedding{Embedding: []float32{0.1, 0.2, 0.3}}
	}
	return &ai.EmbedResponse{Embeddings: embeddings}, nil
}

func TestStore_Upsert(t *testing.T) {
	db := &fakeDB{}
	store := New(db, &fakeEmbedder{}, log.NewNop())

	docs := []Document{
		{ID: "faq-1", Title: "Where do I park?", Content: "Use the north lot."},
		{ID: "faq-2", Title: "When do lifts open?", Content: "At nine."},
	}
	if err := store.Upsert(context.Background(), CollectionFAQs, docs); err != nil {
		t.Fatalf("Upsert() error: %v", err)
	}

	if len(db.execSQL) != 2 {
		t.Fatalf("got %d exec calls, want 2", len(db.execSQL))
	}
	if !strings.Contains(db.execSQL[0], "ON CONFLICT (collection, id) DO UPDATE") {
		t.Errorf("upsert SQL missing conflict clause: %s", db.execSQL[0])
	}
	if db.execArgs[0][0] != "faq-1" || db.execArgs[0][1] != CollectionFAQs {
		t.Errorf("unexpected upsert args: %v", db.execArgs[0])
	}
}

func TestStore_EmbedDocs(t *testing.T) {
	store := New(&fakeDB{}, &fakeEmbedder{}, log.NewNop())

	docs := []Document{
		{ID: "a", Content: "first"},
		{ID: "b", Content: "second"},
	}
	if err := store.EmbedDocs(context.Background(), docs); err != nil {
		t.Fatalf("EmbedDocs() error: %v", err)
	}
	for _, doc := range docs {
		if len(doc.Embedding) == 0 {
			t.Errorf("document %s has no embedding attached", doc.ID)
		}
	}
}

func TestStore_Upsert_PrecomputedEmbedding(t *testing.T) {
	db := &fakeDB{}
	embErr := errors.New("quota exceeded")
	store := New(db, &fakeEmbedder{err: embErr}, log.NewNop())

	// The embedder is down, so a write can only succeed when the vector
	// rides in with the document.
	docs := []Document{{ID: "a", Content: "first", Embedding: []float32{0.5, 0.5, 0.5}}}
	if err := store.Upsert(context.Background(), CollectionKnowledge, docs); err != nil {
		t.Fatalf("Upsert() with precomputed embedding error: %v", err)
	}
	if len(db.execSQL) != 1 {
		t.Errorf("got %d exec calls, want 1", len(db.execSQL))
	}
}

func TestStore_Upsert_EmptyBatchIsNoop(t *testing.T) {
	db := &fakeDB{}
	store := New(db, &fakeEmbedder{}, log.NewNop())

	if err := store.Upsert(context.Background(), CollectionFAQs, nil); err != nil {
		t.Fatalf("Upsert(nil) error: %v", err)
	}
	if len(db.execSQL) != 0 {
		t.Errorf("expected no exec calls, got %d", len(db.execSQL))
	}
}

func TestStore_Upsert_EmbedderFailure(t *testing.T) {
	db := &fakeDB{}
	embErr := errors.New("quota exceeded")
	store := New(db, &fakeEmbedder{err: embErr}, log.NewNop())

	err := store.Upsert(context.Background(), CollectionKnowledge, []Document{{ID: "x", Content: "text"}})
	if !errors.Is(err, embErr) {
		t.Fatalf("Upsert() = %v, want wrapped embedder error", err)
	}
	if len(db.execSQL) != 0 {
		t.Error("no rows may be written when embedding fails")
	}
}

func TestStore_InvalidCollection(t *testing.T) {
	store := New(&fakeDB{}, &fakeEmbedder{}, log.NewNop())
	ctx := context.Background()

	if err := store.Upsert(ctx, "sessions", []Document{{ID: "x"}}); !errors.Is(err, ErrInvalidCollection) {
		t.Errorf("Upsert = %v, want ErrInvalidCollection", err)
	}
	if err := store.DeleteByIDs(ctx, "sessions", []string{"x"}); !errors.Is(err, ErrInvalidCollection) {
		t.Errorf("DeleteByIDs = %v, want ErrInvalidCollection", err)
	}
	if _, err := store.DeleteByTitle(ctx, "sessions", "t"); !errors.Is(err, ErrInvalidCollection) {
		t.Errorf("DeleteByTitle = %v, want ErrInvalidCollection", err)
	}
	if _, err := store.Query(ctx, "sessions", "q"); !errors.Is(err, ErrInvalidCollection) {
		t.Errorf("Query = %v, want ErrInvalidCollection", err)
	}
}

func TestStore_DeleteByIDs(t *testing.T) {
	db := &fakeDB{execTag: pgconn.NewCommandTag("DELETE 2")}
	store := New(db, &fakeEmbedder{}, log.NewNop())

	err := store.DeleteByIDs(context.Background(), CollectionKnowledge, []string{"a", "b"})
	if err != nil {
		t.Fatalf("DeleteByIDs() error: %v", err)
	}
	if len(db.execSQL) != 1 || !strings.Contains(db.execSQL[0], "id = ANY($2)") {
		t.Errorf("unexpected delete SQL: %v", db.execSQL)
	}

	// Empty set short-circuits.
	db.execSQL = nil
	if err := store.DeleteByIDs(context.Background(), CollectionKnowledge, nil); err != nil {
		t.Fatal(err)
	}
	if len(db.execSQL) != 0 {
		t.Error("expected no exec for empty id set")
	}
}

func TestStore_DeleteByTitle(t *testing.T) {
	db := &fakeDB{execTag: pgconn.NewCommandTag("DELETE 3")}
	store := New(db, &fakeEmbedder{}, log.NewNop())

	n, err := store.DeleteByTitle(context.Background(), CollectionKnowledge, "guide.pdf")
	if err != nil {
		t.Fatalf("DeleteByTitle() error: %v", err)
	}
	if n != 3 {
		t.Errorf("DeleteByTitle() = %d rows, want 3", n)
	}
	if db.execArgs[0][1] != "guide.pdf" {
		t.Errorf("unexpected title arg: %v", db.execArgs[0])
	}
}
