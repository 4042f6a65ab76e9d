package testutil

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/skigaudi/skibot/internal/vector"
)

// MemoryIndex is an in-memory stand-in for the pgvector store. It embeds
// documents through a MockEmbedder and ranks queries by cosine similarity,
// so retrieval ordering in tests mirrors production behavior.
//
// Thread-safe for concurrent use.
type MemoryIndex struct {
	mu       sync.Mutex
	embedder *MockEmbedder
	docs     map[string]map[string]memoryDoc // collection -> id -> doc
}

type memoryDoc struct {
	doc vector.Document
	vec []float32
}

// NewMemoryIndex creates a MemoryIndex over the given embedder.
func NewMemoryIndex(embedder *MockEmbedder) *MemoryIndex {
	return &MemoryIndex{
		embedder: embedder,
		docs: map[string]map[string]memoryDoc{
			vector.CollectionFAQs:      {},
			vector.CollectionKnowledge: {},
		},
	}
}

func embedInput(doc vector.Document) string {
	if doc.EmbedText != "" {
		return doc.EmbedText
	}
	return doc.Content
}

// EmbedDocs attaches deterministic embeddings in place without storing.
func (m *MemoryIndex) EmbedDocs(_ context.Context, docs []vector.Document) error {
	for i := range docs {
		docs[i].Embedding = m.embedder.VectorFor(embedInput(docs[i]))
	}
	return nil
}

// Upsert stores the documents, replacing records with matching IDs.
// Documents without a precomputed embedding are embedded on write.
func (m *MemoryIndex) Upsert(_ context.Context, collection string, docs []vector.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	coll, ok := m.docs[collection]
	if !ok {
		return vector.ErrInvalidCollection
	}
	for _, doc := range docs {
		if doc.CreatedAt.IsZero() {
			doc.CreatedAt = time.Now().UTC()
		}
		vec := doc.Embedding
		if len(vec) == 0 {
			vec = m.embedder.VectorFor(embedInput(doc))
		}
		coll[doc.ID] = memoryDoc{doc: doc, vec: vec}
	}
	return nil
}

// DeleteByIDs removes the given records. Missing IDs are not an error.
func (m *MemoryIndex) DeleteByIDs(_ context.Context, collection string, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	coll, ok := m.docs[collection]
	if !ok {
		return vector.ErrInvalidCollection
	}
	for _, id := range ids {
		delete(coll, id)
	}
	return nil
}

// DeleteByTitle removes every record carrying the title, returning the count.
func (m *MemoryIndex) DeleteByTitle(_ context.Context, collection, title string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	coll, ok := m.docs[collection]
	if !ok {
		return 0, vector.ErrInvalidCollection
	}
	var n int64
	for id, md := range coll {
		if md.doc.Title == title {
			delete(coll, id)
			n++
		}
	}
	return n, nil
}

// ListByTitle returns the records with the given title, ordered by ID.
func (m *MemoryIndex) ListByTitle(_ context.Context, collection, title string) ([]vector.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	coll, ok := m.docs[collection]
	if !ok {
		return nil, vector.ErrInvalidCollection
	}
	var docs []vector.Document
	for _, md := range coll {
		if md.doc.Title == title {
			docs = append(docs, md.doc)
		}
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	return docs, nil
}

// ListTitles returns distinct titles with record counts, ordered by title.
func (m *MemoryIndex) ListTitles(_ context.Context, collection string) ([]vector.TitleInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	coll, ok := m.docs[collection]
	if !ok {
		return nil, vector.ErrInvalidCollection
	}
	counts := map[string]int{}
	for _, md := range coll {
		counts[md.doc.Title]++
	}
	titles := make([]string, 0, len(counts))
	for t := range counts {
		titles = append(titles, t)
	}
	sort.Strings(titles)

	infos := make([]vector.TitleInfo, 0, len(titles))
	for _, t := range titles {
		infos = append(infos, vector.TitleInfo{Title: t, Chunks: counts[t]})
	}
	return infos, nil
}

// Query ranks stored documents by cosine similarity to the query text.
func (m *MemoryIndex) Query(_ context.Context, collection, query string, opts ...vector.SearchOption) ([]vector.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	coll, ok := m.docs[collection]
	if !ok {
		return nil, vector.ErrInvalidCollection
	}

	queryVec := m.embedder.VectorFor(query)
	results := make([]vector.Result, 0, len(coll))
	for _, md := range coll {
		results = append(results, vector.Result{
			Document:   md.doc,
			Similarity: cosine(queryVec, md.vec),
		})
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Similarity != results[j].Similarity {
			return results[i].Similarity > results[j].Similarity
		}
		return results[i].Document.ID < results[j].Document.ID
	})

	k := vector.ResolveTopK(opts...)
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// Contains reports whether any stored document content includes the text.
func (m *MemoryIndex) Contains(collection, text string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, md := range m.docs[collection] {
		if strings.Contains(md.doc.Content, text) {
			return true
		}
	}
	return false
}

// Len returns the number of stored records in the collection.
func (m *MemoryIndex) Len(collection string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.docs[collection])
}

// Get returns the stored document with the given ID.
func (m *MemoryIndex) Get(collection, id string) (vector.Document, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	md, ok := m.docs[collection][id]
	return md.doc, ok
}

func cosine(a, b []float32) float32 {
	if len(a) != len(b) {
		return 0
	}
	var dot, na, nb float32
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / float32(math.Sqrt(float64(na))*math.Sqrt(float64(nb)))
}
