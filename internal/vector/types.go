package vector

import (
	"time"
)

// Collection names for the two retrieval corpora.
const (
	// CollectionFAQs holds one record per curated FAQ entry.
	CollectionFAQs = "faqs"

	// CollectionKnowledge holds document chunks from uploaded files.
	CollectionKnowledge = "knowledge"
)

// VectorDimension is the embedding dimension of the documents table.
// gemini-embedding-001 is truncated to this via OutputDimensionality.
const VectorDimension = 768

// Document is a single indexed record.
type Document struct {
	// ID uniquely identifies the record within its collection.
	ID string

	// Title groups chunk records by their source file. FAQ records carry
	// the question as title.
	Title string

	// Content is the text returned to retrieval consumers.
	Content string

	// EmbedText overrides the text sent to the embedder. Empty means
	// Content is embedded. FAQ records embed question and answer together
	// while returning only the answer as content.
	EmbedText string

	// Metadata holds flat string attributes (source type, chunk index).
	Metadata map[string]string

	// Embedding is the precomputed vector. Empty means the store embeds
	// the document on write; EmbedDocs fills it ahead of time so a batch
	// can be embedded fully before anything is written.
	Embedding []float32

	CreatedAt time.Time
}

// embeddingInput returns the text to embed for the document.
func (d Document) embeddingInput() string {
	if d.EmbedText != "" {
		return d.EmbedText
	}
	return d.Content
}

// Result is a retrieval match.
type Result struct {
	Document   Document
	Similarity float32
}

// TitleInfo summarizes the records stored under one title.
type TitleInfo struct {
	Title  string
	Chunks int
}

// searchConfig holds resolved search options.
type searchConfig struct {
	topK    int
	timeout time.Duration
}

// SearchOption configures a Query call.
type SearchOption func(*searchConfig)

// WithTopK sets the maximum number of results. Values outside [1, maxTopK]
// are clamped.
func WithTopK(k int) SearchOption {
	return func(cfg *searchConfig) {
		cfg.topK = k
	}
}

// WithTimeout overrides the per-query timeout.
func WithTimeout(d time.Duration) SearchOption {
	return func(cfg *searchConfig) {
		if d > 0 {
			cfg.timeout = d
		}
	}
}

const (
	defaultTopK    = 4
	maxTopK        = 20
	defaultTimeout = 10 * time.Second
)

// ResolveTopK applies opts and returns the effective top-K, including
// defaulting and clamping. Exposed for alternate Searcher implementations.
func ResolveTopK(opts ...SearchOption) int {
	return buildSearchConfig(opts).topK
}

func buildSearchConfig(opts []SearchOption) searchConfig {
	cfg := searchConfig{
		topK:    defaultTopK,
		timeout: defaultTimeout,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.topK < 1 {
		cfg.topK = 1
	}
	if cfg.topK > maxTopK {
		cfg.topK = maxTopK
	}
	return cfg
}
