package vector

import (
	"context"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
)

// Searcher is the query surface the retriever bridge needs.
// The in-memory test index implements it alongside Store.
type Searcher interface {
	Query(ctx context.Context, collection, query string, opts ...SearchOption) ([]Result, error)
}

// Retriever bridges a Searcher to the Genkit ai.Retriever interface, one
// retriever per collection.
type Retriever struct {
	searcher Searcher
}

// NewRetriever creates a Retriever over the given searcher.
func NewRetriever(searcher Searcher) *Retriever {
	return &Retriever{searcher: searcher}
}

// DefineFAQ defines a Genkit retriever over the FAQ collection.
func (r *Retriever) DefineFAQ(g *genkit.Genkit, name string) ai.Retriever {
	return r.define(g, name, CollectionFAQs)
}

// DefineKnowledge defines a Genkit retriever over the knowledge-chunk
// collection.
func (r *Retriever) DefineKnowledge(g *genkit.Genkit, name string) ai.Retriever {
	return r.define(g, name, CollectionKnowledge)
}

func (r *Retriever) define(g *genkit.Genkit, name, collection string) ai.Retriever {
	return genkit.DefineRetriever(
		g, name, nil,
		func(ctx context.Context, req *ai.RetrieverRequest) (*ai.RetrieverResponse, error) {
			queryText := extractQueryText(req)
			topK := extractTopK(req, defaultTopK)

			results, err := r.searcher.Query(ctx, collection, queryText, WithTopK(topK))
			if err != nil {
				return nil, err
			}

			return &ai.RetrieverResponse{
				Documents: convertToGenkitDocuments(results),
			}, nil
		},
	)
}

// extractQueryText extracts text from RetrieverRequest.Query.
func extractQueryText(req *ai.RetrieverRequest) string {
	if req.Query != nil && len(req.Query.Content) > 0 {
		return req.Query.Content[0].Text
	}
	return ""
}

// extractTopK extracts "k" from request options, returning defaultK when
// absent or out of the [1, maxTopK] range.
func extractTopK(req *ai.RetrieverRequest, defaultK int) int {
	opts, ok := req.Options.(map[string]any)
	if !ok {
		return defaultK
	}
	k, exists := opts["k"]
	if !exists {
		return defaultK
	}

	var kInt int
	switch v := k.(type) {
	case int:
		kInt = v
	case int32:
		kInt = int(v)
	case int64:
		kInt = int(v)
	case float64:
		kInt = int(v)
	case float32:
		kInt = int(v)
	default:
		return defaultK
	}

	if kInt < 1 || kInt > maxTopK {
		return defaultK
	}
	return kInt
}

// convertToGenkitDocuments converts Results to Genkit ai.Documents, carrying
// the title and similarity score in document metadata.
func convertToGenkitDocuments(results []Result) []*ai.Document {
	docs := make([]*ai.Document, len(results))
	for i, result := range results {
		metadata := make(map[string]any, len(result.Document.Metadata)+2)
		for k, v := range result.Document.Metadata {
			metadata[k] = v
		}
		metadata["title"] = result.Document.Title
		metadata["similarity"] = result.Similarity

		docs[i] = ai.DocumentFromText(result.Document.Content, metadata)
	}
	return docs
}
