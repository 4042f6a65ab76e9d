package tools

import (
	"fmt"

	"github.com/firebase/genkit/go/ai"

	"github.com/skigaudi/skibot/internal/auth"
	"github.com/skigaudi/skibot/internal/vector"
)

// DeleteKnowledgeInput defines input for the deleteKnowledgeDoc tool.
type DeleteKnowledgeInput struct {
	Title string `json:"title" jsonschema_description:"File name of the knowledge document to delete"`
}

// FindKnowledgeInput defines input for the findKnowledgeDoc tool.
type FindKnowledgeInput struct {
	Query string `json:"query" jsonschema_description:"Semantic search query"`
	TopK  int    `json:"topK,omitempty" jsonschema_description:"Maximum chunks to return (1-20)"`
}

// KnowledgeMatch is one matched chunk in findKnowledgeDoc output.
type KnowledgeMatch struct {
	Title      string  `json:"title"`
	ChunkID    string  `json:"chunkId"`
	Content    string  `json:"content"`
	Similarity float32 `json:"similarity"`
}

// FindKnowledgeOutput is the output of findKnowledgeDoc.
type FindKnowledgeOutput struct {
	Count   int              `json:"count"`
	Matches []KnowledgeMatch `json:"matches"`
}

// DeleteKnowledge removes a knowledge document and its indexed chunks.
func (h *Handler) DeleteKnowledge(ctx *ai.ToolContext, input DeleteKnowledgeInput) (string, error) {
	if err := auth.AssertPrivilegedContext(ctx); err != nil {
		return "", err
	}

	n, err := h.index.DeleteFile(ctx, input.Title)
	if err != nil {
		return "", fmt.Errorf("deleting knowledge document %q: %w", input.Title, err)
	}
	if n == 0 {
		return fmt.Sprintf("No knowledge document named %q was found.", input.Title), nil
	}

	h.logger.Info("knowledge document deleted via tool", "title", input.Title, "chunks", n)
	return fmt.Sprintf("Deleted knowledge document %q (%d chunks).", input.Title, n), nil
}

// FindKnowledge searches the knowledge collection semantically.
func (h *Handler) FindKnowledge(ctx *ai.ToolContext, input FindKnowledgeInput) (FindKnowledgeOutput, error) {
	if err := auth.AssertPrivilegedContext(ctx); err != nil {
		return FindKnowledgeOutput{}, err
	}

	var opts []vector.SearchOption
	if input.TopK > 0 {
		opts = append(opts, vector.WithTopK(input.TopK))
	}
	results, err := h.searcher.Query(ctx, vector.CollectionKnowledge, input.Query, opts...)
	if err != nil {
		return FindKnowledgeOutput{}, fmt.Errorf("searching knowledge: %w", err)
	}

	out := FindKnowledgeOutput{Count: len(results), Matches: make([]KnowledgeMatch, len(results))}
	for i, r := range results {
		out.Matches[i] = KnowledgeMatch{
			Title:      r.Document.Title,
			ChunkID:    r.Document.ID,
			Content:    r.Document.Content,
			Similarity: r.Similarity,
		}
	}
	return out, nil
}
