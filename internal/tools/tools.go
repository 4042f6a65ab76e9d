// Package tools registers the admin tools the model may call during chat.
//
// Every handler asserts caller privilege before doing anything, so a tool
// request that slips past the orchestrator's privilege gate still fails
// closed. Handlers return human-readable confirmations; the model relays
// them to the admin.
package tools

import (
	"context"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"

	"github.com/skigaudi/skibot/internal/faq"
	"github.com/skigaudi/skibot/internal/log"
	"github.com/skigaudi/skibot/internal/vector"
)

// Tool name constants registered with Genkit.
const (
	CreateFAQName       = "createFaq"
	UpdateFAQName       = "updateFaq"
	DeleteFAQName       = "deleteFaq"
	FindFAQName         = "findFaq"
	ListFAQsName        = "listFaqs"
	BulkCreateFAQName   = "bulkCreateFaq"
	SetSystemPromptName = "setSystemPrompt"
	DeleteKnowledgeName = "deleteKnowledgeDoc"
	FindKnowledgeName   = "findKnowledgeDoc"
)

// FAQStore is the FAQ persistence surface the handlers need.
type FAQStore interface {
	Create(ctx context.Context, question, answer string) (faq.Entry, error)
	Update(ctx context.Context, id, question, answer string) (faq.Entry, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, limit int) ([]faq.Entry, error)
	Search(ctx context.Context, query string, limit int) ([]faq.Entry, error)
}

// Index keeps the vector store in step with FAQ and knowledge mutations.
type Index interface {
	IndexFAQ(ctx context.Context, entry faq.Entry) error
	DeleteFAQ(ctx context.Context, id string) error
	DeleteFile(ctx context.Context, name string) (int64, error)
}

// Searcher runs semantic queries against a collection.
type Searcher interface {
	Query(ctx context.Context, collection, query string, opts ...vector.SearchOption) ([]vector.Result, error)
}

// PromptSetter stores a validated system prompt override.
type PromptSetter interface {
	Set(ctx context.Context, text string) error
}

// PairExtractor turns a free-text blob into FAQ pairs.
type PairExtractor interface {
	ExtractPairs(ctx context.Context, text string) ([]CreateFAQInput, error)
}

// Handler holds the dependencies shared by all tool handlers.
type Handler struct {
	faqs      FAQStore
	index     Index
	searcher  Searcher
	prompts   PromptSetter
	extractor PairExtractor
	logger    log.Logger
}

// NewHandler creates a Handler. extractor may be nil, which disables the
// text path of bulkCreateFaq; everything else is required.
func NewHandler(faqs FAQStore, index Index, searcher Searcher, prompts PromptSetter, extractor PairExtractor, logger log.Logger) *Handler {
	return &Handler{
		faqs:      faqs,
		index:     index,
		searcher:  searcher,
		prompts:   prompts,
		extractor: extractor,
		logger:    logger.With("component", "tools"),
	}
}

// Register defines all admin tools with Genkit and returns them in
// registration order.
func Register(g *genkit.Genkit, h *Handler) []ai.Tool {
	return []ai.Tool{
		genkit.DefineTool(g, CreateFAQName,
			"Create a new FAQ entry from a question and its answer. "+
				"The entry is immediately indexed for retrieval.",
			h.CreateFAQ),
		genkit.DefineTool(g, UpdateFAQName,
			"Update an existing FAQ entry by ID. Empty fields keep their "+
				"current value. Use findFaq first when the ID is unknown.",
			h.UpdateFAQ),
		genkit.DefineTool(g, DeleteFAQName,
			"Delete the FAQ entry with the given ID. "+
				"Use findFaq first when the ID is unknown.",
			h.DeleteFAQ),
		genkit.DefineTool(g, FindFAQName,
			"Find FAQ entries whose question or answer contains the query "+
				"text. Returns IDs for use with updateFaq and deleteFaq.",
			h.FindFAQ),
		genkit.DefineTool(g, ListFAQsName,
			"List all FAQ entries with their IDs, questions, and answers.",
			h.ListFAQs),
		genkit.DefineTool(g, BulkCreateFAQName,
			"Create several FAQ entries at once from a list of items, or pass "+
				"free text to have question/answer pairs extracted from it. "+
				"Returns the IDs of the created entries.",
			h.BulkCreateFAQ),
		genkit.DefineTool(g, SetSystemPromptName,
			"Replace the assistant's system prompt. The text must be a "+
				"complete prompt template with YAML front matter.",
			h.SetSystemPrompt),
		genkit.DefineTool(g, DeleteKnowledgeName,
			"Delete an uploaded knowledge document and all of its indexed "+
				"chunks. The title is the original file name.",
			h.DeleteKnowledge),
		genkit.DefineTool(g, FindKnowledgeName,
			"Search the indexed knowledge documents semantically and return "+
				"matching chunks with their document titles.",
			h.FindKnowledge),
	}
}
