package tools

import (
	"fmt"
	"strings"

	"github.com/firebase/genkit/go/ai"

	"github.com/skigaudi/skibot/internal/auth"
	"github.com/skigaudi/skibot/internal/faq"
)

// listLimit bounds listFaqs output.
const listLimit = 200

// findLimit bounds findFaq output.
const findLimit = 20

// CreateFAQInput defines input for the createFaq tool.
type CreateFAQInput struct {
	Question string `json:"question" jsonschema_description:"The FAQ question"`
	Answer   string `json:"answer" jsonschema_description:"The answer to the question"`
}

// UpdateFAQInput defines input for the updateFaq tool.
type UpdateFAQInput struct {
	ID       string `json:"id" jsonschema_description:"ID of the FAQ entry to update"`
	Question string `json:"question,omitempty" jsonschema_description:"New question text, empty keeps the current one"`
	Answer   string `json:"answer,omitempty" jsonschema_description:"New answer text, empty keeps the current one"`
}

// DeleteFAQInput defines input for the deleteFaq tool.
type DeleteFAQInput struct {
	ID string `json:"id" jsonschema_description:"ID of the FAQ entry to delete"`
}

// FindFAQInput defines input for the findFaq tool.
type FindFAQInput struct {
	Query string `json:"query" jsonschema_description:"Text to match against questions and answers"`
}

// ListFAQsInput defines input for the listFaqs tool. It has no parameters.
type ListFAQsInput struct{}

// BulkCreateFAQInput defines input for the bulkCreateFaq tool. Either pass
// pre-extracted items or a free-text blob to extract pairs from.
type BulkCreateFAQInput struct {
	Text  string           `json:"text,omitempty" jsonschema_description:"Free text to extract question/answer pairs from"`
	Items []CreateFAQInput `json:"items,omitempty" jsonschema_description:"Pre-extracted FAQ entries to create"`
}

// FAQRecord is one FAQ entry in tool output.
type FAQRecord struct {
	ID       string `json:"id"`
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// FAQListOutput is the output of findFaq and listFaqs.
type FAQListOutput struct {
	Count int         `json:"count"`
	FAQs  []FAQRecord `json:"faqs"`
}

// CreateFAQ creates a FAQ entry and indexes it for retrieval.
func (h *Handler) CreateFAQ(ctx *ai.ToolContext, input CreateFAQInput) (string, error) {
	if err := auth.AssertPrivilegedContext(ctx); err != nil {
		return "", err
	}

	entry, err := h.faqs.Create(ctx, input.Question, input.Answer)
	if err != nil {
		return "", fmt.Errorf("creating faq: %w", err)
	}
	if err := h.index.IndexFAQ(ctx, entry); err != nil {
		return "", fmt.Errorf("indexing new faq: %w", err)
	}

	h.logger.Info("faq created via tool", "id", entry.ID)
	return fmt.Sprintf("FAQ created with ID %s.", entry.ID), nil
}

// UpdateFAQ updates a FAQ entry and reindexes it.
func (h *Handler) UpdateFAQ(ctx *ai.ToolContext, input UpdateFAQInput) (string, error) {
	if err := auth.AssertPrivilegedContext(ctx); err != nil {
		return "", err
	}

	entry, err := h.faqs.Update(ctx, input.ID, input.Question, input.Answer)
	if err != nil {
		return "", fmt.Errorf("updating faq %s: %w", input.ID, err)
	}
	if err := h.index.IndexFAQ(ctx, entry); err != nil {
		return "", fmt.Errorf("reindexing faq %s: %w", input.ID, err)
	}

	h.logger.Info("faq updated via tool", "id", entry.ID)
	return fmt.Sprintf("FAQ %s updated.", entry.ID), nil
}

// DeleteFAQ removes a FAQ entry from storage and the index.
func (h *Handler) DeleteFAQ(ctx *ai.ToolContext, input DeleteFAQInput) (string, error) {
	if err := auth.AssertPrivilegedContext(ctx); err != nil {
		return "", err
	}

	if err := h.faqs.Delete(ctx, input.ID); err != nil {
		return "", fmt.Errorf("deleting faq %s: %w", input.ID, err)
	}
	if err := h.index.DeleteFAQ(ctx, input.ID); err != nil {
		return "", fmt.Errorf("removing faq %s from index: %w", input.ID, err)
	}

	h.logger.Info("faq deleted via tool", "id", input.ID)
	return fmt.Sprintf("FAQ %s deleted.", input.ID), nil
}

// FindFAQ searches FAQ entries by substring match.
func (h *Handler) FindFAQ(ctx *ai.ToolContext, input FindFAQInput) (FAQListOutput, error) {
	if err := auth.AssertPrivilegedContext(ctx); err != nil {
		return FAQListOutput{}, err
	}

	entries, err := h.faqs.Search(ctx, input.Query, findLimit)
	if err != nil {
		return FAQListOutput{}, fmt.Errorf("searching faqs: %w", err)
	}
	return toListOutput(entries), nil
}

// ListFAQs returns all FAQ entries.
func (h *Handler) ListFAQs(ctx *ai.ToolContext, _ ListFAQsInput) (FAQListOutput, error) {
	if err := auth.AssertPrivilegedContext(ctx); err != nil {
		return FAQListOutput{}, err
	}

	entries, err := h.faqs.List(ctx, listLimit)
	if err != nil {
		return FAQListOutput{}, fmt.Errorf("listing faqs: %w", err)
	}
	return toListOutput(entries), nil
}

// BulkCreateFAQ creates several FAQ entries. Creation stops at the first
// storage failure; entries created before it remain.
func (h *Handler) BulkCreateFAQ(ctx *ai.ToolContext, input BulkCreateFAQInput) (string, error) {
	if err := auth.AssertPrivilegedContext(ctx); err != nil {
		return "", err
	}

	items := input.Items
	if input.Text != "" {
		if h.extractor == nil {
			return "", fmt.Errorf("text extraction is not configured")
		}
		extracted, err := h.extractor.ExtractPairs(ctx, input.Text)
		if err != nil {
			return "", err
		}
		items = append(items, extracted...)
	}
	if len(items) == 0 {
		return "", fmt.Errorf("no faq items provided")
	}

	ids := make([]string, 0, len(items))
	for i, item := range items {
		entry, err := h.faqs.Create(ctx, item.Question, item.Answer)
		if err != nil {
			return "", fmt.Errorf("creating faq item %d after %d succeeded: %w", i+1, len(ids), err)
		}
		if err := h.index.IndexFAQ(ctx, entry); err != nil {
			return "", fmt.Errorf("indexing faq item %d: %w", i+1, err)
		}
		ids = append(ids, entry.ID)
	}

	h.logger.Info("faqs bulk created via tool", "count", len(ids))
	return fmt.Sprintf("Created %d FAQ entries: %s.", len(ids), strings.Join(ids, ", ")), nil
}

func toListOutput(entries []faq.Entry) FAQListOutput {
	out := FAQListOutput{Count: len(entries), FAQs: make([]FAQRecord, len(entries))}
	for i, e := range entries {
		out.FAQs[i] = FAQRecord{ID: e.ID, Question: e.Question, Answer: e.Answer}
	}
	return out
}
