package tools

import (
	"context"
	"fmt"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
)

// extractedPairs is the structured output schema for FAQ extraction.
type extractedPairs struct {
	FAQs []CreateFAQInput `json:"faqs" jsonschema_description:"Every question/answer pair found in the text"`
}

// ModelExtractor turns a free-text blob into FAQ pairs with a
// structured-output model call.
type ModelExtractor struct {
	g         *genkit.Genkit
	modelName string
}

// NewModelExtractor creates a ModelExtractor using the given
// provider-qualified model.
func NewModelExtractor(g *genkit.Genkit, modelName string) *ModelExtractor {
	return &ModelExtractor{g: g, modelName: modelName}
}

// ExtractPairs extracts every question/answer pair from text.
func (e *ModelExtractor) ExtractPairs(ctx context.Context, text string) ([]CreateFAQInput, error) {
	resp, err := genkit.Generate(ctx, e.g,
		ai.WithModelName(e.modelName),
		ai.WithPrompt("From the text below extract every QUESTION / ANSWER pair.\n\nTEXT:\n"+text),
		ai.WithOutputType(extractedPairs{}),
	)
	if err != nil {
		return nil, fmt.Errorf("extracting faq pairs: %w", err)
	}

	var out extractedPairs
	if err := resp.Output(&out); err != nil {
		return nil, fmt.Errorf("parsing extracted faq pairs: %w", err)
	}
	return out.FAQs, nil
}
