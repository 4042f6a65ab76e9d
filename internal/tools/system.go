package tools

import (
	"errors"
	"fmt"

	"github.com/firebase/genkit/go/ai"

	"github.com/skigaudi/skibot/internal/auth"
	"github.com/skigaudi/skibot/internal/prompt"
)

// SetSystemPromptInput defines input for the setSystemPrompt tool.
type SetSystemPromptInput struct {
	Prompt string `json:"prompt" jsonschema_description:"Complete prompt template including YAML front matter"`
}

// SetSystemPrompt validates and stores a system prompt override. It takes
// effect on the next exchange.
func (h *Handler) SetSystemPrompt(ctx *ai.ToolContext, input SetSystemPromptInput) (string, error) {
	if err := auth.AssertPrivilegedContext(ctx); err != nil {
		return "", err
	}

	if err := h.prompts.Set(ctx, input.Prompt); err != nil {
		if errors.Is(err, prompt.ErrMalformedPrompt) {
			return "", fmt.Errorf("prompt rejected: %w", err)
		}
		return "", fmt.Errorf("storing system prompt: %w", err)
	}

	h.logger.Info("system prompt replaced via tool")
	return "System prompt updated. It takes effect on the next message.", nil
}
