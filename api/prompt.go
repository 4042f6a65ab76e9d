package api

import (
	"encoding/json"
	"net/http"

	"github.com/skigaudi/skibot/internal/log"
	"github.com/skigaudi/skibot/internal/tools"
)

// PromptHandler serves the system prompt endpoint, routed through the same
// tool handler as the setSystemPrompt chat tool.
type PromptHandler struct {
	tools  *tools.Handler
	logger log.Logger
}

// NewPromptHandler creates a prompt handler.
func NewPromptHandler(t *tools.Handler, logger log.Logger) *PromptHandler {
	return &PromptHandler{tools: t, logger: logger}
}

// RegisterRoutes registers the prompt route on the mux.
func (h *PromptHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("PUT /api/prompt", h.set)
}

func (h *PromptHandler) set(w http.ResponseWriter, r *http.Request) {
	var input tools.SetSystemPromptInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	msg, err := h.tools.SetSystemPrompt(toolCtx(r), input)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, MessageResponse{Message: msg})
}
