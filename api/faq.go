package api

import (
	"encoding/json"
	"net/http"

	"github.com/firebase/genkit/go/ai"

	"github.com/skigaudi/skibot/internal/log"
	"github.com/skigaudi/skibot/internal/tools"
)

// FAQHandler serves the FAQ management endpoints. Every route delegates to
// the same tool handlers the chat model calls, so privilege checks and
// synchronous reindexing apply identically on both paths.
type FAQHandler struct {
	tools  *tools.Handler
	logger log.Logger
}

// NewFAQHandler creates an FAQ handler.
func NewFAQHandler(t *tools.Handler, logger log.Logger) *FAQHandler {
	return &FAQHandler{tools: t, logger: logger}
}

// RegisterRoutes registers the FAQ routes on the mux.
func (h *FAQHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/faqs", h.list)
	mux.HandleFunc("GET /api/faqs/search", h.search)
	mux.HandleFunc("POST /api/faqs", h.create)
	mux.HandleFunc("POST /api/faqs/bulk", h.bulkCreate)
	mux.HandleFunc("PUT /api/faqs/{id}", h.update)
	mux.HandleFunc("DELETE /api/faqs/{id}", h.remove)
}

// toolCtx adapts a request context for the tool handlers. The identity
// placed in context by the middleware rides along.
func toolCtx(r *http.Request) *ai.ToolContext {
	return &ai.ToolContext{Context: r.Context()}
}

// MessageResponse wraps a tool confirmation string.
type MessageResponse struct {
	Message string `json:"message"`
}

func (h *FAQHandler) list(w http.ResponseWriter, r *http.Request) {
	out, err := h.tools.ListFAQs(toolCtx(r), tools.ListFAQsInput{})
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, out)
}

func (h *FAQHandler) search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		writeError(w, h.logger, http.StatusBadRequest, "invalid_input", "query parameter q is required")
		return
	}
	out, err := h.tools.FindFAQ(toolCtx(r), tools.FindFAQInput{Query: query})
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, out)
}

func (h *FAQHandler) create(w http.ResponseWriter, r *http.Request) {
	var input tools.CreateFAQInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	msg, err := h.tools.CreateFAQ(toolCtx(r), input)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusCreated, MessageResponse{Message: msg})
}

func (h *FAQHandler) bulkCreate(w http.ResponseWriter, r *http.Request) {
	var input tools.BulkCreateFAQInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	msg, err := h.tools.BulkCreateFAQ(toolCtx(r), input)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusCreated, MessageResponse{Message: msg})
}

func (h *FAQHandler) update(w http.ResponseWriter, r *http.Request) {
	var input tools.UpdateFAQInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	input.ID = r.PathValue("id")
	msg, err := h.tools.UpdateFAQ(toolCtx(r), input)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, MessageResponse{Message: msg})
}

func (h *FAQHandler) remove(w http.ResponseWriter, r *http.Request) {
	msg, err := h.tools.DeleteFAQ(toolCtx(r), tools.DeleteFAQInput{ID: r.PathValue("id")})
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, MessageResponse{Message: msg})
}
