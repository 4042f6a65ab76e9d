package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/skigaudi/skibot/internal/auth"
	"github.com/skigaudi/skibot/internal/extract"
	"github.com/skigaudi/skibot/internal/index"
	"github.com/skigaudi/skibot/internal/log"
	"github.com/skigaudi/skibot/internal/tools"
)

// DefaultMaxUploadBytes bounds uploads when no limit is configured.
const DefaultMaxUploadBytes = 20 << 20

// KnowledgeHandler serves the knowledge document endpoints. Uploading a
// file runs the full ingestion pipeline synchronously; the response is
// only written once the document is searchable.
type KnowledgeHandler struct {
	tools          *tools.Handler
	indexer        *index.Indexer
	maxUploadBytes int64
	logger         log.Logger
}

// NewKnowledgeHandler creates a knowledge handler.
func NewKnowledgeHandler(t *tools.Handler, ix *index.Indexer, maxUploadBytes int64, logger log.Logger) *KnowledgeHandler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = DefaultMaxUploadBytes
	}
	return &KnowledgeHandler{tools: t, indexer: ix, maxUploadBytes: maxUploadBytes, logger: logger}
}

// RegisterRoutes registers the knowledge routes on the mux.
func (h *KnowledgeHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/knowledge", h.upload)
	mux.HandleFunc("GET /api/knowledge", h.list)
	mux.HandleFunc("GET /api/knowledge/{title}", h.chunks)
	mux.HandleFunc("DELETE /api/knowledge/{title}", h.remove)
	mux.HandleFunc("POST /api/knowledge/{title}/chunks/{id}/reindex", h.reindexChunk)
}

// UploadResponse reports the outcome of a document upload.
type UploadResponse struct {
	Title  string `json:"title"`
	Chunks int    `json:"chunks"`
}

// upload accepts a multipart form with a "file" field, extracts its text,
// and indexes it. Re-uploading a file with the same name replaces its
// chunks without a retrieval gap.
func (h *KnowledgeHandler) upload(w http.ResponseWriter, r *http.Request) {
	if err := auth.AssertPrivilegedContext(r.Context()); err != nil {
		writeDomainError(w, h.logger, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, h.logger, http.StatusRequestEntityTooLarge, "too_large",
				fmt.Sprintf("upload exceeds the %d byte limit", h.maxUploadBytes))
			return
		}
		writeError(w, h.logger, http.StatusBadRequest, "invalid_request", "multipart field \"file\" is required")
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if !extract.Accepts(header.Filename, contentType) {
		writeError(w, h.logger, http.StatusUnsupportedMediaType, "unsupported_type",
			fmt.Sprintf("unsupported document type %q (%s)", header.Filename, contentType))
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	chunks, err := h.indexer.IngestFile(r.Context(), data, header.Filename, contentType)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusCreated, UploadResponse{Title: header.Filename, Chunks: chunks})
}

// FileInfo describes one indexed document.
type FileInfo struct {
	Title  string `json:"title"`
	Chunks int    `json:"chunks"`
}

// FileListResponse lists the indexed documents.
type FileListResponse struct {
	Files []FileInfo `json:"files"`
}

func (h *KnowledgeHandler) list(w http.ResponseWriter, r *http.Request) {
	if err := auth.AssertPrivilegedContext(r.Context()); err != nil {
		writeDomainError(w, h.logger, err)
		return
	}

	titles, err := h.indexer.ListFiles(r.Context())
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	files := make([]FileInfo, len(titles))
	for i, t := range titles {
		files[i] = FileInfo{Title: t.Title, Chunks: t.Chunks}
	}
	writeJSON(w, h.logger, http.StatusOK, FileListResponse{Files: files})
}

// ChunkInfo describes one indexed chunk of a document.
type ChunkInfo struct {
	ID      string `json:"id"`
	Content string `json:"content"`
}

// ChunkListResponse lists the chunks of one document.
type ChunkListResponse struct {
	Title  string      `json:"title"`
	Chunks []ChunkInfo `json:"chunks"`
}

func (h *KnowledgeHandler) chunks(w http.ResponseWriter, r *http.Request) {
	if err := auth.AssertPrivilegedContext(r.Context()); err != nil {
		writeDomainError(w, h.logger, err)
		return
	}

	title := r.PathValue("title")
	docs, err := h.indexer.FileChunks(r.Context(), title)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	if len(docs) == 0 {
		writeError(w, h.logger, http.StatusNotFound, "not_found",
			fmt.Sprintf("no knowledge document named %q", title))
		return
	}

	chunks := make([]ChunkInfo, len(docs))
	for i, d := range docs {
		chunks[i] = ChunkInfo{ID: d.ID, Content: d.Content}
	}
	writeJSON(w, h.logger, http.StatusOK, ChunkListResponse{Title: title, Chunks: chunks})
}

func (h *KnowledgeHandler) remove(w http.ResponseWriter, r *http.Request) {
	msg, err := h.tools.DeleteKnowledge(toolCtx(r), tools.DeleteKnowledgeInput{Title: r.PathValue("title")})
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, MessageResponse{Message: msg})
}

// reindexChunk re-embeds one chunk after its stored content was edited.
func (h *KnowledgeHandler) reindexChunk(w http.ResponseWriter, r *http.Request) {
	if err := auth.AssertPrivilegedContext(r.Context()); err != nil {
		writeDomainError(w, h.logger, err)
		return
	}

	title := r.PathValue("title")
	id := r.PathValue("id")
	if err := h.indexer.ReindexChunk(r.Context(), title, id); err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, MessageResponse{
		Message: fmt.Sprintf("Chunk %s of %q re-embedded.", id, title),
	})
}
