package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/firebase/genkit/go/genkit"

	"github.com/skigaudi/skibot/internal/chat"
	"github.com/skigaudi/skibot/internal/log"
)

// ChatHandler serves the chat endpoints backed by the Genkit flow.
//
//   - POST /api/chat        synchronous chat (JSON request/response)
//   - POST /api/chat/stream streaming chat (Server-Sent Events)
//
// Both endpoints run the same flow; the caller identity placed in context
// by the middleware decides prompt variant and tool availability.
type ChatHandler struct {
	flow   *chat.Flow
	logger log.Logger
}

// NewChatHandler creates a chat handler for the given flow.
func NewChatHandler(flow *chat.Flow, logger log.Logger) *ChatHandler {
	return &ChatHandler{flow: flow, logger: logger}
}

// RegisterRoutes registers the chat routes on the mux.
func (h *ChatHandler) RegisterRoutes(mux *http.ServeMux) {
	if h.flow == nil {
		h.logger.Warn("chat flow is nil, chat endpoints not registered")
		return
	}
	mux.Handle("POST /api/chat", genkit.Handler(h.flow))
	mux.HandleFunc("POST /api/chat/stream", h.handleStream)
}

// SSEEvent is one Server-Sent Event payload.
type SSEEvent struct {
	// Event is "chunk" for partial text, "done" for the final output, or
	// "error".
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// SSEChunkData is the data of "chunk" events.
type SSEChunkData struct {
	Text string `json:"text"`
}

// SSEDoneData is the data of "done" events.
type SSEDoneData struct {
	Response    string   `json:"response"`
	ToolsCalled []string `json:"toolsCalled,omitempty"`
}

// SSEErrorData is the data of "error" events.
type SSEErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// handleStream runs the chat flow and relays text fragments as SSE chunk
// events, finishing with a done event carrying the full response.
func (h *ChatHandler) handleStream(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	flusher, ok := w.(http.Flusher)
	if !ok {
		h.logger.Error("response writer does not support streaming")
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	var input chat.Input
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		h.writeSSEError(w, flusher, "INVALID_REQUEST", fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if input.Query == "" {
		h.writeSSEError(w, flusher, "MISSING_QUERY", "query is required")
		return
	}

	ctx := r.Context()

	var finalOutput chat.Output
	var streamErr error

	for streamValue, err := range h.flow.Stream(ctx, input) {
		select {
		case <-ctx.Done():
			h.logger.Info("client disconnected during stream")
			return
		default:
		}

		if err != nil {
			streamErr = err
			break
		}
		if streamValue.Done {
			finalOutput = streamValue.Output
			break
		}
		if streamValue.Stream.Text != "" {
			h.writeSSEChunk(w, flusher, streamValue.Stream.Text)
		}
	}

	if streamErr != nil {
		h.logger.Error("chat stream failed", "error", streamErr)
		h.writeSSEError(w, flusher, "STREAM_ERROR", streamErr.Error())
		return
	}

	h.writeSSEDone(w, flusher, finalOutput)
}

func (h *ChatHandler) writeSSEChunk(w http.ResponseWriter, flusher http.Flusher, text string) {
	data, _ := json.Marshal(SSEChunkData{Text: text})
	fmt.Fprintf(w, "event: chunk\ndata: %s\n\n", data)
	flusher.Flush()
}

func (h *ChatHandler) writeSSEDone(w http.ResponseWriter, flusher http.Flusher, out chat.Output) {
	data, _ := json.Marshal(SSEDoneData{Response: out.Response, ToolsCalled: out.ToolsCalled})
	fmt.Fprintf(w, "event: done\ndata: %s\n\n", data)
	flusher.Flush()
}

func (h *ChatHandler) writeSSEError(w http.ResponseWriter, flusher http.Flusher, code, message string) {
	data, _ := json.Marshal(SSEErrorData{Code: code, Message: message})
	fmt.Fprintf(w, "event: error\ndata: %s\n\n", data)
	flusher.Flush()
}
