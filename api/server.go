// Package api exposes the assistant over HTTP.
//
// Endpoints:
//
//	POST   /api/chat                   chat via the Genkit flow (JSON)
//	POST   /api/chat/stream            chat with SSE streaming
//	GET    /api/faqs                   list FAQ entries
//	GET    /api/faqs/search            search FAQ entries
//	POST   /api/faqs                   create an FAQ entry
//	POST   /api/faqs/bulk              create several FAQ entries
//	PUT    /api/faqs/{id}              update an FAQ entry
//	DELETE /api/faqs/{id}              delete an FAQ entry
//	PUT    /api/prompt                 replace the system prompt
//	POST   /api/knowledge              upload a knowledge document
//	GET    /api/knowledge              list knowledge documents
//	GET    /api/knowledge/{title}      list a document's chunks
//	DELETE /api/knowledge/{title}      delete a document and its chunks
//	POST   /api/knowledge/{title}/chunks/{id}/reindex  re-embed one chunk
//	GET    /health                     liveness probe
//	GET    /ready                      readiness probe
//
// Mutating endpoints route through the same tool handlers the chat model
// calls, so the HTTP path and the chat path cannot diverge on validation,
// privilege checks, or reindexing.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/skigaudi/skibot/internal/chat"
	"github.com/skigaudi/skibot/internal/index"
	"github.com/skigaudi/skibot/internal/log"
	"github.com/skigaudi/skibot/internal/tools"
)

const (
	// DefaultAddr is used when no listen address is configured.
	DefaultAddr = ":8080"

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout = 10 * time.Second

	// ReadHeaderTimeout limits header reads to keep slow clients from
	// pinning connections.
	ReadHeaderTimeout = 10 * time.Second

	// ReadTimeout is the maximum duration for reading an entire request.
	// Uploads up to the configured size limit must fit in this window.
	ReadTimeout = 60 * time.Second

	// WriteTimeout is the maximum duration for writing a response.
	// SSE chat responses stream within this window.
	WriteTimeout = 120 * time.Second

	// IdleTimeout is the keep-alive idle limit.
	IdleTimeout = 120 * time.Second
)

// Config holds the dependencies and settings for the HTTP server.
type Config struct {
	Pool           *pgxpool.Pool
	Flow           *chat.Flow
	Tools          *tools.Handler
	Indexer        *index.Indexer
	Logger         log.Logger
	CORSOrigins    []string
	MaxUploadBytes int64
}

func (c *Config) validate() error {
	if c.Tools == nil {
		return errors.New("tools handler is required")
	}
	if c.Indexer == nil {
		return errors.New("indexer is required")
	}
	if c.Logger == nil {
		return errors.New("logger is required")
	}
	return nil
}

// Server is the HTTP server for the assistant's REST API.
type Server struct {
	mux    *http.ServeMux
	logger log.Logger
	cors   []string

	health    *HealthHandler
	chat      *ChatHandler
	faq       *FAQHandler
	knowledge *KnowledgeHandler
	prompt    *PromptHandler
}

// NewServer creates an HTTP server with all routes registered.
func NewServer(cfg Config) (*Server, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	s := &Server{
		mux:       mux,
		logger:    cfg.Logger.With("component", "api"),
		cors:      cfg.CORSOrigins,
		health:    NewHealthHandler(cfg.Pool, cfg.Logger),
		chat:      NewChatHandler(cfg.Flow, cfg.Logger),
		faq:       NewFAQHandler(cfg.Tools, cfg.Logger),
		knowledge: NewKnowledgeHandler(cfg.Tools, cfg.Indexer, cfg.MaxUploadBytes, cfg.Logger),
		prompt:    NewPromptHandler(cfg.Tools, cfg.Logger),
	}

	s.health.RegisterRoutes(mux)
	s.chat.RegisterRoutes(mux)
	s.faq.RegisterRoutes(mux)
	s.knowledge.RegisterRoutes(mux)
	s.prompt.RegisterRoutes(mux)

	return s, nil
}

// Handler returns the HTTP handler with middleware applied.
// Order: recovery → CORS → identity → logging → routes.
func (s *Server) Handler() http.Handler {
	return chain(s.mux,
		recoveryMiddleware(s.logger),
		corsMiddleware(s.cors),
		identityMiddleware,
		loggingMiddleware(s.logger),
	)
}

// Run starts the HTTP server and blocks until the context is cancelled,
// then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	if addr == "" {
		addr = DefaultAddr
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: ReadHeaderTimeout,
		ReadTimeout:       ReadTimeout,
		WriteTimeout:      WriteTimeout,
		IdleTimeout:       IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
