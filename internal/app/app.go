// Package app wires the application together: configuration, database,
// Genkit, retrieval, ingestion, tools, and the chat orchestrator.
package app

import (
	"context"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/skigaudi/skibot/internal/chat"
	"github.com/skigaudi/skibot/internal/config"
	"github.com/skigaudi/skibot/internal/faq"
	"github.com/skigaudi/skibot/internal/index"
	"github.com/skigaudi/skibot/internal/log"
	"github.com/skigaudi/skibot/internal/prompt"
	"github.com/skigaudi/skibot/internal/tools"
	"github.com/skigaudi/skibot/internal/vector"
)

// App is the core application container.
type App struct {
	Config *config.Config
	Logger log.Logger

	Genkit   *genkit.Genkit
	DBPool   *pgxpool.Pool
	Embedder ai.Embedder

	Vectors      *vector.Store
	FAQs         *faq.Store
	Indexer      *index.Indexer
	Renderer     *prompt.Renderer
	Orchestrator *chat.Orchestrator
	Flow         *chat.Flow

	// ToolHandler backs both the chat tools and the HTTP mutation routes.
	ToolHandler *tools.Handler

	// External is the MCP tool host, nil when no servers are configured.
	External *tools.ExternalHost

	// Tools are the registered admin tools, offered to privileged callers.
	Tools []ai.Tool
}

// Close gracefully shuts down all resources.
func (a *App) Close() error {
	a.Logger.Info("shutting down application")

	if a.External != nil {
		if err := a.External.Close(context.Background()); err != nil {
			a.Logger.Warn("disconnecting MCP servers", "error", err)
		}
	}
	if a.DBPool != nil {
		a.DBPool.Close()
		a.Logger.Info("database pool closed")
	}
	return nil
}
