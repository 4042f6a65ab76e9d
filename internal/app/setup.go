package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/core/api"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/jackc/pgx/v5/pgxpool"
	"google.golang.org/genai"

	"github.com/skigaudi/skibot/db"
	"github.com/skigaudi/skibot/internal/chat"
	"github.com/skigaudi/skibot/internal/chunk"
	"github.com/skigaudi/skibot/internal/config"
	"github.com/skigaudi/skibot/internal/extract"
	"github.com/skigaudi/skibot/internal/faq"
	"github.com/skigaudi/skibot/internal/index"
	"github.com/skigaudi/skibot/internal/log"
	"github.com/skigaudi/skibot/internal/prompt"
	"github.com/skigaudi/skibot/internal/tools"
	"github.com/skigaudi/skibot/internal/vector"
)

// Setup creates and initializes the application.
// Returns an App with embedded cleanup; call Close() to release.
func Setup(ctx context.Context, cfg *config.Config, logger log.Logger) (_ *App, retErr error) {
	a := &App{Config: cfg, Logger: logger}

	// On error, release everything already initialized.
	defer func() {
		if retErr != nil {
			if err := a.Close(); err != nil {
				logger.Warn("cleanup during setup failure", "error", err)
			}
		}
	}()

	pool, err := provideDBPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.DBPool = pool

	g, err := provideGenkit(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.Genkit = g

	a.Embedder = provideEmbedder(g, cfg)
	if a.Embedder == nil {
		return nil, fmt.Errorf("embedder %q not found", cfg.EmbedderModel)
	}

	a.Vectors = vector.New(pool, a.Embedder, logger)
	a.FAQs = faq.New(pool, logger)

	// Retrievers are registered so the collections show up in the dev UI;
	// the orchestrator queries the store directly.
	r := vector.NewRetriever(a.Vectors)
	r.DefineFAQ(g, "faqRetriever")
	r.DefineKnowledge(g, "knowledgeRetriever")

	indexer, err := provideIndexer(cfg, a.Vectors, logger)
	if err != nil {
		return nil, err
	}
	a.Indexer = indexer

	a.Renderer = prompt.NewRenderer(prompt.NewPGStore(pool), cfg.PromptDir, logger)

	a.ToolHandler = tools.NewHandler(a.FAQs, a.Indexer, a.Vectors, a.Renderer, tools.NewModelExtractor(a.Genkit, cfg.FullModelName()), logger)
	a.Tools = tools.Register(g, a.ToolHandler)

	external, err := provideExternalTools(g, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.External = external

	// A nil *ExternalHost must not reach the interface field, or the
	// orchestrator would see it as a usable implementation.
	var externalTools chat.ExternalTools
	if external != nil {
		externalTools = external
	}

	orch, err := chat.New(chat.Config{
		Genkit:        g,
		Renderer:      a.Renderer,
		Searcher:      a.Vectors,
		Logger:        logger,
		Tools:         a.Tools,
		External:      externalTools,
		ModelName:     cfg.FullModelName(),
		Temperature:   cfg.Temperature,
		MaxTurns:      cfg.MaxTurns,
		RetrievalTopK: cfg.RetrievalTopK,
	})
	if err != nil {
		return nil, fmt.Errorf("creating chat orchestrator: %w", err)
	}
	a.Orchestrator = orch
	a.Flow = chat.NewFlow(g, orch)

	logger.Info("application initialized",
		"model", cfg.FullModelName(), "tools", len(a.Tools))
	return a, nil
}

// provideDBPool runs migrations and creates the connection pool.
func provideDBPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	if err := db.Migrate(cfg.PostgresURL()); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.PostgresConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parsing connection config: %w", err)
	}
	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return pool, nil
}

// provideGenkit initializes Genkit with the Gemini provider and the prompt
// directory for Dotprompt discovery.
func provideGenkit(ctx context.Context, cfg *config.Config) (*genkit.Genkit, error) {
	promptDir := cfg.PromptDir
	if promptDir == "" {
		promptDir = "prompts"
	}

	g := genkit.Init(ctx,
		genkit.WithPlugins(&googlegenai.GoogleAI{}),
		genkit.WithPromptDir(promptDir),
	)
	if g == nil {
		return nil, errors.New("initializing genkit")
	}
	return g, nil
}

// provideEmbedder wraps the Gemini embedder so every request carries the
// output dimensionality matching the documents table.
func provideEmbedder(g *genkit.Genkit, cfg *config.Config) ai.Embedder {
	inner := googlegenai.GoogleAIEmbedder(g, cfg.EmbedderModel)
	if inner == nil {
		return nil
	}
	return &dimensionedEmbedder{inner: inner}
}

// dimensionedEmbedder forces the configured output dimensionality on embed
// requests that do not set their own options.
type dimensionedEmbedder struct {
	inner ai.Embedder
}

func (e *dimensionedEmbedder) Name() string { return e.inner.Name() }

func (e *dimensionedEmbedder) Register(r api.Registry) { e.inner.Register(r) }

func (e *dimensionedEmbedder) Embed(ctx context.Context, req *ai.EmbedRequest) (*ai.EmbedResponse, error) {
	if req.Options == nil {
		sized := *req
		sized.Options = &genai.EmbedContentConfig{
			OutputDimensionality: genai.Ptr(int32(vector.VectorDimension)),
		}
		return e.inner.Embed(ctx, &sized)
	}
	return e.inner.Embed(ctx, req)
}

// provideIndexer builds the ingestion pipeline from configuration.
func provideIndexer(cfg *config.Config, store *vector.Store, logger log.Logger) (*index.Indexer, error) {
	splitter, err := chunk.New(chunk.Config{
		MinChars: cfg.ChunkMinChars,
		MaxChars: cfg.ChunkMaxChars,
		Overlap:  cfg.ChunkOverlap,
	})
	if err != nil {
		return nil, fmt.Errorf("creating chunker: %w", err)
	}
	return index.New(store, extract.New(logger), splitter, logger), nil
}

// provideExternalTools connects configured MCP servers. Returns nil when
// none are configured.
func provideExternalTools(g *genkit.Genkit, cfg *config.Config, logger log.Logger) (*tools.ExternalHost, error) {
	if len(cfg.MCPServers) == 0 {
		return nil, nil
	}
	host, err := tools.NewExternalHost(g, cfg.MCPServers, logger)
	if err != nil {
		return nil, fmt.Errorf("connecting MCP servers: %w", err)
	}
	return host, nil
}
