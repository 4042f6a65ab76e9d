// Package chat orchestrates a single exchange with the festival assistant:
// prompt resolution, dual retrieval, generation, and the privilege-gated
// tool loop.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/skigaudi/skibot/internal/auth"
	"github.com/skigaudi/skibot/internal/log"
	"github.com/skigaudi/skibot/internal/prompt"
	"github.com/skigaudi/skibot/internal/vector"
)

const (
	// retrievalTimeout limits how long context retrieval can take per
	// exchange. Retrieval failure degrades to an uninformed answer rather
	// than failing the exchange.
	retrievalTimeout = 5 * time.Second

	// permissionDeniedMessage is returned verbatim when an unprivileged
	// caller provokes a tool request.
	permissionDeniedMessage = "Sorry, you don't have permission to perform that action."

	// toolUnavailableMessage is synthesized as the tool output when the
	// model requests a tool that is not registered.
	toolUnavailableMessage = "Tool not available."

	// emptyResponseMessage covers the rare empty model response.
	emptyResponseMessage = "I apologize, but I couldn't generate a response. Please try rephrasing your question."
)

// Privilege-dependent tool instruction blocks substituted into the system
// prompt template.
const (
	adminToolRules = "ADMIN DIRECTIVE – READ FIRST:\n" +
		"When the user explicitly asks to create, update, or delete an FAQ\n" +
		"  • ALWAYS call the matching tool (createFaq, updateFaq, deleteFaq).\n" +
		"  • Do NOT output JSON or natural-language explanations before or after the call."

	userToolRules = "You must NEVER expose, reference, or describe any admin tools."
)

// Sentinel errors for chat execution.
var (
	// ErrToolLoopExceeded indicates the model kept requesting tools past
	// the configured turn cap.
	ErrToolLoopExceeded = errors.New("tool loop exceeded maximum turns")

	// ErrExecutionFailed wraps generation failures for transport handlers.
	ErrExecutionFailed = errors.New("execution failed")
)

// Response is the complete result of one exchange.
type Response struct {
	FinalText   string
	ToolsCalled []string
}

// StreamCallback receives response chunks as they are generated.
// Returning an error aborts the stream.
type StreamCallback func(ctx context.Context, chunk *ai.ModelResponseChunk) error

// Searcher runs semantic queries against a collection.
type Searcher interface {
	Query(ctx context.Context, collection, query string, opts ...vector.SearchOption) ([]vector.Result, error)
}

// PromptRenderer resolves and renders the system prompt.
type PromptRenderer interface {
	Render(ctx context.Context, vars prompt.Vars) (string, error)
}

// ExternalTools provides tools from connected MCP servers.
// Optional; nil means no external tools.
type ExternalTools interface {
	ActiveTools(ctx context.Context, g *genkit.Genkit) ([]ai.Tool, error)
}

// Config contains all required parameters for the Orchestrator.
type Config struct {
	Genkit   *genkit.Genkit
	Renderer PromptRenderer
	Searcher Searcher
	Logger   log.Logger

	// Tools are the pre-registered admin tools. They are only offered to
	// privileged callers.
	Tools []ai.Tool

	// External provides MCP server tools for privileged callers. Optional.
	External ExternalTools

	ModelName     string  // provider-qualified, e.g. "googleai/gemini-2.5-flash"
	Temperature   float32 // generation temperature
	MaxTurns      int     // tool loop cap
	RetrievalTopK int     // results per collection

	// RetryConfig controls retry of transient generation failures.
	// Zero value uses defaults.
	RetryConfig RetryConfig

	// RateLimiter proactively limits generation attempts. Nil uses a
	// default of 10 req/s with burst 30.
	RateLimiter *rate.Limiter
}

func (cfg Config) validate() error {
	if cfg.Genkit == nil {
		return errors.New("genkit instance is required")
	}
	if cfg.Renderer == nil {
		return errors.New("prompt renderer is required")
	}
	if cfg.Searcher == nil {
		return errors.New("searcher is required")
	}
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.ModelName == "" {
		return errors.New("model name is required")
	}
	return nil
}

// Orchestrator runs exchanges. It is stateless across exchanges and safe
// for concurrent use.
type Orchestrator struct {
	g        *genkit.Genkit
	renderer PromptRenderer
	searcher Searcher
	external ExternalTools
	logger   log.Logger

	tools []ai.Tool

	modelName     string
	temperature   float32
	maxTurns      int
	retrievalTopK int

	retryConfig RetryConfig
	rateLimiter *rate.Limiter
}

// New creates an Orchestrator from cfg.
func New(cfg Config) (*Orchestrator, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	maxTurns := cfg.MaxTurns
	if maxTurns <= 0 {
		maxTurns = 5
	}
	topK := cfg.RetrievalTopK
	if topK <= 0 {
		topK = 4
	}
	retryConfig := cfg.RetryConfig
	if retryConfig.MaxRetries == 0 {
		retryConfig = DefaultRetryConfig()
	}
	rl := cfg.RateLimiter
	if rl == nil {
		rl = rate.NewLimiter(10, 30)
	}

	o := &Orchestrator{
		g:             cfg.Genkit,
		renderer:      cfg.Renderer,
		searcher:      cfg.Searcher,
		external:      cfg.External,
		logger:        cfg.Logger.With("component", "chat"),
		tools:         cfg.Tools,
		modelName:     cfg.ModelName,
		temperature:   cfg.Temperature,
		maxTurns:      maxTurns,
		retrievalTopK: topK,
		retryConfig:   retryConfig,
		rateLimiter:   rl,
	}

	o.logger.Info("chat orchestrator initialized",
		"model", o.modelName, "tools", len(o.tools), "max_turns", o.maxTurns)
	return o, nil
}

// Execute runs one exchange without streaming.
func (o *Orchestrator) Execute(ctx context.Context, history []*ai.Message, input string) (*Response, error) {
	return o.ExecuteStream(ctx, history, input, nil)
}

// ExecuteStream runs one exchange. The caller identity is read from ctx;
// it decides the prompt variant and whether tools are offered. If callback
// is non-nil, chunks stream through it as they arrive.
func (o *Orchestrator) ExecuteStream(ctx context.Context, history []*ai.Message, input string, callback StreamCallback) (*Response, error) {
	identity := auth.IdentityFromContext(ctx)
	privileged := identity.Privileged()

	system, err := o.renderSystem(ctx, identity)
	if err != nil {
		return nil, fmt.Errorf("rendering system prompt: %w", err)
	}

	docs := o.retrieveContext(ctx, input)

	toolRefs, tools := o.assembleTools(ctx, privileged)

	messages := copyMessages(history)
	messages = append(messages, ai.NewUserMessage(ai.NewTextPart(input)))

	var toolsCalled []string
	for turn := 0; turn < o.maxTurns; turn++ {
		opts := []ai.GenerateOption{
			ai.WithModelName(o.modelName),
			ai.WithSystem(system),
			ai.WithMessages(messages...),
			ai.WithConfig(&genai.GenerateContentConfig{
				Temperature: genai.Ptr(o.temperature),
			}),
		}
		if len(docs) > 0 {
			opts = append(opts, ai.WithDocs(docs...))
		}
		// Tool requests always come back here rather than being run by the
		// framework: privilege and availability checks happen in this loop.
		opts = append(opts, ai.WithReturnToolRequests(true))
		if len(toolRefs) > 0 {
			opts = append(opts, ai.WithTools(toolRefs...))
		}
		if callback != nil {
			opts = append(opts, ai.WithStreaming(ai.ModelStreamCallback(callback)))
		}

		resp, err := o.generateWithRetry(ctx, opts)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrExecutionFailed, err)
		}

		requests := resp.ToolRequests()
		if len(requests) == 0 {
			text := strings.TrimSpace(resp.Text())
			if text == "" {
				o.logger.Warn("model returned empty response", "turn", turn)
				text = emptyResponseMessage
			}
			return &Response{FinalText: text, ToolsCalled: toolsCalled}, nil
		}

		// Unprivileged callers never get tools offered, but the model can
		// still hallucinate a call. Fail closed with a fixed refusal.
		if !privileged {
			o.logger.Warn("tool request from unprivileged caller",
				"uid", identity.UID, "tools", requestNames(requests))
			return &Response{FinalText: permissionDeniedMessage, ToolsCalled: toolsCalled}, nil
		}

		responseParts, called, err := o.runTools(ctx, tools, requests)
		if err != nil {
			return nil, err
		}
		toolsCalled = append(toolsCalled, called...)

		messages = append(messages, resp.Message)
		messages = append(messages, ai.NewMessage(ai.RoleTool, nil, responseParts...))
	}

	return nil, fmt.Errorf("%w: %d", ErrToolLoopExceeded, o.maxTurns)
}

// renderSystem renders the role-specific system prompt.
func (o *Orchestrator) renderSystem(ctx context.Context, identity auth.Identity) (string, error) {
	rules := userToolRules
	if identity.Privileged() {
		rules = adminToolRules
	}
	return o.renderer.Render(ctx, prompt.Vars{
		CallerRole: identity.Role(),
		ToolRules:  rules,
	})
}

// retrieveContext queries both collections concurrently and returns FAQ
// matches ahead of knowledge chunks. Failures degrade to fewer documents.
func (o *Orchestrator) retrieveContext(ctx context.Context, query string) []*ai.Document {
	retrievalCtx, cancel := context.WithTimeout(ctx, retrievalTimeout)
	defer cancel()

	type result struct {
		collection string
		results    []vector.Result
		err        error
	}
	ch := make(chan result, 2)
	for _, collection := range []string{vector.CollectionFAQs, vector.CollectionKnowledge} {
		go func() {
			rs, err := o.searcher.Query(retrievalCtx, collection, query,
				vector.WithTopK(o.retrievalTopK))
			ch <- result{collection, rs, err}
		}()
	}

	byCollection := make(map[string][]vector.Result, 2)
	for range 2 {
		r := <-ch
		if r.err != nil {
			o.logger.Warn("context retrieval failed",
				"collection", r.collection, "error", r.err)
			continue
		}
		byCollection[r.collection] = r.results
	}

	var docs []*ai.Document
	for _, collection := range []string{vector.CollectionFAQs, vector.CollectionKnowledge} {
		for _, r := range byCollection[collection] {
			docs = append(docs, ai.DocumentFromText(r.Document.Content, map[string]any{
				"title":      r.Document.Title,
				"collection": collection,
			}))
		}
	}
	return docs
}

// assembleTools returns the tool refs to offer this exchange. Unprivileged
// callers get none. MCP tool lookup failure degrades to built-ins only.
func (o *Orchestrator) assembleTools(ctx context.Context, privileged bool) ([]ai.ToolRef, map[string]ai.Tool) {
	if !privileged {
		return nil, nil
	}

	tools := make(map[string]ai.Tool, len(o.tools))
	refs := make([]ai.ToolRef, 0, len(o.tools))
	for _, t := range o.tools {
		tools[t.Name()] = t
		refs = append(refs, t)
	}

	if o.external != nil {
		external, err := o.external.ActiveTools(ctx, o.g)
		if err != nil {
			o.logger.Warn("listing external tools failed", "error", err)
		} else {
			for _, t := range external {
				if _, exists := tools[t.Name()]; exists {
					continue
				}
				tools[t.Name()] = t
				refs = append(refs, t)
			}
		}
	}
	return refs, tools
}

// runTools executes the model's tool requests and returns the response
// parts in request order. Unknown tools and failed tool runs yield textual
// results the model can react to; only permission denials abort the
// exchange.
func (o *Orchestrator) runTools(ctx context.Context, tools map[string]ai.Tool, requests []*ai.ToolRequest) ([]*ai.Part, []string, error) {
	parts := make([]*ai.Part, 0, len(requests))
	called := make([]string, 0, len(requests))

	for _, req := range requests {
		tool, ok := tools[req.Name]
		if !ok {
			o.logger.Warn("model requested unknown tool", "tool", req.Name)
			parts = append(parts, ai.NewToolResponsePart(&ai.ToolResponse{
				Name:   req.Name,
				Ref:    req.Ref,
				Output: toolUnavailableMessage,
			}))
			continue
		}

		output, err := tool.RunRaw(ctx, req.Input)
		if err != nil {
			if errors.Is(err, auth.ErrPermissionDenied) {
				return nil, nil, err
			}
			o.logger.Warn("tool execution failed", "tool", req.Name, "error", err)
			parts = append(parts, ai.NewToolResponsePart(&ai.ToolResponse{
				Name:   req.Name,
				Ref:    req.Ref,
				Output: fmt.Sprintf("Tool %s failed: %v", req.Name, err),
			}))
			continue
		}

		o.logger.Info("tool executed", "tool", req.Name)
		called = append(called, req.Name)
		parts = append(parts, ai.NewToolResponsePart(&ai.ToolResponse{
			Name:   req.Name,
			Ref:    req.Ref,
			Output: output,
		}))
	}
	return parts, called, nil
}

func requestNames(requests []*ai.ToolRequest) []string {
	names := make([]string, len(requests))
	for i, r := range requests {
		names[i] = r.Name
	}
	return names
}

// copyMessages copies messages and their part slices so concurrent
// exchanges sharing history cannot race on in-place mutation.
func copyMessages(msgs []*ai.Message) []*ai.Message {
	if msgs == nil {
		return nil
	}
	copied := make([]*ai.Message, len(msgs))
	for i, msg := range msgs {
		parts := make([]*ai.Part, len(msg.Content))
		copy(parts, msg.Content)
		copied[i] = &ai.Message{
			Role:     msg.Role,
			Content:  parts,
			Metadata: msg.Metadata,
		}
	}
	return copied
}
