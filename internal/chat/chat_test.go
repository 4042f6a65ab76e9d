package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"golang.org/x/time/rate"

	"github.com/skigaudi/skibot/internal/auth"
	"github.com/skigaudi/skibot/internal/log"
	"github.com/skigaudi/skibot/internal/prompt"
	"github.com/skigaudi/skibot/internal/testutil"
	"github.com/skigaudi/skibot/internal/vector"
)

// fakeRenderer records the vars of the last render.
type fakeRenderer struct {
	mu   sync.Mutex
	vars prompt.Vars
}

func (f *fakeRenderer) Render(_ context.Context, vars prompt.Vars) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.vars = vars
	return "You are the festival assistant. Role: " + vars.CallerRole, nil
}

func (f *fakeRenderer) lastVars() prompt.Vars {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.vars
}

// failingSearcher simulates vector store trouble.
type failingSearcher struct{}

func (failingSearcher) Query(_ context.Context, _, _ string, _ ...vector.SearchOption) ([]vector.Result, error) {
	return nil, errors.New("connection refused")
}

type testEnv struct {
	g        *genkit.Genkit
	mock     *testutil.MockLLM
	renderer *fakeRenderer
	orch     *Orchestrator
	faqCalls *[]map[string]any
}

func newTestEnv(t *testing.T, searcher Searcher) *testEnv {
	t.Helper()
	ctx := context.Background()
	g := genkit.Init(ctx)

	mock := testutil.NewMockLLM("I don't have enough information.")
	mock.RegisterModel(g)

	var faqCalls []map[string]any
	createFaq := genkit.DefineTool(g, "createFaq", "Create a FAQ entry.",
		func(_ *ai.ToolContext, input map[string]any) (string, error) {
			faqCalls = append(faqCalls, input)
			return "FAQ created with ID faq-1.", nil
		})

	if searcher == nil {
		searcher = testutil.NewMemoryIndex(testutil.NewMockEmbedder(8))
	}
	renderer := &fakeRenderer{}

	orch, err := New(Config{
		Genkit:        g,
		Renderer:      renderer,
		Searcher:      searcher,
		Logger:        log.NewNop(),
		Tools:         []ai.Tool{createFaq},
		ModelName:     "mock/test-model",
		Temperature:   0.8,
		MaxTurns:      3,
		RetrievalTopK: 4,
		RateLimiter:   rate.NewLimiter(rate.Inf, 1),
	})
	if err != nil {
		t.Fatal(err)
	}

	return &testEnv{g: g, mock: mock, renderer: renderer, orch: orch, faqCalls: &faqCalls}
}

func adminContext() context.Context {
	return auth.ContextWithIdentity(context.Background(),
		auth.Identity{UID: "admin-1", Provider: auth.ProviderPassword})
}

func userContext() context.Context {
	return auth.ContextWithIdentity(context.Background(),
		auth.Identity{UID: "user-1", Provider: "google.com"})
}

func TestExecute_PlainAnswer(t *testing.T) {
	env := newTestEnv(t, nil)
	env.mock.AddResponse("parking", "Use the north lot.")

	resp, err := env.orch.Execute(userContext(), nil, "Where is the parking?")
	if err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if resp.FinalText != "Use the north lot." {
		t.Errorf("response = %q", resp.FinalText)
	}
	if len(resp.ToolsCalled) != 0 {
		t.Errorf("tools called = %v, want none", resp.ToolsCalled)
	}

	vars := env.renderer.lastVars()
	if vars.CallerRole != "user" {
		t.Errorf("caller role = %q, want user", vars.CallerRole)
	}
	if !strings.Contains(vars.ToolRules, "NEVER expose") {
		t.Errorf("tool rules = %q, want the non-admin block", vars.ToolRules)
	}
}

func TestExecute_AdminPromptVariant(t *testing.T) {
	env := newTestEnv(t, nil)
	env.mock.AddResponse("hello", "Hi there.")

	if _, err := env.orch.Execute(adminContext(), nil, "hello"); err != nil {
		t.Fatal(err)
	}

	vars := env.renderer.lastVars()
	if vars.CallerRole != "admin" {
		t.Errorf("caller role = %q, want admin", vars.CallerRole)
	}
	if !strings.Contains(vars.ToolRules, "ADMIN DIRECTIVE") {
		t.Errorf("tool rules = %q, want the admin block", vars.ToolRules)
	}
}

func TestExecuteStream(t *testing.T) {
	env := newTestEnv(t, nil)
	env.mock.AddResponse("lift", "Lifts open at nine.")

	var streamed strings.Builder
	resp, err := env.orch.ExecuteStream(userContext(), nil, "When do lifts open?",
		func(_ context.Context, chunk *ai.ModelResponseChunk) error {
			for _, part := range chunk.Content {
				streamed.WriteString(part.Text)
			}
			return nil
		})
	if err != nil {
		t.Fatalf("ExecuteStream() error: %v", err)
	}
	if streamed.String() != resp.FinalText {
		t.Errorf("streamed %q, final %q", streamed.String(), resp.FinalText)
	}
}

func TestExecute_ToolLoop(t *testing.T) {
	env := newTestEnv(t, nil)
	env.mock.AddToolResponse("create an faq", []*ai.ToolRequest{{
		Name:  "createFaq",
		Ref:   "call-1",
		Input: map[string]any{"question": "Where do I park?", "answer": "North lot."},
	}})
	env.mock.AddResponse("create an faq", "Done. The FAQ has been created.")

	resp, err := env.orch.Execute(adminContext(), nil, "Please create an FAQ about parking.")
	if err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if resp.FinalText != "Done. The FAQ has been created." {
		t.Errorf("response = %q", resp.FinalText)
	}
	if len(resp.ToolsCalled) != 1 || resp.ToolsCalled[0] != "createFaq" {
		t.Errorf("tools called = %v", resp.ToolsCalled)
	}
	if len(*env.faqCalls) != 1 {
		t.Fatalf("tool executed %d times, want 1", len(*env.faqCalls))
	}
	if got := (*env.faqCalls)[0]["question"]; got != "Where do I park?" {
		t.Errorf("tool input question = %v", got)
	}
}

func TestExecute_UnprivilegedToolRequest(t *testing.T) {
	env := newTestEnv(t, nil)
	env.mock.AddToolResponse("delete the faq", []*ai.ToolRequest{{
		Name:  "deleteFaq",
		Input: map[string]any{"id": "faq-1"},
	}})

	resp, err := env.orch.Execute(userContext(), nil, "delete the faq about parking")
	if err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if resp.FinalText != permissionDeniedMessage {
		t.Errorf("response = %q, want the refusal message", resp.FinalText)
	}
	if len(*env.faqCalls) != 0 {
		t.Error("no tool may execute for unprivileged callers")
	}
}

func TestExecute_UnknownTool(t *testing.T) {
	env := newTestEnv(t, nil)
	env.mock.AddToolResponse("reboot", []*ai.ToolRequest{{
		Name:  "rebootServer",
		Input: map[string]any{},
	}})
	env.mock.AddResponse("reboot", "That tool does not exist.")

	resp, err := env.orch.Execute(adminContext(), nil, "reboot the server")
	if err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if resp.FinalText != "That tool does not exist." {
		t.Errorf("response = %q", resp.FinalText)
	}
	if len(resp.ToolsCalled) != 0 {
		t.Errorf("tools called = %v, want none", resp.ToolsCalled)
	}
}

func TestExecute_ToolFailureRecovered(t *testing.T) {
	ctx := context.Background()
	g := genkit.Init(ctx)
	mock := testutil.NewMockLLM("fallback")
	mock.RegisterModel(g)

	updateFaq := genkit.DefineTool(g, "updateFaq", "Update a FAQ entry.",
		func(_ *ai.ToolContext, _ map[string]any) (string, error) {
			return "", errors.New("faq entry not found")
		})

	orch, err := New(Config{
		Genkit:      g,
		Renderer:    &fakeRenderer{},
		Searcher:    testutil.NewMemoryIndex(testutil.NewMockEmbedder(8)),
		Logger:      log.NewNop(),
		Tools:       []ai.Tool{updateFaq},
		ModelName:   "mock/test-model",
		MaxTurns:    3,
		RateLimiter: rate.NewLimiter(rate.Inf, 1),
	})
	if err != nil {
		t.Fatal(err)
	}

	mock.AddToolResponse("fix the faq", []*ai.ToolRequest{{
		Name:  "updateFaq",
		Ref:   "call-1",
		Input: map[string]any{"id": "missing"},
	}})
	mock.AddResponse("fix the faq", "That FAQ does not exist.")

	resp, err := orch.Execute(adminContext(), nil, "fix the faq about parking")
	if err != nil {
		t.Fatalf("a failing tool run must not abort the exchange: %v", err)
	}
	if resp.FinalText != "That FAQ does not exist." {
		t.Errorf("response = %q", resp.FinalText)
	}
	if len(resp.ToolsCalled) != 0 {
		t.Errorf("tools called = %v, failed runs must not count", resp.ToolsCalled)
	}
}

func TestExecute_ToolLoopExceeded(t *testing.T) {
	env := newTestEnv(t, nil)
	env.mock.AddRepeatingToolResponse("spiral", []*ai.ToolRequest{{
		Name:  "createFaq",
		Input: map[string]any{"question": "q", "answer": "a"},
	}})

	_, err := env.orch.Execute(adminContext(), nil, "spiral forever")
	if !errors.Is(err, ErrToolLoopExceeded) {
		t.Errorf("Execute() = %v, want ErrToolLoopExceeded", err)
	}
}

func TestExecute_RetrievalFailureDegrades(t *testing.T) {
	env := newTestEnv(t, failingSearcher{})
	env.mock.AddResponse("tickets", "Tickets are sold online.")

	resp, err := env.orch.Execute(userContext(), nil, "Where can I buy tickets?")
	if err != nil {
		t.Fatalf("Execute() must degrade on retrieval failure, got: %v", err)
	}
	if resp.FinalText != "Tickets are sold online." {
		t.Errorf("response = %q", resp.FinalText)
	}
}

func TestExecute_HistoryCarried(t *testing.T) {
	env := newTestEnv(t, nil)
	env.mock.AddResponse("follow-up", "As I said, nine o'clock.")

	history := []*ai.Message{
		ai.NewUserMessage(ai.NewTextPart("When do lifts open?")),
		ai.NewModelMessage(ai.NewTextPart("Nine o'clock.")),
	}
	resp, err := env.orch.Execute(userContext(), history, "follow-up: are you sure?")
	if err != nil {
		t.Fatal(err)
	}
	if resp.FinalText != "As I said, nine o'clock." {
		t.Errorf("response = %q", resp.FinalText)
	}
	if len(history) != 2 {
		t.Error("caller history must not be mutated")
	}
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing genkit", func(c *Config) { c.Genkit = nil }},
		{"missing renderer", func(c *Config) { c.Renderer = nil }},
		{"missing searcher", func(c *Config) { c.Searcher = nil }},
		{"missing logger", func(c *Config) { c.Logger = nil }},
		{"missing model", func(c *Config) { c.ModelName = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := genkit.Init(context.Background())
			cfg := Config{
				Genkit:    g,
				Renderer:  &fakeRenderer{},
				Searcher:  testutil.NewMemoryIndex(testutil.NewMockEmbedder(8)),
				Logger:    log.NewNop(),
				ModelName: "mock/test-model",
			}
			tt.mutate(&cfg)
			if _, err := New(cfg); err == nil {
				t.Error("New() must fail")
			}
		})
	}
}

func TestHistoryMessages(t *testing.T) {
	msgs, err := historyMessages([]HistoryMessage{
		{Role: "user", Text: "hi"},
		{Role: "model", Text: "hello"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 2 || msgs[0].Role != ai.RoleUser || msgs[1].Role != ai.RoleModel {
		t.Errorf("unexpected messages: %+v", msgs)
	}

	if _, err := historyMessages([]HistoryMessage{{Role: "system", Text: "x"}}); err == nil {
		t.Error("invalid role must fail")
	}
}

func TestRetryableError(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("429 Too Many Requests"), true},
		{errors.New("service UNAVAILABLE"), true},
		{errors.New("connection reset by peer"), true},
		{errors.New("invalid api key"), false},
		{errors.New("model not found"), false},
	}

	for _, tt := range tests {
		if got := retryableError(tt.err); got != tt.want {
			t.Errorf("retryableError(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}
