package api

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/skigaudi/skibot/internal/chunk"
	"github.com/skigaudi/skibot/internal/extract"
	"github.com/skigaudi/skibot/internal/faq"
	"github.com/skigaudi/skibot/internal/index"
	"github.com/skigaudi/skibot/internal/log"
	"github.com/skigaudi/skibot/internal/testutil"
	"github.com/skigaudi/skibot/internal/tools"
)

// fakeFAQStore is an in-memory tools.FAQStore.
type fakeFAQStore struct {
	mu      sync.Mutex
	entries map[string]faq.Entry
	nextID  int
}

func newFakeFAQStore() *fakeFAQStore {
	return &fakeFAQStore{entries: make(map[string]faq.Entry)}
}

func (s *fakeFAQStore) Create(_ context.Context, question, answer string) (faq.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if question == "" || answer == "" {
		return faq.Entry{}, faq.ErrInvalidInput
	}
	s.nextID++
	e := faq.Entry{ID: fmt.Sprintf("faq-%d", s.nextID), Question: question, Answer: answer}
	s.entries[e.ID] = e
	return e, nil
}

func (s *fakeFAQStore) Update(_ context.Context, id, question, answer string) (faq.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return faq.Entry{}, fmt.Errorf("%w: %s", faq.ErrNotFound, id)
	}
	if question != "" {
		e.Question = question
	}
	if answer != "" {
		e.Answer = answer
	}
	s.entries[id] = e
	return e, nil
}

func (s *fakeFAQStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[id]; !ok {
		return fmt.Errorf("%w: %s", faq.ErrNotFound, id)
	}
	delete(s.entries, id)
	return nil
}

func (s *fakeFAQStore) List(_ context.Context, _ int) ([]faq.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]faq.Entry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *fakeFAQStore) Search(_ context.Context, query string, _ int) ([]faq.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []faq.Entry
	for _, e := range s.entries {
		if strings.Contains(e.Question, query) || strings.Contains(e.Answer, query) {
			out = append(out, e)
		}
	}
	return out, nil
}

// fakePromptSetter records stored prompts.
type fakePromptSetter struct {
	mu    sync.Mutex
	texts []string
}

func (s *fakePromptSetter) Set(_ context.Context, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.texts = append(s.texts, text)
	return nil
}

// newTestServer wires a server over in-memory stores. The returned handler
// has the full middleware chain applied.
func newTestServer(t *testing.T) (http.Handler, *fakeFAQStore) {
	t.Helper()

	faqs := newFakeFAQStore()
	memory := testutil.NewMemoryIndex(testutil.NewMockEmbedder(16))
	splitter, err := chunk.New(chunk.Config{MinChars: 20, MaxChars: 80, Overlap: 0})
	if err != nil {
		t.Fatal(err)
	}
	indexer := index.New(memory, extract.New(log.NewNop()), splitter, log.NewNop())
	handler := tools.NewHandler(faqs, indexer, memory, &fakePromptSetter{}, nil, log.NewNop())

	srv, err := NewServer(Config{
		Tools:          handler,
		Indexer:        indexer,
		Logger:         log.NewNop(),
		CORSOrigins:    []string{"http://localhost:4200"},
		MaxUploadBytes: 1 << 20,
	})
	if err != nil {
		t.Fatal(err)
	}
	return srv.Handler(), faqs
}

// asAdmin sets the identity headers of a privileged caller.
func asAdmin(r *http.Request) *http.Request {
	r.Header.Set(HeaderAuthUID, "admin-1")
	r.Header.Set(HeaderAuthProvider, "password")
	return r
}

// asUser sets the identity headers of an unprivileged caller.
func asUser(r *http.Request) *http.Request {
	r.Header.Set(HeaderAuthUID, "user-1")
	r.Header.Set(HeaderAuthProvider, "google.com")
	return r
}

func TestServer_Health(t *testing.T) {
	h, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("GET /health = %d, want 200", rec.Code)
	}

	// No database pool is configured, so readiness must fail.
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("GET /ready = %d, want 503", rec.Code)
	}
}

func TestServer_CORSPreflight(t *testing.T) {
	h, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/faqs", nil)
	req.Header.Set("Origin", "http://localhost:4200")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("preflight = %d, want 204", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:4200" {
		t.Errorf("allow-origin = %q", got)
	}
}

func TestServer_CORSUnknownOrigin(t *testing.T) {
	h, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://evil.example")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("allow-origin = %q, want empty", got)
	}
}

func TestServer_MutationsRequirePrivilege(t *testing.T) {
	h, _ := newTestServer(t)

	requests := []*http.Request{
		httptest.NewRequest(http.MethodPost, "/api/faqs", strings.NewReader(`{"question":"q","answer":"a"}`)),
		httptest.NewRequest(http.MethodDelete, "/api/faqs/faq-1", nil),
		httptest.NewRequest(http.MethodGet, "/api/knowledge", nil),
		httptest.NewRequest(http.MethodDelete, "/api/knowledge/guide.pdf", nil),
		httptest.NewRequest(http.MethodPut, "/api/prompt", strings.NewReader(`{"prompt":"x"}`)),
	}
	for _, req := range requests {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, asUser(req))
		if rec.Code != http.StatusForbidden {
			t.Errorf("%s %s as user = %d, want 403", req.Method, req.URL.Path, rec.Code)
		}
	}
}

func TestNewServer_Validation(t *testing.T) {
	if _, err := NewServer(Config{Logger: log.NewNop()}); err == nil {
		t.Error("NewServer without tools handler must fail")
	}
}
