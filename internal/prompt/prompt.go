// Package prompt resolves and renders the system prompt for each exchange.
//
// Resolution order: the database override (set through the setSystemPrompt
// tool) wins; otherwise the packaged default template is used. The resolved
// text is cached briefly so a busy chat endpoint does not hit the database
// on every exchange, while edits still take effect within the TTL.
package prompt

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"text/template"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/skigaudi/skibot/internal/log"
)

var (
	// ErrMalformedPrompt indicates prompt text without valid front matter.
	ErrMalformedPrompt = errors.New("malformed prompt template")

	// ErrNoOverride indicates no database override is stored.
	ErrNoOverride = errors.New("no prompt override stored")

	// ErrNoDefault indicates the packaged default template is missing.
	ErrNoDefault = errors.New("default prompt template not found")
)

// cacheTTL bounds how stale a cached prompt resolution may be.
const cacheTTL = 30 * time.Second

// DefaultFileName is the packaged prompt template file name.
const DefaultFileName = "skibot.prompt"

// Vars are the substitution variables available to prompt templates.
type Vars struct {
	// CallerRole is "admin" or "user".
	CallerRole string

	// ToolRules is the privilege-dependent tool instruction block.
	ToolRules string
}

// OverrideStore persists the admin-set prompt override.
// Defined by the consumer; the pgx implementation lives in store.go and
// tests substitute an in-memory one.
type OverrideStore interface {
	// GetOverride returns the stored override text, or ErrNoOverride.
	GetOverride(ctx context.Context) (string, error)

	// SetOverride replaces the stored override text.
	SetOverride(ctx context.Context, text string) error
}

// Renderer resolves and renders the system prompt.
// Safe for concurrent use by multiple goroutines.
type Renderer struct {
	store     OverrideStore
	promptDir string
	logger    log.Logger

	mu        sync.Mutex
	cached    string
	cachedAt  time.Time
	haveCache bool
}

// NewRenderer creates a Renderer. promptDir holds the packaged default
// template; store may serve overrides from the database.
func NewRenderer(store OverrideStore, promptDir string, logger log.Logger) *Renderer {
	return &Renderer{
		store:     store,
		promptDir: promptDir,
		logger:    logger.With("component", "prompt"),
	}
}

// Validate checks that text is a well-formed prompt template: it must start
// with a "---" front matter fence, carry parseable YAML front matter, and
// have a non-empty body.
func Validate(text string) error {
	_, _, err := split(text)
	return err
}

// split separates front matter and body. The text must start with "---".
func split(text string) (frontMatter string, body string, err error) {
	trimmed := strings.TrimPrefix(text, "\uFEFF")
	if !strings.HasPrefix(trimmed, "---") {
		return "", "", fmt.Errorf("%w: must start with --- front matter", ErrMalformedPrompt)
	}

	rest := trimmed[3:]
	idx := strings.Index(rest, "\n---")
	if idx < 0 {
		return "", "", fmt.Errorf("%w: missing closing --- fence", ErrMalformedPrompt)
	}
	frontMatter = rest[:idx]
	body = rest[idx+4:]
	// Drop the remainder of the fence line.
	if nl := strings.IndexByte(body, '\n'); nl >= 0 {
		body = body[nl+1:]
	} else {
		body = ""
	}

	var meta map[string]any
	if err := yaml.Unmarshal([]byte(frontMatter), &meta); err != nil {
		return "", "", fmt.Errorf("%w: invalid front matter: %v", ErrMalformedPrompt, err)
	}
	if strings.TrimSpace(body) == "" {
		return "", "", fmt.Errorf("%w: empty body", ErrMalformedPrompt)
	}
	return frontMatter, body, nil
}

// Set validates and persists a prompt override, then drops the cache so the
// next exchange picks it up.
func (r *Renderer) Set(ctx context.Context, text string) error {
	if err := Validate(text); err != nil {
		return err
	}
	if err := r.store.SetOverride(ctx, text); err != nil {
		return fmt.Errorf("storing prompt override: %w", err)
	}

	r.mu.Lock()
	r.haveCache = false
	r.mu.Unlock()

	r.logger.Info("system prompt override updated")
	return nil
}

// Render resolves the active template and substitutes vars into its body.
func (r *Renderer) Render(ctx context.Context, vars Vars) (string, error) {
	text, err := r.resolve(ctx)
	if err != nil {
		return "", err
	}

	// A malformed override is a hard error; only a missing override or an
	// unreachable store resolves to the packaged default.
	_, body, err := split(text)
	if err != nil {
		return "", err
	}

	tmpl, err := template.New("system").Option("missingkey=zero").Parse(body)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedPrompt, err)
	}

	var out bytes.Buffer
	if err := tmpl.Execute(&out, vars); err != nil {
		return "", fmt.Errorf("rendering prompt: %w", err)
	}
	return strings.TrimSpace(out.String()), nil
}

// resolve returns the active prompt text, consulting the cache first.
func (r *Renderer) resolve(ctx context.Context) (string, error) {
	r.mu.Lock()
	if r.haveCache && time.Since(r.cachedAt) < cacheTTL {
		cached := r.cached
		r.mu.Unlock()
		return cached, nil
	}
	r.mu.Unlock()

	text, err := r.store.GetOverride(ctx)
	switch {
	case err == nil:
		// Override found.
	case errors.Is(err, ErrNoOverride):
		text, err = r.loadDefault()
		if err != nil {
			return "", err
		}
	default:
		// Database trouble: fall back to the packaged default so chat
		// stays available.
		r.logger.Warn("prompt override lookup failed, using default", "error", err)
		text, err = r.loadDefault()
		if err != nil {
			return "", err
		}
	}

	r.mu.Lock()
	r.cached = text
	r.cachedAt = time.Now()
	r.haveCache = true
	r.mu.Unlock()

	return text, nil
}

// loadDefault reads the packaged template, trying the configured directory
// and then the working directory.
func (r *Renderer) loadDefault() (string, error) {
	candidates := []string{
		filepath.Join(r.promptDir, DefaultFileName),
		filepath.Join("prompts", DefaultFileName),
	}
	for _, path := range candidates {
		data, err := os.ReadFile(path)
		if err == nil {
			return string(data), nil
		}
		if !os.IsNotExist(err) {
			return "", fmt.Errorf("reading default prompt %s: %w", path, err)
		}
	}
	return "", fmt.Errorf("%w: tried %v", ErrNoDefault, candidates)
}
