package app

import (
	"context"
	"testing"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/core/api"
	"google.golang.org/genai"

	"github.com/skigaudi/skibot/internal/vector"
)

// capturingEmbedder records the request it receives.
type capturingEmbedder struct {
	got *ai.EmbedRequest
}

func (c *capturingEmbedder) Name() string { return "fake/embedder" }

func (c *capturingEmbedder) Register(_ api.Registry) {}

func (c *capturingEmbedder) Embed(_ context.Context, req *ai.EmbedRequest) (*ai.EmbedResponse, error) {
	c.got = req
	return &ai.EmbedResponse{}, nil
}

func TestDimensionedEmbedder_InjectsDimensionality(t *testing.T) {
	inner := &capturingEmbedder{}
	e := &dimensionedEmbedder{inner: inner}

	_, err := e.Embed(context.Background(), &ai.EmbedRequest{
		Input: []*ai.Document{ai.DocumentFromText("hello", nil)},
	})
	if err != nil {
		t.Fatal(err)
	}

	opts, ok := inner.got.Options.(*genai.EmbedContentConfig)
	if !ok {
		t.Fatalf("options = %T, want *genai.EmbedContentConfig", inner.got.Options)
	}
	if opts.OutputDimensionality == nil || *opts.OutputDimensionality != int32(vector.VectorDimension) {
		t.Errorf("output dimensionality = %v, want %d", opts.OutputDimensionality, vector.VectorDimension)
	}
}

func TestDimensionedEmbedder_KeepsCallerOptions(t *testing.T) {
	inner := &capturingEmbedder{}
	e := &dimensionedEmbedder{inner: inner}

	want := &genai.EmbedContentConfig{OutputDimensionality: genai.Ptr(int32(256))}
	_, err := e.Embed(context.Background(), &ai.EmbedRequest{
		Input:   []*ai.Document{ai.DocumentFromText("hello", nil)},
		Options: want,
	})
	if err != nil {
		t.Fatal(err)
	}
	if inner.got.Options != want {
		t.Error("caller-provided options must pass through unchanged")
	}
}
