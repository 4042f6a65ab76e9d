package tools

import (
	"context"
	"testing"

	"github.com/firebase/genkit/go/genkit"

	"github.com/skigaudi/skibot/internal/log"
)

func TestExternalHost_CloseWithoutServers(t *testing.T) {
	ctx := context.Background()
	g := genkit.Init(ctx)

	host, err := NewExternalHost(g, nil, log.NewNop())
	if err != nil {
		t.Fatalf("NewExternalHost() error: %v", err)
	}
	if err := host.Close(ctx); err != nil {
		t.Errorf("Close() error: %v", err)
	}
}
