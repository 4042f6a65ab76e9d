package tools

import (
	"context"
	"errors"
	"fmt"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/mcp"

	"github.com/skigaudi/skibot/internal/config"
	"github.com/skigaudi/skibot/internal/log"
)

// ExternalHost manages connections to configured external MCP tool servers
// and exposes their tools alongside the built-in admin tools.
type ExternalHost struct {
	host    *mcp.MCPHost
	servers []string
	logger  log.Logger
}

// NewExternalHost connects to the configured MCP servers. An empty server
// list yields a host with no tools, which is the common case.
func NewExternalHost(g *genkit.Genkit, servers []config.MCPServerConfig, logger log.Logger) (*ExternalHost, error) {
	names := make([]string, len(servers))
	serverConfigs := make([]mcp.MCPServerConfig, len(servers))
	for i, s := range servers {
		names[i] = s.Name
		serverConfigs[i] = mcp.MCPServerConfig{
			Name: s.Name,
			Config: mcp.MCPClientOptions{
				Name: s.Name,
				Stdio: &mcp.StdioConfig{
					Command: s.Command,
					Args:    s.Args,
				},
			},
		}
	}

	host, err := mcp.NewMCPHost(g, mcp.MCPHostOptions{
		Name:       "skibot-mcp",
		Version:    "1.0.0",
		MCPServers: serverConfigs,
	})
	if err != nil {
		return nil, fmt.Errorf("creating MCP host: %w", err)
	}

	return &ExternalHost{
		host:    host,
		servers: names,
		logger:  logger.With("component", "mcp"),
	}, nil
}

// ActiveTools returns the tools of all connected MCP servers.
func (e *ExternalHost) ActiveTools(ctx context.Context, g *genkit.Genkit) ([]ai.Tool, error) {
	tools, err := e.host.GetActiveTools(ctx, g)
	if err != nil {
		return nil, fmt.Errorf("listing MCP tools: %w", err)
	}
	return tools, nil
}

// Disconnect drops the connection to one MCP server.
func (e *ExternalHost) Disconnect(ctx context.Context, serverName string) error {
	if err := e.host.Disconnect(ctx, serverName); err != nil {
		return fmt.Errorf("disconnecting MCP server %s: %w", serverName, err)
	}
	e.logger.Info("mcp server disconnected", "server", serverName)
	return nil
}

// Close disconnects every configured MCP server. Disconnect failures are
// collected so one stuck server does not leave the rest connected.
func (e *ExternalHost) Close(ctx context.Context) error {
	var errs []error
	for _, name := range e.servers {
		if err := e.Disconnect(ctx, name); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
