// Package mcpserver connects the bridge to MCP servers and exposes their
// tools and resources as widget capabilities.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hostbridge/widgetkit/capability"
	"github.com/hostbridge/widgetkit/logging"
)

// ServerConfig describes how to reach one MCP server. Exactly one of
// Command and URL should be set.
type ServerConfig struct {
	// Command launches a stdio server as a subprocess.
	Command []string

	// Env adds environment entries for the subprocess.
	Env []string

	// URL connects to a streamable HTTP server.
	URL string
}

// session is the slice of the SDK client session the manager uses.
// *mcp.ClientSession satisfies it; tests substitute fakes.
type session interface {
	CallTool(ctx context.Context, params *mcp.CallToolParams) (*mcp.CallToolResult, error)
	ReadResource(ctx context.Context, params *mcp.ReadResourceParams) (*mcp.ReadResourceResult, error)
	Close() error
}

// Manager manages connections to multiple MCP servers, keyed by the
// server id widgets use in their delegated calls.
type Manager struct {
	impl   *mcp.Implementation
	logger *logging.Logger

	mu       sync.RWMutex
	sessions map[string]session
}

// NewManager creates an empty manager. logger may be nil.
func NewManager(hostName, hostVersion string, logger *logging.Logger) *Manager {
	if logger == nil {
		logger = logging.New()
	}
	return &Manager{
		impl:     &mcp.Implementation{Name: hostName, Version: hostVersion},
		logger:   logger.WithComponent("mcpserver"),
		sessions: make(map[string]session),
	}
}

// Connect establishes a session with an MCP server.
func (m *Manager) Connect(ctx context.Context, serverID string, cfg ServerConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.sessions[serverID]; exists {
		return fmt.Errorf("server %q already connected", serverID)
	}

	transport, err := buildTransport(cfg)
	if err != nil {
		return err
	}

	client := mcp.NewClient(m.impl, nil)
	sess, err := client.Connect(ctx, transport, nil)
	if err != nil {
		return fmt.Errorf("connect %q: %w", serverID, err)
	}

	m.sessions[serverID] = sess
	m.logger.Info("server connected", map[string]interface{}{"server": serverID})
	return nil
}

// buildTransport selects the SDK transport for a config.
func buildTransport(cfg ServerConfig) (mcp.Transport, error) {
	switch {
	case cfg.URL != "":
		return &mcp.StreamableClientTransport{Endpoint: cfg.URL}, nil
	case len(cfg.Command) > 0:
		cmd := exec.Command(cfg.Command[0], cfg.Command[1:]...)
		if len(cfg.Env) > 0 {
			cmd.Env = append(cmd.Environ(), cfg.Env...)
		}
		return &mcp.CommandTransport{Command: cmd}, nil
	default:
		return nil, fmt.Errorf("server config needs a command or url")
	}
}

// Disconnect closes the session with a server.
func (m *Manager) Disconnect(serverID string) error {
	m.mu.Lock()
	sess, ok := m.sessions[serverID]
	delete(m.sessions, serverID)
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("server %q not connected", serverID)
	}
	return sess.Close()
}

// Servers returns the ids of connected servers.
func (m *Manager) Servers() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	return ids
}

// Close disconnects every server.
func (m *Manager) Close() error {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]session)
	m.mu.Unlock()

	var lastErr error
	for _, sess := range sessions {
		if err := sess.Close(); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

func (m *Manager) session(serverID string) (session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sess, ok := m.sessions[serverID]
	if !ok {
		return nil, fmt.Errorf("server %q not connected", serverID)
	}
	return sess, nil
}

// ToolCaller returns the delegated tool-call capability backed by the
// connected servers.
func (m *Manager) ToolCaller() capability.ToolCaller {
	return func(ctx context.Context, serverID, toolName string, params json.RawMessage) (json.RawMessage, error) {
		sess, err := m.session(serverID)
		if err != nil {
			return nil, err
		}

		var args map[string]interface{}
		if len(params) > 0 {
			if err := json.Unmarshal(params, &args); err != nil {
				return nil, fmt.Errorf("tool arguments must be an object: %w", err)
			}
		}

		result, err := sess.CallTool(ctx, &mcp.CallToolParams{
			Name:      toolName,
			Arguments: args,
		})
		if err != nil {
			return nil, err
		}
		if result.IsError {
			return nil, fmt.Errorf("tool %q failed: %s", toolName, textOf(result))
		}
		return json.Marshal(result)
	}
}

// ResourceReader returns the delegated resource-read capability. The
// result keeps the SDK's outer envelope; the proxy layer unwraps it.
func (m *Manager) ResourceReader() capability.ResourceReader {
	return func(ctx context.Context, serverID, uri string) (json.RawMessage, error) {
		sess, err := m.session(serverID)
		if err != nil {
			return nil, err
		}

		result, err := sess.ReadResource(ctx, &mcp.ReadResourceParams{URI: uri})
		if err != nil {
			return nil, err
		}
		return json.Marshal(struct {
			Content *mcp.ReadResourceResult `json:"content"`
		}{Content: result})
	}
}

// textOf extracts the first text content from a tool result.
func textOf(result *mcp.CallToolResult) string {
	for _, c := range result.Content {
		if tc, ok := c.(*mcp.TextContent); ok {
			return tc.Text
		}
	}
	return "no error detail"
}
