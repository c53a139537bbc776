// Package mcp performs pre-flight connectivity checks against the MCP
// servers a client attaches to a session. A failed check is reported, never
// fatal: the runtime may still manage to reach the server later.
package mcp

import (
	"context"
	"fmt"
	"time"

	mcpclient "github.com/mark3labs/mcp-go/client"
	mcpprotocol "github.com/mark3labs/mcp-go/mcp"
	"golang.org/x/sync/errgroup"

	"github.com/Strob0t/AgentBridge/internal/domain/mcp"
)

// CheckResult is the outcome of a connectivity check against one server.
type CheckResult struct {
	Server        string   `json:"server"`
	Success       bool     `json:"success"`
	ServerName    string   `json:"server_name,omitempty"`
	ServerVersion string   `json:"server_version,omitempty"`
	Tools         []string `json:"tools,omitempty"`
	Error         string   `json:"error,omitempty"`
}

// Checker performs MCP handshakes with a bounded timeout per server.
type Checker struct {
	timeout time.Duration
}

// NewChecker creates a Checker. timeout bounds each individual handshake.
func NewChecker(timeout time.Duration) *Checker {
	return &Checker{timeout: timeout}
}

// CheckAll checks every definition concurrently and returns one result per
// server, in input order. Individual failures land in the result, not in an
// error; serial checks would cost up to len(defs) timeouts back to back.
func (c *Checker) CheckAll(ctx context.Context, defs []mcp.ServerDef) []CheckResult {
	out := make([]CheckResult, len(defs))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i := range defs {
		g.Go(func() error {
			out[i] = c.Check(ctx, &defs[i])
			return nil
		})
	}
	_ = g.Wait() // workers never return errors
	return out
}

// Check performs an Initialize + ListTools handshake against one server.
func (c *Checker) Check(ctx context.Context, def *mcp.ServerDef) CheckResult {
	res := CheckResult{Server: def.Name}

	if err := def.Validate(); err != nil {
		res.Error = err.Error()
		return res
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	client, err := createClient(def)
	if err != nil {
		res.Error = fmt.Sprintf("create client: %v", err)
		return res
	}
	defer client.Close() //nolint:errcheck // best-effort cleanup

	initReq := mcpprotocol.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcpprotocol.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcpprotocol.Implementation{
		Name:    "agentbridge",
		Version: "1.0.0",
	}
	initResult, err := client.Initialize(ctx, initReq)
	if err != nil {
		res.Error = fmt.Sprintf("initialize failed: %v", err)
		return res
	}

	res.Success = true
	res.ServerName = initResult.ServerInfo.Name
	res.ServerVersion = initResult.ServerInfo.Version

	toolsResult, err := client.ListTools(ctx, mcpprotocol.ListToolsRequest{})
	if err != nil {
		// Initialize succeeded but tools/list failed; partially successful.
		res.Error = fmt.Sprintf("tools/list failed: %v", err)
		return res
	}
	for i := range toolsResult.Tools {
		res.Tools = append(res.Tools, toolsResult.Tools[i].Name)
	}
	return res
}

// createClient builds an mcp-go client for the given server definition.
func createClient(def *mcp.ServerDef) (mcpclient.MCPClient, error) {
	switch def.Transport {
	case mcp.TransportStdio:
		return mcpclient.NewStdioMCPClient(def.Command, envMapToSlice(def.Env), def.Args...)
	case mcp.TransportSSE:
		return mcpclient.NewSSEMCPClient(def.URL)
	case mcp.TransportHTTP:
		return mcpclient.NewStreamableHttpClient(def.URL)
	default:
		return nil, fmt.Errorf("unsupported transport: %s", def.Transport)
	}
}

// envMapToSlice converts a map to the KEY=VALUE slice format expected by exec.Cmd.
func envMapToSlice(env map[string]string) []string {
	if len(env) == 0 {
		return nil
	}
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, k+"="+v)
	}
	return out
}
