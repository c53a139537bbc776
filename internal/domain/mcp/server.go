// Package mcp defines the domain model for extra MCP (Model Context
// Protocol) servers a client may attach to a session. The orchestrator
// passes them through to the agent runtime, optionally pre-checking
// connectivity first.
package mcp

import "fmt"

// Transport identifies how a server is reached.
type Transport string

const (
	TransportStdio Transport = "stdio"
	TransportHTTP  Transport = "http"
	TransportSSE   Transport = "sse"
)

// ServerDef describes one MCP server.
type ServerDef struct {
	Name      string            `json:"name" yaml:"name"`
	Transport Transport         `json:"transport" yaml:"transport"`
	Command   string            `json:"command,omitempty" yaml:"command,omitempty"`
	Args      []string          `json:"args,omitempty" yaml:"args,omitempty"`
	Env       map[string]string `json:"env,omitempty" yaml:"env,omitempty"`
	URL       string            `json:"url,omitempty" yaml:"url,omitempty"`
}

// Validate checks that the definition is complete for its transport.
func (d *ServerDef) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("mcp server: name is required")
	}
	switch d.Transport {
	case TransportStdio:
		if d.Command == "" {
			return fmt.Errorf("mcp server %s: command is required for stdio transport", d.Name)
		}
	case TransportHTTP, TransportSSE:
		if d.URL == "" {
			return fmt.Errorf("mcp server %s: url is required for %s transport", d.Name, d.Transport)
		}
	default:
		return fmt.Errorf("mcp server %s: invalid transport %q", d.Name, d.Transport)
	}
	return nil
}
