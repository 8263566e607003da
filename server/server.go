// Package server exposes the mesh over MCP. This is the composition root:
// it builds the MCP server and registers one tool per client-facing
// operation. No orchestration logic lives here; every handler decodes its
// arguments, calls the mesh and renders the result.
package server

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/hupe1980/toolmesh/engine"
)

// Tool pairs an MCP tool definition with its handler.
type Tool interface {
	Definition() mcp.Tool
	Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error)
}

// New creates the MCP server with every mesh tool registered.
func New(mesh *engine.Mesh, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"toolmesh",
		version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(
			"Toolmesh routes memory, knowledge-graph and sequential-reasoning "+
				"operations to capability servers with retries and health tracking. "+
				"Use the memory tools for durable notes, the graph tools for typed "+
				"entities and relations, and sequential_thinking for step-by-step reasoning.",
		),
	)

	for _, t := range []Tool{
		&CreateMemoryTool{mesh: mesh},
		&SearchMemoryTool{mesh: mesh},
		&UpdateMemoryTool{mesh: mesh},
		&MergeMemoryTool{mesh: mesh},
		&DeleteMemoryTool{mesh: mesh},
		&CreateEntitiesTool{mesh: mesh},
		&CreateRelationsTool{mesh: mesh},
		&SearchNodesTool{mesh: mesh},
		&ReadGraphTool{mesh: mesh},
		&SequentialThinkingTool{mesh: mesh},
	} {
		s.AddTool(t.Definition(), t.Handle)
	}

	return s
}

// jsonResult renders v as indented JSON in a text tool result.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(b)), nil
}
