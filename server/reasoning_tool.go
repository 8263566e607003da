package server

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hupe1980/toolmesh/engine"
	"github.com/hupe1980/toolmesh/reasoning"
)

// SequentialThinkingTool handles the sequential_thinking MCP tool.
type SequentialThinkingTool struct {
	mesh *engine.Mesh
}

// Definition returns the MCP tool definition for sequential_thinking.
func (t *SequentialThinkingTool) Definition() mcp.Tool {
	return mcp.NewTool(engine.OpSequentialThinking,
		mcp.WithDescription(
			"Submit one step of a sequential reasoning chain. Thoughts are "+
				"numbered per session; earlier thoughts can be revised and "+
				"alternative branches forked from any visible thought. The total "+
				"count is an advisory estimate, not a cap.",
		),
		mcp.WithString("session_id",
			mcp.Required(),
			mcp.Description("Reasoning session identifier"),
		),
		mcp.WithString("thought",
			mcp.Required(),
			mcp.Description("The current thinking step"),
		),
		mcp.WithNumber("total_thoughts",
			mcp.Description("Estimated total thoughts needed (may grow, never shrinks)"),
		),
		mcp.WithBoolean("next_thought_needed",
			mcp.Description("Whether another thought step is expected"),
		),
		mcp.WithNumber("revises_thought",
			mcp.Description("Sequence number of the thought this one revises"),
		),
		mcp.WithString("branch_id",
			mcp.Description("Branch to continue; an unseen id forks a new branch"),
		),
		mcp.WithNumber("branch_from_thought",
			mcp.Description("Fork point when branch_id registers a new branch"),
		),
	)
}

// Handle processes the sequential_thinking tool call.
func (t *SequentialThinkingTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ack, err := t.mesh.SequentialThinking(ctx,
		req.GetString("session_id", ""),
		reasoning.Thought{
			Text:              req.GetString("thought", ""),
			TotalExpected:     int(req.GetFloat("total_thoughts", 0)),
			MoreNeeded:        req.GetBool("next_thought_needed", false),
			RevisesThought:    int(req.GetFloat("revises_thought", 0)),
			BranchID:          req.GetString("branch_id", ""),
			BranchFromThought: int(req.GetFloat("branch_from_thought", 0)),
		},
	)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(ack)
}
