package server

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hupe1980/toolmesh/core"
	"github.com/hupe1980/toolmesh/engine"
)

// CreateMemoryTool handles the create_memory MCP tool.
type CreateMemoryTool struct {
	mesh *engine.Mesh
}

// Definition returns the MCP tool definition for create_memory.
func (t *CreateMemoryTool) Definition() mcp.Tool {
	return mcp.NewTool(engine.OpCreateMemory,
		mcp.WithDescription(
			"Store a durable memory record. Tags are normalized to lowercase "+
				"with underscores; the record identifier is assigned by the store.",
		),
		mcp.WithString("title",
			mcp.Required(),
			mcp.Description("Short, searchable title"),
		),
		mcp.WithString("content",
			mcp.Required(),
			mcp.Description("The memory content"),
		),
		mcp.WithArray("tags",
			mcp.Description("Classification tags"),
			mcp.WithStringItems(),
		),
		mcp.WithArray("corpus_names",
			mcp.Description("Source corpora this memory belongs to"),
			mcp.WithStringItems(),
		),
		mcp.WithBoolean("user_triggered",
			mcp.Description("Whether the user explicitly asked for this memory"),
		),
	)
}

// Handle processes the create_memory tool call.
func (t *CreateMemoryTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rec, err := t.mesh.CreateMemory(ctx, core.MemoryRecord{
		Title:         req.GetString("title", ""),
		Content:       req.GetString("content", ""),
		Tags:          req.GetStringSlice("tags", nil),
		CorpusNames:   req.GetStringSlice("corpus_names", nil),
		UserTriggered: req.GetBool("user_triggered", false),
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(rec)
}

// SearchMemoryTool handles the search_memory MCP tool.
type SearchMemoryTool struct {
	mesh *engine.Mesh
}

// Definition returns the MCP tool definition for search_memory.
func (t *SearchMemoryTool) Definition() mcp.Tool {
	return mcp.NewTool(engine.OpSearchMemory,
		mcp.WithDescription(
			"Search memory records by text and tags. Results are ranked by tag "+
				"overlap first, then text matches, then recency.",
		),
		mcp.WithString("query",
			mcp.Description("Text to match against title and content"),
		),
		mcp.WithArray("tags",
			mcp.Description("Tags to match (normalized before comparison)"),
			mcp.WithStringItems(),
		),
	)
}

// Handle processes the search_memory tool call.
func (t *SearchMemoryTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	records, err := t.mesh.SearchMemory(ctx,
		req.GetString("query", ""),
		req.GetStringSlice("tags", nil),
	)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]any{
		"count":   len(records),
		"results": records,
	})
}

// UpdateMemoryTool handles the update_memory MCP tool.
type UpdateMemoryTool struct {
	mesh *engine.Mesh
}

// Definition returns the MCP tool definition for update_memory.
func (t *UpdateMemoryTool) Definition() mcp.Tool {
	return mcp.NewTool(engine.OpUpdateMemory,
		mcp.WithDescription(
			"Apply a partial update to an existing memory record. Only the "+
				"provided fields change; the identifier never does.",
		),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("Identifier of the record to update"),
		),
		mcp.WithString("title", mcp.Description("New title")),
		mcp.WithString("content", mcp.Description("New content")),
		mcp.WithArray("tags",
			mcp.Description("Replacement tag list"),
			mcp.WithStringItems(),
		),
		mcp.WithArray("corpus_names",
			mcp.Description("Replacement corpus list"),
			mcp.WithStringItems(),
		),
		mcp.WithBoolean("user_triggered", mcp.Description("New user-triggered flag")),
	)
}

// Handle processes the update_memory tool call.
func (t *UpdateMemoryTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()

	var patch core.MemoryPatch
	if v, ok := args["title"].(string); ok {
		patch.Title = &v
	}
	if v, ok := args["content"].(string); ok {
		patch.Content = &v
	}
	if _, ok := args["tags"]; ok {
		patch.Tags = req.GetStringSlice("tags", []string{})
	}
	if _, ok := args["corpus_names"]; ok {
		patch.CorpusNames = req.GetStringSlice("corpus_names", []string{})
	}
	if v, ok := args["user_triggered"].(bool); ok {
		patch.UserTriggered = &v
	}

	rec, err := t.mesh.UpdateMemory(ctx, req.GetString("id", ""), patch)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(rec)
}

// MergeMemoryTool handles the merge_memory MCP tool.
type MergeMemoryTool struct {
	mesh *engine.Mesh
}

// Definition returns the MCP tool definition for merge_memory.
func (t *MergeMemoryTool) Definition() mcp.Tool {
	return mcp.NewTool(engine.OpMergeMemory,
		mcp.WithDescription(
			"Merge two memory records into one. The record with the earlier "+
				"identifier survives; contents are concatenated with a provenance "+
				"marker and tag lists are unioned.",
		),
		mcp.WithString("id_a",
			mcp.Required(),
			mcp.Description("First record identifier"),
		),
		mcp.WithString("id_b",
			mcp.Required(),
			mcp.Description("Second record identifier"),
		),
	)
}

// Handle processes the merge_memory tool call.
func (t *MergeMemoryTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rec, err := t.mesh.MergeMemory(ctx, req.GetString("id_a", ""), req.GetString("id_b", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(rec)
}

// DeleteMemoryTool handles the delete_memory MCP tool.
type DeleteMemoryTool struct {
	mesh *engine.Mesh
}

// Definition returns the MCP tool definition for delete_memory.
func (t *DeleteMemoryTool) Definition() mcp.Tool {
	return mcp.NewTool(engine.OpDeleteMemory,
		mcp.WithDescription(
			"Delete a memory record. Deleting an unknown identifier succeeds.",
		),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("Identifier of the record to delete"),
		),
	)
}

// Handle processes the delete_memory tool call.
func (t *DeleteMemoryTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("id", "")
	if err := t.mesh.DeleteMemory(ctx, id); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Memory %s deleted", id)), nil
}
