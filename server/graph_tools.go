package server

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hupe1980/toolmesh/core"
	"github.com/hupe1980/toolmesh/engine"
)

// CreateEntitiesTool handles the create_entities MCP tool.
type CreateEntitiesTool struct {
	mesh *engine.Mesh
}

// Definition returns the MCP tool definition for create_entities.
func (t *CreateEntitiesTool) Definition() mcp.Tool {
	return mcp.NewTool(engine.OpCreateEntities,
		mcp.WithDescription(
			"Create entities in the knowledge graph. Creating an entity whose "+
				"name already exists merges the observation lists instead of failing.",
		),
		mcp.WithArray("entities",
			mcp.Required(),
			mcp.Description("Entities to create or merge"),
			mcp.Items(map[string]any{
				"type": "object",
				"properties": map[string]any{
					"name":        map[string]any{"type": "string"},
					"entity_type": map[string]any{"type": "string"},
					"observations": map[string]any{
						"type":  "array",
						"items": map[string]any{"type": "string"},
					},
				},
				"required": []string{"name", "entity_type"},
			}),
		),
	)
}

// Handle processes the create_entities tool call.
func (t *CreateEntitiesTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args struct {
		Entities []core.Entity `json:"entities"`
	}
	if err := req.BindArguments(&args); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	entities, err := t.mesh.CreateEntities(ctx, args.Entities)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(entities)
}

// CreateRelationsTool handles the create_relations MCP tool.
type CreateRelationsTool struct {
	mesh *engine.Mesh
}

// Definition returns the MCP tool definition for create_relations.
func (t *CreateRelationsTool) Definition() mcp.Tool {
	return mcp.NewTool(engine.OpCreateRelations,
		mcp.WithDescription(
			"Create directed, typed relations between existing entities. The "+
				"call is all-or-nothing: any unknown endpoint fails the whole batch. "+
				"Duplicate relations are ignored; the response lists only what was added.",
		),
		mcp.WithArray("relations",
			mcp.Required(),
			mcp.Description("Relations to create"),
			mcp.Items(map[string]any{
				"type": "object",
				"properties": map[string]any{
					"from":          map[string]any{"type": "string"},
					"to":            map[string]any{"type": "string"},
					"relation_type": map[string]any{"type": "string"},
				},
				"required": []string{"from", "to", "relation_type"},
			}),
		),
	)
}

// Handle processes the create_relations tool call.
func (t *CreateRelationsTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args struct {
		Relations []core.Relation `json:"relations"`
	}
	if err := req.BindArguments(&args); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	added, err := t.mesh.CreateRelations(ctx, args.Relations)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]any{
		"added": added,
	})
}

// SearchNodesTool handles the search_nodes MCP tool.
type SearchNodesTool struct {
	mesh *engine.Mesh
}

// Definition returns the MCP tool definition for search_nodes.
func (t *SearchNodesTool) Definition() mcp.Tool {
	return mcp.NewTool(engine.OpSearchNodes,
		mcp.WithDescription(
			"Search graph entities by case-insensitive substring over name, "+
				"type and observations. Returns the matching entities plus every "+
				"relation whose both endpoints matched.",
		),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Substring to search for"),
		),
	)
}

// Handle processes the search_nodes tool call.
func (t *SearchNodesTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	view, err := t.mesh.SearchNodes(ctx, req.GetString("query", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(view)
}

// ReadGraphTool handles the read_graph MCP tool.
type ReadGraphTool struct {
	mesh *engine.Mesh
}

// Definition returns the MCP tool definition for read_graph.
func (t *ReadGraphTool) Definition() mcp.Tool {
	return mcp.NewTool(engine.OpReadGraph,
		mcp.WithDescription("Return a point-in-time snapshot of the whole knowledge graph."),
	)
}

// Handle processes the read_graph tool call.
func (t *ReadGraphTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	snap, err := t.mesh.ReadGraph(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(snap.View())
}
