// Package toolmesh provides a high-level façade over the orchestration
// engine: a server registry with health tracking, a dispatch coordinator
// with retries and fallback, and built-in memory, knowledge-graph and
// sequential-reasoning capability servers. Most applications interact with
// this package by:
//  1. Creating a ToolMesh via New() (optionally overriding the default
//     in-memory stores and dispatch policy)
//  2. Registering external capability servers with their transports
//  3. Invoking operations through the typed helpers or the raw Invoke
//
// The façade delegates orchestration to engine.Mesh while keeping setup
// ergonomics concise. All defaults are safe for local development and
// testing; production deployments typically supply a durable memory store
// and a structured logger.
package toolmesh

import (
	"context"

	"github.com/hupe1980/toolmesh/core"
	"github.com/hupe1980/toolmesh/dispatch"
	"github.com/hupe1980/toolmesh/engine"
	"github.com/hupe1980/toolmesh/graph"
	"github.com/hupe1980/toolmesh/logging"
	"github.com/hupe1980/toolmesh/memory"
	"github.com/hupe1980/toolmesh/reasoning"
	"github.com/hupe1980/toolmesh/registry"
	"github.com/hupe1980/toolmesh/workflow"
)

// Options configures the ToolMesh instance.
type Options struct {
	// MemoryStore backs the built-in memory server (defaults to in-memory).
	MemoryStore core.MemoryStore

	// GraphStore backs the built-in graph server (defaults to in-memory).
	GraphStore core.GraphStore

	// Policy is the default dispatch policy for every invocation.
	Policy dispatch.Policy

	// Logger (defaults to NoOp logger if nil).
	Logger logging.Logger
}

// ToolMesh is the high-level façade aggregating the underlying mesh.
type ToolMesh struct {
	mesh *engine.Mesh
}

// New creates a new ToolMesh instance with optional overrides. Any unset
// store is initialized with an in-memory implementation.
func New(optFns ...func(o *Options)) *ToolMesh {
	opts := Options{
		MemoryStore: memory.NewInMemoryStore(),
		GraphStore:  graph.NewInMemoryStore(),
		Policy:      dispatch.DefaultPolicy(),
		Logger:      logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	m := engine.New(func(o *engine.Options) {
		o.MemoryStore = opts.MemoryStore
		o.GraphStore = opts.GraphStore
		o.Policy = opts.Policy
		o.Logger = opts.Logger
	})

	return &ToolMesh{mesh: m}
}

// Mesh exposes the underlying engine for advanced wiring.
func (t *ToolMesh) Mesh() *engine.Mesh { return t.mesh }

// RegisterServer adds an external capability server with its transport.
func (t *ToolMesh) RegisterServer(desc registry.ServerDescriptor, transport core.Transport) error {
	return t.mesh.RegisterServer(desc, transport)
}

// Invoke routes a raw operation to a server through the dispatch coordinator.
func (t *ToolMesh) Invoke(ctx context.Context, server, op string, payload core.Payload) (any, error) {
	return t.mesh.Invoke(ctx, server, op, payload)
}

// CreateMemory stores a new memory record.
func (t *ToolMesh) CreateMemory(ctx context.Context, rec core.MemoryRecord) (core.MemoryRecord, error) {
	return t.mesh.CreateMemory(ctx, rec)
}

// SearchMemory returns matching records ranked by relevance.
func (t *ToolMesh) SearchMemory(ctx context.Context, query string, tags []string) ([]core.MemoryRecord, error) {
	return t.mesh.SearchMemory(ctx, query, tags)
}

// UpdateMemory applies a partial update to an existing record.
func (t *ToolMesh) UpdateMemory(ctx context.Context, id string, patch core.MemoryPatch) (core.MemoryRecord, error) {
	return t.mesh.UpdateMemory(ctx, id, patch)
}

// MergeMemory combines two records, keeping the earlier identifier.
func (t *ToolMesh) MergeMemory(ctx context.Context, idA, idB string) (core.MemoryRecord, error) {
	return t.mesh.MergeMemory(ctx, idA, idB)
}

// DeleteMemory removes a record; unknown identifiers succeed.
func (t *ToolMesh) DeleteMemory(ctx context.Context, id string) error {
	return t.mesh.DeleteMemory(ctx, id)
}

// CreateEntities adds or merges knowledge-graph entities.
func (t *ToolMesh) CreateEntities(ctx context.Context, entities []core.Entity) ([]core.Entity, error) {
	return t.mesh.CreateEntities(ctx, entities)
}

// CreateRelations adds relations between existing entities.
func (t *ToolMesh) CreateRelations(ctx context.Context, relations []core.Relation) ([]core.Relation, error) {
	return t.mesh.CreateRelations(ctx, relations)
}

// SearchNodes returns the subgraph matching a query.
func (t *ToolMesh) SearchNodes(ctx context.Context, query string) (core.GraphView, error) {
	return t.mesh.SearchNodes(ctx, query)
}

// ReadGraph returns a snapshot of the whole knowledge graph.
func (t *ToolMesh) ReadGraph(ctx context.Context) (core.GraphSnapshot, error) {
	return t.mesh.ReadGraph(ctx)
}

// SequentialThinking submits a thought step on behalf of a session.
func (t *ToolMesh) SequentialThinking(ctx context.Context, sessionID string, thought reasoning.Thought) (reasoning.Ack, error) {
	return t.mesh.SequentialThinking(ctx, sessionID, thought)
}

// RunWorkflow executes steps sequentially with partial-failure semantics.
func (t *ToolMesh) RunWorkflow(ctx context.Context, steps []workflow.Step) (*workflow.Result, error) {
	return t.mesh.RunWorkflow(ctx, steps)
}
