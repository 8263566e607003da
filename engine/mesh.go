package engine

import (
	"context"
	"fmt"

	"github.com/hupe1980/toolmesh/core"
	"github.com/hupe1980/toolmesh/dispatch"
	"github.com/hupe1980/toolmesh/graph"
	"github.com/hupe1980/toolmesh/logging"
	"github.com/hupe1980/toolmesh/memory"
	"github.com/hupe1980/toolmesh/reasoning"
	"github.com/hupe1980/toolmesh/registry"
	"github.com/hupe1980/toolmesh/workflow"
)

// Options configures a Mesh instance using the functional options pattern.
type Options struct {
	// MemoryStore backs the built-in memory server.
	// Defaults to the in-memory implementation if not provided.
	MemoryStore core.MemoryStore

	// GraphStore backs the built-in graph server.
	// Defaults to the in-memory implementation if not provided.
	GraphStore core.GraphStore

	// Policy is the default dispatch policy applied to every invocation.
	// Defaults to dispatch.DefaultPolicy.
	Policy dispatch.Policy

	// Logger provides structured logging for all components.
	// Defaults to NoOpLogger if nil.
	Logger logging.Logger
}

// Mesh is the orchestration entry point. It owns the server registry, routes
// every invocation through the dispatch coordinator, and exposes typed
// helpers for the built-in capability servers.
//
// The Mesh is safe for concurrent use. Built-in servers are registered at
// construction; external servers can be registered and deregistered at any
// time.
type Mesh struct {
	registry   *registry.Registry
	dispatcher *dispatch.Coordinator
	reasoner   *reasoning.Engine
	workflows  *workflow.Coordinator
	policy     dispatch.Policy
	logger     logging.Logger
}

// New constructs a Mesh with the built-in memory, graph and reasoning
// servers registered and bound to local transports. All services have
// in-memory defaults; production deployments typically provide a durable
// MemoryStore and a custom Logger.
func New(optFns ...func(o *Options)) *Mesh {
	opts := Options{
		MemoryStore: memory.NewInMemoryStore(),
		GraphStore:  graph.NewInMemoryStore(),
		Policy:      dispatch.DefaultPolicy(),
		Logger:      logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	reg := registry.New(registry.WithLogger(opts.Logger))
	reasoner := reasoning.New(reasoning.WithLogger(opts.Logger))

	m := &Mesh{
		registry:   reg,
		dispatcher: dispatch.New(reg, dispatch.WithLogger(opts.Logger)),
		reasoner:   reasoner,
		workflows:  workflow.New(workflow.WithLogger(opts.Logger)),
		policy:     opts.Policy,
		logger:     opts.Logger,
	}

	m.registerBuiltin(memoryTransport(opts.MemoryStore))
	m.registerBuiltin(graphTransport(opts.GraphStore))
	m.registerBuiltin(reasoningTransport(reasoner))

	return m
}

// WithMemoryStore sets the store backing the built-in memory server.
func WithMemoryStore(s core.MemoryStore) func(o *Options) {
	return func(o *Options) { o.MemoryStore = s }
}

// WithGraphStore sets the store backing the built-in graph server.
func WithGraphStore(s core.GraphStore) func(o *Options) {
	return func(o *Options) { o.GraphStore = s }
}

// WithPolicy sets the default dispatch policy.
func WithPolicy(p dispatch.Policy) func(o *Options) {
	return func(o *Options) { o.Policy = p }
}

// WithLogger sets the logger shared by all mesh components.
func WithLogger(l logging.Logger) func(o *Options) {
	return func(o *Options) { o.Logger = l }
}

func (m *Mesh) registerBuiltin(t *localTransport) {
	desc := registry.ServerDescriptor{
		Name:         t.server,
		Endpoint:     "local://" + t.server,
		Capabilities: t.capabilities(),
	}
	// Built-in names are fixed and unique within a fresh registry.
	if err := m.registry.Register(desc); err != nil {
		panic(fmt.Sprintf("engine: register built-in server %q: %v", t.server, err))
	}
	m.dispatcher.Bind(t.server, t)
}

// RegisterServer adds an external capability server. The descriptor is
// validated before registration; a nil transport is allowed and surfaces as
// a dispatch failure when the server is first invoked.
func (m *Mesh) RegisterServer(desc registry.ServerDescriptor, t core.Transport) error {
	if err := m.registry.Register(desc); err != nil {
		return err
	}
	if t != nil {
		m.dispatcher.Bind(desc.Name, t)
	}
	return nil
}

// DeregisterServer removes a server. Unknown names are ignored.
func (m *Mesh) DeregisterServer(name string) {
	m.registry.Deregister(name)
}

// Servers returns descriptor copies of every registered server, including
// current health, sorted by name.
func (m *Mesh) Servers() []registry.ServerDescriptor {
	return m.registry.Snapshot()
}

// Health returns the current health state of a server.
func (m *Mesh) Health(name string) (registry.HealthState, error) {
	return m.registry.Health(name)
}

// Invoke routes a raw operation to a server through the dispatch
// coordinator using the mesh's default policy.
func (m *Mesh) Invoke(ctx context.Context, server, op string, payload core.Payload) (any, error) {
	return m.dispatcher.Invoke(ctx, server, op, payload, m.policy)
}

// InvokeWith routes a raw operation using a caller-supplied policy, for
// invocations that need their own retry budget or fallback server.
func (m *Mesh) InvokeWith(ctx context.Context, server, op string, payload core.Payload, policy dispatch.Policy) (any, error) {
	return m.dispatcher.Invoke(ctx, server, op, payload, policy)
}

// CreateMemory stores a new memory record. The identifier and timestamps of
// the returned record are assigned by the store.
func (m *Mesh) CreateMemory(ctx context.Context, rec core.MemoryRecord) (core.MemoryRecord, error) {
	res, err := m.Invoke(ctx, ServerMemory, OpCreateMemory, core.Payload{
		"title":          rec.Title,
		"content":        rec.Content,
		"tags":           rec.Tags,
		"corpus_names":   rec.CorpusNames,
		"user_triggered": rec.UserTriggered,
	})
	if err != nil {
		return core.MemoryRecord{}, err
	}
	return asRecord(res)
}

// SearchMemory returns all matching records ranked by relevance.
func (m *Mesh) SearchMemory(ctx context.Context, query string, tags []string) ([]core.MemoryRecord, error) {
	res, err := m.Invoke(ctx, ServerMemory, OpSearchMemory, core.Payload{
		"query": query,
		"tags":  tags,
	})
	if err != nil {
		return nil, err
	}
	records, ok := res.([]core.MemoryRecord)
	if !ok {
		return nil, fmt.Errorf("engine: unexpected %s result type %T", OpSearchMemory, res)
	}
	return records, nil
}

// UpdateMemory applies a partial update to an existing record.
func (m *Mesh) UpdateMemory(ctx context.Context, id string, patch core.MemoryPatch) (core.MemoryRecord, error) {
	payload := core.Payload{"id": id}
	if patch.Title != nil {
		payload["title"] = *patch.Title
	}
	if patch.Content != nil {
		payload["content"] = *patch.Content
	}
	if patch.Tags != nil {
		payload["tags"] = patch.Tags
	}
	if patch.CorpusNames != nil {
		payload["corpus_names"] = patch.CorpusNames
	}
	if patch.UserTriggered != nil {
		payload["user_triggered"] = *patch.UserTriggered
	}
	res, err := m.Invoke(ctx, ServerMemory, OpUpdateMemory, payload)
	if err != nil {
		return core.MemoryRecord{}, err
	}
	return asRecord(res)
}

// MergeMemory combines two records into one, keeping the earlier identifier.
func (m *Mesh) MergeMemory(ctx context.Context, idA, idB string) (core.MemoryRecord, error) {
	res, err := m.Invoke(ctx, ServerMemory, OpMergeMemory, core.Payload{"id_a": idA, "id_b": idB})
	if err != nil {
		return core.MemoryRecord{}, err
	}
	return asRecord(res)
}

// DeleteMemory removes a record. Deleting an absent identifier succeeds.
func (m *Mesh) DeleteMemory(ctx context.Context, id string) error {
	_, err := m.Invoke(ctx, ServerMemory, OpDeleteMemory, core.Payload{"id": id})
	return err
}

// CreateEntities adds or merges entities in the knowledge graph.
func (m *Mesh) CreateEntities(ctx context.Context, entities []core.Entity) ([]core.Entity, error) {
	res, err := m.Invoke(ctx, ServerGraph, OpCreateEntities, core.Payload{"entities": entities})
	if err != nil {
		return nil, err
	}
	out, ok := res.([]core.Entity)
	if !ok {
		return nil, fmt.Errorf("engine: unexpected %s result type %T", OpCreateEntities, res)
	}
	return out, nil
}

// CreateRelations adds relations between existing entities. The call is
// all-or-nothing: a single dangling reference fails the whole batch.
func (m *Mesh) CreateRelations(ctx context.Context, relations []core.Relation) ([]core.Relation, error) {
	res, err := m.Invoke(ctx, ServerGraph, OpCreateRelations, core.Payload{"relations": relations})
	if err != nil {
		return nil, err
	}
	out, ok := res.([]core.Relation)
	if !ok {
		return nil, fmt.Errorf("engine: unexpected %s result type %T", OpCreateRelations, res)
	}
	return out, nil
}

// SearchNodes returns the subgraph matching a case-insensitive query.
func (m *Mesh) SearchNodes(ctx context.Context, query string) (core.GraphView, error) {
	res, err := m.Invoke(ctx, ServerGraph, OpSearchNodes, core.Payload{"query": query})
	if err != nil {
		return core.GraphView{}, err
	}
	view, ok := res.(core.GraphView)
	if !ok {
		return core.GraphView{}, fmt.Errorf("engine: unexpected %s result type %T", OpSearchNodes, res)
	}
	return view, nil
}

// ReadGraph returns a snapshot of the whole knowledge graph.
func (m *Mesh) ReadGraph(ctx context.Context) (core.GraphSnapshot, error) {
	res, err := m.Invoke(ctx, ServerGraph, OpReadGraph, core.Payload{})
	if err != nil {
		return core.GraphSnapshot{}, err
	}
	snap, ok := res.(core.GraphSnapshot)
	if !ok {
		return core.GraphSnapshot{}, fmt.Errorf("engine: unexpected %s result type %T", OpReadGraph, res)
	}
	return snap, nil
}

// SequentialThinking submits a thought to the reasoning engine on behalf of
// a session.
func (m *Mesh) SequentialThinking(ctx context.Context, sessionID string, t reasoning.Thought) (reasoning.Ack, error) {
	payload := core.Payload{
		"session_id":          sessionID,
		"thought":             t.Text,
		"total_thoughts":      t.TotalExpected,
		"next_thought_needed": t.MoreNeeded,
		"revises_thought":     t.RevisesThought,
		"branch_id":           t.BranchID,
		"branch_from_thought": t.BranchFromThought,
	}
	res, err := m.Invoke(ctx, ServerReasoning, OpSequentialThinking, payload)
	if err != nil {
		return reasoning.Ack{}, err
	}
	ack, ok := res.(reasoning.Ack)
	if !ok {
		return reasoning.Ack{}, fmt.Errorf("engine: unexpected %s result type %T", OpSequentialThinking, res)
	}
	return ack, nil
}

// CloseReasoningSession discards a reasoning session and all its branches.
func (m *Mesh) CloseReasoningSession(sessionID string) {
	m.reasoner.CloseSession(sessionID)
}

// RunWorkflow executes the steps sequentially with partial-failure
// semantics. Completed steps are never rolled back; a fatal failure returns
// a *workflow.PartialWorkflowFailure naming what finished.
func (m *Mesh) RunWorkflow(ctx context.Context, steps []workflow.Step) (*workflow.Result, error) {
	return m.workflows.Execute(ctx, steps)
}

func asRecord(res any) (core.MemoryRecord, error) {
	rec, ok := res.(core.MemoryRecord)
	if !ok {
		return core.MemoryRecord{}, fmt.Errorf("engine: unexpected memory result type %T", res)
	}
	return rec, nil
}
