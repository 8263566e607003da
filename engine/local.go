package engine

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hupe1980/toolmesh/core"
	"github.com/hupe1980/toolmesh/internal/util"
	"github.com/hupe1980/toolmesh/reasoning"
)

// Built-in server names and the operations they serve.
const (
	ServerMemory    = "memory"
	ServerGraph     = "graph"
	ServerReasoning = "reasoning"

	OpCreateMemory = "create_memory"
	OpSearchMemory = "search_memory"
	OpUpdateMemory = "update_memory"
	OpMergeMemory  = "merge_memory"
	OpDeleteMemory = "delete_memory"

	OpCreateEntities  = "create_entities"
	OpCreateRelations = "create_relations"
	OpSearchNodes     = "search_nodes"
	OpReadGraph       = "read_graph"

	OpSequentialThinking = "sequential_thinking"
)

type handlerFunc func(ctx context.Context, p core.Payload) (any, error)

type operation struct {
	schema util.Schema
	run    handlerFunc
}

// localTransport serves a built-in server in-process. It implements
// core.Transport so built-in invocations travel the normal dispatch path.
// Payloads are validated against the operation schema before the handler
// runs; schema violations surface as ValidationErrors and are never retried.
type localTransport struct {
	server string
	ops    map[string]operation
}

var _ core.Transport = (*localTransport)(nil)

func (t *localTransport) Call(ctx context.Context, _, op string, payload core.Payload) (any, error) {
	o, ok := t.ops[op]
	if !ok {
		return nil, fmt.Errorf("server %q: unsupported operation %q", t.server, op)
	}
	if payload == nil {
		payload = core.Payload{}
	}
	if err := util.ValidateParameters(payload, o.schema); err != nil {
		return nil, err
	}
	return o.run(ctx, payload)
}

func (t *localTransport) capabilities() []string {
	out := make([]string, 0, len(t.ops))
	for op := range t.ops {
		out = append(out, op)
	}
	return out
}

func memoryTransport(store core.MemoryStore) *localTransport {
	return &localTransport{
		server: ServerMemory,
		ops: map[string]operation{
			OpCreateMemory: {
				schema: util.Schema{
					Properties: map[string]string{
						"title":          "string",
						"content":        "string",
						"tags":           "array",
						"corpus_names":   "array",
						"user_triggered": "boolean",
					},
					Required: []string{"title", "content"},
				},
				run: func(ctx context.Context, p core.Payload) (any, error) {
					return store.Create(ctx, core.MemoryRecord{
						Title:         stringArg(p, "title"),
						Content:       stringArg(p, "content"),
						Tags:          stringsArg(p, "tags"),
						CorpusNames:   stringsArg(p, "corpus_names"),
						UserTriggered: boolArg(p, "user_triggered"),
					})
				},
			},
			OpSearchMemory: {
				schema: util.Schema{
					Properties: map[string]string{
						"query": "string",
						"tags":  "array",
					},
				},
				run: func(ctx context.Context, p core.Payload) (any, error) {
					seq, err := store.Search(ctx, stringArg(p, "query"), stringsArg(p, "tags"))
					if err != nil {
						return nil, err
					}
					results := []core.MemoryRecord{}
					for rec := range seq {
						results = append(results, rec)
					}
					return results, nil
				},
			},
			OpUpdateMemory: {
				schema: util.Schema{
					Properties: map[string]string{
						"id":             "string",
						"title":          "string",
						"content":        "string",
						"tags":           "array",
						"corpus_names":   "array",
						"user_triggered": "boolean",
					},
					Required: []string{"id"},
				},
				run: func(ctx context.Context, p core.Payload) (any, error) {
					return store.Update(ctx, stringArg(p, "id"), patchFrom(p))
				},
			},
			OpMergeMemory: {
				schema: util.Schema{
					Properties: map[string]string{
						"id_a": "string",
						"id_b": "string",
					},
					Required: []string{"id_a", "id_b"},
				},
				run: func(ctx context.Context, p core.Payload) (any, error) {
					return store.Merge(ctx, stringArg(p, "id_a"), stringArg(p, "id_b"))
				},
			},
			OpDeleteMemory: {
				schema: util.Schema{
					Properties: map[string]string{"id": "string"},
					Required:   []string{"id"},
				},
				run: func(ctx context.Context, p core.Payload) (any, error) {
					if err := store.Delete(ctx, stringArg(p, "id")); err != nil {
						return nil, err
					}
					return map[string]any{"deleted": true}, nil
				},
			},
		},
	}
}

func graphTransport(store core.GraphStore) *localTransport {
	return &localTransport{
		server: ServerGraph,
		ops: map[string]operation{
			OpCreateEntities: {
				schema: util.Schema{
					Properties: map[string]string{"entities": "array"},
					Required:   []string{"entities"},
				},
				run: func(ctx context.Context, p core.Payload) (any, error) {
					var entities []core.Entity
					if err := decodeArg(p, "entities", &entities); err != nil {
						return nil, err
					}
					return store.CreateEntities(ctx, entities)
				},
			},
			OpCreateRelations: {
				schema: util.Schema{
					Properties: map[string]string{"relations": "array"},
					Required:   []string{"relations"},
				},
				run: func(ctx context.Context, p core.Payload) (any, error) {
					var relations []core.Relation
					if err := decodeArg(p, "relations", &relations); err != nil {
						return nil, err
					}
					return store.CreateRelations(ctx, relations)
				},
			},
			OpSearchNodes: {
				schema: util.Schema{
					Properties: map[string]string{"query": "string"},
					Required:   []string{"query"},
				},
				run: func(ctx context.Context, p core.Payload) (any, error) {
					return store.SearchNodes(ctx, stringArg(p, "query"))
				},
			},
			OpReadGraph: {
				schema: util.Schema{},
				run: func(ctx context.Context, p core.Payload) (any, error) {
					return store.ReadGraph(ctx)
				},
			},
		},
	}
}

func reasoningTransport(eng *reasoning.Engine) *localTransport {
	return &localTransport{
		server: ServerReasoning,
		ops: map[string]operation{
			OpSequentialThinking: {
				schema: util.Schema{
					Properties: map[string]string{
						"session_id":          "string",
						"thought":             "string",
						"total_thoughts":      "number",
						"next_thought_needed": "boolean",
						"revises_thought":     "number",
						"branch_id":           "string",
						"branch_from_thought": "number",
					},
					Required: []string{"session_id", "thought"},
				},
				run: func(_ context.Context, p core.Payload) (any, error) {
					return eng.Submit(stringArg(p, "session_id"), reasoning.Thought{
						Text:              stringArg(p, "thought"),
						TotalExpected:     intArg(p, "total_thoughts"),
						MoreNeeded:        boolArg(p, "next_thought_needed"),
						RevisesThought:    intArg(p, "revises_thought"),
						BranchID:          stringArg(p, "branch_id"),
						BranchFromThought: intArg(p, "branch_from_thought"),
					})
				},
			},
		},
	}
}

func stringArg(p core.Payload, key string) string {
	s, _ := p[key].(string)
	return s
}

func boolArg(p core.Payload, key string) bool {
	b, _ := p[key].(bool)
	return b
}

// intArg accepts both native ints and the float64 that JSON decoding yields.
func intArg(p core.Payload, key string) int {
	switch v := p[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

func stringsArg(p core.Payload, key string) []string {
	switch v := p[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, e := range v {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// decodeArg converts a structured payload field into a typed value via a
// JSON round-trip, so both native typed slices and generic []any decode the
// same way. Shape mismatches surface as ValidationErrors.
func decodeArg(p core.Payload, key string, out any) error {
	raw, err := json.Marshal(p[key])
	if err != nil {
		return &util.ValidationError{Field: key, Value: p[key], Message: err.Error()}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &util.ValidationError{Field: key, Value: p[key], Message: err.Error()}
	}
	return nil
}

func patchFrom(p core.Payload) core.MemoryPatch {
	var patch core.MemoryPatch
	if v, ok := p["title"].(string); ok {
		patch.Title = &v
	}
	if v, ok := p["content"].(string); ok {
		patch.Content = &v
	}
	if _, ok := p["tags"]; ok {
		patch.Tags = stringsArg(p, "tags")
	}
	if _, ok := p["corpus_names"]; ok {
		patch.CorpusNames = stringsArg(p, "corpus_names")
	}
	if v, ok := p["user_triggered"].(bool); ok {
		patch.UserTriggered = &v
	}
	return patch
}
