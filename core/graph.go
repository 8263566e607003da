package core

import (
	"context"
	"iter"
)

// Entity is a named node of the knowledge graph. Names are unique within a
// graph; creating an entity whose name already exists merges the observation
// lists (exact-text dedup, first occurrence wins).
type Entity struct {
	Name         string   `json:"name"`
	Type         string   `json:"entity_type"`
	Observations []string `json:"observations"`
}

// Relation is a directed, typed edge between two entities identified by
// name. Both endpoints must exist when the relation is created. A reverse
// relation of a complementary type may coexist as a distinct record.
type Relation struct {
	From string `json:"from"`
	To   string `json:"to"`
	Type string `json:"relation_type"`
}

// GraphView is a materialized query result: the matching entities plus every
// relation whose endpoints are both in the entity set.
type GraphView struct {
	Entities  []Entity   `json:"entities"`
	Relations []Relation `json:"relations"`
}

// GraphSnapshot is a point-in-time copy of the whole graph. Iteration is
// lazy and restartable; mutations made after the snapshot was taken are not
// reflected in it.
type GraphSnapshot struct {
	entities  []Entity
	relations []Relation
}

// NewGraphSnapshot builds a snapshot over already-copied data. Callers must
// not retain or mutate the slices after handing them over.
func NewGraphSnapshot(entities []Entity, relations []Relation) GraphSnapshot {
	return GraphSnapshot{entities: entities, relations: relations}
}

// Entities yields the snapshot's entities in insertion order.
func (s GraphSnapshot) Entities() iter.Seq[Entity] {
	return func(yield func(Entity) bool) {
		for _, e := range s.entities {
			if !yield(e) {
				return
			}
		}
	}
}

// Relations yields the snapshot's relations in insertion order.
func (s GraphSnapshot) Relations() iter.Seq[Relation] {
	return func(yield func(Relation) bool) {
		for _, r := range s.relations {
			if !yield(r) {
				return
			}
		}
	}
}

// View materializes the snapshot into a GraphView.
func (s GraphSnapshot) View() GraphView {
	return GraphView{
		Entities:  append([]Entity(nil), s.entities...),
		Relations: append([]Relation(nil), s.relations...),
	}
}

// GraphStore defines the knowledge graph contract. It shares the memory
// store's durability model but owns its own identity space (entity names,
// not record ids).
type GraphStore interface {
	// CreateEntities creates or merges each entity and returns the resulting
	// stored entities in input order.
	CreateEntities(ctx context.Context, entities []Entity) ([]Entity, error)

	// CreateRelations validates every endpoint before creating anything; a
	// missing endpoint fails the whole call with DanglingReferenceError.
	// Duplicate (from, to, type) triples are idempotent no-ops. The returned
	// slice contains only the relations actually added.
	CreateRelations(ctx context.Context, relations []Relation) ([]Relation, error)

	// SearchNodes matches entities whose name, type or any observation
	// contains the query (case-insensitive substring).
	SearchNodes(ctx context.Context, query string) (GraphView, error)

	// ReadGraph returns a point-in-time snapshot of the full graph.
	ReadGraph(ctx context.Context) (GraphSnapshot, error)
}
