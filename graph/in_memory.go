// Package graph implements the knowledge graph store: named entities with
// append-only observations and typed directed relations between them. It
// shares the memory store's concurrency rules (concurrent reads, serialized
// writes) but owns its own identity space of entity names.
package graph

import (
	"context"
	"strings"
	"sync"

	"github.com/hupe1980/toolmesh/core"
)

// relationKey identifies a (from, to, type) triple for idempotency checks.
type relationKey struct {
	from, to, typ string
}

// InMemoryStore is a process-local core.GraphStore. Entity insertion order
// is preserved so snapshots and query results are deterministic.
type InMemoryStore struct {
	mu        sync.RWMutex
	entities  map[string]*core.Entity
	order     []string
	relations []core.Relation
	seen      map[relationKey]struct{}
}

var _ core.GraphStore = (*InMemoryStore)(nil)

// NewInMemoryStore creates an empty in-memory graph store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		entities: make(map[string]*core.Entity),
		seen:     make(map[relationKey]struct{}),
	}
}

// CreateEntities creates each entity, or merges it into the existing entity
// of the same name: observations are concatenated, deduplicated by exact
// text, order preserved with the first occurrence winning. The returned
// slice holds the resulting stored entities in input order.
func (s *InMemoryStore) CreateEntities(_ context.Context, entities []core.Entity) ([]core.Entity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]core.Entity, 0, len(entities))
	for _, in := range entities {
		existing, ok := s.entities[in.Name]
		if !ok {
			e := &core.Entity{
				Name:         in.Name,
				Type:         in.Type,
				Observations: dedupObservations(nil, in.Observations),
			}
			s.entities[in.Name] = e
			s.order = append(s.order, in.Name)
			out = append(out, cloneEntity(e))
			continue
		}
		existing.Observations = dedupObservations(existing.Observations, in.Observations)
		out = append(out, cloneEntity(existing))
	}
	return out, nil
}

// CreateRelations validates every endpoint before creating anything; if any
// are missing the whole call fails with a DanglingReferenceError naming
// them. Duplicate triples are idempotent no-ops; only relations actually
// added are returned.
func (s *InMemoryStore) CreateRelations(_ context.Context, relations []core.Relation) ([]core.Relation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var missing []string
	missingSeen := make(map[string]struct{})
	for _, r := range relations {
		for _, name := range []string{r.From, r.To} {
			if _, ok := s.entities[name]; ok {
				continue
			}
			if _, dup := missingSeen[name]; dup {
				continue
			}
			missingSeen[name] = struct{}{}
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, &core.DanglingReferenceError{Missing: missing}
	}

	var added []core.Relation
	for _, r := range relations {
		key := relationKey{from: r.From, to: r.To, typ: r.Type}
		if _, dup := s.seen[key]; dup {
			continue
		}
		s.seen[key] = struct{}{}
		s.relations = append(s.relations, r)
		added = append(added, r)
	}
	return added, nil
}

// SearchNodes matches entities whose name, type or any observation contains
// the query as a case-insensitive substring, plus every relation whose
// endpoints are both in the match set.
func (s *InMemoryStore) SearchNodes(_ context.Context, query string) (core.GraphView, error) {
	q := strings.ToLower(query)

	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make(map[string]struct{})
	view := core.GraphView{Entities: []core.Entity{}, Relations: []core.Relation{}}
	for _, name := range s.order {
		e := s.entities[name]
		if entityMatches(e, q) {
			matched[name] = struct{}{}
			view.Entities = append(view.Entities, cloneEntity(e))
		}
	}
	for _, r := range s.relations {
		if _, okFrom := matched[r.From]; !okFrom {
			continue
		}
		if _, okTo := matched[r.To]; !okTo {
			continue
		}
		view.Relations = append(view.Relations, r)
	}
	return view, nil
}

// ReadGraph returns a point-in-time snapshot; later mutations are not
// reflected in an already-returned snapshot.
func (s *InMemoryStore) ReadGraph(_ context.Context) (core.GraphSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entities := make([]core.Entity, 0, len(s.order))
	for _, name := range s.order {
		entities = append(entities, cloneEntity(s.entities[name]))
	}
	relations := append([]core.Relation(nil), s.relations...)
	return core.NewGraphSnapshot(entities, relations), nil
}

func entityMatches(e *core.Entity, q string) bool {
	if q == "" {
		return true
	}
	if strings.Contains(strings.ToLower(e.Name), q) || strings.Contains(strings.ToLower(e.Type), q) {
		return true
	}
	for _, obs := range e.Observations {
		if strings.Contains(strings.ToLower(obs), q) {
			return true
		}
	}
	return false
}

func dedupObservations(existing, incoming []string) []string {
	out := append([]string(nil), existing...)
	seen := make(map[string]struct{}, len(existing))
	for _, obs := range existing {
		seen[obs] = struct{}{}
	}
	for _, obs := range incoming {
		if _, dup := seen[obs]; dup {
			continue
		}
		seen[obs] = struct{}{}
		out = append(out, obs)
	}
	return out
}

func cloneEntity(e *core.Entity) core.Entity {
	return core.Entity{
		Name:         e.Name,
		Type:         e.Type,
		Observations: append([]string(nil), e.Observations...),
	}
}
