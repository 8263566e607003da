package memory

import (
	"context"
	"fmt"
	"iter"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/hupe1980/toolmesh/core"
)

// InMemoryStore is a process-local core.MemoryStore. All writes go through a
// single mutex, which satisfies the per-identifier write serialization the
// merge semantics require; reads take the shared lock and return copies.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[string]core.MemoryRecord
	entropy *rand.Rand
	now     func() time.Time
}

var _ core.MemoryStore = (*InMemoryStore)(nil)

// NewInMemoryStore creates an empty in-memory memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		records: make(map[string]core.MemoryRecord),
		entropy: rand.New(rand.NewSource(time.Now().UnixNano())),
		now:     time.Now,
	}
}

// newID generates a ULID. Caller must hold the write lock (the entropy
// source is not safe for concurrent use).
func (s *InMemoryStore) newID() string {
	return ulid.MustNew(ulid.Timestamp(s.now()), s.entropy).String()
}

// Create assigns an identifier and timestamps and stores the record.
func (s *InMemoryStore) Create(_ context.Context, rec core.MemoryRecord) (core.MemoryRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	rec.ID = s.newID()
	rec.Tags = NormalizeTags(rec.Tags)
	rec.CorpusNames = append([]string(nil), rec.CorpusNames...)
	rec.CreatedAt = now
	rec.UpdatedAt = now

	s.records[rec.ID] = rec
	return cloneRecord(rec), nil
}

// Search ranks the matching records against a snapshot taken now and returns
// a lazy, restartable sequence over that snapshot.
func (s *InMemoryStore) Search(_ context.Context, query string, tags []string) (iter.Seq[core.MemoryRecord], error) {
	tags = NormalizeTags(tags)

	s.mu.RLock()
	matched := make([]core.MemoryRecord, 0, len(s.records))
	scores := make(map[string]score, len(s.records))
	for _, rec := range s.records {
		sc := relevance(rec, query, tags)
		if !matches(sc, query, tags) {
			continue
		}
		matched = append(matched, cloneRecord(rec))
		scores[rec.ID] = sc
	}
	s.mu.RUnlock()

	rank(matched, scores)

	return func(yield func(core.MemoryRecord) bool) {
		for _, rec := range matched {
			if !yield(cloneRecord(rec)) {
				return
			}
		}
	}, nil
}

// Update merges the fields present in the patch into the record and bumps
// the update timestamp. Last writer wins under the store's write lock.
func (s *InMemoryStore) Update(_ context.Context, id string, patch core.MemoryPatch) (core.MemoryRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return core.MemoryRecord{}, &core.NotFoundError{Resource: "memory record", ID: id}
	}

	applyPatch(&rec, patch)
	rec.UpdatedAt = s.now().UTC()
	s.records[id] = rec
	return cloneRecord(rec), nil
}

// Merge folds two records into one: tags and corpus names are unioned,
// contents concatenated with a provenance separator, the earlier-created
// identifier is retained and the other record deleted.
func (s *InMemoryStore) Merge(_ context.Context, idA, idB string) (core.MemoryRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.records[idA]
	if !ok {
		return core.MemoryRecord{}, &core.NotFoundError{Resource: "memory record", ID: idA}
	}
	b, ok := s.records[idB]
	if !ok {
		return core.MemoryRecord{}, &core.NotFoundError{Resource: "memory record", ID: idB}
	}

	keep, other := mergeOrder(a, b)
	merged := mergeRecords(keep, other, s.now().UTC())

	s.records[merged.ID] = merged
	delete(s.records, other.ID)
	return cloneRecord(merged), nil
}

// Delete removes a record. Deleting an absent identifier is not an error.
func (s *InMemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, id)
	return nil
}

// Len returns the number of stored records.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// mergeOrder picks the record whose identifier survives a merge: the one
// created earlier, with the smaller id as tiebreak (ULIDs sort by time, so
// the two rules almost always agree).
func mergeOrder(a, b core.MemoryRecord) (keep, other core.MemoryRecord) {
	if a.CreatedAt.Before(b.CreatedAt) {
		return a, b
	}
	if b.CreatedAt.Before(a.CreatedAt) {
		return b, a
	}
	if a.ID < b.ID {
		return a, b
	}
	return b, a
}

func mergeRecords(keep, other core.MemoryRecord, now time.Time) core.MemoryRecord {
	keep.Tags = unionStrings(keep.Tags, other.Tags)
	keep.CorpusNames = unionStrings(keep.CorpusNames, other.CorpusNames)
	keep.Content = keep.Content + fmt.Sprintf(mergeSeparator, other.ID) + other.Content
	keep.UserTriggered = keep.UserTriggered || other.UserTriggered
	keep.UpdatedAt = now
	return keep
}
