package core

import (
	"context"
	"iter"
	"time"
)

// MemoryRecord is a durable unit of persistent knowledge. The identifier is
// assigned by the store at creation and never changes; content, tags and
// corpus names are mutable only through Update or Merge.
type MemoryRecord struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Content       string    `json:"content"`
	Tags          []string  `json:"tags"`
	CorpusNames   []string  `json:"corpus_names"`
	UserTriggered bool      `json:"user_triggered"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// MemoryPatch describes a partial update of a MemoryRecord. Nil fields are
// left untouched; non-nil fields replace the stored value.
type MemoryPatch struct {
	Title         *string  `json:"title,omitempty"`
	Content       *string  `json:"content,omitempty"`
	Tags          []string `json:"tags,omitempty"`
	CorpusNames   []string `json:"corpus_names,omitempty"`
	UserTriggered *bool    `json:"user_triggered,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p MemoryPatch) Empty() bool {
	return p.Title == nil && p.Content == nil && p.Tags == nil && p.CorpusNames == nil && p.UserTriggered == nil
}

// MemoryStore defines persistence and retrieval for memory records.
//
// Search returns a finite, restartable sequence: the ranking is computed
// against a snapshot taken when Search is called, records are yielded
// lazily, and the sequence may be ranged over more than once. Ranking is
// deterministic: tag-overlap count first, text-match count second, ties
// broken by most recent update.
//
// Writes to the same identifier are serialized by the implementation so
// concurrent Update/Merge calls cannot lose state; the conflict rule under
// that serialization is last-writer-wins.
type MemoryStore interface {
	Create(ctx context.Context, rec MemoryRecord) (MemoryRecord, error)
	Search(ctx context.Context, query string, tags []string) (iter.Seq[MemoryRecord], error)
	Update(ctx context.Context, id string, patch MemoryPatch) (MemoryRecord, error)
	Merge(ctx context.Context, idA, idB string) (MemoryRecord, error)
	Delete(ctx context.Context, id string) error
}
