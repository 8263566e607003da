package testutil

import (
	"time"

	"github.com/hupe1980/toolmesh/core"
)

// RecordBuilder helps construct memory records with fluent chaining for
// tests. Example:
//
//	rec := NewRecordBuilder("note").Content("body").Tags("dispatch").Build()
type RecordBuilder struct {
	rec core.MemoryRecord
}

// NewRecordBuilder creates a builder for a record with the given title.
func NewRecordBuilder(title string) *RecordBuilder {
	now := time.Now().UTC()
	return &RecordBuilder{rec: core.MemoryRecord{
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}}
}

// ID sets the record identifier (chainable).
func (b *RecordBuilder) ID(id string) *RecordBuilder {
	b.rec.ID = id
	return b
}

// Content sets the record content (chainable).
func (b *RecordBuilder) Content(c string) *RecordBuilder {
	b.rec.Content = c
	return b
}

// Tags replaces the tag list (chainable).
func (b *RecordBuilder) Tags(tags ...string) *RecordBuilder {
	b.rec.Tags = tags
	return b
}

// Corpus replaces the corpus-name list (chainable).
func (b *RecordBuilder) Corpus(names ...string) *RecordBuilder {
	b.rec.CorpusNames = names
	return b
}

// UserTriggered marks the record as explicitly user-requested (chainable).
func (b *RecordBuilder) UserTriggered() *RecordBuilder {
	b.rec.UserTriggered = true
	return b
}

// Timestamps sets both creation and update time (chainable).
func (b *RecordBuilder) Timestamps(t time.Time) *RecordBuilder {
	b.rec.CreatedAt = t
	b.rec.UpdatedAt = t
	return b
}

// Build returns the record.
func (b *RecordBuilder) Build() core.MemoryRecord {
	return b.rec
}
