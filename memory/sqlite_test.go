package memory

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hupe1980/toolmesh/core"
	"github.com/hupe1980/toolmesh/internal/testutil"
)

var _ core.MemoryStore = (*SQLiteStore)(nil)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "memory.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteStore_CreateAndSearch(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	rec, err := store.Create(ctx, testutil.NewRecordBuilder("User Preferences").
		Content("prefers TypeScript").
		Tags("Preferences", "tech stack").
		Corpus("user/project").
		Build())
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if rec.ID == "" || rec.Tags[0] != "preferences" {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if _, err := store.Create(ctx, core.MemoryRecord{Title: "Other", Content: "nothing relevant"}); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	got := collect(t, store, "preferences", []string{"preferences"})
	if len(got) != 1 || got[0].ID != rec.ID {
		t.Fatalf("unexpected search result: %#v", got)
	}
	if got[0].CorpusNames[0] != "user/project" || got[0].UserTriggered {
		t.Fatalf("round-trip mismatch: %+v", got[0])
	}
}

func TestSQLiteStore_SearchQueryMatchesTag(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	rec, err := store.Create(ctx, core.MemoryRecord{
		Title: "Alpha", Content: "nothing relevant", Tags: []string{"preferences"},
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	got := collect(t, store, "preferences", nil)
	if len(got) != 1 || got[0].ID != rec.ID {
		t.Fatalf("tag-only match should be returned: %#v", got)
	}
}

func TestSQLiteStore_UpdateAndNotFound(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	rec, err := store.Create(ctx, core.MemoryRecord{Title: "before", Content: "body"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	flag := true
	updated, err := store.Update(ctx, rec.ID, core.MemoryPatch{UserTriggered: &flag})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if !updated.UserTriggered || updated.Title != "before" {
		t.Fatalf("patch semantics broken: %+v", updated)
	}

	_, err = store.Update(ctx, "missing", core.MemoryPatch{UserTriggered: &flag})
	var notFound *core.NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestSQLiteStore_MergeAndDelete(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	first, err := store.Create(ctx, core.MemoryRecord{Title: "a", Content: "alpha", Tags: []string{"x"}})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	second, err := store.Create(ctx, core.MemoryRecord{Title: "b", Content: "beta", Tags: []string{"y"}})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	merged, err := store.Merge(ctx, second.ID, first.ID)
	if err != nil {
		t.Fatalf("merge failed: %v", err)
	}
	if merged.ID != first.ID {
		t.Fatalf("expected earlier identifier to survive, got %s", merged.ID)
	}
	if len(merged.Tags) != 2 || !strings.Contains(merged.Content, "beta") {
		t.Fatalf("merge content/tags wrong: %+v", merged)
	}

	// The other record is gone; deletes stay idempotent.
	if err := store.Delete(ctx, second.ID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if err := store.Delete(ctx, second.ID); err != nil {
		t.Fatalf("second delete must not error: %v", err)
	}

	got := collect(t, store, "", nil)
	if len(got) != 1 {
		t.Fatalf("expected a single surviving record, got %d", len(got))
	}
}
