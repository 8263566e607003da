package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"

	"github.com/hupe1980/toolmesh/core"
)

// SQLiteStore is a durable core.MemoryStore backed by a single SQLite file.
// SQLite serializes writers, which covers the per-identifier write
// serialization the contract requires; multi-statement operations (merge)
// run inside a transaction. Ranking happens in Go over candidate rows so the
// ordering is byte-identical with InMemoryStore.
type SQLiteStore struct {
	db *sql.DB

	entropyMu sync.Mutex
	entropy   *rand.Rand
}

var _ core.MemoryStore = (*SQLiteStore)(nil)

// NewSQLiteStore opens or creates the database at the given path and runs
// schema migration.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	s := &SQLiteStore{
		db:      db,
		entropy: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS memory_records (
		id             TEXT PRIMARY KEY,
		title          TEXT NOT NULL,
		content        TEXT NOT NULL,
		tags           TEXT NOT NULL DEFAULT '[]',
		corpus_names   TEXT NOT NULL DEFAULT '[]',
		user_triggered INTEGER NOT NULL DEFAULT 0,
		created_at     TEXT NOT NULL,
		updated_at     TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_memory_records_updated ON memory_records(updated_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) newID() string {
	s.entropyMu.Lock()
	defer s.entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), s.entropy).String()
}

// Create assigns an identifier and timestamps and inserts the record.
func (s *SQLiteStore) Create(ctx context.Context, rec core.MemoryRecord) (core.MemoryRecord, error) {
	now := time.Now().UTC()
	rec.ID = s.newID()
	rec.Tags = NormalizeTags(rec.Tags)
	rec.CreatedAt = now
	rec.UpdatedAt = now

	if err := s.insert(ctx, s.db, rec); err != nil {
		return core.MemoryRecord{}, fmt.Errorf("insert record: %w", err)
	}
	return rec, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *SQLiteStore) insert(ctx context.Context, db execer, rec core.MemoryRecord) error {
	tags, err := json.Marshal(rec.Tags)
	if err != nil {
		return err
	}
	corpus, err := json.Marshal(rec.CorpusNames)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO memory_records (id, title, content, tags, corpus_names, user_triggered, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Title, rec.Content, string(tags), string(corpus),
		boolToInt(rec.UserTriggered), rec.CreatedAt.Format(time.RFC3339Nano), rec.UpdatedAt.Format(time.RFC3339Nano),
	)
	return err
}

// Search loads all records, ranks them in Go and returns a lazy, restartable
// sequence over the resulting snapshot.
func (s *SQLiteStore) Search(ctx context.Context, query string, tags []string) (iter.Seq[core.MemoryRecord], error) {
	tags = NormalizeTags(tags)

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, content, tags, corpus_names, user_triggered, created_at, updated_at
		FROM memory_records`)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	var matched []core.MemoryRecord
	scores := make(map[string]score)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		sc := relevance(rec, query, tags)
		if !matches(sc, query, tags) {
			continue
		}
		matched = append(matched, rec)
		scores[rec.ID] = sc
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rank(matched, scores)

	return func(yield func(core.MemoryRecord) bool) {
		for _, rec := range matched {
			if !yield(cloneRecord(rec)) {
				return
			}
		}
	}, nil
}

// Update merges the fields present in the patch and bumps the update
// timestamp.
func (s *SQLiteStore) Update(ctx context.Context, id string, patch core.MemoryPatch) (core.MemoryRecord, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return core.MemoryRecord{}, err
	}
	defer tx.Rollback()

	rec, err := s.get(ctx, tx, id)
	if err != nil {
		return core.MemoryRecord{}, err
	}

	applyPatch(&rec, patch)
	rec.UpdatedAt = time.Now().UTC()

	if err := s.write(ctx, tx, rec); err != nil {
		return core.MemoryRecord{}, fmt.Errorf("update record: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return core.MemoryRecord{}, err
	}
	return rec, nil
}

// Merge folds idB's record into idA's (or vice versa; the earlier-created
// identifier survives) inside one transaction.
func (s *SQLiteStore) Merge(ctx context.Context, idA, idB string) (core.MemoryRecord, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return core.MemoryRecord{}, err
	}
	defer tx.Rollback()

	a, err := s.get(ctx, tx, idA)
	if err != nil {
		return core.MemoryRecord{}, err
	}
	b, err := s.get(ctx, tx, idB)
	if err != nil {
		return core.MemoryRecord{}, err
	}

	keep, other := mergeOrder(a, b)
	merged := mergeRecords(keep, other, time.Now().UTC())

	if err := s.write(ctx, tx, merged); err != nil {
		return core.MemoryRecord{}, fmt.Errorf("write merged record: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM memory_records WHERE id = ?`, other.ID); err != nil {
		return core.MemoryRecord{}, fmt.Errorf("delete merged record: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return core.MemoryRecord{}, err
	}
	return merged, nil
}

// Delete removes a record; absent identifiers are not an error.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM memory_records WHERE id = ?`, id)
	return err
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *SQLiteStore) get(ctx context.Context, db querier, id string) (core.MemoryRecord, error) {
	row := db.QueryRowContext(ctx, `
		SELECT id, title, content, tags, corpus_names, user_triggered, created_at, updated_at
		FROM memory_records WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.MemoryRecord{}, &core.NotFoundError{Resource: "memory record", ID: id}
	}
	if err != nil {
		return core.MemoryRecord{}, fmt.Errorf("load record %s: %w", id, err)
	}
	return rec, nil
}

func (s *SQLiteStore) write(ctx context.Context, db execer, rec core.MemoryRecord) error {
	tags, err := json.Marshal(rec.Tags)
	if err != nil {
		return err
	}
	corpus, err := json.Marshal(rec.CorpusNames)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `
		UPDATE memory_records
		SET title = ?, content = ?, tags = ?, corpus_names = ?, user_triggered = ?, updated_at = ?
		WHERE id = ?`,
		rec.Title, rec.Content, string(tags), string(corpus),
		boolToInt(rec.UserTriggered), rec.UpdatedAt.Format(time.RFC3339Nano), rec.ID,
	)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (core.MemoryRecord, error) {
	var (
		rec                  core.MemoryRecord
		tags, corpus         string
		userTriggered        int
		createdAt, updatedAt string
	)
	if err := row.Scan(&rec.ID, &rec.Title, &rec.Content, &tags, &corpus, &userTriggered, &createdAt, &updatedAt); err != nil {
		return core.MemoryRecord{}, err
	}
	if err := json.Unmarshal([]byte(tags), &rec.Tags); err != nil {
		return core.MemoryRecord{}, fmt.Errorf("decode tags: %w", err)
	}
	if err := json.Unmarshal([]byte(corpus), &rec.CorpusNames); err != nil {
		return core.MemoryRecord{}, fmt.Errorf("decode corpus names: %w", err)
	}
	rec.UserTriggered = userTriggered != 0

	var err error
	if rec.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return core.MemoryRecord{}, fmt.Errorf("parse created_at: %w", err)
	}
	if rec.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return core.MemoryRecord{}, fmt.Errorf("parse updated_at: %w", err)
	}
	return rec, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
