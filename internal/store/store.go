package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Store is a hierarchical document store on SQLite. Documents are JSON objects
// addressed by paths that alternate collection and document ids, e.g.
// users/u1/folders/AcronymMnemonics/reviewers/ac1.
type Store struct {
	db            *sql.DB
	maxTxAttempts int
}

// Option configures a Store.
type Option func(*Store)

// WithMaxTxAttempts sets how many times RunTransaction retries on lock contention.
func WithMaxTxAttempts(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxTxAttempts = n
		}
	}
}

// New creates a new Store and initialises the schema.
func New(db *sql.DB, opts ...Option) (*Store, error) {
	s := &Store{db: db, maxTxAttempts: 5}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// currentSchemaVersion is bumped whenever the schema changes.
// Add a new migration function in the migrations slice below.
const currentSchemaVersion = 1

func (s *Store) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`); err != nil {
		return fmt.Errorf("create schema_version table: %w", err)
	}

	var version int
	err := s.db.QueryRow(`SELECT version FROM schema_version LIMIT 1`).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		if _, err := s.db.Exec(`INSERT INTO schema_version (version) VALUES (0)`); err != nil {
			return fmt.Errorf("init schema version: %w", err)
		}
		version = 0
	} else if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	// Index 0 = migration from v0 to v1, etc.
	migrations := []func() error{
		s.migrateV1, // v0 → v1: documents table
	}
	if len(migrations) != currentSchemaVersion {
		return fmt.Errorf("schema version %d has %d migrations", currentSchemaVersion, len(migrations))
	}

	for i := version; i < len(migrations); i++ {
		if err := migrations[i](); err != nil {
			return fmt.Errorf("migration v%d→v%d: %w", i, i+1, err)
		}
		if _, err := s.db.Exec(`UPDATE schema_version SET version = ?`, i+1); err != nil {
			return fmt.Errorf("update schema version to %d: %w", i+1, err)
		}
	}
	return nil
}

// migrateV1 creates the documents table (v0 → v1). seq keeps insertion order
// inside a collection.
func (s *Store) migrateV1() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS documents (
		path       TEXT PRIMARY KEY,
		parent     TEXT NOT NULL,
		doc_id     TEXT NOT NULL,
		seq        INTEGER NOT NULL,
		data       TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_documents_parent ON documents(parent, seq);
	`)
	return err
}

// Snapshot is a document as read from the store.
type Snapshot struct {
	Ref       DocRef
	Data      map[string]any
	CreatedAt time.Time
	UpdatedAt time.Time
	exists    bool
}

// Exists reports whether the document was present.
func (s *Snapshot) Exists() bool { return s != nil && s.exists }

// DataTo decodes the document into v.
func (s *Snapshot) DataTo(v any) error {
	b, err := json.Marshal(s.Data)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Get reads one document. A missing document yields a snapshot whose Exists is false.
func (s *Store) Get(ctx context.Context, ref DocRef) (*Snapshot, error) {
	return getDoc(ctx, s.db, ref)
}

// List returns the documents of a collection in insertion order.
func (s *Store) List(ctx context.Context, col CollectionRef) ([]*Snapshot, error) {
	if err := col.validate(); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT doc_id, data, created_at, updated_at FROM documents WHERE parent = ? ORDER BY seq ASC`,
		col.Path())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Snapshot
	for rows.Next() {
		var id, data, createdAt, updatedAt string
		if err := rows.Scan(&id, &data, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		snap, err := newSnapshot(col.Doc(id), data, createdAt, updatedAt)
		if err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}

// Set writes a single document outside any batch.
func (s *Store) Set(ctx context.Context, ref DocRef, data any) error {
	return s.Batch().Set(ref, data).Commit(ctx)
}

func getDoc(ctx context.Context, q queryer, ref DocRef) (*Snapshot, error) {
	if err := ref.validate(); err != nil {
		return nil, err
	}
	var data, createdAt, updatedAt string
	err := q.QueryRowContext(ctx,
		`SELECT data, created_at, updated_at FROM documents WHERE path = ?`, ref.Path(),
	).Scan(&data, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return &Snapshot{Ref: ref}, nil
	}
	if err != nil {
		return nil, err
	}
	return newSnapshot(ref, data, createdAt, updatedAt)
}

func setDoc(ctx context.Context, q queryer, ref DocRef, payload []byte, now string) error {
	if err := ref.validate(); err != nil {
		return err
	}
	_, err := q.ExecContext(ctx, `
		INSERT INTO documents (path, parent, doc_id, seq, data, created_at, updated_at)
		VALUES (?, ?, ?, (SELECT COALESCE(MAX(seq), -1) + 1 FROM documents WHERE parent = ?), ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		ref.Path(), ref.Parent().Path(), ref.ID(), ref.Parent().Path(), string(payload), now, now,
	)
	return err
}

func newSnapshot(ref DocRef, data, createdAt, updatedAt string) (*Snapshot, error) {
	snap := &Snapshot{Ref: ref, exists: true}
	if err := json.Unmarshal([]byte(data), &snap.Data); err != nil {
		return nil, fmt.Errorf("decode %s: %w", ref.Path(), err)
	}
	snap.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	snap.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return snap, nil
}

func nowString() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}
