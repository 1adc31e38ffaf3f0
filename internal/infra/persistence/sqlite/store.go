// Package sqlite provides a SQLite-backed persistent catalog store. The
// in-memory store does the transactional work; this package snapshots the
// full record set into a single state table as part of every commit cycle.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"shelfstock/internal/infra/persistence/memory"
	"shelfstock/pkg/domain"

	_ "modernc.org/sqlite" // pure go sqlite driver
)

// Compile-time contract assertion ensuring the store satisfies the domain interface.
var _ domain.PersistentStore = (*Store)(nil)

const recordsBucket = "records"

// Store persists the in-memory state to SQLite as a JSON blob per bucket,
// replaced wholesale inside every commit cycle.
type Store struct {
	*memory.Store
	db   *sql.DB
	path string
}

// NewStore constructs a snapshotting SQLite-backed persistent store.
func NewStore(path string, engine *domain.RulesEngine) (*Store, error) {
	if path == "" {
		path = "shelfstock.db"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS state (
		bucket TEXT PRIMARY KEY,
		payload BLOB NOT NULL
	)`); err != nil {
		return nil, fmt.Errorf("create state table: %w", err)
	}
	ms := memory.NewStore(engine)
	s := &Store{Store: ms, db: db, path: path}
	if err := s.load(); err != nil {
		return nil, err
	}
	ms.SetPersistFunc(s.persistSnapshot)
	return s, nil
}

func (s *Store) load() error {
	var payload []byte
	err := s.db.QueryRow(`SELECT payload FROM state WHERE bucket = ?`, recordsBucket).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("select state: %w", err)
	}
	var snapshot memory.Snapshot
	if err := json.Unmarshal(payload, &snapshot.Records); err != nil {
		return fmt.Errorf("decode records: %w", err)
	}
	s.ImportState(snapshot)
	return nil
}

func (s *Store) persistSnapshot(ctx context.Context, snapshot memory.Snapshot) (retErr error) {
	data, err := json.Marshal(snapshot.Records)
	if err != nil {
		return fmt.Errorf("encode records: %w", err)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO state(bucket,payload) VALUES(?,?) ON CONFLICT(bucket) DO UPDATE SET payload=excluded.payload`,
		recordsBucket, data); err != nil {
		retErr = fmt.Errorf("upsert %s: %w", recordsBucket, err)
		return retErr
	}
	if err := tx.Commit(); err != nil {
		retErr = err
		return retErr
	}
	return nil
}

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// Path returns the configured database path.
func (s *Store) Path() string { return s.path }

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }
