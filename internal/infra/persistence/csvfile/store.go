package csvfile

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"shelfstock/internal/infra/persistence/memory"
	"shelfstock/pkg/domain"
)

// Compile-time contract assertion ensuring the store satisfies the domain interface.
var _ domain.PersistentStore = (*Store)(nil)

// Store persists the record set to a single CSV file. Every successful
// transaction rewrites the whole table through a temp-file rename, so a crash
// mid-write never corrupts the previously committed table.
type Store struct {
	*memory.Store
	path string
}

// NewStore opens a CSV-backed store at path, hydrating from an existing table
// when present.
func NewStore(path string, engine *domain.RulesEngine) (*Store, error) {
	if path == "" {
		path = "shelfstock.csv"
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create dirs: %w", err)
		}
	}
	ms := memory.NewStore(engine)
	s := &Store{Store: ms, path: path}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		// first run, table written on first commit
	case err != nil:
		return nil, fmt.Errorf("read table: %w", err)
	default:
		records, err := DecodeTable(data)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
		ms.ImportState(memory.Snapshot{Records: records})
	}

	ms.SetPersistFunc(s.writeTable)
	return s, nil
}

// writeTable atomically replaces the table file: encode to a temp file in the
// same directory, fsync, then rename over the previous table.
func (s *Store) writeTable(_ context.Context, snapshot memory.Snapshot) error {
	payload, err := EncodeTable(snapshot.Records)
	if err != nil {
		return fmt.Errorf("encode table: %w", err)
	}
	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".table-*")
	if err != nil {
		return fmt.Errorf("create temp table: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()
	if _, err := tmp.Write(payload); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp table: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync temp table: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp table: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("swap table: %w", err)
	}
	return nil
}

// Path returns the configured table path.
func (s *Store) Path() string { return s.path }
