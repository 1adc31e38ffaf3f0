// Package memory implements the in-memory transactional catalog store that
// the durable backends build upon. The full record set lives in one owned
// slice guarded by a single mutex; every mutation runs as an exclusive
// load→mutate→commit cycle against a cloned working state that is swapped in
// only after rules pass and the optional persist hook succeeds.
package memory

import (
	"context"
	"fmt"
	"sync"

	"shelfstock/pkg/domain"
)

// Snapshot is the serialisable representation of the in-memory state.
// Records appear in store order (original load order).
type Snapshot struct {
	Records []domain.Record `json:"records"`
}

// PersistFunc durably replaces the backing table with the candidate snapshot.
// It runs inside the commit cycle, before the new state becomes observable;
// an error aborts the commit with no visible effect.
type PersistFunc func(ctx context.Context, snapshot Snapshot) error

// Store provides an in-memory transactional store for the catalog domain.
type Store struct {
	mu      sync.RWMutex
	records []domain.Record
	engine  *domain.RulesEngine
	persist PersistFunc
}

// NewStore constructs an in-memory store backed by the provided rules engine.
func NewStore(engine *domain.RulesEngine) *Store {
	if engine == nil {
		engine = domain.NewRulesEngine()
	}
	return &Store{engine: engine}
}

// SetPersistFunc installs the durable commit hook used by persistent
// backends. Must be called before the store is shared.
func (s *Store) SetPersistFunc(fn PersistFunc) {
	s.persist = fn
}

// RulesEngine returns the engine evaluated on every commit.
func (s *Store) RulesEngine() *domain.RulesEngine {
	return s.engine
}

func cloneRecords(records []domain.Record) []domain.Record {
	return append([]domain.Record(nil), records...)
}

type recordView struct {
	records []domain.Record
}

func (v recordView) ListRecords() []domain.Record {
	return cloneRecords(v.records)
}

func (v recordView) FindRecord(id string) (domain.Record, bool) {
	for _, r := range v.records {
		if r.ID == id {
			return r, true
		}
	}
	return domain.Record{}, false
}

// Tx is a mutation set applied to a cloned working state.
type Tx struct {
	state   []domain.Record
	changes []domain.Change
}

// Records returns an independent ordered copy of the working state.
func (tx *Tx) Records() []domain.Record {
	return cloneRecords(tx.state)
}

// Snapshot exposes a read-only view of the working state.
func (tx *Tx) Snapshot() domain.TransactionView {
	return recordView{records: tx.state}
}

// UpdateRecord mutates one record in place, preserving store order. The
// mutated record must keep non-negative price, inventory and sold values.
func (tx *Tx) UpdateRecord(id string, mutator func(*domain.Record) error) (domain.Record, error) {
	idx := -1
	for i := range tx.state {
		if tx.state[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return domain.Record{}, fmt.Errorf("record %q not found", id)
	}
	before := tx.state[idx]
	current := before
	if err := mutator(&current); err != nil {
		return domain.Record{}, err
	}
	current.ID = id
	if current.Inventory < 0 {
		return domain.Record{}, fmt.Errorf("record %q: inventory cannot go negative", id)
	}
	if current.Sold < 0 {
		return domain.Record{}, fmt.Errorf("record %q: sold count cannot go negative", id)
	}
	if current.Price < 0 {
		return domain.Record{}, fmt.Errorf("record %q: price cannot go negative", id)
	}
	tx.state[idx] = current
	beforeCopy, afterCopy := before, current
	tx.changes = append(tx.changes, domain.Change{
		Entity:   domain.EntityRecord,
		Action:   domain.ActionUpdate,
		RecordID: id,
		Before:   &beforeCopy,
		After:    &afterCopy,
	})
	return current, nil
}

// RunInTransaction executes fn within a transactional copy of the store
// state. The whole cycle, including the durable persist, holds the write
// lock: concurrent mutations serialize, and readers never observe a commit in
// progress.
func (s *Store) RunInTransaction(ctx context.Context, fn func(domain.Transaction) error) (domain.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &Tx{state: cloneRecords(s.records)}
	if err := fn(tx); err != nil {
		return domain.Result{}, err
	}

	var result domain.Result
	if s.engine != nil {
		res, err := s.engine.Evaluate(ctx, recordView{records: tx.state}, tx.changes)
		if err != nil {
			return domain.Result{}, err
		}
		result = res
		if res.HasBlocking() {
			return res, domain.RuleViolationError{Result: res}
		}
	}

	if s.persist != nil {
		if err := s.persist(ctx, Snapshot{Records: cloneRecords(tx.state)}); err != nil {
			return result, domain.PersistenceError{Op: "commit", Err: err}
		}
	}

	s.records = tx.state
	return result, nil
}

// View executes fn against a read-only snapshot of the committed state.
func (s *Store) View(_ context.Context, fn func(domain.TransactionView) error) error {
	s.mu.RLock()
	snapshot := cloneRecords(s.records)
	s.mu.RUnlock()
	return fn(recordView{records: snapshot})
}

// SnapshotRecords returns a consistent independent copy of the committed
// record set in store order.
func (s *Store) SnapshotRecords() []domain.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneRecords(s.records)
}

// ImportRecords replaces the entire record set, running the persist hook so
// durable backends write the seed table before it becomes observable.
func (s *Store) ImportRecords(ctx context.Context, records []domain.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	candidate := cloneRecords(records)
	if s.persist != nil {
		if err := s.persist(ctx, Snapshot{Records: cloneRecords(candidate)}); err != nil {
			return domain.PersistenceError{Op: "import", Err: err}
		}
	}
	s.records = candidate
	return nil
}

// ExportState clones the current store state for external persistence.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{Records: cloneRecords(s.records)}
}

// ImportState replaces the in-memory state without persisting. Backends use
// it to hydrate from an existing durable snapshot at startup.
func (s *Store) ImportState(snapshot Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = cloneRecords(snapshot.Records)
}

// Close releases no resources for the memory backend.
func (s *Store) Close() error { return nil }
