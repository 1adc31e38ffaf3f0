package domain

import "context"

// Transaction exposes the record operations a persistence implementation must
// support within one exclusive commit cycle. Records keep their load order
// ("store order") through every mutation; implementations never reorder.
type Transaction interface {
	// Records returns an independent ordered copy of the working state.
	Records() []Record
	// UpdateRecord applies mutator to the identified record. The mutated
	// record must keep non-negative inventory and sold counters; violating
	// mutations fail without touching the working state.
	UpdateRecord(id string, mutator func(*Record) error) (Record, error)
	// Snapshot exposes a read-only view of the working state.
	Snapshot() TransactionView
}

// TransactionView provides read-only access to snapshot data.
type TransactionView interface {
	ListRecords() []Record
	FindRecord(id string) (Record, bool)
}

// PersistentStore is the contract every catalog backend satisfies. Commit
// semantics: the full read-modify-write cycle of RunInTransaction is mutually
// exclusive with every other cycle, and the durable table is replaced
// atomically before the new state becomes observable. A persistence failure
// leaves both the durable table and later snapshots at the pre-mutation
// state.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, fn func(Transaction) error) (Result, error)
	View(ctx context.Context, fn func(TransactionView) error) error
	// SnapshotRecords returns a consistent independent copy of the committed
	// record set in store order.
	SnapshotRecords() []Record
	// ImportRecords replaces the entire record set, durably when the backend
	// persists. Used once at startup to load the initial dataset.
	ImportRecords(ctx context.Context, records []Record) error
	Close() error
}
