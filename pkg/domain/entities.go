// Package domain defines the core persistent entities, value types, and
// rule evaluation primitives used by shelfstock.
package domain

// EntityType identifies the type of record stored in the core domain.
type EntityType string

// Supported entity type identifiers used in Change records and persistence buckets.
const (
	// EntityRecord identifies a raw catalog record, the unit of mutation.
	EntityRecord EntityType = "record"
)

// Severity captures rule outcomes.
type Severity string

// Rule evaluation severities determine commit behavior and logging.
const (
	// SeverityBlock blocks transaction commit.
	SeverityBlock Severity = "block"
	// SeverityWarn logs a warning but allows commit.
	SeverityWarn Severity = "warn"
	SeverityLog  Severity = "log"
)

// Record is one row of the persisted catalog table. Catalog membership is
// fixed after load: mutations change Inventory and Sold in place, records are
// never created or deleted by the core.
type Record struct {
	ID          string  `json:"id"`
	DisplayName string  `json:"display_name"`
	Category    string  `json:"category"`
	Price       float64 `json:"price"`
	Inventory   int     `json:"inventory"`
	Sold        int     `json:"sold"`
}

// NormalizedName returns the canonical identity key derived from the display
// name. The key is always recomputed, never stored, so it cannot go stale.
func (r Record) NormalizedName() string {
	return Normalize(r.DisplayName)
}

// GroupKey identifies an aggregation group.
type GroupKey struct {
	NormalizedName string
	Category       string
}

// Key returns the aggregation group key for the record.
func (r Record) Key() GroupKey {
	return GroupKey{NormalizedName: r.NormalizedName(), Category: r.Category}
}

// AggregatedProduct is a derived, display-only summary of all records sharing
// one (normalized name, category) group. It is recomputed from a snapshot on
// every query and never persisted.
type AggregatedProduct struct {
	Name        string  `json:"name"` // canonical identity key
	Category    string  `json:"category"`
	Price       float64 `json:"price"` // arithmetic mean of member prices
	Inventory   int     `json:"inventory"`
	Sold        int     `json:"sold"`
	RecordCount int     `json:"record_count"`
}

// Action enumerates mutation kinds captured in change sets.
type Action string

// Change actions captured by transactions and surfaced to rules and audit.
const (
	// ActionUpdate indicates an existing record's counters changed.
	ActionUpdate Action = "update"
	// ActionImport indicates the record set was replaced wholesale at load.
	ActionImport Action = "import"
)

// Change describes one record-level mutation inside a transaction.
type Change struct {
	Entity   EntityType `json:"entity"`
	Action   Action     `json:"action"`
	RecordID string     `json:"record_id,omitempty"`
	Before   *Record    `json:"before,omitempty"`
	After    *Record    `json:"after,omitempty"`
}

// Violation reports a failed rule evaluation.
type Violation struct {
	Rule     string
	Severity Severity
	Message  string
	Entity   EntityType
	EntityID string
}

// Result aggregates violations from the rules engine.
type Result struct {
	Violations []Violation
}

// Merge appends violations from another result.
func (r *Result) Merge(other Result) {
	if len(other.Violations) == 0 {
		return
	}
	r.Violations = append(r.Violations, other.Violations...)
}

// HasBlocking returns true if the result contains blocking violations.
func (r Result) HasBlocking() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityBlock {
			return true
		}
	}
	return false
}

// RuleViolationError is returned when blocking violations are present.
type RuleViolationError struct {
	Result Result
}

func (e RuleViolationError) Error() string {
	return "transaction blocked by rules"
}
