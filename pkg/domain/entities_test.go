package domain

import "testing"

func TestResultMergeAndBlocking(t *testing.T) {
	var combined Result
	combined.Merge(Result{})
	if len(combined.Violations) != 0 {
		t.Fatalf("merge of empty result should be a no-op")
	}
	combined.Merge(Result{Violations: []Violation{{Rule: "warned", Severity: SeverityWarn}}})
	if combined.HasBlocking() {
		t.Fatalf("warn severity must not block")
	}
	combined.Merge(Result{Violations: []Violation{{Rule: "blocked", Severity: SeverityBlock}}})
	if !combined.HasBlocking() {
		t.Fatalf("expected blocking result")
	}
	if len(combined.Violations) != 2 {
		t.Fatalf("expected 2 violations, got %d", len(combined.Violations))
	}
	err := RuleViolationError{Result: combined}
	if err.Error() == "" {
		t.Fatalf("expected error text")
	}
}

func TestRecordKeyUsesDerivedName(t *testing.T) {
	r := Record{ID: "r1", DisplayName: "Coffee 500g", Category: "Beverages"}
	key := r.Key()
	if key.NormalizedName != "coffee" || key.Category != "Beverages" {
		t.Fatalf("unexpected key %+v", key)
	}
}
