package domain

import (
	"context"
	"fmt"
	"testing"
)

type staticView struct {
	records []Record
}

func (v staticView) ListRecords() []Record {
	return append([]Record(nil), v.records...)
}

func (v staticView) FindRecord(id string) (Record, bool) {
	for _, r := range v.records {
		if r.ID == id {
			return r, true
		}
	}
	return Record{}, false
}

type stubRule struct {
	name string
	res  Result
	err  error
}

func (r stubRule) Name() string { return r.name }

func (r stubRule) Evaluate(context.Context, RuleView, []Change) (Result, error) {
	return r.res, r.err
}

func TestRulesEngineAggregatesResults(t *testing.T) {
	engine := NewRulesEngine()
	engine.Register(stubRule{name: "a"})
	engine.Register(stubRule{name: "b", res: Result{Violations: []Violation{{Rule: "b", Severity: SeverityWarn}}}})

	res, err := engine.Evaluate(context.Background(), staticView{}, nil)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(res.Violations) != 1 || res.Violations[0].Rule != "b" {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestRulesEngineStopsOnError(t *testing.T) {
	engine := NewRulesEngine()
	engine.Register(stubRule{name: "boom", err: fmt.Errorf("boom")})
	engine.Register(stubRule{name: "late", res: Result{Violations: []Violation{{Rule: "late"}}}})

	if _, err := engine.Evaluate(context.Background(), staticView{}, nil); err == nil {
		t.Fatalf("expected error from first rule")
	}
}
