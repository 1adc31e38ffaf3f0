package catalog

import (
	"context"
	"fmt"

	"shelfstock/pkg/domain"
)

// NewStockIntegrityRule returns the default in-transaction rule blocking
// commits that would leave a record with negative counters.
func NewStockIntegrityRule() domain.Rule {
	return stockIntegrityRule{}
}

// NewDefaultRulesEngine returns an engine with the standard catalog rules
// registered.
func NewDefaultRulesEngine() *domain.RulesEngine {
	engine := domain.NewRulesEngine()
	engine.Register(NewStockIntegrityRule())
	return engine
}

type stockIntegrityRule struct{}

func (stockIntegrityRule) Name() string { return "stock_integrity" }

func (stockIntegrityRule) Evaluate(_ context.Context, view domain.RuleView, _ []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, rec := range view.ListRecords() {
		if rec.Inventory < 0 || rec.Sold < 0 {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     "stock_integrity",
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("record %s (%s) has negative counters: inventory=%d sold=%d", rec.ID, rec.DisplayName, rec.Inventory, rec.Sold),
				Entity:   domain.EntityRecord,
				EntityID: rec.ID,
			})
		}
		if rec.Price < 0 {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     "stock_integrity",
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("record %s (%s) has negative price %f", rec.ID, rec.DisplayName, rec.Price),
				Entity:   domain.EntityRecord,
				EntityID: rec.ID,
			})
		}
	}
	return res, nil
}
