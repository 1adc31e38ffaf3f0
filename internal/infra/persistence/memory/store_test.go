package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"shelfstock/pkg/domain"
)

func seedRecords() []domain.Record {
	return []domain.Record{
		{ID: "r1", DisplayName: "Milk 1L", Category: "Dairy", Price: 1.5, Inventory: 3, Sold: 1},
		{ID: "r2", DisplayName: "milk", Category: "Dairy", Price: 1.7, Inventory: 2, Sold: 0},
		{ID: "r3", DisplayName: "Bread", Category: "Bakery", Price: 2.0, Inventory: 5, Sold: 2},
	}
}

func TestRunInTransactionCommitsAndPreservesOrder(t *testing.T) {
	store := NewStore(nil)
	ctx := context.Background()
	if err := store.ImportRecords(ctx, seedRecords()); err != nil {
		t.Fatalf("import: %v", err)
	}

	_, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		if _, err := tx.UpdateRecord("r1", func(r *domain.Record) error {
			r.Inventory--
			r.Sold++
			return nil
		}); err != nil {
			return err
		}
		view := tx.Snapshot()
		if r, ok := view.FindRecord("r1"); !ok || r.Inventory != 2 {
			t.Fatalf("working state not visible through snapshot: %+v", r)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("run transaction: %v", err)
	}

	got := store.SnapshotRecords()
	if len(got) != 3 || got[0].ID != "r1" || got[1].ID != "r2" || got[2].ID != "r3" {
		t.Fatalf("store order not preserved: %+v", got)
	}
	if got[0].Inventory != 2 || got[0].Sold != 2 {
		t.Fatalf("commit not applied: %+v", got[0])
	}
}

func TestFailedTransactionLeavesStateUntouched(t *testing.T) {
	store := NewStore(nil)
	ctx := context.Background()
	if err := store.ImportRecords(ctx, seedRecords()); err != nil {
		t.Fatalf("import: %v", err)
	}
	_, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		if _, err := tx.UpdateRecord("r1", func(r *domain.Record) error {
			r.Inventory = 0
			return nil
		}); err != nil {
			return err
		}
		return fmt.Errorf("late failure")
	})
	if err == nil {
		t.Fatalf("expected error")
	}
	if got := store.SnapshotRecords()[0].Inventory; got != 3 {
		t.Fatalf("aborted transaction leaked state: inventory %d", got)
	}
}

func TestUpdateRecordGuardsNegativeValues(t *testing.T) {
	store := NewStore(nil)
	ctx := context.Background()
	if err := store.ImportRecords(ctx, seedRecords()); err != nil {
		t.Fatalf("import: %v", err)
	}
	_, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, err := tx.UpdateRecord("r2", func(r *domain.Record) error {
			r.Inventory -= 5
			return nil
		})
		return err
	})
	if err == nil {
		t.Fatalf("expected negative inventory to be rejected")
	}
	if got := store.SnapshotRecords()[1].Inventory; got != 2 {
		t.Fatalf("store changed after rejected update: %d", got)
	}

	if _, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, err := tx.UpdateRecord("missing", func(*domain.Record) error { return nil })
		return err
	}); err == nil {
		t.Fatalf("expected missing record error")
	}
}

func TestPersistHookFailureAbortsCommit(t *testing.T) {
	store := NewStore(nil)
	ctx := context.Background()
	if err := store.ImportRecords(ctx, seedRecords()); err != nil {
		t.Fatalf("import: %v", err)
	}
	store.SetPersistFunc(func(context.Context, Snapshot) error {
		return fmt.Errorf("disk gone")
	})
	_, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, err := tx.UpdateRecord("r1", func(r *domain.Record) error {
			r.Inventory--
			return nil
		})
		return err
	})
	var pErr domain.PersistenceError
	if !asPersistence(err, &pErr) {
		t.Fatalf("expected PersistenceError, got %v", err)
	}
	if got := store.SnapshotRecords()[0].Inventory; got != 3 {
		t.Fatalf("failed persist leaked in-memory state: inventory %d", got)
	}
}

func asPersistence(err error, target *domain.PersistenceError) bool {
	pe, ok := err.(domain.PersistenceError)
	if ok {
		*target = pe
	}
	return ok
}

func TestBlockingRuleRejectsCommit(t *testing.T) {
	engine := domain.NewRulesEngine()
	engine.Register(blockingRule{})
	store := NewStore(engine)
	ctx := context.Background()
	if err := store.ImportRecords(ctx, seedRecords()); err != nil {
		t.Fatalf("import: %v", err)
	}
	_, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, err := tx.UpdateRecord("r1", func(r *domain.Record) error {
			r.Sold++
			return nil
		})
		return err
	})
	if _, ok := err.(domain.RuleViolationError); !ok {
		t.Fatalf("expected rule violation, got %v", err)
	}
	if got := store.SnapshotRecords()[0].Sold; got != 1 {
		t.Fatalf("blocked commit leaked state: sold %d", got)
	}
}

type blockingRule struct{}

func (blockingRule) Name() string { return "block" }

func (blockingRule) Evaluate(context.Context, domain.RuleView, []domain.Change) (domain.Result, error) {
	return domain.Result{Violations: []domain.Violation{{Rule: "block", Severity: domain.SeverityBlock}}}, nil
}

func TestSnapshotsAreIndependentCopies(t *testing.T) {
	store := NewStore(nil)
	ctx := context.Background()
	if err := store.ImportRecords(ctx, seedRecords()); err != nil {
		t.Fatalf("import: %v", err)
	}
	snap := store.SnapshotRecords()
	snap[0].Inventory = 999
	if got := store.SnapshotRecords()[0].Inventory; got != 3 {
		t.Fatalf("caller mutation reached the store: %d", got)
	}
	if err := store.View(ctx, func(view domain.TransactionView) error {
		records := view.ListRecords()
		records[0].Inventory = -42
		return nil
	}); err != nil {
		t.Fatalf("view: %v", err)
	}
	if got := store.SnapshotRecords()[0].Inventory; got != 3 {
		t.Fatalf("view mutation reached the store: %d", got)
	}
}

func TestConcurrentMutationsSerialize(t *testing.T) {
	store := NewStore(nil)
	ctx := context.Background()
	if err := store.ImportRecords(ctx, []domain.Record{
		{ID: "r1", DisplayName: "juice", Inventory: 0},
	}); err != nil {
		t.Fatalf("import: %v", err)
	}

	const workers = 16
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = store.RunInTransaction(ctx, func(tx domain.Transaction) error {
				_, err := tx.UpdateRecord("r1", func(r *domain.Record) error {
					r.Inventory++
					return nil
				})
				return err
			})
		}()
	}
	wg.Wait()
	if got := store.SnapshotRecords()[0].Inventory; got != workers {
		t.Fatalf("lost update: inventory %d, want %d", got, workers)
	}
}

func TestExportImportStateRoundTrip(t *testing.T) {
	store := NewStore(nil)
	if err := store.ImportRecords(context.Background(), seedRecords()); err != nil {
		t.Fatalf("import: %v", err)
	}
	state := store.ExportState()
	store.ImportState(Snapshot{})
	if len(store.SnapshotRecords()) != 0 {
		t.Fatalf("expected cleared state")
	}
	store.ImportState(state)
	if len(store.SnapshotRecords()) != 3 {
		t.Fatalf("expected restored state")
	}
	if store.RulesEngine() == nil {
		t.Fatalf("expected rules engine")
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}
