package catalog

import (
	"context"
	"errors"
	"sync"
	"testing"

	"shelfstock/internal/infra/persistence/memory"
	"shelfstock/pkg/domain"
)

func newSeededService(t *testing.T, records []domain.Record, opts ...Option) *Service {
	t.Helper()
	store := memory.NewStore(NewDefaultRulesEngine())
	if err := store.ImportRecords(context.Background(), records); err != nil {
		t.Fatalf("seed records: %v", err)
	}
	return NewService(store, opts...)
}

func seedRecords() []domain.Record {
	return []domain.Record{
		{ID: "P1", DisplayName: "Milk 1L", Category: "Dairy", Price: 2.50, Inventory: 0, Sold: 4},
		{ID: "P2", DisplayName: "1l milk!", Category: "Dairy", Price: 3.50, Inventory: 3, Sold: 1},
		{ID: "P3", DisplayName: "Bread", Category: "Bakery", Price: 1.80, Inventory: 5, Sold: 2},
	}
}

func TestBuyDecrementsFirstInStockMatch(t *testing.T) {
	svc := newSeededService(t, seedRecords())
	bought, _, err := svc.Buy(context.Background(), "  MILK 1l ")
	if err != nil {
		t.Fatalf("buy: %v", err)
	}
	// P1 matches first in store order but has zero inventory, so P2 absorbs the sale.
	if bought.ID != "P2" {
		t.Fatalf("expected P2 to be bought, got %s", bought.ID)
	}
	if bought.Inventory != 2 || bought.Sold != 2 {
		t.Fatalf("unexpected counters: %+v", bought)
	}
	records := svc.SnapshotRecords()
	if records[0].Inventory != 0 || records[0].Sold != 4 {
		t.Fatalf("zero-stock sibling must be untouched: %+v", records[0])
	}
}

func TestBuyAllZeroInventoryIsOutOfStock(t *testing.T) {
	svc := newSeededService(t, []domain.Record{
		{ID: "P1", DisplayName: "Milk", Category: "Dairy", Price: 2, Inventory: 0, Sold: 3},
	})
	before := svc.SnapshotRecords()
	_, _, err := svc.Buy(context.Background(), "milk")
	var oos domain.OutOfStockError
	if !errors.As(err, &oos) {
		t.Fatalf("expected OutOfStockError, got %v", err)
	}
	after := svc.SnapshotRecords()
	if after[0] != before[0] {
		t.Fatalf("failed buy must not mutate state: %+v", after[0])
	}
}

func TestBuyUnknownNameIsOutOfStock(t *testing.T) {
	svc := newSeededService(t, seedRecords())
	_, _, err := svc.Buy(context.Background(), "caviar")
	var oos domain.OutOfStockError
	if !errors.As(err, &oos) {
		t.Fatalf("expected OutOfStockError, got %v", err)
	}
}

func TestBuyEmptyNameIsValidationError(t *testing.T) {
	svc := newSeededService(t, seedRecords())
	for _, name := range []string{"", "   ", "!!!"} {
		_, _, err := svc.Buy(context.Background(), name)
		var ve domain.ValidationError
		if !errors.As(err, &ve) {
			t.Fatalf("name %q: expected ValidationError, got %v", name, err)
		}
	}
}

func TestRestockDistributesFloorShareWithRemainderToEarliest(t *testing.T) {
	svc := newSeededService(t, seedRecords())
	updated, _, err := svc.Restock(context.Background(), "Milk 1L", 5)
	if err != nil {
		t.Fatalf("restock: %v", err)
	}
	if len(updated) != 2 {
		t.Fatalf("expected 2 updated records, got %d", len(updated))
	}
	records := svc.SnapshotRecords()
	// 5 over 2 records: floor share 2 each, remainder 1 to the first in store order.
	if records[0].Inventory != 3 {
		t.Fatalf("expected P1 inventory 3, got %d", records[0].Inventory)
	}
	if records[1].Inventory != 5 {
		t.Fatalf("expected P2 inventory 5, got %d", records[1].Inventory)
	}
	if records[2].Inventory != 5 {
		t.Fatalf("unmatched record must be untouched, got %d", records[2].Inventory)
	}
}

func TestRestockRejectsNonPositiveQuantity(t *testing.T) {
	svc := newSeededService(t, seedRecords())
	for _, qty := range []int{0, -3} {
		_, _, err := svc.Restock(context.Background(), "milk", qty)
		var iq domain.InvalidQuantityError
		if !errors.As(err, &iq) {
			t.Fatalf("qty %d: expected InvalidQuantityError, got %v", qty, err)
		}
	}
}

func TestRestockUnknownNameIsNotFound(t *testing.T) {
	svc := newSeededService(t, seedRecords())
	_, _, err := svc.Restock(context.Background(), "caviar", 5)
	var nf domain.NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestConcurrentBuysOnSingleUnit(t *testing.T) {
	svc := newSeededService(t, []domain.Record{
		{ID: "P1", DisplayName: "Milk", Category: "Dairy", Price: 2, Inventory: 1, Sold: 0},
	})
	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, errs[i] = svc.Buy(context.Background(), "milk")
		}(i)
	}
	wg.Wait()

	var failures int
	for _, err := range errs {
		if err != nil {
			var oos domain.OutOfStockError
			if !errors.As(err, &oos) {
				t.Fatalf("unexpected error: %v", err)
			}
			failures++
		}
	}
	if failures != 1 {
		t.Fatalf("expected exactly one OutOfStockError, got %d", failures)
	}
	rec := svc.SnapshotRecords()[0]
	if rec.Inventory != 0 || rec.Sold != 1 {
		t.Fatalf("unexpected final counters: %+v", rec)
	}
}

func TestQueryAggregatesFiltersAndPages(t *testing.T) {
	svc := newSeededService(t, seedRecords())
	res, err := svc.Query(context.Background(), QueryParams{})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if res.Total != 2 || len(res.Products) != 2 {
		t.Fatalf("expected 2 aggregated products, got total=%d len=%d", res.Total, len(res.Products))
	}
	// Sorted by normalized name: bread before milk.
	if res.Products[0].Name != "bread" || res.Products[1].Name != "milk" {
		t.Fatalf("unexpected order: %+v", res.Products)
	}
	milk := res.Products[1]
	if milk.Inventory != 3 || milk.Sold != 5 || milk.RecordCount != 2 {
		t.Fatalf("unexpected milk aggregate: %+v", milk)
	}
	if milk.Price != 3.0 {
		t.Fatalf("expected mean price 3.0, got %f", milk.Price)
	}
	if len(res.Categories) != 2 || res.Categories[0] != "Bakery" || res.Categories[1] != "Dairy" {
		t.Fatalf("unexpected categories: %v", res.Categories)
	}

	res, err = svc.Query(context.Background(), QueryParams{Category: " dairy "})
	if err != nil || res.Total != 1 || res.Products[0].Name != "milk" {
		t.Fatalf("category filter: %+v err=%v", res, err)
	}

	res, err = svc.Query(context.Background(), QueryParams{Search: "REA"})
	if err != nil || res.Total != 1 || res.Products[0].Name != "bread" {
		t.Fatalf("search filter: %+v err=%v", res, err)
	}

	res, err = svc.Query(context.Background(), QueryParams{Page: 2, PerPage: 1})
	if err != nil || len(res.Products) != 1 || res.Products[0].Name != "milk" || res.TotalPages != 2 {
		t.Fatalf("pagination: %+v err=%v", res, err)
	}

	// Page past the end clamps to the last page.
	res, err = svc.Query(context.Background(), QueryParams{Page: 99, PerPage: 1})
	if err != nil || res.Page != 2 || len(res.Products) != 1 {
		t.Fatalf("page clamp: %+v err=%v", res, err)
	}
}

func TestQueryEmptyCatalog(t *testing.T) {
	svc := newSeededService(t, nil)
	res, err := svc.Query(context.Background(), QueryParams{})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if res.Total != 0 || len(res.Products) != 0 || res.TotalPages != 1 || res.Page != 1 {
		t.Fatalf("unexpected empty result: %+v", res)
	}
}

type countingNotifier struct {
	mu    sync.Mutex
	count int
}

func (n *countingNotifier) Broadcast() {
	n.mu.Lock()
	n.count++
	n.mu.Unlock()
}

func (n *countingNotifier) total() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.count
}

func TestNotifierFiresOnlyOnCommittedMutations(t *testing.T) {
	notifier := &countingNotifier{}
	svc := newSeededService(t, seedRecords(), WithNotifier(notifier))

	if _, _, err := svc.Buy(context.Background(), "bread"); err != nil {
		t.Fatalf("buy: %v", err)
	}
	if _, _, err := svc.Restock(context.Background(), "milk", 2); err != nil {
		t.Fatalf("restock: %v", err)
	}
	if notifier.total() != 2 {
		t.Fatalf("expected 2 broadcasts, got %d", notifier.total())
	}

	if _, _, err := svc.Buy(context.Background(), "caviar"); err == nil {
		t.Fatalf("expected buy failure")
	}
	if _, err := svc.Query(context.Background(), QueryParams{}); err != nil {
		t.Fatalf("query: %v", err)
	}
	if notifier.total() != 2 {
		t.Fatalf("failed mutations and reads must not broadcast, got %d", notifier.total())
	}
}
