// Package catalog implements the inventory service: buy and restock mutations
// over the persisted record table, aggregated catalog queries, and change
// notification for connected clients.
package catalog

import (
	"context"
	"strings"
	"time"

	"shelfstock/pkg/domain"
)

// Default pagination bounds for catalog queries.
const (
	DefaultPerPage = 10
	MaxPerPage     = 100
)

// Service exposes the transactional catalog operations.
type Service struct {
	store domain.PersistentStore
	opts  options
}

// NewService constructs a service over the supplied store.
func NewService(store domain.PersistentStore, opts ...Option) *Service {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Service{store: store, opts: o}
}

// Store returns the underlying persistence implementation.
func (s *Service) Store() domain.PersistentStore { return s.store }

type auditSpec struct {
	entity domain.EntityType
	action domain.Action
}

var auditActions = map[string]auditSpec{
	"buy_product":     {entity: domain.EntityRecord, action: domain.ActionUpdate},
	"restock_product": {entity: domain.EntityRecord, action: domain.ActionUpdate},
	"import_records":  {entity: domain.EntityRecord, action: domain.ActionImport},
}

// finish closes out one instrumented operation: span, metrics, audit, log.
func (s *Service) finish(ctx context.Context, span TraceSpan, op, entityID string, start time.Time, err error) {
	duration := time.Since(start)
	span.End(err)
	s.opts.metrics.Observe(ctx, op, err == nil, duration)
	if spec, ok := auditActions[op]; ok {
		entry := AuditEntry{
			Operation: op,
			Entity:    spec.entity,
			Action:    spec.action,
			EntityID:  entityID,
			Status:    AuditStatusSuccess,
			Duration:  duration,
			Timestamp: s.opts.clock.Now(),
		}
		if err != nil {
			entry.Status = AuditStatusError
			entry.Error = err.Error()
		}
		s.opts.audit.Record(ctx, entry)
	}
	if err != nil {
		s.opts.logger.Warn("catalog operation failed", "operation", op, "error", err)
		return
	}
	s.opts.logger.Debug("catalog operation completed", "operation", op, "duration_ms", duration.Milliseconds())
}

// Buy decrements inventory and increments the sold counter on the first record
// in store order whose normalized name matches the given product name and
// which still has inventory. Matching ignores category: all records sharing
// the identity key form one pool of stock.
func (s *Service) Buy(ctx context.Context, name string) (domain.Record, domain.Result, error) {
	ctx, span := s.opts.tracer.Start(ctx, "buy_product")
	start := time.Now()

	var bought domain.Record
	key := domain.Normalize(name)
	if key == "" {
		err := domain.ValidationError{Field: "name", Reason: "empty after normalization"}
		s.finish(ctx, span, "buy_product", "", start, err)
		return domain.Record{}, domain.Result{}, err
	}

	res, err := s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		for _, rec := range tx.Records() {
			if rec.NormalizedName() != key {
				continue
			}
			if rec.Inventory <= 0 {
				continue
			}
			updated, err := tx.UpdateRecord(rec.ID, func(r *domain.Record) error {
				r.Inventory--
				r.Sold++
				return nil
			})
			if err != nil {
				return err
			}
			bought = updated
			return nil
		}
		// Unknown and depleted products are indistinguishable to a buyer.
		return domain.OutOfStockError{Name: key}
	})
	s.finish(ctx, span, "buy_product", bought.ID, start, err)
	if err != nil {
		return domain.Record{}, res, err
	}
	s.opts.notifier.Broadcast()
	return bought, res, nil
}

// Restock distributes quantity across every record whose normalized name
// matches the given product name. Each matching record receives the floor
// share; the remainder goes one unit at a time to the earliest records in
// store order.
func (s *Service) Restock(ctx context.Context, name string, quantity int) ([]domain.Record, domain.Result, error) {
	ctx, span := s.opts.tracer.Start(ctx, "restock_product")
	start := time.Now()

	key := domain.Normalize(name)
	var err error
	switch {
	case key == "":
		err = domain.ValidationError{Field: "name", Reason: "empty after normalization"}
	case quantity <= 0:
		err = domain.InvalidQuantityError{Quantity: quantity}
	}
	if err != nil {
		s.finish(ctx, span, "restock_product", "", start, err)
		return nil, domain.Result{}, err
	}

	var updated []domain.Record
	res, err := s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		var ids []string
		for _, rec := range tx.Records() {
			if rec.NormalizedName() == key {
				ids = append(ids, rec.ID)
			}
		}
		if len(ids) == 0 {
			return domain.NotFoundError{Name: key}
		}
		base := quantity / len(ids)
		remainder := quantity % len(ids)
		for i, id := range ids {
			share := base
			if i < remainder {
				share++
			}
			if share == 0 {
				continue
			}
			rec, err := tx.UpdateRecord(id, func(r *domain.Record) error {
				r.Inventory += share
				return nil
			})
			if err != nil {
				return err
			}
			updated = append(updated, rec)
		}
		return nil
	})
	s.finish(ctx, span, "restock_product", key, start, err)
	if err != nil {
		return nil, res, err
	}
	s.opts.notifier.Broadcast()
	return updated, res, nil
}

// ImportRecords replaces the whole record set, typically at startup from a
// seed table.
func (s *Service) ImportRecords(ctx context.Context, records []domain.Record) error {
	ctx, span := s.opts.tracer.Start(ctx, "import_records")
	start := time.Now()
	err := s.store.ImportRecords(ctx, records)
	s.finish(ctx, span, "import_records", "", start, err)
	if err != nil {
		return err
	}
	s.opts.notifier.Broadcast()
	return nil
}

// QueryParams selects and pages the aggregated catalog.
type QueryParams struct {
	Category string // exact match after trimming and case folding; empty means all
	Search   string // case-insensitive substring over the canonical name
	Page     int    // 1-based; defaults to 1
	PerPage  int    // defaults to DefaultPerPage, capped at MaxPerPage
}

// QueryResult is one page of the aggregated catalog.
type QueryResult struct {
	Products   []domain.AggregatedProduct `json:"products"`
	Total      int                        `json:"total"`
	Page       int                        `json:"page"`
	PerPage    int                        `json:"per_page"`
	TotalPages int                        `json:"total_pages"`
	Categories []string                   `json:"categories"`
}

// Query aggregates the committed record set and returns the selected page.
func (s *Service) Query(ctx context.Context, params QueryParams) (QueryResult, error) {
	ctx, span := s.opts.tracer.Start(ctx, "query_catalog")
	start := time.Now()

	records := s.store.SnapshotRecords()
	products := Aggregate(records)

	category := strings.TrimSpace(params.Category)
	if category != "" {
		filtered := products[:0:0]
		for _, p := range products {
			if strings.EqualFold(strings.TrimSpace(p.Category), category) {
				filtered = append(filtered, p)
			}
		}
		products = filtered
	}
	if search := strings.ToLower(strings.TrimSpace(params.Search)); search != "" {
		filtered := products[:0:0]
		for _, p := range products {
			if strings.Contains(strings.ToLower(p.Name), search) {
				filtered = append(filtered, p)
			}
		}
		products = filtered
	}

	perPage := params.PerPage
	if perPage <= 0 {
		perPage = DefaultPerPage
	}
	if perPage > MaxPerPage {
		perPage = MaxPerPage
	}
	total := len(products)
	totalPages := (total + perPage - 1) / perPage
	if totalPages == 0 {
		totalPages = 1
	}
	page := params.Page
	if page <= 0 {
		page = 1
	}
	if page > totalPages {
		page = totalPages
	}
	lo := (page - 1) * perPage
	hi := lo + perPage
	if lo > total {
		lo = total
	}
	if hi > total {
		hi = total
	}

	result := QueryResult{
		Products:   products[lo:hi],
		Total:      total,
		Page:       page,
		PerPage:    perPage,
		TotalPages: totalPages,
		Categories: Categories(records),
	}
	s.finish(ctx, span, "query_catalog", "", start, nil)
	return result, nil
}

// Aggregated returns the full aggregated catalog without pagination.
func (s *Service) Aggregated(ctx context.Context) []domain.AggregatedProduct {
	ctx, span := s.opts.tracer.Start(ctx, "aggregate_catalog")
	start := time.Now()
	products := Aggregate(s.store.SnapshotRecords())
	s.finish(ctx, span, "aggregate_catalog", "", start, nil)
	return products
}

// SnapshotRecords returns the committed raw record set in store order.
func (s *Service) SnapshotRecords() []domain.Record {
	return s.store.SnapshotRecords()
}
