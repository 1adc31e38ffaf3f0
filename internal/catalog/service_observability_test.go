package catalog

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"shelfstock/pkg/domain"
)

func hasAuditEntry(r *MemoryAuditRecorder, op string, status AuditStatus) bool {
	for _, entry := range r.Entries() {
		if entry.Operation == op && entry.Status == status {
			return true
		}
	}
	return false
}

type metricsCall struct {
	op      string
	success bool
}

type captureMetricsRecorder struct {
	calls []metricsCall
}

func (c *captureMetricsRecorder) Observe(_ context.Context, op string, success bool, _ time.Duration) {
	c.calls = append(c.calls, metricsCall{op: op, success: success})
}

func (c *captureMetricsRecorder) has(op string, success bool) bool {
	for _, call := range c.calls {
		if call.op == op && call.success == success {
			return true
		}
	}
	return false
}

type captureTracer struct {
	started []string
	ended   []spanRecord
}

type spanRecord struct {
	op  string
	err error
}

func (c *captureTracer) Start(ctx context.Context, op string) (context.Context, TraceSpan) {
	c.started = append(c.started, op)
	return ctx, &captureSpan{tracer: c, op: op}
}

type captureSpan struct {
	tracer *captureTracer
	op     string
}

func (s *captureSpan) End(err error) {
	s.tracer.ended = append(s.tracer.ended, spanRecord{op: s.op, err: err})
}

func TestServiceObservabilitySignals(t *testing.T) {
	ctx := context.Background()
	audit := &MemoryAuditRecorder{}
	metrics := &captureMetricsRecorder{}
	tracer := &captureTracer{}
	fixed := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	svc := newSeededService(t, seedRecords(),
		WithAuditRecorder(audit),
		WithMetricsRecorder(metrics),
		WithTracer(tracer),
		WithClock(ClockFunc(func() time.Time { return fixed })),
	)

	if _, _, err := svc.Buy(ctx, "bread"); err != nil {
		t.Fatalf("buy: %v", err)
	}
	if !hasAuditEntry(audit, "buy_product", AuditStatusSuccess) {
		t.Fatalf("expected audit entry for buy_product success")
	}
	if !metrics.has("buy_product", true) {
		t.Fatalf("expected metrics observation for buy_product success")
	}

	if _, _, err := svc.Buy(ctx, "caviar"); err == nil {
		t.Fatalf("expected buy failure")
	}
	if !hasAuditEntry(audit, "buy_product", AuditStatusError) {
		t.Fatalf("expected audit entry for buy_product error")
	}
	if !metrics.has("buy_product", false) {
		t.Fatalf("expected metrics observation for buy_product error")
	}

	if _, _, err := svc.Restock(ctx, "milk", 4); err != nil {
		t.Fatalf("restock: %v", err)
	}
	if !hasAuditEntry(audit, "restock_product", AuditStatusSuccess) {
		t.Fatalf("expected audit entry for restock_product success")
	}

	if _, err := svc.Query(ctx, QueryParams{}); err != nil {
		t.Fatalf("query: %v", err)
	}
	for _, op := range []string{"buy_product", "restock_product", "query_catalog"} {
		found := false
		for _, started := range tracer.started {
			if started == op {
				found = true
			}
		}
		if !found {
			t.Fatalf("expected trace span for %s", op)
		}
	}

	for _, entry := range audit.Entries() {
		if !entry.Timestamp.Equal(fixed) {
			t.Fatalf("expected clock timestamp, got %v", entry.Timestamp)
		}
		if entry.Entity != domain.EntityRecord {
			t.Fatalf("unexpected audit entity %s", entry.Entity)
		}
	}
}

func TestNoopImplementations(t *testing.T) {
	var logger noopLogger
	logger.Debug("noop")
	logger.Info("noop")
	logger.Warn("noop")
	logger.Error("noop")

	var audit noopAuditRecorder
	audit.Record(context.Background(), AuditEntry{})

	var metrics noopMetricsRecorder
	metrics.Observe(context.Background(), "noop", true, 0)

	tracer := noopTracer{}
	ctx, span := tracer.Start(context.Background(), "op")
	if ctx == nil {
		t.Fatalf("expected context from tracer")
	}
	span.End(nil)

	var notifier noopNotifier
	notifier.Broadcast()
}

func TestExpvarMetricsRecorderExports(t *testing.T) {
	recorder := NewExpvarMetricsRecorder("")
	recorder.Observe(context.Background(), "buy_product", true, 10*time.Millisecond)
	recorder.Observe(context.Background(), "buy_product", false, 5*time.Millisecond)
	recorder.Observe(context.Background(), "", true, time.Millisecond)

	snap := recorder.Snapshot()
	if snap.Results["buy_product"]["success"] != 1 || snap.Results["buy_product"]["error"] != 1 {
		t.Fatalf("unexpected result counters: %+v", snap.Results)
	}
	if snap.DurationsMS["buy_product"] < 15 {
		t.Fatalf("unexpected duration total: %+v", snap.DurationsMS)
	}
	if !strings.HasPrefix(recorder.Name(), "catalog_service_metrics_") {
		t.Fatalf("unexpected recorder name %q", recorder.Name())
	}
}

func TestJSONTraceTracerExports(t *testing.T) {
	var buf bytes.Buffer
	tracer := NewJSONTracer(&buf)
	_, span := tracer.Start(context.Background(), "restock_product")
	span.End(nil)
	_, span = tracer.Start(context.Background(), "buy_product")
	span.End(context.Canceled)

	entries := tracer.Entries()
	if len(entries) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(entries))
	}
	if entries[0].Status != "success" || entries[1].Status != "error" {
		t.Fatalf("unexpected statuses: %+v", entries)
	}
	if !strings.Contains(buf.String(), "restock_product") {
		t.Fatalf("expected encoded spans, got %q", buf.String())
	}
}
