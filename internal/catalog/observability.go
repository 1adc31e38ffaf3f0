package catalog

import (
	"context"
	"sync"
	"time"

	"shelfstock/pkg/domain"
)

// Logger receives structured log events from the service. Arguments are
// alternating key/value pairs, slog style.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// MetricsRecorder aggregates operation outcomes for export.
type MetricsRecorder interface {
	Observe(ctx context.Context, operation string, success bool, duration time.Duration)
}

type noopMetricsRecorder struct{}

func (noopMetricsRecorder) Observe(context.Context, string, bool, time.Duration) {}

// TraceSpan terminates a single traced operation.
type TraceSpan interface {
	End(err error)
}

// Tracer opens spans around service operations.
type Tracer interface {
	Start(ctx context.Context, operation string) (context.Context, TraceSpan)
}

type noopTracer struct{}

type noopSpan struct{}

func (noopSpan) End(error) {}

func (noopTracer) Start(ctx context.Context, _ string) (context.Context, TraceSpan) {
	return ctx, noopSpan{}
}

// AuditStatus marks an audit entry as a success or failure.
type AuditStatus string

const (
	// AuditStatusSuccess marks a completed operation.
	AuditStatusSuccess AuditStatus = "success"
	// AuditStatusError marks a failed operation.
	AuditStatusError AuditStatus = "error"
)

// AuditEntry describes one service operation for the audit trail.
type AuditEntry struct {
	Operation string
	Entity    domain.EntityType
	Action    domain.Action
	EntityID  string
	Status    AuditStatus
	Error     string
	Duration  time.Duration
	Timestamp time.Time
}

// AuditRecorder receives audit entries. Implementations must not block.
type AuditRecorder interface {
	Record(ctx context.Context, entry AuditEntry)
}

type noopAuditRecorder struct{}

func (noopAuditRecorder) Record(context.Context, AuditEntry) {}

// MemoryAuditRecorder captures audit entries in-memory for inspection.
type MemoryAuditRecorder struct {
	mu      sync.Mutex
	entries []AuditEntry
}

// Record stores an audit entry.
func (r *MemoryAuditRecorder) Record(_ context.Context, entry AuditEntry) {
	r.mu.Lock()
	r.entries = append(r.entries, entry)
	r.mu.Unlock()
}

// Entries returns a defensive copy of recorded audit entries.
func (r *MemoryAuditRecorder) Entries() []AuditEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]AuditEntry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Clock abstracts time for audit timestamps.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to the Clock interface.
type ClockFunc func() time.Time

// Now implements Clock.
func (f ClockFunc) Now() time.Time { return f() }

// Notifier receives a signal after each committed catalog mutation.
type Notifier interface {
	Broadcast()
}

type noopNotifier struct{}

func (noopNotifier) Broadcast() {}

// Option customizes a Service.
type Option func(*options)

type options struct {
	logger   Logger
	metrics  MetricsRecorder
	tracer   Tracer
	audit    AuditRecorder
	notifier Notifier
	clock    Clock
}

func defaultOptions() options {
	return options{
		logger:   noopLogger{},
		metrics:  noopMetricsRecorder{},
		tracer:   noopTracer{},
		audit:    noopAuditRecorder{},
		notifier: noopNotifier{},
		clock:    ClockFunc(func() time.Time { return time.Now().UTC() }),
	}
}

// WithLogger installs a structured logger.
func WithLogger(logger Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetricsRecorder installs a metrics recorder.
func WithMetricsRecorder(rec MetricsRecorder) Option {
	return func(o *options) {
		if rec != nil {
			o.metrics = rec
		}
	}
}

// WithTracer installs a tracer.
func WithTracer(tracer Tracer) Option {
	return func(o *options) {
		if tracer != nil {
			o.tracer = tracer
		}
	}
}

// WithAuditRecorder installs an audit recorder.
func WithAuditRecorder(rec AuditRecorder) Option {
	return func(o *options) {
		if rec != nil {
			o.audit = rec
		}
	}
}

// WithNotifier installs a change notifier signalled after committed mutations.
func WithNotifier(n Notifier) Option {
	return func(o *options) {
		if n != nil {
			o.notifier = n
		}
	}
}

// WithClock overrides the audit timestamp source.
func WithClock(clock Clock) Option {
	return func(o *options) {
		if clock != nil {
			o.clock = clock
		}
	}
}
