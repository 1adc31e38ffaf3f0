// Package exports renders catalog snapshots into downloadable artifacts
// (CSV table, JSON aggregate, PNG sales chart) and stores them in a blob
// backend. Jobs run asynchronously on a single worker goroutine.
package exports

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"shelfstock/internal/catalog"
	"shelfstock/internal/infra/persistence/csvfile"
	"shelfstock/pkg/domain"
)

// Format identifies a rendered artifact encoding.
type Format string

// Supported export formats.
const (
	FormatCSV  Format = "csv"  // raw record table, upstream column contract
	FormatJSON Format = "json" // aggregated products
	FormatPNG  Format = "png"  // sales volume bar chart
)

// Status describes the lifecycle stage of an export request.
type Status string

// Export job lifecycle states.
const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Artifact captures a stored export artifact.
type Artifact struct {
	ID          string         `json:"id"`
	Format      Format         `json:"format"`
	ContentType string         `json:"content_type"`
	SizeBytes   int64          `json:"size_bytes"`
	URL         string         `json:"url,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

// Record tracks an export request and its resulting artifacts.
type Record struct {
	ID          string     `json:"id"`
	Formats     []Format   `json:"formats"`
	Status      Status     `json:"status"`
	Error       string     `json:"error,omitempty"`
	Artifacts   []Artifact `json:"artifacts,omitempty"`
	RequestedBy string     `json:"requested_by,omitempty"`
	Reason      string     `json:"reason,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Input represents an enqueue request for the worker.
type Input struct {
	Formats     []Format
	RequestedBy string
	Reason      string
}

// Scheduler queues export requests and exposes status.
type Scheduler interface {
	Enqueue(ctx context.Context, input Input) (Record, error)
	Get(id string) (Record, bool)
	List() []Record
}

// ObjectStore persists export artifacts.
type ObjectStore interface {
	// Put stores a new immutable object. Implementations fail if key exists.
	Put(ctx context.Context, key string, payload []byte, contentType string, metadata map[string]any) (Artifact, error)
	// Get returns the artifact metadata and full payload bytes.
	Get(ctx context.Context, key string) (Artifact, []byte, error)
	// Delete removes the object; returns true if it existed. Idempotent.
	Delete(ctx context.Context, key string) (bool, error)
	// List returns artifacts whose keys start with the prefix. Empty prefix lists all.
	List(ctx context.Context, prefix string) ([]Artifact, error)
}

// Snapshotter supplies the committed record set an export renders.
type Snapshotter interface {
	SnapshotRecords() []domain.Record
}

// AuditLogger records export audit entries.
type AuditLogger interface {
	Record(ctx context.Context, entry AuditEntry)
}

// AuditEntry captures audit trail metadata for exports.
type AuditEntry struct {
	ID         string         `json:"id"`
	Action     string         `json:"action"`
	Actor      string         `json:"actor"`
	Status     Status         `json:"status"`
	Reason     string         `json:"reason,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// Worker executes catalog exports asynchronously.
type Worker struct {
	source Snapshotter
	store  ObjectStore
	audit  AuditLogger

	queue chan task
	mu    sync.RWMutex
	jobs  map[string]*Record

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type task struct {
	id string
}

type renderedArtifact struct {
	Artifact Artifact
	Payload  []byte
}

// NewWorker constructs an export worker over the given snapshot source.
func NewWorker(source Snapshotter, store ObjectStore, audit AuditLogger) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		source: source,
		store:  store,
		audit:  audit,
		queue:  make(chan task, 32),
		jobs:   make(map[string]*Record),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start begins processing export requests.
func (w *Worker) Start() {
	w.wg.Add(1)
	go w.loop()
}

// Stop signals the worker to halt and waits for completion.
func (w *Worker) Stop(ctx context.Context) error {
	w.cancel()
	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Worker) loop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			return
		case t := <-w.queue:
			w.process(t)
		}
	}
}

// Enqueue schedules an export job and returns the queued record.
func (w *Worker) Enqueue(ctx context.Context, input Input) (Record, error) {
	if w.source == nil {
		return Record{}, fmt.Errorf("export source not configured")
	}
	formats := input.Formats
	if len(formats) == 0 {
		formats = []Format{FormatJSON, FormatCSV}
	}
	uniq := make([]Format, 0, len(formats))
	seen := make(map[Format]struct{})
	for _, format := range formats {
		if _, duplicate := seen[format]; duplicate {
			continue
		}
		switch format {
		case FormatCSV, FormatJSON, FormatPNG:
		default:
			return Record{}, fmt.Errorf("unsupported export format %s", format)
		}
		uniq = append(uniq, format)
		seen[format] = struct{}{}
	}

	id := newID()
	now := time.Now().UTC()
	record := Record{
		ID:          id,
		Formats:     uniq,
		Status:      StatusQueued,
		RequestedBy: input.RequestedBy,
		Reason:      input.Reason,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	w.mu.Lock()
	w.jobs[id] = &record
	queuedSnapshot := record.copy()
	w.mu.Unlock()

	w.recordAudit(ctx, id, StatusQueued, nil)

	select {
	case w.queue <- task{id: id}:
	default:
		return Record{}, fmt.Errorf("export queue full")
	}
	return queuedSnapshot, nil
}

// Get returns a snapshot of the export record.
func (w *Worker) Get(id string) (Record, bool) {
	w.mu.RLock()
	record, ok := w.jobs[id]
	if !ok {
		w.mu.RUnlock()
		return Record{}, false
	}
	snapshot := record.copy()
	w.mu.RUnlock()
	return snapshot, true
}

// List returns snapshots of all known export records, newest first.
func (w *Worker) List() []Record {
	w.mu.RLock()
	out := make([]Record, 0, len(w.jobs))
	for _, record := range w.jobs {
		out = append(out, record.copy())
	}
	w.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func (w *Worker) process(t task) {
	w.updateStatus(t.id, StatusRunning, "")

	record, ok := w.Get(t.id)
	if !ok {
		return
	}
	records := w.source.SnapshotRecords()

	artifacts := make([]Artifact, 0, len(record.Formats))
	for _, format := range record.Formats {
		rendered, err := materialize(format, t.id, records)
		if err != nil {
			w.fail(t.id, err.Error())
			return
		}
		if w.store != nil {
			stored, err := w.store.Put(w.ctx, rendered.Artifact.ID, rendered.Payload, rendered.Artifact.ContentType, rendered.Artifact.Metadata)
			if err != nil {
				w.fail(t.id, fmt.Sprintf("store artifact failed: %v", err))
				return
			}
			stored.Format = rendered.Artifact.Format
			if stored.ContentType == "" {
				stored.ContentType = rendered.Artifact.ContentType
			}
			if stored.SizeBytes == 0 {
				stored.SizeBytes = rendered.Artifact.SizeBytes
			}
			if stored.CreatedAt.IsZero() {
				stored.CreatedAt = rendered.Artifact.CreatedAt
			}
			stored.Metadata = mergeMetadata(rendered.Artifact.Metadata, stored.Metadata)
			artifacts = append(artifacts, stored)
		} else {
			artifacts = append(artifacts, rendered.Artifact)
		}
	}
	w.complete(t.id, artifacts)
}

func (w *Worker) updateStatus(id string, status Status, message string) {
	now := time.Now().UTC()
	w.mu.Lock()
	if record, ok := w.jobs[id]; ok {
		record.Status = status
		record.Error = message
		record.UpdatedAt = now
	}
	w.mu.Unlock()
	var meta map[string]any
	if message != "" {
		meta = map[string]any{"note": message}
	}
	w.recordAudit(w.ctx, id, status, meta)
}

func (w *Worker) complete(id string, artifacts []Artifact) {
	now := time.Now().UTC()
	w.mu.Lock()
	if record, ok := w.jobs[id]; ok {
		record.Status = StatusSucceeded
		record.Error = ""
		record.Artifacts = artifacts
		record.UpdatedAt = now
		record.CompletedAt = &now
	}
	w.mu.Unlock()
	w.recordAudit(w.ctx, id, StatusSucceeded, nil)
}

func (w *Worker) fail(id, reason string) {
	now := time.Now().UTC()
	w.mu.Lock()
	if record, ok := w.jobs[id]; ok {
		record.Status = StatusFailed
		record.Error = reason
		record.UpdatedAt = now
		record.CompletedAt = &now
	}
	w.mu.Unlock()
	w.recordAudit(w.ctx, id, StatusFailed, map[string]any{"error": reason})
}

func (w *Worker) recordAudit(ctx context.Context, id string, status Status, meta map[string]any) {
	if w.audit == nil {
		return
	}
	w.mu.RLock()
	var actor, reason string
	if record, ok := w.jobs[id]; ok {
		actor = record.RequestedBy
		reason = record.Reason
	}
	w.mu.RUnlock()
	w.audit.Record(ctx, AuditEntry{
		ID:         newID(),
		Action:     "catalog_export",
		Actor:      actor,
		Status:     status,
		Reason:     reason,
		Metadata:   meta,
		OccurredAt: time.Now().UTC(),
	})
}

func materialize(format Format, jobID string, records []domain.Record) (renderedArtifact, error) {
	now := time.Now().UTC()
	switch format {
	case FormatCSV:
		payload, err := csvfile.EncodeTable(records)
		if err != nil {
			return renderedArtifact{}, fmt.Errorf("encode table: %w", err)
		}
		return renderedArtifact{
			Artifact: Artifact{
				ID:          jobID + ".csv",
				Format:      FormatCSV,
				ContentType: "text/csv",
				SizeBytes:   int64(len(payload)),
				Metadata:    map[string]any{"rows": len(records)},
				CreatedAt:   now,
			},
			Payload: payload,
		}, nil
	case FormatJSON:
		products := catalog.Aggregate(records)
		payload, err := json.Marshal(products)
		if err != nil {
			return renderedArtifact{}, fmt.Errorf("marshal json: %w", err)
		}
		return renderedArtifact{
			Artifact: Artifact{
				ID:          jobID + ".json",
				Format:      FormatJSON,
				ContentType: "application/json",
				SizeBytes:   int64(len(payload)),
				Metadata:    map[string]any{"products": len(products)},
				CreatedAt:   now,
			},
			Payload: payload,
		}, nil
	case FormatPNG:
		products := catalog.Aggregate(records)
		payload, err := BuildSalesChart(products)
		if err != nil {
			return renderedArtifact{}, err
		}
		return renderedArtifact{
			Artifact: Artifact{
				ID:          jobID + ".png",
				Format:      FormatPNG,
				ContentType: "image/png",
				SizeBytes:   int64(len(payload)),
				Metadata:    map[string]any{"products": len(products)},
				CreatedAt:   now,
			},
			Payload: payload,
		}, nil
	default:
		return renderedArtifact{}, fmt.Errorf("unsupported export format %s", format)
	}
}

func mergeMetadata(base, extra map[string]any) map[string]any {
	if len(base) == 0 && len(extra) == 0 {
		return nil
	}
	out := make(map[string]any, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

func (r Record) copy() Record {
	dup := r
	dup.Formats = append([]Format(nil), r.Formats...)
	if len(r.Artifacts) > 0 {
		dup.Artifacts = append([]Artifact(nil), r.Artifacts...)
	}
	return dup
}

func newID() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic(err)
	}
	return fmt.Sprintf("%x", b[:])
}

var _ Scheduler = (*Worker)(nil)

// ParseFormats converts a comma separated format list from request input into
// validated formats. An empty list means the worker defaults apply.
func ParseFormats(raw string) ([]Format, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var out []Format
	for _, part := range strings.Split(raw, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part == "" {
			continue
		}
		format := Format(part)
		switch format {
		case FormatCSV, FormatJSON, FormatPNG:
			out = append(out, format)
		default:
			return nil, fmt.Errorf("unsupported export format %s", part)
		}
	}
	return out, nil
}
