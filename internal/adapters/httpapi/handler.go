// Package httpapi exposes the catalog service over a small JSON HTTP surface
// plus CSV/PNG downloads and a server-sent-events change feed.
package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"shelfstock/internal/adapters/exports"
	"shelfstock/internal/catalog"
	"shelfstock/internal/infra/persistence/csvfile"
	"shelfstock/pkg/domain"
)

// Subscriber delivers change signals for the events feed.
type Subscriber interface {
	Subscribe() (<-chan struct{}, func())
}

// Handler provides HTTP access to the catalog and the export worker.
type Handler struct {
	Service   *catalog.Service
	Exports   exports.Scheduler
	Artifacts exports.ObjectStore
	Events    Subscriber
	Logger    catalog.Logger
}

// NewHandler constructs a catalog HTTP handler.
func NewHandler(service *catalog.Service) *Handler {
	return &Handler{Service: service}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.Service == nil {
		writeError(w, http.StatusInternalServerError, "catalog service not configured")
		return
	}

	path := strings.TrimSuffix(r.URL.Path, "/")
	switch {
	case path == "/api/v1/catalog":
		h.handleQuery(w, r)
	case path == "/api/v1/catalog/buy":
		h.handleBuy(w, r)
	case path == "/api/v1/catalog/restock":
		h.handleRestock(w, r)
	case path == "/api/v1/catalog/export":
		h.handleDownload(w, r)
	case path == "/api/v1/catalog/charts/sales":
		h.handleSalesChart(w, r)
	case path == "/api/v1/catalog/events":
		h.handleEvents(w, r)
	case strings.HasPrefix(path, "/api/v1/exports"):
		if h.Exports == nil {
			http.NotFound(w, r)
			return
		}
		h.handleExports(w, r, path)
	default:
		http.NotFound(w, r)
	}
}

type buyRequest struct {
	Name string `json:"name"`
}

func (h *Handler) handleBuy(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req buyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid buy request payload")
		return
	}
	record, _, err := h.Service.Buy(r.Context(), req.Name)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"record": record})
}

type restockRequest struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
}

func (h *Handler) handleRestock(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req restockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid restock request payload")
		return
	}
	records, _, err := h.Service.Restock(r.Context(), req.Name, req.Quantity)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"records": records})
}

func (h *Handler) handleQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	params := catalog.QueryParams{
		Category: r.URL.Query().Get("category"),
		Search:   r.URL.Query().Get("search"),
		Page:     intQuery(r, "page"),
		PerPage:  intQuery(r, "per_page"),
	}
	result, err := h.Service.Query(r.Context(), params)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) handleDownload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	payload, err := csvfile.EncodeTable(h.Service.SnapshotRecords())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	filename := fmt.Sprintf("inventory-%s.csv", time.Now().UTC().Format("20060102T150405Z"))
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(payload)
}

func (h *Handler) handleSalesChart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	payload, err := exports.BuildSalesChart(h.Service.Aggregated(r.Context()))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(payload)
}

func (h *Handler) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if h.Events == nil {
		writeError(w, http.StatusNotFound, "event feed not configured")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	signals, cancel := h.Events.Subscribe()
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	// Initial event lets clients render immediately after connecting.
	_, _ = fmt.Fprint(w, "event: update\ndata: {}\n\n")
	flusher.Flush()

	heartbeat := time.NewTicker(30 * time.Second)
	defer heartbeat.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case _, open := <-signals:
			if !open {
				return
			}
			_, _ = fmt.Fprint(w, "event: update\ndata: {}\n\n")
			flusher.Flush()
		case <-heartbeat.C:
			_, _ = fmt.Fprint(w, ": keepalive\n\n")
			flusher.Flush()
		}
	}
}

type exportCreateRequest struct {
	Formats     []string `json:"formats"`
	RequestedBy string   `json:"requested_by"`
	Reason      string   `json:"reason"`
}

func (h *Handler) handleExports(w http.ResponseWriter, r *http.Request, path string) {
	if path == "/api/v1/exports" {
		switch r.Method {
		case http.MethodPost:
			h.handleExportCreate(w, r)
		case http.MethodGet:
			h.handleExportList(w, r)
		default:
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
		return
	}

	if strings.HasPrefix(path, "/api/v1/exports/artifacts/") {
		h.handleArtifactDownload(w, r, strings.TrimPrefix(path, "/api/v1/exports/artifacts/"))
		return
	}

	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	id := strings.TrimPrefix(path, "/api/v1/exports/")
	if id == "" || strings.Contains(id, "/") {
		http.NotFound(w, r)
		return
	}
	record, ok := h.Exports.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "export not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"export": record})
}

func (h *Handler) handleExportCreate(w http.ResponseWriter, r *http.Request) {
	var req exportCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid export request payload")
		return
	}
	formats, err := exports.ParseFormats(strings.Join(req.Formats, ","))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	record, err := h.Exports.Enqueue(r.Context(), exports.Input{
		Formats:     formats,
		RequestedBy: req.RequestedBy,
		Reason:      req.Reason,
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"export": record})
}

func (h *Handler) handleExportList(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"exports": h.Exports.List()})
}

func (h *Handler) handleArtifactDownload(w http.ResponseWriter, r *http.Request, key string) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if h.Artifacts == nil {
		writeError(w, http.StatusNotFound, "artifact store not configured")
		return
	}
	artifact, payload, err := h.Artifacts.Get(r.Context(), key)
	if err != nil {
		writeError(w, http.StatusNotFound, "artifact not found")
		return
	}
	contentType := artifact.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", key))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(payload)
}

func intQuery(r *http.Request, key string) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return n
}

func writeDomainError(w http.ResponseWriter, err error) {
	var (
		validation domain.ValidationError
		quantity   domain.InvalidQuantityError
		notFound   domain.NotFoundError
		outOfStock domain.OutOfStockError
		rules      domain.RuleViolationError
		persist    domain.PersistenceError
	)
	switch {
	case errors.As(err, &validation), errors.As(err, &quantity):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &notFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &outOfStock):
		writeError(w, http.StatusConflict, err.Error())
	case errors.As(err, &rules):
		writeError(w, http.StatusConflict, err.Error())
	case errors.As(err, &persist):
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": message})
}
