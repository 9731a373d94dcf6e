// internal/handlers/reports.go
package handlers

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/ammerola/pos-ledger/internal/core/domain"
	"github.com/ammerola/pos-ledger/internal/core/ports"
	"github.com/ammerola/pos-ledger/internal/handlers/middleware"
	"github.com/ammerola/pos-ledger/internal/workers"
)

// maxExportRange bounds a single export request
const maxExportRange = 366 * 24 * time.Hour

// ReportHandler serves aggregated reports and export jobs
type ReportHandler struct {
	reports  ports.ReportService
	enqueuer workers.Enqueuer
	logger   *slog.Logger
	now      func() time.Time
}

// NewReportHandler creates a new report handler. enqueuer may be nil, in
// which case exports are refused.
func NewReportHandler(reports ports.ReportService, enqueuer workers.Enqueuer, logger *slog.Logger) *ReportHandler {
	return &ReportHandler{
		reports:  reports,
		enqueuer: enqueuer,
		logger:   logger.With(slog.String("handler", "reports")),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// DailyRevenue handles GET /api/v1/reports/daily
func (h *ReportHandler) DailyRevenue(w http.ResponseWriter, r *http.Request) {
	days, err := h.reports.DailyRevenue(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, "daily revenue", err)
		return
	}
	respondJSON(w, h.logger, http.StatusOK, "OK", days)
}

// BestSelling handles GET /api/v1/reports/best-selling
func (h *ReportHandler) BestSelling(w http.ResponseWriter, r *http.Request) {
	sellers, err := h.reports.BestSelling(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, "best selling", err)
		return
	}
	respondJSON(w, h.logger, http.StatusOK, "OK", sellers)
}

// Dashboard handles GET /api/v1/reports/dashboard
func (h *ReportHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	stats, err := h.reports.Dashboard(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, "dashboard", err)
		return
	}
	respondJSON(w, h.logger, http.StatusOK, "OK", stats)
}

// Export handles POST /api/v1/reports/export
func (h *ReportHandler) Export(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.enqueuer == nil {
		respondError(w, h.logger, http.StatusServiceUnavailable, "Report export is not enabled")
		return
	}

	var req ExportRequest
	if err := decodeBody(w, r, &req); err != nil {
		respondError(w, h.logger, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := req.Validate(h.now()); err != nil {
		respondError(w, h.logger, http.StatusBadRequest, err.Error())
		return
	}

	actor, _ := middleware.ActorFrom(ctx)
	payload := workers.ExportPayload{
		JobID:       uuid.New().String(),
		Kind:        req.Kind,
		From:        req.From,
		To:          req.To,
		RequestedBy: actor.ID,
	}

	task, opts, err := workers.NewExportTask(payload)
	if err != nil {
		writeServiceError(w, r, h.logger, "build export task", err)
		return
	}

	info, err := h.enqueuer.EnqueueContext(ctx, task, opts...)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to enqueue export",
			slog.String("job_id", payload.JobID),
			slog.String("error", err.Error()))
		respondError(w, h.logger, http.StatusInternalServerError, "Failed to queue export job")
		return
	}

	h.logger.InfoContext(ctx, "export queued",
		slog.String("job_id", payload.JobID),
		slog.String("kind", string(payload.Kind)),
		slog.String("queue", info.Queue))

	respondJSON(w, h.logger, http.StatusAccepted, "Export queued", map[string]any{
		"job_id": payload.JobID,
		"queue":  info.Queue,
		"key":    workers.ExportKey(payload.Kind, payload.JobID),
	})
}

// ExportRequest represents the body of POST /api/v1/reports/export. Missing
// bounds default to the last 30 days.
type ExportRequest struct {
	Kind domain.OperationKind `json:"kind"`
	From time.Time            `json:"from"`
	To   time.Time            `json:"to"`
}

// Validate fills defaults and checks the range
func (r *ExportRequest) Validate(now time.Time) error {
	if r.Kind == "" {
		r.Kind = domain.KindSale
	}
	if !r.Kind.Valid() {
		return fmt.Errorf("unknown report kind %q", r.Kind)
	}
	if r.To.IsZero() {
		r.To = now
	}
	if r.From.IsZero() {
		r.From = r.To.AddDate(0, 0, -30)
	}
	if !r.From.Before(r.To) {
		return fmt.Errorf("from must be before to")
	}
	if r.To.Sub(r.From) > maxExportRange {
		return fmt.Errorf("export range cannot exceed one year")
	}
	return nil
}
