// internal/workers/report_processor.go
package workers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/ammerola/pos-ledger/internal/adapters/storage"
	"github.com/ammerola/pos-ledger/internal/core/domain"
	"github.com/ammerola/pos-ledger/internal/core/ports"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// WorkbookBuilder renders ledger records as an xlsx file
type WorkbookBuilder interface {
	Workbook(ctx context.Context, kind domain.OperationKind, from, to time.Time) ([]byte, int, error)
}

// ReportExportProcessor builds ledger exports and stores them
type ReportExportProcessor struct {
	builder   WorkbookBuilder
	store     storage.ObjectStore
	urlExpiry time.Duration
	logger    *slog.Logger
}

// NewReportExportProcessor creates a new export processor
func NewReportExportProcessor(builder WorkbookBuilder, store storage.ObjectStore, urlExpiry time.Duration, logger *slog.Logger) *ReportExportProcessor {
	return &ReportExportProcessor{
		builder:   builder,
		store:     store,
		urlExpiry: urlExpiry,
		logger:    logger.With(slog.String("processor", "report_export")),
	}
}

// ExportKey is the object key of an export job's file
func ExportKey(kind domain.OperationKind, jobID string) string {
	return fmt.Sprintf("exports/%s/%s.xlsx", kind, jobID)
}

// ExportReport renders and uploads one export
func (p *ReportExportProcessor) ExportReport(ctx context.Context, t *asynq.Task) error {
	start := time.Now()

	var payload ExportPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %w: %w", err, asynq.SkipRetry)
	}
	if !payload.Kind.Valid() || !payload.From.Before(payload.To) {
		return fmt.Errorf("invalid export request %s: %w", payload.JobID, asynq.SkipRetry)
	}

	data, records, err := p.builder.Workbook(ctx, payload.Kind, payload.From, payload.To)
	if err != nil {
		return fmt.Errorf("failed to build workbook: %w", err)
	}

	key := ExportKey(payload.Kind, payload.JobID)
	if _, err := p.store.Upload(ctx, key, bytes.NewReader(data), xlsxContentType, map[string]string{
		"job-id":       payload.JobID,
		"requested-by": fmt.Sprint(payload.RequestedBy),
	}); err != nil {
		return fmt.Errorf("failed to upload export: %w", err)
	}

	url, err := p.store.GetPresignedURL(ctx, key, p.urlExpiry)
	if err != nil {
		return fmt.Errorf("failed to presign export: %w", err)
	}

	p.logger.InfoContext(ctx, "report export completed",
		slog.String("job_id", payload.JobID),
		slog.String("kind", string(payload.Kind)),
		slog.Int("records", records),
		slog.String("url", url),
		slog.Duration("duration", time.Since(start)))

	if w := t.ResultWriter(); w != nil {
		result, _ := json.Marshal(map[string]any{"key": key, "url": url, "records": records})
		if _, err := w.Write(result); err != nil {
			p.logger.WarnContext(ctx, "failed to write task result", slog.String("error", err.Error()))
		}
	}
	return nil
}

// ReportRefreshProcessor keeps the dashboard cache warm
type ReportRefreshProcessor struct {
	reports ports.ReportService
	logger  *slog.Logger
}

// NewReportRefreshProcessor creates a new refresh processor
func NewReportRefreshProcessor(reports ports.ReportService, logger *slog.Logger) *ReportRefreshProcessor {
	return &ReportRefreshProcessor{
		reports: reports,
		logger:  logger.With(slog.String("processor", "report_refresh")),
	}
}

// RefreshReports recomputes and re-caches the dashboard
func (p *ReportRefreshProcessor) RefreshReports(ctx context.Context, _ *asynq.Task) error {
	stats, err := p.reports.RefreshDashboard(ctx)
	if err != nil {
		return fmt.Errorf("failed to refresh dashboard: %w", err)
	}

	p.logger.DebugContext(ctx, "dashboard refreshed",
		slog.Int64("transactions_today", stats.TransactionsToday),
		slog.Int64("low_stock", stats.LowStockCount))
	return nil
}
