// internal/workers/workers_test.go
package workers_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v3"
	"go.uber.org/mock/gomock"

	"github.com/ammerola/pos-ledger/internal/adapters/memory"
	"github.com/ammerola/pos-ledger/internal/adapters/storage"
	"github.com/ammerola/pos-ledger/internal/core/domain"
	"github.com/ammerola/pos-ledger/internal/core/services"
	"github.com/ammerola/pos-ledger/internal/pkg/config"
	"github.com/ammerola/pos-ledger/internal/workers"
	"github.com/ammerola/pos-ledger/test/helpers"
	"github.com/ammerola/pos-ledger/test/mocks"
)

func stockTask(t *testing.T, event domain.ChangeEvent) *asynq.Task {
	t.Helper()
	task, opts, err := workers.NewStockChangedTask(event)
	require.NoError(t, err)
	require.NotEmpty(t, opts)
	return task
}

func TestNewTasks(t *testing.T) {
	event := domain.ChangeEvent{ID: uuid.New(), Kind: domain.EventSale}
	task, opts, err := workers.NewStockChangedTask(event)
	require.NoError(t, err)
	assert.Equal(t, workers.TypeStockChanged, task.Type())
	assert.Contains(t, opts, asynq.TaskID(event.ID.String()))
	assert.Contains(t, opts, asynq.Queue(workers.QueueCritical))

	task, opts, err = workers.NewExportTask(workers.ExportPayload{JobID: "job-1", Kind: domain.KindSale})
	require.NoError(t, err)
	assert.Equal(t, workers.TypeExportReport, task.Type())
	assert.Contains(t, opts, asynq.TaskID("job-1"))
	assert.Contains(t, opts, asynq.Queue(workers.QueueLow))

	assert.Equal(t, workers.TypeRefreshReports, workers.NewRefreshReportsTask().Type())
}

func TestStockEventProcessor_HandleStockChanged(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	low := helpers.CreateTestProduct(func(p *domain.Product) { p.Name = "Tea"; p.Barcode = "1"; p.MinStock = 5 })
	plenty := helpers.CreateTestProduct(func(p *domain.Product) { p.Name = "Rice"; p.Barcode = "2"; p.MinStock = 5 })
	require.NoError(t, store.Create(ctx, low))
	require.NoError(t, store.Create(ctx, plenty))

	saleOf := func(levels ...domain.StockLevel) domain.ChangeEvent {
		return domain.ChangeEvent{ID: uuid.New(), Kind: domain.EventSale, AffectedProducts: levels}
	}

	tests := []struct {
		name          string
		event         domain.ChangeEvent
		alertTo       []string
		setupMocks    func(*mocks.MockCacheInvalidator, *mocks.MockEnqueuer)
		errorContains string
	}{
		{
			name:    "invalidates_and_alerts_on_low_stock",
			event:   saleOf(domain.StockLevel{ProductID: low.ID, NewStock: 5}, domain.StockLevel{ProductID: plenty.ID, NewStock: 30}),
			alertTo: []string{"ops@example.com"},
			setupMocks: func(inv *mocks.MockCacheInvalidator, enq *mocks.MockEnqueuer) {
				inv.EXPECT().Invalidate(gomock.Any(), []string{services.ProductCacheKey(low.ID), services.ProductCacheKey(plenty.ID)}, "dash:*", "report:*").
					Return(nil)
				enq.EXPECT().EnqueueContext(gomock.Any(), gomock.Any(), gomock.Any()).
					DoAndReturn(func(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
						assert.Equal(t, workers.TypeSendEmail, task.Type())

						var payload workers.EmailPayload
						require.NoError(t, json.Unmarshal(task.Payload(), &payload))
						assert.Equal(t, []string{"ops@example.com"}, payload.To)
						assert.Equal(t, "Low stock alert: 1 product(s)", payload.Subject)
						assert.Contains(t, payload.Body, "Tea")
						assert.NotContains(t, payload.Body, "Rice")
						return &asynq.TaskInfo{}, nil
					})
			},
		},
		{
			name:    "duplicate_alert_is_ignored",
			event:   saleOf(domain.StockLevel{ProductID: low.ID, NewStock: 0}),
			alertTo: []string{"ops@example.com"},
			setupMocks: func(inv *mocks.MockCacheInvalidator, enq *mocks.MockEnqueuer) {
				inv.EXPECT().Invalidate(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)
				enq.EXPECT().EnqueueContext(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, asynq.ErrTaskIDConflict)
			},
		},
		{
			name:    "no_alert_above_minimum",
			event:   saleOf(domain.StockLevel{ProductID: plenty.ID, NewStock: 6}),
			alertTo: []string{"ops@example.com"},
			setupMocks: func(inv *mocks.MockCacheInvalidator, _ *mocks.MockEnqueuer) {
				inv.EXPECT().Invalidate(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)
			},
		},
		{
			name: "restock_never_alerts",
			event: domain.ChangeEvent{ID: uuid.New(), Kind: domain.EventRestock,
				AffectedProducts: []domain.StockLevel{{ProductID: low.ID, NewStock: 1}}},
			alertTo: []string{"ops@example.com"},
			setupMocks: func(inv *mocks.MockCacheInvalidator, _ *mocks.MockEnqueuer) {
				inv.EXPECT().Invalidate(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)
			},
		},
		{
			name:  "alerts_disabled_without_recipients",
			event: saleOf(domain.StockLevel{ProductID: low.ID, NewStock: 0}),
			setupMocks: func(inv *mocks.MockCacheInvalidator, _ *mocks.MockEnqueuer) {
				inv.EXPECT().Invalidate(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)
			},
		},
		{
			name:    "deleted_product_is_skipped",
			event:   saleOf(domain.StockLevel{ProductID: 999, NewStock: 0}),
			alertTo: []string{"ops@example.com"},
			setupMocks: func(inv *mocks.MockCacheInvalidator, _ *mocks.MockEnqueuer) {
				inv.EXPECT().Invalidate(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)
			},
		},
		{
			name:  "invalidation_failure_retries",
			event: saleOf(domain.StockLevel{ProductID: low.ID, NewStock: 0}),
			setupMocks: func(inv *mocks.MockCacheInvalidator, _ *mocks.MockEnqueuer) {
				inv.EXPECT().Invalidate(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(errors.New("redis down"))
			},
			errorContains: "failed to invalidate caches",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			invalidator := mocks.NewMockCacheInvalidator(ctrl)
			enqueuer := mocks.NewMockEnqueuer(ctrl)
			tt.setupMocks(invalidator, enqueuer)

			processor := workers.NewStockEventProcessor(invalidator, store, enqueuer, tt.alertTo, helpers.TestLogger())
			err := processor.HandleStockChanged(ctx, stockTask(t, tt.event))

			if tt.errorContains != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errorContains)
				assert.False(t, errors.Is(err, asynq.SkipRetry))
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestStockEventProcessor_MalformedPayload(t *testing.T) {
	ctrl := gomock.NewController(t)
	processor := workers.NewStockEventProcessor(
		mocks.NewMockCacheInvalidator(ctrl), memory.NewStore(), mocks.NewMockEnqueuer(ctrl), nil, helpers.TestLogger())

	err := processor.HandleStockChanged(context.Background(), asynq.NewTask(workers.TypeStockChanged, []byte("{")))
	require.Error(t, err)
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestNotificationProcessor_SendEmail(t *testing.T) {
	tests := []struct {
		name      string
		payload   []byte
		mailErr   error
		expectErr bool
		skipRetry bool
	}{
		{
			name:    "sends_email",
			payload: []byte(`{"to":["ops@example.com"],"subject":"Low stock","body":"Tea"}`),
		},
		{
			name:      "mailer_failure_retries",
			payload:   []byte(`{"to":["ops@example.com"],"subject":"Low stock","body":"Tea"}`),
			mailErr:   errors.New("smtp timeout"),
			expectErr: true,
		},
		{
			name:      "no_recipients",
			payload:   []byte(`{"subject":"Low stock"}`),
			expectErr: true,
			skipRetry: true,
		},
		{
			name:      "malformed_payload",
			payload:   []byte(`not json`),
			expectErr: true,
			skipRetry: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			mailer := mocks.NewMockMailer(ctrl)
			if !tt.skipRetry {
				mailer.EXPECT().Send(gomock.Any(), []string{"ops@example.com"}, "Low stock", "Tea").Return(tt.mailErr)
			}

			processor := workers.NewNotificationProcessor(mailer, helpers.TestLogger())
			err := processor.SendEmail(context.Background(), asynq.NewTask(workers.TypeSendEmail, tt.payload))

			if !tt.expectErr {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.skipRetry, errors.Is(err, asynq.SkipRetry))
		})
	}
}

func TestNewMailer(t *testing.T) {
	_, isLog := workers.NewMailer(config.MailConfig{}, helpers.TestLogger()).(*workers.LogMailer)
	assert.True(t, isLog)

	_, isSMTP := workers.NewMailer(config.MailConfig{Host: "smtp.example.com", Port: "587"}, helpers.TestLogger()).(*workers.SMTPMailer)
	assert.True(t, isSMTP)

	logMailer := workers.NewMailer(config.MailConfig{}, helpers.TestLogger())
	assert.NoError(t, logMailer.Send(context.Background(), []string{"a@example.com"}, "subject", "body"))
}

func TestReportExportProcessor_ExportReport(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	ids := helpers.SeedProducts(t, store, 1, 20)
	engine := services.NewLedgerEngine(store, store.Ledger(), services.NewAuditRecorder(), nil,
		services.LedgerOptions{UnitTimeout: 2 * time.Second}, helpers.TestLogger())

	_, err := engine.Apply(ctx, domain.NewSale(2, []domain.LineRequest{{ProductID: ids[0], Quantity: 3}}, domain.PaymentCash))
	require.NoError(t, err)

	dir := t.TempDir()
	objects := storage.NewLocalStorage(dir, helpers.TestLogger())
	processor := workers.NewReportExportProcessor(
		services.NewExportService(store.Ledger(), 2, helpers.TestLogger()), objects, time.Hour, helpers.TestLogger())

	payload := workers.ExportPayload{
		JobID:       "job-42",
		Kind:        domain.KindSale,
		From:        time.Now().Add(-time.Hour),
		To:          time.Now().Add(time.Hour),
		RequestedBy: 1,
	}
	task, _, err := workers.NewExportTask(payload)
	require.NoError(t, err)
	require.NoError(t, processor.ExportReport(ctx, task))

	key := workers.ExportKey(domain.KindSale, "job-42")
	assert.Equal(t, "exports/sale/job-42.xlsx", key)

	exists, err := objects.Exists(ctx, key)
	require.NoError(t, err)
	require.True(t, exists)

	data, err := os.ReadFile(filepath.Join(dir, key))
	require.NoError(t, err)
	file, err := xlsx.OpenBinary(data)
	require.NoError(t, err)
	assert.Equal(t, "Sales", file.Sheets[0].Name)

	url, err := objects.GetPresignedURL(ctx, key, time.Hour)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "file://"))
}

func TestReportExportProcessor_RejectsBadPayload(t *testing.T) {
	processor := workers.NewReportExportProcessor(
		services.NewExportService(memory.NewStore().Ledger(), 2, helpers.TestLogger()),
		storage.NewLocalStorage(t.TempDir(), helpers.TestLogger()), time.Hour, helpers.TestLogger())

	now := time.Now()
	for name, payload := range map[string]workers.ExportPayload{
		"unknown_kind":   {JobID: "a", Kind: "refund", From: now.Add(-time.Hour), To: now},
		"inverted_range": {JobID: "b", Kind: domain.KindSale, From: now, To: now.Add(-time.Hour)},
	} {
		t.Run(name, func(t *testing.T) {
			task, _, err := workers.NewExportTask(payload)
			require.NoError(t, err)
			assert.ErrorIs(t, processor.ExportReport(context.Background(), task), asynq.SkipRetry)
		})
	}
}

func TestReportRefreshProcessor_RefreshReports(t *testing.T) {
	ctrl := gomock.NewController(t)
	reports := mocks.NewMockReportService(ctrl)
	processor := workers.NewReportRefreshProcessor(reports, helpers.TestLogger())

	reports.EXPECT().RefreshDashboard(gomock.Any()).Return(&domain.DashboardStats{TransactionsToday: 4}, nil)
	require.NoError(t, processor.RefreshReports(context.Background(), workers.NewRefreshReportsTask()))

	reports.EXPECT().RefreshDashboard(gomock.Any()).Return(nil, domain.NewStoreUnavailable("dashboard", errors.New("down")))
	err := processor.RefreshReports(context.Background(), workers.NewRefreshReportsTask())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to refresh dashboard")
}
