// internal/handlers/ledger_handler_test.go
package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/ammerola/pos-ledger/internal/core/domain"
	"github.com/ammerola/pos-ledger/internal/core/ports"
	"github.com/ammerola/pos-ledger/internal/handlers"
	"github.com/ammerola/pos-ledger/internal/handlers/middleware"
	"github.com/ammerola/pos-ledger/test/helpers"
	"github.com/ammerola/pos-ledger/test/mocks"
)

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func decodeEnvelope(t *testing.T, body []byte) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(body, &env))
	return env
}

func cashierRequest(method, target string, body []byte) *http.Request {
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	ctx := middleware.WithActor(req.Context(), middleware.Actor{ID: 3, Role: middleware.RoleCashier})
	return req.WithContext(ctx)
}

func TestLedgerHandler_CreateTransaction(t *testing.T) {
	committed := &domain.LedgerRecord{
		ID:            41,
		Kind:          domain.KindSale,
		ActorID:       3,
		PaymentMethod: domain.PaymentCash,
		Total:         7000,
		CreatedAt:     time.Now().UTC(),
		Lines: []domain.LedgerLine{
			{ProductID: 1, Quantity: 2, UnitValue: 3500, LineTotal: 7000, StockAfter: 48},
		},
	}

	tests := []struct {
		name           string
		body           string
		idempotencyKey string
		setupMocks     func(*mocks.MockLedgerService)
		expectedStatus int
		validate       func(*testing.T, *httptest.ResponseRecorder)
	}{
		{
			name:           "creates_sale",
			body:           `{"items":[{"product_id":1,"qty":2}],"payment_method":"cash"}`,
			idempotencyKey: "till-1-0001",
			setupMocks: func(m *mocks.MockLedgerService) {
				m.EXPECT().
					ApplyAndNotify(gomock.Any(), gomock.Any()).
					DoAndReturn(func(_ context.Context, op domain.Operation) (*domain.LedgerRecord, error) {
						assert.Equal(t, domain.KindSale, op.Kind)
						assert.Equal(t, int64(3), op.ActorID)
						assert.Equal(t, "till-1-0001", op.IdempotencyKey)
						assert.Equal(t, []domain.LineRequest{{ProductID: 1, Quantity: 2}}, op.Lines)
						return committed, nil
					})
			},
			expectedStatus: http.StatusCreated,
			validate: func(t *testing.T, w *httptest.ResponseRecorder) {
				env := decodeEnvelope(t, w.Body.Bytes())
				assert.True(t, env.Success)
				assert.Equal(t, "Transaction created successfully", env.Message)
				assert.Empty(t, w.Header().Get(handlers.HeaderIdempotentReplayed))

				var record domain.LedgerRecord
				require.NoError(t, json.Unmarshal(env.Data, &record))
				assert.Equal(t, int64(41), record.ID)
				assert.Equal(t, int64(7000), record.Total)
				require.Len(t, record.Lines, 1)
				assert.Equal(t, int64(48), record.Lines[0].StockAfter)
			},
		},
		{
			name:           "replay_returns_original_record",
			body:           `{"items":[{"product_id":1,"qty":2}]}`,
			idempotencyKey: "till-1-0001",
			setupMocks: func(m *mocks.MockLedgerService) {
				replayed := *committed
				replayed.Replayed = true
				m.EXPECT().ApplyAndNotify(gomock.Any(), gomock.Any()).Return(&replayed, nil)
			},
			expectedStatus: http.StatusOK,
			validate: func(t *testing.T, w *httptest.ResponseRecorder) {
				assert.Equal(t, "true", w.Header().Get(handlers.HeaderIdempotentReplayed))
				env := decodeEnvelope(t, w.Body.Bytes())
				assert.True(t, env.Success)
			},
		},
		{
			name:           "malformed_body",
			body:           `{"items":`,
			setupMocks:     func(m *mocks.MockLedgerService) {},
			expectedStatus: http.StatusBadRequest,
			validate: func(t *testing.T, w *httptest.ResponseRecorder) {
				env := decodeEnvelope(t, w.Body.Bytes())
				assert.False(t, env.Success)
				assert.Equal(t, "Invalid request body", env.Message)
			},
		},
		{
			name:           "unknown_field_rejected",
			body:           `{"items":[{"product_id":1,"qty":1}],"discount":10}`,
			setupMocks:     func(m *mocks.MockLedgerService) {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "unsupported_payment_method",
			body:           `{"items":[{"product_id":1,"qty":1}],"payment_method":"barter"}`,
			setupMocks:     func(m *mocks.MockLedgerService) {},
			expectedStatus: http.StatusBadRequest,
			validate: func(t *testing.T, w *httptest.ResponseRecorder) {
				env := decodeEnvelope(t, w.Body.Bytes())
				assert.Contains(t, env.Message, "barter")
			},
		},
		{
			name: "empty_operation",
			body: `{"items":[]}`,
			setupMocks: func(m *mocks.MockLedgerService) {
				m.EXPECT().ApplyAndNotify(gomock.Any(), gomock.Any()).Return(nil, domain.ErrEmptyOperation)
			},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "invalid_quantity",
			body: `{"items":[{"product_id":1,"qty":0}]}`,
			setupMocks: func(m *mocks.MockLedgerService) {
				m.EXPECT().ApplyAndNotify(gomock.Any(), gomock.Any()).
					Return(nil, &domain.InvalidQuantityError{ProductID: 1, Quantity: 0})
			},
			expectedStatus: http.StatusBadRequest,
			validate: func(t *testing.T, w *httptest.ResponseRecorder) {
				env := decodeEnvelope(t, w.Body.Bytes())
				assert.Equal(t, "invalid quantity 0 for product 1", env.Message)
			},
		},
		{
			name: "invalid_operation",
			body: `{"items":[{"product_id":1,"qty":1}]}`,
			setupMocks: func(m *mocks.MockLedgerService) {
				m.EXPECT().ApplyAndNotify(gomock.Any(), gomock.Any()).
					Return(nil, fmt.Errorf("%w: unknown operation kind %q", domain.ErrInvalidOperation, "refund"))
			},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "duplicate_line",
			body: `{"items":[{"product_id":1,"qty":1},{"product_id":1,"qty":2}]}`,
			setupMocks: func(m *mocks.MockLedgerService) {
				m.EXPECT().ApplyAndNotify(gomock.Any(), gomock.Any()).
					Return(nil, &domain.DuplicateLineError{ProductID: 1})
			},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "unknown_product",
			body: `{"items":[{"product_id":999,"qty":1}]}`,
			setupMocks: func(m *mocks.MockLedgerService) {
				m.EXPECT().ApplyAndNotify(gomock.Any(), gomock.Any()).
					Return(nil, &domain.ProductNotFoundError{ProductID: 999})
			},
			expectedStatus: http.StatusNotFound,
			validate: func(t *testing.T, w *httptest.ResponseRecorder) {
				env := decodeEnvelope(t, w.Body.Bytes())
				assert.Equal(t, "product 999 not found", env.Message)
			},
		},
		{
			name: "insufficient_stock",
			body: `{"items":[{"product_id":1,"qty":100}]}`,
			setupMocks: func(m *mocks.MockLedgerService) {
				m.EXPECT().ApplyAndNotify(gomock.Any(), gomock.Any()).
					Return(nil, &domain.InsufficientStockError{ProductID: 1, Available: 50, Requested: 100})
			},
			expectedStatus: http.StatusConflict,
			validate: func(t *testing.T, w *httptest.ResponseRecorder) {
				env := decodeEnvelope(t, w.Body.Bytes())
				assert.Contains(t, env.Message, "available 50, requested 100")
			},
		},
		{
			name: "store_unavailable_is_retryable",
			body: `{"items":[{"product_id":1,"qty":1}]}`,
			setupMocks: func(m *mocks.MockLedgerService) {
				m.EXPECT().ApplyAndNotify(gomock.Any(), gomock.Any()).
					Return(nil, domain.NewStoreUnavailable("begin", errors.New("connection refused")))
			},
			expectedStatus: http.StatusServiceUnavailable,
			validate: func(t *testing.T, w *httptest.ResponseRecorder) {
				assert.Equal(t, "1", w.Header().Get("Retry-After"))
				env := decodeEnvelope(t, w.Body.Bytes())
				assert.NotContains(t, env.Message, "connection refused")
			},
		},
		{
			name: "lock_timeout_is_retryable",
			body: `{"items":[{"product_id":1,"qty":1}]}`,
			setupMocks: func(m *mocks.MockLedgerService) {
				m.EXPECT().ApplyAndNotify(gomock.Any(), gomock.Any()).Return(nil, domain.ErrLockTimeout)
			},
			expectedStatus: http.StatusServiceUnavailable,
		},
		{
			name: "unexpected_error_is_hidden",
			body: `{"items":[{"product_id":1,"qty":1}]}`,
			setupMocks: func(m *mocks.MockLedgerService) {
				m.EXPECT().ApplyAndNotify(gomock.Any(), gomock.Any()).Return(nil, errors.New("pq: relation missing"))
			},
			expectedStatus: http.StatusInternalServerError,
			validate: func(t *testing.T, w *httptest.ResponseRecorder) {
				env := decodeEnvelope(t, w.Body.Bytes())
				assert.Equal(t, "Internal server error", env.Message)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			mockService := mocks.NewMockLedgerService(ctrl)
			tt.setupMocks(mockService)
			handler := handlers.NewLedgerHandler(mockService, helpers.TestLogger())

			req := cashierRequest(http.MethodPost, "/api/v1/transactions", []byte(tt.body))
			if tt.idempotencyKey != "" {
				req.Header.Set(handlers.HeaderIdempotencyKey, tt.idempotencyKey)
			}
			w := httptest.NewRecorder()

			handler.CreateTransaction(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
			if tt.validate != nil {
				tt.validate(t, w)
			}
		})
	}
}

func TestLedgerHandler_CreateTransaction_RequiresActor(t *testing.T) {
	ctrl := gomock.NewController(t)
	handler := handlers.NewLedgerHandler(mocks.NewMockLedgerService(ctrl), helpers.TestLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/transactions",
		bytes.NewBufferString(`{"items":[{"product_id":1,"qty":1}]}`))
	w := httptest.NewRecorder()
	handler.CreateTransaction(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLedgerHandler_CreatePurchase(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockService := mocks.NewMockLedgerService(ctrl)
	handler := handlers.NewLedgerHandler(mockService, helpers.TestLogger())

	supplierID := int64(5)
	mockService.EXPECT().
		ApplyAndNotify(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, op domain.Operation) (*domain.LedgerRecord, error) {
			assert.Equal(t, domain.KindRestock, op.Kind)
			require.NotNil(t, op.SupplierID)
			assert.Equal(t, supplierID, *op.SupplierID)
			assert.Equal(t, []domain.LineRequest{{ProductID: 2, Quantity: 24, UnitCost: 2800}}, op.Lines)
			return &domain.LedgerRecord{ID: 9, Kind: domain.KindRestock, ActorID: op.ActorID, SupplierID: op.SupplierID}, nil
		})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/purchases",
		bytes.NewBufferString(`{"supplier_id":5,"items":[{"product_id":2,"qty":24,"cost":2800}]}`))
	req = req.WithContext(middleware.WithActor(req.Context(), middleware.Actor{ID: 1, Role: middleware.RoleAdmin}))
	w := httptest.NewRecorder()

	handler.CreatePurchase(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	env := decodeEnvelope(t, w.Body.Bytes())
	assert.Equal(t, "Purchase recorded successfully", env.Message)
}

func TestLedgerHandler_CreatePurchase_UnknownSupplier(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockService := mocks.NewMockLedgerService(ctrl)
	handler := handlers.NewLedgerHandler(mockService, helpers.TestLogger())

	mockService.EXPECT().
		ApplyAndNotify(gomock.Any(), gomock.Any()).
		Return(nil, fmt.Errorf("failed to insert restock header: %w: supplier 404", domain.ErrReferenceNotFound))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/purchases",
		bytes.NewBufferString(`{"supplier_id":404,"items":[{"product_id":2,"qty":1,"cost":100}]}`))
	req = req.WithContext(middleware.WithActor(req.Context(), middleware.Actor{ID: 1, Role: middleware.RoleAdmin}))
	w := httptest.NewRecorder()

	handler.CreatePurchase(w, req)

	// resubmitting fails the same way, so this must not look retryable
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, w.Header().Get("Retry-After"))
}

func TestLedgerHandler_GetTransaction(t *testing.T) {
	tests := []struct {
		name           string
		id             string
		setupMocks     func(*mocks.MockLedgerService)
		expectedStatus int
		expectedMsg    string
	}{
		{
			name: "found",
			id:   "41",
			setupMocks: func(m *mocks.MockLedgerService) {
				m.EXPECT().Get(gomock.Any(), domain.KindSale, int64(41)).
					Return(&domain.LedgerRecord{ID: 41, Kind: domain.KindSale}, nil)
			},
			expectedStatus: http.StatusOK,
			expectedMsg:    "OK",
		},
		{
			name:           "invalid_id",
			id:             "abc",
			setupMocks:     func(m *mocks.MockLedgerService) {},
			expectedStatus: http.StatusBadRequest,
			expectedMsg:    "Invalid ID format",
		},
		{
			name: "not_found",
			id:   "77",
			setupMocks: func(m *mocks.MockLedgerService) {
				m.EXPECT().Get(gomock.Any(), domain.KindSale, int64(77)).Return(nil, domain.ErrRecordNotFound)
			},
			expectedStatus: http.StatusNotFound,
			expectedMsg:    domain.ErrRecordNotFound.Error(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			mockService := mocks.NewMockLedgerService(ctrl)
			tt.setupMocks(mockService)
			handler := handlers.NewLedgerHandler(mockService, helpers.TestLogger())

			req := cashierRequest(http.MethodGet, "/api/v1/transactions/"+tt.id, nil)
			req.SetPathValue("id", tt.id)
			w := httptest.NewRecorder()

			handler.GetTransaction(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.Equal(t, tt.expectedMsg, decodeEnvelope(t, w.Body.Bytes()).Message)
		})
	}
}

func TestLedgerHandler_ListTransactions(t *testing.T) {
	tests := []struct {
		name           string
		query          string
		setupMocks     func(*mocks.MockLedgerService)
		expectedStatus int
	}{
		{
			name:  "default_paging",
			query: "",
			setupMocks: func(m *mocks.MockLedgerService) {
				m.EXPECT().List(gomock.Any(), gomock.Any()).
					DoAndReturn(func(_ context.Context, f domain.LedgerFilter) (*ports.ListResult[*domain.LedgerRecord], error) {
						assert.Equal(t, domain.KindSale, f.Kind)
						assert.Equal(t, 1, f.Page)
						assert.Equal(t, 20, f.PageSize)
						assert.Nil(t, f.ActorID)
						return ports.NewListResult[*domain.LedgerRecord](nil, 1, 20, 0), nil
					})
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:  "filters_by_actor_and_day",
			query: "?user_id=3&from=2026-03-01&to=2026-03-01&page=2&limit=10",
			setupMocks: func(m *mocks.MockLedgerService) {
				m.EXPECT().List(gomock.Any(), gomock.Any()).
					DoAndReturn(func(_ context.Context, f domain.LedgerFilter) (*ports.ListResult[*domain.LedgerRecord], error) {
						require.NotNil(t, f.ActorID)
						assert.Equal(t, int64(3), *f.ActorID)
						require.NotNil(t, f.From)
						require.NotNil(t, f.To)
						assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), *f.From)
						assert.Equal(t, time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), *f.To)
						assert.Equal(t, 2, f.Page)
						assert.Equal(t, 10, f.PageSize)
						return ports.NewListResult[*domain.LedgerRecord](nil, 2, 10, 0), nil
					})
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "invalid_user_id",
			query:          "?user_id=me",
			setupMocks:     func(m *mocks.MockLedgerService) {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "invalid_date",
			query:          "?from=yesterday",
			setupMocks:     func(m *mocks.MockLedgerService) {},
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			mockService := mocks.NewMockLedgerService(ctrl)
			tt.setupMocks(mockService)
			handler := handlers.NewLedgerHandler(mockService, helpers.TestLogger())

			w := httptest.NewRecorder()
			handler.ListTransactions(w, cashierRequest(http.MethodGet, "/api/v1/transactions"+tt.query, nil))

			assert.Equal(t, tt.expectedStatus, w.Code)
		})
	}
}
