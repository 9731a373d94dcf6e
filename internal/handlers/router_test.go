// internal/handlers/router_test.go
package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/ammerola/pos-ledger/internal/core/domain"
	"github.com/ammerola/pos-ledger/internal/handlers"
	"github.com/ammerola/pos-ledger/internal/handlers/middleware"
	"github.com/ammerola/pos-ledger/internal/notifier"
	"github.com/ammerola/pos-ledger/test/helpers"
	"github.com/ammerola/pos-ledger/test/mocks"
)

type routerFixture struct {
	mux      *http.ServeMux
	ledger   *mocks.MockLedgerService
	catalog  *mocks.MockCatalogService
	reports  *mocks.MockReportService
	verifier *middleware.TokenVerifier
}

func newRouterFixture(t *testing.T) *routerFixture {
	t.Helper()

	ctrl := gomock.NewController(t)
	cfg := helpers.LoadTestConfig()
	logger := helpers.TestLogger()

	f := &routerFixture{
		mux:      http.NewServeMux(),
		ledger:   mocks.NewMockLedgerService(ctrl),
		catalog:  mocks.NewMockCatalogService(ctrl),
		reports:  mocks.NewMockReportService(ctrl),
		verifier: middleware.NewTokenVerifier(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer),
	}

	routes := &handlers.Routes{
		Ledger:   handlers.NewLedgerHandler(f.ledger, logger),
		Products: handlers.NewProductHandler(f.catalog, logger),
		Reports:  handlers.NewReportHandler(f.reports, nil, logger),
		Health:   handlers.NewHealthHandler(nil, nil, nil, nil, cfg, logger),
		Verifier: f.verifier,
	}
	routes.Register(f.mux)
	return f
}

func (f *routerFixture) token(t *testing.T, id int64, role string) string {
	t.Helper()
	token, err := f.verifier.Sign(middleware.Actor{ID: id, Role: role}, time.Minute)
	require.NoError(t, err)
	return token
}

func TestRoutes_Authorization(t *testing.T) {
	tests := []struct {
		name           string
		method         string
		path           string
		body           string
		role           string
		setupMocks     func(*routerFixture)
		expectedStatus int
	}{
		{
			name:           "health_is_public",
			method:         http.MethodGet,
			path:           "/health",
			setupMocks:     func(*routerFixture) {},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "api_requires_token",
			method:         http.MethodGet,
			path:           "/api/v1/products",
			setupMocks:     func(*routerFixture) {},
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:   "cashier_can_sell",
			method: http.MethodPost,
			path:   "/api/v1/transactions",
			body:   `{"items":[{"product_id":1,"qty":1}]}`,
			role:   middleware.RoleCashier,
			setupMocks: func(f *routerFixture) {
				f.ledger.EXPECT().ApplyAndNotify(gomock.Any(), gomock.Any()).
					Return(&domain.LedgerRecord{ID: 1, Kind: domain.KindSale}, nil)
			},
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "cashier_cannot_restock",
			method:         http.MethodPost,
			path:           "/api/v1/purchases",
			body:           `{"items":[{"product_id":1,"qty":1}]}`,
			role:           middleware.RoleCashier,
			setupMocks:     func(*routerFixture) {},
			expectedStatus: http.StatusForbidden,
		},
		{
			name:   "admin_can_restock",
			method: http.MethodPost,
			path:   "/api/v1/purchases",
			body:   `{"items":[{"product_id":1,"qty":1,"cost":900}]}`,
			role:   middleware.RoleAdmin,
			setupMocks: func(f *routerFixture) {
				f.ledger.EXPECT().ApplyAndNotify(gomock.Any(), gomock.Any()).
					Return(&domain.LedgerRecord{ID: 1, Kind: domain.KindRestock}, nil)
			},
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "cashier_cannot_delete_product",
			method:         http.MethodDelete,
			path:           "/api/v1/products/1",
			role:           middleware.RoleCashier,
			setupMocks:     func(*routerFixture) {},
			expectedStatus: http.StatusForbidden,
		},
		{
			name:   "low_stock_route_wins_over_id",
			method: http.MethodGet,
			path:   "/api/v1/products/low-stock",
			role:   middleware.RoleCashier,
			setupMocks: func(f *routerFixture) {
				f.catalog.EXPECT().LowStock(gomock.Any()).Return(nil, nil)
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "cashier_cannot_read_reports",
			method:         http.MethodGet,
			path:           "/api/v1/reports/dashboard",
			role:           middleware.RoleCashier,
			setupMocks:     func(*routerFixture) {},
			expectedStatus: http.StatusForbidden,
		},
		{
			name:   "admin_reads_dashboard",
			method: http.MethodGet,
			path:   "/api/v1/reports/dashboard",
			role:   middleware.RoleAdmin,
			setupMocks: func(f *routerFixture) {
				f.reports.EXPECT().Dashboard(gomock.Any()).Return(&domain.DashboardStats{}, nil)
			},
			expectedStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newRouterFixture(t)
			tt.setupMocks(f)

			req := httptest.NewRequest(tt.method, tt.path, bytes.NewBufferString(tt.body))
			if tt.role != "" {
				req.Header.Set("Authorization", "Bearer "+f.token(t, 3, tt.role))
			}
			w := httptest.NewRecorder()
			f.mux.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
		})
	}
}

func TestRoutes_RejectsForgedToken(t *testing.T) {
	f := newRouterFixture(t)

	forged, err := middleware.NewTokenVerifier("another-secret", "pos-ledger").
		Sign(middleware.Actor{ID: 1, Role: middleware.RoleAdmin}, time.Minute)
	require.NoError(t, err)

	expired, err := f.verifier.Sign(middleware.Actor{ID: 1, Role: middleware.RoleAdmin}, -time.Minute)
	require.NoError(t, err)

	for name, token := range map[string]string{"forged": forged, "expired": expired, "garbage": "not-a-jwt"} {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/reports/dashboard", nil)
			req.Header.Set("Authorization", "Bearer "+token)
			w := httptest.NewRecorder()
			f.mux.ServeHTTP(w, req)

			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Contains(t, w.Header().Get("WWW-Authenticate"), "invalid_token")
		})
	}
}

type stubStats notifier.Stats

func (s stubStats) Stats() notifier.Stats { return notifier.Stats(s) }

func TestHealthHandler_Health(t *testing.T) {
	cfg := helpers.LoadTestConfig()
	redis := helpers.SetupTestRedis(t)

	tests := []struct {
		name           string
		stats          stubStats
		stopRedis      bool
		expectedStatus int
		expectedState  string
	}{
		{
			name:           "all_healthy",
			stats:          stubStats{Published: 4, Delivered: 4},
			expectedStatus: http.StatusOK,
			expectedState:  "healthy",
		},
		{
			name:           "dropped_events_degrade",
			stats:          stubStats{Published: 4, Delivered: 3, Dropped: 1},
			expectedStatus: http.StatusServiceUnavailable,
			expectedState:  "degraded",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := handlers.NewHealthHandler(nil, redis.Client, nil, tt.stats, cfg, helpers.TestLogger())

			w := httptest.NewRecorder()
			handler.Health(w, httptest.NewRequest(http.MethodGet, "/health", nil))

			assert.Equal(t, tt.expectedStatus, w.Code)

			var status handlers.HealthStatus
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
			assert.Equal(t, tt.expectedState, status.Status)
			assert.Equal(t, "memory", status.StoreDriver)
			assert.Equal(t, "healthy", status.Services["redis"].Status)
			assert.Contains(t, status.Services, "notifier")
		})
	}
}

func TestHealthHandler_Readiness(t *testing.T) {
	cfg := helpers.LoadTestConfig()
	redis := helpers.SetupTestRedis(t)
	handler := handlers.NewHealthHandler(nil, redis.Client, nil, nil, cfg, helpers.TestLogger())

	w := httptest.NewRecorder()
	handler.Readiness(w, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	redis.Server.Close()

	w = httptest.NewRecorder()
	handler.Readiness(w, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

type stubDatabase struct{ pingErr error }

func (d stubDatabase) Ping(context.Context) error { return d.pingErr }
func (d stubDatabase) Health(context.Context) map[string]interface{} {
	return map[string]interface{}{"total_conns": 4}
}
func (d stubDatabase) Close() {}

func TestHealthHandler_ReadinessChecksDatabase(t *testing.T) {
	cfg := helpers.LoadTestConfig()

	tests := []struct {
		name           string
		db             stubDatabase
		expectedStatus int
		expectedDetail string
	}{
		{name: "database_up", expectedStatus: http.StatusOK, expectedDetail: "ready"},
		{name: "database_down", db: stubDatabase{pingErr: errors.New("connection refused")}, expectedStatus: http.StatusServiceUnavailable, expectedDetail: "not ready"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := handlers.NewHealthHandler(tt.db, nil, nil, nil, cfg, helpers.TestLogger())

			w := httptest.NewRecorder()
			handler.Readiness(w, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

			assert.Equal(t, tt.expectedStatus, w.Code)
			var body struct {
				Details map[string]string `json:"details"`
			}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.expectedDetail, body.Details["database"])
		})
	}
}
