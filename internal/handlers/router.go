// internal/handlers/router.go
package handlers

import (
	"net/http"

	"github.com/ammerola/pos-ledger/internal/handlers/middleware"
)

// Routes groups the handlers served by the API
type Routes struct {
	Ledger   *LedgerHandler
	Products *ProductHandler
	Reports  *ReportHandler
	Health   *HealthHandler
	Verifier *middleware.TokenVerifier
}

// Register mounts every route on mux. Health endpoints are public; everything
// under /api/v1 requires a bearer token, and stock intake, catalog writes and
// reports are limited to admins.
func (rt *Routes) Register(mux *http.ServeMux) {
	const apiV1 = "/api/v1"

	mux.HandleFunc("GET /health", rt.Health.Health)
	mux.HandleFunc("GET /health/live", rt.Health.Live)
	mux.HandleFunc("GET /health/ready", rt.Health.Readiness)

	authed := func(h http.HandlerFunc) http.Handler {
		return middleware.Chain(h, middleware.Auth(rt.Verifier))
	}
	admin := func(h http.HandlerFunc) http.Handler {
		return middleware.Chain(h, middleware.Auth(rt.Verifier), middleware.RequireRole(middleware.RoleAdmin))
	}

	mux.Handle("POST "+apiV1+"/transactions", authed(rt.Ledger.CreateTransaction))
	mux.Handle("GET "+apiV1+"/transactions", authed(rt.Ledger.ListTransactions))
	mux.Handle("GET "+apiV1+"/transactions/{id}", authed(rt.Ledger.GetTransaction))

	mux.Handle("POST "+apiV1+"/purchases", admin(rt.Ledger.CreatePurchase))
	mux.Handle("GET "+apiV1+"/purchases", admin(rt.Ledger.ListPurchases))
	mux.Handle("GET "+apiV1+"/purchases/{id}", admin(rt.Ledger.GetPurchase))

	mux.Handle("GET "+apiV1+"/products", authed(rt.Products.ListProducts))
	mux.Handle("GET "+apiV1+"/products/low-stock", authed(rt.Products.LowStock))
	mux.Handle("GET "+apiV1+"/products/{id}", authed(rt.Products.GetProduct))
	mux.Handle("POST "+apiV1+"/products", admin(rt.Products.CreateProduct))
	mux.Handle("PUT "+apiV1+"/products/{id}", admin(rt.Products.UpdateProduct))
	mux.Handle("DELETE "+apiV1+"/products/{id}", admin(rt.Products.DeleteProduct))

	mux.Handle("GET "+apiV1+"/reports/daily", admin(rt.Reports.DailyRevenue))
	mux.Handle("GET "+apiV1+"/reports/best-selling", admin(rt.Reports.BestSelling))
	mux.Handle("GET "+apiV1+"/reports/dashboard", admin(rt.Reports.Dashboard))
	mux.Handle("POST "+apiV1+"/reports/export", admin(rt.Reports.Export))
}
