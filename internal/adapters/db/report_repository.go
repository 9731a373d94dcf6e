// internal/adapters/db/report_repository.go
package db

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"

	"github.com/ammerola/pos-ledger/internal/core/domain"
	"github.com/ammerola/pos-ledger/internal/core/ports"
)

// ReportRepository runs read-only aggregations
type ReportRepository struct {
	db     Querier
	logger *slog.Logger
}

var _ ports.ReportRepository = (*ReportRepository)(nil)

// NewReportRepository creates a new report repository
func NewReportRepository(db Querier, logger *slog.Logger) *ReportRepository {
	return &ReportRepository{
		db:     db,
		logger: logger.With(slog.String("repository", "report")),
	}
}

// DailyRevenue groups sales by calendar day, newest first
func (r *ReportRepository) DailyRevenue(ctx context.Context, days int) ([]domain.DailyRevenue, error) {
	rows, err := r.db.Query(ctx, `
		SELECT DATE(created_at) AS day, COUNT(id), COALESCE(SUM(total), 0)::bigint
		FROM transactions
		GROUP BY DATE(created_at)
		ORDER BY day DESC
		LIMIT $1`, days)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily revenue: %w", err)
	}

	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.DailyRevenue, error) {
		var d domain.DailyRevenue
		err := row.Scan(&d.Date, &d.TransactionCount, &d.Revenue)
		return d, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan daily revenue: %w", err)
	}
	return out, nil
}

// BestSelling ranks products by quantity sold
func (r *ReportRepository) BestSelling(ctx context.Context, limit int) ([]domain.BestSeller, error) {
	rows, err := r.db.Query(ctx, `
		SELECT p.id, p.name, SUM(ti.qty)::bigint AS total_sold, SUM(ti.subtotal)::bigint AS revenue
		FROM transaction_items ti
		JOIN products p ON ti.product_id = p.id
		GROUP BY p.id, p.name
		ORDER BY total_sold DESC, p.id
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query best sellers: %w", err)
	}

	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.BestSeller, error) {
		var b domain.BestSeller
		err := row.Scan(&b.ProductID, &b.Name, &b.TotalSold, &b.Revenue)
		return b, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan best sellers: %w", err)
	}
	return out, nil
}

// DashboardStats computes today's cards in a single round trip
func (r *ReportRepository) DashboardStats(ctx context.Context) (*domain.DashboardStats, error) {
	stats := &domain.DashboardStats{}
	err := r.db.QueryRow(ctx, `
		SELECT
			(SELECT COALESCE(SUM(total), 0)::bigint FROM transactions WHERE created_at >= CURRENT_DATE),
			(SELECT COUNT(*) FROM transactions WHERE created_at >= CURRENT_DATE),
			(SELECT COUNT(*) FROM products WHERE stock <= min_stock)`,
	).Scan(&stats.SalesToday, &stats.TransactionsToday, &stats.LowStockCount)
	if err != nil {
		return nil, fmt.Errorf("failed to query dashboard stats: %w", err)
	}
	return stats, nil
}
