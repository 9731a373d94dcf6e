// internal/core/ports/ledger_repository.go
package ports

import (
	"context"

	"github.com/ammerola/pos-ledger/internal/core/domain"
)

// LedgerRepository is the read side of committed ledger records.
type LedgerRepository interface {
	FindByID(ctx context.Context, kind domain.OperationKind, id int64) (*domain.LedgerRecord, error)
	FindByIdempotencyKey(ctx context.Context, kind domain.OperationKind, actorID int64, key string) (*domain.LedgerRecord, error)
	List(ctx context.Context, filter domain.LedgerFilter) ([]*domain.LedgerRecord, int64, error)
}

// ReportRepository runs read-only aggregations over the ledger.
type ReportRepository interface {
	DailyRevenue(ctx context.Context, days int) ([]domain.DailyRevenue, error)
	BestSelling(ctx context.Context, limit int) ([]domain.BestSeller, error)
	DashboardStats(ctx context.Context) (*domain.DashboardStats, error)
}
