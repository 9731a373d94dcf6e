// internal/core/ports/ledger_service.go
package ports

import (
	"context"

	"github.com/ammerola/pos-ledger/internal/core/domain"
)

// LedgerService applies stock-affecting operations.
type LedgerService interface {
	Apply(ctx context.Context, op domain.Operation) (*domain.LedgerRecord, error)
	ApplyAndNotify(ctx context.Context, op domain.Operation) (*domain.LedgerRecord, error)
	Get(ctx context.Context, kind domain.OperationKind, id int64) (*domain.LedgerRecord, error)
	List(ctx context.Context, filter domain.LedgerFilter) (*ListResult[*domain.LedgerRecord], error)
}

// AuditRecorder appends activity log entries inside an open unit.
type AuditRecorder interface {
	Record(ctx context.Context, unit LedgerUnit, actorID, recordID int64, description string) error
}

// CatalogService manages products outside the ledger.
type CatalogService interface {
	Create(ctx context.Context, product *domain.Product) error
	Update(ctx context.Context, id int64, product *domain.Product) error
	Delete(ctx context.Context, id int64) error
	Get(ctx context.Context, id int64) (*domain.Product, error)
	List(ctx context.Context, filter domain.ProductFilter) (*ListResult[*domain.Product], error)
	LowStock(ctx context.Context) ([]*domain.Product, error)
}

// ReportService serves cached aggregations.
type ReportService interface {
	DailyRevenue(ctx context.Context) ([]domain.DailyRevenue, error)
	BestSelling(ctx context.Context) ([]domain.BestSeller, error)
	Dashboard(ctx context.Context) (*domain.DashboardStats, error)
	RefreshDashboard(ctx context.Context) (*domain.DashboardStats, error)
}

// ListResult holds one page of results
type ListResult[T any] struct {
	Items      []T   `json:"items"`
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalCount int64 `json:"total_count"`
	TotalPages int   `json:"total_pages"`
}

// NewListResult computes the page count.
func NewListResult[T any](items []T, page, pageSize int, total int64) *ListResult[T] {
	pages := 0
	if pageSize > 0 {
		pages = int((total + int64(pageSize) - 1) / int64(pageSize))
	}
	if items == nil {
		items = []T{}
	}
	return &ListResult[T]{
		Items:      items,
		Page:       page,
		PageSize:   pageSize,
		TotalCount: total,
		TotalPages: pages,
	}
}
