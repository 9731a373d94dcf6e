// internal/core/ports/stock_store.go
package ports

import (
	"context"

	"github.com/ammerola/pos-ledger/internal/core/domain"
)

// StockStore is the transactional store the ledger applies operations against.
// WithinUnit commits when fn returns nil and rolls back on every other exit,
// including panics. Failure to begin, commit or roll back is reported as
// domain.ErrStoreUnavailable.
type StockStore interface {
	WithinUnit(ctx context.Context, fn func(ctx context.Context, unit LedgerUnit) error) error
}

// LedgerUnit is the set of store operations available inside one atomic unit.
type LedgerUnit interface {
	// LockProduct reads a product and holds an exclusive lock on it until the
	// unit ends. A missing row yields *domain.ProductNotFoundError.
	LockProduct(ctx context.Context, productID int64) (*domain.Product, error)

	// InsertHeader persists the record header and assigns ID and CreatedAt.
	InsertHeader(ctx context.Context, record *domain.LedgerRecord) error
	InsertLines(ctx context.Context, recordID int64, kind domain.OperationKind, lines []domain.LedgerLine) error

	// AdjustStock adds delta to a locked product's stock and returns the result.
	AdjustStock(ctx context.Context, productID int64, delta int64) (int64, error)
	InsertAudit(ctx context.Context, entry *domain.AuditEntry) error

	// FindByIdempotencyKey returns nil, nil when no record carries the key.
	FindByIdempotencyKey(ctx context.Context, kind domain.OperationKind, actorID int64, key string) (*domain.LedgerRecord, error)
}
