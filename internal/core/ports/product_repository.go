// internal/core/ports/product_repository.go
package ports

import (
	"context"

	"github.com/ammerola/pos-ledger/internal/core/domain"
)

// ProductRepository is the catalog persistence port. Reads never lock and may
// observe stale stock; they must not feed sale-acceptance decisions.
type ProductRepository interface {
	Create(ctx context.Context, product *domain.Product) error
	Update(ctx context.Context, product *domain.Product) error
	Delete(ctx context.Context, id int64) error
	FindByID(ctx context.Context, id int64) (*domain.Product, error)
	List(ctx context.Context, filter domain.ProductFilter) ([]*domain.Product, int64, error)
	LowStock(ctx context.Context) ([]*domain.Product, error)
}
