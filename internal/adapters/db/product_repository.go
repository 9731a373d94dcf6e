// internal/adapters/db/product_repository.go
package db

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/ammerola/pos-ledger/internal/core/domain"
	"github.com/ammerola/pos-ledger/internal/core/ports"
)

var productColumns = []string{
	"id", "name", "barcode", "category_id", "price", "stock", "min_stock", "created_at", "updated_at",
}

func scanProduct(row pgx.Row) (*domain.Product, error) {
	p := &domain.Product{}
	var barcode *string
	if err := row.Scan(
		&p.ID, &p.Name, &barcode, &p.CategoryID,
		&p.Price, &p.Stock, &p.MinStock,
		&p.CreatedAt, &p.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if barcode != nil {
		p.Barcode = *barcode
	}
	return p, nil
}

func scanProductRows(rows pgx.Rows) (*domain.Product, error) {
	return scanProduct(rows)
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// ProductRepository implements the catalog port on Postgres
type ProductRepository struct {
	db     Querier
	logger *slog.Logger
}

var _ ports.ProductRepository = (*ProductRepository)(nil)

// NewProductRepository creates a new product repository
func NewProductRepository(db Querier, logger *slog.Logger) *ProductRepository {
	return &ProductRepository{
		db:     db,
		logger: logger.With(slog.String("repository", "product")),
	}
}

// Create inserts a product and fills in its id
func (r *ProductRepository) Create(ctx context.Context, p *domain.Product) error {
	sql, args, err := psql.
		Insert("products").
		Columns("name", "barcode", "category_id", "price", "stock", "min_stock", "created_at", "updated_at").
		Values(p.Name, nullableString(p.Barcode), p.CategoryID, p.Price, p.Stock, p.MinStock, p.CreatedAt, p.UpdatedAt).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build insert: %w", err)
	}

	if err := r.db.QueryRow(ctx, sql, args...).Scan(&p.ID); err != nil {
		if pgErrorCode(err) == codeUniqueViolation {
			return fmt.Errorf("%w: barcode %q already exists", domain.ErrInvalidProduct, p.Barcode)
		}
		return fmt.Errorf("failed to insert product: %w", err)
	}
	return nil
}

// Update writes catalog fields. The stock column is deliberately absent.
func (r *ProductRepository) Update(ctx context.Context, p *domain.Product) error {
	sql, args, err := psql.
		Update("products").
		Set("name", p.Name).
		Set("barcode", nullableString(p.Barcode)).
		Set("category_id", p.CategoryID).
		Set("price", p.Price).
		Set("min_stock", p.MinStock).
		Set("updated_at", p.UpdatedAt).
		Where(squirrel.Eq{"id": p.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build update: %w", err)
	}

	tag, err := r.db.Exec(ctx, sql, args...)
	if err != nil {
		if pgErrorCode(err) == codeUniqueViolation {
			return fmt.Errorf("%w: barcode %q already exists", domain.ErrInvalidProduct, p.Barcode)
		}
		return fmt.Errorf("failed to update product: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return &domain.ProductNotFoundError{ProductID: p.ID}
	}
	return nil
}

// Delete removes a product with no ledger history
func (r *ProductRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		if pgErrorCode(err) == codeForeignKeyViolation {
			return fmt.Errorf("product %d: %w", id, domain.ErrProductInUse)
		}
		return fmt.Errorf("failed to delete product: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return &domain.ProductNotFoundError{ProductID: id}
	}
	return nil
}

// FindByID reads a product without locking it
func (r *ProductRepository) FindByID(ctx context.Context, id int64) (*domain.Product, error) {
	sql, args, err := psql.Select(productColumns...).From("products").Where(squirrel.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	p, err := scanProduct(r.db.QueryRow(ctx, sql, args...))
	if err != nil {
		if isNoRows(err) {
			return nil, &domain.ProductNotFoundError{ProductID: id}
		}
		return nil, fmt.Errorf("failed to find product: %w", err)
	}
	return p, nil
}

// List returns one page of products and the total match count
func (r *ProductRepository) List(ctx context.Context, filter domain.ProductFilter) ([]*domain.Product, int64, error) {
	filter.Normalize()

	where := squirrel.And{}
	if filter.Search != "" {
		pattern := "%" + filter.Search + "%"
		where = append(where, squirrel.Or{
			squirrel.ILike{"name": pattern},
			squirrel.Eq{"barcode": filter.Search},
		})
	}
	if filter.CategoryID != nil {
		where = append(where, squirrel.Eq{"category_id": *filter.CategoryID})
	}
	if filter.LowStock {
		where = append(where, squirrel.Expr("stock <= min_stock"))
	}

	countSQL, countArgs, err := psql.Select("COUNT(*)").From("products").Where(where).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build count query: %w", err)
	}

	var total int64
	if err := r.db.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count products: %w", err)
	}

	sql, args, err := psql.
		Select(productColumns...).
		From("products").
		Where(where).
		OrderBy(fmt.Sprintf("%s %s", filter.SortBy, filter.SortOrder), "id").
		Limit(uint64(filter.PageSize)).
		Offset(uint64(filter.Offset())).
		ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build list query: %w", err)
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list products: %w", err)
	}

	products, err := scanMany(rows, scanProductRows)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to scan products: %w", err)
	}
	return products, total, nil
}

// LowStock lists products at or below min_stock, emptiest first
func (r *ProductRepository) LowStock(ctx context.Context) ([]*domain.Product, error) {
	sql, args, err := psql.
		Select(productColumns...).
		From("products").
		Where("stock <= min_stock").
		OrderBy("stock ASC", "id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list low stock products: %w", err)
	}
	return scanMany(rows, scanProductRows)
}
