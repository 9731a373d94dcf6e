// internal/core/services/catalog.go
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ammerola/pos-ledger/internal/core/domain"
	"github.com/ammerola/pos-ledger/internal/core/ports"
)

// CatalogService handles product management. It never changes stock on an
// existing product; that is the ledger's job.
type CatalogService struct {
	repo     ports.ProductRepository
	cache    ports.CacheRepository
	notifier ports.ChangeNotifier
	cacheTTL time.Duration
	logger   *slog.Logger
}

var _ ports.CatalogService = (*CatalogService)(nil)

// NewCatalogService creates a new catalog service. cache and notifier are optional.
func NewCatalogService(
	repo ports.ProductRepository,
	cache ports.CacheRepository,
	notifier ports.ChangeNotifier,
	cacheTTL time.Duration,
	logger *slog.Logger,
) *CatalogService {
	return &CatalogService{
		repo:     repo,
		cache:    cache,
		notifier: notifier,
		cacheTTL: cacheTTL,
		logger:   logger.With(slog.String("service", "catalog")),
	}
}

// Create adds a product with its opening stock
func (s *CatalogService) Create(ctx context.Context, product *domain.Product) error {
	if err := product.Validate(); err != nil {
		return fmt.Errorf("%w: %s", domain.ErrInvalidProduct, err.Error())
	}
	product.PrepareForStorage()

	if err := s.repo.Create(ctx, product); err != nil {
		return fmt.Errorf("failed to create product: %w", err)
	}

	s.logger.InfoContext(ctx, "product created",
		slog.Int64("product_id", product.ID),
		slog.String("name", product.Name))

	s.publish(domain.NewCatalogEvent(domain.EventNewProduct, product))
	return nil
}

// Update changes catalog fields. Stock is carried over from the stored row.
func (s *CatalogService) Update(ctx context.Context, id int64, product *domain.Product) error {
	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load product %d: %w", id, err)
	}

	product.ID = id
	product.Stock = existing.Stock
	product.CreatedAt = existing.CreatedAt
	if err := product.Validate(); err != nil {
		return fmt.Errorf("%w: %s", domain.ErrInvalidProduct, err.Error())
	}
	product.PrepareForStorage()

	if err := s.repo.Update(ctx, product); err != nil {
		return fmt.Errorf("failed to update product %d: %w", id, err)
	}

	s.evict(ctx, id)
	s.logger.InfoContext(ctx, "product updated", slog.Int64("product_id", id))

	s.publish(domain.NewCatalogEvent(domain.EventUpdateProduct, product))
	return nil
}

// Delete removes a product that no ledger record references
func (s *CatalogService) Delete(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete product %d: %w", id, err)
	}

	s.evict(ctx, id)
	s.logger.InfoContext(ctx, "product deleted", slog.Int64("product_id", id))

	s.publish(domain.NewCatalogEvent(domain.EventDeleteProduct, &domain.Product{ID: id}))
	return nil
}

// Get returns a product for display. The stock shown may be stale.
func (s *CatalogService) Get(ctx context.Context, id int64) (*domain.Product, error) {
	return readThrough(ctx, s.cache, s.cacheTTL, ProductCacheKey(id), func() (*domain.Product, error) {
		return s.load(ctx, id)
	})
}

func (s *CatalogService) load(ctx context.Context, id int64) (*domain.Product, error) {
	product, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get product %d: %w", id, err)
	}
	return product, nil
}

// List returns a page of products
func (s *CatalogService) List(ctx context.Context, filter domain.ProductFilter) (*ports.ListResult[*domain.Product], error) {
	filter.Normalize()

	products, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}

	return ports.NewListResult(products, filter.Page, filter.PageSize, total), nil
}

// LowStock returns products at or below their reorder threshold
func (s *CatalogService) LowStock(ctx context.Context) ([]*domain.Product, error) {
	products, err := s.repo.LowStock(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list low stock products: %w", err)
	}
	return products, nil
}

func (s *CatalogService) evict(ctx context.Context, id int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, ProductCacheKey(id)); err != nil && !errors.Is(err, context.Canceled) {
		s.logger.WarnContext(ctx, "failed to evict product from cache",
			slog.Int64("product_id", id),
			slog.String("error", err.Error()))
	}
}

func (s *CatalogService) publish(event domain.ChangeEvent) {
	if s.notifier != nil {
		s.notifier.Notify(event)
	}
}
