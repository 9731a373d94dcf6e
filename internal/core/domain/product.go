// internal/core/domain/product.go
package domain

import (
	"fmt"
	"strings"
	"time"
)

// DefaultMinStock is the reorder threshold assigned when none is given.
const DefaultMinStock int64 = 5

// Product is a sellable catalog entry. Stock is mutated only by the ledger.
type Product struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	Barcode    string    `json:"barcode,omitempty"`
	CategoryID *int64    `json:"category_id,omitempty"`
	Price      int64     `json:"price"`
	Stock      int64     `json:"stock"`
	MinStock   int64     `json:"min_stock"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Validate performs domain validation on catalog writes
func (p *Product) Validate() error {
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return fmt.Errorf("name is required")
	}
	if len(p.Name) > 100 {
		return fmt.Errorf("name must be at most 100 characters")
	}
	if p.Price < 0 {
		return fmt.Errorf("price cannot be negative")
	}
	if p.Stock < 0 {
		return fmt.Errorf("stock cannot be negative")
	}
	if p.MinStock < 0 {
		return fmt.Errorf("min_stock cannot be negative")
	}
	if p.MinStock == 0 {
		p.MinStock = DefaultMinStock
	}
	return nil
}

// IsLowStock reports whether the product is at or below its reorder threshold.
func (p *Product) IsLowStock() bool {
	return p.Stock <= p.MinStock
}

// PrepareForStorage sets timestamps before a catalog write
func (p *Product) PrepareForStorage() {
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
}

// ProductFilter narrows catalog listings.
type ProductFilter struct {
	Search     string
	CategoryID *int64
	LowStock   bool
	Page       int
	PageSize   int
	SortBy     string
	SortOrder  string
}

// Normalize clamps paging and sorting to supported values.
func (f *ProductFilter) Normalize() {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize < 1 {
		f.PageSize = 20
	}
	if f.PageSize > 100 {
		f.PageSize = 100
	}
	switch f.SortBy {
	case "name", "price", "stock", "created_at":
	default:
		f.SortBy = "name"
	}
	if f.SortOrder != "desc" {
		f.SortOrder = "asc"
	}
}

// Offset returns the row offset for the current page.
func (f ProductFilter) Offset() int {
	return (f.Page - 1) * f.PageSize
}
