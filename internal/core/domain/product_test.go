package domain_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ammerola/pos-ledger/internal/core/domain"
)

func TestProduct_Validate(t *testing.T) {
	tests := []struct {
		name      string
		product   *domain.Product
		wantError bool
		errorMsg  string
	}{
		{
			name:    "valid_product",
			product: &domain.Product{Name: "Instant Noodles", Price: 3000, Stock: 10, MinStock: 2},
		},
		{
			name:      "missing_name",
			product:   &domain.Product{Name: "   ", Price: 3000},
			wantError: true,
			errorMsg:  "name is required",
		},
		{
			name:      "name_too_long",
			product:   &domain.Product{Name: strings.Repeat("x", 101), Price: 3000},
			wantError: true,
			errorMsg:  "name must be at most 100 characters",
		},
		{
			name:      "negative_price",
			product:   &domain.Product{Name: "Tea", Price: -1},
			wantError: true,
			errorMsg:  "price cannot be negative",
		},
		{
			name:      "negative_stock",
			product:   &domain.Product{Name: "Tea", Stock: -1},
			wantError: true,
			errorMsg:  "stock cannot be negative",
		},
		{
			name:      "negative_min_stock",
			product:   &domain.Product{Name: "Tea", MinStock: -1},
			wantError: true,
			errorMsg:  "min_stock cannot be negative",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.product.Validate()
			if tt.wantError {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errorMsg)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestProduct_ValidateDefaultsMinStock(t *testing.T) {
	p := &domain.Product{Name: " Tea ", Price: 2000}
	require.NoError(t, p.Validate())
	assert.Equal(t, "Tea", p.Name)
	assert.Equal(t, domain.DefaultMinStock, p.MinStock)
}

func TestProduct_IsLowStock(t *testing.T) {
	assert.True(t, (&domain.Product{Stock: 5, MinStock: 5}).IsLowStock())
	assert.True(t, (&domain.Product{Stock: 0, MinStock: 5}).IsLowStock())
	assert.False(t, (&domain.Product{Stock: 6, MinStock: 5}).IsLowStock())
}

func TestProduct_PrepareForStorage(t *testing.T) {
	p := &domain.Product{Name: "Tea"}
	p.PrepareForStorage()
	require.False(t, p.CreatedAt.IsZero())
	created := p.CreatedAt

	p.PrepareForStorage()
	assert.Equal(t, created, p.CreatedAt)
	assert.False(t, p.UpdatedAt.Before(created))
}

func TestProductFilter_Normalize(t *testing.T) {
	f := domain.ProductFilter{Page: 3, PageSize: 500, SortBy: "drop table", SortOrder: "sideways"}
	f.Normalize()

	assert.Equal(t, 100, f.PageSize)
	assert.Equal(t, "name", f.SortBy)
	assert.Equal(t, "asc", f.SortOrder)
	assert.Equal(t, 200, f.Offset())

	f = domain.ProductFilter{SortBy: "price", SortOrder: "desc"}
	f.Normalize()
	assert.Equal(t, 1, f.Page)
	assert.Equal(t, 20, f.PageSize)
	assert.Equal(t, "price", f.SortBy)
	assert.Equal(t, "desc", f.SortOrder)
	assert.Equal(t, 0, f.Offset())
}
