package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v3"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		name     string
		val      string
		exponent int32
		expected int64
		wantErr  bool
	}{
		{name: "whole_units", val: "12", exponent: 2, expected: 1200},
		{name: "fractional", val: "12.50", exponent: 2, expected: 1250},
		{name: "thousands_separator", val: "1,250.75", exponent: 2, expected: 125075},
		{name: "zero_exponent", val: "3500", exponent: 0, expected: 3500},
		{name: "empty_is_zero", val: " ", exponent: 2, expected: 0},
		{name: "too_precise", val: "1.005", exponent: 2, wantErr: true},
		{name: "not_a_number", val: "abc", exponent: 2, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseAmount(tt.val, tt.exponent)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func writeCatalog(t *testing.T, rows [][]string) string {
	t.Helper()
	file := xlsx.NewFile()
	sheet, err := file.AddSheet("Catalog")
	require.NoError(t, err)
	for _, values := range rows {
		row := sheet.AddRow()
		for _, v := range values {
			row.AddCell().SetString(v)
		}
	}
	path := filepath.Join(t.TempDir(), "catalog.xlsx")
	require.NoError(t, file.Save(path))
	return path
}

func TestLoadCatalog(t *testing.T) {
	header := []string{"name", "barcode", "category", "price", "stock", "min_stock", "supplier", "unit_cost"}

	t.Run("reads_rows_after_header", func(t *testing.T) {
		path := writeCatalog(t, [][]string{
			header,
			{"Coffee 200g", "899100", "Beverages", "45.00", "12", "3", "PT Kopi", "30.50"},
			{"", "", "", "", "", "", "", ""},
			{"Sugar 1kg", "", "Groceries", "15", "", "", "", ""},
		})

		rows, err := LoadCatalog(path, 2)
		require.NoError(t, err)
		require.Len(t, rows, 2)

		assert.Equal(t, CatalogRow{
			Name: "Coffee 200g", Barcode: "899100", Category: "Beverages",
			Price: 4500, Stock: 12, MinStock: 3, Supplier: "PT Kopi", UnitCost: 3050,
		}, rows[0])
		assert.Equal(t, "Sugar 1kg", rows[1].Name)
		assert.Equal(t, int64(1500), rows[1].Price)
		assert.Zero(t, rows[1].Stock)
	})

	t.Run("rejects_negative_stock", func(t *testing.T) {
		path := writeCatalog(t, [][]string{
			header,
			{"Tea", "", "", "5", "-1", "", "", ""},
		})

		_, err := LoadCatalog(path, 2)
		assert.ErrorContains(t, err, "row 2: stock")
	})

	t.Run("missing_file", func(t *testing.T) {
		_, err := LoadCatalog(filepath.Join(t.TempDir(), "none.xlsx"), 2)
		assert.Error(t, err)
	})
}

func TestDefaultCatalogIsValid(t *testing.T) {
	seen := map[string]bool{}
	for _, row := range defaultCatalog() {
		assert.False(t, seen[row.Barcode], "duplicate barcode %s", row.Barcode)
		seen[row.Barcode] = true
		assert.Positive(t, row.Price)
		assert.Positive(t, row.Stock)
		assert.LessOrEqual(t, row.UnitCost, row.Price)
	}
}
