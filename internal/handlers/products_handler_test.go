// internal/handlers/products_handler_test.go
package handlers_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/ammerola/pos-ledger/internal/core/domain"
	"github.com/ammerola/pos-ledger/internal/core/ports"
	"github.com/ammerola/pos-ledger/internal/handlers"
	"github.com/ammerola/pos-ledger/test/helpers"
	"github.com/ammerola/pos-ledger/test/mocks"
)

func TestProductHandler_CreateProduct(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		setupMocks     func(*mocks.MockCatalogService)
		expectedStatus int
		expectedMsg    string
	}{
		{
			name: "creates_product",
			body: `{"name":"Instant Noodles","barcode":"8998866200301","price":3000,"stock":120,"min_stock":20}`,
			setupMocks: func(m *mocks.MockCatalogService) {
				m.EXPECT().Create(gomock.Any(), gomock.Any()).
					DoAndReturn(func(_ context.Context, p *domain.Product) error {
						assert.Equal(t, "Instant Noodles", p.Name)
						assert.Equal(t, int64(120), p.Stock)
						p.ID = 12
						return nil
					})
			},
			expectedStatus: http.StatusCreated,
			expectedMsg:    "Product created successfully",
		},
		{
			name: "validation_failure",
			body: `{"name":"","price":3000}`,
			setupMocks: func(m *mocks.MockCatalogService) {
				m.EXPECT().Create(gomock.Any(), gomock.Any()).
					Return(fmt.Errorf("%w: name is required", domain.ErrInvalidProduct))
			},
			expectedStatus: http.StatusBadRequest,
			expectedMsg:    "invalid product: name is required",
		},
		{
			name:           "malformed_body",
			body:           `[]`,
			setupMocks:     func(m *mocks.MockCatalogService) {},
			expectedStatus: http.StatusBadRequest,
			expectedMsg:    "Invalid request body",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			mockService := mocks.NewMockCatalogService(ctrl)
			tt.setupMocks(mockService)
			handler := handlers.NewProductHandler(mockService, helpers.TestLogger())

			w := httptest.NewRecorder()
			handler.CreateProduct(w, cashierRequest(http.MethodPost, "/api/v1/products", []byte(tt.body)))

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.Equal(t, tt.expectedMsg, decodeEnvelope(t, w.Body.Bytes()).Message)
		})
	}
}

func TestProductHandler_UpdateProduct(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockService := mocks.NewMockCatalogService(ctrl)
	handler := handlers.NewProductHandler(mockService, helpers.TestLogger())

	mockService.EXPECT().Update(gomock.Any(), int64(4), gomock.Any()).
		DoAndReturn(func(_ context.Context, id int64, p *domain.Product) error {
			assert.Equal(t, 4500, int(p.Price))
			return nil
		})

	req := cashierRequest(http.MethodPut, "/api/v1/products/4", []byte(`{"name":"Coffee Sachet","price":4500}`))
	req.SetPathValue("id", "4")
	w := httptest.NewRecorder()
	handler.UpdateProduct(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Product updated successfully", decodeEnvelope(t, w.Body.Bytes()).Message)
}

func TestProductHandler_DeleteProduct(t *testing.T) {
	tests := []struct {
		name           string
		id             string
		setupMocks     func(*mocks.MockCatalogService)
		expectedStatus int
	}{
		{
			name: "deletes_product",
			id:   "4",
			setupMocks: func(m *mocks.MockCatalogService) {
				m.EXPECT().Delete(gomock.Any(), int64(4)).Return(nil)
			},
			expectedStatus: http.StatusOK,
		},
		{
			name: "product_in_use",
			id:   "4",
			setupMocks: func(m *mocks.MockCatalogService) {
				m.EXPECT().Delete(gomock.Any(), int64(4)).Return(domain.ErrProductInUse)
			},
			expectedStatus: http.StatusConflict,
		},
		{
			name: "product_not_found",
			id:   "5",
			setupMocks: func(m *mocks.MockCatalogService) {
				m.EXPECT().Delete(gomock.Any(), int64(5)).Return(&domain.ProductNotFoundError{ProductID: 5})
			},
			expectedStatus: http.StatusNotFound,
		},
		{
			name:           "invalid_id",
			id:             "-1",
			setupMocks:     func(m *mocks.MockCatalogService) {},
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			mockService := mocks.NewMockCatalogService(ctrl)
			tt.setupMocks(mockService)
			handler := handlers.NewProductHandler(mockService, helpers.TestLogger())

			req := cashierRequest(http.MethodDelete, "/api/v1/products/"+tt.id, nil)
			req.SetPathValue("id", tt.id)
			w := httptest.NewRecorder()
			handler.DeleteProduct(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
		})
	}
}

func TestProductHandler_ListProducts(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockService := mocks.NewMockCatalogService(ctrl)
	handler := handlers.NewProductHandler(mockService, helpers.TestLogger())

	product := helpers.CreateTestProduct(func(p *domain.Product) { p.ID = 1 })
	mockService.EXPECT().List(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, f domain.ProductFilter) (*ports.ListResult[*domain.Product], error) {
			assert.Equal(t, "water", f.Search)
			assert.True(t, f.LowStock)
			require.NotNil(t, f.CategoryID)
			assert.Equal(t, int64(2), *f.CategoryID)
			return ports.NewListResult([]*domain.Product{product}, f.Page, f.PageSize, 1), nil
		})

	w := httptest.NewRecorder()
	handler.ListProducts(w, cashierRequest(http.MethodGet, "/api/v1/products?search=water&low_stock=true&category_id=2", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var result ports.ListResult[domain.Product]
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w.Body.Bytes()).Data, &result))
	assert.Equal(t, int64(1), result.TotalCount)
	require.Len(t, result.Items, 1)
	assert.Equal(t, "Mineral Water 600ml", result.Items[0].Name)
}

func TestProductHandler_LowStock(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockService := mocks.NewMockCatalogService(ctrl)
	handler := handlers.NewProductHandler(mockService, helpers.TestLogger())

	mockService.EXPECT().LowStock(gomock.Any()).Return([]*domain.Product{
		helpers.CreateTestProduct(func(p *domain.Product) { p.ID = 1; p.Stock = 2 }),
	}, nil)

	w := httptest.NewRecorder()
	handler.LowStock(w, cashierRequest(http.MethodGet, "/api/v1/products/low-stock", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	var products []domain.Product
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w.Body.Bytes()).Data, &products))
	require.Len(t, products, 1)
	assert.Equal(t, int64(2), products[0].Stock)
}
