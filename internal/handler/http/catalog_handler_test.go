package http_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/juwura/storefront/internal/catalog"
	storeHandler "github.com/juwura/storefront/internal/handler/http"
)

type stubCatalogRepository struct {
	products []catalog.Product
	methods  []catalog.ShippingMethod
	err      error
}

func (s *stubCatalogRepository) ListProducts(ctx context.Context) ([]catalog.Product, error) {
	return s.products, s.err
}

func (s *stubCatalogRepository) ListShippingMethods(ctx context.Context) ([]catalog.ShippingMethod, error) {
	return s.methods, s.err
}

func newCatalogRouter(repo catalog.Repository) *chi.Mux {
	service := catalog.NewService(repo, nil, 0)
	router := chi.NewRouter()
	storeHandler.NewCatalogHandler(service).RegisterRoutes(router)
	return router
}

func TestCatalogHandler_handleListProducts(t *testing.T) {
	expected := []catalog.Product{
		{ID: uuid.Must(uuid.NewV4()), Name: "Ankara Midi Dress", Price: 2500000, StockQuantity: 12},
	}
	router := newCatalogRouter(&stubCatalogRepository{products: expected})

	req := httptest.NewRequest(http.MethodGet, "/api/products", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)

	var actual []catalog.Product
	err := json.NewDecoder(rr.Body).Decode(&actual)
	require.NoError(t, err, "Failed to decode response body")
	require.Len(t, actual, 1)
	assert.Equal(t, expected[0].ID, actual[0].ID)
	assert.Equal(t, expected[0].Name, actual[0].Name)
	assert.Equal(t, expected[0].Price, actual[0].Price)
}

func TestCatalogHandler_handleListShippingMethods(t *testing.T) {
	expected := []catalog.ShippingMethod{
		{ID: uuid.Must(uuid.NewV4()), Name: "Standard Delivery", Price: 300000, EstimatedDays: 5},
		{ID: uuid.Must(uuid.NewV4()), Name: "Express Delivery", Price: 500000, EstimatedDays: 2},
	}
	router := newCatalogRouter(&stubCatalogRepository{methods: expected})

	req := httptest.NewRequest(http.MethodGet, "/api/shipping-methods", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)

	var actual []catalog.ShippingMethod
	err := json.NewDecoder(rr.Body).Decode(&actual)
	require.NoError(t, err, "Failed to decode response body")
	require.Len(t, actual, 2)
	assert.Equal(t, expected[0].Name, actual[0].Name)
	assert.Equal(t, expected[1].Price, actual[1].Price)
}
