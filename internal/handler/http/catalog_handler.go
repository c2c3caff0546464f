package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/juwura/storefront/internal/catalog"
)

type CatalogHandler struct {
	service *catalog.Service
}

func NewCatalogHandler(service *catalog.Service) *CatalogHandler {
	return &CatalogHandler{service: service}
}

func (h *CatalogHandler) RegisterRoutes(router chi.Router) {
	router.Get("/api/products", h.handleListProducts)
	router.Get("/api/shipping-methods", h.handleListShippingMethods)
}

func (h *CatalogHandler) handleListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.service.ListProducts(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to list products via service")
		respondWithError(w, http.StatusInternalServerError, "Failed to list products")
		return
	}

	respondWithJSON(w, http.StatusOK, products)
}

func (h *CatalogHandler) handleListShippingMethods(w http.ResponseWriter, r *http.Request) {
	methods, err := h.service.ListShippingMethods(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to list shipping methods via service")
		respondWithError(w, http.StatusInternalServerError, "Failed to list shipping methods")
		return
	}

	respondWithJSON(w, http.StatusOK, methods)
}
