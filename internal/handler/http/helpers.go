package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"github.com/juwura/storefront/internal/order"
	"github.com/juwura/storefront/internal/payment"
)

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"Failed to marshal JSON response"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if _, err := w.Write(response); err != nil {
		log.Error().Err(err).Msg("Failed to write JSON response")
	}
}

func mapErrorToStatusCode(err error) int {
	switch {
	case errors.Is(err, order.ErrEmptyCart),
		errors.Is(err, order.ErrValidation),
		errors.Is(err, order.ErrShippingMethodNotFound):
		return http.StatusBadRequest
	case errors.Is(err, order.ErrOrderNotFound):
		return http.StatusNotFound
	case errors.Is(err, order.ErrInsufficientStock),
		errors.Is(err, order.ErrProductNotFound):
		return http.StatusConflict
	case errors.Is(err, payment.ErrProviderUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func formatValidationErrors(validationErrors validator.ValidationErrors) string {
	details := make([]string, 0, len(validationErrors))
	for _, fieldErr := range validationErrors {
		switch fieldErr.Tag() {
		case "required":
			details = append(details, fmt.Sprintf("Field '%s' is required", fieldErr.Field()))
		case "email":
			details = append(details, fmt.Sprintf("Field '%s' must be a valid email address", fieldErr.Field()))
		case "min":
			details = append(details, fmt.Sprintf("Field '%s' must have at least %s entries", fieldErr.Field(), fieldErr.Param()))
		case "gt":
			details = append(details, fmt.Sprintf("Field '%s' must be greater than %s", fieldErr.Field(), fieldErr.Param()))
		case "gte":
			details = append(details, fmt.Sprintf("Field '%s' must be at least %s", fieldErr.Field(), fieldErr.Param()))
		case "uuid4":
			details = append(details, fmt.Sprintf("Field '%s' must be a valid UUID", fieldErr.Field()))
		default:
			details = append(details, fmt.Sprintf("Field '%s' is invalid", fieldErr.Field()))
		}
	}
	return strings.Join(details, "; ")
}
