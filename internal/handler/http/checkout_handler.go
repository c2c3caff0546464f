package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"

	"github.com/juwura/storefront/internal/order"
)

type CheckoutItemRequest struct {
	ID       string `json:"id" validate:"required,uuid4"`
	Name     string `json:"name" validate:"required"`
	Price    int64  `json:"price" validate:"gte=0"`
	Image    string `json:"image,omitempty"`
	Quantity int    `json:"quantity" validate:"required,gt=0"`
}

type ShippingDataRequest struct {
	FirstName  string `json:"first_name" validate:"required"`
	LastName   string `json:"last_name" validate:"required"`
	Email      string `json:"email" validate:"required,email"`
	Phone      string `json:"phone,omitempty"`
	Address    string `json:"address" validate:"required"`
	City       string `json:"city" validate:"required"`
	State      string `json:"state" validate:"required"`
	PostalCode string `json:"postal_code,omitempty"`
	Country    string `json:"country,omitempty"`
}

type CreateCheckoutRequest struct {
	Items            []CheckoutItemRequest `json:"items" validate:"required,min=1,dive"`
	ShippingData     ShippingDataRequest   `json:"shipping_data" validate:"required"`
	ShippingMethodID string                `json:"shipping_method_id" validate:"required,uuid4"`
	PaymentMethod    string                `json:"payment_method" validate:"required,oneof=stripe"`
}

type CheckoutResponse struct {
	OrderID     string `json:"order_id"`
	OrderNumber string `json:"order_number"`
	RedirectURL string `json:"redirect_url"`
}

type VerifyPaymentRequest struct {
	SessionID string `json:"session_id" validate:"required"`
}

type OrderResponse struct {
	ID             string    `json:"id"`
	OrderNumber    string    `json:"order_number"`
	SubtotalAmount int64     `json:"subtotal_amount"`
	ShippingCost   int64     `json:"shipping_cost"`
	TotalAmount    int64     `json:"total_amount"`
	PaymentStatus  string    `json:"payment_status"`
	OrderStatus    string    `json:"order_status"`
	CreatedAt      time.Time `json:"created_at"`
}

type VerifyPaymentResponse struct {
	Success       bool           `json:"success"`
	Order         *OrderResponse `json:"order,omitempty"`
	SessionStatus string         `json:"session_status"`
	PaymentStatus string         `json:"payment_status"`
}

type CheckoutHandler struct {
	service  order.Service
	validate *validator.Validate
}

func NewCheckoutHandler(service order.Service) *CheckoutHandler {
	return &CheckoutHandler{
		service:  service,
		validate: validator.New(),
	}
}

func (h *CheckoutHandler) RegisterRoutes(router chi.Router) {
	router.Post("/api/checkout", h.handleCreateCheckout)
	router.Post("/api/checkout/verify", h.handleVerifyPayment)
}

func (h *CheckoutHandler) handleCreateCheckout(w http.ResponseWriter, r *http.Request) {
	var requestPayload CreateCheckoutRequest

	// Clients forward their cart snapshot verbatim, extra fields included,
	// so unknown fields are ignored rather than rejected.
	if err := json.NewDecoder(r.Body).Decode(&requestPayload); err != nil {
		log.Warn().Err(err).Msg("Failed to decode checkout request body")
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	if err := h.validate.Struct(requestPayload); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			respondWithError(w, http.StatusBadRequest, formatValidationErrors(validationErrors))
		} else {
			log.Error().Err(err).Msg("Unexpected error type during validation")
			respondWithError(w, http.StatusInternalServerError, "Internal validation error")
		}
		return
	}

	input, err := toCheckoutInput(requestPayload)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid id in request payload")
		return
	}

	result, err := h.service.Checkout(r.Context(), input)
	if err != nil {
		log.Error().Err(err).Msg("Failed to create checkout via service")

		statusCode := mapErrorToStatusCode(err)
		respondWithError(w, statusCode, clientCheckoutMessage(err))
		return
	}

	respondWithJSON(w, http.StatusOK, CheckoutResponse{
		OrderID:     result.OrderID.String(),
		OrderNumber: result.OrderNumber,
		RedirectURL: result.RedirectURL,
	})
}

func (h *CheckoutHandler) handleVerifyPayment(w http.ResponseWriter, r *http.Request) {
	var requestPayload VerifyPaymentRequest

	if err := json.NewDecoder(r.Body).Decode(&requestPayload); err != nil {
		log.Warn().Err(err).Msg("Failed to decode verify request body")
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	if err := h.validate.Struct(requestPayload); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			respondWithError(w, http.StatusBadRequest, formatValidationErrors(validationErrors))
		} else {
			log.Error().Err(err).Msg("Unexpected error type during validation")
			respondWithError(w, http.StatusInternalServerError, "Internal validation error")
		}
		return
	}

	result, err := h.service.ReconcilePayment(r.Context(), requestPayload.SessionID)
	if err != nil {
		log.Error().Err(err).Str("session_id", requestPayload.SessionID).Msg("Failed to verify payment via service")

		statusCode := mapErrorToStatusCode(err)
		respondWithError(w, statusCode, clientVerifyMessage(err))
		return
	}

	respondWithJSON(w, http.StatusOK, VerifyPaymentResponse{
		Success:       result.Success,
		Order:         toOrderResponse(result.Order),
		SessionStatus: result.SessionStatus,
		PaymentStatus: result.PaymentStatus,
	})
}

func toCheckoutInput(req CreateCheckoutRequest) (order.CheckoutInput, error) {
	items := make([]order.CartItem, 0, len(req.Items))
	for _, item := range req.Items {
		productID, err := uuid.FromString(item.ID)
		if err != nil {
			return order.CheckoutInput{}, err
		}
		items = append(items, order.CartItem{
			ProductID: productID,
			Name:      item.Name,
			ImageURL:  item.Image,
			UnitPrice: item.Price,
			Quantity:  item.Quantity,
		})
	}

	methodID, err := uuid.FromString(req.ShippingMethodID)
	if err != nil {
		return order.CheckoutInput{}, err
	}

	country := req.ShippingData.Country
	if country == "" {
		country = "Nigeria"
	}

	return order.CheckoutInput{
		Items: items,
		Customer: order.CustomerInfo{
			FirstName: req.ShippingData.FirstName,
			LastName:  req.ShippingData.LastName,
			Email:     req.ShippingData.Email,
			Phone:     req.ShippingData.Phone,
		},
		ShippingAddress: order.ShippingAddress{
			StreetAddress: req.ShippingData.Address,
			City:          req.ShippingData.City,
			State:         req.ShippingData.State,
			PostalCode:    req.ShippingData.PostalCode,
			Country:       country,
		},
		ShippingMethodID: methodID,
		PaymentMethod:    req.PaymentMethod,
	}, nil
}

func toOrderResponse(o *order.Order) *OrderResponse {
	if o == nil {
		return nil
	}
	return &OrderResponse{
		ID:             o.ID.String(),
		OrderNumber:    o.OrderNumber,
		SubtotalAmount: o.SubtotalAmount,
		ShippingCost:   o.ShippingCost,
		TotalAmount:    o.TotalAmount,
		PaymentStatus:  o.PaymentStatus.String(),
		OrderStatus:    o.OrderStatus.String(),
		CreatedAt:      o.CreatedAt,
	}
}

func clientCheckoutMessage(err error) string {
	switch {
	case errors.Is(err, order.ErrEmptyCart):
		return "Cart is empty"
	case errors.Is(err, order.ErrValidation):
		return err.Error()
	case errors.Is(err, order.ErrShippingMethodNotFound):
		return "Shipping method not found"
	case errors.Is(err, order.ErrProductNotFound):
		return "One of the cart items is no longer available"
	default:
		return "Failed to create checkout"
	}
}

func clientVerifyMessage(err error) string {
	switch {
	case errors.Is(err, order.ErrOrderNotFound):
		return "Order not found"
	default:
		return "Failed to verify payment status"
	}
}
