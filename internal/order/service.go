package order

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"

	"github.com/juwura/storefront/internal/events"
	"github.com/juwura/storefront/internal/payment"
)

var (
	ErrEmptyCart  = errors.New("cart is empty")
	ErrValidation = errors.New("validation failed")
)

const (
	logStatusSessionCreated = "session_created"
	logStatusSessionFailed  = "session_failed"
	logStatusPaid           = "paid"
	logStatusFailed         = "failed"
)

type CustomerInfo struct {
	FirstName string
	LastName  string
	Email     string
	Phone     string
}

type CheckoutInput struct {
	Items            []CartItem
	Customer         CustomerInfo
	ShippingAddress  ShippingAddress
	ShippingMethodID uuid.UUID
	PaymentMethod    string
}

// CheckoutResult is the whole success payload: the external redirect URL
// and the internal order identifiers, never provider credentials.
type CheckoutResult struct {
	OrderID     uuid.UUID
	OrderNumber string
	RedirectURL string
}

type ReconcileResult struct {
	Success       bool
	Order         *Order
	SessionStatus string
	PaymentStatus string
}

type Service interface {
	Checkout(ctx context.Context, in CheckoutInput) (*CheckoutResult, error)
	ReconcilePayment(ctx context.Context, sessionID string) (*ReconcileResult, error)
}

// CatalogInvalidator lets reconciliation drop cached product listings after
// stock changes. Optional.
type CatalogInvalidator interface {
	InvalidateProducts(ctx context.Context)
}

type service struct {
	repo        Repository
	payments    payment.Provider
	publisher   events.Publisher
	invalidator CatalogInvalidator

	currency   string
	successURL string
	cancelURL  string
}

type ServiceOption func(*service)

func WithPublisher(p events.Publisher) ServiceOption {
	return func(s *service) { s.publisher = p }
}

func WithCatalogInvalidator(inv CatalogInvalidator) ServiceOption {
	return func(s *service) { s.invalidator = inv }
}

func NewService(repo Repository, payments payment.Provider, currency, successURL, cancelURL string, opts ...ServiceOption) Service {
	s := &service{
		repo:       repo,
		payments:   payments,
		publisher:  events.NopPublisher{},
		currency:   currency,
		successURL: successURL,
		cancelURL:  cancelURL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Checkout runs the whole orchestration: validate, price, upsert customer,
// create order+items in one transaction, create the provider session, and
// attach the session id to the order. Nothing external is called until the
// input has passed validation.
func (s *service) Checkout(ctx context.Context, in CheckoutInput) (*CheckoutResult, error) {
	if err := validateCheckoutInput(in); err != nil {
		log.Warn().Err(err).Msg("service: checkout input rejected")
		return nil, err
	}

	method, err := s.repo.GetShippingMethod(ctx, in.ShippingMethodID)
	if err != nil {
		if errors.Is(err, ErrShippingMethodNotFound) {
			return nil, ErrShippingMethodNotFound
		}
		return nil, fmt.Errorf("service: failed to load shipping method: %w", err)
	}
	if !method.IsActive {
		return nil, ErrShippingMethodNotFound
	}

	pricing := CalculatePricing(in.Items, method)

	customer := &Customer{
		FirstName: in.Customer.FirstName,
		LastName:  in.Customer.LastName,
		Email:     in.Customer.Email,
		Phone:     in.Customer.Phone,
	}
	customerID, err := s.repo.UpsertCustomerByEmail(ctx, customer)
	if err != nil {
		return nil, fmt.Errorf("service: failed to upsert customer: %w", err)
	}

	items := make([]OrderItem, 0, len(in.Items))
	for _, cartItem := range in.Items {
		items = append(items, OrderItem{
			ProductID:  cartItem.ProductID,
			Quantity:   cartItem.Quantity,
			UnitPrice:  cartItem.UnitPrice,
			TotalPrice: cartItem.UnitPrice * int64(cartItem.Quantity),
		})
	}

	ord := &Order{
		CustomerID:       customerID,
		SubtotalAmount:   pricing.Subtotal,
		ShippingCost:     pricing.ShippingCost,
		TaxAmount:        pricing.TaxAmount,
		DiscountAmount:   pricing.DiscountAmount,
		TotalAmount:      pricing.Total,
		PaymentMethod:    in.PaymentMethod,
		ShippingAddress:  in.ShippingAddress,
		ShippingMethodID: in.ShippingMethodID,
		Items:            items,
	}

	orderID, err := s.repo.CreateOrderWithItems(ctx, ord)
	if err != nil {
		log.Error().Err(err).Msg("service: failed to create order")
		return nil, fmt.Errorf("service: failed to create order: %w", err)
	}

	sess, err := s.payments.CreateCheckoutSession(ctx, payment.CreateSessionInput{
		LineItems:  toLineItems(in.Items),
		Currency:   s.currency,
		SuccessURL: s.successURL,
		CancelURL:  s.cancelURL,
		Metadata: map[string]string{
			"order_id":     orderID.String(),
			"order_number": ord.OrderNumber,
		},
	})
	if err != nil {
		s.containCheckoutFailure(ctx, ord, "", err)
		return nil, fmt.Errorf("service: failed to create payment session: %w", err)
	}

	if err := s.repo.AttachPaymentSession(ctx, orderID, sess.ID); err != nil {
		s.containCheckoutFailure(ctx, ord, sess.ID, err)
		return nil, fmt.Errorf("service: failed to attach payment session: %w", err)
	}

	s.logPayment(ctx, &PaymentLog{
		OrderID:         orderID,
		PaymentMethod:   in.PaymentMethod,
		Amount:          pricing.Total,
		Status:          logStatusSessionCreated,
		StripeSessionID: sess.ID,
		Metadata:        map[string]string{"order_number": ord.OrderNumber},
	})

	log.Info().
		Stringer("order_id", orderID).
		Str("order_number", ord.OrderNumber).
		Int64("total_amount", pricing.Total).
		Msg("service: checkout session created")

	return &CheckoutResult{
		OrderID:     orderID,
		OrderNumber: ord.OrderNumber,
		RedirectURL: sess.URL,
	}, nil
}

// containCheckoutFailure makes sure an order whose payment session never
// became reachable ends up terminally cancelled instead of pending forever.
func (s *service) containCheckoutFailure(ctx context.Context, ord *Order, sessionID string, cause error) {
	log.Error().Err(cause).Stringer("order_id", ord.ID).Msg("service: checkout failed after order creation, cancelling order")

	if err := s.repo.MarkOrderCancelled(ctx, ord.ID); err != nil {
		log.Error().Err(err).Stringer("order_id", ord.ID).Msg("service: failed to cancel order after checkout failure")
	}
	s.logPayment(ctx, &PaymentLog{
		OrderID:         ord.ID,
		PaymentMethod:   ord.PaymentMethod,
		Amount:          ord.TotalAmount,
		Status:          logStatusSessionFailed,
		StripeSessionID: sessionID,
		ErrorMessage:    cause.Error(),
		Metadata:        map[string]string{"order_number": ord.OrderNumber},
	})
}

// logPayment appends to the audit trail; a failed append is logged, never
// allowed to fail the request.
func (s *service) logPayment(ctx context.Context, entry *PaymentLog) {
	if err := s.repo.InsertPaymentLog(ctx, entry); err != nil {
		log.Error().Err(err).Stringer("order_id", entry.OrderID).Str("status", entry.Status).Msg("service: failed to insert payment log")
	}
}

func validateCheckoutInput(in CheckoutInput) error {
	if len(in.Items) == 0 {
		return ErrEmptyCart
	}
	for _, item := range in.Items {
		if item.ProductID == uuid.Nil {
			return fmt.Errorf("%w: cart item product id is required", ErrValidation)
		}
		if item.Quantity <= 0 {
			return fmt.Errorf("%w: quantity for product %s must be greater than zero", ErrValidation, item.ProductID)
		}
		if item.UnitPrice < 0 {
			return fmt.Errorf("%w: unit price for product %s cannot be negative", ErrValidation, item.ProductID)
		}
	}
	if strings.TrimSpace(in.Customer.Email) == "" {
		return fmt.Errorf("%w: customer email is required", ErrValidation)
	}
	if strings.TrimSpace(in.Customer.FirstName) == "" || strings.TrimSpace(in.Customer.LastName) == "" {
		return fmt.Errorf("%w: customer name is required", ErrValidation)
	}
	if in.ShippingMethodID == uuid.Nil {
		return fmt.Errorf("%w: shipping method is required", ErrValidation)
	}
	if strings.TrimSpace(in.PaymentMethod) == "" {
		return fmt.Errorf("%w: payment method is required", ErrValidation)
	}
	return nil
}

func toLineItems(items []CartItem) []payment.LineItem {
	out := make([]payment.LineItem, 0, len(items))
	for _, item := range items {
		out = append(out, payment.LineItem{
			Name:       item.Name,
			ImageURL:   item.ImageURL,
			UnitAmount: item.UnitPrice,
			Quantity:   int64(item.Quantity),
		})
	}
	return out
}
