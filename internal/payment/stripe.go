package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"
)

// ErrProviderUnavailable is returned once the capped retries against the
// payment provider are exhausted.
var ErrProviderUnavailable = errors.New("payment provider unavailable")

const (
	SessionStatusComplete = string(stripe.CheckoutSessionStatusComplete)
	PaymentStatusPaid     = string(stripe.CheckoutSessionPaymentStatusPaid)
)

type LineItem struct {
	Name       string
	ImageURL   string
	UnitAmount int64
	Quantity   int64
}

type CreateSessionInput struct {
	LineItems  []LineItem
	Currency   string
	SuccessURL string
	CancelURL  string
	Metadata   map[string]string
}

// Session is the provider-neutral view of a checkout session. The redirect
// URL and the ids are the only fields the rest of the service ever sees.
type Session struct {
	ID              string
	URL             string
	Status          string
	PaymentStatus   string
	PaymentIntentID string
}

type Provider interface {
	CreateCheckoutSession(ctx context.Context, in CreateSessionInput) (*Session, error)
	RetrieveSession(ctx context.Context, sessionID string) (*Session, error)
}

// checkoutSessionAPI is the slice of the Stripe client the provider uses;
// tests substitute a fake.
type checkoutSessionAPI interface {
	New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	Get(id string, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

type StripeProvider struct {
	sessions    checkoutSessionAPI
	maxAttempts int
	backoff     time.Duration
}

func NewStripeProvider(secretKey string) *StripeProvider {
	api := &client.API{}
	api.Init(secretKey, nil)
	return &StripeProvider{
		sessions:    api.CheckoutSessions,
		maxAttempts: 3,
		backoff:     500 * time.Millisecond,
	}
}

func (p *StripeProvider) CreateCheckoutSession(ctx context.Context, in CreateSessionInput) (*Session, error) {
	lineItems := make([]*stripe.CheckoutSessionLineItemParams, 0, len(in.LineItems))
	for _, item := range in.LineItems {
		productData := &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
			Name: stripe.String(item.Name),
		}
		if item.ImageURL != "" {
			productData.Images = stripe.StringSlice([]string{item.ImageURL})
		}
		lineItems = append(lineItems, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:    stripe.String(in.Currency),
				ProductData: productData,
				UnitAmount:  stripe.Int64(item.UnitAmount),
			},
			Quantity: stripe.Int64(item.Quantity),
		})
	}

	params := &stripe.CheckoutSessionParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems:          lineItems,
		SuccessURL:         stripe.String(in.SuccessURL),
		CancelURL:          stripe.String(in.CancelURL),
	}
	params.Context = ctx
	for k, v := range in.Metadata {
		params.AddMetadata(k, v)
	}

	sess, err := p.sessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("payment: failed to create checkout session: %w", err)
	}

	return toSession(sess), nil
}

// RetrieveSession is a read-only lookup; transient provider failures are
// retried with doubling backoff up to maxAttempts before surfacing
// ErrProviderUnavailable.
func (p *StripeProvider) RetrieveSession(ctx context.Context, sessionID string) (*Session, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx

	delay := p.backoff
	var lastErr error
	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		sess, err := p.sessions.Get(sessionID, params)
		if err == nil {
			return toSession(sess), nil
		}
		if !isRetryable(err) {
			return nil, fmt.Errorf("payment: failed to retrieve session: %w", err)
		}
		lastErr = err

		log.Warn().Err(err).Str("session_id", sessionID).Int("attempt", attempt).Msg("payment: transient provider error retrieving session")

		if attempt == p.maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("payment: retrieve session cancelled: %w", ctx.Err())
		case <-time.After(delay):
		}
		delay *= 2
	}

	return nil, fmt.Errorf("payment: %w after %d attempts: %v", ErrProviderUnavailable, p.maxAttempts, lastErr)
}

// isRetryable treats provider-side failures (5xx, rate limits, transport
// errors) as transient; 4xx responses are caller mistakes and final.
func isRetryable(err error) bool {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		if stripeErr.HTTPStatusCode == 429 {
			return true
		}
		return stripeErr.HTTPStatusCode >= 500
	}
	return true
}

func toSession(s *stripe.CheckoutSession) *Session {
	out := &Session{
		ID:            s.ID,
		URL:           s.URL,
		Status:        string(s.Status),
		PaymentStatus: string(s.PaymentStatus),
	}
	if s.PaymentIntent != nil {
		out.PaymentIntentID = s.PaymentIntent.ID
	}
	return out
}
