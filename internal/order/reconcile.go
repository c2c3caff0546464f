package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/juwura/storefront/internal/events"
	"github.com/juwura/storefront/internal/payment"
)

// ReconcilePayment pulls the provider's view of a checkout session and
// folds it back into the order. The pending-guarded updates in the
// repository make the paid/failed side effects apply exactly once, so the
// client can safely call this any number of times after redirect-back.
func (s *service) ReconcilePayment(ctx context.Context, sessionID string) (*ReconcileResult, error) {
	ord, err := s.repo.GetOrderBySessionID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			log.Warn().Str("session_id", sessionID).Msg("service: no order for payment session")
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("service: failed to look up order for session: %w", err)
	}

	sess, err := s.payments.RetrieveSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("service: failed to retrieve payment session: %w", err)
	}

	if sess.PaymentStatus == payment.PaymentStatusPaid {
		if err := s.applyPaidOutcome(ctx, ord, sess); err != nil {
			return nil, err
		}
	} else {
		if err := s.applyFailedOutcome(ctx, ord, sess); err != nil {
			return nil, err
		}
	}

	refreshed, err := s.repo.GetOrderByID(ctx, ord.ID)
	if err != nil {
		return nil, fmt.Errorf("service: failed to reload order %s: %w", ord.ID, err)
	}

	return &ReconcileResult{
		Success:       refreshed.PaymentStatus == PaymentPaid,
		Order:         refreshed,
		SessionStatus: sess.Status,
		PaymentStatus: sess.PaymentStatus,
	}, nil
}

func (s *service) applyPaidOutcome(ctx context.Context, ord *Order, sess *payment.Session) error {
	applied, err := s.repo.MarkOrderPaid(ctx, ord.ID, sess.PaymentIntentID)
	if err != nil {
		return fmt.Errorf("service: failed to mark order paid: %w", err)
	}
	if !applied {
		// Already reconciled; never decrement stock a second time.
		log.Info().Stringer("order_id", ord.ID).Msg("service: order already reconciled, skipping paid side effects")
		return nil
	}

	for _, item := range ord.Items {
		if err := s.repo.DecrementStock(ctx, item.ProductID, item.Quantity); err != nil {
			// Payment is already captured; an oversold or missing product
			// is an ops problem, not a reason to fail the shopper.
			log.Error().Err(err).
				Stringer("order_id", ord.ID).
				Stringer("product_id", item.ProductID).
				Int("quantity", item.Quantity).
				Msg("service: failed to decrement stock for paid order")
		}
	}
	if s.invalidator != nil {
		s.invalidator.InvalidateProducts(ctx)
	}

	s.logPayment(ctx, &PaymentLog{
		OrderID:         ord.ID,
		PaymentMethod:   ord.PaymentMethod,
		Amount:          ord.TotalAmount,
		Status:          logStatusPaid,
		StripeSessionID: sess.ID,
		Metadata:        map[string]string{"order_number": ord.OrderNumber},
	})
	s.publish(ctx, events.OrderEvent{
		Type:        events.TypeOrderPaid,
		OrderID:     ord.ID.String(),
		OrderNumber: ord.OrderNumber,
		TotalAmount: ord.TotalAmount,
		OccurredAt:  time.Now().UTC(),
	})

	log.Info().
		Stringer("order_id", ord.ID).
		Str("order_number", ord.OrderNumber).
		Msg("service: order confirmed as paid")
	return nil
}

func (s *service) applyFailedOutcome(ctx context.Context, ord *Order, sess *payment.Session) error {
	applied, err := s.repo.MarkOrderPaymentFailed(ctx, ord.ID)
	if err != nil {
		return fmt.Errorf("service: failed to mark order payment failed: %w", err)
	}
	if !applied {
		log.Info().Stringer("order_id", ord.ID).Msg("service: order already reconciled, skipping failed side effects")
		return nil
	}

	s.logPayment(ctx, &PaymentLog{
		OrderID:         ord.ID,
		PaymentMethod:   ord.PaymentMethod,
		Amount:          ord.TotalAmount,
		Status:          logStatusFailed,
		StripeSessionID: sess.ID,
		ErrorMessage:    fmt.Sprintf("session status %q, payment status %q", sess.Status, sess.PaymentStatus),
		Metadata:        map[string]string{"order_number": ord.OrderNumber},
	})
	s.publish(ctx, events.OrderEvent{
		Type:        events.TypeOrderPaymentFailed,
		OrderID:     ord.ID.String(),
		OrderNumber: ord.OrderNumber,
		TotalAmount: ord.TotalAmount,
		OccurredAt:  time.Now().UTC(),
	})

	log.Info().
		Stringer("order_id", ord.ID).
		Str("payment_status", sess.PaymentStatus).
		Msg("service: order payment failed, order cancelled")
	return nil
}

func (s *service) publish(ctx context.Context, event events.OrderEvent) {
	if err := s.publisher.Publish(ctx, event); err != nil {
		log.Error().Err(err).Str("event_type", event.Type).Str("order_id", event.OrderID).Msg("service: failed to publish order event")
	}
}
