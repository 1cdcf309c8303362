package order

import (
	"context"
	"fmt"
	"time"

	"blendshop/internal/errs"
	"blendshop/internal/models"
	"blendshop/internal/order/db"
	"blendshop/internal/utils"
)

// Staff-initiated transitions. These drive the same state machine and
// ledgers as the webhook processor; the per-order lock plus the row lock
// inside the transaction serialize them against inbound gateway events.

// Ship marks a paid or processing order as shipped and stamps the tracking
// fields. Shipping an already-shipped order is a no-op success.
func (s *OrderService) Ship(ctx context.Context, orderID, trackingNumber, carrier string) error {
	if trackingNumber == "" || carrier == "" {
		return errs.Validation("tracking number and carrier are required")
	}

	var shipped *models.Order
	err := s.withOrderLock(orderID, func() error {
		return s.DB.RunInTx(ctx, func(ctx context.Context, st *db.Store) error {
			order, err := st.GetOrderForUpdate(ctx, orderID)
			if err != nil {
				return err
			}
			changed, err := Transition(order.Status, models.StatusShipped)
			if err != nil {
				return err
			}
			if !changed {
				return nil
			}
			order.Status = models.StatusShipped
			order.ShippedAt = time.Now()
			order.TrackingNumber = trackingNumber
			order.Carrier = carrier
			if err := st.UpdateOrder(ctx, order, "status", "shipped_at", "tracking_number", "carrier"); err != nil {
				return err
			}
			shipped = order
			return nil
		})
	})
	if err != nil {
		return err
	}
	if shipped != nil {
		s.logger.LogOrder("SHIP", orderID, fmt.Sprintf("shipped via %s (%s)", carrier, trackingNumber))
		s.notify(NotifyShipped, shipped)
	}
	return nil
}

// Complete marks a shipped order as delivered. Completing an order that is
// already completed is a no-op success.
func (s *OrderService) Complete(ctx context.Context, orderID string) error {
	var completed *models.Order
	err := s.withOrderLock(orderID, func() error {
		return s.DB.RunInTx(ctx, func(ctx context.Context, st *db.Store) error {
			order, err := st.GetOrderForUpdate(ctx, orderID)
			if err != nil {
				return err
			}
			changed, err := Transition(order.Status, models.StatusCompleted)
			if err != nil {
				return err
			}
			if !changed {
				return nil
			}
			order.Status = models.StatusCompleted
			order.CompletedAt = time.Now()
			if err := st.UpdateOrder(ctx, order, "status", "completed_at"); err != nil {
				return err
			}
			completed = order
			return nil
		})
	})
	if err != nil {
		return err
	}
	if completed != nil {
		s.logger.LogOrder("COMPLETE", orderID, "order marked delivered")
		s.notify(NotifyDelivered, completed)
	}
	return nil
}

// Cancel voids a pre-shipment order, restocks everything it reserved and
// optionally pushes a refund through the gateway. The gateway refund is
// issued before local effects; if it fails nothing local changes.
func (s *OrderService) Cancel(ctx context.Context, orderID, reason string, refundCents int64) error {
	if refundCents < 0 {
		return errs.Validation("refund amount cannot be negative")
	}

	var cancelled *models.Order
	err := s.withOrderLock(orderID, func() error {
		order, err := s.DB.Store().GetOrderByID(ctx, orderID)
		if err != nil {
			return err
		}
		if order.Status != models.StatusCancelled && !CanTransition(order.Status, models.StatusCancelled) {
			return errs.Conflict("cannot cancel order in status %s", order.Status)
		}
		if refundCents > 0 {
			if order.RefundedCents+refundCents > order.TotalCents {
				return errs.Validation("refund of %d would exceed order total %d", refundCents, order.TotalCents)
			}
			if order.PaymentIntentID == "" {
				return errs.Validation("order %s has no payment to refund", orderID)
			}
			if _, err := s.Gateway.Refund(ctx, order.PaymentIntentID, refundCents, reason); err != nil {
				return err
			}
		}

		return s.DB.RunInTx(ctx, func(ctx context.Context, st *db.Store) error {
			order, err := st.GetOrderForUpdate(ctx, orderID)
			if err != nil {
				return err
			}
			changed, err := Transition(order.Status, models.StatusCancelled)
			if err != nil {
				return err
			}
			if changed {
				order.Status = models.StatusCancelled
				order.CancelledAt = time.Now()
				if err := st.UpdateOrder(ctx, order, "status", "cancelled_at"); err != nil {
					return err
				}
				if err := st.RestockOrder(ctx, order.OrderID); err != nil {
					return err
				}
			}
			if refundCents > 0 {
				if order.RefundedCents+refundCents > order.TotalCents {
					return errs.Conflict("refund state changed while cancelling order %s", orderID)
				}
				if err := st.AppendRefund(ctx, &models.Refund{
					RefundID:    utils.GenerateRefundID(),
					OrderID:     order.OrderID,
					AmountCents: refundCents,
					Reason:      reason,
					ProcessedAt: time.Now(),
				}); err != nil {
					return err
				}
				order.RefundedCents += refundCents
				if s.Rewards != nil {
					if _, err := s.Rewards.OnOrderRefunded(ctx, st, order, refundCents); err != nil {
						return err
					}
				}
			}
			cancelled = order
			return nil
		})
	})
	if err != nil {
		return err
	}
	if cancelled != nil {
		s.logger.LogOrder("CANCEL", orderID, fmt.Sprintf("cancelled: %s (refund %d)", reason, refundCents))
		s.notify(NotifyCancelled, cancelled)
	}
	return nil
}

// Refund issues a staff refund through the gateway and applies the local
// effects only after the gateway confirmed, so a rejected gateway refund is
// never credited locally.
func (s *OrderService) Refund(ctx context.Context, orderID string, amountCents int64, reason, notes string) error {
	if amountCents <= 0 {
		return errs.Validation("refund amount must be positive")
	}

	var refunded *models.Order
	err := s.withOrderLock(orderID, func() error {
		order, err := s.DB.Store().GetOrderByID(ctx, orderID)
		if err != nil {
			return err
		}
		if order.PaymentIntentID == "" {
			return errs.Validation("order %s has no payment to refund", orderID)
		}
		if order.RefundedCents+amountCents > order.TotalCents {
			return errs.Validation("refund of %d plus existing refunds %d would exceed order total %d", amountCents, order.RefundedCents, order.TotalCents)
		}
		target := models.StatusPartiallyRefunded
		if order.RefundedCents+amountCents == order.TotalCents {
			target = models.StatusRefunded
		}
		if order.Status != target && !CanTransition(order.Status, target) {
			return errs.Conflict("cannot refund order in status %s", order.Status)
		}

		result, err := s.Gateway.Refund(ctx, order.PaymentIntentID, amountCents, reason)
		if err != nil {
			return err
		}

		return s.DB.RunInTx(ctx, func(ctx context.Context, st *db.Store) error {
			order, err := st.GetOrderForUpdate(ctx, orderID)
			if err != nil {
				return err
			}
			if order.RefundedCents+amountCents > order.TotalCents {
				return errs.Conflict("refund state changed while refunding order %s", orderID)
			}
			// Shipment is judged by the durable timestamp; the status alone
			// forgets it once a partial refund has been applied.
			wasShipped := !order.ShippedAt.IsZero()

			target := models.StatusPartiallyRefunded
			if order.RefundedCents+amountCents == order.TotalCents {
				target = models.StatusRefunded
			}
			changed, err := Transition(order.Status, target)
			if err != nil {
				return err
			}

			if err := st.AppendRefund(ctx, &models.Refund{
				RefundID:    utils.GenerateRefundID(),
				OrderID:     order.OrderID,
				AmountCents: amountCents,
				Reason:      reason,
				Notes:       notes,
				GatewayRef:  result.ID,
				ProcessedAt: time.Now(),
			}); err != nil {
				return err
			}
			order.RefundedCents += amountCents

			if changed {
				order.Status = target
				if err := st.UpdateOrder(ctx, order, "status"); err != nil {
					return err
				}
			}
			if s.Rewards != nil {
				if _, err := s.Rewards.OnOrderRefunded(ctx, st, order, amountCents); err != nil {
					return err
				}
			}
			if target == models.StatusRefunded && !wasShipped {
				if err := st.RestockOrder(ctx, order.OrderID); err != nil {
					return err
				}
			}
			refunded = order
			return nil
		})
	})
	if err != nil {
		return err
	}
	if refunded != nil {
		s.logger.LogOrder("REFUND", orderID, fmt.Sprintf("staff refund of %d: %s", amountCents, reason))
		s.notify(NotifyRefunded, refunded)
	}
	return nil
}
