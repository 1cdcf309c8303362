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

// HandleGatewayEvent applies a verified gateway event exactly once. The
// event id goes into the dedup table inside the same transaction as every
// side effect, so a failure anywhere rolls the whole application back and
// leaves the event unprocessed for the gateway's retry. Signature
// verification has already happened at the HTTP boundary; nothing here
// re-validates authenticity.
func (s *OrderService) HandleGatewayEvent(ctx context.Context, ev *models.GatewayEvent) error {
	if ev.Kind == models.EventUnknown || ev.IntentID == "" {
		s.logger.LogWebhook(ev.ID, "ignoring event with no actionable payload")
		return nil
	}

	// Fast path for replays; the authoritative check is the conflict-guarded
	// insert inside the transaction.
	if done, err := s.DB.Store().EventProcessed(ctx, ev.ID); err != nil {
		return err
	} else if done {
		s.logger.LogWebhook(ev.ID, "already processed, acknowledging replay")
		return nil
	}

	var pending []pendingNotification
	err := s.DB.RunInTx(ctx, func(ctx context.Context, st *db.Store) error {
		inserted, err := st.MarkEventProcessed(ctx, ev.ID)
		if err != nil {
			return err
		}
		if !inserted {
			// A concurrent delivery of the same event won the race.
			return nil
		}

		order, err := st.GetOrderByIntentID(ctx, ev.IntentID)
		if err != nil {
			if errs.IsKind(err, errs.KindNotFound) {
				// Unknown order: acknowledge so the gateway stops retrying,
				// and keep the event recorded as seen.
				s.logger.LogWebhook(ev.ID, fmt.Sprintf("no order for intent %s, acknowledging", ev.IntentID))
				return nil
			}
			return err
		}

		switch ev.Kind {
		case models.EventPaymentSucceeded:
			return s.applyPaymentSucceeded(ctx, st, order, ev, &pending)
		case models.EventPaymentFailed:
			return s.applyPaymentFailed(ctx, st, order, ev, &pending)
		case models.EventChargeRefunded:
			return s.applyGatewayRefund(ctx, st, order, ev, &pending)
		}
		return nil
	})
	if err != nil {
		return err
	}

	// Notifications go out only after the transaction committed.
	for _, p := range pending {
		s.notify(p.kind, p.order)
	}
	return nil
}

type pendingNotification struct {
	kind  string
	order *models.Order
}

func (s *OrderService) applyPaymentSucceeded(ctx context.Context, st *db.Store, order *models.Order, ev *models.GatewayEvent, pending *[]pendingNotification) error {
	changed, err := Transition(order.Status, models.StatusPaid)
	if err != nil {
		// A local decision (for example an admin cancel) already moved the
		// order elsewhere. The gateway fact is recorded and acknowledged;
		// the local state stands.
		s.logger.Warn("WEBHOOK", fmt.Sprintf("payment succeeded for order %s in status %s, keeping local state", order.OrderID, order.Status))
		return nil
	}
	if !changed {
		s.logger.LogWebhook(ev.ID, fmt.Sprintf("order %s already paid", order.OrderID))
		return nil
	}

	order.Status = models.StatusPaid
	order.PaidAt = time.Now()
	if err := st.UpdateOrder(ctx, order, "status", "paid_at"); err != nil {
		return err
	}

	if s.Rewards != nil {
		if _, err := s.Rewards.OnOrderPaid(ctx, st, order); err != nil {
			return err
		}
	}

	s.logger.LogOrder("PAID", order.OrderID, fmt.Sprintf("payment confirmed by event %s", ev.ID))
	*pending = append(*pending, pendingNotification{NotifyConfirmation, order})
	return nil
}

func (s *OrderService) applyPaymentFailed(ctx context.Context, st *db.Store, order *models.Order, ev *models.GatewayEvent, pending *[]pendingNotification) error {
	changed, err := Transition(order.Status, models.StatusPaymentFailed)
	if err != nil {
		s.logger.Warn("WEBHOOK", fmt.Sprintf("payment failed for order %s in status %s, keeping local state", order.OrderID, order.Status))
		return nil
	}
	if !changed {
		return nil
	}

	order.Status = models.StatusPaymentFailed
	if err := st.UpdateOrder(ctx, order, "status"); err != nil {
		return err
	}
	if err := st.RestockOrder(ctx, order.OrderID); err != nil {
		return err
	}

	s.logger.LogOrder("PAYMENT_FAILED", order.OrderID, fmt.Sprintf("reason: %s", ev.Reason))
	*pending = append(*pending, pendingNotification{NotifyPaymentFailed, order})
	return nil
}

// applyGatewayRefund reconciles the gateway's running refund total against
// ours. Refunds we issued ourselves come back through here with a zero delta
// and fall out as no-ops.
func (s *OrderService) applyGatewayRefund(ctx context.Context, st *db.Store, order *models.Order, ev *models.GatewayEvent, pending *[]pendingNotification) error {
	delta := ev.AmountRefundedCents - order.RefundedCents
	if delta <= 0 {
		s.logger.LogWebhook(ev.ID, fmt.Sprintf("refund already reflected for order %s", order.OrderID))
		return nil
	}
	if order.RefundedCents+delta > order.TotalCents {
		// The gateway cannot refund beyond the charge; reaching here means
		// inconsistent data. Record and acknowledge rather than retry-loop.
		s.logger.Error("WEBHOOK", fmt.Sprintf("refund total %d for order %s exceeds order total %d, ignoring event %s", ev.AmountRefundedCents, order.OrderID, order.TotalCents, ev.ID))
		return nil
	}

	target := models.StatusPartiallyRefunded
	if order.RefundedCents+delta == order.TotalCents {
		target = models.StatusRefunded
	}
	changed, err := Transition(order.Status, target)
	if err != nil {
		s.logger.Warn("WEBHOOK", fmt.Sprintf("refund event for order %s in status %s, keeping local state", order.OrderID, order.Status))
		return nil
	}

	// The durable timestamp, not the current status: a partial refund moves
	// the status off shipped, but the goods are still gone.
	wasShipped := !order.ShippedAt.IsZero()

	reason := ev.Reason
	if reason == "" {
		reason = "gateway_refund"
	}
	if err := st.AppendRefund(ctx, &models.Refund{
		RefundID:    utils.GenerateRefundID(),
		OrderID:     order.OrderID,
		AmountCents: delta,
		Reason:      reason,
		ProcessedAt: time.Now(),
	}); err != nil {
		return err
	}
	order.RefundedCents += delta

	if changed {
		order.Status = target
		if err := st.UpdateOrder(ctx, order, "status"); err != nil {
			return err
		}
	}

	if s.Rewards != nil {
		if _, err := s.Rewards.OnOrderRefunded(ctx, st, order, delta); err != nil {
			return err
		}
	}

	if target == models.StatusRefunded && !wasShipped {
		if err := st.RestockOrder(ctx, order.OrderID); err != nil {
			return err
		}
	}

	s.logger.LogOrder("REFUND", order.OrderID, fmt.Sprintf("gateway refund of %d applied by event %s", delta, ev.ID))
	*pending = append(*pending, pendingNotification{NotifyRefunded, order})
	return nil
}
