package order

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"blendshop/internal/errs"
	"blendshop/internal/logger"
	"blendshop/internal/models"
	"blendshop/internal/order/db"
	"blendshop/internal/order/receipt"
	"blendshop/internal/payment"
	"blendshop/internal/rewards"
	"blendshop/internal/utils"

	"github.com/google/uuid"
)

// Notification kinds handed to the external notification service.
const (
	NotifyConfirmation  = "order.confirmation"
	NotifyShipped       = "order.shipped"
	NotifyDelivered     = "order.delivered"
	NotifyCancelled     = "order.cancelled"
	NotifyRefunded      = "order.refunded"
	NotifyPaymentFailed = "payment.failed"
)

// Rewards is the dispatcher invoked when a paid or refund transition actually
// fires. It mutates the reward ledger through the same transactional store as
// the status change.
type Rewards interface {
	OnOrderPaid(ctx context.Context, lg rewards.Ledger, order *models.Order) (int64, error)
	OnOrderRefunded(ctx context.Context, lg rewards.Ledger, order *models.Order, refundCents int64) (int64, error)
}

type Notifier interface {
	Notify(kind string, order *models.Order) error
}

// Locker serializes drivers of the same order ahead of the DB row lock, so a
// replayed webhook and a concurrent admin action queue instead of both
// opening transactions.
type Locker interface {
	LockOrder(orderID, owner string) (bool, error)
	UnlockOrder(orderID, owner string) error
}

// IntentRecorder mirrors gateway intents for reporting. Best-effort; the
// authoritative reference lives on the order row.
type IntentRecorder interface {
	SaveIntent(record *models.PaymentIntentRecord) error
	UpdateIntentStatus(intentID, status string) error
}

type OrderService struct {
	DB       *db.DB
	Gateway  payment.Gateway
	Rewards  Rewards
	Notifier Notifier
	Locks    Locker
	Intents  IntentRecorder

	Pricing       PricingRules
	Currency      string
	PublicBaseURL string

	logger *logger.Logger
}

func NewOrderService(database *db.DB, gateway payment.Gateway, rw Rewards, notifier Notifier, locks Locker, intents IntentRecorder, pricing PricingRules, currency, publicBaseURL string, log *logger.Logger) *OrderService {
	return &OrderService{
		DB:            database,
		Gateway:       gateway,
		Rewards:       rw,
		Notifier:      notifier,
		Locks:         locks,
		Intents:       intents,
		Pricing:       pricing,
		Currency:      currency,
		PublicBaseURL: publicBaseURL,
		logger:        log,
	}
}

// ---------------- QUERIES ----------------

func (s *OrderService) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	return s.DB.Store().GetOrderByID(ctx, id)
}

func (s *OrderService) ListOrdersByUser(ctx context.Context, userID string) ([]models.Order, error) {
	return s.DB.Store().ListOrdersByUser(ctx, userID)
}

// PaymentStatus is the polling endpoint's view: the webhook may land seconds
// to minutes after checkout, so clients poll here instead of waiting on the
// checkout response. Paid orders carry a receipt QR.
func (s *OrderService) PaymentStatus(ctx context.Context, orderID string) (*models.PaymentStatusResponse, error) {
	order, err := s.DB.Store().GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	resp := &models.PaymentStatusResponse{
		OrderID:         order.OrderID,
		Status:          order.Status,
		PaymentIntentID: order.PaymentIntentID,
		TotalCents:      order.TotalCents,
		RefundedCents:   order.RefundedCents,
	}

	if !order.PaidAt.IsZero() {
		png, qerr := receipt.Generate(order.OrderID, s.PublicBaseURL)
		if qerr != nil {
			s.logger.Warn("ORDER", fmt.Sprintf("failed to render receipt QR for order %s: %v", order.OrderID, qerr))
		} else {
			resp.ReceiptQR = base64.StdEncoding.EncodeToString(png)
		}
	}
	return resp, nil
}

// ---------------- PAYMENT INTENT ----------------

// CreatePaymentIntent implements getOrCreate semantics: an existing intent
// whose amount still matches the order total is handed back as-is; only an
// amount change (or an unusable intent) causes a fresh create call. The
// gateway is therefore never asked to create twice for the same order/amount
// pair.
func (s *OrderService) CreatePaymentIntent(ctx context.Context, orderID string) (string, error) {
	order, err := s.DB.Store().GetOrderByID(ctx, orderID)
	if err != nil {
		return "", err
	}

	switch order.Status {
	case models.StatusPending, models.StatusAwaitingPayment:
	default:
		return "", errs.Conflict("cannot create payment intent for order in status %s", order.Status)
	}

	if order.PaymentIntentID != "" {
		intent, gerr := s.Gateway.GetIntent(ctx, order.PaymentIntentID)
		if gerr != nil {
			if errs.Retryable(gerr) {
				return "", gerr
			}
			s.logger.Warn("PAYMENT", fmt.Sprintf("existing intent %s unavailable, creating a new one: %v", order.PaymentIntentID, gerr))
		} else if intent.AmountCents == order.TotalCents && payment.IntentUsable(intent.Status) {
			s.logger.LogOrder("INTENT", orderID, fmt.Sprintf("reusing payment intent %s", intent.ID))
			return intent.ClientSecret, nil
		} else {
			s.logger.LogOrder("INTENT", orderID, fmt.Sprintf("intent %s invalidated (amount %d vs total %d, status %s)", intent.ID, intent.AmountCents, order.TotalCents, intent.Status))
		}
	}

	intent, err := s.Gateway.CreateIntent(ctx, orderID, order.TotalCents, order.Currency)
	if err != nil {
		return "", err
	}

	order.PaymentIntentID = intent.ID
	order.ClientSecretHash = payment.HashClientSecret(intent.ClientSecret)
	columns := []string{"payment_intent_id", "client_secret_hash"}
	if changed, terr := Transition(order.Status, models.StatusAwaitingPayment); terr == nil && changed {
		order.Status = models.StatusAwaitingPayment
		columns = append(columns, "status")
	}
	if err := s.DB.Store().UpdateOrder(ctx, order, columns...); err != nil {
		return "", err
	}

	if s.Intents != nil {
		if merr := s.Intents.SaveIntent(&models.PaymentIntentRecord{
			IntentID:    intent.ID,
			OrderID:     orderID,
			AmountCents: intent.AmountCents,
			Currency:    intent.Currency,
			Status:      intent.Status,
			CreatedAt:   time.Now(),
		}); merr != nil {
			s.logger.Warn("PAYMENT", fmt.Sprintf("failed to mirror intent %s: %v", intent.ID, merr))
		}
	}

	s.logger.LogOrder("INTENT", orderID, fmt.Sprintf("payment intent %s created for %d %s", intent.ID, intent.AmountCents, intent.Currency))
	return intent.ClientSecret, nil
}

// SyncPaymentStatus asks the gateway for the intent's current state and
// feeds it through the same state-machine/idempotency path as a webhook.
// Staff and customers use this when a webhook is suspected delayed or lost.
func (s *OrderService) SyncPaymentStatus(ctx context.Context, orderID string) (*models.PaymentStatusResponse, error) {
	order, err := s.DB.Store().GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.PaymentIntentID == "" {
		return nil, errs.Validation("order %s has no payment intent to sync", orderID)
	}

	intent, err := s.Gateway.GetIntent(ctx, order.PaymentIntentID)
	if err != nil {
		return nil, err
	}

	var kind models.GatewayEventKind
	switch intent.Status {
	case "succeeded":
		kind = models.EventPaymentSucceeded
	case "canceled":
		kind = models.EventPaymentFailed
	default:
		// Still in flight at the gateway; nothing to reconcile.
		return s.PaymentStatus(ctx, orderID)
	}

	ev := &models.GatewayEvent{
		ID:        utils.GenerateSyncEventID(intent.ID, intent.Status),
		Kind:      kind,
		IntentID:  intent.ID,
		CreatedAt: time.Now(),
	}
	s.logger.LogOrder("SYNC", orderID, fmt.Sprintf("reconciling intent %s status %s", intent.ID, intent.Status))
	if err := s.HandleGatewayEvent(ctx, ev); err != nil {
		return nil, err
	}
	return s.PaymentStatus(ctx, orderID)
}

// ---------------- HELPERS ----------------

// withOrderLock runs fn under the per-order Redis lock with a short bounded
// wait. The DB row lock remains the authority; this keeps concurrent drivers
// from piling up transactions on the same row.
func (s *OrderService) withOrderLock(orderID string, fn func() error) error {
	if s.Locks == nil {
		return fn()
	}
	owner := uuid.NewString()
	for attempt := 0; attempt < 5; attempt++ {
		ok, err := s.Locks.LockOrder(orderID, owner)
		if err != nil {
			return fmt.Errorf("order lock error: %w", err)
		}
		if ok {
			defer func() {
				if uerr := s.Locks.UnlockOrder(orderID, owner); uerr != nil {
					s.logger.Warn("ORDER", fmt.Sprintf("failed to unlock order %s: %v", orderID, uerr))
				}
			}()
			return fn()
		}
		time.Sleep(time.Duration(50*(attempt+1)) * time.Millisecond)
	}
	return errs.Conflict("order %s is being processed by another request", orderID)
}

func (s *OrderService) notify(kind string, order *models.Order) {
	if s.Notifier == nil {
		return
	}
	if err := s.Notifier.Notify(kind, order); err != nil {
		s.logger.Warn("NOTIFY", fmt.Sprintf("failed to send %s for order %s: %v", kind, order.OrderID, err))
	}
}
