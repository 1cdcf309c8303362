package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"blendshop/internal/errs"
	"blendshop/internal/logger"
	"blendshop/internal/models"
	"blendshop/internal/utils"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
	"github.com/stripe/stripe-go/v82/webhook"
)

var ErrStripeClientInitFailed = errors.New("failed to initialize Stripe client")

// StripeGateway implements Gateway against the Stripe API.
type StripeGateway struct {
	client        *client.API
	webhookSecret string
	log           *logger.Logger
}

func NewStripeGateway(secretKey, webhookSecret string, log *logger.Logger) (*StripeGateway, error) {
	if secretKey == "" {
		log.Error("STRIPE", "Stripe secret key not configured")
		return nil, ErrStripeClientInitFailed
	}
	sc := client.New(secretKey, nil)
	log.Info("STRIPE", "Stripe client initialized")
	return &StripeGateway{
		client:        sc,
		webhookSecret: webhookSecret,
		log:           log,
	}, nil
}

func (g *StripeGateway) CreateIntent(ctx context.Context, orderID string, amountCents int64, currency string) (*Intent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(amountCents),
		Currency: stripe.String(currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	params.AddMetadata("order_id", orderID)

	intent, err := g.client.PaymentIntents.New(params)
	if err != nil {
		return nil, g.classify(err, fmt.Sprintf("create intent for order %s", orderID))
	}

	g.log.Info("STRIPE", fmt.Sprintf("Created payment intent %s for order %s (%d %s)", intent.ID, orderID, amountCents, currency))
	return fromStripeIntent(intent), nil
}

func (g *StripeGateway) GetIntent(ctx context.Context, intentID string) (*Intent, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	intent, err := g.client.PaymentIntents.Get(intentID, params)
	if err != nil {
		return nil, g.classify(err, fmt.Sprintf("retrieve intent %s", intentID))
	}
	return fromStripeIntent(intent), nil
}

func (g *StripeGateway) Refund(ctx context.Context, intentID string, amountCents int64, reason string) (*RefundResult, error) {
	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(intentID),
		Amount:        stripe.Int64(amountCents),
	}
	params.Context = ctx
	if reason != "" {
		params.AddMetadata("reason", reason)
	}

	refund, err := g.client.Refunds.New(params)
	if err != nil {
		return nil, g.classify(err, fmt.Sprintf("refund intent %s", intentID))
	}

	g.log.Info("STRIPE", fmt.Sprintf("Issued refund %s of %d on intent %s", refund.ID, amountCents, intentID))
	return &RefundResult{
		ID:          refund.ID,
		AmountCents: refund.Amount,
		Status:      string(refund.Status),
	}, nil
}

// VerifyEvent recomputes the signature over the raw payload and rejects on
// mismatch or a payload older than the tolerance window, then maps the event
// into the provider-neutral shape the processor dispatches on.
func (g *StripeGateway) VerifyEvent(payload []byte, signatureHeader string) (*models.GatewayEvent, error) {
	opts := webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	}
	event, err := webhook.ConstructEventWithOptions(payload, signatureHeader, g.webhookSecret, opts)
	if err != nil {
		g.log.LogSecurity("WEBHOOK_SIGNATURE", fmt.Sprintf("rejected webhook delivery: %v", err))
		return nil, errs.Signature(err)
	}

	out := &models.GatewayEvent{
		ID:        event.ID,
		Kind:      models.EventUnknown,
		CreatedAt: utils.UnixTimeToTime(event.Created),
	}

	switch string(event.Type) {
	case "payment_intent.succeeded", "payment_intent.payment_failed":
		var intent stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
			return nil, errs.Validation("malformed payment intent payload in event %s", event.ID)
		}
		out.IntentID = intent.ID
		if string(event.Type) == "payment_intent.succeeded" {
			out.Kind = models.EventPaymentSucceeded
		} else {
			out.Kind = models.EventPaymentFailed
			if intent.LastPaymentError != nil {
				out.Reason = string(intent.LastPaymentError.Code)
			}
		}
	case "charge.refunded":
		var charge stripe.Charge
		if err := json.Unmarshal(event.Data.Raw, &charge); err != nil {
			return nil, errs.Validation("malformed charge payload in event %s", event.ID)
		}
		out.Kind = models.EventChargeRefunded
		out.AmountRefundedCents = charge.AmountRefunded
		if charge.PaymentIntent != nil {
			out.IntentID = charge.PaymentIntent.ID
		}
	default:
		g.log.Info("WEBHOOK", fmt.Sprintf("Unhandled Stripe event type: %s", event.Type))
	}

	return out, nil
}

// classify separates retryable provider outages from hard rejects. 5xx and
// transport failures surface as gateway errors for the caller to back off
// on; everything else means the request itself was wrong.
func (g *StripeGateway) classify(err error, context string) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		if stripeErr.HTTPStatusCode >= 500 {
			g.log.Error("STRIPE", fmt.Sprintf("Stripe unavailable during %s: %v", context, err))
			return errs.Gateway(err, context)
		}
		g.log.Warn("STRIPE", fmt.Sprintf("Stripe rejected %s: %v", context, err))
		return errs.Validation("payment gateway rejected request: %s", stripeErr.Msg)
	}
	g.log.Error("STRIPE", fmt.Sprintf("Stripe unreachable during %s: %v", context, err))
	return errs.Gateway(err, context)
}

func fromStripeIntent(intent *stripe.PaymentIntent) *Intent {
	return &Intent{
		ID:           intent.ID,
		ClientSecret: intent.ClientSecret,
		Status:       string(intent.Status),
		AmountCents:  intent.Amount,
		Currency:     string(intent.Currency),
	}
}
