package models

import (
	"time"

	"github.com/uptrace/bun"
)

// ProcessedWebhookEvent is the append-only dedup table. A gateway event id
// present here has already had its side effects committed.
type ProcessedWebhookEvent struct {
	bun.BaseModel `bun:"table:processed_webhook_events,alias:pwe"`

	EventID     string    `bun:"event_id,pk" json:"event_id"`
	ProcessedAt time.Time `bun:"processed_at,notnull" json:"processed_at"`
}

type GatewayEventKind string

const (
	EventPaymentSucceeded GatewayEventKind = "payment_succeeded"
	EventPaymentFailed    GatewayEventKind = "payment_failed"
	EventChargeRefunded   GatewayEventKind = "charge_refunded"
	EventUnknown          GatewayEventKind = "unknown"
)

// GatewayEvent is the provider-neutral form of a verified webhook payload.
// AmountRefundedCents carries the gateway's running refund total for
// charge-refund events; it is zero for the other kinds.
type GatewayEvent struct {
	ID                  string           `json:"id"`
	Kind                GatewayEventKind `json:"kind"`
	IntentID            string           `json:"intent_id"`
	AmountRefundedCents int64            `json:"amount_refunded_cents,omitempty"`
	Reason              string           `json:"reason,omitempty"`
	CreatedAt           time.Time        `json:"created_at"`
}

// PaymentIntentRecord mirrors the gateway intent for reporting and the manual
// sync path. The authoritative intent reference lives on the order row.
type PaymentIntentRecord struct {
	IntentID    string    `json:"intent_id"`
	OrderID     string    `json:"order_id"`
	AmountCents int64     `json:"amount_cents"`
	Currency    string    `json:"currency"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at,omitempty"`
}
