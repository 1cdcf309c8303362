package models

import (
	"time"

	"github.com/uptrace/bun"
)

type OrderStatus string

const (
	StatusPending           OrderStatus = "pending"
	StatusAwaitingPayment   OrderStatus = "awaiting_payment"
	StatusPaid              OrderStatus = "paid"
	StatusProcessing        OrderStatus = "processing"
	StatusShipped           OrderStatus = "shipped"
	StatusCompleted         OrderStatus = "completed"
	StatusPaymentFailed     OrderStatus = "payment_failed"
	StatusCancelled         OrderStatus = "cancelled"
	StatusRefunded          OrderStatus = "refunded"
	StatusPartiallyRefunded OrderStatus = "partially_refunded"
)

type OwnerKind string

const (
	OwnerUser  OwnerKind = "user"
	OwnerGuest OwnerKind = "guest"
)

// Owner is the tagged identity an order belongs to: a registered user or a
// guest checkout session. Exactly one variant is populated.
type Owner struct {
	Kind      OwnerKind `bun:"kind" json:"kind"`
	UserID    string    `bun:"user_id,nullzero" json:"user_id,omitempty"`
	SessionID string    `bun:"session_id,nullzero" json:"session_id,omitempty"`
	Email     string    `bun:"email,nullzero" json:"email,omitempty"`
}

func UserOwner(userID string) Owner {
	return Owner{Kind: OwnerUser, UserID: userID}
}

func GuestOwner(sessionID, email string) Owner {
	return Owner{Kind: OwnerGuest, SessionID: sessionID, Email: email}
}

func (o Owner) IsUser() bool { return o.Kind == OwnerUser }

type Order struct {
	bun.BaseModel `bun:"table:orders,alias:o"`

	OrderID         string `bun:"order_id,pk" json:"order_id"`
	Owner           Owner  `bun:"embed:owner_" json:"owner"`
	ShippingAddress string `bun:"shipping_address" json:"shipping_address"`

	SubtotalCents int64  `bun:"subtotal_cents,notnull" json:"subtotal_cents"`
	ShippingCents int64  `bun:"shipping_cents,notnull" json:"shipping_cents"`
	TaxCents      int64  `bun:"tax_cents,notnull" json:"tax_cents"`
	DiscountCents int64  `bun:"discount_cents,notnull" json:"discount_cents"`
	TotalCents    int64  `bun:"total_cents,notnull" json:"total_cents"`
	Currency      string `bun:"currency,notnull" json:"currency"`

	Status OrderStatus `bun:"status,notnull" json:"status"`

	PaymentIntentID  string `bun:"payment_intent_id,nullzero" json:"payment_intent_id,omitempty"`
	ClientSecretHash string `bun:"client_secret_hash,nullzero" json:"-"`

	TrackingNumber string `bun:"tracking_number,nullzero" json:"tracking_number,omitempty"`
	Carrier        string `bun:"carrier,nullzero" json:"carrier,omitempty"`

	// RefundedCents is the materialized sum of the refund rows, kept in the
	// same transaction that appends them.
	RefundedCents int64 `bun:"refunded_cents,notnull,default:0" json:"refunded_cents"`

	CreatedAt   time.Time `bun:"created_at,notnull" json:"created_at"`
	PaidAt      time.Time `bun:"paid_at,nullzero" json:"paid_at,omitempty"`
	ShippedAt   time.Time `bun:"shipped_at,nullzero" json:"shipped_at,omitempty"`
	CompletedAt time.Time `bun:"completed_at,nullzero" json:"completed_at,omitempty"`
	CancelledAt time.Time `bun:"cancelled_at,nullzero" json:"cancelled_at,omitempty"`
	UpdatedAt   time.Time `bun:"updated_at,nullzero" json:"updated_at,omitempty"`

	Items   []OrderItem `bun:"rel:has-many,join:order_id=order_id" json:"items,omitempty"`
	Refunds []Refund    `bun:"rel:has-many,join:order_id=order_id" json:"refunds,omitempty"`
}

// OrderItem is an immutable snapshot of a line at checkout time. Catalog edits
// after checkout never touch these rows.
type OrderItem struct {
	bun.BaseModel `bun:"table:order_items,alias:oi"`

	ItemID         string `bun:"item_id,pk" json:"item_id"`
	OrderID        string `bun:"order_id,notnull" json:"order_id"`
	ProductID      string `bun:"product_id,notnull" json:"product_id"`
	Name           string `bun:"name,notnull" json:"name"`
	Quantity       int    `bun:"quantity,notnull" json:"quantity"`
	UnitPriceCents int64  `bun:"unit_price_cents,notnull" json:"unit_price_cents"`
}

type Refund struct {
	bun.BaseModel `bun:"table:order_refunds,alias:rf"`

	RefundID    string    `bun:"refund_id,pk" json:"refund_id"`
	OrderID     string    `bun:"order_id,notnull" json:"order_id"`
	AmountCents int64     `bun:"amount_cents,notnull" json:"amount_cents"`
	Reason      string    `bun:"reason" json:"reason"`
	Notes       string    `bun:"notes,nullzero" json:"notes,omitempty"`
	GatewayRef  string    `bun:"gateway_ref,nullzero" json:"gateway_ref,omitempty"`
	ProcessedAt time.Time `bun:"processed_at,notnull" json:"processed_at"`
}

// NewOrderLine is what the cart resolver hands over: which product and how
// many. Pricing is resolved against the catalog inside the order factory.
type NewOrderLine struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type OrderRequest struct {
	Owner           Owner          `json:"owner"`
	ShippingAddress string         `json:"shipping_address"`
	Lines           []NewOrderLine `json:"lines"`
	DiscountCents   int64          `json:"discount_cents"`
}

type PaymentStatusResponse struct {
	OrderID         string      `json:"order_id"`
	Status          OrderStatus `json:"status"`
	PaymentIntentID string      `json:"payment_intent_id,omitempty"`
	TotalCents      int64       `json:"total_cents"`
	RefundedCents   int64       `json:"refunded_cents"`
	ReceiptQR       string      `json:"receipt_qr,omitempty"`
}
