package models

import (
	"time"

	"github.com/uptrace/bun"
)

type Product struct {
	bun.BaseModel `bun:"table:products,alias:p"`

	ProductID  string    `bun:"product_id,pk" json:"product_id"`
	Name       string    `bun:"name,notnull" json:"name"`
	PriceCents int64     `bun:"price_cents,notnull" json:"price_cents"`
	Stock      int       `bun:"stock,notnull" json:"stock"`
	UpdatedAt  time.Time `bun:"updated_at,nullzero" json:"updated_at,omitempty"`
}

const (
	MovementDecrement = "decrement"
	MovementRestock   = "restock"
)

// InventoryMovement tags every stock change with the order that caused it.
// The (order_id, product_id, direction) uniqueness is what makes decrement
// and restock exactly-once under retried webhooks and admin actions.
type InventoryMovement struct {
	bun.BaseModel `bun:"table:inventory_movements,alias:im"`

	ID        int64     `bun:"id,pk,autoincrement" json:"id"`
	OrderID   string    `bun:"order_id,notnull,unique:uq_movement" json:"order_id"`
	ProductID string    `bun:"product_id,notnull,unique:uq_movement" json:"product_id"`
	Direction string    `bun:"direction,notnull,unique:uq_movement" json:"direction"`
	Quantity  int       `bun:"quantity,notnull" json:"quantity"`
	CreatedAt time.Time `bun:"created_at,notnull" json:"created_at"`
}
