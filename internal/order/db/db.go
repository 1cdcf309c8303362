package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"blendshop/internal/errs"
	"blendshop/internal/models"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
)

// DB wraps the bun handle and hands out Stores. Every unit of work (order
// creation, webhook event, admin action) runs inside RunInTx so its side
// effect set commits or rolls back as one.
type DB struct {
	Bun *bun.DB
	pg  bool
}

func New(bdb *bun.DB) *DB {
	return &DB{
		Bun: bdb,
		pg:  bdb.Dialect().Name() == dialect.PG,
	}
}

// Store returns a non-transactional store for plain reads.
func (d *DB) Store() *Store {
	return &Store{db: d.Bun, pg: d.pg}
}

// RunInTx executes fn against a transaction-scoped store.
func (d *DB) RunInTx(ctx context.Context, fn func(ctx context.Context, s *Store) error) error {
	return d.Bun.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		return fn(ctx, &Store{db: tx, pg: d.pg})
	})
}

// Store is the persistence surface for the reconciliation core. All methods
// work against whatever bun.IDB they were created with, so the same code runs
// inside and outside transactions.
type Store struct {
	db bun.IDB
	pg bool
}

// ---------------- ORDERS ----------------

func (s *Store) CreateOrder(ctx context.Context, order *models.Order) error {
	if _, err := s.db.NewInsert().Model(order).Exec(ctx); err != nil {
		return err
	}
	if len(order.Items) > 0 {
		if _, err := s.db.NewInsert().Model(&order.Items).Exec(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) GetOrderByID(ctx context.Context, id string) (*models.Order, error) {
	order := new(models.Order)
	err := s.db.NewSelect().
		Model(order).
		Where("o.order_id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errs.NotFound("order", id)
		}
		return nil, err
	}
	if err := s.loadOrderChildren(ctx, order); err != nil {
		return nil, err
	}
	return order, nil
}

// GetOrderForUpdate fetches the order under a row lock on Postgres, so two
// concurrent drivers of the same order (a replayed webhook and an admin
// action) serialize on the row instead of racing to different states.
func (s *Store) GetOrderForUpdate(ctx context.Context, id string) (*models.Order, error) {
	order := new(models.Order)
	q := s.db.NewSelect().
		Model(order).
		Where("o.order_id = ?", id).
		Limit(1)
	if s.pg {
		q = q.For("UPDATE")
	}
	if err := q.Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errs.NotFound("order", id)
		}
		return nil, err
	}
	if err := s.loadOrderChildren(ctx, order); err != nil {
		return nil, err
	}
	return order, nil
}

// GetOrderByIntentID resolves the order a gateway event refers to.
func (s *Store) GetOrderByIntentID(ctx context.Context, intentID string) (*models.Order, error) {
	order := new(models.Order)
	q := s.db.NewSelect().
		Model(order).
		Where("o.payment_intent_id = ?", intentID).
		Limit(1)
	if s.pg {
		q = q.For("UPDATE")
	}
	if err := q.Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errs.NotFound("order for intent", intentID)
		}
		return nil, err
	}
	if err := s.loadOrderChildren(ctx, order); err != nil {
		return nil, err
	}
	return order, nil
}

func (s *Store) loadOrderChildren(ctx context.Context, order *models.Order) error {
	err := s.db.NewSelect().
		Model(&order.Items).
		Where("order_id = ?", order.OrderID).
		Scan(ctx)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return err
	}
	err = s.db.NewSelect().
		Model(&order.Refunds).
		Where("order_id = ?", order.OrderID).
		Order("processed_at ASC").
		Scan(ctx)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return err
	}
	return nil
}

// UpdateOrder writes the given columns of the order row. Totals and line
// items are immutable after creation and are never listed here by callers.
func (s *Store) UpdateOrder(ctx context.Context, order *models.Order, columns ...string) error {
	order.UpdatedAt = time.Now()
	columns = append(columns, "updated_at")
	_, err := s.db.NewUpdate().
		Model(order).
		Column(columns...).
		Where("order_id = ?", order.OrderID).
		Exec(ctx)
	return err
}

func (s *Store) ListOrdersByUser(ctx context.Context, userID string) ([]models.Order, error) {
	var orders []models.Order
	err := s.db.NewSelect().
		Model(&orders).
		Where("owner_user_id = ?", userID).
		Order("created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return orders, nil
}

// ---------------- INVENTORY ----------------

func (s *Store) GetProduct(ctx context.Context, productID string) (*models.Product, error) {
	product := new(models.Product)
	err := s.db.NewSelect().
		Model(product).
		Where("product_id = ?", productID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errs.NotFound("product", productID)
		}
		return nil, err
	}
	return product, nil
}

func (s *Store) CreateProduct(ctx context.Context, product *models.Product) error {
	_, err := s.db.NewInsert().Model(product).Exec(ctx)
	return err
}

// DecrementStock applies the guarded decrement for one line. The movement row
// is inserted first with a conflict-skip, so a retried transaction for the
// same order never decrements twice; the stock update itself is conditional
// on stock >= quantity, so two orders racing for the last unit cannot both
// succeed.
func (s *Store) DecrementStock(ctx context.Context, orderID, productID string, quantity int) error {
	movement := &models.InventoryMovement{
		OrderID:   orderID,
		ProductID: productID,
		Direction: models.MovementDecrement,
		Quantity:  quantity,
		CreatedAt: time.Now(),
	}
	res, err := s.db.NewInsert().
		Model(movement).
		On("CONFLICT DO NOTHING").
		Exec(ctx)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// Already decremented for this order.
		return nil
	}

	res, err = s.db.NewUpdate().
		Model((*models.Product)(nil)).
		Set("stock = stock - ?", quantity).
		Set("updated_at = ?", time.Now()).
		Where("product_id = ? AND stock >= ?", productID, quantity).
		Exec(ctx)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		have := 0
		if p, perr := s.GetProduct(ctx, productID); perr == nil {
			have = p.Stock
		}
		return errs.InsufficientInventory(productID, quantity, have)
	}
	return nil
}

// RestockOrder returns every decremented quantity for the order to stock,
// exactly once per product regardless of how many times it is called.
func (s *Store) RestockOrder(ctx context.Context, orderID string) error {
	var decrements []models.InventoryMovement
	err := s.db.NewSelect().
		Model(&decrements).
		Where("order_id = ? AND direction = ?", orderID, models.MovementDecrement).
		Scan(ctx)
	if err != nil {
		return err
	}

	for _, d := range decrements {
		movement := &models.InventoryMovement{
			OrderID:   orderID,
			ProductID: d.ProductID,
			Direction: models.MovementRestock,
			Quantity:  d.Quantity,
			CreatedAt: time.Now(),
		}
		res, err := s.db.NewInsert().
			Model(movement).
			On("CONFLICT DO NOTHING").
			Exec(ctx)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			continue // already restocked
		}
		_, err = s.db.NewUpdate().
			Model((*models.Product)(nil)).
			Set("stock = stock + ?", d.Quantity).
			Set("updated_at = ?", time.Now()).
			Where("product_id = ?", d.ProductID).
			Exec(ctx)
		if err != nil {
			return err
		}
	}
	return nil
}

// ---------------- WEBHOOK DEDUP ----------------

// MarkEventProcessed appends the event id to the dedup table. It reports
// false when the id was already there, which is the signal that another
// delivery of the same event has been applied.
func (s *Store) MarkEventProcessed(ctx context.Context, eventID string) (bool, error) {
	row := &models.ProcessedWebhookEvent{
		EventID:     eventID,
		ProcessedAt: time.Now(),
	}
	res, err := s.db.NewInsert().
		Model(row).
		On("CONFLICT DO NOTHING").
		Exec(ctx)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (s *Store) EventProcessed(ctx context.Context, eventID string) (bool, error) {
	exists, err := s.db.NewSelect().
		Model((*models.ProcessedWebhookEvent)(nil)).
		Where("event_id = ?", eventID).
		Exists(ctx)
	if err != nil {
		return false, err
	}
	return exists, nil
}

// ---------------- REFUNDS ----------------

// AppendRefund records a refund and bumps the order's materialized refund sum
// in the same statement set; the caller's transaction makes them atomic.
func (s *Store) AppendRefund(ctx context.Context, refund *models.Refund) error {
	if _, err := s.db.NewInsert().Model(refund).Exec(ctx); err != nil {
		return err
	}
	_, err := s.db.NewUpdate().
		Model((*models.Order)(nil)).
		Set("refunded_cents = refunded_cents + ?", refund.AmountCents).
		Set("updated_at = ?", time.Now()).
		Where("order_id = ?", refund.OrderID).
		Exec(ctx)
	return err
}
