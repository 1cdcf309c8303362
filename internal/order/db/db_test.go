package db_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"blendshop/internal/errs"
	"blendshop/internal/models"
	"blendshop/internal/order/db"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

func setupTestDB(t *testing.T) (*db.DB, *bun.DB) {
	// Connect to an in-memory SQLite DB for testing
	sqldb, err := sql.Open(sqliteshim.ShimName, "file::memory:?cache=shared")
	if err != nil {
		t.Fatalf("Failed to connect to in-memory database: %v", err)
	}
	// One connection so every statement sees the same in-memory database
	sqldb.SetMaxOpenConns(1)

	bunDB := bun.NewDB(sqldb, sqlitedialect.New())

	if err := db.CreateSchema(context.Background(), bunDB); err != nil {
		t.Fatalf("Failed to create schema: %v", err)
	}

	return db.New(bunDB), bunDB
}

func seedProduct(t *testing.T, store *db.Store, productID string, priceCents int64, stock int) {
	err := store.CreateProduct(context.Background(), &models.Product{
		ProductID:  productID,
		Name:       "Earl Grey Sunrise",
		PriceCents: priceCents,
		Stock:      stock,
	})
	require.NoError(t, err)
}

func seedOrder(t *testing.T, store *db.Store, orderID, intentID string, totalCents int64, status models.OrderStatus) *models.Order {
	order := &models.Order{
		OrderID:         orderID,
		Owner:           models.UserOwner("user-1"),
		ShippingAddress: "12 Leaf Lane",
		SubtotalCents:   totalCents,
		TotalCents:      totalCents,
		Currency:        "usd",
		Status:          status,
		PaymentIntentID: intentID,
		CreatedAt:       time.Now(),
	}
	require.NoError(t, store.CreateOrder(context.Background(), order))
	return order
}

func TestCreateAndGetOrder(t *testing.T) {
	orderDB, bunDB := setupTestDB(t)
	defer bunDB.Close()
	ctx := context.Background()
	store := orderDB.Store()

	orderID := uuid.NewString()
	order := &models.Order{
		OrderID:         orderID,
		Owner:           models.UserOwner("user-1"),
		ShippingAddress: "12 Leaf Lane",
		SubtotalCents:   3000,
		TotalCents:      3000,
		Currency:        "usd",
		Status:          models.StatusPending,
		CreatedAt:       time.Now(),
		Items: []models.OrderItem{
			{ItemID: uuid.NewString(), OrderID: orderID, ProductID: "blend-1", Name: "Earl Grey Sunrise", Quantity: 2, UnitPriceCents: 1500},
		},
	}
	require.NoError(t, store.CreateOrder(ctx, order))

	got, err := store.GetOrderByID(ctx, orderID)
	require.NoError(t, err)
	assert.Equal(t, orderID, got.OrderID)
	assert.Equal(t, models.StatusPending, got.Status)
	assert.Equal(t, "user-1", got.Owner.UserID)
	require.Len(t, got.Items, 1)
	assert.Equal(t, int64(1500), got.Items[0].UnitPriceCents)

	_, err = store.GetOrderByID(ctx, "non-existent")
	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.KindNotFound))
}

func TestGetOrderByIntentID(t *testing.T) {
	orderDB, bunDB := setupTestDB(t)
	defer bunDB.Close()
	ctx := context.Background()
	store := orderDB.Store()

	seedOrder(t, store, uuid.NewString(), "pi_lookup", 2000, models.StatusAwaitingPayment)

	got, err := store.GetOrderByIntentID(ctx, "pi_lookup")
	require.NoError(t, err)
	assert.Equal(t, "pi_lookup", got.PaymentIntentID)

	_, err = store.GetOrderByIntentID(ctx, "pi_unknown")
	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.KindNotFound))
}

func TestDecrementStock_ExactlyOnce(t *testing.T) {
	orderDB, bunDB := setupTestDB(t)
	defer bunDB.Close()
	ctx := context.Background()
	store := orderDB.Store()

	seedProduct(t, store, "blend-1", 1000, 5)
	orderID := uuid.NewString()

	require.NoError(t, store.DecrementStock(ctx, orderID, "blend-1", 2))

	// A retried decrement for the same order is absorbed by the movement row
	require.NoError(t, store.DecrementStock(ctx, orderID, "blend-1", 2))

	product, err := store.GetProduct(ctx, "blend-1")
	require.NoError(t, err)
	assert.Equal(t, 3, product.Stock, "stock must only be decremented once per order")

	// Another order can take the rest
	require.NoError(t, store.DecrementStock(ctx, uuid.NewString(), "blend-1", 3))

	product, err = store.GetProduct(ctx, "blend-1")
	require.NoError(t, err)
	assert.Equal(t, 0, product.Stock)
}

func TestDecrementStock_GuardsAgainstOverselling(t *testing.T) {
	orderDB, bunDB := setupTestDB(t)
	defer bunDB.Close()
	ctx := context.Background()
	store := orderDB.Store()

	seedProduct(t, store, "blend-2", 1000, 1)

	err := store.DecrementStock(ctx, uuid.NewString(), "blend-2", 2)
	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.KindInsufficientInventory))

	// Stock untouched by the rejected decrement
	product, err := store.GetProduct(ctx, "blend-2")
	require.NoError(t, err)
	assert.Equal(t, 1, product.Stock)
}

func TestRestockOrder_Idempotent(t *testing.T) {
	orderDB, bunDB := setupTestDB(t)
	defer bunDB.Close()
	ctx := context.Background()
	store := orderDB.Store()

	seedProduct(t, store, "blend-3", 1000, 10)
	orderID := uuid.NewString()

	require.NoError(t, store.DecrementStock(ctx, orderID, "blend-3", 4))

	require.NoError(t, store.RestockOrder(ctx, orderID))
	require.NoError(t, store.RestockOrder(ctx, orderID))

	product, err := store.GetProduct(ctx, "blend-3")
	require.NoError(t, err)
	assert.Equal(t, 10, product.Stock, "restock must apply exactly once")
}

func TestMarkEventProcessed_Dedup(t *testing.T) {
	orderDB, bunDB := setupTestDB(t)
	defer bunDB.Close()
	ctx := context.Background()
	store := orderDB.Store()

	inserted, err := store.MarkEventProcessed(ctx, "evt_1")
	require.NoError(t, err)
	assert.True(t, inserted, "first delivery wins the insert")

	inserted, err = store.MarkEventProcessed(ctx, "evt_1")
	require.NoError(t, err)
	assert.False(t, inserted, "replay must be reported as already processed")

	done, err := store.EventProcessed(ctx, "evt_1")
	require.NoError(t, err)
	assert.True(t, done)

	done, err = store.EventProcessed(ctx, "evt_2")
	require.NoError(t, err)
	assert.False(t, done)
}

func TestAppendRefund_MaterializesSum(t *testing.T) {
	orderDB, bunDB := setupTestDB(t)
	defer bunDB.Close()
	ctx := context.Background()
	store := orderDB.Store()

	order := seedOrder(t, store, uuid.NewString(), "pi_ref", 5000, models.StatusPaid)

	require.NoError(t, store.AppendRefund(ctx, &models.Refund{
		RefundID:    uuid.NewString(),
		OrderID:     order.OrderID,
		AmountCents: 1500,
		Reason:      "damaged tin",
		ProcessedAt: time.Now(),
	}))
	require.NoError(t, store.AppendRefund(ctx, &models.Refund{
		RefundID:    uuid.NewString(),
		OrderID:     order.OrderID,
		AmountCents: 500,
		Reason:      "late delivery",
		ProcessedAt: time.Now(),
	}))

	got, err := store.GetOrderByID(ctx, order.OrderID)
	require.NoError(t, err)
	assert.Equal(t, int64(2000), got.RefundedCents)
	assert.Len(t, got.Refunds, 2)
}

func TestRunInTx_RollsBackEverything(t *testing.T) {
	orderDB, bunDB := setupTestDB(t)
	defer bunDB.Close()
	ctx := context.Background()

	seedProduct(t, orderDB.Store(), "blend-4", 1000, 5)
	orderID := uuid.NewString()

	boom := errors.New("second line failed")
	err := orderDB.RunInTx(ctx, func(ctx context.Context, st *db.Store) error {
		if err := st.DecrementStock(ctx, orderID, "blend-4", 2); err != nil {
			return err
		}
		if err := st.CreateOrder(ctx, &models.Order{
			OrderID:         orderID,
			Owner:           models.UserOwner("user-1"),
			ShippingAddress: "12 Leaf Lane",
			SubtotalCents:   2000,
			TotalCents:      2000,
			Currency:        "usd",
			Status:          models.StatusPending,
			CreatedAt:       time.Now(),
		}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	// Nothing from the transaction survives: no order, stock untouched
	_, err = orderDB.Store().GetOrderByID(ctx, orderID)
	assert.True(t, errs.IsKind(err, errs.KindNotFound))

	product, err := orderDB.Store().GetProduct(ctx, "blend-4")
	require.NoError(t, err)
	assert.Equal(t, 5, product.Stock)
}

func TestRewardLedgerOps(t *testing.T) {
	orderDB, bunDB := setupTestDB(t)
	defer bunDB.Close()
	ctx := context.Background()
	store := orderDB.Store()

	require.NoError(t, store.EnsureRewardAccount(ctx, "user-1", "bronze"))
	// Second ensure is a no-op, not an error
	require.NoError(t, store.EnsureRewardAccount(ctx, "user-1", "bronze"))

	rp, err := store.AddPoints(ctx, "user-1", 120, 120)
	require.NoError(t, err)
	assert.Equal(t, int64(120), rp.BalancePoints)
	assert.Equal(t, int64(120), rp.LifetimeEarned)

	rp, err = store.AddPoints(ctx, "user-1", -20, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(100), rp.BalancePoints)
	assert.Equal(t, int64(120), rp.LifetimeEarned, "reversals never touch lifetime earnings")

	orderID := uuid.NewString()
	require.NoError(t, store.InsertRewardEntry(ctx, &models.RewardLedgerEntry{
		EntryID: uuid.NewString(), UserID: "user-1", DeltaPoints: 120, Reason: "order_paid", OrderID: orderID, CreatedAt: time.Now(),
	}))
	require.NoError(t, store.InsertRewardEntry(ctx, &models.RewardLedgerEntry{
		EntryID: uuid.NewString(), UserID: "user-1", DeltaPoints: -20, Reason: "order_refunded", OrderID: orderID, CreatedAt: time.Now(),
	}))

	awarded, err := store.AwardedPointsForOrder(ctx, orderID)
	require.NoError(t, err)
	assert.Equal(t, int64(120), awarded, "only positive entries count as awarded")
}

func TestSaveAchievement_Upsert(t *testing.T) {
	orderDB, bunDB := setupTestDB(t)
	defer bunDB.Close()
	ctx := context.Background()
	store := orderDB.Store()

	require.NoError(t, store.SaveAchievement(ctx, &models.AchievementProgress{
		UserID: "user-1", AchievementID: "ten_orders", Progress: 3,
	}))

	earned := time.Now()
	require.NoError(t, store.SaveAchievement(ctx, &models.AchievementProgress{
		UserID: "user-1", AchievementID: "ten_orders", Progress: 10, EarnedAt: earned,
	}))

	ap, err := store.GetAchievement(ctx, "user-1", "ten_orders")
	require.NoError(t, err)
	require.NotNil(t, ap)
	assert.Equal(t, int64(10), ap.Progress)
	assert.False(t, ap.EarnedAt.IsZero())

	missing, err := store.GetAchievement(ctx, "user-1", "big_spender")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestCountPaidOrders(t *testing.T) {
	orderDB, bunDB := setupTestDB(t)
	defer bunDB.Close()
	ctx := context.Background()
	store := orderDB.Store()

	paid := seedOrder(t, store, uuid.NewString(), "pi_a", 1000, models.StatusPaid)
	paid.PaidAt = time.Now()
	require.NoError(t, store.UpdateOrder(ctx, paid, "paid_at"))

	seedOrder(t, store, uuid.NewString(), "pi_b", 1000, models.StatusPending)

	count, err := store.CountPaidOrders(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
