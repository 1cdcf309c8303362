package db

import (
	"context"

	"blendshop/internal/models"

	"github.com/uptrace/bun"
)

// CreateSchema creates every table the reconciliation core persists to.
// Production deployments run the SQL migrations instead; this is for local
// development and the in-memory SQLite used by tests.
func CreateSchema(ctx context.Context, bdb *bun.DB) error {
	tables := []interface{}{
		(*models.Product)(nil),
		(*models.Order)(nil),
		(*models.OrderItem)(nil),
		(*models.Refund)(nil),
		(*models.InventoryMovement)(nil),
		(*models.ProcessedWebhookEvent)(nil),
		(*models.RewardPoints)(nil),
		(*models.RewardLedgerEntry)(nil),
		(*models.AchievementProgress)(nil),
	}
	for _, table := range tables {
		if _, err := bdb.NewCreateTable().Model(table).IfNotExists().Exec(ctx); err != nil {
			return err
		}
	}
	return nil
}
