package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"blendshop/internal/models"
)

// Reward ledger operations. These always run inside the transaction of the
// status change that triggered them, so a ledger append and its aggregate
// update cannot be split by a crash.

// EnsureRewardAccount creates the zero-balance aggregate row on first touch.
func (s *Store) EnsureRewardAccount(ctx context.Context, userID, tier string) error {
	row := &models.RewardPoints{
		UserID:    userID,
		Tier:      tier,
		UpdatedAt: time.Now(),
	}
	_, err := s.db.NewInsert().
		Model(row).
		On("CONFLICT DO NOTHING").
		Exec(ctx)
	return err
}

func (s *Store) GetRewardPoints(ctx context.Context, userID string) (*models.RewardPoints, error) {
	rp := new(models.RewardPoints)
	err := s.db.NewSelect().
		Model(rp).
		Where("user_id = ?", userID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return rp, nil
}

// AddPoints applies an atomic increment to the aggregate row and returns the
// updated totals. Negative deltas never push the balance below zero; the
// caller clamps before calling.
func (s *Store) AddPoints(ctx context.Context, userID string, delta, lifetimeDelta int64) (*models.RewardPoints, error) {
	_, err := s.db.NewUpdate().
		Model((*models.RewardPoints)(nil)).
		Set("balance_points = balance_points + ?", delta).
		Set("lifetime_earned = lifetime_earned + ?", lifetimeDelta).
		Set("updated_at = ?", time.Now()).
		Where("user_id = ?", userID).
		Exec(ctx)
	if err != nil {
		return nil, err
	}
	return s.GetRewardPoints(ctx, userID)
}

func (s *Store) SetTier(ctx context.Context, userID, tier string) error {
	_, err := s.db.NewUpdate().
		Model((*models.RewardPoints)(nil)).
		Set("tier = ?", tier).
		Set("updated_at = ?", time.Now()).
		Where("user_id = ?", userID).
		Exec(ctx)
	return err
}

func (s *Store) InsertRewardEntry(ctx context.Context, entry *models.RewardLedgerEntry) error {
	_, err := s.db.NewInsert().Model(entry).Exec(ctx)
	return err
}

// AwardedPointsForOrder sums the positive ledger entries linked to an order,
// the base for proportional refund reversal.
func (s *Store) AwardedPointsForOrder(ctx context.Context, orderID string) (int64, error) {
	var total int64
	err := s.db.NewSelect().
		ColumnExpr("COALESCE(SUM(delta_points), 0)").
		Model((*models.RewardLedgerEntry)(nil)).
		Where("order_id = ? AND delta_points > 0", orderID).
		Scan(ctx, &total)
	if err != nil {
		return 0, err
	}
	return total, nil
}

// CountPaidOrders counts the user's orders that ever reached paid, including
// the one being processed in the current transaction.
func (s *Store) CountPaidOrders(ctx context.Context, userID string) (int, error) {
	return s.db.NewSelect().
		Model((*models.Order)(nil)).
		Where("owner_user_id = ? AND paid_at IS NOT NULL", userID).
		Count(ctx)
}

func (s *Store) GetAchievement(ctx context.Context, userID, achievementID string) (*models.AchievementProgress, error) {
	ap := new(models.AchievementProgress)
	err := s.db.NewSelect().
		Model(ap).
		Where("user_id = ? AND achievement_id = ?", userID, achievementID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return ap, nil
}

// SaveAchievement upserts progress. earned_at is written through as given;
// the dispatcher guarantees it is set at most once.
func (s *Store) SaveAchievement(ctx context.Context, ap *models.AchievementProgress) error {
	ap.UpdatedAt = time.Now()
	_, err := s.db.NewInsert().
		Model(ap).
		On("CONFLICT (user_id, achievement_id) DO UPDATE").
		Set("progress = EXCLUDED.progress").
		Set("earned_at = EXCLUDED.earned_at").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}
