package rewards

import (
	"context"
	"fmt"
	"time"

	"blendshop/internal/logger"
	"blendshop/internal/models"

	"github.com/google/uuid"
)

const (
	ReasonOrderPaid     = "order_paid"
	ReasonOrderRefunded = "order_refunded"

	AchievementFirstOrder = "first_order"
	AchievementTenOrders  = "ten_orders"
	AchievementBigSpender = "big_spender"

	tenOrdersTarget       = 10
	bigSpenderTargetCents = 50000
)

// Ledger is the slice of the transactional store the dispatcher mutates. The
// caller passes the store of the transaction that carries the triggering
// status change, so points, ledger rows and achievements commit with it.
type Ledger interface {
	EnsureRewardAccount(ctx context.Context, userID, tier string) error
	GetRewardPoints(ctx context.Context, userID string) (*models.RewardPoints, error)
	AddPoints(ctx context.Context, userID string, delta, lifetimeDelta int64) (*models.RewardPoints, error)
	SetTier(ctx context.Context, userID, tier string) error
	InsertRewardEntry(ctx context.Context, entry *models.RewardLedgerEntry) error
	AwardedPointsForOrder(ctx context.Context, orderID string) (int64, error)
	CountPaidOrders(ctx context.Context, userID string) (int, error)
	GetAchievement(ctx context.Context, userID, achievementID string) (*models.AchievementProgress, error)
	SaveAchievement(ctx context.Context, ap *models.AchievementProgress) error
}

type Config struct {
	// EarnRateBasis is points earned per 100 currency units, so 100 means
	// one point per unit spent.
	EarnRateBasis int64
}

type Dispatcher struct {
	cfg Config
	log *logger.Logger
}

func NewDispatcher(cfg Config, log *logger.Logger) *Dispatcher {
	if cfg.EarnRateBasis <= 0 {
		cfg.EarnRateBasis = 100
	}
	return &Dispatcher{cfg: cfg, log: log}
}

// PointsFor computes the award for a paid total: floor(total * rate).
func (d *Dispatcher) PointsFor(totalCents int64) int64 {
	return totalCents * d.cfg.EarnRateBasis / 10000
}

// OnOrderPaid awards points and advances achievements for the order's owner.
// Guests earn nothing. The caller only invokes this when the paid transition
// actually fired, never on a replay, so one paid order yields exactly one
// positive ledger entry.
func (d *Dispatcher) OnOrderPaid(ctx context.Context, lg Ledger, order *models.Order) (int64, error) {
	if !order.Owner.IsUser() {
		return 0, nil
	}
	userID := order.Owner.UserID

	if err := lg.EnsureRewardAccount(ctx, userID, TierBronze); err != nil {
		return 0, err
	}

	points := d.PointsFor(order.TotalCents)
	rp, err := lg.AddPoints(ctx, userID, points, points)
	if err != nil {
		return 0, err
	}
	if err := lg.InsertRewardEntry(ctx, &models.RewardLedgerEntry{
		EntryID:     uuid.NewString(),
		UserID:      userID,
		DeltaPoints: points,
		Reason:      ReasonOrderPaid,
		OrderID:     order.OrderID,
		CreatedAt:   time.Now(),
	}); err != nil {
		return 0, err
	}

	if tier := TierFor(rp.LifetimeEarned); tier != rp.Tier {
		if err := lg.SetTier(ctx, userID, tier); err != nil {
			return 0, err
		}
		d.log.LogRewards("TIER", userID, fmt.Sprintf("promoted to %s at %d lifetime points", tier, rp.LifetimeEarned))
	}

	if err := d.advanceOrderAchievements(ctx, lg, userID, order.TotalCents); err != nil {
		return 0, err
	}

	d.log.LogRewards("AWARD", userID, fmt.Sprintf("awarded %d points for order %s", points, order.OrderID))
	return points, nil
}

// OnOrderRefunded reverses points proportional to the refunded fraction of
// the order total, flooring the reversal and never driving the balance below
// zero. Lifetime earnings and achievements are left untouched.
func (d *Dispatcher) OnOrderRefunded(ctx context.Context, lg Ledger, order *models.Order, refundCents int64) (int64, error) {
	if !order.Owner.IsUser() || refundCents <= 0 || order.TotalCents <= 0 {
		return 0, nil
	}
	userID := order.Owner.UserID

	awarded, err := lg.AwardedPointsForOrder(ctx, order.OrderID)
	if err != nil {
		return 0, err
	}
	if awarded == 0 {
		return 0, nil
	}

	reversal := awarded * refundCents / order.TotalCents
	rp, err := lg.GetRewardPoints(ctx, userID)
	if err != nil {
		return 0, err
	}
	if rp != nil && reversal > rp.BalancePoints {
		reversal = rp.BalancePoints
	}
	if reversal <= 0 {
		return 0, nil
	}

	if _, err := lg.AddPoints(ctx, userID, -reversal, 0); err != nil {
		return 0, err
	}
	if err := lg.InsertRewardEntry(ctx, &models.RewardLedgerEntry{
		EntryID:     uuid.NewString(),
		UserID:      userID,
		DeltaPoints: -reversal,
		Reason:      ReasonOrderRefunded,
		OrderID:     order.OrderID,
		CreatedAt:   time.Now(),
	}); err != nil {
		return 0, err
	}

	d.log.LogRewards("REVERSE", userID, fmt.Sprintf("reversed %d points for order %s refund of %d", reversal, order.OrderID, refundCents))
	return reversal, nil
}

func (d *Dispatcher) advanceOrderAchievements(ctx context.Context, lg Ledger, userID string, totalCents int64) error {
	paidOrders, err := lg.CountPaidOrders(ctx, userID)
	if err != nil {
		return err
	}

	if err := d.progress(ctx, lg, userID, AchievementFirstOrder, int64(paidOrders), 1, false); err != nil {
		return err
	}
	if err := d.progress(ctx, lg, userID, AchievementTenOrders, int64(paidOrders), tenOrdersTarget, false); err != nil {
		return err
	}
	return d.progress(ctx, lg, userID, AchievementBigSpender, totalCents, bigSpenderTargetCents, true)
}

// progress moves an achievement forward. Progress is monotonic: absolute
// counters only ever replace a smaller value, accumulators add. earnedAt is
// set at most once, when the target is first reached.
func (d *Dispatcher) progress(ctx context.Context, lg Ledger, userID, achievementID string, value, target int64, accumulate bool) error {
	ap, err := lg.GetAchievement(ctx, userID, achievementID)
	if err != nil {
		return err
	}
	if ap == nil {
		ap = &models.AchievementProgress{UserID: userID, AchievementID: achievementID}
	}

	if accumulate {
		ap.Progress += value
	} else if value > ap.Progress {
		ap.Progress = value
	}

	if ap.EarnedAt.IsZero() && ap.Progress >= target {
		ap.EarnedAt = time.Now()
		d.log.LogRewards("ACHIEVEMENT", userID, fmt.Sprintf("earned %s", achievementID))
	}

	return lg.SaveAchievement(ctx, ap)
}
