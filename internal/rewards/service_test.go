package rewards_test

import (
	"context"
	"testing"
	"time"

	"blendshop/internal/logger"
	"blendshop/internal/models"
	"blendshop/internal/rewards"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeLedger is an in-memory stand-in for the transactional store slice the
// dispatcher writes through.
type fakeLedger struct {
	accounts     map[string]*models.RewardPoints
	entries      []models.RewardLedgerEntry
	achievements map[string]*models.AchievementProgress
	paidOrders   int
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		accounts:     make(map[string]*models.RewardPoints),
		achievements: make(map[string]*models.AchievementProgress),
	}
}

func (f *fakeLedger) EnsureRewardAccount(ctx context.Context, userID, tier string) error {
	if _, ok := f.accounts[userID]; !ok {
		f.accounts[userID] = &models.RewardPoints{UserID: userID, Tier: tier}
	}
	return nil
}

func (f *fakeLedger) GetRewardPoints(ctx context.Context, userID string) (*models.RewardPoints, error) {
	rp, ok := f.accounts[userID]
	if !ok {
		return nil, nil
	}
	copied := *rp
	return &copied, nil
}

func (f *fakeLedger) AddPoints(ctx context.Context, userID string, delta, lifetimeDelta int64) (*models.RewardPoints, error) {
	rp := f.accounts[userID]
	rp.BalancePoints += delta
	rp.LifetimeEarned += lifetimeDelta
	copied := *rp
	return &copied, nil
}

func (f *fakeLedger) SetTier(ctx context.Context, userID, tier string) error {
	f.accounts[userID].Tier = tier
	return nil
}

func (f *fakeLedger) InsertRewardEntry(ctx context.Context, entry *models.RewardLedgerEntry) error {
	f.entries = append(f.entries, *entry)
	return nil
}

func (f *fakeLedger) AwardedPointsForOrder(ctx context.Context, orderID string) (int64, error) {
	var total int64
	for _, e := range f.entries {
		if e.OrderID == orderID && e.DeltaPoints > 0 {
			total += e.DeltaPoints
		}
	}
	return total, nil
}

func (f *fakeLedger) CountPaidOrders(ctx context.Context, userID string) (int, error) {
	return f.paidOrders, nil
}

func (f *fakeLedger) GetAchievement(ctx context.Context, userID, achievementID string) (*models.AchievementProgress, error) {
	ap, ok := f.achievements[userID+"/"+achievementID]
	if !ok {
		return nil, nil
	}
	copied := *ap
	return &copied, nil
}

func (f *fakeLedger) SaveAchievement(ctx context.Context, ap *models.AchievementProgress) error {
	copied := *ap
	f.achievements[ap.UserID+"/"+ap.AchievementID] = &copied
	return nil
}

func newDispatcher(rate int64) *rewards.Dispatcher {
	return rewards.NewDispatcher(rewards.Config{EarnRateBasis: rate}, logger.NewLogger())
}

func userOrder(orderID string, totalCents int64) *models.Order {
	return &models.Order{
		OrderID:    orderID,
		Owner:      models.UserOwner("user-1"),
		TotalCents: totalCents,
		Status:     models.StatusPaid,
		PaidAt:     time.Now(),
	}
}

func TestPointsFor_Floors(t *testing.T) {
	d := newDispatcher(100)
	assert.Equal(t, int64(9), d.PointsFor(999))
	assert.Equal(t, int64(10), d.PointsFor(1000))
	assert.Equal(t, int64(0), d.PointsFor(99))

	d = newDispatcher(250)
	assert.Equal(t, int64(24), d.PointsFor(999))
}

func TestOnOrderPaid_AwardsPoints(t *testing.T) {
	d := newDispatcher(100)
	lg := newFakeLedger()
	lg.paidOrders = 1
	ctx := context.Background()

	points, err := d.OnOrderPaid(ctx, lg, userOrder("order-1", 2000))
	require.NoError(t, err)
	assert.Equal(t, int64(20), points)

	rp := lg.accounts["user-1"]
	require.NotNil(t, rp)
	assert.Equal(t, int64(20), rp.BalancePoints)
	assert.Equal(t, int64(20), rp.LifetimeEarned)
	assert.Equal(t, rewards.TierBronze, rp.Tier)

	require.Len(t, lg.entries, 1)
	assert.Equal(t, int64(20), lg.entries[0].DeltaPoints)
	assert.Equal(t, rewards.ReasonOrderPaid, lg.entries[0].Reason)
	assert.Equal(t, "order-1", lg.entries[0].OrderID)
}

func TestOnOrderPaid_GuestEarnsNothing(t *testing.T) {
	d := newDispatcher(100)
	lg := newFakeLedger()

	points, err := d.OnOrderPaid(context.Background(), lg, &models.Order{
		OrderID:    "order-g",
		Owner:      models.GuestOwner("sess-1", "guest@example.com"),
		TotalCents: 2000,
	})
	require.NoError(t, err)
	assert.Zero(t, points)
	assert.Empty(t, lg.accounts)
	assert.Empty(t, lg.entries)
}

func TestOnOrderPaid_TierPromotion(t *testing.T) {
	d := newDispatcher(100)
	lg := newFakeLedger()
	lg.paidOrders = 5
	lg.accounts["user-1"] = &models.RewardPoints{UserID: "user-1", BalancePoints: 990, LifetimeEarned: 990, Tier: rewards.TierBronze}

	_, err := d.OnOrderPaid(context.Background(), lg, userOrder("order-2", 2000))
	require.NoError(t, err)

	assert.Equal(t, rewards.TierSilver, lg.accounts["user-1"].Tier, "crossing 1000 lifetime points promotes to silver")
	assert.Equal(t, int64(1010), lg.accounts["user-1"].LifetimeEarned)
}

func TestOnOrderRefunded_ProportionalWithFloor(t *testing.T) {
	d := newDispatcher(100)
	lg := newFakeLedger()
	lg.paidOrders = 1
	ctx := context.Background()

	order := userOrder("order-3", 2000)
	_, err := d.OnOrderPaid(ctx, lg, order)
	require.NoError(t, err)

	// 500 of 2000 refunded: reversal = floor(20 * 500 / 2000) = 5
	reversed, err := d.OnOrderRefunded(ctx, lg, order, 500)
	require.NoError(t, err)
	assert.Equal(t, int64(5), reversed)
	assert.Equal(t, int64(15), lg.accounts["user-1"].BalancePoints)

	// Flooring: 333 of 2000 gives floor(20 * 333 / 2000) = 3
	reversed, err = d.OnOrderRefunded(ctx, lg, order, 333)
	require.NoError(t, err)
	assert.Equal(t, int64(3), reversed)

	// Lifetime earnings are never reversed
	assert.Equal(t, int64(20), lg.accounts["user-1"].LifetimeEarned)
}

func TestOnOrderRefunded_NeverBelowZero(t *testing.T) {
	d := newDispatcher(100)
	lg := newFakeLedger()
	ctx := context.Background()

	order := userOrder("order-4", 2000)
	lg.accounts["user-1"] = &models.RewardPoints{UserID: "user-1", BalancePoints: 3, LifetimeEarned: 20, Tier: rewards.TierBronze}
	lg.entries = append(lg.entries, models.RewardLedgerEntry{
		EntryID: "e1", UserID: "user-1", DeltaPoints: 20, Reason: rewards.ReasonOrderPaid, OrderID: "order-4",
	})

	// Full refund would reverse 20, but only 3 points remain
	reversed, err := d.OnOrderRefunded(ctx, lg, order, 2000)
	require.NoError(t, err)
	assert.Equal(t, int64(3), reversed)
	assert.Equal(t, int64(0), lg.accounts["user-1"].BalancePoints)
}

func TestOnOrderRefunded_NoAwardNoReversal(t *testing.T) {
	d := newDispatcher(100)
	lg := newFakeLedger()

	reversed, err := d.OnOrderRefunded(context.Background(), lg, userOrder("order-5", 2000), 500)
	require.NoError(t, err)
	assert.Zero(t, reversed)
	assert.Empty(t, lg.entries)
}

func TestAchievements_EarnedAtSetOnce(t *testing.T) {
	d := newDispatcher(100)
	lg := newFakeLedger()
	ctx := context.Background()

	lg.paidOrders = 1
	_, err := d.OnOrderPaid(ctx, lg, userOrder("order-6", 1000))
	require.NoError(t, err)

	first := lg.achievements["user-1/"+rewards.AchievementFirstOrder]
	require.NotNil(t, first)
	assert.False(t, first.EarnedAt.IsZero(), "first_order earned on the first paid order")
	earnedAt := first.EarnedAt

	lg.paidOrders = 2
	_, err = d.OnOrderPaid(ctx, lg, userOrder("order-7", 1000))
	require.NoError(t, err)

	first = lg.achievements["user-1/"+rewards.AchievementFirstOrder]
	assert.Equal(t, earnedAt, first.EarnedAt, "earnedAt is written at most once")
}

func TestAchievements_Progress(t *testing.T) {
	d := newDispatcher(100)
	lg := newFakeLedger()
	ctx := context.Background()

	lg.paidOrders = 4
	_, err := d.OnOrderPaid(ctx, lg, userOrder("order-8", 30000))
	require.NoError(t, err)

	ten := lg.achievements["user-1/"+rewards.AchievementTenOrders]
	require.NotNil(t, ten)
	assert.Equal(t, int64(4), ten.Progress)
	assert.True(t, ten.EarnedAt.IsZero())

	spender := lg.achievements["user-1/"+rewards.AchievementBigSpender]
	require.NotNil(t, spender)
	assert.Equal(t, int64(30000), spender.Progress)
	assert.True(t, spender.EarnedAt.IsZero())

	// Spend accumulates across orders and unlocks at 50000
	lg.paidOrders = 5
	_, err = d.OnOrderPaid(ctx, lg, userOrder("order-9", 25000))
	require.NoError(t, err)

	spender = lg.achievements["user-1/"+rewards.AchievementBigSpender]
	assert.Equal(t, int64(55000), spender.Progress)
	assert.False(t, spender.EarnedAt.IsZero())
}

func TestTierFor(t *testing.T) {
	assert.Equal(t, rewards.TierBronze, rewards.TierFor(0))
	assert.Equal(t, rewards.TierBronze, rewards.TierFor(999))
	assert.Equal(t, rewards.TierSilver, rewards.TierFor(1000))
	assert.Equal(t, rewards.TierGold, rewards.TierFor(5000))
	assert.Equal(t, rewards.TierPlatinum, rewards.TierFor(20000))
	assert.Equal(t, rewards.TierPlatinum, rewards.TierFor(1_000_000))
}
