package models

import (
	"time"

	"github.com/uptrace/bun"
)

// RewardPoints is the materialized aggregate over reward_history. Balance and
// lifetime are only ever changed in the same transaction as a ledger append.
type RewardPoints struct {
	bun.BaseModel `bun:"table:reward_points,alias:rp"`

	UserID         string    `bun:"user_id,pk" json:"user_id"`
	BalancePoints  int64     `bun:"balance_points,notnull,default:0" json:"balance_points"`
	LifetimeEarned int64     `bun:"lifetime_earned,notnull,default:0" json:"lifetime_earned"`
	Tier           string    `bun:"tier,notnull" json:"tier"`
	UpdatedAt      time.Time `bun:"updated_at,nullzero" json:"updated_at,omitempty"`
}

type RewardLedgerEntry struct {
	bun.BaseModel `bun:"table:reward_history,alias:rh"`

	EntryID     string    `bun:"entry_id,pk" json:"entry_id"`
	UserID      string    `bun:"user_id,notnull" json:"user_id"`
	DeltaPoints int64     `bun:"delta_points,notnull" json:"delta_points"`
	Reason      string    `bun:"reason,notnull" json:"reason"`
	OrderID     string    `bun:"order_id,nullzero" json:"order_id,omitempty"`
	CreatedAt   time.Time `bun:"created_at,notnull" json:"created_at"`
}

type AchievementProgress struct {
	bun.BaseModel `bun:"table:user_achievements,alias:ua"`

	UserID        string    `bun:"user_id,pk" json:"user_id"`
	AchievementID string    `bun:"achievement_id,pk" json:"achievement_id"`
	Progress      int64     `bun:"progress,notnull,default:0" json:"progress"`
	EarnedAt      time.Time `bun:"earned_at,nullzero" json:"earned_at,omitempty"`
	UpdatedAt     time.Time `bun:"updated_at,nullzero" json:"updated_at,omitempty"`
}
