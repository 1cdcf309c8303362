package rewards

// Loyalty tiers derived from lifetime earned points. Thresholds are fixed;
// a user never moves down a tier because lifetime earnings never decrease.
const (
	TierBronze   = "bronze"
	TierSilver   = "silver"
	TierGold     = "gold"
	TierPlatinum = "platinum"
)

var tierThresholds = []struct {
	tier string
	min  int64
}{
	{TierPlatinum, 20000},
	{TierGold, 5000},
	{TierSilver, 1000},
	{TierBronze, 0},
}

// TierFor resolves the tier for a lifetime-earned total.
func TierFor(lifetimeEarned int64) string {
	for _, t := range tierThresholds {
		if lifetimeEarned >= t.min {
			return t.tier
		}
	}
	return TierBronze
}
