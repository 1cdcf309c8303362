package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

func GenerateRefundID() string {
	timestamp := time.Now().Unix()
	randomNum, _ := rand.Int(rand.Reader, big.NewInt(999999))
	return fmt.Sprintf("rfnd_%d_%06d", timestamp, randomNum.Int64())
}

// GenerateSyncEventID builds a deterministic event id for a manual gateway
// sync, so re-running sync for an unchanged intent state hits the dedup
// table like a replayed webhook would.
func GenerateSyncEventID(intentID, status string) string {
	return fmt.Sprintf("sync_%s_%s", intentID, status)
}
