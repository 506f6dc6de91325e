package util

import (
	"math"
	"time"
)

// NowUTC exposes time.Now for deterministic testing.
func NowUTC() time.Time {
	return time.Now().UTC()
}

// Round2 rounds to two decimals, the precision yields are reported with.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
