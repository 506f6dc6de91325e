package yield

import (
	"sort"

	"github.com/montanaflynn/stats"

	"github.com/agrofocus/yield-service/pkg/util"
)

// AnalyzeTrend classifies a yield history by the change between its first and last
// year. Interior years only contribute to the mean. thresholdPct <= 0 uses 5%.
func AnalyzeTrend(history []YearYield, thresholdPct float64) TrendResult {
	if len(history) < 2 {
		return TrendResult{
			Direction: DirectionInsufficient,
			Message:   "at least two years of history are required for a trend",
		}
	}
	if thresholdPct <= 0 {
		thresholdPct = defaultTrendThresholdPct
	}

	// Order of entries sharing a year is unspecified.
	sorted := append([]YearYield(nil), history...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Year < sorted[j].Year })

	years := make([]int, len(sorted))
	yields := make([]float64, len(sorted))
	for i, p := range sorted {
		years[i] = p.Year
		yields[i] = p.Yield
	}
	mean, _ := stats.Mean(yields)
	first, last := yields[0], yields[len(yields)-1]

	// A non-positive first year reports 0% variation.
	variation := 0.0
	if first > 0 {
		variation = (last - first) / first * 100
	}

	direction := DirectionStable
	switch {
	case variation > thresholdPct:
		direction = DirectionRising
	case variation < -thresholdPct:
		direction = DirectionFalling
	}

	return TrendResult{
		Direction:    direction,
		VariationPct: util.Round2(variation),
		MeanYield:    util.Round2(mean),
		LatestYield:  util.Round2(last),
		Years:        years,
		Yields:       yields,
	}
}
