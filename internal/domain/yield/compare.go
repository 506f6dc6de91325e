package yield

import (
	"fmt"
	"math"

	"github.com/agrofocus/yield-service/pkg/util"
)

// AlertThresholds are the drops (in percent) that raise comparison alerts.
type AlertThresholds struct {
	WarningDropPct  float64
	CriticalDropPct float64
}

// DefaultAlertThresholds raise a warning below -10% and a critical alert below -20%.
func DefaultAlertThresholds() AlertThresholds {
	return AlertThresholds{WarningDropPct: defaultWarningDropPct, CriticalDropPct: defaultCriticalDropPct}
}

// Compare positions current against baseline and raises at most one alert.
// A non-positive baseline reports 0% difference.
func Compare(current, baseline float64, thresholds AlertThresholds) ComparisonResult {
	if thresholds.WarningDropPct <= 0 {
		thresholds.WarningDropPct = defaultWarningDropPct
	}
	if thresholds.CriticalDropPct <= 0 {
		thresholds.CriticalDropPct = defaultCriticalDropPct
	}

	diff := current - baseline
	pct := 0.0
	if baseline > 0 {
		pct = diff / baseline * 100
	}

	alerts := []Alert{}
	switch {
	case pct < -thresholds.CriticalDropPct:
		alerts = append(alerts, Alert{
			Severity:        SeverityCritical,
			Message:         fmt.Sprintf("estimate %.1f%% below historical average", math.Abs(pct)),
			SuggestedAction: "inspect crop health, nutrition and pests",
		})
	case pct < -thresholds.WarningDropPct:
		alerts = append(alerts, Alert{
			Severity:        SeverityWarning,
			Message:         fmt.Sprintf("estimate %.1f%% below historical average", math.Abs(pct)),
			SuggestedAction: "monitor crop development",
		})
	}

	// Exact float equality; both inputs come from upstream rounding.
	status := StatusEqual
	switch {
	case diff > 0:
		status = StatusAbove
	case diff < 0:
		status = StatusBelow
	}

	return ComparisonResult{
		Current:        util.Round2(current),
		HistoricalMean: util.Round2(baseline),
		AbsoluteDiff:   util.Round2(diff),
		PctDiff:        util.Round2(pct),
		Status:         status,
		Alerts:         alerts,
	}
}
