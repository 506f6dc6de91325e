package yield

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCompareAlertBoundaries(t *testing.T) {
	cases := []struct {
		name     string
		current  float64
		baseline float64
		severity Severity
		alerts   int
	}{
		{name: "exactly minus twenty", current: 8, baseline: 10, severity: SeverityWarning, alerts: 1},
		{name: "just past critical", current: 79.99, baseline: 100, severity: SeverityCritical, alerts: 1},
		{name: "exactly minus ten", current: 90, baseline: 100, alerts: 0},
		{name: "just past warning", current: 89.99, baseline: 100, severity: SeverityWarning, alerts: 1},
		{name: "above", current: 110, baseline: 100, alerts: 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Compare(tc.current, tc.baseline, DefaultAlertThresholds())
			require.Len(t, got.Alerts, tc.alerts)
			if tc.alerts > 0 {
				require.Equal(t, tc.severity, got.Alerts[0].Severity)
				require.NotEmpty(t, got.Alerts[0].SuggestedAction)
			}
		})
	}
}

func TestCompareStatusAndRounding(t *testing.T) {
	got := Compare(8, 10, DefaultAlertThresholds())
	require.Equal(t, StatusBelow, got.Status)
	require.Equal(t, -2.0, got.AbsoluteDiff)
	require.Equal(t, -20.0, got.PctDiff)
	require.Equal(t, "estimate 20.0% below historical average", got.Alerts[0].Message)

	got = Compare(10, 10, DefaultAlertThresholds())
	require.Equal(t, StatusEqual, got.Status)
	require.NotNil(t, got.Alerts)
	require.Empty(t, got.Alerts)

	got = Compare(12.345, 10, DefaultAlertThresholds())
	require.Equal(t, StatusAbove, got.Status)
	require.Equal(t, 23.45, got.PctDiff)
}

func TestCompareNonPositiveBaseline(t *testing.T) {
	got := Compare(5, 0, DefaultAlertThresholds())
	require.Equal(t, 0.0, got.PctDiff)
	require.Equal(t, StatusAbove, got.Status)
	require.Empty(t, got.Alerts)
}

func TestCompareCustomThresholds(t *testing.T) {
	got := Compare(94, 100, AlertThresholds{WarningDropPct: 5, CriticalDropPct: 15})
	require.Len(t, got.Alerts, 1)
	require.Equal(t, SeverityWarning, got.Alerts[0].Severity)
}
