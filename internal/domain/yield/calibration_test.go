package yield

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCalibrationMidpointEstimate(t *testing.T) {
	cal := NewCalibration("")

	got := cal.Estimate("milho", FeatureVector{NDVIMean: 0.75})
	require.Equal(t, MethodCalibration, got.Method)
	require.Equal(t, 10.0, *got.Estimate)
	require.Equal(t, Interval{Low: 8, High: 12, Level: LevelEstimated}, *got.Interval)
	require.Equal(t, "good", got.Band.Label)
	require.Nil(t, got.Error)
}

func TestCalibrationSharedEdgeGoesToHigherBand(t *testing.T) {
	cal := NewCalibration("")

	got := cal.Estimate("milho", FeatureVector{NDVIMean: 0.8})
	require.Equal(t, "excellent", got.Band.Label)
	require.Equal(t, 13.0, *got.Estimate)

	got = cal.Estimate("milho", FeatureVector{NDVIMean: 0})
	require.Equal(t, "low", got.Band.Label)
	require.Equal(t, 2.5, *got.Estimate)
}

func TestCalibrationOutOfRange(t *testing.T) {
	cal := NewCalibration("")

	got := cal.Estimate("milho", FeatureVector{NDVIMean: 1.5})
	require.Equal(t, MethodError, got.Method)
	require.Nil(t, got.Estimate)
	require.Nil(t, got.Interval)
	require.NotNil(t, got.Error)
	require.Equal(t, CodeOutOfRange, got.Error.Code)
	require.Equal(t, 1.5, got.Error.Value)
	require.Len(t, got.Error.CheckedBands, 4)

	_, ok := got.Value()
	require.False(t, ok)

	got = cal.Estimate("soja", FeatureVector{NDVIMean: -0.1})
	require.Equal(t, MethodError, got.Method)
}

func TestCalibrationUnknownCropUsesDefaultTable(t *testing.T) {
	cal := NewCalibration("")

	got := cal.Estimate("Sorgo", FeatureVector{NDVIMean: 0.5})
	require.Equal(t, MethodCalibration, got.Method)
	require.Equal(t, "sorgo", got.Crop)
	require.Equal(t, "milho", got.Band.TableCrop)
	require.Equal(t, 6.5, *got.Estimate)
	require.Contains(t, got.Note, "used milho")
}

func TestCalibrationConfiguredDefault(t *testing.T) {
	cal := NewCalibration(" Soja ")
	require.Equal(t, "soja", cal.DefaultCrop())

	got := cal.Estimate("sorgo", FeatureVector{NDVIMean: 0.9})
	require.Equal(t, "soja", got.Band.TableCrop)
	require.Equal(t, 4.5, *got.Estimate)

	require.Equal(t, DefaultCrop, NewCalibration("cevada").DefaultCrop())
}

func TestCalibrationNormalizesCrop(t *testing.T) {
	cal := NewCalibration("")

	table, own := cal.Table(" SOJA ")
	require.True(t, own)
	require.Equal(t, "soja", table.Crop)
	require.Equal(t, []string{"algodao", "milho", "soja", "trigo"}, cal.Crops())
}
