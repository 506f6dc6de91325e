package gdd

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	apperrors "github.com/agrofocus/yield-service/pkg/errors"
)

func TestDailyCapsAndFloors(t *testing.T) {
	require.Equal(t, 12.5, Daily(25, 20, 10))
	require.Equal(t, 15.0, Daily(35, 20, 10))
	require.Equal(t, 7.5, Daily(25, 2, 10))
	require.Equal(t, 0.0, Daily(8, 2, 10))
}

func TestAccumulateResolvesStages(t *testing.T) {
	observed := make([]DailyTemperature, 20)
	for i := range observed {
		observed[i] = DailyTemperature{Date: "d", TMax: 30, TMin: 20}
	}
	acc, err := Accumulate(" Milho ", observed, nil)
	require.NoError(t, err)

	require.Equal(t, "milho", acc.Crop)
	require.Equal(t, 10.0, acc.BaseTemperature)
	require.Equal(t, 300.0, acc.Total)
	require.Equal(t, 20, acc.Days)
	require.Equal(t, "V3", acc.CurrentStage.Name)
	require.Equal(t, "V6", acc.NextStage.Name)
	require.Equal(t, 50.0, acc.NextStage.Remaining)
	require.NotNil(t, acc.DaysToHarvest)
	require.Equal(t, 74, *acc.DaysToHarvest)
	require.Empty(t, acc.Alerts)
}

func TestAccumulateForecastAlert(t *testing.T) {
	observed := []DailyTemperature{{Date: "2024-01-01", TMax: 30, TMin: 20}}
	forecast := []DailyTemperature{
		{Date: "2024-01-02", TMax: 30, TMin: 20},
		{Date: "2024-01-03", TMax: 30, TMin: 20},
	}
	acc, err := Accumulate("soja", observed, forecast)
	require.NoError(t, err)

	require.Nil(t, acc.CurrentStage)
	require.Equal(t, "VE emergence", acc.NextStage.Name)
	require.Len(t, acc.Forecast, 2)
	require.Equal(t, 36.0, acc.Forecast[0].Cumulative)
	require.Equal(t, 54.0, acc.Forecast[1].Cumulative)
	require.Empty(t, acc.Alerts)

	observed = append(observed, DailyTemperature{TMax: 30, TMin: 20}, DailyTemperature{TMax: 30, TMin: 20})
	acc, err = Accumulate("soja", observed, forecast[:1])
	require.NoError(t, err)
	require.Len(t, acc.Alerts, 1)
	require.Equal(t, 1, acc.Alerts[0].DaysLeft)
}

func TestAccumulateRejectsBadInput(t *testing.T) {
	_, err := Accumulate("sorgo", nil, nil)
	require.True(t, apperrors.IsCode(err, apperrors.CodeInvalidInput))

	_, err = Accumulate("milho", []DailyTemperature{{TMax: math.NaN(), TMin: 10}}, nil)
	require.True(t, apperrors.IsCode(err, apperrors.CodeInvalidInput))
}

func TestCatalog(t *testing.T) {
	require.Len(t, Crops(), 8)
	tbase, ok := BaseTemperature("CANA")
	require.True(t, ok)
	require.Equal(t, 18.0, tbase)
	require.Len(t, Stages("cafe"), 5)
	require.Empty(t, Stages("sorgo"))
}
