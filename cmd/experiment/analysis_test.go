package main

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gstat-gcloud/covid19-sim/internal/models"
	"github.com/gstat-gcloud/covid19-sim/internal/olg"
)

func geometricObs(group string, start, growth float64, n int) []models.Observation {
	day := time.Date(2020, 3, 1, 0, 0, 0, 0, time.UTC)
	obs := make([]models.Observation, n)
	for i := range obs {
		obs[i] = models.Observation{Group: group, Date: day.AddDate(0, 0, i), Count: start * math.Pow(growth, float64(i))}
	}
	return obs
}

func TestBacktest_LaggedTracksConstantGrowth(t *testing.T) {
	obs := geometricObs("israel", 150, 1.1, 40)
	base := olg.Params{Fi: 0.5, Theta: 0.3, InitInfected: 100}

	bt := backtest("israel", obs, base, Variant{Tau: 5, Recurrence: olg.RecurrenceLagged}, 7)
	require.NoError(t, bt.Err)
	assert.InDelta(t, 0, bt.MAPE, 1e-6)
}

func TestBacktest_MissingDays(t *testing.T) {
	obs := geometricObs("haifa", 150, 1.1, 40)
	obs = append(obs[:10], obs[11:]...)
	obs = append(obs[:35], obs[36:]...)
	base := olg.Params{Fi: 0.5, Theta: 0.3, InitInfected: 100}

	for _, rec := range []olg.Recurrence{olg.RecurrenceGenerational, olg.RecurrenceLagged} {
		bt := backtest("haifa", obs, base, Variant{Tau: 5, Recurrence: rec}, 7)
		require.NoError(t, bt.Err, "recurrence %s", rec)
		assert.Greater(t, bt.R0D, 0.0)
	}
}

func TestBacktest_TooShort(t *testing.T) {
	bt := backtest("eilat", geometricObs("eilat", 150, 1.1, 5), olg.Params{Fi: 0.5, Theta: 0.3}, Variant{Tau: 5}, 7)
	assert.Error(t, bt.Err)
}

func TestAggregate(t *testing.T) {
	a := Variant{Tau: 5, Recurrence: olg.RecurrenceGenerational}
	b := Variant{Tau: 5, Recurrence: olg.RecurrenceLagged}
	c := Variant{Tau: 7, Recurrence: olg.RecurrenceLagged}

	stats := aggregate([]Backtest{
		{Group: "x", Variant: a, MAPE: 40, R0D: 1},
		{Group: "y", Variant: a, MAPE: 20, R0D: 2},
		{Group: "x", Variant: b, MAPE: 2, R0D: 1},
		{Group: "y", Variant: b, Err: errors.New("no onset")},
		{Group: "x", Variant: c, Err: errors.New("no onset")},
	})

	require.Len(t, stats, 3)
	assert.Equal(t, b, stats[0].Variant)
	assert.Equal(t, 1, stats[0].Failures)
	assert.Equal(t, a, stats[1].Variant)
	assert.InDelta(t, 30, stats[1].MeanMAPE, 1e-12)
	assert.InDelta(t, 1.5, stats[1].MeanR0D, 1e-12)
	assert.Equal(t, c, stats[2].Variant, "variants without results rank last")
}
