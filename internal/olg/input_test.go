package olg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gstat-gcloud/covid19-sim/internal/models"
)

func TestFillGaps(t *testing.T) {
	obs := []models.Observation{
		{Group: "g", Date: firstDay, Count: 1},
		{Group: "g", Date: firstDay.AddDate(0, 0, 3), Count: 4},
		{Group: "g", Date: firstDay.AddDate(0, 0, 4), Count: 6},
	}

	got, filled := FillGaps(obs)
	assert.Equal(t, 2, filled)
	require.Len(t, got, 5)
	assert.Equal(t, []float64{1, 1, 1, 4, 6}, []float64{got[0].Count, got[1].Count, got[2].Count, got[3].Count, got[4].Count})
	assert.True(t, got[2].Date.Equal(firstDay.AddDate(0, 0, 2)))
	assert.Equal(t, "g", got[1].Group)
	assert.Len(t, obs, 3, "input is not modified")
}

func TestFillGaps_Consecutive(t *testing.T) {
	obs := observations("g", []float64{1, 2, 3})
	got, filled := FillGaps(obs)
	assert.Zero(t, filled)
	assert.Equal(t, obs, got)

	single, filled := FillGaps(obs[:1])
	assert.Zero(t, filled)
	assert.Len(t, single, 1)
}

func TestFillGaps_RunAccepts(t *testing.T) {
	obs := observations("haifa", geometric(100, 1.1, 20))
	obs = append(obs[:8], obs[9:]...)

	p := Params{Fi: 0.5, Theta: 0.3, Tau: 5, InitInfected: 50}
	_, err := Run("haifa", obs, p)
	require.ErrorIs(t, err, models.ErrInvalidParameter)

	filled, n := FillGaps(obs)
	assert.Equal(t, 1, n)
	_, err = Run("haifa", filled, p)
	assert.NoError(t, err)
}

func TestThreshold(t *testing.T) {
	overrides := map[string]float64{"bnei-brak": 25, "Haifa": 40}

	tests := []struct {
		name  string
		group string
		want  float64
	}{
		{name: "lowercased key", group: "Bnei-Brak", want: 25},
		{name: "exact key", group: "Haifa", want: 40},
		{name: "no override", group: "israel", want: 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Threshold(overrides, tt.group, 100))
		})
	}

	assert.Equal(t, 100.0, Threshold(nil, "israel", 100))
}
