package olg

import (
	"strings"

	"github.com/gstat-gcloud/covid19-sim/internal/models"
)

// FillGaps carries the last cumulative count forward over missing days and
// returns how many days were added. obs must be ordered by day; the input
// slice is not modified.
func FillGaps(obs []models.Observation) ([]models.Observation, int) {
	if len(obs) < 2 {
		return obs, 0
	}
	out := make([]models.Observation, 0, len(obs))
	filled := 0
	for i, o := range obs {
		if i > 0 {
			prev := out[len(out)-1]
			for d := models.Day(prev.Date).AddDate(0, 0, 1); d.Before(models.Day(o.Date)); d = d.AddDate(0, 0, 1) {
				out = append(out, models.Observation{Group: prev.Group, Date: d, Count: prev.Count})
				filled++
			}
		}
		out = append(out, o)
	}
	return out, filled
}

// Threshold returns a group's onset threshold from overrides, or fallback
// when the group has none. Keys are compared case-insensitively.
func Threshold(overrides map[string]float64, group string, fallback float64) float64 {
	if v, ok := overrides[group]; ok {
		return v
	}
	if v, ok := overrides[strings.ToLower(group)]; ok {
		return v
	}
	return fallback
}
