package olg

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/gstat-gcloud/covid19-sim/internal/models"
)

// Trim drops every day up to the first one whose count exceeds threshold and
// applies a monotone floor so the working series never decreases. It returns
// the index of the onset day in the input.
func Trim(group string, counts []float64, threshold float64) (int, []float64, error) {
	onset := -1
	for i, c := range counts {
		if c > threshold {
			onset = i
			break
		}
	}
	if onset < 0 {
		return 0, nil, &models.InsufficientDataError{
			Group:  group,
			Have:   len(counts),
			Need:   1,
			Reason: "no day exceeds the onset threshold",
		}
	}

	detected := make([]float64, len(counts)-onset)
	copy(detected, counts[onset:])
	for t := 1; t < len(detected); t++ {
		detected[t] = math.Max(detected[t-1], detected[t])
	}
	return onset, detected, nil
}

// GrowthRates returns one instantaneous rate estimate per day t ≥ 1:
//
//	t ≤ τ: r = (d[t]/(d[t-1]+ε) - 1)·τ
//	t > τ: r = (d[t]/(d[t-1] - d[t-τ] + d[t-τ-1]) - 1)·τ
func GrowthRates(detected []float64, tau int) ([]float64, error) {
	if len(detected) < 2 {
		return nil, nil
	}
	ft := float64(tau)
	rates := make([]float64, 0, len(detected)-1)
	for t := 1; t < len(detected); t++ {
		var r float64
		if t <= tau {
			r = (detected[t]/(detected[t-1]+epsilon) - 1) * ft
		} else {
			denom := detected[t-1] - detected[t-tau] + detected[t-tau-1]
			if denom == 0 {
				return nil, &models.ComputationError{
					Op:     "growth_rate",
					Inputs: map[string]float64{"t": float64(t), "tau": ft, "detected_t": detected[t], "denominator": denom},
					Reason: "division by zero",
				}
			}
			r = (detected[t]/denom - 1) * ft
		}
		if math.IsNaN(r) || math.IsInf(r, 0) {
			return nil, &models.ComputationError{
				Op:     "growth_rate",
				Inputs: map[string]float64{"t": float64(t), "tau": ft, "detected_t": detected[t]},
				Reason: "non-finite growth rate",
			}
		}
		rates = append(rates, r)
	}
	return rates, nil
}

// MovingAverage returns the trailing mean over window, with the first
// window-1 values averaged over the full window as if preceded by zeros.
// The result has the same length as values.
func MovingAverage(values []float64, window int) []float64 {
	out := make([]float64, len(values))
	for k := range values {
		lo := k - window + 1
		if lo < 0 {
			lo = 0
		}
		out[k] = floats.Sum(values[lo:k+1]) / float64(window)
	}
	return out
}

// Calibrate estimates the reproduction rate of a trimmed series: the smoothed
// growth rates and their final value R0D.
func Calibrate(group string, detected []float64, tau int) ([]float64, float64, error) {
	if len(detected) < tau+1 {
		return nil, 0, &models.InsufficientDataError{
			Group:  group,
			Have:   len(detected),
			Need:   tau + 1,
			Reason: "series since onset shorter than the calibration window",
		}
	}
	rates, err := GrowthRates(detected, tau)
	if err != nil {
		return nil, 0, err
	}
	rma := MovingAverage(rates, tau)
	return rma, rma[len(rma)-1], nil
}
