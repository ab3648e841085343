package main

import (
	"fmt"
	"math"
	"sort"

	"github.com/gstat-gcloud/covid19-sim/internal/models"
	"github.com/gstat-gcloud/covid19-sim/internal/olg"
)

// backtest forecasts the last holdout days of a group from the days before
// them and scores the forecast against what was observed. Missing days are
// carried forward first, as the service does, so the held-out days are
// consecutive.
func backtest(group string, obs []models.Observation, base olg.Params, v Variant, holdout int) Backtest {
	bt := Backtest{Group: group, Variant: v}
	obs, _ = olg.FillGaps(obs)
	if len(obs) <= holdout {
		bt.Err = fmt.Errorf("need more than %d observations, have %d", holdout, len(obs))
		return bt
	}

	p := base
	p.Tau = v.Tau
	p.Recurrence = v.Recurrence
	p.Scenarios = []olg.Scenario{{Days: holdout, Multiplier: 100}}

	train := obs[:len(obs)-holdout]
	actual := obs[len(obs)-holdout:]

	res, err := olg.Run(group, train, p)
	if err != nil {
		bt.Err = err
		return bt
	}
	bt.R0D = res.R0D

	forecast := res.Forecast()
	var sum float64
	n := 0
	for i, row := range forecast {
		if actual[i].Count == 0 {
			continue
		}
		sum += math.Abs(row.Detected-actual[i].Count) / actual[i].Count
		n++
	}
	if n > 0 {
		bt.MAPE = sum / float64(n) * 100
	}
	return bt
}

// aggregate summarizes backtests per variant, best mean error first.
func aggregate(results []Backtest) []VariantStats {
	byVariant := make(map[Variant]*VariantStats)
	var order []Variant
	for _, bt := range results {
		s, ok := byVariant[bt.Variant]
		if !ok {
			s = &VariantStats{Variant: bt.Variant}
			byVariant[bt.Variant] = s
			order = append(order, bt.Variant)
		}
		if bt.Err != nil {
			s.Failures++
			continue
		}
		s.Groups++
		s.MeanMAPE += bt.MAPE
		s.MeanR0D += bt.R0D
	}

	stats := make([]VariantStats, 0, len(order))
	for _, v := range order {
		s := byVariant[v]
		if s.Groups > 0 {
			s.MeanMAPE /= float64(s.Groups)
			s.MeanR0D /= float64(s.Groups)
		}
		stats = append(stats, *s)
	}

	sort.SliceStable(stats, func(i, j int) bool {
		if (stats[i].Groups == 0) != (stats[j].Groups == 0) {
			return stats[i].Groups > 0
		}
		return stats[i].MeanMAPE < stats[j].MeanMAPE
	})
	return stats
}
