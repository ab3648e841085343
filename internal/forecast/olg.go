package forecast

import (
	"fmt"

	"github.com/gstat-gcloud/covid19-sim/internal/logger"
	"github.com/gstat-gcloud/covid19-sim/internal/models"
	"github.com/gstat-gcloud/covid19-sim/internal/olg"
)

// OLGResult is a persisted growth-rate forecast for one group.
type OLGResult struct {
	Run    *models.Run `json:"run"`
	Result *olg.Result `json:"result"`
}

// RunOLG forecasts every group from its stored observations. An empty groups
// slice forecasts every stored group. overrides replaces the onset threshold
// for individual groups.
//
// Parameter errors and storage listing failures abort the whole call.
// Failures of individual groups are returned alongside the successes, both
// ordered by group.
func (f *Forecaster) RunOLG(groups []string, p olg.Params, overrides map[string]float64) ([]OLGResult, []GroupError, error) {
	if err := p.Validate(); err != nil {
		return nil, nil, err
	}
	if f.store == nil {
		return nil, nil, fmt.Errorf("olg forecasts require a store")
	}

	if len(groups) == 0 {
		var err error
		if groups, err = f.store.GetGroups(); err != nil {
			return nil, nil, fmt.Errorf("failed to list groups: %w", err)
		}
	}
	logger.Debug("Forecasting %d groups with %d workers", len(groups), f.workers)

	results, failures := fanOut(groups, f.workers, func(group string) (OLGResult, error) {
		gp := p
		gp.InitInfected = olg.Threshold(overrides, group, p.InitInfected)
		return f.runGroup(group, gp)
	})

	for _, ge := range failures {
		logger.Warn("Failed to forecast group %s: %v", ge.Group, ge.Err)
	}
	logger.Info("OLG forecast complete: %d groups succeeded, %d failed", len(results), len(failures))
	return results, failures, nil
}

func (f *Forecaster) runGroup(group string, p olg.Params) (OLGResult, error) {
	obs, err := f.store.GetObservations(group)
	if err != nil {
		return OLGResult{}, fmt.Errorf("failed to load observations: %w", err)
	}
	obs, filled := olg.FillGaps(obs)
	if filled > 0 {
		logger.Debug("Group %s: carried forward %d missing days", group, filled)
	}

	res, err := olg.Run(group, obs, p)
	if err != nil {
		return OLGResult{}, err
	}

	run := models.NewRun(models.ModelOLG, group)
	history := len(res.Rows) - len(res.Forecast())
	run.Summary["r0d"] = res.R0D
	run.Summary["init_infected"] = p.InitInfected
	run.Summary["history_days"] = float64(history)
	run.Summary["horizon"] = float64(p.Horizon())
	run.Summary["last_detected"] = res.Rows[history-1].Detected
	if dt := res.Rows[history-1].DoublingTime; dt != nil {
		run.Summary["doubling_time"] = *dt
	}
	if fc := res.Forecast(); len(fc) > 0 {
		run.Summary["last_forecast"] = fc[len(fc)-1].Detected
	}

	if err := f.record(run, p, olgRows(res)); err != nil {
		return OLGResult{}, err
	}
	logger.Debug("Group %s: onset %s, R0D=%.4f, %d history days", group, res.Onset.Format(models.DateLayout), res.R0D, history)

	return OLGResult{Run: run, Result: res}, nil
}

func olgRows(res *olg.Result) []models.RunRow {
	rows := make([]models.RunRow, 0, 5*len(res.Rows))
	for _, r := range res.Rows {
		rows = append(rows,
			models.RunRow{Series: "detected", Day: r.CoronaDays, Date: r.Date, Value: r.Detected, Prediction: r.Prediction},
			models.RunRow{Series: "asymptomatic", Day: r.CoronaDays, Date: r.Date, Value: r.Asymptomatic, Prediction: r.Prediction},
			models.RunRow{Series: "r", Day: r.CoronaDays, Date: r.Date, Value: r.R, Prediction: r.Prediction},
		)
		if r.Exposed != nil {
			rows = append(rows, models.RunRow{Series: "exposed", Day: r.CoronaDays, Date: r.Date, Value: *r.Exposed, Prediction: r.Prediction})
		}
		if r.DoublingTime != nil {
			rows = append(rows, models.RunRow{Series: "doubling_time", Day: r.CoronaDays, Date: r.Date, Value: *r.DoublingTime, Prediction: r.Prediction})
		}
	}
	return rows
}
