// Package olg implements the growth-rate forecaster: it calibrates an
// effective reproduction rate from the recent history of a cumulative
// detected-case series, extrapolates the series with a discrete generational
// recurrence under a schedule of scenarios, and back-fills the implied
// asymptomatic and exposed populations.
//
// Each call works on one group's series and allocates its own working arrays,
// so groups may be run concurrently.
package olg

import (
	"fmt"
	"math"
	"time"

	"github.com/gstat-gcloud/covid19-sim/internal/models"
)

// epsilon guards the early-window growth ratio against division by zero.
const epsilon = 1e-5

// Recurrence selects the extrapolation formula.
type Recurrence string

const (
	// RecurrenceGenerational extrapolates
	//	next = (1 + R/τ)·(d[t] - d[t-τ])
	RecurrenceGenerational Recurrence = "generational"
	// RecurrenceLagged extrapolates with the exact inverse of the calibration
	// estimator
	//	next = (1 + R/τ)·(d[t] - d[t-τ+1] + d[t-τ])
	RecurrenceLagged Recurrence = "lagged"
)

// Scenario applies a reproduction-rate multiplier (percent of the calibrated
// rate) until the forecast reaches Days cumulative days.
type Scenario struct {
	Days       int     `json:"days" mapstructure:"days"`
	Multiplier float64 `json:"multiplier" mapstructure:"multiplier"`
}

// Params is the OLG parameter bundle for one group.
type Params struct {
	Fi           float64    `json:"fi"`            // proportion of infectives never diagnosed, [0,1)
	Theta        float64    `json:"theta"`         // daily diagnosis rate, (0,1]
	Tau          int        `json:"tau"`           // calibration window and generation interval in days
	InitInfected float64    `json:"init_infected"` // onset threshold
	Scenarios    []Scenario `json:"scenarios"`
	Recurrence   Recurrence `json:"recurrence"`
}

// Validate fails fast on parameters the engine cannot use.
func (p Params) Validate() error {
	if !(p.Fi >= 0) || p.Fi >= 1 {
		return models.NewParameterError("fi", p.Fi, "must be in [0, 1)")
	}
	if !(p.Theta > 0) || p.Theta > 1 {
		return models.NewParameterError("theta", p.Theta, "must be in (0, 1]")
	}
	if p.Tau < 1 {
		return models.NewParameterError("tau", p.Tau, "must be at least 1 day")
	}
	if !(p.InitInfected >= 0) || math.IsInf(p.InitInfected, 0) {
		return models.NewParameterError("init_infected", p.InitInfected, "must be a finite non-negative count")
	}
	prev := 0
	for _, sc := range p.Scenarios {
		if sc.Days <= prev {
			return models.NewParameterError("scenarios", sc.Days, "cumulative days must be strictly increasing and positive")
		}
		if !(sc.Multiplier >= 0) || math.IsInf(sc.Multiplier, 0) {
			return models.NewParameterError("scenarios", sc.Multiplier, "multiplier must be a finite non-negative percentage")
		}
		prev = sc.Days
	}
	switch p.Recurrence {
	case "", RecurrenceGenerational, RecurrenceLagged:
	default:
		return models.NewParameterError("recurrence", p.Recurrence, "must be one of: generational, lagged")
	}
	return nil
}

// Horizon returns the total number of forecast days.
func (p Params) Horizon() int {
	if len(p.Scenarios) == 0 {
		return 0
	}
	return p.Scenarios[len(p.Scenarios)-1].Days
}

// Row is one day of the combined historical and forecast table.
type Row struct {
	Group        string    `json:"group"`
	Date         time.Time `json:"date"`
	CoronaDays   int       `json:"corona_days"`
	Detected     float64   `json:"detected"`
	Asymptomatic float64   `json:"asymptomatic"`
	Exposed      *float64  `json:"exposed"` // nil for the final τ days
	R            float64   `json:"r"`
	DoublingTime *float64  `json:"doubling_time"` // nil unless R > 0
	Prediction   bool      `json:"prediction"`
}

// doublingTime converts a reproduction rate into days for the detected
// series to double. R/τ is the implied daily growth rate.
func doublingTime(r float64, tau int) *float64 {
	if !(r > 0) {
		return nil
	}
	d := math.Ln2 / math.Log1p(r/float64(tau))
	if math.IsInf(d, 0) || math.IsNaN(d) {
		return nil
	}
	return &d
}

// Result is the complete output for one group.
type Result struct {
	Group string    `json:"group"`
	Onset time.Time `json:"onset"`
	R0D   float64   `json:"r0d"`
	RMA   []float64 `json:"rma"`
	Rows  []Row     `json:"rows"`
}

// Forecast returns the prediction rows.
func (r *Result) Forecast() []Row {
	for i, row := range r.Rows {
		if row.Prediction {
			return r.Rows[i:]
		}
	}
	return nil
}

// Run calibrates and extrapolates one group's observed cumulative series.
// Observations must be ordered, one per consecutive calendar day.
func Run(group string, obs []models.Observation, p Params) (*Result, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := checkDaily(obs); err != nil {
		return nil, err
	}

	values := make([]float64, len(obs))
	for i, o := range obs {
		values[i] = o.Count
	}
	onset, detected, err := Trim(group, values, p.InitInfected)
	if err != nil {
		return nil, err
	}

	rma, r0d, err := Calibrate(group, detected, p.Tau)
	if err != nil {
		return nil, err
	}

	forecast, rates := Extrapolate(detected, r0d, p.Tau, p.Scenarios, p.Recurrence)

	all := make([]float64, 0, len(detected)+len(forecast))
	all = append(all, detected...)
	all = append(all, forecast...)
	asymptomatic, exposed := BackFill(all, p.InitInfected, p.Fi, p.Theta, p.Tau)

	first := models.Day(obs[onset].Date)
	res := &Result{
		Group: group,
		Onset: first,
		R0D:   r0d,
		RMA:   rma,
		Rows:  make([]Row, len(all)),
	}
	for i := range all {
		row := Row{
			Group:        group,
			Date:         first.AddDate(0, 0, i),
			CoronaDays:   i,
			Detected:     all[i],
			Asymptomatic: asymptomatic[i],
			Exposed:      exposed[i],
		}
		switch {
		case i >= len(detected):
			row.Prediction = true
			row.R = rates[i-len(detected)]
		case i > 0:
			row.R = rma[i-1]
		}
		row.DoublingTime = doublingTime(row.R, p.Tau)
		res.Rows[i] = row
	}
	return res, nil
}

func checkDaily(obs []models.Observation) error {
	for i := range obs {
		if err := obs[i].Validate(); err != nil {
			return models.NewParameterError("observations", i, err.Error())
		}
		if i == 0 {
			continue
		}
		want := models.Day(obs[i-1].Date).AddDate(0, 0, 1)
		if !models.Day(obs[i].Date).Equal(want) {
			return models.NewParameterError("observations", obs[i].Date.Format(models.DateLayout),
				fmt.Sprintf("expected consecutive day %s", want.Format(models.DateLayout)))
		}
	}
	return nil
}
