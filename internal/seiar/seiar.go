// Package seiar implements a five-compartment epidemic model with an
// asymptomatic branch: Susceptible, Exposed, Infected (symptomatic),
// Asymptomatic and Recovered, integrated as population fractions with a fixed
// Euler step.
//
//	dS = -(ρ·β_ill·S·I + ρ·β_asy·S·A)·dt
//	dE = +(ρ·β_ill·S·I + ρ·β_asy·S·A - α·E)·dt
//	dI = +(θ·α·E - γ_ill·I)·dt
//	dA = +((1-θ)·α·E - γ_asy·A)·dt
//	dR = +(γ_ill·I + γ_asy·A)·dt
//
// No clamping or rescaling is applied; conservation holds only up to
// floating-point drift.
package seiar

import (
	"math"
	"time"

	"github.com/gstat-gcloud/covid19-sim/internal/models"
)

const (
	// StepSize is the internal integration step in days.
	StepSize = 0.01
	// HorizonDays is the internal simulated horizon.
	HorizonDays = 600
	// stepsPerDay is the resampling stride from internal steps to days.
	stepsPerDay = 100
	// totalSteps is the number of internal steps over the horizon.
	totalSteps = HorizonDays * stepsPerDay
)

// Breakpoint replaces a transmission rate from Day onwards.
type Breakpoint struct {
	Day  float64 `json:"day" mapstructure:"day"`
	Rate float64 `json:"rate" mapstructure:"rate"`
}

// step returns the internal step index nearest to the breakpoint day.
func (b Breakpoint) step() int {
	return int(math.Round(b.Day / StepSize))
}

// Schedule holds independent breakpoint lists for the symptomatic and
// asymptomatic transmission rates. Each list is ordered by day.
type Schedule struct {
	Ill []Breakpoint `json:"ill,omitempty" mapstructure:"ill"`
	Asy []Breakpoint `json:"asy,omitempty" mapstructure:"asy"`
}

// Params is the SEIAR parameter bundle. Compartment counts are absolute;
// the engine integrates fractions of N.
type Params struct {
	N  float64 `json:"n"`
	S0 float64 `json:"s0"`
	E0 float64 `json:"e0"`
	I0 float64 `json:"i0"`
	A0 float64 `json:"a0"`
	R0 float64 `json:"r0"`

	Alpha    float64 `json:"alpha"`     // incubation rate E→I/A
	BetaIll  float64 `json:"beta_ill"`  // transmission rate from symptomatic
	BetaAsy  float64 `json:"beta_asy"`  // transmission rate from asymptomatic
	GammaIll float64 `json:"gamma_ill"` // recovery rate of symptomatic
	GammaAsy float64 `json:"gamma_asy"` // recovery rate of asymptomatic
	Rho      float64 `json:"rho"`       // contact rate
	Theta    float64 `json:"theta"`     // symptomatic fraction of new infections

	Start    time.Time `json:"start"`
	Days     int       `json:"days"`
	Schedule Schedule  `json:"schedule"`
}

// Validate fails fast on parameters the integration cannot use.
func (p Params) Validate() error {
	if !(p.N > 0) {
		return models.NewParameterError("n", p.N, "must be positive")
	}
	compartments := []struct {
		name  string
		value float64
	}{{"s0", p.S0}, {"e0", p.E0}, {"i0", p.I0}, {"a0", p.A0}, {"r0", p.R0}}
	for _, c := range compartments {
		if !(c.value >= 0) {
			return models.NewParameterError(c.name, c.value, "must not be negative")
		}
	}
	rates := []struct {
		name  string
		value float64
	}{
		{"alpha", p.Alpha}, {"beta_ill", p.BetaIll}, {"beta_asy", p.BetaAsy},
		{"gamma_ill", p.GammaIll}, {"gamma_asy", p.GammaAsy}, {"rho", p.Rho},
	}
	for _, r := range rates {
		if !(r.value >= 0) || math.IsInf(r.value, 0) {
			return models.NewParameterError(r.name, r.value, "must be a finite non-negative rate")
		}
	}
	if !(p.Theta >= 0) || p.Theta > 1 {
		return models.NewParameterError("theta", p.Theta, "must be in [0, 1]")
	}
	if p.Start.IsZero() {
		return models.NewParameterError("start", p.Start, "must be set")
	}
	if p.Days < 0 || p.Days > HorizonDays {
		return models.NewParameterError("days", p.Days, "must be in [0, 600]")
	}
	if err := validateBreakpoints("schedule.ill", p.Schedule.Ill); err != nil {
		return err
	}
	return validateBreakpoints("schedule.asy", p.Schedule.Asy)
}

func validateBreakpoints(field string, bps []Breakpoint) error {
	for i, bp := range bps {
		if !(bp.Day >= 0) {
			return models.NewParameterError(field, bp.Day, "breakpoint day must not be negative")
		}
		if !(bp.Rate >= 0) || math.IsInf(bp.Rate, 0) {
			return models.NewParameterError(field, bp.Rate, "breakpoint rate must be a finite non-negative rate")
		}
		if i > 0 && bp.Day < bps[i-1].Day {
			return models.NewParameterError(field, bp.Day, "breakpoints must be ordered by day")
		}
	}
	return nil
}

// State is the compartment fractions at one internal step.
type State struct {
	S, E, I, A, R float64
}

// Sum returns the total population fraction.
func (s State) Sum() float64 {
	return s.S + s.E + s.I + s.A + s.R
}

// rates are the constants in effect at one step.
type rates struct {
	alpha, betaIll, betaAsy, gammaIll, gammaAsy, rho, theta float64
}

func (r rates) step(x State, dt float64) State {
	infection := r.rho*r.betaIll*x.S*x.I + r.rho*r.betaAsy*x.S*x.A
	return State{
		S: x.S - infection*dt,
		E: x.E + (infection-r.alpha*x.E)*dt,
		I: x.I + (r.theta*r.alpha*x.E-r.gammaIll*x.I)*dt,
		A: x.A + ((1-r.theta)*r.alpha*x.E-r.gammaAsy*x.A)*dt,
		R: x.R + (r.gammaIll*x.I+r.gammaAsy*x.A)*dt,
	}
}

// cursor walks one breakpoint list in order.
type cursor struct {
	bps  []Breakpoint
	next int
}

// fire returns the rate of the last breakpoint due at step k, consuming every
// due breakpoint.
func (c *cursor) fire(k int) (float64, bool) {
	var rate float64
	fired := false
	for c.next < len(c.bps) && c.bps[c.next].step() <= k {
		rate = c.bps[c.next].Rate
		c.next++
		fired = true
	}
	return rate, fired
}

// Integrate runs the full internal horizon and returns one state per day,
// sampling every 100th step. Breakpoints fire at the step nearest to their day
// and each fires once.
func Integrate(p Params) []State {
	r := rates{
		alpha: p.Alpha, betaIll: p.BetaIll, betaAsy: p.BetaAsy,
		gammaIll: p.GammaIll, gammaAsy: p.GammaAsy, rho: p.Rho, theta: p.Theta,
	}
	ill := &cursor{bps: p.Schedule.Ill}
	asy := &cursor{bps: p.Schedule.Asy}

	x := State{S: p.S0 / p.N, E: p.E0 / p.N, I: p.I0 / p.N, A: p.A0 / p.N, R: p.R0 / p.N}
	daily := make([]State, 0, HorizonDays+1)
	daily = append(daily, x)

	for k := 1; k <= totalSteps; k++ {
		if rate, ok := asy.fire(k); ok {
			r.betaAsy = rate
		}
		if rate, ok := ill.fire(k); ok {
			r.betaIll = rate
		}
		x = r.step(x, StepSize)
		if k%stepsPerDay == 0 {
			daily = append(daily, x)
		}
	}
	return daily
}

// Row is one calendar day of the projection, in absolute counts.
type Row struct {
	Date         time.Time `json:"date"`
	Susceptible  float64   `json:"susceptible"`
	Exposed      float64   `json:"exposed"`
	Infected     float64   `json:"infected"`
	Asymptomatic float64   `json:"asymptomatic"`
	Recovered    float64   `json:"recovered"`
}

// Total returns the sum of all compartments.
func (r Row) Total() float64 {
	return r.Susceptible + r.Exposed + r.Infected + r.Asymptomatic + r.Recovered
}

// Simulate validates p and returns days 0..p.Days dated from p.Start.
func Simulate(p Params) ([]Row, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	daily := Integrate(p)
	start := models.Day(p.Start)
	rows := make([]Row, 0, p.Days+1)
	for d := 0; d <= p.Days; d++ {
		x := daily[d]
		rows = append(rows, Row{
			Date:         start.AddDate(0, 0, d),
			Susceptible:  x.S * p.N,
			Exposed:      x.E * p.N,
			Infected:     x.I * p.N,
			Asymptomatic: x.A * p.N,
			Recovered:    x.R * p.N,
		})
	}
	return rows, nil
}
