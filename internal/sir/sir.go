// Package sir implements the discrete-time SIR projection used for hospital
// capacity planning.
//
// The population is split into Susceptible, Infected and Recovered. Each day
// advances one Euler step
//
//	S' = S - β·S·I
//	I' = I + β·S·I - γ·I
//	R' = R + γ·I
//
// after which each compartment is clamped at zero and all three are rescaled so
// that S+I+R stays equal to the initial population.
//
// β is derived from the observed doubling time and the relative reduction in
// social contact; γ is the inverse of the infectious period.
package sir

import (
	"math"

	"github.com/gstat-gcloud/covid19-sim/internal/models"
	"github.com/gstat-gcloud/covid19-sim/internal/series"
)

// minInfectedForDetection is the smallest estimated infected count for which
// a detection probability is reported.
const minInfectedForDetection = 1.0e-7

// Params is the SIR parameter bundle.
type Params struct {
	Susceptible         float64 // initial susceptible population S₀
	CurrentHospitalized float64 // patients currently hospitalized in the region's share
	MarketShare         float64 // fraction of regional patients seen by the hospital system, (0,1]
	HospitalizedRate    float64 // fraction of infections requiring hospitalization, (0,1]
	KnownInfected       float64 // confirmed cases, used only for the detection probability
	Recovered           float64 // initial recovered population R₀
	RecoveryDays        float64 // infectious period in days, γ = 1/RecoveryDays
	DoublingTime        float64 // observed doubling time in days before distancing
	RelativeContactRate float64 // fractional reduction in contact from distancing, [0,1]
	NDays               int     // projection horizon; days 0..NDays are produced
}

// Validate fails fast on any parameter that would make the projection
// meaningless.
func (p Params) Validate() error {
	if !(p.Susceptible > 0) {
		return models.NewParameterError("susceptible", p.Susceptible, "must be positive")
	}
	if p.CurrentHospitalized < 0 {
		return models.NewParameterError("current_hospitalized", p.CurrentHospitalized, "must not be negative")
	}
	if !(p.MarketShare > 0) || p.MarketShare > 1 {
		return models.NewParameterError("market_share", p.MarketShare, "must be in (0, 1]")
	}
	if !(p.HospitalizedRate > 0) || p.HospitalizedRate > 1 {
		return models.NewParameterError("hospitalized_rate", p.HospitalizedRate, "must be in (0, 1]")
	}
	if p.KnownInfected < 0 {
		return models.NewParameterError("known_infected", p.KnownInfected, "must not be negative")
	}
	if p.Recovered < 0 {
		return models.NewParameterError("recovered", p.Recovered, "must not be negative")
	}
	if !(p.RecoveryDays > 0) {
		return models.NewParameterError("recovery_days", p.RecoveryDays, "must be positive")
	}
	if !(p.DoublingTime > 0) {
		return models.NewParameterError("doubling_time", p.DoublingTime, "must be positive")
	}
	if !(p.RelativeContactRate >= 0) || p.RelativeContactRate > 1 {
		return models.NewParameterError("relative_contact_rate", p.RelativeContactRate, "must be in [0, 1]")
	}
	if p.NDays < 0 {
		return models.NewParameterError("n_days", p.NDays, "must not be negative")
	}
	return nil
}

// InitialInfected approximates the infected population from current
// hospitalizations. It is not rounded.
func (p Params) InitialInfected() float64 {
	return p.CurrentHospitalized / p.MarketShare / p.HospitalizedRate
}

// Rates holds the scalars derived once before simulation.
type Rates struct {
	IntrinsicGrowthRate float64 `json:"intrinsic_growth_rate"`
	Gamma               float64 `json:"gamma"`
	Beta                float64 `json:"beta"`
	RT                  float64 `json:"r_t"`
	RNaught             float64 `json:"r_naught"`
	DoublingTimeT       float64 `json:"doubling_time_t"`
}

// DeriveRates computes the contact and recovery rates together with the
// reproduction numbers and the doubling time under distancing. It returns a
// ComputationError when the doubling time under distancing is undefined.
func DeriveRates(susceptible, doublingTime, recoveryDays, relativeContactRate float64) (Rates, error) {
	var r Rates
	if doublingTime > 0 {
		r.IntrinsicGrowthRate = math.Pow(2, 1/doublingTime) - 1
	}
	r.Gamma = 1 / recoveryDays
	r.Beta = (r.IntrinsicGrowthRate + r.Gamma) / susceptible * (1 - relativeContactRate)
	r.RT = r.Beta / r.Gamma * susceptible
	r.RNaught = (r.IntrinsicGrowthRate + r.Gamma) / r.Gamma

	arg := r.Beta*susceptible - r.Gamma + 1
	inputs := map[string]float64{
		"beta":        r.Beta,
		"gamma":       r.Gamma,
		"susceptible": susceptible,
		"log2_arg":    arg,
	}
	if !(arg > 0) {
		return r, &models.ComputationError{Op: "doubling_time_t", Inputs: inputs, Reason: "log2 of non-positive argument"}
	}
	r.DoublingTimeT = 1 / math.Log2(arg)
	if math.IsInf(r.DoublingTimeT, 0) || math.IsNaN(r.DoublingTimeT) {
		return r, &models.ComputationError{Op: "doubling_time_t", Inputs: inputs, Reason: "non-finite doubling time (no growth under distancing)"}
	}
	return r, nil
}

// Step advances the model by one day, keeping S+I+R equal to n.
func Step(s, i, r, beta, gamma, n float64) (float64, float64, float64) {
	sn := s - beta*s*i
	in := i + beta*s*i - gamma*i
	rn := r + gamma*i
	sn = math.Max(sn, 0)
	in = math.Max(in, 0)
	rn = math.Max(rn, 0)

	scale := n / (sn + in + rn)
	return sn * scale, in * scale, rn * scale
}

// Row is the state on one day.
type Row struct {
	Day         int     `json:"day"`
	Susceptible float64 `json:"susceptible"`
	Infected    float64 `json:"infected"`
	Recovered   float64 `json:"recovered"`
}

// Simulate runs the model forward and returns days 0..nDays inclusive.
func Simulate(s, i, r, beta, gamma float64, nDays int) []Row {
	n := s + i + r
	rows := make([]Row, 0, nDays+1)
	for d := 0; d <= nDays; d++ {
		rows = append(rows, Row{Day: d, Susceptible: s, Infected: i, Recovered: r})
		s, i, r = Step(s, i, r, beta, gamma, n)
	}
	return rows
}

// Result is a complete SIR projection.
type Result struct {
	Rates
	Susceptible          float64  `json:"susceptible"`
	Infected             float64  `json:"infected"`
	Recovered            float64  `json:"recovered"`
	DetectionProbability *float64 `json:"detection_probability,omitempty"`
	Rows                 []Row    `json:"rows"`
}

// New validates p, derives the rates and simulates the projection.
func New(p Params) (*Result, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	rates, err := DeriveRates(p.Susceptible, p.DoublingTime, p.RecoveryDays, p.RelativeContactRate)
	if err != nil {
		return nil, err
	}

	infected := p.InitialInfected()
	res := &Result{
		Rates:       rates,
		Susceptible: p.Susceptible,
		Infected:    infected,
		Recovered:   p.Recovered,
		Rows:        Simulate(p.Susceptible, infected, p.Recovered, rates.Beta, rates.Gamma, p.NDays),
	}
	if infected > minInfectedForDetection {
		dp := p.KnownInfected / infected
		res.DetectionProbability = &dp
	}
	return res, nil
}

// Patients returns I+R per day, the population that has ever been infected.
func (r *Result) Patients() series.Series {
	s := make(series.Series, len(r.Rows))
	for i, row := range r.Rows {
		s[i] = series.Point{Day: row.Day, Value: row.Infected + row.Recovered}
	}
	return s
}

// Peak returns the row with the largest infected count.
func (r *Result) Peak() Row {
	var peak Row
	for _, row := range r.Rows {
		if row.Infected > peak.Infected {
			peak = row
		}
	}
	return peak
}
