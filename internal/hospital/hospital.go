// Package hospital turns an epidemic projection into bed demand.
//
// Three transforms are chained over the day-indexed count of patients ever
// infected (I+R):
//
//	dispositions[d] = patients[d] · rate · market_share
//	admissions[d]   = dispositions[d] - dispositions[d-1]        (d ≥ 1)
//	census[d]       = ⌈cum_admissions[d] - cum_admissions[d-los]⌉
//
// Census models a fixed length-of-stay queue: a patient admitted on day d
// occupies a bed for exactly los days.
package hospital

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"

	"github.com/gstat-gcloud/covid19-sim/internal/models"
	"github.com/gstat-gcloud/covid19-sim/internal/series"
)

// Disposition is a clinical outcome category with its occurrence rate and
// length of stay.
type Disposition struct {
	Rate         float64 `json:"rate" mapstructure:"rate"`
	LengthOfStay int     `json:"length_of_stay" mapstructure:"length_of_stay"`
}

// Validate checks the rate is a fraction and the stay is at least one day.
func (d Disposition) Validate(name string) error {
	if !(d.Rate >= 0) || d.Rate > 1 {
		return models.NewParameterError(name+".rate", d.Rate, "must be in [0, 1]")
	}
	if d.LengthOfStay < 1 {
		return models.NewParameterError(name+".length_of_stay", d.LengthOfStay, "must be a positive number of days")
	}
	return nil
}

// Dispositions scales the patient series by each disposition's rate and the
// market share, producing one series per disposition name.
func Dispositions(patients series.Series, dispositions map[string]Disposition, marketShare float64) map[string]series.Series {
	values := patients.Values()
	start := 0
	if len(patients) > 0 {
		start = patients[0].Day
	}

	out := make(map[string]series.Series, len(dispositions))
	for name, d := range dispositions {
		scaled := floats.ScaleTo(make([]float64, len(values)), d.Rate*marketShare, values)
		out[name] = series.FromValues(start, scaled)
	}
	return out
}

// Admissions returns the first difference of a disposition series. The first
// day has no predecessor and is dropped, so the result is one point shorter.
func Admissions(dispositions series.Series) series.Series {
	if len(dispositions) < 2 {
		return series.Series{}
	}
	values := dispositions.Values()
	diff := floats.SubTo(make([]float64, len(values)-1), values[1:], values[:len(values)-1])
	return series.FromValues(dispositions[1].Day, diff)
}

// Census returns the number of occupied beds per admission day given a fixed
// length of stay. Admissions older than los days have been discharged.
func Census(admissions series.Series, los int) series.Series {
	if len(admissions) == 0 {
		return series.Series{}
	}
	cum := floats.CumSum(make([]float64, len(admissions)), admissions.Values())

	census := make([]float64, len(cum))
	for k := range cum {
		discharged := 0.0
		if k-los >= 0 {
			discharged = cum[k-los]
		}
		census[k] = math.Ceil(cum[k] - discharged)
	}
	return series.FromValues(admissions[0].Day, census)
}

// Projection is the full pipeline output for one disposition.
type Projection struct {
	Dispositions series.Series `json:"dispositions"`
	Admissions   series.Series `json:"admissions"`
	Census       series.Series `json:"census"`
}

// PeakCensus returns the day and value of the highest census.
func (p Projection) PeakCensus() series.Point {
	var peak series.Point
	for _, pt := range p.Census {
		if pt.Value > peak.Value {
			peak = pt
		}
	}
	return peak
}

// Project validates the dispositions and runs all three transforms for each.
func Project(patients series.Series, dispositions map[string]Disposition, marketShare float64) (map[string]Projection, error) {
	if !(marketShare > 0) || marketShare > 1 {
		return nil, models.NewParameterError("market_share", marketShare, "must be in (0, 1]")
	}
	if len(dispositions) == 0 {
		return nil, models.NewParameterError("dispositions", 0, "at least one disposition is required")
	}
	for _, name := range Names(dispositions) {
		if err := dispositions[name].Validate(name); err != nil {
			return nil, err
		}
	}
	if err := patients.Validate(); err != nil {
		return nil, fmt.Errorf("invalid patient series: %w", err)
	}

	out := make(map[string]Projection, len(dispositions))
	for name, disp := range Dispositions(patients, dispositions, marketShare) {
		admits := Admissions(disp)
		out[name] = Projection{
			Dispositions: disp,
			Admissions:   admits,
			Census:       Census(admits, dispositions[name].LengthOfStay),
		}
	}
	return out, nil
}

// Names returns the disposition names in sorted order.
func Names[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
