package forecast

import (
	"github.com/gstat-gcloud/covid19-sim/internal/hospital"
	"github.com/gstat-gcloud/covid19-sim/internal/logger"
	"github.com/gstat-gcloud/covid19-sim/internal/models"
	"github.com/gstat-gcloud/covid19-sim/internal/series"
	"github.com/gstat-gcloud/covid19-sim/internal/sir"
)

// SIRInput is a hospital projection request.
type SIRInput struct {
	Params       sir.Params                      `json:"params"`
	Dispositions map[string]hospital.Disposition `json:"dispositions"`
}

// SIRResult is a persisted hospital projection.
type SIRResult struct {
	Run         *models.Run                    `json:"run"`
	Model       *sir.Result                    `json:"model"`
	Projections map[string]hospital.Projection `json:"projections"`
}

// RunSIR projects the epidemic and the hospital load it implies.
func (f *Forecaster) RunSIR(in SIRInput) (*SIRResult, error) {
	res, err := sir.New(in.Params)
	if err != nil {
		return nil, err
	}
	projections, err := hospital.Project(res.Patients(), in.Dispositions, in.Params.MarketShare)
	if err != nil {
		return nil, err
	}

	run := models.NewRun(models.ModelSIR, "")
	peak := res.Peak()
	run.Summary["beta"] = res.Beta
	run.Summary["gamma"] = res.Gamma
	run.Summary["intrinsic_growth_rate"] = res.IntrinsicGrowthRate
	run.Summary["r_t"] = res.RT
	run.Summary["r_naught"] = res.RNaught
	run.Summary["doubling_time_t"] = res.DoublingTimeT
	run.Summary["infected"] = res.Infected
	run.Summary["peak_infected"] = peak.Infected
	run.Summary["peak_day"] = float64(peak.Day)
	if res.DetectionProbability != nil {
		run.Summary["detection_probability"] = *res.DetectionProbability
	}
	for _, name := range hospital.Names(projections) {
		pc := projections[name].PeakCensus()
		run.Summary["peak_census."+name] = pc.Value
		run.Summary["peak_census_day."+name] = float64(pc.Day)
	}

	if err := f.record(run, in, sirRows(res, projections)); err != nil {
		return nil, err
	}
	logger.Info("SIR projection complete: r_t=%.3f, doubling_time_t=%.2f, peak infected %.0f on day %d",
		res.RT, res.DoublingTimeT, peak.Infected, peak.Day)

	return &SIRResult{Run: run, Model: res, Projections: projections}, nil
}

func sirRows(res *sir.Result, projections map[string]hospital.Projection) []models.RunRow {
	rows := make([]models.RunRow, 0, 3*len(res.Rows))
	for _, r := range res.Rows {
		rows = append(rows,
			models.RunRow{Series: "susceptible", Day: r.Day, Value: r.Susceptible},
			models.RunRow{Series: "infected", Day: r.Day, Value: r.Infected},
			models.RunRow{Series: "recovered", Day: r.Day, Value: r.Recovered},
		)
	}
	for _, name := range hospital.Names(projections) {
		p := projections[name]
		rows = appendSeries(rows, "dispositions."+name, p.Dispositions)
		rows = appendSeries(rows, "admissions."+name, p.Admissions)
		rows = appendSeries(rows, "census."+name, p.Census)
	}
	return rows
}

func appendSeries(rows []models.RunRow, name string, s series.Series) []models.RunRow {
	for _, pt := range s {
		rows = append(rows, models.RunRow{Series: name, Day: pt.Day, Value: pt.Value})
	}
	return rows
}
