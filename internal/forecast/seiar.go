package forecast

import (
	"github.com/gstat-gcloud/covid19-sim/internal/logger"
	"github.com/gstat-gcloud/covid19-sim/internal/models"
	"github.com/gstat-gcloud/covid19-sim/internal/seiar"
)

// SEIARResult is a persisted compartment simulation.
type SEIARResult struct {
	Run  *models.Run `json:"run"`
	Rows []seiar.Row `json:"rows"`
}

// RunSEIAR simulates the compartment model.
func (f *Forecaster) RunSEIAR(p seiar.Params) (*SEIARResult, error) {
	table, err := seiar.Simulate(p)
	if err != nil {
		return nil, err
	}

	peakDay := 0
	for d, r := range table {
		if r.Infected > table[peakDay].Infected {
			peakDay = d
		}
	}
	last := table[len(table)-1]

	run := models.NewRun(models.ModelSEIAR, "")
	run.Summary["peak_infected"] = table[peakDay].Infected
	run.Summary["peak_day"] = float64(peakDay)
	run.Summary["final_recovered"] = last.Recovered
	run.Summary["final_susceptible"] = last.Susceptible

	rows := make([]models.RunRow, 0, 5*len(table))
	for d, r := range table {
		rows = append(rows,
			models.RunRow{Series: "susceptible", Day: d, Date: r.Date, Value: r.Susceptible},
			models.RunRow{Series: "exposed", Day: d, Date: r.Date, Value: r.Exposed},
			models.RunRow{Series: "infected", Day: d, Date: r.Date, Value: r.Infected},
			models.RunRow{Series: "asymptomatic", Day: d, Date: r.Date, Value: r.Asymptomatic},
			models.RunRow{Series: "recovered", Day: d, Date: r.Date, Value: r.Recovered},
		)
	}

	if err := f.record(run, p, rows); err != nil {
		return nil, err
	}
	logger.Info("SEIAR simulation complete: %d days, peak infected %.0f on %s",
		len(table), table[peakDay].Infected, table[peakDay].Date.Format(models.DateLayout))

	return &SEIARResult{Run: run, Rows: table}, nil
}
