package forecast

import "github.com/gstat-gcloud/covid19-sim/internal/models"

// Report collects the results of one forecast cycle.
type Report struct {
	SIR      *SIRResult        `json:"sir,omitempty"`
	SEIAR    *SEIARResult      `json:"seiar,omitempty"`
	OLG      []OLGResult       `json:"olg,omitempty"`
	Failures map[string]string `json:"failures,omitempty"` // group -> error
}

// AddFailures records per-group failures on the report.
func (r *Report) AddFailures(failures []GroupError) {
	if len(failures) == 0 {
		return
	}
	if r.Failures == nil {
		r.Failures = make(map[string]string, len(failures))
	}
	for _, ge := range failures {
		r.Failures[ge.Group] = ge.Err.Error()
	}
}

// Summaries returns the run records of every result in the report.
func (r *Report) Summaries() []*models.Run {
	var runs []*models.Run
	if r.SIR != nil {
		runs = append(runs, r.SIR.Run)
	}
	if r.SEIAR != nil {
		runs = append(runs, r.SEIAR.Run)
	}
	for _, res := range r.OLG {
		runs = append(runs, res.Run)
	}
	return runs
}
