// Package forecast runs the simulation engines as a service: it builds engine
// inputs from stored observations, runs the growth-rate forecaster for many
// groups in parallel, and persists every run with its parameters, summary
// and result rows.
//
// The engines themselves are pure; all logging, persistence and fan-out
// happens here.
package forecast

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/sourcegraph/conc/pool"

	"github.com/gstat-gcloud/covid19-sim/internal/logger"
	"github.com/gstat-gcloud/covid19-sim/internal/models"
)

// DefaultWorkers bounds concurrent group forecasts when none is configured.
const DefaultWorkers = 4

// Store is the persistence the forecaster needs. A nil Store disables
// persistence.
type Store interface {
	GetGroups() ([]string, error)
	GetObservations(group string) ([]models.Observation, error)
	SaveRun(run *models.Run, rows []models.RunRow) error
}

// Forecaster runs engines and records their results
type Forecaster struct {
	store   Store
	workers int
}

// New creates a new Forecaster instance
func New(store Store) *Forecaster {
	return &Forecaster{store: store, workers: DefaultWorkers}
}

// WithWorkers sets the number of groups forecast concurrently.
func (f *Forecaster) WithWorkers(n int) *Forecaster {
	if n > 0 {
		f.workers = n
	}
	return f
}

// GroupError represents a per-group error during a multi-group forecast
type GroupError struct {
	Group string
	Err   error
}

func (e GroupError) Error() string {
	return fmt.Sprintf("forecast error for group %s: %v", e.Group, e.Err)
}

func (e GroupError) Unwrap() error {
	return e.Err
}

// record fills a run's parameters and persists it with its rows.
func (f *Forecaster) record(run *models.Run, params any, rows []models.RunRow) error {
	raw, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("failed to marshal params: %w", err)
	}
	run.Params = raw

	if f.store == nil {
		return nil
	}
	if err := f.store.SaveRun(run, rows); err != nil {
		return fmt.Errorf("failed to save %s run: %w", run.Model, err)
	}
	logger.Debug("Saved %s run %s (%d rows)", run.Model, run.ID, len(rows))
	return nil
}

// fanOut runs fn for every group on a bounded pool and returns the
// successes and failures, each ordered by group.
func fanOut[T any](groups []string, workers int, fn func(group string) (T, error)) ([]T, []GroupError) {
	type outcome struct {
		group string
		value T
		err   error
	}

	p := pool.NewWithResults[outcome]().WithMaxGoroutines(workers)
	for _, g := range groups {
		p.Go(func() outcome {
			v, err := fn(g)
			return outcome{group: g, value: v, err: err}
		})
	}
	outcomes := p.Wait()

	sort.Slice(outcomes, func(i, j int) bool { return outcomes[i].group < outcomes[j].group })

	var values []T
	var failures []GroupError
	for _, o := range outcomes {
		if o.err != nil {
			failures = append(failures, GroupError{Group: o.group, Err: o.err})
			continue
		}
		values = append(values, o.value)
	}
	return values, failures
}
