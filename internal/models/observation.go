// Package models defines the records shared across the forecasting service:
// observed case counts, persisted forecast runs and their result rows, and the
// error signals every simulation engine reports.
//
// Terminology:
//   - Group: a grouping key for an observed series (a country, a locality).
//   - Run: one invocation of a simulation engine, persisted with its parameters.
//   - Row: one (series, day) value produced by a run.
package models

import (
	"errors"
	"math"
	"time"
)

// DateLayout is the calendar date format used wherever a day is stored as text.
const DateLayout = "2006-01-02"

// Observation is one cumulative case count for a group on a calendar day.
type Observation struct {
	Group string    `json:"group"`
	Date  time.Time `json:"date"`
	Count float64   `json:"count"`
}

// Validate checks that all observation fields are valid
func (o *Observation) Validate() error {
	if o.Group == "" {
		return errors.New("observation group must not be empty")
	}
	if o.Date.IsZero() {
		return errors.New("observation date must be set")
	}
	if math.IsNaN(o.Count) || math.IsInf(o.Count, 0) {
		return errors.New("observation count must be finite")
	}
	if o.Count < 0 {
		return errors.New("observation count must not be negative")
	}
	return nil
}

// Day truncates a timestamp to its UTC calendar day.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
