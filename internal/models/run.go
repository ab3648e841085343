package models

import (
	"encoding/json"
	"errors"
	"math"
	"time"

	"github.com/google/uuid"
)

// Model names a simulation engine.
type Model string

const (
	ModelSIR   Model = "sir"
	ModelSEIAR Model = "seiar"
	ModelOLG   Model = "olg"
)

// Valid reports whether m names a known engine.
func (m Model) Valid() bool {
	switch m {
	case ModelSIR, ModelSEIAR, ModelOLG:
		return true
	}
	return false
}

// Run is one persisted engine invocation.
type Run struct {
	ID        string             `json:"id"`
	Model     Model              `json:"model"`
	Group     string             `json:"group,omitempty"` // empty for population-level models
	CreatedAt time.Time          `json:"created_at"`
	Params    json.RawMessage    `json:"params,omitempty"`
	Summary   map[string]float64 `json:"summary,omitempty"`
}

// NewRun creates a run record with a fresh ID.
func NewRun(model Model, group string) *Run {
	return &Run{
		ID:        uuid.New().String(),
		Model:     model,
		Group:     group,
		CreatedAt: time.Now(),
		Summary:   make(map[string]float64),
	}
}

// Validate checks that all run fields are valid
func (r *Run) Validate() error {
	if r.ID == "" {
		return errors.New("run ID must not be empty")
	}
	if _, err := uuid.Parse(r.ID); err != nil {
		return errors.New("run ID must be a UUID")
	}
	if !r.Model.Valid() {
		return errors.New("run model must be one of: sir, seiar, olg")
	}
	if r.Model == ModelOLG && r.Group == "" {
		return errors.New("olg runs must name a group")
	}
	if r.CreatedAt.IsZero() {
		return errors.New("created at must be set")
	}
	if r.CreatedAt.After(time.Now()) {
		return errors.New("created at must not be in the future")
	}
	for k, v := range r.Summary {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return errors.New("summary value " + k + " must be finite")
		}
	}
	return nil
}

// RunRow is one value of one named result series.
type RunRow struct {
	Series     string    `json:"series"`
	Day        int       `json:"day"`
	Date       time.Time `json:"date,omitempty"`
	Value      float64   `json:"value"`
	Prediction bool      `json:"prediction,omitempty"`
}

// Validate checks that all row fields are valid
func (r *RunRow) Validate() error {
	if r.Series == "" {
		return errors.New("row series must not be empty")
	}
	if r.Day < 0 {
		return errors.New("row day must not be negative")
	}
	if math.IsNaN(r.Value) || math.IsInf(r.Value, 0) {
		return errors.New("row value must be finite")
	}
	return nil
}
