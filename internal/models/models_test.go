package models

import (
	"errors"
	"math"
	"strings"
	"testing"
	"time"
)

func TestObservationValidate(t *testing.T) {
	day := time.Date(2020, 3, 15, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name        string
		observation Observation
		wantErr     bool
	}{
		{
			name:        "valid observation",
			observation: Observation{Group: "israel", Date: day, Count: 250},
			wantErr:     false,
		},
		{
			name:        "empty group",
			observation: Observation{Date: day, Count: 250},
			wantErr:     true,
		},
		{
			name:        "missing date",
			observation: Observation{Group: "israel", Count: 250},
			wantErr:     true,
		},
		{
			name:        "negative count",
			observation: Observation{Group: "israel", Date: day, Count: -1},
			wantErr:     true,
		},
		{
			name:        "NaN count",
			observation: Observation{Group: "israel", Date: day, Count: math.NaN()},
			wantErr:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.observation.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Observation.Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestRunValidate(t *testing.T) {
	tests := []struct {
		name    string
		run     func() *Run
		wantErr bool
	}{
		{
			name:    "valid sir run",
			run:     func() *Run { return NewRun(ModelSIR, "") },
			wantErr: false,
		},
		{
			name:    "valid olg run",
			run:     func() *Run { return NewRun(ModelOLG, "israel") },
			wantErr: false,
		},
		{
			name:    "olg run without group",
			run:     func() *Run { return NewRun(ModelOLG, "") },
			wantErr: true,
		},
		{
			name:    "unknown model",
			run:     func() *Run { return NewRun(Model("sird"), "") },
			wantErr: true,
		},
		{
			name: "non-uuid id",
			run: func() *Run {
				r := NewRun(ModelSIR, "")
				r.ID = "run-1"
				return r
			},
			wantErr: true,
		},
		{
			name: "future created at",
			run: func() *Run {
				r := NewRun(ModelSIR, "")
				r.CreatedAt = time.Now().Add(time.Hour)
				return r
			},
			wantErr: true,
		},
		{
			name: "infinite summary value",
			run: func() *Run {
				r := NewRun(ModelSIR, "")
				r.Summary["doubling_time_t"] = math.Inf(1)
				return r
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.run().Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Run.Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestRunRowValidate(t *testing.T) {
	tests := []struct {
		name    string
		row     RunRow
		wantErr bool
	}{
		{name: "valid row", row: RunRow{Series: "infected", Day: 3, Value: 12.5}, wantErr: false},
		{name: "empty series", row: RunRow{Day: 3, Value: 12.5}, wantErr: true},
		{name: "negative day", row: RunRow{Series: "infected", Day: -1, Value: 1}, wantErr: true},
		{name: "infinite value", row: RunRow{Series: "infected", Day: 1, Value: math.Inf(-1)}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.row.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("RunRow.Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestErrorSignals(t *testing.T) {
	paramErr := NewParameterError("doubling_time", -1.0, "must be positive")
	if !errors.Is(paramErr, ErrInvalidParameter) {
		t.Errorf("expected ParameterError to match ErrInvalidParameter")
	}
	var pe *ParameterError
	if !errors.As(paramErr, &pe) || pe.Field != "doubling_time" {
		t.Errorf("expected errors.As to recover field, got %v", paramErr)
	}

	compErr := &ComputationError{
		Op:     "doubling_time_t",
		Inputs: map[string]float64{"gamma": 0.5, "beta": 0.001},
		Reason: "log2 of non-positive argument",
	}
	if !errors.Is(compErr, ErrComputation) {
		t.Errorf("expected ComputationError to match ErrComputation")
	}
	// Inputs are reported in key order so messages are stable.
	if !strings.Contains(compErr.Error(), "beta=0.001, gamma=0.5") {
		t.Errorf("unexpected message: %s", compErr.Error())
	}

	dataErr := &InsufficientDataError{Group: "israel", Have: 3, Need: 6, Reason: "series shorter than calibration window"}
	if !errors.Is(dataErr, ErrInsufficientData) {
		t.Errorf("expected InsufficientDataError to match ErrInsufficientData")
	}
	if !strings.Contains(dataErr.Error(), `"israel"`) {
		t.Errorf("expected group in message, got %s", dataErr.Error())
	}
}

func TestDay(t *testing.T) {
	ts := time.Date(2020, 4, 1, 17, 45, 0, 0, time.FixedZone("IDT", 3*3600))
	got := Day(ts)
	want := time.Date(2020, 4, 1, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("Day(%v) = %v, want %v", ts, got, want)
	}
}
