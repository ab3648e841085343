package main

import "github.com/gstat-gcloud/covid19-sim/internal/olg"

// Variant is one parameter combination under test
type Variant struct {
	Tau        int
	Recurrence olg.Recurrence
}

// Backtest holds the outcome of one variant on one group
type Backtest struct {
	Group   string
	Variant Variant
	R0D     float64
	MAPE    float64 // mean absolute percentage error over the held-out days
	Err     error
}

// VariantStats aggregates a variant's backtests across groups
type VariantStats struct {
	Variant  Variant
	Groups   int
	Failures int
	MeanMAPE float64
	MeanR0D  float64
}
