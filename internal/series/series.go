// Package series provides the day-indexed numeric series every engine
// produces. Day is a non-negative offset from the simulation start.
package series

import (
	"fmt"
)

// Point is one day's value.
type Point struct {
	Day   int     `json:"day"`
	Value float64 `json:"value"`
}

// Series is an ordered sequence of points, one per day with no gaps.
type Series []Point

// FromValues builds a series whose first point is startDay.
func FromValues(startDay int, values []float64) Series {
	s := make(Series, len(values))
	for i, v := range values {
		s[i] = Point{Day: startDay + i, Value: v}
	}
	return s
}

// Values returns a copy of the series values.
func (s Series) Values() []float64 {
	out := make([]float64, len(s))
	for i, p := range s {
		out[i] = p.Value
	}
	return out
}

// Days returns the series day indices.
func (s Series) Days() []int {
	out := make([]int, len(s))
	for i, p := range s {
		out[i] = p.Day
	}
	return out
}

// At returns the value recorded for day, if present.
func (s Series) At(day int) (float64, bool) {
	if len(s) == 0 {
		return 0, false
	}
	i := day - s[0].Day
	if i < 0 || i >= len(s) {
		return 0, false
	}
	return s[i].Value, true
}

// Validate checks the day index is non-negative, strictly increasing and
// gap-free.
func (s Series) Validate() error {
	for i, p := range s {
		if p.Day < 0 {
			return fmt.Errorf("day %d at position %d is negative", p.Day, i)
		}
		if i > 0 && p.Day != s[i-1].Day+1 {
			return fmt.Errorf("day %d at position %d does not follow day %d", p.Day, i, s[i-1].Day)
		}
	}
	return nil
}
