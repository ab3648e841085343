package govdata

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gstat-gcloud/covid19-sim/internal/models"
)

// Fields names the record fields holding an observation.
type Fields struct {
	Group      string // empty assigns every record to DefaultGroup
	Date       string
	DateLayout string // defaults to models.DateLayout
	Count      string // cumulative case count

	DefaultGroup string
}

// ToObservations converts records into validated observations, summing
// records that share a group and day. Counts published as a bound ("<15")
// are taken as zero. The result is ordered by group then day.
func ToObservations(records []Record, f Fields) ([]models.Observation, error) {
	layout := f.DateLayout
	if layout == "" {
		layout = models.DateLayout
	}

	type key struct {
		group string
		day   time.Time
	}
	totals := make(map[key]float64)

	for i, rec := range records {
		group := f.DefaultGroup
		if f.Group != "" {
			g, ok := rec[f.Group]
			if !ok {
				return nil, fmt.Errorf("record %d: missing field %q", i, f.Group)
			}
			group = strings.TrimSpace(fmt.Sprint(g))
		}

		rawDate, ok := rec[f.Date]
		if !ok {
			return nil, fmt.Errorf("record %d: missing field %q", i, f.Date)
		}
		day, err := parseDate(fmt.Sprint(rawDate), layout)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}

		rawCount, ok := rec[f.Count]
		if !ok {
			return nil, fmt.Errorf("record %d: missing field %q", i, f.Count)
		}
		count, err := parseCount(rawCount)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}

		totals[key{group, day}] += count
	}

	obs := make([]models.Observation, 0, len(totals))
	for k, count := range totals {
		o := models.Observation{Group: k.group, Date: k.day, Count: count}
		if err := o.Validate(); err != nil {
			return nil, fmt.Errorf("invalid observation for %s on %s: %w", k.group, k.day.Format(models.DateLayout), err)
		}
		obs = append(obs, o)
	}

	sort.Slice(obs, func(i, j int) bool {
		if obs[i].Group != obs[j].Group {
			return obs[i].Group < obs[j].Group
		}
		return obs[i].Date.Before(obs[j].Date)
	})
	return obs, nil
}

// parseDate accepts the configured layout, or a timestamp whose leading
// part matches it.
func parseDate(s, layout string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if len(s) > len(layout) && layout == models.DateLayout {
		s = s[:len(layout)]
	}
	t, err := time.Parse(layout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse date %q: %w", s, err)
	}
	return models.Day(t), nil
}

func parseCount(v any) (float64, error) {
	switch c := v.(type) {
	case json.Number:
		return c.Float64()
	case float64:
		return c, nil
	case nil:
		return 0, nil
	case string:
		s := strings.TrimSpace(c)
		if s == "" || strings.HasPrefix(s, "<") {
			return 0, nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("failed to parse count %q: %w", c, err)
		}
		return f, nil
	}
	return 0, fmt.Errorf("unsupported count type %T", v)
}
