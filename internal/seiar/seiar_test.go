package seiar

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gstat-gcloud/covid19-sim/internal/models"
)

var start = time.Date(2020, 3, 1, 0, 0, 0, 0, time.UTC)

func baseParams() Params {
	return Params{
		N:        1e6,
		S0:       999000,
		E0:       500,
		I0:       300,
		A0:       200,
		Alpha:    0.2,
		BetaIll:  0.5,
		BetaAsy:  0.25,
		GammaIll: 0.1,
		GammaAsy: 0.15,
		Rho:      1,
		Theta:    0.6,
		Start:    start,
		Days:     120,
	}
}

func peakDay(rows []Row) int {
	peak := 0
	for d, r := range rows {
		if r.Infected > rows[peak].Infected {
			peak = d
		}
	}
	return peak
}

func TestParamsValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(p *Params)
		wantErr bool
	}{
		{name: "valid", mutate: func(p *Params) {}, wantErr: false},
		{name: "zero population", mutate: func(p *Params) { p.N = 0 }, wantErr: true},
		{name: "negative exposed", mutate: func(p *Params) { p.E0 = -1 }, wantErr: true},
		{name: "negative alpha", mutate: func(p *Params) { p.Alpha = -0.2 }, wantErr: true},
		{name: "NaN rho", mutate: func(p *Params) { p.Rho = math.NaN() }, wantErr: true},
		{name: "theta above one", mutate: func(p *Params) { p.Theta = 1.2 }, wantErr: true},
		{name: "missing start", mutate: func(p *Params) { p.Start = time.Time{} }, wantErr: true},
		{name: "horizon too long", mutate: func(p *Params) { p.Days = 601 }, wantErr: true},
		{name: "full horizon", mutate: func(p *Params) { p.Days = 600 }, wantErr: false},
		{
			name: "unordered schedule",
			mutate: func(p *Params) {
				p.Schedule.Ill = []Breakpoint{{Day: 40, Rate: 0.2}, {Day: 20, Rate: 0.1}}
			},
			wantErr: true,
		},
		{
			name:    "negative breakpoint rate",
			mutate:  func(p *Params) { p.Schedule.Asy = []Breakpoint{{Day: 40, Rate: -0.2}} },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := baseParams()
			tt.mutate(&p)
			err := p.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, models.ErrInvalidParameter) {
				t.Errorf("expected ErrInvalidParameter, got %v", err)
			}
		})
	}
}

func TestSimulate(t *testing.T) {
	rows, err := Simulate(baseParams())
	require.NoError(t, err)
	require.Len(t, rows, 121)

	for d, r := range rows {
		assert.True(t, r.Date.Equal(start.AddDate(0, 0, d)), "day %d dated %v", d, r.Date)
	}
	assert.InDelta(t, 999000, rows[0].Susceptible, 1e-6)
	assert.InDelta(t, 300, rows[0].Infected, 1e-9)

	day60 := rows[60]
	assert.InDelta(t, 216365.7953789993, day60.Susceptible, 1e-3)
	assert.InDelta(t, 130651.06713089105, day60.Exposed, 1e-3)
	assert.InDelta(t, 148942.74392519984, day60.Infected, 1e-3)
	assert.InDelta(t, 72150.8084549816, day60.Asymptomatic, 1e-3)
	assert.InDelta(t, 431889.5851099299, day60.Recovered, 1e-3)
	assert.Equal(t, 61, peakDay(rows))
}

func TestSimulate_BoundedDrift(t *testing.T) {
	p := baseParams()
	p.Days = HorizonDays

	rows, err := Simulate(p)
	require.NoError(t, err)
	require.Len(t, rows, HorizonDays+1)

	for _, r := range rows {
		assert.InDelta(t, 0, (r.Total()-p.N)/p.N, 1e-9, "drift on %v", r.Date)
		assert.GreaterOrEqual(t, r.Susceptible, 0.0)
		assert.GreaterOrEqual(t, r.Infected, 0.0)
		assert.GreaterOrEqual(t, r.Asymptomatic, 0.0)
	}
}

func TestSimulate_ScheduleLowersTransmission(t *testing.T) {
	p := baseParams()
	p.Schedule = Schedule{
		Ill: []Breakpoint{{Day: 30, Rate: 0.1}},
		Asy: []Breakpoint{{Day: 30, Rate: 0.05}},
	}

	unmitigated, err := Simulate(baseParams())
	require.NoError(t, err)
	mitigated, err := Simulate(p)
	require.NoError(t, err)

	// Identical before the breakpoint step.
	assert.Equal(t, unmitigated[29], mitigated[29])
	assert.Less(t, mitigated[31].Infected, unmitigated[31].Infected)
	assert.InDelta(t, 10722.472125186903, mitigated[60].Infected, 1e-3)
	assert.Equal(t, 36, peakDay(mitigated))
}

func TestSimulate_BreakpointNearStepFires(t *testing.T) {
	exact := baseParams()
	exact.Schedule.Ill = []Breakpoint{{Day: 30, Rate: 0.1}}
	exact.Schedule.Asy = []Breakpoint{{Day: 30, Rate: 0.05}}

	// Days that are not representable on the 0.01 grid still fire at the
	// nearest step.
	near := baseParams()
	near.Schedule.Ill = []Breakpoint{{Day: 29.999999, Rate: 0.1}}
	near.Schedule.Asy = []Breakpoint{{Day: 30.0000001, Rate: 0.05}}

	a, err := Simulate(exact)
	require.NoError(t, err)
	b, err := Simulate(near)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestCursor_FiresOnceInOrder(t *testing.T) {
	c := &cursor{bps: []Breakpoint{{Day: 1, Rate: 0.3}, {Day: 1, Rate: 0.2}, {Day: 2, Rate: 0.1}}}

	_, ok := c.fire(99)
	assert.False(t, ok)

	rate, ok := c.fire(100)
	assert.True(t, ok)
	assert.Equal(t, 0.2, rate, "later breakpoints on the same step win")

	_, ok = c.fire(150)
	assert.False(t, ok, "consumed breakpoints do not fire again")

	rate, ok = c.fire(200)
	assert.True(t, ok)
	assert.Equal(t, 0.1, rate)
	assert.Equal(t, 3, c.next)
}

func TestSimulate_Deterministic(t *testing.T) {
	a, err := Simulate(baseParams())
	require.NoError(t, err)
	b, err := Simulate(baseParams())
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestSimulate_InvalidParams(t *testing.T) {
	p := baseParams()
	p.N = -5
	_, err := Simulate(p)
	assert.ErrorIs(t, err, models.ErrInvalidParameter)
}
