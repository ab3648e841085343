package olg

// Extrapolate appends forecast days to history, scenario by scenario. Each
// scenario's effective rate is r0d·multiplier/100 and holds until the
// forecast reaches the scenario's cumulative day count. history is never
// modified; the forecast is returned with the rate used for each day.
// history must hold at least tau+1 values.
func Extrapolate(history []float64, r0d float64, tau int, scenarios []Scenario, rec Recurrence) ([]float64, []float64) {
	var forecast, rates []float64
	at := func(i int) float64 {
		if i < len(history) {
			return history[i]
		}
		return forecast[i-len(history)]
	}

	ft := float64(tau)
	for _, sc := range scenarios {
		r := r0d * sc.Multiplier / 100
		for len(forecast) < sc.Days {
			t := len(history) + len(forecast) - 1
			var active float64
			if rec == RecurrenceLagged {
				active = at(t) - at(t-tau+1) + at(t-tau)
			} else {
				active = at(t) - at(t-tau)
			}
			forecast = append(forecast, (1+r/ft)*active)
			rates = append(rates, r)
		}
	}
	return forecast, rates
}

// BackFill derives the implied asymptomatic series from a detected series,
//
//	a[t] = (d[t] - d[t-1])/θ/(1-fi) + d[t-1]
//
// with the onset threshold standing in for d[-1], and the exposed series as
// the asymptomatic series shifted τ days earlier. Exposed is nil where the
// shift runs past the end of the series.
func BackFill(detected []float64, threshold, fi, theta float64, tau int) ([]float64, []*float64) {
	asymptomatic := make([]float64, len(detected))
	prev := threshold
	for t, d := range detected {
		asymptomatic[t] = (d-prev)/theta/(1-fi) + prev
		prev = d
	}

	exposed := make([]*float64, len(detected))
	for t := range detected {
		if t+tau < len(asymptomatic) {
			v := asymptomatic[t+tau]
			exposed[t] = &v
		}
	}
	return asymptomatic, exposed
}
