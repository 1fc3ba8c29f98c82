package predict

import "math"

// Ewma computes an exponential moving average over the series with
// smoothing factor alpha, seeded with the first element:
//
//	e[t] = alpha*x[t] + (1-alpha)*e[t-1]
//
// Returns 0 for an empty series.
func Ewma(x []float64, alpha float64) float64 {
	if len(x) == 0 {
		return 0.0
	}
	e := x[0]
	for i := 1; i < len(x); i++ {
		e = alpha*x[i] + (1.0-alpha)*e
	}
	return e
}

// noiseFloor is the activity level below which a baseline is treated as
// "no significant history" instead of a divisor.
const noiseFloor = 0.5

// ewmaRatioCap bounds the log-compressed ratio.
const ewmaRatioCap = 3.0

// EwmaRatio compares recent activity against baseline activity. The raw
// ratio is log1p-compressed and capped so a near-zero baseline cannot blow
// the signal up. A quiet baseline yields 1.0 when recent is also quiet and
// a fixed moderate 1.5 when activity appeared recently.
func EwmaRatio(recent, baseline float64) float64 {
	if baseline < noiseFloor {
		if recent < noiseFloor {
			return 1.0
		}
		return 1.5
	}

	raw := recent / baseline
	if math.IsNaN(raw) || math.IsInf(raw, 0) {
		return 1.0
	}

	return math.Min(math.Log1p(raw), ewmaRatioCap)
}
