package predict

import "math"

// Mean of the series; 0 when empty.
func Mean(x []float64) float64 {
	if len(x) == 0 {
		return 0.0
	}
	s := 0.0
	for _, v := range x {
		s += v
	}
	return s / float64(len(x))
}

// Stddev is the sample standard deviation around the given mean; 0 when
// fewer than two samples exist.
func Stddev(x []float64, mean float64) float64 {
	if len(x) < 2 {
		return 0.0
	}
	s := 0.0
	for _, v := range x {
		d := v - mean
		s += d * d
	}
	return math.Sqrt(s / float64(len(x)-1))
}

// SplitAtMidpoint cuts a series into its baseline half and its recent half.
// The midpoint is floored at 1 so a short series still yields a baseline.
func SplitAtMidpoint(x []float64) (baseline, recent []float64) {
	if len(x) == 0 {
		return nil, nil
	}
	mid := len(x) / 2
	if mid < 1 {
		mid = 1
	}
	if mid >= len(x) {
		return x, nil
	}
	return x[:mid], x[mid:]
}

// ZScore expresses a recent mean in baseline-stddev units. A negligible
// baseline spread yields 0 instead of an unstable division.
func ZScore(recentMean, baselineMean, baselineStd float64) float64 {
	if baselineStd <= 1e-9 {
		return 0.0
	}
	return (recentMean - baselineMean) / baselineStd
}
