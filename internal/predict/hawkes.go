package predict

import (
	"math"
	"time"
)

// HawkesScore maps past detection timestamps to a self-excitation score in
// [0, 100]. Each past event contributes an exponential-decay kernel
// alpha * exp(-decayPerSecond * dt); the summed intensity is log1p
// compressed and projected onto the integer scale, saturating at 100.
// Events after now are ignored; an empty history scores 0.
func HawkesScore(now time.Time, events []time.Time, alpha, decayPerSecond float64) int {
	if len(events) == 0 {
		return 0
	}

	intensity := 0.0
	for _, t := range events {
		dt := now.Sub(t).Seconds()
		if dt < 0 {
			continue
		}
		intensity += alpha * math.Exp(-decayPerSecond*dt)
	}

	normalized := math.Log1p(intensity)
	score := int(math.Round(20.0 * normalized))
	if score > 100 {
		return 100
	}
	return score
}
