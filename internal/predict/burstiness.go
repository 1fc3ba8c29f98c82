package predict

// Burstiness measures how irregular inter-arrival gaps are:
//
//	B = (sigma - mu) / (sigma + mu)
//
// clamped to [-1, 1]. A perfectly regular series tends to -1, clustered
// arrivals tend to +1, and a degenerate series (both ~0) yields 0.
func Burstiness(mean, std float64) float64 {
	denom := std + mean
	if denom <= 1e-12 {
		return 0.0
	}
	b := (std - mean) / denom
	if b > 1.0 {
		b = 1.0
	}
	if b < -1.0 {
		b = -1.0
	}
	return b
}
