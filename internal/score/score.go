// Package score fuses rule hits and predictive signals into a severity
// level and a confidence label. Every input combination maps to exactly one
// severity; MINOR is the floor once any rule fired.
package score

import (
	"LineSupervisor/internal/domain"
	"LineSupervisor/internal/rules"
)

// Thresholds are the business cutoffs for severity escalation. Calibration
// is still evolving, so they stay configurable.
type Thresholds struct {
	CriticalEwma    float64
	CriticalRate    float64
	CriticalHawkes  int
	CriticalZ       float64
	MajorEwma       float64
	MajorRate       float64
	MajorHawkes     int
	MajorZ          float64
	MajorOverrun    float64
	MinorOverrun    float64
	HighSamples     int64
	HighStrength    float64
	MediumSamples   int64
	MediumStrength  float64
}

// DefaultThresholds returns the current production calibration.
func DefaultThresholds() Thresholds {
	return Thresholds{
		CriticalEwma:   1.8,
		CriticalRate:   1.8,
		CriticalHawkes: 75,
		CriticalZ:      2.5,
		MajorEwma:      1.5,
		MajorRate:      1.5,
		MajorHawkes:    60,
		MajorZ:         1.8,
		MajorOverrun:   2.0,
		MinorOverrun:   1.3,
		HighSamples:    200,
		HighStrength:   2.0,
		MediumSamples:  80,
		MediumStrength: 1.4,
	}
}

// Severity decides the level for one detection. intervalS and nominalS may
// be nil when either side of the overrun comparison is unknown.
func Severity(
	hits []rules.Hit,
	sig domain.PredictiveSignals,
	zScore float64,
	intervalS, nominalS *float64,
	t Thresholds,
) domain.Severity {
	hasHardError := false
	sequenceBroken := false
	for _, h := range hits {
		switch h.Code {
		case rules.CodePlcErrorLevel:
			hasHardError = true
		case rules.CodeSequenceError:
			sequenceBroken = true
		}
	}

	overrunRatio := 0.0
	if intervalS != nil && nominalS != nil && *nominalS > 1e-9 {
		overrunRatio = *intervalS / *nominalS
	}

	if hasHardError &&
		(sig.EwmaRatio >= t.CriticalEwma ||
			sig.RateRatio >= t.CriticalRate ||
			sig.HawkesScore >= t.CriticalHawkes ||
			zScore >= t.CriticalZ) {
		return domain.SeverityCritical
	}

	if sequenceBroken ||
		sig.HawkesScore >= t.MajorHawkes ||
		sig.EwmaRatio >= t.MajorEwma ||
		sig.RateRatio >= t.MajorRate ||
		zScore >= t.MajorZ ||
		overrunRatio >= t.MajorOverrun {
		return domain.SeverityMajor
	}

	return domain.SeverityMinor
}

// Confidence grades how much to trust the signals: upgrades require both
// enough history and enough signal strength.
func Confidence(sampleCount int64, sig domain.PredictiveSignals, t Thresholds) domain.Confidence {
	strength := sig.EwmaRatio
	if sig.RateRatio > strength {
		strength = sig.RateRatio
	}
	if h := float64(sig.HawkesScore) / 25.0; h > strength {
		strength = h
	}

	switch {
	case sampleCount >= t.HighSamples && strength >= t.HighStrength:
		return domain.ConfidenceHigh
	case sampleCount >= t.MediumSamples && strength >= t.MediumStrength:
		return domain.ConfidenceMedium
	default:
		return domain.ConfidenceLow
	}
}
