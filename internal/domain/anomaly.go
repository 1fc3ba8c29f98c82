package domain

import (
	"encoding/json"
	"time"
)

// Severity levels produced by the scorer, weakest first.
type Severity string

const (
	SeverityMinor    Severity = "MINOR"
	SeverityMajor    Severity = "MAJOR"
	SeverityCritical Severity = "CRITICAL"
)

// Confidence labels how much history backs the predictive signals.
type Confidence string

const (
	ConfidenceLow    Confidence = "LOW"
	ConfidenceMedium Confidence = "MEDIUM"
	ConfidenceHigh   Confidence = "HIGH"
)

// AnomalyStatusOpen is the default status of a fresh anomaly.
const AnomalyStatusOpen = "OPEN"

// PredictiveSignals groups the trend metrics computed from deviation history.
type PredictiveSignals struct {
	WindowDays  int
	EwmaRatio   float64
	RateRatio   float64
	Burstiness  float64
	HawkesScore int
	Confidence  Confidence
}

// Anomaly is one detected deviation tied to exactly one triggering event.
// Created once, never deleted; only the report path is attached later.
type Anomaly struct {
	ID               int64           `db:"id"`
	PartID           string          `db:"part_id"`
	EventID          int64           `db:"event_id"`
	DetectedAt       time.Time       `db:"ts_detected"`
	Cycle            *int            `db:"cycle"`
	MachineID        int64           `db:"machine_id"`
	StepID           *int64          `db:"production_step_id"`
	WorkorderID      int64           `db:"workorder_id"`
	RuleAnomaly      bool            `db:"rule_anomaly"`
	RuleReasons      json.RawMessage `db:"rule_reasons"`
	HasStepError     bool            `db:"has_step_error"`
	NStepErrors      int             `db:"n_step_errors"`
	CycleDurationS   *float64        `db:"cycle_duration_s"`
	DurationOverrunS *float64        `db:"duration_overrun_s"`
	EventsCount      int             `db:"events_count"`
	WindowDays       int             `db:"window_days"`
	EwmaRatio        float64         `db:"ewma_ratio"`
	RateRatio        float64         `db:"rate_ratio"`
	Burstiness       float64         `db:"burstiness"`
	HawkesScore      int             `db:"hawkes_score"`
	AnomalyScore     float64         `db:"anomaly_score"`
	Confidence       Confidence      `db:"confidence"`
	Severity         Severity        `db:"severity"`
	Status           string          `db:"status"`
	CreatedAt        time.Time       `db:"created_at"`
	ReportPath       *string         `db:"report_path"`
}
