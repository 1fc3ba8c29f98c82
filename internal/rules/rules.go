// Package rules holds the deterministic deviation checks evaluated against
// every ingested event. The rule set is closed: each rule is an independent
// pure function and all applicable rules fire.
package rules

import (
	"strings"

	"LineSupervisor/internal/domain"
)

// Rule codes carried by hits.
const (
	CodePlcErrorLevel   = "PLC_ERROR_LEVEL"
	CodeTsDephasage     = "TS_DEPHASAGE"
	CodeIntervalOverrun = "INTERVAL_OVERRUN"
	CodeSequenceError   = "SEQUENCE_ERROR"
)

// Hit is one triggered rule with its structured detail payload.
type Hit struct {
	Code    string
	Message string
	Details map[string]any
}

// IsErrorHit reports whether the hit flags an explicit controller error.
func (h Hit) IsErrorHit() bool {
	return strings.Contains(h.Code, "ERROR")
}

// Context carries everything one evaluation needs: the event, its immediate
// predecessor for the same part, and the nominal workflow of the order.
type Context struct {
	Event         domain.Event
	Previous      *domain.Event
	NominalByStep map[int64]domain.ProductionStep
	OrderIndex    map[int64]int
	Tolerance     float64
}

// Evaluate runs every rule independently and returns all hits. An empty
// result means the event is nominal.
func Evaluate(ctx Context) []Hit {
	var hits []Hit

	if h, ok := checkErrorLevel(ctx.Event); ok {
		hits = append(hits, h)
	}
	if h, ok := checkTimestampRegression(ctx); ok {
		hits = append(hits, h)
	}
	if h, ok := checkIntervalOverrun(ctx); ok {
		hits = append(hits, h)
	}
	if h, ok := checkSequenceOrder(ctx); ok {
		hits = append(hits, h)
	}

	return hits
}

func checkErrorLevel(e domain.Event) (Hit, bool) {
	if !isError(e) {
		return Hit{}, false
	}
	return Hit{
		Code:    CodePlcErrorLevel,
		Message: "PLC event marked as ERROR",
		Details: map[string]any{
			"event_level":       e.Level,
			"event_code":        e.Code,
			"trigger_condition": "event.level == ERROR OR event.code == ERROR",
			"observed":          "PLC event explicitly flagged as ERROR",
			"severity_hint":     string(domain.SeverityMajor),
			"confidence":        0.85,
		},
	}, true
}

func checkTimestampRegression(ctx Context) (Hit, bool) {
	prev := ctx.Previous
	if prev == nil || !ctx.Event.Ts.Before(prev.Ts) {
		return Hit{}, false
	}
	return Hit{
		Code:    CodeTsDephasage,
		Message: "Event timestamp moved backward for same part",
		Details: map[string]any{
			"previous_event_ts": prev.Ts,
			"current_event_ts":  ctx.Event.Ts,
			"trigger_condition": "current_event_ts < previous_event_ts (same part)",
			"observed":          "current timestamp precedes the previous timestamp for the same part",
			"severity_hint":     string(domain.SeverityMajor),
			"confidence":        0.85,
		},
	}, true
}

func checkIntervalOverrun(ctx Context) (Hit, bool) {
	e := ctx.Event
	prev := ctx.Previous
	if prev == nil || e.StepID == nil {
		return Hit{}, false
	}

	nominalStep, ok := ctx.NominalByStep[*e.StepID]
	if !ok || nominalStep.NominalDurationS == nil {
		return Hit{}, false
	}

	// A sub-second nominal would make the threshold meaningless.
	nominal := *nominalStep.NominalDurationS
	if nominal < 1.0 {
		nominal = 1.0
	}
	threshold := ctx.Tolerance * nominal

	gapS := e.Ts.Sub(prev.Ts).Seconds()
	if gapS <= threshold {
		return Hit{}, false
	}

	return Hit{
		Code:    CodeIntervalOverrun,
		Message: "Interval exceeds nominal ratio",
		Details: map[string]any{
			"previous_step_ts":              prev.Ts,
			"current_step_ts":               e.Ts,
			"observed_gap_seconds":          gapS,
			"nominal_step_duration_seconds": nominal,
			"threshold_seconds":             threshold,
			"trigger_condition":             "observed_gap_seconds > tolerance * nominal_step_duration_seconds",
		},
	}, true
}

func checkSequenceOrder(ctx Context) (Hit, bool) {
	e := ctx.Event
	prev := ctx.Previous
	if prev == nil || prev.StepID == nil || e.StepID == nil {
		return Hit{}, false
	}

	prevOrder, okPrev := ctx.OrderIndex[*prev.StepID]
	curOrder, okCur := ctx.OrderIndex[*e.StepID]
	if !okPrev || !okCur {
		return Hit{}, false
	}

	diff := curOrder - prevOrder
	switch {
	case diff < 0:
		return Hit{
			Code:    CodeSequenceError,
			Message: "Workflow step went backward vs nominal order",
			Details: map[string]any{
				"previous_step_code":  stepCode(ctx.NominalByStep, *prev.StepID),
				"current_step_code":   stepCode(ctx.NominalByStep, *e.StepID),
				"previous_step_order": prevOrder,
				"current_step_order":  curOrder,
				"trigger_condition":   "current_step_order < previous_step_order",
				"observed":            "step order moved backward against the nominal sequence",
			},
		}, true
	case diff > 1:
		return Hit{
			Code:    CodeSequenceError,
			Message: "Workflow step(s) skipped vs nominal order",
			Details: map[string]any{
				"previous_step_code":  stepCode(ctx.NominalByStep, *prev.StepID),
				"current_step_code":   stepCode(ctx.NominalByStep, *e.StepID),
				"previous_step_order": prevOrder,
				"current_step_order":  curOrder,
				"skipped_steps_count": diff - 1,
				"trigger_condition":   "current_step_order > previous_step_order + 1",
				"observed":            "one or more nominal steps were not observed in the real sequence",
			},
		}, true
	}

	return Hit{}, false
}

func isError(e domain.Event) bool {
	return strings.EqualFold(e.Level, domain.LevelError) ||
		strings.EqualFold(e.Code, domain.LevelError)
}

func stepCode(nominal map[int64]domain.ProductionStep, stepID int64) string {
	if s, ok := nominal[stepID]; ok {
		return s.StepCode
	}
	return ""
}
