// Package prompt renders the natural-language material handed to the report
// sink: the nominal-scenario description and the anomaly analysis prompt.
// Rendering is pure; no I/O happens here.
package prompt

import (
	"encoding/json"
	"fmt"
	"strings"

	"LineSupervisor/internal/domain"
)

// DeviationType classifies the observed interval against the nominal one.
type DeviationType string

const (
	DeviationShorter DeviationType = "REAL_SHORTER_THAN_NOMINAL"
	DeviationLonger  DeviationType = "REAL_LONGER_THAN_NOMINAL"
	DeviationEqual   DeviationType = "EQUAL_TO_NOMINAL"
	DeviationUnknown DeviationType = "UNKNOWN"
)

// deviationToleranceS is the dead band around the nominal duration.
const deviationToleranceS = 0.5

// TemporalDeviation compares the observed cycle duration to the nominal
// step duration.
func TemporalDeviation(cycleDurationS, nominalS *float64) DeviationType {
	if cycleDurationS == nil || nominalS == nil {
		return DeviationUnknown
	}
	diff := *cycleDurationS - *nominalS
	switch {
	case diff < -deviationToleranceS:
		return DeviationShorter
	case diff > deviationToleranceS:
		return DeviationLonger
	default:
		return DeviationEqual
	}
}

// ScenarioDescription renders the nominal reference for one anomaly: the
// owning machine, the triggering step's nominal duration, and the full
// ordered step sequence with the expected terminal step.
func ScenarioDescription(machine domain.Machine, step *domain.ProductionStep, sequence []domain.ProductionStep) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Nominal machine: %s - %s\n", machine.Code, machine.Name)
	if step != nil {
		fmt.Fprintf(&sb, "Nominal step duration: %s s\n", valueOrNA(step.NominalDurationS))
	} else {
		sb.WriteString("Nominal step duration: N/A s\n")
	}

	sb.WriteString("Nominal step sequence:\n")
	for i, s := range sequence {
		fmt.Fprintf(&sb, "%d. %s %s [%s s]\n", i+1, s.StepCode, s.Name, valueOrNA(s.NominalDurationS))
	}

	if len(sequence) > 0 {
		last := sequence[len(sequence)-1]
		fmt.Fprintf(&sb, "\nExpected terminal step: %s %s\n", last.StepCode, last.Name)
	}

	return sb.String()
}

// FormatRuleReasons flattens the persisted rule_reasons JSON into the prose
// block embedded in the analysis prompt.
func FormatRuleReasons(raw json.RawMessage) string {
	var reasons []struct {
		Rule    string         `json:"rule"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	}
	if err := json.Unmarshal(raw, &reasons); err != nil || len(reasons) == 0 {
		return "No usable triggered rule."
	}

	var sb strings.Builder
	for i, r := range reasons {
		fmt.Fprintf(&sb, "RULE %d: %s\n", i+1, orNA(r.Rule))
		fmt.Fprintf(&sb, "Raw description: %s\n", orNA(r.Message))
		writeDetail(&sb, r.Details, "trigger_condition", "Trigger condition")
		writeDetail(&sb, r.Details, "observed", "Measured observation")
		writeDetail(&sb, r.Details, "interpretation", "Rule interpretation")
		writeDetail(&sb, r.Details, "confidence", "Rule-internal confidence")
		writeDetail(&sb, r.Details, "severity_hint", "Suggested severity")
		sb.WriteString("----\n")
	}
	return strings.TrimSpace(sb.String())
}

// BuildAnalysisPrompt assembles the full user prompt for one anomaly.
func BuildAnalysisPrompt(a domain.Anomaly, nominalScenario string, nominalS *float64) string {
	var sb strings.Builder

	sb.WriteString("PLC ANOMALY ANALYSIS REQUEST\n\n")
	fmt.Fprintf(&sb, "Part: %s\n", a.PartID)
	fmt.Fprintf(&sb, "Detected at: %s\n", a.DetectedAt.UTC().Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(&sb, "Severity: %s (confidence %s)\n", a.Severity, a.Confidence)
	fmt.Fprintf(&sb, "Temporal deviation: %s\n", TemporalDeviation(a.CycleDurationS, nominalS))
	if a.CycleDurationS != nil {
		fmt.Fprintf(&sb, "Observed interval: %.2f s\n", *a.CycleDurationS)
	}
	if a.DurationOverrunS != nil {
		fmt.Fprintf(&sb, "Overrun vs nominal: %.2f s\n", *a.DurationOverrunS)
	}

	fmt.Fprintf(&sb, "\nPredictive signals over %d days:\n", a.WindowDays)
	fmt.Fprintf(&sb, "- EWMA ratio: %.2f\n", a.EwmaRatio)
	fmt.Fprintf(&sb, "- Rate ratio: %.2f\n", a.RateRatio)
	fmt.Fprintf(&sb, "- Burstiness: %.2f\n", a.Burstiness)
	fmt.Fprintf(&sb, "- Hawkes score: %d\n", a.HawkesScore)
	fmt.Fprintf(&sb, "- Similar events in window: %d\n", a.EventsCount)

	sb.WriteString("\nTRIGGERED RULES:\n")
	sb.WriteString(FormatRuleReasons(a.RuleReasons))

	sb.WriteString("\n\nNOMINAL REFERENCE:\n")
	sb.WriteString(nominalScenario)

	return sb.String()
}

func writeDetail(sb *strings.Builder, details map[string]any, key, label string) {
	if details == nil {
		return
	}
	v, ok := details[key]
	if !ok {
		return
	}
	fmt.Fprintf(sb, "%s: %v\n", label, v)
}

func valueOrNA(v *float64) string {
	if v == nil {
		return "N/A"
	}
	return fmt.Sprintf("%g", *v)
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
