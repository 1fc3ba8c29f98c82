package prompt

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"LineSupervisor/internal/domain"
)

func f64(v float64) *float64 { return &v }

func TestTemporalDeviation(t *testing.T) {
	t.Parallel()

	if got := TemporalDeviation(nil, f64(10)); got != DeviationUnknown {
		t.Fatalf("missing observation must be UNKNOWN, got %s", got)
	}
	if got := TemporalDeviation(f64(30), f64(10)); got != DeviationLonger {
		t.Fatalf("expected LONGER, got %s", got)
	}
	if got := TemporalDeviation(f64(5), f64(10)); got != DeviationShorter {
		t.Fatalf("expected SHORTER, got %s", got)
	}
	// Inside the half-second dead band.
	if got := TemporalDeviation(f64(10.3), f64(10)); got != DeviationEqual {
		t.Fatalf("expected EQUAL, got %s", got)
	}
}

func TestScenarioDescription(t *testing.T) {
	t.Parallel()

	machine := domain.Machine{ID: 3, Code: "M-03", Name: "Welding cell"}
	step := domain.ProductionStep{ID: 11, StepCode: "WELD", Name: "Weld frame", NominalDurationS: f64(20)}
	sequence := []domain.ProductionStep{
		{StepCode: "CUT", Name: "Cut blank", NominalDurationS: f64(10)},
		step,
		{StepCode: "PAINT", Name: "Paint body"},
	}

	out := ScenarioDescription(machine, &step, sequence)

	if !strings.Contains(out, "Nominal machine: M-03 - Welding cell") {
		t.Fatalf("missing machine line:\n%s", out)
	}
	if !strings.Contains(out, "Nominal step duration: 20 s") {
		t.Fatalf("missing step duration:\n%s", out)
	}
	if !strings.Contains(out, "1. CUT Cut blank [10 s]") {
		t.Fatalf("missing first sequence line:\n%s", out)
	}
	if !strings.Contains(out, "3. PAINT Paint body [N/A s]") {
		t.Fatalf("missing N/A duration:\n%s", out)
	}
	if !strings.Contains(out, "Expected terminal step: PAINT Paint body") {
		t.Fatalf("missing terminal step:\n%s", out)
	}
}

func TestFormatRuleReasons(t *testing.T) {
	t.Parallel()

	raw := json.RawMessage(`[{"rule":"INTERVAL_OVERRUN","message":"Interval exceeds nominal ratio","details":{"trigger_condition":"gap > tolerance * nominal","observed":"gap 30s"}}]`)
	out := FormatRuleReasons(raw)

	if !strings.Contains(out, "RULE 1: INTERVAL_OVERRUN") {
		t.Fatalf("missing rule header:\n%s", out)
	}
	if !strings.Contains(out, "Trigger condition: gap > tolerance * nominal") {
		t.Fatalf("missing trigger condition:\n%s", out)
	}
	if !strings.Contains(out, "Measured observation: gap 30s") {
		t.Fatalf("missing observation:\n%s", out)
	}
}

func TestFormatRuleReasonsInvalid(t *testing.T) {
	t.Parallel()

	if got := FormatRuleReasons(json.RawMessage(`not json`)); got != "No usable triggered rule." {
		t.Fatalf("invalid payload must degrade gracefully, got %q", got)
	}
	if got := FormatRuleReasons(json.RawMessage(`[]`)); got != "No usable triggered rule." {
		t.Fatalf("empty payload must degrade gracefully, got %q", got)
	}
}

func TestBuildAnalysisPrompt(t *testing.T) {
	t.Parallel()

	a := domain.Anomaly{
		PartID:         "P-42",
		DetectedAt:     time.Date(2026, time.March, 1, 9, 30, 0, 0, time.UTC),
		Severity:       domain.SeverityMajor,
		Confidence:     domain.ConfidenceMedium,
		CycleDurationS: f64(30),
		WindowDays:     7,
		EwmaRatio:      1.6,
		RateRatio:      1.2,
		HawkesScore:    40,
		EventsCount:    14,
		RuleReasons:    json.RawMessage(`[{"rule":"INTERVAL_OVERRUN","message":"m"}]`),
	}

	out := BuildAnalysisPrompt(a, "Nominal machine: M-03 - Welding cell\n", f64(15))

	for _, want := range []string{
		"Part: P-42",
		"Severity: MAJOR (confidence MEDIUM)",
		"Temporal deviation: REAL_LONGER_THAN_NOMINAL",
		"Predictive signals over 7 days:",
		"- Hawkes score: 40",
		"RULE 1: INTERVAL_OVERRUN",
		"NOMINAL REFERENCE:",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("prompt missing %q:\n%s", want, out)
		}
	}
}
