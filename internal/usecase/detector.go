package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"LineSupervisor/internal/domain"
	"LineSupervisor/internal/nominal"
	"LineSupervisor/internal/ports"
	"LineSupervisor/internal/predict"
	"LineSupervisor/internal/prompt"
	"LineSupervisor/internal/rules"
	"LineSupervisor/internal/score"
)

// DetectorParams carries the detection calibration.
type DetectorParams struct {
	ToleranceOverrun     float64
	StatsWindowDays      int
	EwmaAlpha            float64
	HawkesAlpha          float64
	HawkesDecayPerSecond float64
	Thresholds           score.Thresholds
	ReportTimeout        time.Duration
}

// DetectorDeps wires the stores and sinks into the detector.
type DetectorDeps struct {
	Events    ports.EventStore
	Anomalies ports.AnomalyStore
	Cursor    ports.CursorStore
	Stats     ports.StepStats
	Workflow  ports.WorkflowStore
	Nominal   *nominal.Provider
	Reports   ports.ReportSink
	Notifier  ports.Notifier
	Logger    *slog.Logger
}

// Detector runs the full deviation analysis for one event: rule evaluation,
// predictive signals, scoring, idempotent persistence, and sink hand-off.
type Detector struct {
	params    DetectorParams
	events    ports.EventStore
	anomalies ports.AnomalyStore
	cursor    ports.CursorStore
	stats     ports.StepStats
	workflow  ports.WorkflowStore
	nominal   *nominal.Provider
	reports   ports.ReportSink
	notifier  ports.Notifier
	logger    *slog.Logger

	now func() time.Time
}

// NewDetector constructs the orchestration component.
func NewDetector(params DetectorParams, deps DetectorDeps) *Detector {
	return &Detector{
		params:    params,
		events:    deps.Events,
		anomalies: deps.Anomalies,
		cursor:    deps.Cursor,
		stats:     deps.Stats,
		workflow:  deps.Workflow,
		nominal:   deps.Nominal,
		reports:   deps.Reports,
		notifier:  deps.Notifier,
		logger:    deps.Logger,
		now:       time.Now,
	}
}

// DetectAndPersist analyzes one event and persists the decision exactly
// once per triggering event. Returns the anomaly when one exists (fresh or
// reused) and nil when the event is nominal or lacks detection context.
func (d *Detector) DetectAndPersist(ctx context.Context, event domain.Event) (*domain.Anomaly, error) {
	if event.PartID == nil || event.WorkorderID == nil {
		d.debug("event without part or workorder, skipping", "event_id", event.ID)
		return nil, nil
	}

	wf, err := d.nominal.Load(ctx, *event.WorkorderID)
	if err != nil {
		// Missing nominal mapping is a data inconsistency, not a fault
		// of this event's siblings.
		d.warn("no nominal workflow, skipping event", "event_id", event.ID, "error", err)
		return nil, nil
	}

	prev, err := d.events.PreviousForPart(ctx, *event.PartID, event.Ts)
	if err != nil {
		return nil, fmt.Errorf("load previous event for part %s: %w", *event.PartID, err)
	}

	hits := rules.Evaluate(rules.Context{
		Event:         event,
		Previous:      prev,
		NominalByStep: wf.ByStepID,
		OrderIndex:    wf.OrderIndex,
		Tolerance:     d.params.ToleranceOverrun,
	})
	if len(hits) == 0 {
		return nil, nil
	}

	intervalS := intervalSeconds(prev, event)
	var nominalS *float64
	if event.StepID != nil {
		if step, ok := wf.ByStepID[*event.StepID]; ok {
			nominalS = step.NominalDurationS
		}
	}
	var overrunS *float64
	if intervalS != nil && nominalS != nil {
		v := *intervalS - *nominalS
		overrunS = &v
	}

	occ, sig, zScore, err := d.computeSignals(ctx, event)
	if err != nil {
		return nil, err
	}
	severity := score.Severity(hits, sig, zScore, intervalS, nominalS, d.params.Thresholds)

	errorHits := 0
	for _, h := range hits {
		if h.IsErrorHit() {
			errorHits++
		}
	}

	anomaly := &domain.Anomaly{
		PartID:           *event.PartID,
		EventID:          event.ID,
		DetectedAt:       d.now(),
		Cycle:            event.Cycle,
		MachineID:        event.MachineID,
		StepID:           event.StepID,
		WorkorderID:      *event.WorkorderID,
		RuleAnomaly:      true,
		RuleReasons:      rules.ReasonsJSON(hits),
		HasStepError:     errorHits > 0,
		NStepErrors:      errorHits,
		CycleDurationS:   intervalS,
		DurationOverrunS: overrunS,
		EventsCount:      occ,
		WindowDays:       sig.WindowDays,
		EwmaRatio:        sig.EwmaRatio,
		RateRatio:        sig.RateRatio,
		Burstiness:       sig.Burstiness,
		HawkesScore:      sig.HawkesScore,
		AnomalyScore:     anomalyScore(sig, zScore),
		Confidence:       sig.Confidence,
		Severity:         severity,
		Status:           domain.AnomalyStatusOpen,
		CreatedAt:        d.now(),
	}

	exists, err := d.anomalies.ExistsForEvent(ctx, event.ID)
	if err != nil {
		return nil, fmt.Errorf("anomaly existence check for event %d: %w", event.ID, err)
	}
	if exists {
		existing, err := d.anomalies.ByEventID(ctx, event.ID)
		if err != nil {
			return nil, fmt.Errorf("load existing anomaly for event %d: %w", event.ID, err)
		}
		if existing.ReportPath == nil {
			d.dispatchReport(event, *existing)
		}
		return existing, nil
	}

	if err := d.anomalies.Insert(ctx, anomaly); err != nil {
		return nil, fmt.Errorf("persist anomaly for event %d: %w", event.ID, err)
	}
	if err := d.cursor.AdvanceAnomaly(ctx, anomaly.ID); err != nil {
		d.warn("cannot advance anomaly cursor", "anomaly_id", anomaly.ID, "error", err)
	}
	d.info("anomaly detected",
		"anomaly_id", anomaly.ID,
		"event_id", event.ID,
		"part", anomaly.PartID,
		"severity", anomaly.Severity,
		"rules", len(hits))

	if d.notifier != nil {
		if err := d.notifier.AnomalyDetected(ctx, *anomaly); err != nil {
			d.debug("anomaly notification failed", "anomaly_id", anomaly.ID, "error", err)
		}
	}
	d.dispatchReport(event, *anomaly)

	return anomaly, nil
}

// computeSignals assembles the occurrence count, predictive signals, and
// z-score for one event. Missing machine/step context degrades every signal
// to its neutral value instead of failing.
func (d *Detector) computeSignals(ctx context.Context, event domain.Event) (int, domain.PredictiveSignals, float64, error) {
	windowDays := d.params.StatsWindowDays
	neutral := domain.PredictiveSignals{WindowDays: windowDays, EwmaRatio: 1.0, RateRatio: 1.0, Confidence: domain.ConfidenceLow}

	if event.StepID == nil {
		return 0, neutral, 0.0, nil
	}
	machineID := event.MachineID
	stepID := *event.StepID

	now := d.now()
	recentSince := now.AddDate(0, 0, -windowDays)
	baselineSince := now.AddDate(0, 0, -windowDays*2)

	recent, err := d.stats.OccurrenceRate(ctx, machineID, stepID, recentSince, windowDays)
	if err != nil {
		return 0, neutral, 0.0, fmt.Errorf("recent occurrence rate: %w", err)
	}
	baseline, err := d.stats.OccurrenceRate(ctx, machineID, stepID, baselineSince, windowDays*2)
	if err != nil {
		return 0, neutral, 0.0, fmt.Errorf("baseline occurrence rate: %w", err)
	}
	rateRatio := recent.RatePerDay / maxFloat(1e-9, baseline.RatePerDay)

	similar, err := d.stats.DailySimilarErrorSeries(ctx, machineID, stepID, event.Code, baselineSince)
	if err != nil {
		return 0, neutral, 0.0, fmt.Errorf("similar error series: %w", err)
	}
	base, rec := predict.SplitAtMidpoint(similar)
	ewmaRatio := predict.EwmaRatio(
		predict.Ewma(rec, d.params.EwmaAlpha),
		predict.Ewma(base, d.params.EwmaAlpha),
	)

	intervals, err := d.stats.IntervalStats(ctx, machineID, stepID, baselineSince)
	if err != nil {
		return 0, neutral, 0.0, fmt.Errorf("interval stats: %w", err)
	}
	burstiness := predict.Burstiness(intervals.MeanS, intervals.StdS)

	past, err := d.anomalies.RecentDetections(ctx, machineID, stepID, baselineSince)
	if err != nil {
		return 0, neutral, 0.0, fmt.Errorf("recent detections: %w", err)
	}
	hawkes := predict.HawkesScore(now, past, d.params.HawkesAlpha, d.params.HawkesDecayPerSecond)

	sig := domain.PredictiveSignals{
		WindowDays:  windowDays,
		EwmaRatio:   ewmaRatio,
		RateRatio:   rateRatio,
		Burstiness:  burstiness,
		HawkesScore: hawkes,
	}
	sig.Confidence = score.Confidence(intervals.SampleCount, sig, d.params.Thresholds)

	daily, err := d.stats.DailyAnomalySeries(ctx, machineID, stepID, baselineSince)
	if err != nil {
		return 0, neutral, 0.0, fmt.Errorf("daily anomaly series: %w", err)
	}
	zBase, zRec := predict.SplitAtMidpoint(daily)
	baseMean := predict.Mean(zBase)
	zScore := predict.ZScore(predict.Mean(zRec), baseMean, predict.Stddev(zBase, baseMean))

	return len(daily), sig, zScore, nil
}

// dispatchReport hands the anomaly to the report sink on a detached
// goroutine. The sink call carries its own timeout and its failure never
// touches the persisted anomaly.
func (d *Detector) dispatchReport(event domain.Event, anomaly domain.Anomaly) {
	if d.reports == nil {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), d.params.ReportTimeout)
		defer cancel()

		scenario, nominalS, err := d.renderScenario(ctx, event, anomaly)
		if err != nil {
			d.warn("cannot render nominal scenario", "anomaly_id", anomaly.ID, "error", err)
			return
		}

		ref, err := d.reports.Generate(ctx, scenario, prompt.BuildAnalysisPrompt(anomaly, scenario, nominalS))
		if err != nil {
			d.warn("report generation failed", "anomaly_id", anomaly.ID, "error", err)
			return
		}
		if ref == "" {
			return
		}

		if err := d.anomalies.AttachReport(ctx, anomaly.ID, ref); err != nil {
			d.warn("cannot attach report reference", "anomaly_id", anomaly.ID, "error", err)
		}
	}()
}

func (d *Detector) renderScenario(ctx context.Context, event domain.Event, anomaly domain.Anomaly) (string, *float64, error) {
	wf, err := d.nominal.Load(ctx, anomaly.WorkorderID)
	if err != nil {
		return "", nil, err
	}

	machine, err := d.workflow.Machine(ctx, anomaly.MachineID)
	if err != nil {
		return "", nil, err
	}

	var step *domain.ProductionStep
	var nominalS *float64
	if event.StepID != nil {
		if s, ok := wf.ByStepID[*event.StepID]; ok {
			step = &s
			nominalS = s.NominalDurationS
		}
	}

	return prompt.ScenarioDescription(machine, step, wf.Sequence), nominalS, nil
}

func anomalyScore(sig domain.PredictiveSignals, z float64) float64 {
	s := maxFloat(sig.EwmaRatio, maxFloat(sig.RateRatio, float64(sig.HawkesScore)))
	return maxFloat(s, z)
}

func intervalSeconds(prev *domain.Event, cur domain.Event) *float64 {
	if prev == nil || prev.Ts.IsZero() || cur.Ts.IsZero() {
		return nil
	}
	v := cur.Ts.Sub(prev.Ts).Seconds()
	return &v
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func (d *Detector) debug(msg string, args ...any) {
	if d.logger != nil {
		d.logger.Debug(msg, args...)
	}
}

func (d *Detector) info(msg string, args ...any) {
	if d.logger != nil {
		d.logger.Info(msg, args...)
	}
}

func (d *Detector) warn(msg string, args ...any) {
	if d.logger != nil {
		d.logger.Warn(msg, args...)
	}
}
