package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"LineSupervisor/internal/domain"
	"LineSupervisor/internal/nominal"
	"LineSupervisor/internal/ports"
)

// rejectCodePrefixes flag an event code as a rejecting error even when the
// level is not ERROR.
var rejectCodePrefixes = []string{"E-", "ERROR"}

// LifecycleParams configures the state machine.
type LifecycleParams struct {
	CriticalScrapCodes []string
	SweepWindowDays    int
}

// LifecycleDeps wires the stores, the nominal provider, and the detector.
type LifecycleDeps struct {
	Parts      ports.PartStore
	Workorders ports.WorkorderStore
	Events     ports.EventStore
	Workflow   ports.WorkflowStore
	Nominal    *nominal.Provider
	Detector   *Detector
	Notifier   ports.Notifier
	Logger     *slog.Logger
}

// Lifecycle decides when a part becomes REJECTED, SCRAPPED, or FINISHED and
// triggers the post-mortem anomaly sweep on every transition. No detection
// logic lives here.
type Lifecycle struct {
	scrapCodes map[string]struct{}
	sweepDays  int

	parts      ports.PartStore
	workorders ports.WorkorderStore
	events     ports.EventStore
	workflow   ports.WorkflowStore
	nominal    *nominal.Provider
	detector   *Detector
	notifier   ports.Notifier
	logger     *slog.Logger

	now func() time.Time
}

// NewLifecycle constructs the state machine.
func NewLifecycle(params LifecycleParams, deps LifecycleDeps) *Lifecycle {
	scrap := make(map[string]struct{}, len(params.CriticalScrapCodes))
	for _, code := range params.CriticalScrapCodes {
		scrap[code] = struct{}{}
	}
	sweepDays := params.SweepWindowDays
	if sweepDays <= 0 {
		sweepDays = 2
	}
	return &Lifecycle{
		scrapCodes: scrap,
		sweepDays:  sweepDays,
		parts:      deps.Parts,
		workorders: deps.Workorders,
		events:     deps.Events,
		workflow:   deps.Workflow,
		nominal:    deps.Nominal,
		detector:   deps.Detector,
		notifier:   deps.Notifier,
		logger:     deps.Logger,
		now:        time.Now,
	}
}

// HandleEvent attempts one lifecycle transition for the event's part. A part
// already in a terminal state is never re-transitioned; the sweep then only
// happens when a transition actually occurred.
func (l *Lifecycle) HandleEvent(ctx context.Context, event domain.Event) error {
	if event.PartID == nil {
		return nil
	}

	transitioned, status, err := l.applyTransition(ctx, event)
	if err != nil {
		return err
	}
	if !transitioned {
		return nil
	}

	l.info("part transitioned", "part", *event.PartID, "status", status, "event_id", event.ID)
	return l.sweep(ctx, *event.PartID)
}

func (l *Lifecycle) applyTransition(ctx context.Context, event domain.Event) (bool, domain.PartStatus, error) {
	if l.isRejectingError(event) {
		ok, err := l.transition(ctx, event, domain.PartRejected)
		return ok, domain.PartRejected, err
	}

	if _, scrap := l.scrapCodes[event.Code]; scrap {
		ok, err := l.transition(ctx, event, domain.PartScrapped)
		return ok, domain.PartScrapped, err
	}

	finish, err := l.isFinalOperation(ctx, event)
	if err != nil {
		return false, "", err
	}
	if finish {
		ok, err := l.transition(ctx, event, domain.PartFinished)
		return ok, domain.PartFinished, err
	}

	return false, "", nil
}

func (l *Lifecycle) isRejectingError(event domain.Event) bool {
	if strings.EqualFold(event.Level, domain.LevelError) {
		return true
	}
	for _, prefix := range rejectCodePrefixes {
		if strings.HasPrefix(event.Code, prefix) {
			return true
		}
	}
	return false
}

// isFinalOperation reports whether the event is the physically last
// operation of the line AND the last step of the part's own scenario.
func (l *Lifecycle) isFinalOperation(ctx context.Context, event domain.Event) (bool, error) {
	if event.StepID == nil || event.WorkorderID == nil {
		return false, nil
	}

	lastMachine, lastStep, err := l.workflow.LastCatalogStep(ctx)
	if err != nil {
		return false, fmt.Errorf("load last catalog step: %w", err)
	}
	if event.MachineID != lastMachine.ID || *event.StepID != lastStep.ID {
		return false, nil
	}

	wf, err := l.nominal.Load(ctx, *event.WorkorderID)
	if err != nil {
		l.warn("no nominal workflow for finish check", "workorder", *event.WorkorderID, "error", err)
		return false, nil
	}
	scenarioLast, ok := wf.LastStep()
	if !ok {
		return false, nil
	}
	return scenarioLast.ID == *event.StepID, nil
}

// transition moves the part into the terminal status and updates the owning
// workorder. Returns false without touching anything when the part is
// unknown or already terminal.
func (l *Lifecycle) transition(ctx context.Context, event domain.Event, status domain.PartStatus) (bool, error) {
	part, err := l.parts.ByExternalID(ctx, *event.PartID)
	if err != nil {
		return false, fmt.Errorf("load part %s: %w", *event.PartID, err)
	}
	if part == nil || part.Status.Terminal() {
		return false, nil
	}

	finishedAt := event.Ts
	if finishedAt.IsZero() {
		finishedAt = l.now()
	}
	part.Status = status
	part.FinishedAt = &finishedAt

	if err := l.parts.Update(ctx, part); err != nil {
		return false, fmt.Errorf("update part %s: %w", part.ExternalID, err)
	}

	if err := l.updateWorkorder(ctx, event, status); err != nil {
		return false, err
	}

	if l.notifier != nil {
		if err := l.notifier.PartCompleted(ctx, *part); err != nil {
			l.debug("part notification failed", "part", part.ExternalID, "error", err)
		}
	}
	return true, nil
}

// updateWorkorder bumps the counter matching the transition kind and drives
// the order state machine: WAIT starts on first activity, IN_PROGRESS
// finishes once every unit is accounted for.
func (l *Lifecycle) updateWorkorder(ctx context.Context, event domain.Event, status domain.PartStatus) error {
	if event.WorkorderID == nil {
		return nil
	}

	wo, err := l.workorders.ByID(ctx, *event.WorkorderID)
	if err != nil {
		return fmt.Errorf("load workorder %d: %w", *event.WorkorderID, err)
	}
	if wo == nil {
		l.warn("event references unknown workorder", "workorder", *event.WorkorderID)
		return nil
	}

	switch status {
	case domain.PartFinished:
		wo.PartsFinished++
	case domain.PartRejected:
		wo.PartsRejected++
	case domain.PartScrapped:
		wo.PartsScrapped++
	}

	if wo.Status == domain.WorkorderWait {
		wo.Status = domain.WorkorderInProgress
		startedAt := l.now()
		wo.StartedAt = &startedAt
	}
	if wo.Status == domain.WorkorderInProgress && wo.PartsToProduce > 0 && wo.PartsAccounted() == wo.PartsToProduce {
		wo.Status = domain.WorkorderFinish
		finishedAt := l.now()
		wo.FinishedAt = &finishedAt
	}

	if err := l.workorders.Update(ctx, wo); err != nil {
		return fmt.Errorf("update workorder %d: %w", wo.ID, err)
	}
	return nil
}

// sweep re-runs the detector over the part's trailing event window so that
// anomalies whose statistical signals only show in hindsight are still
// captured. Per-event failures are logged and do not stop the sweep.
func (l *Lifecycle) sweep(ctx context.Context, partID string) error {
	end := l.now()
	start := end.AddDate(0, 0, -l.sweepDays)

	events, err := l.events.ListForPartBetween(ctx, partID, start, end)
	if err != nil {
		return fmt.Errorf("load sweep window for part %s: %w", partID, err)
	}

	for _, e := range events {
		if _, err := l.detector.DetectAndPersist(ctx, e); err != nil {
			l.warn("sweep detection failed", "part", partID, "event_id", e.ID, "error", err)
		}
	}
	return nil
}

func (l *Lifecycle) debug(msg string, args ...any) {
	if l.logger != nil {
		l.logger.Debug(msg, args...)
	}
}

func (l *Lifecycle) info(msg string, args ...any) {
	if l.logger != nil {
		l.logger.Info(msg, args...)
	}
}

func (l *Lifecycle) warn(msg string, args ...any) {
	if l.logger != nil {
		l.logger.Warn(msg, args...)
	}
}
