package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"LineSupervisor/internal/domain"
	"LineSupervisor/internal/nominal"
)

type lifecycleFixture struct {
	lifecycle  *Lifecycle
	parts      *fakeParts
	workorders *fakeWorkorders
	events     *fakeEvents
	anomalies  *fakeAnomalies
	notifier   *fakeNotifier
}

func newLifecycleFixture(scrapCodes []string) *lifecycleFixture {
	parts := &fakeParts{byExternal: map[string]*domain.Part{
		"P-1": {ID: 1, ExternalID: "P-1", WorkorderID: i64(5), Status: domain.PartInProgress},
	}}
	workorders := &fakeWorkorders{byID: map[int64]*domain.Workorder{
		5: {ID: 5, Status: domain.WorkorderWait, PartsToProduce: 2},
	}}
	events := &fakeEvents{}
	anomalies := newFakeAnomalies()
	notifier := &fakeNotifier{}
	workflow := &fakeWorkflow{
		steps:       scenarioSteps(),
		lastMachine: domain.Machine{ID: 2},
		lastStep:    domain.ProductionStep{ID: 11, MachineID: 2},
	}

	detector, _ := detectorUnderTest(events, anomalies, &fakeStats{}, workflow, notifier)

	lc := NewLifecycle(LifecycleParams{
		CriticalScrapCodes: scrapCodes,
		SweepWindowDays:    2,
	}, LifecycleDeps{
		Parts:      parts,
		Workorders: workorders,
		Events:     events,
		Workflow:   workflow,
		Nominal:    nominal.NewProvider(workflow),
		Detector:   detector,
		Notifier:   notifier,
		Logger:     testLogger(),
	})

	return &lifecycleFixture{
		lifecycle:  lc,
		parts:      parts,
		workorders: workorders,
		events:     events,
		anomalies:  anomalies,
		notifier:   notifier,
	}
}

func TestLifecycleRejectsOnErrorLevel(t *testing.T) {
	t.Parallel()

	fx := newLifecycleFixture(nil)
	event := domain.Event{
		ID: 1, Ts: time.Now(), PartID: str("P-1"), WorkorderID: i64(5),
		MachineID: 1, StepID: i64(10), Level: "ERROR",
	}

	require.NoError(t, fx.lifecycle.HandleEvent(context.Background(), event))

	part := fx.parts.byExternal["P-1"]
	assert.Equal(t, domain.PartRejected, part.Status)
	require.NotNil(t, part.FinishedAt)

	wo := fx.workorders.byID[5]
	assert.Equal(t, int64(1), wo.PartsRejected)
	assert.Equal(t, domain.WorkorderInProgress, wo.Status, "first activity must start the order")
	require.NotNil(t, wo.StartedAt)
	assert.Equal(t, 1, fx.notifier.parts)
}

func TestLifecycleRejectsOnErrorCodePrefix(t *testing.T) {
	t.Parallel()

	fx := newLifecycleFixture(nil)
	event := domain.Event{
		ID: 1, Ts: time.Now(), PartID: str("P-1"), WorkorderID: i64(5),
		Level: domain.LevelInfo, Code: "E-STOP",
	}

	require.NoError(t, fx.lifecycle.HandleEvent(context.Background(), event))
	assert.Equal(t, domain.PartRejected, fx.parts.byExternal["P-1"].Status)
}

func TestLifecycleScrapsOnCriticalCode(t *testing.T) {
	t.Parallel()

	fx := newLifecycleFixture([]string{"CRUSH"})
	event := domain.Event{
		ID: 1, Ts: time.Now(), PartID: str("P-1"), WorkorderID: i64(5),
		Level: domain.LevelInfo, Code: "CRUSH",
	}

	require.NoError(t, fx.lifecycle.HandleEvent(context.Background(), event))
	assert.Equal(t, domain.PartScrapped, fx.parts.byExternal["P-1"].Status)
	assert.Equal(t, int64(1), fx.workorders.byID[5].PartsScrapped)
}

func TestLifecycleRejectTakesPrecedenceOverScrap(t *testing.T) {
	t.Parallel()

	// An ERROR-level event whose code is also in the scrap set: the reject
	// check runs first.
	fx := newLifecycleFixture([]string{"E-CRUSH"})
	event := domain.Event{
		ID: 1, Ts: time.Now(), PartID: str("P-1"), WorkorderID: i64(5),
		Level: "ERROR", Code: "E-CRUSH",
	}

	require.NoError(t, fx.lifecycle.HandleEvent(context.Background(), event))
	assert.Equal(t, domain.PartRejected, fx.parts.byExternal["P-1"].Status)
}

func TestLifecycleFinishesOnTerminalStep(t *testing.T) {
	t.Parallel()

	fx := newLifecycleFixture(nil)
	// Machine 2 / step 11 is both the catalog's last operation and the
	// scenario's last step.
	event := domain.Event{
		ID: 1, Ts: time.Now(), PartID: str("P-1"), WorkorderID: i64(5),
		MachineID: 2, StepID: i64(11), Level: domain.LevelInfo, Code: "STEP_DONE",
	}

	require.NoError(t, fx.lifecycle.HandleEvent(context.Background(), event))
	assert.Equal(t, domain.PartFinished, fx.parts.byExternal["P-1"].Status)
	assert.Equal(t, int64(1), fx.workorders.byID[5].PartsFinished)
}

func TestLifecycleIgnoresNonTerminalStep(t *testing.T) {
	t.Parallel()

	fx := newLifecycleFixture(nil)
	event := domain.Event{
		ID: 1, Ts: time.Now(), PartID: str("P-1"), WorkorderID: i64(5),
		MachineID: 1, StepID: i64(10), Level: domain.LevelInfo, Code: "STEP_DONE",
	}

	require.NoError(t, fx.lifecycle.HandleEvent(context.Background(), event))
	assert.Equal(t, domain.PartInProgress, fx.parts.byExternal["P-1"].Status)
	assert.Zero(t, fx.parts.updates)
}

func TestLifecycleTerminalPartNeverRetransitioned(t *testing.T) {
	t.Parallel()

	fx := newLifecycleFixture(nil)
	fx.parts.byExternal["P-1"].Status = domain.PartFinished

	event := domain.Event{
		ID: 1, Ts: time.Now(), PartID: str("P-1"), WorkorderID: i64(5),
		Level: "ERROR",
	}

	require.NoError(t, fx.lifecycle.HandleEvent(context.Background(), event))
	assert.Equal(t, domain.PartFinished, fx.parts.byExternal["P-1"].Status)
	assert.Zero(t, fx.parts.updates)
	assert.Zero(t, fx.workorders.updates)
}

func TestLifecycleWorkorderCompletes(t *testing.T) {
	t.Parallel()

	fx := newLifecycleFixture(nil)
	wo := fx.workorders.byID[5]
	wo.Status = domain.WorkorderInProgress
	wo.PartsFinished = 1 // one of two already accounted

	event := domain.Event{
		ID: 1, Ts: time.Now(), PartID: str("P-1"), WorkorderID: i64(5),
		MachineID: 2, StepID: i64(11), Level: domain.LevelInfo,
	}

	require.NoError(t, fx.lifecycle.HandleEvent(context.Background(), event))

	wo = fx.workorders.byID[5]
	assert.Equal(t, int64(2), wo.PartsFinished)
	assert.Equal(t, domain.WorkorderFinish, wo.Status)
	require.NotNil(t, wo.FinishedAt)
}

func TestLifecycleSweepDetectsTrailingAnomalies(t *testing.T) {
	t.Parallel()

	fx := newLifecycleFixture(nil)
	now := time.Now()
	// An error event inside the 2-day sweep window that the live pass missed.
	fx.events.events = append(fx.events.events, domain.Event{
		ID: 40, Ts: now.Add(-6 * time.Hour), PartID: str("P-1"), WorkorderID: i64(5),
		MachineID: 1, StepID: i64(10), Level: "ERROR",
	})

	trigger := domain.Event{
		ID: 41, Ts: now, PartID: str("P-1"), WorkorderID: i64(5),
		MachineID: 2, StepID: i64(11), Level: domain.LevelInfo,
	}

	require.NoError(t, fx.lifecycle.HandleEvent(context.Background(), trigger))
	assert.Equal(t, 1, fx.anomalies.inserts, "sweep must persist the missed anomaly")
}

func TestLifecycleUnknownPartIgnored(t *testing.T) {
	t.Parallel()

	fx := newLifecycleFixture(nil)
	event := domain.Event{
		ID: 1, Ts: time.Now(), PartID: str("GHOST"), WorkorderID: i64(5), Level: "ERROR",
	}

	require.NoError(t, fx.lifecycle.HandleEvent(context.Background(), event))
	assert.Zero(t, fx.parts.updates)
}
