package ports

import (
	"context"
	"time"

	"LineSupervisor/internal/domain"
)

// EventStore reads the append-only event log. Events are never written by
// this system, only consumed.
type EventStore interface {
	MaxID(ctx context.Context) (int64, error)
	ListAfter(ctx context.Context, afterID int64) ([]domain.Event, error)
	PreviousForPart(ctx context.Context, partID string, before time.Time) (*domain.Event, error)
	ListForPartBetween(ctx context.Context, partID string, from, to time.Time) ([]domain.Event, error)
	ListForPart(ctx context.Context, partID string, limit int) ([]domain.Event, error)
}

// PartStore persists production units, looked up by their external id.
type PartStore interface {
	ByExternalID(ctx context.Context, externalID string) (*domain.Part, error)
	Update(ctx context.Context, part *domain.Part) error
	List(ctx context.Context, limit, offset int) ([]domain.Part, error)
	Count(ctx context.Context) (int64, error)
}

// WorkorderStore persists batch orders and their counters.
type WorkorderStore interface {
	ByID(ctx context.Context, id int64) (*domain.Workorder, error)
	Update(ctx context.Context, wo *domain.Workorder) error
	List(ctx context.Context, limit, offset int) ([]domain.Workorder, error)
}

// NominalStep is one expected step together with its position in the
// scenario assigned to a workorder.
type NominalStep struct {
	Step      domain.ProductionStep
	StepOrder int
}

// WorkflowStore resolves the nominal workflow of a workorder and the
// physically last operation of the installed line.
type WorkflowStore interface {
	NominalSteps(ctx context.Context, workorderID int64) ([]NominalStep, error)
	LastCatalogStep(ctx context.Context) (domain.Machine, domain.ProductionStep, error)
	Machine(ctx context.Context, id int64) (domain.Machine, error)
}

// AnomalyStore persists detected anomalies. Uniqueness per triggering event
// is enforced through ExistsForEvent before every insert.
type AnomalyStore interface {
	ExistsForEvent(ctx context.Context, eventID int64) (bool, error)
	ByEventID(ctx context.Context, eventID int64) (*domain.Anomaly, error)
	Insert(ctx context.Context, a *domain.Anomaly) error
	AttachReport(ctx context.Context, anomalyID int64, reportPath string) error
	RecentDetections(ctx context.Context, machineID, stepID int64, since time.Time) ([]time.Time, error)
	List(ctx context.Context, limit, offset int) ([]domain.Anomaly, error)
	ListForPart(ctx context.Context, partID string, limit int) ([]domain.Anomaly, error)
}

// CursorStore owns the singleton runner cursor row.
type CursorStore interface {
	Load(ctx context.Context) (domain.Cursor, error)
	AdvanceEvent(ctx context.Context, lastEventID int64) error
	AdvanceAnomaly(ctx context.Context, lastAnomalyID int64) error
}

// IntervalStats summarizes inter-arrival gaps between consecutive events of
// the same part at one machine+step.
type IntervalStats struct {
	SampleCount int64
	MeanS       float64
	StdS        float64
	P95S        float64
}

// OccurrenceStats counts anomalies over a trailing window.
type OccurrenceStats struct {
	Occurrences int64
	RatePerDay  float64
}

// StepStats computes historical aggregates feeding the predictive signals.
type StepStats interface {
	IntervalStats(ctx context.Context, machineID, stepID int64, since time.Time) (IntervalStats, error)
	OccurrenceRate(ctx context.Context, machineID, stepID int64, since time.Time, windowDays int) (OccurrenceStats, error)
	DailyAnomalySeries(ctx context.Context, machineID, stepID int64, since time.Time) ([]float64, error)
	DailySimilarErrorSeries(ctx context.Context, machineID, stepID int64, code string, since time.Time) ([]float64, error)
}

// ReportSink turns a fully-populated anomaly prompt into an opaque report
// reference.
type ReportSink interface {
	Generate(ctx context.Context, nominalScenario, prompt string) (string, error)
}

// Notifier pushes lifecycle and detection facts to dashboards. Failures are
// swallowed by callers.
type Notifier interface {
	AnomalyDetected(ctx context.Context, a domain.Anomaly) error
	PartCompleted(ctx context.Context, p domain.Part) error
}

// Scheduler controls when the poll loop runs.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
