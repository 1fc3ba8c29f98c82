package usecase

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"time"

	"LineSupervisor/internal/domain"
	"LineSupervisor/internal/ports"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func i64(v int64) *int64     { return &v }
func f64(v float64) *float64 { return &v }
func str(v string) *string   { return &v }

type fakeEvents struct {
	events        []domain.Event
	listAfterErr  error
	listAfterHits int
}

func (f *fakeEvents) MaxID(context.Context) (int64, error) {
	max := int64(0)
	for _, e := range f.events {
		if e.ID > max {
			max = e.ID
		}
	}
	return max, nil
}

func (f *fakeEvents) ListAfter(_ context.Context, afterID int64) ([]domain.Event, error) {
	f.listAfterHits++
	if f.listAfterErr != nil {
		return nil, f.listAfterErr
	}
	var out []domain.Event
	for _, e := range f.events {
		if e.ID > afterID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeEvents) PreviousForPart(_ context.Context, partID string, before time.Time) (*domain.Event, error) {
	var prev *domain.Event
	for i := range f.events {
		e := f.events[i]
		if e.PartID == nil || *e.PartID != partID || !e.Ts.Before(before) {
			continue
		}
		if prev == nil || e.Ts.After(prev.Ts) {
			prev = &f.events[i]
		}
	}
	return prev, nil
}

func (f *fakeEvents) ListForPartBetween(_ context.Context, partID string, from, to time.Time) ([]domain.Event, error) {
	var out []domain.Event
	for _, e := range f.events {
		if e.PartID != nil && *e.PartID == partID && !e.Ts.Before(from) && !e.Ts.After(to) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeEvents) ListForPart(_ context.Context, partID string, limit int) ([]domain.Event, error) {
	out, _ := f.ListForPartBetween(context.Background(), partID, time.Time{}, time.Now().Add(time.Hour))
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type fakeAnomalies struct {
	byEvent    map[int64]*domain.Anomaly
	nextID     int64
	inserts    int
	detections []time.Time
	attached   map[int64]string
}

func newFakeAnomalies() *fakeAnomalies {
	return &fakeAnomalies{byEvent: map[int64]*domain.Anomaly{}, attached: map[int64]string{}}
}

func (f *fakeAnomalies) ExistsForEvent(_ context.Context, eventID int64) (bool, error) {
	_, ok := f.byEvent[eventID]
	return ok, nil
}

func (f *fakeAnomalies) ByEventID(_ context.Context, eventID int64) (*domain.Anomaly, error) {
	return f.byEvent[eventID], nil
}

func (f *fakeAnomalies) Insert(_ context.Context, a *domain.Anomaly) error {
	f.nextID++
	f.inserts++
	a.ID = f.nextID
	cp := *a
	f.byEvent[a.EventID] = &cp
	return nil
}

func (f *fakeAnomalies) AttachReport(_ context.Context, anomalyID int64, path string) error {
	f.attached[anomalyID] = path
	return nil
}

func (f *fakeAnomalies) RecentDetections(context.Context, int64, int64, time.Time) ([]time.Time, error) {
	return f.detections, nil
}

func (f *fakeAnomalies) List(context.Context, int, int) ([]domain.Anomaly, error) {
	return nil, nil
}

func (f *fakeAnomalies) ListForPart(context.Context, string, int) ([]domain.Anomaly, error) {
	return nil, nil
}

type fakeCursor struct {
	cur             domain.Cursor
	advanceEventErr error
}

func (f *fakeCursor) Load(context.Context) (domain.Cursor, error) { return f.cur, nil }

func (f *fakeCursor) AdvanceEvent(_ context.Context, id int64) error {
	if f.advanceEventErr != nil {
		return f.advanceEventErr
	}
	if id > f.cur.LastEventID {
		f.cur.LastEventID = id
	}
	return nil
}

func (f *fakeCursor) AdvanceAnomaly(_ context.Context, id int64) error {
	if id > f.cur.LastAnomaly {
		f.cur.LastAnomaly = id
	}
	return nil
}

type fakeStats struct {
	intervals    ports.IntervalStats
	recentRate   float64
	baselineRate float64
	dailyAnomaly []float64
	dailySimilar []float64
}

func (f *fakeStats) IntervalStats(context.Context, int64, int64, time.Time) (ports.IntervalStats, error) {
	return f.intervals, nil
}

func (f *fakeStats) OccurrenceRate(_ context.Context, _, _ int64, _ time.Time, windowDays int) (ports.OccurrenceStats, error) {
	rate := f.baselineRate
	if windowDays == 7 {
		rate = f.recentRate
	}
	return ports.OccurrenceStats{RatePerDay: rate, Occurrences: int64(rate * float64(windowDays))}, nil
}

func (f *fakeStats) DailyAnomalySeries(context.Context, int64, int64, time.Time) ([]float64, error) {
	return f.dailyAnomaly, nil
}

func (f *fakeStats) DailySimilarErrorSeries(context.Context, int64, int64, string, time.Time) ([]float64, error) {
	return f.dailySimilar, nil
}

type fakeWorkflow struct {
	steps       map[int64][]ports.NominalStep
	lastMachine domain.Machine
	lastStep    domain.ProductionStep
}

func (f *fakeWorkflow) NominalSteps(_ context.Context, workorderID int64) ([]ports.NominalStep, error) {
	return f.steps[workorderID], nil
}

func (f *fakeWorkflow) LastCatalogStep(context.Context) (domain.Machine, domain.ProductionStep, error) {
	return f.lastMachine, f.lastStep, nil
}

func (f *fakeWorkflow) Machine(_ context.Context, id int64) (domain.Machine, error) {
	return domain.Machine{ID: id, Code: "M", Name: "machine"}, nil
}

type fakeParts struct {
	byExternal map[string]*domain.Part
	updates    int
	updateErr  error
}

func (f *fakeParts) ByExternalID(_ context.Context, id string) (*domain.Part, error) {
	return f.byExternal[id], nil
}

func (f *fakeParts) Update(_ context.Context, p *domain.Part) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	f.updates++
	cp := *p
	f.byExternal[p.ExternalID] = &cp
	return nil
}

func (f *fakeParts) List(context.Context, int, int) ([]domain.Part, error) { return nil, nil }
func (f *fakeParts) Count(context.Context) (int64, error)                  { return 0, nil }

type fakeWorkorders struct {
	byID    map[int64]*domain.Workorder
	updates int
}

func (f *fakeWorkorders) ByID(_ context.Context, id int64) (*domain.Workorder, error) {
	return f.byID[id], nil
}

func (f *fakeWorkorders) Update(_ context.Context, wo *domain.Workorder) error {
	f.updates++
	cp := *wo
	f.byID[wo.ID] = &cp
	return nil
}

func (f *fakeWorkorders) List(context.Context, int, int) ([]domain.Workorder, error) {
	return nil, nil
}

type fakeNotifier struct {
	anomalies int
	parts     int
}

func (f *fakeNotifier) AnomalyDetected(context.Context, domain.Anomaly) error {
	f.anomalies++
	return nil
}

func (f *fakeNotifier) PartCompleted(context.Context, domain.Part) error {
	f.parts++
	return nil
}

var errBoom = errors.New("boom")
