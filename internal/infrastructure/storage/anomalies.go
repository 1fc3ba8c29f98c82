package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"LineSupervisor/internal/domain"
	"LineSupervisor/internal/ports"
)

// AnomalyStore persists detected anomalies.
type AnomalyStore struct {
	db *sqlx.DB
}

var _ ports.AnomalyStore = (*AnomalyStore)(nil)

// NewAnomalyStore wires the database handle.
func NewAnomalyStore(db *sqlx.DB) *AnomalyStore {
	return &AnomalyStore{db: db}
}

const anomalyColumns = `id, part_id, event_id, ts_detected, cycle, machine_id,
	production_step_id, workorder_id, rule_anomaly, rule_reasons,
	has_step_error, n_step_errors, cycle_duration_s, duration_overrun_s,
	events_count, window_days, ewma_ratio, rate_ratio, burstiness,
	hawkes_score, anomaly_score, confidence, severity, status, created_at,
	report_path`

// ExistsForEvent reports whether an anomaly is already recorded for the event.
func (s *AnomalyStore) ExistsForEvent(ctx context.Context, eventID int64) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		`SELECT EXISTS (SELECT 1 FROM plc_anomalies WHERE event_id = $1)`, eventID)
	if err != nil {
		return false, fmt.Errorf("check anomaly for event %d: %w", eventID, err)
	}
	return exists, nil
}

// ByEventID loads the anomaly tied to the event, nil when absent.
func (s *AnomalyStore) ByEventID(ctx context.Context, eventID int64) (*domain.Anomaly, error) {
	query := fmt.Sprintf(`SELECT %s FROM plc_anomalies WHERE event_id = $1`, anomalyColumns)

	var a domain.Anomaly
	err := s.db.GetContext(ctx, &a, query, eventID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load anomaly for event %d: %w", eventID, err)
	}
	return &a, nil
}

// Insert records a new anomaly and fills in its generated id.
func (s *AnomalyStore) Insert(ctx context.Context, a *domain.Anomaly) error {
	query, args, err := psql.
		Insert("plc_anomalies").
		Columns("part_id", "event_id", "ts_detected", "cycle", "machine_id",
			"production_step_id", "workorder_id", "rule_anomaly", "rule_reasons",
			"has_step_error", "n_step_errors", "cycle_duration_s",
			"duration_overrun_s", "events_count", "window_days", "ewma_ratio",
			"rate_ratio", "burstiness", "hawkes_score", "anomaly_score",
			"confidence", "severity", "status", "created_at").
		Values(a.PartID, a.EventID, a.DetectedAt, a.Cycle, a.MachineID,
			a.StepID, a.WorkorderID, a.RuleAnomaly, a.RuleReasons,
			a.HasStepError, a.NStepErrors, a.CycleDurationS,
			a.DurationOverrunS, a.EventsCount, a.WindowDays, a.EwmaRatio,
			a.RateRatio, a.Burstiness, a.HawkesScore, a.AnomalyScore,
			a.Confidence, a.Severity, a.Status, a.CreatedAt).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return fmt.Errorf("build anomaly insert: %w", err)
	}

	if err := s.db.GetContext(ctx, &a.ID, query, args...); err != nil {
		return fmt.Errorf("insert anomaly for event %d: %w", a.EventID, err)
	}
	return nil
}

// AttachReport stores the generated report reference on an existing anomaly.
func (s *AnomalyStore) AttachReport(ctx context.Context, anomalyID int64, reportPath string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE plc_anomalies SET report_path = $1 WHERE id = $2`, reportPath, anomalyID)
	if err != nil {
		return fmt.Errorf("attach report to anomaly %d: %w", anomalyID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("anomaly %d not found", anomalyID)
	}
	return nil
}

// RecentDetections returns detection timestamps at one machine+step since the
// given instant, ascending. Feeds the excitation score.
func (s *AnomalyStore) RecentDetections(ctx context.Context, machineID, stepID int64, since time.Time) ([]time.Time, error) {
	var times []time.Time
	err := s.db.SelectContext(ctx, &times,
		`SELECT ts_detected FROM plc_anomalies
		 WHERE machine_id = $1 AND production_step_id = $2 AND ts_detected >= $3
		 ORDER BY ts_detected ASC`, machineID, stepID, since)
	if err != nil {
		return nil, fmt.Errorf("list recent detections for step %d: %w", stepID, err)
	}
	return times, nil
}

// List pages through anomalies, newest first.
func (s *AnomalyStore) List(ctx context.Context, limit, offset int) ([]domain.Anomaly, error) {
	query := fmt.Sprintf(`SELECT %s FROM plc_anomalies
		ORDER BY ts_detected DESC LIMIT $1 OFFSET $2`, anomalyColumns)

	var anomalies []domain.Anomaly
	if err := s.db.SelectContext(ctx, &anomalies, query, limit, offset); err != nil {
		return nil, fmt.Errorf("list anomalies: %w", err)
	}
	return anomalies, nil
}

// ListForPart returns the part's latest anomalies, newest first.
func (s *AnomalyStore) ListForPart(ctx context.Context, partID string, limit int) ([]domain.Anomaly, error) {
	query := fmt.Sprintf(`SELECT %s FROM plc_anomalies WHERE part_id = $1
		ORDER BY ts_detected DESC LIMIT $2`, anomalyColumns)

	var anomalies []domain.Anomaly
	if err := s.db.SelectContext(ctx, &anomalies, query, partID, limit); err != nil {
		return nil, fmt.Errorf("list anomalies for part %s: %w", partID, err)
	}
	return anomalies, nil
}
