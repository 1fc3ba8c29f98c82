package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"LineSupervisor/internal/ports"
)

// StepStatsStore computes the historical aggregates behind the predictive
// signals. These queries lean on window functions and generated series, so
// they stay as raw SQL.
type StepStatsStore struct {
	db *sqlx.DB
}

var _ ports.StepStats = (*StepStatsStore)(nil)

// NewStepStatsStore wires the database handle.
func NewStepStatsStore(db *sqlx.DB) *StepStatsStore {
	return &StepStatsStore{db: db}
}

// IntervalStats summarizes inter-arrival gaps between consecutive events of
// the same part at one machine+step since the given instant.
func (s *StepStatsStore) IntervalStats(ctx context.Context, machineID, stepID int64, since time.Time) (ports.IntervalStats, error) {
	const query = `
		WITH gaps AS (
			SELECT extract(epoch FROM ts - lag(ts) OVER (PARTITION BY part_id ORDER BY ts)) AS gap_s
			FROM plc_events
			WHERE machine_id = $1 AND production_step_id = $2 AND ts >= $3
		)
		SELECT count(gap_s)                                            AS sample_count,
		       coalesce(avg(gap_s), 0)                                 AS mean_s,
		       coalesce(stddev_samp(gap_s), 0)                         AS std_s,
		       coalesce(percentile_cont(0.95) WITHIN GROUP (ORDER BY gap_s), 0) AS p95_s
		FROM gaps
		WHERE gap_s IS NOT NULL`

	var row struct {
		SampleCount int64   `db:"sample_count"`
		MeanS       float64 `db:"mean_s"`
		StdS        float64 `db:"std_s"`
		P95S        float64 `db:"p95_s"`
	}
	err := s.db.GetContext(ctx, &row, query, machineID, stepID, since)
	if errors.Is(err, sql.ErrNoRows) {
		return ports.IntervalStats{}, nil
	}
	if err != nil {
		return ports.IntervalStats{}, fmt.Errorf("interval stats for step %d: %w", stepID, err)
	}
	return ports.IntervalStats{
		SampleCount: row.SampleCount,
		MeanS:       row.MeanS,
		StdS:        row.StdS,
		P95S:        row.P95S,
	}, nil
}

// OccurrenceRate counts anomalies at one machine+step since the given instant
// and normalizes to a per-day rate over windowDays.
func (s *StepStatsStore) OccurrenceRate(ctx context.Context, machineID, stepID int64, since time.Time, windowDays int) (ports.OccurrenceStats, error) {
	var n int64
	err := s.db.GetContext(ctx, &n,
		`SELECT count(*) FROM plc_anomalies
		 WHERE machine_id = $1 AND production_step_id = $2 AND ts_detected >= $3`,
		machineID, stepID, since)
	if err != nil {
		return ports.OccurrenceStats{}, fmt.Errorf("occurrence count for step %d: %w", stepID, err)
	}

	stats := ports.OccurrenceStats{Occurrences: n}
	if windowDays > 0 {
		stats.RatePerDay = float64(n) / float64(windowDays)
	}
	return stats, nil
}

// DailyAnomalySeries returns one anomaly count per calendar day from since up
// to today, zero-filled for days without detections, oldest first.
func (s *StepStatsStore) DailyAnomalySeries(ctx context.Context, machineID, stepID int64, since time.Time) ([]float64, error) {
	const query = `
		SELECT coalesce(count(a.id), 0)
		FROM generate_series(date_trunc('day', $3::timestamptz), date_trunc('day', now()), '1 day') AS d(day)
		LEFT JOIN plc_anomalies a
		       ON a.machine_id = $1 AND a.production_step_id = $2
		      AND date_trunc('day', a.ts_detected) = d.day
		GROUP BY d.day
		ORDER BY d.day ASC`

	var series []float64
	if err := s.db.SelectContext(ctx, &series, query, machineID, stepID, since); err != nil {
		return nil, fmt.Errorf("daily anomaly series for step %d: %w", stepID, err)
	}
	return series, nil
}

// DailySimilarErrorSeries returns one count per calendar day of error events
// carrying the same code at the machine+step, zero-filled, oldest first.
func (s *StepStatsStore) DailySimilarErrorSeries(ctx context.Context, machineID, stepID int64, code string, since time.Time) ([]float64, error) {
	const query = `
		SELECT coalesce(count(e.id), 0)
		FROM generate_series(date_trunc('day', $4::timestamptz), date_trunc('day', now()), '1 day') AS d(day)
		LEFT JOIN plc_events e
		       ON e.machine_id = $1 AND e.production_step_id = $2
		      AND e.level = 'ERROR' AND e.code = $3
		      AND date_trunc('day', e.ts) = d.day
		GROUP BY d.day
		ORDER BY d.day ASC`

	var series []float64
	if err := s.db.SelectContext(ctx, &series, query, machineID, stepID, code, since); err != nil {
		return nil, fmt.Errorf("daily similar-error series for step %d: %w", stepID, err)
	}
	return series, nil
}
