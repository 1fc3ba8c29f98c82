package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"LineSupervisor/internal/domain"
	"LineSupervisor/internal/ports"
)

// CursorStore owns the singleton runner_constante row. The row is created on
// first load so a fresh database starts from event id 0.
type CursorStore struct {
	db *sqlx.DB
}

var _ ports.CursorStore = (*CursorStore)(nil)

// NewCursorStore wires the database handle.
func NewCursorStore(db *sqlx.DB) *CursorStore {
	return &CursorStore{db: db}
}

// Load returns the cursor, inserting a zeroed row when none exists yet.
func (s *CursorStore) Load(ctx context.Context) (domain.Cursor, error) {
	const query = `SELECT id,
		coalesce(last_current_id_event, 0) AS last_current_id_event,
		coalesce(last_anomaly_id_analise, 0) AS last_anomaly_id_analise
		FROM runner_constante ORDER BY id ASC LIMIT 1`

	var c domain.Cursor
	err := s.db.GetContext(ctx, &c, query)
	if errors.Is(err, sql.ErrNoRows) {
		return s.init(ctx)
	}
	if err != nil {
		return domain.Cursor{}, fmt.Errorf("load cursor: %w", err)
	}
	return c, nil
}

func (s *CursorStore) init(ctx context.Context) (domain.Cursor, error) {
	var c domain.Cursor
	err := s.db.GetContext(ctx, &c.ID,
		`INSERT INTO runner_constante (last_current_id_event, last_anomaly_id_analise)
		 VALUES (0, 0) RETURNING id`)
	if err != nil {
		return domain.Cursor{}, fmt.Errorf("init cursor: %w", err)
	}
	return c, nil
}

// AdvanceEvent moves the event cursor forward. A stale value never overwrites
// a newer one.
func (s *CursorStore) AdvanceEvent(ctx context.Context, lastEventID int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE runner_constante SET last_current_id_event = $1
		 WHERE coalesce(last_current_id_event, 0) < $1`, lastEventID)
	if err != nil {
		return fmt.Errorf("advance event cursor to %d: %w", lastEventID, err)
	}
	return nil
}

// AdvanceAnomaly moves the anomaly cursor forward, monotonic like the event one.
func (s *CursorStore) AdvanceAnomaly(ctx context.Context, lastAnomalyID int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE runner_constante SET last_anomaly_id_analise = $1
		 WHERE coalesce(last_anomaly_id_analise, 0) < $1`, lastAnomalyID)
	if err != nil {
		return fmt.Errorf("advance anomaly cursor to %d: %w", lastAnomalyID, err)
	}
	return nil
}
