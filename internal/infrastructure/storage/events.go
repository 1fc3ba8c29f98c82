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

// EventStore reads the append-only plc_events log.
type EventStore struct {
	db *sqlx.DB
}

var _ ports.EventStore = (*EventStore)(nil)

// NewEventStore wires the database handle.
func NewEventStore(db *sqlx.DB) *EventStore {
	return &EventStore{db: db}
}

// MaxID returns the highest recorded event id, 0 on an empty log.
func (s *EventStore) MaxID(ctx context.Context) (int64, error) {
	var id int64
	err := s.db.GetContext(ctx, &id, `SELECT coalesce(max(id), 0) FROM plc_events`)
	if err != nil {
		return 0, fmt.Errorf("query max event id: %w", err)
	}
	return id, nil
}

// ListAfter fetches all events with id greater than afterID, ascending.
func (s *EventStore) ListAfter(ctx context.Context, afterID int64) ([]domain.Event, error) {
	query := fmt.Sprintf(`SELECT %s FROM plc_events WHERE id > $1 ORDER BY id ASC`, eventColumns)

	var events []domain.Event
	if err := s.db.SelectContext(ctx, &events, query, afterID); err != nil {
		return nil, fmt.Errorf("list events after %d: %w", afterID, err)
	}
	return events, nil
}

// PreviousForPart returns the latest event of the part strictly before the
// given timestamp, or nil when none exists.
func (s *EventStore) PreviousForPart(ctx context.Context, partID string, before time.Time) (*domain.Event, error) {
	query := fmt.Sprintf(`SELECT %s FROM plc_events
		WHERE part_id = $1 AND ts < $2
		ORDER BY ts DESC LIMIT 1`, eventColumns)

	var event domain.Event
	err := s.db.GetContext(ctx, &event, query, partID, before)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("previous event for part %s: %w", partID, err)
	}
	return &event, nil
}

// ListForPartBetween fetches the part's events in [from, to], ascending.
func (s *EventStore) ListForPartBetween(ctx context.Context, partID string, from, to time.Time) ([]domain.Event, error) {
	query := fmt.Sprintf(`SELECT %s FROM plc_events
		WHERE part_id = $1 AND ts BETWEEN $2 AND $3
		ORDER BY ts ASC`, eventColumns)

	var events []domain.Event
	if err := s.db.SelectContext(ctx, &events, query, partID, from, to); err != nil {
		return nil, fmt.Errorf("list events for part %s: %w", partID, err)
	}
	return events, nil
}

// ListForPart fetches the part's most recent events, newest first.
func (s *EventStore) ListForPart(ctx context.Context, partID string, limit int) ([]domain.Event, error) {
	query := fmt.Sprintf(`SELECT %s FROM plc_events
		WHERE part_id = $1
		ORDER BY ts DESC LIMIT $2`, eventColumns)

	var events []domain.Event
	if err := s.db.SelectContext(ctx, &events, query, partID, limit); err != nil {
		return nil, fmt.Errorf("list recent events for part %s: %w", partID, err)
	}
	return events, nil
}
