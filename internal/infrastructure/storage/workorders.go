package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"LineSupervisor/internal/domain"
	"LineSupervisor/internal/ports"
)

// WorkorderStore persists batch orders.
type WorkorderStore struct {
	db *sqlx.DB
}

var _ ports.WorkorderStore = (*WorkorderStore)(nil)

// NewWorkorderStore wires the database handle.
func NewWorkorderStore(db *sqlx.DB) *WorkorderStore {
	return &WorkorderStore{db: db}
}

const workorderColumns = `id, production_scenario_id, status,
	coalesce(nb_part_to_produce, 0) AS nb_part_to_produce,
	coalesce(nb_part_finish, 0) AS nb_part_finish,
	coalesce(nb_part_rejected, 0) AS nb_part_rejected,
	coalesce(nb_part_scrapped, 0) AS nb_part_scrapped,
	created_at, started_at, finished_at`

// ByID loads one workorder, nil when unknown.
func (s *WorkorderStore) ByID(ctx context.Context, id int64) (*domain.Workorder, error) {
	query := fmt.Sprintf(`SELECT %s FROM workorder WHERE id = $1`, workorderColumns)

	var wo domain.Workorder
	err := s.db.GetContext(ctx, &wo, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load workorder %d: %w", id, err)
	}
	return &wo, nil
}

// Update persists state, counters, and lifecycle timestamps.
func (s *WorkorderStore) Update(ctx context.Context, wo *domain.Workorder) error {
	query, args, err := psql.
		Update("workorder").
		Set("status", wo.Status).
		Set("nb_part_finish", wo.PartsFinished).
		Set("nb_part_rejected", wo.PartsRejected).
		Set("nb_part_scrapped", wo.PartsScrapped).
		Set("started_at", wo.StartedAt).
		Set("finished_at", wo.FinishedAt).
		Where(sq.Eq{"id": wo.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build workorder update: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update workorder %d: %w", wo.ID, err)
	}
	return nil
}

// List pages through workorders by insertion order.
func (s *WorkorderStore) List(ctx context.Context, limit, offset int) ([]domain.Workorder, error) {
	query := fmt.Sprintf(`SELECT %s FROM workorder ORDER BY id ASC LIMIT $1 OFFSET $2`, workorderColumns)

	var orders []domain.Workorder
	if err := s.db.SelectContext(ctx, &orders, query, limit, offset); err != nil {
		return nil, fmt.Errorf("list workorders: %w", err)
	}
	return orders, nil
}
