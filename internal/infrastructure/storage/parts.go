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

// PartStore persists production units.
type PartStore struct {
	db *sqlx.DB
}

var _ ports.PartStore = (*PartStore)(nil)

// NewPartStore wires the database handle.
func NewPartStore(db *sqlx.DB) *PartStore {
	return &PartStore{db: db}
}

// ByExternalID looks a part up by its external id, nil when unknown.
func (s *PartStore) ByExternalID(ctx context.Context, externalID string) (*domain.Part, error) {
	query, args, err := psql.
		Select("id", "external_part_id", "workorder_id", "status", "created_at", "finished_at").
		From("parts").
		Where(sq.Eq{"external_part_id": externalID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build part query: %w", err)
	}

	var part domain.Part
	err = s.db.GetContext(ctx, &part, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load part %s: %w", externalID, err)
	}
	return &part, nil
}

// Update persists the part's status and finish timestamp.
func (s *PartStore) Update(ctx context.Context, part *domain.Part) error {
	query, args, err := psql.
		Update("parts").
		Set("status", part.Status).
		Set("finished_at", part.FinishedAt).
		Where(sq.Eq{"id": part.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build part update: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update part %s: %w", part.ExternalID, err)
	}
	return nil
}

// List pages through parts by insertion order.
func (s *PartStore) List(ctx context.Context, limit, offset int) ([]domain.Part, error) {
	query, args, err := psql.
		Select("id", "external_part_id", "workorder_id", "status", "created_at", "finished_at").
		From("parts").
		OrderBy("id ASC").
		Limit(uint64(limit)).
		Offset(uint64(offset)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build parts list query: %w", err)
	}

	var parts []domain.Part
	if err := s.db.SelectContext(ctx, &parts, query, args...); err != nil {
		return nil, fmt.Errorf("list parts: %w", err)
	}
	return parts, nil
}

// Count returns the number of known parts.
func (s *PartStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.GetContext(ctx, &n, `SELECT count(*) FROM parts`); err != nil {
		return 0, fmt.Errorf("count parts: %w", err)
	}
	return n, nil
}
