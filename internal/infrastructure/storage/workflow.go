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

// WorkflowStore resolves nominal scenarios and the installed step catalog.
type WorkflowStore struct {
	db *sqlx.DB
}

var _ ports.WorkflowStore = (*WorkflowStore)(nil)

// NewWorkflowStore wires the database handle.
func NewWorkflowStore(db *sqlx.DB) *WorkflowStore {
	return &WorkflowStore{db: db}
}

// NominalSteps returns the workorder scenario's steps ordered by step_order.
func (s *WorkflowStore) NominalSteps(ctx context.Context, workorderID int64) ([]ports.NominalStep, error) {
	const query = `
		SELECT ps.id, ps.machine_id, ps.step_code, ps.name,
		       ps.nominal_duration_s, pss.step_order
		FROM workorder w
		JOIN production_scenario_steps pss ON pss.production_scenario_id = w.production_scenario_id
		JOIN production_steps ps ON ps.id = pss.production_step_id
		WHERE w.id = $1
		ORDER BY pss.step_order ASC`

	var rows []struct {
		ID               int64    `db:"id"`
		MachineID        int64    `db:"machine_id"`
		StepCode         string   `db:"step_code"`
		Name             string   `db:"name"`
		NominalDurationS *float64 `db:"nominal_duration_s"`
		StepOrder        int      `db:"step_order"`
	}
	if err := s.db.SelectContext(ctx, &rows, query, workorderID); err != nil {
		return nil, fmt.Errorf("load scenario steps for workorder %d: %w", workorderID, err)
	}

	steps := make([]ports.NominalStep, 0, len(rows))
	for _, r := range rows {
		steps = append(steps, ports.NominalStep{
			Step: domain.ProductionStep{
				ID:               r.ID,
				MachineID:        r.MachineID,
				StepCode:         r.StepCode,
				Name:             r.Name,
				NominalDurationS: r.NominalDurationS,
			},
			StepOrder: r.StepOrder,
		})
	}
	return steps, nil
}

// LastCatalogStep returns the physically last installed machine and step.
func (s *WorkflowStore) LastCatalogStep(ctx context.Context) (domain.Machine, domain.ProductionStep, error) {
	var machine domain.Machine
	err := s.db.GetContext(ctx, &machine,
		`SELECT id, code, name FROM machine ORDER BY id DESC LIMIT 1`)
	if err != nil {
		return domain.Machine{}, domain.ProductionStep{}, fmt.Errorf("load last machine: %w", err)
	}

	var step domain.ProductionStep
	err = s.db.GetContext(ctx, &step,
		`SELECT id, machine_id, step_code, name, nominal_duration_s
		 FROM production_steps ORDER BY id DESC LIMIT 1`)
	if err != nil {
		return domain.Machine{}, domain.ProductionStep{}, fmt.Errorf("load last production step: %w", err)
	}

	return machine, step, nil
}

// Machine loads one machine by id.
func (s *WorkflowStore) Machine(ctx context.Context, id int64) (domain.Machine, error) {
	var machine domain.Machine
	err := s.db.GetContext(ctx, &machine, `SELECT id, code, name FROM machine WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Machine{}, fmt.Errorf("machine %d not found", id)
	}
	if err != nil {
		return domain.Machine{}, fmt.Errorf("load machine %d: %w", id, err)
	}
	return machine, nil
}
