// Package nominal loads and caches the expected workflow of a workorder,
// derived from the scenario assigned at order creation.
package nominal

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"LineSupervisor/internal/domain"
	"LineSupervisor/internal/ports"
)

// Workflow is the resolved nominal model for one workorder: the ordered
// step sequence plus O(1) lookup maps keyed by step id.
type Workflow struct {
	Sequence   []domain.ProductionStep
	ByStepID   map[int64]domain.ProductionStep
	OrderIndex map[int64]int
}

// LastStep returns the scenario's last-in-order step.
func (w *Workflow) LastStep() (domain.ProductionStep, bool) {
	if len(w.Sequence) == 0 {
		return domain.ProductionStep{}, false
	}
	return w.Sequence[len(w.Sequence)-1], true
}

// Provider caches workflows keyed by workorder id. A scenario is immutable
// for the life of an order, so entries are never invalidated automatically;
// Clear exists for administrative reloads.
type Provider struct {
	store ports.WorkflowStore

	mu    sync.RWMutex
	cache map[int64]*Workflow
}

// NewProvider wires the workflow store.
func NewProvider(store ports.WorkflowStore) *Provider {
	return &Provider{store: store, cache: map[int64]*Workflow{}}
}

// Load returns the nominal workflow for the workorder, reading through the
// cache on first access.
func (p *Provider) Load(ctx context.Context, workorderID int64) (*Workflow, error) {
	p.mu.RLock()
	wf, ok := p.cache[workorderID]
	p.mu.RUnlock()
	if ok {
		return wf, nil
	}

	steps, err := p.store.NominalSteps(ctx, workorderID)
	if err != nil {
		return nil, fmt.Errorf("load nominal steps for workorder %d: %w", workorderID, err)
	}
	if len(steps) == 0 {
		return nil, fmt.Errorf("workorder %d has no scenario steps", workorderID)
	}

	sort.SliceStable(steps, func(i, j int) bool {
		return steps[i].StepOrder < steps[j].StepOrder
	})

	wf = &Workflow{
		Sequence:   make([]domain.ProductionStep, 0, len(steps)),
		ByStepID:   make(map[int64]domain.ProductionStep, len(steps)),
		OrderIndex: make(map[int64]int, len(steps)),
	}
	for _, ns := range steps {
		wf.Sequence = append(wf.Sequence, ns.Step)
		wf.ByStepID[ns.Step.ID] = ns.Step
		wf.OrderIndex[ns.Step.ID] = ns.StepOrder
	}

	p.mu.Lock()
	p.cache[workorderID] = wf
	p.mu.Unlock()

	return wf, nil
}

// Clear drops every cached workflow.
func (p *Provider) Clear() {
	p.mu.Lock()
	p.cache = map[int64]*Workflow{}
	p.mu.Unlock()
}
