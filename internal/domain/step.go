package domain

// Machine is one physical station on the line.
type Machine struct {
	ID   int64  `db:"id"`
	Code string `db:"code"`
	Name string `db:"name"`
}

// ProductionStep is a named operation on a machine with a nominal duration.
// Steps are machine-scoped and never mutated after creation.
type ProductionStep struct {
	ID               int64    `db:"id"`
	MachineID        int64    `db:"machine_id"`
	StepCode         string   `db:"step_code"`
	Name             string   `db:"name"`
	NominalDurationS *float64 `db:"nominal_duration_s"`
}

// ScenarioStep binds a production step to its position inside a scenario.
// StepOrder is the single source of truth for "what comes next".
type ScenarioStep struct {
	ID         int64 `db:"id"`
	ScenarioID int64 `db:"production_scenario_id"`
	StepID     int64 `db:"production_step_id"`
	StepOrder  int   `db:"step_order"`
}

// Scenario is the ordered template of expected steps shared by many
// workorders. Immutable for the life of any order that references it.
type Scenario struct {
	ID   int64  `db:"id"`
	Name string `db:"name"`
}
