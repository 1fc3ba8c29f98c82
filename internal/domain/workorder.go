package domain

import "time"

// WorkorderStatus enumerates the batch order lifecycle.
type WorkorderStatus string

const (
	WorkorderWait       WorkorderStatus = "WAIT"
	WorkorderInProgress WorkorderStatus = "IN_PROGRESS"
	WorkorderFinish     WorkorderStatus = "FINISH"
)

// Workorder is a run of N units against one production scenario. Counters
// are mutated only by the lifecycle handler.
type Workorder struct {
	ID             int64           `db:"id"`
	ScenarioID     int64           `db:"production_scenario_id"`
	Status         WorkorderStatus `db:"status"`
	PartsToProduce int64           `db:"nb_part_to_produce"`
	PartsFinished  int64           `db:"nb_part_finish"`
	PartsRejected  int64           `db:"nb_part_rejected"`
	PartsScrapped  int64           `db:"nb_part_scrapped"`
	CreatedAt      time.Time       `db:"created_at"`
	StartedAt      *time.Time      `db:"started_at"`
	FinishedAt     *time.Time      `db:"finished_at"`
}

// PartsAccounted sums all terminal counters.
func (w Workorder) PartsAccounted() int64 {
	return w.PartsFinished + w.PartsRejected + w.PartsScrapped
}
