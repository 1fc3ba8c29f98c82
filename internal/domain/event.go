package domain

import (
	"encoding/json"
	"time"
)

// Event levels emitted by the line controllers.
const (
	LevelInfo  = "INFO"
	LevelOK    = "OK"
	LevelError = "ERROR"
)

// Event is one immutable fact recorded by a machine. The identifier is
// monotonically increasing and assigns a total order over the log.
type Event struct {
	ID          int64           `db:"id"`
	Ts          time.Time       `db:"ts"`
	PartID      *string         `db:"part_id"`
	MachineID   int64           `db:"machine_id"`
	Level       string          `db:"level"`
	Code        string          `db:"code"`
	Message     string          `db:"message"`
	Cycle       *int            `db:"cycle"`
	StepID      *int64          `db:"production_step_id"`
	Duration    *float64        `db:"duration"`
	Payload     json.RawMessage `db:"payload"`
	WorkorderID *int64          `db:"workorder_id"`
}

// IsError reports whether the event explicitly carries an error state.
func (e Event) IsError() bool {
	return e.Level == LevelError
}
