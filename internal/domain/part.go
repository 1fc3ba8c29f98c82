package domain

import "time"

// PartStatus enumerates the unit lifecycle. Terminal states are one-way.
type PartStatus string

const (
	PartInProgress PartStatus = "IN_PROGRESS"
	PartFinished   PartStatus = "FINISHED"
	PartRejected   PartStatus = "REJECTED"
	PartScrapped   PartStatus = "SCRAPPED"
)

// Terminal reports whether the status admits no further transition.
func (s PartStatus) Terminal() bool {
	return s == PartFinished || s == PartRejected || s == PartScrapped
}

// Part is one physical unit moving through the line, identified by an
// externally-assigned id unique across the system.
type Part struct {
	ID          int64      `db:"id"`
	ExternalID  string     `db:"external_part_id"`
	WorkorderID *int64     `db:"workorder_id"`
	Status      PartStatus `db:"status"`
	CreatedAt   time.Time  `db:"created_at"`
	FinishedAt  *time.Time `db:"finished_at"`
}
