package domain

// Cursor is the singleton runner state: the last processed event id and the
// last anomaly produced. Exactly one row exists in storage.
type Cursor struct {
	ID          int64 `db:"id"`
	LastEventID int64 `db:"last_current_id_event"`
	LastAnomaly int64 `db:"last_anomaly_id_analise"`
}
