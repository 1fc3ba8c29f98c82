// Package storage implements every data-access port on Postgres. Entity
// queries are built with squirrel; the statistical aggregates that need
// window functions and generated series stay as raw SQL.
package storage

import (
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// psql builds queries with Postgres placeholders.
var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// Open connects to Postgres and verifies the connection.
func Open(dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return db, nil
}

const eventColumns = `id, ts, part_id, machine_id, level,
	coalesce(code, '') AS code, coalesce(message, '') AS message,
	cycle, production_step_id, duration, payload, workorder_id`
