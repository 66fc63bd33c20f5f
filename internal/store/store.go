// Package store holds the sqlx repositories backing the alerting pipeline:
// push subscriptions and the vehicle documents they are alerted about.
package store

import (
	"errors"

	// Registers the pgx database/sql driver.
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// Open connects to Postgres via the pgx stdlib driver.
func Open(dsn string) (*sqlx.DB, error) {
	return sqlx.Connect("pgx", dsn)
}
