// Package health provides health check implementations for the API's
// dependencies.
package health

import (
	"context"
	"database/sql"
	"errors"
)

// ErrSchemaMissing is returned when the database is reachable but the loader
// has not created the tables yet.
var ErrSchemaMissing = errors.New("legislators table does not exist")

// schemaQuery checks for the table without scanning it.
const schemaQuery = "SELECT to_regclass('legislators') IS NOT NULL"

// DBChecker implements health checking for the vote database.
type DBChecker struct {
	db *sql.DB
}

// NewDBChecker creates a new database health checker.
func NewDBChecker(db *sql.DB) *DBChecker {
	return &DBChecker{
		db: db,
	}
}

// HealthCheck reports whether the database answers and holds the schema.
func (d *DBChecker) HealthCheck(ctx context.Context) error {
	var exists bool
	if err := d.db.QueryRowContext(ctx, schemaQuery).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return ErrSchemaMissing
	}
	return nil
}
