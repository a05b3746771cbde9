// Package datasource reads database tables into datasets for joining.
// Drivers live in subpackages and register themselves from init().
package datasource

import (
	"context"

	"github.com/ekaya-inc/ekaya-joins/pkg/models"
)

// TableReader reads whole tables from one database.
// Each implementation owns its connection pool and must be closed when done.
type TableReader interface {
	// TestConnection verifies the database is reachable with valid credentials.
	TestConnection(ctx context.Context) error

	// ReadTable returns up to limit rows of table as a dataset named after the table.
	// The table may be schema-qualified ("schema.table"). A limit <= 0 reads every row.
	ReadTable(ctx context.Context, table string, limit int) (*models.Dataset, error)

	// Close releases the database connection.
	Close() error
}

// Source is a configured database that datasets may reference by name.
type Source struct {
	Name string `json:"name"`
	Type string `json:"type"`
	DSN  string `json:"-"`
}
