// Package sqlite reads tables from SQLite database files.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/ekaya-inc/ekaya-joins/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-joins/pkg/logging"
	"github.com/ekaya-inc/ekaya-joins/pkg/models"
	"github.com/ekaya-inc/ekaya-joins/pkg/retry"
)

// Adapter reads tables from one SQLite database.
type Adapter struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewAdapter opens dsn (a file path or file: URI) and pings it.
func NewAdapter(ctx context.Context, dsn string, logger *zap.Logger) (*Adapter, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("invalid sqlite dsn: %w", err)
	}

	err = retry.Do(ctx, retry.TransientConfig(), func() error {
		return db.PingContext(ctx)
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	return &Adapter{db: db, logger: logger.Named("sqlite")}, nil
}

// TestConnection verifies the database file is readable.
func (a *Adapter) TestConnection(ctx context.Context) error {
	return a.db.PingContext(ctx)
}

// ReadTable selects every column of table, capped at limit rows when limit > 0.
func (a *Adapter) ReadTable(ctx context.Context, table string, limit int) (*models.Dataset, error) {
	query, err := selectStatement(table, limit)
	if err != nil {
		return nil, err
	}
	a.logger.Debug("reading table", zap.String("query", logging.SanitizeQuery(query)))

	rows, err := a.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	columns, records, err := datasource.ScanRows(rows, nil)
	if err != nil {
		return nil, err
	}
	return datasource.BuildDataset(table, columns, records), nil
}

// Close closes the database.
func (a *Adapter) Close() error {
	return a.db.Close()
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func selectStatement(table string, limit int) (string, error) {
	schema, name, err := datasource.SplitTableName(table)
	if err != nil {
		return "", err
	}

	target := quoteIdent(name)
	if schema != "" {
		target = quoteIdent(schema) + "." + target
	}

	query := "SELECT * FROM " + target
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}
	return query, nil
}
