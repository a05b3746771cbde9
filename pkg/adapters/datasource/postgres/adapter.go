// Package postgres reads PostgreSQL tables through a pgx connection pool.
package postgres

import (
	"context"
	"fmt"
	"math/big"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-joins/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-joins/pkg/logging"
	"github.com/ekaya-inc/ekaya-joins/pkg/models"
	"github.com/ekaya-inc/ekaya-joins/pkg/retry"
)

const defaultMaxConns = 4

// Adapter reads tables from one PostgreSQL database.
type Adapter struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewAdapter opens a pool for dsn and verifies it with a ping.
// Transient connection failures are retried.
func NewAdapter(ctx context.Context, dsn string, logger *zap.Logger) (*Adapter, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("invalid postgres dsn: %s", logging.SanitizeError(err))
	}
	if cfg.MaxConns > defaultMaxConns {
		cfg.MaxConns = defaultMaxConns
	}

	pool, err := retry.DoWithResult(ctx, retry.TransientConfig(), func() (*pgxpool.Pool, error) {
		p, err := pgxpool.NewWithConfig(ctx, cfg)
		if err != nil {
			return nil, err
		}
		if err := p.Ping(ctx); err != nil {
			p.Close()
			return nil, err
		}
		return p, nil
	})
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	return &Adapter{pool: pool, logger: logger.Named("postgres")}, nil
}

// TestConnection verifies the database is reachable.
func (a *Adapter) TestConnection(ctx context.Context) error {
	return a.pool.Ping(ctx)
}

// ReadTable selects every column of table, capped at limit rows when limit > 0.
func (a *Adapter) ReadTable(ctx context.Context, table string, limit int) (*models.Dataset, error) {
	query, err := selectStatement(table, limit)
	if err != nil {
		return nil, err
	}
	a.logger.Debug("reading table", zap.String("query", logging.SanitizeQuery(query)))

	rows, err := a.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	columns := make([]string, len(fields))
	for i, f := range fields {
		columns[i] = f.Name
	}

	var records [][]any
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("failed to read row values: %w", err)
		}
		for i, v := range values {
			values[i] = normalizeValue(v)
		}
		records = append(records, values)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return datasource.BuildDataset(table, columns, records), nil
}

// Close releases the pool.
func (a *Adapter) Close() error {
	a.pool.Close()
	return nil
}

func selectStatement(table string, limit int) (string, error) {
	schema, name, err := datasource.SplitTableName(table)
	if err != nil {
		return "", err
	}

	ident := pgx.Identifier{name}
	if schema != "" {
		ident = pgx.Identifier{schema, name}
	}

	query := "SELECT * FROM " + ident.Sanitize()
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}
	return query, nil
}

// normalizeValue maps pgx types without a plain Go scalar form.
func normalizeValue(v any) any {
	switch val := v.(type) {
	case pgtype.Numeric:
		if !val.Valid || val.NaN {
			return nil
		}
		if val.Exp >= 0 && val.Int != nil {
			n := new(big.Int).Mul(val.Int, new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(val.Exp)), nil))
			if n.IsInt64() {
				return n.Int64()
			}
		}
		f, err := val.Float64Value()
		if err != nil || !f.Valid {
			return nil
		}
		return f.Float64
	case [16]byte:
		return uuid.UUID(val).String()
	}
	return datasource.NormalizeValue(v)
}
