package sqlite

import (
	"context"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-joins/pkg/adapters/datasource"
)

func init() {
	datasource.Register(datasource.Registration{
		Info: datasource.AdapterInfo{
			Type:        "sqlite",
			DisplayName: "SQLite",
			Description: "Read tables from a local SQLite database file",
		},
		Factory: func(ctx context.Context, dsn string, logger *zap.Logger) (datasource.TableReader, error) {
			return NewAdapter(ctx, dsn, logger)
		},
	})
}
