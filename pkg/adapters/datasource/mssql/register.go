package mssql

import (
	"context"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-joins/pkg/adapters/datasource"
)

func init() {
	datasource.Register(datasource.Registration{
		Info: datasource.AdapterInfo{
			Type:        "sqlserver",
			DisplayName: "Microsoft SQL Server",
			Description: "Read tables from SQL Server 2016+ and Azure SQL Database",
		},
		Factory: func(ctx context.Context, dsn string, logger *zap.Logger) (datasource.TableReader, error) {
			return NewAdapter(ctx, dsn, logger)
		},
	})
}
