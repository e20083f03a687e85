package mssql

import (
	"context"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-schema-engine/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-schema-engine/pkg/models"
)

func init() {
	datasource.Register(datasource.AdapterRegistration{
		Info: datasource.AdapterInfo{
			Type:        "mssql",
			DisplayName: "Microsoft SQL Server",
			Dialect:     models.DialectMSSQL.String(),
		},
		Factory: func(ctx context.Context, cc datasource.ConnectionConfig, logger *zap.Logger) (datasource.Introspector, error) {
			cfg, err := FromConnectionConfig(cc)
			if err != nil {
				return nil, err
			}
			return NewAdapter(ctx, cfg, logger)
		},
	})
}
