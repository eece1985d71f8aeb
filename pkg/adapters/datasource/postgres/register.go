package postgres

import (
	"github.com/ekaya-inc/ekaya-datadict/pkg/adapters/datasource"
)

func init() {
	datasource.Register(datasource.ConnectorRegistration{
		Info: datasource.ConnectorInfo{
			Type:        "postgres",
			DisplayName: "PostgreSQL",
			Description: "Connect to PostgreSQL 12+, Aurora PostgreSQL, Supabase",
			DriverName:  DriverName,
			Aliases:     []string{"postgresql", "pg", "pgx"},
		},
		Factory: func(config map[string]any, deps datasource.ConnectorDeps) (datasource.Connector, error) {
			cfg, err := FromMap(config)
			if err != nil {
				return nil, err
			}
			return NewConnector(cfg, deps), nil
		},
	})
}
