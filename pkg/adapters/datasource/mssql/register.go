package mssql

import (
	"github.com/ekaya-inc/ekaya-datadict/pkg/adapters/datasource"
)

func init() {
	datasource.Register(datasource.ConnectorRegistration{
		Info: datasource.ConnectorInfo{
			Type:        "mssql",
			DisplayName: "Microsoft SQL Server",
			Description: "Connect to SQL Server 2019+, Azure SQL Database",
			DriverName:  "sqlserver",
			Blocking:    true,
			Aliases:     []string{"sqlserver", "azuresql"},
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
