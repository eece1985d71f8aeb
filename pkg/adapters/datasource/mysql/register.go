package mysql

import (
	"github.com/ekaya-inc/ekaya-datadict/pkg/adapters/datasource"
)

func init() {
	datasource.Register(datasource.ConnectorRegistration{
		Info: datasource.ConnectorInfo{
			Type:        "mysql",
			DisplayName: "MySQL",
			Description: "Connect to MySQL 5.7+, MariaDB, Aurora MySQL",
			DriverName:  DriverName,
			Aliases:     []string{"mariadb"},
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
