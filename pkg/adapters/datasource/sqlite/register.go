package sqlite

import (
	"github.com/ekaya-inc/ekaya-datadict/pkg/adapters/datasource"
)

func init() {
	datasource.Register(datasource.ConnectorRegistration{
		Info: datasource.ConnectorInfo{
			Type:        "sqlite",
			DisplayName: "SQLite",
			Description: "Open a local SQLite database file",
			DriverName:  DriverName,
			Aliases:     []string{"sqlite3", "moderncsqlite", "file"},
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
