package snowflake

import (
	"github.com/ekaya-inc/ekaya-datadict/pkg/adapters/datasource"
)

func init() {
	datasource.Register(datasource.ConnectorRegistration{
		Info: datasource.ConnectorInfo{
			Type:        "snowflake",
			DisplayName: "Snowflake",
			Description: "Connect to a Snowflake warehouse",
			DriverName:  DriverName,
			Blocking:    true,
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
