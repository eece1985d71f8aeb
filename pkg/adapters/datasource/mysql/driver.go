//go:build !no_mysql

package mysql

import (
	"net"
	"strconv"

	"github.com/go-sql-driver/mysql"

	"github.com/ekaya-inc/ekaya-datadict/pkg/config"
)

// formatDSN renders cfg with the driver's own DSN encoder, which handles
// passwords containing @, / and : without manual escaping.
func formatDSN(cfg *Config) string {
	dsn := mysql.NewConfig()
	dsn.User = cfg.User
	dsn.Passwd = cfg.Password
	dsn.Net = "tcp"
	dsn.Addr = net.JoinHostPort(config.ResolveHostForDocker(cfg.Host), strconv.Itoa(cfg.Port))
	dsn.DBName = cfg.Database
	dsn.ParseTime = true
	dsn.Timeout = cfg.ConnectTimeout
	return dsn.FormatDSN()
}
