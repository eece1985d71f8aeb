// Package all links every bundled engine into the binary. Build with the
// no_<engine> tags (no_postgres, no_mysql, no_snowflake, no_mssql,
// no_sqlite) to leave a driver out; the engine then reports
// driver_unavailable on Connect.
package all

import (
	_ "github.com/ekaya-inc/ekaya-datadict/pkg/adapters/datasource/mssql"     // SQL Server
	_ "github.com/ekaya-inc/ekaya-datadict/pkg/adapters/datasource/mysql"     // MySQL
	_ "github.com/ekaya-inc/ekaya-datadict/pkg/adapters/datasource/postgres"  // PostgreSQL
	_ "github.com/ekaya-inc/ekaya-datadict/pkg/adapters/datasource/snowflake" // Snowflake
	_ "github.com/ekaya-inc/ekaya-datadict/pkg/adapters/datasource/sqlite"    // SQLite
)
