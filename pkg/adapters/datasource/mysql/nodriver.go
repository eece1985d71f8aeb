//go:build no_mysql

package mysql

// formatDSN is unreachable without the driver: Connect fails the driver check first.
func formatDSN(*Config) string { return "" }
