//go:build no_snowflake

package snowflake

// Unreachable without the driver: Connect fails the driver check first.

func formatDSN(*Config) (string, error) { return "", nil }

func isObjectMissing(error) bool { return false }
