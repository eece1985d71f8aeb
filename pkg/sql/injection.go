package sql

import (
	libinjection "github.com/corazawaf/libinjection-go"
)

// InjectionCheckResult contains the result of an injection check on a caller-supplied value.
type InjectionCheckResult struct {
	IsSQLi      bool   // True if SQL injection pattern detected
	Fingerprint string // libinjection fingerprint of the detected pattern
	ParamName   string // Name of the field that failed the check
	ParamValue  string // The value that was checked
}

// CheckForInjection uses libinjection to detect SQL injection patterns in a
// value such as a table name. Identifier validation already rejects every
// such value; this check only classifies rejected input for the security
// audit log, so probing attempts can be told apart from typos.
//
// Returns nil if no injection is detected.
//
// Example:
//
//	result := CheckForInjection("table_name", "users; DROP TABLE users--")
//	// result.IsSQLi == true
//	// result.ParamName == "table_name"
func CheckForInjection(paramName, value string) *InjectionCheckResult {
	isSQLi, fingerprint := libinjection.IsSQLi(value)
	if !isSQLi {
		return nil
	}
	return &InjectionCheckResult{
		IsSQLi:      true,
		Fingerprint: string(fingerprint),
		ParamName:   paramName,
		ParamValue:  value,
	}
}
