// Package audit provides security audit logging for SIEM consumption.
// It logs security-relevant events in structured JSON format for easy parsing
// and integration with security information and event management systems.
package audit

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-datadict/pkg/auth"
	"github.com/ekaya-inc/ekaya-datadict/pkg/sql"
)

// SecurityEventType categorizes security-relevant events for filtering and alerting.
type SecurityEventType string

const (
	// EventSQLInjectionAttempt is logged when libinjection flags a rejected identifier.
	EventSQLInjectionAttempt SecurityEventType = "sql_injection_attempt"
	// EventIdentifierRejected is logged when a table name fails validation.
	EventIdentifierRejected SecurityEventType = "identifier_rejected"
)

// SecurityEvent represents an auditable security event with all relevant context
// for SIEM ingestion and analysis.
type SecurityEvent struct {
	Timestamp time.Time         `json:"timestamp"`
	EventType SecurityEventType `json:"event_type"`
	UserID    string            `json:"user_id,omitempty"`
	ClientIP  string            `json:"client_ip,omitempty"`
	Details   any               `json:"details"`
	Severity  string            `json:"severity"` // info, warning, critical
}

// InjectionDetails contains specifics of a detected SQL injection attempt.
type InjectionDetails struct {
	Field       string `json:"field"`
	Value       string `json:"value"`
	Fingerprint string `json:"fingerprint"` // libinjection fingerprint for pattern analysis
	Operation   string `json:"operation"`
}

// SecurityAuditor logs security events for SIEM consumption.
type SecurityAuditor struct {
	logger *zap.Logger
}

// NewSecurityAuditor creates a new security auditor with a dedicated logger namespace.
func NewSecurityAuditor(logger *zap.Logger) *SecurityAuditor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SecurityAuditor{logger: logger.Named("security_audit")}
}

// CheckTableName validates a caller-supplied table name before it reaches a
// connector. A rejected name is logged as a critical injection attempt when
// libinjection recognizes it, otherwise as a validation warning. The
// validation error is returned unchanged.
func (a *SecurityAuditor) CheckTableName(ctx context.Context, operation, tableName, clientIP string) error {
	err := sql.ValidateTableName(tableName)
	if err == nil {
		return nil
	}

	if result := sql.CheckForInjection("table_name", tableName); result != nil {
		a.LogInjectionAttempt(ctx, InjectionDetails{
			Field:       result.ParamName,
			Value:       result.ParamValue,
			Fingerprint: result.Fingerprint,
			Operation:   operation,
		}, clientIP)
		return err
	}

	a.LogIdentifierRejected(ctx, operation, err.Error(), clientIP)
	return err
}

// LogInjectionAttempt records a detected SQL injection attempt.
// This is logged at ERROR level with "critical" severity for immediate alerting.
func (a *SecurityAuditor) LogInjectionAttempt(ctx context.Context, details InjectionDetails, clientIP string) {
	userID := auth.GetUserIDFromContext(ctx)

	event := SecurityEvent{
		Timestamp: time.Now().UTC(),
		EventType: EventSQLInjectionAttempt,
		UserID:    userID,
		ClientIP:  clientIP,
		Details:   details,
		Severity:  "critical",
	}

	// Ignoring error as marshaling known types should never fail
	eventJSON, _ := json.Marshal(event)

	a.logger.Error("SQL injection attempt detected",
		zap.String("event_json", string(eventJSON)),
		zap.String("operation", details.Operation),
		zap.String("field", details.Field),
		zap.String("fingerprint", details.Fingerprint),
		zap.String("client_ip", clientIP),
		zap.String("user_id", userID),
		zap.String("severity", "critical"),
	)
}

// LogIdentifierRejected records a table name that failed validation without
// matching an injection pattern. Logged at WARN level as these are usually typos.
func (a *SecurityAuditor) LogIdentifierRejected(ctx context.Context, operation, reason, clientIP string) {
	userID := auth.GetUserIDFromContext(ctx)

	event := SecurityEvent{
		Timestamp: time.Now().UTC(),
		EventType: EventIdentifierRejected,
		UserID:    userID,
		ClientIP:  clientIP,
		Details: map[string]string{
			"operation": operation,
			"reason":    reason,
		},
		Severity: "warning",
	}

	eventJSON, _ := json.Marshal(event)

	a.logger.Warn("Identifier rejected",
		zap.String("event_json", string(eventJSON)),
		zap.String("operation", operation),
		zap.String("reason", reason),
		zap.String("client_ip", clientIP),
		zap.String("user_id", userID),
		zap.String("severity", "warning"),
	)
}
