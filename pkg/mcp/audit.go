package mcp

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	mcplib "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-datadict/pkg/auth"
	"github.com/ekaya-inc/ekaya-datadict/pkg/logging"
)

// Audit event types.
const (
	EventToolCall            = "tool_call"
	EventToolError           = "tool_error"
	EventSQLInjectionAttempt = "sql_injection_attempt"
	EventIdentifierRejected  = "identifier_rejected"
	EventRateLimitHit        = "rate_limit_hit"
)

// Audit security levels.
const (
	SecurityNormal   = "normal"
	SecurityWarning  = "warning"
	SecurityCritical = "critical"
)

// AuditEvent is one audited MCP tool invocation.
type AuditEvent struct {
	ID            uuid.UUID      `json:"id"`
	Timestamp     time.Time      `json:"timestamp"`
	EventType     string         `json:"event_type"`
	ToolName      string         `json:"tool_name"`
	UserID        string         `json:"user_id,omitempty"`
	UserEmail     string         `json:"user_email,omitempty"`
	RequestParams map[string]any `json:"request_params,omitempty"`
	WasSuccessful bool           `json:"was_successful"`
	ErrorMessage  string         `json:"error_message,omitempty"`
	DurationMs    int64          `json:"duration_ms"`
	ResultSummary map[string]any `json:"result_summary,omitempty"`
	SecurityLevel string         `json:"security_level"`
	SecurityFlags []string       `json:"security_flags,omitempty"`
}

// AuditLogger writes one structured log entry per MCP tool call.
type AuditLogger struct {
	logger *zap.Logger

	// startTimes tracks when tool calls begin, keyed by request ID.
	startTimes sync.Map
}

// NewAuditLogger creates an AuditLogger that records MCP events.
func NewAuditLogger(logger *zap.Logger) *AuditLogger {
	return &AuditLogger{
		logger: logger.Named("mcp-audit"),
	}
}

// Hooks returns mcp-go Hooks configured to capture tool call events.
func (a *AuditLogger) Hooks() *server.Hooks {
	hooks := &server.Hooks{}
	hooks.AddBeforeCallTool(a.beforeCallTool)
	hooks.AddAfterCallTool(a.afterCallTool)
	hooks.AddOnError(a.onError)
	return hooks
}

func (a *AuditLogger) beforeCallTool(_ context.Context, id any, _ *mcplib.CallToolRequest) {
	a.startTimes.Store(id, time.Now())
}

func (a *AuditLogger) afterCallTool(ctx context.Context, id any, req *mcplib.CallToolRequest, result *mcplib.CallToolResult) {
	event := a.buildEvent(ctx, id, req)
	event.EventType = EventToolCall
	event.WasSuccessful = result != nil && !result.IsError
	event.ResultSummary = summarizeResult(result)

	classifyToolCallSecurity(event, result)
	a.record(event)
}

func (a *AuditLogger) onError(ctx context.Context, id any, method mcplib.MCPMethod, message any, err error) {
	if method != mcplib.MethodToolsCall {
		return
	}

	req, ok := message.(*mcplib.CallToolRequest)
	if !ok {
		return
	}

	event := a.buildEvent(ctx, id, req)
	event.EventType = EventToolError
	event.WasSuccessful = false
	event.ErrorMessage = logging.SanitizeError(err)

	classifyErrorSecurity(event, event.ErrorMessage)
	a.record(event)
}

func (a *AuditLogger) loadAndDeleteStart(id any) time.Time {
	if v, ok := a.startTimes.LoadAndDelete(id); ok {
		return v.(time.Time)
	}
	return time.Now()
}

func (a *AuditLogger) buildEvent(ctx context.Context, id any, req *mcplib.CallToolRequest) *AuditEvent {
	event := &AuditEvent{
		ID:            uuid.New(),
		Timestamp:     time.Now().UTC(),
		ToolName:      req.Params.Name,
		RequestParams: sanitizeParams(req.Params.Arguments),
		DurationMs:    time.Since(a.loadAndDeleteStart(id)).Milliseconds(),
		SecurityLevel: SecurityNormal,
	}

	if claims, ok := auth.GetClaims(ctx); ok {
		event.UserID = claims.Subject
		event.UserEmail = claims.Email
	}
	return event
}

func (a *AuditLogger) record(event *AuditEvent) {
	fields := []zap.Field{
		zap.String("audit_id", event.ID.String()),
		zap.String("event_type", event.EventType),
		zap.String("tool", event.ToolName),
		zap.Bool("success", event.WasSuccessful),
		zap.Int64("duration_ms", event.DurationMs),
		zap.String("security_level", event.SecurityLevel),
		zap.Any("params", event.RequestParams),
		zap.Any("result", event.ResultSummary),
	}
	if event.UserID != "" {
		fields = append(fields, zap.String("user_id", event.UserID))
	}
	if event.ErrorMessage != "" {
		fields = append(fields, zap.String("error", event.ErrorMessage))
	}
	if len(event.SecurityFlags) > 0 {
		fields = append(fields, zap.Strings("security_flags", event.SecurityFlags))
	}

	switch event.SecurityLevel {
	case SecurityCritical:
		a.logger.Error("MCP tool call", fields...)
	case SecurityWarning:
		a.logger.Warn("MCP tool call", fields...)
	default:
		a.logger.Info("MCP tool call", fields...)
	}
}

// maxParamSize is the maximum size of string parameters kept in audit logs.
const maxParamSize = 10240

// sensitiveKeyPattern matches parameter names whose values are never logged.
var sensitiveKeyPattern = regexp.MustCompile(`(?i)(password|passwd|secret|token|api_?key|credential|private_?key)`)

// sanitizeParams sanitizes request parameters before they are logged:
// long strings are truncated, credentials in connection URLs are masked
// and sensitive values are hashed.
func sanitizeParams(args any) map[string]any {
	params, ok := args.(map[string]any)
	if !ok || len(params) == 0 {
		return nil
	}
	return sanitizeNestedParams(params)
}

func sanitizeValue(key string, value any) any {
	if sensitiveKeyPattern.MatchString(key) {
		return hashSensitiveValue(value)
	}

	switch val := value.(type) {
	case string:
		return sanitizeStringParam(key, val)
	case map[string]any:
		return sanitizeNestedParams(val)
	default:
		return value
	}
}

func sanitizeStringParam(key string, val string) string {
	if isURLParam(key) {
		val = logging.SanitizeConnectionString(val)
	}
	if len(val) > maxParamSize {
		val = val[:maxParamSize] + "...[truncated]"
	}
	return val
}

func sanitizeNestedParams(params map[string]any) map[string]any {
	sanitized := make(map[string]any, len(params))
	for k, v := range params {
		sanitized[k] = sanitizeValue(k, v)
	}
	return sanitized
}

// isURLParam returns true if a parameter key likely holds a connection string.
func isURLParam(key string) bool {
	lower := strings.ToLower(key)
	return lower == "dsn" || lower == "url" || strings.HasSuffix(lower, "_url") || strings.HasSuffix(lower, "_dsn")
}

// hashSensitiveValue returns a SHA-256 hash prefix for sensitive values,
// allowing correlation across audit entries without storing the actual value.
func hashSensitiveValue(value any) string {
	var str string
	switch v := value.(type) {
	case string:
		str = v
	default:
		str = fmt.Sprintf("%v", v)
	}
	hash := sha256.Sum256([]byte(str))
	return "sha256:" + hex.EncodeToString(hash[:8])
}

// summarizeResult creates a compact summary of the tool result.
func summarizeResult(result *mcplib.CallToolResult) map[string]any {
	if result == nil {
		return nil
	}

	summary := map[string]any{
		"is_error": result.IsError,
	}

	if len(result.Content) > 0 {
		summary["content_count"] = len(result.Content)
		for _, c := range result.Content {
			if tc, ok := c.(mcplib.TextContent); ok {
				extractCounts(tc.Text, summary)
				summary["preview"] = logging.TruncateString(tc.Text, 200)
				break
			}
		}
	}

	return summary
}

// countKeys are the size fields tools report, copied into the summary
// so volume is visible without the full payload.
var countKeys = []string{"count", "table_count", "rows_sampled"}

func extractCounts(text string, summary map[string]any) {
	var partial map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text), &partial); err != nil {
		return
	}
	for _, key := range countKeys {
		raw, ok := partial[key]
		if !ok {
			continue
		}
		var n int
		if err := json.Unmarshal(raw, &n); err == nil {
			summary[key] = n
		}
	}
}

// classifyToolCallSecurity inspects an error result for security-relevant codes.
func classifyToolCallSecurity(event *AuditEvent, result *mcplib.CallToolResult) {
	if result == nil || !result.IsError {
		return
	}

	for _, c := range result.Content {
		tc, ok := c.(mcplib.TextContent)
		if !ok {
			continue
		}
		text := strings.ToLower(tc.Text)

		if strings.Contains(text, "injection") {
			event.EventType = EventSQLInjectionAttempt
			event.SecurityLevel = SecurityCritical
			event.SecurityFlags = append(event.SecurityFlags, "sql_injection_attempt")
			return
		}
		if strings.Contains(text, "invalid_table_name") {
			event.EventType = EventIdentifierRejected
			event.SecurityLevel = SecurityWarning
			event.SecurityFlags = append(event.SecurityFlags, "identifier_rejected")
			return
		}
	}
}

// classifyErrorSecurity upgrades the event's classification based on the error text.
func classifyErrorSecurity(event *AuditEvent, errMsg string) {
	lower := strings.ToLower(errMsg)

	switch {
	case strings.Contains(lower, "injection"):
		event.EventType = EventSQLInjectionAttempt
		event.SecurityLevel = SecurityCritical
		event.SecurityFlags = append(event.SecurityFlags, "sql_injection_attempt")
	case strings.Contains(lower, "authentication") || strings.Contains(lower, "unauthorized"):
		event.SecurityLevel = SecurityWarning
		event.SecurityFlags = append(event.SecurityFlags, "auth_failure")
	case strings.Contains(lower, "rate limit"):
		event.EventType = EventRateLimitHit
		event.SecurityLevel = SecurityWarning
		event.SecurityFlags = append(event.SecurityFlags, "rate_limit")
	}
}
