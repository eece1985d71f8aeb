package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// ErrorType indicates which part of the provider configuration caused the error.
type ErrorType string

const (
	ErrorTypeNone     ErrorType = ""
	ErrorTypeEndpoint ErrorType = "endpoint"
	ErrorTypeAuth     ErrorType = "auth"
	ErrorTypeModel    ErrorType = "model"
	ErrorTypeRate     ErrorType = "rate_limit"
	ErrorTypeUnknown  ErrorType = "unknown"
)

// Error represents a structured LLM error with classification.
type Error struct {
	Type       ErrorType // Classification of the error
	Message    string    // Human-readable message
	Retryable  bool      // Whether the operation can be retried
	Cause      error     // Underlying error
	StatusCode int       // HTTP status code if applicable
	Model      string    // Model name if known
	Endpoint   string    // Endpoint URL if known
}

// Error implements the error interface.
func (e *Error) Error() string {
	var parts []string
	parts = append(parts, string(e.Type))

	if e.StatusCode > 0 {
		parts = append(parts, fmt.Sprintf("HTTP %d", e.StatusCode))
	}
	if e.Model != "" {
		parts = append(parts, fmt.Sprintf("model=%s", e.Model))
	}
	if host := endpointHost(e.Endpoint); host != "" {
		parts = append(parts, "endpoint="+host)
	}

	parts = append(parts, e.Message)

	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", strings.Join(parts, " "), e.Cause)
	}
	return strings.Join(parts, " ")
}

// endpointHost reduces an endpoint URL to its host so paths and query
// strings (which may carry keys) never reach logs.
func endpointHost(endpoint string) string {
	if endpoint == "" {
		return ""
	}
	u, err := url.Parse(endpoint)
	if err != nil || u.Host == "" {
		return ""
	}
	return u.Host
}

// Unwrap returns the underlying cause for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// IsRetryable implements the retry.RetryableError interface.
// This allows the retry package to check retryability without importing llm.
func (e *Error) IsRetryable() bool {
	return e.Retryable
}

// NewError creates a new structured LLM error.
func NewError(errType ErrorType, message string, retryable bool, cause error) *Error {
	return &Error{
		Type:      errType,
		Message:   message,
		Retryable: retryable,
		Cause:     cause,
	}
}

// NewErrorWithContext creates a new structured LLM error with additional context.
func NewErrorWithContext(errType ErrorType, message string, retryable bool, cause error, model, endpoint string, statusCode int) *Error {
	return &Error{
		Type:       errType,
		Message:    message,
		Retryable:  retryable,
		Cause:      cause,
		Model:      model,
		Endpoint:   endpoint,
		StatusCode: statusCode,
	}
}

// ClassifyError categorizes an error and returns a structured Error.
// Typed provider errors and network errors are classified by status code
// and kind; anything else falls back to matching the message text.
func ClassifyError(err error) *Error {
	if err == nil {
		return nil
	}

	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr
	}

	if status := httpStatus(err); status > 0 {
		return classifyStatus(err, status)
	}

	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return NewError(ErrorTypeEndpoint, "request timeout", true, err)
	case errors.As(err, &netErr) && netErr.Timeout():
		return NewError(ErrorTypeEndpoint, "request timeout", true, err)
	}

	return classifyMessage(err)
}

// httpStatus returns the HTTP status carried by a go-openai error, or the
// first well-known status code mentioned in the message.
func httpStatus(err error) int {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode > 0 {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode > 0 {
		return reqErr.HTTPStatusCode
	}

	msg := err.Error()
	for _, code := range []int{http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound,
		http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout, statusOverloaded} {
		if strings.Contains(msg, strconv.Itoa(code)) {
			return code
		}
	}
	return 0
}

// statusOverloaded is Anthropic's "overloaded_error" status.
const statusOverloaded = 529

func classifyStatus(err error, status int) *Error {
	lower := strings.ToLower(err.Error())

	var out *Error
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		out = NewError(ErrorTypeAuth, "authentication failed", false, err)
	case status == http.StatusNotFound && strings.Contains(lower, "model"):
		out = NewError(ErrorTypeModel, "model not found", false, err)
	case status == http.StatusNotFound:
		out = NewError(ErrorTypeEndpoint, "endpoint not found", false, err)
	case status == http.StatusTooManyRequests:
		out = NewError(ErrorTypeRate, "rate limited", true, err)
	case status == statusOverloaded:
		out = NewError(ErrorTypeEndpoint, "provider overloaded", true, err)
	case status >= 500:
		out = NewError(ErrorTypeEndpoint, "server error", true, err)
	default:
		out = classifyMessage(err)
	}
	out.StatusCode = status
	return out
}

// messageRules classify errors that carry no status, in order.
var messageRules = []struct {
	needles   []string
	errType   ErrorType
	message   string
	retryable bool
}{
	{[]string{"unauthorized", "invalid api key", "invalid x-api-key"}, ErrorTypeAuth, "authentication failed", false},
	{[]string{"model not found", "does not exist"}, ErrorTypeModel, "model not found", false},
	{[]string{"connection refused", "no such host", "connection reset"}, ErrorTypeEndpoint, "connection failed", true},
	{[]string{"timeout", "deadline exceeded", "context canceled"}, ErrorTypeEndpoint, "request timeout", true},
	{[]string{"rate limit"}, ErrorTypeRate, "rate limited", true},
	{[]string{"overloaded"}, ErrorTypeEndpoint, "provider overloaded", true},
}

func classifyMessage(err error) *Error {
	lower := strings.ToLower(err.Error())
	for _, rule := range messageRules {
		for _, needle := range rule.needles {
			if strings.Contains(lower, needle) {
				out := NewError(rule.errType, rule.message, rule.retryable, err)
				if rule.message == "provider overloaded" {
					out.StatusCode = statusOverloaded
				}
				return out
			}
		}
	}
	return NewError(ErrorTypeUnknown, "llm error", false, err)
}

// IsRetryable returns true if the error is retryable.
func IsRetryable(err error) bool {
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr.Retryable
	}
	return false
}

// GetErrorType extracts the ErrorType from an error.
func GetErrorType(err error) ErrorType {
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr.Type
	}
	return ErrorTypeUnknown
}
