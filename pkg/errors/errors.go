package errors

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"
)

// ErrorCode represents a unique error code for categorizing errors
type ErrorCode string

const (
	// Ingestion errors (1xxx)
	ErrCodeIngestFailed   ErrorCode = "LSC1001"
	ErrCodeSchemaMismatch ErrorCode = "LSC1002"
	ErrCodeRowMalformed   ErrorCode = "LSC1003"
	ErrCodeEmptyDataset   ErrorCode = "LSC1004"

	// Configuration errors (2xxx)
	ErrCodeConfigNotFound   ErrorCode = "LSC2001"
	ErrCodeConfigInvalid    ErrorCode = "LSC2002"
	ErrCodeConfigMissing    ErrorCode = "LSC2003"
	ErrCodeConfigPermission ErrorCode = "LSC2004"

	// Cleaning rules errors (3xxx)
	ErrCodeRulesNotFound   ErrorCode = "LSC3001"
	ErrCodeRulesInvalid    ErrorCode = "LSC3002"
	ErrCodeRulesSyncFailed ErrorCode = "LSC3003"

	// Local store errors (4xxx)
	ErrCodeSQLExecution   ErrorCode = "LSC4001"
	ErrCodeSQLTransaction ErrorCode = "LSC4002"
	ErrCodeStoreOpen      ErrorCode = "LSC4003"
	ErrCodeNoResults      ErrorCode = "LSC4004"

	// File system errors (5xxx)
	ErrCodeFileNotFound   ErrorCode = "LSC5001"
	ErrCodeFilePermission ErrorCode = "LSC5002"
	ErrCodeFileOperation  ErrorCode = "LSC5003"

	// Cleaning errors (6xxx)
	ErrCodeMalformedDate     ErrorCode = "LSC6001"
	ErrCodeValidationFailed  ErrorCode = "LSC6002"
	ErrCodeInvalidInput      ErrorCode = "LSC6003"
	ErrCodeAmbiguousBackfill ErrorCode = "LSC6004"

	// Warehouse errors (7xxx)
	ErrCodeConnectionFailed     ErrorCode = "LSC7001"
	ErrCodeConnectionTimeout    ErrorCode = "LSC7002"
	ErrCodeAuthenticationFailed ErrorCode = "LSC7003"
	ErrCodeNetworkUnavailable   ErrorCode = "LSC7004"
	ErrCodePublishFailed        ErrorCode = "LSC7005"
	ErrCodeSQLPermission        ErrorCode = "LSC7006"
	ErrCodeSQLTimeout           ErrorCode = "LSC7007"

	// Security errors (8xxx)
	ErrCodeCredentialNotFound ErrorCode = "LSC8001"
	ErrCodeEncryptionFailed   ErrorCode = "LSC8002"

	// System errors (9xxx)
	ErrCodeInternal           ErrorCode = "LSC9001"
	ErrCodeTimeout            ErrorCode = "LSC9002"
	ErrCodeMaxRetriesExceeded ErrorCode = "LSC9003"
	ErrCodeUserInput          ErrorCode = "LSC9004"
)

// ErrorSeverity represents the severity level of an error
type ErrorSeverity string

const (
	SeverityCritical ErrorSeverity = "CRITICAL" // System failure, requires immediate attention
	SeverityError    ErrorSeverity = "ERROR"    // Operation failed, but system continues
	SeverityWarning  ErrorSeverity = "WARNING"  // Operation succeeded with issues
	SeverityInfo     ErrorSeverity = "INFO"     // Informational, not an error
)

// AppError represents a structured application error with context
type AppError struct {
	Code        ErrorCode
	Message     string
	Severity    ErrorSeverity
	Context     map[string]interface{}
	Cause       error
	Stack       string
	Timestamp   time.Time
	Recoverable bool
	Suggestions []string
}

// Error implements the error interface
func (e *AppError) Error() string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("[%s] %s: %s", e.Code, e.Severity, e.Message))

	if e.Cause != nil {
		b.WriteString(fmt.Sprintf("\nCaused by: %v", e.Cause))
	}

	if len(e.Suggestions) > 0 {
		b.WriteString("\nSuggestions:")
		for i, suggestion := range e.Suggestions {
			b.WriteString(fmt.Sprintf("\n  %d. %s", i+1, suggestion))
		}
	}

	return b.String()
}

// Unwrap returns the cause of the error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is implements error comparison
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// New creates a new AppError
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:        code,
		Message:     message,
		Severity:    SeverityError,
		Context:     make(map[string]interface{}),
		Stack:       captureStack(),
		Timestamp:   time.Now(),
		Recoverable: false,
	}
}

// Wrap wraps an existing error with AppError
func Wrap(err error, code ErrorCode, message string) *AppError {
	if err == nil {
		return nil
	}

	appErr := New(code, message)
	appErr.Cause = err

	// If wrapping another AppError, inherit some properties
	if ae, ok := err.(*AppError); ok {
		for k, v := range ae.Context {
			appErr.Context[k] = v
		}
	}

	return appErr
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithSeverity sets the error severity
func (e *AppError) WithSeverity(severity ErrorSeverity) *AppError {
	e.Severity = severity
	return e
}

// WithSuggestions adds recovery suggestions
func (e *AppError) WithSuggestions(suggestions ...string) *AppError {
	e.Suggestions = append(e.Suggestions, suggestions...)
	return e
}

// AsRecoverable marks the error as recoverable
func (e *AppError) AsRecoverable() *AppError {
	e.Recoverable = true
	return e
}

// captureStack captures the current stack trace
func captureStack() string {
	const depth = 32
	var pcs [depth]uintptr
	n := runtime.Callers(3, pcs[:])

	var b strings.Builder
	frames := runtime.CallersFrames(pcs[:n])

	for {
		frame, more := frames.Next()
		if !strings.Contains(frame.File, "runtime/") {
			b.WriteString(fmt.Sprintf("%s:%d %s\n", frame.File, frame.Line, frame.Function))
		}
		if !more {
			break
		}
	}

	return b.String()
}

// Common error constructors

// IngestError creates an ingestion failure. Ingestion problems are always
// fatal: a cleaning run must never start from a partial raw set.
func IngestError(message string, cause error) *AppError {
	return Wrap(cause, ErrCodeIngestFailed, message).
		WithSeverity(SeverityCritical).
		WithSuggestions(
			"Check that the input file exists and is readable",
			"Verify the file is a nine-column layoffs CSV",
			"Re-export the dataset from its source",
		)
}

// ConnectionError creates a connection-related error
func ConnectionError(message string, cause error) *AppError {
	return Wrap(cause, ErrCodeConnectionFailed, message).
		WithSeverity(SeverityError).
		WithSuggestions(
			"Check your network connection",
			"Verify the warehouse endpoint is accessible",
			"Check firewall settings",
		)
}

// ConfigError creates a configuration-related error
func ConfigError(message string, field string) *AppError {
	return New(ErrCodeConfigInvalid, message).
		WithContext("field", field).
		WithSuggestions(
			fmt.Sprintf("Check the '%s' configuration value", field),
			"Run 'layoffscrub setup' to reconfigure",
			"Refer to the configuration documentation",
		)
}

// SQLError creates an SQL execution error
func SQLError(message string, query string, cause error) *AppError {
	err := Wrap(cause, ErrCodeSQLExecution, message).
		WithContext("query", truncateString(query, 200))

	if strings.Contains(message, "permission") || strings.Contains(message, "access denied") {
		err.Code = ErrCodeSQLPermission
		_ = err.WithSuggestions(
			"Check user permissions in the warehouse",
			"Verify the role has required privileges",
			"Contact your warehouse administrator",
		)
	} else if strings.Contains(message, "timeout") {
		err.Code = ErrCodeSQLTimeout
		_ = err.WithSuggestions(
			"Increase the query timeout setting",
			"Check the warehouse size",
		)
	}

	return err
}

// MalformedDateError creates the error raised when a non-null date value
// does not parse as MM/DD/YYYY. Row and value context is attached so the
// offending cell can be found in the source file.
func MalformedDateError(value string, row int, company string) *AppError {
	return New(ErrCodeMalformedDate, fmt.Sprintf("date %q does not match MM/DD/YYYY", value)).
		WithContext("row", row).
		WithContext("company", company).
		WithContext("value", value).
		WithSuggestions(
			"Fix the date cell in the source file",
			"Re-run with --on-malformed-date=null to blank unparseable dates instead",
		)
}

// AmbiguousBackfillWarning creates the non-fatal diagnostic logged when a
// company carries more than one distinct non-null industry. It is reported,
// never returned as a failure.
func AmbiguousBackfillWarning(company string, industries []string, chosen string) *AppError {
	return New(ErrCodeAmbiguousBackfill,
		fmt.Sprintf("company %q has %d conflicting industries", company, len(industries))).
		WithContext("company", company).
		WithContext("industries", industries).
		WithContext("chosen", chosen).
		WithSeverity(SeverityWarning).
		AsRecoverable()
}

// RulesError creates a cleaning-rules error
func RulesError(message string, cause error) *AppError {
	return Wrap(cause, ErrCodeRulesInvalid, message).
		WithSuggestions(
			"Check the rules file for YAML syntax errors",
			"Run 'layoffscrub rules show' to inspect the active rules",
		)
}

// ValidationError creates a validation error
func ValidationError(field string, value interface{}, reason string) *AppError {
	return New(ErrCodeValidationFailed, fmt.Sprintf("Validation failed for %s: %s", field, reason)).
		WithContext("field", field).
		WithContext("value", value).
		WithSeverity(SeverityWarning).
		AsRecoverable()
}

// IsRecoverable checks if an error is recoverable
func IsRecoverable(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Recoverable
	}
	return false
}

// GetErrorCode extracts the error code from an error
func GetErrorCode(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrCodeInternal
}

// truncateString truncates a string to maxLen characters
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
