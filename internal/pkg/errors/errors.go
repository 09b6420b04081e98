// Package errors provides error types, handling utilities, and retry logic for aicommits.
package errors

import (
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ErrorCode represents the category of an error.
type ErrorCode int

const (
	// User errors (Exit Code 1)
	ErrInvalidConfig ErrorCode = iota + 100
	ErrMissingAPIKey
	ErrInvalidArguments
	ErrUnknownProvider
)

const (
	// System errors (Exit Code 2)
	ErrSecretStore ErrorCode = iota + 200
	ErrFileSystemError
	ErrConfigCorruption
)

const (
	// External errors (Exit Code 3)
	ErrAIProviderFailed ErrorCode = iota + 300
	ErrNetworkError
	ErrRateLimited
	ErrTimeout
	ErrAuthenticationFailed
	ErrRequestFailed
	ErrParseFailed
)

// ExitCode returns the appropriate exit code for an error code.
func (c ErrorCode) ExitCode() int {
	switch {
	case c >= 100 && c < 200:
		return 1 // User errors
	case c >= 200 && c < 300:
		return 2 // System errors
	case c >= 300:
		return 3 // External errors
	default:
		return 1
	}
}

// String returns a human-readable name for the error code.
func (c ErrorCode) String() string {
	switch c {
	case ErrInvalidConfig:
		return "ConfigurationError"
	case ErrMissingAPIKey:
		return "MissingAPIKey"
	case ErrInvalidArguments:
		return "InvalidArguments"
	case ErrUnknownProvider:
		return "UnknownProvider"
	case ErrSecretStore:
		return "SecretStoreError"
	case ErrFileSystemError:
		return "FileSystemError"
	case ErrConfigCorruption:
		return "ConfigCorruption"
	case ErrAIProviderFailed:
		return "AIProviderFailed"
	case ErrNetworkError:
		return "NetworkError"
	case ErrRateLimited:
		return "RateLimited"
	case ErrTimeout:
		return "Timeout"
	case ErrAuthenticationFailed:
		return "AuthenticationFailed"
	case ErrRequestFailed:
		return "RequestError"
	case ErrParseFailed:
		return "ParseError"
	default:
		return "Unknown"
	}
}

// AppError represents an application error with context.
type AppError struct {
	Code       ErrorCode
	Message    string
	Cause      error
	Context    map[string]interface{}
	Suggestion string
	RetryAfter time.Duration // For rate limit errors
	StatusCode int           // HTTP status for request errors
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying error.
func (e *AppError) Unwrap() error {
	return e.Cause
}

// IsRetryable returns true if the error can be retried.
func (e *AppError) IsRetryable() bool {
	switch e.Code {
	case ErrRateLimited, ErrNetworkError, ErrTimeout:
		return true
	case ErrRequestFailed:
		return IsRetryableStatus(e.StatusCode)
	case ErrAIProviderFailed:
		// Check if the underlying cause is retryable
		if e.Cause != nil {
			var retryable RetryableError
			if errors.As(e.Cause, &retryable) {
				return retryable.IsRetryable()
			}
		}
		return false
	default:
		return false
	}
}

// GetRetryAfter returns the duration to wait before retrying.
func (e *AppError) GetRetryAfter() time.Duration {
	if e.RetryAfter > 0 {
		return e.RetryAfter
	}
	return 0
}

// WithContext adds context to the error.
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithSuggestion adds a suggestion to the error.
func (e *AppError) WithSuggestion(suggestion string) *AppError {
	e.Suggestion = suggestion
	return e
}

// RetryableError is an interface for errors that can be retried.
type RetryableError interface {
	error
	IsRetryable() bool
	GetRetryAfter() time.Duration
}

// Ensure AppError implements RetryableError
var _ RetryableError = (*AppError)(nil)

// IsRetryableStatus reports whether an HTTP status is worth retrying:
// rate limiting (429) and transient server errors.
func IsRetryableStatus(status int) bool {
	switch status {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// New creates a new AppError.
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an error with context.
func Wrap(err error, code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// WrapWithContext wraps an error with a context message.
func WrapWithContext(err error, context string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", context, err)
}

// IsAppError checks if an error is an AppError.
func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// GetAppError extracts an AppError from an error chain.
func GetAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return nil
}

// HasCode reports whether err carries an AppError with the given code.
func HasCode(err error, code ErrorCode) bool {
	appErr := GetAppError(err)
	return appErr != nil && appErr.Code == code
}

// GetExitCode returns the appropriate exit code for an error.
func GetExitCode(err error) int {
	if appErr := GetAppError(err); appErr != nil {
		return appErr.Code.ExitCode()
	}
	return 1 // Default to user error
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	var retryable RetryableError
	if errors.As(err, &retryable) {
		return retryable.IsRetryable()
	}
	return false
}

// GetRetryAfter returns the retry-after duration for an error.
func GetRetryAfter(err error) time.Duration {
	var retryable RetryableError
	if errors.As(err, &retryable) {
		return retryable.GetRetryAfter()
	}
	return 0
}

// Common error constructors with suggestions

// NewConfigurationError creates an error for a configuration value that is
// malformed before any request is attempted.
func NewConfigurationError(field string, err error) *AppError {
	return &AppError{
		Code:       ErrInvalidConfig,
		Message:    fmt.Sprintf("invalid %s", field),
		Cause:      err,
		Suggestion: fmt.Sprintf("Check the %s value of this client", field),
	}
}

// NewRequestError creates an error for a non-2xx response.
func NewRequestError(provider string, statusCode int, body string) *AppError {
	appErr := &AppError{
		Code:       ErrRequestFailed,
		Message:    fmt.Sprintf("%s API request failed with status code: %d", provider, statusCode),
		StatusCode: statusCode,
	}
	if body != "" {
		appErr.Context = map[string]interface{}{"body": body}
	}
	switch statusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		appErr.Suggestion = "Please check your API key is valid and has not expired"
	case http.StatusNotFound:
		appErr.Suggestion = "Please check the model id and host"
	case http.StatusTooManyRequests:
		appErr.Suggestion = "Please wait and try again later"
	}
	return appErr
}

// NewParseError creates an error for a successful response whose payload
// does not carry the expected content.
func NewParseError(message string, cause error) *AppError {
	return &AppError{
		Code:    ErrParseFailed,
		Message: message,
		Cause:   cause,
	}
}

// NewSecretStoreError creates an error for a failed secret store operation.
func NewSecretStoreError(op string, err error) *AppError {
	return &AppError{
		Code:       ErrSecretStore,
		Message:    fmt.Sprintf("secret store %s failed", op),
		Cause:      err,
		Suggestion: "Check that the secret store file is writable",
	}
}

// NewUnknownProviderError creates an error for an unregistered provider name.
func NewUnknownProviderError(name string) *AppError {
	return &AppError{
		Code:       ErrUnknownProvider,
		Message:    fmt.Sprintf("unknown provider: %s", name),
		Suggestion: "Run 'aicommits providers' to list supported providers",
	}
}

// NewMissingAPIKeyError creates an error for missing API key.
func NewMissingAPIKeyError(provider string) *AppError {
	return &AppError{
		Code:       ErrMissingAPIKey,
		Message:    fmt.Sprintf("API key is required for %s provider", provider),
		Suggestion: "Store your API key using 'aicommits token set <client>'",
	}
}

// NewInvalidConfigError creates an error for an invalid configuration file.
func NewInvalidConfigError(message string) *AppError {
	return &AppError{
		Code:       ErrInvalidConfig,
		Message:    message,
		Suggestion: "Run 'aicommits client list' to inspect configured clients",
	}
}

// NewNetworkError creates an error for network failures.
func NewNetworkError(err error) *AppError {
	return &AppError{
		Code:       ErrNetworkError,
		Message:    "network error occurred",
		Cause:      err,
		Suggestion: "Please check your network connection and proxy settings",
	}
}

// NewRateLimitError creates an error for rate limiting.
func NewRateLimitError(retryAfter time.Duration) *AppError {
	suggestion := "Please wait and try again later"
	if retryAfter > 0 {
		suggestion = fmt.Sprintf("Please wait %v and try again", retryAfter)
	}
	return &AppError{
		Code:       ErrRateLimited,
		Message:    "rate limit exceeded",
		RetryAfter: retryAfter,
		StatusCode: http.StatusTooManyRequests,
		Suggestion: suggestion,
	}
}

// NewTimeoutError creates an error for timeouts.
func NewTimeoutError(err error) *AppError {
	return &AppError{
		Code:       ErrTimeout,
		Message:    "request timed out",
		Cause:      err,
		Suggestion: "Please check your network connection or raise the client timeout",
	}
}

// NewAIProviderError creates an error for AI provider failures.
func NewAIProviderError(provider string, err error) *AppError {
	return &AppError{
		Code:       ErrAIProviderFailed,
		Message:    fmt.Sprintf("%s provider error", provider),
		Cause:      err,
		Suggestion: "Please check your API key and network connectivity",
	}
}

// ParseRetryAfterHeader parses the Retry-After header value.
// It handles both seconds (integer) and HTTP-date formats.
func ParseRetryAfterHeader(header string) time.Duration {
	if header == "" {
		return 0
	}

	// Try parsing as seconds
	if seconds, err := strconv.Atoi(header); err == nil {
		return time.Duration(seconds) * time.Second
	}

	// Try parsing as HTTP-date
	if t, err := http.ParseTime(header); err == nil {
		duration := time.Until(t)
		if duration > 0 {
			return duration
		}
	}

	return 0
}

// FormatError formats an error for user display.
// API keys and other sensitive data are automatically masked.
func FormatError(err error) string {
	if err == nil {
		return ""
	}

	var sb strings.Builder

	appErr := GetAppError(err)
	if appErr != nil {
		sb.WriteString("Error: ")
		sb.WriteString(SanitizeErrorMessage(appErr.Message))

		if appErr.Cause != nil {
			sb.WriteString("\n  Cause: ")
			sb.WriteString(SanitizeErrorMessage(appErr.Cause.Error()))
		}

		if appErr.Suggestion != "" {
			sb.WriteString("\n  Suggestion: ")
			sb.WriteString(appErr.Suggestion)
		}
	} else {
		sb.WriteString("Error: ")
		sb.WriteString(SanitizeErrorMessage(err.Error()))
	}

	return sb.String()
}

// FormatErrorVerbose formats an error with full details for verbose mode.
// API keys and other sensitive data are automatically masked.
func FormatErrorVerbose(err error) string {
	if err == nil {
		return ""
	}

	var sb strings.Builder

	appErr := GetAppError(err)
	if appErr != nil {
		sb.WriteString(fmt.Sprintf("Error [%s]: %s\n", appErr.Code.String(), SanitizeErrorMessage(appErr.Message)))

		if appErr.StatusCode != 0 {
			sb.WriteString(fmt.Sprintf("  Status: %d\n", appErr.StatusCode))
		}

		if appErr.Cause != nil {
			sb.WriteString(fmt.Sprintf("  Cause: %v\n", SanitizeErrorMessage(appErr.Cause.Error())))
			sb.WriteString("  Error chain:\n")
			printErrorChain(&sb, appErr.Cause, 2)
		}

		if len(appErr.Context) > 0 {
			sb.WriteString("  Context:\n")
			for k, v := range appErr.Context {
				sb.WriteString(fmt.Sprintf("    %s: %v\n", k, SanitizeErrorMessage(fmt.Sprintf("%v", v))))
			}
		}

		if appErr.Suggestion != "" {
			sb.WriteString(fmt.Sprintf("  Suggestion: %s\n", appErr.Suggestion))
		}

		if appErr.RetryAfter > 0 {
			sb.WriteString(fmt.Sprintf("  Retry after: %v\n", appErr.RetryAfter))
		}
	} else {
		sb.WriteString(fmt.Sprintf("Error: %v\n", SanitizeErrorMessage(err.Error())))
		sb.WriteString("  Error chain:\n")
		printErrorChain(&sb, err, 2)
	}

	return sb.String()
}

// printErrorChain prints the error chain with indentation.
func printErrorChain(sb *strings.Builder, err error, indent int) {
	if err == nil {
		return
	}

	prefix := strings.Repeat("  ", indent)
	errMsg := SanitizeErrorMessage(err.Error())
	sb.WriteString(fmt.Sprintf("%s- %T: %v\n", prefix, err, errMsg))

	if unwrapped := errors.Unwrap(err); unwrapped != nil {
		printErrorChain(sb, unwrapped, indent+1)
	}
}

// SanitizeErrorMessage masks any API keys or sensitive data in error messages.
// Transport errors embed the request URL, so Gemini's key query parameter is
// masked as well.
func SanitizeErrorMessage(msg string) string {
	result := keyParamPattern.ReplaceAllString(msg, "${1}****")
	result = apiKeyPattern.ReplaceAllStringFunc(result, func(match string) string {
		if len(match) <= 4 {
			return "****"
		}
		return strings.Repeat("*", len(match)-4) + match[len(match)-4:]
	})
	return result
}

// apiKeyPattern matches common API key patterns (OpenAI/DeepSeek/Anthropic "sk-", Google "AIza").
var apiKeyPattern = regexp.MustCompile(`(sk-[a-zA-Z0-9_-]{20,}|AIza[0-9A-Za-z_-]{20,})`)

// keyParamPattern matches a key query parameter value in a URL.
var keyParamPattern = regexp.MustCompile(`([?&]key=)[^&\s"]+`)
