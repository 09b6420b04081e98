package errors

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// LogLevel represents the logging level.
type LogLevel int

const (
	// LogLevelError logs only errors.
	LogLevelError LogLevel = iota
	// LogLevelWarn logs warnings and errors.
	LogLevelWarn
	// LogLevelInfo logs info, warnings, and errors.
	LogLevelInfo
	// LogLevelDebug logs everything.
	LogLevelDebug
)

// String returns the string representation of LogLevel.
func (l LogLevel) String() string {
	switch l {
	case LogLevelError:
		return "ERROR"
	case LogLevelWarn:
		return "WARN"
	case LogLevelInfo:
		return "INFO"
	case LogLevelDebug:
		return "DEBUG"
	default:
		return "UNKNOWN"
	}
}

// Logger writes levelled lines of the form "[15:04:05] LEVEL: msg".
// Every message is sanitised so that tokens never reach the output.
type Logger struct {
	mu      sync.Mutex
	output  io.Writer
	level   LogLevel
	verbose bool
}

var defaultLogger = NewLogger(os.Stderr, false)

// Default returns the process-wide logger.
func Default() *Logger {
	return defaultLogger
}

// SetVerbose switches the default logger between error-only and debug output.
func SetVerbose(verbose bool) {
	defaultLogger.SetVerbose(verbose)
}

// IsVerbose returns whether verbose logging is enabled.
func IsVerbose() bool {
	defaultLogger.mu.Lock()
	defer defaultLogger.mu.Unlock()
	return defaultLogger.verbose
}

// SetOutput sets the output writer for the default logger.
func SetOutput(w io.Writer) {
	defaultLogger.mu.Lock()
	defer defaultLogger.mu.Unlock()
	defaultLogger.output = w
}

// NewLogger creates a logger writing to output.
func NewLogger(output io.Writer, verbose bool) *Logger {
	l := &Logger{output: output}
	l.SetVerbose(verbose)
	return l
}

// SetVerbose changes the level of this logger.
func (l *Logger) SetVerbose(verbose bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.verbose = verbose
	l.level = LogLevelError
	if verbose {
		l.level = LogLevelDebug
	}
}

func (l *Logger) log(level LogLevel, format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if level > l.level {
		return
	}

	message := SanitizeErrorMessage(fmt.Sprintf(format, args...))
	fmt.Fprintf(l.output, "[%s] %s: %s\n", time.Now().Format("15:04:05"), level.String(), message)
}

// Error logs an error message.
func (l *Logger) Error(format string, args ...interface{}) {
	l.log(LogLevelError, format, args...)
}

// Warn logs a warning message.
func (l *Logger) Warn(format string, args ...interface{}) {
	l.log(LogLevelWarn, format, args...)
}

// Info logs an info message.
func (l *Logger) Info(format string, args ...interface{}) {
	l.log(LogLevelInfo, format, args...)
}

// Debug logs a debug message.
func (l *Logger) Debug(format string, args ...interface{}) {
	l.log(LogLevelDebug, format, args...)
}

// LogAPIRequest logs an outgoing provider request. The endpoint is logged
// with its query string removed.
func (l *Logger) LogAPIRequest(provider, endpoint, model string, promptLength int) {
	if i := strings.IndexByte(endpoint, '?'); i >= 0 {
		endpoint = endpoint[:i]
	}
	l.Debug("API Request: provider=%s, endpoint=%s, model=%s, prompt_length=%d",
		provider, endpoint, model, promptLength)
}

// LogAPIResponse logs a provider response.
func (l *Logger) LogAPIResponse(provider string, statusCode int, responseLength int, duration time.Duration) {
	l.Debug("API Response: provider=%s, status=%d, response_length=%d, duration=%v",
		provider, statusCode, responseLength, duration)
}

// LogRetry logs a retry attempt.
func (l *Logger) LogRetry(attempt int, maxAttempts int, err error, delay time.Duration) {
	l.Debug("Retry attempt %d/%d after error: %v (waiting %v)", attempt, maxAttempts, err, delay)
}

// LogCircuitBreaker logs circuit breaker state changes.
func (l *Logger) LogCircuitBreaker(name string, state CircuitState, failures int) {
	l.Debug("Circuit breaker %s state: %s (consecutive failures: %d)", name, state.String(), failures)
}

// LogVerification logs the outcome of a configuration check.
func (l *Logger) LogVerification(clientID, provider string, err error, duration time.Duration) {
	if err != nil {
		l.Warn("Verification failed: client=%s, provider=%s, duration=%v, error=%v", clientID, provider, duration, err)
		return
	}
	l.Info("Verification succeeded: client=%s, provider=%s, duration=%v", clientID, provider, duration)
}

// Error logs an error message on the default logger.
func Error(format string, args ...interface{}) {
	defaultLogger.Error(format, args...)
}

// Warn logs a warning message on the default logger.
func Warn(format string, args ...interface{}) {
	defaultLogger.Warn(format, args...)
}

// Info logs an info message on the default logger.
func Info(format string, args ...interface{}) {
	defaultLogger.Info(format, args...)
}

// Debug logs a debug message on the default logger.
func Debug(format string, args ...interface{}) {
	defaultLogger.Debug(format, args...)
}

func LogAPIRequest(provider, endpoint, model string, promptLength int) {
	defaultLogger.LogAPIRequest(provider, endpoint, model, promptLength)
}

func LogAPIResponse(provider string, statusCode int, responseLength int, duration time.Duration) {
	defaultLogger.LogAPIResponse(provider, statusCode, responseLength, duration)
}

func LogRetry(attempt int, maxAttempts int, err error, delay time.Duration) {
	defaultLogger.LogRetry(attempt, maxAttempts, err, delay)
}

func LogCircuitBreaker(name string, state CircuitState, failures int) {
	defaultLogger.LogCircuitBreaker(name, state, failures)
}

func LogVerification(clientID, provider string, err error, duration time.Duration) {
	defaultLogger.LogVerification(clientID, provider, err, duration)
}
