package errors

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLogger_Levels(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, true)

	logger.Error("error message")
	logger.Warn("warn message")
	logger.Info("info message")
	logger.Debug("debug message")

	output := buf.String()
	for _, level := range []string{"ERROR", "WARN", "INFO", "DEBUG"} {
		assert.Contains(t, output, level)
	}
}

func TestLogger_NonVerbose(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, false)

	logger.Error("error message")
	logger.Warn("warn message")
	logger.Info("info message")
	logger.Debug("debug message")

	output := buf.String()
	assert.Contains(t, output, "ERROR")
	assert.NotContains(t, output, "WARN")
	assert.NotContains(t, output, "INFO")
	assert.NotContains(t, output, "DEBUG")
}

func TestLogger_SanitisesMessages(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, false)

	logger.Error("request to https://example.com/v1beta/models/m:generateContent?key=topsecret failed")

	assert.NotContains(t, buf.String(), "topsecret")
	assert.Contains(t, buf.String(), "key=****")
}

func TestLogger_LogAPIRequest_StripsQuery(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, true)

	logger.LogAPIRequest("gemini", "https://host/v1beta/models/gemini-pro:generateContent?key=abc", "gemini-pro", 23)

	output := buf.String()
	assert.Contains(t, output, "provider=gemini")
	assert.Contains(t, output, "endpoint=https://host/v1beta/models/gemini-pro:generateContent,")
	assert.Contains(t, output, "prompt_length=23")
	assert.NotContains(t, output, "abc")
}

func TestLogger_LogAPIRequest_QuietWhenNotVerbose(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, false)

	logger.LogAPIRequest("gemini", "https://host", "gemini-pro", 1)
	logger.LogAPIResponse("gemini", 200, 10, time.Second)

	assert.Empty(t, buf.String())
}

func TestLogger_LogAPIResponse(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, true)

	logger.LogAPIResponse("openai", 200, 100, 500*time.Millisecond)

	assert.Contains(t, buf.String(), "status=200")
	assert.Contains(t, buf.String(), "provider=openai")
}

func TestLogger_LogRetry(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, true)

	logger.LogRetry(1, 3, errors.New("timeout"), time.Second)

	assert.Contains(t, buf.String(), "1/3")
}

func TestLogger_LogCircuitBreaker(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, true)

	logger.LogCircuitBreaker("work-gemini", CircuitOpen, 5)

	assert.Contains(t, buf.String(), "work-gemini")
	assert.Contains(t, buf.String(), "open")
	assert.Contains(t, buf.String(), "5")
}

func TestLogger_LogVerification(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, true)

	logger.LogVerification("id-1", "gemini", nil, time.Millisecond)
	logger.LogVerification("id-2", "gemini", NewRequestError("Gemini", 403, ""), time.Millisecond)

	output := buf.String()
	assert.Contains(t, output, "INFO: Verification succeeded: client=id-1")
	assert.Contains(t, output, "WARN: Verification failed: client=id-2")
	assert.Contains(t, output, "403")
}

func TestSetVerbose(t *testing.T) {
	originalVerbose := IsVerbose()
	defer SetVerbose(originalVerbose)

	SetVerbose(true)
	assert.True(t, IsVerbose())

	SetVerbose(false)
	assert.False(t, IsVerbose())
}

func TestLogLevel_String(t *testing.T) {
	tests := []struct {
		level    LogLevel
		expected string
	}{
		{LogLevelError, "ERROR"},
		{LogLevelWarn, "WARN"},
		{LogLevelInfo, "INFO"},
		{LogLevelDebug, "DEBUG"},
		{LogLevel(99), "UNKNOWN"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, tt.level.String())
	}
}
