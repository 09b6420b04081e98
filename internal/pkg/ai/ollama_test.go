package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/aicommits/aicommits/internal/pkg/errors"
)

func TestOllama_VerifySuccess(t *testing.T) {
	var got OllamaChatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, OllamaChatPath, r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		_ = json.NewEncoder(w).Encode(OllamaChatResponse{
			Model:   got.Model,
			Message: &OllamaMessage{Role: "assistant", Content: "Yes!"},
			Done:    true,
		})
	}))
	defer server.Close()

	c := newTestClient(t, ProviderNameOllama, server.URL, nil)
	reply, err := c.VerifyConfiguration(context.Background(), server.URL, "", "0", "")
	require.NoError(t, err)
	assert.Equal(t, "Yes!", reply)

	assert.Equal(t, DefaultOllamaModel, got.Model)
	assert.False(t, got.Stream)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, CanaryPrompt, got.Messages[0].Content)
	require.NotNil(t, got.Options)
	assert.InDelta(t, 0.7, got.Options.Temperature, 1e-9)
}

func TestOllama_GenerateWithoutToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(OllamaChatResponse{
			Message: &OllamaMessage{Role: "assistant", Content: "chore: bump deps\n"},
			Done:    true,
		})
	}))
	defer server.Close()

	c := newTestClient(t, ProviderNameOllama, server.URL, nil)
	text, err := c.GenerateCommitMessage(context.Background(), "deps were bumped")
	require.NoError(t, err)
	assert.Equal(t, "chore: bump deps", text)
}

func TestOllama_Errors(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantCode   apperrors.ErrorCode
		suggestion string
	}{
		{"model not pulled", http.StatusNotFound, `{"error":"model 'codellama' not found"}`, apperrors.ErrRequestFailed, "ollama pull"},
		{"server busy", http.StatusServiceUnavailable, ``, apperrors.ErrRequestFailed, "ollama serve"},
		{"error in body", http.StatusOK, `{"error":"out of memory"}`, apperrors.ErrAIProviderFailed, ""},
		{"no message", http.StatusOK, `{"done":true}`, apperrors.ErrParseFailed, ""},
		{"blank message", http.StatusOK, `{"message":{"role":"assistant","content":" "}}`, apperrors.ErrParseFailed, ""},
		{"malformed", http.StatusOK, `not json`, apperrors.ErrParseFailed, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			c := newTestClient(t, ProviderNameOllama, server.URL, nil)
			_, err := c.VerifyConfiguration(context.Background(), server.URL, "", "5", "")
			require.Error(t, err)

			appErr := apperrors.GetAppError(err)
			require.NotNil(t, appErr)
			assert.Equal(t, tt.wantCode, appErr.Code)
			if tt.suggestion != "" {
				assert.Contains(t, appErr.Suggestion, tt.suggestion)
			}
		})
	}
}

func TestOllama_ConnectionRefused(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	host := server.URL
	server.Close()

	c := newTestClient(t, ProviderNameOllama, host, nil)
	_, err := c.VerifyConfiguration(context.Background(), host, "", "5", "")
	require.Error(t, err)

	appErr := apperrors.GetAppError(err)
	require.NotNil(t, appErr)
	assert.Equal(t, apperrors.ErrNetworkError, appErr.Code)
	assert.Equal(t, "cannot connect to Ollama", appErr.Message)
	assert.Contains(t, appErr.Suggestion, "ollama serve")
}

func TestOllama_RefreshModels(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, OllamaTagsPath, r.URL.Path)
		_, _ = w.Write([]byte(`{"models":[{"name":"llama3.1:8b"},{"name":"mistral:latest"}]}`))
	}))
	defer server.Close()

	c := newTestClient(t, ProviderNameOllama, server.URL, nil)
	require.NoError(t, c.RefreshModels(context.Background()))

	assert.Equal(t,
		[]string{DefaultOllamaModel, "llama3.1:8b", "mistral:latest"},
		c.Configuration().KnownModelIDs())
	assert.Contains(t, c.ModelIDs(), "qwen2.5-coder")
}
