package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	apperrors "github.com/aicommits/aicommits/internal/pkg/errors"
)

const (
	// DefaultOllamaModel is the default model for Ollama.
	DefaultOllamaModel = "codellama"

	// DefaultOllamaHost is the default address of a local Ollama server.
	DefaultOllamaHost = "http://localhost:11434"

	// OllamaChatPath is the API path for chat completions.
	OllamaChatPath = "/api/chat"

	// OllamaTagsPath is the API path listing local models.
	OllamaTagsPath = "/api/tags"
)

func ollamaDescriptor() *Descriptor {
	return &Descriptor{
		Name:               ProviderNameOllama,
		DisplayName:        "Ollama",
		Icon:               "◉",
		DefaultHosts:       []string{DefaultOllamaHost},
		DefaultModelIDs:    []string{DefaultOllamaModel, "llama3.1", "qwen2.5-coder"},
		DefaultTemperature: "0.7",
		Temperature:        Range{Min: 0, Max: 2},
		RequiresToken:      false,
		New: func(b *base) Client {
			return &OllamaClient{base: b}
		},
	}
}

// OllamaClient talks to a local Ollama server. It needs no token.
type OllamaClient struct {
	*base
}

// OllamaChatRequest represents a request to the Ollama chat API.
type OllamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []OllamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Options  *OllamaOptions  `json:"options,omitempty"`
}

// OllamaMessage represents a message in the Ollama chat API.
type OllamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// OllamaOptions represents optional parameters for Ollama requests.
type OllamaOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

// OllamaChatResponse represents a response from the Ollama chat API.
type OllamaChatResponse struct {
	Model   string         `json:"model"`
	Message *OllamaMessage `json:"message"`
	Done    bool           `json:"done"`
	Error   string         `json:"error,omitempty"`
}

// OllamaTagsResponse lists the models pulled on the server.
type OllamaTagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// GenerateCommitMessage sends prompt to the configured model.
func (c *OllamaClient) GenerateCommitMessage(ctx context.Context, prompt string) (string, error) {
	return c.generate(ctx, prompt, c.complete)
}

// VerifyConfiguration sends the canary prompt once. The token is ignored.
func (c *OllamaClient) VerifyConfiguration(ctx context.Context, host, proxy, timeout, token string) (string, error) {
	return c.verify(ctx, host, proxy, timeout, token, c.complete)
}

// RefreshModels lists the models pulled on the server.
func (c *OllamaClient) RefreshModels(ctx context.Context) error {
	return c.refresh(ctx, c.listModels)
}

// Clone returns a client over an independent copy of the configuration.
func (c *OllamaClient) Clone() Client {
	return &OllamaClient{base: c.clone()}
}

func (c *OllamaClient) complete(ctx context.Context, s *settings, prompt string) (string, error) {
	body, err := json.Marshal(OllamaChatRequest{
		Model:    s.model,
		Messages: []OllamaMessage{{Role: "user", Content: prompt}},
		Stream:   false,
		Options: &OllamaOptions{
			Temperature: s.temperature,
			NumPredict:  DefaultMaxTokens,
		},
	})
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.ErrAIProviderFailed, "failed to marshal request")
	}

	respBody, err := c.do(ctx, s, http.MethodPost, OllamaChatPath, body)
	if err != nil {
		return "", err
	}

	var resp OllamaChatResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return "", apperrors.NewParseError("malformed response", err)
	}
	if resp.Error != "" {
		return "", apperrors.NewAIProviderError("Ollama", fmt.Errorf("%s", resp.Error))
	}
	if resp.Message == nil {
		return "", apperrors.NewParseError("no content in response", nil)
	}
	if strings.TrimSpace(resp.Message.Content) == "" {
		return "", apperrors.NewParseError("empty response from API", nil)
	}
	return resp.Message.Content, nil
}

func (c *OllamaClient) listModels(ctx context.Context, s *settings) ([]string, error) {
	respBody, err := c.do(ctx, s, http.MethodGet, OllamaTagsPath, nil)
	if err != nil {
		return nil, err
	}

	var tags OllamaTagsResponse
	if err := json.Unmarshal(respBody, &tags); err != nil {
		return nil, apperrors.NewParseError("malformed model list", err)
	}
	ids := make([]string, 0, len(tags.Models))
	for _, m := range tags.Models {
		ids = append(ids, m.Name)
	}
	return ids, nil
}

// do performs one request against the Ollama API and returns the body of a
// 2xx response.
func (c *OllamaClient) do(ctx context.Context, s *settings, method, path string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, s.host+path, reader)
	if err != nil {
		return nil, apperrors.NewConfigurationError("host", err)
	}
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	httpResp, err := s.httpClient().Do(httpReq)
	if err != nil {
		return nil, wrapOllamaTransportError(err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(httpResp.Body, maxErrorBody))
		appErr := apperrors.NewRequestError("Ollama", httpResp.StatusCode, string(snippet))
		switch httpResp.StatusCode {
		case http.StatusNotFound:
			appErr.WithSuggestion("Please ensure the model is pulled using 'ollama pull <model>'")
		case http.StatusServiceUnavailable:
			appErr.WithSuggestion("Please ensure Ollama is running using 'ollama serve'")
		}
		return nil, appErr
	}

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, wrapOllamaTransportError(err)
	}
	return respBody, nil
}

func wrapOllamaTransportError(err error) error {
	appErr := apperrors.GetAppError(wrapTransportError(err))
	if strings.Contains(err.Error(), "connection refused") {
		appErr.Message = "cannot connect to Ollama"
		appErr.WithSuggestion("Please ensure Ollama is running using 'ollama serve'")
	}
	return appErr
}
