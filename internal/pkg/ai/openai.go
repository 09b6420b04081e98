package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"

	apperrors "github.com/aicommits/aicommits/internal/pkg/errors"
)

const (
	// DefaultOpenAIHost is the OpenAI API base URL.
	DefaultOpenAIHost = "https://api.openai.com/v1"

	// DefaultOpenAIModel is the default model for OpenAI.
	DefaultOpenAIModel = "gpt-4o-mini"
)

func openAIDescriptor() *Descriptor {
	return &Descriptor{
		Name:               ProviderNameOpenAI,
		DisplayName:        "OpenAI",
		Icon:               "◎",
		DefaultHosts:       []string{DefaultOpenAIHost},
		DefaultModelIDs:    []string{DefaultOpenAIModel, "gpt-4o", "gpt-4.1", "gpt-4.1-mini"},
		DefaultTemperature: "0.7",
		Temperature:        Range{Min: 0, Max: 2},
		RequiresToken:      true,
		New: func(b *base) Client {
			return &OpenAIClient{base: b, label: "OpenAI"}
		},
	}
}

// OpenAIClient talks to OpenAI and OpenAI-compatible APIs through go-openai.
type OpenAIClient struct {
	*base
	label       string
	suggestions map[int]string // extra hints per HTTP status
}

// GenerateCommitMessage sends prompt to the configured model.
func (c *OpenAIClient) GenerateCommitMessage(ctx context.Context, prompt string) (string, error) {
	return c.generate(ctx, prompt, c.complete)
}

// VerifyConfiguration sends the canary prompt once.
func (c *OpenAIClient) VerifyConfiguration(ctx context.Context, host, proxy, timeout, token string) (string, error) {
	return c.verify(ctx, host, proxy, timeout, token, c.complete)
}

// RefreshModels lists the models available to the token.
func (c *OpenAIClient) RefreshModels(ctx context.Context) error {
	return c.refresh(ctx, c.listModels)
}

// Clone returns a client over an independent copy of the configuration.
func (c *OpenAIClient) Clone() Client {
	return &OpenAIClient{base: c.clone(), label: c.label, suggestions: c.suggestions}
}

func (c *OpenAIClient) client(s *settings) *openai.Client {
	clientConfig := openai.DefaultConfig(s.token)
	clientConfig.BaseURL = s.host
	clientConfig.HTTPClient = s.httpClient()
	return openai.NewClientWithConfig(clientConfig)
}

func (c *OpenAIClient) complete(ctx context.Context, s *settings, prompt string) (string, error) {
	resp, err := c.client(s).CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: float32(s.temperature),
		MaxTokens:   DefaultMaxTokens,
	})
	if err != nil {
		return "", c.wrapAPIError(err)
	}

	if len(resp.Choices) == 0 {
		return "", apperrors.NewParseError("no content in response", nil)
	}
	text := resp.Choices[0].Message.Content
	if strings.TrimSpace(text) == "" {
		return "", apperrors.NewParseError("empty response from API", nil)
	}
	return text, nil
}

func (c *OpenAIClient) listModels(ctx context.Context, s *settings) ([]string, error) {
	list, err := c.client(s).ListModels(ctx)
	if err != nil {
		return nil, c.wrapAPIError(err)
	}
	ids := make([]string, 0, len(list.Models))
	for _, m := range list.Models {
		ids = append(ids, m.ID)
	}
	return ids, nil
}

// wrapAPIError maps go-openai errors onto the application taxonomy.
func (c *OpenAIClient) wrapAPIError(err error) error {
	if err == nil {
		return nil
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return c.requestError(apiErr.HTTPStatusCode, apiErr.Message)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return c.requestError(reqErr.HTTPStatusCode, string(reqErr.Body))
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return apperrors.NewParseError("malformed response", err)
	}

	return wrapTransportError(err)
}

func (c *OpenAIClient) requestError(status int, body string) error {
	appErr := apperrors.NewRequestError(c.label, status, body)
	if hint, ok := c.suggestions[status]; ok {
		appErr.WithSuggestion(hint)
	}
	if status == http.StatusUnauthorized {
		appErr.WithSuggestion("Please check your " + c.label + " API key")
	}
	return appErr
}
