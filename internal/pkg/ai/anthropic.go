package ai

import (
	"context"
	"errors"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	apperrors "github.com/aicommits/aicommits/internal/pkg/errors"
)

const (
	// DefaultAnthropicHost is the Anthropic API base URL.
	DefaultAnthropicHost = "https://api.anthropic.com"

	// DefaultAnthropicModel is the default model for Anthropic.
	DefaultAnthropicModel = "claude-sonnet-4-5"
)

func anthropicDescriptor() *Descriptor {
	return &Descriptor{
		Name:               ProviderNameAnthropic,
		DisplayName:        "Anthropic",
		Icon:               "✳",
		DefaultHosts:       []string{DefaultAnthropicHost},
		DefaultModelIDs:    []string{DefaultAnthropicModel, "claude-haiku-4-5", "claude-opus-4-1"},
		DefaultTemperature: "0.7",
		Temperature:        Range{Min: 0, Max: 1},
		RequiresToken:      true,
		New: func(b *base) Client {
			return &AnthropicClient{base: b}
		},
	}
}

// AnthropicClient talks to the Messages API through the official SDK.
type AnthropicClient struct {
	*base
}

// GenerateCommitMessage sends prompt to the configured model.
func (c *AnthropicClient) GenerateCommitMessage(ctx context.Context, prompt string) (string, error) {
	return c.generate(ctx, prompt, c.complete)
}

// VerifyConfiguration sends the canary prompt once.
func (c *AnthropicClient) VerifyConfiguration(ctx context.Context, host, proxy, timeout, token string) (string, error) {
	return c.verify(ctx, host, proxy, timeout, token, c.complete)
}

// RefreshModels lists the models available to the token.
func (c *AnthropicClient) RefreshModels(ctx context.Context) error {
	return c.refresh(ctx, c.listModels)
}

// Clone returns a client over an independent copy of the configuration.
func (c *AnthropicClient) Clone() Client {
	return &AnthropicClient{base: c.clone()}
}

// client disables the SDK retries; retrying is decided by the caller.
func (c *AnthropicClient) client(s *settings) anthropic.Client {
	return anthropic.NewClient(
		option.WithAPIKey(s.token),
		option.WithBaseURL(s.host+"/"),
		option.WithHTTPClient(s.httpClient()),
		option.WithMaxRetries(0),
	)
}

func (c *AnthropicClient) complete(ctx context.Context, s *settings, prompt string) (string, error) {
	client := c.client(s)
	message, err := client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(s.model),
		MaxTokens:   DefaultMaxTokens,
		Messages:    []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock(prompt))},
		Temperature: anthropic.Float(s.temperature),
	})
	if err != nil {
		return "", wrapAnthropicError(err)
	}

	var found bool
	var sb strings.Builder
	for _, block := range message.Content {
		switch variant := block.AsAny().(type) {
		case anthropic.TextBlock:
			found = true
			sb.WriteString(variant.Text)
		}
	}
	if !found {
		return "", apperrors.NewParseError("no content in response", nil)
	}
	if strings.TrimSpace(sb.String()) == "" {
		return "", apperrors.NewParseError("empty response from API", nil)
	}
	return sb.String(), nil
}

func (c *AnthropicClient) listModels(ctx context.Context, s *settings) ([]string, error) {
	client := c.client(s)
	page, err := client.Models.List(ctx, anthropic.ModelListParams{})
	if err != nil {
		return nil, wrapAnthropicError(err)
	}
	ids := make([]string, 0, len(page.Data))
	for _, m := range page.Data {
		ids = append(ids, m.ID)
	}
	return ids, nil
}

func wrapAnthropicError(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return apperrors.NewRequestError("Anthropic", apiErr.StatusCode, "")
	}
	return wrapTransportError(err)
}
