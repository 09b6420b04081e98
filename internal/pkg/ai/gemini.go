package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"

	"google.golang.org/genai"

	apperrors "github.com/aicommits/aicommits/internal/pkg/errors"
)

const (
	// DefaultGeminiHost is the public Gemini API endpoint.
	DefaultGeminiHost = "https://generativelanguage.googleapis.com"

	// GeminiAPIVersion is the API version in every request path.
	GeminiAPIVersion = "v1beta"

	// maxErrorBody bounds how much of a failed response is kept.
	maxErrorBody = 4 << 10
)

func geminiDescriptor() *Descriptor {
	return &Descriptor{
		Name:               ProviderNameGemini,
		DisplayName:        "Gemini",
		Icon:               "✦",
		DefaultHosts:       []string{DefaultGeminiHost},
		DefaultModelIDs:    []string{"gemini-2.5-flash", "gemini-2.5-pro", "gemini-2.0-flash", "gemini-pro"},
		DefaultTemperature: "0.7",
		Temperature:        Range{Min: 0, Max: 2},
		RequiresToken:      true,
		New: func(b *base) Client {
			return &GeminiClient{base: b}
		},
	}
}

// GeminiClient talks to the Gemini generateContent endpoint over plain HTTP.
type GeminiClient struct {
	*base
}

type geminiRequest struct {
	Contents         []geminiContent        `json:"contents"`
	GenerationConfig geminiGenerationConfig `json:"generationConfig"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiGenerationConfig struct {
	Temperature float64 `json:"temperature"`
}

// geminiResponse keeps only what is read; unknown fields are ignored.
type geminiResponse struct {
	Candidates []struct {
		Content *struct {
			Parts []struct {
				Text *string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason   string `json:"blockReason,omitempty"`
		SafetyRatings []struct {
			Category    string `json:"category"`
			Probability string `json:"probability"`
		} `json:"safetyRatings"`
	} `json:"promptFeedback,omitempty"`
}

// GenerateCommitMessage sends prompt to the configured model.
func (c *GeminiClient) GenerateCommitMessage(ctx context.Context, prompt string) (string, error) {
	return c.generate(ctx, prompt, c.complete)
}

// VerifyConfiguration sends the canary prompt once.
func (c *GeminiClient) VerifyConfiguration(ctx context.Context, host, proxy, timeout, token string) (string, error) {
	return c.verify(ctx, host, proxy, timeout, token, c.complete)
}

// RefreshModels lists the models through the genai SDK.
func (c *GeminiClient) RefreshModels(ctx context.Context) error {
	return c.refresh(ctx, c.listModels)
}

// Clone returns a client over an independent copy of the configuration.
func (c *GeminiClient) Clone() Client {
	return &GeminiClient{base: c.clone()}
}

// generateContentURL builds <host>/v1beta/models/<model>:generateContent?key=<token>.
func generateContentURL(host, model, token string) string {
	return strings.TrimRight(host, "/") + "/" + GeminiAPIVersion + "/models/" +
		url.PathEscape(model) + ":generateContent?key=" + url.QueryEscape(token)
}

func (c *GeminiClient) complete(ctx context.Context, s *settings, prompt string) (string, error) {
	body, err := json.Marshal(geminiRequest{
		Contents:         []geminiContent{{Parts: []geminiPart{{Text: prompt}}}},
		GenerationConfig: geminiGenerationConfig{Temperature: s.temperature},
	})
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.ErrAIProviderFailed, "failed to marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, generateContentURL(s.host, s.model, s.token), bytes.NewReader(body))
	if err != nil {
		return "", apperrors.NewConfigurationError("host", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient().Do(req)
	if err != nil {
		return "", wrapTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		appErr := apperrors.NewRequestError("Gemini", resp.StatusCode, string(snippet))
		appErr.RetryAfter = apperrors.ParseRetryAfterHeader(resp.Header.Get("Retry-After"))
		return "", appErr
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", wrapTransportError(err)
	}
	return parseGeminiResponse(respBody)
}

// parseGeminiResponse returns the text of the first part of the first
// candidate. Further candidates and parts are ignored.
func parseGeminiResponse(body []byte) (string, error) {
	var resp geminiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", apperrors.NewParseError("malformed response", err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil ||
		len(resp.Candidates[0].Content.Parts) == 0 || resp.Candidates[0].Content.Parts[0].Text == nil {
		appErr := apperrors.NewParseError("no content in response", nil)
		if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
			appErr.WithContext("block_reason", resp.PromptFeedback.BlockReason)
		}
		return "", appErr
	}

	text := *resp.Candidates[0].Content.Parts[0].Text
	if strings.TrimSpace(text) == "" {
		return "", apperrors.NewParseError("empty response from API", nil)
	}
	return text, nil
}

func (c *GeminiClient) listModels(ctx context.Context, s *settings) ([]string, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     s.token,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: s.httpClient(),
		HTTPOptions: genai.HTTPOptions{
			BaseURL:    s.host + "/",
			APIVersion: GeminiAPIVersion,
		},
	})
	if err != nil {
		return nil, apperrors.NewAIProviderError("Gemini", err)
	}

	var ids []string
	for model, err := range client.Models.All(ctx) {
		if err != nil {
			return nil, wrapGenAIError(err)
		}
		if id := strings.TrimPrefix(model.Name, "models/"); id != "" {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func wrapGenAIError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apperrors.NewRequestError("Gemini", apiErr.Code, apiErr.Message)
	}
	return wrapTransportError(err)
}
