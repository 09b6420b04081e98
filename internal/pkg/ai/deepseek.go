package ai

import "net/http"

const (
	// DefaultDeepSeekModel is the default model for DeepSeek.
	DefaultDeepSeekModel = "deepseek-chat"

	// DefaultDeepSeekHost is the default API endpoint for DeepSeek.
	DefaultDeepSeekHost = "https://api.deepseek.com/v1"
)

// DeepSeek uses an OpenAI-compatible API, so it is served by OpenAIClient.
func deepSeekDescriptor() *Descriptor {
	return &Descriptor{
		Name:               ProviderNameDeepSeek,
		DisplayName:        "DeepSeek",
		Icon:               "◆",
		DefaultHosts:       []string{DefaultDeepSeekHost},
		DefaultModelIDs:    []string{DefaultDeepSeekModel, "deepseek-reasoner"},
		DefaultTemperature: "1.0",
		Temperature:        Range{Min: 0, Max: 2},
		RequiresToken:      true,
		New: func(b *base) Client {
			return &OpenAIClient{
				base:  b,
				label: "DeepSeek",
				suggestions: map[int]string{
					http.StatusPaymentRequired:     "Your DeepSeek balance is exhausted, please top up at platform.deepseek.com",
					http.StatusUnprocessableEntity: "Please check the model id and temperature",
				},
			}
		},
	}
}
