// Package security masks and checks provider tokens.
package security

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
)

// APIKeyFormat holds the expected shape of a token per provider. A nil
// pattern means any non-empty token is accepted.
var APIKeyFormat = map[string]*regexp.Regexp{
	"gemini":    regexp.MustCompile(`^AIza[0-9A-Za-z_-]{35}$`),
	"openai":    regexp.MustCompile(`^sk-[a-zA-Z0-9_-]{20,}$`),
	"deepseek":  regexp.MustCompile(`^sk-[a-zA-Z0-9]{20,}$`),
	"anthropic": regexp.MustCompile(`^sk-ant-[a-zA-Z0-9_-]{20,}$`),
}

// keyPrefix is shown in format hints.
var keyPrefix = map[string]string{
	"gemini":    "AIza...",
	"openai":    "sk-...",
	"deepseek":  "sk-...",
	"anthropic": "sk-ant-...",
}

// MaskAPIKey masks an API key, showing only the last 4 characters.
func MaskAPIKey(key string) string {
	if len(key) <= 4 {
		return "****"
	}
	return strings.Repeat("*", len(key)-4) + key[len(key)-4:]
}

// ValidateAPIKeyFormat checks a token against the known shape for provider.
// Providers that need no token (ollama) always pass. The result is advisory:
// callers warn on mismatch but still store the token, since proxies and
// self-hosted gateways issue tokens of their own shape.
func ValidateAPIKeyFormat(provider, apiKey string, required bool) error {
	if !required {
		return nil
	}

	if strings.TrimSpace(apiKey) == "" {
		return fmt.Errorf("API key is required for %s provider", provider)
	}

	if len(apiKey) < 20 {
		return fmt.Errorf("API key appears to be invalid (too short)")
	}

	if pattern := APIKeyFormat[provider]; pattern != nil && !pattern.MatchString(apiKey) {
		return fmt.Errorf("API key format appears invalid for %s provider (expected format: %s)", provider, keyPrefix[provider])
	}

	return nil
}

// Fingerprint returns a short stable digest of a token, safe to use in
// cache keys and log lines.
func Fingerprint(token string) string {
	if token == "" {
		return "none"
	}
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:6])
}

var logPatterns = []struct {
	regex       *regexp.Regexp
	replacement string
}{
	{regexp.MustCompile(`sk-[a-zA-Z0-9_-]{20,}`), "sk-****"},
	{regexp.MustCompile(`AIza[0-9A-Za-z_-]{20,}`), "AIza****"},
	{regexp.MustCompile(`([?&]key=)[^&\s"']+`), "${1}****"},
	{regexp.MustCompile(`(?i)(x-api-key|x-goog-api-key)\s*:\s*[^\s"']+`), "$1: ****"},
	{regexp.MustCompile(`Bearer\s+[a-zA-Z0-9._-]+`), "Bearer ****"},
	{regexp.MustCompile(`(?i)(api[_-]?key|apikey|api_secret|secret[_-]?key|token)\s*[:=]\s*["']?[a-zA-Z0-9._-]+["']?`), "$1=****"},
	{regexp.MustCompile(`(?i)(password|passwd|pwd)\s*[:=]\s*["']?[^\s"']+["']?`), "$1=****"},
}

// SanitizeForLogging masks tokens, key query parameters, auth headers and
// password assignments in s.
func SanitizeForLogging(s string) string {
	result := s
	for _, p := range logPatterns {
		result = p.regex.ReplaceAllString(result, p.replacement)
	}
	return result
}

// StorageNotice is printed the first time a token is written to the local
// SQLite secret store.
const StorageNotice = `
⚠️  TOKEN STORAGE NOTICE ⚠️

aicommits keeps provider tokens in a local SQLite database, separate from
config.yaml. The file is created with owner-only permissions but is not
encrypted. Please ensure you:

1. Keep the secrets file out of backups and dotfile repositories
2. Use 'aicommits client remove' to delete a client together with its token
3. Set secrets.backend to "memory" on shared machines

`
