// Package ai provides the LLM client contract and its provider implementations.
package ai

import (
	"context"
	"strings"

	"github.com/aicommits/aicommits/internal/pkg/config"
	apperrors "github.com/aicommits/aicommits/internal/pkg/errors"
)

const (
	// CanaryPrompt is the message sent when verifying a configuration.
	CanaryPrompt = "Hello, can you hear me?"

	// VerifiedMessage is shown after a successful verification.
	VerifiedMessage = "Configuration verified successfully!"

	// InvalidMessagePrefix starts the message of a failed verification.
	InvalidMessagePrefix = "Invalid configuration: "

	// DefaultMaxTokens bounds the length of generated replies.
	DefaultMaxTokens = 500
)

// Client is the capability set every provider implements.
//
// A Client wraps one ClientConfig. Network and parse failures are returned
// as *apperrors.AppError and never panic past the client.
type Client interface {
	ID() string
	Name() string
	Configuration() *config.ClientConfig
	Icon() string
	Hosts() []string
	ModelIDs() []string

	// GenerateCommitMessage sends prompt with the saved configuration and
	// returns the trimmed reply.
	GenerateCommitMessage(ctx context.Context, prompt string) (string, error)

	// RefreshModels lists the models offered by the provider and records them
	// in the configuration.
	RefreshModels(ctx context.Context) error

	// VerifyConfiguration sends the canary prompt using the given host, proxy,
	// timeout and token together with the configured model and temperature.
	// A blank token falls back to the stored one. It never changes the
	// configuration.
	VerifyConfiguration(ctx context.Context, host, proxy, timeout, token string) (string, error)

	Clone() Client
}

// Outcome is the result of one verification attempt.
type Outcome struct {
	Success bool
	Message string
	Reply   string
	Err     error
}

// NewOutcome maps a verification result to what the user sees.
func NewOutcome(reply string, err error) Outcome {
	if err != nil {
		return Outcome{
			Message: InvalidMessagePrefix + apperrors.SanitizeErrorMessage(err.Error()),
			Err:     err,
		}
	}
	return Outcome{
		Success: true,
		Message: VerifiedMessage,
		Reply:   strings.TrimSpace(reply),
	}
}

// ErrorCode returns the code of a failed outcome, or "" on success.
func (o Outcome) ErrorCode() string {
	if appErr := apperrors.GetAppError(o.Err); appErr != nil {
		return appErr.Code.String()
	}
	if o.Err != nil {
		return "Unknown"
	}
	return ""
}
