// Package notify carries user-visible warnings out of background tasks.
package notify

import (
	"fmt"
	"sync"

	apperrors "github.com/aicommits/aicommits/internal/pkg/errors"
)

// Level is the severity of a notification.
type Level int

const (
	Info Level = iota
	Warning
	Error
)

func (l Level) String() string {
	switch l {
	case Info:
		return "info"
	case Warning:
		return "warning"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// Notification is one message for the user.
type Notification struct {
	Level   Level
	Title   string
	Message string
}

// Notifier delivers notifications. Implementations must be safe for
// concurrent use.
type Notifier interface {
	Notify(n Notification)
}

// UnableToSaveToken is sent when a token could not be written to the
// secret store.
func UnableToSaveToken(err error) Notification {
	return Notification{
		Level:   Error,
		Title:   "Token not saved",
		Message: fmt.Sprintf("Unable to save token: %s", apperrors.SanitizeErrorMessage(err.Error())),
	}
}

// UnableToRefreshModels is sent when a model list refresh failed.
func UnableToRefreshModels(client string, err error) Notification {
	return Notification{
		Level:   Warning,
		Title:   "Models not refreshed",
		Message: fmt.Sprintf("Unable to refresh models for %s: %s", client, apperrors.SanitizeErrorMessage(err.Error())),
	}
}

// UnableToDeleteToken is sent when a removed client's token stays behind.
func UnableToDeleteToken(client string, err error) Notification {
	return Notification{
		Level:   Warning,
		Title:   "Token not deleted",
		Message: fmt.Sprintf("Unable to delete token of %s: %s", client, apperrors.SanitizeErrorMessage(err.Error())),
	}
}

// Log writes notifications to the default logger.
type Log struct{}

func (Log) Notify(n Notification) {
	switch n.Level {
	case Error:
		apperrors.Error("%s: %s", n.Title, n.Message)
	case Warning:
		apperrors.Warn("%s: %s", n.Title, n.Message)
	default:
		apperrors.Info("%s: %s", n.Title, n.Message)
	}
}

// Recorder keeps every notification in memory.
type Recorder struct {
	mu   sync.Mutex
	sent []Notification
}

func (r *Recorder) Notify(n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
}

// Sent returns a copy of the notifications received so far.
func (r *Recorder) Sent() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Notification, len(r.sent))
	copy(out, r.sent)
	return out
}

// Multi fans a notification out to several notifiers.
type Multi []Notifier

func (m Multi) Notify(n Notification) {
	for _, x := range m {
		x.Notify(n)
	}
}
