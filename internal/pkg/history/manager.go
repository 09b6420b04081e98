// Package history records the outcome of every configuration verification.
package history

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/aicommits/aicommits/internal/pkg/errors"
)

const (
	// DefaultMaxEntries is the default maximum number of journal entries.
	DefaultMaxEntries = 500
)

// Entry is one verification attempt. Tokens are never recorded.
type Entry struct {
	ID         string        `json:"id"`
	Timestamp  time.Time     `json:"timestamp"`
	ClientID   string        `json:"client_id"`
	ClientName string        `json:"client_name"`
	Provider   string        `json:"provider"`
	Host       string        `json:"host"`
	Model      string        `json:"model"`
	Success    bool          `json:"success"`
	Message    string        `json:"message"`
	ErrorCode  string        `json:"error_code,omitempty"`
	Duration   time.Duration `json:"duration_ns"`
}

// Manager is the journal used by the provider service.
type Manager interface {
	Save(entry *Entry) error
	List(clientID string, limit int) ([]*Entry, error)
	Clear() error
}

// FileManager keeps the journal as a JSON array on disk.
type FileManager struct {
	filePath   string
	maxEntries int
	mu         sync.Mutex
}

// NewFileManager creates a journal at filePath holding at most maxEntries.
func NewFileManager(filePath string, maxEntries int) *FileManager {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &FileManager{
		filePath:   filePath,
		maxEntries: maxEntries,
	}
}

// Save appends entry, assigning an id and timestamp when missing. The
// oldest entries are dropped once the journal exceeds its limit.
func (m *FileManager) Save(entry *Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}

	entries, err := m.load()
	if err != nil {
		return err
	}

	entries = append(entries, entry)
	if overflow := len(entries) - m.maxEntries; overflow > 0 {
		entries = entries[overflow:]
	}
	return m.write(entries)
}

// List returns the most recent entries, oldest first. An empty clientID
// selects every client; a non-positive limit returns everything.
func (m *FileManager) List(clientID string, limit int) ([]*Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entries, err := m.load()
	if err != nil {
		return nil, err
	}

	if clientID != "" {
		filtered := entries[:0]
		for _, e := range entries {
			if e.ClientID == clientID {
				filtered = append(filtered, e)
			}
		}
		entries = filtered
	}

	if limit > 0 && len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	return entries, nil
}

// Clear empties the journal.
func (m *FileManager) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.write([]*Entry{})
}

func (m *FileManager) load() ([]*Entry, error) {
	data, err := os.ReadFile(m.filePath)
	if os.IsNotExist(err) {
		return []*Entry{}, nil
	}
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrFileSystemError, "failed to read history")
	}

	var entries []*Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrConfigCorruption, fmt.Sprintf("failed to parse history file %s", m.filePath)).
			WithSuggestion("Run 'aicommits history clear' to reset the journal")
	}
	return entries, nil
}

// write replaces the journal through a temp file so a crash never leaves a
// truncated array behind.
func (m *FileManager) write(entries []*Entry) error {
	dir := filepath.Dir(m.filePath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return apperrors.Wrap(err, apperrors.ErrFileSystemError, "failed to create history directory")
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrFileSystemError, "failed to marshal history")
	}

	tmp, err := os.CreateTemp(dir, ".history-*.json")
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrFileSystemError, "failed to write history")
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return apperrors.Wrap(err, apperrors.ErrFileSystemError, "failed to write history")
	}
	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return apperrors.Wrap(err, apperrors.ErrFileSystemError, "failed to write history")
	}
	if err := tmp.Close(); err != nil {
		return apperrors.Wrap(err, apperrors.ErrFileSystemError, "failed to write history")
	}
	if err := os.Rename(tmp.Name(), m.filePath); err != nil {
		return apperrors.Wrap(err, apperrors.ErrFileSystemError, "failed to write history")
	}
	return nil
}
