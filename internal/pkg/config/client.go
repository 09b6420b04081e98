package config

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"

	apperrors "github.com/aicommits/aicommits/internal/pkg/errors"
	"github.com/aicommits/aicommits/internal/pkg/secrets"
)

// DefaultTimeoutSeconds is the transport timeout given to new clients.
const DefaultTimeoutSeconds = 30

// OrderedSet is a deduplicated list of strings that keeps insertion order.
type OrderedSet []string

// Add appends v unless it is blank or already present. It reports whether
// the set changed.
func (s *OrderedSet) Add(v string) bool {
	v = strings.TrimSpace(v)
	if v == "" || s.Contains(v) {
		return false
	}
	*s = append(*s, v)
	return true
}

// Contains reports whether v is in the set.
func (s OrderedSet) Contains(v string) bool {
	for _, e := range s {
		if e == v {
			return true
		}
	}
	return false
}

// Values returns a copy of the elements in insertion order.
func (s OrderedSet) Values() []string {
	out := make([]string, len(s))
	copy(out, s)
	return out
}

// ClientConfig is the persisted settings bundle of one provider instance.
//
// The token is not part of it: a token typed into the settings panel is
// staged in memory until the secret store write finishes, and afterwards it
// is read back from the store by ID.
type ClientConfig struct {
	ID            string     `mapstructure:"id"`
	Provider      string     `mapstructure:"provider"`
	DisplayName   string     `mapstructure:"display_name"`
	Host          string     `mapstructure:"host"`
	ProxyURL      string     `mapstructure:"proxy_url"`
	Timeout       int        `mapstructure:"timeout"`
	ModelID       string     `mapstructure:"model_id"`
	Temperature   string     `mapstructure:"temperature"`
	TokenIsStored bool       `mapstructure:"token_is_stored"`
	Hosts         OrderedSet `mapstructure:"hosts"`
	ModelIDs      OrderedSet `mapstructure:"model_ids"`

	mu          sync.Mutex
	stagedToken string
}

// NewClientConfig creates a configuration with a fresh id.
func NewClientConfig(provider, displayName string) *ClientConfig {
	return &ClientConfig{
		ID:          uuid.New().String(),
		Provider:    provider,
		DisplayName: displayName,
		Timeout:     DefaultTimeoutSeconds,
	}
}

// AddHost records h in the known hosts.
func (c *ClientConfig) AddHost(h string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Hosts.Add(h)
}

// AddModelID records m in the known model ids.
func (c *ClientConfig) AddModelID(m string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ModelIDs.Add(m)
}

// KnownHosts returns a snapshot of the known hosts.
func (c *ClientConfig) KnownHosts() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Hosts.Values()
}

// KnownModelIDs returns a snapshot of the known model ids.
func (c *ClientConfig) KnownModelIDs() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ModelIDs.Values()
}

// Clone returns an independent copy with the same id. The staged token is
// carried over.
func (c *ClientConfig) Clone() *ClientConfig {
	c.mu.Lock()
	defer c.mu.Unlock()
	return &ClientConfig{
		ID:            c.ID,
		Provider:      c.Provider,
		DisplayName:   c.DisplayName,
		Host:          c.Host,
		ProxyURL:      c.ProxyURL,
		Timeout:       c.Timeout,
		ModelID:       c.ModelID,
		Temperature:   c.Temperature,
		TokenIsStored: c.TokenIsStored,
		Hosts:         OrderedSet(c.Hosts.Values()),
		ModelIDs:      OrderedSet(c.ModelIDs.Values()),
		stagedToken:   c.stagedToken,
	}
}

// Duplicate returns a copy registered under a new id. The stored token
// belongs to the old id, so the copy starts without one.
func (c *ClientConfig) Duplicate() *ClientConfig {
	d := c.Clone()
	d.ID = uuid.New().String()
	d.DisplayName = c.DisplayName + " (copy)"
	d.TokenIsStored = false
	d.stagedToken = ""
	return d
}

// StageToken keeps t in memory for the next verification or save.
func (c *ClientConfig) StageToken(t string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stagedToken = t
}

// StagedToken returns the token staged in memory, if any.
func (c *ClientConfig) StagedToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stagedToken
}

// ResolveToken returns the staged token when it is not blank, otherwise the
// token stored under the id. Store failures are logged and resolve to "".
func (c *ClientConfig) ResolveToken(ctx context.Context, store secrets.Store) string {
	if t := c.StagedToken(); strings.TrimSpace(t) != "" {
		return t
	}
	if store == nil {
		return ""
	}

	t, err := store.Get(ctx, c.ID)
	if err != nil {
		if !errors.Is(err, secrets.ErrNotFound) {
			apperrors.Warn("%v", apperrors.NewSecretStoreError("get", err))
		}
		return ""
	}
	return t
}

// MarkTokenStored records that a token was written to the secret store.
func (c *ClientConfig) MarkTokenStored() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.TokenIsStored = true
}

// ClearTokenStored records that the stored token was removed.
func (c *ClientConfig) ClearTokenStored() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.TokenIsStored = false
}

// IsTokenStored reports whether a token was written to the secret store.
func (c *ClientConfig) IsTokenStored() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.TokenIsStored
}

// ToMap returns the persisted representation. The token is never included.
func (c *ClientConfig) ToMap() map[string]interface{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return map[string]interface{}{
		"id":              c.ID,
		"provider":        c.Provider,
		"display_name":    c.DisplayName,
		"host":            c.Host,
		"proxy_url":       c.ProxyURL,
		"timeout":         c.Timeout,
		"model_id":        c.ModelID,
		"temperature":     c.Temperature,
		"token_is_stored": c.TokenIsStored,
		"hosts":           c.Hosts.Values(),
		"model_ids":       c.ModelIDs.Values(),
	}
}

// Label is the name shown in lists: the display name, or the provider.
func (c *ClientConfig) Label() string {
	if c.DisplayName != "" {
		return c.DisplayName
	}
	return c.Provider
}
