// Package config provides configuration management for aicommits.
package config

import (
	"fmt"
	"strings"
)

// Config represents the complete aicommits configuration.
type Config struct {
	Active   string          `mapstructure:"active"`
	Clients  []*ClientConfig `mapstructure:"clients"`
	Secrets  SecretsConfig   `mapstructure:"secrets"`
	Cache    CacheConfig     `mapstructure:"cache"`
	History  HistoryConfig   `mapstructure:"history"`
	UI       UIConfig        `mapstructure:"ui"`
	Log      LogConfig       `mapstructure:"log"`
	Security SecurityConfig  `mapstructure:"security"`
}

// SecretsConfig selects where tokens are kept.
type SecretsConfig struct {
	Backend string `mapstructure:"backend"`
	Path    string `mapstructure:"path"`
}

// CacheConfig contains model list cache settings.
type CacheConfig struct {
	Enabled    bool `mapstructure:"enabled"`
	MaxEntries int  `mapstructure:"max_entries"`
	TTLMinutes int  `mapstructure:"ttl_minutes"`
}

// HistoryConfig contains verification journal settings.
type HistoryConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	MaxEntries int    `mapstructure:"max_entries"`
	FilePath   string `mapstructure:"file_path"`
}

// UIConfig contains UI-related settings.
type UIConfig struct {
	ColorEnabled bool   `mapstructure:"color_enabled"`
	SpinnerStyle string `mapstructure:"spinner_style"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Verbose bool `mapstructure:"verbose"`
}

// SecurityConfig contains security-related settings.
type SecurityConfig struct {
	// StorageNoticeShown is set once the token storage notice was printed.
	StorageNoticeShown bool `mapstructure:"storage_notice_shown"`
}

// Manager defines the interface for configuration management.
type Manager interface {
	Load() (*Config, error)
	Save(config *Config) error
	Set(key string, value string) error
	Get(key string) (string, error)
	Init() error
	List() map[string]interface{}
	GetConfigPath() string
}

// FindClient looks a client up by exact id, then by display name (case
// insensitive), then by a unique id prefix of at least four characters.
func (c *Config) FindClient(ref string) (*ClientConfig, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		if c.Active == "" {
			return nil, fmt.Errorf("no client selected and no active client configured")
		}
		ref = c.Active
	}

	for _, cl := range c.Clients {
		if cl.ID == ref {
			return cl, nil
		}
	}
	for _, cl := range c.Clients {
		if strings.EqualFold(cl.DisplayName, ref) {
			return cl, nil
		}
	}

	if len(ref) >= 4 {
		var match *ClientConfig
		for _, cl := range c.Clients {
			if strings.HasPrefix(cl.ID, ref) {
				if match != nil {
					return nil, fmt.Errorf("client reference %q is ambiguous", ref)
				}
				match = cl
			}
		}
		if match != nil {
			return match, nil
		}
	}

	return nil, fmt.Errorf("client %q not found", ref)
}

// ActiveClient returns the client selected with 'client use'.
func (c *Config) ActiveClient() (*ClientConfig, error) {
	return c.FindClient("")
}

// AddClient appends cl. The first client added becomes active.
func (c *Config) AddClient(cl *ClientConfig) error {
	for _, existing := range c.Clients {
		if existing.ID == cl.ID {
			return fmt.Errorf("client with id %s already exists", cl.ID)
		}
	}
	c.Clients = append(c.Clients, cl)
	if c.Active == "" {
		c.Active = cl.ID
	}
	return nil
}

// RemoveClient drops the client with the given id and returns it. When the
// active client is removed the first remaining client becomes active.
func (c *Config) RemoveClient(id string) (*ClientConfig, bool) {
	for i, cl := range c.Clients {
		if cl.ID != id {
			continue
		}
		c.Clients = append(c.Clients[:i], c.Clients[i+1:]...)
		if c.Active == id {
			c.Active = ""
			if len(c.Clients) > 0 {
				c.Active = c.Clients[0].ID
			}
		}
		return cl, true
	}
	return nil, false
}

// ReplaceClient swaps in cl for the client with the same id.
func (c *Config) ReplaceClient(cl *ClientConfig) bool {
	for i, existing := range c.Clients {
		if existing.ID == cl.ID {
			c.Clients[i] = cl
			return true
		}
	}
	return false
}
