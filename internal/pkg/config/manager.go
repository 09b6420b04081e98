package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

const (
	// DefaultDirName is the directory under $HOME holding all aicommits files.
	DefaultDirName = ".aicommits"
	// DefaultConfigFileExt is the default config file extension.
	DefaultConfigFileExt = "yaml"
	// EnvPrefix prefixes every environment override.
	EnvPrefix = "AICOMMITS"
)

// ViperManager implements the Manager interface using Viper.
type ViperManager struct {
	v          *viper.Viper
	configPath string
}

// DefaultDir returns ~/.aicommits.
func DefaultDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, DefaultDirName), nil
}

// NewManager creates a new configuration manager.
// If configPath is empty, ~/.aicommits/config.yaml is used. Secret and
// history files default to siblings of the config file.
func NewManager(configPath string) (*ViperManager, error) {
	v := viper.New()
	v.SetConfigType(DefaultConfigFileExt)

	if configPath == "" {
		dir, err := DefaultDir()
		if err != nil {
			return nil, err
		}
		configPath = filepath.Join(dir, "config.yaml")
	}
	v.SetConfigFile(configPath)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults must exist before nested keys can be bound to the environment.
	setDefaults(v, filepath.Dir(configPath))
	bindEnvVars(v)

	return &ViperManager{
		v:          v,
		configPath: configPath,
	}, nil
}

// envKeys lists every scalar key that can be overridden from the environment.
// Clients are structured and only come from the file.
var envKeys = []string{
	"active",
	"secrets.backend",
	"secrets.path",
	"cache.enabled",
	"cache.max_entries",
	"cache.ttl_minutes",
	"history.enabled",
	"history.max_entries",
	"history.file_path",
	"ui.color_enabled",
	"ui.spinner_style",
	"log.verbose",
	"security.storage_notice_shown",
}

// bindEnvVars binds AICOMMITS_<SECTION>_<KEY> for each nested key, which
// AutomaticEnv alone does not resolve during Unmarshal.
func bindEnvVars(v *viper.Viper) {
	for _, key := range envKeys {
		env := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		_ = v.BindEnv(key, env)
	}
}

func setDefaults(v *viper.Viper, dir string) {
	v.SetDefault("active", "")
	v.SetDefault("clients", []map[string]interface{}{})

	v.SetDefault("secrets.backend", "sqlite")
	v.SetDefault("secrets.path", filepath.Join(dir, "secrets.db"))

	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.max_entries", 100)
	v.SetDefault("cache.ttl_minutes", 60)

	v.SetDefault("history.enabled", true)
	v.SetDefault("history.max_entries", 500)
	v.SetDefault("history.file_path", filepath.Join(dir, "history.json"))

	v.SetDefault("ui.color_enabled", true)
	v.SetDefault("ui.spinner_style", "dots")

	v.SetDefault("log.verbose", false)

	v.SetDefault("security.storage_notice_shown", false)
}

// GetConfigPath returns the path to the configuration file.
func (m *ViperManager) GetConfigPath() string {
	return m.configPath
}

// readConfig reads the file if present. A missing file is not an error.
func (m *ViperManager) readConfig() error {
	if err := m.v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok || os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

// Load loads the configuration from file, environment, and defaults.
// Priority: overrides > env > file > defaults
func (m *ViperManager) Load() (*Config, error) {
	if err := m.readConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := m.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	for i, cl := range cfg.Clients {
		if cl == nil || cl.ID == "" {
			return nil, fmt.Errorf("client #%d in %s has no id", i+1, m.configPath)
		}
	}
	return &cfg, nil
}

// Init creates a new configuration file with default values and 0600
// permissions.
func (m *ViperManager) Init() error {
	if _, err := os.Stat(m.configPath); err == nil {
		return fmt.Errorf("config file already exists at %s", m.configPath)
	}
	return m.write(func() error { return m.v.WriteConfigAs(m.configPath) })
}

// write ensures the directory exists, runs fn and restricts permissions.
func (m *ViperManager) write(fn func() error) error {
	if err := os.MkdirAll(filepath.Dir(m.configPath), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := fn(); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	if err := os.Chmod(m.configPath, 0600); err != nil {
		return fmt.Errorf("failed to set config file permissions: %w", err)
	}
	return nil
}

// Save writes the whole configuration. Clients are converted with ToMap so
// that the staged token never reaches the file.
func (m *ViperManager) Save(config *Config) error {
	clients := make([]map[string]interface{}, 0, len(config.Clients))
	for _, cl := range config.Clients {
		clients = append(clients, cl.ToMap())
	}

	m.v.Set("active", config.Active)
	m.v.Set("clients", clients)
	m.v.Set("secrets", map[string]interface{}{
		"backend": config.Secrets.Backend,
		"path":    config.Secrets.Path,
	})
	m.v.Set("cache", map[string]interface{}{
		"enabled":     config.Cache.Enabled,
		"max_entries": config.Cache.MaxEntries,
		"ttl_minutes": config.Cache.TTLMinutes,
	})
	m.v.Set("history", map[string]interface{}{
		"enabled":     config.History.Enabled,
		"max_entries": config.History.MaxEntries,
		"file_path":   config.History.FilePath,
	})
	m.v.Set("ui", map[string]interface{}{
		"color_enabled": config.UI.ColorEnabled,
		"spinner_style": config.UI.SpinnerStyle,
	})
	m.v.Set("log", map[string]interface{}{
		"verbose": config.Log.Verbose,
	})
	m.v.Set("security", map[string]interface{}{
		"storage_notice_shown": config.Security.StorageNoticeShown,
	})

	return m.write(func() error { return m.v.WriteConfigAs(m.configPath) })
}

// Set sets a scalar configuration value by dotted key (e.g. "cache.enabled").
// Clients are edited through the client commands instead.
func (m *ViperManager) Set(key string, value string) error {
	if key == "clients" || strings.HasPrefix(key, "clients.") {
		return fmt.Errorf("clients cannot be set directly; use 'aicommits client set'")
	}
	if err := m.readConfig(); err != nil {
		return err
	}

	convertedValue, err := convertValue(value, m.v.Get(key))
	if err != nil {
		return fmt.Errorf("failed to convert value for key %s: %w", key, err)
	}
	m.v.Set(key, convertedValue)

	return m.write(func() error { return m.v.WriteConfigAs(m.configPath) })
}

// convertValue converts value to the type of the existing value.
func convertValue(value string, existingValue interface{}) (interface{}, error) {
	switch existingValue.(type) {
	case nil:
		return value, nil
	case bool:
		return strconv.ParseBool(value)
	case int, int64:
		return strconv.ParseInt(value, 10, 64)
	case float32, float64:
		return strconv.ParseFloat(value, 64)
	case []interface{}, []string:
		return strings.Split(value, ","), nil
	default:
		return value, nil
	}
}

// Get retrieves a configuration value by key.
func (m *ViperManager) Get(key string) (string, error) {
	if err := m.readConfig(); err != nil {
		return "", err
	}

	value := m.v.Get(key)
	if value == nil {
		return "", fmt.Errorf("key not found: %s", key)
	}
	return fmt.Sprintf("%v", value), nil
}

// List returns all configuration values as a map.
func (m *ViperManager) List() map[string]interface{} {
	_ = m.readConfig()
	return m.v.AllSettings()
}

// SetOverride sets a value for this process only, e.g. from a flag.
func (m *ViperManager) SetOverride(key string, value interface{}) {
	m.v.Set(key, value)
}

// ConfigExists checks if the configuration file exists.
func (m *ViperManager) ConfigExists() bool {
	_, err := os.Stat(m.configPath)
	return err == nil
}

// MarkStorageNoticeShown records that the token storage notice was printed.
func (m *ViperManager) MarkStorageNoticeShown() error {
	return m.Set("security.storage_notice_shown", "true")
}

// IsStorageNoticeShown reports whether the storage notice was printed before.
func (m *ViperManager) IsStorageNoticeShown() bool {
	_ = m.readConfig()
	return m.v.GetBool("security.storage_notice_shown")
}
