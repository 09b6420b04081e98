package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// genNonEmptyAlphaString generates lowercase strings with length between min
// and max without the discard rate of SuchThat filters.
func genNonEmptyAlphaString(minLen, maxLen int) gopter.Gen {
	return gen.IntRange(minLen, maxLen).FlatMap(func(length interface{}) gopter.Gen {
		n := length.(int)
		return gen.SliceOfN(n, gen.Rune()).Map(func(runes []rune) string {
			for i := range runes {
				runes[i] = 'a' + (runes[i]%26+26)%26
			}
			return string(runes)
		})
	}, reflect.TypeOf(""))
}

func newInitialisedManager(t *testing.T) (*ViperManager, string) {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), ".aicommits", "config.yaml")
	mgr, err := NewManager(configPath)
	require.NoError(t, err)
	require.NoError(t, mgr.Init())
	return mgr, configPath
}

// Property: for any key set in the file and in the environment, the
// environment wins; the file wins over defaults.
func TestConfigPrecedence_Property(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	parameters.Rng.Seed(42)

	properties := gopter.NewProperties(parameters)

	properties.Property("env vars override file values for ui.spinner_style", prop.ForAll(
		func(fileValue, envValue string) bool {
			mgr, configPath := newInitialisedManager(t)
			if err := mgr.Set("ui.spinner_style", fileValue); err != nil {
				t.Logf("Failed to set file value: %v", err)
				return false
			}

			os.Setenv("AICOMMITS_UI_SPINNER_STYLE", envValue)
			defer os.Unsetenv("AICOMMITS_UI_SPINNER_STYLE")

			mgr2, err := NewManager(configPath)
			if err != nil {
				return false
			}
			cfg, err := mgr2.Load()
			if err != nil {
				t.Logf("Failed to load config: %v", err)
				return false
			}
			return cfg.UI.SpinnerStyle == envValue
		},
		genNonEmptyAlphaString(3, 15),
		genNonEmptyAlphaString(3, 15),
	))

	properties.Property("file values override defaults for secrets.path", prop.ForAll(
		func(fileValue string) bool {
			os.Unsetenv("AICOMMITS_SECRETS_PATH")

			mgr, configPath := newInitialisedManager(t)
			if err := mgr.Set("secrets.path", fileValue); err != nil {
				return false
			}

			mgr2, err := NewManager(configPath)
			if err != nil {
				return false
			}
			cfg, err := mgr2.Load()
			if err != nil {
				return false
			}
			return cfg.Secrets.Path == fileValue
		},
		genNonEmptyAlphaString(3, 15),
	))

	properties.TestingRun(t)
}

func TestDefaults(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	mgr, err := NewManager(configPath)
	require.NoError(t, err)

	cfg, err := mgr.Load()
	require.NoError(t, err)

	assert.Empty(t, cfg.Clients)
	assert.Equal(t, "sqlite", cfg.Secrets.Backend)
	assert.Equal(t, filepath.Join(filepath.Dir(configPath), "secrets.db"), cfg.Secrets.Path)
	assert.Equal(t, filepath.Join(filepath.Dir(configPath), "history.json"), cfg.History.FilePath)
	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, 60, cfg.Cache.TTLMinutes)
	assert.False(t, cfg.Log.Verbose)
}

func TestSaveLoad_ClientsRoundTrip(t *testing.T) {
	mgr, configPath := newInitialisedManager(t)

	cl := NewClientConfig("gemini", "Work Gemini")
	cl.Host = "https://generativelanguage.googleapis.com"
	cl.AddHost(cl.Host)
	cl.ModelID = "gemini-pro"
	cl.AddModelID("gemini-pro")
	cl.AddModelID("gemini-1.5-flash")
	cl.Temperature = "0.7"
	cl.ProxyURL = "http://proxy.local:3128"
	cl.Timeout = 45
	cl.MarkTokenStored()
	cl.StageToken("AIza-never-on-disk")

	cfg, err := mgr.Load()
	require.NoError(t, err)
	require.NoError(t, cfg.AddClient(cl))
	require.NoError(t, mgr.Save(cfg))

	raw, err := os.ReadFile(configPath)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "AIza-never-on-disk")

	mgr2, err := NewManager(configPath)
	require.NoError(t, err)
	loaded, err := mgr2.Load()
	require.NoError(t, err)

	require.Len(t, loaded.Clients, 1)
	got := loaded.Clients[0]
	assert.Equal(t, cl.ID, loaded.Active)
	assert.Equal(t, cl.ToMap(), got.ToMap())
	assert.Empty(t, got.StagedToken())
	assert.True(t, got.IsTokenStored())
}

func TestLoad_RejectsClientWithoutID(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("clients:\n  - provider: gemini\n"), 0600))

	mgr, err := NewManager(configPath)
	require.NoError(t, err)
	_, err = mgr.Load()
	assert.Error(t, err)
}

func TestLoad_NumericTemperatureIsAccepted(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	yaml := "clients:\n  - id: abc-123\n    provider: gemini\n    temperature: 0.5\n    timeout: 10\n"
	require.NoError(t, os.WriteFile(configPath, []byte(yaml), 0600))

	mgr, err := NewManager(configPath)
	require.NoError(t, err)
	cfg, err := mgr.Load()
	require.NoError(t, err)

	require.Len(t, cfg.Clients, 1)
	assert.Equal(t, "0.5", cfg.Clients[0].Temperature)
	assert.Equal(t, 10, cfg.Clients[0].Timeout)
}

func TestSet_RejectsClients(t *testing.T) {
	mgr, _ := newInitialisedManager(t)
	assert.Error(t, mgr.Set("clients", "x"))
}

func TestSetAndGet_ConvertsTypes(t *testing.T) {
	mgr, _ := newInitialisedManager(t)

	require.NoError(t, mgr.Set("cache.max_entries", "42"))
	v, err := mgr.Get("cache.max_entries")
	require.NoError(t, err)
	assert.Equal(t, "42", v)

	assert.Error(t, mgr.Set("cache.enabled", "not-a-bool"))

	_, err = mgr.Get("does.not.exist")
	assert.Error(t, err)
}

// SetOverride only affects the current process.
func TestSetOverrideDoesNotPersist(t *testing.T) {
	mgr, configPath := newInitialisedManager(t)
	require.NoError(t, mgr.Set("log.verbose", "false"))

	mgr.SetOverride("log.verbose", true)
	cfg, err := mgr.Load()
	require.NoError(t, err)
	assert.True(t, cfg.Log.Verbose)

	mgr2, err := NewManager(configPath)
	require.NoError(t, err)
	cfg2, err := mgr2.Load()
	require.NoError(t, err)
	assert.False(t, cfg2.Log.Verbose, "override persisted to file")
}

func TestCustomConfigPath(t *testing.T) {
	tmpDir := t.TempDir()
	defaultPath := filepath.Join(tmpDir, "default.yaml")
	customPath := filepath.Join(tmpDir, "custom.yaml")

	defaultMgr, err := NewManager(defaultPath)
	require.NoError(t, err)
	require.NoError(t, defaultMgr.Init())
	require.NoError(t, defaultMgr.Set("secrets.backend", "sqlite"))

	customMgr, err := NewManager(customPath)
	require.NoError(t, err)
	require.NoError(t, customMgr.Init())
	require.NoError(t, customMgr.Set("secrets.backend", "memory"))

	loadMgr, err := NewManager(customPath)
	require.NoError(t, err)
	cfg, err := loadMgr.Load()
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Secrets.Backend)
	assert.Equal(t, customPath, loadMgr.GetConfigPath())
}

func TestInit_FailsWhenPresent(t *testing.T) {
	mgr, _ := newInitialisedManager(t)
	assert.Error(t, mgr.Init())
	assert.True(t, mgr.ConfigExists())
}

func TestConfigFilePermissions(t *testing.T) {
	if os.PathSeparator == '\\' {
		t.Skip("Skipping file permissions test on Windows")
	}
	mgr, configPath := newInitialisedManager(t)
	cfg, err := mgr.Load()
	require.NoError(t, err)
	require.NoError(t, mgr.Save(cfg))

	info, err := os.Stat(configPath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

// Property: once the storage notice is marked shown it stays shown for new
// manager instances.
func TestStorageNoticePersistence_Property(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 20
	parameters.Rng.Seed(42)

	properties := gopter.NewProperties(parameters)

	properties.Property("MarkStorageNoticeShown persists across managers", prop.ForAll(
		func(_ int) bool {
			configPath := filepath.Join(t.TempDir(), ".aicommits", "config.yaml")

			mgr1, err := NewManager(configPath)
			if err != nil || mgr1.IsStorageNoticeShown() {
				return false
			}
			if err := mgr1.MarkStorageNoticeShown(); err != nil {
				t.Logf("Failed to mark notice: %v", err)
				return false
			}

			mgr2, err := NewManager(configPath)
			if err != nil {
				return false
			}
			return mgr2.IsStorageNoticeShown()
		},
		gen.Int(),
	))

	properties.TestingRun(t)
}
