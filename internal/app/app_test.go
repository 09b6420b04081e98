package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/aicommits/aicommits/internal/pkg/ai"
	"github.com/aicommits/aicommits/internal/pkg/config"
	apperrors "github.com/aicommits/aicommits/internal/pkg/errors"
	"github.com/aicommits/aicommits/internal/pkg/secrets"
	"github.com/aicommits/aicommits/internal/pkg/ui"
)

// MockSecretStore is a mock implementation of secrets.Store
type MockSecretStore struct {
	mock.Mock
}

func (m *MockSecretStore) Get(ctx context.Context, key string) (string, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Error(1)
}

func (m *MockSecretStore) Set(ctx context.Context, key, value string) error {
	args := m.Called(ctx, key, value)
	return args.Error(0)
}

func (m *MockSecretStore) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

type testEnv struct {
	app     *App
	out     *bytes.Buffer
	cfgPath string
}

func newTestApp(t *testing.T, opts ...Option) *testEnv {
	t.Helper()
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	mgr, err := config.NewManager(cfgPath)
	require.NoError(t, err)

	var out bytes.Buffer
	opts = append([]Option{
		WithStore(secrets.NewMemoryStore()),
		WithRetry(apperrors.RetryConfig{MaxAttempts: 2, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1}),
	}, opts...)
	a, err := New(mgr, ui.NewNonInteractiveManager(&out), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	return &testEnv{app: a, out: &out, cfgPath: cfgPath}
}

func (e *testEnv) reload(t *testing.T) *config.Config {
	t.Helper()
	mgr, err := config.NewManager(e.cfgPath)
	require.NoError(t, err)
	cfg, err := mgr.Load()
	require.NoError(t, err)
	return cfg
}

func geminiServer(t *testing.T, status int, body string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(status)
		fmt.Fprint(w, body)
	}))
	t.Cleanup(server.Close)
	return server, &calls
}

const pong = `{"candidates":[{"content":{"parts":[{"text":"pong"}]}}]}`

func TestAddClient_PersistsAndActivates(t *testing.T) {
	env := newTestApp(t)

	c, err := env.app.AddClient(ai.ProviderNameGemini, "work")
	require.NoError(t, err)
	_, err = env.app.AddClient(ai.ProviderNameOllama, "")
	require.NoError(t, err)

	cfg := env.reload(t)
	require.Len(t, cfg.Clients, 2)
	assert.Equal(t, c.ID(), cfg.Active)
	assert.Equal(t, "work", cfg.Clients[0].DisplayName)
	assert.Equal(t, ai.DefaultGeminiHost, cfg.Clients[0].Host)
	assert.Equal(t, ai.DefaultOllamaHost, cfg.Clients[1].Host)
}

func TestAddClient_UnknownProvider(t *testing.T) {
	env := newTestApp(t)
	_, err := env.app.AddClient("watson", "")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrUnknownProvider))
}

func TestCloneAndUseClient(t *testing.T) {
	env := newTestApp(t)
	c, err := env.app.AddClient(ai.ProviderNameGemini, "work")
	require.NoError(t, err)
	require.NoError(t, env.app.SetField("work", FieldModel, "gemini-pro"))

	clone, err := env.app.CloneClient("work", "")
	require.NoError(t, err)
	assert.NotEqual(t, c.ID(), clone.ID())
	assert.Equal(t, "work (copy)", clone.Configuration().DisplayName)
	assert.Equal(t, "gemini-pro", clone.Configuration().ModelID)
	assert.False(t, clone.Configuration().IsTokenStored())

	_, err = env.app.UseClient(clone.ID())
	require.NoError(t, err)
	assert.Equal(t, clone.ID(), env.reload(t).Active)
}

func TestSetField(t *testing.T) {
	env := newTestApp(t)
	_, err := env.app.AddClient(ai.ProviderNameAnthropic, "claude")
	require.NoError(t, err)

	require.NoError(t, env.app.SetField("", FieldTimeout, "45"))
	require.NoError(t, env.app.SetField("", FieldHost, "https://proxy.example.test"))
	require.NoError(t, env.app.SetField("", FieldTemperature, "0.2"))
	require.NoError(t, env.app.SetField("", FieldName, "claude-work"))

	tests := []struct {
		name  string
		key   string
		value string
		code  apperrors.ErrorCode
	}{
		{"temperature above provider range", FieldTemperature, "1.5", apperrors.ErrInvalidConfig},
		{"negative timeout", FieldTimeout, "-1", apperrors.ErrInvalidConfig},
		{"relative host", FieldHost, "example.test", apperrors.ErrInvalidConfig},
		{"unknown field", "color", "blue", apperrors.ErrInvalidArguments},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := env.app.SetField("", tt.key, tt.value)
			assert.True(t, apperrors.HasCode(err, tt.code), "got %v", err)
		})
	}

	cl := env.reload(t).Clients[0]
	assert.Equal(t, 45, cl.Timeout)
	assert.Equal(t, "https://proxy.example.test", cl.Host)
	assert.Equal(t, "0.2", cl.Temperature)
	assert.Equal(t, "claude-work", cl.DisplayName)
	assert.Contains(t, cl.KnownHosts(), "https://proxy.example.test")
}

func TestSetToken_StoresOutsideConfigFile(t *testing.T) {
	store := secrets.NewMemoryStore()
	env := newTestApp(t, WithStore(store))
	c, err := env.app.AddClient(ai.ProviderNameGemini, "work")
	require.NoError(t, err)

	stored, err := env.app.SetToken(context.Background(), "work", "AIza-secret-token")
	require.NoError(t, err)
	assert.True(t, stored)

	token, err := store.Get(context.Background(), c.ID())
	require.NoError(t, err)
	assert.Equal(t, "AIza-secret-token", token)

	assert.True(t, env.reload(t).Clients[0].IsTokenStored())
	raw, err := os.ReadFile(env.cfgPath)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "AIza-secret-token")
}

func TestSetToken_StoreFailureNotifies(t *testing.T) {
	store := new(MockSecretStore)
	env := newTestApp(t, WithStore(store))
	c, err := env.app.AddClient(ai.ProviderNameGemini, "work")
	require.NoError(t, err)

	store.On("Set", mock.Anything, c.ID(), "tok").Return(errors.New("disk full"))

	stored, err := env.app.SetToken(context.Background(), "work", "tok")
	assert.False(t, stored)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrSecretStore))
	assert.Contains(t, env.out.String(), "Unable to save token: disk full")
	assert.False(t, env.reload(t).Clients[0].IsTokenStored())
	store.AssertExpectations(t)
}

func TestSetToken_Empty(t *testing.T) {
	env := newTestApp(t)
	_, err := env.app.AddClient(ai.ProviderNameGemini, "work")
	require.NoError(t, err)

	_, err = env.app.SetToken(context.Background(), "work", "  ")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrInvalidArguments))
}

func TestDeleteToken(t *testing.T) {
	store := secrets.NewMemoryStore()
	env := newTestApp(t, WithStore(store))
	c, err := env.app.AddClient(ai.ProviderNameGemini, "work")
	require.NoError(t, err)

	_, err = env.app.SetToken(context.Background(), "work", "AIza-secret-token")
	require.NoError(t, err)
	require.True(t, env.reload(t).Clients[0].IsTokenStored())

	require.NoError(t, env.app.DeleteToken(context.Background(), "work"))
	_, err = store.Get(context.Background(), c.ID())
	assert.ErrorIs(t, err, secrets.ErrNotFound)
	assert.False(t, env.reload(t).Clients[0].IsTokenStored())
}

func TestDeleteToken_StoreFailure(t *testing.T) {
	store := new(MockSecretStore)
	env := newTestApp(t, WithStore(store))
	c, err := env.app.AddClient(ai.ProviderNameGemini, "work")
	require.NoError(t, err)

	store.On("Delete", mock.Anything, c.ID()).Return(errors.New("locked"))

	err = env.app.DeleteToken(context.Background(), "work")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrSecretStore))
	assert.Contains(t, env.out.String(), "Unable to delete token of work")
	store.AssertExpectations(t)
}

func TestRemoveClient_DeletesToken(t *testing.T) {
	store := new(MockSecretStore)
	env := newTestApp(t, WithStore(store))
	c, err := env.app.AddClient(ai.ProviderNameGemini, "work")
	require.NoError(t, err)
	other, err := env.app.AddClient(ai.ProviderNameOllama, "local")
	require.NoError(t, err)

	store.On("Delete", mock.Anything, c.ID()).Return(nil)

	removed, err := env.app.RemoveClient(context.Background(), "work")
	require.NoError(t, err)
	assert.Equal(t, c.ID(), removed.ID)

	cfg := env.reload(t)
	require.Len(t, cfg.Clients, 1)
	assert.Equal(t, other.ID(), cfg.Active)
	store.AssertExpectations(t)
}

func TestRemoveClient_DeleteFailureStillRemoves(t *testing.T) {
	store := new(MockSecretStore)
	env := newTestApp(t, WithStore(store))
	c, err := env.app.AddClient(ai.ProviderNameGemini, "work")
	require.NoError(t, err)

	store.On("Delete", mock.Anything, c.ID()).Return(errors.New("locked"))

	_, err = env.app.RemoveClient(context.Background(), c.ID())
	require.NoError(t, err)
	assert.Empty(t, env.reload(t).Clients)
	assert.Contains(t, env.out.String(), "Unable to delete token of work")
}

func TestVerify_ScenarioA(t *testing.T) {
	server, calls := geminiServer(t, http.StatusOK, pong)
	env := newTestApp(t)
	_, err := env.app.AddClient(ai.ProviderNameGemini, "work")
	require.NoError(t, err)
	require.NoError(t, env.app.SetField("work", FieldHost, server.URL))
	require.NoError(t, env.app.SetField("work", FieldModel, "gemini-pro"))

	out, err := env.app.Verify(context.Background(), "work", ai.VerifyInput{Token: "abc"})
	require.NoError(t, err)
	assert.True(t, out.Success)
	assert.Equal(t, "pong", out.Reply)
	assert.EqualValues(t, 1, calls.Load())
	assert.Contains(t, env.out.String(), ai.VerifiedMessage)

	entries, err := env.app.History("work", 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, entries[0].Success)

	assert.False(t, env.reload(t).Clients[0].IsTokenStored(), "verification must not persist the token")
}

func TestVerify_ScenarioB(t *testing.T) {
	server, _ := geminiServer(t, http.StatusForbidden, `{"error":{"code":403}}`)
	env := newTestApp(t)
	_, err := env.app.AddClient(ai.ProviderNameGemini, "work")
	require.NoError(t, err)

	out, err := env.app.Verify(context.Background(), "", ai.VerifyInput{Host: server.URL, Token: "abc"})
	require.NoError(t, err)
	assert.False(t, out.Success)
	assert.Contains(t, out.Message, "403")
	assert.Contains(t, env.out.String(), "[FAIL]")
}

func TestVerify_MissingTokenFallsBackToStore(t *testing.T) {
	var key string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key = r.URL.Query().Get("key")
		fmt.Fprint(w, pong)
	}))
	defer server.Close()

	env := newTestApp(t)
	_, err := env.app.AddClient(ai.ProviderNameGemini, "work")
	require.NoError(t, err)
	_, err = env.app.SetToken(context.Background(), "work", "from-store")
	require.NoError(t, err)

	out, err := env.app.Verify(context.Background(), "work", ai.VerifyInput{Host: server.URL})
	require.NoError(t, err)
	assert.True(t, out.Success)
	assert.Equal(t, "from-store", key)
}

func TestEditSettings(t *testing.T) {
	server, calls := geminiServer(t, http.StatusOK, pong)
	store := secrets.NewMemoryStore()

	var seen ui.FormFields
	form := func(s ui.Snapshot, f ui.FormFields) (ui.Snapshot, error) {
		seen = f
		s.Host = server.URL
		s.ModelID = "gemini-pro"
		s.Token = "new-token"
		return s, nil
	}
	env := newTestApp(t, WithStore(store), WithFormRunner(form))
	c, err := env.app.AddClient(ai.ProviderNameGemini, "work")
	require.NoError(t, err)

	require.NoError(t, env.app.EditSettings(context.Background(), "work"))
	assert.True(t, seen.NeedsToken)
	assert.EqualValues(t, 1, calls.Load())

	cl := env.reload(t).Clients[0]
	assert.Equal(t, server.URL, cl.Host)
	assert.Equal(t, "gemini-pro", cl.ModelID)
	assert.True(t, cl.IsTokenStored())

	token, err := store.Get(context.Background(), c.ID())
	require.NoError(t, err)
	assert.Equal(t, "new-token", token)
}

func TestEditSettings_FormError(t *testing.T) {
	env := newTestApp(t, WithFormRunner(func(s ui.Snapshot, f ui.FormFields) (ui.Snapshot, error) {
		return s, errors.New("user aborted")
	}))
	_, err := env.app.AddClient(ai.ProviderNameGemini, "work")
	require.NoError(t, err)

	assert.EqualError(t, env.app.EditSettings(context.Background(), "work"), "user aborted")
}

func TestRefreshAll(t *testing.T) {
	ollama := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"models":[{"name":"phi3:mini"}]}`)
	}))
	defer ollama.Close()
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer broken.Close()

	env := newTestApp(t)
	_, err := env.app.AddClient(ai.ProviderNameOllama, "good")
	require.NoError(t, err)
	require.NoError(t, env.app.SetField("good", FieldHost, ollama.URL))
	_, err = env.app.AddClient(ai.ProviderNameOllama, "bad")
	require.NoError(t, err)
	require.NoError(t, env.app.SetField("bad", FieldHost, broken.URL))

	err = env.app.RefreshAll(context.Background())
	require.Error(t, err)
	assert.Contains(t, env.out.String(), "Unable to refresh models for bad")

	cfg := env.reload(t)
	good, err := cfg.FindClient("good")
	require.NoError(t, err)
	assert.Contains(t, good.KnownModelIDs(), "phi3:mini")
}

func TestGenerate(t *testing.T) {
	server, _ := geminiServer(t, http.StatusOK, `{"candidates":[{"content":{"parts":[{"text":"feat: add login\n"}]}}]}`)
	env := newTestApp(t)
	_, err := env.app.AddClient(ai.ProviderNameGemini, "work")
	require.NoError(t, err)
	require.NoError(t, env.app.SetField("work", FieldHost, server.URL))
	_, err = env.app.SetToken(context.Background(), "work", "abc")
	require.NoError(t, err)

	text, err := env.app.Generate(context.Background(), "", "added a login form")
	require.NoError(t, err)
	assert.Equal(t, "feat: add login", text)
}

func TestClient_NotFound(t *testing.T) {
	env := newTestApp(t)
	_, err := env.app.Client("nope")
	require.Error(t, err)
	appErr := apperrors.GetAppError(err)
	require.NotNil(t, appErr)
	assert.Contains(t, appErr.Suggestion, "client list")
}

func TestStorageNotice(t *testing.T) {
	env := newTestApp(t)
	assert.Contains(t, env.app.StorageNotice(), "secrets.db")

	env.app.Config().Secrets.Backend = secrets.BackendMemory
	assert.Contains(t, env.app.StorageNotice(), "memory")
}
