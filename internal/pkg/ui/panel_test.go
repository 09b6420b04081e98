package ui

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aicommits/aicommits/internal/pkg/ai"
	"github.com/aicommits/aicommits/internal/pkg/config"
	apperrors "github.com/aicommits/aicommits/internal/pkg/errors"
	"github.com/aicommits/aicommits/internal/pkg/notify"
	"github.com/aicommits/aicommits/internal/pkg/scope"
	"github.com/aicommits/aicommits/internal/pkg/secrets"
)

func TestReduce(t *testing.T) {
	base := Snapshot{Host: "https://a", Proxy: "", Timeout: "30", ModelID: "m", Temperature: "0.7"}

	tests := []struct {
		name string
		edit Edit
		want Snapshot
	}{
		{"host", SetHost(" https://b "), Snapshot{Host: "https://b", Timeout: "30", ModelID: "m", Temperature: "0.7"}},
		{"proxy", SetProxy("http://p:3128"), Snapshot{Host: "https://a", Proxy: "http://p:3128", Timeout: "30", ModelID: "m", Temperature: "0.7"}},
		{"timeout", SetTimeout("5"), Snapshot{Host: "https://a", Timeout: "5", ModelID: "m", Temperature: "0.7"}},
		{"model", SetModelID("gemini-pro"), Snapshot{Host: "https://a", Timeout: "30", ModelID: "gemini-pro", Temperature: "0.7"}},
		{"temperature", SetTemperature("1.2"), Snapshot{Host: "https://a", Timeout: "30", ModelID: "m", Temperature: "1.2"}},
		{"token keeps spaces", SetToken(" k "), Snapshot{Host: "https://a", Timeout: "30", ModelID: "m", Temperature: "0.7", Token: " k "}},
		{"nil", nil, base},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Reduce(base, tt.edit))
		})
	}
}

// Property: Reduce never mutates its input and only touches the edited field.
func TestReduce_Property(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("SetModelID only changes the model id", prop.ForAll(
		func(host, model string) bool {
			before := Snapshot{Host: host, Timeout: "1", Temperature: "0.5"}
			after := Reduce(before, SetModelID(model))
			return before.ModelID == "" &&
				after.ModelID == strings.TrimSpace(model) &&
				after.Host == host && after.Timeout == "1" && after.Temperature == "0.5"
		},
		gen.AlphaString(),
		gen.AnyString(),
	))

	properties.TestingRun(t)
}

func TestValidators(t *testing.T) {
	r := ai.Range{Min: 0, Max: 2}

	assert.NoError(t, ValidateTimeout("0"))
	assert.NoError(t, ValidateTimeout("120"))
	assert.Error(t, ValidateTimeout("-1"))
	assert.Error(t, ValidateTimeout("ten"))

	assert.NoError(t, ValidateTemperature(r)("0.7"))
	assert.NoError(t, ValidateTemperature(r)("2"))
	assert.Error(t, ValidateTemperature(r)("2.1"))
	assert.Error(t, ValidateTemperature(r)("abc"))

	assert.NoError(t, ValidateHost(""))
	assert.NoError(t, ValidateHost("http://localhost:11434"))
	assert.Error(t, ValidateHost("localhost"))

	assert.NoError(t, ValidateProxy(""))
	assert.NoError(t, ValidateProxy("http://proxy:3128"))
	assert.Error(t, ValidateProxy("proxy"))

	err := ValidateTimeout("x")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrInvalidConfig))
}

func TestApply(t *testing.T) {
	cfg := config.NewClientConfig(ai.ProviderNameGemini, "work")
	s := SnapshotOf(cfg)
	s = Reduce(s, SetHost("https://example.test"))
	s = Reduce(s, SetTimeout("15"))
	s = Reduce(s, SetModelID("gemini-2.5-pro"))
	s = Reduce(s, SetTemperature("0.3"))
	s = Reduce(s, SetToken("secret"))

	require.NoError(t, Apply(cfg, s))
	assert.Equal(t, "https://example.test", cfg.Host)
	assert.Equal(t, 15, cfg.Timeout)
	assert.Equal(t, "gemini-2.5-pro", cfg.ModelID)
	assert.Equal(t, "0.3", cfg.Temperature)
	assert.Contains(t, cfg.KnownHosts(), "https://example.test")
	assert.Contains(t, cfg.KnownModelIDs(), "gemini-2.5-pro")
	assert.Equal(t, "secret", cfg.StagedToken())
	assert.False(t, cfg.IsTokenStored(), "applying must not persist the token")
}

func TestApply_InvalidLeavesConfigUntouched(t *testing.T) {
	cfg := config.NewClientConfig(ai.ProviderNameGemini, "work")
	cfg.Host = "https://before.test"

	s := Reduce(SnapshotOf(cfg), SetHost("https://after.test"))
	s = Reduce(s, SetTimeout("-5"))

	err := Apply(cfg, s)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrInvalidConfig))
	assert.Equal(t, "https://before.test", cfg.Host)
}

func TestVerifyLabel_Render(t *testing.T) {
	ok := LabelFor(ai.NewOutcome("pong", nil))
	assert.Equal(t, "[OK] "+ai.VerifiedMessage, ok.Render(false))

	failed := LabelFor(ai.NewOutcome("", apperrors.NewRequestError("Gemini", http.StatusForbidden, "")))
	assert.True(t, strings.HasPrefix(failed.Render(false), "[FAIL] "+ai.InvalidMessagePrefix))
	assert.Contains(t, failed.Render(true), "403")

	pending := VerifyLabel{Text: "Verifying...", Pending: true}
	assert.Equal(t, "Verifying...", pending.Render(false))
}

// panelFixture wires a Gemini client against a mock endpoint.
type panelFixture struct {
	panel  *Panel
	client ai.Client
	store  *secrets.MemoryStore
	calls  *atomic.Int32
	rec    *notify.Recorder
}

func newPanelFixture(t *testing.T, handler http.HandlerFunc) *panelFixture {
	t.Helper()
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		handler(w, r)
	}))
	t.Cleanup(server.Close)

	reg := ai.DefaultRegistry()
	cfg, err := reg.NewConfig(ai.ProviderNameGemini, "work")
	require.NoError(t, err)
	cfg.Host = server.URL

	store := secrets.NewMemoryStore()
	client, err := reg.New(cfg, ai.Deps{Store: store})
	require.NoError(t, err)

	sc := scope.New(context.Background(), scope.DefaultConcurrency)
	t.Cleanup(sc.Close)
	rec := &notify.Recorder{}
	svc := ai.NewService(sc, store, rec)

	desc, err := reg.Lookup(ai.ProviderNameGemini)
	require.NoError(t, err)
	p := NewPanel(client, svc, scope.Immediate{}, desc.Temperature)
	p.Dispatch(SetModelID("gemini-pro"), SetTemperature("0.7"), SetToken("abc"))

	return &panelFixture{panel: p, client: client, store: store, calls: &calls, rec: rec}
}

func (f *panelFixture) waitLabel(t *testing.T) VerifyLabel {
	t.Helper()
	require.Eventually(t, func() bool { return !f.panel.Label().Pending && f.panel.Label().Text != "" },
		5*time.Second, 5*time.Millisecond)
	return f.panel.Label()
}

func TestPanel_VerifySuccess(t *testing.T) {
	f := newPanelFixture(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "abc", r.URL.Query().Get("key"))
		assert.True(t, strings.HasSuffix(r.URL.Path, "/models/gemini-pro:generateContent"), r.URL.Path)
		fmt.Fprint(w, `{"candidates":[{"content":{"parts":[{"text":"pong"}]}}]}`)
	})

	before := f.client.Configuration().Clone()

	var mu sync.Mutex
	var seen []VerifyLabel
	f.panel.OnLabel(func(l VerifyLabel) {
		mu.Lock()
		seen = append(seen, l)
		mu.Unlock()
	})

	out, err := f.panel.Verify().Wait()
	require.NoError(t, err)
	assert.True(t, out.Success)

	label := f.waitLabel(t)
	assert.True(t, label.Success)
	assert.Equal(t, ai.VerifiedMessage, label.Text)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 2
	}, 5*time.Second, 5*time.Millisecond)
	mu.Lock()
	assert.True(t, seen[0].Pending)
	assert.True(t, seen[1].Success)
	mu.Unlock()

	cfg := f.client.Configuration()
	assert.False(t, cfg.IsTokenStored())
	assert.Equal(t, 0, f.store.Len())
	assert.Equal(t, before.ModelID, cfg.ModelID)
	assert.Equal(t, before.Temperature, cfg.Temperature)
	assert.Empty(t, cfg.StagedToken())
}

func TestPanel_VerifyForbidden(t *testing.T) {
	f := newPanelFixture(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})
	cfg := f.client.Configuration()
	before := cfg.Clone()
	f.panel.Dispatch(SetTemperature("1.9"), SetToken("wrong-token"))

	f.panel.Verify()
	label := f.waitLabel(t)
	assert.False(t, label.Success)
	assert.Contains(t, label.Text, "403")

	assert.Equal(t, before.ModelID, cfg.ModelID)
	assert.Equal(t, before.Temperature, cfg.Temperature)
	assert.Empty(t, cfg.StagedToken())
	assert.Empty(t, cfg.ResolveToken(context.Background(), f.store))
	assert.False(t, cfg.IsTokenStored())
}

func TestPanel_VerifyNoCandidates(t *testing.T) {
	f := newPanelFixture(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"candidates": []}`)
	})

	f.panel.Verify()
	label := f.waitLabel(t)
	assert.False(t, label.Success)
	assert.Contains(t, label.Text, "no content")
}

func TestPanel_VerifyBadTemperatureMakesNoRequest(t *testing.T) {
	f := newPanelFixture(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"candidates":[{"content":{"parts":[{"text":"pong"}]}}]}`)
	})
	f.panel.Dispatch(SetTemperature("abc"))

	assert.Error(t, f.panel.Validate())
	out, err := f.panel.Verify().Wait()
	require.NoError(t, err)
	assert.False(t, out.Success)
	assert.Equal(t, "ConfigurationError", out.ErrorCode())
	assert.EqualValues(t, 0, f.calls.Load())
}

func TestPanel_SaveStoresToken(t *testing.T) {
	f := newPanelFixture(t, func(w http.ResponseWriter, r *http.Request) {})

	saved, err := f.panel.Save()
	require.NoError(t, err)
	stored, err := saved.Wait()
	require.NoError(t, err)
	assert.True(t, stored)

	cfg := f.client.Configuration()
	assert.True(t, cfg.IsTokenStored())
	assert.Equal(t, "gemini-pro", cfg.ModelID)
	token, err := f.store.Get(context.Background(), cfg.ID)
	require.NoError(t, err)
	assert.Equal(t, "abc", token)
	assert.Empty(t, f.rec.Sent())
}

func TestPanel_SaveWithoutTokenKeepsStore(t *testing.T) {
	f := newPanelFixture(t, func(w http.ResponseWriter, r *http.Request) {})
	f.panel.Dispatch(SetToken(""))

	saved, err := f.panel.Save()
	require.NoError(t, err)
	stored, err := saved.Wait()
	require.NoError(t, err)
	assert.False(t, stored)
	assert.Equal(t, 0, f.store.Len())
}

func TestPanel_SaveRejectsInvalidFields(t *testing.T) {
	f := newPanelFixture(t, func(w http.ResponseWriter, r *http.Request) {})
	f.panel.Dispatch(SetTimeout("soon"))

	_, err := f.panel.Save()
	assert.True(t, apperrors.HasCode(err, apperrors.ErrInvalidConfig))
	assert.Equal(t, 0, f.store.Len())
}
