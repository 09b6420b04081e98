// Package app contains the application layer with business orchestration logic.
package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aicommits/aicommits/internal/pkg/ai"
	"github.com/aicommits/aicommits/internal/pkg/cache"
	"github.com/aicommits/aicommits/internal/pkg/config"
	apperrors "github.com/aicommits/aicommits/internal/pkg/errors"
	"github.com/aicommits/aicommits/internal/pkg/history"
	"github.com/aicommits/aicommits/internal/pkg/scope"
	"github.com/aicommits/aicommits/internal/pkg/secrets"
	"github.com/aicommits/aicommits/internal/pkg/security"
	"github.com/aicommits/aicommits/internal/pkg/ui"
)

// Settable client fields for SetField.
const (
	FieldHost        = "host"
	FieldProxy       = "proxy"
	FieldTimeout     = "timeout"
	FieldModel       = "model"
	FieldTemperature = "temperature"
	FieldName        = "name"
)

// SettableFields lists the keys SetField accepts.
var SettableFields = []string{FieldName, FieldHost, FieldProxy, FieldTimeout, FieldModel, FieldTemperature}

// FormRunner shows the settings form and returns the edited snapshot.
type FormRunner func(s ui.Snapshot, f ui.FormFields) (ui.Snapshot, error)

// App owns the configuration, the secret store and the provider service
// for one command invocation.
type App struct {
	cfgMgr   config.Manager
	cfg      *config.Config
	registry *ai.Registry
	store    secrets.Store
	release  func() error
	scope    *scope.Scope
	service  *ai.Service
	history  history.Manager
	deps     ai.Deps
	ui       ui.Manager
	form     FormRunner
}

// Option configures an App.
type Option func(*App)

// WithStore uses store instead of opening the configured backend.
func WithStore(store secrets.Store) Option {
	return func(a *App) { a.store = store }
}

// WithRegistry replaces the default provider registry.
func WithRegistry(r *ai.Registry) Option {
	return func(a *App) { a.registry = r }
}

// WithRetry sets the retry policy used for generation.
func WithRetry(r apperrors.RetryConfig) Option {
	return func(a *App) { a.deps.Retry = r }
}

// WithFormRunner replaces the interactive settings form.
func WithFormRunner(f FormRunner) Option {
	return func(a *App) { a.form = f }
}

// New loads the configuration and wires the provider service.
func New(cfgMgr config.Manager, uiMgr ui.Manager, opts ...Option) (*App, error) {
	cfg, err := cfgMgr.Load()
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrConfigCorruption, "failed to load configuration")
	}

	a := &App{
		cfgMgr:   cfgMgr,
		cfg:      cfg,
		registry: ai.DefaultRegistry(),
		ui:       uiMgr,
		form:     ui.RunForm,
	}
	for _, opt := range opts {
		opt(a)
	}

	if a.store == nil {
		store, release, err := secrets.Open(cfg.Secrets.Backend, cfg.Secrets.Path)
		if err != nil {
			return nil, apperrors.NewSecretStoreError("open", err)
		}
		a.store, a.release = store, release
	}
	a.deps.Store = a.store

	if cfg.Cache.Enabled {
		ttl := time.Duration(cfg.Cache.TTLMinutes) * time.Minute
		if ttl <= 0 {
			ttl = cache.DefaultTTL
		}
		maxEntries := cfg.Cache.MaxEntries
		if maxEntries <= 0 {
			maxEntries = cache.DefaultMaxEntries
		}
		a.deps.Models = cache.NewLRUCache[[]string](maxEntries, ttl)
		a.deps.ModelsTTL = ttl
	}

	svcOpts := []ai.ServiceOption{}
	if cfg.History.Enabled {
		a.history = history.NewFileManager(cfg.History.FilePath, cfg.History.MaxEntries)
		svcOpts = append(svcOpts, ai.WithHistory(a.history))
	}

	a.scope = scope.New(context.Background(), scope.DefaultConcurrency)
	a.service = ai.NewService(a.scope, a.store, uiMgr, svcOpts...)
	return a, nil
}

// Close waits for background work and releases the secret store.
func (a *App) Close() error {
	a.scope.Close()
	if a.release != nil {
		return a.release()
	}
	return nil
}

// Config returns the loaded configuration.
func (a *App) Config() *config.Config {
	return a.cfg
}

// Registry returns the provider registry.
func (a *App) Registry() *ai.Registry {
	return a.registry
}

func (a *App) save() error {
	if err := a.cfgMgr.Save(a.cfg); err != nil {
		return apperrors.Wrap(err, apperrors.ErrFileSystemError, "failed to save configuration")
	}
	return nil
}

func (a *App) newClient(cfg *config.ClientConfig) (ai.Client, error) {
	return a.registry.New(cfg, a.deps)
}

// Client returns the client for ref, or the active client when ref is blank.
func (a *App) Client(ref string) (ai.Client, error) {
	cfg, err := a.cfg.FindClient(ref)
	if err != nil {
		return nil, apperrors.New(apperrors.ErrInvalidArguments, err.Error()).
			WithSuggestion("Run 'aicommits client list' to see configured clients")
	}
	return a.newClient(cfg)
}

// Clients returns every configured client in file order.
func (a *App) Clients() ([]ai.Client, error) {
	clients := make([]ai.Client, 0, len(a.cfg.Clients))
	for _, cfg := range a.cfg.Clients {
		c, err := a.newClient(cfg)
		if err != nil {
			return nil, err
		}
		clients = append(clients, c)
	}
	return clients, nil
}

// AddClient creates a client for provider with the provider defaults.
func (a *App) AddClient(provider, name string) (ai.Client, error) {
	cfg, err := a.registry.NewConfig(provider, name)
	if err != nil {
		return nil, err
	}
	if err := a.cfg.AddClient(cfg); err != nil {
		return nil, apperrors.New(apperrors.ErrInvalidArguments, err.Error())
	}
	if err := a.save(); err != nil {
		return nil, err
	}
	return a.newClient(cfg)
}

// CloneClient copies the client ref under a new id. The token is not copied.
func (a *App) CloneClient(ref, name string) (ai.Client, error) {
	src, err := a.cfg.FindClient(ref)
	if err != nil {
		return nil, apperrors.New(apperrors.ErrInvalidArguments, err.Error())
	}
	dup := src.Duplicate()
	if name != "" {
		dup.DisplayName = name
	} else {
		dup.DisplayName = src.Label() + " (copy)"
	}
	if err := a.cfg.AddClient(dup); err != nil {
		return nil, apperrors.New(apperrors.ErrInvalidArguments, err.Error())
	}
	if err := a.save(); err != nil {
		return nil, err
	}
	return a.newClient(dup)
}

// UseClient makes ref the active client.
func (a *App) UseClient(ref string) (*config.ClientConfig, error) {
	cfg, err := a.cfg.FindClient(ref)
	if err != nil {
		return nil, apperrors.New(apperrors.ErrInvalidArguments, err.Error())
	}
	a.cfg.Active = cfg.ID
	return cfg, a.save()
}

// RemoveClient drops ref from the configuration and deletes its token.
// A token that cannot be deleted is reported but does not fail the removal.
func (a *App) RemoveClient(ctx context.Context, ref string) (*config.ClientConfig, error) {
	cfg, err := a.cfg.FindClient(ref)
	if err != nil {
		return nil, apperrors.New(apperrors.ErrInvalidArguments, err.Error())
	}
	a.cfg.RemoveClient(cfg.ID)
	if err := a.save(); err != nil {
		return nil, err
	}

	if _, err := a.service.DeleteToken(cfg).WaitContext(ctx); err != nil {
		apperrors.Warn("Token of removed client %s was not deleted: %v", cfg.ID, err)
	}
	a.service.Forget(cfg.ID)
	return cfg, nil
}

// SetField changes one field of the client ref. Values are validated the
// same way the settings panel validates them.
func (a *App) SetField(ref, key, value string) error {
	c, err := a.Client(ref)
	if err != nil {
		return err
	}
	cfg := c.Configuration()

	if key == FieldName {
		cfg.DisplayName = strings.TrimSpace(value)
		return a.save()
	}

	var edit ui.Edit
	switch key {
	case FieldHost:
		edit = ui.SetHost(value)
	case FieldProxy:
		edit = ui.SetProxy(value)
	case FieldTimeout:
		edit = ui.SetTimeout(value)
	case FieldModel:
		edit = ui.SetModelID(value)
	case FieldTemperature:
		desc, err := a.registry.Lookup(c.Name())
		if err != nil {
			return err
		}
		if err := ui.ValidateTemperature(desc.Temperature)(value); err != nil {
			return err
		}
		edit = ui.SetTemperature(value)
	default:
		return apperrors.New(apperrors.ErrInvalidArguments, fmt.Sprintf("unknown field %q", key)).
			WithSuggestion("Settable fields: " + strings.Join(SettableFields, ", "))
	}

	snap := ui.Reduce(ui.SnapshotOf(cfg), edit)
	snap.Token = ""
	if err := ui.Apply(cfg, snap); err != nil {
		return err
	}
	return a.save()
}

// SetToken stores token for the client ref. The future of the save is
// awaited so that the stored flag can be written to the configuration.
func (a *App) SetToken(ctx context.Context, ref, token string) (bool, error) {
	if strings.TrimSpace(token) == "" {
		return false, apperrors.New(apperrors.ErrInvalidArguments, "token cannot be empty")
	}
	c, err := a.Client(ref)
	if err != nil {
		return false, err
	}
	stored, err := a.service.SaveToken(c.Configuration(), token).WaitContext(ctx)
	if !stored {
		return false, err
	}
	return true, a.save()
}

// DeleteToken removes the stored token of ref and clears its stored flag.
func (a *App) DeleteToken(ctx context.Context, ref string) error {
	c, err := a.Client(ref)
	if err != nil {
		return err
	}
	if _, err := a.service.DeleteToken(c.Configuration()).WaitContext(ctx); err != nil {
		return err
	}
	return a.save()
}

// Verify checks the client ref. Non-empty fields of in replace the saved
// values for this verification only; nothing is persisted.
func (a *App) Verify(ctx context.Context, ref string, in ai.VerifyInput) (ai.Outcome, error) {
	panel, err := a.panel(ref)
	if err != nil {
		return ai.Outcome{}, err
	}
	var edits []ui.Edit
	if in.Host != "" {
		edits = append(edits, ui.SetHost(in.Host))
	}
	if in.Proxy != "" {
		edits = append(edits, ui.SetProxy(in.Proxy))
	}
	if in.Timeout != "" {
		edits = append(edits, ui.SetTimeout(in.Timeout))
	}
	if in.Token != "" {
		edits = append(edits, ui.SetToken(in.Token))
	}
	panel.Dispatch(edits...)

	spinner := a.ui.ShowSpinner("Verifying configuration...")
	spinner.Start()
	out, err := panel.Verify().WaitContext(ctx)
	spinner.Stop()
	if err != nil {
		return ai.Outcome{}, err
	}
	a.ui.ShowLabel(ui.LabelFor(out))
	return out, nil
}

func (a *App) panel(ref string) (*ui.Panel, error) {
	c, err := a.Client(ref)
	if err != nil {
		return nil, err
	}
	desc, err := a.registry.Lookup(c.Name())
	if err != nil {
		return nil, err
	}
	return ui.NewPanel(c, a.service, scope.Immediate{}, desc.Temperature), nil
}

// EditSettings runs the settings form for ref, verifies the edited values
// and saves them once the user confirms.
func (a *App) EditSettings(ctx context.Context, ref string) error {
	c, err := a.Client(ref)
	if err != nil {
		return err
	}
	desc, err := a.registry.Lookup(c.Name())
	if err != nil {
		return err
	}
	panel := ui.NewPanel(c, a.service, scope.Immediate{}, desc.Temperature)

	before := panel.Snapshot()
	after, err := a.form(before, ui.FieldsFor(c, desc))
	if err != nil {
		return err
	}
	panel.Dispatch(ui.EditsBetween(before, after)...)

	out, err := panel.Verify().WaitContext(ctx)
	if err != nil {
		return err
	}
	a.ui.ShowLabel(ui.LabelFor(out))

	prompt := "Save these settings?"
	if !out.Success {
		prompt = "Verification failed. Save these settings anyway?"
	}
	ok, err := a.ui.PromptConfirm(prompt)
	if err != nil || !ok {
		return err
	}

	saved, err := panel.Save()
	if err != nil {
		return err
	}
	if _, err := saved.WaitContext(ctx); err != nil {
		// The service already notified the user.
		apperrors.Debug("Token not saved: %v", err)
	}
	return a.save()
}

// RefreshModels updates the model ids of ref and returns them.
func (a *App) RefreshModels(ctx context.Context, ref string) ([]string, error) {
	c, err := a.Client(ref)
	if err != nil {
		return nil, err
	}
	spinner := a.ui.ShowSpinner(fmt.Sprintf("Refreshing models of %s...", c.Configuration().Label()))
	spinner.Start()
	ids, err := a.service.Refresh(c).WaitContext(ctx)
	spinner.Stop()
	if err != nil {
		return nil, err
	}
	return ids, a.save()
}

// RefreshAll updates the model ids of every client. The configuration is
// saved even when some clients failed.
func (a *App) RefreshAll(ctx context.Context) error {
	clients, err := a.Clients()
	if err != nil {
		return err
	}
	progress := a.ui.ShowProgressSpinner("Refreshing models", len(clients))
	progress.Start()
	refreshErr := a.service.RefreshAll(ctx, clients)
	progress.SetCurrent(len(clients))
	progress.Stop()

	if err := a.save(); err != nil {
		return err
	}
	return refreshErr
}

// Generate sends prompt to the client ref and returns the reply.
func (a *App) Generate(ctx context.Context, ref, prompt string) (string, error) {
	c, err := a.Client(ref)
	if err != nil {
		return "", err
	}
	spinner := a.ui.ShowSpinner("Generating...")
	spinner.Start()
	text, err := a.service.Generate(c, prompt).WaitContext(ctx)
	spinner.Stop()
	return text, err
}

// History returns recorded verifications, optionally for one client.
func (a *App) History(ref string, limit int) ([]*history.Entry, error) {
	if a.history == nil {
		return nil, apperrors.New(apperrors.ErrInvalidArguments, "verification history is disabled").
			WithSuggestion("Run 'aicommits config set history.enabled true'")
	}
	id := ""
	if ref != "" {
		cfg, err := a.cfg.FindClient(ref)
		if err != nil {
			return nil, apperrors.New(apperrors.ErrInvalidArguments, err.Error())
		}
		id = cfg.ID
	}
	return a.history.List(id, limit)
}

// ClearHistory removes every recorded verification.
func (a *App) ClearHistory() error {
	if a.history == nil {
		return nil
	}
	return a.history.Clear()
}

// StorageNotice describes where tokens are kept.
func (a *App) StorageNotice() string {
	switch a.cfg.Secrets.Backend {
	case secrets.BackendMemory:
		return "Tokens are kept in memory and are lost when the command exits."
	default:
		return strings.TrimRight(security.StorageNotice, "\n") + "\nSecrets file: " + a.cfg.Secrets.Path + "\n"
	}
}
