package ai

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/aicommits/aicommits/internal/pkg/config"
	apperrors "github.com/aicommits/aicommits/internal/pkg/errors"
	"github.com/aicommits/aicommits/internal/pkg/history"
	"github.com/aicommits/aicommits/internal/pkg/notify"
	"github.com/aicommits/aicommits/internal/pkg/scope"
	"github.com/aicommits/aicommits/internal/pkg/secrets"
	"github.com/aicommits/aicommits/internal/pkg/security"
)

// VerifyInput carries the field values a verification runs with. They are
// taken from the settings panel, not from the saved configuration.
type VerifyInput struct {
	Host    string
	Proxy   string
	Timeout string
	Token   string
}

// InputFrom returns the saved values of cfg as verification input.
func InputFrom(cfg *config.ClientConfig) VerifyInput {
	return VerifyInput{
		Host:    cfg.Host,
		Proxy:   cfg.ProxyURL,
		Timeout: strconv.Itoa(cfg.Timeout),
		Token:   cfg.StagedToken(),
	}
}

// Service runs provider work on a task scope so that the caller never
// blocks on the network or the secret store.
type Service struct {
	scope    *scope.Scope
	store    secrets.Store
	notifier notify.Notifier
	history  history.Manager
	breakers *apperrors.CircuitBreakers
	inflight singleflight.Group
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithHistory records every verification outcome in h.
func WithHistory(h history.Manager) ServiceOption {
	return func(s *Service) { s.history = h }
}

// WithCircuitBreakers replaces the default per-client circuit breakers.
func WithCircuitBreakers(cb *apperrors.CircuitBreakers) ServiceOption {
	return func(s *Service) { s.breakers = cb }
}

// NewService creates a service running its tasks on sc.
func NewService(sc *scope.Scope, store secrets.Store, notifier notify.Notifier, opts ...ServiceOption) *Service {
	s := &Service{
		scope:    sc,
		store:    store,
		notifier: notifier,
		breakers: apperrors.NewCircuitBreakers(apperrors.DefaultCircuitBreakerConfig()),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.notifier == nil {
		s.notifier = notify.Log{}
	}
	return s
}

// SaveToken writes token to the secret store under the configuration id.
// The flag on cfg is set only once the write succeeded; a failure is
// reported to the notifier. The future resolves to whether the token was
// stored and the error, if any.
func (s *Service) SaveToken(cfg *config.ClientConfig, token string) *scope.Future[bool] {
	return scope.Go(s.scope, func(ctx context.Context) (bool, error) {
		if err := s.store.Set(ctx, cfg.ID, token); err != nil {
			appErr := apperrors.NewSecretStoreError("set", err)
			apperrors.Warn("Failed to save token: %v", appErr)
			s.notifier.Notify(notify.UnableToSaveToken(err))
			return false, appErr
		}
		cfg.MarkTokenStored()
		apperrors.Debug("Stored token for client %s", cfg.ID)
		return true, nil
	})
}

// DeleteToken removes the token stored under the configuration id. A
// missing token is not an error.
func (s *Service) DeleteToken(cfg *config.ClientConfig) *scope.Future[bool] {
	return scope.Go(s.scope, func(ctx context.Context) (bool, error) {
		err := s.store.Delete(ctx, cfg.ID)
		if err != nil && !errors.Is(err, secrets.ErrNotFound) {
			appErr := apperrors.NewSecretStoreError("delete", err)
			apperrors.Warn("Failed to delete token: %v", appErr)
			s.notifier.Notify(notify.UnableToDeleteToken(cfg.Label(), err))
			return false, appErr
		}
		cfg.ClearTokenStored()
		return err == nil, nil
	})
}

// Verify runs one verification of c with in. Overlapping verifications of
// the same configuration with the same values share a single request. The
// future always resolves with a nil error; failures are described by the
// Outcome.
func (s *Service) Verify(c Client, in VerifyInput) *scope.Future[Outcome] {
	key := verifyKey(c, in)
	return scope.Go(s.scope, func(ctx context.Context) (Outcome, error) {
		v, _, shared := s.inflight.Do(key, func() (interface{}, error) {
			return s.verify(ctx, c, in), nil
		})
		if shared {
			apperrors.Debug("Joined verification already running for client %s", c.ID())
		}
		return v.(Outcome), nil
	})
}

// verifyKey identifies a verification by configuration id and every value
// the request is built from. The token only contributes its fingerprint.
func verifyKey(c Client, in VerifyInput) string {
	cfg := c.Configuration()
	values := strings.Join([]string{
		in.Host, in.Proxy, in.Timeout,
		cfg.ModelID, cfg.Temperature, cfg.StagedToken(), in.Token,
	}, "\x00")
	return c.ID() + ":" + security.Fingerprint(values)
}

func (s *Service) verify(ctx context.Context, c Client, in VerifyInput) Outcome {
	start := time.Now()
	reply, err := c.VerifyConfiguration(ctx, in.Host, in.Proxy, in.Timeout, in.Token)
	duration := time.Since(start)

	apperrors.LogVerification(c.ID(), c.Name(), err, duration)
	out := NewOutcome(reply, err)
	s.record(c, in, out, duration)
	return out
}

func (s *Service) record(c Client, in VerifyInput, out Outcome, duration time.Duration) {
	if s.history == nil {
		return
	}
	cfg := c.Configuration()
	host := in.Host
	if host == "" {
		host = cfg.Host
	}
	entry := &history.Entry{
		ClientID:   c.ID(),
		ClientName: cfg.Label(),
		Provider:   c.Name(),
		Host:       host,
		Model:      cfg.ModelID,
		Success:    out.Success,
		Message:    security.SanitizeForLogging(out.Message),
		ErrorCode:  out.ErrorCode(),
		Duration:   duration,
	}
	if err := s.history.Save(entry); err != nil {
		apperrors.Warn("Failed to record verification: %v", err)
	}
}

// Refresh updates the model ids of c. Failures are notified and returned.
func (s *Service) Refresh(c Client) *scope.Future[[]string] {
	return scope.Go(s.scope, func(ctx context.Context) ([]string, error) {
		if err := s.refresh(ctx, c); err != nil {
			return nil, err
		}
		return c.ModelIDs(), nil
	})
}

func (s *Service) refresh(ctx context.Context, c Client) error {
	if err := c.RefreshModels(ctx); err != nil {
		s.notifier.Notify(notify.UnableToRefreshModels(c.Configuration().Label(), err))
		return err
	}
	return nil
}

// RefreshAll refreshes every client, at most scope.DefaultConcurrency at a
// time. One failing client does not stop the others.
func (s *Service) RefreshAll(ctx context.Context, clients []Client) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(scope.DefaultConcurrency)

	var mu sync.Mutex
	var errs []error
	for _, c := range clients {
		g.Go(func() error {
			if err := s.refresh(ctx, c); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}

// Generate sends prompt through c, guarded by a circuit breaker per client.
func (s *Service) Generate(c Client, prompt string) *scope.Future[string] {
	return scope.Go(s.scope, func(ctx context.Context) (string, error) {
		var text string
		err := s.breakers.Get(c.ID()).Execute(ctx, func(ctx context.Context) error {
			var genErr error
			text, genErr = c.GenerateCommitMessage(ctx, prompt)
			return genErr
		})
		return text, err
	})
}

// Forget drops the state kept for a removed client.
func (s *Service) Forget(id string) {
	s.breakers.Forget(id)
}
