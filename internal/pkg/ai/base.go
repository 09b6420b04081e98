package ai

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/aicommits/aicommits/internal/pkg/cache"
	"github.com/aicommits/aicommits/internal/pkg/config"
	apperrors "github.com/aicommits/aicommits/internal/pkg/errors"
)

// base holds what every client shares: the descriptor, the configuration
// and the collaborators.
type base struct {
	desc *Descriptor
	cfg  *config.ClientConfig
	deps Deps
}

func (b *base) ID() string                          { return b.cfg.ID }
func (b *base) Name() string                        { return b.desc.Name }
func (b *base) Configuration() *config.ClientConfig { return b.cfg }
func (b *base) Icon() string                        { return b.desc.Icon }

// Hosts returns the provider's suggested hosts followed by the ones used
// with this client.
func (b *base) Hosts() []string {
	return merge(b.desc.DefaultHosts, b.cfg.KnownHosts())
}

// ModelIDs returns the provider's suggested model ids followed by the ones
// used with or refreshed for this client.
func (b *base) ModelIDs() []string {
	return merge(b.desc.DefaultModelIDs, b.cfg.KnownModelIDs())
}

func (b *base) clone() *base {
	return &base{desc: b.desc, cfg: b.cfg.Clone(), deps: b.deps}
}

func merge(a, b []string) []string {
	var set config.OrderedSet
	for _, v := range a {
		set.Add(v)
	}
	for _, v := range b {
		set.Add(v)
	}
	return set.Values()
}

// settings is everything one request needs, validated.
type settings struct {
	host        string
	proxy       *url.URL
	timeout     time.Duration
	token       string
	model       string
	temperature float64
}

// httpClient returns a client honouring the proxy and timeout. A zero
// timeout means none.
func (s *settings) httpClient() *http.Client {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 5,
		IdleConnTimeout:     90 * time.Second,
	}
	if s.proxy != nil {
		transport.Proxy = http.ProxyURL(s.proxy)
	}
	return &http.Client{
		Timeout:   s.timeout,
		Transport: transport,
	}
}

// current builds settings from the saved configuration.
func (b *base) current(ctx context.Context) (*settings, error) {
	return b.settings(ctx, b.cfg.Host, b.cfg.ProxyURL, strconv.Itoa(b.cfg.Timeout), "")
}

// settings validates the request inputs. Nothing here touches the network,
// so a malformed value fails before any request is made.
func (b *base) settings(ctx context.Context, host, proxy, timeout, token string) (*settings, error) {
	s := &settings{}

	seconds, err := ParseTimeout(timeout)
	if err != nil {
		return nil, err
	}
	s.timeout = time.Duration(seconds) * time.Second

	host = strings.TrimSpace(host)
	if host == "" {
		host = b.cfg.Host
	}
	if host == "" {
		host = b.desc.DefaultHost()
	}
	if err := ValidateHost(host); err != nil {
		return nil, err
	}
	s.host = strings.TrimRight(host, "/")

	if proxy = strings.TrimSpace(proxy); proxy != "" {
		u, err := ParseProxy(proxy)
		if err != nil {
			return nil, err
		}
		s.proxy = u
	}

	s.model = strings.TrimSpace(b.cfg.ModelID)
	if s.model == "" {
		s.model = b.desc.DefaultModelID()
	}
	if s.model == "" {
		return nil, apperrors.NewConfigurationError("model id", errors.New("no model selected"))
	}

	temperature := b.cfg.Temperature
	if strings.TrimSpace(temperature) == "" {
		temperature = b.desc.DefaultTemperature
	}
	if s.temperature, err = ParseTemperature(temperature, b.desc.Temperature); err != nil {
		return nil, err
	}

	if strings.TrimSpace(token) != "" {
		s.token = token
	} else {
		s.token = b.cfg.ResolveToken(ctx, b.deps.Store)
	}
	return s, nil
}

// ParseTimeout parses a timeout in whole seconds. It must be a
// non-negative integer.
func ParseTimeout(raw string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, apperrors.NewConfigurationError("timeout", err)
	}
	if n < 0 {
		return 0, apperrors.NewConfigurationError("timeout", fmt.Errorf("%d is negative", n))
	}
	return n, nil
}

// ParseTemperature parses a temperature and checks it against r.
func ParseTemperature(raw string, r Range) (float64, error) {
	t, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, apperrors.NewConfigurationError("temperature", err)
	}
	if !r.Contains(t) {
		return 0, apperrors.NewConfigurationError("temperature", fmt.Errorf("%g is outside %s", t, r))
	}
	return t, nil
}

// ValidateHost checks that host is an absolute http or https URL.
func ValidateHost(host string) error {
	u, err := url.Parse(strings.TrimSpace(host))
	if err != nil {
		return apperrors.NewConfigurationError("host", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return apperrors.NewConfigurationError("host", fmt.Errorf("%q must start with http:// or https://", host))
	}
	return nil
}

// ParseProxy parses a proxy URL such as http://proxy:3128.
func ParseProxy(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, apperrors.NewConfigurationError("proxy", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, apperrors.NewConfigurationError("proxy", fmt.Errorf("%q is not an absolute URL", raw))
	}
	return u, nil
}

// generate runs one completion with retries and checks the reply.
func (b *base) generate(ctx context.Context, prompt string, complete func(ctx context.Context, s *settings, prompt string) (string, error)) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", apperrors.New(apperrors.ErrInvalidArguments, "prompt cannot be empty")
	}
	s, err := b.current(ctx)
	if err != nil {
		return "", err
	}
	if b.desc.RequiresToken && s.token == "" {
		return "", apperrors.NewMissingAPIKeyError(b.desc.DisplayName)
	}

	retry := b.deps.Retry
	if retry.MaxAttempts <= 0 {
		retry = apperrors.DefaultRetryConfig()
	}

	apperrors.LogAPIRequest(b.desc.Name, s.host, s.model, len(prompt))
	start := time.Now()

	var text string
	err = apperrors.Retry(ctx, retry, func(ctx context.Context) error {
		var callErr error
		text, callErr = complete(ctx, s, prompt)
		return callErr
	})
	if err != nil {
		return "", err
	}
	apperrors.LogAPIResponse(b.desc.Name, http.StatusOK, len(text), time.Since(start))
	return checkReply(text)
}

// verify sends the canary prompt exactly once.
func (b *base) verify(ctx context.Context, host, proxy, timeout, token string, complete func(ctx context.Context, s *settings, prompt string) (string, error)) (string, error) {
	s, err := b.settings(ctx, host, proxy, timeout, token)
	if err != nil {
		return "", err
	}
	apperrors.LogAPIRequest(b.desc.Name, s.host, s.model, len(CanaryPrompt))
	start := time.Now()

	text, err := complete(ctx, s, CanaryPrompt)
	if err != nil {
		return "", err
	}
	apperrors.LogAPIResponse(b.desc.Name, http.StatusOK, len(text), time.Since(start))
	return checkReply(text)
}

func checkReply(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", apperrors.NewParseError("empty response from API", nil)
	}
	return text, nil
}

// refresh lists models through list, caching the result per provider, host
// and token, and records them in the configuration.
func (b *base) refresh(ctx context.Context, list func(ctx context.Context, s *settings) ([]string, error)) error {
	s, err := b.current(ctx)
	if err != nil {
		return err
	}
	if b.desc.RequiresToken && s.token == "" {
		return apperrors.NewMissingAPIKeyError(b.desc.DisplayName)
	}

	key := cache.ModelListKey(b.desc.Name, s.host, s.token)
	ids, ok := []string(nil), false
	if b.deps.Models != nil {
		ids, ok = b.deps.Models.Get(key)
	}
	if !ok {
		if ids, err = list(ctx, s); err != nil {
			return err
		}
		if b.deps.Models != nil {
			b.deps.Models.Set(key, ids, b.deps.ModelsTTL)
		}
		apperrors.Debug("Fetched %d models from %s", len(ids), b.desc.Name)
	}

	for _, id := range ids {
		b.cfg.AddModelID(id)
	}
	return nil
}

// wrapTransportError maps a failed round trip to a network or timeout error.
// The request URL is dropped from the message because it may carry the key.
func wrapTransportError(err error) error {
	if err == nil {
		return nil
	}
	if appErr := apperrors.GetAppError(err); appErr != nil {
		return appErr
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		err = fmt.Errorf("%s: %w", urlErr.Op, urlErr.Err)
	}

	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return apperrors.NewTimeoutError(err)
	}
	return apperrors.NewNetworkError(err)
}
