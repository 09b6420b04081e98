package ai

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/aicommits/aicommits/internal/pkg/cache"
	"github.com/aicommits/aicommits/internal/pkg/config"
	apperrors "github.com/aicommits/aicommits/internal/pkg/errors"
	"github.com/aicommits/aicommits/internal/pkg/secrets"
)

// ProviderName constants for supported providers.
const (
	ProviderNameGemini    = "gemini"
	ProviderNameOpenAI    = "openai"
	ProviderNameDeepSeek  = "deepseek"
	ProviderNameOllama    = "ollama"
	ProviderNameAnthropic = "anthropic"
)

// Range is an inclusive numeric range.
type Range struct {
	Min float64
	Max float64
}

// Contains reports whether v lies within the range.
func (r Range) Contains(v float64) bool {
	return v >= r.Min && v <= r.Max
}

func (r Range) String() string {
	return fmt.Sprintf("%g-%g", r.Min, r.Max)
}

// Deps are the collaborators shared by every client.
type Deps struct {
	Store     secrets.Store
	Models    cache.Manager[[]string] // optional
	ModelsTTL time.Duration
	Retry     apperrors.RetryConfig // zero value selects DefaultRetryConfig
}

// Descriptor describes one provider.
type Descriptor struct {
	Name               string
	DisplayName        string
	Icon               string
	DefaultHosts       []string
	DefaultModelIDs    []string
	DefaultTemperature string
	Temperature        Range
	RequiresToken      bool

	New func(b *base) Client
}

// DefaultHost is the first suggested host, or "".
func (d *Descriptor) DefaultHost() string {
	if len(d.DefaultHosts) == 0 {
		return ""
	}
	return d.DefaultHosts[0]
}

// DefaultModelID is the first suggested model id, or "".
func (d *Descriptor) DefaultModelID() string {
	if len(d.DefaultModelIDs) == 0 {
		return ""
	}
	return d.DefaultModelIDs[0]
}

// Registry maps provider names to descriptors.
type Registry struct {
	mu    sync.RWMutex
	descs map[string]*Descriptor
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{descs: make(map[string]*Descriptor)}
}

// DefaultRegistry returns a registry with every built-in provider.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for _, d := range []*Descriptor{
		geminiDescriptor(),
		openAIDescriptor(),
		deepSeekDescriptor(),
		ollamaDescriptor(),
		anthropicDescriptor(),
	} {
		if err := r.Register(d); err != nil {
			panic(err)
		}
	}
	return r
}

// Register adds d. Names must be unique.
func (r *Registry) Register(d *Descriptor) error {
	if d == nil || d.Name == "" || d.New == nil {
		return apperrors.New(apperrors.ErrInvalidArguments, "provider descriptor needs a name and a constructor")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.descs[d.Name]; ok {
		return apperrors.New(apperrors.ErrInvalidArguments, fmt.Sprintf("provider %s is already registered", d.Name))
	}
	r.descs[d.Name] = d
	return nil
}

// Lookup returns the descriptor registered under name.
func (r *Registry) Lookup(name string) (*Descriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.descs[name]
	if !ok {
		return nil, apperrors.NewUnknownProviderError(name)
	}
	return d, nil
}

// Names returns the registered provider names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.descs))
	for n := range r.descs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Descriptors returns the registered descriptors sorted by name.
func (r *Registry) Descriptors() []*Descriptor {
	names := r.Names()
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Descriptor, 0, len(names))
	for _, n := range names {
		out = append(out, r.descs[n])
	}
	return out
}

// NewConfig creates a configuration for provider name filled with the
// provider defaults.
func (r *Registry) NewConfig(name, displayName string) (*config.ClientConfig, error) {
	d, err := r.Lookup(name)
	if err != nil {
		return nil, err
	}
	if displayName == "" {
		displayName = d.DisplayName
	}
	cfg := config.NewClientConfig(d.Name, displayName)
	cfg.Host = d.DefaultHost()
	cfg.ModelID = d.DefaultModelID()
	cfg.Temperature = d.DefaultTemperature
	cfg.AddHost(cfg.Host)
	cfg.AddModelID(cfg.ModelID)
	return cfg, nil
}

// New builds the client for cfg.
func (r *Registry) New(cfg *config.ClientConfig, deps Deps) (Client, error) {
	if cfg == nil {
		return nil, apperrors.New(apperrors.ErrInvalidArguments, "client configuration is required")
	}
	d, err := r.Lookup(cfg.Provider)
	if err != nil {
		return nil, err
	}
	return d.New(&base{desc: d, cfg: cfg, deps: deps}), nil
}
