package ui

import (
	"strconv"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/aicommits/aicommits/internal/pkg/ai"
	"github.com/aicommits/aicommits/internal/pkg/config"
	apperrors "github.com/aicommits/aicommits/internal/pkg/errors"
	"github.com/aicommits/aicommits/internal/pkg/scope"
)

// Snapshot is an immutable copy of the editable fields of a client
// configuration. Edits produce a new Snapshot through Reduce.
type Snapshot struct {
	Host        string
	Proxy       string
	Timeout     string
	ModelID     string
	Temperature string
	Token       string

	// TokenStored reports whether a token was saved earlier. The token
	// itself is never read back into the form.
	TokenStored bool
}

// SnapshotOf copies the current values of cfg.
func SnapshotOf(cfg *config.ClientConfig) Snapshot {
	return Snapshot{
		Host:        cfg.Host,
		Proxy:       cfg.ProxyURL,
		Timeout:     strconv.Itoa(cfg.Timeout),
		ModelID:     cfg.ModelID,
		Temperature: cfg.Temperature,
		Token:       cfg.StagedToken(),
		TokenStored: cfg.IsTokenStored(),
	}
}

// Edit is a single change made in the panel.
type Edit interface {
	apply(s Snapshot) Snapshot
}

type (
	SetHost        string
	SetProxy       string
	SetTimeout     string
	SetModelID     string
	SetTemperature string
	SetToken       string
)

func (e SetHost) apply(s Snapshot) Snapshot        { s.Host = strings.TrimSpace(string(e)); return s }
func (e SetProxy) apply(s Snapshot) Snapshot       { s.Proxy = strings.TrimSpace(string(e)); return s }
func (e SetTimeout) apply(s Snapshot) Snapshot     { s.Timeout = strings.TrimSpace(string(e)); return s }
func (e SetModelID) apply(s Snapshot) Snapshot     { s.ModelID = strings.TrimSpace(string(e)); return s }
func (e SetTemperature) apply(s Snapshot) Snapshot { s.Temperature = strings.TrimSpace(string(e)); return s }
func (e SetToken) apply(s Snapshot) Snapshot       { s.Token = string(e); return s }

// Reduce returns s with e applied. A nil edit leaves s unchanged.
func Reduce(s Snapshot, e Edit) Snapshot {
	if e == nil {
		return s
	}
	return e.apply(s)
}

// ValidateTimeout accepts a non-negative whole number of seconds.
func ValidateTimeout(s string) error {
	_, err := ai.ParseTimeout(s)
	return err
}

// ValidateTemperature returns a predicate accepting temperatures within r.
func ValidateTemperature(r ai.Range) func(string) error {
	return func(s string) error {
		_, err := ai.ParseTemperature(s, r)
		return err
	}
}

// ValidateHost accepts an absolute http or https URL. A blank host selects
// the provider default.
func ValidateHost(s string) error {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return ai.ValidateHost(s)
}

// ValidateProxy accepts a blank value or an absolute URL.
func ValidateProxy(s string) error {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	_, err := ai.ParseProxy(s)
	return err
}

// Apply pushes s into cfg: host, proxy, timeout, model id and temperature
// are stored, host and model id join the known sets, and a non-blank
// token is staged. Nothing is written to the secret store.
func Apply(cfg *config.ClientConfig, s Snapshot) error {
	if err := ValidateHost(s.Host); err != nil {
		return err
	}
	if err := ValidateProxy(s.Proxy); err != nil {
		return err
	}
	timeout, err := ai.ParseTimeout(s.Timeout)
	if err != nil {
		return err
	}

	cfg.Host = s.Host
	cfg.ProxyURL = s.Proxy
	cfg.Timeout = timeout
	applyTransient(cfg, s)
	if s.Host != "" {
		cfg.AddHost(s.Host)
	}
	if s.ModelID != "" {
		cfg.AddModelID(s.ModelID)
	}
	return nil
}

// applyTransient copies the fields a verification reads from the
// configuration rather than from its input.
func applyTransient(cfg *config.ClientConfig, s Snapshot) {
	cfg.ModelID = s.ModelID
	cfg.Temperature = s.Temperature
	if strings.TrimSpace(s.Token) != "" {
		cfg.StageToken(s.Token)
	}
}

// VerifyLabel is the rendered result of the last verification.
type VerifyLabel struct {
	Text    string
	Success bool
	Pending bool
}

var (
	labelSuccess = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
	labelFailure = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	labelPending = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Italic(true)
)

// LabelFor converts an outcome into a label.
func LabelFor(out ai.Outcome) VerifyLabel {
	return VerifyLabel{Text: out.Message, Success: out.Success}
}

// Render returns the label text, styled when color is set.
func (l VerifyLabel) Render(color bool) string {
	marker := "[FAIL] "
	style := labelFailure
	switch {
	case l.Pending:
		marker, style = "", labelPending
	case l.Success:
		marker, style = "[OK] ", labelSuccess
	}
	if !color {
		return marker + l.Text
	}
	return style.Render(marker + l.Text)
}

// Panel binds a Snapshot to one client. Edits change only the snapshot;
// the configuration is touched by Verify and Save.
type Panel struct {
	client      ai.Client
	service     *ai.Service
	dispatcher  scope.Dispatcher
	temperature ai.Range

	mu       sync.Mutex
	snap     Snapshot
	label    VerifyLabel
	onChange func(VerifyLabel)
}

// NewPanel creates a panel for c. Verification results are applied on d.
func NewPanel(c ai.Client, svc *ai.Service, d scope.Dispatcher, temperature ai.Range) *Panel {
	if d == nil {
		d = scope.Immediate{}
	}
	return &Panel{
		client:      c,
		service:     svc,
		dispatcher:  d,
		temperature: temperature,
		snap:        SnapshotOf(c.Configuration()),
	}
}

// OnLabel registers fn to run on the dispatcher whenever the label changes.
func (p *Panel) OnLabel(fn func(VerifyLabel)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onChange = fn
}

// Snapshot returns the current field values.
func (p *Panel) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snap
}

// Label returns the last verification label.
func (p *Panel) Label() VerifyLabel {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.label
}

// Dispatch applies edits to the snapshot in order.
func (p *Panel) Dispatch(edits ...Edit) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, e := range edits {
		p.snap = Reduce(p.snap, e)
	}
}

// Validate runs every field predicate and returns the first failure.
func (p *Panel) Validate() error {
	s := p.Snapshot()
	checks := []struct {
		value string
		check func(string) error
	}{
		{s.Host, ValidateHost},
		{s.Proxy, ValidateProxy},
		{s.Timeout, ValidateTimeout},
		{s.Temperature, ValidateTemperature(p.temperature)},
	}
	for _, c := range checks {
		if err := c.check(c.value); err != nil {
			return err
		}
	}
	return nil
}

// Verify checks the snapshot against a clone of the client: the model id,
// temperature and token are staged on the clone, and the host, proxy and
// timeout are passed as input. The client's configuration is left as is.
// The label shows a pending state until the outcome arrives on the
// dispatcher.
func (p *Panel) Verify() *scope.Future[ai.Outcome] {
	s := p.Snapshot()
	staged := p.client.Clone()
	applyTransient(staged.Configuration(), s)
	p.setLabel(VerifyLabel{Text: "Verifying...", Pending: true})

	f := p.service.Verify(staged, ai.VerifyInput{
		Host:    s.Host,
		Proxy:   s.Proxy,
		Timeout: s.Timeout,
		Token:   s.Token,
	})
	f.Then(p.dispatcher, func(out ai.Outcome, _ error) {
		p.setLabel(LabelFor(out))
	})
	return f
}

// Save validates and applies the snapshot, then stores a newly entered
// token. The returned future reports whether a token was stored.
func (p *Panel) Save() (*scope.Future[bool], error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	s := p.Snapshot()
	cfg := p.client.Configuration()
	if err := Apply(cfg, s); err != nil {
		return nil, err
	}
	if strings.TrimSpace(s.Token) == "" {
		return scope.Resolved(false, nil), nil
	}
	apperrors.Debug("Saving token for client %s", cfg.ID)
	return p.service.SaveToken(cfg, s.Token), nil
}

func (p *Panel) setLabel(l VerifyLabel) {
	p.mu.Lock()
	p.label = l
	fn := p.onChange
	p.mu.Unlock()
	if fn != nil {
		fn(l)
	}
}
