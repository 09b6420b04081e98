// Package ui provides the settings panel contract and the terminal UI
// components for aicommits.
package ui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/aicommits/aicommits/internal/pkg/ai"
	"github.com/aicommits/aicommits/internal/pkg/history"
	"github.com/aicommits/aicommits/internal/pkg/notify"
)

// Spinner provides loading animation functionality.
type Spinner interface {
	Start()
	Stop()
	UpdateText(text string)
}

// ProgressSpinner provides loading animation with progress tracking.
type ProgressSpinner interface {
	Spinner
	SetTotal(total int)
	SetCurrent(current int)
	SetCurrentItem(item string)
}

// Manager defines the interface for UI operations.
type Manager interface {
	notify.Notifier
	ShowClients(clients []ai.Client, active string)
	ShowClient(c ai.Client)
	ShowLabel(l VerifyLabel)
	ShowHistory(entries []*history.Entry)
	ShowSpinner(text string) Spinner
	ShowProgressSpinner(text string, total int) ProgressSpinner
	ShowError(err error)
	ShowSuccess(message string)
	PromptConfirm(message string) (bool, error)
}

// styles holds the lipgloss styles for UI rendering.
type styles struct {
	title      lipgloss.Style
	name       lipgloss.Style
	muted      lipgloss.Style
	success    lipgloss.Style
	warning    lipgloss.Style
	errorStyle lipgloss.Style
	info       lipgloss.Style
}

func newStyles(colorEnabled bool) *styles {
	if !colorEnabled {
		return &styles{
			title:      lipgloss.NewStyle(),
			name:       lipgloss.NewStyle(),
			muted:      lipgloss.NewStyle(),
			success:    lipgloss.NewStyle(),
			warning:    lipgloss.NewStyle(),
			errorStyle: lipgloss.NewStyle(),
			info:       lipgloss.NewStyle(),
		}
	}
	return &styles{
		title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39")),
		name: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("220")),
		muted: lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")),
		success: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("42")),
		warning: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("214")),
		errorStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("196")),
		info: lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")),
	}
}

// DefaultManager implements the Manager interface using charmbracelet libraries.
type DefaultManager struct {
	colorEnabled bool
	out          io.Writer
	styles       *styles
	mu           sync.Mutex
}

// NewDefaultManager creates a new DefaultManager writing to stdout.
func NewDefaultManager(colorEnabled bool) *DefaultManager {
	return NewDefaultManagerTo(colorEnabled, os.Stdout)
}

// NewDefaultManagerTo creates a DefaultManager writing to out.
func NewDefaultManagerTo(colorEnabled bool, out io.Writer) *DefaultManager {
	return &DefaultManager{
		colorEnabled: colorEnabled,
		out:          out,
		styles:       newStyles(colorEnabled),
	}
}

func (m *DefaultManager) println(s string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fmt.Fprintln(m.out, s)
}

// tokenState describes where the token of cfg comes from.
func tokenState(c ai.Client) string {
	cfg := c.Configuration()
	switch {
	case cfg.StagedToken() != "":
		return "staged"
	case cfg.IsTokenStored():
		return "stored"
	default:
		return "none"
	}
}

// ShowClients prints one line per client, marking the active one.
func (m *DefaultManager) ShowClients(clients []ai.Client, active string) {
	if len(clients) == 0 {
		m.println(m.styles.muted.Render("No clients configured. Run 'aicommits client add <provider>'."))
		return
	}
	var sb strings.Builder
	sb.WriteString(m.styles.title.Render("Clients"))
	sb.WriteString("\n")
	for _, c := range clients {
		cfg := c.Configuration()
		marker := "  "
		if cfg.ID == active {
			marker = "* "
		}
		sb.WriteString(fmt.Sprintf("%s%s %s %s\n",
			marker,
			c.Icon(),
			m.styles.name.Render(cfg.Label()),
			m.styles.muted.Render(fmt.Sprintf("(%s, %s, token: %s) %s", c.Name(), cfg.ModelID, tokenState(c), cfg.ID))))
	}
	m.println(strings.TrimRight(sb.String(), "\n"))
}

// ShowClient prints the full settings of one client. The token is never shown.
func (m *DefaultManager) ShowClient(c ai.Client) {
	cfg := c.Configuration()
	rows := [][2]string{
		{"id", cfg.ID},
		{"provider", c.Name()},
		{"name", cfg.Label()},
		{"host", cfg.Host},
		{"proxy", cfg.ProxyURL},
		{"timeout", fmt.Sprintf("%ds", cfg.Timeout)},
		{"model", cfg.ModelID},
		{"temperature", cfg.Temperature},
		{"token", tokenState(c)},
		{"hosts", strings.Join(c.Hosts(), ", ")},
		{"models", strings.Join(c.ModelIDs(), ", ")},
	}
	var sb strings.Builder
	sb.WriteString(m.styles.title.Render(c.Icon() + " " + cfg.Label()))
	sb.WriteString("\n")
	for _, r := range rows {
		sb.WriteString(fmt.Sprintf("  %-12s %s\n", m.styles.muted.Render(r[0]), r[1]))
	}
	m.println(strings.TrimRight(sb.String(), "\n"))
}

// ShowLabel prints a verification label.
func (m *DefaultManager) ShowLabel(l VerifyLabel) {
	m.println(l.Render(m.colorEnabled))
}

// ShowHistory prints verification history entries, oldest first.
func (m *DefaultManager) ShowHistory(entries []*history.Entry) {
	if len(entries) == 0 {
		m.println(m.styles.muted.Render("No verifications recorded."))
		return
	}
	for _, e := range entries {
		status := m.styles.success.Render("ok  ")
		if !e.Success {
			status = m.styles.errorStyle.Render("fail")
		}
		m.println(fmt.Sprintf("%s %s %s %s %s",
			m.styles.muted.Render(e.Timestamp.Format(time.DateTime)),
			status,
			m.styles.name.Render(e.ClientName),
			m.styles.muted.Render(fmt.Sprintf("%s@%s %s", e.Model, e.Host, e.Duration.Round(time.Millisecond))),
			e.Message))
	}
}

// Notify prints a notification. It implements notify.Notifier.
func (m *DefaultManager) Notify(n notify.Notification) {
	style := m.styles.info
	switch n.Level {
	case notify.Warning:
		style = m.styles.warning
	case notify.Error:
		style = m.styles.errorStyle
	}
	m.println(style.Render(n.Title+": ") + n.Message)
}

// ShowSpinner creates and returns a spinner for loading states.
func (m *DefaultManager) ShowSpinner(text string) Spinner {
	return newBubbleSpinner(text)
}

// ShowProgressSpinner creates a spinner with progress tracking.
func (m *DefaultManager) ShowProgressSpinner(text string, total int) ProgressSpinner {
	return newBubbleProgressSpinner(text, total)
}

// ShowError displays an error message to the user.
func (m *DefaultManager) ShowError(err error) {
	if err == nil {
		return
	}
	m.println(m.styles.errorStyle.Render("Error: " + err.Error()))
}

// ShowSuccess displays a success message to the user.
func (m *DefaultManager) ShowSuccess(message string) {
	m.println(m.styles.success.Render("[OK] " + message))
}

// PromptConfirm prompts the user for a yes/no confirmation using Bubble Tea.
func (m *DefaultManager) PromptConfirm(message string) (bool, error) {
	p := tea.NewProgram(newConfirmModel(message))

	finalModel, err := p.Run()
	if err != nil {
		return false, err
	}

	result := finalModel.(confirmModel)
	return result.confirmed, nil
}

// confirmModel is the Bubble Tea model for yes/no confirmation.
type confirmModel struct {
	message   string
	cursor    int // 0 = Yes, 1 = No
	confirmed bool
	done      bool
}

func newConfirmModel(message string) confirmModel {
	return confirmModel{message: message, cursor: 1}
}

func (m confirmModel) Init() tea.Cmd {
	return nil
}

func (m confirmModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "n", "N":
			m.confirmed = false
			m.done = true
			return m, tea.Quit
		case "y", "Y":
			m.confirmed = true
			m.done = true
			return m, tea.Quit
		case "left", "h":
			m.cursor = 0
		case "right", "l":
			m.cursor = 1
		case "enter", " ":
			m.confirmed = m.cursor == 0
			m.done = true
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m confirmModel) View() string {
	if m.done {
		return ""
	}

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("220"))
	selectedStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("42"))
	normalStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("245"))

	yesStyle, noStyle := normalStyle, normalStyle
	if m.cursor == 0 {
		yesStyle = selectedStyle
	} else {
		noStyle = selectedStyle
	}

	return titleStyle.Render(m.message) + " " + yesStyle.Render("[Y]es") + " / " + noStyle.Render("[N]o")
}

// bubbleSpinner implements Spinner using Bubble Tea.
type bubbleSpinner struct {
	text    string
	program *tea.Program
	model   *spinnerModel
	mu      sync.Mutex
}

// spinnerModel is the Bubble Tea model for simple spinner.
type spinnerModel struct {
	spinner  spinner.Model
	text     string
	quitting bool
}

// spinnerTextMsg updates the spinner text from outside.
type spinnerTextMsg struct {
	text string
}

// spinnerQuitMsg signals the spinner to quit.
type spinnerQuitMsg struct{}

func (m spinnerModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m spinnerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case spinnerTextMsg:
		m.text = msg.text
		return m, nil
	case spinnerQuitMsg:
		m.quitting = true
		return m, tea.Quit
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m spinnerModel) View() string {
	if m.quitting {
		return ""
	}
	return fmt.Sprintf("%s %s", m.spinner.View(), m.text)
}

func newBubbleSpinner(text string) *bubbleSpinner {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return &bubbleSpinner{
		text:  text,
		model: &spinnerModel{spinner: s, text: text},
	}
}

func (s *bubbleSpinner) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.program = tea.NewProgram(s.model)
	go func() {
		_, _ = s.program.Run()
	}()
}

func (s *bubbleSpinner) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.program != nil {
		s.program.Send(spinnerQuitMsg{})
		s.program.Wait()
		s.program = nil
	}
}

func (s *bubbleSpinner) UpdateText(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.text = text
	if s.program != nil {
		s.program.Send(spinnerTextMsg{text: text})
	}
}

// bubbleProgressSpinner implements ProgressSpinner using Bubble Tea.
type bubbleProgressSpinner struct {
	text    string
	total   int
	current int
	item    string
	program *tea.Program
	mu      sync.Mutex
}

// progressModel is the Bubble Tea model for progress spinner.
type progressModel struct {
	spinner  spinner.Model
	progress progress.Model
	text     string
	total    int
	current  int
	item     string
	quitting bool
}

// progressUpdateMsg updates progress state.
type progressUpdateMsg struct {
	current int
	total   int
	text    string
	item    string
}

// progressQuitMsg signals quit.
type progressQuitMsg struct{}

func (m progressModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case progressUpdateMsg:
		m.current = msg.current
		m.total = msg.total
		if msg.text != "" {
			m.text = msg.text
		}
		m.item = msg.item
		return m, nil
	case progressQuitMsg:
		m.quitting = true
		return m, tea.Quit
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case progress.FrameMsg:
		pm, cmd := m.progress.Update(msg)
		m.progress = pm.(progress.Model)
		return m, cmd
	}
	return m, nil
}

func (m progressModel) View() string {
	if m.quitting {
		return ""
	}

	percent := 0.0
	if m.total > 0 {
		percent = float64(m.current) / float64(m.total)
	}

	var sb strings.Builder
	sb.WriteString(m.spinner.View())
	sb.WriteString(" ")
	sb.WriteString(m.progress.ViewAs(percent))
	sb.WriteString(fmt.Sprintf(" %d/%d ", m.current, m.total))
	sb.WriteString(m.text)

	if m.item != "" {
		item := m.item
		if len(item) > 25 {
			item = "..." + item[len(item)-22:]
		}
		sb.WriteString(" → ")
		sb.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Render(item))
	}

	return sb.String()
}

func newBubbleProgressSpinner(text string, total int) *bubbleProgressSpinner {
	return &bubbleProgressSpinner{text: text, total: total}
}

func (s *bubbleProgressSpinner) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	prog := progress.New(
		progress.WithDefaultGradient(),
		progress.WithWidth(20),
		progress.WithoutPercentage(),
	)

	s.program = tea.NewProgram(progressModel{
		spinner:  sp,
		progress: prog,
		text:     s.text,
		total:    s.total,
	})
	go func() {
		_, _ = s.program.Run()
	}()
}

func (s *bubbleProgressSpinner) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.program != nil {
		s.program.Send(progressQuitMsg{})
		s.program.Wait()
		s.program = nil
	}
}

// send must be called with mu held.
func (s *bubbleProgressSpinner) send() {
	if s.program != nil {
		s.program.Send(progressUpdateMsg{
			current: s.current,
			total:   s.total,
			text:    s.text,
			item:    s.item,
		})
	}
}

func (s *bubbleProgressSpinner) UpdateText(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.text = text
	s.send()
}

func (s *bubbleProgressSpinner) SetTotal(total int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.total = total
	s.send()
}

func (s *bubbleProgressSpinner) SetCurrent(current int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = current
	s.send()
}

func (s *bubbleProgressSpinner) SetCurrentItem(item string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.item = item
	s.send()
}

// NonInteractiveManager implements Manager for scripts and pipes: plain
// text, no spinners, confirmations are accepted.
type NonInteractiveManager struct {
	*DefaultManager
}

// NewNonInteractiveManager creates a new NonInteractiveManager.
func NewNonInteractiveManager(out io.Writer) *NonInteractiveManager {
	return &NonInteractiveManager{DefaultManager: NewDefaultManagerTo(false, out)}
}

// ShowSpinner returns a no-op spinner in non-interactive mode.
func (m *NonInteractiveManager) ShowSpinner(string) Spinner {
	return &noopSpinner{}
}

// ShowProgressSpinner returns a no-op progress spinner in non-interactive mode.
func (m *NonInteractiveManager) ShowProgressSpinner(string, int) ProgressSpinner {
	return &noopProgressSpinner{}
}

// ShowError writes the error to stderr.
func (m *NonInteractiveManager) ShowError(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "Error: %s\n", err.Error())
}

// ShowSuccess prints the message without decoration.
func (m *NonInteractiveManager) ShowSuccess(message string) {
	m.println(message)
}

// PromptConfirm always returns true in non-interactive mode.
func (m *NonInteractiveManager) PromptConfirm(string) (bool, error) {
	return true, nil
}

// noopSpinner is a no-op implementation of Spinner.
type noopSpinner struct{}

func (s *noopSpinner) Start()            {}
func (s *noopSpinner) Stop()             {}
func (s *noopSpinner) UpdateText(string) {}

// noopProgressSpinner is a no-op implementation of ProgressSpinner.
type noopProgressSpinner struct{}

func (s *noopProgressSpinner) Start()                {}
func (s *noopProgressSpinner) Stop()                 {}
func (s *noopProgressSpinner) UpdateText(string)     {}
func (s *noopProgressSpinner) SetTotal(int)          {}
func (s *noopProgressSpinner) SetCurrent(int)        {}
func (s *noopProgressSpinner) SetCurrentItem(string) {}
