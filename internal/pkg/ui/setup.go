package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/aicommits/aicommits/internal/pkg/ai"
)

// FormFields lists what the settings form offers for one provider.
type FormFields struct {
	Hosts       []string
	ModelIDs    []string
	Temperature ai.Range
	NeedsToken  bool
}

// FieldsFor returns the form fields for c using the descriptor d.
func FieldsFor(c ai.Client, d *ai.Descriptor) FormFields {
	return FormFields{
		Hosts:       c.Hosts(),
		ModelIDs:    c.ModelIDs(),
		Temperature: d.Temperature,
		NeedsToken:  d.RequiresToken,
	}
}

// tokenPlaceholder is shown in the empty token field.
func tokenPlaceholder(s Snapshot) string {
	if s.TokenStored {
		return "Token is stored, leave blank to keep it"
	}
	return "Enter your API key"
}

// newSettingsForm builds the settings form over the fields of s. Values
// are written back into the returned snapshot pointer when the form runs.
func newSettingsForm(s Snapshot, f FormFields) (*huh.Form, *Snapshot) {
	out := s
	out.Token = ""

	fields := []huh.Field{
		huh.NewInput().
			Title("Host").
			Description("API base URL, blank for the provider default").
			Suggestions(f.Hosts).
			Value(&out.Host).
			Validate(ValidateHost),
		huh.NewInput().
			Title("Proxy").
			Description("Optional, e.g. http://proxy:3128").
			Value(&out.Proxy).
			Validate(ValidateProxy),
		huh.NewInput().
			Title("Timeout").
			Description("Seconds, 0 for no timeout").
			Value(&out.Timeout).
			Validate(ValidateTimeout),
		huh.NewInput().
			Title("Model").
			Suggestions(f.ModelIDs).
			Value(&out.ModelID).
			Validate(func(s string) error {
				if strings.TrimSpace(s) == "" {
					return fmt.Errorf("model id cannot be empty")
				}
				return nil
			}),
		huh.NewInput().
			Title("Temperature").
			Description(fmt.Sprintf("Between %s", f.Temperature)).
			Value(&out.Temperature).
			Validate(ValidateTemperature(f.Temperature)),
	}

	if f.NeedsToken {
		fields = append(fields,
			huh.NewInput().
				Title("API Key").
				Placeholder(tokenPlaceholder(s)).
				Value(&out.Token).
				Password(true))
	}

	return huh.NewForm(huh.NewGroup(fields...)), &out
}

// RunForm shows the settings form for s and returns the edited snapshot.
// A blank token in the result means the token was left unchanged.
func RunForm(s Snapshot, f FormFields) (Snapshot, error) {
	form, out := newSettingsForm(s, f)
	if err := form.Run(); err != nil {
		return s, err
	}
	return *out, nil
}

// EditsBetween returns the edits turning before into after.
func EditsBetween(before, after Snapshot) []Edit {
	var edits []Edit
	if before.Host != after.Host {
		edits = append(edits, SetHost(after.Host))
	}
	if before.Proxy != after.Proxy {
		edits = append(edits, SetProxy(after.Proxy))
	}
	if before.Timeout != after.Timeout {
		edits = append(edits, SetTimeout(after.Timeout))
	}
	if before.ModelID != after.ModelID {
		edits = append(edits, SetModelID(after.ModelID))
	}
	if before.Temperature != after.Temperature {
		edits = append(edits, SetTemperature(after.Temperature))
	}
	if strings.TrimSpace(after.Token) != "" && before.Token != after.Token {
		edits = append(edits, SetToken(after.Token))
	}
	return edits
}

// RunProviderSelect asks for a provider and a display name for a new client.
func RunProviderSelect(descs []*ai.Descriptor) (provider, name string, err error) {
	options := make([]huh.Option[string], 0, len(descs))
	for _, d := range descs {
		options = append(options, huh.NewOption(d.Icon+" "+d.DisplayName, d.Name))
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Select AI Provider").
				Options(options...).
				Value(&provider),
			huh.NewInput().
				Title("Name").
				Description("Optional display name for this client").
				Value(&name),
		),
	)
	if err := form.Run(); err != nil {
		return "", "", err
	}
	return provider, strings.TrimSpace(name), nil
}

// PromptToken asks for a token without echoing it.
func PromptToken(label string) (string, error) {
	var token string
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Token for " + label).
				EchoMode(huh.EchoModePassword).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return fmt.Errorf("token cannot be empty")
					}
					return nil
				}).
				Value(&token),
		),
	).Run()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(token), nil
}
