package ui

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aicommits/aicommits/internal/pkg/ai"
)

// huh forms need a TTY to run, so these tests cover how the form is built
// and how its result turns into edits.

func TestNewSettingsForm(t *testing.T) {
	s := Snapshot{Host: "https://a", Timeout: "30", ModelID: "m", Temperature: "0.7", Token: "staged", TokenStored: true}
	form, out := newSettingsForm(s, FormFields{
		Hosts:       []string{"https://a"},
		ModelIDs:    []string{"m", "n"},
		Temperature: ai.Range{Min: 0, Max: 2},
		NeedsToken:  true,
	})
	require.NotNil(t, form)
	require.NotNil(t, out)

	assert.Equal(t, "https://a", out.Host)
	assert.Empty(t, out.Token, "the token field always starts blank")
	assert.Equal(t, "staged", s.Token, "the input snapshot is not modified")
}

func TestTokenPlaceholder(t *testing.T) {
	assert.Contains(t, tokenPlaceholder(Snapshot{TokenStored: true}), "stored")
	assert.Equal(t, "Enter your API key", tokenPlaceholder(Snapshot{}))
}

func TestFieldsFor(t *testing.T) {
	reg := ai.DefaultRegistry()
	cfg, err := reg.NewConfig(ai.ProviderNameOllama, "local")
	require.NoError(t, err)
	c, err := reg.New(cfg, ai.Deps{})
	require.NoError(t, err)
	d, err := reg.Lookup(ai.ProviderNameOllama)
	require.NoError(t, err)

	f := FieldsFor(c, d)
	assert.False(t, f.NeedsToken)
	assert.Equal(t, c.ModelIDs(), f.ModelIDs)
	assert.Equal(t, d.Temperature, f.Temperature)
}

func TestEditsBetween(t *testing.T) {
	before := Snapshot{Host: "https://a", Timeout: "30", ModelID: "m", Temperature: "0.7"}

	tests := []struct {
		name  string
		after Snapshot
		want  []Edit
	}{
		{"unchanged", before, nil},
		{
			name:  "model and temperature",
			after: Snapshot{Host: "https://a", Timeout: "30", ModelID: "n", Temperature: "1"},
			want:  []Edit{SetModelID("n"), SetTemperature("1")},
		},
		{
			name:  "blank token is not an edit",
			after: Snapshot{Host: "https://a", Timeout: "30", ModelID: "m", Temperature: "0.7", Token: "  "},
			want:  nil,
		},
		{
			name:  "new token",
			after: Snapshot{Host: "https://a", Timeout: "30", ModelID: "m", Temperature: "0.7", Token: "k"},
			want:  []Edit{SetToken("k")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			edits := EditsBetween(before, tt.after)
			assert.Equal(t, tt.want, edits)

			got := before
			for _, e := range edits {
				got = Reduce(got, e)
			}
			if tt.want != nil {
				assert.Equal(t, tt.after, got)
			}
		})
	}
}
