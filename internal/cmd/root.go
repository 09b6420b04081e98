// Package cmd contains the CLI command definitions for aicommits.
package cmd

import (
	"context"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/aicommits/aicommits/internal/app"
	"github.com/aicommits/aicommits/internal/pkg/config"
	apperrors "github.com/aicommits/aicommits/internal/pkg/errors"
	"github.com/aicommits/aicommits/internal/pkg/ui"
)

// CommandTimeout bounds every command that talks to a provider.
const CommandTimeout = 5 * time.Minute

// NewRootCmd creates the root command for the aicommits CLI.
func NewRootCmd(version, commitHash, date string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "aicommits",
		Short: "Manage and verify LLM clients for commit message generation",
		Long: `aicommits manages a set of LLM clients (Gemini, OpenAI, DeepSeek,
Ollama, Anthropic) used to generate git commit messages.

Each client keeps its host, proxy, timeout, model and temperature in the
configuration file. Tokens are kept in a separate secret store and never
written to the configuration file. Use 'verify' to check that a client
answers before relying on it.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			verbose, _ := cmd.Flags().GetBool("verbose")
			apperrors.SetVerbose(verbose)
		},
	}

	rootCmd.SetVersionTemplate(`aicommits {{.Version}}
Commit: ` + commitHash + `
Built:  ` + date + "\n")

	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().String("config", "", "Config file path (default: ~/.aicommits/config.yaml)")
	rootCmd.PersistentFlags().BoolP("yes", "y", false, "Non-interactive: no prompts, no spinners, plain output")

	rootCmd.AddCommand(NewClientCmd())
	rootCmd.AddCommand(NewTokenCmd())
	rootCmd.AddCommand(NewVerifyCmd())
	rootCmd.AddCommand(NewModelsCmd())
	rootCmd.AddCommand(NewGenerateCmd())
	rootCmd.AddCommand(NewSettingsCmd())
	rootCmd.AddCommand(NewHistoryCmd())
	rootCmd.AddCommand(NewProvidersCmd())
	rootCmd.AddCommand(NewConfigCmd())

	return rootCmd
}

// configManager creates the manager for the --config path.
func configManager(cmd *cobra.Command) (*config.ViperManager, error) {
	configPath, _ := cmd.Flags().GetString("config")
	mgr, err := config.NewManager(configPath)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrInvalidConfig, "failed to create config manager")
	}
	if configPath != "" {
		apperrors.Debug("Using custom config path: %s", configPath)
	}
	return mgr, nil
}

// uiManager picks the UI for the command's output.
func uiManager(cmd *cobra.Command, cfgMgr *config.ViperManager) ui.Manager {
	yes, _ := cmd.Flags().GetBool("yes")
	if yes {
		return ui.NewNonInteractiveManager(cmd.OutOrStdout())
	}
	color := true
	if cfg, err := cfgMgr.Load(); err == nil {
		color = cfg.UI.ColorEnabled
	}
	if f, ok := cmd.OutOrStdout().(*os.File); !ok || f != os.Stdout {
		color = false
	}
	return ui.NewDefaultManagerTo(color, cmd.OutOrStdout())
}

// session is what most commands run with.
type session struct {
	app    *app.App
	cfgMgr *config.ViperManager
	ui     ui.Manager
}

// withSession opens the application for cmd, runs fn and closes it.
func withSession(cmd *cobra.Command, fn func(ctx context.Context, s *session) error) error {
	cfgMgr, err := configManager(cmd)
	if err != nil {
		return err
	}
	uiMgr := uiManager(cmd, cfgMgr)

	a, err := app.New(cfgMgr, uiMgr)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			apperrors.Warn("Failed to close secret store: %v", err)
		}
	}()

	ctx, cancel := context.WithTimeout(cmd.Context(), CommandTimeout)
	defer cancel()
	return fn(ctx, &session{app: a, cfgMgr: cfgMgr, ui: uiMgr})
}

// clientRef returns the optional client argument.
func clientRef(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return ""
}
