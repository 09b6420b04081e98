package cmd

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	apperrors "github.com/aicommits/aicommits/internal/pkg/errors"
	"github.com/aicommits/aicommits/internal/pkg/security"
)

// NewConfigCmd creates the config command and its subcommands.
func NewConfigCmd() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage aicommits configuration",
		Long: `Manage aicommits configuration settings.

Use subcommands to initialize, view, or modify configuration values.
Configuration is stored in ~/.aicommits/config.yaml by default. Clients are
managed with the 'client' command.`,
	}

	configCmd.AddCommand(newConfigInitCmd())
	configCmd.AddCommand(newConfigSetCmd())
	configCmd.AddCommand(newConfigGetCmd())
	configCmd.AddCommand(newConfigListCmd())
	configCmd.AddCommand(newConfigPathCmd())

	return configCmd
}

// newConfigInitCmd creates the 'config init' subcommand.
func newConfigInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize configuration file",
		Long: `Create a new configuration file with default values.

The configuration file is created with permissions 0600 (user read/write only).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := configManager(cmd)
			if err != nil {
				return err
			}
			if err := mgr.Init(); err != nil {
				return apperrors.Wrap(err, apperrors.ErrFileSystemError, "failed to initialize configuration")
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Configuration file created at %s\n", mgr.GetConfigPath())
			fmt.Fprintln(out, "Add a client with: aicommits client add <provider>")
			return nil
		},
	}
}

// newConfigSetCmd creates the 'config set' subcommand.
func newConfigSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Long: `Set a configuration value by key.

Supports nested keys using dot notation.

Examples:
  aicommits config set secrets.backend memory
  aicommits config set cache.ttl_minutes 30
  aicommits config set history.enabled false
  aicommits config set ui.color_enabled false`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, value := args[0], args[1]

			mgr, err := configManager(cmd)
			if err != nil {
				return err
			}
			if !mgr.ConfigExists() {
				return apperrors.New(apperrors.ErrInvalidConfig, "config file not found").
					WithSuggestion("Run 'aicommits config init' first")
			}
			if err := mgr.Set(key, value); err != nil {
				return apperrors.Wrap(err, apperrors.ErrInvalidArguments, "failed to set "+key)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %s\n", key, displayValue(key, value))
			return nil
		},
	}
}

// newConfigGetCmd creates the 'config get' subcommand.
func newConfigGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Print one configuration value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := configManager(cmd)
			if err != nil {
				return err
			}
			value, err := mgr.Get(args[0])
			if err != nil {
				return apperrors.Wrap(err, apperrors.ErrInvalidArguments, "failed to get "+args[0])
			}
			fmt.Fprintln(cmd.OutOrStdout(), displayValue(args[0], value))
			return nil
		},
	}
}

// newConfigListCmd creates the 'config list' subcommand.
func newConfigListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all configuration values",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := configManager(cmd)
			if err != nil {
				return err
			}
			printSettings(cmd.OutOrStdout(), "", mgr.List())
			return nil
		},
	}
}

// newConfigPathCmd creates the 'config path' subcommand.
func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the configuration file path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := configManager(cmd)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), mgr.GetConfigPath())
			return nil
		},
	}
}

// displayValue masks values of keys that look like credentials.
func displayValue(key, value string) string {
	k := strings.ToLower(key)
	if value != "" && (strings.HasSuffix(k, "token") || strings.Contains(k, "api_key")) {
		return security.MaskAPIKey(value)
	}
	return value
}

// printSettings prints settings sorted by key, nested maps indented.
func printSettings(w io.Writer, indent string, settings map[string]interface{}) {
	keys := make([]string, 0, len(settings))
	for k := range settings {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		switch v := settings[key].(type) {
		case map[string]interface{}:
			fmt.Fprintf(w, "%s%s:\n", indent, key)
			printSettings(w, indent+"  ", v)
		case []interface{}:
			fmt.Fprintf(w, "%s%s: %d item(s)\n", indent, key, len(v))
		default:
			fmt.Fprintf(w, "%s%s: %s\n", indent, key, displayValue(key, fmt.Sprintf("%v", v)))
		}
	}
}
