package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aicommits/aicommits/internal/app"
	"github.com/aicommits/aicommits/internal/pkg/ui"
)

// NewClientCmd creates the client command and its subcommands.
func NewClientCmd() *cobra.Command {
	clientCmd := &cobra.Command{
		Use:     "client",
		Aliases: []string{"clients"},
		Short:   "Manage LLM clients",
		Long: `Manage the configured LLM clients.

A client is one provider configuration: host, proxy, timeout, model and
temperature. Clients are referred to by id, display name, or a unique id
prefix of at least four characters. Commands that take an optional client
use the active client when none is given.`,
	}

	clientCmd.AddCommand(newClientAddCmd())
	clientCmd.AddCommand(newClientListCmd())
	clientCmd.AddCommand(newClientShowCmd())
	clientCmd.AddCommand(newClientRemoveCmd())
	clientCmd.AddCommand(newClientCloneCmd())
	clientCmd.AddCommand(newClientUseCmd())
	clientCmd.AddCommand(newClientSetCmd())

	return clientCmd
}

func newClientAddCmd() *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "add [provider]",
		Short: "Add a client with the provider defaults",
		Long: `Add a client for a provider. Without a provider an interactive picker
is shown.

Examples:
  aicommits client add gemini --name work
  aicommits client add ollama`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, func(ctx context.Context, s *session) error {
				provider := clientRef(args)
				if provider == "" {
					yes, _ := cmd.Flags().GetBool("yes")
					if yes {
						return fmt.Errorf("a provider is required with --yes (one of: %s)", strings.Join(s.app.Registry().Names(), ", "))
					}
					var err error
					var picked string
					provider, picked, err = ui.RunProviderSelect(s.app.Registry().Descriptors())
					if err != nil {
						return err
					}
					if name == "" {
						name = picked
					}
				}

				c, err := s.app.AddClient(provider, name)
				if err != nil {
					return err
				}
				s.ui.ShowSuccess(fmt.Sprintf("Added %s client %s (%s)", c.Name(), c.Configuration().Label(), c.ID()))
				if s.app.Config().Active == c.ID() {
					s.ui.ShowSuccess("It is now the active client")
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&name, "name", "n", "", "Display name")
	return cmd
}

func newClientListCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List configured clients",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, func(ctx context.Context, s *session) error {
				clients, err := s.app.Clients()
				if err != nil {
					return err
				}
				s.ui.ShowClients(clients, s.app.Config().Active)
				return nil
			})
		},
	}
}

func newClientShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show [client]",
		Short: "Show the settings of a client",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, func(ctx context.Context, s *session) error {
				c, err := s.app.Client(clientRef(args))
				if err != nil {
					return err
				}
				s.ui.ShowClient(c)
				return nil
			})
		},
	}
}

func newClientRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "remove <client>",
		Aliases: []string{"rm"},
		Short:   "Remove a client and delete its token",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, func(ctx context.Context, s *session) error {
				c, err := s.app.Client(args[0])
				if err != nil {
					return err
				}
				ok, err := s.ui.PromptConfirm(fmt.Sprintf("Remove client %s?", c.Configuration().Label()))
				if err != nil {
					return err
				}
				if !ok {
					return nil
				}
				removed, err := s.app.RemoveClient(ctx, c.ID())
				if err != nil {
					return err
				}
				s.ui.ShowSuccess(fmt.Sprintf("Removed client %s", removed.Label()))
				return nil
			})
		},
	}
}

func newClientCloneCmd() *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "clone <client>",
		Short: "Copy a client under a new id",
		Long: `Copy a client's settings, known hosts and models under a new id.
The token is not copied.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, func(ctx context.Context, s *session) error {
				c, err := s.app.CloneClient(args[0], name)
				if err != nil {
					return err
				}
				s.ui.ShowSuccess(fmt.Sprintf("Created %s (%s)", c.Configuration().Label(), c.ID()))
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&name, "name", "n", "", "Display name of the copy")
	return cmd
}

func newClientUseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "use <client>",
		Short: "Select the active client",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, func(ctx context.Context, s *session) error {
				cfg, err := s.app.UseClient(args[0])
				if err != nil {
					return err
				}
				s.ui.ShowSuccess(fmt.Sprintf("Active client: %s", cfg.Label()))
				return nil
			})
		},
	}
}

func newClientSetCmd() *cobra.Command {
	var ref string
	cmd := &cobra.Command{
		Use:   "set <field> <value>",
		Short: "Change one field of a client",
		Long: `Change one field of a client. Fields: ` + strings.Join(app.SettableFields, ", ") + `.

Values are validated before they are saved: the timeout must be a
non-negative number of seconds, the temperature must lie within the
provider's range and the host must be an http or https URL.

Examples:
  aicommits client set model gemini-2.5-pro
  aicommits client set temperature 0.2 --client work
  aicommits client set host http://localhost:11434 -c local`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, func(ctx context.Context, s *session) error {
				if err := s.app.SetField(ref, args[0], args[1]); err != nil {
					return err
				}
				s.ui.ShowSuccess(fmt.Sprintf("Set %s = %s", args[0], args[1]))
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&ref, "client", "c", "", "Client to change (default: active client)")
	return cmd
}
