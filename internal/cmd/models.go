package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// NewModelsCmd creates the models command and its subcommands.
func NewModelsCmd() *cobra.Command {
	modelsCmd := &cobra.Command{
		Use:   "models",
		Short: "List and refresh the models of a client",
	}

	modelsCmd.AddCommand(newModelsListCmd())
	modelsCmd.AddCommand(newModelsRefreshCmd())

	return modelsCmd
}

func newModelsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list [client]",
		Aliases: []string{"ls"},
		Short:   "List the known model ids of a client",
		Long: `List the model ids known for a client. The selected model is marked
with '*'. Run 'aicommits models refresh' to fetch the list from the provider.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, func(ctx context.Context, s *session) error {
				c, err := s.app.Client(clientRef(args))
				if err != nil {
					return err
				}
				printModels(cmd, c.ModelIDs(), c.Configuration().ModelID)
				return nil
			})
		},
	}
}

func newModelsRefreshCmd() *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "refresh [client]",
		Short: "Fetch the model ids from the provider",
		Long: `Fetch the model ids of a client from its provider and save them.
With --all every client is refreshed; clients that fail are reported and
do not stop the others.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if all && len(args) > 0 {
				return fmt.Errorf("--all cannot be combined with a client")
			}
			return withSession(cmd, func(ctx context.Context, s *session) error {
				if all {
					if err := s.app.RefreshAll(ctx); err != nil {
						return err
					}
					s.ui.ShowSuccess("Models of all clients refreshed")
					return nil
				}

				c, err := s.app.Client(clientRef(args))
				if err != nil {
					return err
				}
				ids, err := s.app.RefreshModels(ctx, c.ID())
				if err != nil {
					return err
				}
				printModels(cmd, ids, c.Configuration().ModelID)
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&all, "all", "a", false, "Refresh every client")
	return cmd
}

func printModels(cmd *cobra.Command, ids []string, selected string) {
	out := cmd.OutOrStdout()
	if len(ids) == 0 {
		fmt.Fprintln(out, "No models known.")
		return
	}
	for _, id := range ids {
		marker := "  "
		if id == selected {
			marker = "* "
		}
		fmt.Fprintln(out, marker+id)
	}
}
