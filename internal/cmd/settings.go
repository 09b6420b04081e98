package cmd

import (
	"context"

	"github.com/spf13/cobra"

	apperrors "github.com/aicommits/aicommits/internal/pkg/errors"
)

// NewSettingsCmd creates the settings command.
func NewSettingsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "settings [client]",
		Short: "Edit a client in an interactive form",
		Long: `Open the settings form of a client. The edited values are verified
before you are asked to save them.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if yes, _ := cmd.Flags().GetBool("yes"); yes {
				return apperrors.New(apperrors.ErrInvalidArguments, "the settings form is interactive").
					WithSuggestion("Use 'aicommits client set' in non-interactive mode")
			}
			return withSession(cmd, func(ctx context.Context, s *session) error {
				return s.app.EditSettings(ctx, clientRef(args))
			})
		},
	}
}
