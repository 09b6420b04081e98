package cmd

import (
	"context"

	"github.com/spf13/cobra"
)

const (
	// DefaultHistoryLimit is the default number of history entries to display.
	DefaultHistoryLimit = 20
)

// NewHistoryCmd creates the history command and its subcommands.
func NewHistoryCmd() *cobra.Command {
	var (
		limit int
		ref   string
	)
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "View verification history",
		Long: `View the recorded verifications, most recent last.

Examples:
  aicommits history              # Show last 20 entries
  aicommits history --limit 5    # Show last 5 entries
  aicommits history -c work      # Only the client "work"
  aicommits history clear        # Clear all history`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, func(ctx context.Context, s *session) error {
				entries, err := s.app.History(ref, limit)
				if err != nil {
					return err
				}
				s.ui.ShowHistory(entries)
				return nil
			})
		},
	}

	historyCmd.Flags().IntVarP(&limit, "limit", "l", DefaultHistoryLimit, "Number of entries to display")
	historyCmd.Flags().StringVarP(&ref, "client", "c", "", "Only show entries of this client")

	historyCmd.AddCommand(newHistoryClearCmd())

	return historyCmd
}

// newHistoryClearCmd creates the 'history clear' subcommand.
func newHistoryClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Clear all history entries",
		Long: `Delete all entries from the history file.

This action cannot be undone.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, func(ctx context.Context, s *session) error {
				ok, err := s.ui.PromptConfirm("Clear all history entries?")
				if err != nil || !ok {
					return err
				}
				if err := s.app.ClearHistory(); err != nil {
					return err
				}
				s.ui.ShowSuccess("History cleared successfully.")
				return nil
			})
		},
	}
}
