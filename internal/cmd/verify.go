package cmd

import (
	"context"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/aicommits/aicommits/internal/pkg/ai"
)

// NewVerifyCmd creates the verify command.
func NewVerifyCmd() *cobra.Command {
	var in ai.VerifyInput
	cmd := &cobra.Command{
		Use:   "verify [client]",
		Short: "Check that a client answers",
		Long: `Send a short test prompt to a client and report whether it answered.

Flags override the saved values for this check only; nothing is saved.
When no token is given the stored token is used.

Examples:
  aicommits verify
  aicommits verify work --timeout 10
  aicommits verify local --host http://localhost:11434`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("timeout") {
				t, _ := cmd.Flags().GetInt("timeout")
				in.Timeout = strconv.Itoa(t)
			}
			return withSession(cmd, func(ctx context.Context, s *session) error {
				out, err := s.app.Verify(ctx, clientRef(args), in)
				if err != nil {
					return err
				}
				if !out.Success {
					return out.Err
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&in.Host, "host", "", "Host to verify instead of the saved one")
	cmd.Flags().StringVar(&in.Proxy, "proxy", "", "Proxy URL to verify instead of the saved one")
	cmd.Flags().Int("timeout", 0, "Timeout in seconds (0 disables the timeout)")
	cmd.Flags().StringVarP(&in.Token, "token", "t", "", "Token to verify instead of the stored one")
	return cmd
}
