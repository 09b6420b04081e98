package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	apperrors "github.com/aicommits/aicommits/internal/pkg/errors"
	"github.com/aicommits/aicommits/internal/pkg/security"
	"github.com/aicommits/aicommits/internal/pkg/ui"
)

// NewTokenCmd creates the token command and its subcommands.
func NewTokenCmd() *cobra.Command {
	tokenCmd := &cobra.Command{
		Use:   "token",
		Short: "Manage client tokens",
		Long: `Manage the API tokens of clients.

Tokens are kept in the secret store (secrets.backend), never in the
configuration file.`,
	}

	tokenCmd.AddCommand(newTokenSetCmd())
	tokenCmd.AddCommand(newTokenDeleteCmd())

	return tokenCmd
}

func newTokenSetCmd() *cobra.Command {
	var (
		token     string
		fromStdin bool
	)
	cmd := &cobra.Command{
		Use:   "set [client]",
		Short: "Store the token of a client",
		Long: `Store the token of a client. Without --token or --stdin the token is
asked for without echo.

Examples:
  aicommits token set work
  echo "$GEMINI_API_KEY" | aicommits token set work --stdin --yes`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, func(ctx context.Context, s *session) error {
				c, err := s.app.Client(clientRef(args))
				if err != nil {
					return err
				}

				switch {
				case token != "":
				case fromStdin:
					token, err = readToken(cmd.InOrStdin())
					if err != nil {
						return err
					}
				default:
					if yes, _ := cmd.Flags().GetBool("yes"); yes {
						return apperrors.New(apperrors.ErrInvalidArguments, "no token given").
							WithSuggestion("Pass --token or --stdin in non-interactive mode")
					}
					token, err = ui.PromptToken(c.Configuration().Label())
					if err != nil {
						return err
					}
				}

				desc, err := s.app.Registry().Lookup(c.Name())
				if err != nil {
					return err
				}
				if err := security.ValidateAPIKeyFormat(c.Name(), token, desc.RequiresToken); err != nil {
					apperrors.Warn("%v", err)
				}

				if _, err := s.app.SetToken(ctx, c.ID(), token); err != nil {
					return err
				}
				s.ui.ShowSuccess(fmt.Sprintf("Token of %s stored (%s)", c.Configuration().Label(), security.MaskAPIKey(token)))

				if !s.cfgMgr.IsStorageNoticeShown() {
					fmt.Fprintln(cmd.OutOrStdout(), s.app.StorageNotice())
					s.app.Config().Security.StorageNoticeShown = true
					if err := s.cfgMgr.MarkStorageNoticeShown(); err != nil {
						apperrors.Debug("Failed to record storage notice: %v", err)
					}
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&token, "token", "t", "", "Token value (visible in shell history)")
	cmd.Flags().BoolVar(&fromStdin, "stdin", false, "Read the token from standard input")
	cmd.MarkFlagsMutuallyExclusive("token", "stdin")
	return cmd
}

func newTokenDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "delete [client]",
		Aliases: []string{"rm"},
		Short:   "Delete the stored token of a client",
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, func(ctx context.Context, s *session) error {
				c, err := s.app.Client(clientRef(args))
				if err != nil {
					return err
				}
				if err := s.app.DeleteToken(ctx, c.ID()); err != nil {
					return err
				}
				s.ui.ShowSuccess(fmt.Sprintf("Token of %s deleted", c.Configuration().Label()))
				return nil
			})
		},
	}
}

// readToken reads the first line of r.
func readToken(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", apperrors.Wrap(err, apperrors.ErrInvalidArguments, "failed to read token")
	}
	token := strings.TrimSpace(line)
	if token == "" {
		return "", apperrors.New(apperrors.ErrInvalidArguments, "token cannot be empty")
	}
	return token, nil
}
