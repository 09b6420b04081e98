package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	apperrors "github.com/aicommits/aicommits/internal/pkg/errors"
)

// NewGenerateCmd creates the generate command.
func NewGenerateCmd() *cobra.Command {
	var ref string
	cmd := &cobra.Command{
		Use:   "generate [prompt...]",
		Short: "Send a prompt to a client and print the reply",
		Long: `Send a prompt to a client and print its reply. Without arguments the
prompt is read from standard input.

Examples:
  aicommits generate "Write a commit message for: fix typo in README"
  git diff --cached | aicommits generate -c work`,
		RunE: func(cmd *cobra.Command, args []string) error {
			prompt := strings.TrimSpace(strings.Join(args, " "))
			if prompt == "" {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return apperrors.Wrap(err, apperrors.ErrInvalidArguments, "failed to read prompt")
				}
				prompt = strings.TrimSpace(string(data))
			}
			if prompt == "" {
				return apperrors.New(apperrors.ErrInvalidArguments, "prompt cannot be empty")
			}

			return withSession(cmd, func(ctx context.Context, s *session) error {
				text, err := s.app.Generate(ctx, ref, prompt)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), text)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&ref, "client", "c", "", "Client to use (default: active client)")
	return cmd
}
