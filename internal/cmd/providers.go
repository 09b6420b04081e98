package cmd

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/aicommits/aicommits/internal/pkg/ai"
)

// NewProvidersCmd creates the providers command.
func NewProvidersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "providers",
		Short: "List the supported providers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tPROVIDER\tHOST\tMODEL\tTEMPERATURE\tTOKEN")
			for _, d := range ai.DefaultRegistry().Descriptors() {
				token := "optional"
				if d.RequiresToken {
					token = "required"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
					d.Name,
					strings.TrimSpace(d.Icon+" "+d.DisplayName),
					d.DefaultHost(),
					d.DefaultModelID(),
					d.Temperature,
					token,
				)
			}
			return w.Flush()
		},
	}
}
