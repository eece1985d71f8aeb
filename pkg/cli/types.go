package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newTypesCmd(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "types",
		Short: "List supported database engines and whether their drivers are compiled in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, cleanup, err := bootstrap(cmd, version)
			if err != nil {
				return err
			}
			defer cleanup()

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "TYPE\tNAME\tAVAILABLE")
			for _, info := range a.Datasources.Types() {
				fmt.Fprintf(tw, "%s\t%s\t%v\n", info.Type, info.DisplayName, info.Available)
			}
			return tw.Flush()
		},
	}
}
