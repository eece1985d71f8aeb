package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ekaya-inc/ekaya-datadict/pkg/services"
)

const sampleFlag = "sample"

func newQualityCmd(version string) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "quality TABLE",
		Short:   "Report per-column completeness for a sample of rows",
		Example: "  datadict quality customers --sample 1000 --db-type postgres",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, _ := cmd.Flags().GetString(formatFlag)
			format = strings.ToLower(format)
			if format != services.FormatJSON && format != services.FormatYAML {
				return fmt.Errorf("unknown format %q: want json or yaml", format)
			}
			sample, _ := cmd.Flags().GetInt(sampleFlag)

			a, cleanup, err := bootstrap(cmd, version)
			if err != nil {
				return err
			}
			defer cleanup()

			ctx := cmd.Context()
			table := args[0]
			if err := a.Auditor.CheckTableName(ctx, "cli.quality", table, "cli"); err != nil {
				return err
			}

			conn, err := openConnection(ctx, cmd, a)
			if err != nil {
				return err
			}
			defer conn.Close()

			metrics, err := a.Analyzer.AnalyzeTable(ctx, conn, table, sample)
			if err != nil {
				return err
			}
			return encode(cmd.OutOrStdout(), format, metrics)
		},
	}
	addConnectionFlags(cmd)
	cmd.Flags().Int(sampleFlag, services.DefaultSampleSize, "rows to sample (1 to 10000)")
	cmd.Flags().StringP(formatFlag, "f", services.FormatJSON, "output format: json or yaml")
	return cmd
}
