package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/timereport/timereport-cli/pkg/timereport/output"
	"github.com/timereport/timereport-cli/pkg/version"
)

func NewVersionCommand() *cobra.Command {
	var outputFormat string

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show timereport version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			info := version.GetBuildInfo()

			// Get runtime if available (for custom writer), but don't fail if missing
			rt, _ := getRuntime(cmd)
			writer := cmd.OutOrStdout()
			if rt != nil {
				writer = rt.Writer()
			}

			format, err := output.ParseFormat(outputFormat)
			if err != nil {
				return err
			}
			if format != output.FormatText {
				return output.WriteObject(writer, format, info)
			}
			_, _ = fmt.Fprintf(writer, "timereport %s\n", info)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputFormat, "output", "o", "", "Output format: json, yaml")

	return cmd
}
