package commands

import (
	"yaffscarve/pkg/exporter"
	"yaffscarve/pkg/manifest"

	"github.com/spf13/cobra"
)

var showCmd = &cobra.Command{
	Use:   "show <manifest>",
	Short: "Print a manifest written by 'ycarve scan --manifest'",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := manifest.ReadFile(args[0])
		if err != nil {
			return err
		}
		exporter.PrintManifest(cmd.OutOrStdout(), m)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(showCmd)
}
