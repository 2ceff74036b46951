package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Jelikton/iptv-checker/internal/version"
)

var versionJSON bool

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  "Print the version, commit, and build date of iptv-checker.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if versionJSON {
			return renderJSON(cmd.OutOrStdout(), version.GetInfo())
		}
		fmt.Fprintln(cmd.OutOrStdout(), version.String())
		return nil
	},
}

func init() {
	versionCmd.Flags().BoolVar(&versionJSON, "json", false, "output version information as JSON")
	rootCmd.AddCommand(versionCmd)
}
