package cmd

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Jelikton/iptv-checker/internal/prefs"
)

var prefsCmd = &cobra.Command{
	Use:   "prefs",
	Short: "Read and change user preferences",
	Long: fmt.Sprintf(`Read and change the preferences stored in the preferences file
(storage.prefs_file under storage.base_dir).

Known keys: %s`, strings.Join(prefs.Keys, ", ")),
}

var prefsGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print a preference",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		value, err := prefsFile().Get(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), value)
		return nil
	},
}

var prefsSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Store a preference",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		f := prefsFile()
		if err := f.Set(args[0], args[1]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s saved to %s\n", args[0], f.Path())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(prefsCmd)
	prefsCmd.AddCommand(prefsGetCmd)
	prefsCmd.AddCommand(prefsSetCmd)
}

func prefsFile() *prefs.File {
	return prefs.NewFile(filepath.Join(cfg.Storage.BaseDir, cfg.Storage.PrefsFile))
}
