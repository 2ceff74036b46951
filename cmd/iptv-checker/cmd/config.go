package cmd

import (
	"fmt"
	"io"
	"reflect"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Jelikton/iptv-checker/internal/config"
	"github.com/Jelikton/iptv-checker/pkg/duration"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management commands",
}

var configDumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Dump the effective configuration",
	Long: `Dump the configuration in YAML format, after applying the config file
and environment variables. Redirect it to a file to create a template:

  iptv-checker config dump > iptv-checker.yaml

Environment variables use the IPTVCHECK_ prefix and underscores for nesting.
Example: probe.max_concurrency -> IPTVCHECK_PROBE_MAX_CONCURRENCY`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return dumpConfig(cmd.OutOrStdout(), cfg)
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configDumpCmd)
}

// toMap converts a config struct to a map keyed by mapstructure tags, with
// durations and sizes in the syntax the loader accepts.
func toMap(v any) map[string]any {
	result := make(map[string]any)
	val := reflect.ValueOf(v)
	if val.Kind() == reflect.Pointer {
		val = val.Elem()
	}
	typ := val.Type()

	for i := range val.NumField() {
		field := val.Field(i)
		key := typ.Field(i).Tag.Get("mapstructure")
		if key == "" {
			key = typ.Field(i).Name
		}

		switch fv := field.Interface().(type) {
		case time.Duration:
			result[key] = duration.Format(fv)
		case config.ByteSize:
			result[key] = fv.String()
		default:
			if field.Kind() == reflect.Struct {
				result[key] = toMap(fv)
			} else {
				result[key] = fv
			}
		}
	}
	return result
}

func dumpConfig(w io.Writer, c *config.Config) error {
	data, err := yaml.Marshal(toMap(c))
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	fmt.Fprintln(w, "# iptv-checker configuration")
	fmt.Fprintln(w, "# Duration format: 500ms, 30s, 5m, 1d")
	fmt.Fprintln(w, "# Size format: 75MB, 1GB")
	fmt.Fprintln(w)
	_, err = w.Write(data)
	return err
}
