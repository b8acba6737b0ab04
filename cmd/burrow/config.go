package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"burrow/internal/config"
	"burrow/internal/dict"
)

var configFormat string

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect burrow configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long: `Display the configuration burrow would run with, after the config file
and BURROW_* environment overrides are applied.

Examples:
  burrow config show                 # Pretty-print current config
  burrow config show --format json   # With load metadata
  burrow config show --format toml   # Ready to save as burrow.toml`,
	RunE: runConfigShow,
}

var configEnvCmd = &cobra.Command{
	Use:   "env",
	Short: "List supported environment variables",
	Run:   runConfigEnv,
}

func init() {
	configShowCmd.Flags().StringVar(&configFormat, "format", "human", "Output format (human, json, yaml, toml)")

	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configEnvCmd)
	rootCmd.AddCommand(configCmd)
}

// ConfigShowResponse is the response format for config show --format json
type ConfigShowResponse struct {
	ConfigPath   string               `json:"configPath,omitempty"`
	UsedDefaults bool                 `json:"usedDefaults"`
	EnvOverrides []config.EnvOverride `json:"envOverrides,omitempty"`
	Config       *dict.Dict           `json:"config"`
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	result, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	return writeConfig(cmd.OutOrStdout(), result, configFormat)
}

func writeConfig(w io.Writer, result *config.LoadResult, format string) error {
	d, err := result.Config.Dict()
	if err != nil {
		return err
	}
	defer d.Destroy()

	var out []byte
	switch format {
	case "json":
		out, err = json.MarshalIndent(ConfigShowResponse{
			ConfigPath:   result.ConfigPath,
			UsedDefaults: result.UsedDefaults,
			EnvOverrides: result.EnvOverrides,
			Config:       d,
		}, "", "  ")
		out = append(out, '\n')
	case "yaml":
		out, err = d.ToYAML()
	case "toml":
		out, err = d.ToTOML()
	case "human", "":
		writeConfigHuman(w, result, d)
		return nil
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
	if err != nil {
		return err
	}
	_, err = w.Write(out)
	return err
}

func writeConfigHuman(w io.Writer, result *config.LoadResult, d *dict.Dict) {
	fmt.Fprintln(w, "burrow configuration")
	fmt.Fprintln(w, strings.Repeat("─", 50))

	if result.UsedDefaults {
		fmt.Fprintln(w, "Source: defaults (no config file found)")
	} else if result.ConfigPath != "" {
		fmt.Fprintf(w, "Source: %s\n", result.ConfigPath)
	}

	if len(result.EnvOverrides) > 0 {
		fmt.Fprintln(w, "\nEnvironment Overrides:")
		for _, ov := range result.EnvOverrides {
			fmt.Fprintf(w, "  %s=%s → %s\n", ov.EnvVar, ov.Value, ov.Path)
		}
	}
	fmt.Fprintln(w)

	printDict(w, d, 0)
}

func printDict(w io.Writer, d *dict.Dict, depth int) {
	indent := strings.Repeat("  ", depth)
	d.Walk(func(key string, value dict.Value, nested bool) bool {
		if nested {
			sub, _ := value.Dict()
			fmt.Fprintf(w, "%s%s:\n", indent, key)
			printDict(w, sub, depth+1)
			return true
		}
		s, _ := value.Str()
		if s == "" {
			s = `""`
		}
		fmt.Fprintf(w, "%s%s: %s\n", indent, key, s)
		return true
	})
}

func runConfigEnv(cmd *cobra.Command, args []string) {
	w := cmd.OutOrStdout()
	fmt.Fprintln(w, "Supported environment variables:")
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  %-36s %s\n", "BURROW_CONFIG_PATH", "config file to load")
	for _, name := range config.GetSupportedEnvVars() {
		fmt.Fprintf(w, "  %-36s %s\n", name, config.EnvVarPath(name))
	}
}
