package main

import (
	"github.com/spf13/cobra"

	"burrow/internal/config"
	"burrow/internal/version"
)

var (
	// configFile is the --config flag; empty means burrow.{json,yaml,toml}
	// in configDir.
	configFile string
	configDir  string
	verbosity  int
	quiet      bool
)

var rootCmd = &cobra.Command{
	Use:   "burrow",
	Short: "burrow - a small regex-routed HTTP server",
	Long: `burrow serves HTTP requests through an ordered table of regular-expression
routes. Routes come from a TOML route file and can serve fixed bodies,
redirects or files from a directory, optionally behind sessions and basic
authentication.`,
	Version:       version.Info(),
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.SetVersionTemplate("burrow version {{.Version}}\n")
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Config file (default: burrow.{json,yaml,toml} in --dir)")
	rootCmd.PersistentFlags().StringVar(&configDir, "dir", ".", "Directory searched for the config file")
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "Increase log verbosity (-v info, -vv debug)")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Suppress all logging")
}

// loadConfig resolves the effective configuration.
// Precedence: --config > BURROW_CONFIG_PATH > burrow.* in --dir > defaults,
// with BURROW_* variables applied on top.
func loadConfig() (*config.LoadResult, error) {
	if configFile != "" {
		return config.LoadConfigFromFile(configFile)
	}
	return config.LoadConfigWithDetails(configDir)
}
