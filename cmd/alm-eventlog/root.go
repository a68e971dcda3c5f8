package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/vilaca/alm-eventlog/internal/config"
	"github.com/vilaca/alm-eventlog/internal/correlation"
	"github.com/vilaca/alm-eventlog/internal/domain"
)

// v holds flags, env and the optional config file.
var v = viper.New()

var rootCmd = &cobra.Command{
	Use:   "alm-eventlog",
	Short: "Build a cross-system event log from GitLab, GitHub and Azure DevOps",
	Long: "alm-eventlog fetches issues, merge requests, commits and pipelines from the configured " +
		"ALM platforms, correlates them into cases and exports a flat event log.",
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "config file (default .alm-eventlog.yaml)")
	flags.String("settings", "", "settings file with case-id prefix tables (.yaml or .toml)")
	flags.BoolP("verbose", "v", false, "verbose output")

	_ = v.BindPFlag("settings_file", flags.Lookup("settings"))
	_ = v.BindPFlag("verbose", flags.Lookup("verbose"))
}

func initConfig() {
	if cfgFile, _ := rootCmd.PersistentFlags().GetString("config"); cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName(".alm-eventlog")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
	}

	// It's fine if no config file is found; we use defaults.
	_ = v.ReadInConfig()
}

// loadPrefixes merges the settings file overrides into the built-in tables.
func loadPrefixes(cfg *config.Config) (map[string]correlation.Prefixes, error) {
	var settings *config.Settings
	if cfg.SettingsFile != "" {
		s, err := config.LoadSettings(cfg.SettingsFile)
		if err != nil {
			return nil, err
		}
		settings = s
	}

	prefixes := make(map[string]correlation.Prefixes, len(domain.Platforms))
	for _, platform := range domain.Platforms {
		prefixes[platform] = correlation.DefaultPrefixes(platform).Merge(settings.Prefixes(platform))
	}
	return prefixes, nil
}
