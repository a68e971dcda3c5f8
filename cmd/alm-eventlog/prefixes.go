package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vilaca/alm-eventlog/internal/config"
	"github.com/vilaca/alm-eventlog/internal/correlation"
	"github.com/vilaca/alm-eventlog/internal/domain"
)

var prefixesCmd = &cobra.Command{
	Use:   "prefixes",
	Short: "Print the effective case-id prefix table of every platform",
	RunE:  runPrefixes,
}

func init() {
	rootCmd.AddCommand(prefixesCmd)
}

func runPrefixes(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(v)
	if err != nil {
		return err
	}
	prefixes, err := loadPrefixes(cfg)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, platform := range domain.Platforms {
		p := prefixes[platform]
		fmt.Fprintf(out, "%s (actions: %s_*)\n", platform, p.ActionPrefix())
		for _, kind := range correlation.Kinds {
			fmt.Fprintf(out, "  %-9s %s\n", kind, p.For(kind))
		}
	}
	return nil
}
