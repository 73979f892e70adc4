package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shpitdev/zuno-lead-enrichment/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Args:  cobra.NoArgs,
	// Skips config loading.
	PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), version.Current)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
