// Command rune-indexer is the single entry point for every subcommand this
// repository exposes: running the API server, running each indexer,
// API-key management, the transaction decoder, sample-config emission, and
// the migration-tool passthroughs.
package main

import (
	"os"

	"github.com/spf13/cobra"

	"rune-indexer/cmd/cli"
)

func main() {
	rootCmd := &cobra.Command{Use: "rune-indexer"}
	cli.RegisterRoutes(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
