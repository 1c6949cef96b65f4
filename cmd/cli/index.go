// Package cli implements the rune-indexer CLI's subcommands: one file per
// command group, aggregated onto the root command by RegisterRoutes.
package cli

import "github.com/spf13/cobra"

// RegisterRoutes attaches every command group defined in this package to
// the provided root command.
func RegisterRoutes(root *cobra.Command) {
	RegisterApiServer(root)
	RegisterIndex(root)
	RegisterApiKey(root)
	RegisterDecodeTx(root)
	RegisterConfig(root)
	RegisterMigrate(root)
}
