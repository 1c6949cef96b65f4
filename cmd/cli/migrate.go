package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Migration tooling is a non-goal: the schema and its migrations
// live outside this repository. These subcommands exist only to round out
// the expected CLI surface; each reports that the operation is
// handled by the external migration tool.
func migrateStub(op string) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		fmt.Fprintf(cmd.OutOrStdout(), "migrate %s: schema migrations are managed by an external tool\n", op)
		return nil
	}
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Schema migration passthroughs (handled by external tooling)",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply pending migrations",
	RunE:  migrateStub("up"),
}

var migrateDropIndexesCmd = &cobra.Command{
	Use:   "drop-indexes",
	Short: "Drop indexes ahead of a bulk load",
	RunE:  migrateStub("drop-indexes"),
}

var migrateRestoreIndexesCmd = &cobra.Command{
	Use:   "restore-indexes",
	Short: "Recreate indexes dropped by drop-indexes",
	RunE:  migrateStub("restore-indexes"),
}

var migrateListCmd = &cobra.Command{
	Use:   "list-migrations",
	Short: "List applied and pending migrations",
	RunE:  migrateStub("list-migrations"),
}

func init() {
	migrateCmd.AddCommand(migrateUpCmd, migrateDropIndexesCmd, migrateRestoreIndexesCmd, migrateListCmd)
}

// MigrateCmd is the exported root command.
var MigrateCmd = migrateCmd

// RegisterMigrate attaches MigrateCmd to root.
func RegisterMigrate(root *cobra.Command) { root.AddCommand(MigrateCmd) }
