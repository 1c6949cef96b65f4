package cli

import (
	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"

	"rune-indexer/pkg/config"
)

func configSampleRun(cmd *cobra.Command, _ []string) error {
	out, err := toml.Marshal(config.Default())
	if err != nil {
		return err
	}
	_, err = cmd.OutOrStdout().Write(out)
	return err
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration file utilities",
}

var configSampleCmd = &cobra.Command{
	Use:   "sample",
	Short: "Emit a sample TOML configuration file",
	RunE:  configSampleRun,
}

func init() {
	configCmd.AddCommand(configSampleCmd)
}

// ConfigCmd is the exported root command.
var ConfigCmd = configCmd

// RegisterConfig attaches ConfigCmd to root.
func RegisterConfig(root *cobra.Command) { root.AddCommand(ConfigCmd) }
