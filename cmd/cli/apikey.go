package cli

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"

	"rune-indexer/core"
	"rune-indexer/pkg/config"
	"rune-indexer/store/postgres"
)

var (
	apikeyEnv     string
	apikeyCanLock bool
)

func openApikeyStore(ctx context.Context) (*postgres.Store, error) {
	cfg, err := config.Load(apikeyEnv)
	if err != nil {
		return nil, err
	}
	return postgres.Open(ctx, cfg.DB.DSN, int32(cfg.DB.MaxConns), int32(cfg.DB.MinConns))
}

func randomAPIKey() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func apikeyCreateRun(cmd *cobra.Command, args []string) error {
	store, err := openApikeyStore(cmd.Context())
	if err != nil {
		return err
	}
	defer store.Close()

	key, err := randomAPIKey()
	if err != nil {
		return err
	}

	ak := core.APIKey{Name: args[0], Key: key, CanLockUTXO: apikeyCanLock}
	if err := store.CreateAPIKey(cmd.Context(), ak); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "created api key %q: %s (can_lock_utxo=%t)\n", ak.Name, ak.Key, ak.CanLockUTXO)
	return nil
}

func apikeyListRun(cmd *cobra.Command, _ []string) error {
	store, err := openApikeyStore(cmd.Context())
	if err != nil {
		return err
	}
	defer store.Close()

	keys, err := store.ListAPIKeys(cmd.Context())
	if err != nil {
		return err
	}
	for _, k := range keys {
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\tblocked=%t\tcan_lock_utxo=%t\n", k.Name, k.Key, k.Blocked, k.CanLockUTXO)
	}
	return nil
}

func apikeySetBlocked(blocked bool) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		store, err := openApikeyStore(cmd.Context())
		if err != nil {
			return err
		}
		defer store.Close()

		if err := store.SetAPIKeyBlocked(cmd.Context(), args[0], blocked); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s blocked=%t\n", args[0], blocked)
		return nil
	}
}

var apikeyCmd = &cobra.Command{
	Use:   "apikey",
	Short: "Manage read-path API keys",
}

var apikeyCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a new API key with a random 32-byte secret",
	Args:  cobra.ExactArgs(1),
	RunE:  apikeyCreateRun,
}

var apikeyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every API key",
	RunE:  apikeyListRun,
}

var apikeyBlockCmd = &cobra.Command{
	Use:   "block <name>",
	Short: "Block an API key",
	Args:  cobra.ExactArgs(1),
	RunE:  apikeySetBlocked(true),
}

var apikeyUnblockCmd = &cobra.Command{
	Use:   "unblock <name>",
	Short: "Unblock an API key",
	Args:  cobra.ExactArgs(1),
	RunE:  apikeySetBlocked(false),
}

func init() {
	apikeyCmd.PersistentFlags().StringVar(&apikeyEnv, "env", "", "config overlay name (merged on top of the default config)")
	apikeyCreateCmd.Flags().BoolVar(&apikeyCanLock, "can-lock-utxo", false, "permit this key to place reservation locks")
	apikeyCmd.AddCommand(apikeyCreateCmd, apikeyListCmd, apikeyBlockCmd, apikeyUnblockCmd)
}

// ApiKeyCmd is the exported root command for API key management.
var ApiKeyCmd = apikeyCmd

// RegisterApiKey attaches ApiKeyCmd to root.
func RegisterApiKey(root *cobra.Command) { root.AddCommand(ApiKeyCmd) }
