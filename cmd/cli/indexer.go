package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"rune-indexer/core"
	"rune-indexer/pkg/config"
	"rune-indexer/rpc"
	"rune-indexer/store/postgres"
)

var indexerEnv string

// buildBlockSource resolves the configured block source: classic JSON-RPC or
// the streaming firehose alternative.
func buildBlockSource(cfg config.BTCConfig) (core.BlockSource, *rpc.BitcoinClient, error) {
	node := rpc.NewBitcoinClient(cfg.RPCAddress, cfg.RPCUser, cfg.RPCPassword)
	if !cfg.UseFirehose {
		return node, node, nil
	}
	fh, err := rpc.DialFirehose(cfg.FirehoseAddr)
	if err != nil {
		return nil, nil, err
	}
	// The firehose alternative has no getrawtransaction equivalent for
	// commitment resolution; commitment checks still go through
	// the classic node client, which every deployment also configures.
	return fh, node, nil
}

func indexBTCRun(cmd *cobra.Command, _ []string) error {
	logger := logrus.StandardLogger()

	cfg, err := config.Load(indexerEnv)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	store, err := postgres.Open(ctx, cfg.DB.DSN, int32(cfg.DB.MaxConns), int32(cfg.DB.MinConns))
	if err != nil {
		return err
	}
	defer store.Close()

	source, _, err := buildBlockSource(cfg.BTC)
	if err != nil {
		return err
	}

	indexer := core.NewBitcoinUtxoIndexer(core.NetworkParams(cfg.BTC.Network), store)
	rt := core.NewBlockIndexerRuntime(indexer, source, store, core.IndexingOpts{
		StartingHeight: int64(cfg.BTC.StartingHeight),
		RetryOnFail:    cfg.BTC.RetryOnFail,
		WaitInterval:   cfg.BTC.WaitInterval(),
	}, logger)

	rt.Run(ctx)
	return nil
}

func indexRunesRun(cmd *cobra.Command, _ []string) error {
	logger := logrus.StandardLogger()

	cfg, err := config.Load(indexerEnv)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	store, err := postgres.Open(ctx, cfg.DB.DSN, int32(cfg.DB.MaxConns), int32(cfg.DB.MinConns))
	if err != nil {
		return err
	}
	defer store.Close()

	source, commitment, err := buildBlockSource(cfg.BTC)
	if err != nil {
		return err
	}

	indexer := core.NewRunesIndexer(cfg.BTC.Network, store, commitment, logger)
	rt := core.NewBlockIndexerRuntime(indexer, source, store, core.IndexingOpts{
		StartingHeight: int64(cfg.BTC.StartingHeight),
		RetryOnFail:    cfg.BTC.RetryOnFail,
		WaitInterval:   cfg.BTC.WaitInterval(),
	}, logger)

	rt.Run(ctx)
	return nil
}

func indexInscriptionsRun(cmd *cobra.Command, _ []string) error {
	logger := logrus.StandardLogger()

	cfg, err := config.Load(indexerEnv)
	if err != nil {
		return err
	}
	if cfg.BTC.OrdAddress == "" {
		return fmt.Errorf("btc.ord_address must be configured for the inscriptions indexer")
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	store, err := postgres.Open(ctx, cfg.DB.DSN, int32(cfg.DB.MaxConns), int32(cfg.DB.MinConns))
	if err != nil {
		return err
	}
	defer store.Close()

	source, _, err := buildBlockSource(cfg.BTC)
	if err != nil {
		return err
	}

	indexer := core.NewInscriptionsIndexer(store, rpc.NewOrdClient(cfg.BTC.OrdAddress), logger)
	rt := core.NewBlockIndexerRuntime(indexer, source, store, core.IndexingOpts{
		StartingHeight: int64(cfg.BTC.StartingHeight),
		RetryOnFail:    cfg.BTC.RetryOnFail,
		WaitInterval:   cfg.BTC.WaitInterval(),
	}, logger)

	rt.Run(ctx)
	return nil
}

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Run one of the block indexers",
}

var indexBTCCmd = &cobra.Command{
	Use:   "btc",
	Short: "Run the plain BTC UTXO indexer (C3)",
	RunE:  indexBTCRun,
}

var indexRunesCmd = &cobra.Command{
	Use:   "runes",
	Short: "Run the runes protocol indexer (C4)",
	RunE:  indexRunesRun,
}

var indexInscriptionsCmd = &cobra.Command{
	Use:   "inscriptions",
	Short: "Run the inscriptions output tagger",
	RunE:  indexInscriptionsRun,
}

func init() {
	indexCmd.PersistentFlags().StringVar(&indexerEnv, "env", "", "config overlay name (merged on top of the default config)")
	indexCmd.AddCommand(indexBTCCmd, indexRunesCmd, indexInscriptionsCmd)
}

// IndexCmd is the exported root command grouping both indexer subcommands.
var IndexCmd = indexCmd

// RegisterIndex attaches IndexCmd to root.
func RegisterIndex(root *cobra.Command) { root.AddCommand(IndexCmd) }
