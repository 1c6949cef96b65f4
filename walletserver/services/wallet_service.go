// Package services wires the read-path HTTP server's dependencies (the
// store, the node RPC client, the mempool view, the optional reservation
// cache, and the API key registry) into the core components the
// controllers call.
package services

import (
	"context"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/sirupsen/logrus"

	"rune-indexer/cache"
	"rune-indexer/core"
	"rune-indexer/pkg/config"
	"rune-indexer/rpc"
	"rune-indexer/store/postgres"
)

// Service bundles every dependency a wallet_controller handler needs.
type Service struct {
	Store      *postgres.Store
	Node       *rpc.BitcoinClient
	Mempool    *core.MempoolView
	Locks      core.ReservationCache
	APIKeys    *core.APIKeyRegistry
	Fees       *core.FeeEstimator
	Status     *core.StatusAggregator
	Read       *core.ReadService
	NetParams  *chaincfg.Params
	MinFeeRate int64
}

// NewService connects the store, the Bitcoin node, and (if enabled) the
// reservation cache, then assembles the core read-path components. The
// mempool refresher is started immediately and runs until ctx is cancelled.
func NewService(ctx context.Context, cfg config.Config, logger *logrus.Logger) (*Service, error) {
	store, err := postgres.Open(ctx, cfg.DB.DSN, int32(cfg.DB.MaxConns), int32(cfg.DB.MinConns))
	if err != nil {
		return nil, err
	}

	node := rpc.NewBitcoinClient(cfg.BTC.RPCAddress, cfg.BTC.RPCUser, cfg.BTC.RPCPassword)

	mempool := core.NewMempoolView(node, logger)
	mempool.Start(ctx)

	var locks core.ReservationCache
	if cfg.Cache.Enable {
		locks = cache.New(cfg.Cache.Addr, cfg.Cache.LockTTLDuration())
	}

	apiKeys, err := core.LoadAPIKeyRegistry(ctx, store)
	if err != nil {
		store.Close()
		return nil, err
	}

	fees := core.NewFeeEstimator(nil, node, cfg.BTC.Network)
	status := core.NewStatusAggregator(store, node, logger)

	tipHeight := func() int64 {
		return status.Status(context.Background()).BTCHeight
	}
	read := core.NewReadService(store, mempool, locks, tipHeight)

	return &Service{
		Store:      store,
		Node:       node,
		Mempool:    mempool,
		Locks:      locks,
		APIKeys:    apiKeys,
		Fees:       fees,
		Status:     status,
		Read:       read,
		NetParams:  core.NetworkParams(cfg.BTC.Network),
		MinFeeRate: cfg.MinFeeRate,
	}, nil
}

// Close releases the service's long-lived connections.
func (s *Service) Close() {
	s.Mempool.Stop()
	s.Store.Close()
}
