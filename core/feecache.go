package core

import (
	"context"
	"fmt"
	"sync"
	"time"
)

const feeCacheTTL = 10 * time.Second

// FeeRate is the three-tier fee-rate quote returned to wallet callers, in
// sat/vByte.
type FeeRate struct {
	Fast   int64 `json:"fast"`
	Normal int64 `json:"normal"`
	Min    int64 `json:"min"`
}

// NodeFeeSource is the subset of node RPC used for local fee estimation.
type NodeFeeSource interface {
	EstimateSmartFeeConservative(ctx context.Context, confTarget int) (satPerVByte int64, err error)
	EstimateSmartFeeEconomical(ctx context.Context, confTarget int) (satPerVByte int64, err error)
}

// RelayFeeSource is an external mempool-relay fee quote source (e.g. a
// third-party fee API); it is consulted before falling back to the local
// node's own estimator.
type RelayFeeSource interface {
	GetFee(ctx context.Context) (FeeRate, error)
}

// FeeEstimator estimates sat/vByte fee rates, preferring a relay source,
// falling back to the local node's own estimator, and finally (regtest
// only) to a fixed placeholder.
type FeeEstimator struct {
	relay   RelayFeeSource
	node    NodeFeeSource
	network string

	mu     sync.RWMutex
	cached *FeeRate
	at     time.Time
}

// NewFeeEstimator builds a FeeEstimator for the given network ("mainnet",
// "testnet", "regtest"). relay may be nil to skip the relay source entirely.
func NewFeeEstimator(relay RelayFeeSource, node NodeFeeSource, network string) *FeeEstimator {
	return &FeeEstimator{relay: relay, node: node, network: network}
}

func (f *FeeEstimator) readCache() (FeeRate, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.cached != nil && time.Since(f.at) < feeCacheTTL {
		return *f.cached, true
	}
	return FeeRate{}, false
}

func (f *FeeEstimator) writeCache(fee FeeRate) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cached = &fee
	f.at = time.Now()
}

// Estimate returns the current fee-rate quote, consulting the cache,
// the relay source, the local node, and finally the regtest fallback, in
// that order.
func (f *FeeEstimator) Estimate(ctx context.Context) (FeeRate, error) {
	if cached, ok := f.readCache(); ok {
		return cached, nil
	}

	if f.relay != nil {
		if fee, err := f.relay.GetFee(ctx); err == nil {
			f.writeCache(fee)
			return fee, nil
		}
	}

	fee, err := f.estimateLocal(ctx)
	if err != nil {
		if f.network == "regtest" {
			// Not cached: the relay's rate is strictly preferred once reachable
			// and the node has no request limits worth amortizing.
			return FeeRate{Fast: 3, Normal: 2, Min: 1}, nil
		}
		return FeeRate{}, err
	}
	return fee, nil
}

// estimateLocal asks the local Bitcoin node for fee estimates at the
// fastest/normal/min confirmation targets (1/3/6 blocks).
func (f *FeeEstimator) estimateLocal(ctx context.Context) (FeeRate, error) {
	if cached, ok := f.readCache(); ok {
		return cached, nil
	}

	fast, err := f.node.EstimateSmartFeeConservative(ctx, 1)
	if err != nil {
		return FeeRate{}, fmt.Errorf("can't get fee for 1 blocks: %w", err)
	}
	normal, err := f.node.EstimateSmartFeeConservative(ctx, 3)
	if err != nil {
		return FeeRate{}, fmt.Errorf("can't get fee for 3 blocks: %w", err)
	}
	min, err := f.node.EstimateSmartFeeEconomical(ctx, 6)
	if err != nil {
		return FeeRate{}, fmt.Errorf("can't get fee for 6 blocks: %w", err)
	}

	fee := FeeRate{Fast: fast, Normal: normal, Min: min}
	f.writeCache(fee)
	return fee, nil
}
