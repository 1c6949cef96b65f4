package core

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const statusCacheTTL = 10 * time.Second

// staleIndexerThreshold is how many blocks behind the node tip an indexer
// may trail before it is considered stale (aggregate_status's "<= 3").
const staleIndexerThreshold = 3

// NodeHealthSource reports the connected Bitcoin node's current height.
type NodeHealthSource interface {
	GetBlockCount(ctx context.Context) (int64, error)
}

// StatusResponse is the health snapshot served by the status endpoint.
type StatusResponse struct {
	Healthy            bool  `json:"healthy"`
	DB                 bool  `json:"db"`
	BTCNode            bool  `json:"btc_node"`
	BTCHeight          int64 `json:"btc_height"`
	BTCIndexer         bool  `json:"btc_indexer"`
	BTCIndexerHeight   int64 `json:"btc_indexer_height"`
	RunesIndexer       bool  `json:"runes_indexer"`
	RunesIndexerHeight int64 `json:"runes_indexer_height"`
}

// StatusAggregator combines the node tip height with each indexer's
// checkpoint into a cached healthy/stale snapshot.
type StatusAggregator struct {
	store  Store
	node   NodeHealthSource
	logger *logrus.Logger

	mu     sync.RWMutex
	cached *StatusResponse
	at     time.Time
}

// NewStatusAggregator builds a StatusAggregator over the given Store and
// node health source.
func NewStatusAggregator(store Store, node NodeHealthSource, lg *logrus.Logger) *StatusAggregator {
	if lg == nil {
		lg = logrus.StandardLogger()
	}
	return &StatusAggregator{store: store, node: node, logger: lg}
}

// Status returns the cached snapshot if fresh, otherwise recomputes it.
func (a *StatusAggregator) Status(ctx context.Context) StatusResponse {
	a.mu.RLock()
	if a.cached != nil && time.Since(a.at) < statusCacheTTL {
		cached := *a.cached
		a.mu.RUnlock()
		return cached
	}
	a.mu.RUnlock()

	status := a.aggregate(ctx)

	a.mu.Lock()
	a.cached = &status
	a.at = time.Now()
	a.mu.Unlock()

	return status
}

func (a *StatusAggregator) aggregate(ctx context.Context) StatusResponse {
	btcNode := true
	btcHeight, err := a.node.GetBlockCount(ctx)
	if err != nil {
		a.logger.WithError(err).Error("failed to get BTC block count")
		btcNode = false
	}

	db := true
	btcCheckpoint, err := a.store.GetCheckpoint(ctx, BitcoinIndexName)
	if err != nil {
		a.logger.WithError(err).Error("failed to get bitcoin indexer status")
		db = false
	}

	var runesHeight int64
	runesCheckpoint, err := a.store.GetCheckpoint(ctx, RunesIndexName)
	if err != nil {
		a.logger.WithError(err).Error("failed to get runes indexer status")
		db = false
	} else {
		runesHeight = runesCheckpoint.Height
	}

	btcIndexerOK := max64(btcHeight, btcCheckpoint.Height)-btcCheckpoint.Height <= staleIndexerThreshold
	runesIndexerOK := max64(btcHeight, runesHeight)-runesHeight <= staleIndexerThreshold
	healthy := db && btcNode && btcIndexerOK && runesIndexerOK

	if !healthy {
		a.logger.WithFields(logrus.Fields{
			"db":            db,
			"btc_node":      btcNode,
			"height":        btcHeight,
			"btc_indexer":   btcCheckpoint.Height,
			"runes_indexer": runesHeight,
		}).Error("indexer api is unhealthy")
	}

	return StatusResponse{
		Healthy:            healthy,
		DB:                 db,
		BTCNode:            btcNode,
		BTCHeight:          btcHeight,
		BTCIndexer:         btcIndexerOK,
		BTCIndexerHeight:   btcCheckpoint.Height,
		RunesIndexer:       runesIndexerOK,
		RunesIndexerHeight: runesHeight,
	}
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
