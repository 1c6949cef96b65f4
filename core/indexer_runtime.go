package core

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"rune-indexer/pkg/metrics"
)

// TxInfo is the per-transaction context handed to a TxIndexer.
type TxInfo struct {
	Block     int64
	TxN       int32
	TxID      Hash
	Tx        *DecodedTx
	Timestamp int64
}

// TxIndexer is one pluggable per-block state machine (the BTC UTXO indexer
// or the runes indexer).
type TxIndexer interface {
	Name() string
	IndexTransaction(ctx context.Context, info TxInfo) error
	CommitState(ctx context.Context) error
	ResetState()
}

// IndexingOpts configures one BlockIndexerRuntime instance.
type IndexingOpts struct {
	DryRun         bool
	StartingHeight int64
	RetryOnFail    bool
	WaitInterval   time.Duration
}

// BlockIndexerRuntime drives a single TxIndexer through the chain,
// detecting and resolving forks by walking back to a common ancestor and
// resetting the indexer's staged state before replaying.
type BlockIndexerRuntime struct {
	name    string
	indexer TxIndexer
	source  BlockSource
	store   Store
	opts    IndexingOpts
	logger  *logrus.Logger

	lastBlockHash Hash
}

// NewBlockIndexerRuntime builds a runtime for the given indexer.
func NewBlockIndexerRuntime(indexer TxIndexer, source BlockSource, store Store, opts IndexingOpts, lg *logrus.Logger) *BlockIndexerRuntime {
	if lg == nil {
		lg = logrus.StandardLogger()
	}
	if opts.WaitInterval <= 0 {
		opts.WaitInterval = 5 * time.Second
	}
	return &BlockIndexerRuntime{
		name:    indexer.Name(),
		indexer: indexer,
		source:  source,
		store:   store,
		opts:    opts,
		logger:  lg,
	}
}

// Run drives the indexer until ctx is cancelled, retrying on failure when
// RetryOnFail is set.
func (rt *BlockIndexerRuntime) Run(ctx context.Context) {
	for ctx.Err() == nil {
		if !rt.runOnce(ctx) && rt.opts.RetryOnFail {
			rt.logger.Error("run failed, retrying")
			select {
			case <-ctx.Done():
				return
			case <-time.After(rt.opts.WaitInterval):
			}
			rt.indexer.ResetState()
			continue
		}
		break
	}
}

// startingBlock resolves the first height to index: one past the stored
// checkpoint, or the configured starting height, whichever is greater.
func (rt *BlockIndexerRuntime) startingBlock(ctx context.Context) int64 {
	cp, err := rt.store.GetCheckpoint(ctx, rt.name)
	var last int64
	if err != nil {
		if setErr := rt.store.SetCheckpoint(ctx, Checkpoint{Indexer: rt.name, Height: -1}); setErr != nil {
			rt.logger.WithError(setErr).Error("failed to insert indexer tip")
		}
		last = 0
	} else {
		last = cp.Height + 1
	}
	if rt.opts.StartingHeight > last {
		return rt.opts.StartingHeight
	}
	return last
}

// runOnce runs the main indexing loop until ctx is cancelled or an
// unrecoverable error occurs, returning false on the latter.
func (rt *BlockIndexerRuntime) runOnce(ctx context.Context) bool {
	current := rt.startingBlock(ctx)

	best, err := rt.source.BestHeight(ctx)
	if err != nil {
		rt.logger.WithError(err).Error("can't get best BTC block, indexing stopped")
		return false
	}
	rt.logger.WithFields(logrus.Fields{"best_block": best, "first_block": current}).Info("rpc init successful")

	for ctx.Err() == nil {
		best, err = rt.source.BestHeight(ctx)
		if err != nil {
			rt.logger.WithError(err).Error("can't get best BTC block")
			return false
		}

		if best < current {
			select {
			case <-ctx.Done():
				return true
			case <-time.After(rt.opts.WaitInterval):
			}
			continue
		}

		height, hash, txCount, err := rt.indexBlock(ctx, current)
		if err != nil {
			rt.logger.WithError(err).Error("block indexing failed, retrying")
			rt.indexer.ResetState()
			continue
		}

		if height < current || txCount == 0 {
			rt.logger.WithFields(logrus.Fields{"height": current, "hash": hash}).Info("fork occurred, resetting state to fork root")
			if !rt.opts.DryRun {
				if err := rt.store.SetCheckpoint(ctx, Checkpoint{Indexer: rt.name, Height: height}); err != nil {
					rt.logger.WithError(err).Error("unable to update last indexed block")
					return false
				}
			}
			metrics.ReorgsDetected.WithLabelValues(rt.name).Inc()
			metrics.IndexerHeight.WithLabelValues(rt.name).Set(float64(height))
			rt.lastBlockHash = hash
			current = height + 1
			continue
		}

		rt.logger.WithFields(logrus.Fields{"height": current, "hash": hash, "tx_count": txCount}).Info("processed new block")
		if !rt.opts.DryRun {
			if err := rt.store.SetCheckpoint(ctx, Checkpoint{Indexer: rt.name, Height: current}); err != nil {
				rt.logger.WithError(err).Error("unable to update last indexed block")
			}
		}
		metrics.BlocksIndexed.WithLabelValues(rt.name).Inc()
		metrics.IndexerHeight.WithLabelValues(rt.name).Set(float64(current))
		rt.lastBlockHash = hash
		current++
	}

	rt.logger.Info("received stop signal, indexing stopped")
	return true
}

// findForkRoot walks header ancestry backward from hash until it finds a
// block already recorded for this indexer, returning that common ancestor.
func (rt *BlockIndexerRuntime) findForkRoot(ctx context.Context, hash Hash) (Block, error) {
	for {
		if b, found, err := rt.store.GetBlockByHash(ctx, rt.name, hash); err == nil && found {
			return b, nil
		}
		prev, err := rt.source.PreviousBlockHash(ctx, hash)
		if err != nil {
			return Block{}, fmt.Errorf("block(%s) has no parent: %w", hash, err)
		}
		hash = prev
	}
}

// indexBlock fetches, indexes, and commits one block, detecting forks by
// comparing the fetched block's parent hash against the last processed
// hash.
func (rt *BlockIndexerRuntime) indexBlock(ctx context.Context, height int64) (int64, Hash, int, error) {
	block, err := rt.source.BlockByHeight(ctx, height)
	if err != nil {
		return 0, Hash{}, 0, fmt.Errorf("can't get BTC block by height(%d): %w", height, err)
	}

	if !rt.lastBlockHash.IsZero() && rt.lastBlockHash != block.PrevHash {
		root, err := rt.findForkRoot(ctx, block.PrevHash)
		if err != nil {
			return 0, Hash{}, 0, fmt.Errorf("unable to find fork root: %w", err)
		}
		// DeleteBlocksAbove is scoped to this indexer's own tables, so the
		// rewind always runs; each indexer drops only the rows it owns.
		if err := rt.store.DeleteBlocksAbove(ctx, rt.name, root.Height); err != nil {
			return 0, Hash{}, 0, fmt.Errorf("[BUG]: can't drop orphans: %w", err)
		}
		return root.Height, root.Hash, 0, nil
	}

	for i := range block.Txs {
		tx := &block.Txs[i]
		info := TxInfo{
			Block:     height,
			TxN:       int32(i),
			TxID:      tx.TxID,
			Tx:        tx,
			Timestamp: block.Time,
		}
		if err := rt.indexer.IndexTransaction(ctx, info); err != nil {
			return 0, Hash{}, 0, fmt.Errorf("[BUG]: can't proceed without data corruption: %w", err)
		}
	}

	if rt.opts.DryRun {
		return height, block.Hash, len(block.Txs), nil
	}

	if err := rt.indexer.CommitState(ctx); err != nil {
		return 0, Hash{}, 0, fmt.Errorf("[BUG] can't commit block data: %w", err)
	}

	if err := rt.store.InsertBlockRecord(ctx, Block{
		Height:    height,
		Hash:      block.Hash,
		BlockTime: block.Time,
		Indexer:   rt.name,
	}); err != nil {
		return 0, Hash{}, 0, fmt.Errorf("[BUG] can't insert block tip: %w", err)
	}

	return height, block.Hash, len(block.Txs), nil
}
