package core

import (
	"context"

	"github.com/btcsuite/btcd/chaincfg"
)

// BitcoinIndexName is the fixed indexer identifier used as the checkpoint
// key. Do not change without a migration.
const BitcoinIndexName = "btc_utxo_index"

// btcIndexerState is the per-block staging buffer the BTC UTXO indexer
// accumulates before a single committing transaction.
type btcIndexerState struct {
	newAddresses []Address
	newInputs    []Input
	newOutputs   []Output
	addressIndex map[string]struct{}
}

// addressIndexSoftCap bounds the in-memory dedup set's growth.
const addressIndexSoftCap = 10_000_000

func newBtcIndexerState() *btcIndexerState {
	return &btcIndexerState{
		addressIndex: make(map[string]struct{}, 1024),
	}
}

func (s *btcIndexerState) reset() {
	s.newAddresses = nil
	s.newInputs = nil
	s.newOutputs = nil
	if len(s.addressIndex) > addressIndexSoftCap {
		s.addressIndex = make(map[string]struct{}, 1024)
	}
}

// BitcoinUtxoIndexer is the plain-UTXO TxIndexer: it stages an Input row for
// every non-coinbase spend and an Output (plus, for unseen scripts, an
// Address) row for every output.
type BitcoinUtxoIndexer struct {
	params *chaincfg.Params
	store  Store
	state  *btcIndexerState
}

// NewBitcoinUtxoIndexer builds a BitcoinUtxoIndexer targeting the given
// network.
func NewBitcoinUtxoIndexer(params *chaincfg.Params, store Store) *BitcoinUtxoIndexer {
	return &BitcoinUtxoIndexer{params: params, store: store, state: newBtcIndexerState()}
}

// Name implements TxIndexer.
func (idx *BitcoinUtxoIndexer) Name() string { return BitcoinIndexName }

// IndexTransaction implements TxIndexer.
func (idx *BitcoinUtxoIndexer) IndexTransaction(ctx context.Context, info TxInfo) error {
	coinbase := info.Tx.Coinbase

	if !coinbase {
		for n, in := range info.Tx.Inputs {
			idx.state.newInputs = append(idx.state.newInputs, Input{
				Block:      info.Block,
				TxID:       info.TxN,
				TxHash:     info.TxID,
				Vin:        int32(n),
				ParentTx:   in.ParentTxID,
				ParentVout: int32(in.ParentVout),
			})
		}
	}

	for n, out := range info.Tx.Outputs {
		resolved := ResolveAddress(out.PkScript, idx.params)

		if _, seen := idx.state.addressIndex[resolved.Address]; !seen {
			idx.state.addressIndex[resolved.Address] = struct{}{}
			idx.state.newAddresses = append(idx.state.newAddresses, Address{
				Address:     resolved.Address,
				AddressType: resolved.Type,
				PkScript:    out.PkScript,
			})
		}

		idx.state.newOutputs = append(idx.state.newOutputs, Output{
			Block:    info.Block,
			TxID:     info.TxN,
			TxHash:   info.TxID,
			Vout:     int32(n),
			Address:  resolved.Address,
			Amount:   out.Value,
			Coinbase: coinbase,
		})
	}

	return nil
}

// CommitState implements TxIndexer.
func (idx *BitcoinUtxoIndexer) CommitState(ctx context.Context) error {
	batch := BlockBatch{
		Addresses: idx.state.newAddresses,
		Outputs:   idx.state.newOutputs,
		Inputs:    idx.state.newInputs,
	}
	if err := idx.store.CommitBlock(ctx, batch); err != nil {
		return err
	}
	idx.state.reset()
	return nil
}

// ResetState implements TxIndexer.
func (idx *BitcoinUtxoIndexer) ResetState() {
	idx.state.reset()
}
