package core

import "context"

// DecodedBlock is a fetched block along with its hash and previous-block
// hash, abstracting over the classic JSON-RPC client (rpc/btcrpc.go) and the
// gRPC firehose alternate source (rpc/firehose.go).
type DecodedBlock struct {
	Height   int64
	Hash     Hash
	PrevHash Hash
	Time     int64
	Txs      []DecodedTx
}

// DecodedTx is a transaction within a DecodedBlock, pre-parsed with its
// computed txid so indexers never recompute it.
type DecodedTx struct {
	TxID     Hash
	TxN      int32
	Inputs   []TxInput
	Outputs  []TxOutput
	Coinbase bool
	Raw      []byte // full wire-serialized transaction, for runestone decoding
}

// TxInput is one spend reference within a DecodedTx.
type TxInput struct {
	ParentTxID Hash
	ParentVout uint32
	Witness    [][]byte
}

// TxOutput is one output within a DecodedTx.
type TxOutput struct {
	Value    int64
	PkScript []byte
}

// BlockSource fetches blocks by height and resolves header ancestry for
// fork detection.
type BlockSource interface {
	// BestHeight returns the node/stream's current best block height.
	BestHeight(ctx context.Context) (int64, error)

	// BlockByHeight fetches and decodes the block at height.
	BlockByHeight(ctx context.Context, height int64) (DecodedBlock, error)

	// PreviousBlockHash resolves the parent hash of the block with the
	// given hash, used to walk back to a common ancestor during fork
	// resolution.
	PreviousBlockHash(ctx context.Context, hash Hash) (Hash, error)
}
