package core

// Block is one header row in the per-indexer chain tip tracking table; each
// indexer keeps its own stream so forks replay independently for each.
type Block struct {
	Height    int64
	Hash      Hash
	BlockTime int64
	Indexer   string
}

// Address is a classified output script, keyed by its derived address
// string (or synthetic "nsa_..." id for non-standard scripts).
type Address struct {
	ID          int64
	Address     string
	AddressType string
	PkScript    []byte
}

// Output is a transaction output, recorded the
// first time it is seen regardless of whether it is later spent.
type Output struct {
	ID       int64  `json:"id"`
	Block    int64  `json:"block"`
	TxID     int32  `json:"tx_id"`
	TxHash   Hash   `json:"tx_hash"`
	Vout     int32  `json:"vout"`
	Address  string `json:"address"`
	Amount   int64  `json:"amount"` // satoshis; fits comfortably in int64 (max supply ~2.1e15 sats)
	Coinbase bool   `json:"coinbase"`
}

// OutPoint identifies an output uniquely across the whole chain.
type OutPoint struct {
	TxHash Hash
	Vout   uint32
}

// OutPoint returns the OutPoint this Output sits at.
func (o Output) OutPoint() OutPoint {
	return OutPoint{TxHash: o.TxHash, Vout: uint32(o.Vout)}
}

// Input is a spend of a prior output; it records
// the parent outpoint being consumed, not its value (joined via Output).
type Input struct {
	ID         int64 `json:"id"`
	Block      int64 `json:"block"`
	TxID       int32 `json:"tx_id"`
	TxHash     Hash  `json:"tx_hash"`
	Vin        int32 `json:"vin"`
	ParentTx   Hash  `json:"parent_tx"`
	ParentVout int32 `json:"parent_vout"`
}

// ParentOutPoint returns the OutPoint this Input spends.
func (i Input) ParentOutPoint() OutPoint {
	return OutPoint{TxHash: i.ParentTx, Vout: uint32(i.ParentVout)}
}

// OutputExtras caches whether an output's address carries rune balances
// and/or inscriptions, so read-path filtering can
// avoid a join against the full rune-balance table for the common case.
type OutputExtras struct {
	ID              int64
	HasRunes        bool
	HasInscriptions bool
}
