package core

import "fmt"

// RuneID identifies an etched rune by the block/transaction-index pair of
// its etching transaction.
type RuneID struct {
	Block uint64
	Tx    uint32
}

// String renders the canonical "block:tx" form used as the DB rune_id column.
func (id RuneID) String() string {
	return fmt.Sprintf("%d:%d", id.Block, id.Tx)
}

// ParseRuneID parses the canonical "block:tx" form.
func ParseRuneID(s string) (RuneID, error) {
	var id RuneID
	n, err := fmt.Sscanf(s, "%d:%d", &id.Block, &id.Tx)
	if err != nil || n != 2 {
		return RuneID{}, fmt.Errorf("parse rune id %q", s)
	}
	return id, nil
}

// MintTerms holds a rune's optional per-mint amount, cap, absolute height
// window, and block-relative offset window.
type MintTerms struct {
	Amount      *Amount
	Cap         *uint64
	HeightStart *uint64
	HeightEnd   *uint64
	OffsetStart *uint64
	OffsetEnd   *uint64
}

// Rune is the etched-rune row, tracking both the
// static etching parameters and the live mint/burn counters.
type Rune struct {
	Block         int64      `json:"block"`
	TxID          int32      `json:"tx_id"`
	RuneIDStr     string     `json:"rune_id"`
	Name          string     `json:"name"`
	DisplayName   string     `json:"display_name"`
	Symbol        string     `json:"symbol"`
	Mints         int32      `json:"mints"`
	MaxSupply     Amount     `json:"max_supply"`
	Premine       Amount     `json:"premine"`
	Burned        Amount     `json:"burned"`
	Minted        Amount     `json:"minted"`
	InCirculation Amount     `json:"in_circulation"`
	Divisibility  int32      `json:"divisibility"`
	Turbo         bool       `json:"turbo"`
	Cenotaph      bool       `json:"cenotaph"`
	BlockTime     int64      `json:"block_time"`
	EtchingTx     Hash       `json:"etching_tx"`
	CommitmentTx  Hash       `json:"commitment_tx"`
	Terms         *MintTerms `json:"terms,omitempty"`
	IsFeatured    bool       `json:"is_featured"`
}

// RuneIDValue returns the RuneID this row was etched under.
func (r *Rune) RuneIDValue() RuneID {
	return RuneID{Block: uint64(r.Block), Tx: uint32(r.TxID)}
}

// AddMint records a successful mint, incrementing the mint counter and
// supply totals.
func (r *Rune) AddMint(amount Amount) {
	r.Mints++
	r.InCirculation = r.InCirculation.Add(amount)
	r.Minted = r.Minted.Add(amount)
}

// Burn records a burn, returning false (and leaving state untouched) if the
// requested amount exceeds current circulation.
func (r *Rune) Burn(amount Amount) bool {
	if amount.Cmp(r.InCirculation) > 0 {
		return false
	}
	r.Burned = r.Burned.Add(amount)
	r.InCirculation = r.InCirculation.Sub(amount)
	return true
}

// RuneUtxo is a per-output rune balance row.
type RuneUtxo struct {
	ID        int64  `json:"id"`
	Block     int64  `json:"block"`
	TxID      int32  `json:"tx_id"`
	TxHash    Hash   `json:"tx_hash"`
	Vout      int32  `json:"vout"`
	Rune      string `json:"rune"`
	RuneID    string `json:"rune_id"`
	Address   string `json:"address"`
	Amount    Amount `json:"amount"`
	BTCAmount int64  `json:"btc_amount"`
}

// OutPoint returns the OutPoint this balance sits at.
func (u RuneUtxo) OutPoint() OutPoint {
	return OutPoint{TxHash: u.TxHash, Vout: uint32(u.Vout)}
}

// OutputRuneExt is the denormalized (output_id, rune, amount) index row
// used to answer "what runes sit on this output" without re-deriving
// balances from the ledger.
type OutputRuneExt struct {
	ID         int64
	Rune       string
	RuneID     string
	RuneAmount Amount
}
