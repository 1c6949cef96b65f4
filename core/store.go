package core

import "context"

// UtxoSortMode selects the column a paginated UTXO query orders by.
type UtxoSortMode string

const (
	SortByAmount UtxoSortMode = "amount"
	SortByBlock  UtxoSortMode = "block"
)

// Checkpoint is the per-indexer chain-tip bookmark.
type Checkpoint struct {
	Indexer string
	Height  int64
}

// APIKey is a boot-loaded API credential.
type APIKey struct {
	Name        string
	Key         string
	Blocked     bool
	CanLockUTXO bool
}

// Balance is an aggregate view over Output rows for one address.
type Balance struct {
	Address string `json:"address"`
	Balance int64  `json:"balance"`
}

// RuneBalance is an aggregate view over RuneUtxo rows for one (address, rune).
type RuneBalance struct {
	Address string `json:"address"`
	Rune    string `json:"rune"`
	Balance Amount `json:"balance"`
}

// BalanceHistoryEntry is one block's net change to an address's BTC balance.
type BalanceHistoryEntry struct {
	Block   int64 `json:"block"`
	Delta   int64 `json:"delta"`
	Balance int64 `json:"balance"`
}

// RuneBalanceHistoryEntry is the rune-balance analogue of BalanceHistoryEntry.
type RuneBalanceHistoryEntry struct {
	Block   int64  `json:"block"`
	Delta   Amount `json:"delta"`
	Balance Amount `json:"balance"`
}

// BlockBatch is everything staged for a single block, committed atomically
// by Store.CommitBlock.
type BlockBatch struct {
	Addresses   []Address
	Outputs     []Output
	Inputs      []Input
	RuneUpserts []Rune // new etchings and mint/burn counter updates, keyed by RuneIDValue()
	RuneUtxos   []RuneUtxo
	// InscribedOutpoints marks outputs the inscriptions tagger found
	// inscriptions on; committed as has_inscriptions output tags.
	InscribedOutpoints []OutPoint
}

// Store is the relational persistence contract. A concrete
// implementation is provided by store/postgres (the schema and migrations
// themselves are a non-goal; this interface is what every other component
// depends on).
type Store interface {
	// Checkpoints
	GetCheckpoint(ctx context.Context, indexer string) (Checkpoint, error)
	SetCheckpoint(ctx context.Context, cp Checkpoint) error

	// Block headers, for fork-root search.
	GetBlockByHash(ctx context.Context, indexer string, hash Hash) (Block, bool, error)
	DeleteBlocksAbove(ctx context.Context, indexer string, height int64) error

	// Write path.
	CommitBlock(ctx context.Context, batch BlockBatch) error
	InsertBlockRecord(ctx context.Context, block Block) error

	// Balances.
	GetBalance(ctx context.Context, address string) (Balance, error)
	GetRuneBalance(ctx context.Context, address, rune string) (RuneBalance, error)

	// Collector shortcuts and candidate selection.
	GetAddressBTCUtxoGEAmount(ctx context.Context, address string, amount int64) (*Output, bool, error)
	GetAddressRuneUtxoGEAmount(ctx context.Context, address, rune string, amount Amount) (*RuneUtxo, bool, error)
	SelectUTXOsInAmountRange(ctx context.Context, address string, min, max int64, limit int) ([]Output, error)
	SelectRuneUTXOsInAmountRange(ctx context.Context, address, rune string, min, max Amount, limit int) ([]RuneUtxo, error)
	SelectUTXOWithPagination(ctx context.Context, address string, order OrderBy, limit *int, sort UtxoSortMode, maxRows, offset int) ([]Output, error)
	SelectRuneUTXOWithPagination(ctx context.Context, rune, address string, order OrderBy, limit *int, sort UtxoSortMode, maxRows, offset int) ([]RuneUtxo, error)

	// Read-path listing. amountThreshold of zero means no lower bound.
	ListUTXOs(ctx context.Context, address string, limit, offset uint32, order OrderBy, sort UtxoSortMode, amountThreshold int64) ([]Output, uint64, error)
	ListRuneUTXOs(ctx context.Context, address, rune string, limit, offset uint32, order OrderBy) ([]RuneUtxo, uint64, error)
	GetOutputExtras(ctx context.Context, outputIDs []int64) (map[int64]OutputExtras, error)

	// Rune registry lookups, used by the runes indexer while staging a block.
	GetRuneByName(ctx context.Context, name string) (*Rune, bool, error)
	GetRuneByID(ctx context.Context, id RuneID) (*Rune, bool, error)
	GetRuneUtxosAtOutPoint(ctx context.Context, out OutPoint) ([]RuneUtxo, error)

	// ListRunes backs GET /runes: optionally filtered by a name prefix and/or
	// restricted to featured runes.
	ListRunes(ctx context.Context, limit, offset uint32, order OrderBy, namePrefix string, featuredOnly bool) ([]Rune, uint64, error)

	// Transaction-scoped lookups back GET /tx/{txid}/ins-outs[/runes].
	GetOutputsByTx(ctx context.Context, txid Hash) ([]Output, error)
	GetInputsByTx(ctx context.Context, txid Hash) ([]Input, error)
	GetRuneUtxosByTx(ctx context.Context, txid Hash) ([]RuneUtxo, error)

	// Balance history backs GET /balance-history/{addr} and its rune analogue.
	GetBalanceHistory(ctx context.Context, address string, limit, offset uint32) ([]BalanceHistoryEntry, uint64, error)
	GetRuneBalanceHistory(ctx context.Context, address, rune string, limit, offset uint32) ([]RuneBalanceHistoryEntry, uint64, error)

	// API keys, loaded once at boot. Writes here only take effect for
	// readers after their next restart, matching the boot-loaded registry's
	// documented tradeoff.
	ListAPIKeys(ctx context.Context) ([]APIKey, error)
	CreateAPIKey(ctx context.Context, key APIKey) error
	SetAPIKeyBlocked(ctx context.Context, name string, blocked bool) error

	// Ping verifies database reachability.
	Ping(ctx context.Context) error
}
