package core

import (
	"context"
	"errors"
	"sort"
	"sync"
)

// fakeStore is the in-memory Store used across the core package's tests.
// It keeps just enough state for the indexers, the collector, and the read
// service to run end-to-end without a database.
type fakeStore struct {
	mu sync.Mutex

	checkpoints map[string]int64
	blockByHash map[string]map[Hash]Block

	committed    []BlockBatch
	deletedAbove []int64

	runesByName map[string]Rune
	runeUtxos   map[OutPoint][]RuneUtxo
	utxos       map[string][]Output
	extras      map[int64]OutputExtras
	apiKeys     []APIKey

	balanceHistory     map[string][]BalanceHistoryEntry
	runeBalanceHistory map[string][]RuneBalanceHistoryEntry
}

var _ Store = (*fakeStore)(nil)

var errNoCheckpoint = errors.New("no checkpoint")

func newFakeStore() *fakeStore {
	return &fakeStore{
		checkpoints:        make(map[string]int64),
		blockByHash:        make(map[string]map[Hash]Block),
		runesByName:        make(map[string]Rune),
		runeUtxos:          make(map[OutPoint][]RuneUtxo),
		utxos:              make(map[string][]Output),
		extras:             make(map[int64]OutputExtras),
		balanceHistory:     make(map[string][]BalanceHistoryEntry),
		runeBalanceHistory: make(map[string][]RuneBalanceHistoryEntry),
	}
}

func (s *fakeStore) addUTXO(o Output) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.utxos[o.Address] = append(s.utxos[o.Address], o)
}

func (s *fakeStore) addRune(r Rune) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runesByName[r.Name] = r
}

func (s *fakeStore) addRuneUtxo(u RuneUtxo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runeUtxos[u.OutPoint()] = append(s.runeUtxos[u.OutPoint()], u)
}

func (s *fakeStore) rune(name string) (Rune, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.runesByName[name]
	return r, ok
}

func (s *fakeStore) GetCheckpoint(ctx context.Context, indexer string) (Checkpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.checkpoints[indexer]
	if !ok {
		return Checkpoint{Indexer: indexer}, errNoCheckpoint
	}
	return Checkpoint{Indexer: indexer, Height: h}, nil
}

func (s *fakeStore) SetCheckpoint(ctx context.Context, cp Checkpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkpoints[cp.Indexer] = cp.Height
	return nil
}

func (s *fakeStore) GetBlockByHash(ctx context.Context, indexer string, hash Hash) (Block, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.blockByHash[indexer][hash]
	return b, ok, nil
}

func (s *fakeStore) DeleteBlocksAbove(ctx context.Context, indexer string, height int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deletedAbove = append(s.deletedAbove, height)
	for hash, b := range s.blockByHash[indexer] {
		if b.Height > height {
			delete(s.blockByHash[indexer], hash)
		}
	}
	return nil
}

func (s *fakeStore) CommitBlock(ctx context.Context, batch BlockBatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.committed = append(s.committed, batch)
	for _, r := range batch.RuneUpserts {
		s.runesByName[r.Name] = r
	}
	for _, u := range batch.RuneUtxos {
		s.runeUtxos[u.OutPoint()] = append(s.runeUtxos[u.OutPoint()], u)
	}
	for _, o := range batch.Outputs {
		s.utxos[o.Address] = append(s.utxos[o.Address], o)
	}
	return nil
}

func (s *fakeStore) InsertBlockRecord(ctx context.Context, block Block) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.blockByHash[block.Indexer] == nil {
		s.blockByHash[block.Indexer] = make(map[Hash]Block)
	}
	s.blockByHash[block.Indexer][block.Hash] = block
	return nil
}

func (s *fakeStore) GetBalance(ctx context.Context, address string) (Balance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	bal := Balance{Address: address}
	for _, o := range s.utxos[address] {
		bal.Balance += o.Amount
	}
	return bal, nil
}

func (s *fakeStore) GetRuneBalance(ctx context.Context, address, rune string) (RuneBalance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	bal := RuneBalance{Address: address, Rune: rune, Balance: ZeroAmount}
	for _, utxos := range s.runeUtxos {
		for _, u := range utxos {
			if u.Address == address && u.Rune == rune {
				bal.Balance = bal.Balance.Add(u.Amount)
			}
		}
	}
	return bal, nil
}

func (s *fakeStore) sortedUTXOs(address string) []Output {
	out := append([]Output(nil), s.utxos[address]...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Amount > out[j].Amount })
	return out
}

func (s *fakeStore) sortedRuneUTXOs(address, rune string) []RuneUtxo {
	var out []RuneUtxo
	for _, utxos := range s.runeUtxos {
		for _, u := range utxos {
			if u.Address == address && u.Rune == rune {
				out = append(out, u)
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[j].Amount.LessThan(out[i].Amount) })
	return out
}

func (s *fakeStore) GetAddressBTCUtxoGEAmount(ctx context.Context, address string, amount int64) (*Output, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var best *Output
	for i, o := range s.utxos[address] {
		if o.Amount >= amount && (best == nil || o.Amount < best.Amount) {
			best = &s.utxos[address][i]
		}
	}
	if best == nil {
		return nil, false, nil
	}
	picked := *best
	return &picked, true, nil
}

func (s *fakeStore) GetAddressRuneUtxoGEAmount(ctx context.Context, address, rune string, amount Amount) (*RuneUtxo, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var best *RuneUtxo
	for _, u := range s.sortedRuneUTXOs(address, rune) {
		if u.Amount.GreaterThanOrEqual(amount) {
			picked := u
			best = &picked
		}
	}
	if best == nil {
		return nil, false, nil
	}
	return best, true, nil
}

func (s *fakeStore) SelectUTXOsInAmountRange(ctx context.Context, address string, min, max int64, limit int) ([]Output, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Output
	for _, o := range s.sortedUTXOs(address) {
		if o.Amount >= min && o.Amount <= max {
			out = append(out, o)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (s *fakeStore) SelectRuneUTXOsInAmountRange(ctx context.Context, address, rune string, min, max Amount, limit int) ([]RuneUtxo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []RuneUtxo
	for _, u := range s.sortedRuneUTXOs(address, rune) {
		if u.Amount.GreaterThanOrEqual(min) && !max.LessThan(u.Amount) {
			out = append(out, u)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (s *fakeStore) SelectUTXOWithPagination(ctx context.Context, address string, order OrderBy, limit *int, sort UtxoSortMode, maxRows, offset int) ([]Output, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := s.sortedUTXOs(address)
	if offset >= len(all) {
		return nil, nil
	}
	all = all[offset:]
	if len(all) > maxRows {
		all = all[:maxRows]
	}
	return all, nil
}

func (s *fakeStore) SelectRuneUTXOWithPagination(ctx context.Context, rune, address string, order OrderBy, limit *int, sort UtxoSortMode, maxRows, offset int) ([]RuneUtxo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := s.sortedRuneUTXOs(address, rune)
	if offset >= len(all) {
		return nil, nil
	}
	all = all[offset:]
	if len(all) > maxRows {
		all = all[:maxRows]
	}
	return all, nil
}

func (s *fakeStore) ListUTXOs(ctx context.Context, address string, limit, offset uint32, order OrderBy, sortMode UtxoSortMode, amountThreshold int64) ([]Output, uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var all []Output
	for _, o := range s.utxos[address] {
		if o.Amount >= amountThreshold {
			all = append(all, o)
		}
	}
	sort.SliceStable(all, func(i, j int) bool {
		var less bool
		if sortMode == SortByAmount {
			less = all[i].Amount < all[j].Amount
		} else {
			less = all[i].Block < all[j].Block
		}
		if order == OrderDesc {
			return !less
		}
		return less
	})
	total := uint64(len(all))
	if int(offset) >= len(all) {
		return nil, total, nil
	}
	all = all[offset:]
	if uint32(len(all)) > limit {
		all = all[:limit]
	}
	return all, total, nil
}

func (s *fakeStore) ListRuneUTXOs(ctx context.Context, address, rune string, limit, offset uint32, order OrderBy) ([]RuneUtxo, uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := s.sortedRuneUTXOs(address, rune)
	total := uint64(len(all))
	if int(offset) >= len(all) {
		return nil, total, nil
	}
	all = all[offset:]
	if uint32(len(all)) > limit {
		all = all[:limit]
	}
	return all, total, nil
}

func (s *fakeStore) GetOutputExtras(ctx context.Context, outputIDs []int64) (map[int64]OutputExtras, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[int64]OutputExtras)
	for _, id := range outputIDs {
		if ex, ok := s.extras[id]; ok {
			out[id] = ex
		}
	}
	return out, nil
}

func (s *fakeStore) GetRuneByName(ctx context.Context, name string) (*Rune, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.runesByName[name]
	if !ok {
		return nil, false, nil
	}
	copied := r
	return &copied, true, nil
}

func (s *fakeStore) GetRuneByID(ctx context.Context, id RuneID) (*Rune, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.runesByName {
		if r.RuneIDValue() == id {
			copied := r
			return &copied, true, nil
		}
	}
	return nil, false, nil
}

func (s *fakeStore) GetRuneUtxosAtOutPoint(ctx context.Context, out OutPoint) ([]RuneUtxo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]RuneUtxo(nil), s.runeUtxos[out]...), nil
}

func (s *fakeStore) ListRunes(ctx context.Context, limit, offset uint32, order OrderBy, namePrefix string, featuredOnly bool) ([]Rune, uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Rune
	for _, r := range s.runesByName {
		if featuredOnly && !r.IsFeatured {
			continue
		}
		out = append(out, r)
	}
	return out, uint64(len(out)), nil
}

func (s *fakeStore) GetOutputsByTx(ctx context.Context, txid Hash) ([]Output, error) { return nil, nil }
func (s *fakeStore) GetInputsByTx(ctx context.Context, txid Hash) ([]Input, error)   { return nil, nil }
func (s *fakeStore) GetRuneUtxosByTx(ctx context.Context, txid Hash) ([]RuneUtxo, error) {
	return nil, nil
}

func (s *fakeStore) GetBalanceHistory(ctx context.Context, address string, limit, offset uint32) ([]BalanceHistoryEntry, uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h := s.balanceHistory[address]
	return h, uint64(len(h)), nil
}

func (s *fakeStore) GetRuneBalanceHistory(ctx context.Context, address, rune string, limit, offset uint32) ([]RuneBalanceHistoryEntry, uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h := s.runeBalanceHistory[address+"/"+rune]
	return h, uint64(len(h)), nil
}

func (s *fakeStore) ListAPIKeys(ctx context.Context) ([]APIKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]APIKey(nil), s.apiKeys...), nil
}

func (s *fakeStore) CreateAPIKey(ctx context.Context, key APIKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.apiKeys = append(s.apiKeys, key)
	return nil
}

func (s *fakeStore) SetAPIKeyBlocked(ctx context.Context, name string, blocked bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.apiKeys {
		if s.apiKeys[i].Name == name {
			s.apiKeys[i].Blocked = blocked
		}
	}
	return nil
}

func (s *fakeStore) Ping(ctx context.Context) error { return nil }

// fakeLockCache is an in-memory ReservationCache with the same request-id
// semantics as the Redis-backed one.
type fakeLockCache struct {
	mu    sync.Mutex
	locks map[OutPoint]string
	err   error
}

var _ ReservationCache = (*fakeLockCache)(nil)

func newFakeLockCache() *fakeLockCache {
	return &fakeLockCache{locks: make(map[OutPoint]string)}
}

func (c *fakeLockCache) LockUTXO(ctx context.Context, out OutPoint, requestID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	id := requestID
	if id == "" {
		id = "p.j.fry"
	}
	c.locks[out] = id
	return nil
}

func (c *fakeLockCache) CheckIsLocked(ctx context.Context, out OutPoint, requestID string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return false, c.err
	}
	held, ok := c.locks[out]
	if !ok {
		return false, nil
	}
	if requestID != "" && held == requestID {
		return false, nil
	}
	return true, nil
}

// testHash derives a deterministic Hash from a seed byte.
func testHash(seed byte) Hash {
	var h Hash
	for i := range h {
		h[i] = seed
	}
	return h
}
