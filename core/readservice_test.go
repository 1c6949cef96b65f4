package core

import (
	"context"
	"testing"
)

func btcUtxo(id int64, seed byte, vout uint32, amount int64, address string) Output {
	return Output{
		ID:      id,
		Block:   100,
		TxHash:  testHash(seed),
		Vout:    int32(vout),
		Address: address,
		Amount:  amount,
	}
}

func newTestReadService(store *fakeStore, mempool *MempoolView, locks ReservationCache, tip int64) *ReadService {
	return NewReadService(store, mempool, locks, func() int64 { return tip })
}

// Scenario: the same request id retries a reservation and gets the same
// UTXO back, while a different caller no longer sees it among candidates.
func TestReservationIdempotence(t *testing.T) {
	store := newFakeStore()
	store.addUTXO(btcUtxo(1, 0x01, 0, 1500, "addr1"))
	locks := newFakeLockCache()
	svc := newTestReadService(store, nil, locks, 1000)

	first, apiErr := svc.CollectBTCUtxo(context.Background(), "addr1", 1000, 5, "req-xyz", true)
	if apiErr != nil {
		t.Fatalf("first reservation failed: %v", apiErr)
	}
	if len(first) != 1 || first[0].Amount != 1500 {
		t.Fatalf("first reservation = %+v", first)
	}

	// Idempotent retry within the TTL.
	second, apiErr := svc.CollectBTCUtxo(context.Background(), "addr1", 1000, 5, "req-xyz", true)
	if apiErr != nil {
		t.Fatalf("retry with the same request id failed: %v", apiErr)
	}
	if len(second) != 1 || second[0].OutPoint() != first[0].OutPoint() {
		t.Fatalf("retry returned a different utxo: %+v", second)
	}

	// A different caller must not be handed the reserved coin.
	_, apiErr = svc.CollectBTCUtxo(context.Background(), "addr1", 1000, 5, "req-other", true)
	if apiErr == nil {
		t.Fatalf("concurrent caller got the reserved utxo")
	}
	if apiErr.Code != ErrNotEnoughBalance {
		t.Fatalf("error code = %d, want NotEnoughBalance", apiErr.Code)
	}
}

func TestReservationOnlyLocksForPrivilegedKeys(t *testing.T) {
	store := newFakeStore()
	store.addUTXO(btcUtxo(1, 0x01, 0, 1500, "addr1"))
	locks := newFakeLockCache()
	svc := newTestReadService(store, nil, locks, 1000)

	if _, apiErr := svc.CollectBTCUtxo(context.Background(), "addr1", 1000, 5, "req-a", false); apiErr != nil {
		t.Fatalf("collect without lock permission failed: %v", apiErr)
	}
	if len(locks.locks) != 0 {
		t.Fatalf("canLock=false must not write reservations, got %v", locks.locks)
	}

	if _, apiErr := svc.CollectBTCUtxo(context.Background(), "addr1", 1000, 5, "req-a", true); apiErr != nil {
		t.Fatalf("collect with lock permission failed: %v", apiErr)
	}
	if len(locks.locks) != 1 {
		t.Fatalf("canLock=true should have written 1 reservation, got %v", locks.locks)
	}
}

func TestReservationFailsWhenLockCacheDown(t *testing.T) {
	store := newFakeStore()
	store.addUTXO(btcUtxo(1, 0x01, 0, 1500, "addr1"))
	locks := newFakeLockCache()
	locks.err = context.DeadlineExceeded
	svc := newTestReadService(store, nil, locks, 1000)

	_, apiErr := svc.CollectBTCUtxo(context.Background(), "addr1", 1000, 5, "req-a", true)
	if apiErr == nil || apiErr.Code != ErrInternalError {
		t.Fatalf("unavailable lock cache must fail the call with 500, got %v", apiErr)
	}
}

func TestCollectRejectsZeroTarget(t *testing.T) {
	svc := newTestReadService(newFakeStore(), nil, nil, 1000)
	if _, apiErr := svc.CollectBTCUtxo(context.Background(), "addr1", 0, 5, "", false); apiErr == nil || apiErr.Code != ErrBadInput {
		t.Fatalf("zero target should be BadInput, got %v", apiErr)
	}
	if _, apiErr := svc.CollectRuneUtxo(context.Background(), "addr1", "RUNE", ZeroAmount, 5, "", false); apiErr == nil || apiErr.Code != ErrBadInput {
		t.Fatalf("zero rune target should be BadInput, got %v", apiErr)
	}
}

func TestListUTXOsMempoolFilterSoundness(t *testing.T) {
	store := newFakeStore()
	spent := btcUtxo(1, 0x01, 0, 1000, "addr1")
	free := btcUtxo(2, 0x02, 0, 2000, "addr1")
	store.addUTXO(spent)
	store.addUTXO(free)

	source := &fakeMempoolSource{}
	tx := testHash(0xf0)
	source.set([]Hash{tx}, map[Hash][]OutPoint{tx: {spent.OutPoint()}})
	mempool := NewMempoolView(source, nil)
	mempool.refresh(context.Background())

	svc := newTestReadService(store, mempool, nil, 1000)
	result, apiErr := svc.ListUTXOs(context.Background(), "addr1", PageParams{}, ListUTXOFilters{})
	if apiErr != nil {
		t.Fatalf("list: %v", apiErr)
	}
	for _, o := range result.Records {
		if o.OutPoint() == spent.OutPoint() {
			t.Fatalf("mempool-spent utxo served to caller")
		}
	}
	if len(result.Records) != 1 || result.Records[0].ID != free.ID {
		t.Fatalf("records = %+v, want only the free utxo", result.Records)
	}
}

func TestListUTXOsPrematureCoinbaseFilter(t *testing.T) {
	store := newFakeStore()
	young := btcUtxo(1, 0x01, 0, 1000, "addr1")
	young.Coinbase = true
	young.Block = 950
	mature := btcUtxo(2, 0x02, 0, 2000, "addr1")
	mature.Coinbase = true
	mature.Block = 850
	store.addUTXO(young)
	store.addUTXO(mature)

	svc := newTestReadService(store, nil, nil, 1000)

	filtered, apiErr := svc.ListUTXOs(context.Background(), "addr1", PageParams{}, ListUTXOFilters{SkipPremature: true})
	if apiErr != nil {
		t.Fatalf("list: %v", apiErr)
	}
	if len(filtered.Records) != 1 || filtered.Records[0].ID != mature.ID {
		t.Fatalf("skip_premature records = %+v, want only the mature coinbase", filtered.Records)
	}

	all, apiErr := svc.ListUTXOs(context.Background(), "addr1", PageParams{}, ListUTXOFilters{})
	if apiErr != nil {
		t.Fatalf("list: %v", apiErr)
	}
	if len(all.Records) != 2 {
		t.Fatalf("without skip_premature both coinbase outputs are served, got %+v", all.Records)
	}
}

func TestListUTXOsInscriptionAndRuneFilters(t *testing.T) {
	store := newFakeStore()
	inscribed := btcUtxo(1, 0x01, 0, 1000, "addr1")
	withRunes := btcUtxo(2, 0x02, 0, 2000, "addr1")
	plain := btcUtxo(3, 0x03, 0, 3000, "addr1")
	store.addUTXO(inscribed)
	store.addUTXO(withRunes)
	store.addUTXO(plain)
	store.extras[1] = OutputExtras{ID: 1, HasInscriptions: true}
	store.extras[2] = OutputExtras{ID: 2, HasRunes: true}

	svc := newTestReadService(store, nil, nil, 1000)

	result, apiErr := svc.ListUTXOs(context.Background(), "addr1", PageParams{}, ListUTXOFilters{NoRunes: true})
	if apiErr != nil {
		t.Fatalf("list: %v", apiErr)
	}
	if len(result.Records) != 1 || result.Records[0].ID != plain.ID {
		t.Fatalf("records = %+v, want only the plain utxo", result.Records)
	}

	// Without no_runes the rune-bearing output is served; the inscribed one
	// never is.
	result, apiErr = svc.ListUTXOs(context.Background(), "addr1", PageParams{}, ListUTXOFilters{})
	if apiErr != nil {
		t.Fatalf("list: %v", apiErr)
	}
	if len(result.Records) != 2 {
		t.Fatalf("records = %+v, want rune-bearing and plain", result.Records)
	}
	for _, o := range result.Records {
		if o.ID == inscribed.ID {
			t.Fatalf("inscribed output must never be served")
		}
	}
}

func TestListUTXOsLockedFilter(t *testing.T) {
	store := newFakeStore()
	reserved := btcUtxo(1, 0x01, 0, 1000, "addr1")
	free := btcUtxo(2, 0x02, 0, 2000, "addr1")
	store.addUTXO(reserved)
	store.addUTXO(free)

	locks := newFakeLockCache()
	_ = locks.LockUTXO(context.Background(), reserved.OutPoint(), "req-a")

	svc := newTestReadService(store, nil, locks, 1000)

	other, apiErr := svc.ListUTXOs(context.Background(), "addr1", PageParams{}, ListUTXOFilters{RequestID: "req-b"})
	if apiErr != nil {
		t.Fatalf("list: %v", apiErr)
	}
	if len(other.Records) != 1 || other.Records[0].ID != free.ID {
		t.Fatalf("other caller records = %+v, want only the free utxo", other.Records)
	}

	owner, apiErr := svc.ListUTXOs(context.Background(), "addr1", PageParams{}, ListUTXOFilters{RequestID: "req-a"})
	if apiErr != nil {
		t.Fatalf("list: %v", apiErr)
	}
	if len(owner.Records) != 2 {
		t.Fatalf("lock owner records = %+v, want both utxos", owner.Records)
	}
}
