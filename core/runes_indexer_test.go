package core

import (
	"context"
	"testing"
)

// fakeCommitmentResolver answers commitment lookups from a fixed map.
type fakeCommitmentResolver struct {
	entries map[OutPoint]struct {
		taproot bool
		height  int64
	}
}

func (f *fakeCommitmentResolver) ResolveCommitment(ctx context.Context, txid Hash, vout uint32) (bool, int64, bool, error) {
	e, ok := f.entries[OutPoint{TxHash: txid, Vout: vout}]
	if !ok {
		return false, 0, false, nil
	}
	return e.taproot, e.height, true, nil
}

func commitResolverFor(out OutPoint, taproot bool, height int64) *fakeCommitmentResolver {
	return &fakeCommitmentResolver{entries: map[OutPoint]struct {
		taproot bool
		height  int64
	}{out: {taproot: taproot, height: height}}}
}

// commitWitness builds a two-item witness whose tapscript pushes the
// commitment bytes of name.
func commitWitness(name string) [][]byte {
	commitment := runeCommitment(name)
	script := append([]byte{byte(len(commitment))}, commitment...)
	return [][]byte{script, {0xc0}}
}

// etchingTx assembles a one-input transaction whose second output carries an
// etching runestone for name.
func etchingTx(txid Hash, commitOut OutPoint, name string, extra ...uint64) *DecodedTx {
	ints := []uint64{
		tagFlags, flagEtching,
		tagRune, runeNameToNumber(name),
	}
	ints = append(ints, extra...)
	return &DecodedTx{
		TxID: txid,
		Inputs: []TxInput{{
			ParentTxID: commitOut.TxHash,
			ParentVout: commitOut.Vout,
			Witness:    commitWitness(name),
		}},
		Outputs: []TxOutput{
			{Value: 5000, PkScript: p2pkhScript(0x11)},
			{Value: 0, PkScript: runestoneScript(encodeIntegers(ints...))},
		},
	}
}

// the shortest name etchable at the mainnet activation height.
const etchName = "AAAAAAAAAAAAA"

func newTestRunesIndexer(store *fakeStore, resolver CommitmentResolver) *RunesIndexer {
	return NewRunesIndexer("mainnet", store, resolver, nil)
}

func seedRune(store *fakeStore, name string, id RuneID, circulating uint64) Rune {
	r := Rune{
		Block:         int64(id.Block),
		TxID:          int32(id.Tx),
		RuneIDStr:     id.String(),
		Name:          name,
		DisplayName:   name,
		Symbol:        "R",
		Premine:       NewAmount(circulating),
		Minted:        NewAmount(circulating),
		InCirculation: NewAmount(circulating),
		MaxSupply:     NewAmount(circulating),
	}
	store.addRune(r)
	return r
}

func seedRuneUtxo(store *fakeStore, r Rune, out OutPoint, amount uint64, address string) {
	store.addRuneUtxo(RuneUtxo{
		Block:   r.Block,
		TxHash:  out.TxHash,
		Vout:    int32(out.Vout),
		Rune:    r.Name,
		RuneID:  r.RuneIDStr,
		Address: address,
		Amount:  NewAmount(amount),
	})
}

func TestEtchingWithValidCommitment(t *testing.T) {
	store := newFakeStore()
	commitOut := OutPoint{TxHash: testHash(0xaa), Vout: 0}
	// Mined 6 confirmations behind the etching block (inclusive of its own).
	idx := newTestRunesIndexer(store, commitResolverFor(commitOut, true, 839995))

	tx := etchingTx(testHash(0x01), commitOut, etchName,
		tagPremine, 1000,
		tagSpacers, 1,
	)
	// Premine-only etching: flags must still carry only the etching bit.
	info := TxInfo{Block: 840000, TxN: 1, TxID: tx.TxID, Tx: tx, Timestamp: 1713571767}
	if err := idx.IndexTransaction(context.Background(), info); err != nil {
		t.Fatalf("index etching: %v", err)
	}
	if err := idx.CommitState(context.Background()); err != nil {
		t.Fatalf("commit: %v", err)
	}

	r, ok := store.rune(etchName)
	if !ok {
		t.Fatalf("etched rune not committed")
	}
	if r.RuneIDStr != "840000:1" {
		t.Fatalf("rune id = %s, want 840000:1", r.RuneIDStr)
	}
	if r.Premine.Cmp(NewAmount(1000)) != 0 || r.InCirculation.Cmp(NewAmount(1000)) != 0 {
		t.Fatalf("premine = %s, in_circulation = %s, want 1000/1000", r.Premine, r.InCirculation)
	}
	if r.CommitmentTx != commitOut.TxHash {
		t.Fatalf("commitment tx = %s, want %s", r.CommitmentTx, commitOut.TxHash)
	}
	if r.DisplayName != "A•AAAAAAAAAAAA" {
		t.Fatalf("display name = %s", r.DisplayName)
	}

	// The premine lands on the first non-OP_RETURN output.
	utxos, _ := store.GetRuneUtxosAtOutPoint(context.Background(), OutPoint{TxHash: tx.TxID, Vout: 0})
	if len(utxos) != 1 || utxos[0].Amount.Cmp(NewAmount(1000)) != 0 {
		t.Fatalf("premine utxos = %+v", utxos)
	}
}

func TestEtchingRejectedWithoutEnoughConfirmations(t *testing.T) {
	store := newFakeStore()
	commitOut := OutPoint{TxHash: testHash(0xaa), Vout: 0}
	// Only 5 confirmations at the etching block.
	idx := newTestRunesIndexer(store, commitResolverFor(commitOut, true, 839996))

	tx := etchingTx(testHash(0x01), commitOut, etchName)
	info := TxInfo{Block: 840000, TxN: 1, TxID: tx.TxID, Tx: tx}
	if err := idx.IndexTransaction(context.Background(), info); err != nil {
		t.Fatalf("index: %v", err)
	}
	if idx.state.stats.invalidEtches != 1 {
		t.Fatalf("invalid etches = %d, want 1", idx.state.stats.invalidEtches)
	}
	if _, ok := idx.state.runeByName[etchName]; ok {
		t.Fatalf("under-confirmed etching must not create a rune")
	}
}

func TestEtchingRejectedFromNonTaprootCommit(t *testing.T) {
	store := newFakeStore()
	commitOut := OutPoint{TxHash: testHash(0xaa), Vout: 0}
	idx := newTestRunesIndexer(store, commitResolverFor(commitOut, false, 839990))

	tx := etchingTx(testHash(0x01), commitOut, etchName)
	if err := idx.IndexTransaction(context.Background(), TxInfo{Block: 840000, TxN: 1, TxID: tx.TxID, Tx: tx}); err != nil {
		t.Fatalf("index: %v", err)
	}
	if idx.state.stats.invalidEtches != 1 {
		t.Fatalf("invalid etches = %d, want 1", idx.state.stats.invalidEtches)
	}
}

func TestEtchingDuplicateNameRejected(t *testing.T) {
	store := newFakeStore()
	commitOut := OutPoint{TxHash: testHash(0xaa), Vout: 0}
	idx := newTestRunesIndexer(store, commitResolverFor(commitOut, true, 839990))
	seedRune(store, etchName, RuneID{Block: 840000, Tx: 1}, 0)

	tx := etchingTx(testHash(0x02), commitOut, etchName)
	if err := idx.IndexTransaction(context.Background(), TxInfo{Block: 840002, TxN: 1, TxID: tx.TxID, Tx: tx}); err != nil {
		t.Fatalf("index: %v", err)
	}
	if idx.state.stats.invalidEtches != 1 {
		t.Fatalf("invalid etches = %d, want 1", idx.state.stats.invalidEtches)
	}
	r, _ := store.rune(etchName)
	if r.RuneIDStr != "840000:1" {
		t.Fatalf("original rune replaced: %s", r.RuneIDStr)
	}
}

func TestEtchingNameBelowMinimumRejected(t *testing.T) {
	store := newFakeStore()
	commitOut := OutPoint{TxHash: testHash(0xaa), Vout: 0}
	idx := newTestRunesIndexer(store, commitResolverFor(commitOut, true, 839990))

	tx := etchingTx(testHash(0x01), commitOut, "SHORT")
	if err := idx.IndexTransaction(context.Background(), TxInfo{Block: 840000, TxN: 1, TxID: tx.TxID, Tx: tx}); err != nil {
		t.Fatalf("index: %v", err)
	}
	if idx.state.stats.invalidEtches != 1 {
		t.Fatalf("a 5-letter name at the activation height must be rejected")
	}
}

func TestCenotaphBurnsInputs(t *testing.T) {
	store := newFakeStore()
	idx := newTestRunesIndexer(store, &fakeCommitmentResolver{})

	r := seedRune(store, etchName, RuneID{Block: 840000, Tx: 1}, 100)
	parent := OutPoint{TxHash: testHash(0x10), Vout: 0}
	seedRuneUtxo(store, r, parent, 100, "addr1")

	tx := &DecodedTx{
		TxID:   testHash(0x02),
		Inputs: []TxInput{{ParentTxID: parent.TxHash, ParentVout: parent.Vout}},
		Outputs: []TxOutput{
			{Value: 1000, PkScript: p2pkhScript(0x22)},
			{Value: 0, PkScript: runestoneScript([]byte{0x80})}, // truncated varint
		},
	}
	if err := idx.IndexTransaction(context.Background(), TxInfo{Block: 840001, TxN: 2, TxID: tx.TxID, Tx: tx}); err != nil {
		t.Fatalf("index: %v", err)
	}
	if err := idx.CommitState(context.Background()); err != nil {
		t.Fatalf("commit: %v", err)
	}

	utxos, _ := store.GetRuneUtxosAtOutPoint(context.Background(), OutPoint{TxHash: tx.TxID, Vout: 0})
	if len(utxos) != 0 {
		t.Fatalf("cenotaph must not produce rune outputs, got %+v", utxos)
	}
	after, _ := store.rune(etchName)
	if after.Burned.Cmp(NewAmount(100)) != 0 {
		t.Fatalf("burned = %s, want 100", after.Burned)
	}
	if !after.InCirculation.IsZero() {
		t.Fatalf("in_circulation = %s, want 0", after.InCirculation)
	}
}

func TestEdictAllOutputsEvenSplit(t *testing.T) {
	store := newFakeStore()
	idx := newTestRunesIndexer(store, &fakeCommitmentResolver{})

	id := RuneID{Block: 840000, Tx: 1}
	r := seedRune(store, etchName, id, 101)
	parent := OutPoint{TxHash: testHash(0x10), Vout: 0}
	seedRuneUtxo(store, r, parent, 101, "addr1")

	// Edict (R, 0, 4): output index == len(outputs), amount 0, so divide the
	// whole balance across the three non-OP_RETURN outputs.
	payload := encodeIntegers(tagBody, id.Block, uint64(id.Tx), 0, 4)
	tx := &DecodedTx{
		TxID:   testHash(0x03),
		Inputs: []TxInput{{ParentTxID: parent.TxHash, ParentVout: parent.Vout}},
		Outputs: []TxOutput{
			{Value: 500, PkScript: p2pkhScript(0x21)},
			{Value: 500, PkScript: p2pkhScript(0x22)},
			{Value: 500, PkScript: p2pkhScript(0x23)},
			{Value: 0, PkScript: runestoneScript(payload)},
		},
	}
	if err := idx.IndexTransaction(context.Background(), TxInfo{Block: 840001, TxN: 2, TxID: tx.TxID, Tx: tx}); err != nil {
		t.Fatalf("index: %v", err)
	}
	if err := idx.CommitState(context.Background()); err != nil {
		t.Fatalf("commit: %v", err)
	}

	want := []uint64{34, 34, 33}
	for vout, amount := range want {
		utxos, _ := store.GetRuneUtxosAtOutPoint(context.Background(), OutPoint{TxHash: tx.TxID, Vout: uint32(vout)})
		if len(utxos) != 1 || utxos[0].Amount.Cmp(NewAmount(amount)) != 0 {
			t.Fatalf("vout %d: got %+v, want %d", vout, utxos, amount)
		}
	}
	// The OP_RETURN output gets nothing and nothing burns.
	after, _ := store.rune(etchName)
	if !after.Burned.IsZero() {
		t.Fatalf("burned = %s, want 0", after.Burned)
	}
}

func TestEdictSingleOutputCappedAtBalance(t *testing.T) {
	store := newFakeStore()
	idx := newTestRunesIndexer(store, &fakeCommitmentResolver{})

	id := RuneID{Block: 840000, Tx: 1}
	r := seedRune(store, etchName, id, 60)
	parent := OutPoint{TxHash: testHash(0x10), Vout: 0}
	seedRuneUtxo(store, r, parent, 60, "addr1")

	// Asks for 100 but only 60 is unallocated.
	payload := encodeIntegers(tagBody, id.Block, uint64(id.Tx), 100, 1)
	tx := &DecodedTx{
		TxID:   testHash(0x04),
		Inputs: []TxInput{{ParentTxID: parent.TxHash, ParentVout: parent.Vout}},
		Outputs: []TxOutput{
			{Value: 500, PkScript: p2pkhScript(0x21)},
			{Value: 500, PkScript: p2pkhScript(0x22)},
			{Value: 0, PkScript: runestoneScript(payload)},
		},
	}
	if err := idx.IndexTransaction(context.Background(), TxInfo{Block: 840001, TxN: 2, TxID: tx.TxID, Tx: tx}); err != nil {
		t.Fatalf("index: %v", err)
	}
	if err := idx.CommitState(context.Background()); err != nil {
		t.Fatalf("commit: %v", err)
	}

	utxos, _ := store.GetRuneUtxosAtOutPoint(context.Background(), OutPoint{TxHash: tx.TxID, Vout: 1})
	if len(utxos) != 1 || utxos[0].Amount.Cmp(NewAmount(60)) != 0 {
		t.Fatalf("vout 1 = %+v, want 60", utxos)
	}
}

func TestUnallocatedRoutedToPointer(t *testing.T) {
	store := newFakeStore()
	idx := newTestRunesIndexer(store, &fakeCommitmentResolver{})

	id := RuneID{Block: 840000, Tx: 1}
	r := seedRune(store, etchName, id, 77)
	parent := OutPoint{TxHash: testHash(0x10), Vout: 0}
	seedRuneUtxo(store, r, parent, 77, "addr1")

	payload := encodeIntegers(tagPointer, 1)
	tx := &DecodedTx{
		TxID:   testHash(0x05),
		Inputs: []TxInput{{ParentTxID: parent.TxHash, ParentVout: parent.Vout}},
		Outputs: []TxOutput{
			{Value: 500, PkScript: p2pkhScript(0x21)},
			{Value: 500, PkScript: p2pkhScript(0x22)},
			{Value: 0, PkScript: runestoneScript(payload)},
		},
	}
	if err := idx.IndexTransaction(context.Background(), TxInfo{Block: 840001, TxN: 2, TxID: tx.TxID, Tx: tx}); err != nil {
		t.Fatalf("index: %v", err)
	}
	if err := idx.CommitState(context.Background()); err != nil {
		t.Fatalf("commit: %v", err)
	}

	utxos, _ := store.GetRuneUtxosAtOutPoint(context.Background(), OutPoint{TxHash: tx.TxID, Vout: 1})
	if len(utxos) != 1 || utxos[0].Amount.Cmp(NewAmount(77)) != 0 {
		t.Fatalf("pointer output = %+v, want 77", utxos)
	}
	none, _ := store.GetRuneUtxosAtOutPoint(context.Background(), OutPoint{TxHash: tx.TxID, Vout: 0})
	if len(none) != 0 {
		t.Fatalf("vout 0 should be empty, got %+v", none)
	}
}

func TestPointerBeyondOutputsBurnsAsCenotaph(t *testing.T) {
	store := newFakeStore()
	idx := newTestRunesIndexer(store, &fakeCommitmentResolver{})

	r := seedRune(store, etchName, RuneID{Block: 840000, Tx: 1}, 55)
	parent := OutPoint{TxHash: testHash(0x10), Vout: 0}
	seedRuneUtxo(store, r, parent, 55, "addr1")

	// Pointer 5 over a 2-output transaction decodes as a cenotaph; the
	// carried balance must burn rather than crash the indexer.
	payload := encodeIntegers(tagPointer, 5)
	tx := &DecodedTx{
		TxID:   testHash(0x0c),
		Inputs: []TxInput{{ParentTxID: parent.TxHash, ParentVout: parent.Vout}},
		Outputs: []TxOutput{
			{Value: 500, PkScript: p2pkhScript(0x21)},
			{Value: 0, PkScript: runestoneScript(payload)},
		},
	}
	if err := idx.IndexTransaction(context.Background(), TxInfo{Block: 840001, TxN: 2, TxID: tx.TxID, Tx: tx}); err != nil {
		t.Fatalf("index: %v", err)
	}
	if err := idx.CommitState(context.Background()); err != nil {
		t.Fatalf("commit: %v", err)
	}

	utxos, _ := store.GetRuneUtxosAtOutPoint(context.Background(), OutPoint{TxHash: tx.TxID, Vout: 0})
	if len(utxos) != 0 {
		t.Fatalf("cenotaph must not allocate, got %+v", utxos)
	}
	after, _ := store.rune(etchName)
	if after.Burned.Cmp(NewAmount(55)) != 0 || !after.InCirculation.IsZero() {
		t.Fatalf("burned = %s, in_circulation = %s, want 55/0", after.Burned, after.InCirculation)
	}
}

func TestTransferWithoutRunestoneRoutesToFirstOutput(t *testing.T) {
	store := newFakeStore()
	idx := newTestRunesIndexer(store, &fakeCommitmentResolver{})

	r := seedRune(store, etchName, RuneID{Block: 840000, Tx: 1}, 40)
	parent := OutPoint{TxHash: testHash(0x10), Vout: 0}
	seedRuneUtxo(store, r, parent, 40, "addr1")

	tx := &DecodedTx{
		TxID:    testHash(0x06),
		Inputs:  []TxInput{{ParentTxID: parent.TxHash, ParentVout: parent.Vout}},
		Outputs: []TxOutput{{Value: 900, PkScript: p2pkhScript(0x33)}},
	}
	if err := idx.IndexTransaction(context.Background(), TxInfo{Block: 840001, TxN: 2, TxID: tx.TxID, Tx: tx}); err != nil {
		t.Fatalf("index: %v", err)
	}
	if err := idx.CommitState(context.Background()); err != nil {
		t.Fatalf("commit: %v", err)
	}

	utxos, _ := store.GetRuneUtxosAtOutPoint(context.Background(), OutPoint{TxHash: tx.TxID, Vout: 0})
	if len(utxos) != 1 || utxos[0].Amount.Cmp(NewAmount(40)) != 0 {
		t.Fatalf("carried balance = %+v, want 40", utxos)
	}
}

func TestMintIncrementsCounters(t *testing.T) {
	store := newFakeStore()
	idx := newTestRunesIndexer(store, &fakeCommitmentResolver{})

	id := RuneID{Block: 840000, Tx: 1}
	amount := NewAmount(25)
	capVal := uint64(2)
	r := seedRune(store, etchName, id, 0)
	r.Terms = &MintTerms{Amount: &amount, Cap: &capVal}
	store.addRune(r)

	payload := encodeIntegers(tagMint, id.Block, tagMint, uint64(id.Tx))
	tx := &DecodedTx{
		TxID:    testHash(0x07),
		Inputs:  []TxInput{{ParentTxID: testHash(0x66), ParentVout: 0}},
		Outputs: []TxOutput{{Value: 500, PkScript: p2pkhScript(0x21)}, {Value: 0, PkScript: runestoneScript(payload)}},
	}
	if err := idx.IndexTransaction(context.Background(), TxInfo{Block: 840005, TxN: 2, TxID: tx.TxID, Tx: tx}); err != nil {
		t.Fatalf("index: %v", err)
	}
	if err := idx.CommitState(context.Background()); err != nil {
		t.Fatalf("commit: %v", err)
	}

	after, _ := store.rune(etchName)
	if after.Mints != 1 {
		t.Fatalf("mints = %d, want 1", after.Mints)
	}
	if after.Minted.Cmp(NewAmount(25)) != 0 || after.InCirculation.Cmp(NewAmount(25)) != 0 {
		t.Fatalf("minted = %s, in_circulation = %s, want 25/25", after.Minted, after.InCirculation)
	}
	utxos, _ := store.GetRuneUtxosAtOutPoint(context.Background(), OutPoint{TxHash: tx.TxID, Vout: 0})
	if len(utxos) != 1 || utxos[0].Amount.Cmp(NewAmount(25)) != 0 {
		t.Fatalf("minted balance = %+v, want 25", utxos)
	}
}

func TestMintRejectedForUnknownRune(t *testing.T) {
	store := newFakeStore()
	idx := newTestRunesIndexer(store, &fakeCommitmentResolver{})

	payload := encodeIntegers(tagMint, 840000, tagMint, 9)
	tx := &DecodedTx{
		TxID:    testHash(0x08),
		Inputs:  []TxInput{{ParentTxID: testHash(0x66), ParentVout: 0}},
		Outputs: []TxOutput{{Value: 500, PkScript: p2pkhScript(0x21)}, {Value: 0, PkScript: runestoneScript(payload)}},
	}
	if err := idx.IndexTransaction(context.Background(), TxInfo{Block: 840005, TxN: 2, TxID: tx.TxID, Tx: tx}); err != nil {
		t.Fatalf("index: %v", err)
	}
	if idx.state.stats.invalidMints != 1 {
		t.Fatalf("invalid mints = %d, want 1", idx.state.stats.invalidMints)
	}
}

func TestRunesIndexerSkipsPreActivationAndCoinbase(t *testing.T) {
	store := newFakeStore()
	idx := newTestRunesIndexer(store, &fakeCommitmentResolver{})

	early := &DecodedTx{TxID: testHash(0x09), Outputs: []TxOutput{{Value: 1, PkScript: p2pkhScript(0x21)}}}
	if err := idx.IndexTransaction(context.Background(), TxInfo{Block: 500000, TxN: 0, TxID: early.TxID, Tx: early}); err != nil {
		t.Fatalf("pre-activation tx: %v", err)
	}
	coinbase := &DecodedTx{TxID: testHash(0x0a), Coinbase: true, Outputs: []TxOutput{{Value: 1, PkScript: p2pkhScript(0x21)}}}
	if err := idx.IndexTransaction(context.Background(), TxInfo{Block: 840001, TxN: 0, TxID: coinbase.TxID, Tx: coinbase}); err != nil {
		t.Fatalf("coinbase tx: %v", err)
	}
	if len(idx.state.newRuneUtxos) != 0 {
		t.Fatalf("nothing should be staged, got %+v", idx.state.newRuneUtxos)
	}
}

// Conservation per transaction: inputs + mint + premine == outputs + burned.
func TestRuneConservationAcrossTransfer(t *testing.T) {
	store := newFakeStore()
	idx := newTestRunesIndexer(store, &fakeCommitmentResolver{})

	id := RuneID{Block: 840000, Tx: 1}
	r := seedRune(store, etchName, id, 1000)
	parent := OutPoint{TxHash: testHash(0x10), Vout: 0}
	seedRuneUtxo(store, r, parent, 1000, "addr1")

	// Edict sends 600 to output 1; the rest follows the pointer default to
	// output 0.
	payload := encodeIntegers(tagBody, id.Block, uint64(id.Tx), 600, 1)
	tx := &DecodedTx{
		TxID:   testHash(0x0b),
		Inputs: []TxInput{{ParentTxID: parent.TxHash, ParentVout: parent.Vout}},
		Outputs: []TxOutput{
			{Value: 500, PkScript: p2pkhScript(0x21)},
			{Value: 500, PkScript: p2pkhScript(0x22)},
			{Value: 0, PkScript: runestoneScript(payload)},
		},
	}
	if err := idx.IndexTransaction(context.Background(), TxInfo{Block: 840002, TxN: 3, TxID: tx.TxID, Tx: tx}); err != nil {
		t.Fatalf("index: %v", err)
	}
	if err := idx.CommitState(context.Background()); err != nil {
		t.Fatalf("commit: %v", err)
	}

	total := ZeroAmount
	for vout := uint32(0); vout < 3; vout++ {
		utxos, _ := store.GetRuneUtxosAtOutPoint(context.Background(), OutPoint{TxHash: tx.TxID, Vout: vout})
		for _, u := range utxos {
			total = total.Add(u.Amount)
		}
	}
	after, _ := store.rune(etchName)
	if total.Add(after.Burned).Cmp(NewAmount(1000)) != 0 {
		t.Fatalf("outputs(%s) + burned(%s) != inputs(1000)", total, after.Burned)
	}
	if after.InCirculation.Cmp(after.Minted.Sub(after.Burned)) != 0 {
		t.Fatalf("in_circulation(%s) != minted(%s) - burned(%s)", after.InCirculation, after.Minted, after.Burned)
	}
}

func TestMintChecker(t *testing.T) {
	amount := NewAmount(10)
	capTwo := uint64(2)
	start := uint64(840010)
	end := uint64(840020)
	offStart := uint64(5)
	offEnd := uint64(15)

	cases := []struct {
		name    string
		checker MintChecker
		height  uint64
		wantOK  bool
	}{
		{"no terms", MintChecker{Block: 840000}, 840005, false},
		{"inside window", MintChecker{Block: 840000, Terms: &MintTerms{Amount: &amount, Cap: &capTwo, HeightStart: &start, HeightEnd: &end}}, 840015, true},
		{"before start", MintChecker{Block: 840000, Terms: &MintTerms{Amount: &amount, Cap: &capTwo, HeightStart: &start}}, 840009, false},
		{"at end", MintChecker{Block: 840000, Terms: &MintTerms{Amount: &amount, Cap: &capTwo, HeightEnd: &end}}, 840020, false},
		{"cap reached", MintChecker{Block: 840000, Mints: 2, Terms: &MintTerms{Amount: &amount, Cap: &capTwo}}, 840015, false},
		{"offset start not reached", MintChecker{Block: 840000, Terms: &MintTerms{Amount: &amount, Cap: &capTwo, OffsetStart: &offStart}}, 840004, false},
		{"offset window open", MintChecker{Block: 840000, Terms: &MintTerms{Amount: &amount, Cap: &capTwo, OffsetStart: &offStart, OffsetEnd: &offEnd}}, 840010, true},
		{"offset end passed", MintChecker{Block: 840000, Terms: &MintTerms{Amount: &amount, Cap: &capTwo, OffsetEnd: &offEnd}}, 840015, false},
		{"later of relative and absolute start wins", MintChecker{Block: 840000, Terms: &MintTerms{Amount: &amount, Cap: &capTwo, HeightStart: &start, OffsetStart: &offStart}}, 840007, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, err := c.checker.Mintable(c.height)
			if c.wantOK {
				if err != nil {
					t.Fatalf("expected mintable, got %v", err)
				}
				if got.Cmp(amount) != 0 {
					t.Fatalf("amount = %s, want %s", got, amount)
				}
			} else if err == nil {
				t.Fatalf("expected unmintable")
			}
		})
	}
}

func TestMinimumRuneNameLength(t *testing.T) {
	if got := minimumRuneNameLength("mainnet", 840000); got != 13 {
		t.Fatalf("at activation = %d, want 13", got)
	}
	if got := minimumRuneNameLength("mainnet", 840000+runeNameShrinkInterval); got != 12 {
		t.Fatalf("one interval in = %d, want 12", got)
	}
	if got := minimumRuneNameLength("mainnet", 840000+13*runeNameShrinkInterval); got != 0 {
		t.Fatalf("after all steps = %d, want 0", got)
	}
}
