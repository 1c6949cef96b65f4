package core

import (
	"context"
	"crypto/sha256"
	"fmt"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/sirupsen/logrus"
)

// RunesIndexName is the fixed indexer identifier used as the checkpoint key.
const RunesIndexName = "runes_utxo_index"

// CommitmentResolver answers the two questions validate_commitment needs
// about a candidate commitment transaction: whether the spent output was a
// taproot output, and the height it was mined at.
type CommitmentResolver interface {
	ResolveCommitment(ctx context.Context, txid Hash, vout uint32) (isTaproot bool, minedHeight int64, found bool, err error)
}

// runeTxsStats accumulates per-block counters, logged and reset on every
// commit (spec's SUPPLEMENTED FEATURES).
type runeTxsStats struct {
	etches        uint64
	invalidEtches uint64
	edicts        uint64
	mints         uint64
	invalidMints  uint64
	burnedTxs     uint64
}

type runesIndexerState struct {
	newRuneUtxos []RuneUtxo
	runeByName   map[string]*Rune
	runeByID     map[RuneID]*Rune
	utxosByOutPt map[OutPoint][]RuneUtxo
	stats        runeTxsStats
}

func newRunesIndexerState() *runesIndexerState {
	return &runesIndexerState{
		runeByName:   make(map[string]*Rune),
		runeByID:     make(map[RuneID]*Rune),
		utxosByOutPt: make(map[OutPoint][]RuneUtxo),
	}
}

func (s *runesIndexerState) reset() {
	s.newRuneUtxos = nil
	s.runeByName = make(map[string]*Rune)
	s.runeByID = make(map[RuneID]*Rune)
	s.utxosByOutPt = make(map[OutPoint][]RuneUtxo)
	s.stats = runeTxsStats{}
}

// RunesIndexer implements the runes protocol state machine:
// etching validation, mint-term checking, edict distribution, and cenotaph
// burns.
type RunesIndexer struct {
	network    string
	params     *chaincfg.Params
	store      Store
	commitment CommitmentResolver
	logger     *logrus.Logger

	state *runesIndexerState
}

// NewRunesIndexer builds a RunesIndexer for the given network.
func NewRunesIndexer(network string, store Store, commitment CommitmentResolver, lg *logrus.Logger) *RunesIndexer {
	if lg == nil {
		lg = logrus.StandardLogger()
	}
	return &RunesIndexer{
		network:    network,
		params:     NetworkParams(network),
		store:      store,
		commitment: commitment,
		logger:     lg,
		state:      newRunesIndexerState(),
	}
}

// Name implements TxIndexer.
func (idx *RunesIndexer) Name() string { return RunesIndexName }

// IndexTransaction implements TxIndexer.
func (idx *RunesIndexer) IndexTransaction(ctx context.Context, info TxInfo) error {
	if info.Block < firstRuneHeight(idx.network) {
		return nil
	}
	if info.Tx.Coinbase {
		return nil
	}
	return idx.indexTransaction(ctx, info)
}

// CommitState implements TxIndexer.
func (idx *RunesIndexer) CommitState(ctx context.Context) error {
	idx.logger.WithFields(logrus.Fields{
		"etches":         idx.state.stats.etches,
		"invalid_etches": idx.state.stats.invalidEtches,
		"edicts":         idx.state.stats.edicts,
		"mints":          idx.state.stats.mints,
		"invalid_mints":  idx.state.stats.invalidMints,
		"burned_txs":     idx.state.stats.burnedTxs,
	}).Info("block stats")

	var upserts []Rune
	for _, r := range idx.state.runeByName {
		upserts = append(upserts, *r)
	}

	batch := BlockBatch{
		RuneUpserts: upserts,
		RuneUtxos:   idx.state.newRuneUtxos,
	}
	if err := idx.store.CommitBlock(ctx, batch); err != nil {
		return err
	}
	idx.state.reset()
	return nil
}

// ResetState implements TxIndexer.
func (idx *RunesIndexer) ResetState() { idx.state.reset() }

func (idx *RunesIndexer) getRuneByName(ctx context.Context, name string) (*Rune, bool, error) {
	if r, ok := idx.state.runeByName[name]; ok {
		return r, true, nil
	}
	r, found, err := idx.store.GetRuneByName(ctx, name)
	if err != nil || !found {
		return nil, false, err
	}
	idx.state.runeByName[name] = r
	idx.state.runeByID[r.RuneIDValue()] = r
	return r, true, nil
}

func (idx *RunesIndexer) getRuneByID(ctx context.Context, id RuneID) (*Rune, bool, error) {
	if r, ok := idx.state.runeByID[id]; ok {
		return r, true, nil
	}
	r, found, err := idx.store.GetRuneByID(ctx, id)
	if err != nil || !found {
		return nil, false, err
	}
	idx.state.runeByID[id] = r
	idx.state.runeByName[r.Name] = r
	return r, true, nil
}

func (idx *RunesIndexer) getParentUtxos(ctx context.Context, out OutPoint) ([]RuneUtxo, error) {
	if utxos, ok := idx.state.utxosByOutPt[out]; ok {
		return utxos, nil
	}
	return idx.store.GetRuneUtxosAtOutPoint(ctx, out)
}

func isOpReturnScript(pkScript []byte) bool {
	return txscript.GetScriptClass(pkScript) == txscript.NullDataTy
}

// indexTransaction is the per-transaction state machine.
func (idx *RunesIndexer) indexTransaction(ctx context.Context, info TxInfo) error {
	outputScripts := make([][]byte, len(info.Tx.Outputs))
	for i, o := range info.Tx.Outputs {
		outputScripts[i] = o.PkScript
	}
	artifact := DecipherRunestone(outputScripts)

	unallocated, err := idx.unallocated(ctx, info.Tx)
	if err != nil {
		return err
	}
	allocated := make([]map[RuneID]Amount, len(info.Tx.Outputs))
	for i := range allocated {
		allocated[i] = make(map[RuneID]Amount)
	}

	var etchedID *RuneID

	if artifact != nil {
		if artifact.Mint != nil {
			if amount, ok, err := idx.mint(ctx, *artifact.Mint, info); err != nil {
				return err
			} else if ok {
				idx.state.stats.mints++
				unallocated[*artifact.Mint] = unallocated[*artifact.Mint].Add(amount)
			}
		}

		if artifact.Etching != nil {
			id, premine, etchErr := idx.etch(ctx, info, artifact)
			if etchErr != nil {
				return etchErr
			}
			if id != nil {
				etchedID = id
				if !artifact.Cenotaph {
					unallocated[*id] = unallocated[*id].Add(premine)
				}
			}
		}

		if !artifact.Cenotaph {
			for _, e := range artifact.Edicts {
				idx.state.stats.edicts++

				id := e.ID
				if id == (RuneID{}) {
					if etchedID == nil {
						continue
					}
					id = *etchedID
				}

				balance, ok := unallocated[id]
				if !ok {
					continue
				}

				allocate := func(amount Amount, output int) {
					if !amount.IsZero() {
						balance = balance.Sub(amount)
						allocated[output][id] = allocated[output][id].Add(amount)
					}
				}

				if int(e.Output) == len(info.Tx.Outputs) {
					var destinations []int
					for i, out := range info.Tx.Outputs {
						if !isOpReturnScript(out.PkScript) {
							destinations = append(destinations, i)
						}
					}
					if len(destinations) > 0 {
						if e.Amount.IsZero() {
							share, remainder := balance.DivMod(int64(len(destinations)))
							for i, output := range destinations {
								amt := share
								if int64(i) < remainder {
									amt = amt.Add(NewAmount(1))
								}
								allocate(amt, output)
							}
						} else {
							for _, output := range destinations {
								allocate(Min(e.Amount, balance), output)
							}
						}
					}
				} else {
					amount := e.Amount
					if amount.IsZero() {
						amount = balance
					} else {
						amount = Min(amount, balance)
					}
					allocate(amount, int(e.Output))
				}

				unallocated[id] = balance
			}
		}
	}

	burned := make(map[RuneID]Amount)

	if artifact != nil && artifact.Cenotaph {
		idx.logger.WithField("tx", info.TxID).Debug("cenotaph was made")
		for id, bal := range unallocated {
			burned[id] = burned[id].Add(bal)
		}
	} else {
		var pointer *int
		if artifact != nil && artifact.Pointer != nil {
			p := int(*artifact.Pointer)
			pointer = &p
		}
		vout := -1
		if pointer != nil {
			vout = *pointer
		} else {
			for i, out := range info.Tx.Outputs {
				if !isOpReturnScript(out.PkScript) {
					vout = i
					break
				}
			}
		}

		if vout >= 0 {
			for id, bal := range unallocated {
				if !bal.IsZero() {
					allocated[vout][id] = allocated[vout][id].Add(bal)
				}
			}
		} else {
			for id, bal := range unallocated {
				if !bal.IsZero() {
					burned[id] = burned[id].Add(bal)
				}
			}
		}
	}

	for vout, balances := range allocated {
		if len(balances) == 0 {
			continue
		}
		if isOpReturnScript(info.Tx.Outputs[vout].PkScript) {
			for id, amt := range balances {
				burned[id] = burned[id].Add(amt)
			}
			continue
		}

		resolved := ResolveAddress(info.Tx.Outputs[vout].PkScript, idx.params)
		for id, amt := range balances {
			rune, found, err := idx.getRuneByID(ctx, id)
			if err != nil {
				return err
			}
			if !found {
				continue
			}
			utxo := RuneUtxo{
				Block:     info.Block,
				TxID:      info.TxN,
				TxHash:    info.TxID,
				Vout:      int32(vout),
				Rune:      rune.Name,
				RuneID:    id.String(),
				Address:   resolved.Address,
				Amount:    amt,
				BTCAmount: info.Tx.Outputs[vout].Value,
			}
			idx.state.newRuneUtxos = append(idx.state.newRuneUtxos, utxo)
			out := utxo.OutPoint()
			idx.state.utxosByOutPt[out] = append(idx.state.utxosByOutPt[out], utxo)
		}
	}

	if len(burned) > 0 {
		idx.state.stats.burnedTxs++
	}
	for id, amt := range burned {
		rune, found, err := idx.getRuneByID(ctx, id)
		if err != nil {
			return err
		}
		if !found {
			continue
		}
		rune.Burn(amt)
	}

	return nil
}

// unallocated sums rune balances carried by this transaction's inputs,
// keyed by rune id.
func (idx *RunesIndexer) unallocated(ctx context.Context, tx *DecodedTx) (map[RuneID]Amount, error) {
	unallocated := make(map[RuneID]Amount)
	for _, in := range tx.Inputs {
		utxos, err := idx.getParentUtxos(ctx, OutPoint{TxHash: in.ParentTxID, Vout: in.ParentVout})
		if err != nil {
			return nil, err
		}
		for _, u := range utxos {
			rune, found, err := idx.getRuneByName(ctx, u.Rune)
			if err != nil {
				return nil, err
			}
			if !found {
				return nil, fmt.Errorf("get rune(%s) for input of tx(%s)", u.Rune, tx.TxID)
			}
			id := rune.RuneIDValue()
			unallocated[id] = unallocated[id].Add(u.Amount)
		}
	}
	return unallocated, nil
}

// etch validates and stages a new rune etching, returning its RuneID and
// premine amount.
func (idx *RunesIndexer) etch(ctx context.Context, info TxInfo, artifact *Runestone) (*RuneID, Amount, error) {
	etching := artifact.Etching

	var name string
	var commitmentTx Hash

	if etching.Rune != nil {
		name = *etching.Rune

		if isReservedRuneName(name) || len(name) < minimumRuneNameLength(idx.network, info.Block) {
			idx.logger.WithFields(logrus.Fields{"rune": name, "tx": info.TxID}).Warn("invalid etching: name below minimum for height")
			idx.state.stats.invalidEtches++
			return nil, ZeroAmount, nil
		}

		if _, found, err := idx.getRuneByName(ctx, name); err != nil {
			return nil, ZeroAmount, err
		} else if found {
			idx.logger.WithFields(logrus.Fields{"rune": name, "tx": info.TxID}).Warn("rune with such name already exists, invalid etching")
			idx.state.stats.invalidEtches++
			return nil, ZeroAmount, nil
		}

		tx, ok := idx.validateCommitment(ctx, info, name)
		if !ok {
			idx.logger.WithField("tx", info.TxID).Warn("invalid etching: invalid commitment")
			idx.state.stats.invalidEtches++
			return nil, ZeroAmount, nil
		}
		commitmentTx = tx
	} else {
		name = reservedRuneName(info.Block, info.TxN)
	}

	idx.state.stats.etches++

	id := RuneID{Block: uint64(info.Block), Tx: uint32(info.TxN)}

	rune := &Rune{
		Block:        info.Block,
		TxID:         info.TxN,
		RuneIDStr:    id.String(),
		Name:         name,
		DisplayName:  spacedRune(name, etching.Spacers),
		Symbol:       string(etching.Symbol),
		BlockTime:    info.Timestamp,
		EtchingTx:    info.TxID,
		CommitmentTx: commitmentTx,
		Cenotaph:     artifact.Cenotaph,
	}

	if artifact.Cenotaph {
		rune.Symbol = "¤"
	} else {
		rune.Divisibility = int32(etching.Divisibility)
		rune.Turbo = etching.Turbo
		rune.Premine = etching.Premine
		rune.Minted = etching.Premine
		rune.InCirculation = etching.Premine
		rune.Terms = etching.Terms
		if etching.Terms != nil && etching.Terms.Cap != nil && etching.Terms.Amount != nil {
			rune.MaxSupply = etching.Premine.Add(etching.Terms.Amount.Mul(int64(*etching.Terms.Cap)))
		} else {
			rune.MaxSupply = etching.Premine
		}
	}

	idx.state.runeByName[name] = rune
	idx.state.runeByID[id] = rune

	return &id, rune.Premine, nil
}

// mint applies a mint instruction, returning the minted amount if the term
// check passes.
func (idx *RunesIndexer) mint(ctx context.Context, id RuneID, info TxInfo) (Amount, bool, error) {
	rune, found, err := idx.getRuneByID(ctx, id)
	if err != nil {
		return ZeroAmount, false, err
	}
	if !found {
		idx.logger.WithField("tx", info.TxID).Warn("invalid mint: can't get rune by id")
		idx.state.stats.invalidMints++
		return ZeroAmount, false, nil
	}

	checker := MintChecker{
		Block:   uint64(rune.Block),
		Mints:   int64(rune.Mints),
		Premine: rune.Premine,
		Terms:   rune.Terms,
	}

	amount, err := checker.Mintable(uint64(info.Block))
	if err != nil {
		idx.logger.WithFields(logrus.Fields{"rune": rune.Name, "tx": info.TxID}).Debug("invalid mint: ", err)
		idx.state.stats.invalidMints++
		return ZeroAmount, false, nil
	}

	rune.AddMint(amount)
	return amount, true, nil
}

// validateCommitment checks that one of the transaction's inputs reveals a
// tapscript whose first push matches the rune's commitment, spent from a
// taproot output mined at least MinimumCommitConfirmations ago (spec
// §4.2's commit/reveal rule).
func (idx *RunesIndexer) validateCommitment(ctx context.Context, info TxInfo, name string) (Hash, bool) {
	commitment := runeCommitment(name)

	for _, in := range info.Tx.Inputs {
		for _, push := range extractTapscriptPushes(in.Witness) {
			if !bytesEqual(push, commitment) {
				continue
			}

			isTaproot, minedHeight, found, err := idx.commitment.ResolveCommitment(ctx, in.ParentTxID, in.ParentVout)
			if err != nil || !found || !isTaproot {
				continue
			}

			confirmations := info.Block - minedHeight + 1
			if confirmations >= MinimumCommitConfirmations {
				return in.ParentTxID, true
			}
		}
	}

	return Hash{}, false
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// runeCommitment is the little-endian byte encoding of the rune's numeric
// value, the payload a commit transaction's tapscript must push verbatim.
func runeCommitment(name string) []byte {
	n := runeNameToNumber(name)
	var b []byte
	for n > 0 {
		b = append(b, byte(n&0xff))
		n >>= 8
	}
	return b
}

// MintChecker evaluates whether a rune is currently mintable at a given
// height.
type MintChecker struct {
	Block   uint64
	Mints   int64
	Premine Amount
	Terms   *MintTerms
}

// MintError enumerates why a mint attempt was rejected.
type MintError struct{ reason string }

func (e *MintError) Error() string { return e.reason }

// Mintable returns the per-mint amount if height falls within the rune's
// mint window and its cap has not been reached.
func (m MintChecker) Mintable(height uint64) (Amount, error) {
	if m.Terms == nil {
		return ZeroAmount, &MintError{"unmintable"}
	}

	if start, ok := m.start(); ok && height < start {
		return ZeroAmount, &MintError{"mint window not started"}
	}
	if end, ok := m.end(); ok && height >= end {
		return ZeroAmount, &MintError{"mint window ended"}
	}

	var cap uint64
	if m.Terms.Cap != nil {
		cap = *m.Terms.Cap
	}
	if uint64(m.Mints) >= cap {
		return ZeroAmount, &MintError{"mint cap reached"}
	}

	if m.Terms.Amount != nil {
		return *m.Terms.Amount, nil
	}
	return ZeroAmount, nil
}

func (m MintChecker) start() (uint64, bool) {
	t := m.Terms
	var relative, absolute *uint64
	if t.OffsetStart != nil {
		r := m.Block + *t.OffsetStart
		relative = &r
	}
	absolute = t.HeightStart

	switch {
	case relative != nil && absolute != nil:
		if *relative > *absolute {
			return *relative, true
		}
		return *absolute, true
	case relative != nil:
		return *relative, true
	case absolute != nil:
		return *absolute, true
	default:
		return 0, false
	}
}

func (m MintChecker) end() (uint64, bool) {
	t := m.Terms
	var relative, absolute *uint64
	if t.OffsetEnd != nil {
		r := m.Block + *t.OffsetEnd
		relative = &r
	}
	absolute = t.HeightEnd

	switch {
	case relative != nil && absolute != nil:
		if *relative < *absolute {
			return *relative, true
		}
		return *absolute, true
	case relative != nil:
		return *relative, true
	case absolute != nil:
		return *absolute, true
	default:
		return 0, false
	}
}

// extractTapscriptPushes extracts every data push from the last witness
// item that looks like a tapscript (annex/control-block aware parsing is a
// non-goal here; the common single-leaf-script case is handled, matching
// the fields the commitment check actually needs).
func extractTapscriptPushes(witness [][]byte) [][]byte {
	if len(witness) < 2 {
		return nil
	}
	script := witness[len(witness)-2]

	var pushes [][]byte
	tokenizer := txscript.MakeScriptTokenizer(0, script)
	for tokenizer.Next() {
		if d := tokenizer.Data(); d != nil {
			pushes = append(pushes, d)
		}
	}
	return pushes
}

// runeNameShrinkInterval is how many blocks pass between each one-character
// reduction of the minimum etchable rune name length: a twelfth of a subsidy
// halving interval.
const runeNameShrinkInterval = 210_000 / 12

// minimumRuneNameLength is the shortest rune name an etching at the given
// height may use on the given network. Because the base-26 encoding used by
// runeNameToNumber/decodeRuneName is strictly length-ordered (every name of
// length L outranks every name shorter than L), comparing lengths is
// equivalent to comparing the underlying numeric rune values, so no name
// shorter than the returned length is ever valid at this height. The
// allotted length starts at 13 and drops by one every runeNameShrinkInterval
// blocks after the network's runes activation height, reaching 0 (no
// restriction) after thirteen such steps.
func minimumRuneNameLength(network string, height int64) int {
	first := firstRuneHeight(network)
	if height < first {
		height = first
	}
	offset := height - first + 1
	length := 13 - int(offset/runeNameShrinkInterval)
	if length < 0 {
		return 0
	}
	return length
}

// isReservedRuneName reports whether name collides with the namespace this
// indexer generates internally for etchings without a name (reservedRuneName
// below); real etched names are pure uppercase A-Z and can never match it.
func isReservedRuneName(name string) bool {
	return len(name) > 9 && name[:9] == "RESERVED_"
}

// reservedRuneName derives the deterministic fallback name for an
// etching with no rune field, from (block, tx_index).
func reservedRuneName(block int64, txN int32) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("reserved:%d:%d", block, txN)))
	return "RESERVED_" + fmt.Sprintf("%x", sum[:8])
}

func spacedRune(name string, spacers uint32) string {
	if spacers == 0 {
		return name
	}
	var out []byte
	for i, c := range []byte(name) {
		if i > 0 && spacers&(1<<uint(i-1)) != 0 {
			out = append(out, "•"...)
		}
		out = append(out, c)
	}
	return string(out)
}

// runeNameToNumber converts a base-26 rune name back to its numeric value,
// the inverse of decodeRuneName.
func runeNameToNumber(name string) uint64 {
	var n uint64
	for _, c := range []byte(name) {
		n = n*26 + uint64(c-'A') + 1
	}
	return n - 1
}
