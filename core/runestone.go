package core

import (
	"github.com/btcsuite/btcd/txscript"
)

// Runestone tag values, following the protocol's even/odd convention: even
// tags are required for a valid (non-cenotaph) runestone, odd tags are
// optional and safely ignored if unrecognized.
const (
	tagBody         = 0
	tagFlags        = 2
	tagRune         = 4
	tagPremine      = 6
	tagCap          = 8
	tagAmount       = 10
	tagHeightStart  = 12
	tagHeightEnd    = 14
	tagOffsetStart  = 16
	tagOffsetEnd    = 18
	tagMint         = 20
	tagPointer      = 22
	tagDivisibility = 1
	tagSpacers      = 3
	tagSymbol       = 5
	tagCenotaph     = 126
	tagNop          = 127
)

const (
	flagEtching = 1 << 0
	flagTerms   = 1 << 1
	flagTurbo   = 1 << 2
	flagMask    = flagEtching | flagTerms | flagTurbo
)

// MinimumCommitConfirmations is the number of confirmations a commitment
// tapscript must have before an etching referencing it is valid.
const MinimumCommitConfirmations = 6

// Edict is one transfer instruction inside a runestone.
// ID zero refers to the rune etched in the same transaction, if any.
type Edict struct {
	ID     RuneID
	Amount Amount
	Output uint32
}

// Etching describes the rune-creation fields of a runestone.
type Etching struct {
	Rune         *string // nil => reserved name derived from (block, tx_index)
	Divisibility uint8
	Premine      Amount
	Symbol       rune
	Spacers      uint32
	Turbo        bool
	Terms        *MintTerms
}

// Runestone is the decoded payload of an OP_RETURN output implementing the
// runes protocol. A malformed or protocol-forbidden payload
// decodes to Cenotaph=true instead, per the protocol's decipher rules.
type Runestone struct {
	Edicts   []Edict
	Etching  *Etching
	Mint     *RuneID
	Pointer  *uint32
	Cenotaph bool
}

// DecipherRunestone scans a transaction's output scripts for an OP_RETURN
// runestone payload and decodes it per the protocol's decipher rules.
// Returns nil if the transaction carries no runestone at all.
func DecipherRunestone(outputScripts [][]byte) *Runestone {
	payload, found := extractPayload(outputScripts)
	if !found {
		return nil
	}

	integers, ok := decodeIntegers(payload)
	if !ok {
		return &Runestone{Cenotaph: true}
	}

	fields := make(map[uint64][]uint64)
	var edictInts []uint64
	for i := 0; i < len(integers); i += 2 {
		tag := integers[i]
		if tag == tagBody {
			edictInts = integers[i+1:]
			break
		}
		if i+1 >= len(integers) {
			return &Runestone{Cenotaph: true} // tag with no value
		}
		fields[tag] = append(fields[tag], integers[i+1])
	}

	edicts, edictsOK := decodeEdicts(edictInts, len(outputScripts))

	rs := &Runestone{}

	if v, ok := takeOne(fields, tagPointer); ok {
		p := uint32(v)
		rs.Pointer = &p
	}

	// A mint RuneId is encoded as two consecutive tag=Mint values (block,
	// tx); reconstructed from the raw field slice to preserve order.
	if vals, ok := fields[tagMint]; ok && len(vals) >= 2 {
		rs.Mint = &RuneID{Block: vals[0], Tx: uint32(vals[1])}
	}

	flags, _ := takeOne(fields, tagFlags)
	unrecognizedEvenTag := hasUnrecognizedEvenTag(fields)

	if flags&flagEtching != 0 {
		etching := &Etching{}

		if vals, ok := fields[tagRune]; ok && len(vals) > 0 {
			name := decodeRuneName(vals[0])
			etching.Rune = &name
		}
		if v, ok := takeOne(fields, tagDivisibility); ok {
			etching.Divisibility = uint8(v)
		}
		if v, ok := takeOne(fields, tagPremine); ok {
			etching.Premine = NewAmount(v)
		}
		if v, ok := takeOne(fields, tagSymbol); ok {
			etching.Symbol = rune(v)
		} else {
			etching.Symbol = '¤'
		}
		if v, ok := takeOne(fields, tagSpacers); ok {
			etching.Spacers = uint32(v)
		}
		etching.Turbo = flags&flagTurbo != 0

		if flags&flagTerms != 0 {
			terms := &MintTerms{}
			if v, ok := takeOne(fields, tagAmount); ok {
				a := NewAmount(v)
				terms.Amount = &a
			}
			if v, ok := takeOne(fields, tagCap); ok {
				terms.Cap = &v
			}
			if v, ok := takeOne(fields, tagHeightStart); ok {
				terms.HeightStart = &v
			}
			if v, ok := takeOne(fields, tagHeightEnd); ok {
				terms.HeightEnd = &v
			}
			if v, ok := takeOne(fields, tagOffsetStart); ok {
				terms.OffsetStart = &v
			}
			if v, ok := takeOne(fields, tagOffsetEnd); ok {
				terms.OffsetEnd = &v
			}
			etching.Terms = terms
		}

		rs.Etching = etching
	}

	_, isCenotaphTag := fields[tagCenotaph]
	pointerOutOfRange := rs.Pointer != nil && *rs.Pointer >= uint32(len(outputScripts))

	if !edictsOK || unrecognizedEvenTag || isCenotaphTag || pointerOutOfRange || flags&^uint64(flagMask) != 0 {
		return &Runestone{Cenotaph: true, Etching: rs.Etching}
	}

	rs.Edicts = edicts
	return rs
}

func takeOne(fields map[uint64][]uint64, tag uint64) (uint64, bool) {
	vals, ok := fields[tag]
	if !ok || len(vals) == 0 {
		return 0, false
	}
	return vals[0], true
}

func hasUnrecognizedEvenTag(fields map[uint64][]uint64) bool {
	known := map[uint64]bool{
		tagBody: true, tagFlags: true, tagRune: true, tagPremine: true,
		tagCap: true, tagAmount: true, tagHeightStart: true, tagHeightEnd: true,
		tagOffsetStart: true, tagOffsetEnd: true, tagMint: true, tagPointer: true,
		tagDivisibility: true, tagSpacers: true, tagSymbol: true, tagCenotaph: true,
		tagNop: true,
	}
	for tag := range fields {
		if tag%2 == 0 && !known[tag] {
			return true
		}
	}
	return false
}

// decodeEdicts consumes the flat (id_block_delta, id_tx_delta, amount,
// output) quadruples following the Body tag, accumulating the rune id via
// delta-encoding as the protocol specifies. An output index beyond the
// transaction's output count (the count itself is the "all outputs"
// sentinel) makes the whole runestone a cenotaph.
func decodeEdicts(ints []uint64, numOutputs int) ([]Edict, bool) {
	if len(ints)%4 != 0 {
		return nil, false
	}
	var edicts []Edict
	id := RuneID{}
	for i := 0; i+3 < len(ints); i += 4 {
		id.Block += ints[i]
		if ints[i] == 0 {
			id.Tx += uint32(ints[i+1])
		} else {
			id.Tx = uint32(ints[i+1])
		}
		if ints[i+3] > uint64(numOutputs) {
			return nil, false
		}
		edicts = append(edicts, Edict{
			ID:     id,
			Amount: NewAmount(ints[i+2]),
			Output: uint32(ints[i+3]),
		})
	}
	return edicts, true
}

// decodeRuneName turns the base-26 encoded integer back into the rune's
// upper-case letter name (A, B, ..., Z, AA, AB, ...).
func decodeRuneName(n uint64) string {
	if n == 0 {
		return "A"
	}
	var buf []byte
	n++
	for n > 0 {
		n--
		buf = append([]byte{byte('A' + n%26)}, buf...)
		n /= 26
	}
	return string(buf)
}

// extractPayload finds the first OP_RETURN output whose script begins with
// the runes protocol id (OP_13) and returns the concatenation of its data
// pushes.
func extractPayload(outputScripts [][]byte) ([]byte, bool) {
	for _, pkScript := range outputScripts {
		tokenizer := txscript.MakeScriptTokenizer(0, pkScript)
		if !tokenizer.Next() || tokenizer.Opcode() != txscript.OP_RETURN {
			continue
		}
		if !tokenizer.Next() || tokenizer.Opcode() != txscript.OP_13 {
			continue
		}
		var payload []byte
		for tokenizer.Next() {
			payload = append(payload, tokenizer.Data()...)
		}
		if tokenizer.Err() != nil {
			return nil, true // malformed trailing pushes still count as "has a runestone"
		}
		return payload, true
	}
	return nil, false
}

// decodeIntegers decodes a LEB128 varint stream, matching the protocol's
// integer encoding. Returns ok=false on overflow or truncation, signaling a
// cenotaph.
func decodeIntegers(payload []byte) ([]uint64, bool) {
	var out []uint64
	var value uint64
	var shift uint
	for _, b := range payload {
		if shift >= 64 {
			return nil, false
		}
		value |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			out = append(out, value)
			value = 0
			shift = 0
			continue
		}
		shift += 7
	}
	if shift != 0 {
		return nil, false // truncated varint at end of payload
	}
	return out, true
}
