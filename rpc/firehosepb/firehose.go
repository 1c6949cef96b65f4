// Package firehosepb holds the wire types for the streaming alternate block
// source described in firehose.proto. Rather than depend on the protoc
// toolchain (unavailable in this build), each message implements its own
// length-delimited protobuf encoding directly on top of
// google.golang.org/protobuf/encoding/protowire, the same low-level
// varint/tag primitives protoc-gen-go's generated Marshal would otherwise
// call into, so the wire format is standard protobuf even though the
// struct-to-descriptor plumbing is hand-written.
package firehosepb

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// Empty is the request type for GetBestHeight.
type Empty struct{}

// Marshal implements the Message interface (see codec.go).
func (m *Empty) Marshal() ([]byte, error) { return nil, nil }

// Unmarshal implements the Message interface.
func (m *Empty) Unmarshal(b []byte) error { return nil }

// BlockByHeightRequest requests a single block by its height.
type BlockByHeightRequest struct {
	Height int64
}

func (m *BlockByHeightRequest) Marshal() ([]byte, error) {
	var b []byte
	b = protowire.AppendTag(b, 1, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(m.Height))
	return b, nil
}

func (m *BlockByHeightRequest) Unmarshal(b []byte) error {
	return forEachField(b, func(num protowire.Number, typ protowire.Type, v []byte, n int64) error {
		if num == 1 {
			m.Height = n
		}
		return nil
	})
}

// BestHeightResponse carries the node/stream's current tip height.
type BestHeightResponse struct {
	Height int64
}

func (m *BestHeightResponse) Marshal() ([]byte, error) {
	var b []byte
	b = protowire.AppendTag(b, 1, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(m.Height))
	return b, nil
}

func (m *BestHeightResponse) Unmarshal(b []byte) error {
	return forEachField(b, func(num protowire.Number, typ protowire.Type, v []byte, n int64) error {
		if num == 1 {
			m.Height = n
		}
		return nil
	})
}

// TxOutput mirrors core.TxOutput on the wire.
type TxOutput struct {
	Value    int64
	PkScript []byte
}

// TxInput mirrors core.TxInput on the wire.
type TxInput struct {
	PrevTxID []byte
	PrevVout uint32
	Witness  [][]byte
}

// Transaction is a single transaction within a Block.
type Transaction struct {
	TxID     []byte
	Inputs   []TxInput
	Outputs  []TxOutput
	Locktime uint32
	Raw      []byte
}

// Block is the top-level message GetBlockByHeight returns.
type Block struct {
	Hash         []byte
	PrevHash     []byte
	MerkleRoot   []byte
	Time         int64
	Bits         uint32
	Nonce        uint32
	Version      uint32
	Transactions []Transaction
}

func (m *Block) Marshal() ([]byte, error) {
	var b []byte
	b = appendBytesField(b, 1, m.Hash)
	b = appendBytesField(b, 2, m.PrevHash)
	b = appendBytesField(b, 3, m.MerkleRoot)
	b = appendVarintField(b, 4, uint64(m.Time))
	b = appendVarintField(b, 5, uint64(m.Bits))
	b = appendVarintField(b, 6, uint64(m.Nonce))
	b = appendVarintField(b, 7, uint64(m.Version))
	for _, tx := range m.Transactions {
		txBytes, err := tx.Marshal()
		if err != nil {
			return nil, err
		}
		b = appendBytesField(b, 8, txBytes)
	}
	return b, nil
}

func (m *Block) Unmarshal(b []byte) error {
	return forEachField(b, func(num protowire.Number, typ protowire.Type, v []byte, n int64) error {
		switch num {
		case 1:
			m.Hash = v
		case 2:
			m.PrevHash = v
		case 3:
			m.MerkleRoot = v
		case 4:
			m.Time = n
		case 5:
			m.Bits = uint32(n)
		case 6:
			m.Nonce = uint32(n)
		case 7:
			m.Version = uint32(n)
		case 8:
			var tx Transaction
			if err := tx.Unmarshal(v); err != nil {
				return err
			}
			m.Transactions = append(m.Transactions, tx)
		}
		return nil
	})
}

func (m *Transaction) Marshal() ([]byte, error) {
	var b []byte
	b = appendBytesField(b, 1, m.TxID)
	for _, in := range m.Inputs {
		inBytes, err := in.Marshal()
		if err != nil {
			return nil, err
		}
		b = appendBytesField(b, 2, inBytes)
	}
	for _, out := range m.Outputs {
		outBytes, err := out.Marshal()
		if err != nil {
			return nil, err
		}
		b = appendBytesField(b, 3, outBytes)
	}
	b = appendVarintField(b, 4, uint64(m.Locktime))
	b = appendBytesField(b, 5, m.Raw)
	return b, nil
}

func (m *Transaction) Unmarshal(b []byte) error {
	return forEachField(b, func(num protowire.Number, typ protowire.Type, v []byte, n int64) error {
		switch num {
		case 1:
			m.TxID = v
		case 2:
			var in TxInput
			if err := in.Unmarshal(v); err != nil {
				return err
			}
			m.Inputs = append(m.Inputs, in)
		case 3:
			var out TxOutput
			if err := out.Unmarshal(v); err != nil {
				return err
			}
			m.Outputs = append(m.Outputs, out)
		case 4:
			m.Locktime = uint32(n)
		case 5:
			m.Raw = v
		}
		return nil
	})
}

func (m *TxInput) Marshal() ([]byte, error) {
	var b []byte
	b = appendBytesField(b, 1, m.PrevTxID)
	b = appendVarintField(b, 2, uint64(m.PrevVout))
	for _, w := range m.Witness {
		b = appendBytesField(b, 3, w)
	}
	return b, nil
}

func (m *TxInput) Unmarshal(b []byte) error {
	return forEachField(b, func(num protowire.Number, typ protowire.Type, v []byte, n int64) error {
		switch num {
		case 1:
			m.PrevTxID = v
		case 2:
			m.PrevVout = uint32(n)
		case 3:
			m.Witness = append(m.Witness, append([]byte(nil), v...))
		}
		return nil
	})
}

func (m *TxOutput) Marshal() ([]byte, error) {
	var b []byte
	b = appendVarintField(b, 1, uint64(m.Value))
	b = appendBytesField(b, 2, m.PkScript)
	return b, nil
}

func (m *TxOutput) Unmarshal(b []byte) error {
	return forEachField(b, func(num protowire.Number, typ protowire.Type, v []byte, n int64) error {
		switch num {
		case 1:
			m.Value = n
		case 2:
			m.PkScript = v
		}
		return nil
	})
}

func appendVarintField(b []byte, num protowire.Number, v uint64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendBytesField(b []byte, num protowire.Number, v []byte) []byte {
	if len(v) == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}

// forEachField walks a length-delimited protobuf message's top-level
// fields, handing each (number, type, raw-bytes-or-varint) tuple to fn.
func forEachField(b []byte, fn func(num protowire.Number, typ protowire.Type, v []byte, n int64) error) error {
	for len(b) > 0 {
		num, typ, tagLen := protowire.ConsumeTag(b)
		if tagLen < 0 {
			return fmt.Errorf("firehosepb: invalid tag: %w", protowire.ParseError(tagLen))
		}
		b = b[tagLen:]

		switch typ {
		case protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return fmt.Errorf("firehosepb: invalid varint: %w", protowire.ParseError(n))
			}
			if err := fn(num, typ, nil, int64(v)); err != nil {
				return err
			}
			b = b[n:]
		case protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return fmt.Errorf("firehosepb: invalid bytes: %w", protowire.ParseError(n))
			}
			if err := fn(num, typ, v, 0); err != nil {
				return err
			}
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return fmt.Errorf("firehosepb: invalid field: %w", protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	return nil
}
