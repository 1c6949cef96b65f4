package core

import (
	"database/sql/driver"
	"encoding/hex"
	"fmt"
)

// Hash is a 32-byte, reversed-hex-printed transaction or block hash,
// matching Bitcoin's little-endian wire order with big-endian display,
// the same convention chainhash.Hash uses.
type Hash [32]byte

// ZeroHash is the all-zero sentinel used for "no commitment" etchings.
var ZeroHash Hash

// ParseHash decodes a reversed-hex string (as printed by bitcoind) into a Hash.
func ParseHash(s string) (Hash, error) {
	var h Hash
	b, err := hex.DecodeString(s)
	if err != nil {
		return h, fmt.Errorf("parse hash %q: %w", s, err)
	}
	if len(b) != 32 {
		return h, fmt.Errorf("parse hash %q: want 32 bytes, got %d", s, len(b))
	}
	for i := 0; i < 32; i++ {
		h[i] = b[31-i]
	}
	return h, nil
}

// String renders the hash in the reversed-hex convention bitcoind uses.
func (h Hash) String() string {
	var rev [32]byte
	for i := 0; i < 32; i++ {
		rev[i] = h[31-i]
	}
	return hex.EncodeToString(rev[:])
}

// IsZero reports whether h is the all-zero sentinel.
func (h Hash) IsZero() bool {
	return h == ZeroHash
}

// MarshalJSON renders the hash the same way String does.
func (h Hash) MarshalJSON() ([]byte, error) {
	return []byte(`"` + h.String() + `"`), nil
}

// UnmarshalJSON parses a quoted reversed-hex string.
func (h *Hash) UnmarshalJSON(data []byte) error {
	if len(data) < 2 {
		return fmt.Errorf("invalid hash json: %q", data)
	}
	parsed, err := ParseHash(string(data[1 : len(data)-1]))
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}

// Value implements driver.Valuer so Hash can be written as raw bytes
// (matching the schema's Bytea columns, little-endian wire order).
func (h Hash) Value() (driver.Value, error) {
	return h[:], nil
}

// Scan implements sql.Scanner for raw byte columns.
func (h *Hash) Scan(src any) error {
	b, ok := src.([]byte)
	if !ok {
		return fmt.Errorf("hash scan: unsupported type %T", src)
	}
	if len(b) != 32 {
		return fmt.Errorf("hash scan: want 32 bytes, got %d", len(b))
	}
	copy(h[:], b)
	return nil
}

// Bytes returns the wire-order (little-endian) byte representation.
func (h Hash) Bytes() []byte {
	out := make([]byte, 32)
	copy(out, h[:])
	return out
}
