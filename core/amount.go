package core

import (
	"database/sql/driver"
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// Amount holds a rune quantity. Rune supplies can exceed the range of a
// 64-bit integer (the protocol allows the full 128-bit range), so it is
// backed by an arbitrary-precision decimal rather than a machine integer.
// JSON encodes it as a decimal string to keep that precision on the wire.
type Amount struct {
	d decimal.Decimal
}

// ZeroAmount is the additive identity.
var ZeroAmount = Amount{d: decimal.Zero}

// NewAmount builds an Amount from a uint64 mint/edict value.
func NewAmount(v uint64) Amount {
	return Amount{d: decimal.NewFromBigInt(new(big.Int).SetUint64(v), 0)}
}

// ParseAmount parses a decimal string into an Amount.
func ParseAmount(s string) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}, fmt.Errorf("parse amount %q: %w", s, err)
	}
	return Amount{d: d}, nil
}

func (a Amount) String() string { return a.d.String() }

// Add returns a+b.
func (a Amount) Add(b Amount) Amount { return Amount{d: a.d.Add(b.d)} }

// Sub returns a-b.
func (a Amount) Sub(b Amount) Amount { return Amount{d: a.d.Sub(b.d)} }

// Mul returns a*n for a small integer multiplier (e.g. mints count).
func (a Amount) Mul(n int64) Amount { return Amount{d: a.d.Mul(decimal.NewFromInt(n))} }

// Cmp returns -1, 0, or 1 comparing a to b.
func (a Amount) Cmp(b Amount) int { return a.d.Cmp(b.d) }

// IsZero reports whether the amount is zero.
func (a Amount) IsZero() bool { return a.d.IsZero() }

// LessThan reports a < b.
func (a Amount) LessThan(b Amount) bool { return a.d.Cmp(b.d) < 0 }

// GreaterThanOrEqual reports a >= b.
func (a Amount) GreaterThanOrEqual(b Amount) bool { return a.d.Cmp(b.d) >= 0 }

// Min returns the smaller of a and b.
func Min(a, b Amount) Amount {
	if a.Cmp(b) <= 0 {
		return a
	}
	return b
}

// DivMod divides a by a positive integer divisor, returning the quotient and
// remainder as an integer, used for "edict amount=0, split evenly".
func (a Amount) DivMod(divisor int64) (quotient Amount, remainder int64) {
	if divisor <= 0 {
		return a, 0
	}
	q := a.d.Div(decimal.NewFromInt(divisor)).Truncate(0)
	r := a.d.Sub(q.Mul(decimal.NewFromInt(divisor)))
	return Amount{d: q}, r.IntPart()
}

// MarshalJSON renders the amount as a quoted decimal string.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(`"` + a.d.String() + `"`), nil
}

// UnmarshalJSON parses a quoted (or bare) decimal string/number.
func (a *Amount) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return fmt.Errorf("unmarshal amount %q: %w", data, err)
	}
	a.d = d
	return nil
}

// Value implements driver.Valuer, storing as a numeric-compatible string.
func (a Amount) Value() (driver.Value, error) {
	return a.d.String(), nil
}

// Scan implements sql.Scanner for NUMERIC columns.
func (a *Amount) Scan(src any) error {
	switch v := src.(type) {
	case string:
		d, err := decimal.NewFromString(v)
		if err != nil {
			return err
		}
		a.d = d
		return nil
	case []byte:
		d, err := decimal.NewFromString(string(v))
		if err != nil {
			return err
		}
		a.d = d
		return nil
	case float64:
		a.d = decimal.NewFromFloat(v)
		return nil
	case int64:
		a.d = decimal.NewFromInt(v)
		return nil
	default:
		return fmt.Errorf("amount scan: unsupported type %T", src)
	}
}
