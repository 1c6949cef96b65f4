package core

import "testing"

func TestHashParseAndString(t *testing.T) {
	want := "00000000000000000000123456789abcdef00000000000000000000123456789"
	h, err := ParseHash(want)
	if err != nil {
		t.Fatalf("ParseHash: %v", err)
	}
	if got := h.String(); got != want {
		t.Fatalf("String() roundtrip: got %s, want %s", got, want)
	}
}

func TestHashParseWrongLength(t *testing.T) {
	if _, err := ParseHash("abcd"); err == nil {
		t.Fatalf("expected error for short hash")
	}
}

func TestHashIsZero(t *testing.T) {
	var h Hash
	if !h.IsZero() {
		t.Fatalf("expected zero-value Hash to be IsZero")
	}
	h[0] = 1
	if h.IsZero() {
		t.Fatalf("expected non-zero Hash to not be IsZero")
	}
}

func TestHashJSON(t *testing.T) {
	want := "1111111111111111111111111111111111111111111111111111111111111111"[:64]
	h, err := ParseHash(want)
	if err != nil {
		t.Fatalf("ParseHash: %v", err)
	}
	data, err := h.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON: %v", err)
	}
	var h2 Hash
	if err := h2.UnmarshalJSON(data); err != nil {
		t.Fatalf("UnmarshalJSON: %v", err)
	}
	if h2 != h {
		t.Fatalf("roundtrip mismatch: got %s, want %s", h2, h)
	}
}

func TestHashValueScan(t *testing.T) {
	h, err := ParseHash("2222222222222222222222222222222222222222222222222222222222222222"[:64])
	if err != nil {
		t.Fatalf("ParseHash: %v", err)
	}
	v, err := h.Value()
	if err != nil {
		t.Fatalf("Value: %v", err)
	}
	raw, ok := v.([]byte)
	if !ok {
		t.Fatalf("Value did not return []byte")
	}

	var h2 Hash
	if err := h2.Scan(raw); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if h2 != h {
		t.Fatalf("Value/Scan roundtrip mismatch")
	}
}

func TestHashScanWrongType(t *testing.T) {
	var h Hash
	if err := h.Scan("not-bytes"); err == nil {
		t.Fatalf("expected error scanning non-[]byte")
	}
}
