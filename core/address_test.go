package core

import (
	"strings"
	"testing"

	"github.com/btcsuite/btcd/chaincfg"
)

func TestResolveAddressP2PKH(t *testing.T) {
	resolved := ResolveAddress(p2pkhScript(0x01), &chaincfg.MainNetParams)
	if resolved.Type != AddressTypeP2PKH {
		t.Fatalf("type = %s, want %s", resolved.Type, AddressTypeP2PKH)
	}
	if strings.HasPrefix(resolved.Address, "nsa_") {
		t.Fatalf("standard script resolved to synthetic id %s", resolved.Address)
	}
	if !ValidateAddress(resolved.Address, &chaincfg.MainNetParams) {
		t.Fatalf("resolved address %s does not validate", resolved.Address)
	}
}

func TestResolveAddressOpReturn(t *testing.T) {
	script := []byte{0x6a, 0x04, 0xde, 0xad, 0xbe, 0xef}
	resolved := ResolveAddress(script, &chaincfg.MainNetParams)
	if resolved.Type != AddressTypeOpReturn {
		t.Fatalf("type = %s, want %s", resolved.Type, AddressTypeOpReturn)
	}
	if !strings.HasPrefix(resolved.Address, "nsa_") {
		t.Fatalf("op_return should synthesize an nsa_ id, got %s", resolved.Address)
	}
}

func TestResolveAddressNonStandard(t *testing.T) {
	script := []byte{0x51, 0x51, 0x93} // OP_1 OP_1 OP_ADD
	resolved := ResolveAddress(script, &chaincfg.MainNetParams)
	if resolved.Type != AddressTypeNonStandard {
		t.Fatalf("type = %s, want %s", resolved.Type, AddressTypeNonStandard)
	}
	if !strings.HasPrefix(resolved.Address, "nsa_") {
		t.Fatalf("non-standard script should synthesize an nsa_ id, got %s", resolved.Address)
	}
	// The synthetic id is stable and validates as a query key.
	again := ResolveAddress(script, &chaincfg.MainNetParams)
	if again.Address != resolved.Address {
		t.Fatalf("synthetic id not deterministic: %s vs %s", again.Address, resolved.Address)
	}
	if !ValidateAddress(resolved.Address, &chaincfg.MainNetParams) {
		t.Fatalf("synthetic id %s does not validate", resolved.Address)
	}
}

func TestResolveAddressDistinctScriptsDistinctIDs(t *testing.T) {
	a := ResolveAddress([]byte{0x6a, 0x01, 0x01}, &chaincfg.MainNetParams)
	b := ResolveAddress([]byte{0x6a, 0x01, 0x02}, &chaincfg.MainNetParams)
	if a.Address == b.Address {
		t.Fatalf("different scripts share synthetic id %s", a.Address)
	}
}

func TestValidateAddressRejectsGarbage(t *testing.T) {
	cases := []string{
		"",
		"not-an-address",
		"nsa_zz",  // not hex
		"nsa_abc", // wrong length
	}
	for _, addr := range cases {
		if ValidateAddress(addr, &chaincfg.MainNetParams) {
			t.Fatalf("ValidateAddress(%q) = true, want false", addr)
		}
	}
}
