package core

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
)

// Address-type string constants, as written into the address table.
const (
	AddressTypeP2PKH       = "p2pkh"
	AddressTypeP2SH        = "p2sh"
	AddressTypeP2WPKH      = "p2wpkh"
	AddressTypeP2WSH       = "p2wsh"
	AddressTypeP2TR        = "p2tr"
	AddressTypeOpReturn    = "op_return"
	AddressTypeMultisig    = "multisig"
	AddressTypeNonStandard = "non_standard"
)

// ResolvedAddress is the (address_type, address) pair derived from an
// output's pkScript, as stored on the Address entity.
type ResolvedAddress struct {
	Type    string
	Address string
}

// ResolveAddress classifies a pkScript against the given network: a script
// that parses to a standard address wins outright; failures fall back to
// op_return / multisig / non_standard classification with a synthetic
// "nsa_<sha256(script)>" identifier so unparseable outputs still get a
// stable, unique address key.
func ResolveAddress(pkScript []byte, params *chaincfg.Params) ResolvedAddress {
	class := txscript.GetScriptClass(pkScript)

	if _, addrs, _, err := txscript.ExtractPkScriptAddrs(pkScript, params); err == nil && len(addrs) == 1 {
		return ResolvedAddress{
			Type:    scriptClassAddressType(class),
			Address: addrs[0].EncodeAddress(),
		}
	}

	return ResolvedAddress{
		Type:    fallbackAddressType(class, pkScript),
		Address: syntheticAddressID(pkScript),
	}
}

func scriptClassAddressType(class txscript.ScriptClass) string {
	switch class {
	case txscript.PubKeyHashTy:
		return AddressTypeP2PKH
	case txscript.ScriptHashTy:
		return AddressTypeP2SH
	case txscript.WitnessV0PubKeyHashTy:
		return AddressTypeP2WPKH
	case txscript.WitnessV0ScriptHashTy:
		return AddressTypeP2WSH
	case txscript.WitnessV1TaprootTy:
		return AddressTypeP2TR
	case txscript.MultiSigTy:
		return AddressTypeMultisig
	case txscript.NullDataTy:
		return AddressTypeOpReturn
	default:
		return AddressTypeNonStandard
	}
}

func fallbackAddressType(class txscript.ScriptClass, pkScript []byte) string {
	switch {
	case class == txscript.NullDataTy || txscript.GetScriptClass(pkScript) == txscript.NullDataTy:
		return AddressTypeOpReturn
	case class == txscript.MultiSigTy:
		return AddressTypeMultisig
	default:
		return AddressTypeNonStandard
	}
}

// ValidateAddress reports whether addr is a well-formed query key for the
// given network: either a standard address the network's rules accept, or
// one of this indexer's own synthetic "nsa_<sha256>" identifiers. Read-path handlers call this before touching the store
// so a typo'd address surfaces as 400 InvalidAddress rather than an empty
// result set.
func ValidateAddress(addr string, params *chaincfg.Params) bool {
	if strings.HasPrefix(addr, "nsa_") {
		b, err := hex.DecodeString(strings.TrimPrefix(addr, "nsa_"))
		return err == nil && len(b) == sha256.Size
	}
	_, err := btcutil.DecodeAddress(addr, params)
	return err == nil
}

// syntheticAddressID builds the "nsa_<hex sha256>" identifier used when a
// script cannot be resolved to a standard address.
func syntheticAddressID(pkScript []byte) string {
	sum := sha256.Sum256(pkScript)
	return "nsa_" + hex.EncodeToString(sum[:])
}
