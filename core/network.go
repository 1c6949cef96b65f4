package core

import "github.com/btcsuite/btcd/chaincfg"

// NetworkParams resolves a config network name ("mainnet", "testnet",
// "regtest", "signet") to its chaincfg.Params, defaulting to mainnet.
func NetworkParams(network string) *chaincfg.Params {
	switch network {
	case "testnet", "testnet3":
		return &chaincfg.TestNet3Params
	case "regtest":
		return &chaincfg.RegressionNetParams
	case "signet":
		return &chaincfg.SigNetParams
	default:
		return &chaincfg.MainNetParams
	}
}

// firstRuneHeight is the network's runes-protocol activation height; below
// it, the runes indexer performs no work.
func firstRuneHeight(network string) int64 {
	switch network {
	case "mainnet":
		return 840000
	case "testnet", "testnet3":
		return 2584000
	case "signet":
		return 0
	default: // regtest
		return 0
	}
}
