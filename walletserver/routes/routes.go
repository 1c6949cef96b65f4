// Package routes wires the read-path HTTP contract onto a
// mux.Router: one service scope per network, with every path except
// /healthcheck and /status behind the x-api-key middleware.
package routes

import (
	"github.com/gorilla/mux"

	"rune-indexer/core"
	"rune-indexer/walletserver/controllers"
	"rune-indexer/walletserver/middleware"
)

// Register attaches every read-path handler to r.
func Register(r *mux.Router, wc *controllers.WalletController, apiKeys *core.APIKeyRegistry) {
	r.Use(middleware.Logger)
	r.Use(middleware.RequireAPIKey(apiKeys))

	r.HandleFunc("/healthcheck", wc.Healthcheck).Methods("GET")
	r.HandleFunc("/status", wc.Status).Methods("GET")

	r.HandleFunc("/balance/{addr}", wc.Balance).Methods("GET")
	r.HandleFunc("/balance-history/{addr}", wc.BalanceHistory).Methods("GET")

	r.HandleFunc("/utxos/{addr}", wc.ListUTXOs).Methods("GET")
	r.HandleFunc("/utxos/{addr}", wc.ReserveUTXOs).Methods("POST")

	r.HandleFunc("/runes", wc.ListRunes).Methods("GET")
	r.HandleFunc("/runes/{rune}", wc.GetRune).Methods("GET")
	r.HandleFunc("/runes/{rune}/utxos/{addr}", wc.ListRuneUTXOs).Methods("GET")
	r.HandleFunc("/runes/{rune}/utxos/{addr}", wc.ReserveRuneUTXOs).Methods("POST")
	r.HandleFunc("/runes/{rune}/balance/{addr}", wc.RuneBalance).Methods("GET")
	r.HandleFunc("/runes/{rune}/balance-history/{addr}", wc.RuneBalanceHistory).Methods("GET")

	r.HandleFunc("/fee-rate", wc.FeeRate).Methods("GET")

	r.HandleFunc("/tx", wc.SubmitTx).Methods("POST")
	r.HandleFunc("/tx/{txid}", wc.GetTx).Methods("GET")
	r.HandleFunc("/tx/{txid}/ins-outs", wc.TxInsOuts).Methods("GET")
	r.HandleFunc("/tx/{txid}/ins-outs/runes", wc.TxInsOutsRunes).Methods("GET")
}
