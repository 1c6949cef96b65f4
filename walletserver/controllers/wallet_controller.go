// Package controllers implements the read-path HTTP handlers: balances,
// UTXO listing and reservation, rune lookups, fee estimation, and the raw
// transaction passthroughs.
package controllers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"rune-indexer/core"
	"rune-indexer/walletserver/services"
)

// WalletController holds the assembled service dependencies every handler
// needs; its methods are registered onto a mux.Router by routes.Register.
type WalletController struct {
	svc *services.Service
}

// NewWalletController builds a WalletController over svc.
func NewWalletController(svc *services.Service) *WalletController {
	return &WalletController{svc: svc}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeAPIError(w http.ResponseWriter, apiErr *core.ApiError) {
	writeJSON(w, apiErr.HTTPCode, core.ErrorResponse{Error: apiErr})
}

// requestAPIKey re-reads the header the auth middleware already validated,
// so handlers can ask the registry whether this key may place reservations.
func requestAPIKey(r *http.Request) string {
	return r.Header.Get("x-api-key")
}

func (wc *WalletController) canLock(r *http.Request) bool {
	return wc.svc.APIKeys.CanLockUTXO(requestAPIKey(r))
}

func parsePage(r *http.Request) (core.PageParams, *core.ApiError) {
	q := r.URL.Query()

	limit, err := core.ParseUintPtr(q.Get("limit"))
	if err != nil {
		return core.PageParams{}, core.BadInput(err.Error())
	}
	offset, err := core.ParseUintPtr(q.Get("offset"))
	if err != nil {
		return core.PageParams{}, core.BadInput(err.Error())
	}
	page, err := core.ParseUintPtr(q.Get("page"))
	if err != nil {
		return core.PageParams{}, core.BadInput(err.Error())
	}
	order, err := core.ParseOrderBy(q.Get("order"))
	if err != nil {
		return core.PageParams{}, core.BadInput(err.Error())
	}

	return core.PageParams{Order: order, Limit: limit, Offset: offset, Page: page}, nil
}

func (wc *WalletController) validateAddress(addr string) *core.ApiError {
	if !core.ValidateAddress(addr, wc.svc.NetParams) {
		return core.InvalidAddress("address does not parse for the configured network")
	}
	return nil
}

// Healthcheck implements GET /healthcheck: a bare 200/503 for load balancer
// probes, with no response body.
func (wc *WalletController) Healthcheck(w http.ResponseWriter, r *http.Request) {
	status := wc.svc.Status.Status(r.Context())
	if !status.Healthy {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// Status implements GET /status.
func (wc *WalletController) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, wc.svc.Status.Status(r.Context()))
}

// Balance implements GET /balance/{addr}.
func (wc *WalletController) Balance(w http.ResponseWriter, r *http.Request) {
	addr := mux.Vars(r)["addr"]
	if apiErr := wc.validateAddress(addr); apiErr != nil {
		writeAPIError(w, apiErr)
		return
	}
	balance, err := wc.svc.Store.GetBalance(r.Context(), addr)
	if err != nil {
		writeAPIError(w, core.InternalError())
		return
	}
	writeJSON(w, http.StatusOK, balance)
}

// BalanceHistory implements GET /balance-history/{addr}.
func (wc *WalletController) BalanceHistory(w http.ResponseWriter, r *http.Request) {
	addr := mux.Vars(r)["addr"]
	if apiErr := wc.validateAddress(addr); apiErr != nil {
		writeAPIError(w, apiErr)
		return
	}
	page, apiErr := parsePage(r)
	if apiErr != nil {
		writeAPIError(w, apiErr)
		return
	}
	limit, offset, err := page.LimitOffset()
	if err != nil {
		writeAPIError(w, core.BadInput(err.Error()))
		return
	}
	rows, total, err := wc.svc.Store.GetBalanceHistory(r.Context(), addr, limit, offset)
	if err != nil {
		writeAPIError(w, core.InternalError())
		return
	}
	meta := core.NewListResponseMeta(limit, offset, total)
	writeJSON(w, http.StatusOK, core.ListResult[core.BalanceHistoryEntry]{Meta: &meta, Records: rows})
}

// ListUTXOs implements GET /utxos/{addr}.
func (wc *WalletController) ListUTXOs(w http.ResponseWriter, r *http.Request) {
	addr := mux.Vars(r)["addr"]
	if apiErr := wc.validateAddress(addr); apiErr != nil {
		writeAPIError(w, apiErr)
		return
	}
	page, apiErr := parsePage(r)
	if apiErr != nil {
		writeAPIError(w, apiErr)
		return
	}
	q := r.URL.Query()
	filters := core.ListUTXOFilters{
		NoRunes:       q.Get("no_runes") == "true",
		SkipPremature: q.Get("skip_premature") == "true",
		RequestID:     q.Get("request_id"),
	}
	switch q.Get("sorting") {
	case "", "age":
		filters.Sorting = core.SortByBlock
	case "amount":
		filters.Sorting = core.SortByAmount
	default:
		writeAPIError(w, core.BadInput("sorting must be `age` or `amount`"))
		return
	}
	if raw := q.Get("amount_threshold"); raw != "" {
		threshold, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || threshold < 0 {
			writeAPIError(w, core.BadInput("amount_threshold must be a non-negative integer"))
			return
		}
		filters.AmountThreshold = threshold
	}
	result, apiErr := wc.svc.Read.ListUTXOs(r.Context(), addr, page, filters)
	if apiErr != nil {
		writeAPIError(w, apiErr)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type reserveUTXORequest struct {
	Amount    int64  `json:"amount"`
	RequestID string `json:"request_id"`
	MaxUtxos  int    `json:"max_utxos"`
}

// ReserveUTXOs implements POST /utxos/{addr}: collects and (for callers whose
// API key has can_lock_utxo) reserves a minimum-cardinality UTXO set.
func (wc *WalletController) ReserveUTXOs(w http.ResponseWriter, r *http.Request) {
	addr := mux.Vars(r)["addr"]
	if apiErr := wc.validateAddress(addr); apiErr != nil {
		writeAPIError(w, apiErr)
		return
	}
	var req reserveUTXORequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIError(w, core.BadInput("malformed request body"))
		return
	}
	selected, apiErr := wc.svc.Read.CollectBTCUtxo(r.Context(), addr, req.Amount, req.MaxUtxos, req.RequestID, wc.canLock(r))
	if apiErr != nil {
		writeAPIError(w, apiErr)
		return
	}
	writeJSON(w, http.StatusOK, core.ListResult[core.Output]{Records: selected})
}

// ListRunes implements GET /runes?order&limit&offset&name&featured.
func (wc *WalletController) ListRunes(w http.ResponseWriter, r *http.Request) {
	page, apiErr := parsePage(r)
	if apiErr != nil {
		writeAPIError(w, apiErr)
		return
	}
	limit, offset, err := page.LimitOffset()
	if err != nil {
		writeAPIError(w, core.BadInput(err.Error()))
		return
	}
	q := r.URL.Query()
	featured := q.Get("featured") == "true"
	rows, total, err := wc.svc.Store.ListRunes(r.Context(), limit, offset, page.Order, q.Get("name"), featured)
	if err != nil {
		writeAPIError(w, core.InternalError())
		return
	}
	meta := core.NewListResponseMeta(limit, offset, total)
	writeJSON(w, http.StatusOK, core.ListResult[core.Rune]{Meta: &meta, Records: rows})
}

// GetRune implements GET /runes/{rune}.
func (wc *WalletController) GetRune(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["rune"]
	runeRow, ok, err := wc.svc.Store.GetRuneByName(r.Context(), name)
	if err != nil {
		writeAPIError(w, core.InternalError())
		return
	}
	if !ok {
		writeAPIError(w, core.NotFound())
		return
	}
	writeJSON(w, http.StatusOK, runeRow)
}

// ListRuneUTXOs implements GET /runes/{rune}/utxos/{addr}.
func (wc *WalletController) ListRuneUTXOs(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	addr, runeName := vars["addr"], vars["rune"]
	if apiErr := wc.validateAddress(addr); apiErr != nil {
		writeAPIError(w, apiErr)
		return
	}
	page, apiErr := parsePage(r)
	if apiErr != nil {
		writeAPIError(w, apiErr)
		return
	}
	result, apiErr := wc.svc.Read.ListRuneUTXOs(r.Context(), addr, runeName, page, r.URL.Query().Get("request_id"))
	if apiErr != nil {
		writeAPIError(w, apiErr)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type reserveRuneUTXORequest struct {
	Amount    string `json:"amount"`
	RequestID string `json:"request_id"`
	MaxUtxos  int    `json:"max_utxos"`
}

// ReserveRuneUTXOs implements POST /runes/{rune}/utxos/{addr}.
func (wc *WalletController) ReserveRuneUTXOs(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	addr, runeName := vars["addr"], vars["rune"]
	if apiErr := wc.validateAddress(addr); apiErr != nil {
		writeAPIError(w, apiErr)
		return
	}
	var req reserveRuneUTXORequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIError(w, core.BadInput("malformed request body"))
		return
	}
	target, err := core.ParseAmount(req.Amount)
	if err != nil {
		writeAPIError(w, core.BadInput("amount does not parse as a decimal"))
		return
	}
	selected, apiErr := wc.svc.Read.CollectRuneUtxo(r.Context(), addr, runeName, target, req.MaxUtxos, req.RequestID, wc.canLock(r))
	if apiErr != nil {
		writeAPIError(w, apiErr)
		return
	}
	writeJSON(w, http.StatusOK, core.ListResult[core.RuneUtxo]{Records: selected})
}

// RuneBalance implements GET /runes/{rune}/balance/{addr}.
func (wc *WalletController) RuneBalance(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	addr, runeName := vars["addr"], vars["rune"]
	if apiErr := wc.validateAddress(addr); apiErr != nil {
		writeAPIError(w, apiErr)
		return
	}
	balance, err := wc.svc.Store.GetRuneBalance(r.Context(), addr, runeName)
	if err != nil {
		writeAPIError(w, core.InternalError())
		return
	}
	writeJSON(w, http.StatusOK, balance)
}

// RuneBalanceHistory implements GET /runes/{rune}/balance-history/{addr}.
func (wc *WalletController) RuneBalanceHistory(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	addr, runeName := vars["addr"], vars["rune"]
	if apiErr := wc.validateAddress(addr); apiErr != nil {
		writeAPIError(w, apiErr)
		return
	}
	page, apiErr := parsePage(r)
	if apiErr != nil {
		writeAPIError(w, apiErr)
		return
	}
	limit, offset, err := page.LimitOffset()
	if err != nil {
		writeAPIError(w, core.BadInput(err.Error()))
		return
	}
	rows, total, err := wc.svc.Store.GetRuneBalanceHistory(r.Context(), addr, runeName, limit, offset)
	if err != nil {
		writeAPIError(w, core.InternalError())
		return
	}
	meta := core.NewListResponseMeta(limit, offset, total)
	writeJSON(w, http.StatusOK, core.ListResult[core.RuneBalanceHistoryEntry]{Meta: &meta, Records: rows})
}

// FeeRate implements GET /fee-rate, clamping the quote to the configured
// minimum sat/vByte.
func (wc *WalletController) FeeRate(w http.ResponseWriter, r *http.Request) {
	fee, err := wc.svc.Fees.Estimate(r.Context())
	if err != nil {
		writeAPIError(w, core.ServiceUnavailable("fee estimation unavailable"))
		return
	}
	if fee.Min < wc.svc.MinFeeRate {
		fee.Min = wc.svc.MinFeeRate
	}
	if fee.Normal < fee.Min {
		fee.Normal = fee.Min
	}
	if fee.Fast < fee.Normal {
		fee.Fast = fee.Normal
	}
	writeJSON(w, http.StatusOK, fee)
}

// rpcEnvelope wraps a node RPC passthrough result: the JSON-RPC error (if
// any) rides inside the 200 body rather than becoming an HTTP error status.
type rpcEnvelope struct {
	Result any         `json:"result"`
	Error  *rpcErrView `json:"error"`
}

type rpcErrView struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type submitTxRequest struct {
	Tx string `json:"tx"`
}

type submitTxResult struct {
	TxHash string `json:"tx_hash"`
}

// SubmitTx implements POST /tx.
func (wc *WalletController) SubmitTx(w http.ResponseWriter, r *http.Request) {
	var req submitTxRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIError(w, core.BadInput("malformed request body"))
		return
	}
	txHash, rpcErr := wc.svc.Node.SendRawTransaction(r.Context(), req.Tx)
	if rpcErr != nil {
		writeJSON(w, http.StatusOK, rpcEnvelope{Error: &rpcErrView{Code: rpcErr.Code, Message: rpcErr.Message}})
		return
	}
	writeJSON(w, http.StatusOK, rpcEnvelope{Result: submitTxResult{TxHash: txHash.String()}})
}

func parseTxid(r *http.Request) (core.Hash, *core.ApiError) {
	txid, err := core.ParseHash(mux.Vars(r)["txid"])
	if err != nil {
		return core.Hash{}, core.BadInput("txid does not parse as a transaction hash")
	}
	return txid, nil
}

// GetTx implements GET /tx/{txid}, a verbose passthrough to the node.
func (wc *WalletController) GetTx(w http.ResponseWriter, r *http.Request) {
	txid, apiErr := parseTxid(r)
	if apiErr != nil {
		writeAPIError(w, apiErr)
		return
	}
	raw, rpcErr := wc.svc.Node.GetRawTransactionVerbose(r.Context(), txid)
	if rpcErr != nil {
		writeJSON(w, http.StatusOK, rpcEnvelope{Error: &rpcErrView{Code: rpcErr.Code, Message: rpcErr.Message}})
		return
	}
	writeJSON(w, http.StatusOK, rpcEnvelope{Result: json.RawMessage(raw)})
}

// TxInsOuts implements GET /tx/{txid}/ins-outs.
func (wc *WalletController) TxInsOuts(w http.ResponseWriter, r *http.Request) {
	txid, apiErr := parseTxid(r)
	if apiErr != nil {
		writeAPIError(w, apiErr)
		return
	}
	outputs, err := wc.svc.Store.GetOutputsByTx(r.Context(), txid)
	if err != nil {
		writeAPIError(w, core.InternalError())
		return
	}
	inputs, err := wc.svc.Store.GetInputsByTx(r.Context(), txid)
	if err != nil {
		writeAPIError(w, core.InternalError())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"outputs": outputs, "inputs": inputs})
}

// TxInsOutsRunes implements GET /tx/{txid}/ins-outs/runes.
func (wc *WalletController) TxInsOutsRunes(w http.ResponseWriter, r *http.Request) {
	txid, apiErr := parseTxid(r)
	if apiErr != nil {
		writeAPIError(w, apiErr)
		return
	}
	runeUtxos, err := wc.svc.Store.GetRuneUtxosByTx(r.Context(), txid)
	if err != nil {
		writeAPIError(w, core.InternalError())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rune_utxos": runeUtxos})
}
