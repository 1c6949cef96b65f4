package core

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// MempoolSource is the minimal RPC surface MempoolView needs from a Bitcoin
// node: the current mempool txid set and a transaction's inputs.
type MempoolSource interface {
	GetRawMempool(ctx context.Context) ([]Hash, error)
	GetRawTransactionInputs(ctx context.Context, txid Hash) ([]OutPoint, bool, error)
}

type mempoolState struct {
	txs       map[Hash]struct{}
	utxos     map[OutPoint]struct{}
	utxosByTx map[Hash][]OutPoint
}

func newMempoolState() *mempoolState {
	return &mempoolState{
		txs:       make(map[Hash]struct{}),
		utxos:     make(map[OutPoint]struct{}),
		utxosByTx: make(map[Hash][]OutPoint),
	}
}

func (s *mempoolState) usedInMempool(out OutPoint) bool {
	_, ok := s.utxos[out]
	return ok
}

// MempoolView is a periodically refreshed cache of every outpoint currently
// consumed by an unconfirmed transaction, used to filter served UTXOs so a
// wallet never sees a balance that the mempool has already spent.
type MempoolView struct {
	source MempoolSource
	logger *logrus.Logger

	mu    sync.RWMutex
	state *mempoolState

	refreshMu sync.Mutex
	active    bool
	quit      chan struct{}

	// RefreshInterval controls the polling cadence; defaults to 5s if zero.
	RefreshInterval time.Duration
}

// NewMempoolView builds a MempoolView backed by the given node RPC surface.
func NewMempoolView(source MempoolSource, lg *logrus.Logger) *MempoolView {
	if lg == nil {
		lg = logrus.StandardLogger()
	}
	return &MempoolView{
		source:          source,
		logger:          lg,
		state:           newMempoolState(),
		RefreshInterval: 5 * time.Second,
	}
}

// UsedInMempool reports whether an outpoint is currently consumed by an
// unconfirmed transaction.
func (v *MempoolView) UsedInMempool(out OutPoint) bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.state.usedInMempool(out)
}

// FilterUsedOutpoints returns the subset of outpoints not currently spent in
// the mempool, preserving order.
func (v *MempoolView) FilterUsedOutpoints(outs []OutPoint) []OutPoint {
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := make([]OutPoint, 0, len(outs))
	for _, o := range outs {
		if !v.state.usedInMempool(o) {
			out = append(out, o)
		}
	}
	return out
}

// Start launches the background refresh loop.
func (v *MempoolView) Start(ctx context.Context) {
	v.refreshMu.Lock()
	if v.active {
		v.refreshMu.Unlock()
		return
	}
	v.active = true
	v.quit = make(chan struct{})
	v.refreshMu.Unlock()

	go v.loop(ctx)
	v.logger.Info("mempool view started")
}

// Stop terminates the background refresh loop.
func (v *MempoolView) Stop() {
	v.refreshMu.Lock()
	if !v.active {
		v.refreshMu.Unlock()
		return
	}
	close(v.quit)
	v.active = false
	v.refreshMu.Unlock()
	v.logger.Info("mempool view stopped")
}

func (v *MempoolView) loop(ctx context.Context) {
	interval := v.RefreshInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		v.logger.Debug("refreshing mempool cache")
		v.refresh(ctx)

		select {
		case <-ctx.Done():
			return
		case <-v.quit:
			return
		case <-ticker.C:
		}
	}
}

// refresh diffs the current mempool against the cached state, fetching
// inputs only for newly appeared transactions.
func (v *MempoolView) refresh(ctx context.Context) {
	txids, err := v.source.GetRawMempool(ctx)
	if err != nil {
		v.logger.WithError(err).Warn("can't get raw mempool")
		return
	}

	current := make(map[Hash]struct{}, len(txids))
	for _, t := range txids {
		current[t] = struct{}{}
	}

	v.mu.RLock()
	var disappeared, appeared []Hash
	for t := range v.state.txs {
		if _, ok := current[t]; !ok {
			disappeared = append(disappeared, t)
		}
	}
	for t := range current {
		if _, ok := v.state.txs[t]; !ok {
			appeared = append(appeared, t)
		}
	}
	v.mu.RUnlock()

	v.logger.WithFields(logrus.Fields{
		"disappeared": len(disappeared),
		"appeared":    len(appeared),
	}).Info("updating mempool cache")

	type txOuts struct {
		txid Hash
		outs []OutPoint
	}
	var newUtxos []txOuts
	for _, txid := range appeared {
		outs, ok, err := v.source.GetRawTransactionInputs(ctx, txid)
		if err != nil || !ok {
			continue // tx was dropped, replaced, or mined
		}
		newUtxos = append(newUtxos, txOuts{txid: txid, outs: outs})
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	for _, t := range disappeared {
		for _, o := range v.state.utxosByTx[t] {
			delete(v.state.utxos, o)
		}
		delete(v.state.utxosByTx, t)
		delete(v.state.txs, t)
	}

	for _, e := range newUtxos {
		v.state.utxosByTx[e.txid] = append([]OutPoint(nil), e.outs...)
		for _, o := range e.outs {
			v.state.utxos[o] = struct{}{}
		}
	}

	for _, t := range appeared {
		v.state.txs[t] = struct{}{}
	}
}
