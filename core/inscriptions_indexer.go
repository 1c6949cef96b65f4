package core

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sirupsen/logrus"
)

// InscriptionsIndexName is the fixed indexer identifier used as the
// checkpoint key.
const InscriptionsIndexName = "inscriptions_index"

// OrdOutput is one row of the inscriptions service's POST /outputs response.
type OrdOutput struct {
	Outpoint     string                     `json:"outpoint"`
	Inscriptions []string                   `json:"inscriptions"`
	Runes        map[string]json.RawMessage `json:"runes"`
}

// InscriptionsSource is the outbound contract of the optional
// ordinals/inscriptions detail service.
type InscriptionsSource interface {
	GetOutputs(ctx context.Context, outpoints []string) ([]OrdOutput, error)
}

// ordBatchSize bounds how many outpoints a single service query carries.
const ordBatchSize = 200

// InscriptionsIndexer tags outputs that carry inscriptions, setting the
// has_inscriptions bit the read path's filters consult. It runs as its own
// runtime alongside the BTC and runes indexers.
type InscriptionsIndexer struct {
	store  Store
	source InscriptionsSource
	logger *logrus.Logger

	pending []OutPoint
}

// NewInscriptionsIndexer builds an InscriptionsIndexer over the given
// service client.
func NewInscriptionsIndexer(store Store, source InscriptionsSource, lg *logrus.Logger) *InscriptionsIndexer {
	if lg == nil {
		lg = logrus.StandardLogger()
	}
	return &InscriptionsIndexer{store: store, source: source, logger: lg}
}

// Name implements TxIndexer.
func (idx *InscriptionsIndexer) Name() string { return InscriptionsIndexName }

// IndexTransaction implements TxIndexer: every output is a candidate; the
// service decides which actually carry inscriptions.
func (idx *InscriptionsIndexer) IndexTransaction(ctx context.Context, info TxInfo) error {
	for n := range info.Tx.Outputs {
		idx.pending = append(idx.pending, OutPoint{TxHash: info.TxID, Vout: uint32(n)})
	}
	return nil
}

// CommitState implements TxIndexer: queries the service in batches and
// commits the inscribed subset as output tags.
func (idx *InscriptionsIndexer) CommitState(ctx context.Context) error {
	var inscribed []OutPoint

	for start := 0; start < len(idx.pending); start += ordBatchSize {
		end := start + ordBatchSize
		if end > len(idx.pending) {
			end = len(idx.pending)
		}
		chunk := idx.pending[start:end]

		keys := make([]string, len(chunk))
		byKey := make(map[string]OutPoint, len(chunk))
		for i, out := range chunk {
			key := fmt.Sprintf("%s:%d", out.TxHash, out.Vout)
			keys[i] = key
			byKey[key] = out
		}

		rows, err := idx.source.GetOutputs(ctx, keys)
		if err != nil {
			return err
		}
		for _, row := range rows {
			if len(row.Inscriptions) == 0 {
				continue
			}
			out, ok := byKey[row.Outpoint]
			if !ok {
				continue
			}
			inscribed = append(inscribed, out)
		}
	}

	if len(inscribed) > 0 {
		idx.logger.WithField("outputs", len(inscribed)).Info("tagged inscribed outputs")
	}

	if err := idx.store.CommitBlock(ctx, BlockBatch{InscribedOutpoints: inscribed}); err != nil {
		return err
	}
	idx.pending = nil
	return nil
}

// ResetState implements TxIndexer.
func (idx *InscriptionsIndexer) ResetState() { idx.pending = nil }
