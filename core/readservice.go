package core

import (
	"context"
)

// ListUTXOFilters are the optional filters list_utxos applies on top of the
// always-on mempool-used filter.
type ListUTXOFilters struct {
	// NoRunes rejects any output that carries a rune balance.
	NoRunes bool
	// SkipPremature rejects coinbase outputs younger than 100 confirmations.
	SkipPremature bool
	// AmountThreshold drops outputs below this many satoshis; zero disables it.
	AmountThreshold int64
	// Sorting selects age (block height) or amount ordering.
	Sorting UtxoSortMode
	// RequestID makes a concurrent reservation check idempotent for retries
	// of the same logical request.
	RequestID string
}

// ReadService composes the store, mempool view, and reservation cache into
// the read-path operations consumed by the HTTP layer.
type ReadService struct {
	store     Store
	mempool   *MempoolView
	locks     ReservationCache
	collector UtxoCollector
	tipHeight func() int64
}

// NewReadService builds a ReadService. locks may be nil if the reservation
// cache is disabled.
func NewReadService(store Store, mempool *MempoolView, locks ReservationCache, tipHeight func() int64) *ReadService {
	return &ReadService{
		store:     store,
		mempool:   mempool,
		locks:     locks,
		collector: NewUtxoCollectorService(store),
		tipHeight: tipHeight,
	}
}

// premature coinbase outputs are not spendable until 100 confirmations.
const coinbaseMaturity = 100

// ListUTXOs returns a filtered, paginated page of BTC UTXOs for an address,
// applying the mempool-used filter, the optional rune-free filter, the
// premature-coinbase filter, and the inscription filter, in one combined
// pass.
func (s *ReadService) ListUTXOs(ctx context.Context, address string, page PageParams, filters ListUTXOFilters) (ListResult[Output], *ApiError) {
	limit, offset, err := page.LimitOffset()
	if err != nil {
		return ListResult[Output]{}, BadInput(err.Error())
	}

	sorting := filters.Sorting
	if sorting == "" {
		sorting = SortByBlock
	}
	rows, total, err := s.store.ListUTXOs(ctx, address, limit, offset, page.Order, sorting, filters.AmountThreshold)
	if err != nil {
		return ListResult[Output]{}, InternalError()
	}

	outs := make([]OutPoint, len(rows))
	ids := make([]int64, len(rows))
	for i, r := range rows {
		outs[i] = r.OutPoint()
		ids[i] = r.ID
	}

	notInMempool := make(map[OutPoint]bool, len(rows))
	if s.mempool != nil {
		for _, o := range s.mempool.FilterUsedOutpoints(outs) {
			notInMempool[o] = true
		}
	} else {
		for _, o := range outs {
			notInMempool[o] = true
		}
	}

	extras, err := s.store.GetOutputExtras(ctx, ids)
	if err != nil {
		return ListResult[Output]{}, InternalError()
	}

	tip := int64(0)
	if s.tipHeight != nil {
		tip = s.tipHeight()
	}

	filtered := make([]Output, 0, len(rows))
	for _, r := range rows {
		if !notInMempool[r.OutPoint()] {
			continue
		}
		if filters.SkipPremature && r.Coinbase && r.Block >= tip-coinbaseMaturity {
			continue
		}
		if ex, ok := extras[r.ID]; ok {
			if ex.HasInscriptions {
				continue
			}
			if filters.NoRunes && ex.HasRunes {
				continue
			}
		}
		if s.locks != nil {
			locked, lockErr := s.locks.CheckIsLocked(ctx, r.OutPoint(), filters.RequestID)
			if lockErr == nil && locked {
				continue
			}
		}
		filtered = append(filtered, r)
	}

	meta := NewListResponseMeta(limit, offset, total)
	return ListResult[Output]{Meta: &meta, Records: filtered}, nil
}

// ListRuneUTXOs is the rune-balance analogue of ListUTXOs: mempool filter,
// inscription filter, and the reservation lock filter.
func (s *ReadService) ListRuneUTXOs(ctx context.Context, address, rune string, page PageParams, requestID string) (ListResult[RuneUtxo], *ApiError) {
	limit, offset, err := page.LimitOffset()
	if err != nil {
		return ListResult[RuneUtxo]{}, BadInput(err.Error())
	}

	rows, total, err := s.store.ListRuneUTXOs(ctx, address, rune, limit, offset, page.Order)
	if err != nil {
		return ListResult[RuneUtxo]{}, InternalError()
	}

	outs := make([]OutPoint, len(rows))
	ids := make([]int64, len(rows))
	for i, r := range rows {
		outs[i] = r.OutPoint()
		ids[i] = r.ID
	}

	notInMempool := make(map[OutPoint]bool, len(rows))
	if s.mempool != nil {
		for _, o := range s.mempool.FilterUsedOutpoints(outs) {
			notInMempool[o] = true
		}
	} else {
		for _, o := range outs {
			notInMempool[o] = true
		}
	}

	extras, err := s.store.GetOutputExtras(ctx, ids)
	if err != nil {
		return ListResult[RuneUtxo]{}, InternalError()
	}

	filtered := make([]RuneUtxo, 0, len(rows))
	for _, r := range rows {
		if !notInMempool[r.OutPoint()] {
			continue
		}
		if ex, ok := extras[r.ID]; ok && ex.HasInscriptions {
			continue
		}
		if s.locks != nil {
			locked, lockErr := s.locks.CheckIsLocked(ctx, r.OutPoint(), requestID)
			if lockErr == nil && locked {
				continue
			}
		}
		filtered = append(filtered, r)
	}

	meta := NewListResponseMeta(limit, offset, total)
	return ListResult[RuneUtxo]{Meta: &meta, Records: filtered}, nil
}

// spendableBy composes the mempool-used check and the reservation-lock
// check into the UtxoFilter the collector applies to every candidate, so
// two concurrent callers can never be handed the same coin. A failing lock
// check fails the whole collect rather than silently serving the coin.
func (s *ReadService) spendableBy(ctx context.Context, requestID string) UtxoFilter {
	return func(out OutPoint) (bool, error) {
		if s.mempool != nil && s.mempool.UsedInMempool(out) {
			return false, nil
		}
		if s.locks != nil {
			locked, err := s.locks.CheckIsLocked(ctx, out, requestID)
			if err != nil {
				return false, err
			}
			if locked {
				return false, nil
			}
		}
		return true, nil
	}
}

// CollectBTCUtxo selects a minimum-cardinality set of BTC UTXOs covering
// target satoshis and, when canLock is true (the caller's API key has
// can_lock_utxo set), locks each selected outpoint so a
// concurrent request cannot also select it.
func (s *ReadService) CollectBTCUtxo(ctx context.Context, address string, target int64, maxUtxos int, requestID string, canLock bool) ([]Output, *ApiError) {
	if target <= 0 {
		return nil, BadInput("target amount must be positive")
	}
	selected, err := s.collector.CollectBTCUtxo(ctx, address, target, maxUtxos, s.spendableBy(ctx, requestID))
	if err != nil {
		return nil, collectorErrorToApiError(err)
	}
	if canLock && s.locks != nil {
		for _, o := range selected {
			if err := s.locks.LockUTXO(ctx, o.OutPoint(), requestID); err != nil {
				return nil, InternalError()
			}
		}
	}
	return selected, nil
}

// CollectRuneUtxo is the rune-balance analogue of CollectBTCUtxo.
func (s *ReadService) CollectRuneUtxo(ctx context.Context, address, rune string, target Amount, maxUtxos int, requestID string, canLock bool) ([]RuneUtxo, *ApiError) {
	if target.IsZero() {
		return nil, BadInput("target amount must be positive")
	}
	selected, err := s.collector.CollectRuneUtxo(ctx, address, rune, target, maxUtxos, s.spendableBy(ctx, requestID))
	if err != nil {
		return nil, collectorErrorToApiError(err)
	}
	if canLock && s.locks != nil {
		for _, o := range selected {
			if err := s.locks.LockUTXO(ctx, o.OutPoint(), requestID); err != nil {
				return nil, InternalError()
			}
		}
	}
	return selected, nil
}

func collectorErrorToApiError(err error) *ApiError {
	ce, ok := err.(*CollectorError)
	if !ok {
		return InternalError()
	}
	switch ce.Kind {
	case ErrCollectorNotEnoughBalance:
		return NotEnoughBalance()
	case ErrNeedMoreUtxosKind:
		return NeedMoreUtxos()
	default:
		return BadInput(ce.Message)
	}
}
