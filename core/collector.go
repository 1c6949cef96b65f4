package core

import (
	"context"
	"fmt"
	"sort"
)

// collectible is the minimal surface the minimum-cardinality selection
// algorithm needs from a candidate UTXO, generic over BTC and rune UTXOs.
type collectible interface {
	collectAmount() Amount
	collectOutPoint() OutPoint
}

func (o Output) collectAmount() Amount     { return NewAmount(uint64(o.Amount)) }
func (o Output) collectOutPoint() OutPoint { return o.OutPoint() }

func (u RuneUtxo) collectAmount() Amount     { return u.Amount }
func (u RuneUtxo) collectOutPoint() OutPoint { return u.OutPoint() }

// UtxoFilter reports whether a candidate outpoint may be handed to the
// current caller. The read path composes the mempool-used check and the
// reservation-lock check into one of these; a nil filter keeps everything.
type UtxoFilter func(out OutPoint) (bool, error)

// CollectorError is returned by UtxoCollector methods when a target cannot
// be satisfied.
type CollectorError struct {
	Kind      CollectorErrorKind
	Available Amount
	Target    Amount
	TotalUtxo int
	Max       int
	Collected Amount
	Message   string
}

// CollectorErrorKind distinguishes the collector's failure modes.
type CollectorErrorKind int

const (
	ErrCollectorNotEnoughBalance CollectorErrorKind = iota
	ErrNeedMoreUtxosKind
	ErrBadInputKind
)

func (e *CollectorError) Error() string {
	switch e.Kind {
	case ErrCollectorNotEnoughBalance:
		return fmt.Sprintf("not enough balance. available: %s, required: %s", e.Available, e.Target)
	case ErrNeedMoreUtxosKind:
		return fmt.Sprintf("top %d biggest UTXOs are not enough to collect %s (collected=%s). total UTXOs=%d",
			e.Max, e.Target, e.Collected, e.TotalUtxo)
	default:
		return fmt.Sprintf("bad input: %s", e.Message)
	}
}

// minUtxosToReachTarget finds the minimum-cardinality subset of a
// descending-sorted candidate slice whose sum is >= target, via repeated
// binary search for the next greater-or-equal element.
//
// INVARIANT: items must already be sorted in descending order by amount.
func minUtxosToReachTarget[T collectible](items []T, target Amount) ([]T, Amount, error) {
	if len(items) == 0 {
		return nil, ZeroAmount, &CollectorError{Kind: ErrCollectorNotEnoughBalance, Available: ZeroAmount, Target: target}
	}

	var result []T
	collected := ZeroAmount
	idx := 0

	for collected.LessThan(target) {
		subset := items[idx:]
		if len(subset) == 0 {
			return nil, collected, &CollectorError{Kind: ErrCollectorNotEnoughBalance, Available: collected, Target: target}
		}

		remaining := target.Sub(collected)

		var pick int
		if subset[0].collectAmount().GreaterThanOrEqual(remaining) {
			if found, ok := binarySearchNextGE(subset, remaining); ok {
				pick = found
				idx += found
			} else {
				pick = 0
				idx++
			}
		} else {
			pick = 0
			idx++
		}

		chosen := subset[pick]
		collected = collected.Add(chosen.collectAmount())
		result = append(result, chosen)
	}

	return result, collected, nil
}

// binarySearchNextGE finds the rightmost index whose amount is still >=
// target in a descending-sorted slice.
func binarySearchNextGE[T collectible](arr []T, target Amount) (int, bool) {
	index := sort.Search(len(arr), func(i int) bool {
		return arr[i].collectAmount().Cmp(target) <= 0
	})

	if index < len(arr) && arr[index].collectAmount().GreaterThanOrEqual(target) {
		return index, true
	}
	if index > 0 && arr[index-1].collectAmount().GreaterThanOrEqual(target) {
		return index - 1, true
	}
	return 0, false
}

// UtxoCollector selects a minimum-cardinality set of UTXOs covering a target
// amount for an address, optionally restricted to one rune. keep filters out candidates the caller may not be
// given (mempool-spent, reserved by another request); nil keeps everything.
type UtxoCollector interface {
	CollectBTCUtxo(ctx context.Context, address string, target int64, maxUtxos int, keep UtxoFilter) ([]Output, error)
	CollectRuneUtxo(ctx context.Context, address, rune string, target Amount, maxUtxos int, keep UtxoFilter) ([]RuneUtxo, error)
}

const (
	// shortcutCandidates bounds the fast path's fetch: up to 10 UTXOs whose
	// amounts fall within [target/10, 4*target].
	shortcutCandidates = 10

	// fallbackPageSize is how many candidates each fallback iteration adds
	// before the selection algorithm is retried.
	fallbackPageSize = 200
)

// UtxoCollectorService is the Store-backed UtxoCollector implementation.
type UtxoCollectorService struct {
	store Store
}

// NewUtxoCollectorService builds a UtxoCollectorService over the given Store.
func NewUtxoCollectorService(store Store) *UtxoCollectorService {
	return &UtxoCollectorService{store: store}
}

func clampMaxUtxos(max int) int {
	if max < 1 {
		return 1
	}
	if max > 1000 {
		return 1000
	}
	return max
}

// filterCandidates applies keep to a fetched candidate page, preserving order.
func filterCandidates[T collectible](items []T, keep UtxoFilter) ([]T, error) {
	if keep == nil {
		return items, nil
	}
	out := make([]T, 0, len(items))
	for _, it := range items {
		ok, err := keep(it.collectOutPoint())
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, it)
		}
	}
	return out, nil
}

// CollectBTCUtxo collects UTXOs for address summing to at least target
// satoshis, using at most maxUtxos of them: first the single-UTXO immediate
// pick, then the range-bounded shortcut, then the paginated fallback.
func (s *UtxoCollectorService) CollectBTCUtxo(ctx context.Context, address string, target int64, maxUtxos int, keep UtxoFilter) ([]Output, error) {
	if target == 0 {
		return nil, &CollectorError{Kind: ErrBadInputKind, Message: "target amount is zero"}
	}
	maxUtxos = clampMaxUtxos(maxUtxos)

	balance, err := s.store.GetBalance(ctx, address)
	if err != nil {
		return nil, err
	}
	targetAmt := NewAmount(uint64(target))
	if balance.Balance < target {
		return nil, &CollectorError{Kind: ErrCollectorNotEnoughBalance, Available: NewAmount(uint64(balance.Balance)), Target: targetAmt}
	}

	if single, ok, err := s.store.GetAddressBTCUtxoGEAmount(ctx, address, target); err != nil {
		return nil, err
	} else if ok {
		kept, err := filterCandidates([]Output{*single}, keep)
		if err != nil {
			return nil, err
		}
		if len(kept) == 1 {
			return kept, nil
		}
	}

	shortcut, err := s.store.SelectUTXOsInAmountRange(ctx, address, target/10, 4*target, shortcutCandidates)
	if err != nil {
		return nil, err
	}
	if shortcut, err = filterCandidates(shortcut, keep); err != nil {
		return nil, err
	}
	if selected, _, err := minUtxosToReachTarget(shortcut, targetAmt); err == nil && len(selected) <= maxUtxos {
		return selected, nil
	}

	return collectPaginated(ctx, targetAmt, maxUtxos, keep, func(offset int) ([]Output, error) {
		return s.store.SelectUTXOWithPagination(ctx, address, OrderDesc, nil, SortByAmount, fallbackPageSize, offset)
	})
}

// CollectRuneUtxo collects UTXOs carrying rune balances for address summing
// to at least target, restricted to the named rune.
func (s *UtxoCollectorService) CollectRuneUtxo(ctx context.Context, address, rune string, target Amount, maxUtxos int, keep UtxoFilter) ([]RuneUtxo, error) {
	if target.IsZero() {
		return nil, &CollectorError{Kind: ErrBadInputKind, Message: "target amount is zero"}
	}
	maxUtxos = clampMaxUtxos(maxUtxos)

	balance, err := s.store.GetRuneBalance(ctx, address, rune)
	if err != nil {
		return nil, err
	}
	if balance.Balance.LessThan(target) {
		return nil, &CollectorError{Kind: ErrCollectorNotEnoughBalance, Available: balance.Balance, Target: target}
	}

	if single, ok, err := s.store.GetAddressRuneUtxoGEAmount(ctx, address, rune, target); err != nil {
		return nil, err
	} else if ok {
		kept, err := filterCandidates([]RuneUtxo{*single}, keep)
		if err != nil {
			return nil, err
		}
		if len(kept) == 1 {
			return kept, nil
		}
	}

	low, _ := target.DivMod(10)
	shortcut, err := s.store.SelectRuneUTXOsInAmountRange(ctx, address, rune, low, target.Mul(4), shortcutCandidates)
	if err != nil {
		return nil, err
	}
	if shortcut, err = filterCandidates(shortcut, keep); err != nil {
		return nil, err
	}
	if selected, _, err := minUtxosToReachTarget(shortcut, target); err == nil && len(selected) <= maxUtxos {
		return selected, nil
	}

	return collectPaginated(ctx, target, maxUtxos, keep, func(offset int) ([]RuneUtxo, error) {
		return s.store.SelectRuneUTXOWithPagination(ctx, rune, address, OrderDesc, nil, SortByAmount, fallbackPageSize, offset)
	})
}

// collectPaginated is the fallback layer: fetch amount-descending candidate
// pages, accumulate those that pass the filter, and retry the selection
// algorithm after each page until it succeeds within maxUtxos or the
// candidates are exhausted. Pages arrive sorted descending, so
// the accumulated slice stays sorted by construction.
func collectPaginated[T collectible](ctx context.Context, target Amount, maxUtxos int, keep UtxoFilter, fetch func(offset int) ([]T, error)) ([]T, error) {
	var candidates []T
	offset := 0
	lastErr := error(&CollectorError{Kind: ErrCollectorNotEnoughBalance, Available: ZeroAmount, Target: target})

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page, err := fetch(offset)
		if err != nil {
			return nil, err
		}
		exhausted := len(page) < fallbackPageSize
		offset += len(page)

		kept, err := filterCandidates(page, keep)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, kept...)

		selected, collected, err := minUtxosToReachTarget(candidates, target)
		if err == nil {
			if len(selected) > maxUtxos {
				return nil, &CollectorError{Kind: ErrNeedMoreUtxosKind, TotalUtxo: len(candidates), Max: maxUtxos, Collected: collected, Target: target}
			}
			return selected, nil
		}
		lastErr = err

		if exhausted {
			return nil, lastErr
		}
	}
}
