package core

import "context"

// ReservationCache is the distributed, TTL-based UTXO lock used to keep two
// concurrent wallet requests from reserving the same output.
// A lock write always succeeds (last writer wins) but carries a request_id
// so a retried request with the same id is treated as idempotent rather
// than "already locked by someone else"; see cache/redis.go for the
// concrete go-redis-backed implementation of this contract.
type ReservationCache interface {
	// LockUTXO (re-)locks an outpoint for the cache's lock TTL, stamping it with
	// requestID (or a random sentinel if requestID is empty).
	LockUTXO(ctx context.Context, out OutPoint, requestID string) error

	// CheckIsLocked reports whether an outpoint is currently locked by a
	// request other than requestID.
	CheckIsLocked(ctx context.Context, out OutPoint, requestID string) (bool, error)
}
