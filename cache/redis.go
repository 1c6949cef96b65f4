// Package cache provides the Redis-backed implementation of the UTXO
// reservation lock used by the read path's collect endpoints.
package cache

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"rune-indexer/core"
	"rune-indexer/pkg/utils"
)

// utxoLocksPrefix namespaces every reservation key in the shared Redis
// instance.
const utxoLocksPrefix = "orbtc:utxo_locks"

// noRequestIDPrefix marks locks taken without a client request id. The
// stored value gets a random suffix so it can never equal any caller's id,
// not even another empty one's.
const noRequestIDPrefix = "p.j.fry"

func sentinelRequestID() string {
	return noRequestIDPrefix + "-" + uuid.NewString()
}

// ReservationCache is a Redis-backed core.ReservationCache. A lock is a
// SETEX key whose value is the request id that claimed it; re-locking
// always overwrites the TTL, and CheckIsLocked only treats a key as "taken"
// when its stored request id differs from the caller's own; that is what
// makes a retried collect-with-the-same-request-id idempotent.
type ReservationCache struct {
	client *redis.Client
	ttl    time.Duration
}

var _ core.ReservationCache = (*ReservationCache)(nil)

// New builds a ReservationCache against the given Redis address, with locks
// expiring after ttl.
func New(addr string, ttl time.Duration) *ReservationCache {
	return &ReservationCache{
		client: redis.NewClient(&redis.Options{Addr: addr}),
		ttl:    ttl,
	}
}

func lockKey(out core.OutPoint) string {
	return fmt.Sprintf("%s:%s:%d", utxoLocksPrefix, out.TxHash.String(), out.Vout)
}

// LockUTXO claims out for requestID, overwriting any existing lock and
// resetting its TTL (locks are always taken, not
// compare-and-set, since the caller has already verified via CheckIsLocked).
func (c *ReservationCache) LockUTXO(ctx context.Context, out core.OutPoint, requestID string) error {
	id := requestID
	if id == "" {
		id = sentinelRequestID()
	}
	if err := c.client.Set(ctx, lockKey(out), id, c.ttl).Err(); err != nil {
		return utils.Wrap(err, "lock utxo")
	}
	return nil
}

// CheckIsLocked reports whether out is currently reserved by a request other
// than requestID. A matching requestID means this is a retry of the same
// collect call, which must succeed again rather than being rejected.
func (c *ReservationCache) CheckIsLocked(ctx context.Context, out core.OutPoint, requestID string) (bool, error) {
	held, err := c.client.Get(ctx, lockKey(out)).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, utils.Wrap(err, "check utxo lock")
	}
	if strings.HasPrefix(held, noRequestIDPrefix) {
		return true, nil
	}
	if requestID != "" && held == requestID {
		return false, nil
	}
	return true, nil
}

// Ping verifies connectivity to the cache server.
func (c *ReservationCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
