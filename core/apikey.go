package core

import (
	"context"
	"sync"
)

// APIKeyRegistry is the boot-loaded, in-memory API key map. New keys are
// added by direct store mutation and only take effect the next time the
// service restarts.
type APIKeyRegistry struct {
	mu   sync.RWMutex
	keys map[string]APIKey
}

// LoadAPIKeyRegistry queries every key once and builds the registry.
func LoadAPIKeyRegistry(ctx context.Context, store Store) (*APIKeyRegistry, error) {
	keys, err := store.ListAPIKeys(ctx)
	if err != nil {
		return nil, err
	}
	reg := &APIKeyRegistry{keys: make(map[string]APIKey, len(keys))}
	for _, k := range keys {
		reg.keys[k.Key] = k
	}
	return reg, nil
}

// Lookup returns the APIKey for a key string, if known.
func (r *APIKeyRegistry) Lookup(key string) (APIKey, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	k, ok := r.keys[key]
	return k, ok
}

// Authenticate validates a request's API key, distinguishing an unknown key
// (access denied) from a blocked one (forbidden).
func (r *APIKeyRegistry) Authenticate(key string) *ApiError {
	k, ok := r.Lookup(key)
	if !ok {
		return AccessDenied()
	}
	if k.Blocked {
		return Forbidden()
	}
	return nil
}

// CanLockUTXO reports whether the given key is permitted to place
// reservations.
func (r *APIKeyRegistry) CanLockUTXO(key string) bool {
	k, ok := r.Lookup(key)
	return ok && !k.Blocked && k.CanLockUTXO
}
