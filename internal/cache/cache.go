package cache

import (
	"context"
	"time"
)

// BytesCache is a best-effort key/value cache. Callers treat every error as a miss.
type BytesCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Locker is a distributed mutual exclusion lock with a lease.
type Locker interface {
	// Acquire returns ok=false when someone else holds key.
	Acquire(ctx context.Context, key string, ttl time.Duration) (token string, ok bool, err error)
	Release(ctx context.Context, key, token string) error
}
