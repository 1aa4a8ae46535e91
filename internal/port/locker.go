package port

import (
	"context"
	"time"
)

// Locker is a cluster-wide mutex. TryLock returns false without blocking
// when another holder owns the key.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, key string) error
}
