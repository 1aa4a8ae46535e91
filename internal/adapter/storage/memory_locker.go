package storage

import (
	"context"
	"sync"
	"time"
)

// MemoryLocker is a single-process port.Locker for tests and the
// in-memory wiring.
type MemoryLocker struct {
	mu    sync.Mutex
	holds map[string]time.Time
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{holds: make(map[string]time.Time)}
}

func (l *MemoryLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if deadline, held := l.holds[key]; held && time.Now().Before(deadline) {
		return false, nil
	}
	l.holds[key] = time.Now().Add(ttl)
	return true, nil
}

func (l *MemoryLocker) Unlock(ctx context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.holds, key)
	return nil
}
