package storage

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func getRedisClient(t *testing.T) *redis.Client {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	return client
}

func TestRedisLocker_Exclusive(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	key := "test:lock:exclusive-" + time.Now().Format("150405.000")
	defer client.Del(ctx, key)

	first := NewRedisLocker(client)
	second := NewRedisLocker(client)

	ok, err := first.TryLock(ctx, key, time.Minute)
	if err != nil || !ok {
		t.Fatalf("first TryLock: ok=%v err=%v", ok, err)
	}

	ok, err = second.TryLock(ctx, key, time.Minute)
	if err != nil {
		t.Fatalf("second TryLock: %v", err)
	}
	if ok {
		t.Error("second locker must not acquire a held lock")
	}

	if err := first.Unlock(ctx, key); err != nil {
		t.Fatalf("Unlock: %v", err)
	}

	ok, err = second.TryLock(ctx, key, time.Minute)
	if err != nil || !ok {
		t.Errorf("expected lock acquirable after unlock: ok=%v err=%v", ok, err)
	}
	second.Unlock(ctx, key)
}

func TestRedisLocker_UnlockWithoutLockIsNoop(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	locker := NewRedisLocker(client)
	if err := locker.Unlock(context.Background(), "test:lock:never-held"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestRedisLocker_StaleHolderCannotRelease(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	key := "test:lock:stale-" + time.Now().Format("150405.000")
	defer client.Del(ctx, key)

	stale := NewRedisLocker(client)
	ok, err := stale.TryLock(ctx, key, 50*time.Millisecond)
	if err != nil || !ok {
		t.Fatalf("TryLock: ok=%v err=%v", ok, err)
	}

	// Let the TTL lapse, then have another instance take over.
	time.Sleep(80 * time.Millisecond)
	current := NewRedisLocker(client)
	ok, err = current.TryLock(ctx, key, time.Minute)
	if err != nil || !ok {
		t.Fatalf("takeover TryLock: ok=%v err=%v", ok, err)
	}

	// The stale holder's token no longer matches, so its unlock is a noop.
	if err := stale.Unlock(ctx, key); err != nil {
		t.Fatalf("stale Unlock: %v", err)
	}
	if exists, _ := client.Exists(ctx, key).Result(); exists != 1 {
		t.Error("current holder's lock must survive the stale unlock")
	}
	current.Unlock(ctx, key)
}
