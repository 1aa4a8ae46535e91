package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/rl1809/order-pipeline/internal/adapter/storage"
	"github.com/rl1809/order-pipeline/internal/core/domain"
	"github.com/rl1809/order-pipeline/internal/port"
)

func seedExpiredReservation(t *testing.T, store *storage.MemoryStore, orderID string, qty int) domain.Reservation {
	t.Helper()
	r := domain.NewReservation("prod-1", orderID, qty, -time.Minute)
	if err := store.Reserve(context.Background(), r); err != nil {
		t.Fatalf("reserve failed: %v", err)
	}
	return r
}

func TestSweeper_ExpiresOverdueReservations(t *testing.T) {
	store := storage.NewMemoryStore()
	store.SeedProduct(domain.Product{ID: "prod-1", Name: "Widget", Price: decimal.NewFromInt(10), Stock: 10})

	seedExpiredReservation(t, store, "order-1", 3)
	seedExpiredReservation(t, store, "order-2", 2)

	// Still within its TTL, must survive the sweep.
	live := domain.NewReservation("prod-1", "order-3", 1, time.Minute)
	if err := store.Reserve(context.Background(), live); err != nil {
		t.Fatalf("reserve failed: %v", err)
	}

	available, _ := store.AvailableStock(context.Background(), "prod-1")
	if available != 4 {
		t.Fatalf("expected available 4 before sweep, got %d", available)
	}

	sweeper := NewSweeper(store, storage.NewMemoryLocker(), time.Minute, time.Minute, zerolog.Nop())
	count, err := sweeper.SweepOnce(context.Background())
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if count != 2 {
		t.Errorf("expected 2 expired, got %d", count)
	}

	available, _ = store.AvailableStock(context.Background(), "prod-1")
	if available != 9 {
		t.Errorf("expected available 9 after sweep, got %d", available)
	}
	product, _ := store.FindProduct(context.Background(), "prod-1")
	if product.Stock != 10 {
		t.Errorf("expiry must not touch total stock, got %d", product.Stock)
	}

	res, _ := store.FindReservationByOrder(context.Background(), "order-1")
	if res.Status != domain.ReservationExpired {
		t.Errorf("expected expired, got %s", res.Status)
	}
	res, _ = store.FindReservationByOrder(context.Background(), "order-3")
	if res.Status != domain.ReservationPending {
		t.Errorf("live reservation must stay pending, got %s", res.Status)
	}
}

func TestSweeper_SkipsWhenLockHeld(t *testing.T) {
	store := storage.NewMemoryStore()
	store.SeedProduct(domain.Product{ID: "prod-1", Name: "Widget", Price: decimal.NewFromInt(10), Stock: 10})
	seedExpiredReservation(t, store, "order-1", 3)

	locker := storage.NewMemoryLocker()
	if ok, err := locker.TryLock(context.Background(), sweepLockKey, time.Minute); err != nil || !ok {
		t.Fatalf("failed to pre-acquire lock: ok=%v err=%v", ok, err)
	}

	sweeper := NewSweeper(store, locker, time.Minute, time.Minute, zerolog.Nop())
	count, err := sweeper.SweepOnce(context.Background())
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if count != 0 {
		t.Errorf("expected sweep to skip while lock held, expired %d", count)
	}

	res, _ := store.FindReservationByOrder(context.Background(), "order-1")
	if res.Status != domain.ReservationPending {
		t.Errorf("expected pending, got %s", res.Status)
	}
}

// failOnceInventory fails Expire for a single reservation ID.
type failOnceInventory struct {
	port.InventoryRepository
	failID string
}

func (f *failOnceInventory) Expire(ctx context.Context, reservationID string) (bool, error) {
	if reservationID == f.failID {
		return false, errors.New("storage unavailable")
	}
	return f.InventoryRepository.Expire(ctx, reservationID)
}

func TestSweeper_ContinuesPastSingleFailure(t *testing.T) {
	store := storage.NewMemoryStore()
	store.SeedProduct(domain.Product{ID: "prod-1", Name: "Widget", Price: decimal.NewFromInt(10), Stock: 10})

	bad := seedExpiredReservation(t, store, "order-1", 3)
	seedExpiredReservation(t, store, "order-2", 2)

	sweeper := NewSweeper(&failOnceInventory{InventoryRepository: store, failID: bad.ID},
		storage.NewMemoryLocker(), time.Minute, time.Minute, zerolog.Nop())

	count, err := sweeper.SweepOnce(context.Background())
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 expired despite the failure, got %d", count)
	}

	res, _ := store.FindReservationByOrder(context.Background(), "order-2")
	if res.Status != domain.ReservationExpired {
		t.Errorf("expected expired, got %s", res.Status)
	}
}

func TestSweeper_RunStopsOnCancel(t *testing.T) {
	store := storage.NewMemoryStore()
	sweeper := NewSweeper(store, storage.NewMemoryLocker(), 10*time.Millisecond, time.Minute, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sweeper.Run(ctx)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop after cancel")
	}
}
