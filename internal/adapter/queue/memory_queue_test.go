package queue

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/rl1809/order-pipeline/internal/port"
)

type countingHandler struct {
	handled atomic.Int64
	mu      sync.Mutex
	tasks   []port.Task
}

func (h *countingHandler) Handle(ctx context.Context, task port.Task) error {
	h.mu.Lock()
	h.tasks = append(h.tasks, task)
	h.mu.Unlock()
	h.handled.Add(1)
	return nil
}

func TestMemoryQueue_EnqueueAndDrain(t *testing.T) {
	q := NewMemoryQueue(10)
	handler := &countingHandler{}
	q.StartWorkers(context.Background(), 3, handler, zerolog.Nop())

	for i := 0; i < 10; i++ {
		task := port.Task{Type: port.TaskConfirmReservation, ReservationID: "res", OrderID: "ord"}
		if err := q.Enqueue(context.Background(), task); err != nil {
			t.Fatalf("enqueue %d failed: %v", i, err)
		}
	}
	q.Close()

	if got := handler.handled.Load(); got != 10 {
		t.Errorf("expected 10 handled tasks, got %d", got)
	}
}

func TestMemoryQueue_EnqueueBlocksUntilContextCancel(t *testing.T) {
	q := NewMemoryQueue(1)
	ctx := context.Background()

	if err := q.Enqueue(ctx, port.Task{Type: port.TaskConfirmReservation}); err != nil {
		t.Fatalf("first enqueue failed: %v", err)
	}

	// Queue full, no workers: the second enqueue must give up with the context.
	timed, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	err := q.Enqueue(timed, port.Task{Type: port.TaskReleaseReservation})
	if err == nil {
		t.Fatal("expected context error on full queue")
	}
}

func TestMemoryQueue_CloseIsIdempotent(t *testing.T) {
	q := NewMemoryQueue(1)
	q.StartWorkers(context.Background(), 1, &countingHandler{}, zerolog.Nop())
	q.Close()
	q.Close()
}

func TestMemoryQueue_EnqueueAfterClose(t *testing.T) {
	q := NewMemoryQueue(1)
	q.Close()

	err := q.Enqueue(context.Background(), port.Task{Type: port.TaskConfirmReservation})
	if err != ErrQueueClosed {
		t.Errorf("expected ErrQueueClosed, got %v", err)
	}
}

func TestMemoryQueue_EnqueueRacingCloseDoesNotPanic(t *testing.T) {
	q := NewMemoryQueue(100)
	q.StartWorkers(context.Background(), 2, &countingHandler{}, zerolog.Nop())

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// Either accepted or rejected with ErrQueueClosed, never a
			// send on a closed channel.
			err := q.Enqueue(context.Background(), port.Task{Type: port.TaskReleaseReservation})
			if err != nil && err != ErrQueueClosed {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	q.Close()
	wg.Wait()
}
