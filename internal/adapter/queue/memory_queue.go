package queue

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/rl1809/order-pipeline/internal/core/service"
	"github.com/rl1809/order-pipeline/internal/port"
)

// ErrQueueClosed is returned by Enqueue after Close.
var ErrQueueClosed = errors.New("task queue closed")

// MemoryQueue is the in-process task queue: a buffered channel drained
// by a worker pool. It is the default wiring when no Kafka brokers are
// configured, and the queue used by tests and the stress driver.
type MemoryQueue struct {
	tasks chan port.Task
	wg    sync.WaitGroup
	once  sync.Once

	mu     sync.RWMutex
	closed bool
}

func NewMemoryQueue(size int) *MemoryQueue {
	return &MemoryQueue{tasks: make(chan port.Task, size)}
}

// Enqueue holds a read lock for the duration of the send so Close can
// never close the channel under an in-flight send.
func (q *MemoryQueue) Enqueue(ctx context.Context, task port.Task) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}

	select {
	case q.tasks <- task:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Tasks exposes the channel for tests that drain it directly.
func (q *MemoryQueue) Tasks() <-chan port.Task {
	return q.tasks
}

// StartWorkers drains the queue with n goroutines until Close.
func (q *MemoryQueue) StartWorkers(ctx context.Context, n int, handler service.TaskHandler, logger zerolog.Logger) {
	for i := 0; i < n; i++ {
		q.wg.Add(1)
		go func(id int) {
			defer q.wg.Done()
			for task := range q.tasks {
				if err := handler.Handle(ctx, task); err != nil {
					logger.Error().Err(err).
						Int("worker", id).
						Str("task_type", string(task.Type)).
						Msg("task handling failed")
				}
			}
		}(i)
	}
	logger.Info().Int("workers", n).Msg("memory queue workers started")
}

// Close stops accepting tasks and waits for the workers to drain.
func (q *MemoryQueue) Close() {
	q.once.Do(func() {
		q.mu.Lock()
		q.closed = true
		close(q.tasks)
		q.mu.Unlock()
	})
	q.wg.Wait()
}

var _ port.TaskQueue = (*MemoryQueue)(nil)
