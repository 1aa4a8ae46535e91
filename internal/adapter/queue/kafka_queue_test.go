package queue

import (
	"context"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/rl1809/order-pipeline/internal/port"
)

func getKafkaBrokers(t *testing.T) []string {
	env := os.Getenv("KAFKA_BROKERS")
	if env == "" {
		t.Skip("Kafka not available: KAFKA_BROKERS not set")
	}
	return strings.Split(env, ",")
}

type recordingHandler struct {
	mu    sync.Mutex
	tasks []port.Task
	seen  chan struct{}
}

func (h *recordingHandler) Handle(ctx context.Context, task port.Task) error {
	h.mu.Lock()
	h.tasks = append(h.tasks, task)
	h.mu.Unlock()
	select {
	case h.seen <- struct{}{}:
	default:
	}
	return nil
}

func TestKafkaQueue_RoundTrip(t *testing.T) {
	brokers := getKafkaBrokers(t)
	topic := "order-pipeline-queue-test"
	groupID := "order-pipeline-queue-test-" + time.Now().Format("150405.000")

	q := NewKafkaQueue(brokers, topic)
	defer q.Close()

	handler := &recordingHandler{seen: make(chan struct{}, 1)}
	worker := NewKafkaWorker(brokers, topic, groupID, handler, zerolog.Nop())
	worker.Start(context.Background())
	defer worker.Stop()

	task := port.Task{Type: port.TaskConfirmReservation, ReservationID: "res-1", OrderID: "ord-1"}
	if err := q.Enqueue(context.Background(), task); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	select {
	case <-handler.seen:
	case <-time.After(30 * time.Second):
		t.Fatal("task was not consumed")
	}

	handler.mu.Lock()
	defer handler.mu.Unlock()
	if len(handler.tasks) == 0 || handler.tasks[0].ReservationID != "res-1" {
		t.Errorf("unexpected tasks %+v", handler.tasks)
	}
}

func TestKafkaWorker_StopWithoutCancel(t *testing.T) {
	brokers := getKafkaBrokers(t)
	topic := "order-pipeline-queue-test"
	groupID := "order-pipeline-stop-test-" + time.Now().Format("150405.000")

	handler := &recordingHandler{seen: make(chan struct{}, 1)}
	worker := NewKafkaWorker(brokers, topic, groupID, handler, zerolog.Nop())

	// The context is never cancelled; closing the reader alone must end
	// the fetch loop.
	worker.Start(context.Background())

	done := make(chan error, 1)
	go func() { done <- worker.Stop() }()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Stop returned error: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("worker did not stop after reader close")
	}
}
