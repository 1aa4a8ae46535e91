package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"

	"github.com/rl1809/order-pipeline/internal/port"
)

// KafkaQueue publishes compensation tasks to a Kafka topic. Messages
// are keyed by order id so every task for one order lands on the same
// partition and is consumed in order.
type KafkaQueue struct {
	writer *kafka.Writer
}

func NewKafkaQueue(brokers []string, topic string) *KafkaQueue {
	return &KafkaQueue{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
		},
	}
}

func (q *KafkaQueue) Enqueue(ctx context.Context, task port.Task) error {
	payload, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("marshal task: %w", err)
	}

	err = q.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(task.OrderID),
		Value: payload,
	})
	if err != nil {
		return fmt.Errorf("write task to kafka: %w", err)
	}
	return nil
}

func (q *KafkaQueue) Close() error {
	return q.writer.Close()
}

var _ port.TaskQueue = (*KafkaQueue)(nil)
