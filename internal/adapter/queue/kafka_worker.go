package queue

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/rl1809/order-pipeline/internal/core/service"
	"github.com/rl1809/order-pipeline/internal/port"
)

// KafkaWorker consumes compensation tasks from the queue topic and
// drives the handler. Offsets are committed after handling, so a crash
// mid-task redelivers it; the handler's PENDING-only transitions make
// the duplicate harmless.
type KafkaWorker struct {
	reader  *kafka.Reader
	handler service.TaskHandler
	logger  zerolog.Logger
	wg      sync.WaitGroup
}

func NewKafkaWorker(brokers []string, topic, groupID string, handler service.TaskHandler, logger zerolog.Logger) *KafkaWorker {
	return &KafkaWorker{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers: brokers,
			Topic:   topic,
			GroupID: groupID,
		}),
		handler: handler,
		logger:  logger,
	}
}

func (w *KafkaWorker) Start(ctx context.Context) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.logger.Info().Str("topic", w.reader.Config().Topic).Msg("kafka worker started")

		for {
			msg, err := w.reader.FetchMessage(ctx)
			if err != nil {
				// FetchMessage returns io.EOF once the reader is closed,
				// which is how Stop ends the loop without a context cancel.
				if ctx.Err() != nil || errors.Is(err, io.EOF) {
					return
				}
				w.logger.Error().Err(err).Msg("fetch message failed, retrying")
				time.Sleep(time.Second)
				continue
			}

			w.processMessage(ctx, msg)

			if err := w.reader.CommitMessages(ctx, msg); err != nil {
				w.logger.Error().Err(err).Msg("commit offset failed")
			}
		}
	}()
}

func (w *KafkaWorker) processMessage(ctx context.Context, msg kafka.Message) {
	var task port.Task
	if err := json.Unmarshal(msg.Value, &task); err != nil {
		// Malformed payload can never succeed; skip it rather than block
		// the partition.
		w.logger.Error().Err(err).Msg("unmarshal task failed, skipping message")
		return
	}

	if err := w.handler.Handle(ctx, task); err != nil {
		w.logger.Error().Err(err).
			Str("task_type", string(task.Type)).
			Str("order_id", task.OrderID).
			Msg("task handling failed")
	}
}

func (w *KafkaWorker) Stop() error {
	err := w.reader.Close()
	w.wg.Wait()
	w.logger.Info().Msg("kafka worker stopped")
	return err
}
