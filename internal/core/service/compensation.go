package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/rl1809/order-pipeline/internal/port"
)

var defaultCompensationBackoff = []time.Duration{5 * time.Second, 15 * time.Second, 30 * time.Second}

// CompensationHandler resolves reservations after the payment outcome is
// known. Delivery is at-least-once, so both operations lean on the
// repository's PENDING-only transitions: a duplicate task finds the
// reservation already terminal and does nothing.
type CompensationHandler struct {
	inventory port.InventoryRepository
	backoff   []time.Duration
	sleep     func(d time.Duration)
	logger    zerolog.Logger
}

func NewCompensationHandler(inventory port.InventoryRepository, logger zerolog.Logger) *CompensationHandler {
	return &CompensationHandler{
		inventory: inventory,
		backoff:   defaultCompensationBackoff,
		sleep:     time.Sleep,
		logger:    logger,
	}
}

// WithRetrySchedule replaces the 5/15/30s default, mainly for tests.
func (h *CompensationHandler) WithRetrySchedule(backoff []time.Duration, sleep func(d time.Duration)) *CompensationHandler {
	h.backoff = backoff
	if sleep != nil {
		h.sleep = sleep
	}
	return h
}

// Handle runs one task to completion, retrying transient failures per
// the backoff schedule before reporting the task permanently failed.
func (h *CompensationHandler) Handle(ctx context.Context, task port.Task) error {
	var lastErr error
	attempts := len(h.backoff) // one try per backoff slot

	for attempt := 1; attempt <= attempts; attempt++ {
		lastErr = h.handleOnce(ctx, task)
		if lastErr == nil {
			return nil
		}
		h.logger.Warn().Err(lastErr).
			Str("task_type", string(task.Type)).
			Str("reservation_id", task.ReservationID).
			Int("attempt", attempt).
			Msg("compensation attempt failed")
		if attempt < attempts {
			h.sleep(h.backoff[attempt-1])
		}
	}

	h.logger.Error().Err(lastErr).
		Str("task_type", string(task.Type)).
		Str("reservation_id", task.ReservationID).
		Str("order_id", task.OrderID).
		Msg("compensation task permanently failed")
	return fmt.Errorf("compensation task %s for reservation %s: %w", task.Type, task.ReservationID, lastErr)
}

func (h *CompensationHandler) handleOnce(ctx context.Context, task port.Task) error {
	var (
		applied bool
		err     error
	)

	switch task.Type {
	case port.TaskConfirmReservation:
		applied, err = h.inventory.Confirm(ctx, task.ReservationID)
	case port.TaskReleaseReservation:
		applied, err = h.inventory.Release(ctx, task.ReservationID)
	default:
		return fmt.Errorf("unknown task type %q", task.Type)
	}
	if err != nil {
		return err
	}

	if !applied {
		// Already confirmed, released or expired. Duplicate delivery is
		// expected, so this is informational rather than an error.
		h.logger.Info().
			Str("task_type", string(task.Type)).
			Str("reservation_id", task.ReservationID).
			Str("order_id", task.OrderID).
			Msg("reservation already resolved, skipping")
		return nil
	}

	h.logger.Info().
		Str("task_type", string(task.Type)).
		Str("reservation_id", task.ReservationID).
		Str("order_id", task.OrderID).
		Msg("reservation resolved")
	return nil
}

// TaskHandler consumes tasks delivered by a queue.
type TaskHandler interface {
	Handle(ctx context.Context, task port.Task) error
}

var _ TaskHandler = (*CompensationHandler)(nil)
