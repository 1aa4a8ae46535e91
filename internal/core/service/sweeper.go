package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/rl1809/order-pipeline/internal/port"
)

const sweepLockKey = "lock:reservation-sweep"

// Sweeper expires abandoned PENDING reservations on a fixed interval.
// The cluster-wide lock keeps at most one sweep active at a time; an
// instance that fails to take the lock simply waits for the next tick.
type Sweeper struct {
	inventory port.InventoryRepository
	locker    port.Locker
	interval  time.Duration
	lockTTL   time.Duration
	logger    zerolog.Logger
}

func NewSweeper(inventory port.InventoryRepository, locker port.Locker, interval, lockTTL time.Duration, logger zerolog.Logger) *Sweeper {
	return &Sweeper{
		inventory: inventory,
		locker:    locker,
		interval:  interval,
		lockTTL:   lockTTL,
		logger:    logger,
	}
}

// Run blocks, sweeping every interval until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("sweeper stopped")
			return
		case <-ticker.C:
			if _, err := s.SweepOnce(ctx); err != nil {
				s.logger.Error().Err(err).Msg("sweep failed")
			}
		}
	}
}

// SweepOnce expires every PENDING reservation past its deadline and
// returns how many were expired. A failure on one reservation is logged
// and the rest of the set is still processed.
func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	acquired, err := s.locker.TryLock(ctx, sweepLockKey, s.lockTTL)
	if err != nil {
		return 0, err
	}
	if !acquired {
		s.logger.Debug().Msg("another sweep in progress, skipping")
		return 0, nil
	}
	defer func() {
		if err := s.locker.Unlock(ctx, sweepLockKey); err != nil {
			s.logger.Warn().Err(err).Msg("failed to release sweep lock")
		}
	}()

	expired, err := s.inventory.ListExpired(ctx, time.Now().UTC())
	if err != nil {
		return 0, err
	}
	if len(expired) == 0 {
		return 0, nil
	}

	count := 0
	for _, r := range expired {
		applied, err := s.inventory.Expire(ctx, r.ID)
		if err != nil {
			s.logger.Error().Err(err).
				Str("reservation_id", r.ID).
				Str("order_id", r.OrderID).
				Msg("failed to expire reservation")
			continue
		}
		if !applied {
			// Confirmed or released between the list and the update.
			continue
		}
		count++
		s.logger.Info().
			Str("reservation_id", r.ID).
			Str("order_id", r.OrderID).
			Str("product_id", r.ProductID).
			Int("quantity", r.Quantity).
			Msg("reservation expired")
	}

	s.logger.Info().Int("expired", count).Msg("reservation sweep completed")
	return count, nil
}
