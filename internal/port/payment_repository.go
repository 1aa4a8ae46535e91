package port

import (
	"context"

	"github.com/rl1809/order-pipeline/internal/core/domain"
)

type PaymentRepository interface {
	// FindByIdempotencyKey returns the attempt recorded for a gateway
	// token, nil when the token has never been seen
	FindByIdempotencyKey(ctx context.Context, key string) (*domain.Payment, error)

	// Record persists one charge attempt
	Record(ctx context.Context, p domain.Payment) error

	// FindByOrder returns all attempts for an order, oldest first
	FindByOrder(ctx context.Context, orderID string) ([]domain.Payment, error)

	// NextAttemptNumber returns 1 + the number of attempts already recorded
	NextAttemptNumber(ctx context.Context, orderID string) (int, error)
}
