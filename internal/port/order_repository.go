package port

import (
	"context"

	"github.com/rl1809/order-pipeline/internal/core/domain"
)

type OrderRepository interface {
	// Create persists a new order in PENDING/PENDING state
	Create(ctx context.Context, o domain.Order) error

	// AddLines persists the order's line items
	AddLines(ctx context.Context, orderID string, lines []domain.OrderLine) error

	// Finalize moves a PENDING order to its terminal pair exactly once;
	// a second call is a no-op
	Finalize(ctx context.Context, orderID string, status domain.OrderStatus, payment domain.PaymentStatus) error

	// FindByID returns the order with its lines, domain.ErrOrderNotFound when absent
	FindByID(ctx context.Context, orderID string) (*domain.Order, error)

	// FindByUser returns the user's orders, newest first
	FindByUser(ctx context.Context, userID string) ([]domain.Order, error)
}
