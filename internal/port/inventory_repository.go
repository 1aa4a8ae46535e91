package port

import (
	"context"
	"time"

	"github.com/rl1809/order-pipeline/internal/core/domain"
)

type InventoryRepository interface {
	// FindProduct retrieves a product by ID, nil when absent
	FindProduct(ctx context.Context, productID string) (*domain.Product, error)

	// Reserve atomically checks available stock and inserts a PENDING
	// reservation; returns domain.ErrInsufficientStock when the check fails
	// and domain.ErrReservationExists when the order already holds one
	Reserve(ctx context.Context, r domain.Reservation) error

	// Confirm decrements product stock and marks the reservation confirmed
	// in one atomic step; no-op when the reservation is not PENDING
	Confirm(ctx context.Context, reservationID string) (bool, error)

	// Release marks a PENDING reservation released without touching stock
	Release(ctx context.Context, reservationID string) (bool, error)

	// Expire marks a PENDING reservation past its deadline as expired
	Expire(ctx context.Context, reservationID string) (bool, error)

	// ListExpired returns PENDING reservations with expires_at before now
	ListExpired(ctx context.Context, now time.Time) ([]domain.Reservation, error)

	// FindReservationByOrder returns the order's reservation, nil when absent
	FindReservationByOrder(ctx context.Context, orderID string) (*domain.Reservation, error)

	// AvailableStock is total stock minus quantity held by PENDING reservations
	AvailableStock(ctx context.Context, productID string) (int, error)
}
