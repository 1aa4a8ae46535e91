package domain

import (
	"time"

	"github.com/google/uuid"
)

type ReservationStatus string

const (
	ReservationPending   ReservationStatus = "pending"
	ReservationConfirmed ReservationStatus = "confirmed"
	ReservationReleased  ReservationStatus = "released"
	ReservationExpired   ReservationStatus = "expired"
)

// DefaultReservationTTL is how long a PENDING reservation holds stock
// before the sweeper may expire it.
const DefaultReservationTTL = 10 * time.Minute

// Reservation is a temporary hold against available stock for one order.
// It is created pending and moves to exactly one terminal status:
// confirmed (stock decremented), released (payment failed) or expired
// (abandoned past ExpiresAt).
type Reservation struct {
	ID        string
	ProductID string
	OrderID   string
	Quantity  int
	Status    ReservationStatus
	ExpiresAt time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

func NewReservation(productID, orderID string, quantity int, ttl time.Duration) Reservation {
	now := time.Now().UTC()
	return Reservation{
		ID:        uuid.NewString(),
		ProductID: productID,
		OrderID:   orderID,
		Quantity:  quantity,
		Status:    ReservationPending,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (r Reservation) IsExpired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}

// CanConfirm reports whether the reservation may still be turned into a
// real stock decrement. Terminal statuses never transition again.
func (r Reservation) CanConfirm() bool {
	return r.Status == ReservationPending
}

func (r Reservation) CanRelease() bool {
	return r.Status == ReservationPending
}
