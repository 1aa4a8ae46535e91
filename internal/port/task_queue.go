package port

import "context"

type TaskType string

const (
	TaskConfirmReservation TaskType = "confirm_reservation"
	TaskReleaseReservation TaskType = "release_reservation"
)

// Task is one compensation unit of work. Delivery is at-least-once, so
// handlers must tolerate duplicates.
type Task struct {
	Type          TaskType `json:"type"`
	ReservationID string   `json:"reservation_id"`
	OrderID       string   `json:"order_id"`
}

type TaskQueue interface {
	Enqueue(ctx context.Context, task Task) error
}
