package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentMethod string

const (
	MethodIyzico PaymentMethod = "iyzico"
	MethodStripe PaymentMethod = "stripe"
)

type AttemptStatus string

const (
	AttemptPending AttemptStatus = "pending"
	AttemptSuccess AttemptStatus = "success"
	AttemptFailed  AttemptStatus = "failed"
)

// Payment records one charge attempt against the gateway. IdempotencyKey
// is issued by the gateway (also on failure) and is unique system-wide:
// a retried charge that comes back with a known key reuses the recorded
// outcome instead of creating a second financial effect.
type Payment struct {
	ID             string
	IdempotencyKey string
	OrderID        string
	Method         PaymentMethod
	Amount         decimal.Decimal
	Attempt        int
	Status         AttemptStatus
	TransactionID  string
	ErrorMessage   string
	CreatedAt      time.Time
	ProcessedAt    *time.Time
}

// Terminal reports whether the attempt already has a final outcome.
func (p Payment) Terminal() bool {
	return p.Status == AttemptSuccess || p.Status == AttemptFailed
}
