package port

import (
	"context"

	"github.com/rl1809/order-pipeline/internal/core/domain"
	"github.com/shopspring/decimal"
)

// ChargeResult is the gateway's answer to one charge attempt. The
// idempotency key is present even when the charge failed so the attempt
// can be deduplicated on retry.
type ChargeResult struct {
	Success        bool
	IdempotencyKey string
	TransactionID  string
	Message        string
}

// PaymentProvider is one payment method's gateway integration. Charge
// applies its own timeout; a timed-out charge comes back as a failed
// result, not an error.
type PaymentProvider interface {
	Name() domain.PaymentMethod
	Charge(ctx context.Context, amount decimal.Decimal, metadata map[string]string) (ChargeResult, error)
}

// ProviderRegistry resolves a provider for a payment method; returns
// domain.ErrUnsupportedPaymentMethod for unregistered methods.
type ProviderRegistry interface {
	Get(method domain.PaymentMethod) (PaymentProvider, error)
}
