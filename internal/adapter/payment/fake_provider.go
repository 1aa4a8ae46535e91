package payment

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rl1809/order-pipeline/internal/core/domain"
	"github.com/rl1809/order-pipeline/internal/port"
)

// FakeProvider simulates a card-network gateway: some latency, a
// configurable decline rate, and a token issued on every attempt so a
// retry of the same charge can be deduplicated. A charge that outlives
// Timeout comes back as a failed result, not an error, per the
// timeout-is-a-decline contract.
type FakeProvider struct {
	method      domain.PaymentMethod
	tokenPrefix string
	latency     time.Duration
	timeout     time.Duration
	successRate int // percent 0..100
}

func NewFakeProvider(method domain.PaymentMethod, tokenPrefix string, latency, timeout time.Duration, successRate int) *FakeProvider {
	return &FakeProvider{
		method:      method,
		tokenPrefix: tokenPrefix,
		latency:     latency,
		timeout:     timeout,
		successRate: successRate,
	}
}

// NewIyzicoProvider mimics the Iyzico sandbox: ~100ms latency, 90%
// approval.
func NewIyzicoProvider(timeout time.Duration) *FakeProvider {
	return NewFakeProvider(domain.MethodIyzico, "IYZ", 100*time.Millisecond, timeout, 90)
}

func NewStripeProvider(timeout time.Duration) *FakeProvider {
	return NewFakeProvider(domain.MethodStripe, "STR", 80*time.Millisecond, timeout, 90)
}

func (p *FakeProvider) Name() domain.PaymentMethod {
	return p.method
}

func (p *FakeProvider) Charge(ctx context.Context, amount decimal.Decimal, metadata map[string]string) (port.ChargeResult, error) {
	token := fmt.Sprintf("%s-%s", p.tokenPrefix, uuid.NewString())

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	select {
	case <-time.After(p.latency):
	case <-ctx.Done():
		return port.ChargeResult{
			Success:        false,
			IdempotencyKey: token,
			Message:        "gateway timed out",
		}, nil
	}

	if rand.Intn(100) >= p.successRate {
		return port.ChargeResult{
			Success:        false,
			IdempotencyKey: token,
			Message:        "insufficient funds or card declined",
		}, nil
	}

	return port.ChargeResult{
		Success:        true,
		IdempotencyKey: token,
		TransactionID:  fmt.Sprintf("%s-TXN-%s", p.tokenPrefix, uuid.NewString()),
		Message:        fmt.Sprintf("payment of %s processed via %s", amount, p.method),
	}, nil
}
