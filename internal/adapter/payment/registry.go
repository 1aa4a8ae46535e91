package payment

import (
	"fmt"

	"github.com/rl1809/order-pipeline/internal/core/domain"
	"github.com/rl1809/order-pipeline/internal/port"
)

// Registry maps payment methods to their providers. Adding a method
// means registering another provider; the orchestrator never changes.
type Registry struct {
	providers map[domain.PaymentMethod]port.PaymentProvider
}

func NewRegistry(providers ...port.PaymentProvider) *Registry {
	r := &Registry{providers: make(map[domain.PaymentMethod]port.PaymentProvider)}
	for _, p := range providers {
		r.Register(p)
	}
	return r
}

func (r *Registry) Register(p port.PaymentProvider) {
	r.providers[p.Name()] = p
}

func (r *Registry) Get(method domain.PaymentMethod) (port.PaymentProvider, error) {
	p, ok := r.providers[method]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedPaymentMethod, method)
	}
	return p, nil
}

// Methods lists the registered payment methods.
func (r *Registry) Methods() []domain.PaymentMethod {
	out := make([]domain.PaymentMethod, 0, len(r.providers))
	for m := range r.providers {
		out = append(out, m)
	}
	return out
}
