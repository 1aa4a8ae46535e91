package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rl1809/order-pipeline/internal/core/domain"
	"github.com/rl1809/order-pipeline/internal/port"
)

type memTxKey struct{}

// MemoryStore backs all three ledgers with maps behind one mutex. It
// exists for unit tests and the stress driver; WithinTx snapshots the
// whole state and restores it on error, giving real rollback semantics
// for the reserve-retry path.
type MemoryStore struct {
	mu           sync.Mutex
	products     map[string]domain.Product
	reservations map[string]domain.Reservation
	resByOrder   map[string]string
	orders       map[string]domain.Order
	lines        map[string][]domain.OrderLine
	payments     map[string]domain.Payment
	payByKey     map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		products:     make(map[string]domain.Product),
		reservations: make(map[string]domain.Reservation),
		resByOrder:   make(map[string]string),
		orders:       make(map[string]domain.Order),
		lines:        make(map[string][]domain.OrderLine),
		payments:     make(map[string]domain.Payment),
		payByKey:     make(map[string]string),
	}
}

// lock takes the store mutex unless ctx already runs inside WithinTx,
// which holds it for the whole transaction.
func (s *MemoryStore) lock(ctx context.Context) func() {
	if ctx.Value(memTxKey{}) != nil {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *MemoryStore) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.clone()
	if err := fn(context.WithValue(ctx, memTxKey{}, true)); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

func (s *MemoryStore) clone() *MemoryStore {
	c := NewMemoryStore()
	for k, v := range s.products {
		c.products[k] = v
	}
	for k, v := range s.reservations {
		c.reservations[k] = v
	}
	for k, v := range s.resByOrder {
		c.resByOrder[k] = v
	}
	for k, v := range s.orders {
		c.orders[k] = v
	}
	for k, v := range s.lines {
		c.lines[k] = append([]domain.OrderLine(nil), v...)
	}
	for k, v := range s.payments {
		c.payments[k] = v
	}
	for k, v := range s.payByKey {
		c.payByKey[k] = v
	}
	return c
}

func (s *MemoryStore) restore(snap *MemoryStore) {
	s.products = snap.products
	s.reservations = snap.reservations
	s.resByOrder = snap.resByOrder
	s.orders = snap.orders
	s.lines = snap.lines
	s.payments = snap.payments
	s.payByKey = snap.payByKey
}

// SeedProduct inserts or replaces a product.
func (s *MemoryStore) SeedProduct(p domain.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[p.ID] = p
}

func (s *MemoryStore) FindProduct(ctx context.Context, productID string) (*domain.Product, error) {
	defer s.lock(ctx)()
	p, ok := s.products[productID]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (s *MemoryStore) Reserve(ctx context.Context, r domain.Reservation) error {
	defer s.lock(ctx)()

	if _, exists := s.resByOrder[r.OrderID]; exists {
		return fmt.Errorf("%w: order %s", domain.ErrReservationExists, r.OrderID)
	}
	p, ok := s.products[r.ProductID]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrProductNotFound, r.ProductID)
	}
	if p.Stock-s.pendingQuantity(r.ProductID) < r.Quantity {
		return fmt.Errorf("%w: product %s", domain.ErrInsufficientStock, r.ProductID)
	}

	s.reservations[r.ID] = r
	s.resByOrder[r.OrderID] = r.ID
	return nil
}

func (s *MemoryStore) pendingQuantity(productID string) int {
	total := 0
	for _, r := range s.reservations {
		if r.ProductID == productID && r.Status == domain.ReservationPending {
			total += r.Quantity
		}
	}
	return total
}

func (s *MemoryStore) Confirm(ctx context.Context, reservationID string) (bool, error) {
	defer s.lock(ctx)()

	r, ok := s.reservations[reservationID]
	if !ok {
		return false, fmt.Errorf("%w: %s", domain.ErrReservationNotFound, reservationID)
	}
	if !r.CanConfirm() {
		return false, nil
	}

	p := s.products[r.ProductID]
	p.Stock -= r.Quantity
	p.UpdatedAt = time.Now().UTC()
	s.products[r.ProductID] = p

	r.Status = domain.ReservationConfirmed
	r.UpdatedAt = time.Now().UTC()
	s.reservations[reservationID] = r
	return true, nil
}

func (s *MemoryStore) Release(ctx context.Context, reservationID string) (bool, error) {
	defer s.lock(ctx)()

	r, ok := s.reservations[reservationID]
	if !ok {
		return false, fmt.Errorf("%w: %s", domain.ErrReservationNotFound, reservationID)
	}
	if !r.CanRelease() {
		return false, nil
	}

	r.Status = domain.ReservationReleased
	r.UpdatedAt = time.Now().UTC()
	s.reservations[reservationID] = r
	return true, nil
}

func (s *MemoryStore) Expire(ctx context.Context, reservationID string) (bool, error) {
	defer s.lock(ctx)()

	r, ok := s.reservations[reservationID]
	if !ok {
		return false, fmt.Errorf("%w: %s", domain.ErrReservationNotFound, reservationID)
	}
	if r.Status != domain.ReservationPending || !r.IsExpired(time.Now().UTC()) {
		return false, nil
	}

	r.Status = domain.ReservationExpired
	r.UpdatedAt = time.Now().UTC()
	s.reservations[reservationID] = r
	return true, nil
}

func (s *MemoryStore) ListExpired(ctx context.Context, now time.Time) ([]domain.Reservation, error) {
	defer s.lock(ctx)()

	var expired []domain.Reservation
	for _, r := range s.reservations {
		if r.Status == domain.ReservationPending && r.IsExpired(now) {
			expired = append(expired, r)
		}
	}
	sort.Slice(expired, func(i, j int) bool { return expired[i].ExpiresAt.Before(expired[j].ExpiresAt) })
	return expired, nil
}

func (s *MemoryStore) FindReservationByOrder(ctx context.Context, orderID string) (*domain.Reservation, error) {
	defer s.lock(ctx)()

	id, ok := s.resByOrder[orderID]
	if !ok {
		return nil, nil
	}
	r := s.reservations[id]
	return &r, nil
}

func (s *MemoryStore) AvailableStock(ctx context.Context, productID string) (int, error) {
	defer s.lock(ctx)()

	p, ok := s.products[productID]
	if !ok {
		return 0, fmt.Errorf("%w: %s", domain.ErrProductNotFound, productID)
	}
	return p.Stock - s.pendingQuantity(productID), nil
}

func (s *MemoryStore) Create(ctx context.Context, o domain.Order) error {
	defer s.lock(ctx)()

	if _, exists := s.orders[o.ID]; exists {
		return fmt.Errorf("order %s already exists", o.ID)
	}
	o.Lines = nil
	s.orders[o.ID] = o
	return nil
}

func (s *MemoryStore) AddLines(ctx context.Context, orderID string, lines []domain.OrderLine) error {
	defer s.lock(ctx)()

	if _, ok := s.orders[orderID]; !ok {
		return fmt.Errorf("%w: %s", domain.ErrOrderNotFound, orderID)
	}
	s.lines[orderID] = append(s.lines[orderID], lines...)
	return nil
}

func (s *MemoryStore) Finalize(ctx context.Context, orderID string, status domain.OrderStatus, payment domain.PaymentStatus) error {
	defer s.lock(ctx)()

	o, ok := s.orders[orderID]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrOrderNotFound, orderID)
	}
	if o.Status != domain.OrderStatusPending {
		return nil
	}
	o.Status = status
	o.PaymentStatus = payment
	o.UpdatedAt = time.Now().UTC()
	s.orders[orderID] = o
	return nil
}

func (s *MemoryStore) FindByID(ctx context.Context, orderID string) (*domain.Order, error) {
	defer s.lock(ctx)()

	o, ok := s.orders[orderID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrOrderNotFound, orderID)
	}
	o.Lines = append([]domain.OrderLine(nil), s.lines[orderID]...)
	return &o, nil
}

func (s *MemoryStore) FindByUser(ctx context.Context, userID string) ([]domain.Order, error) {
	defer s.lock(ctx)()

	var out []domain.Order
	for id, o := range s.orders {
		if o.UserID != userID {
			continue
		}
		o.Lines = append([]domain.OrderLine(nil), s.lines[id]...)
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) FindByIdempotencyKey(ctx context.Context, key string) (*domain.Payment, error) {
	defer s.lock(ctx)()

	id, ok := s.payByKey[key]
	if !ok {
		return nil, nil
	}
	p := s.payments[id]
	return &p, nil
}

func (s *MemoryStore) Record(ctx context.Context, p domain.Payment) error {
	defer s.lock(ctx)()

	if _, exists := s.payByKey[p.IdempotencyKey]; exists {
		return fmt.Errorf("payment with idempotency key %s already recorded", p.IdempotencyKey)
	}
	s.payments[p.ID] = p
	s.payByKey[p.IdempotencyKey] = p.ID
	return nil
}

func (s *MemoryStore) FindByOrder(ctx context.Context, orderID string) ([]domain.Payment, error) {
	defer s.lock(ctx)()

	var out []domain.Payment
	for _, p := range s.payments {
		if p.OrderID == orderID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Attempt < out[j].Attempt })
	return out, nil
}

func (s *MemoryStore) NextAttemptNumber(ctx context.Context, orderID string) (int, error) {
	defer s.lock(ctx)()

	n := 0
	for _, p := range s.payments {
		if p.OrderID == orderID {
			n++
		}
	}
	return n + 1, nil
}

var (
	_ port.InventoryRepository = (*MemoryStore)(nil)
	_ port.OrderRepository     = (*MemoryStore)(nil)
	_ port.PaymentRepository   = (*MemoryStore)(nil)
	_ port.TxManager           = (*MemoryStore)(nil)
)
