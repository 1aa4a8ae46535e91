package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/rl1809/order-pipeline/internal/core/domain"
	"github.com/rl1809/order-pipeline/internal/port"
)

const (
	defaultMaxReserveAttempts = 3
	defaultReserveBackoffUnit = 50 * time.Millisecond
)

// FulfillmentOptions tune the saga's retry behaviour. The zero value
// gives 3 reserve attempts with 50ms*attempt linear backoff and the
// default 10 minute reservation TTL. Sleep is injectable so tests run
// without real delay.
type FulfillmentOptions struct {
	ReservationTTL     time.Duration
	MaxReserveAttempts int
	ReserveBackoff     func(attempt int) time.Duration
	Sleep              func(d time.Duration)
}

func (o *FulfillmentOptions) withDefaults() {
	if o.ReservationTTL <= 0 {
		o.ReservationTTL = domain.DefaultReservationTTL
	}
	if o.MaxReserveAttempts <= 0 {
		o.MaxReserveAttempts = defaultMaxReserveAttempts
	}
	if o.ReserveBackoff == nil {
		o.ReserveBackoff = func(attempt int) time.Duration {
			return time.Duration(attempt) * defaultReserveBackoffUnit
		}
	}
	if o.Sleep == nil {
		o.Sleep = time.Sleep
	}
}

// FulfillmentService coordinates one purchase end to end: reserve stock
// and create the order in a short local transaction, charge the gateway
// outside any transaction, finalize the order in a second transaction,
// then hand the reservation's fate (confirm or release) to the task
// queue.
type FulfillmentService struct {
	inventory port.InventoryRepository
	orders    port.OrderRepository
	payments  port.PaymentRepository
	gateway   port.ProviderRegistry
	queue     port.TaskQueue
	tx        port.TxManager
	opts      FulfillmentOptions
	logger    zerolog.Logger
}

func NewFulfillmentService(
	inventory port.InventoryRepository,
	orders port.OrderRepository,
	payments port.PaymentRepository,
	gateway port.ProviderRegistry,
	queue port.TaskQueue,
	tx port.TxManager,
	opts FulfillmentOptions,
	logger zerolog.Logger,
) *FulfillmentService {
	opts.withDefaults()
	return &FulfillmentService{
		inventory: inventory,
		orders:    orders,
		payments:  payments,
		gateway:   gateway,
		queue:     queue,
		tx:        tx,
		opts:      opts,
		logger:    logger,
	}
}

// PlaceOrder runs the fulfillment saga for one purchase. A declined or
// timed-out payment is a normal outcome: the returned order is
// failed/failed and err is nil. Errors are limited to fatal
// preconditions (unknown product, invalid line item, unsupported
// payment method) and stock exhaustion after retries.
func (s *FulfillmentService) PlaceOrder(ctx context.Context, userID, productID string, quantity int, method domain.PaymentMethod) (*domain.Order, error) {
	product, err := s.inventory.FindProduct(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("load product: %w", err)
	}
	if product == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrProductNotFound, productID)
	}

	total, err := domain.NewLineTotal(product.Price, quantity)
	if err != nil {
		return nil, err
	}

	// Resolve the provider before any writes so an unsupported method
	// fails fast without leaving a reservation behind.
	provider, err := s.gateway.Get(method)
	if err != nil {
		return nil, err
	}

	order := domain.Order{
		ID:            uuid.NewString(),
		Number:        domain.GenerateOrderNumber(),
		UserID:        userID,
		Status:        domain.OrderStatusPending,
		PaymentStatus: domain.PaymentPending,
		TotalAmount:   total,
		CreatedAt:     time.Now().UTC(),
	}
	line := domain.OrderLine{
		OrderID:     order.ID,
		ProductID:   product.ID,
		ProductName: product.Name,
		UnitPrice:   product.Price,
		Quantity:    quantity,
		LineTotal:   total,
	}

	reservation, err := s.reserveAndCreate(ctx, order, line)
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("order_id", order.ID).
		Str("order_number", order.Number).
		Str("reservation_id", reservation.ID).
		Msg("stock reserved, order created")

	// The charge is the one slow call in the saga and must never hold a
	// transaction or row lock.
	result := s.charge(ctx, provider, order, total, method)

	paid, err := s.settlePayment(ctx, order, method, total, result)
	if err != nil {
		return nil, err
	}

	finalStatus, finalPayment := domain.OrderStatusFailed, domain.PaymentFailed
	taskType := port.TaskReleaseReservation
	if paid {
		finalStatus, finalPayment = domain.OrderStatusCompleted, domain.PaymentPaid
		taskType = port.TaskConfirmReservation
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		return s.orders.Finalize(ctx, order.ID, finalStatus, finalPayment)
	})
	if err != nil {
		return nil, fmt.Errorf("finalize order %s: %w", order.ID, err)
	}

	// Enqueued only after finalize committed. If the enqueue is lost the
	// reservation stays PENDING until the sweeper expires it, which is
	// the audited failure mode, so the request itself still succeeds.
	task := port.Task{Type: taskType, ReservationID: reservation.ID, OrderID: order.ID}
	if err := s.queue.Enqueue(ctx, task); err != nil {
		s.logger.Error().Err(err).
			Str("order_id", order.ID).
			Str("task_type", string(taskType)).
			Msg("failed to enqueue compensation task, sweeper will expire the reservation")
	}

	return s.orders.FindByID(ctx, order.ID)
}

// OrdersForUser returns the user's orders with lines, newest first.
func (s *FulfillmentService) OrdersForUser(ctx context.Context, userID string) ([]domain.Order, error) {
	return s.orders.FindByUser(ctx, userID)
}

// PaymentHistory returns every charge attempt recorded for an order.
func (s *FulfillmentService) PaymentHistory(ctx context.Context, orderID string) ([]domain.Payment, error) {
	return s.payments.FindByOrder(ctx, orderID)
}

// reserveAndCreate runs transaction A: insert the order, take the stock
// reservation, insert the lines. Insufficient stock aborts the whole
// transaction and is retried with linear backoff against a fresh read;
// any other failure is surfaced as-is.
func (s *FulfillmentService) reserveAndCreate(ctx context.Context, order domain.Order, line domain.OrderLine) (domain.Reservation, error) {
	var reservation domain.Reservation

	for attempt := 1; attempt <= s.opts.MaxReserveAttempts; attempt++ {
		reservation = domain.NewReservation(line.ProductID, order.ID, line.Quantity, s.opts.ReservationTTL)

		err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
			if err := s.orders.Create(ctx, order); err != nil {
				return fmt.Errorf("create order: %w", err)
			}
			if err := s.inventory.Reserve(ctx, reservation); err != nil {
				return err
			}
			if err := s.orders.AddLines(ctx, order.ID, []domain.OrderLine{line}); err != nil {
				return fmt.Errorf("add order lines: %w", err)
			}
			return nil
		})
		if err == nil {
			return reservation, nil
		}
		if !errors.Is(err, domain.ErrInsufficientStock) {
			return domain.Reservation{}, err
		}
		if attempt == s.opts.MaxReserveAttempts {
			s.logger.Warn().
				Str("product_id", line.ProductID).
				Int("quantity", line.Quantity).
				Int("attempts", attempt).
				Msg("stock exhausted after retries")
			return domain.Reservation{}, err
		}

		s.opts.Sleep(s.opts.ReserveBackoff(attempt))
	}

	return domain.Reservation{}, domain.ErrInsufficientStock
}

func (s *FulfillmentService) charge(ctx context.Context, provider port.PaymentProvider, order domain.Order, amount decimal.Decimal, method domain.PaymentMethod) port.ChargeResult {
	result, err := provider.Charge(ctx, amount, map[string]string{
		"order_id":     order.ID,
		"order_number": order.Number,
		"user_id":      order.UserID,
	})
	if err != nil {
		// Gateway transport errors count as a declined payment; the
		// idempotency token (when present) still dedupes a later retry.
		s.logger.Warn().Err(err).Str("order_id", order.ID).Msg("gateway charge errored")
		if result.Message == "" {
			result.Message = err.Error()
		}
		result.Success = false
	}
	if result.IdempotencyKey == "" {
		// The gateway contract issues a token on every attempt, success or
		// not. Without one the charge cannot be deduplicated, so it is not
		// safe to treat as successful.
		s.logger.Error().
			Str("order_id", order.ID).
			Str("method", string(method)).
			Msg("gateway returned no idempotency token, treating charge as failed")
		if result.Success || result.Message == "" {
			result.Message = "gateway returned no idempotency token"
		}
		result.Success = false
		// Synthetic key so the failed attempt can still be recorded.
		result.IdempotencyKey = string(method) + "-" + uuid.NewString()
	}
	return result
}

// settlePayment records the charge attempt unless the gateway token was
// already seen with a terminal outcome, in which case the recorded
// outcome wins and no duplicate row is written.
func (s *FulfillmentService) settlePayment(ctx context.Context, order domain.Order, method domain.PaymentMethod, amount decimal.Decimal, result port.ChargeResult) (bool, error) {
	existing, err := s.payments.FindByIdempotencyKey(ctx, result.IdempotencyKey)
	if err != nil {
		return false, fmt.Errorf("payment idempotency lookup: %w", err)
	}
	if existing != nil && existing.Terminal() {
		s.logger.Info().
			Str("order_id", order.ID).
			Str("idempotency_key", result.IdempotencyKey).
			Str("status", string(existing.Status)).
			Msg("charge already recorded for token, reusing outcome")
		return existing.Status == domain.AttemptSuccess, nil
	}

	attempt, err := s.payments.NextAttemptNumber(ctx, order.ID)
	if err != nil {
		return false, fmt.Errorf("payment attempt number: %w", err)
	}

	status := domain.AttemptFailed
	if result.Success {
		status = domain.AttemptSuccess
	}
	now := time.Now().UTC()
	payment := domain.Payment{
		ID:             uuid.NewString(),
		IdempotencyKey: result.IdempotencyKey,
		OrderID:        order.ID,
		Method:         method,
		Amount:         amount,
		Attempt:        attempt,
		Status:         status,
		TransactionID:  result.TransactionID,
		CreatedAt:      now,
		ProcessedAt:    &now,
	}
	if !result.Success {
		payment.ErrorMessage = result.Message
	}
	if err := s.payments.Record(ctx, payment); err != nil {
		return false, fmt.Errorf("record payment: %w", err)
	}

	return result.Success, nil
}
