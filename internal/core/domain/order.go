package domain

import (
	"encoding/binary"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusFailed    OrderStatus = "failed"
)

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
	PaymentFailed  PaymentStatus = "failed"
)

type Order struct {
	ID            string
	Number        string
	UserID        string
	Status        OrderStatus
	PaymentStatus PaymentStatus
	TotalAmount   decimal.Decimal
	Lines         []OrderLine
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// OrderLine snapshots the product name and unit price at purchase time so
// later catalog edits do not rewrite history.
type OrderLine struct {
	OrderID     string
	ProductID   string
	ProductName string
	UnitPrice   decimal.Decimal
	Quantity    int
	LineTotal   decimal.Decimal
}

var orderNumberRe = regexp.MustCompile(`^ORD-\d{8}-[A-Z0-9]{8}$`)

// GenerateOrderNumber produces a number like ORD-20260901-9F3A0C1B.
// The suffix is 32 random bits, so collisions within a day are ~1 in 2^32.
func GenerateOrderNumber() string {
	id := uuid.New()
	suffix := binary.BigEndian.Uint32(id[:4])
	return fmt.Sprintf("ORD-%s-%08X", time.Now().UTC().Format("20060102"), suffix)
}

func IsValidOrderNumber(s string) bool {
	return orderNumberRe.MatchString(s)
}

// NewLineTotal validates a line item and returns unit price * quantity
// rounded to 2 decimal places.
func NewLineTotal(unitPrice decimal.Decimal, quantity int) (decimal.Decimal, error) {
	if quantity <= 0 {
		return decimal.Zero, fmt.Errorf("%w: quantity must be positive, got %d", ErrInvalidLineItem, quantity)
	}
	if unitPrice.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: unit price cannot be negative, got %s", ErrInvalidLineItem, unitPrice)
	}
	return unitPrice.Mul(decimal.NewFromInt(int64(quantity))).Round(2), nil
}
