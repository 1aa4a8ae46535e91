package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID        string
	Name      string
	Price     decimal.Decimal
	Stock     int // total stock; PENDING reservations are not subtracted here
	CreatedAt time.Time
	UpdatedAt time.Time
}
