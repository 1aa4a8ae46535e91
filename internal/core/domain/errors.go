package domain

import "errors"

var (
	ErrProductNotFound          = errors.New("product not found")
	ErrInsufficientStock        = errors.New("insufficient stock")
	ErrInvalidLineItem          = errors.New("invalid line item")
	ErrUnsupportedPaymentMethod = errors.New("unsupported payment method")
	ErrReservationExists        = errors.New("reservation already exists for order")
	ErrReservationNotFound      = errors.New("reservation not found")
	ErrOrderNotFound            = errors.New("order not found")
)
