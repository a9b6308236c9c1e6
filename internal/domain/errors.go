package domain

import "errors"

var (
	ErrOrderNotFound   = errors.New("order not found")
	ErrItemNotFound    = errors.New("item not found")
	ErrListingMismatch = errors.New("listing does not match order")
	ErrNotSeller       = errors.New("actor is not the seller")
	ErrNotBuyer        = errors.New("actor is not the buyer")
	ErrOrderNotPaid    = errors.New("order is not paid")
	ErrOrderNotShipped = errors.New("order is not shipped")
	ErrAlreadyShipped  = errors.New("order already shipped")
	ErrDuplicateOrigin = errors.New("item already exists for origin order")
	ErrInvalidID       = errors.New("invalid id")
)
