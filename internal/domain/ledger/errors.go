package ledger

import "errors"

var (
	ErrEntryNotFound   = errors.New("ledger entry not found")
	ErrEmptyOrder      = errors.New("order has no items")
	ErrInvalidQuantity = errors.New("invalid quantity: must be at least 1")

	// ErrInvalidAmount is returned when a money value is negative, finer than a cent, or zero where a positive one is required
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrProductNotFound is returned when an order line references an unknown product
	ErrProductNotFound = errors.New("product not found")

	// ErrArchiveDisabled is returned when no object storage is configured
	ErrArchiveDisabled = errors.New("export archive storage is not configured")

	ErrInternal = errors.New("internal error")
)
