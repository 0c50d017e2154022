package giftcard

import "errors"

// Domain errors surfaced by the ledger and allocator.
var (
	// ErrInvalidInput indicates a malformed balance, email, type, or amount.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotFound indicates an unknown gift card code.
	ErrNotFound = errors.New("gift card not found")
	// ErrCodeSpaceExhausted indicates the generator hit its retry cap.
	ErrCodeSpaceExhausted = errors.New("code space exhausted")
)
