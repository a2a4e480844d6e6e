package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrNotFound          = errors.New("not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrEmptyCart         = errors.New("cart is empty")
	ErrConflict          = errors.New("concurrent modification")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrForbidden         = errors.New("forbidden")

	// ErrTransient marks storage failures that may succeed on a later attempt.
	ErrTransient = errors.New("transient storage failure")
	// ErrNotApplied is attached to transient failures the store guarantees
	// were rejected before any write happened.
	ErrNotApplied = errors.New("write not applied")
)

func InvalidInput(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

func NotFound(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

// IsRetryable reports whether err is a transient failure of an operation that
// the caller may safely repeat.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransient)
}
