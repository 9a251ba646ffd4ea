package orders

import (
	"errors"
	"fmt"
)

// ErrConflict signals a concurrent modification detected at the storage
// boundary (e.g. a guarded status update losing the race). Callers may retry.
var ErrConflict = errors.New("concurrent modification conflict")

type NotFoundError struct {
	Kind string // "product", "customization", "payment method", "order", "user"
	Ref  string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.Ref)
}

type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

func validationf(format string, args ...any) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

type InsufficientStockError struct {
	ProductID string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}

type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid status transition from %s to %s", e.From, e.To)
}
