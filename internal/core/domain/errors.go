// internal/core/domain/errors.go
package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by the ledger. Structured variants below unwrap to these,
// so callers can match with errors.Is and inspect details with errors.As.
var (
	ErrInvalidOperation  = errors.New("invalid operation")
	ErrEmptyOperation    = errors.New("operation has no lines")
	ErrInvalidQuantity   = errors.New("invalid quantity")
	ErrDuplicateLine     = errors.New("duplicate product line")
	ErrProductNotFound   = errors.New("product not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrStoreUnavailable  = errors.New("store unavailable")
	ErrLockTimeout       = errors.New("lock wait timed out")

	ErrRecordNotFound = errors.New("ledger record not found")
	ErrProductInUse   = errors.New("product is referenced by ledger records")
	ErrInvalidProduct = errors.New("invalid product")
)

// InvalidQuantityError identifies the offending line.
type InvalidQuantityError struct {
	ProductID int64
	Quantity  int64
	Reason    string
}

func (e *InvalidQuantityError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("invalid quantity for product %d: %s", e.ProductID, e.Reason)
	}
	return fmt.Sprintf("invalid quantity %d for product %d", e.Quantity, e.ProductID)
}

func (e *InvalidQuantityError) Unwrap() error { return ErrInvalidQuantity }

// DuplicateLineError is returned when a product appears on more than one line.
type DuplicateLineError struct {
	ProductID int64
}

func (e *DuplicateLineError) Error() string {
	return fmt.Sprintf("product %d appears on more than one line", e.ProductID)
}

func (e *DuplicateLineError) Unwrap() error { return ErrDuplicateLine }

// ProductNotFoundError carries the missing product id.
type ProductNotFoundError struct {
	ProductID int64
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %d not found", e.ProductID)
}

func (e *ProductNotFoundError) Unwrap() error { return ErrProductNotFound }

// InsufficientStockError reports the stock observed under lock.
type InsufficientStockError struct {
	ProductID int64
	Available int64
	Requested int64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %d: available %d, requested %d",
		e.ProductID, e.Available, e.Requested)
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }

// StoreUnavailableError wraps a store-level failure. Both the sentinel and the
// underlying cause are reachable through errors.Is.
type StoreUnavailableError struct {
	Op  string
	Err error
}

func (e *StoreUnavailableError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("store unavailable: %s", e.Op)
	}
	return fmt.Sprintf("store unavailable: %s: %v", e.Op, e.Err)
}

func (e *StoreUnavailableError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrStoreUnavailable}
	}
	return []error{ErrStoreUnavailable, e.Err}
}

// NewStoreUnavailable wraps err as a retryable store failure for op.
func NewStoreUnavailable(op string, err error) error {
	return &StoreUnavailableError{Op: op, Err: err}
}

// IsRetryable reports whether the identical operation may be resubmitted.
// Nothing was committed when these errors are returned.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable) || errors.Is(err, ErrLockTimeout)
}

// IsClientError reports whether err was caused by the request itself.
func IsClientError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidOperation),
		errors.Is(err, ErrEmptyOperation),
		errors.Is(err, ErrInvalidQuantity),
		errors.Is(err, ErrDuplicateLine),
		errors.Is(err, ErrProductNotFound),
		errors.Is(err, ErrInsufficientStock),
		errors.Is(err, ErrProductInUse),
		errors.Is(err, ErrInvalidProduct),
		errors.Is(err, ErrReferenceNotFound):
		return true
	}
	return false
}

// IsNotFound reports whether err means a referenced entity is missing.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrProductNotFound) || errors.Is(err, ErrRecordNotFound)
}
