package domain

import (
	"fmt"
	"strings"
)

// ProductNotFoundError: the referenced product has no stock record.
// Fatal to the single operation, never retried.
type ProductNotFoundError struct {
	ProductID string
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %s not found", e.ProductID)
}

// InsufficientStockError: a decrement would drive stock below zero.
// Surfaced to the caller as an out-of-stock condition, never clamped.
type InsufficientStockError struct {
	ProductID string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}

// UnavailableItem is one failing line of a reservation batch validation.
type UnavailableItem struct {
	ProductID string
	Requested int
	Available int
	NotFound  bool
}

// BatchValidationError aggregates every unavailable line item of a batch so
// the caller can report exactly which items are out of stock, not just the
// first one.
type BatchValidationError struct {
	OrderID string
	Items   []UnavailableItem
}

func (e *BatchValidationError) Error() string {
	parts := make([]string, 0, len(e.Items))
	for _, it := range e.Items {
		if it.NotFound {
			parts = append(parts, fmt.Sprintf("%s: not found", it.ProductID))
			continue
		}
		parts = append(parts, fmt.Sprintf("%s: requested %d, available %d",
			it.ProductID, it.Requested, it.Available))
	}
	return fmt.Sprintf("reservation for order %s failed validation: %s",
		e.OrderID, strings.Join(parts, "; "))
}

// CompensationFailureError: a rollback increment failed after a partial
// reservation. Live stock and the ledger no longer agree with the order
// workflow; this must halt the workflow and be reconciled manually.
type CompensationFailureError struct {
	OrderID  string
	Failures map[string]error // productID -> the increment error
}

func (e *CompensationFailureError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for productID, err := range e.Failures {
		parts = append(parts, fmt.Sprintf("%s: %v", productID, err))
	}
	return fmt.Sprintf("FATAL: compensation for order %s failed, manual reconciliation required: %s",
		e.OrderID, strings.Join(parts, "; "))
}
