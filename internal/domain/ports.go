package domain

import (
	"context"

	"github.com/google/uuid"
)

// StockStore is the single source of truth for current stock. Every mutation
// goes through ApplyDelta or SetAbsolute; no caller may read-then-write.
type StockStore interface {
	// Get is a read-only snapshot, not part of any atomic contract.
	Get(ctx context.Context, productID string) (int, error)

	// ApplyDelta commits stock+delta in one atomic step. It returns the
	// previous and new values, *InsufficientStockError when the result would
	// be negative, and *ProductNotFoundError for unknown products.
	ApplyDelta(ctx context.Context, productID string, delta int) (previous, current int, err error)

	// SetAbsolute unconditionally overwrites; the previous value is still
	// returned so the mutation can be logged.
	SetAbsolute(ctx context.Context, productID string, value int) (previous, current int, err error)

	// Upsert creates or resets a stock record (product onboarding).
	Upsert(ctx context.Context, productID string, value int) error

	// LowStock returns every product at or below threshold, keyed by product.
	LowStock(ctx context.Context, threshold int) (map[string]int, error)
}

// LedgerRepository is append-only by design; there is no update or delete.
type LedgerRepository interface {
	Append(ctx context.Context, entry *LedgerEntry) error
	History(ctx context.Context, productID string, limit int) ([]LedgerEntry, error)
	HistoryForOrder(ctx context.Context, orderID uuid.UUID) ([]LedgerEntry, error)
}

type OutboxRepository interface {
	Insert(ctx context.Context, msg OutboxMessage) error
	GetPendingBatch(ctx context.Context, maxRetry, batchSize int) ([]OutboxMessage, error)
	Save(ctx context.Context, msg OutboxMessage) error
}

type OutboxMessage struct {
	ID             uuid.UUID
	Type           string
	PayloadJSON    string
	OccurredAtUtc  int64 // unix seconds
	RetryCount     int
	ProcessedAtUtc *int64
}
