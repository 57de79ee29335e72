package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/ahsanhabibakik/rupomoti-stock-go/internal/domain"
)

// LedgerRepository appends entries to an in-memory slice. Entries are copied
// on write and read so callers can never mutate history.
type LedgerRepository struct {
	mu      sync.RWMutex
	entries []domain.LedgerEntry
}

func NewLedgerRepository() *LedgerRepository {
	return &LedgerRepository{}
}

func (r *LedgerRepository) Append(ctx context.Context, entry *domain.LedgerEntry) error {
	_ = ctx

	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries = append(r.entries, *entry)
	return nil
}

func (r *LedgerRepository) History(ctx context.Context, productID string, limit int) ([]domain.LedgerEntry, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	// most-recent-first
	result := []domain.LedgerEntry{}
	for i := len(r.entries) - 1; i >= 0; i-- {
		if r.entries[i].ProductID != productID {
			continue
		}
		result = append(result, r.entries[i])
		if limit > 0 && len(result) >= limit {
			break
		}
	}
	return result, nil
}

func (r *LedgerRepository) HistoryForOrder(ctx context.Context, orderID uuid.UUID) ([]domain.LedgerEntry, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	result := []domain.LedgerEntry{}
	for _, e := range r.entries {
		if e.OrderID != nil && *e.OrderID == orderID {
			result = append(result, e)
		}
	}
	return result, nil
}
