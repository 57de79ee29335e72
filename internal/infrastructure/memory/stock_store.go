package memory

import (
	"context"
	"sync"
	"time"

	"github.com/ahsanhabibakik/rupomoti-stock-go/internal/domain"
)

// StockStore keeps stock counters in a mutex-guarded map. The mutex makes
// ApplyDelta's check-and-commit a single atomic step, matching the contract
// the Postgres and Redis stores provide. Used by tests and the "memory"
// backend for local runs.
type StockStore struct {
	mu    sync.RWMutex
	items map[string]*domain.ProductStock
}

func NewStockStore() *StockStore {
	return &StockStore{
		items: make(map[string]*domain.ProductStock),
	}
}

func (s *StockStore) Get(ctx context.Context, productID string) (int, error) {
	_ = ctx

	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.items[productID]
	if !ok {
		return 0, &domain.ProductNotFoundError{ProductID: productID}
	}
	return item.Stock, nil
}

func (s *StockStore) ApplyDelta(ctx context.Context, productID string, delta int) (int, int, error) {
	_ = ctx

	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[productID]
	if !ok {
		return 0, 0, &domain.ProductNotFoundError{ProductID: productID}
	}

	next := item.Stock + delta
	if next < 0 {
		return 0, 0, &domain.InsufficientStockError{
			ProductID: productID,
			Requested: -delta,
			Available: item.Stock,
		}
	}

	previous := item.Stock
	item.Stock = next
	item.UpdatedAtUtc = time.Now().UTC()
	return previous, next, nil
}

func (s *StockStore) SetAbsolute(ctx context.Context, productID string, value int) (int, int, error) {
	_ = ctx

	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[productID]
	if !ok {
		return 0, 0, &domain.ProductNotFoundError{ProductID: productID}
	}

	previous := item.Stock
	item.Stock = value
	item.UpdatedAtUtc = time.Now().UTC()
	return previous, value, nil
}

func (s *StockStore) Upsert(ctx context.Context, productID string, value int) error {
	_ = ctx

	s.mu.Lock()
	defer s.mu.Unlock()

	if item, ok := s.items[productID]; ok {
		item.Stock = value
		item.UpdatedAtUtc = time.Now().UTC()
		return nil
	}
	s.items[productID] = domain.NewProductStock(productID, value)
	return nil
}

func (s *StockStore) LowStock(ctx context.Context, threshold int) (map[string]int, error) {
	_ = ctx

	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string]int)
	for id, item := range s.items {
		if item.Stock <= threshold {
			result[id] = item.Stock
		}
	}
	return result, nil
}
