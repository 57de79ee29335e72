package memory

import (
	"context"
	"sync"

	"github.com/ahsanhabibakik/rupomoti-stock-go/internal/domain"
)

type OutboxRepository struct {
	mu       sync.Mutex
	messages []domain.OutboxMessage
}

func NewOutboxRepository() *OutboxRepository {
	return &OutboxRepository{}
}

func (r *OutboxRepository) Insert(ctx context.Context, msg domain.OutboxMessage) error {
	_ = ctx

	r.mu.Lock()
	defer r.mu.Unlock()

	r.messages = append(r.messages, msg)
	return nil
}

func (r *OutboxRepository) GetPendingBatch(ctx context.Context, maxRetry, batchSize int) ([]domain.OutboxMessage, error) {
	_ = ctx

	r.mu.Lock()
	defer r.mu.Unlock()

	var batch []domain.OutboxMessage
	for _, msg := range r.messages {
		if msg.ProcessedAtUtc != nil || msg.RetryCount >= maxRetry {
			continue
		}
		batch = append(batch, msg)
		if len(batch) >= batchSize {
			break
		}
	}
	return batch, nil
}

func (r *OutboxRepository) Save(ctx context.Context, msg domain.OutboxMessage) error {
	_ = ctx

	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.messages {
		if r.messages[i].ID == msg.ID {
			r.messages[i] = msg
			return nil
		}
	}
	r.messages = append(r.messages, msg)
	return nil
}
