package outbox

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rodolfodevapp/eventshop-messaging-go/core/abstractions"
	"github.com/rodolfodevapp/eventshop-messaging-go/core/primitives"
	"go.uber.org/zap"

	"github.com/ahsanhabibakik/rupomoti-stock-go/internal/domain"
)

type Dispatcher struct {
	repo      domain.OutboxRepository
	eventBus  abstractions.EventBus
	logger    *zap.Logger
	maxRetry  int
	batchSize int
}

func NewDispatcher(
	repo domain.OutboxRepository,
	eventBus abstractions.EventBus,
	logger *zap.Logger,
	maxRetry, batchSize int,
) *Dispatcher {
	return &Dispatcher{
		repo:      repo,
		eventBus:  eventBus,
		logger:    logger,
		maxRetry:  maxRetry,
		batchSize: batchSize,
	}
}

func (d *Dispatcher) DispatchOnce(ctx context.Context) (int, error) {
	msgs, err := d.repo.GetPendingBatch(ctx, d.maxRetry, d.batchSize)
	if err != nil {
		return 0, err
	}
	if len(msgs) == 0 {
		return 0, nil
	}

	processed := 0
	for i := range msgs {
		msg := &msgs[i]

		var generic map[string]interface{}
		if err := json.Unmarshal([]byte(msg.PayloadJSON), &generic); err != nil {
			d.logger.Warn("outbox: failed to unmarshal payload",
				zap.String("type", msg.Type), zap.Error(err))
			msg.RetryCount++
			if err := d.repo.Save(ctx, *msg); err != nil {
				d.logger.Error("outbox: failed to save message", zap.Error(err))
			}
			continue
		}

		// e.g. "StockReserved" / "StockAlert" / "StockAdjusted"
		envelope := primitives.NewIntegrationEventEnvelope(msg.Type, msg.PayloadJSON)
		envelope.SetRoutingKey(msg.Type)

		if err := d.eventBus.Publish(ctx, &envelope); err != nil {
			d.logger.Warn("outbox: failed to publish",
				zap.String("type", msg.Type), zap.Error(err))
			msg.RetryCount++
		} else {
			now := time.Now().UTC().Unix()
			msg.ProcessedAtUtc = &now
			processed++
		}

		if err := d.repo.Save(ctx, *msg); err != nil {
			d.logger.Error("outbox: failed to save message", zap.Error(err))
		}
	}

	return processed, nil
}
