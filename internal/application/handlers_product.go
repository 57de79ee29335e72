package application

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/rodolfodevapp/eventshop-messaging-go/core/primitives"
	"go.uber.org/zap"

	"github.com/ahsanhabibakik/rupomoti-stock-go/internal/domain"
)

// ProductCreatedHandler seeds a stock record when the catalog announces a new
// product. Existing products are reset through the adjustment service so the
// overwrite lands in the ledger like any other correction.
type ProductCreatedHandler struct {
	store       domain.StockStore
	adjustments *AdjustmentService
	logger      *zap.Logger
}

func NewProductCreatedHandler(
	store domain.StockStore,
	adjustments *AdjustmentService,
	logger *zap.Logger,
) *ProductCreatedHandler {
	return &ProductCreatedHandler{
		store:       store,
		adjustments: adjustments,
		logger:      logger,
	}
}

func (h *ProductCreatedHandler) Handle(ctx context.Context, ev primitives.Event) error {
	env, ok := ev.(*primitives.IntegrationEventEnvelope)
	if !ok {
		h.logger.Warn("product created handler: invalid event type", zap.String("type", typeNameOf(ev)))
		return nil
	}
	if env.Type != "ProductCreated" {
		return nil
	}

	var payload domain.ProductCreatedPayload
	if err := json.Unmarshal([]byte(env.PayloadJSON), &payload); err != nil {
		h.logger.Warn("product created handler: bad payload", zap.Error(err))
		return nil
	}
	if payload.ProductID == "" {
		h.logger.Warn("product created handler: missing productId")
		return nil
	}
	if payload.StockQuantity < 0 {
		h.logger.Warn("product created handler: negative initial stock",
			zap.String("product_id", payload.ProductID),
			zap.Int("stock", payload.StockQuantity))
		return nil
	}

	_, err := h.store.Get(ctx, payload.ProductID)
	if err != nil {
		var notFound *domain.ProductNotFoundError
		if errors.As(err, &notFound) {
			h.logger.Info("seeding stock for new product",
				zap.String("product_id", payload.ProductID),
				zap.Int("initial_stock", payload.StockQuantity))
			return h.store.Upsert(ctx, payload.ProductID, payload.StockQuantity)
		}
		return err
	}

	// Re-announced product: the catalog's figure wins, audited as a SET.
	_, err = h.adjustments.Set(ctx, payload.ProductID, payload.StockQuantity,
		"catalog product sync", "catalog")
	return err
}
