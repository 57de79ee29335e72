package application

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/rodolfodevapp/eventshop-messaging-go/core/primitives"
	"go.uber.org/zap"

	"github.com/ahsanhabibakik/rupomoti-stock-go/internal/domain"
)

type EventHandler interface {
	Handle(ctx context.Context, ev primitives.Event) error
}

// OrderPlacedHandler

type OrderPlacedHandler struct {
	coordinator *ReservationCoordinator
	logger      *zap.Logger
}

func NewOrderPlacedHandler(c *ReservationCoordinator, logger *zap.Logger) *OrderPlacedHandler {
	return &OrderPlacedHandler{coordinator: c, logger: logger}
}

func (h *OrderPlacedHandler) Handle(ctx context.Context, ev primitives.Event) error {
	env, ok := ev.(*primitives.IntegrationEventEnvelope)
	if !ok {
		h.logger.Warn("order placed handler: invalid event type", zap.String("type", typeNameOf(ev)))
		return nil
	}
	if env.Type != "OrderPlacedEvent" {
		return nil
	}

	var payload domain.OrderPlacedPayload
	if err := json.Unmarshal([]byte(env.PayloadJSON), &payload); err != nil {
		h.logger.Warn("order placed handler: bad payload", zap.Error(err))
		return nil
	}
	if payload.OrderID == uuid.Nil {
		h.logger.Warn("order placed handler: missing orderId")
		return nil
	}

	// Redelivered messages must not decrement twice; the ledger's order index
	// is the idempotency record.
	done, err := h.coordinator.AlreadyReserved(ctx, payload.OrderID)
	if err != nil {
		return err
	}
	if done {
		return nil
	}

	batch := ReservationBatch{OrderID: payload.OrderID, Lines: toLines(payload.Lines)}
	if err := h.coordinator.Reserve(ctx, batch); err != nil {
		var validation *domain.BatchValidationError
		if errors.As(err, &validation) {
			// Business outcome, already reported via StockReservationFailed;
			// ack the message.
			return nil
		}
		return err
	}
	return nil
}

// OrderCancelledHandler

type OrderCancelledHandler struct {
	coordinator *ReservationCoordinator
	logger      *zap.Logger
}

func NewOrderCancelledHandler(c *ReservationCoordinator, logger *zap.Logger) *OrderCancelledHandler {
	return &OrderCancelledHandler{coordinator: c, logger: logger}
}

func (h *OrderCancelledHandler) Handle(ctx context.Context, ev primitives.Event) error {
	env, ok := ev.(*primitives.IntegrationEventEnvelope)
	if !ok {
		h.logger.Warn("order cancelled handler: invalid event type", zap.String("type", typeNameOf(ev)))
		return nil
	}
	if env.Type != "OrderCancelledEvent" && env.Type != "OrderRejectedEvent" {
		return nil
	}

	var payload domain.OrderCancelledPayload
	if err := json.Unmarshal([]byte(env.PayloadJSON), &payload); err != nil {
		h.logger.Warn("order cancelled handler: bad payload", zap.Error(err))
		return nil
	}
	if payload.OrderID == uuid.Nil {
		h.logger.Warn("order cancelled handler: missing orderId")
		return nil
	}
	if len(payload.Lines) == 0 {
		// Nothing was reserved (or the order service sent no quantities);
		// crediting back nothing keeps release idempotent.
		h.logger.Info("order cancelled with no reserved lines",
			zap.String("order_id", payload.OrderID.String()))
		return nil
	}

	batch := ReservationBatch{OrderID: payload.OrderID, Lines: toLines(payload.Lines)}
	return h.coordinator.Release(ctx, batch)
}

// OrderReturnedHandler

type OrderReturnedHandler struct {
	coordinator *ReservationCoordinator
	logger      *zap.Logger
}

func NewOrderReturnedHandler(c *ReservationCoordinator, logger *zap.Logger) *OrderReturnedHandler {
	return &OrderReturnedHandler{coordinator: c, logger: logger}
}

func (h *OrderReturnedHandler) Handle(ctx context.Context, ev primitives.Event) error {
	env, ok := ev.(*primitives.IntegrationEventEnvelope)
	if !ok {
		h.logger.Warn("order returned handler: invalid event type", zap.String("type", typeNameOf(ev)))
		return nil
	}
	if env.Type != "OrderReturnedEvent" {
		return nil
	}

	var payload domain.OrderReturnedPayload
	if err := json.Unmarshal([]byte(env.PayloadJSON), &payload); err != nil {
		h.logger.Warn("order returned handler: bad payload", zap.Error(err))
		return nil
	}
	if payload.OrderID == uuid.Nil || len(payload.Lines) == 0 {
		return nil
	}

	batch := ReservationBatch{OrderID: payload.OrderID, Lines: toLines(payload.Lines)}
	return h.coordinator.Restock(ctx, batch)
}

func toLines(lines []domain.OrderLine) []ReservationLine {
	result := make([]ReservationLine, 0, len(lines))
	for _, l := range lines {
		result = append(result, ReservationLine{ProductID: l.ProductID, Quantity: l.Quantity})
	}
	return result
}
