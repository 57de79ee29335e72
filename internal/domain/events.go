package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/rodolfodevapp/eventshop-messaging-go/core/primitives"
)

// =========== Inbound event payloads ===========

// ProductCreated (from catalog.events)
type ProductCreatedPayload struct {
	ProductID     string    `json:"productId"`
	Sku           string    `json:"sku"`
	Name          string    `json:"name"`
	StockQuantity int       `json:"stockQuantity"`
	CreatedAtUtc  time.Time `json:"createdAtUtc"`
	IsActive      bool      `json:"isActive"`
}

// OrderPlaced / OrderCancelled / OrderReturned (from orders.events)
type OrderLine struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type OrderPlacedPayload struct {
	OrderID uuid.UUID   `json:"orderId"`
	UserID  uuid.UUID   `json:"userId"`
	Lines   []OrderLine `json:"lines"`
}

// Cancellation and return payloads carry the originally reserved quantities:
// the engine keeps no reservation state of its own, so the order record is the
// authority on what was set aside (caller contract).
type OrderCancelledPayload struct {
	OrderID uuid.UUID   `json:"orderId"`
	UserID  uuid.UUID   `json:"userId"`
	Lines   []OrderLine `json:"lines"`
}

type OrderReturnedPayload struct {
	OrderID uuid.UUID   `json:"orderId"`
	UserID  uuid.UUID   `json:"userId"`
	Lines   []OrderLine `json:"lines"`
}

// =========== Outbound events, stock engine -> others ===========

type StockReservedLine struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type StockReservedEvent struct {
	primitives.BaseEvent
	OrderID       uuid.UUID           `json:"orderId"`
	ReservedAtUtc time.Time           `json:"reservedAtUtc"`
	Lines         []StockReservedLine `json:"lines"`
}

func NewStockReservedEvent(orderID uuid.UUID, lines []StockReservedLine) *StockReservedEvent {
	ev := &StockReservedEvent{
		BaseEvent:     primitives.NewBaseEvent(),
		OrderID:       orderID,
		ReservedAtUtc: time.Now().UTC(),
		Lines:         lines,
	}
	ev.SetRoutingKey("StockReserved")
	return ev
}

type StockReservationFailedEvent struct {
	primitives.BaseEvent
	OrderID     uuid.UUID `json:"orderId"`
	Reason      string    `json:"reason"`
	FailedAtUtc time.Time `json:"failedAtUtc"`
}

func NewStockReservationFailedEvent(orderID uuid.UUID, reason string) *StockReservationFailedEvent {
	ev := &StockReservationFailedEvent{
		BaseEvent:   primitives.NewBaseEvent(),
		OrderID:     orderID,
		Reason:      reason,
		FailedAtUtc: time.Now().UTC(),
	}
	ev.SetRoutingKey("StockReservationFailed")
	return ev
}

type StockReleasedEvent struct {
	primitives.BaseEvent
	OrderID       uuid.UUID           `json:"orderId"`
	ReleasedAtUtc time.Time           `json:"releasedAtUtc"`
	Lines         []StockReservedLine `json:"lines"`
}

func NewStockReleasedEvent(orderID uuid.UUID, lines []StockReservedLine) *StockReleasedEvent {
	ev := &StockReleasedEvent{
		BaseEvent:     primitives.NewBaseEvent(),
		OrderID:       orderID,
		ReleasedAtUtc: time.Now().UTC(),
		Lines:         lines,
	}
	ev.SetRoutingKey("StockReleased")
	return ev
}

// StockAdjustedEvent mirrors every committed mutation for catalog, search and
// any other projection that tracks availability.
type StockAdjustedEvent struct {
	primitives.BaseEvent
	ProductID     string    `json:"productId"`
	PreviousStock int       `json:"previousStock"`
	NewStock      int       `json:"newStock"`
	Delta         int       `json:"delta"`
	Operation     string    `json:"operation"`
	Reason        string    `json:"reason"`
	OccurredAtUtc time.Time `json:"occurredAtUtc"`
}

func NewStockAdjustedEvent(entry *LedgerEntry) *StockAdjustedEvent {
	ev := &StockAdjustedEvent{
		BaseEvent:     primitives.NewBaseEvent(),
		ProductID:     entry.ProductID,
		PreviousStock: entry.PreviousStock,
		NewStock:      entry.NewStock,
		Delta:         entry.Delta,
		Operation:     string(entry.Operation),
		Reason:        entry.Reason,
		OccurredAtUtc: time.Now().UTC(),
	}
	ev.SetRoutingKey("StockAdjusted")
	return ev
}

// StockAlertEvent is the low-stock signal for the notification service.
// The engine emits one per threshold crossing with no deduplication.
type StockAlertEvent struct {
	primitives.BaseEvent
	ProductID     string    `json:"productId"`
	CurrentStock  int       `json:"currentStock"`
	Severity      string    `json:"severity"`
	OccurredAtUtc time.Time `json:"occurredAtUtc"`
}

func NewStockAlertEvent(alert *Alert) *StockAlertEvent {
	ev := &StockAlertEvent{
		BaseEvent:     primitives.NewBaseEvent(),
		ProductID:     alert.ProductID,
		CurrentStock:  alert.CurrentStock,
		Severity:      string(alert.Severity),
		OccurredAtUtc: time.Now().UTC(),
	}
	ev.SetRoutingKey("StockAlert")
	return ev
}
