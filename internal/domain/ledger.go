package domain

import (
	"time"

	"github.com/google/uuid"
)

// Operation labels the cause of a stock mutation in the ledger.
type Operation string

const (
	OpIncrement     Operation = "INCREMENT"
	OpDecrement     Operation = "DECREMENT"
	OpSet           Operation = "SET"
	OpOrderReserve  Operation = "ORDER_RESERVE"
	OpOrderRelease  Operation = "ORDER_RELEASE"
	OpReturnRestock Operation = "RETURN_RESTOCK"
)

// LedgerEntry records one stock mutation. Entries are written exactly once per
// successful mutation and never updated or deleted; corrections are made by
// appending a compensating entry.
type LedgerEntry struct {
	ID            uuid.UUID
	ProductID     string
	PreviousStock int
	NewStock      int
	Delta         int
	Operation     Operation
	Reason        string
	OrderID       *uuid.UUID
	ActorID       string
	CreatedAtUtc  time.Time
}

func NewLedgerEntry(
	productID string,
	previous, next int,
	op Operation,
	reason string,
	orderID *uuid.UUID,
	actorID string,
) *LedgerEntry {
	return &LedgerEntry{
		ID:            uuid.New(),
		ProductID:     productID,
		PreviousStock: previous,
		NewStock:      next,
		Delta:         next - previous,
		Operation:     op,
		Reason:        reason,
		OrderID:       orderID,
		ActorID:       actorID,
		CreatedAtUtc:  time.Now().UTC(),
	}
}
