package memory

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/ahsanhabibakik/rupomoti-stock-go/internal/domain"
)

func TestLedgerRepository_historyIsMostRecentFirst(t *testing.T) {
	ctx := context.Background()
	repo := NewLedgerRepository()

	for i, reason := range []string{"first", "second", "third"} {
		entry := domain.NewLedgerEntry("ring-001", i, i+1, domain.OpIncrement, reason, nil, "")
		if err := repo.Append(ctx, entry); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	entries, err := repo.History(ctx, "ring-001", 2)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Reason != "third" || entries[1].Reason != "second" {
		t.Errorf("wrong order: %s, %s", entries[0].Reason, entries[1].Reason)
	}
}

func TestLedgerRepository_historyForOrderFiltersByOrder(t *testing.T) {
	ctx := context.Background()
	repo := NewLedgerRepository()

	orderA := uuid.New()
	orderB := uuid.New()
	if err := repo.Append(ctx, domain.NewLedgerEntry("x", 5, 3, domain.OpOrderReserve, "", &orderA, "")); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := repo.Append(ctx, domain.NewLedgerEntry("y", 2, 1, domain.OpOrderReserve, "", &orderB, "")); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := repo.Append(ctx, domain.NewLedgerEntry("x", 3, 5, domain.OpOrderRelease, "", &orderA, "")); err != nil {
		t.Fatalf("append: %v", err)
	}

	entries, err := repo.HistoryForOrder(ctx, orderA)
	if err != nil {
		t.Fatalf("history for order: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries for order A, got %d", len(entries))
	}
	for _, e := range entries {
		if e.OrderID == nil || *e.OrderID != orderA {
			t.Errorf("entry for wrong order: %+v", e)
		}
	}
}

func TestLedgerRepository_entriesAreImmutableToCallers(t *testing.T) {
	ctx := context.Background()
	repo := NewLedgerRepository()

	entry := domain.NewLedgerEntry("ring-001", 10, 8, domain.OpDecrement, "sale", nil, "admin-1")
	if err := repo.Append(ctx, entry); err != nil {
		t.Fatalf("append: %v", err)
	}

	// mutating the caller's struct after append must not rewrite history
	entry.NewStock = 999

	entries, _ := repo.History(ctx, "ring-001", 1)
	if entries[0].NewStock != 8 {
		t.Errorf("ledger entry mutated after append: %d", entries[0].NewStock)
	}
}
