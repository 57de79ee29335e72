package application

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"

	"github.com/ahsanhabibakik/rupomoti-stock-go/internal/domain"
	"github.com/ahsanhabibakik/rupomoti-stock-go/internal/infrastructure/memory"
	"github.com/ahsanhabibakik/rupomoti-stock-go/internal/observability"
)

func seed(t *testing.T, f *fixture, stocks map[string]int) {
	t.Helper()
	ctx := context.Background()
	for id, stock := range stocks {
		if err := f.store.Upsert(ctx, id, stock); err != nil {
			t.Fatalf("upsert %s: %v", id, err)
		}
	}
}

func mustStock(t *testing.T, store domain.StockStore, productID string) int {
	t.Helper()
	stock, err := store.Get(context.Background(), productID)
	if err != nil {
		t.Fatalf("get %s: %v", productID, err)
	}
	return stock
}

func TestReserve_commitsWholeBatch(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	seed(t, f, map[string]int{"a": 10, "b": 10, "c": 10})

	orderID := uuid.New()
	err := f.coordinator.Reserve(ctx, ReservationBatch{
		OrderID: orderID,
		Lines: []ReservationLine{
			{ProductID: "c", Quantity: 1},
			{ProductID: "a", Quantity: 2},
			{ProductID: "b", Quantity: 3},
		},
	})
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}

	if got := mustStock(t, f.store, "a"); got != 8 {
		t.Errorf("a: expected 8, got %d", got)
	}
	if got := mustStock(t, f.store, "b"); got != 7 {
		t.Errorf("b: expected 7, got %d", got)
	}
	if got := mustStock(t, f.store, "c"); got != 9 {
		t.Errorf("c: expected 9, got %d", got)
	}

	// one ORDER_RESERVE entry per line, applied in ascending product order
	entries, err := f.ledger.HistoryForOrder(ctx, orderID)
	if err != nil {
		t.Fatalf("history for order: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 ledger entries, got %d", len(entries))
	}
	for i, want := range []string{"a", "b", "c"} {
		if entries[i].ProductID != want {
			t.Errorf("entry %d: expected product %s, got %s", i, want, entries[i].ProductID)
		}
		if entries[i].Operation != domain.OpOrderReserve {
			t.Errorf("entry %d: expected ORDER_RESERVE, got %s", i, entries[i].Operation)
		}
	}

	if f.outbox.countByKey("StockReserved") != 1 {
		t.Errorf("expected one StockReserved event, got %v", f.outbox.routingKeys())
	}
}

func TestReserve_validationAggregatesEveryFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	seed(t, f, map[string]int{"a": 3, "b": 4})

	err := f.coordinator.Reserve(ctx, ReservationBatch{
		OrderID: uuid.New(),
		Lines: []ReservationLine{
			{ProductID: "a", Quantity: 2},
			{ProductID: "b", Quantity: 5},
			{ProductID: "ghost", Quantity: 1},
		},
	})

	var validation *domain.BatchValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("expected BatchValidationError, got %v", err)
	}
	if len(validation.Items) != 2 {
		t.Fatalf("expected 2 unavailable items, got %+v", validation.Items)
	}
	if !strings.Contains(err.Error(), "b") || !strings.Contains(err.Error(), "ghost") {
		t.Errorf("error does not name every failing item: %s", err)
	}

	// no mutation was attempted
	if got := mustStock(t, f.store, "a"); got != 3 {
		t.Errorf("a mutated during failed validation: %d", got)
	}
	entries, _ := f.ledger.History(ctx, "a", 10)
	if len(entries) != 0 {
		t.Errorf("failed validation produced ledger entries: %+v", entries)
	}
	if f.outbox.countByKey("StockReservationFailed") != 1 {
		t.Errorf("expected one StockReservationFailed event, got %v", f.outbox.routingKeys())
	}
}

func TestReserve_midBatchRaceCompensatesAppliedLines(t *testing.T) {
	// Validation passes for both lines, then "b" is consumed by a concurrent
	// order before the decrement lands. "a" must be restored.
	ctx := context.Background()
	f := newFixture()
	seed(t, f, map[string]int{"a": 3, "b": 4})

	raceStore := &raceConsumingStore{StockStore: f.store, consumeOn: "b"}
	coordinator := f.coordinatorWith(raceStore)

	err := coordinator.Reserve(ctx, ReservationBatch{
		OrderID: uuid.New(),
		Lines: []ReservationLine{
			{ProductID: "a", Quantity: 2},
			{ProductID: "b", Quantity: 4},
		},
	})
	if err == nil {
		t.Fatal("expected reservation to fail")
	}
	var compFailure *domain.CompensationFailureError
	if errors.As(err, &compFailure) {
		t.Fatalf("compensation should have succeeded, got %v", err)
	}

	if got := mustStock(t, f.store, "a"); got != 3 {
		t.Errorf("a not restored by compensation: expected 3, got %d", got)
	}
	if f.outbox.countByKey("StockReserved") != 0 {
		t.Error("no committed batch may exist after a failed reservation")
	}
}

// raceConsumingStore simulates another buyer grabbing the stock of one
// product between validation and reservation.
type raceConsumingStore struct {
	domain.StockStore
	consumeOn string
	consumed  bool
}

func (s *raceConsumingStore) ApplyDelta(ctx context.Context, productID string, delta int) (int, int, error) {
	if productID == s.consumeOn && delta < 0 && !s.consumed {
		s.consumed = true
		// drain it first, as a concurrent order would
		if _, _, err := s.StockStore.ApplyDelta(ctx, productID, delta); err != nil {
			return 0, 0, err
		}
	}
	return s.StockStore.ApplyDelta(ctx, productID, delta)
}

func TestReserve_compensatesDecrementWhoseLedgerEntryFailed(t *testing.T) {
	// "b"'s decrement lands in the store but its ORDER_RESERVE entry cannot be
	// written. The failed batch must still revert b, not just a: a committed
	// decrement with failed bookkeeping is an applied line.
	ctx := context.Background()
	f := newFixture()
	seed(t, f, map[string]int{"a": 3, "b": 5})

	ledger := &failingLedger{
		LedgerRepository: f.ledger,
		failProductID:    "b",
		failOperation:    domain.OpOrderReserve,
	}
	coordinator := f.coordinatorWithLedger(ledger)

	err := coordinator.Reserve(ctx, ReservationBatch{
		OrderID: uuid.New(),
		Lines: []ReservationLine{
			{ProductID: "a", Quantity: 2},
			{ProductID: "b", Quantity: 1},
		},
	})
	if err == nil {
		t.Fatal("expected reservation to fail")
	}
	var compFailure *domain.CompensationFailureError
	if errors.As(err, &compFailure) {
		t.Fatalf("compensation should have succeeded, got %v", err)
	}

	if got := mustStock(t, f.store, "a"); got != 3 {
		t.Errorf("a not restored: expected 3, got %d", got)
	}
	if got := mustStock(t, f.store, "b"); got != 5 {
		t.Errorf("b has a net effect after a failed batch: expected 5, got %d", got)
	}
	if f.outbox.countByKey("StockReserved") != 0 {
		t.Error("no committed batch may exist after a failed reservation")
	}
}

func TestReserve_compensationFailureIsFatalAndDistinct(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	seed(t, f, map[string]int{"a": 3, "b": 5})

	// Validation passes on reads, "b" then fails its decrement mid-batch, and
	// the rollback increment on "a" fails too: the coordinator must surface
	// CompensationFailureError, not an ordinary validation failure.
	broken := &failingStore{StockStore: f.store, failIncrementFor: "a", failDecrementFor: "b"}
	coordinator := f.coordinatorWith(broken)

	err := coordinator.Reserve(ctx, ReservationBatch{
		OrderID: uuid.New(),
		Lines: []ReservationLine{
			{ProductID: "a", Quantity: 2},
			{ProductID: "b", Quantity: 1},
		},
	})
	var compFailure *domain.CompensationFailureError
	if !errors.As(err, &compFailure) {
		t.Fatalf("expected CompensationFailureError, got %v", err)
	}
	if _, ok := compFailure.Failures["a"]; !ok {
		t.Errorf("expected failure recorded for a, got %+v", compFailure.Failures)
	}
	if !strings.Contains(err.Error(), "manual reconciliation") {
		t.Errorf("compensation failure must be flagged for reconciliation: %s", err)
	}
}

func TestRelease_creditsExactlyWhatCallerSupplies(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	seed(t, f, map[string]int{"a": 10, "b": 10})

	orderID := uuid.New()
	batch := ReservationBatch{
		OrderID: orderID,
		Lines: []ReservationLine{
			{ProductID: "a", Quantity: 4},
			{ProductID: "b", Quantity: 2},
		},
	}
	if err := f.coordinator.Reserve(ctx, batch); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if err := f.coordinator.Release(ctx, batch); err != nil {
		t.Fatalf("release: %v", err)
	}

	if got := mustStock(t, f.store, "a"); got != 10 {
		t.Errorf("a: expected 10 after release, got %d", got)
	}
	if got := mustStock(t, f.store, "b"); got != 10 {
		t.Errorf("b: expected 10 after release, got %d", got)
	}

	entries, _ := f.ledger.HistoryForOrder(ctx, orderID)
	releases := 0
	for _, e := range entries {
		if e.Operation == domain.OpOrderRelease {
			releases++
		}
	}
	if releases != 2 {
		t.Errorf("expected 2 ORDER_RELEASE entries, got %d", releases)
	}
	if f.outbox.countByKey("StockReleased") != 1 {
		t.Errorf("expected one StockReleased event, got %v", f.outbox.routingKeys())
	}
}

func TestRestock_logsReturnOperation(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	seed(t, f, map[string]int{"a": 5})

	orderID := uuid.New()
	err := f.coordinator.Restock(ctx, ReservationBatch{
		OrderID: orderID,
		Lines:   []ReservationLine{{ProductID: "a", Quantity: 2}},
	})
	if err != nil {
		t.Fatalf("restock: %v", err)
	}
	if got := mustStock(t, f.store, "a"); got != 7 {
		t.Errorf("expected 7 after restock, got %d", got)
	}

	entries, _ := f.ledger.HistoryForOrder(ctx, orderID)
	if len(entries) != 1 || entries[0].Operation != domain.OpReturnRestock {
		t.Fatalf("expected one RETURN_RESTOCK entry, got %+v", entries)
	}
}

func TestCreditBack_countsRestocksApartFromReleases(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStockStore()
	ledger := memory.NewLedgerRepository()
	outbox := &recordingOutbox{}
	metrics := observability.NewNop()
	adjustments := NewAdjustmentService(store, ledger, outbox, metrics, zap.NewNop())
	coordinator := NewReservationCoordinator(
		store, adjustments, ledger, outbox, metrics, zap.NewNop(), time.Second,
	)
	if err := store.Upsert(ctx, "a", 20); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	if err := coordinator.Restock(ctx, ReservationBatch{
		OrderID: uuid.New(),
		Lines:   []ReservationLine{{ProductID: "a", Quantity: 2}},
	}); err != nil {
		t.Fatalf("restock: %v", err)
	}
	if err := coordinator.Release(ctx, ReservationBatch{
		OrderID: uuid.New(),
		Lines:   []ReservationLine{{ProductID: "a", Quantity: 1}},
	}); err != nil {
		t.Fatalf("release: %v", err)
	}

	if got := testutil.ToFloat64(metrics.Reservations.WithLabelValues("restocked")); got != 1 {
		t.Errorf("expected 1 restocked batch, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.Reservations.WithLabelValues("released")); got != 1 {
		t.Errorf("expected 1 released batch, got %v", got)
	}
}

func TestAlreadyReserved_tracksLedgerOrderIndex(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	seed(t, f, map[string]int{"a": 10})

	orderID := uuid.New()
	done, err := f.coordinator.AlreadyReserved(ctx, orderID)
	if err != nil {
		t.Fatalf("already reserved: %v", err)
	}
	if done {
		t.Error("unreserved order reported as reserved")
	}

	batch := ReservationBatch{
		OrderID: orderID,
		Lines:   []ReservationLine{{ProductID: "a", Quantity: 1}},
	}
	if err := f.coordinator.Reserve(ctx, batch); err != nil {
		t.Fatalf("reserve: %v", err)
	}

	done, err = f.coordinator.AlreadyReserved(ctx, orderID)
	if err != nil {
		t.Fatalf("already reserved: %v", err)
	}
	if !done {
		t.Error("reserved order not reported as reserved")
	}
}

func TestReserve_rejectsEmptyAndInvalidBatches(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	seed(t, f, map[string]int{"a": 10})

	if err := f.coordinator.Reserve(ctx, ReservationBatch{OrderID: uuid.Nil}); err == nil {
		t.Error("expected error for missing orderId")
	}
	if err := f.coordinator.Reserve(ctx, ReservationBatch{OrderID: uuid.New()}); err == nil {
		t.Error("expected error for empty batch")
	}
	err := f.coordinator.Reserve(ctx, ReservationBatch{
		OrderID: uuid.New(),
		Lines:   []ReservationLine{{ProductID: "a", Quantity: 0}},
	})
	if !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("expected ErrInvalidAmount for zero quantity, got %v", err)
	}
}
