package application

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rodolfodevapp/eventshop-messaging-go/core/primitives"
	"go.uber.org/zap"

	"github.com/ahsanhabibakik/rupomoti-stock-go/internal/domain"
	"github.com/ahsanhabibakik/rupomoti-stock-go/internal/infrastructure/memory"
	"github.com/ahsanhabibakik/rupomoti-stock-go/internal/observability"
)

// recordingOutbox captures enqueued events so tests can assert what a flow
// emitted without a broker.
type recordingOutbox struct {
	mu     sync.Mutex
	events []primitives.Event
}

func (r *recordingOutbox) Enqueue(_ context.Context, ev primitives.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recordingOutbox) routingKeys() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	keys := make([]string, 0, len(r.events))
	for _, ev := range r.events {
		keys = append(keys, ev.GetRoutingKey())
	}
	return keys
}

func (r *recordingOutbox) countByKey(key string) int {
	n := 0
	for _, k := range r.routingKeys() {
		if k == key {
			n++
		}
	}
	return n
}

// failingStore wraps the memory store and fails selected mutations, to force
// the mid-batch failure and compensation-failure paths. Reads are untouched,
// so validation still passes.
type failingStore struct {
	domain.StockStore
	failIncrementFor string
	failDecrementFor string
}

func (s *failingStore) ApplyDelta(ctx context.Context, productID string, delta int) (int, int, error) {
	if delta > 0 && productID == s.failIncrementFor {
		return 0, 0, errors.New("store unavailable")
	}
	if delta < 0 && productID == s.failDecrementFor {
		return 0, 0, errors.New("store unavailable")
	}
	return s.StockStore.ApplyDelta(ctx, productID, delta)
}

// failingLedger wraps the memory ledger and fails Append for one product and
// operation, to hit the path where a decrement commits but its entry does not.
type failingLedger struct {
	domain.LedgerRepository
	failProductID string
	failOperation domain.Operation
}

func (l *failingLedger) Append(ctx context.Context, entry *domain.LedgerEntry) error {
	if entry.ProductID == l.failProductID && entry.Operation == l.failOperation {
		return errors.New("ledger unavailable")
	}
	return l.LedgerRepository.Append(ctx, entry)
}

type fixture struct {
	store       *memory.StockStore
	ledger      *memory.LedgerRepository
	outbox      *recordingOutbox
	adjustments *AdjustmentService
	coordinator *ReservationCoordinator
}

func newFixture() *fixture {
	store := memory.NewStockStore()
	ledger := memory.NewLedgerRepository()
	outbox := &recordingOutbox{}
	metrics := observability.NewNop()
	logger := zap.NewNop()

	adjustments := NewAdjustmentService(store, ledger, outbox, metrics, logger)
	coordinator := NewReservationCoordinator(
		store, adjustments, ledger, outbox, metrics, logger, time.Second,
	)
	return &fixture{
		store:       store,
		ledger:      ledger,
		outbox:      outbox,
		adjustments: adjustments,
		coordinator: coordinator,
	}
}

// coordinatorWith rebuilds the coordinator and adjustment service on top of a
// replacement store, keeping the fixture's ledger and outbox.
func (f *fixture) coordinatorWith(store domain.StockStore) *ReservationCoordinator {
	metrics := observability.NewNop()
	logger := zap.NewNop()
	adjustments := NewAdjustmentService(store, f.ledger, f.outbox, metrics, logger)
	return NewReservationCoordinator(
		store, adjustments, f.ledger, f.outbox, metrics, logger, time.Second,
	)
}

// coordinatorWithLedger is the same, but swaps the ledger instead.
func (f *fixture) coordinatorWithLedger(ledger domain.LedgerRepository) *ReservationCoordinator {
	metrics := observability.NewNop()
	logger := zap.NewNop()
	adjustments := NewAdjustmentService(f.store, ledger, f.outbox, metrics, logger)
	return NewReservationCoordinator(
		f.store, adjustments, ledger, f.outbox, metrics, logger, time.Second,
	)
}
