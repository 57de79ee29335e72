package application

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ahsanhabibakik/rupomoti-stock-go/internal/domain"
	"github.com/ahsanhabibakik/rupomoti-stock-go/internal/observability"
)

// BatchState tracks a reservation batch through its lifecycle. VALIDATING and
// RESERVING are transient; COMMITTED and FAILED are terminal.
type BatchState string

const (
	StateValidating   BatchState = "VALIDATING"
	StateReserving    BatchState = "RESERVING"
	StateCommitted    BatchState = "COMMITTED"
	StateCompensating BatchState = "COMPENSATING"
	StateFailed       BatchState = "FAILED"
)

type ReservationLine struct {
	ProductID string
	Quantity  int
}

// ReservationBatch is ephemeral: it exists only for the duration of one
// reserve or release call and is never persisted as its own entity.
type ReservationBatch struct {
	OrderID uuid.UUID
	Lines   []ReservationLine
}

// ReservationCoordinator applies a batch of per-product decrements as one
// logical unit: either every line item is decremented or none is (any partial
// apply is rolled back by inverse increments).
//
// The engine keeps no reservation state. Release and Restock trust the caller
// to supply the exact originally reserved quantities; the order record is the
// authority on what was set aside.
type ReservationCoordinator struct {
	store       domain.StockStore
	adjustments *AdjustmentService
	ledger      domain.LedgerRepository
	outbox      OutboxWriter
	metrics     *observability.Metrics
	logger      *zap.Logger

	// reserveTimeout bounds the RESERVING phase; on expiry the batch fails
	// and whatever was applied is compensated.
	reserveTimeout time.Duration
}

func NewReservationCoordinator(
	store domain.StockStore,
	adjustments *AdjustmentService,
	ledger domain.LedgerRepository,
	outbox OutboxWriter,
	metrics *observability.Metrics,
	logger *zap.Logger,
	reserveTimeout time.Duration,
) *ReservationCoordinator {
	return &ReservationCoordinator{
		store:          store,
		adjustments:    adjustments,
		ledger:         ledger,
		outbox:         outbox,
		metrics:        metrics,
		logger:         logger,
		reserveTimeout: reserveTimeout,
	}
}

// Reserve walks VALIDATING -> RESERVING -> COMMITTED, or fails with no net
// effect on any line item. Validation failures report every unavailable item,
// not just the first.
func (c *ReservationCoordinator) Reserve(ctx context.Context, batch ReservationBatch) error {
	start := time.Now()

	if batch.OrderID == uuid.Nil {
		return errors.New("missing orderId")
	}
	if len(batch.Lines) == 0 {
		return errors.New("empty reservation batch")
	}
	lines := sortedLines(batch.Lines)

	// VALIDATING: non-mutating availability check across the whole batch.
	var unavailable []domain.UnavailableItem
	for _, line := range lines {
		if line.Quantity <= 0 {
			return fmt.Errorf("line %s: %w", line.ProductID, ErrInvalidAmount)
		}
		current, err := c.store.Get(ctx, line.ProductID)
		if err != nil {
			var notFound *domain.ProductNotFoundError
			if errors.As(err, &notFound) {
				unavailable = append(unavailable, domain.UnavailableItem{
					ProductID: line.ProductID,
					Requested: line.Quantity,
					NotFound:  true,
				})
				continue
			}
			return err
		}
		if line.Quantity > current {
			unavailable = append(unavailable, domain.UnavailableItem{
				ProductID: line.ProductID,
				Requested: line.Quantity,
				Available: current,
			})
		}
	}
	if len(unavailable) > 0 {
		return c.fail(ctx, batch, &domain.BatchValidationError{
			OrderID: batch.OrderID.String(),
			Items:   unavailable,
		})
	}

	// RESERVING: ascending productID order keeps two concurrent batches that
	// share products from deadlocking each other, and the phase is bounded so
	// a stuck batch cannot hold partial state forever.
	reserveCtx := ctx
	if c.reserveTimeout > 0 {
		var cancel context.CancelFunc
		reserveCtx, cancel = context.WithTimeout(ctx, c.reserveTimeout)
		defer cancel()
	}

	reason := fmt.Sprintf("reserved for order %s", batch.OrderID)
	applied := make([]ReservationLine, 0, len(lines))
	for _, line := range lines {
		res, err := c.adjustments.OrderDecrement(
			reserveCtx, line.ProductID, line.Quantity,
			domain.OpOrderReserve, reason, batch.OrderID,
		)
		if err != nil {
			// A race consumed the stock between validation and reservation,
			// or the phase timed out. A non-nil result means the decrement
			// itself landed and only the bookkeeping after it failed; that
			// line must be rolled back with the rest.
			if res != nil {
				applied = append(applied, line)
			}
			if compErr := c.compensate(ctx, batch, applied); compErr != nil {
				return compErr
			}
			return c.fail(ctx, batch, fmt.Errorf("reserving %s for order %s: %w",
				line.ProductID, batch.OrderID, err))
		}
		applied = append(applied, line)
	}

	// COMMITTED
	evLines := make([]domain.StockReservedLine, 0, len(lines))
	for _, line := range lines {
		evLines = append(evLines, domain.StockReservedLine{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
		})
	}
	if err := c.outbox.Enqueue(ctx, domain.NewStockReservedEvent(batch.OrderID, evLines)); err != nil {
		return err
	}

	c.metrics.Reservations.WithLabelValues("committed").Inc()
	c.metrics.ReservationSeconds.Observe(time.Since(start).Seconds())
	c.logger.Info("reservation committed",
		zap.String("order_id", batch.OrderID.String()),
		zap.Int("lines", len(lines)),
	)
	return nil
}

// compensate reverses already-applied line items in reverse order. It runs on
// a context detached from the caller's cancellation: a rollback must not be
// abandoned because the original request timed out.
func (c *ReservationCoordinator) compensate(
	ctx context.Context,
	batch ReservationBatch,
	applied []ReservationLine,
) error {
	if len(applied) == 0 {
		return nil
	}
	c.metrics.Compensations.Inc()
	c.logger.Warn("compensating failed reservation",
		zap.String("order_id", batch.OrderID.String()),
		zap.Int("applied_lines", len(applied)),
	)

	compCtx := context.WithoutCancel(ctx)
	reason := "compensating failed reservation"
	failures := map[string]error{}
	for i := len(applied) - 1; i >= 0; i-- {
		line := applied[i]
		res, err := c.adjustments.OrderIncrement(
			compCtx, line.ProductID, line.Quantity,
			domain.OpOrderRelease, reason, batch.OrderID,
		)
		if err != nil {
			if res != nil {
				// The stock credit landed; only the audit trail is short an
				// entry. That is not a failure to restore stock.
				c.logger.Error("compensation credited stock but bookkeeping failed",
					zap.String("order_id", batch.OrderID.String()),
					zap.String("product_id", line.ProductID),
					zap.Error(err),
				)
				continue
			}
			failures[line.ProductID] = err
		}
	}
	if len(failures) == 0 {
		return nil
	}

	// Stock and ledger are now inconsistent with the order workflow; this is
	// fatal and must never be folded into an ordinary validation failure.
	compFailure := &domain.CompensationFailureError{
		OrderID:  batch.OrderID.String(),
		Failures: failures,
	}
	c.metrics.Reservations.WithLabelValues("compensation_failed").Inc()
	c.logger.Error("compensation failed, manual reconciliation required",
		zap.String("order_id", batch.OrderID.String()),
		zap.Error(compFailure),
	)
	return compFailure
}

// fail records the terminal FAILED state and emits the failure event so the
// order workflow can tell the customer exactly which items were unavailable.
func (c *ReservationCoordinator) fail(ctx context.Context, batch ReservationBatch, cause error) error {
	c.metrics.Reservations.WithLabelValues("failed").Inc()
	c.logger.Info("reservation failed",
		zap.String("order_id", batch.OrderID.String()),
		zap.String("reason", cause.Error()),
	)
	ev := domain.NewStockReservationFailedEvent(batch.OrderID, cause.Error())
	if err := c.outbox.Enqueue(ctx, ev); err != nil {
		return errors.Join(cause, err)
	}
	return cause
}

// Release credits back a previously committed batch on cancellation. The
// caller supplies the originally reserved quantities and guards against
// double release; the engine applies exactly what it is given.
func (c *ReservationCoordinator) Release(ctx context.Context, batch ReservationBatch) error {
	reason := fmt.Sprintf("released for order %s", batch.OrderID)
	return c.creditBack(ctx, batch, domain.OpOrderRelease, reason)
}

// Restock credits stock back for returned items.
func (c *ReservationCoordinator) Restock(ctx context.Context, batch ReservationBatch) error {
	reason := fmt.Sprintf("return restock for order %s", batch.OrderID)
	return c.creditBack(ctx, batch, domain.OpReturnRestock, reason)
}

func (c *ReservationCoordinator) creditBack(
	ctx context.Context,
	batch ReservationBatch,
	op domain.Operation,
	reason string,
) error {
	if batch.OrderID == uuid.Nil {
		return errors.New("missing orderId")
	}

	var errs []error
	for _, line := range sortedLines(batch.Lines) {
		res, err := c.adjustments.OrderIncrement(
			ctx, line.ProductID, line.Quantity, op, reason, batch.OrderID,
		)
		if err != nil {
			if res != nil {
				// Stock was credited; failing here would invite a redelivery
				// that credits it a second time.
				c.logger.Error("credit applied but bookkeeping failed",
					zap.String("order_id", batch.OrderID.String()),
					zap.String("product_id", line.ProductID),
					zap.Error(err),
				)
				continue
			}
			errs = append(errs, fmt.Errorf("crediting %s: %w", line.ProductID, err))
		}
	}
	if len(errs) > 0 {
		c.metrics.Reservations.WithLabelValues("release_failed").Inc()
		return errors.Join(errs...)
	}

	if op == domain.OpOrderRelease {
		evLines := make([]domain.StockReservedLine, 0, len(batch.Lines))
		for _, line := range batch.Lines {
			evLines = append(evLines, domain.StockReservedLine{
				ProductID: line.ProductID,
				Quantity:  line.Quantity,
			})
		}
		if err := c.outbox.Enqueue(ctx, domain.NewStockReleasedEvent(batch.OrderID, evLines)); err != nil {
			return err
		}
	}

	outcome := "released"
	if op == domain.OpReturnRestock {
		outcome = "restocked"
	}
	c.metrics.Reservations.WithLabelValues(outcome).Inc()
	return nil
}

// AlreadyReserved reports whether the ledger holds ORDER_RESERVE entries for
// the order. Consumers use it to drop redelivered OrderPlaced events instead
// of double-decrementing.
func (c *ReservationCoordinator) AlreadyReserved(ctx context.Context, orderID uuid.UUID) (bool, error) {
	entries, err := c.ledger.HistoryForOrder(ctx, orderID)
	if err != nil {
		return false, err
	}
	for _, e := range entries {
		if e.Operation == domain.OpOrderReserve {
			return true, nil
		}
	}
	return false, nil
}

func sortedLines(lines []ReservationLine) []ReservationLine {
	sorted := make([]ReservationLine, len(lines))
	copy(sorted, lines)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].ProductID < sorted[j].ProductID
	})
	return sorted
}
