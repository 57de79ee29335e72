package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ahsanhabibakik/rupomoti-stock-go/internal/domain"
	"github.com/ahsanhabibakik/rupomoti-stock-go/internal/observability"
)

var (
	ErrInvalidAmount = errors.New("amount must be greater than zero")
	ErrNegativeValue = errors.New("stock value must not be negative")
)

// AdjustmentResult reports one committed mutation back to the caller.
type AdjustmentResult struct {
	ProductID     string
	PreviousStock int
	NewStock      int
	Delta         int
	Alert         *domain.Alert
}

// AdjustmentService is the only legitimate stock mutation path. Every
// successful call commits through the store's atomic primitive, appends
// exactly one ledger entry and evaluates the alert thresholds. A store-level
// failure writes nothing; if the store commit lands but the bookkeeping after
// it fails, the error carries a non-nil result so callers know the counter
// moved.
type AdjustmentService struct {
	store   domain.StockStore
	ledger  domain.LedgerRepository
	outbox  OutboxWriter
	metrics *observability.Metrics
	logger  *zap.Logger
}

func NewAdjustmentService(
	store domain.StockStore,
	ledger domain.LedgerRepository,
	outbox OutboxWriter,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *AdjustmentService {
	return &AdjustmentService{
		store:   store,
		ledger:  ledger,
		outbox:  outbox,
		metrics: metrics,
		logger:  logger,
	}
}

// Increment adds stock, e.g. goods received or a manual correction upward.
func (s *AdjustmentService) Increment(
	ctx context.Context,
	productID string,
	amount int,
	reason, actorID string,
) (*AdjustmentResult, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	prev, next, err := s.store.ApplyDelta(ctx, productID, amount)
	if err != nil {
		s.metrics.Adjustments.WithLabelValues(string(domain.OpIncrement), "error").Inc()
		return nil, err
	}
	return s.commit(ctx, productID, prev, next, domain.OpIncrement, reason, nil, actorID)
}

// Decrement removes stock for administrative corrections.
func (s *AdjustmentService) Decrement(
	ctx context.Context,
	productID string,
	amount int,
	reason, actorID string,
) (*AdjustmentResult, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	prev, next, err := s.store.ApplyDelta(ctx, productID, -amount)
	if err != nil {
		s.metrics.Adjustments.WithLabelValues(string(domain.OpDecrement), "error").Inc()
		return nil, err
	}
	return s.commit(ctx, productID, prev, next, domain.OpDecrement, reason, nil, actorID)
}

// Set overwrites the counter; used for "set to N" admin corrections.
func (s *AdjustmentService) Set(
	ctx context.Context,
	productID string,
	value int,
	reason, actorID string,
) (*AdjustmentResult, error) {
	if value < 0 {
		return nil, ErrNegativeValue
	}
	prev, next, err := s.store.SetAbsolute(ctx, productID, value)
	if err != nil {
		s.metrics.Adjustments.WithLabelValues(string(domain.OpSet), "error").Inc()
		return nil, err
	}
	return s.commit(ctx, productID, prev, next, domain.OpSet, reason, nil, actorID)
}

type BulkSetItem struct {
	ProductID string
	Value     int
	Reason    string
}

type BulkSetOutcome struct {
	ProductID string
	Result    *AdjustmentResult
	Err       error
}

// BulkSet processes each item independently: one item's failure does not
// abort the others. Unlike a reservation batch there is deliberately no
// all-or-nothing guarantee; the caller gets a per-item outcome list.
func (s *AdjustmentService) BulkSet(
	ctx context.Context,
	items []BulkSetItem,
	actorID string,
) []BulkSetOutcome {
	outcomes := make([]BulkSetOutcome, 0, len(items))
	for _, item := range items {
		result, err := s.Set(ctx, item.ProductID, item.Value, item.Reason, actorID)
		outcomes = append(outcomes, BulkSetOutcome{
			ProductID: item.ProductID,
			Result:    result,
			Err:       err,
		})
	}
	return outcomes
}

// OrderDecrement is the reservation coordinator's entry point: a decrement
// attributed to an order, logged under the given order-scoped operation.
func (s *AdjustmentService) OrderDecrement(
	ctx context.Context,
	productID string,
	quantity int,
	op domain.Operation,
	reason string,
	orderID uuid.UUID,
) (*AdjustmentResult, error) {
	if quantity <= 0 {
		return nil, ErrInvalidAmount
	}
	prev, next, err := s.store.ApplyDelta(ctx, productID, -quantity)
	if err != nil {
		s.metrics.Adjustments.WithLabelValues(string(op), "error").Inc()
		return nil, err
	}
	return s.commit(ctx, productID, prev, next, op, reason, &orderID, "")
}

// OrderIncrement credits stock back for releases, returns and compensation.
func (s *AdjustmentService) OrderIncrement(
	ctx context.Context,
	productID string,
	quantity int,
	op domain.Operation,
	reason string,
	orderID uuid.UUID,
) (*AdjustmentResult, error) {
	if quantity <= 0 {
		return nil, ErrInvalidAmount
	}
	prev, next, err := s.store.ApplyDelta(ctx, productID, quantity)
	if err != nil {
		s.metrics.Adjustments.WithLabelValues(string(op), "error").Inc()
		return nil, err
	}
	return s.commit(ctx, productID, prev, next, op, reason, &orderID, "")
}

// commit finishes a mutation the store has already applied. If the ledger
// append or outbox enqueue fails at this point, the counter has still moved,
// so the result is returned alongside the error; callers that roll back on
// failure rely on a non-nil result to know the mutation landed.
func (s *AdjustmentService) commit(
	ctx context.Context,
	productID string,
	prev, next int,
	op domain.Operation,
	reason string,
	orderID *uuid.UUID,
	actorID string,
) (*AdjustmentResult, error) {
	result := &AdjustmentResult{
		ProductID:     productID,
		PreviousStock: prev,
		NewStock:      next,
		Delta:         next - prev,
	}

	entry := domain.NewLedgerEntry(productID, prev, next, op, reason, orderID, actorID)
	if err := s.ledger.Append(ctx, entry); err != nil {
		// The store mutation is already committed; a missing ledger entry is
		// an audit gap, so this must surface loudly.
		s.logger.Error("ledger append failed after committed mutation",
			zap.String("product_id", productID),
			zap.String("operation", string(op)),
			zap.Int("previous_stock", prev),
			zap.Int("new_stock", next),
			zap.Error(err),
		)
		return result, fmt.Errorf("ledger append for %s: %w", productID, err)
	}

	if err := s.outbox.Enqueue(ctx, domain.NewStockAdjustedEvent(entry)); err != nil {
		return result, err
	}

	if alert := domain.EvaluateAlert(productID, next); alert != nil {
		result.Alert = alert
		s.metrics.Alerts.WithLabelValues(string(alert.Severity)).Inc()
		s.logger.Warn("stock alert",
			zap.String("product_id", productID),
			zap.Int("current_stock", next),
			zap.String("severity", string(alert.Severity)),
		)
		if err := s.outbox.Enqueue(ctx, domain.NewStockAlertEvent(alert)); err != nil {
			return result, err
		}
	}

	s.metrics.Adjustments.WithLabelValues(string(op), "ok").Inc()
	s.logger.Info("stock adjusted",
		zap.String("product_id", productID),
		zap.String("operation", string(op)),
		zap.Int("previous_stock", prev),
		zap.Int("new_stock", next),
		zap.Int("delta", next-prev),
	)
	return result, nil
}
