package application

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ahsanhabibakik/rupomoti-stock-go/internal/domain"
	"github.com/ahsanhabibakik/rupomoti-stock-go/internal/observability"
)

// AlertSweeper periodically re-evaluates alerts for every product at or below
// the LOW threshold. It catches items that reached a low state outside the
// adjustment path, e.g. via data repair directly in the store.
type AlertSweeper struct {
	store    domain.StockStore
	outbox   OutboxWriter
	metrics  *observability.Metrics
	logger   *zap.Logger
	interval time.Duration
}

func NewAlertSweeper(
	store domain.StockStore,
	outbox OutboxWriter,
	metrics *observability.Metrics,
	logger *zap.Logger,
	interval time.Duration,
) *AlertSweeper {
	return &AlertSweeper{
		store:    store,
		outbox:   outbox,
		metrics:  metrics,
		logger:   logger,
		interval: interval,
	}
}

func (s *AlertSweeper) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				s.logger.Info("alert sweeper stopped")
				return
			case <-ticker.C:
				if n, err := s.SweepOnce(ctx); err != nil {
					s.logger.Error("alert sweep error", zap.Error(err))
				} else if n > 0 {
					s.logger.Info("alert sweep emitted alerts", zap.Int("count", n))
				}
			}
		}
	}()
}

func (s *AlertSweeper) SweepOnce(ctx context.Context) (int, error) {
	low, err := s.store.LowStock(ctx, domain.LowStockThreshold)
	if err != nil {
		return 0, err
	}

	emitted := 0
	for productID, stock := range low {
		alert := domain.EvaluateAlert(productID, stock)
		if alert == nil {
			continue
		}
		if err := s.outbox.Enqueue(ctx, domain.NewStockAlertEvent(alert)); err != nil {
			return emitted, err
		}
		s.metrics.Alerts.WithLabelValues(string(alert.Severity)).Inc()
		emitted++
	}
	return emitted, nil
}
