package application

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/ahsanhabibakik/rupomoti-stock-go/internal/observability"
)

func TestSweepOnce_reEvaluatesLowProducts(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	seed(t, f, map[string]int{
		"empty":    0,
		"critical": 4,
		"low":      8,
		"healthy":  50,
	})

	sweeper := NewAlertSweeper(f.store, f.outbox, observability.NewNop(), zap.NewNop(), time.Minute)

	emitted, err := sweeper.SweepOnce(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if emitted != 3 {
		t.Errorf("expected 3 alerts, got %d", emitted)
	}
	if n := f.outbox.countByKey("StockAlert"); n != 3 {
		t.Errorf("expected 3 StockAlert events in outbox, got %d", n)
	}
}

func TestSweepOnce_emptyStoreEmitsNothing(t *testing.T) {
	f := newFixture()
	sweeper := NewAlertSweeper(f.store, f.outbox, observability.NewNop(), zap.NewNop(), time.Minute)

	emitted, err := sweeper.SweepOnce(context.Background())
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if emitted != 0 {
		t.Errorf("expected no alerts, got %d", emitted)
	}
}
