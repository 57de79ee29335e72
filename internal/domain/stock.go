package domain

import "time"

// ProductStock is the per-product record the engine owns. Only the stock
// counter is mutable, and only through StockStore's atomic primitives.
type ProductStock struct {
	ProductID    string
	Stock        int
	UpdatedAtUtc time.Time
}

func NewProductStock(productID string, stock int) *ProductStock {
	return &ProductStock{
		ProductID:    productID,
		Stock:        stock,
		UpdatedAtUtc: time.Now().UTC(),
	}
}

// AlertSeverity classifies a post-update stock level.
type AlertSeverity string

const (
	AlertLow        AlertSeverity = "LOW"
	AlertCritical   AlertSeverity = "CRITICAL"
	AlertOutOfStock AlertSeverity = "OUT_OF_STOCK"
)

const (
	// LowStockThreshold is the highest stock level that still produces an alert.
	LowStockThreshold      = 10
	CriticalStockThreshold = 5
)

// Alert is derived from a stock level; the engine emits it but never stores it.
type Alert struct {
	ProductID    string
	CurrentStock int
	Severity     AlertSeverity
}

// EvaluateAlert maps a post-update stock count to at most one alert.
// Stateless: repeated calls at the same level produce repeated alerts;
// deduplication belongs to the notification consumer.
func EvaluateAlert(productID string, stock int) *Alert {
	switch {
	case stock <= 0:
		return &Alert{ProductID: productID, CurrentStock: stock, Severity: AlertOutOfStock}
	case stock <= CriticalStockThreshold:
		return &Alert{ProductID: productID, CurrentStock: stock, Severity: AlertCritical}
	case stock <= LowStockThreshold:
		return &Alert{ProductID: productID, CurrentStock: stock, Severity: AlertLow}
	default:
		return nil
	}
}
