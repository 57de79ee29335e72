package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/ahsanhabibakik/rupomoti-stock-go/internal/application"
	"github.com/ahsanhabibakik/rupomoti-stock-go/internal/config"
	"github.com/ahsanhabibakik/rupomoti-stock-go/internal/domain"
)

// Server groups deps for the HTTP layer: read-only stock/ledger views plus
// the administrative adjustment endpoints.
type Server struct {
	cfg         config.Config
	store       domain.StockStore
	ledger      domain.LedgerRepository
	adjustments *application.AdjustmentService
	logger      *zap.Logger
}

func NewServer(
	cfg config.Config,
	store domain.StockStore,
	ledger domain.LedgerRepository,
	adjustments *application.AdjustmentService,
	logger *zap.Logger,
) *Server {
	return &Server{
		cfg:         cfg,
		store:       store,
		ledger:      ledger,
		adjustments: adjustments,
		logger:      logger,
	}
}

// RegisterRoutes registers all HTTP routes on the mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/api/stock/bulk-set", s.handleBulkSet)
	mux.HandleFunc("/api/stock/", s.handleStock)
	mux.HandleFunc("/api/orders/", s.handleOrderLedger)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/swagger.json", s.handleSwaggerJson)
}

type healthResponse struct {
	Status string `json:"status"`
}

type stockResponse struct {
	ProductID string `json:"productId"`
	Stock     int    `json:"stock"`
}

type adjustmentRequest struct {
	Amount  int    `json:"amount"`
	Value   int    `json:"value"`
	Reason  string `json:"reason"`
	ActorID string `json:"actorId"`
}

type adjustmentResponse struct {
	ProductID     string  `json:"productId"`
	PreviousStock int     `json:"previousStock"`
	NewStock      int     `json:"newStock"`
	Delta         int     `json:"delta"`
	AlertSeverity *string `json:"alertSeverity,omitempty"`
}

type ledgerEntryResponse struct {
	ID            uuid.UUID `json:"id"`
	ProductID     string    `json:"productId"`
	PreviousStock int       `json:"previousStock"`
	NewStock      int       `json:"newStock"`
	Delta         int       `json:"delta"`
	Operation     string    `json:"operation"`
	Reason        string    `json:"reason"`
	OrderID       *string   `json:"orderId,omitempty"`
	ActorID       string    `json:"actorId,omitempty"`
	CreatedAtUtc  string    `json:"createdAtUtc"`
}

type bulkSetRequest struct {
	ActorID string `json:"actorId"`
	Items   []struct {
		ProductID string `json:"productId"`
		Value     int    `json:"value"`
		Reason    string `json:"reason"`
	} `json:"items"`
}

type bulkSetOutcomeResponse struct {
	ProductID string              `json:"productId"`
	Ok        bool                `json:"ok"`
	Error     string              `json:"error,omitempty"`
	Result    *adjustmentResponse `json:"result,omitempty"`
}

// Handler /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
}

// Handler for /api/stock/{productId}[/history|/increment|/decrement]
func (s *Server) handleStock(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/stock/")
	if path == "" || path == r.URL.Path {
		http.Error(w, "productId is required", http.StatusBadRequest)
		return
	}

	parts := strings.SplitN(path, "/", 2)
	productID := parts[0]
	action := ""
	if len(parts) == 2 {
		action = parts[1]
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		s.getStock(w, r, productID)
	case action == "" && r.Method == http.MethodPut:
		s.setStock(w, r, productID)
	case action == "history" && r.Method == http.MethodGet:
		s.getHistory(w, r, productID)
	case action == "increment" && r.Method == http.MethodPost:
		s.adjust(w, r, productID, true)
	case action == "decrement" && r.Method == http.MethodPost:
		s.adjust(w, r, productID, false)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// GET /api/stock/{productId}
func (s *Server) getStock(w http.ResponseWriter, r *http.Request, productID string) {
	stock, err := s.store.Get(r.Context(), productID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, stockResponse{ProductID: productID, Stock: stock})
}

// PUT /api/stock/{productId}
func (s *Server) setStock(w http.ResponseWriter, r *http.Request, productID string) {
	var req adjustmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	result, err := s.adjustments.Set(r.Context(), productID, req.Value, req.Reason, req.ActorID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toAdjustmentResponse(result))
}

// POST /api/stock/{productId}/increment | /decrement
func (s *Server) adjust(w http.ResponseWriter, r *http.Request, productID string, up bool) {
	var req adjustmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	var result *application.AdjustmentResult
	var err error
	if up {
		result, err = s.adjustments.Increment(r.Context(), productID, req.Amount, req.Reason, req.ActorID)
	} else {
		result, err = s.adjustments.Decrement(r.Context(), productID, req.Amount, req.Reason, req.ActorID)
	}
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toAdjustmentResponse(result))
}

// GET /api/stock/{productId}/history?limit=N
func (s *Server) getHistory(w http.ResponseWriter, r *http.Request, productID string) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			http.Error(w, "limit is invalid", http.StatusBadRequest)
			return
		}
		limit = n
	}

	entries, err := s.ledger.History(r.Context(), productID, limit)
	if err != nil {
		s.logger.Error("ledger history error", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, http.StatusOK, toLedgerResponses(entries))
}

// GET /api/orders/{orderId}/ledger
func (s *Server) handleOrderLedger(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/api/orders/")
	if path == "" || path == r.URL.Path {
		http.Error(w, "orderId is required", http.StatusBadRequest)
		return
	}
	orderIDStr := strings.TrimSuffix(path, "/ledger")
	if orderIDStr == path {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}

	orderID, err := uuid.Parse(orderIDStr)
	if err != nil {
		http.Error(w, "orderId is invalid", http.StatusBadRequest)
		return
	}

	entries, err := s.ledger.HistoryForOrder(r.Context(), orderID)
	if err != nil {
		s.logger.Error("order ledger error", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, http.StatusOK, toLedgerResponses(entries))
}

// POST /api/stock/bulk-set
func (s *Server) handleBulkSet(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req bulkSetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	if len(req.Items) == 0 {
		http.Error(w, "items are required", http.StatusBadRequest)
		return
	}

	items := make([]application.BulkSetItem, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, application.BulkSetItem{
			ProductID: it.ProductID,
			Value:     it.Value,
			Reason:    it.Reason,
		})
	}

	outcomes := s.adjustments.BulkSet(r.Context(), items, req.ActorID)

	resp := make([]bulkSetOutcomeResponse, 0, len(outcomes))
	for _, o := range outcomes {
		item := bulkSetOutcomeResponse{ProductID: o.ProductID, Ok: o.Err == nil}
		if o.Err != nil {
			item.Error = o.Err.Error()
		} else {
			res := toAdjustmentResponse(o.Result)
			item.Result = &res
		}
		resp = append(resp, item)
	}
	// 207: items succeed or fail independently
	s.writeJSON(w, http.StatusMultiStatus, resp)
}

// Handler GET /swagger.json
func (s *Server) handleSwaggerJson(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(openAPISpec))
}

func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	var notFound *domain.ProductNotFoundError
	var insufficient *domain.InsufficientStockError
	switch {
	case errors.As(err, &notFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.As(err, &insufficient):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, application.ErrInvalidAmount), errors.Is(err, application.ErrNegativeValue):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		s.logger.Error("stock api error", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func toAdjustmentResponse(result *application.AdjustmentResult) adjustmentResponse {
	resp := adjustmentResponse{
		ProductID:     result.ProductID,
		PreviousStock: result.PreviousStock,
		NewStock:      result.NewStock,
		Delta:         result.Delta,
	}
	if result.Alert != nil {
		sev := string(result.Alert.Severity)
		resp.AlertSeverity = &sev
	}
	return resp
}

func toLedgerResponses(entries []domain.LedgerEntry) []ledgerEntryResponse {
	resp := make([]ledgerEntryResponse, 0, len(entries))
	for _, e := range entries {
		item := ledgerEntryResponse{
			ID:            e.ID,
			ProductID:     e.ProductID,
			PreviousStock: e.PreviousStock,
			NewStock:      e.NewStock,
			Delta:         e.Delta,
			Operation:     string(e.Operation),
			Reason:        e.Reason,
			ActorID:       e.ActorID,
			CreatedAtUtc:  e.CreatedAtUtc.UTC().Format(time.RFC3339Nano),
		}
		if e.OrderID != nil {
			id := e.OrderID.String()
			item.OrderID = &id
		}
		resp = append(resp, item)
	}
	return resp
}

// Util to write JSON
func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("writeJSON error", zap.Error(err))
	}
}

// Minimal OpenAPI spec in JSON for Swagger.
const openAPISpec = `{
  "openapi": "3.0.0",
  "info": {
    "title": "Stock Ledger API",
    "version": "1.0.0"
  },
  "paths": {
    "/health": {
      "get": {
        "summary": "Health check",
        "responses": {"200": {"description": "Service is healthy"}}
      }
    },
    "/api/stock/{productId}": {
      "get": {
        "summary": "Get current stock",
        "parameters": [{"name": "productId", "in": "path", "required": true, "schema": {"type": "string"}}],
        "responses": {"200": {"description": "Current stock"}, "404": {"description": "Product not found"}}
      },
      "put": {
        "summary": "Set absolute stock value",
        "parameters": [{"name": "productId", "in": "path", "required": true, "schema": {"type": "string"}}],
        "responses": {"200": {"description": "Stock updated"}, "404": {"description": "Product not found"}}
      }
    },
    "/api/stock/{productId}/history": {
      "get": {
        "summary": "Stock ledger, most recent first",
        "parameters": [
          {"name": "productId", "in": "path", "required": true, "schema": {"type": "string"}},
          {"name": "limit", "in": "query", "schema": {"type": "integer"}}
        ],
        "responses": {"200": {"description": "Ledger entries"}}
      }
    },
    "/api/stock/{productId}/increment": {
      "post": {
        "summary": "Increment stock",
        "parameters": [{"name": "productId", "in": "path", "required": true, "schema": {"type": "string"}}],
        "responses": {"200": {"description": "Stock updated"}, "400": {"description": "Invalid amount"}}
      }
    },
    "/api/stock/{productId}/decrement": {
      "post": {
        "summary": "Decrement stock",
        "parameters": [{"name": "productId", "in": "path", "required": true, "schema": {"type": "string"}}],
        "responses": {"200": {"description": "Stock updated"}, "409": {"description": "Insufficient stock"}}
      }
    },
    "/api/stock/bulk-set": {
      "post": {
        "summary": "Set many products, per-item outcomes",
        "responses": {"207": {"description": "Per-item results"}}
      }
    },
    "/api/orders/{orderId}/ledger": {
      "get": {
        "summary": "Ledger entries for an order",
        "parameters": [{"name": "orderId", "in": "path", "required": true, "schema": {"type": "string", "format": "uuid"}}],
        "responses": {"200": {"description": "Ledger entries"}}
      }
    }
  }
}`
