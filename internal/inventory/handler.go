package inventory

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/joao-fontenele/cellarflow/internal/apierr"
	"github.com/joao-fontenele/cellarflow/internal/domain"
	"github.com/joao-fontenele/cellarflow/internal/validation"
)

type Handler struct {
	ledger  *Ledger
	timeout time.Duration
	logger  *slog.Logger
}

func NewHandler(ledger *Ledger, timeout time.Duration, logger *slog.Logger) *Handler {
	return &Handler{
		ledger:  ledger,
		timeout: timeout,
		logger:  logger,
	}
}

func (h *Handler) HandleGetStock(w http.ResponseWriter, r *http.Request) {
	productID := r.PathValue("productId")
	if productID == "" {
		h.writeError(w, http.StatusBadRequest, "missing product id")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	level, err := h.ledger.GetStock(ctx, productID)
	if err != nil {
		h.fail(w, err, "failed to get stock", "product_id", productID)
		return
	}

	h.writeJSON(w, http.StatusOK, level)
}

type stockUpdateItem struct {
	ProductID string `json:"productId" validate:"required"`
	Quantity  int    `json:"quantity" validate:"gte=1,max=10000"`
}

type stockUpdateRequest struct {
	Items []stockUpdateItem `json:"items" validate:"required,min=1,dive"`
}

type stockUpdateResult struct {
	ProductID      string `json:"productId"`
	Quantity       int    `json:"quantity"`
	RemainingStock *int   `json:"remainingStock,omitempty"`
	InStock        *bool  `json:"inStock,omitempty"`
	Error          string `json:"error,omitempty"`
}

type stockUpdateResponse struct {
	Results []stockUpdateResult `json:"results"`
}

// HandleDecrement applies every requested decrement in order. Each item is
// independent; the response reports the outcome of each one and the status
// reflects the most severe failure.
func (h *Handler) HandleDecrement(w http.ResponseWriter, r *http.Request) {
	var req stockUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validation.Struct(req); err != nil {
		h.writeError(w, apierr.Status(err), apierr.Message(err))
		return
	}

	status := http.StatusOK
	results := make([]stockUpdateResult, 0, len(req.Items))
	for _, item := range req.Items {
		result := stockUpdateResult{ProductID: item.ProductID, Quantity: item.Quantity}

		ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
		level, err := h.ledger.Decrement(ctx, item.ProductID, item.Quantity)
		cancel()

		if err != nil {
			result.Error = apierr.Message(err)
			if s := apierr.Status(err); s > status {
				status = s
			}
			if !errors.Is(err, domain.ErrInsufficientStock) && !errors.Is(err, domain.ErrNotFound) {
				h.logger.Error("failed to decrement stock", "error", err, "product_id", item.ProductID, "quantity", item.Quantity)
			}
		} else {
			result.RemainingStock = &level.RemainingStock
			result.InStock = &level.InStock
		}
		results = append(results, result)
	}

	h.logger.Info("stock update processed", "items", len(req.Items), "status", status)
	h.writeJSON(w, status, stockUpdateResponse{Results: results})
}

func (h *Handler) fail(w http.ResponseWriter, err error, msg string, args ...any) {
	status := apierr.Status(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error(msg, append([]any{"error", err}, args...)...)
	}
	h.writeError(w, status, apierr.Message(err))
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
