package orders

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/joao-fontenele/cellarflow/internal/apierr"
	"github.com/joao-fontenele/cellarflow/internal/auth"
	"github.com/joao-fontenele/cellarflow/internal/domain"
	"github.com/joao-fontenele/cellarflow/internal/pagination"
	"github.com/joao-fontenele/cellarflow/internal/validation"
)

const msgNoOrders = "No orders found"

type Handler struct {
	repo    Repository
	limits  pagination.Limits
	timeout time.Duration
	logger  *slog.Logger
}

func NewHandler(repo Repository, limits pagination.Limits, timeout time.Duration, logger *slog.Logger) *Handler {
	return &Handler{
		repo:    repo,
		limits:  limits,
		timeout: timeout,
		logger:  logger,
	}
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	orderID := r.PathValue("orderId")

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	order, err := h.repo.GetByID(ctx, orderID)
	if err != nil {
		h.fail(w, err, "failed to get order", "order_id", orderID)
		return
	}

	h.logger.Info("order retrieved", "order_id", order.OrderID)
	h.writeJSON(w, http.StatusOK, order)
}

// HandleList lists one owner's orders, or every order for admins when no
// owner is given.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ownerID := r.URL.Query().Get("ownerId")
	if ownerID == "" && !auth.IsAdmin(r) {
		h.fail(w, domain.ErrForbidden, "listing all orders requires admin")
		return
	}

	req, err := h.limits.ParseRequest(r)
	if err != nil {
		h.fail(w, err, "invalid list request")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	orders, next, err := h.repo.List(ctx, ownerID, req)
	if err != nil {
		h.fail(w, err, "failed to list orders", "owner_id", ownerID)
		return
	}
	if len(orders) == 0 {
		h.writeError(w, http.StatusNotFound, msgNoOrders)
		return
	}

	page, err := pagination.NewPage(orders, next)
	if err != nil {
		h.fail(w, err, "failed to encode page")
		return
	}

	h.logger.Info("orders listed", "count", page.TotalCount, "owner_id", ownerID)
	h.writeJSON(w, http.StatusOK, page)
}

type updateStatusRequest struct {
	Status domain.OrderStatus `json:"status" validate:"required,oneof=fulfilled failed"`
}

func (h *Handler) HandleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	orderID := r.PathValue("orderId")

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validation.Struct(req); err != nil {
		h.fail(w, err, "invalid status update")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	order, err := h.repo.UpdateStatus(ctx, orderID, req.Status)
	if err != nil {
		h.fail(w, err, "failed to update order status", "order_id", orderID)
		return
	}

	h.logger.Info("order status updated", "order_id", order.OrderID, "status", order.Status)
	h.writeJSON(w, http.StatusOK, order)
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
