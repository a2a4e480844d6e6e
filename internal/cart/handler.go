package cart

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/joao-fontenele/cellarflow/internal/apierr"
	"github.com/joao-fontenele/cellarflow/internal/domain"
	"github.com/joao-fontenele/cellarflow/internal/pagination"
	"github.com/joao-fontenele/cellarflow/internal/validation"
)

type Enricher interface {
	Enrich(ctx context.Context, lines []domain.CartLine) ([]domain.EnrichedLine, error)
}

type Handler struct {
	store    *Store
	enricher Enricher
	limits   pagination.Limits
	timeout  time.Duration
	logger   *slog.Logger
}

func NewHandler(store *Store, enricher Enricher, limits pagination.Limits, timeout time.Duration, logger *slog.Logger) *Handler {
	return &Handler{
		store:    store,
		enricher: enricher,
		limits:   limits,
		timeout:  timeout,
		logger:   logger,
	}
}

type mutateRequest struct {
	Items []Mutation `json:"items" validate:"min=1,dive"`
}

type mutateResponse struct {
	Messages []string `json:"messages"`
}

// HandleMutate accepts a JSON array of line changes.
func (h *Handler) HandleMutate(w http.ResponseWriter, r *http.Request) {
	var req mutateRequest
	if err := json.NewDecoder(r.Body).Decode(&req.Items); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validation.Struct(req); err != nil {
		h.fail(w, err, "invalid cart mutation")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	messages, err := h.store.Mutate(ctx, req.Items)
	if err != nil {
		h.fail(w, err, "failed to mutate cart", "applied", len(messages), "requested", len(req.Items))
		return
	}

	h.writeJSON(w, http.StatusOK, mutateResponse{Messages: messages})
}

type cartPage struct {
	pagination.Page[domain.EnrichedLine]
	OwnerID    string `json:"ownerId"`
	CartID     string `json:"cartId"`
	TotalPrice int64  `json:"totalPrice"`
	ExpiresAt  int64  `json:"expiresAt"`
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ownerID := r.PathValue("ownerId")

	req, err := h.limits.ParseRequest(r)
	if err != nil {
		h.fail(w, err, "invalid cart request")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	cart, err := h.store.Get(ctx, ownerID)
	if err != nil {
		h.fail(w, err, "failed to get cart", "owner_id", ownerID)
		return
	}

	lines, err := h.enricher.Enrich(ctx, cart.Lines)
	if err != nil {
		h.fail(w, err, "failed to enrich cart", "owner_id", ownerID, "lines", len(cart.Lines))
		return
	}

	items, next, err := pagination.Slice(lines, req)
	if err != nil {
		h.fail(w, err, "invalid cart cursor")
		return
	}
	page, err := pagination.NewPage(items, next)
	if err != nil {
		h.fail(w, err, "failed to encode page")
		return
	}

	h.writeJSON(w, http.StatusOK, cartPage{
		Page:       page,
		OwnerID:    cart.OwnerID,
		CartID:     cart.CartID,
		TotalPrice: domain.LinesTotal(lines),
		ExpiresAt:  cart.ExpiresAt,
	})
}

func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ownerID := r.PathValue("ownerId")

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := h.store.DeleteByOwner(ctx, ownerID); err != nil {
		h.fail(w, err, "failed to delete cart", "owner_id", ownerID)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"message": MsgCartDeleted})
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
