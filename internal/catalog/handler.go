package catalog

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joao-fontenele/cellarflow/internal/apierr"
	"github.com/joao-fontenele/cellarflow/internal/domain"
	"github.com/joao-fontenele/cellarflow/internal/pagination"
	"github.com/joao-fontenele/cellarflow/internal/validation"
)

const maxQueryLength = 200

// Filter narrows a product listing. Zero fields match everything.
type Filter struct {
	Category string
	// Query matches a case-insensitive substring of the product name.
	Query string
}

func (f Filter) Matches(p domain.Product) bool {
	if f.Category != "" && string(p.Category) != f.Category {
		return false
	}
	return f.Query == "" || strings.Contains(strings.ToLower(p.Name), strings.ToLower(f.Query))
}

type Store interface {
	Create(ctx context.Context, p *domain.Product) error
	Get(ctx context.Context, productID string) (*domain.Product, error)
	BatchGet(ctx context.Context, productIDs []string) ([]domain.Product, error)
	List(ctx context.Context, filter Filter, req pagination.Request) ([]domain.Product, pagination.Key, error)
	Update(ctx context.Context, productID string, patch domain.ProductPatch) (*domain.Product, error)
	Delete(ctx context.Context, productID string) error
}

type Handler struct {
	store   Store
	limits  pagination.Limits
	timeout time.Duration
	logger  *slog.Logger
}

func NewHandler(store Store, limits pagination.Limits, timeout time.Duration, logger *slog.Logger) *Handler {
	return &Handler{
		store:   store,
		limits:  limits,
		timeout: timeout,
		logger:  logger,
	}
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	req, err := h.limits.ParseRequest(r)
	if err != nil {
		h.fail(w, err, "invalid list request")
		return
	}

	filter := Filter{
		Category: r.URL.Query().Get("category"),
		Query:    strings.TrimSpace(r.URL.Query().Get("query")),
	}
	if filter.Category != "" {
		if err := validation.Struct(domain.ProductPatch{Category: (*domain.Category)(&filter.Category)}); err != nil {
			h.fail(w, err, "invalid category")
			return
		}
	}
	if len(filter.Query) > maxQueryLength {
		h.fail(w, domain.InvalidInput("query must be at most %d characters", maxQueryLength), "invalid query")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	products, next, err := h.store.List(ctx, filter, req)
	if err != nil {
		h.fail(w, err, "failed to list products", "category", filter.Category, "query", filter.Query)
		return
	}

	page, err := pagination.NewPage(products, next)
	if err != nil {
		h.fail(w, err, "failed to encode page")
		return
	}

	h.logger.Info("products listed", "count", page.TotalCount, "category", filter.Category, "query", filter.Query)
	h.writeJSON(w, http.StatusOK, page)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	productID := r.PathValue("productId")

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	product, err := h.store.Get(ctx, productID)
	if err != nil {
		h.fail(w, err, "failed to get product", "product_id", productID)
		return
	}

	h.writeJSON(w, http.StatusOK, product)
}

type createProductRequest struct {
	ProductID     string          `json:"productId"`
	Name          string          `json:"name" validate:"required,max=200"`
	Description   string          `json:"description" validate:"max=4000"`
	Category      domain.Category `json:"category" validate:"required,oneof=Red White Rose Sparkling Dessert Fortified"`
	UnitPrice     int64           `json:"unitPrice" validate:"gte=0"`
	ImageRef      string          `json:"imageRef" validate:"max=1024"`
	StockQuantity int             `json:"stockQuantity" validate:"gte=0,max=1000000"`
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req createProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validation.Struct(req); err != nil {
		h.fail(w, err, "invalid product")
		return
	}

	now := time.Now().UTC()
	product := &domain.Product{
		ProductID:     req.ProductID,
		Name:          req.Name,
		Description:   req.Description,
		Category:      req.Category,
		UnitPrice:     req.UnitPrice,
		ImageRef:      req.ImageRef,
		StockQuantity: req.StockQuantity,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if product.ProductID == "" {
		product.ProductID = uuid.New().String()
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := h.store.Create(ctx, product); err != nil {
		h.fail(w, err, "failed to create product", "product_id", product.ProductID)
		return
	}

	h.logger.Info("product created", "product_id", product.ProductID)
	h.writeJSON(w, http.StatusCreated, product)
}

func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	productID := r.PathValue("productId")

	var patch domain.ProductPatch
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&patch); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if patch.Empty() {
		h.writeError(w, http.StatusBadRequest, "no updatable fields provided")
		return
	}
	if err := validation.Struct(patch); err != nil {
		h.fail(w, err, "invalid product patch")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	product, err := h.store.Update(ctx, productID, patch)
	if err != nil {
		h.fail(w, err, "failed to update product", "product_id", productID)
		return
	}

	h.logger.Info("product updated", "product_id", productID)
	h.writeJSON(w, http.StatusOK, product)
}

func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	productID := r.PathValue("productId")

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := h.store.Delete(ctx, productID); err != nil {
		h.fail(w, err, "failed to delete product", "product_id", productID)
		return
	}

	h.logger.Info("product deleted", "product_id", productID)
	h.writeJSON(w, http.StatusOK, map[string]string{"message": "Product deleted successfully"})
}

func (h *Handler) fail(w http.ResponseWriter, err error, msg string, args ...any) {
	fail(w, h.logger, err, msg, args...)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	writeJSON(w, h.logger, status, data)
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	writeError(w, h.logger, status, message)
}

func fail(w http.ResponseWriter, logger *slog.Logger, err error, msg string, args ...any) {
	status := apierr.Status(err)
	if status >= http.StatusInternalServerError {
		logger.Error(msg, append([]any{"error", err}, args...)...)
	}
	writeError(w, logger, status, apierr.Message(err))
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, logger *slog.Logger, status int, message string) {
	writeJSON(w, logger, status, map[string]string{"error": message})
}
