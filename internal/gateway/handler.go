package gateway

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/joao-fontenele/cellarflow/internal/telemetry"
)

type Handler struct {
	cartProxy      *ServiceProxy
	inventoryProxy *ServiceProxy
	ordersProxy    *ServiceProxy
	logger         *slog.Logger
}

func NewHandler(cartProxy, inventoryProxy, ordersProxy *ServiceProxy, logger *slog.Logger) *Handler {
	return &Handler{
		cartProxy:      cartProxy,
		inventoryProxy: inventoryProxy,
		ordersProxy:    ordersProxy,
		logger:         logger,
	}
}

func (h *Handler) HandleCart(w http.ResponseWriter, r *http.Request) {
	h.proxyRequest(w, r, h.cartProxy)
}

// HandleInventory serves both the catalog and the stock endpoints.
func (h *Handler) HandleInventory(w http.ResponseWriter, r *http.Request) {
	h.proxyRequest(w, r, h.inventoryProxy)
}

func (h *Handler) HandleOrders(w http.ResponseWriter, r *http.Request) {
	h.proxyRequest(w, r, h.ordersProxy)
}

// Routes registers every public path on mux.
func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("/cart", telemetry.WithHTTPRoute(h.HandleCart))
	mux.HandleFunc("/cart/", telemetry.WithHTTPRoute(h.HandleCart))
	mux.HandleFunc("/products", telemetry.WithHTTPRoute(h.HandleInventory))
	mux.HandleFunc("/products/", telemetry.WithHTTPRoute(h.HandleInventory))
	mux.HandleFunc("/stock/", telemetry.WithHTTPRoute(h.HandleInventory))
	mux.HandleFunc("/orders", telemetry.WithHTTPRoute(h.HandleOrders))
	mux.HandleFunc("/orders/", telemetry.WithHTTPRoute(h.HandleOrders))
}

func (h *Handler) proxyRequest(w http.ResponseWriter, r *http.Request, proxy *ServiceProxy) {
	path := r.URL.Path
	resp, err := proxy.ForwardRequest(r.Context(), r, path)
	if err != nil {
		h.logger.Error("failed to forward request", "error", err, "path", path)
		h.writeError(w, http.StatusBadGateway, "service unavailable")
		return
	}
	defer func() { _ = resp.Body.Close() }()

	if contentType := resp.Header.Get("Content-Type"); contentType != "" {
		w.Header().Set("Content-Type", contentType)
	}

	w.WriteHeader(resp.StatusCode)

	h.logger.Info("request proxied", "method", r.Method, "path", path, "status", resp.StatusCode)

	if _, err := io.Copy(w, resp.Body); err != nil {
		h.logger.Error("failed to copy response body", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(map[string]string{"error": message}); err != nil {
		h.logger.Error("failed to encode error response", "error", err)
	}
}
