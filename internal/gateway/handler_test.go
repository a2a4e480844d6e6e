package gateway

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newBackend(t *testing.T, name string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"service": name,
			"path":    r.URL.Path,
			"query":   r.URL.RawQuery,
			"groups":  r.Header.Get("X-User-Groups"),
		})
	}))
	t.Cleanup(server.Close)
	return server
}

func newTestGateway(t *testing.T) *http.ServeMux {
	t.Helper()
	cart := newBackend(t, "cart")
	inventory := newBackend(t, "inventory")
	orders := newBackend(t, "orders")

	handler := NewHandler(
		NewServiceProxy(cart.URL, cart.Client()),
		NewServiceProxy(inventory.URL, inventory.Client()),
		NewServiceProxy(orders.URL, orders.Client()),
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)
	mux := http.NewServeMux()
	handler.Routes(mux)
	return mux
}

func TestHandler_Routes(t *testing.T) {
	mux := newTestGateway(t)

	tests := []struct {
		method  string
		target  string
		service string
	}{
		{http.MethodPost, "/cart", "cart"},
		{http.MethodGet, "/cart/u1?pageSize=5", "cart"},
		{http.MethodGet, "/products?category=Red", "inventory"},
		{http.MethodPatch, "/products/W1", "inventory"},
		{http.MethodGet, "/stock/W1", "inventory"},
		{http.MethodPost, "/stock/decrement", "inventory"},
		{http.MethodGet, "/orders?ownerId=u1", "orders"},
		{http.MethodPatch, "/orders/o1/status", "orders"},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.target, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.target, strings.NewReader(`{}`))
			req.Header.Set("X-User-Groups", "ADMINS")
			rec := httptest.NewRecorder()

			mux.ServeHTTP(rec, req)

			if rec.Code != http.StatusOK {
				t.Fatalf("expected status 200, got %d", rec.Code)
			}
			var got map[string]string
			if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if got["service"] != tt.service {
				t.Errorf("expected %s backend, got %s", tt.service, got["service"])
			}
			if wantPath, wantQuery, _ := strings.Cut(tt.target, "?"); got["path"] != wantPath || got["query"] != wantQuery {
				t.Errorf("expected %s?%s, got %s?%s", wantPath, wantQuery, got["path"], got["query"])
			}
			if got["groups"] != "ADMINS" {
				t.Errorf("expected groups header to be forwarded, got %q", got["groups"])
			}
		})
	}
}

func TestHandler_proxyRequest(t *testing.T) {
	t.Run("preserves downstream error status", func(t *testing.T) {
		backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":"not found: product W9"}`))
		}))
		defer backend.Close()

		unused := NewServiceProxy("http://unused", http.DefaultClient)
		handler := NewHandler(unused, NewServiceProxy(backend.URL, backend.Client()), unused,
			slog.New(slog.NewTextHandler(io.Discard, nil)))

		rec := httptest.NewRecorder()
		handler.HandleInventory(rec, httptest.NewRequest(http.MethodGet, "/stock/W9", nil))

		if rec.Code != http.StatusNotFound {
			t.Errorf("expected status 404, got %d", rec.Code)
		}
		if rec.Body.String() != `{"error":"not found: product W9"}` {
			t.Errorf("unexpected body: %s", rec.Body.String())
		}
	})

	t.Run("returns 502 when backend unavailable", func(t *testing.T) {
		down := NewServiceProxy("http://localhost:99999", &http.Client{})
		handler := NewHandler(down, down, down, slog.New(slog.NewTextHandler(io.Discard, nil)))

		rec := httptest.NewRecorder()
		handler.HandleCart(rec, httptest.NewRequest(http.MethodGet, "/cart/u1", nil))

		if rec.Code != http.StatusBadGateway {
			t.Fatalf("expected status 502, got %d", rec.Code)
		}
		var resp map[string]string
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if resp["error"] != "service unavailable" {
			t.Errorf("expected 'service unavailable', got %s", resp["error"])
		}
	})
}
