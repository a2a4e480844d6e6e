package inventory

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newTestHandler(repo StockRepository) (*Handler, *http.ServeMux) {
	ledger := newTestLedger(repo)
	handler := NewHandler(ledger, time.Second, ledger.logger)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /stock/{productId}", handler.HandleGetStock)
	mux.HandleFunc("POST /stock/decrement", handler.HandleDecrement)
	return handler, mux
}

func TestHandler_HandleGetStock(t *testing.T) {
	_, mux := newTestHandler(newMemoryStock(map[string]int{"W1": 7}))

	t.Run("returns stock level", func(t *testing.T) {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stock/W1", nil))

		if rec.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rec.Code)
		}
		var body map[string]any
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if body["remainingStock"] != float64(7) || body["inStock"] != true {
			t.Errorf("unexpected body: %v", body)
		}
	})

	t.Run("returns 404 for unknown product", func(t *testing.T) {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stock/nope", nil))

		if rec.Code != http.StatusNotFound {
			t.Errorf("expected status 404, got %d", rec.Code)
		}
	})
}

func TestHandler_HandleDecrement(t *testing.T) {
	t.Run("decrements every item", func(t *testing.T) {
		repo := newMemoryStock(map[string]int{"W1": 5, "W2": 3})
		_, mux := newTestHandler(repo)

		body := `{"items":[{"productId":"W1","quantity":2},{"productId":"W2","quantity":3}]}`
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/stock/decrement", strings.NewReader(body)))

		if rec.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if repo.stock["W1"] != 3 || repo.stock["W2"] != 0 {
			t.Errorf("unexpected stock: %v", repo.stock)
		}
		if repo.inStock["W2"] {
			t.Error("expected W2 to be out of stock")
		}
	})

	t.Run("reports conflict on insufficient stock", func(t *testing.T) {
		repo := newMemoryStock(map[string]int{"W1": 1})
		_, mux := newTestHandler(repo)

		body := `{"items":[{"productId":"W1","quantity":2}]}`
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/stock/decrement", strings.NewReader(body)))

		if rec.Code != http.StatusConflict {
			t.Fatalf("expected status 409, got %d", rec.Code)
		}

		var resp stockUpdateResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if len(resp.Results) != 1 || resp.Results[0].Error == "" {
			t.Errorf("expected an error result, got %+v", resp.Results)
		}
		if repo.stock["W1"] != 1 {
			t.Errorf("expected stock 1, got %d", repo.stock["W1"])
		}
	})

	t.Run("rejects invalid quantities", func(t *testing.T) {
		repo := newMemoryStock(map[string]int{"W1": 1})
		_, mux := newTestHandler(repo)

		body := `{"items":[{"productId":"W1","quantity":0}]}`
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/stock/decrement", strings.NewReader(body)))

		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rec.Code)
		}
		if repo.calls != 0 {
			t.Errorf("expected no store calls, got %d", repo.calls)
		}
	})
	t.Run("rejects oversized quantities with a field message", func(t *testing.T) {
		repo := newMemoryStock(map[string]int{"W1": 1})
		_, mux := newTestHandler(repo)

		body := `{"items":[{"productId":"W1","quantity":4294967297}]}`
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/stock/decrement", strings.NewReader(body)))

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected status 400, got %d", rec.Code)
		}
		var resp map[string]string
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if resp["error"] != "invalid input: quantity must be at most 10000" {
			t.Errorf("unexpected error message %q", resp["error"])
		}
		if repo.calls != 0 {
			t.Errorf("expected no store calls, got %d", repo.calls)
		}
	})
}
