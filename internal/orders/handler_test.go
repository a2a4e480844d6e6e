package orders

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/joao-fontenele/cellarflow/internal/auth"
	"github.com/joao-fontenele/cellarflow/internal/domain"
	"github.com/joao-fontenele/cellarflow/internal/pagination"
)

func newTestMux(repo Repository) *http.ServeMux {
	handler := NewHandler(repo, pagination.Limits{Default: 10, Max: 100}, time.Second,
		slog.New(slog.NewTextHandler(io.Discard, nil)))

	mux := http.NewServeMux()
	mux.HandleFunc("GET /orders", handler.HandleList)
	mux.HandleFunc("GET /orders/{orderId}", handler.HandleGet)
	mux.HandleFunc("PATCH /orders/{orderId}/status", auth.RequireAdmin(handler.HandleUpdateStatus))
	return mux
}

func seedOrders(n int, ownerID string) []domain.Order {
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	orders := make([]domain.Order, 0, n)
	for i := range n {
		orders = append(orders, domain.Order{
			OrderID:     fmt.Sprintf("o-%02d", i),
			OwnerID:     ownerID,
			Status:      domain.OrderStatusPending,
			TotalAmount: 1000,
			CreatedAt:   base.Add(time.Duration(i) * time.Minute),
		})
	}
	return orders
}

func TestHandler_HandleList(t *testing.T) {
	repo := newMemoryOrders(append(seedOrders(25, "u1"), domain.Order{OrderID: "other", OwnerID: "u2"})...)
	mux := newTestMux(repo)

	t.Run("pages through an owner's orders", func(t *testing.T) {
		var (
			token string
			sizes []int
		)
		for {
			target := "/orders?ownerId=u1&pageSize=10"
			if token != "" {
				target += "&nextToken=" + url.QueryEscape(token)
			}
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
			if rec.Code != http.StatusOK {
				t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
			}

			var page pagination.Page[domain.Order]
			if err := json.Unmarshal(rec.Body.Bytes(), &page); err != nil {
				t.Fatalf("failed to decode page: %v", err)
			}
			for _, o := range page.Items {
				if o.OwnerID != "u1" {
					t.Errorf("unexpected order %s for owner %s", o.OrderID, o.OwnerID)
				}
			}
			sizes = append(sizes, page.TotalCount)
			if page.NextToken == nil {
				break
			}
			token = *page.NextToken
		}

		if len(sizes) != 3 || sizes[0] != 10 || sizes[1] != 10 || sizes[2] != 5 {
			t.Errorf("expected pages of 10,10,5, got %v", sizes)
		}
	})

	t.Run("listing every order requires admin", func(t *testing.T) {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders", nil))
		if rec.Code != http.StatusForbidden {
			t.Fatalf("expected status 403, got %d", rec.Code)
		}

		req := httptest.NewRequest(http.MethodGet, "/orders?pageSize=100", nil)
		req.Header.Set(auth.GroupsHeader, "USERS,ADMINS")
		rec = httptest.NewRecorder()
		mux.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rec.Code)
		}
		var page pagination.Page[domain.Order]
		if err := json.Unmarshal(rec.Body.Bytes(), &page); err != nil {
			t.Fatalf("failed to decode page: %v", err)
		}
		if page.TotalCount != 26 {
			t.Errorf("expected 26 orders, got %d", page.TotalCount)
		}
	})

	t.Run("no orders is not found", func(t *testing.T) {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders?ownerId=nobody", nil))
		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected status 404, got %d", rec.Code)
		}
		if !strings.Contains(rec.Body.String(), msgNoOrders) {
			t.Errorf("unexpected body: %s", rec.Body.String())
		}
	})

	t.Run("rejects bad page size", func(t *testing.T) {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders?ownerId=u1&pageSize=0", nil))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rec.Code)
		}
	})
}

func TestHandler_HandleGet(t *testing.T) {
	mux := newTestMux(newMemoryOrders(seedOrders(1, "u1")...))

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders/o-00", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders/missing", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", rec.Code)
	}
}

func TestHandler_HandleUpdateStatus(t *testing.T) {
	patch := func(mux http.Handler, orderID, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPatch, "/orders/"+orderID+"/status", strings.NewReader(body))
		req.Header.Set(auth.GroupsHeader, "ADMINS")
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)
		return rec
	}

	t.Run("moves pending order forward once", func(t *testing.T) {
		mux := newTestMux(newMemoryOrders(seedOrders(1, "u1")...))

		rec := patch(mux, "o-00", `{"status":"fulfilled"}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
		}

		rec = patch(mux, "o-00", `{"status":"failed"}`)
		if rec.Code != http.StatusConflict {
			t.Errorf("expected status 409 for terminal order, got %d", rec.Code)
		}
	})

	t.Run("rejects moving back to pending", func(t *testing.T) {
		mux := newTestMux(newMemoryOrders(seedOrders(1, "u1")...))

		if rec := patch(mux, "o-00", `{"status":"pending"}`); rec.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rec.Code)
		}
	})

	t.Run("unknown order is not found", func(t *testing.T) {
		mux := newTestMux(newMemoryOrders())

		if rec := patch(mux, "missing", `{"status":"failed"}`); rec.Code != http.StatusNotFound {
			t.Errorf("expected status 404, got %d", rec.Code)
		}
	})

	t.Run("requires admin", func(t *testing.T) {
		mux := newTestMux(newMemoryOrders(seedOrders(1, "u1")...))

		req := httptest.NewRequest(http.MethodPatch, "/orders/o-00/status", strings.NewReader(`{"status":"failed"}`))
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)
		if rec.Code != http.StatusForbidden {
			t.Errorf("expected status 403, got %d", rec.Code)
		}
	})
}
