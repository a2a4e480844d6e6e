package platform

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/joao-fontenele/cellarflow/internal/config"
)

func TestHandleHealth(t *testing.T) {
	rec := httptest.NewRecorder()
	handleHealth(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if body := rec.Body.String(); body != "{\"status\":\"ok\"}\n" {
		t.Errorf("unexpected body %q", body)
	}
}

func TestRuntime(t *testing.T) {
	t.Run("limits come from config", func(t *testing.T) {
		rt := &Runtime{Config: config.Config{DefaultPageSize: 10, MaxPageSize: 50}}

		limits := rt.Limits()
		if limits.Default != 10 || limits.Max != 50 {
			t.Errorf("unexpected limits %+v", limits)
		}
	})

	t.Run("open stores requires backend settings", func(t *testing.T) {
		rt := &Runtime{
			Config: config.Config{StoreBackend: config.BackendPostgres},
			Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		}

		_, err := rt.OpenStores(context.Background())
		if err == nil || err.Error() != "POSTGRES_URL environment variable is required" {
			t.Errorf("unexpected error %v", err)
		}
	})
}
