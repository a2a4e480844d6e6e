package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joao-fontenele/cellarflow/internal/auth"
	"github.com/joao-fontenele/cellarflow/internal/orders"
	"github.com/joao-fontenele/cellarflow/internal/platform"
	"github.com/joao-fontenele/cellarflow/internal/telemetry"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := platform.Start(ctx, "orders", "8081")
	if err != nil {
		slog.Error("failed to start orders service", "error", err)
		os.Exit(1)
	}

	if err := run(ctx, rt); err != nil {
		rt.Logger.Error("orders service stopped with error", "error", err)
		rt.Close()
		os.Exit(1)
	}
	rt.Close()
}

func run(ctx context.Context, rt *platform.Runtime) error {
	stores, err := rt.OpenStores(ctx)
	if err != nil {
		return err
	}

	handler := orders.NewHandler(stores.Orders, rt.Limits(), rt.Config.StoreTimeout, rt.Logger)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /orders", telemetry.WithHTTPRoute(handler.HandleList))
	mux.HandleFunc("GET /orders/{orderId}", telemetry.WithHTTPRoute(handler.HandleGet))
	mux.HandleFunc("PATCH /orders/{orderId}/status", telemetry.WithHTTPRoute(auth.RequireAdmin(handler.HandleUpdateStatus)))

	return rt.Serve(ctx, mux)
}
