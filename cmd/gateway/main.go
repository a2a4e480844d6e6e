package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joao-fontenele/cellarflow/internal/gateway"
	"github.com/joao-fontenele/cellarflow/internal/platform"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := platform.Start(ctx, "gateway", "8080")
	if err != nil {
		slog.Error("failed to start gateway", "error", err)
		os.Exit(1)
	}

	if err := run(ctx, rt); err != nil {
		rt.Logger.Error("gateway stopped with error", "error", err)
		rt.Close()
		os.Exit(1)
	}
	rt.Close()
}

func run(ctx context.Context, rt *platform.Runtime) error {
	if err := rt.Config.Require("CART_SERVICE_URL", "INVENTORY_SERVICE_URL", "ORDERS_SERVICE_URL"); err != nil {
		return err
	}

	client := rt.HTTPClient()
	handler := gateway.NewHandler(
		gateway.NewServiceProxy(rt.Config.CartServiceURL, client),
		gateway.NewServiceProxy(rt.Config.InventoryServiceURL, client),
		gateway.NewServiceProxy(rt.Config.OrdersServiceURL, client),
		rt.Logger,
	)

	mux := http.NewServeMux()
	handler.Routes(mux)

	return rt.Serve(ctx, mux)
}
