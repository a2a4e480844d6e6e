package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joao-fontenele/cellarflow/internal/auth"
	"github.com/joao-fontenele/cellarflow/internal/catalog"
	"github.com/joao-fontenele/cellarflow/internal/database"
	"github.com/joao-fontenele/cellarflow/internal/inventory"
	"github.com/joao-fontenele/cellarflow/internal/platform"
	"github.com/joao-fontenele/cellarflow/internal/telemetry"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := platform.Start(ctx, "inventory", "8082")
	if err != nil {
		slog.Error("failed to start inventory service", "error", err)
		os.Exit(1)
	}

	if err := run(ctx, rt); err != nil {
		rt.Logger.Error("inventory service stopped with error", "error", err)
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

	s3Client, err := database.NewS3Client(ctx, rt.Config.AWSRegion, rt.Config.S3Endpoint, rt.HTTPClient())
	if err != nil {
		return err
	}

	timeout := rt.Config.StoreTimeout
	products := catalog.NewHandler(stores.Products, rt.Limits(), timeout, rt.Logger)
	images := catalog.NewImageHandler(catalog.NewS3Signer(s3Client, rt.Config.ImageBucket, rt.Config.ImageUploadTTL), timeout, rt.Logger)
	stock := inventory.NewHandler(inventory.NewLedger(stores.Stock, rt.Logger), timeout, rt.Logger)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /products", telemetry.WithHTTPRoute(products.HandleList))
	mux.HandleFunc("GET /products/{productId}", telemetry.WithHTTPRoute(products.HandleGet))
	mux.HandleFunc("POST /products", telemetry.WithHTTPRoute(auth.RequireAdmin(products.HandleCreate)))
	mux.HandleFunc("POST /products/upload-url", telemetry.WithHTTPRoute(auth.RequireAdmin(images.HandleUploadURL)))
	mux.HandleFunc("PATCH /products/{productId}", telemetry.WithHTTPRoute(auth.RequireAdmin(products.HandleUpdate)))
	mux.HandleFunc("DELETE /products/{productId}", telemetry.WithHTTPRoute(auth.RequireAdmin(products.HandleDelete)))
	mux.HandleFunc("GET /stock/{productId}", telemetry.WithHTTPRoute(stock.HandleGetStock))
	mux.HandleFunc("POST /stock/decrement", telemetry.WithHTTPRoute(stock.HandleDecrement))

	return rt.Serve(ctx, mux)
}
