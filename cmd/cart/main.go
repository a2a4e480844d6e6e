package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/joao-fontenele/cellarflow/internal/cart"
	"github.com/joao-fontenele/cellarflow/internal/enrich"
	"github.com/joao-fontenele/cellarflow/internal/platform"
	"github.com/joao-fontenele/cellarflow/internal/telemetry"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := platform.Start(ctx, "cart", "8083")
	if err != nil {
		slog.Error("failed to start cart service", "error", err)
		os.Exit(1)
	}

	if err := run(ctx, rt); err != nil {
		rt.Logger.Error("cart service stopped with error", "error", err)
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

	cfg := rt.Config
	store := cart.NewStore(stores.Carts, cfg.CartTTL, rt.Logger)
	joiner := enrich.NewJoiner(stores.Products, cfg.EnrichConcurrency)
	handler := cart.NewHandler(store, joiner, rt.Limits(), cfg.StoreTimeout, rt.Logger)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /cart", telemetry.WithHTTPRoute(handler.HandleMutate))
	mux.HandleFunc("GET /cart/{ownerId}", telemetry.WithHTTPRoute(handler.HandleGet))
	mux.HandleFunc("DELETE /cart/{ownerId}", telemetry.WithHTTPRoute(handler.HandleDelete))

	g, ctx := errgroup.WithContext(ctx)
	if stores.Purger != nil {
		sweeper := cart.NewSweeper(stores.Purger, cfg.CartSweepInterval, rt.Logger)
		g.Go(func() error {
			sweeper.Run(ctx)
			return nil
		})
	}
	g.Go(func() error {
		return rt.Serve(ctx, mux)
	})

	return g.Wait()
}
