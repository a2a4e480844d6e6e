package platform

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/joao-fontenele/cellarflow/internal/cart"
	"github.com/joao-fontenele/cellarflow/internal/catalog"
	"github.com/joao-fontenele/cellarflow/internal/config"
	"github.com/joao-fontenele/cellarflow/internal/database"
	"github.com/joao-fontenele/cellarflow/internal/enrich"
	"github.com/joao-fontenele/cellarflow/internal/inventory"
	"github.com/joao-fontenele/cellarflow/internal/logging"
	"github.com/joao-fontenele/cellarflow/internal/orders"
	"github.com/joao-fontenele/cellarflow/internal/pagination"
	"github.com/joao-fontenele/cellarflow/internal/telemetry"
)

const (
	serverTimeout   = 10 * time.Second
	shutdownTimeout = 10 * time.Second
)

// Runtime holds what every binary builds at startup: configuration, the
// logger and the telemetry providers.
type Runtime struct {
	Config    config.Config
	Logger    *slog.Logger
	Telemetry *telemetry.Telemetry

	syncLogger func() error
	closers    []func(context.Context) error
}

func Start(ctx context.Context, service, defaultPort string) (*Runtime, error) {
	cfg, err := config.Load(service, defaultPort)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger, syncLogger, err := logging.New(service, cfg.Env, cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	tel, err := telemetry.Setup(ctx, service)
	if err != nil {
		_ = syncLogger()
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	return &Runtime{
		Config:     cfg,
		Logger:     logger,
		Telemetry:  tel,
		syncLogger: syncLogger,
	}, nil
}

// OnClose registers fn to run on Close. Functions run in reverse order.
func (rt *Runtime) OnClose(fn func(context.Context) error) {
	rt.closers = append(rt.closers, fn)
}

func (rt *Runtime) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](ctx); err != nil {
			rt.Logger.Error("failed to release resource", "error", err)
		}
	}
	if err := rt.Telemetry.Shutdown(ctx); err != nil {
		rt.Logger.Error("failed to shut down telemetry", "error", err)
	}
	_ = rt.syncLogger()
}

func (rt *Runtime) Limits() pagination.Limits {
	return pagination.Limits{Default: rt.Config.DefaultPageSize, Max: rt.Config.MaxPageSize}
}

// HTTPClient returns a traced client for calls to sibling services.
func (rt *Runtime) HTTPClient() *http.Client {
	return telemetry.HTTPClient(serverTimeout)
}

// Stores groups the repositories of the configured backend.
type Stores struct {
	Products catalog.Store
	Stock    inventory.StockRepository
	Carts    cart.Repository
	Orders   orders.Repository
	// Purger is nil on DynamoDB, where expired carts are removed by table TTL.
	Purger cart.ExpiredPurger
}

func (rt *Runtime) OpenStores(ctx context.Context) (*Stores, error) {
	if err := rt.Config.RequireStore(); err != nil {
		return nil, err
	}

	if rt.Config.StoreBackend == config.BackendDynamo {
		client, err := database.NewDynamoClient(ctx, rt.Config.AWSRegion, rt.Config.DynamoEndpoint, rt.HTTPClient())
		if err != nil {
			return nil, err
		}
		table := rt.Config.DynamoTable
		rt.Logger.Info("using dynamodb store", "table", table)
		return &Stores{
			Products: catalog.NewDynamoRepository(client, table),
			Stock:    inventory.NewDynamoRepository(client, table),
			Carts:    cart.NewDynamoRepository(client, table),
			Orders:   orders.NewDynamoOrderRepository(client, table),
		}, nil
	}

	db, err := database.OpenPostgres(ctx, rt.Config.PostgresURL)
	if err != nil {
		return nil, err
	}
	rt.OnClose(func(context.Context) error { return db.Close() })
	rt.Logger.Info("using postgres store")

	carts := cart.NewPostgresRepository(db)
	return &Stores{
		Products: catalog.NewRepository(db),
		Stock:    inventory.NewRepository(db),
		Carts:    carts,
		Orders:   orders.NewOrderRepository(db),
		Purger:   carts,
	}, nil
}

// Assembler wires the order assembler over stores. Options add the event
// publisher and reconciliation hook of the calling binary.
func (rt *Runtime) Assembler(stores *Stores, opts ...orders.AssemblerOption) *orders.Assembler {
	cfg := rt.Config
	return orders.NewAssembler(
		cart.NewStore(stores.Carts, cfg.CartTTL, rt.Logger),
		enrich.NewJoiner(stores.Products, cfg.EnrichConcurrency),
		inventory.NewLedger(stores.Stock, rt.Logger),
		stores.Orders,
		cfg.StoreTimeout,
		rt.Logger,
		opts...,
	)
}

// Serve runs an HTTP server for mux until ctx is done, then drains in-flight
// requests. It adds the /health and /metrics endpoints.
func (rt *Runtime) Serve(ctx context.Context, mux *http.ServeMux) error {
	mux.Handle("GET /metrics", rt.Telemetry.MetricsHandler)
	mux.HandleFunc("GET /health", handleHealth)

	server := &http.Server{
		Addr:         ":" + rt.Config.Port,
		Handler:      telemetry.InstrumentHandler(mux, rt.Config.Service),
		ReadTimeout:  serverTimeout,
		WriteTimeout: serverTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		rt.Logger.Info("starting "+rt.Config.Service+" service", "port", rt.Config.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	rt.Logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
