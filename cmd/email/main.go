package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joao-fontenele/cellarflow/internal/email"
	"github.com/joao-fontenele/cellarflow/internal/platform"
	"github.com/joao-fontenele/cellarflow/internal/telemetry"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := platform.Start(ctx, "email", "8084")
	if err != nil {
		slog.Error("failed to start email service", "error", err)
		os.Exit(1)
	}

	handler := email.NewHandler(rt.Logger)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /send", telemetry.WithHTTPRoute(handler.HandleSend))

	if err := rt.Serve(ctx, mux); err != nil {
		rt.Logger.Error("email service stopped with error", "error", err)
		rt.Close()
		os.Exit(1)
	}
	rt.Close()
}
