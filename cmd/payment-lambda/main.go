package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"

	"github.com/joao-fontenele/cellarflow/internal/messaging"
	"github.com/joao-fontenele/cellarflow/internal/orders"
	"github.com/joao-fontenele/cellarflow/internal/platform"
	"github.com/joao-fontenele/cellarflow/internal/worker"
)

func main() {
	ctx := context.Background()

	rt, err := platform.Start(ctx, "payment-lambda", "")
	if err != nil {
		slog.Error("failed to start payment lambda", "error", err)
		os.Exit(1)
	}

	stores, err := rt.OpenStores(ctx)
	if err != nil {
		rt.Logger.Error("failed to open stores", "error", err)
		rt.Close()
		os.Exit(1)
	}

	var opts []orders.AssemblerOption
	if brokers := rt.Config.KafkaBrokers; len(brokers) > 0 {
		producer := messaging.NewProducer(brokers, rt.Config.OrderCreatedTopic)
		opts = append(opts, orders.WithEventPublisher(producer))
	}

	handler := worker.NewPaymentHandler(rt.Assembler(stores, opts...), rt.Logger)
	lambda.Start(handler.HandleEventBridge)
}
