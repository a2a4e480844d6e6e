package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/joao-fontenele/cellarflow/internal/messaging"
	"github.com/joao-fontenele/cellarflow/internal/orders"
	"github.com/joao-fontenele/cellarflow/internal/platform"
	"github.com/joao-fontenele/cellarflow/internal/worker"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := platform.Start(ctx, "worker", "8085")
	if err != nil {
		slog.Error("failed to start worker", "error", err)
		os.Exit(1)
	}

	if err := run(ctx, rt); err != nil {
		rt.Logger.Error("worker stopped with error", "error", err)
		rt.Close()
		os.Exit(1)
	}
	rt.Close()
}

func run(ctx context.Context, rt *platform.Runtime) error {
	cfg := rt.Config
	if err := cfg.Require("KAFKA_BROKERS", "EMAIL_SERVICE_URL"); err != nil {
		return err
	}

	stores, err := rt.OpenStores(ctx)
	if err != nil {
		return err
	}

	orderCreated := messaging.NewProducer(cfg.KafkaBrokers, cfg.OrderCreatedTopic)
	rt.OnClose(func(context.Context) error { return orderCreated.Close() })
	reconcile := messaging.NewProducer(cfg.KafkaBrokers, cfg.ReconcileTopic)
	rt.OnClose(func(context.Context) error { return reconcile.Close() })

	assembler := rt.Assembler(stores,
		orders.WithEventPublisher(orderCreated),
		orders.WithReconciliationHook(orders.NewPublishingHook(reconcile, rt.Logger)),
	)
	payments := worker.NewPaymentHandler(assembler, rt.Logger)
	notifications := worker.NewNotificationHandler(cfg.EmailServiceURL, rt.HTTPClient(), rt.Logger)

	paymentConsumer := messaging.NewConsumer(cfg.KafkaBrokers, cfg.PaymentTopic, cfg.ConsumerGroup+"-orders", rt.Logger)
	rt.OnClose(func(context.Context) error { return paymentConsumer.Close() })
	notificationConsumer := messaging.NewConsumer(cfg.KafkaBrokers, cfg.OrderCreatedTopic, cfg.ConsumerGroup+"-notifications", rt.Logger)
	rt.OnClose(func(context.Context) error { return notificationConsumer.Close() })

	rt.Logger.Info("starting worker", "brokers", cfg.KafkaBrokers,
		"payment_topic", cfg.PaymentTopic, "order_created_topic", cfg.OrderCreatedTopic)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return consume(ctx, paymentConsumer, payments.Handle)
	})
	g.Go(func() error {
		return consume(ctx, notificationConsumer, notifications.Handle)
	})
	g.Go(func() error {
		return rt.Serve(ctx, http.NewServeMux())
	})

	if err := g.Wait(); err != nil {
		return err
	}
	rt.Logger.Info("consumers stopped")
	return nil
}

func consume(ctx context.Context, consumer *messaging.Consumer, handler messaging.Handler) error {
	err := consumer.Consume(ctx, handler)
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		return nil
	}
	return err
}
