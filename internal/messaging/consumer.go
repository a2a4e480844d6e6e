package messaging

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/joao-fontenele/cellarflow/internal/domain"
)

var consumerTracer = otel.Tracer("messaging/consumer")

type Handler func(ctx context.Context, payload []byte) error

type Consumer struct {
	reader     *kafka.Reader
	topic      string
	groupID    string
	logger     *slog.Logger
	interval   time.Duration
	maxElapsed time.Duration
}

type ConsumerOption func(*Consumer, *kafka.ReaderConfig)

func WithStartOffset(offset int64) ConsumerOption {
	return func(_ *Consumer, cfg *kafka.ReaderConfig) {
		cfg.StartOffset = offset
	}
}

// WithRetryWindow bounds how long a transient handler failure is retried
// before the consumer gives up and stops.
func WithRetryWindow(d time.Duration) ConsumerOption {
	return func(c *Consumer, _ *kafka.ReaderConfig) {
		c.maxElapsed = d
	}
}

func NewConsumer(brokers []string, topic, groupID string, logger *slog.Logger, opts ...ConsumerOption) *Consumer {
	cfg := kafka.ReaderConfig{
		Brokers: brokers,
		Topic:   topic,
		GroupID: groupID,
	}
	c := &Consumer{
		topic:      topic,
		groupID:    groupID,
		logger:     logger,
		interval:   500 * time.Millisecond,
		maxElapsed: time.Minute,
	}

	for _, opt := range opts {
		opt(c, &cfg)
	}

	c.reader = kafka.NewReader(cfg)
	return c
}

// Consume delivers messages to handler until ctx ends. Transient handler
// failures are retried; any other failure is logged and the message is
// committed so one bad payload cannot block the partition.
func (c *Consumer) Consume(ctx context.Context, handler Handler) error {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			return err
		}

		if err := c.deliver(ctx, msg, handler); err != nil {
			return err
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			return err
		}
	}
}

// deliver returns an error only when the message must not be committed.
func (c *Consumer) deliver(ctx context.Context, msg kafka.Message, handler Handler) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.interval
	b.MaxElapsedTime = c.maxElapsed

	err := backoff.Retry(func() error {
		err := c.processMessage(ctx, msg, handler)
		if err != nil && !domain.IsRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(b, ctx))
	if err == nil {
		return nil
	}

	if domain.IsRetryable(err) || ctx.Err() != nil {
		c.logger.Error("giving up on message", "error", err, "topic", c.topic, "offset", msg.Offset)
		return err
	}

	c.logger.Error("skipping unprocessable message", "error", err, "topic", c.topic,
		"partition", msg.Partition, "offset", msg.Offset, "key", string(msg.Key))
	return nil
}

func (c *Consumer) processMessage(ctx context.Context, msg kafka.Message, handler Handler) error {
	parentCtx := otel.GetTextMapPropagator().Extract(ctx, newHeaderCarrier(&msg))

	spanCtx, span := consumerTracer.Start(parentCtx, "process "+c.topic,
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			semconv.MessagingSystemKafka,
			semconv.MessagingOperationName("process"),
			semconv.MessagingOperationTypeDeliver,
			semconv.MessagingDestinationName(c.topic),
			semconv.MessagingKafkaConsumerGroup(c.groupID),
			semconv.MessagingKafkaMessageOffset(int(msg.Offset)),
			semconv.MessagingDestinationPartitionID(strconv.Itoa(msg.Partition)),
			semconv.MessagingKafkaMessageKey(string(msg.Key)),
		),
	)
	defer span.End()

	if err := handler(spanCtx, msg.Value); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	return nil
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
