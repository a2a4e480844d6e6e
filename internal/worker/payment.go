package worker

import (
	"context"
	"errors"
	"log/slog"

	"github.com/aws/aws-lambda-go/events"

	"github.com/joao-fontenele/cellarflow/internal/domain"
	"github.com/joao-fontenele/cellarflow/internal/orders"
)

type OrderAssembler interface {
	Assemble(ctx context.Context, event domain.PaymentCompletedEvent) (orders.Result, error)
}

// PaymentHandler turns payment.completed messages into orders. Order ids are
// derived from the payment event, so a redelivered message is safe to
// process again.
type PaymentHandler struct {
	assembler OrderAssembler
	logger    *slog.Logger
}

func NewPaymentHandler(assembler OrderAssembler, logger *slog.Logger) *PaymentHandler {
	return &PaymentHandler{
		assembler: assembler,
		logger:    logger,
	}
}

func (h *PaymentHandler) Handle(ctx context.Context, payload []byte) error {
	event, err := orders.DecodePaymentEvent(payload)
	if err != nil {
		return err
	}

	h.logger.Info("processing payment completed event", "event_id", event.EventID, "owner_id", event.OwnerID)

	result, err := h.assembler.Assemble(ctx, event)
	if errors.Is(err, domain.ErrEmptyCart) {
		h.logger.Warn("no order created for empty cart", "event_id", event.EventID, "owner_id", event.OwnerID)
		return nil
	}
	if err != nil {
		h.logger.Error("failed to assemble order", "error", err, "event_id", event.EventID, "owner_id", event.OwnerID)
		return err
	}

	h.logger.Info("payment processed",
		"event_id", event.EventID,
		"order_id", result.Order.OrderID,
		"created", result.Created,
		"shortfalls", len(result.Shortfalls),
	)
	return nil
}

// HandleEventBridge serves Lambda invocations carrying the payment event as
// EventBridge detail. Only transient failures are returned so the invocation
// is retried; anything else is logged and dropped.
func (h *PaymentHandler) HandleEventBridge(ctx context.Context, event events.CloudWatchEvent) error {
	h.logger.Info("received eventbridge event", "id", event.ID, "source", event.Source, "detail_type", event.DetailType)

	err := h.Handle(ctx, event.Detail)
	if err != nil && !domain.IsRetryable(err) {
		h.logger.Error("dropping unprocessable payment event", "error", err, "id", event.ID)
		return nil
	}
	return err
}
