package orders

import (
	"context"
	"log/slog"

	"github.com/joao-fontenele/cellarflow/internal/domain"
)

// ReconciliationHook receives orders whose side effects did not all
// complete. There is no automatic compensation; the hook hands the case to
// whatever performs it out of band.
type ReconciliationHook interface {
	Reconcile(ctx context.Context, event domain.ReconcileEvent) error
}

type EventPublisher interface {
	Publish(ctx context.Context, key string, event any) error
}

type LogHook struct {
	logger *slog.Logger
}

func NewLogHook(logger *slog.Logger) *LogHook {
	return &LogHook{logger: logger}
}

func (h *LogHook) Reconcile(_ context.Context, event domain.ReconcileEvent) error {
	h.logger.Warn("order needs reconciliation",
		"order_id", event.OrderID,
		"owner_id", event.OwnerID,
		"reason", event.Reason,
		"product_id", event.ProductID,
		"quantity", event.Quantity,
		"detail", event.Detail,
	)
	return nil
}

// PublishingHook sends reconcile events to a topic and logs them as well, so
// a lost publish still leaves a trace.
type PublishingHook struct {
	publisher EventPublisher
	log       *LogHook
}

func NewPublishingHook(publisher EventPublisher, logger *slog.Logger) *PublishingHook {
	return &PublishingHook{publisher: publisher, log: NewLogHook(logger)}
}

func (h *PublishingHook) Reconcile(ctx context.Context, event domain.ReconcileEvent) error {
	_ = h.log.Reconcile(ctx, event)
	return h.publisher.Publish(ctx, event.OrderID, event)
}
