package inventory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/joao-fontenele/cellarflow/internal/domain"
	"github.com/joao-fontenele/cellarflow/internal/telemetry"
)

var ledgerMeter = otel.Meter("inventory/ledger")

type StockRepository interface {
	// ConditionalDecrement subtracts quantity only while the current stock
	// covers it. It fails with domain.ErrInsufficientStock otherwise.
	ConditionalDecrement(ctx context.Context, productID string, quantity int) (domain.StockLevel, error)
	// MarkOutOfStock clears the in-stock flag of a product whose stock is zero.
	MarkOutOfStock(ctx context.Context, productID string) error
	GetStock(ctx context.Context, productID string) (domain.StockLevel, error)
}

type Ledger struct {
	repo       StockRepository
	logger     *slog.Logger
	maxRetries uint64
	decrements metric.Int64Counter
}

func NewLedger(repo StockRepository, logger *slog.Logger) *Ledger {
	return &Ledger{
		repo:       repo,
		logger:     logger,
		maxRetries: 3,
		decrements: telemetry.Counter(ledgerMeter, "inventory.decrements", "Stock decrement attempts by outcome"),
	}
}

func (l *Ledger) newBackOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 50 * time.Millisecond
	b.MaxInterval = time.Second
	return backoff.WithContext(backoff.WithMaxRetries(b, l.maxRetries), ctx)
}

// Decrement removes quantity units from a product's stock. A write that may
// have reached the store is never repeated; only failures the store reports
// as not applied are retried.
func (l *Ledger) Decrement(ctx context.Context, productID string, quantity int) (domain.StockLevel, error) {
	if productID == "" {
		return domain.StockLevel{}, domain.InvalidInput("productId is required")
	}
	if quantity <= 0 {
		return domain.StockLevel{}, domain.InvalidInput("quantity must be positive, got %d", quantity)
	}
	if quantity > domain.MaxLineQuantity {
		return domain.StockLevel{}, domain.InvalidInput("quantity must be at most %d, got %d", domain.MaxLineQuantity, quantity)
	}

	var level domain.StockLevel
	err := backoff.Retry(func() error {
		var err error
		level, err = l.repo.ConditionalDecrement(ctx, productID, quantity)
		if err != nil && !errors.Is(err, domain.ErrNotApplied) {
			return backoff.Permanent(err)
		}
		return err
	}, l.newBackOff(ctx))
	if err != nil {
		l.record(ctx, outcome(err))
		if errors.Is(err, domain.ErrInsufficientStock) {
			l.logger.Warn("insufficient stock", "product_id", productID, "quantity", quantity)
		}
		return domain.StockLevel{}, fmt.Errorf("decrement %s by %d: %w", productID, quantity, err)
	}

	if level.RemainingStock == 0 && level.InStock {
		if err := backoff.Retry(func() error {
			err := l.repo.MarkOutOfStock(ctx, productID)
			if err != nil && !domain.IsRetryable(err) {
				return backoff.Permanent(err)
			}
			return err
		}, l.newBackOff(ctx)); err != nil {
			l.logger.Error("failed to mark product out of stock", "error", err, "product_id", productID)
		} else {
			level.InStock = false
		}
	}

	l.record(ctx, "ok")
	l.logger.Info("stock decremented", "product_id", productID, "quantity", quantity, "remaining", level.RemainingStock)
	return level, nil
}

func (l *Ledger) GetStock(ctx context.Context, productID string) (domain.StockLevel, error) {
	return l.repo.GetStock(ctx, productID)
}

func (l *Ledger) record(ctx context.Context, outcome string) {
	l.decrements.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func outcome(err error) string {
	switch {
	case errors.Is(err, domain.ErrInsufficientStock):
		return "insufficient"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrTransient):
		return "transient"
	}
	return "error"
}
