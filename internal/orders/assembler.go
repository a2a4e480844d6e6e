package orders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/joao-fontenele/cellarflow/internal/domain"
	"github.com/joao-fontenele/cellarflow/internal/pagination"
	"github.com/joao-fontenele/cellarflow/internal/telemetry"
)

var (
	assemblerTracer = otel.Tracer("orders/assembler")
	assemblerMeter  = otel.Meter("orders/assembler")

	// orderNamespace scopes order ids derived from payment event ids.
	orderNamespace = uuid.MustParse("5b0c7a7e-3c1f-4f2e-9a57-0c3f7f4f6a10")
)

type CartSource interface {
	Get(ctx context.Context, ownerID string) (*domain.Cart, error)
	DeleteByOwner(ctx context.Context, ownerID string) error
}

type Enricher interface {
	Enrich(ctx context.Context, lines []domain.CartLine) ([]domain.EnrichedLine, error)
}

type StockLedger interface {
	Decrement(ctx context.Context, productID string, quantity int) (domain.StockLevel, error)
}

type Repository interface {
	// CreateIfAbsent stores order unless an order with the same id exists.
	// It returns the stored order and whether this call created it.
	CreateIfAbsent(ctx context.Context, order *domain.Order) (*domain.Order, bool, error)
	GetByID(ctx context.Context, orderID string) (*domain.Order, error)
	List(ctx context.Context, ownerID string, req pagination.Request) ([]domain.Order, pagination.Key, error)
	UpdateStatus(ctx context.Context, orderID string, status domain.OrderStatus) (*domain.Order, error)
}

type Assembler struct {
	carts    CartSource
	enricher Enricher
	stock    StockLedger
	repo     Repository
	hook     ReconciliationHook
	events   EventPublisher
	timeout  time.Duration
	logger   *slog.Logger
	now      func() time.Time

	created  metric.Int64Counter
	replayed metric.Int64Counter
}

type AssemblerOption func(*Assembler)

// WithEventPublisher publishes order.created after each new order.
func WithEventPublisher(p EventPublisher) AssemblerOption {
	return func(a *Assembler) {
		a.events = p
	}
}

func WithReconciliationHook(h ReconciliationHook) AssemblerOption {
	return func(a *Assembler) {
		a.hook = h
	}
}

func NewAssembler(carts CartSource, enricher Enricher, stock StockLedger, repo Repository, timeout time.Duration, logger *slog.Logger, opts ...AssemblerOption) *Assembler {
	a := &Assembler{
		carts:    carts,
		enricher: enricher,
		stock:    stock,
		repo:     repo,
		hook:     NewLogHook(logger),
		timeout:  timeout,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
		created:  telemetry.Counter(assemblerMeter, "orders.created", "Orders created from payment events"),
		replayed: telemetry.Counter(assemblerMeter, "orders.replayed", "Payment events that matched an existing order"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// OrderIDFor derives the order id from the payment event id, so every
// delivery of one event maps to one order.
func OrderIDFor(eventID string) string {
	return uuid.NewSHA1(orderNamespace, []byte(eventID)).String()
}

type Shortfall struct {
	ProductID string
	Quantity  int
	Err       error
}

type Result struct {
	Order       *domain.Order
	Created     bool
	Shortfalls  []Shortfall
	CartCleared bool
}

// Assemble turns a completed payment into an order. Errors are returned only
// for steps up to and including the order write; later failures are logged,
// reported to the reconciliation hook and leave the order pending.
func (a *Assembler) Assemble(ctx context.Context, event domain.PaymentCompletedEvent) (Result, error) {
	ctx, span := assemblerTracer.Start(ctx, "assemble order",
		trace.WithAttributes(
			attribute.String("payment.event_id", event.EventID),
			attribute.String("order.owner_id", event.OwnerID),
		),
	)
	defer span.End()

	orderID := OrderIDFor(event.EventID)
	span.SetAttributes(attribute.String("order.id", orderID))

	existing, err := a.findExisting(ctx, orderID)
	if err != nil {
		return a.abort(span, err)
	}
	if existing != nil {
		return a.replay(ctx, existing, event), nil
	}

	cart, err := a.fetchCart(ctx, event.OwnerID)
	if err != nil {
		return a.abort(span, err)
	}

	lines, err := a.enrich(ctx, cart)
	if err != nil {
		return a.abort(span, err)
	}

	now := a.now()
	order := &domain.Order{
		OrderID:        orderID,
		OwnerID:        event.OwnerID,
		Status:         domain.OrderStatusPending,
		TotalAmount:    event.AmountTotal,
		Currency:       event.Currency,
		CustomerEmail:  event.CustomerEmail,
		Lines:          lines,
		Shipping:       event.Shipping,
		IdempotencyKey: event.EventID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	stored, created, err := a.persist(ctx, order)
	if err != nil {
		a.logger.Error("failed to persist order",
			"error", err,
			"order_id", orderID,
			"owner_id", event.OwnerID,
			"event_id", event.EventID,
			"lines", lines,
		)
		return a.abort(span, err)
	}
	if !created {
		return a.replay(ctx, stored, event), nil
	}
	a.created.Add(ctx, 1)

	result := Result{Order: stored, Created: true}
	result.Shortfalls = a.decrement(ctx, stored)
	result.CartCleared = a.clearCart(ctx, stored)
	a.publish(ctx, stored)

	a.logger.Info("order assembled",
		"order_id", stored.OrderID,
		"owner_id", stored.OwnerID,
		"lines", len(stored.Lines),
		"shortfalls", len(result.Shortfalls),
		"cart_cleared", result.CartCleared,
	)
	return result, nil
}

func (a *Assembler) abort(span trace.Span, err error) (Result, error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return Result{}, err
}

func (a *Assembler) stepContext(ctx context.Context, name string) (context.Context, trace.Span, context.CancelFunc) {
	ctx, span := assemblerTracer.Start(ctx, name)
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	return ctx, span, cancel
}

func (a *Assembler) findExisting(ctx context.Context, orderID string) (*domain.Order, error) {
	ctx, span, cancel := a.stepContext(ctx, "find existing order")
	defer span.End()
	defer cancel()

	order, err := a.repo.GetByID(ctx, orderID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("look up order %s: %w", orderID, err)
	}
	return order, nil
}

func (a *Assembler) fetchCart(ctx context.Context, ownerID string) (*domain.Cart, error) {
	ctx, span, cancel := a.stepContext(ctx, "fetch cart")
	defer span.End()
	defer cancel()

	cart, err := a.carts.Get(ctx, ownerID)
	if errors.Is(err, domain.ErrNotFound) || (err == nil && cart.Empty()) {
		a.logger.Warn("payment received for empty cart", "owner_id", ownerID)
		return nil, fmt.Errorf("%w: owner %s", domain.ErrEmptyCart, ownerID)
	}
	if err != nil {
		return nil, fmt.Errorf("fetch cart: %w", err)
	}
	span.SetAttributes(attribute.Int("cart.lines", len(cart.Lines)))
	return cart, nil
}

func (a *Assembler) enrich(ctx context.Context, cart *domain.Cart) ([]domain.EnrichedLine, error) {
	ctx, span, cancel := a.stepContext(ctx, "enrich cart")
	defer span.End()
	defer cancel()

	lines, err := a.enricher.Enrich(ctx, cart.Lines)
	if err != nil {
		return nil, fmt.Errorf("enrich cart %s: %w", cart.CartID, err)
	}
	return lines, nil
}

// persist writes the order once. An ambiguous failure is not retried.
func (a *Assembler) persist(ctx context.Context, order *domain.Order) (*domain.Order, bool, error) {
	ctx, span, cancel := a.stepContext(ctx, "persist order")
	defer span.End()
	defer cancel()

	stored, created, err := a.repo.CreateIfAbsent(ctx, order)
	if err != nil {
		return nil, false, fmt.Errorf("create order %s: %w", order.OrderID, err)
	}
	return stored, created, nil
}

func (a *Assembler) decrement(ctx context.Context, order *domain.Order) []Shortfall {
	var shortfalls []Shortfall
	for _, line := range order.Lines {
		stepCtx, span, cancel := a.stepContext(ctx, "decrement stock")
		span.SetAttributes(
			attribute.String("product.id", line.ProductID),
			attribute.Int("quantity", line.Quantity),
		)

		_, err := a.stock.Decrement(stepCtx, line.ProductID, line.Quantity)
		cancel()
		if err != nil {
			span.RecordError(err)
			reason := domain.ReconcileDecrementFailed
			if errors.Is(err, domain.ErrInsufficientStock) {
				reason = domain.ReconcileStockShortfall
			}
			a.logger.Warn("stock decrement failed for order line",
				"error", err,
				"order_id", order.OrderID,
				"product_id", line.ProductID,
				"quantity", line.Quantity,
				"reason", reason,
			)
			a.reconcile(ctx, order, reason, line.ProductID, line.Quantity, err)
			shortfalls = append(shortfalls, Shortfall{ProductID: line.ProductID, Quantity: line.Quantity, Err: err})
		}
		span.End()
	}
	return shortfalls
}

func (a *Assembler) clearCart(ctx context.Context, order *domain.Order) bool {
	ctx, span, cancel := a.stepContext(ctx, "clear cart")
	defer span.End()
	defer cancel()

	if err := a.carts.DeleteByOwner(ctx, order.OwnerID); err != nil {
		span.RecordError(err)
		a.logger.Error("failed to clear cart after order", "error", err, "order_id", order.OrderID, "owner_id", order.OwnerID)
		a.reconcile(ctx, order, domain.ReconcileCartClearFailed, "", 0, err)
		return false
	}
	return true
}

func (a *Assembler) publish(ctx context.Context, order *domain.Order) {
	if a.events == nil {
		return
	}
	event := domain.OrderCreatedEvent{
		OrderID:       order.OrderID,
		OwnerID:       order.OwnerID,
		CustomerEmail: order.CustomerEmail,
		Lines:         order.Lines,
		TotalAmount:   order.TotalAmount,
		Currency:      order.Currency,
		Shipping:      order.Shipping,
		Timestamp:     a.now(),
	}
	if err := a.events.Publish(ctx, order.OrderID, event); err != nil {
		a.logger.Error("failed to publish order created event", "error", err, "order_id", order.OrderID)
	}
}

func (a *Assembler) replay(ctx context.Context, order *domain.Order, event domain.PaymentCompletedEvent) Result {
	a.replayed.Add(ctx, 1)
	a.logger.Info("payment event already processed", "order_id", order.OrderID, "event_id", event.EventID)
	a.reconcile(ctx, order, domain.ReconcileReplayedEvent, "", 0, nil)
	return Result{Order: order}
}

func (a *Assembler) reconcile(ctx context.Context, order *domain.Order, reason domain.ReconcileReason, productID string, quantity int, cause error) {
	event := domain.ReconcileEvent{
		OrderID:   order.OrderID,
		OwnerID:   order.OwnerID,
		Reason:    reason,
		ProductID: productID,
		Quantity:  quantity,
		Timestamp: a.now(),
	}
	if cause != nil {
		event.Detail = cause.Error()
	}
	if err := a.hook.Reconcile(ctx, event); err != nil {
		a.logger.Error("failed to report order for reconciliation", "error", err, "order_id", order.OrderID, "reason", reason)
	}
}
