package orders

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/joao-fontenele/cellarflow/internal/domain"
)

type assemblerFixture struct {
	carts     *fakeCarts
	stock     *fakeStock
	orders    *memoryOrders
	hook      *recordingHook
	publisher *recordingPublisher
	assembler *Assembler
}

func newAssemblerFixture(carts ...*domain.Cart) *assemblerFixture {
	f := &assemblerFixture{
		carts:     newFakeCarts(carts...),
		stock:     &fakeStock{stock: map[string]int{"W1": 5, "W2": 1}, errs: map[string]error{}},
		orders:    newMemoryOrders(),
		hook:      &recordingHook{},
		publisher: &recordingPublisher{},
	}
	f.assembler = NewAssembler(f.carts, catalogEnricher{"W1": 1500, "W2": 4200}, f.stock, f.orders, time.Second,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
		WithReconciliationHook(f.hook),
		WithEventPublisher(f.publisher),
	)
	return f
}

func cartWith(ownerID string, lines ...domain.CartLine) *domain.Cart {
	return &domain.Cart{OwnerID: ownerID, CartID: "c-" + ownerID, Lines: lines, Version: 1}
}

func paymentFor(ownerID, eventID string) domain.PaymentCompletedEvent {
	return domain.PaymentCompletedEvent{
		EventID:       eventID,
		OwnerID:       ownerID,
		AmountTotal:   7200,
		Currency:      "EUR",
		CustomerEmail: "ana@example.com",
		Shipping:      domain.ShippingDetails{Name: "Ana", Line1: "Rua 1", City: "Porto", PostalCode: "4000", Country: "PT"},
	}
}

func TestAssembler_Assemble(t *testing.T) {
	ctx := context.Background()

	t.Run("creates order decrements stock and clears cart", func(t *testing.T) {
		f := newAssemblerFixture(cartWith("u1",
			domain.CartLine{ProductID: "W1", Quantity: 2},
			domain.CartLine{ProductID: "W2", Quantity: 1},
		))

		result, err := f.assembler.Assemble(ctx, paymentFor("u1", "evt_1"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if !result.Created || !result.CartCleared || len(result.Shortfalls) != 0 {
			t.Fatalf("unexpected result: %+v", result)
		}
		order := result.Order
		if order.Status != domain.OrderStatusPending {
			t.Errorf("expected pending order, got %s", order.Status)
		}
		if order.OrderID != OrderIDFor("evt_1") {
			t.Errorf("expected deterministic order id, got %s", order.OrderID)
		}
		if len(order.Lines) != 2 || order.Lines[0].UnitPrice != 1500 || order.Lines[1].Name != "Wine W2" {
			t.Errorf("unexpected order lines: %+v", order.Lines)
		}
		if order.TotalAmount != 7200 || order.Shipping.City != "Porto" {
			t.Errorf("unexpected order totals or shipping: %+v", order)
		}
		if f.stock.stock["W1"] != 3 || f.stock.stock["W2"] != 0 {
			t.Errorf("unexpected stock after decrement: %v", f.stock.stock)
		}
		if _, err := f.carts.Get(ctx, "u1"); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected cart to be cleared, got %v", err)
		}
		if len(f.publisher.keys) != 1 || f.publisher.keys[0] != order.OrderID {
			t.Errorf("expected one order.created event, got %v", f.publisher.keys)
		}
		if len(f.hook.reasons()) != 0 {
			t.Errorf("expected no reconcile events, got %v", f.hook.reasons())
		}
	})

	t.Run("empty cart creates no order", func(t *testing.T) {
		f := newAssemblerFixture(cartWith("u1"))

		_, err := f.assembler.Assemble(ctx, paymentFor("u1", "evt_2"))
		if !errors.Is(err, domain.ErrEmptyCart) {
			t.Fatalf("expected ErrEmptyCart, got %v", err)
		}
		if f.orders.count() != 0 {
			t.Errorf("expected no orders, got %d", f.orders.count())
		}
	})

	t.Run("missing cart creates no order", func(t *testing.T) {
		f := newAssemblerFixture()

		_, err := f.assembler.Assemble(ctx, paymentFor("ghost", "evt_3"))
		if !errors.Is(err, domain.ErrEmptyCart) {
			t.Fatalf("expected ErrEmptyCart, got %v", err)
		}
		if f.orders.count() != 0 {
			t.Errorf("expected no orders, got %d", f.orders.count())
		}
	})

	t.Run("shortfall keeps the order and reports it", func(t *testing.T) {
		f := newAssemblerFixture(cartWith("u1",
			domain.CartLine{ProductID: "W1", Quantity: 1},
			domain.CartLine{ProductID: "W2", Quantity: 3},
		))

		result, err := f.assembler.Assemble(ctx, paymentFor("u1", "evt_4"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if len(result.Shortfalls) != 1 || result.Shortfalls[0].ProductID != "W2" {
			t.Fatalf("expected W2 shortfall, got %+v", result.Shortfalls)
		}
		if !errors.Is(result.Shortfalls[0].Err, domain.ErrInsufficientStock) {
			t.Errorf("expected ErrInsufficientStock, got %v", result.Shortfalls[0].Err)
		}
		if f.stock.stock["W2"] != 1 || f.stock.stock["W1"] != 4 {
			t.Errorf("unexpected stock: %v", f.stock.stock)
		}
		if _, err := f.orders.GetByID(ctx, result.Order.OrderID); err != nil {
			t.Errorf("expected order to stand, got %v", err)
		}
		reasons := f.hook.reasons()
		if len(reasons) != 1 || reasons[0] != domain.ReconcileStockShortfall {
			t.Errorf("expected stock_shortfall, got %v", reasons)
		}
	})

	t.Run("decrement failure is reported separately", func(t *testing.T) {
		f := newAssemblerFixture(cartWith("u1", domain.CartLine{ProductID: "W1", Quantity: 1}))
		f.stock.errs["W1"] = fmt.Errorf("%w: timeout", domain.ErrTransient)

		result, err := f.assembler.Assemble(ctx, paymentFor("u1", "evt_5"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(result.Shortfalls) != 1 {
			t.Fatalf("expected one failed line, got %+v", result.Shortfalls)
		}
		if reasons := f.hook.reasons(); len(reasons) != 1 || reasons[0] != domain.ReconcileDecrementFailed {
			t.Errorf("expected decrement_failed, got %v", reasons)
		}
	})

	t.Run("cart clear failure leaves order pending", func(t *testing.T) {
		f := newAssemblerFixture(cartWith("u1", domain.CartLine{ProductID: "W1", Quantity: 1}))
		f.carts.deleteErr = fmt.Errorf("%w: throttled", domain.ErrTransient)

		result, err := f.assembler.Assemble(ctx, paymentFor("u1", "evt_6"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.CartCleared {
			t.Error("expected cart clear to be reported as failed")
		}
		if result.Order.Status != domain.OrderStatusPending {
			t.Errorf("expected pending order, got %s", result.Order.Status)
		}
		if reasons := f.hook.reasons(); len(reasons) != 1 || reasons[0] != domain.ReconcileCartClearFailed {
			t.Errorf("expected cart_clear_failed, got %v", reasons)
		}
	})

	t.Run("redelivered event does not create a second order", func(t *testing.T) {
		f := newAssemblerFixture(cartWith("u1", domain.CartLine{ProductID: "W1", Quantity: 2}))

		first, err := f.assembler.Assemble(ctx, paymentFor("u1", "evt_7"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		second, err := f.assembler.Assemble(ctx, paymentFor("u1", "evt_7"))
		if err != nil {
			t.Fatalf("unexpected error on redelivery: %v", err)
		}
		if second.Created || second.Order.OrderID != first.Order.OrderID {
			t.Errorf("expected replay of %s, got %+v", first.Order.OrderID, second)
		}
		if f.orders.count() != 1 {
			t.Errorf("expected one order, got %d", f.orders.count())
		}
		if f.stock.stock["W1"] != 3 {
			t.Errorf("expected stock decremented once, got %d", f.stock.stock["W1"])
		}
		if reasons := f.hook.reasons(); len(reasons) != 1 || reasons[0] != domain.ReconcileReplayedEvent {
			t.Errorf("expected replayed_event, got %v", reasons)
		}
	})

	t.Run("persist failure is returned without side effects", func(t *testing.T) {
		f := newAssemblerFixture(cartWith("u1", domain.CartLine{ProductID: "W1", Quantity: 1}))
		f.orders.createErr = fmt.Errorf("%w: timeout", domain.ErrTransient)

		_, err := f.assembler.Assemble(ctx, paymentFor("u1", "evt_8"))
		if !errors.Is(err, domain.ErrTransient) {
			t.Fatalf("expected ErrTransient, got %v", err)
		}
		if f.stock.calls != 0 {
			t.Errorf("expected no decrements, got %d", f.stock.calls)
		}
		if _, err := f.carts.Get(ctx, "u1"); err != nil {
			t.Errorf("expected cart to remain, got %v", err)
		}
	})
}

func TestOrderIDFor(t *testing.T) {
	if OrderIDFor("evt_1") != OrderIDFor("evt_1") {
		t.Error("expected the same event to map to the same order id")
	}
	if OrderIDFor("evt_1") == OrderIDFor("evt_2") {
		t.Error("expected different events to map to different order ids")
	}
}
