package orders

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/joao-fontenele/cellarflow/internal/domain"
	"github.com/joao-fontenele/cellarflow/internal/pagination"
)

type memoryOrders struct {
	mu        sync.Mutex
	orders    map[string]domain.Order
	createErr error
}

func newMemoryOrders(orders ...domain.Order) *memoryOrders {
	m := &memoryOrders{orders: map[string]domain.Order{}}
	for _, o := range orders {
		m.orders[o.OrderID] = o
	}
	return m
}

func (m *memoryOrders) CreateIfAbsent(_ context.Context, order *domain.Order) (*domain.Order, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return nil, false, m.createErr
	}
	if existing, ok := m.orders[order.OrderID]; ok {
		return &existing, false, nil
	}
	m.orders[order.OrderID] = *order
	return order, true, nil
}

func (m *memoryOrders) GetByID(_ context.Context, orderID string) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok {
		return nil, domain.NotFound("order %s", orderID)
	}
	return &o, nil
}

func (m *memoryOrders) List(_ context.Context, ownerID string, req pagination.Request) ([]domain.Order, pagination.Key, error) {
	m.mu.Lock()
	var all []domain.Order
	for _, o := range m.orders {
		if ownerID == "" || o.OwnerID == ownerID {
			all = append(all, o)
		}
	}
	m.mu.Unlock()

	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	return pagination.Slice(all, req)
}

func (m *memoryOrders) UpdateStatus(_ context.Context, orderID string, status domain.OrderStatus) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok {
		return nil, domain.NotFound("order %s", orderID)
	}
	if !o.Status.CanTransitionTo(status) {
		return nil, fmt.Errorf("%w: order %s is %s", domain.ErrInvalidTransition, orderID, o.Status)
	}
	o.Status = status
	o.UpdatedAt = time.Now().UTC()
	m.orders[orderID] = o
	return &o, nil
}

func (m *memoryOrders) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.orders)
}

type fakeCarts struct {
	mu        sync.Mutex
	carts     map[string]*domain.Cart
	getErr    error
	deleteErr error
}

func newFakeCarts(carts ...*domain.Cart) *fakeCarts {
	f := &fakeCarts{carts: map[string]*domain.Cart{}}
	for _, c := range carts {
		f.carts[c.OwnerID] = c
	}
	return f
}

func (f *fakeCarts) Get(_ context.Context, ownerID string) (*domain.Cart, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	c, ok := f.carts[ownerID]
	if !ok {
		return nil, domain.NotFound("cart for owner %s", ownerID)
	}
	return c, nil
}

func (f *fakeCarts) DeleteByOwner(_ context.Context, ownerID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	delete(f.carts, ownerID)
	return nil
}

type catalogEnricher map[string]int64

func (c catalogEnricher) Enrich(_ context.Context, lines []domain.CartLine) ([]domain.EnrichedLine, error) {
	out := make([]domain.EnrichedLine, len(lines))
	for i, line := range lines {
		out[i] = domain.EnrichedLine{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			AddedAt:   line.AddedAt,
			Name:      "Wine " + line.ProductID,
			UnitPrice: c[line.ProductID],
		}
	}
	return out, nil
}

type fakeStock struct {
	mu    sync.Mutex
	stock map[string]int
	errs  map[string]error
	calls int
}

func (f *fakeStock) Decrement(_ context.Context, productID string, quantity int) (domain.StockLevel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if err := f.errs[productID]; err != nil {
		return domain.StockLevel{}, err
	}
	if f.stock[productID] < quantity {
		return domain.StockLevel{}, fmt.Errorf("%w: %s", domain.ErrInsufficientStock, productID)
	}
	f.stock[productID] -= quantity
	return domain.StockLevel{ProductID: productID, RemainingStock: f.stock[productID], InStock: f.stock[productID] > 0}, nil
}

type recordingHook struct {
	mu     sync.Mutex
	events []domain.ReconcileEvent
}

func (h *recordingHook) Reconcile(_ context.Context, event domain.ReconcileEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, event)
	return nil
}

func (h *recordingHook) reasons() []domain.ReconcileReason {
	h.mu.Lock()
	defer h.mu.Unlock()
	reasons := make([]domain.ReconcileReason, len(h.events))
	for i, e := range h.events {
		reasons[i] = e.Reason
	}
	return reasons
}

type recordingPublisher struct {
	mu       sync.Mutex
	keys     []string
	payloads []any
}

func (p *recordingPublisher) Publish(_ context.Context, key string, event any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.keys = append(p.keys, key)
	p.payloads = append(p.payloads, event)
	return nil
}
