package orders

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/joao-fontenele/cellarflow/internal/database"
	"github.com/joao-fontenele/cellarflow/internal/domain"
	"github.com/joao-fontenele/cellarflow/internal/pagination"
)

const orderColumns = `order_id, owner_id, status, total_amount, currency, customer_email,
		lines, shipping, idempotency_key, created_at, updated_at`

type OrderRepository struct {
	db *sql.DB
}

func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	var (
		order    domain.Order
		lines    []byte
		shipping []byte
	)
	err := row.Scan(&order.OrderID, &order.OwnerID, &order.Status, &order.TotalAmount, &order.Currency,
		&order.CustomerEmail, &lines, &shipping, &order.IdempotencyKey, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(lines, &order.Lines); err != nil {
		return nil, fmt.Errorf("decode order lines: %w", err)
	}
	if err := json.Unmarshal(shipping, &order.Shipping); err != nil {
		return nil, fmt.Errorf("decode shipping details: %w", err)
	}
	return &order, nil
}

func (r *OrderRepository) CreateIfAbsent(ctx context.Context, order *domain.Order) (*domain.Order, bool, error) {
	lines, err := json.Marshal(order.Lines)
	if err != nil {
		return nil, false, fmt.Errorf("encode order lines: %w", err)
	}
	shipping, err := json.Marshal(order.Shipping)
	if err != nil {
		return nil, false, fmt.Errorf("encode shipping details: %w", err)
	}

	stored, err := scanOrder(r.db.QueryRowContext(ctx, `
		INSERT INTO orders (`+orderColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT DO NOTHING
		RETURNING `+orderColumns,
		order.OrderID, order.OwnerID, order.Status, order.TotalAmount, order.Currency, order.CustomerEmail,
		string(lines), string(shipping), order.IdempotencyKey, order.CreatedAt, order.UpdatedAt))
	if err == nil {
		return stored, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, database.ClassifyPostgres(err)
	}

	existing, err := r.GetByID(ctx, order.OrderID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, false, fmt.Errorf("%w: idempotency key %s belongs to another order", domain.ErrConflict, order.IdempotencyKey)
	}
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (r *OrderRepository) GetByID(ctx context.Context, orderID string) (*domain.Order, error) {
	order, err := scanOrder(r.db.QueryRowContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE order_id = $1
	`, orderID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NotFound("order %s", orderID)
	}
	if err != nil {
		return nil, database.ClassifyPostgres(err)
	}
	return order, nil
}

// List returns orders newest first, optionally limited to one owner.
func (r *OrderRepository) List(ctx context.Context, ownerID string, req pagination.Request) ([]domain.Order, pagination.Key, error) {
	var (
		afterTime *time.Time
		afterID   *string
	)
	if req.After != nil {
		t, err := time.Parse(time.RFC3339Nano, req.After["createdAt"])
		if err != nil || req.After["orderId"] == "" {
			return nil, nil, domain.InvalidInput("malformed nextToken")
		}
		id := req.After["orderId"]
		afterTime, afterID = &t, &id
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE ($1 = '' OR owner_id = $1)
		  AND ($2::timestamptz IS NULL OR (created_at, order_id) < ($2, $3))
		ORDER BY created_at DESC, order_id DESC
		LIMIT $4
	`, ownerID, afterTime, afterID, req.Limit+1)
	if err != nil {
		return nil, nil, database.ClassifyPostgres(err)
	}
	defer func() { _ = rows.Close() }()

	var orders []domain.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, nil, err
		}
		orders = append(orders, *order)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, database.ClassifyPostgres(err)
	}

	if len(orders) <= req.Limit {
		return orders, nil, nil
	}
	orders = orders[:req.Limit]
	last := orders[len(orders)-1]
	return orders, pagination.Key{
		"createdAt": last.CreatedAt.UTC().Format(time.RFC3339Nano),
		"orderId":   last.OrderID,
	}, nil
}

// UpdateStatus moves a pending order to a terminal status.
func (r *OrderRepository) UpdateStatus(ctx context.Context, orderID string, status domain.OrderStatus) (*domain.Order, error) {
	if !domain.OrderStatusPending.CanTransitionTo(status) {
		return nil, fmt.Errorf("%w: cannot move order to %s", domain.ErrInvalidTransition, status)
	}

	order, err := scanOrder(r.db.QueryRowContext(ctx, `
		UPDATE orders SET status = $2, updated_at = NOW()
		WHERE order_id = $1 AND status = $3
		RETURNING `+orderColumns,
		orderID, status, domain.OrderStatusPending))
	if err == nil {
		return order, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, database.ClassifyPostgres(err)
	}

	current, err := r.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("%w: order %s is %s", domain.ErrInvalidTransition, orderID, current.Status)
}
