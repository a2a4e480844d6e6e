package inventory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/joao-fontenele/cellarflow/internal/database"
	"github.com/joao-fontenele/cellarflow/internal/domain"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) ConditionalDecrement(ctx context.Context, productID string, quantity int) (domain.StockLevel, error) {
	level := domain.StockLevel{ProductID: productID}

	err := r.db.QueryRowContext(ctx, `
		UPDATE products
		SET stock_quantity = stock_quantity - $2,
		    in_stock = stock_quantity - $2 > 0,
		    updated_at = NOW()
		WHERE product_id = $1 AND stock_quantity >= $2
		RETURNING stock_quantity, in_stock
	`, productID, quantity).Scan(&level.RemainingStock, &level.InStock)
	if err == nil {
		return level, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return domain.StockLevel{}, database.ClassifyPostgres(err)
	}

	var exists bool
	if err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM products WHERE product_id = $1)
	`, productID).Scan(&exists); err != nil {
		return domain.StockLevel{}, database.ClassifyPostgres(err)
	}
	if !exists {
		return domain.StockLevel{}, domain.NotFound("product %s", productID)
	}
	return domain.StockLevel{}, fmt.Errorf("%w: product %s", domain.ErrInsufficientStock, productID)
}

func (r *Repository) MarkOutOfStock(ctx context.Context, productID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE products
		SET in_stock = FALSE, updated_at = NOW()
		WHERE product_id = $1 AND stock_quantity = 0 AND in_stock
	`, productID)
	return database.ClassifyPostgres(err)
}

func (r *Repository) GetStock(ctx context.Context, productID string) (domain.StockLevel, error) {
	level := domain.StockLevel{ProductID: productID}

	err := r.db.QueryRowContext(ctx, `
		SELECT stock_quantity, in_stock
		FROM products
		WHERE product_id = $1
	`, productID).Scan(&level.RemainingStock, &level.InStock)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.StockLevel{}, domain.NotFound("product %s", productID)
	}
	if err != nil {
		return domain.StockLevel{}, database.ClassifyPostgres(err)
	}

	return level, nil
}
