package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/joao-fontenele/cellarflow/internal/database"
	"github.com/joao-fontenele/cellarflow/internal/domain"
	"github.com/joao-fontenele/cellarflow/internal/pagination"
)

const productColumns = `product_id, name, description, category, unit_price, image_ref,
		stock_quantity, in_stock, created_at, updated_at`

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (domain.Product, error) {
	var p domain.Product
	err := row.Scan(&p.ProductID, &p.Name, &p.Description, &p.Category, &p.UnitPrice, &p.ImageRef,
		&p.StockQuantity, &p.InStock, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (r *Repository) Create(ctx context.Context, p *domain.Product) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO products (`+productColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, p.ProductID, p.Name, p.Description, p.Category, p.UnitPrice, p.ImageRef,
		p.StockQuantity, p.StockQuantity > 0, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return database.ClassifyPostgres(err)
	}
	p.InStock = p.StockQuantity > 0
	return nil
}

func (r *Repository) Get(ctx context.Context, productID string) (*domain.Product, error) {
	p, err := scanProduct(r.db.QueryRowContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE product_id = $1
	`, productID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NotFound("product %s", productID)
	}
	if err != nil {
		return nil, database.ClassifyPostgres(err)
	}
	return &p, nil
}

func (r *Repository) BatchGet(ctx context.Context, productIDs []string) ([]domain.Product, error) {
	if len(productIDs) > database.MaxBatchGet {
		return nil, fmt.Errorf("batch of %d keys exceeds limit of %d", len(productIDs), database.MaxBatchGet)
	}
	if len(productIDs) == 0 {
		return nil, nil
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE product_id = ANY($1)
	`, pq.Array(productIDs))
	if err != nil {
		return nil, database.ClassifyPostgres(err)
	}
	defer func() { _ = rows.Close() }()

	products := make([]domain.Product, 0, len(productIDs))
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, database.ClassifyPostgres(err)
	}

	return products, nil
}

// List returns products ordered by name. The key of the last row resumes
// the scan.
func (r *Repository) List(ctx context.Context, filter Filter, req pagination.Request) ([]domain.Product, pagination.Key, error) {
	query, args, err := listQuery(filter, req)
	if err != nil {
		return nil, nil, err
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, nil, database.ClassifyPostgres(err)
	}
	defer func() { _ = rows.Close() }()

	var products []domain.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, nil, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, database.ClassifyPostgres(err)
	}

	if len(products) <= req.Limit {
		return products, nil, nil
	}
	products = products[:req.Limit]
	last := products[len(products)-1]
	return products, pagination.Key{"name": last.Name, "productId": last.ProductID}, nil
}

func listQuery(filter Filter, req pagination.Request) (string, []any, error) {
	if err := database.CheckKey(req.After, "name", "productId"); err != nil {
		return "", nil, err
	}

	var (
		conds []string
		args  []any
	)
	if filter.Category != "" {
		args = append(args, filter.Category)
		conds = append(conds, fmt.Sprintf("category = $%d", len(args)))
	}
	if filter.Query != "" {
		args = append(args, filter.Query)
		conds = append(conds, fmt.Sprintf("strpos(lower(name), lower($%d)) > 0", len(args)))
	}
	if req.After != nil {
		args = append(args, req.After["name"], req.After["productId"])
		conds = append(conds, fmt.Sprintf("(name, product_id) > ($%d, $%d)", len(args)-1, len(args)))
	}
	where := ""
	if len(conds) > 0 {
		where = "WHERE " + strings.Join(conds, " AND ")
	}
	args = append(args, req.Limit+1)

	query := `
		SELECT ` + productColumns + `
		FROM products
		` + where + `
		ORDER BY name, product_id
		LIMIT $` + fmt.Sprint(len(args))
	return query, args, nil
}

// Update merges patch into the stored product under a row lock.
func (r *Repository) Update(ctx context.Context, productID string, patch domain.ProductPatch) (*domain.Product, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, database.ClassifyPostgres(err)
	}
	defer func() { _ = tx.Rollback() }()

	p, err := scanProduct(tx.QueryRowContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE product_id = $1
		FOR UPDATE
	`, productID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NotFound("product %s", productID)
	}
	if err != nil {
		return nil, database.ClassifyPostgres(err)
	}

	patch.Apply(&p, time.Now().UTC())

	_, err = tx.ExecContext(ctx, `
		UPDATE products
		SET name = $2, description = $3, category = $4, unit_price = $5, image_ref = $6,
		    stock_quantity = $7, in_stock = $8, updated_at = $9
		WHERE product_id = $1
	`, p.ProductID, p.Name, p.Description, p.Category, p.UnitPrice, p.ImageRef,
		p.StockQuantity, p.InStock, p.UpdatedAt)
	if err != nil {
		return nil, database.ClassifyPostgres(err)
	}

	if err := tx.Commit(); err != nil {
		return nil, database.ClassifyPostgres(err)
	}
	return &p, nil
}

func (r *Repository) Delete(ctx context.Context, productID string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM products WHERE product_id = $1`, productID)
	if err != nil {
		return database.ClassifyPostgres(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return domain.NotFound("product %s", productID)
	}
	return nil
}
