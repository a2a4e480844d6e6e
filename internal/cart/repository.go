package cart

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/joao-fontenele/cellarflow/internal/database"
	"github.com/joao-fontenele/cellarflow/internal/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) FindByOwner(ctx context.Context, ownerID string, now time.Time) (*domain.Cart, error) {
	cart := &domain.Cart{}
	var lines []byte

	err := r.db.QueryRowContext(ctx, `
		SELECT owner_id, cart_id, lines, created_at, updated_at, expires_at, version
		FROM carts
		WHERE owner_id = $1 AND expires_at > $2
	`, ownerID, now.Unix()).Scan(&cart.OwnerID, &cart.CartID, &lines, &cart.CreatedAt, &cart.UpdatedAt, &cart.ExpiresAt, &cart.Version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, database.ClassifyPostgres(err)
	}

	if err := json.Unmarshal(lines, &cart.Lines); err != nil {
		return nil, fmt.Errorf("decode cart lines: %w", err)
	}

	return cart, nil
}

func (r *PostgresRepository) Save(ctx context.Context, cart *domain.Cart, now time.Time) error {
	lines, err := json.Marshal(cart.Lines)
	if err != nil {
		return fmt.Errorf("encode cart lines: %w", err)
	}

	var result sql.Result
	if !cart.Persisted() {
		// An expired cart still holding the owner's row is replaced.
		result, err = r.db.ExecContext(ctx, `
			INSERT INTO carts (owner_id, cart_id, lines, created_at, updated_at, expires_at, version)
			VALUES ($1, $2, $3, $4, $5, $6, 1)
			ON CONFLICT (owner_id) DO UPDATE
			SET cart_id = EXCLUDED.cart_id,
			    lines = EXCLUDED.lines,
			    created_at = EXCLUDED.created_at,
			    updated_at = EXCLUDED.updated_at,
			    expires_at = EXCLUDED.expires_at,
			    version = 1
			WHERE carts.expires_at <= $7
		`, cart.OwnerID, cart.CartID, string(lines), cart.CreatedAt, cart.UpdatedAt, cart.ExpiresAt, now.Unix())
	} else {
		result, err = r.db.ExecContext(ctx, `
			UPDATE carts
			SET lines = $3, updated_at = $4, expires_at = $5, version = version + 1
			WHERE owner_id = $1 AND cart_id = $2 AND version = $6
		`, cart.OwnerID, cart.CartID, string(lines), cart.UpdatedAt, cart.ExpiresAt, cart.Version)
	}
	if err != nil {
		return database.ClassifyPostgres(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: cart for owner %s changed concurrently", domain.ErrConflict, cart.OwnerID)
	}

	cart.Version++
	return nil
}

func (r *PostgresRepository) Delete(ctx context.Context, cart *domain.Cart) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM carts
		WHERE owner_id = $1 AND cart_id = $2
	`, cart.OwnerID, cart.CartID)
	return database.ClassifyPostgres(err)
}

// PurgeExpired removes carts whose TTL has passed.
func (r *PostgresRepository) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM carts WHERE expires_at <= $1`, now.Unix())
	if err != nil {
		return 0, database.ClassifyPostgres(err)
	}
	return result.RowsAffected()
}
