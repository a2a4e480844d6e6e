package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/lib/pq"

	"github.com/joao-fontenele/cellarflow/internal/domain"
	"github.com/joao-fontenele/cellarflow/internal/telemetry"
)

func OpenPostgres(ctx context.Context, url string) (*sql.DB, error) {
	db, err := telemetry.OpenDB("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	return db, nil
}

// ClassifyPostgres maps driver failures onto the domain error kinds. Errors
// it does not recognise are returned unchanged.
func ClassifyPostgres(err error) error {
	if err == nil {
		return nil
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch {
		case pqErr.Code.Class() == "40":
			return fmt.Errorf("%w: %w: %w", domain.ErrTransient, domain.ErrNotApplied, err)
		case pqErr.Code == "23505":
			return fmt.Errorf("%w: %w", domain.ErrConflict, err)
		case pqErr.Code.Class() == "08", pqErr.Code.Class() == "53", pqErr.Code.Class() == "57":
			return fmt.Errorf("%w: %w", domain.ErrTransient, err)
		}
		return err
	}

	if errors.Is(err, driver.ErrBadConn) {
		return fmt.Errorf("%w: %w: %w", domain.ErrTransient, domain.ErrNotApplied, err)
	}

	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return fmt.Errorf("%w: %w", domain.ErrTransient, err)
	}

	return err
}
