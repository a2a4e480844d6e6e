package cart

import (
	"context"
	"log/slog"
	"time"
)

type ExpiredPurger interface {
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

// Sweeper deletes expired carts on an interval, for stores without native
// TTL expiry.
type Sweeper struct {
	purger   ExpiredPurger
	interval time.Duration
	logger   *slog.Logger
}

func NewSweeper(purger ExpiredPurger, interval time.Duration, logger *slog.Logger) *Sweeper {
	return &Sweeper{purger: purger, interval: interval, logger: logger}
}

// Run blocks until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, s.interval)
	defer cancel()

	n, err := s.purger.PurgeExpired(ctx, time.Now().UTC())
	if err != nil {
		s.logger.Error("failed to purge expired carts", "error", err)
		return
	}
	if n > 0 {
		s.logger.Info("expired carts purged", "count", n)
	}
}
