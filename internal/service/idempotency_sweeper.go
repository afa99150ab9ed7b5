package service

import (
	"context"
	"log/slog"
	"time"
)

type idempotencyCleaner interface {
	CleanExpired(ctx context.Context) (int64, error)
}

// IdempotencySweeper periodically removes expired idempotency cache entries.
type IdempotencySweeper struct {
	cache    idempotencyCleaner
	logger   *slog.Logger
	interval time.Duration
}

func NewIdempotencySweeper(cache idempotencyCleaner, logger *slog.Logger, interval time.Duration) *IdempotencySweeper {
	return &IdempotencySweeper{
		cache:    cache,
		logger:   logger,
		interval: interval,
	}
}

// Start blocks until ctx is canceled.
func (s *IdempotencySweeper) Start(ctx context.Context) {
	s.logger.Info("idempotency sweeper started", "interval", s.interval)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("idempotency sweeper stopped")
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *IdempotencySweeper) sweep(ctx context.Context) {
	n, err := s.cache.CleanExpired(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		s.logger.Error("failed to clean expired idempotency entries", "error", err)
		return
	}
	if n > 0 {
		s.logger.Info("expired idempotency entries removed", "count", n)
	}
}
