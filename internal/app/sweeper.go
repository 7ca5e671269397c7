package app

import (
	"context"
	"log/slog"
	"time"
)

type pruner interface {
	Prune(ctx context.Context) error
}

type expiredTokenSweeper interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// sweeper drops stale rate-limit hits, brute-force windows and expired
// refresh tokens on a fixed interval.
type sweeper struct {
	interval time.Duration
	limiter  pruner
	guard    pruner
	tokens   expiredTokenSweeper
}

func newSweeper(interval time.Duration, limiter pruner, guard pruner, tokens expiredTokenSweeper) *sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &sweeper{interval: interval, limiter: limiter, guard: guard, tokens: tokens}
}

// Run sweeps until ctx is cancelled.
func (s *sweeper) Run(ctx context.Context) {
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

func (s *sweeper) sweep(ctx context.Context) {
	if err := s.limiter.Prune(ctx); err != nil {
		slog.Warn("rate limit prune failed", "error", err)
	}
	if err := s.guard.Prune(ctx); err != nil {
		slog.Warn("brute-force prune failed", "error", err)
	}

	removed, err := s.tokens.DeleteExpired(ctx)
	if err != nil {
		slog.Warn("refresh token cleanup failed", "error", err)
		return
	}
	if removed > 0 {
		slog.Debug("expired refresh tokens removed", "count", removed)
	}
}
