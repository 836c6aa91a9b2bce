package store

import (
	"context"
	"log/slog"
	"time"
)

type Pruner interface {
	DeleteOldPostings(ctx context.Context, olderThan time.Duration) (int64, error)
}

// Retention periodically deletes saved postings older than maxAge.
type Retention struct {
	pruner   Pruner
	maxAge   time.Duration
	interval time.Duration
}

func NewRetention(pruner Pruner, maxAge, interval time.Duration) *Retention {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	return &Retention{pruner: pruner, maxAge: maxAge, interval: interval}
}

func (r *Retention) Start(ctx context.Context) {
	go r.run(ctx)
}

func (r *Retention) run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	// Run immediately on startup
	r.cleanup(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.cleanup(ctx)
		}
	}
}

func (r *Retention) cleanup(ctx context.Context) {
	count, err := r.pruner.DeleteOldPostings(ctx, r.maxAge)
	if err != nil {
		slog.Error("retention: failed to delete old postings", "error", err)
		return
	}
	slog.Info("retention: deleted old postings", "count", count, "max_age", r.maxAge)
}
