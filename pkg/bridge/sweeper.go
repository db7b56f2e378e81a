package bridge

import (
	"context"
	"log/slog"
	"time"
)

// Sweeper periodically evicts sessions past the retention window. It runs
// independently of request handling and stops when its context is canceled.
type Sweeper struct {
	store     SessionStore
	retention time.Duration
	interval  time.Duration
}

func NewSweeper(store SessionStore, retention, interval time.Duration) *Sweeper {
	return &Sweeper{
		store:     store,
		retention: retention,
		interval:  interval,
	}
}

// Run blocks until ctx is canceled, sweeping the store every interval.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Debug("session sweeper stopped")
			return
		case <-ticker.C:
			if evicted := s.store.EvictExpired(s.retention); evicted > 0 {
				slog.Info("evicted expired sessions", "count", evicted)
			}
		}
	}
}
