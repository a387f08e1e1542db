package idempotency

import (
	"context"
	"log/slog"
	"time"
)

type purgeObserver interface {
	ObservePurge(n int64)
}

// Purger deletes expired keys on a fixed interval until its context ends.
type Purger struct {
	guard    *Guard
	observer purgeObserver
	logger   *slog.Logger
	interval time.Duration
}

func NewPurger(guard *Guard, observer purgeObserver, logger *slog.Logger, interval time.Duration) *Purger {
	return &Purger{guard: guard, observer: observer, logger: logger, interval: interval}
}

func (p *Purger) Start(ctx context.Context) {
	p.logger.Info("idempotency purger started", "interval", p.interval)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("idempotency purger stopped")
			return
		case <-ticker.C:
			n, err := p.guard.Purge(ctx)
			if err != nil {
				p.logger.Error("failed to purge idempotency keys", "error", err)
				continue
			}
			if p.observer != nil {
				p.observer.ObservePurge(n)
			}
		}
	}
}
