package queue

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Sweeper periodically expires queue entries that have waited past the
// ceiling, so stale entries disappear even when no console is polling.
type Sweeper struct {
	svc      *Service
	interval time.Duration
	logger   zerolog.Logger
}

// NewSweeper creates a new Sweeper
func NewSweeper(svc *Service, interval time.Duration, logger zerolog.Logger) *Sweeper {
	return &Sweeper{
		svc:      svc,
		interval: interval,
		logger:   logger,
	}
}

// Start begins the sweep loop, ticking until the context is cancelled
func (sw *Sweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(sw.interval)
	defer ticker.Stop()

	sw.logger.Info().Dur("interval", sw.interval).Msg("queue sweeper started")

	for {
		select {
		case <-ctx.Done():
			sw.logger.Info().Msg("queue sweeper stopped")
			return
		case <-ticker.C:
			sw.tick(ctx)
		}
	}
}

// tick performs a single sweep pass
func (sw *Sweeper) tick(ctx context.Context) {
	expired, err := sw.svc.SweepExpired(ctx)
	if err != nil {
		sw.logger.Error().Err(err).Msg("sweep pass failed")
		return
	}
	if expired > 0 {
		sw.logger.Info().Int("expired", expired).Msg("sweep pass expired entries")
	}
}
