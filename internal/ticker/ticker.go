package ticker

import (
	"context"
	"time"

	"github.com/hardw419/ivr-system/internal/notify"
	"github.com/rs/zerolog"
)

// TimeMessage is the clock beat consoles use to render live wait timers
// without trusting the browser clock.
type TimeMessage struct {
	Timestamp  string `json:"timestamp"`
	ServerTime int64  `json:"serverTime"`
}

// Ticker periodically broadcasts the server clock to connected consoles
type Ticker struct {
	notifier notify.Notifier
	interval time.Duration
	logger   zerolog.Logger
}

// NewTicker creates a new Ticker
func NewTicker(notifier notify.Notifier, interval time.Duration, logger zerolog.Logger) *Ticker {
	return &Ticker{
		notifier: notifier,
		interval: interval,
		logger:   logger,
	}
}

// Start begins broadcasting clock beats
func (t *Ticker) Start(ctx context.Context) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	t.logger.Info().Dur("interval", t.interval).Msg("ticker started")

	for {
		select {
		case <-ctx.Done():
			t.logger.Info().Msg("ticker stopped")
			return

		case now := <-ticker.C:
			t.notifier.Broadcast("server-time", TimeMessage{
				Timestamp:  now.UTC().Format(time.RFC3339),
				ServerTime: now.Unix(),
			})
		}
	}
}
