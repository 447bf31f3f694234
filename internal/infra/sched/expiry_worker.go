package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"telegram-relay-subscription/internal/infra/logging"
	"telegram-relay-subscription/internal/infra/metrics"
)

// ExpiredCounter is the slice of the key ledger the reporter reads.
type ExpiredCounter interface {
	CountExpired(ctx context.Context) (int, error)
}

// ExpiryReporter publishes the number of lapsed authorization keys.
// Expiry is advisory: keys are never deactivated here.
type ExpiryReporter struct {
	interval time.Duration
	ledger   ExpiredCounter
	log      *zerolog.Logger
}

func NewExpiryReporter(interval time.Duration, ledger ExpiredCounter, logger *zerolog.Logger) *ExpiryReporter {
	if interval <= 0 {
		interval = time.Hour
	}
	return &ExpiryReporter{
		interval: interval,
		ledger:   ledger,
		log:      logging.Component(logger, "ExpiryReporter"),
	}
}

// Run reports once immediately, then on every tick until ctx is done.
func (w *ExpiryReporter) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Msg("starting expiry reporter")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.RunOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("stopping expiry reporter")
			return ctx.Err()
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

func (w *ExpiryReporter) RunOnce(ctx context.Context) (int, error) {
	n, err := w.ledger.CountExpired(ctx)
	if err != nil {
		w.log.Error().Err(err).Msg("count expired keys")
		return 0, err
	}
	metrics.SetExpiredKeys(n)
	if n > 0 {
		w.log.Info().Int("count", n).Msg("authorization keys past expiry")
	}
	return n, nil
}
