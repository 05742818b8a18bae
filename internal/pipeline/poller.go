package pipeline

import (
	"context"
	"time"

	"server/internal/domain"
	"server/internal/infra"
)

// PollFunc is one status check. done=true stops the loop. A returned error
// is treated as transient: it is logged and the loop continues on the next
// tick until the attempt budget runs out.
type PollFunc func(ctx context.Context) (done bool, err error)

// Poller runs a bounded fixed-interval retry loop. Calls never overlap; the
// next tick is not scheduled until the previous call returns.
type Poller struct {
	Interval    time.Duration
	MaxAttempts int
	Logger      infra.Logger
}

// Run invokes fn until it reports done, the context is cancelled, or the
// attempt budget is exhausted. Budget exhaustion is domain.ErrPollTimeout,
// distinct from any provider-reported failure fn may surface by itself.
func (p Poller) Run(ctx context.Context, fn PollFunc) error {
	interval := p.Interval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 150
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for attempt := 1; attempt <= attempts; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		done, err := fn(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.Logger.Warn().Err(err).Int("attempt", attempt).Msg("poll attempt failed")
			continue
		}
		if done {
			return nil
		}
	}
	return domain.ErrPollTimeout
}
