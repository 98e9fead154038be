package database

import (
	"context"
	"fmt"
	"time"

	"github.com/HammerMeetNail/tville/internal/logging"
)

const maxRetryDelay = 10 * time.Second

// Retry governs startup connection attempts while Postgres and Redis come
// up alongside the app. Delay doubles after each failure, up to 10s.
type Retry struct {
	Attempts int
	Delay    time.Duration
}

// Do runs fn until it succeeds, the attempts run out, or ctx ends. The last
// error is returned.
func (r Retry) Do(ctx context.Context, target string, fn func(ctx context.Context) error) error {
	attempts := max(r.Attempts, 1)
	delay := r.Delay

	var err error
	for attempt := 1; ; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if attempt == attempts {
			return fmt.Errorf("%s unavailable after %d attempt(s): %w", target, attempts, err)
		}
		logging.Warn("Connection attempt failed", map[string]interface{}{
			"target":  target,
			"attempt": attempt,
			"retry":   delay.String(),
			"error":   err.Error(),
		})

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%s: %w (last error: %v)", target, ctx.Err(), err)
		case <-timer.C:
		}
		delay = min(delay*2, maxRetryDelay)
	}
}
