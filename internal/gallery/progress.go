package gallery

import (
	"context"
	"time"
)

const (
	ProgressStep     = 10
	DefaultTickEvery = 200 * time.Millisecond
)

// SimulateProgress reports 0, 10, ..., 100 on a fixed ticker, independent of
// any real transfer. It returns ctx.Err() if cancelled before reaching 100.
func SimulateProgress(ctx context.Context, interval time.Duration, report func(percent int)) error {
	if interval <= 0 {
		interval = DefaultTickEvery
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for pct := 0; pct <= 100; pct += ProgressStep {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		report(pct)
	}
	return nil
}
