package planwatch

import (
	"context"
	"log/slog"
	"time"

	"github.com/mazen160/go-random"
)

// jitter spreads poll times a little so restarts of many watchers don't
// all hit the portal in the same second.
func jitter(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	n, err := random.IntRange(0, int(max.Milliseconds()))
	if err != nil {
		return 0
	}
	return time.Duration(n) * time.Millisecond
}

// RunDaemon polls until ctx is cancelled, re-reading the cadence after
// every cycle so a detected plan change tightens the loop immediately.
func (c *Coordinator) RunDaemon(ctx context.Context) {
	for {
		_, err := c.Refresh(ctx)
		if err != nil {
			slog.ErrorContext(ctx, "poll cycle failed", "err", err)
		}

		wait := c.Interval() + jitter(30*time.Second)
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}
