package timeutils

import (
	"context"
	"fmt"
	"math"
	"time"
)

// SleepCtx blocks for d or until the context is canceled, whichever
// comes first.
func SleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("sleep canceled: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}

// BackoffDelay returns min(cap, 2^attempt + jitter()) seconds.
// attempt is 1-based; jitter must return a value in [0, 1).
func BackoffDelay(attempt int, cap time.Duration, jitter func() float64) time.Duration {
	seconds := math.Pow(2, float64(attempt)) + jitter()
	delay := time.Duration(seconds * float64(time.Second))
	if delay > cap {
		return cap
	}
	return delay
}
