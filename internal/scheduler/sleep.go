package scheduler

import (
	"context"
	"time"
)

// TaskSleepMs suspends the calling task body for d milliseconds, returning
// early with ctx.Err() if the task is cancelled mid-sleep. Task bodies call
// this (instead of time.Sleep) as their cooperative suspension point.
func TaskSleepMs(ctx context.Context, d int64) error {
	return sleepCtx(ctx, time.Duration(d)*time.Millisecond)
}

// TaskSleepS suspends the calling task body for d seconds.
func TaskSleepS(ctx context.Context, d int64) error {
	return sleepCtx(ctx, time.Duration(d)*time.Second)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
