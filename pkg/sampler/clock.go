package sampler

import (
	"context"
	"runtime"
	"time"
)

// Clock supplies time to the loop. Yield is called between completion polls
// and Sleep between cycles, so a fake Clock can simulate both without spinning.
type Clock interface {
	Now() time.Time
	Yield()
	Sleep(ctx context.Context, d time.Duration) error
}

// RealClock is the wall clock.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

func (RealClock) Yield() { runtime.Gosched() }

func (RealClock) Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
