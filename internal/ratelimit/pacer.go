package ratelimit

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Pacer spaces out calls to an upstream collaborator. Wait blocks until the
// next call may start or ctx is done.
type Pacer struct {
	limiter *rate.Limiter
}

// NewPacer allows one call per interval with no burst. A non-positive interval
// yields a pacer that never waits.
func NewPacer(interval time.Duration) *Pacer {
	if interval <= 0 {
		return &Pacer{limiter: rate.NewLimiter(rate.Inf, 1)}
	}
	return &Pacer{limiter: rate.NewLimiter(rate.Every(interval), 1)}
}

func (p *Pacer) Wait(ctx context.Context) error {
	return p.limiter.Wait(ctx)
}

// NoWait is a pacer for tests and local runs that never blocks.
type NoWait struct{}

func (NoWait) Wait(ctx context.Context) error { return ctx.Err() }
