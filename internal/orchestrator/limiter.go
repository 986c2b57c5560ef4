// limiter.go — cross-run concurrency gate (§5): "execute(fn) acquires a
// permit, runs fn to completion (success or failure), and releases the
// permit regardless."
//
// The concurrency bound itself is a plain buffered-channel semaphore
// (§5 calls it a "bounded token bucket" but requires only FIFO-ish
// admission, not a refill rate). golang.org/x/time/rate additionally
// paces *how often* a new run may start, grounded in blackcoderx-zap's
// pkg/core/tools/perf.go use of rate.NewLimiter for request pacing.
package orchestrator

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

func durationMs(ms int) time.Duration { return time.Duration(ms) * time.Millisecond }

// Limiter bounds cross-run concurrency and, optionally, the minimum
// interval between run starts.
type Limiter struct {
	sem   chan struct{}
	pacer *rate.Limiter
}

// NewLimiter builds a Limiter admitting at most maxConcurrent runs at
// once. When minIntervalMs > 0, run starts are additionally paced to no
// more than one per that interval.
func NewLimiter(maxConcurrent int, minIntervalMs int) *Limiter {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	l := &Limiter{sem: make(chan struct{}, maxConcurrent)}
	if minIntervalMs > 0 {
		interval := rate.Every(durationMs(minIntervalMs))
		l.pacer = rate.NewLimiter(interval, 1)
	}
	return l
}

// Execute acquires a permit (respecting ctx cancellation), runs fn, and
// releases the permit regardless of fn's outcome.
func (l *Limiter) Execute(ctx context.Context, fn func() error) error {
	if l.pacer != nil {
		if err := l.pacer.Wait(ctx); err != nil {
			return err
		}
	}
	select {
	case l.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-l.sem }()
	return fn()
}
