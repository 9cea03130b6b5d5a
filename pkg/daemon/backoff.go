package daemon

import (
	"context"
	"sync"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"golang.org/x/time/rate"
)

const (
	backOffBy = 2.0
	recoverBy = 1.5
	// Even with no limit, a failure holds up the next iteration this
	// long, so a persistent failure doesn't spin.
	failurePause = 100 * time.Millisecond
)

// Backoff limits how often the loop goes around while things are
// failing.
//
// Each failure waits for the limiter, then halves the rate allowed,
// down to one iteration per Max. Each success increases the rate
// modestly, back up to one iteration per Min. A zero Min means no
// limit beyond a short pause after each failure.
type Backoff struct {
	Min, Max time.Duration
	Logger   log.Logger

	mu      sync.Mutex
	limiter *rate.Limiter
}

func NewBackoff(min, max time.Duration, logger log.Logger) *Backoff {
	if max < min {
		max = min
	}
	return &Backoff{
		Min:    min,
		Max:    max,
		Logger: logger,
	}
}

func perSecond(d time.Duration) float64 {
	if d <= 0 {
		return float64(rate.Inf)
	}
	return 1 / d.Seconds()
}

func (b *Backoff) clip(limit float64) float64 {
	ideal, floor := perSecond(b.Min), perSecond(b.Max)
	if b.Max < b.Min {
		floor = ideal
	}
	if limit < floor {
		return floor
	}
	if limit > ideal {
		return ideal
	}
	return limit
}

func (b *Backoff) ensureLimiter() *rate.Limiter {
	if b.limiter == nil {
		b.limiter = rate.NewLimiter(rate.Limit(b.clip(perSecond(b.Min))), 1)
	}
	return b.limiter
}

// Failed waits until another iteration is allowed, and reduces the
// rate for next time. It returns early with an error if the context
// is done.
func (b *Backoff) Failed(ctx context.Context) error {
	b.mu.Lock()
	limiter := b.ensureLimiter()
	b.mu.Unlock()

	if err := limiter.Wait(ctx); err != nil {
		return err
	}
	b.adjust(1 / backOffBy)
	if b.Min > 0 {
		return nil
	}
	t := time.NewTimer(failurePause)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Recover should be called when an iteration has succeeded, to bump
// the rate back up again.
func (b *Backoff) Recover() {
	b.adjust(recoverBy)
}

func (b *Backoff) adjust(by float64) {
	if b.Min <= 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	limiter := b.ensureLimiter()
	oldLimit := float64(limiter.Limit())
	newLimit := b.clip(oldLimit * by)
	if newLimit == oldLimit {
		return
	}
	if b.Logger != nil {
		level.Debug(b.Logger).Log("backoff", "adjusting", "interval", interval(newLimit))
	}
	limiter.SetLimit(rate.Limit(newLimit))
}

// Interval is the least time currently allowed between iterations.
func (b *Backoff) Interval() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	return interval(float64(b.ensureLimiter().Limit()))
}

func interval(limit float64) time.Duration {
	if limit >= float64(rate.Inf) {
		return 0
	}
	return time.Duration(float64(time.Second) / limit)
}
