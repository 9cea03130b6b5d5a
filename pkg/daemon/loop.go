package daemon

import (
	"context"
	"sync"

	"github.com/go-kit/kit/log/level"
)

// Loop iterates until the context is cancelled. Failed iterations are
// logged, and the next one held back by the backoff; nothing short of
// cancellation stops the loop.
func (d *Daemon) Loop(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()

	backoff := d.Backoff
	if backoff == nil {
		backoff = NewBackoff(DefaultBackoff, DefaultMaxBackoff, d.Logger)
	}

	for {
		err := d.Iterate(ctx)
		if ctx.Err() != nil {
			level.Info(d.Logger).Log("stopping", "true")
			return
		}
		if err != nil {
			level.Error(d.Logger).Log("err", err)
			// the context is checked on the way round
			_ = backoff.Failed(ctx)
			continue
		}
		backoff.Recover()
	}
}
