package rate

import (
	"context"
	"sync"
	"time"
)

// Pacer spaces successive calls by a fixed delay. The first call passes
// immediately; every later call waits the full delay, regardless of how long
// the previous request took. Concurrent callers are serialized, so the
// aggregate rate never exceeds one call per delay.
type Pacer struct {
	mu      sync.Mutex
	delay   time.Duration
	sleep   Sleeper
	started bool
}

// NewPacer creates a Pacer. A nil sleep uses the real clock.
func NewPacer(delay time.Duration, sleep Sleeper) *Pacer {
	if sleep == nil {
		sleep = Sleep
	}
	return &Pacer{delay: delay, sleep: sleep}
}

// Wait blocks until the caller may issue its request.
func (p *Pacer) Wait(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		p.started = true
		return ctx.Err()
	}
	return p.sleep(ctx, p.delay)
}
