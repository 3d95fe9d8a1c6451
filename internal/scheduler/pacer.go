package scheduler

import (
	"context"
	"math/rand"
	"time"
)

// pacer spaces outreach sends with a randomized delay so send timing does not
// look mechanical to the platform.
type pacer struct {
	minDelay time.Duration
	maxDelay time.Duration
	lastSend time.Time
}

func newPacer(minDelay, maxDelay time.Duration) *pacer {
	return &pacer{minDelay: minDelay, maxDelay: maxDelay}
}

// wait blocks until a jittered delay has elapsed since the previous send, or
// the context is cancelled.
func (p *pacer) wait(ctx context.Context) error {
	delay := p.minDelay + time.Duration(rand.Int63n(int64(p.maxDelay-p.minDelay)+1))
	remaining := delay - time.Since(p.lastSend)
	if remaining > 0 {
		timer := time.NewTimer(remaining)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
	p.lastSend = time.Now()
	return nil
}
