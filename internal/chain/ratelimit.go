package chain

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// Throttle keeps one token bucket per host so a slow indexer does not
// starve requests to the platform API.
type Throttle struct {
	mu      sync.Mutex
	buckets map[string]*rate.Limiter
	every   rate.Limit
	burst   int
}

// NewThrottle creates a throttle allowing perSecond requests per host with the given burst.
func NewThrottle(perSecond float64, burst int) *Throttle {
	if burst < 1 {
		burst = 1
	}
	return &Throttle{
		buckets: make(map[string]*rate.Limiter),
		every:   rate.Limit(perSecond),
		burst:   burst,
	}
}

// Wait blocks until host may be contacted again or ctx is done.
func (t *Throttle) Wait(ctx context.Context, host string) error {
	return t.bucket(host).Wait(ctx)
}

// Allow reports whether host may be contacted right now, consuming a token if so.
func (t *Throttle) Allow(host string) bool {
	return t.bucket(host).Allow()
}

func (t *Throttle) bucket(host string) *rate.Limiter {
	t.mu.Lock()
	defer t.mu.Unlock()

	b, ok := t.buckets[host]
	if !ok {
		b = rate.NewLimiter(t.every, t.burst)
		t.buckets[host] = b
	}
	return b
}
