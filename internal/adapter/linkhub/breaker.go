package linkhub

import (
	"errors"
	"sync"
	"time"
)

// ErrUnavailable is returned by Send while the breaker is rejecting calls.
var ErrUnavailable = errors.New("linkhub unavailable, circuit open")

// breaker trips after consecutive transport failures and rejects sends until
// the cooldown passes. After cooldown a single probe is let through; a probe
// success resets the breaker, a probe failure re-arms the cooldown.
//
// Remote per-item failures never feed the breaker, only transport errors and
// non-2xx responses do.
type breaker struct {
	mu          sync.Mutex
	consecutive int
	tripAfter   int
	cooldown    time.Duration
	trippedAt   time.Time
	probing     bool
	clock       func() time.Time // for testing
}

func newBreaker(tripAfter int, cooldown time.Duration) *breaker {
	return &breaker{
		tripAfter: tripAfter,
		cooldown:  cooldown,
		clock:     time.Now,
	}
}

func (b *breaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.consecutive < b.tripAfter {
		return true
	}
	if b.clock().Sub(b.trippedAt) < b.cooldown {
		return false
	}
	if b.probing {
		return false
	}
	b.probing = true
	return true
}

func (b *breaker) observe(ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.probing = false
	if ok {
		b.consecutive = 0
		return
	}
	b.consecutive++
	if b.consecutive >= b.tripAfter {
		b.trippedAt = b.clock()
	}
}
