// Package ratelimit provides the shared call gate for the vendor API.
//
// The vendor enforces a per-minute call budget across the whole account, so
// every worker goroutine must funnel through one gate regardless of which
// client instance it holds.
package ratelimit

import (
	"sync"
	"time"
)

// Gate enforces a minimum interval between successive calls across all
// goroutines. The check-and-update of the last-call timestamp is a single
// critical section: a caller that has to wait sleeps while holding the lock,
// which is what serialises the queue and keeps the spacing invariant exact.
type Gate struct {
	mu       sync.Mutex
	interval time.Duration
	lastCall time.Time
}

// NewGate creates a gate allowing perMinute calls per minute.
func NewGate(perMinute int) *Gate {
	return &Gate{
		interval: time.Duration(float64(time.Minute) / float64(perMinute)),
	}
}

// NewGateWithInterval creates a gate with an explicit minimum spacing.
func NewGateWithInterval(interval time.Duration) *Gate {
	return &Gate{interval: interval}
}

// Acquire blocks until at least the configured interval has elapsed since
// the previous permitted call, then records this call's timestamp.
func (g *Gate) Acquire() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.lastCall.IsZero() {
		if wait := g.interval - time.Since(g.lastCall); wait > 0 {
			time.Sleep(wait)
		}
	}
	g.lastCall = time.Now()
}

// Interval returns the configured minimum spacing between calls.
func (g *Gate) Interval() time.Duration {
	return g.interval
}
