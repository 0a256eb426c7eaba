// Package ratelimit implements the per-tenant sliding-window admission
// control described in spec §4.4: a 1-second window holding, per tenant,
// the timestamps of admitted requests. This mirrors the original service's
// RateLimiter class (a mutex-guarded map of deques) rather than the
// teacher's token-bucket limiter — spec §4.4 names the sliding-window
// algorithm explicitly, and the original confirms it exactly.
package ratelimit

import (
	"sync"
	"time"
)

const windowDuration = time.Second

// Limiter tracks per-tenant admission timestamps under a single mutex, as
// the spec requires ("operations are protected by a mutex; acquisition
// must be brief").
type Limiter struct {
	mu     sync.Mutex
	events map[string][]time.Time
	now    func() time.Time
}

func New() *Limiter {
	return &Limiter{
		events: make(map[string][]time.Time),
		now:    time.Now,
	}
}

// newWithClock is used by tests that need to control the passage of time
// without sleeping.
func newWithClock(now func() time.Time) *Limiter {
	l := New()
	l.now = now
	return l
}

// Allow evicts timestamps older than now-1s from tenantID's window, then
// admits the current request only if the window (after eviction) holds
// fewer than rps entries.
func (l *Limiter) Allow(tenantID string, rps int) bool {
	now := l.now()
	cutoff := now.Add(-windowDuration)

	l.mu.Lock()
	defer l.mu.Unlock()

	window := l.events[tenantID]
	i := 0
	for i < len(window) && !window[i].After(cutoff) {
		i++
	}
	if i > 0 {
		window = window[i:]
	}

	if len(window) >= rps {
		l.events[tenantID] = window
		return false
	}

	l.events[tenantID] = append(window, now)
	return true
}

// Reset drops all tracked state for tenantID. Used by tests and by tenant
// deprovisioning paths, if any are ever added.
func (l *Limiter) Reset(tenantID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.events, tenantID)
}
