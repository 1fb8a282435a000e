package http

import (
	"sync"
	"time"

	"github.com/dkeye/meetclient/internal/domain"
)

// CallRateLimiter admits at most limit call attempts per callee within a
// sliding window. Callees with no attempt left in the window are forgotten.
type CallRateLimiter struct {
	limit  int
	window time.Duration
	now    func() time.Time

	mu        sync.Mutex
	attempts  map[domain.UserID][]time.Time
	lastSweep time.Time
}

func NewCallRateLimiter(limit int, window time.Duration) *CallRateLimiter {
	return &CallRateLimiter{
		limit:    limit,
		window:   window,
		now:      time.Now,
		attempts: make(map[domain.UserID][]time.Time),
	}
}

func (l *CallRateLimiter) Allow(callee domain.UserID) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.window)
	if now.Sub(l.lastSweep) >= l.window {
		l.sweep(cutoff)
		l.lastSweep = now
	}

	recent := expire(l.attempts[callee], cutoff)
	if len(recent) >= l.limit {
		l.keep(callee, recent)
		return false
	}
	l.attempts[callee] = append(recent, now)
	return true
}

func (l *CallRateLimiter) keep(callee domain.UserID, recent []time.Time) {
	if len(recent) == 0 {
		delete(l.attempts, callee)
		return
	}
	l.attempts[callee] = recent
}

func (l *CallRateLimiter) sweep(cutoff time.Time) {
	for callee, ts := range l.attempts {
		l.keep(callee, expire(ts, cutoff))
	}
}

// expire drops attempts at or before cutoff. ts is in ascending order.
func expire(ts []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(ts) && !ts[i].After(cutoff) {
		i++
	}
	return ts[i:]
}
