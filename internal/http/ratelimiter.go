package httpapi

import (
	"sync"
	"time"
)

// sweepEvery bounds how many calls pass between drops of idle keys.
const sweepEvery = 64

// SlidingWindowLimiter admits at most limit events per key within any trailing window.
// A non-positive window or limit disables it.
type SlidingWindowLimiter struct {
	window time.Duration
	limit  int
	now    func() time.Time

	mu     sync.Mutex
	events map[string][]time.Time
	calls  int
}

// NewSlidingWindowLimiter builds a limiter; a nil clock uses time.Now.
func NewSlidingWindowLimiter(window time.Duration, limit int, clock func() time.Time) *SlidingWindowLimiter {
	if clock == nil {
		clock = time.Now
	}
	return &SlidingWindowLimiter{
		window: window,
		limit:  limit,
		now:    clock,
		events: make(map[string][]time.Time),
	}
}

// Allow records an event for key if the window has room.
func (l *SlidingWindowLimiter) Allow(key string) bool {
	ok, _ := l.Reserve(key)
	return ok
}

// Reserve records an event for key if the window has room. Otherwise it returns how long
// until the oldest event in the window expires.
func (l *SlidingWindowLimiter) Reserve(key string) (bool, time.Duration) {
	if l == nil || l.limit <= 0 || l.window <= 0 {
		return true, 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.window)
	l.calls++
	if l.calls%sweepEvery == 0 {
		l.sweep(cutoff)
	}

	recent := trimBefore(l.events[key], cutoff)
	if len(recent) >= l.limit {
		l.events[key] = recent
		return false, recent[0].Sub(cutoff)
	}
	l.events[key] = append(recent, now)
	return true, 0
}

// Keys reports how many keys currently hold events.
func (l *SlidingWindowLimiter) Keys() int {
	if l == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.events)
}

func (l *SlidingWindowLimiter) sweep(cutoff time.Time) {
	for key, stamps := range l.events {
		if len(stamps) == 0 || !stamps[len(stamps)-1].After(cutoff) {
			delete(l.events, key)
		}
	}
}

// trimBefore drops the leading stamps at or before cutoff; stamps are in arrival order.
func trimBefore(stamps []time.Time, cutoff time.Time) []time.Time {
	idx := 0
	for idx < len(stamps) && !stamps[idx].After(cutoff) {
		idx++
	}
	return stamps[idx:]
}
