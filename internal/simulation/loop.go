package simulation

import (
	"context"
	"time"
)

// TickFunc receives the wall-clock time elapsed since the previous tick. Implementations
// own their fixed-step accumulator so the loop never decides how many steps to run.
type TickFunc func(elapsed time.Duration)

// Loop drives a ticker at the configured cadence and hands elapsed time to a TickFunc.
type Loop struct {
	interval time.Duration
	tickFunc TickFunc
	monitor  *TickMonitor
	now      func() time.Time
	ticker   *time.Ticker
	done     chan struct{}
}

// LoopOption customises loop construction.
type LoopOption func(*Loop)

// WithMonitor records how long each tick takes to execute.
func WithMonitor(monitor *TickMonitor) LoopOption {
	return func(l *Loop) { l.monitor = monitor }
}

// WithNow overrides the wall clock used to measure elapsed time.
func WithNow(now func() time.Time) LoopOption {
	return func(l *Loop) {
		if now != nil {
			l.now = now
		}
	}
}

// NewLoop configures a loop that targets the provided ticks per second.
func NewLoop(targetHz float64, tick TickFunc, opts ...LoopOption) *Loop {
	if targetHz <= 0 {
		targetHz = 60
	}
	if tick == nil {
		tick = func(time.Duration) {}
	}
	interval := time.Duration(float64(time.Second) / targetHz)
	if interval <= 0 {
		interval = time.Second / 60
	}
	loop := &Loop{
		interval: interval,
		tickFunc: tick,
		now:      time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(loop)
		}
	}
	return loop
}

// Start begins ticking until the context is cancelled or Stop is invoked.
func (l *Loop) Start(ctx context.Context) {
	if l == nil || l.tickFunc == nil {
		return
	}

	l.ticker = time.NewTicker(l.interval)
	l.done = make(chan struct{})
	go func() {
		defer close(l.done)
		defer l.ticker.Stop()
		last := l.now()
		for {
			select {
			case <-ctx.Done():
				return
			case <-l.ticker.C:
				//1.- Hand over the measured gap; a stalled process reports one large delta.
				now := l.now()
				elapsed := now.Sub(last)
				last = now
				l.tickFunc(elapsed)
				//2.- Time the tick body itself for the monitor.
				l.monitor.Observe(l.now().Sub(now))
			}
		}
	}()
}

// Stop waits for the ticking goroutine to exit. Callers cancel the context first.
func (l *Loop) Stop() {
	if l == nil {
		return
	}
	if l.done != nil {
		<-l.done
		l.done = nil
	}
}

// Interval exposes the configured tick cadence.
func (l *Loop) Interval() time.Duration {
	if l == nil {
		return 0
	}
	return l.interval
}
