package input

import (
	"sync"
	"time"
)

// GateConfig bounds how old and how frequent remote joystick samples may be. Zero
// disables a check.
type GateConfig struct {
	MaxAge      time.Duration
	MinInterval time.Duration
}

// DropReason says why a sample was refused.
type DropReason string

const (
	DropReasonNone        DropReason = ""
	DropReasonSequence    DropReason = "sequence"
	DropReasonStale       DropReason = "stale"
	DropReasonRateLimited DropReason = "rate_limit"
)

// String returns the textual representation of the drop reason.
func (r DropReason) String() string { return string(r) }

// Sample is one remote joystick update with its transport metadata.
type Sample struct {
	PilotID  string
	Sequence uint64
	SentAt   time.Time
	Stick    Joystick
}

// Verdict is the gate's answer for one sample. Delay is the capture-to-arrival time
// when the sample carried a send time.
type Verdict struct {
	Accepted bool
	Reason   DropReason
	Delay    time.Duration
}

// DropCounters aggregates per-reason drop counts for one pilot.
type DropCounters struct {
	Sequence    uint64 `json:"sequence"`
	Stale       uint64 `json:"stale"`
	RateLimited uint64 `json:"rate_limited"`
}

// Total sums every reason.
func (c DropCounters) Total() uint64 {
	return c.Sequence + c.Stale + c.RateLimited
}

func (c *DropCounters) count(reason DropReason) {
	switch reason {
	case DropReasonSequence:
		c.Sequence++
	case DropReasonStale:
		c.Stale++
	case DropReasonRateLimited:
		c.RateLimited++
	}
}

type stickHistory struct {
	sequence uint64
	accepted time.Time
	drops    DropCounters
}

// Gate filters joystick samples from remote pilots. The stick is latched state, so a
// refused sample is superseded by the next one. A release (inactive stick) skips the
// age and rate checks so a pilot letting go always stops the turn, but it still has to
// be newer than the last accepted sample.
type Gate struct {
	cfg   GateConfig
	clock func() time.Time

	mu     sync.Mutex
	pilots map[string]*stickHistory
}

// GateOption customises gate construction.
type GateOption func(*Gate)

// WithClock overrides the clock used for age and interval checks.
func WithClock(clock func() time.Time) GateOption {
	return func(g *Gate) {
		if clock != nil {
			g.clock = clock
		}
	}
}

// NewGate constructs a gate; negative limits are treated as zero.
func NewGate(cfg GateConfig, opts ...GateOption) *Gate {
	cfg.MaxAge = max(cfg.MaxAge, 0)
	cfg.MinInterval = max(cfg.MinInterval, 0)
	gate := &Gate{cfg: cfg, clock: time.Now, pilots: make(map[string]*stickHistory)}
	for _, opt := range opts {
		if opt != nil {
			opt(gate)
		}
	}
	return gate
}

// Admit decides whether sample may reach the pilot's session and records the outcome.
// Sequence zero is never admitted.
func (g *Gate) Admit(sample Sample) Verdict {
	verdict := Verdict{Accepted: true}
	if g == nil || sample.PilotID == "" {
		return verdict
	}
	now := g.clock()
	if !sample.SentAt.IsZero() {
		verdict.Delay = max(now.Sub(sample.SentAt), 0)
	}
	release := !sample.Stick.Active

	g.mu.Lock()
	defer g.mu.Unlock()
	history := g.pilots[sample.PilotID]
	if history == nil {
		history = &stickHistory{}
		g.pilots[sample.PilotID] = history
	}

	switch {
	case sample.Sequence == 0 || sample.Sequence <= history.sequence:
		verdict.Reason = DropReasonSequence
	case release:
	case g.cfg.MinInterval > 0 && !history.accepted.IsZero() && now.Sub(history.accepted) < g.cfg.MinInterval:
		verdict.Reason = DropReasonRateLimited
	case g.cfg.MaxAge > 0 && verdict.Delay > g.cfg.MaxAge:
		verdict.Reason = DropReasonStale
	}
	if verdict.Reason != DropReasonNone {
		verdict.Accepted = false
		history.drops.count(verdict.Reason)
		return verdict
	}
	history.sequence = sample.Sequence
	history.accepted = now
	return verdict
}

// Forget clears the history and counters of a disconnected pilot.
func (g *Gate) Forget(pilotID string) {
	if g == nil {
		return
	}
	g.mu.Lock()
	delete(g.pilots, pilotID)
	g.mu.Unlock()
}

// Metrics returns a copy of the drop counters keyed by pilot.
func (g *Gate) Metrics() map[string]DropCounters {
	if g == nil {
		return nil
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.pilots) == 0 {
		return nil
	}
	out := make(map[string]DropCounters, len(g.pilots))
	for pilotID, history := range g.pilots {
		out[pilotID] = history.drops
	}
	return out
}
