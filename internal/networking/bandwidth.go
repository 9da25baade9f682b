package networking

import (
	"math"
	"sync"
	"time"
)

// DefaultPilotBytesPerSecond caps outbound frame throughput per pilot. A JSON frame
// with the full body list is under 2 KiB, so 60 Hz fits with headroom.
const DefaultPilotBytesPerSecond = 256 * 1024.0

// Priority tells the regulator whether a frame may be skipped.
type Priority int

const (
	// Routine frames are skipped when the budget is spent; the next frame supersedes them.
	Routine Priority = iota
	// Essential frames carry state a pilot cannot miss (selection changes, warp arrival).
	// They always go out and may put the budget into debt.
	Essential
)

// BandwidthUsage is one pilot's budget as seen by the metrics endpoint.
type BandwidthUsage struct {
	PilotID         string
	AvailableBytes  float64
	BytesPerSecond  float64
	ObservedSeconds float64
	Skipped         int64
	EssentialBytes  int64
	LastRefill      time.Time
}

// budget is a token bucket whose balance may go negative, down to one second of rate.
type budget struct {
	balance   float64
	refilled  time.Time
	opened    time.Time
	sent      int64
	essential int64
	skipped   int64
}

func (b *budget) refill(now time.Time, rate float64) {
	if !now.After(b.refilled) {
		return
	}
	b.balance = math.Min(b.balance+now.Sub(b.refilled).Seconds()*rate, rate)
	b.refilled = now
}

// BandwidthRegulator keeps a byte budget per pilot. Budgets start full so the first
// frames after hello are never throttled.
type BandwidthRegulator struct {
	rate float64
	now  func() time.Time

	mu      sync.Mutex
	budgets map[string]*budget
}

// NewBandwidthRegulator enforces bytesPerSecond per pilot; a non-positive rate uses
// DefaultPilotBytesPerSecond.
func NewBandwidthRegulator(bytesPerSecond float64, clock func() time.Time) *BandwidthRegulator {
	if bytesPerSecond <= 0 {
		bytesPerSecond = DefaultPilotBytesPerSecond
	}
	if clock == nil {
		clock = time.Now
	}
	return &BandwidthRegulator{rate: bytesPerSecond, now: clock, budgets: make(map[string]*budget)}
}

// Admit reports whether a frame of size bytes may be sent now and debits it if so.
// Essential frames are always admitted.
func (r *BandwidthRegulator) Admit(pilotID string, size int, priority Priority) bool {
	if r == nil || pilotID == "" || size <= 0 {
		return true
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	b := r.budgets[pilotID]
	if b == nil {
		b = &budget{balance: r.rate, refilled: now, opened: now}
		r.budgets[pilotID] = b
	}
	b.refill(now, r.rate)

	cost := float64(size)
	switch {
	case priority == Essential:
		b.balance = math.Max(b.balance-cost, -r.rate)
		b.essential += int64(size)
	case cost > b.balance:
		b.skipped++
		return false
	default:
		b.balance -= cost
	}
	b.sent += int64(size)
	return true
}

// Forget drops the budget of a disconnected pilot.
func (r *BandwidthRegulator) Forget(pilotID string) {
	if r == nil {
		return
	}
	r.mu.Lock()
	delete(r.budgets, pilotID)
	r.mu.Unlock()
}

// SnapshotUsage reports every live budget, refilled to the current time.
func (r *BandwidthRegulator) SnapshotUsage() map[string]BandwidthUsage {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.budgets) == 0 {
		return nil
	}
	now := r.now()
	usage := make(map[string]BandwidthUsage, len(r.budgets))
	for pilotID, b := range r.budgets {
		b.refill(now, r.rate)
		observed := math.Max(now.Sub(b.opened).Seconds(), 0)
		sample := BandwidthUsage{
			PilotID:         pilotID,
			AvailableBytes:  math.Max(b.balance, 0),
			ObservedSeconds: observed,
			Skipped:         b.skipped,
			EssentialBytes:  b.essential,
			LastRefill:      b.refilled,
		}
		if observed > 0 {
			sample.BytesPerSecond = float64(b.sent) / observed
		}
		usage[pilotID] = sample
	}
	return usage
}
