package simulation

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "starfolio/navigator/internal/simulation"

// TickMetricsSnapshot summarises observed tick durations and step accounting.
type TickMetricsSnapshot struct {
	Samples int
	Average time.Duration
	Max     time.Duration
	Last    time.Duration
	Steps   uint64
	Capped  uint64
}

// AverageFPS derives the ticks-per-second equivalent of the sampled tick duration.
func (s TickMetricsSnapshot) AverageFPS() float64 {
	if s.Average <= 0 {
		return 0
	}
	return float64(time.Second) / float64(s.Average)
}

// TickMonitor accumulates timing statistics for every pilot loop in the process and
// mirrors them to the global OpenTelemetry meter, which is a no-op unless configured.
type TickMonitor struct {
	mu      sync.Mutex
	samples int
	total   time.Duration
	max     time.Duration
	last    time.Duration
	steps   uint64
	capped  uint64

	duration metric.Float64Histogram
	stepped  metric.Int64Counter
	catchUp  metric.Int64Counter
	attrs    metric.MeasurementOption
}

// NewTickMonitor constructs an empty monitor. Instrument creation failures leave the
// in-process statistics working and skip the exported ones.
func NewTickMonitor(transport string) *TickMonitor {
	m := &TickMonitor{attrs: metric.WithAttributes(attribute.String("transport", transport))}
	meter := otel.Meter(instrumentationName)
	if histogram, err := meter.Float64Histogram(
		"navigator.tick.duration",
		metric.WithDescription("Wall time spent inside one host tick"),
		metric.WithUnit("ms"),
	); err == nil {
		m.duration = histogram
	}
	if counter, err := meter.Int64Counter(
		"navigator.tick.steps",
		metric.WithDescription("Fixed simulation steps executed"),
	); err == nil {
		m.stepped = counter
	}
	if counter, err := meter.Int64Counter(
		"navigator.tick.catchup_capped",
		metric.WithDescription("Ticks whose backlog exceeded the catch-up cap"),
	); err == nil {
		m.catchUp = counter
	}
	return m
}

// Observe records the duration of a completed tick.
func (m *TickMonitor) Observe(duration time.Duration) {
	if m == nil || duration <= 0 {
		return
	}
	m.mu.Lock()
	//1.- Accumulate the sample count and aggregate duration for average calculations.
	m.samples++
	m.total += duration
	//2.- Track the worst-case tick so operators can spot spikes quickly.
	if duration > m.max {
		m.max = duration
	}
	m.last = duration
	m.mu.Unlock()

	if m.duration != nil {
		m.duration.Record(context.Background(), float64(duration)/float64(time.Millisecond), m.attrs)
	}
}

// ObserveSteps records how many fixed steps a tick ran and whether the cap was hit.
func (m *TickMonitor) ObserveSteps(steps int, capped bool) {
	if m == nil || steps < 0 {
		return
	}
	m.mu.Lock()
	m.steps += uint64(steps)
	if capped {
		m.capped++
	}
	m.mu.Unlock()

	if m.stepped != nil && steps > 0 {
		m.stepped.Add(context.Background(), int64(steps), m.attrs)
	}
	if m.catchUp != nil && capped {
		m.catchUp.Add(context.Background(), 1, m.attrs)
	}
}

// Snapshot returns a copy of the aggregated tick statistics.
func (m *TickMonitor) Snapshot() TickMetricsSnapshot {
	if m == nil {
		return TickMetricsSnapshot{}
	}
	m.mu.Lock()
	snapshot := TickMetricsSnapshot{
		Samples: m.samples,
		Max:     m.max,
		Last:    m.last,
		Steps:   m.steps,
		Capped:  m.capped,
	}
	if m.samples > 0 {
		snapshot.Average = m.total / time.Duration(m.samples)
	}
	m.mu.Unlock()
	return snapshot
}

// Reset clears the accumulated statistics.
func (m *TickMonitor) Reset() {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.samples = 0
	m.total = 0
	m.max = 0
	m.last = 0
	m.steps = 0
	m.capped = 0
	m.mu.Unlock()
}
