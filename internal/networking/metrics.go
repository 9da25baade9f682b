package networking

import (
	"sync"
)

// FrameMetrics tracks per-pilot frame sizes and delivery counters for the metrics endpoint.
type FrameMetrics struct {
	mu        sync.RWMutex
	bytes     map[string]int64
	delivered int64
	throttled int64
	failed    int64
}

// NewFrameMetrics constructs an empty metrics tracker.
func NewFrameMetrics() *FrameMetrics {
	return &FrameMetrics{bytes: make(map[string]int64)}
}

// ObserveDelivered records the encoded size of the frame just written to a pilot.
func (m *FrameMetrics) ObserveDelivered(pilotID string, payloadBytes int) {
	if m == nil {
		return
	}
	size := int64(payloadBytes)
	if size < 0 {
		size = 0
	}
	m.mu.Lock()
	if pilotID != "" {
		m.bytes[pilotID] = size
	}
	m.delivered++
	m.mu.Unlock()
}

// ObserveThrottled counts a frame skipped by the bandwidth regulator.
func (m *FrameMetrics) ObserveThrottled() {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.throttled++
	m.mu.Unlock()
}

// ObserveFailed counts a frame that could not be encoded or written.
func (m *FrameMetrics) ObserveFailed() {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.failed++
	m.mu.Unlock()
}

// ForgetPilot removes the tracked gauge for a disconnected pilot.
func (m *FrameMetrics) ForgetPilot(pilotID string) {
	if m == nil || pilotID == "" {
		return
	}
	m.mu.Lock()
	delete(m.bytes, pilotID)
	m.mu.Unlock()
}

// BytesPerPilot returns a copy of the latest encoded frame size per pilot.
func (m *FrameMetrics) BytesPerPilot() map[string]int64 {
	if m == nil {
		return nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.bytes) == 0 {
		return nil
	}
	out := make(map[string]int64, len(m.bytes))
	for pilotID, size := range m.bytes {
		out[pilotID] = size
	}
	return out
}

// Totals returns the cumulative delivered, throttled and failed frame counts.
func (m *FrameMetrics) Totals() (delivered, throttled, failed int64) {
	if m == nil {
		return 0, 0, 0
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.delivered, m.throttled, m.failed
}
