// Package httpapi serves the operational HTTP surface: liveness, readiness, Prometheus
// text metrics, and the admin recording index.
package httpapi

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"starfolio/navigator/internal/input"
	"starfolio/navigator/internal/logging"
	"starfolio/navigator/internal/networking"
	"starfolio/navigator/internal/replay"
	"starfolio/navigator/internal/simulation"
)

// ReadinessProvider exposes host state required for readiness checks.
type ReadinessProvider interface {
	SnapshotPilotCounts() (active, limit int)
	StartupError() error
	Uptime() time.Duration
}

// RecordingLister returns the index of completed flight recordings.
type RecordingLister interface {
	ListRecordings(ctx context.Context) (any, error)
}

// RecordingListerFunc adapts a function into a RecordingLister.
type RecordingListerFunc func(ctx context.Context) (any, error)

// ListRecordings implements RecordingLister.
func (f RecordingListerFunc) ListRecordings(ctx context.Context) (any, error) { return f(ctx) }

// RateLimiter gates sensitive operations per client. A denial carries the wait until
// the client may retry.
type RateLimiter interface {
	Reserve(key string) (bool, time.Duration)
}

// Options configures the HandlerSet.
type Options struct {
	Logger      *logging.Logger
	Readiness   ReadinessProvider
	Frames      *networking.FrameMetrics
	Bandwidth   *networking.BandwidthRegulator
	Gate        *input.Gate
	Ticks       map[string]*simulation.TickMonitor
	QueueDrops  func() uint64
	Storage     func() replay.StorageStats
	Recordings  RecordingLister
	AdminToken  string
	RateLimiter RateLimiter
	TimeSource  func() time.Time
}

// HandlerSet bundles the navigator operational handlers.
type HandlerSet struct {
	logger      *logging.Logger
	readiness   ReadinessProvider
	frames      *networking.FrameMetrics
	bandwidth   *networking.BandwidthRegulator
	gate        *input.Gate
	ticks       map[string]*simulation.TickMonitor
	queueDrops  func() uint64
	storage     func() replay.StorageStats
	recordings  RecordingLister
	adminToken  string
	rateLimiter RateLimiter
	now         func() time.Time
}

// NewHandlerSet constructs a HandlerSet using the provided options.
func NewHandlerSet(opts Options) *HandlerSet {
	logger := opts.Logger
	if logger == nil {
		logger = logging.L()
	}
	now := opts.TimeSource
	if now == nil {
		now = time.Now
	}
	return &HandlerSet{
		logger:      logger,
		readiness:   opts.Readiness,
		frames:      opts.Frames,
		bandwidth:   opts.Bandwidth,
		gate:        opts.Gate,
		ticks:       opts.Ticks,
		queueDrops:  opts.QueueDrops,
		storage:     opts.Storage,
		recordings:  opts.Recordings,
		adminToken:  strings.TrimSpace(opts.AdminToken),
		rateLimiter: opts.RateLimiter,
		now:         now,
	}
}

// Register attaches all handlers to the provided mux.
func (h *HandlerSet) Register(mux *http.ServeMux) {
	if mux == nil {
		return
	}
	mux.HandleFunc("/livez", h.LivenessHandler())
	mux.HandleFunc("/readyz", h.ReadinessHandler())
	mux.HandleFunc("/metrics", h.MetricsHandler())
	mux.HandleFunc("/api/recordings", h.RecordingsHandler())
}

// LivenessHandler reports that the HTTP server is reachable.
func (h *HandlerSet) LivenessHandler() http.HandlerFunc {
	type response struct {
		Status    string `json:"status"`
		Timestamp string `json:"timestamp"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, response{
			Status:    "alive",
			Timestamp: h.now().UTC().Format(time.RFC3339Nano),
		})
	}
}

// ReadinessHandler reports whether the host accepts pilots, with pilot counts and uptime.
func (h *HandlerSet) ReadinessHandler() http.HandlerFunc {
	type response struct {
		Status        string  `json:"status"`
		Message       string  `json:"message,omitempty"`
		UptimeSeconds float64 `json:"uptime_seconds"`
		Pilots        int     `json:"pilots"`
		PilotLimit    int     `json:"pilot_limit"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		status := http.StatusOK
		resp := response{Status: "ok"}
		if h.readiness != nil {
			resp.Pilots, resp.PilotLimit = h.readiness.SnapshotPilotCounts()
			resp.UptimeSeconds = h.readiness.Uptime().Seconds()
			if err := h.readiness.StartupError(); err != nil {
				status = http.StatusServiceUnavailable
				resp.Status = "error"
				resp.Message = err.Error()
			} else if resp.PilotLimit > 0 && resp.Pilots >= resp.PilotLimit {
				status = http.StatusServiceUnavailable
				resp.Status = "full"
			}
		}
		writeJSON(w, status, resp)
	}
}

// MetricsHandler emits Prometheus compatible text metrics.
func (h *HandlerSet) MetricsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		if h.readiness != nil {
			pilots, limit := h.readiness.SnapshotPilotCounts()
			writeMetric(w, "navigator_uptime_seconds", "gauge", "Host uptime in seconds.")
			fmt.Fprintf(w, "navigator_uptime_seconds %.0f\n", h.readiness.Uptime().Seconds())
			writeMetric(w, "navigator_pilots", "gauge", "Currently connected pilots.")
			fmt.Fprintf(w, "navigator_pilots %d\n", pilots)
			writeMetric(w, "navigator_pilot_limit", "gauge", "Configured pilot cap, zero when unlimited.")
			fmt.Fprintf(w, "navigator_pilot_limit %d\n", limit)
		}
		h.writeFrameMetrics(w)
		h.writeBandwidthMetrics(w)
		h.writeGateMetrics(w)
		h.writeTickMetrics(w)
		if h.queueDrops != nil {
			writeMetric(w, "navigator_control_queue_dropped_total", "counter", "Control messages dropped because a pilot queue was full.")
			fmt.Fprintf(w, "navigator_control_queue_dropped_total %d\n", h.queueDrops())
		}
		if h.storage != nil {
			stats := h.storage()
			writeMetric(w, "navigator_recordings", "gauge", "Flight recordings retained on disk.")
			fmt.Fprintf(w, "navigator_recordings %d\n", stats.Recordings)
			writeMetric(w, "navigator_recordings_live", "gauge", "Recordings still being written.")
			fmt.Fprintf(w, "navigator_recordings_live %d\n", stats.Live)
			writeMetric(w, "navigator_recording_bytes", "gauge", "Disk footprint of retained recordings in bytes.")
			fmt.Fprintf(w, "navigator_recording_bytes %d\n", stats.Bytes)
			writeMetric(w, "navigator_recordings_removed", "gauge", "Recordings removed by the last retention sweep.")
			fmt.Fprintf(w, "navigator_recordings_removed %d\n", stats.Removed)
		}
	}
}

func (h *HandlerSet) writeFrameMetrics(w io.Writer) {
	if h.frames == nil {
		return
	}
	delivered, throttled, failed := h.frames.Totals()
	writeMetric(w, "navigator_frames_delivered_total", "counter", "Frames written to pilots.")
	fmt.Fprintf(w, "navigator_frames_delivered_total %d\n", delivered)
	writeMetric(w, "navigator_frames_throttled_total", "counter", "Ordinary frames skipped by the bandwidth budget.")
	fmt.Fprintf(w, "navigator_frames_throttled_total %d\n", throttled)
	writeMetric(w, "navigator_frames_failed_total", "counter", "Frames that failed to encode or send.")
	fmt.Fprintf(w, "navigator_frames_failed_total %d\n", failed)

	bytes := h.frames.BytesPerPilot()
	if len(bytes) == 0 {
		return
	}
	writeMetric(w, "navigator_frame_bytes_per_pilot", "gauge", "Last encoded frame size per pilot in bytes.")
	for _, pilotID := range sortedKeys(bytes) {
		fmt.Fprintf(w, "navigator_frame_bytes_per_pilot{pilot=%q} %d\n", pilotID, bytes[pilotID])
	}
}

func (h *HandlerSet) writeBandwidthMetrics(w io.Writer) {
	usage := h.bandwidth.SnapshotUsage()
	if len(usage) == 0 {
		return
	}
	pilots := sortedKeys(usage)
	writeMetric(w, "navigator_bandwidth_bytes_per_second", "gauge", "Observed outbound bandwidth per pilot in bytes per second.")
	for _, pilotID := range pilots {
		fmt.Fprintf(w, "navigator_bandwidth_bytes_per_second{pilot=%q} %.2f\n", pilotID, usage[pilotID].BytesPerSecond)
	}
	writeMetric(w, "navigator_bandwidth_available_bytes", "gauge", "Remaining bandwidth tokens per pilot.")
	for _, pilotID := range pilots {
		fmt.Fprintf(w, "navigator_bandwidth_available_bytes{pilot=%q} %.2f\n", pilotID, usage[pilotID].AvailableBytes)
	}
	writeMetric(w, "navigator_bandwidth_skipped_total", "counter", "Routine frames skipped per pilot.")
	for _, pilotID := range pilots {
		fmt.Fprintf(w, "navigator_bandwidth_skipped_total{pilot=%q} %d\n", pilotID, usage[pilotID].Skipped)
	}
	writeMetric(w, "navigator_bandwidth_essential_bytes_total", "counter", "Bytes of frames sent regardless of budget per pilot.")
	for _, pilotID := range pilots {
		fmt.Fprintf(w, "navigator_bandwidth_essential_bytes_total{pilot=%q} %d\n", pilotID, usage[pilotID].EssentialBytes)
	}
}

func (h *HandlerSet) writeGateMetrics(w io.Writer) {
	drops := h.gate.Metrics()
	if len(drops) == 0 {
		return
	}
	writeMetric(w, "navigator_joystick_dropped_total", "counter", "Joystick samples rejected by the input gate.")
	for _, pilotID := range sortedKeys(drops) {
		counters := drops[pilotID]
		fmt.Fprintf(w, "navigator_joystick_dropped_total{pilot=%q,reason=%q} %d\n", pilotID, input.DropReasonSequence.String(), counters.Sequence)
		fmt.Fprintf(w, "navigator_joystick_dropped_total{pilot=%q,reason=%q} %d\n", pilotID, input.DropReasonStale.String(), counters.Stale)
		fmt.Fprintf(w, "navigator_joystick_dropped_total{pilot=%q,reason=%q} %d\n", pilotID, input.DropReasonRateLimited.String(), counters.RateLimited)
	}
}

func (h *HandlerSet) writeTickMetrics(w io.Writer) {
	if len(h.ticks) == 0 {
		return
	}
	transports := sortedKeys(h.ticks)
	snapshots := make(map[string]simulation.TickMetricsSnapshot, len(transports))
	for _, transport := range transports {
		snapshots[transport] = h.ticks[transport].Snapshot()
	}
	writeMetric(w, "navigator_tick_duration_avg_ms", "gauge", "Average wall time of one host tick.")
	for _, transport := range transports {
		fmt.Fprintf(w, "navigator_tick_duration_avg_ms{transport=%q} %.3f\n", transport, durationMs(snapshots[transport].Average))
	}
	writeMetric(w, "navigator_tick_duration_max_ms", "gauge", "Slowest observed host tick.")
	for _, transport := range transports {
		fmt.Fprintf(w, "navigator_tick_duration_max_ms{transport=%q} %.3f\n", transport, durationMs(snapshots[transport].Max))
	}
	writeMetric(w, "navigator_tick_steps_total", "counter", "Fixed simulation steps executed.")
	for _, transport := range transports {
		fmt.Fprintf(w, "navigator_tick_steps_total{transport=%q} %d\n", transport, snapshots[transport].Steps)
	}
	writeMetric(w, "navigator_tick_catchup_capped_total", "counter", "Ticks whose backlog exceeded the catch-up cap and was dropped.")
	for _, transport := range transports {
		fmt.Fprintf(w, "navigator_tick_catchup_capped_total{transport=%q} %d\n", transport, snapshots[transport].Capped)
	}
}

// RecordingsHandler authorises and serves the index of completed recordings.
func (h *HandlerSet) RecordingsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reqLogger := h.logger.With(
			logging.String("handler", "recordings"),
			logging.String("remote_addr", r.RemoteAddr),
		)
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if h.adminToken == "" {
			reqLogger.Warn("recordings denied: admin auth disabled")
			http.Error(w, "admin authentication not configured", http.StatusForbidden)
			return
		}
		if !h.authorise(r) {
			reqLogger.Warn("recordings denied: unauthorized request")
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		if h.rateLimiter != nil {
			if ok, wait := h.rateLimiter.Reserve(clientKey(r)); !ok {
				reqLogger.Warn("recordings denied: rate limit exceeded", logging.Duration("retry_after", wait))
				w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
				http.Error(w, "too many requests", http.StatusTooManyRequests)
				return
			}
		}
		if h.recordings == nil {
			http.Error(w, "recording is disabled", http.StatusServiceUnavailable)
			return
		}
		index, err := h.recordings.ListRecordings(r.Context())
		if err != nil {
			reqLogger.Error("listing recordings failed", logging.Error(err))
			http.Error(w, "failed to list recordings", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, index)
	}
}

func (h *HandlerSet) authorise(r *http.Request) bool {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	var token string
	if len(header) > 7 && strings.EqualFold(header[:7], "Bearer ") {
		token = strings.TrimSpace(header[7:])
	} else if header != "" {
		token = header
	}
	if token == "" {
		token = strings.TrimSpace(r.Header.Get("X-Admin-Token"))
	}
	if token == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(h.adminToken)) == 1
}

// clientKey identifies the caller by remote host, without the port.
func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeMetric(w io.Writer, name, kind, help string) {
	fmt.Fprintf(w, "# HELP %s %s\n", name, help)
	fmt.Fprintf(w, "# TYPE %s %s\n", name, kind)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func durationMs(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	_ = json.NewEncoder(w).Encode(payload)
}
