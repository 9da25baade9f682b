package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"starfolio/navigator/internal/input"
	"starfolio/navigator/internal/logging"
	"starfolio/navigator/internal/networking"
	"starfolio/navigator/internal/replay"
	"starfolio/navigator/internal/simulation"
)

type stubReadiness struct {
	pilots int
	limit  int
	uptime time.Duration
	err    error
}

func (s *stubReadiness) SnapshotPilotCounts() (int, int) { return s.pilots, s.limit }
func (s *stubReadiness) StartupError() error             { return s.err }
func (s *stubReadiness) Uptime() time.Duration           { return s.uptime }

type stubLimiter struct {
	remaining int
	keys      []string
}

func (s *stubLimiter) Reserve(key string) (bool, time.Duration) {
	s.keys = append(s.keys, key)
	if s.remaining <= 0 {
		return false, 1500 * time.Millisecond
	}
	s.remaining--
	return true, 0
}

func TestLivenessHandlerReturnsJSON(t *testing.T) {
	fixed := time.Date(2024, time.January, 2, 15, 4, 5, 0, time.UTC)
	handlers := NewHandlerSet(Options{Logger: logging.NewTestLogger(), TimeSource: func() time.Time { return fixed }})
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/livez", nil)

	handlers.LivenessHandler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var payload struct {
		Status    string `json:"status"`
		Timestamp string `json:"timestamp"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Status != "alive" {
		t.Fatalf("unexpected status %q", payload.Status)
	}
	if payload.Timestamp != fixed.Format(time.RFC3339Nano) {
		t.Fatalf("unexpected timestamp %q", payload.Timestamp)
	}
}

type readinessPayload struct {
	Status        string  `json:"status"`
	Message       string  `json:"message"`
	UptimeSeconds float64 `json:"uptime_seconds"`
	Pilots        int     `json:"pilots"`
	PilotLimit    int     `json:"pilot_limit"`
}

func readiness(t *testing.T, provider ReadinessProvider) (int, readinessPayload) {
	t.Helper()
	handlers := NewHandlerSet(Options{Logger: logging.NewTestLogger(), Readiness: provider})
	rr := httptest.NewRecorder()
	handlers.ReadinessHandler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	var payload readinessPayload
	if err := json.NewDecoder(rr.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return rr.Code, payload
}

func TestReadinessHandlerUnavailable(t *testing.T) {
	provider := &stubReadiness{pilots: 3, limit: 10, uptime: 45 * time.Second, err: errors.New("boom")}
	code, payload := readiness(t, provider)
	if code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", code)
	}
	if payload.Status != "error" || payload.Message != "boom" {
		t.Fatalf("unexpected payload: %+v", payload)
	}
	if payload.Pilots != 3 || payload.PilotLimit != 10 {
		t.Fatalf("unexpected pilot counts: %+v", payload)
	}
	if payload.UptimeSeconds != provider.uptime.Seconds() {
		t.Fatalf("unexpected uptime: got %f want %f", payload.UptimeSeconds, provider.uptime.Seconds())
	}
}

func TestReadinessHandlerReportsFull(t *testing.T) {
	code, payload := readiness(t, &stubReadiness{pilots: 2, limit: 2})
	if code != http.StatusServiceUnavailable || payload.Status != "full" {
		t.Fatalf("expected full status, got %d %+v", code, payload)
	}
	code, payload = readiness(t, &stubReadiness{pilots: 5})
	if code != http.StatusOK || payload.Status != "ok" {
		t.Fatalf("expected unlimited host to stay ready, got %d %+v", code, payload)
	}
}

func TestMetricsHandlerOutputsPrometheusFormat(t *testing.T) {
	frames := networking.NewFrameMetrics()
	frames.ObserveDelivered("p1", 120)
	frames.ObserveThrottled()

	gate := input.NewGate(input.GateConfig{})
	gate.Admit(input.Sample{PilotID: "p1"})

	ticks := simulation.NewTickMonitor("ws")
	ticks.Observe(2 * time.Millisecond)
	ticks.ObserveSteps(3, true)

	handlers := NewHandlerSet(Options{
		Logger:     logging.NewTestLogger(),
		Readiness:  &stubReadiness{pilots: 2, limit: 8, uptime: 90 * time.Second},
		Frames:     frames,
		Gate:       gate,
		Ticks:      map[string]*simulation.TickMonitor{"ws": ticks},
		QueueDrops: func() uint64 { return 4 },
		Storage:    func() replay.StorageStats { return replay.StorageStats{Recordings: 3, Bytes: 2048} },
	})

	rr := httptest.NewRecorder()
	handlers.MetricsHandler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if got := rr.Header().Get("Content-Type"); got != "text/plain; version=0.0.4" {
		t.Fatalf("unexpected content type %q", got)
	}
	body := rr.Body.String()
	for _, substr := range []string{
		"navigator_uptime_seconds 90",
		"navigator_pilots 2",
		"navigator_pilot_limit 8",
		"navigator_frames_delivered_total 1",
		"navigator_frames_throttled_total 1",
		`navigator_frame_bytes_per_pilot{pilot="p1"} 120`,
		`navigator_joystick_dropped_total{pilot="p1",reason="sequence"} 1`,
		`navigator_tick_duration_max_ms{transport="ws"} 2.000`,
		`navigator_tick_steps_total{transport="ws"} 3`,
		`navigator_tick_catchup_capped_total{transport="ws"} 1`,
		"navigator_control_queue_dropped_total 4",
		"navigator_recordings 3",
		"navigator_recording_bytes 2048",
	} {
		if !strings.Contains(body, substr) {
			t.Fatalf("metrics missing %q:\n%s", substr, body)
		}
	}
}

func TestRecordingsHandlerAuthAndRateLimits(t *testing.T) {
	calls := 0
	lister := RecordingListerFunc(func(context.Context) (any, error) {
		calls++
		return []string{"alpha"}, nil
	})
	limiter := &stubLimiter{remaining: 1}
	handlers := NewHandlerSet(Options{
		Logger:      logging.NewTestLogger(),
		Recordings:  lister,
		AdminToken:  "topsecret",
		RateLimiter: limiter,
	})

	makeRequest := func(token string) *httptest.ResponseRecorder {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/recordings", nil)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		handlers.RecordingsHandler().ServeHTTP(rr, req)
		return rr
	}

	if resp := makeRequest(""); resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected unauthorized for missing token, got %d", resp.Code)
	}

	resp := makeRequest("topsecret")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for authorised request, got %d", resp.Code)
	}
	var names []string
	if err := json.NewDecoder(resp.Body).Decode(&names); err != nil || len(names) != 1 {
		t.Fatalf("unexpected body %v (%v)", names, err)
	}
	if calls != 1 {
		t.Fatalf("expected lister invoked once, got %d", calls)
	}

	resp = makeRequest("topsecret")
	if resp.Code != http.StatusTooManyRequests {
		t.Fatalf("expected rate limit, got %d", resp.Code)
	}
	if resp.Header().Get("Retry-After") != "2" {
		t.Fatalf("expected rounded-up retry hint, got %q", resp.Header().Get("Retry-After"))
	}
	//1.- The limiter is keyed by the client host without its port.
	if len(limiter.keys) != 2 || limiter.keys[0] != "192.0.2.1" {
		t.Fatalf("unexpected limiter keys %v", limiter.keys)
	}
}

func TestRecordingsHandlerDisabledWithoutAdminToken(t *testing.T) {
	handlers := NewHandlerSet(Options{Logger: logging.NewTestLogger()})
	rr := httptest.NewRecorder()
	handlers.RecordingsHandler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/recordings", nil))
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected forbidden, got %d", rr.Code)
	}
}
