// Package timesync lets clients align their sent_at_ms stamps with the host clock, which
// the joystick gate uses to judge staleness.
package timesync

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"starfolio/navigator/internal/logging"
)

// Sample is one clock reading. OffsetMs is what a client adds to its own clock to get
// host time; it is only set when the request carried the client's clock.
type Sample struct {
	ServerMs int64 `json:"server_ms"`
	ClientMs int64 `json:"client_ms,omitempty"`
	OffsetMs int64 `json:"offset_ms"`
}

// Option customises the service.
type Option func(*Service)

// WithClock overrides the host clock (used in tests).
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger attaches a structured logger.
func WithLogger(logger *logging.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Service answers clock probes and warns about drift large enough to trip the gate.
type Service struct {
	now       func() time.Time
	logger    *logging.Logger
	tolerance time.Duration
}

// NewService builds a service that warns when a client's offset exceeds tolerance.
func NewService(tolerance time.Duration, opts ...Option) *Service {
	s := &Service{now: time.Now, logger: logging.L(), tolerance: tolerance}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Sample reads the host clock and, when clientMs is positive, the offset to it.
func (s *Service) Sample(clientID string, clientMs int64) Sample {
	sample := Sample{ServerMs: s.now().UnixMilli()}
	if clientMs <= 0 {
		return sample
	}
	sample.ClientMs = clientMs
	sample.OffsetMs = sample.ServerMs - clientMs
	s.logDrift(clientID, sample.OffsetMs)
	return sample
}

func (s *Service) logDrift(clientID string, offsetMs int64) {
	if s.tolerance <= 0 {
		return
	}
	drift := time.Duration(offsetMs) * time.Millisecond
	if drift < 0 {
		drift = -drift
	}
	if drift > s.tolerance {
		s.logger.Warn("client clock drift exceeds joystick tolerance",
			logging.String("client", clientID),
			logging.Int64("offset_ms", offsetMs),
			logging.Duration("tolerance", s.tolerance),
		)
	}
}

// Handler serves GET /api/time?client_ms=<ms>&client=<id>.
func (s *Service) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		query := r.URL.Query()
		var clientMs int64
		if raw := strings.TrimSpace(query.Get("client_ms")); raw != "" {
			value, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				http.Error(w, "client_ms must be an integer", http.StatusBadRequest)
				return
			}
			clientMs = value
		}
		clientID := strings.TrimSpace(query.Get("client"))
		if clientID == "" {
			clientID = r.RemoteAddr
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-store")
		_ = json.NewEncoder(w).Encode(s.Sample(clientID, clientMs))
	}
}
