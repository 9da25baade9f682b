package main

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	configpkg "starfolio/navigator/internal/config"
	"starfolio/navigator/internal/gameplay"
	httpapi "starfolio/navigator/internal/http"
	"starfolio/navigator/internal/input"
	"starfolio/navigator/internal/logging"
	"starfolio/navigator/internal/networking"
	"starfolio/navigator/internal/orbit"
	"starfolio/navigator/internal/pilot"
	"starfolio/navigator/internal/proximity"
	"starfolio/navigator/internal/replay"
	"starfolio/navigator/internal/simulation"
	"starfolio/navigator/internal/wire"
)

// admissionKey is the single bucket every new session draws from.
const admissionKey = "sessions"

var (
	errHostFull       = errors.New("pilot limit reached")
	errAdmissionBurst = errors.New("too many new sessions, retry shortly")
	errSessionActive  = errors.New("pilot session already active")
)

// Host admits pilots and builds one runtime per connection on top of the shared
// registry and metrics.
type Host struct {
	cfg      *configpkg.Config
	registry *orbit.Registry
	tuning   gameplay.NavigationTuning
	tieBreak proximity.TieBreak
	logger   *logging.Logger
	now      func() time.Time
	started  time.Time

	gate      *input.Gate
	bandwidth *networking.BandwidthRegulator
	frames    *networking.FrameMetrics
	ticks     map[string]*simulation.TickMonitor
	admission *httpapi.SlidingWindowLimiter

	mu           sync.Mutex
	active       map[string]*pilot.Runtime
	retiredDrops uint64
	minted       uint64
	startupErr   error
}

// HostOption customises host construction.
type HostOption func(*Host)

// WithHostClock overrides the wall clock (used in tests).
func WithHostClock(now func() time.Time) HostOption {
	return func(h *Host) {
		if now != nil {
			h.now = now
		}
	}
}

// WithHostLogger attaches a structured logger.
func WithHostLogger(logger *logging.Logger) HostOption {
	return func(h *Host) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// NewHost wires the shared infrastructure every session reports into.
func NewHost(cfg *configpkg.Config, registry *orbit.Registry, tuning gameplay.NavigationTuning, opts ...HostOption) *Host {
	h := &Host{
		cfg:      cfg,
		registry: registry,
		tuning:   tuning,
		logger:   logging.L(),
		now:      time.Now,
		ticks:    make(map[string]*simulation.TickMonitor),
		active:   make(map[string]*pilot.Runtime),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	h.started = h.now()

	tieBreak, ok := proximity.ParseTieBreak(cfg.Simulation.TieBreak)
	if !ok {
		h.startupErr = fmt.Errorf("unknown tie break %q", cfg.Simulation.TieBreak)
	}
	h.tieBreak = tieBreak
	h.tuning.Warp.AngleSpread = cfg.Simulation.WarpSpread

	h.gate = input.NewGate(input.GateConfig{MaxAge: cfg.Gate.MaxAge, MinInterval: cfg.Gate.MinInterval})
	h.bandwidth = networking.NewBandwidthRegulator(float64(cfg.PilotBandwidth), h.now)
	h.frames = networking.NewFrameMetrics()
	h.admission = httpapi.NewSlidingWindowLimiter(cfg.SessionWindow, cfg.SessionBurst, h.now)
	for _, transport := range []string{"ws", "grpc"} {
		h.ticks[transport] = simulation.NewTickMonitor(transport)
	}
	return h
}

// NewRuntime admits a pilot and builds its runtime. An empty id mints one.
func (h *Host) NewRuntime(pilotID, transport string, format wire.Format) (*pilot.Runtime, error) {
	h.mu.Lock()
	if h.cfg.MaxPilots > 0 && len(h.active) >= h.cfg.MaxPilots {
		h.mu.Unlock()
		return nil, errHostFull
	}
	if pilotID == "" {
		h.minted++
		pilotID = fmt.Sprintf("pilot-%d-%d", h.started.Unix(), h.minted)
	}
	if _, exists := h.active[pilotID]; exists {
		h.mu.Unlock()
		return nil, errSessionActive
	}
	// Refused duplicates must not spend the burst.
	if !h.admission.Allow(admissionKey) {
		h.mu.Unlock()
		return nil, errAdmissionBurst
	}
	// Reserve the id so a concurrent connect with the same id is refused.
	h.active[pilotID] = nil
	h.mu.Unlock()

	seed := h.cfg.Simulation.Seed
	if seed == 0 {
		seed = rand.Uint64() | 1
	}
	logger := h.logger.With(logging.String("pilot_id", pilotID))

	opts := pilot.Options{
		ID:         pilotID,
		Transport:  transport,
		Registry:   h.registry,
		Format:     format,
		Step:       h.cfg.Simulation.Step(),
		MaxCatchUp: h.cfg.Simulation.MaxCatchUp,
		FrameEvery: h.cfg.Simulation.FrameEvery,
		TieBreak:   h.tieBreak,
		Tuning:     &h.tuning,
		Seed:       seed,
		Gate:       h.gate,
		Bandwidth:  h.bandwidth,
		Frames:     h.frames,
		Monitor:    h.ticks[transport],
		Logger:     logger,
		OnClose:    h.release,
	}
	if recorder := h.openRecorder(pilotID, seed, format, logger); recorder != nil {
		opts.Recorder = recorder
	}

	runtime, err := pilot.New(opts)
	if err != nil {
		h.mu.Lock()
		delete(h.active, pilotID)
		h.mu.Unlock()
		if opts.Recorder != nil {
			_ = opts.Recorder.Close()
		}
		return nil, err
	}

	h.mu.Lock()
	h.active[pilotID] = runtime
	h.mu.Unlock()
	return runtime, nil
}

// GRPCFactory adapts NewRuntime for the streaming service and maps refusals to status codes.
func (h *Host) GRPCFactory(pilotID string, format wire.Format) (*pilot.Runtime, error) {
	runtime, err := h.NewRuntime(pilotID, "grpc", format)
	switch {
	case errors.Is(err, errSessionActive):
		return nil, status.Error(codes.AlreadyExists, err.Error())
	case err != nil:
		return nil, status.Error(codes.ResourceExhausted, err.Error())
	}
	return runtime, nil
}

func (h *Host) openRecorder(pilotID string, seed uint64, format wire.Format, logger *logging.Logger) pilot.Recorder {
	if h.cfg.Recording.Dir == "" {
		return nil
	}
	writer, _, err := replay.NewWriter(h.cfg.Recording.Dir, pilotID, format.Label(), h.now)
	if err != nil {
		logger.Warn("flight recording disabled", logging.Error(err))
		return nil
	}
	phases := make(map[string]float64, h.registry.Len())
	for _, body := range h.registry.Bodies() {
		phases[body.ID] = body.Phase
	}
	writer.SetHeaderMetadata(seed, h.cfg.Simulation.Step(), h.tuning.Flatten(), phases)
	return writer
}

func (h *Host) release(runtime *pilot.Runtime) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if current, ok := h.active[runtime.ID()]; ok && current == runtime {
		delete(h.active, runtime.ID())
	}
	h.retiredDrops += runtime.Dropped()
}

// QueueDrops totals control messages discarded for full queues, live and retired.
func (h *Host) QueueDrops() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	total := h.retiredDrops
	for _, runtime := range h.active {
		if runtime != nil {
			total += runtime.Dropped()
		}
	}
	return total
}

// SnapshotPilotCounts implements httpapi.ReadinessProvider.
func (h *Host) SnapshotPilotCounts() (active, limit int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.active), h.cfg.MaxPilots
}

// StartupError implements httpapi.ReadinessProvider.
func (h *Host) StartupError() error {
	return h.startupErr
}

// Uptime implements httpapi.ReadinessProvider.
func (h *Host) Uptime() time.Duration {
	return h.now().Sub(h.started)
}
