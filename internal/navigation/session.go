// Package navigation composes the flight, warp, proximity and camera components into a
// single-threaded session that advances in fixed steps and reports an Output per tick.
package navigation

import (
	"math/rand/v2"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"starfolio/navigator/internal/camera"
	"starfolio/navigator/internal/flight"
	"starfolio/navigator/internal/gameplay"
	"starfolio/navigator/internal/input"
	"starfolio/navigator/internal/logging"
	"starfolio/navigator/internal/orbit"
	"starfolio/navigator/internal/physics"
	"starfolio/navigator/internal/proximity"
	"starfolio/navigator/internal/warp"
)

const (
	// DefaultStep is the nominal step every per-step tuning constant was calibrated for.
	DefaultStep = time.Second / 60
	// DefaultMaxCatchUp bounds how many steps one Tick may run after a stall.
	DefaultMaxCatchUp = 5
)

// Mode is the motion controller that owns the agent.
type Mode int

const (
	ModeFlight Mode = iota
	ModeWarp
)

// String names the mode for frames and logs.
func (m Mode) String() string {
	if m == ModeWarp {
		return "warp"
	}
	return "flight"
}

// Option customises session construction.
type Option func(*Session)

// WithRand injects the randomness used for warp target jitter.
func WithRand(rng *rand.Rand) Option {
	return func(s *Session) {
		if rng != nil {
			s.rng = rng
		}
	}
}

// WithStep overrides the fixed step length.
func WithStep(step time.Duration) Option {
	return func(s *Session) {
		if step > 0 {
			s.step = step
		}
	}
}

// WithMaxCatchUp overrides the per-tick step cap.
func WithMaxCatchUp(steps int) Option {
	return func(s *Session) {
		if steps > 0 {
			s.maxCatchUp = steps
		}
	}
}

// WithTieBreak selects how simultaneous approaches are resolved.
func WithTieBreak(tieBreak proximity.TieBreak) Option {
	return func(s *Session) { s.tieBreak = tieBreak }
}

// WithTuning replaces the embedded tuning tables.
func WithTuning(tuning gameplay.NavigationTuning) Option {
	return func(s *Session) { s.tuning = tuning }
}

// WithLogger attaches a logger for warp and selection transitions.
func WithLogger(logger *logging.Logger) Option {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Session owns all mutable navigation state for one view. It is not safe for concurrent
// use: hosts must serialise input latching and ticking on a single goroutine.
type Session struct {
	registry   *orbit.Registry
	tuning     gameplay.NavigationTuning
	rng        *rand.Rand
	step       time.Duration
	maxCatchUp int
	tieBreak   proximity.TieBreak
	logger     *logging.Logger

	input     *input.Aggregator
	flight    *flight.Controller
	warp      *warp.Controller
	proximity *proximity.Detector
	camera    *camera.Rig

	agent       physics.Agent
	accumulator time.Duration
	ticks       uint64
}

// New builds a session at the spawn pose. The registry is shared and never mutated.
func New(registry *orbit.Registry, opts ...Option) *Session {
	s := &Session{
		registry:   registry,
		tuning:     gameplay.Tuning(),
		step:       DefaultStep,
		maxCatchUp: DefaultMaxCatchUp,
		logger:     logging.L(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	if s.rng == nil {
		s.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	s.input = input.NewAggregator()
	s.flight = flight.NewController(s.tuning.Flight)
	s.warp = warp.NewController(s.tuning.Warp)
	s.proximity = proximity.NewDetector(registry, s.tuning.Proximity.Margin, s.tieBreak)
	s.camera = camera.NewRig(s.tuning.Camera)
	s.agent = physics.NewAgent(mgl64.Vec3(s.tuning.Spawn.Position), s.tuning.Spawn.Yaw)
	return s
}

// Press latches a button-down edge.
func (s *Session) Press(b input.Button) bool { return s.input.Press(b) }

// Release latches a button-up edge.
func (s *Session) Release(b input.Button) bool { return s.input.Release(b) }

// SetJoystick latches a joystick sample until the next one arrives.
func (s *Session) SetJoystick(x, y float64, active bool) { s.input.SetJoystick(x, y, active) }

// ResetInput releases every button and idles the joystick.
func (s *Session) ResetInput() { s.input.Reset() }

// Registry exposes the shared body catalogue.
func (s *Session) Registry() *orbit.Registry { return s.registry }

// StepDuration reports the fixed step length.
func (s *Session) StepDuration() time.Duration { return s.step }

// SimTime is the simulated time in seconds, derived from the step count.
func (s *Session) SimTime() float64 {
	return float64(s.ticks) * s.step.Seconds()
}

// RequestWarp starts automated travel toward bodyID, or toward the star when bodyID is
// empty or names the star. Unknown ids are ignored and leave every state untouched.
// The destination is a snapshot taken now; it does not follow the body in transit.
func (s *Session) RequestWarp(bodyID string) bool {
	var target mgl64.Vec3
	if bodyID == "" || bodyID == s.registry.Star().ID {
		target = warp.TargetNear(0, 0, s.tuning.Warp, nil)
		bodyID = s.registry.Star().ID
	} else {
		body, ok := s.registry.Lookup(bodyID)
		if !ok {
			s.logger.Debug("warp request ignored", logging.String("body", bodyID))
			return false
		}
		target = warp.TargetNear(body.Radius, body.Angle(s.SimTime()), s.tuning.Warp, s.rng)
	}
	s.warp.Start(target)
	s.logger.Debug("warp started",
		logging.String("body", bodyID),
		logging.Uint64("tick", s.ticks),
		logging.Vec3("target", target),
	)
	return true
}

// Tick accumulates dt and runs as many fixed steps as fit, up to the catch-up cap.
// Negative deltas from clock jumps are treated as zero.
func (s *Session) Tick(dt time.Duration) Output {
	if dt < 0 {
		dt = 0
	}
	s.accumulator += dt
	out := Output{}
	steps := int(s.accumulator / s.step)
	if steps > s.maxCatchUp {
		//1.- After a stall, run the cap and drop the backlog rather than spiralling.
		steps = s.maxCatchUp
		s.accumulator %= s.step
		out.CatchUpCapped = true
	} else {
		s.accumulator -= time.Duration(steps) * s.step
	}
	for i := 0; i < steps; i++ {
		s.advance(&out)
	}
	s.fill(&out)
	return out
}

// Step runs exactly one fixed step regardless of the accumulator.
func (s *Session) Step() Output {
	out := Output{}
	s.advance(&out)
	s.fill(&out)
	return out
}

func (s *Session) advance(out *Output) {
	//1.- Input is sampled every step but only flight consumes it; during warp edges stay latched.
	intent := s.input.Sample()
	if s.warp.Active() {
		if s.warp.Step(&s.agent) {
			out.WarpArrived = true
			s.logger.Debug("warp arrived", logging.Uint64("tick", s.ticks+1), logging.Vec3("position", s.agent.Position))
		}
	} else {
		s.flight.Step(&s.agent, intent)
	}
	s.ticks++
	out.Steps++

	//2.- Proximity is evaluated at the post-step time with the post-step position.
	if event, ok := s.proximity.Step(s.agent.Position, s.SimTime()); ok {
		out.Events = append(out.Events, event)
		s.logger.Debug("selection changed",
			logging.String("body", event.BodyID),
			logging.Bool("cleared", event.Cleared),
			logging.Uint64("tick", s.ticks),
		)
	}
	s.camera.Step(s.agent)
}

func (s *Session) fill(out *Output) {
	out.Tick = s.ticks
	out.SimTime = s.SimTime()
	out.Mode = s.mode()
	out.Agent = poseOf(s.agent)
	out.Camera = s.camera.Pose()
	out.Selected, out.HasSelection = s.proximity.Selected()
}

func (s *Session) mode() Mode {
	if s.warp.Active() {
		return ModeWarp
	}
	return ModeFlight
}

// Snapshot returns a read-only copy of the session state for observers.
func (s *Session) Snapshot() Snapshot {
	snapshot := Snapshot{
		Tick:    s.ticks,
		SimTime: s.SimTime(),
		Mode:    s.mode(),
		Agent:   poseOf(s.agent),
		Camera:  s.camera.Pose(),
		Intent:  s.input.Sample(),
	}
	if target, ok := s.warp.Target(); ok {
		snapshot.WarpTarget = &target
	}
	snapshot.Selected, snapshot.HasSelection = s.proximity.Selected()
	return snapshot
}
