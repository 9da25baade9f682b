// Package pilot hosts one navigation session per connected pilot. Transports submit
// control messages from their read goroutine; the runtime drains them at the start of
// each host tick on its own goroutine, so the session itself stays single-threaded.
package pilot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"starfolio/navigator/internal/gameplay"
	"starfolio/navigator/internal/input"
	"starfolio/navigator/internal/logging"
	"starfolio/navigator/internal/navigation"
	"starfolio/navigator/internal/networking"
	"starfolio/navigator/internal/orbit"
	"starfolio/navigator/internal/proximity"
	"starfolio/navigator/internal/simulation"
	"starfolio/navigator/internal/wire"
)

// DefaultQueueLimit bounds control messages waiting for the next tick.
const DefaultQueueLimit = 256

var (
	// ErrQueueFull is returned when a pilot floods control messages faster than ticks drain them.
	ErrQueueFull = errors.New("control queue full")
	// ErrGated marks a joystick sample rejected by the input gate.
	ErrGated = errors.New("joystick sample gated")
	// ErrClosed is returned by Submit once the runtime has stopped.
	ErrClosed = errors.New("pilot runtime closed")
)

// Recorder persists control input and frames. replay.Writer satisfies it.
type Recorder interface {
	AppendEvent(tick uint64, simulatedMs int64, eventType string, payload []byte) error
	AppendFrame(tick uint64, simulatedMs int64, payload []byte) error
	Close() error
}

// Delivery is one encoded frame handed to the transport.
type Delivery struct {
	Frame   wire.Frame
	Payload []byte
	// Mandatory frames carry selection changes or warp arrival and bypass throttling.
	Mandatory bool
}

// SendFunc writes a delivery to the pilot. Returning an error stops the runtime.
type SendFunc func(Delivery) error

// Options wires a runtime to the shared process infrastructure. Only Registry is required.
type Options struct {
	ID         string
	Transport  string
	Registry   *orbit.Registry
	Format     wire.Format
	Step       time.Duration
	MaxCatchUp int
	FrameEvery int
	QueueLimit int
	TieBreak   proximity.TieBreak
	Tuning     *gameplay.NavigationTuning
	Seed       uint64

	Gate      *input.Gate
	Bandwidth *networking.BandwidthRegulator
	Frames    *networking.FrameMetrics
	Monitor   *simulation.TickMonitor
	Recorder  Recorder
	Logger    *logging.Logger
	// OnClose runs once after the runtime stops, for host bookkeeping.
	OnClose func(*Runtime)
}

// Runtime owns one session and the queue feeding it.
type Runtime struct {
	id         string
	transport  string
	registry   *orbit.Registry
	format     wire.Format
	step       time.Duration
	frameEvery uint64
	queueLimit int
	seed       uint64

	session   *navigation.Session
	gate      *input.Gate
	bandwidth *networking.BandwidthRegulator
	frames    *networking.FrameMetrics
	monitor   *simulation.TickMonitor
	recorder  Recorder
	logger    *logging.Logger
	onClose   func(*Runtime)
	stopOnce  sync.Once

	mu             sync.Mutex
	queue          []wire.ControlMessage
	pendingStick   int
	dropped        uint64
	closed         bool
	lastFrameTick  uint64
	sentFirstFrame bool
}

// New builds a runtime and its session. A zero seed draws a fresh one.
func New(opts Options) (*Runtime, error) {
	if opts.Registry == nil {
		return nil, errors.New("pilot runtime requires a body registry")
	}
	if opts.ID == "" {
		return nil, errors.New("pilot runtime requires an id")
	}
	if opts.Step <= 0 {
		opts.Step = navigation.DefaultStep
	}
	if opts.FrameEvery <= 0 {
		opts.FrameEvery = 1
	}
	if opts.QueueLimit <= 0 {
		opts.QueueLimit = DefaultQueueLimit
	}
	if opts.Seed == 0 {
		opts.Seed = rand.Uint64() | 1
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.L()
	}
	logger = logger.With(logging.String("session_id", opts.ID), logging.String("transport", opts.Transport))

	sessionOpts := []navigation.Option{
		navigation.WithRand(orbit.SeededRand(opts.Seed)),
		navigation.WithStep(opts.Step),
		navigation.WithMaxCatchUp(opts.MaxCatchUp),
		navigation.WithTieBreak(opts.TieBreak),
		navigation.WithLogger(logger),
	}
	if opts.Tuning != nil {
		sessionOpts = append(sessionOpts, navigation.WithTuning(*opts.Tuning))
	}

	return &Runtime{
		id:           opts.ID,
		transport:    opts.Transport,
		registry:     opts.Registry,
		format:       opts.Format,
		step:         opts.Step,
		frameEvery:   uint64(opts.FrameEvery),
		queueLimit:   opts.QueueLimit,
		seed:         opts.Seed,
		session:      navigation.New(opts.Registry, sessionOpts...),
		gate:         opts.Gate,
		bandwidth:    opts.Bandwidth,
		frames:       opts.Frames,
		monitor:      opts.Monitor,
		recorder:     opts.Recorder,
		logger:       logger,
		onClose:      opts.OnClose,
		pendingStick: -1,
	}, nil
}

// ID returns the session identifier.
func (r *Runtime) ID() string { return r.id }

// Seed returns the seed driving warp jitter, for recording headers.
func (r *Runtime) Seed() uint64 { return r.seed }

// Logger returns the session-scoped logger.
func (r *Runtime) Logger() *logging.Logger { return r.logger }

// Hello describes the session to a freshly connected client.
func (r *Runtime) Hello() wire.Hello {
	return wire.NewHello(r.id, r.step, r.registry, r.format)
}

// Dropped reports how many control messages were discarded because the queue was full.
func (r *Runtime) Dropped() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped
}

// Submit queues a control message for the next tick. Joystick samples pass the gate
// first and coalesce with a sample still waiting, unless a reset was queued after it.
func (r *Runtime) Submit(msg wire.ControlMessage, receivedAt time.Time) error {
	if msg.Type == wire.ControlJoystick && r.gate != nil {
		sentAt := msg.SentAt()
		if sentAt.IsZero() {
			sentAt = receivedAt
		}
		sample := input.Sample{PilotID: r.id, Sequence: msg.Sequence, SentAt: sentAt}
		if msg.Joystick != nil {
			sample.Stick = *msg.Joystick
		}
		if verdict := r.gate.Admit(sample); !verdict.Accepted {
			return fmt.Errorf("%w: %s", ErrGated, verdict.Reason)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}
	if msg.Type == wire.ControlJoystick && r.pendingStick >= 0 {
		r.queue[r.pendingStick] = msg
		return nil
	}
	if len(r.queue) >= r.queueLimit {
		r.dropped++
		return ErrQueueFull
	}
	switch msg.Type {
	case wire.ControlJoystick:
		r.pendingStick = len(r.queue)
	case wire.ControlReset:
		// A sample arriving after a reset must apply after it.
		r.pendingStick = -1
	}
	r.queue = append(r.queue, msg)
	return nil
}

// Run drives the session until ctx is cancelled or the transport fails. It closes the
// recorder and releases per-pilot metrics before returning.
func (r *Runtime) Run(ctx context.Context, send SendFunc) error {
	if send == nil {
		return errors.New("pilot runtime requires a send function")
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var sendErr error
	loop := simulation.NewLoop(float64(time.Second)/float64(r.step), func(elapsed time.Duration) {
		if sendErr != nil {
			return
		}
		if err := r.Tick(elapsed, send); err != nil {
			sendErr = err
			cancel()
		}
	}, simulation.WithMonitor(r.monitor))

	r.logger.Info("pilot session started", logging.Uint64("seed", r.seed), logging.String("format", r.format.Label()))
	loop.Start(ctx)
	<-ctx.Done()
	loop.Stop()
	r.shutdown()

	if sendErr != nil {
		r.logger.Warn("pilot session ended by transport", logging.Error(sendErr))
		return sendErr
	}
	r.logger.Info("pilot session ended")
	return nil
}

// Tick drains queued control, advances the session by elapsed and emits at most one
// frame. Run calls it from the loop goroutine; tests may call it directly.
func (r *Runtime) Tick(elapsed time.Duration, send SendFunc) error {
	r.applyPending()

	out := r.session.Tick(elapsed)
	r.monitor.ObserveSteps(out.Steps, out.CatchUpCapped)
	if out.CatchUpCapped {
		r.logger.Debug("tick backlog dropped", logging.Duration("elapsed", elapsed))
	}
	for _, event := range out.Events {
		if event.Cleared {
			r.logger.Info("selection cleared", logging.Uint64("tick", out.Tick))
		} else {
			r.logger.Info("body selected", logging.String("body", event.BodyID), logging.Uint64("tick", out.Tick))
		}
	}
	if out.Steps == 0 && r.sentFirstFrame {
		return nil
	}

	mandatory := len(out.Events) > 0 || out.WarpArrived || !r.sentFirstFrame
	if !mandatory && out.Tick-r.lastFrameTick < r.frameEvery {
		return nil
	}

	frame := wire.FrameFromOutput(out, r.registry)
	payload, err := wire.EncodeFrame(frame, r.format)
	if err != nil {
		r.frames.ObserveFailed()
		return fmt.Errorf("encode frame %d: %w", out.Tick, err)
	}
	priority := networking.Routine
	if mandatory {
		priority = networking.Essential
	}
	if !r.bandwidth.Admit(r.id, len(payload), priority) {
		r.frames.ObserveThrottled()
		return nil
	}
	r.lastFrameTick = out.Tick
	r.sentFirstFrame = true

	if r.recorder != nil {
		if err := r.recorder.AppendFrame(out.Tick, simulatedMs(out.SimTime), payload); err != nil {
			r.logger.Warn("recording frame failed", logging.Error(err))
		}
	}
	if err := send(Delivery{Frame: frame, Payload: payload, Mandatory: mandatory}); err != nil {
		r.frames.ObserveFailed()
		return err
	}
	r.frames.ObserveDelivered(r.id, len(payload))
	return nil
}

func (r *Runtime) applyPending() {
	r.mu.Lock()
	pending := r.queue
	r.queue = nil
	r.pendingStick = -1
	r.mu.Unlock()

	for _, msg := range pending {
		r.apply(msg)
	}
}

func (r *Runtime) apply(msg wire.ControlMessage) {
	switch msg.Type {
	case wire.ControlKey:
		button, ok := msg.Button()
		if !ok || msg.Down == nil {
			return
		}
		if *msg.Down {
			r.session.Press(button)
		} else {
			r.session.Release(button)
		}
	case wire.ControlJoystick:
		if msg.Joystick != nil {
			r.session.SetJoystick(msg.Joystick.X, msg.Joystick.Y, msg.Joystick.Active)
		}
	case wire.ControlWarp:
		target := msg.WarpTarget()
		if !r.session.RequestWarp(target) {
			r.logger.Info("warp to unknown body ignored", logging.String("body", target))
			return
		}
		r.logger.Info("warp requested", logging.String("body", target))
	case wire.ControlReset:
		r.session.ResetInput()
	}
	r.record(msg)
}

func (r *Runtime) record(msg wire.ControlMessage) {
	if r.recorder == nil {
		return
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return
	}
	snapshot := r.session.Snapshot()
	if err := r.recorder.AppendEvent(snapshot.Tick, simulatedMs(snapshot.SimTime), string(msg.Type), payload); err != nil {
		r.logger.Warn("recording control failed", logging.Error(err))
	}
}

// Close releases a runtime whose Run never started, for example when the greeting
// could not be delivered. It is a no-op after Run returns.
func (r *Runtime) Close() {
	r.shutdown()
}

func (r *Runtime) shutdown() {
	r.stopOnce.Do(r.stop)
}

func (r *Runtime) stop() {
	r.mu.Lock()
	r.closed = true
	r.queue = nil
	r.mu.Unlock()

	if r.recorder != nil {
		if err := r.recorder.Close(); err != nil {
			r.logger.Warn("closing recording failed", logging.Error(err))
		}
	}
	r.gate.Forget(r.id)
	r.bandwidth.Forget(r.id)
	r.frames.ForgetPilot(r.id)
	if r.onClose != nil {
		r.onClose(r)
	}
}

func simulatedMs(seconds float64) int64 {
	return int64(seconds * 1000)
}
