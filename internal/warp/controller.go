package warp

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"starfolio/navigator/internal/gameplay"
	"starfolio/navigator/internal/physics"
)

// State is the warp travel phase.
type State int

const (
	Idle State = iota
	InProgress
)

// String names the state for logs and frames.
func (s State) String() string {
	if s == InProgress {
		return "warp"
	}
	return "idle"
}

// Controller flies the agent to a fixed point, overriding manual flight while active.
type Controller struct {
	tuning gameplay.WarpTuning
	state  State
	target mgl64.Vec3
}

// NewController builds an idle warp controller.
func NewController(tuning gameplay.WarpTuning) *Controller {
	return &Controller{tuning: tuning}
}

// Start begins travel to target. A request while already travelling replaces the target.
func (c *Controller) Start(target mgl64.Vec3) {
	if c == nil {
		return
	}
	c.state = InProgress
	c.target = target
}

// Active reports whether the controller owns the agent this step.
func (c *Controller) Active() bool {
	return c != nil && c.state == InProgress
}

// State returns the current phase.
func (c *Controller) State() State {
	if c == nil {
		return Idle
	}
	return c.state
}

// Target returns the destination and whether a warp is in progress.
func (c *Controller) Target() (mgl64.Vec3, bool) {
	if !c.Active() {
		return mgl64.Vec3{}, false
	}
	return c.target, true
}

// Step advances the agent one fixed step toward the target and reports arrival.
// Arrival is reported exactly once, on the step that switches back to Idle.
func (c *Controller) Step(agent *physics.Agent) bool {
	if !c.Active() || agent == nil {
		return false
	}
	t := c.tuning
	toward := c.target.Sub(agent.Position)
	distance := toward.Len()

	if distance > t.ArrivalThreshold {
		//1.- Proportional approach capped at the cruise speed; never steps past the target.
		speed := math.Min(distance*t.SpeedFactor, t.MaxSpeed)
		agent.Position = agent.Position.Add(toward.Mul(speed / distance))
		//2.- Swing the nose a fixed fraction toward the target each step.
		if look, ok := physics.LookRotation(c.target.Sub(agent.Position)); ok {
			agent.Rotation = physics.SlerpShortest(agent.Rotation, look, t.SlerpFactor)
		}
		return false
	}

	//3.- Hand control back with scalar angles taken from the final quaternion so flight resumes without a jump.
	c.state = Idle
	agent.SyncAngles()
	agent.Velocity = mgl64.Vec3{}
	return true
}
