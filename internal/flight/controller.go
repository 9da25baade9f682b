// Package flight integrates manual ship motion one fixed step at a time. Every
// constant is a per-step factor, so the caller must invoke Step at a fixed cadence.
package flight

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"starfolio/navigator/internal/gameplay"
	"starfolio/navigator/internal/input"
	"starfolio/navigator/internal/physics"
)

// Controller applies intent to an agent while no warp is in progress.
type Controller struct {
	tuning gameplay.FlightTuning
	bounds mgl64.Vec3
}

// NewController builds a controller from the provided tuning table.
func NewController(tuning gameplay.FlightTuning) *Controller {
	return &Controller{
		tuning: tuning,
		bounds: mgl64.Vec3{tuning.BoundsHorizontal, tuning.BoundsVertical, tuning.BoundsHorizontal},
	}
}

// Step advances the agent by one fixed step.
func (c *Controller) Step(agent *physics.Agent, intent input.Intent) {
	if c == nil || agent == nil {
		return
	}
	t := c.tuning

	//1.- Turning moves the yaw target; the visible yaw then eases toward it without overshoot.
	if intent.Turn != 0 {
		agent.TargetYaw -= intent.Turn * t.RotationSpeed
	}
	agent.Yaw = physics.Ease(agent.Yaw, agent.TargetYaw, t.YawEasing)
	agent.Pitch = physics.Ease(agent.Pitch, 0, t.YawEasing)

	//2.- Thrust acts along the yaw-only nose; reverse thrust is deliberately weaker.
	forward := mgl64.Vec3{-math.Sin(agent.Yaw), 0, -math.Cos(agent.Yaw)}
	if intent.Thrust != 0 {
		accel := t.BaseAcceleration
		if intent.Thrust < 0 {
			accel *= t.ReverseThrustScale
		}
		agent.Velocity = agent.Velocity.Add(forward.Mul(accel * intent.Thrust))
	}
	agent.Velocity[1] += intent.Vertical * t.BaseAcceleration * t.VerticalThrustScale

	//3.- Clamp speed before integrating so position never sees an over-limit velocity.
	agent.Velocity = physics.ClampMagnitude(agent.Velocity, t.MaxSpeed)
	agent.Position = agent.Position.Add(agent.Velocity)
	agent.Velocity = agent.Velocity.Mul(t.Damping)

	//4.- Keep the ship inside the playable box and refresh the render rotation.
	agent.Position = physics.ClampBox(agent.Position, c.bounds)
	agent.SyncRotation()
}

// Bounds returns the half extents of the playable box.
func (c *Controller) Bounds() mgl64.Vec3 {
	if c == nil {
		return mgl64.Vec3{}
	}
	return c.bounds
}
