package camera

import (
	"github.com/go-gl/mathgl/mgl64"

	"starfolio/navigator/internal/gameplay"
	"starfolio/navigator/internal/physics"
)

// Pose is the camera placement handed to the renderer.
type Pose struct {
	Position    mgl64.Vec3
	LookAt      mgl64.Vec3
	Orientation mgl64.Quat
}

// Rig is a chase camera that trails the agent with positional lag only.
type Rig struct {
	offset   mgl64.Vec3
	easing   float64
	lift     mgl64.Vec3
	position mgl64.Vec3
	pose     Pose
}

// NewRig places the camera at the tuned start position.
func NewRig(tuning gameplay.CameraTuning) *Rig {
	start := mgl64.Vec3(tuning.Start)
	return &Rig{
		offset:   mgl64.Vec3(tuning.Offset),
		easing:   tuning.FollowEasing,
		lift:     mgl64.Vec3{0, tuning.LookAtLift, 0},
		position: start,
		pose:     Pose{Position: start, Orientation: mgl64.QuatIdent()},
	}
}

// Step eases the camera toward its offset behind the agent and re-aims it.
func (r *Rig) Step(agent physics.Agent) Pose {
	if r == nil {
		return Pose{}
	}
	//1.- The offset lives in agent space so the camera swings around with the ship.
	desired := agent.Position.Add(agent.Rotation.Rotate(r.offset))
	r.position = physics.EaseVec(r.position, desired, r.easing)

	//2.- The aim is recomputed outright each step; smoothing it too would compound the lag.
	lookAt := agent.Position.Add(r.lift)
	orientation := r.pose.Orientation
	if look, ok := physics.LookRotation(lookAt.Sub(r.position)); ok {
		orientation = look
	}
	r.pose = Pose{Position: r.position, LookAt: lookAt, Orientation: orientation}
	return r.pose
}

// Pose returns the most recent camera pose.
func (r *Rig) Pose() Pose {
	if r == nil {
		return Pose{}
	}
	return r.pose
}
