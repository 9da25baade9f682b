package physics

import "github.com/go-gl/mathgl/mgl64"

// Agent is the piloted ship. Yaw stays continuous (never wrapped) so easing toward
// TargetYaw cannot flip sign across the ±π seam.
type Agent struct {
	Position  mgl64.Vec3
	Velocity  mgl64.Vec3
	Yaw       float64
	TargetYaw float64
	Pitch     float64
	Rotation  mgl64.Quat
}

// NewAgent places a level, stationary agent at position facing yaw.
func NewAgent(position mgl64.Vec3, yaw float64) Agent {
	agent := Agent{Position: position, Yaw: yaw, TargetYaw: yaw}
	agent.SyncRotation()
	return agent
}

// SyncRotation rebuilds the quaternion from the scalar yaw and pitch.
func (a *Agent) SyncRotation() {
	if a == nil {
		return
	}
	a.Rotation = YawPitchRotation(a.Yaw, a.Pitch)
}

// SyncAngles recomputes the scalar yaw and pitch from the quaternion and aligns TargetYaw with it.
func (a *Agent) SyncAngles() {
	if a == nil {
		return
	}
	yaw, pitch, ok := YawPitchFromDirection(a.Rotation.Rotate(Forward))
	if !ok {
		return
	}
	a.Yaw = yaw
	a.TargetYaw = yaw
	a.Pitch = pitch
}

// Heading returns the unit nose direction.
func (a Agent) Heading() mgl64.Vec3 {
	return a.Rotation.Rotate(Forward)
}
