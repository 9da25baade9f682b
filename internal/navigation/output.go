package navigation

import (
	"github.com/go-gl/mathgl/mgl64"

	"starfolio/navigator/internal/camera"
	"starfolio/navigator/internal/input"
	"starfolio/navigator/internal/physics"
	"starfolio/navigator/internal/proximity"
)

// AgentPose is the renderer-facing view of the ship.
type AgentPose struct {
	Position mgl64.Vec3
	Velocity mgl64.Vec3
	Yaw      float64
	Pitch    float64
	Rotation mgl64.Quat
}

func poseOf(agent physics.Agent) AgentPose {
	return AgentPose{
		Position: agent.Position,
		Velocity: agent.Velocity,
		Yaw:      agent.Yaw,
		Pitch:    agent.Pitch,
		Rotation: agent.Rotation,
	}
}

// Output is what one Tick or Step hands to the view layer. Events lists every selection
// change produced by the steps run, in order. CatchUpCapped marks a tick whose backlog
// exceeded the step cap and was dropped.
type Output struct {
	Tick          uint64
	SimTime       float64
	Steps         int
	Mode          Mode
	Agent         AgentPose
	Camera        camera.Pose
	Events        []proximity.Event
	WarpArrived   bool
	Selected      string
	HasSelection  bool
	CatchUpCapped bool
}

// Snapshot is a read-only copy of the session state.
type Snapshot struct {
	Tick         uint64
	SimTime      float64
	Mode         Mode
	Agent        AgentPose
	Camera       camera.Pose
	Intent       input.Intent
	WarpTarget   *mgl64.Vec3
	Selected     string
	HasSelection bool
}
