package wire

import (
	"github.com/go-gl/mathgl/mgl64"

	"starfolio/navigator/internal/navigation"
	"starfolio/navigator/internal/orbit"
	"starfolio/navigator/internal/proximity"
)

// ShipState is the agent pose as sent to clients. Rotation is ordered w, x, y, z.
type ShipState struct {
	Position [3]float64 `json:"position"`
	Velocity [3]float64 `json:"velocity"`
	Yaw      float64    `json:"yaw"`
	Pitch    float64    `json:"pitch"`
	Rotation [4]float64 `json:"rotation"`
}

// CameraState is the chase camera pose. Orientation is ordered w, x, y, z.
type CameraState struct {
	Position    [3]float64 `json:"position"`
	LookAt      [3]float64 `json:"look_at"`
	Orientation [4]float64 `json:"orientation"`
}

// BodyPosition is one body's world position at the frame's simulated time.
type BodyPosition struct {
	ID       string     `json:"id"`
	Position [3]float64 `json:"position"`
}

// Frame is the per-tick state pushed to a pilot.
type Frame struct {
	Type        string            `json:"type"`
	Tick        uint64            `json:"tick"`
	SimTime     float64           `json:"sim_time"`
	Mode        string            `json:"mode"`
	Ship        ShipState         `json:"ship"`
	Camera      CameraState       `json:"camera"`
	Bodies      []BodyPosition    `json:"bodies,omitempty"`
	Events      []proximity.Event `json:"events,omitempty"`
	Selected    string            `json:"selected,omitempty"`
	WarpArrived bool              `json:"warp_arrived,omitempty"`
}

// FrameFromOutput converts a session output into its wire form. Body positions are
// evaluated at the output's simulated time when a registry is supplied.
func FrameFromOutput(out navigation.Output, registry *orbit.Registry) Frame {
	frame := Frame{
		Type:    "frame",
		Tick:    out.Tick,
		SimTime: out.SimTime,
		Mode:    out.Mode.String(),
		Ship: ShipState{
			Position: out.Agent.Position,
			Velocity: out.Agent.Velocity,
			Yaw:      out.Agent.Yaw,
			Pitch:    out.Agent.Pitch,
			Rotation: quatArray(out.Agent.Rotation),
		},
		Camera: CameraState{
			Position:    out.Camera.Position,
			LookAt:      out.Camera.LookAt,
			Orientation: quatArray(out.Camera.Orientation),
		},
		Events:      out.Events,
		WarpArrived: out.WarpArrived,
	}
	if out.HasSelection {
		frame.Selected = out.Selected
	}
	if registry != nil {
		bodies := registry.Bodies()
		frame.Bodies = make([]BodyPosition, 0, len(bodies))
		for _, body := range bodies {
			frame.Bodies = append(frame.Bodies, BodyPosition{ID: body.ID, Position: body.PositionAt(out.SimTime)})
		}
	}
	return frame
}

func quatArray(q mgl64.Quat) [4]float64 {
	return [4]float64{q.W, q.V.X(), q.V.Y(), q.V.Z()}
}
