package gameplay

import (
	"encoding/json"
	"sync"

	_ "embed"
)

// FlightTuning holds the per-step constants of manual flight.
type FlightTuning struct {
	RotationSpeed       float64 `json:"rotationSpeedRadPerStep"`
	YawEasing           float64 `json:"yawEasing"`
	BaseAcceleration    float64 `json:"baseAcceleration"`
	ReverseThrustScale  float64 `json:"reverseThrustScale"`
	VerticalThrustScale float64 `json:"verticalThrustScale"`
	MaxSpeed            float64 `json:"maxSpeed"`
	Damping             float64 `json:"damping"`
	BoundsHorizontal    float64 `json:"boundsHorizontal"`
	BoundsVertical      float64 `json:"boundsVertical"`
}

// WarpTuning holds the automated travel constants and the target placement rule.
type WarpTuning struct {
	ArrivalThreshold float64 `json:"arrivalThreshold"`
	SpeedFactor      float64 `json:"speedFactor"`
	MaxSpeed         float64 `json:"maxSpeed"`
	SlerpFactor      float64 `json:"slerpFactor"`
	TargetHeight     float64 `json:"targetHeight"`
	TargetStandoff   float64 `json:"targetStandoff"`
	AngleSpread      float64 `json:"angleSpreadRad"`
}

// CameraTuning describes the chase camera rig.
type CameraTuning struct {
	Offset       [3]float64 `json:"offset"`
	FollowEasing float64    `json:"followEasing"`
	LookAtLift   float64    `json:"lookAtLift"`
	Start        [3]float64 `json:"start"`
}

// ProximityTuning configures body approach detection.
type ProximityTuning struct {
	Margin float64 `json:"margin"`
}

// SpawnTuning is the pose a fresh session starts from.
type SpawnTuning struct {
	Position [3]float64 `json:"position"`
	Yaw      float64    `json:"yawRad"`
}

// NavigationTuning bundles every table consumed by the navigation core.
type NavigationTuning struct {
	Flight    FlightTuning    `json:"flight"`
	Warp      WarpTuning      `json:"warp"`
	Camera    CameraTuning    `json:"camera"`
	Proximity ProximityTuning `json:"proximity"`
	Spawn     SpawnTuning     `json:"spawn"`
}

//go:embed tuning.json
var tuningPayload []byte

var (
	tuningOnce sync.Once
	tuningData NavigationTuning
	tuningErr  error
)

// Tuning exposes the cached navigation constants.
func Tuning() NavigationTuning {
	tuningOnce.Do(func() {
		//1.- Parse the embedded JSON payload exactly once in a threadsafe manner.
		tuningErr = json.Unmarshal(tuningPayload, &tuningData)
	})
	//2.- Panic immediately when the tables cannot be decoded to avoid silent divergence.
	if tuningErr != nil {
		panic(tuningErr)
	}
	//3.- Return a copy so callers can tweak their own tables without touching shared state.
	return tuningData
}

// Flatten lists the scalar constants under dotted keys, for recording headers.
func (t NavigationTuning) Flatten() map[string]float64 {
	out := map[string]float64{
		"flight.rotation_speed":        t.Flight.RotationSpeed,
		"flight.yaw_easing":            t.Flight.YawEasing,
		"flight.base_acceleration":     t.Flight.BaseAcceleration,
		"flight.reverse_thrust_scale":  t.Flight.ReverseThrustScale,
		"flight.vertical_thrust_scale": t.Flight.VerticalThrustScale,
		"flight.max_speed":             t.Flight.MaxSpeed,
		"flight.damping":               t.Flight.Damping,
		"flight.bounds_horizontal":     t.Flight.BoundsHorizontal,
		"flight.bounds_vertical":       t.Flight.BoundsVertical,
		"warp.arrival_threshold":       t.Warp.ArrivalThreshold,
		"warp.speed_factor":            t.Warp.SpeedFactor,
		"warp.max_speed":               t.Warp.MaxSpeed,
		"warp.slerp_factor":            t.Warp.SlerpFactor,
		"warp.target_height":           t.Warp.TargetHeight,
		"warp.target_standoff":         t.Warp.TargetStandoff,
		"warp.angle_spread":            t.Warp.AngleSpread,
		"camera.follow_easing":         t.Camera.FollowEasing,
		"camera.look_at_lift":          t.Camera.LookAtLift,
		"proximity.margin":             t.Proximity.Margin,
		"spawn.yaw":                    t.Spawn.Yaw,
	}
	for idx, axis := range []string{"x", "y", "z"} {
		out["camera.offset_"+axis] = t.Camera.Offset[idx]
		out["camera.start_"+axis] = t.Camera.Start[idx]
		out["spawn.position_"+axis] = t.Spawn.Position[idx]
	}
	return out
}
