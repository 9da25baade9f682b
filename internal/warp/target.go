package warp

import (
	"math"
	"math/rand/v2"

	"github.com/go-gl/mathgl/mgl64"

	"starfolio/navigator/internal/gameplay"
)

// TargetNear picks a snapshot point on a circle of the given radius around the origin,
// offset to hover above and in front of the orbit so arrival does not land inside the body.
// The angle is centre plus a uniform jitter in [-spread, spread].
func TargetNear(radius, centre float64, tuning gameplay.WarpTuning, rng *rand.Rand) mgl64.Vec3 {
	angle := centre
	if tuning.AngleSpread > 0 && rng != nil {
		angle += (rng.Float64()*2 - 1) * tuning.AngleSpread
	}
	return mgl64.Vec3{
		math.Cos(angle) * radius,
		tuning.TargetHeight,
		math.Sin(angle)*radius + tuning.TargetStandoff,
	}
}
