package physics

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

var (
	// Forward is the local nose direction of every oriented body.
	Forward = mgl64.Vec3{0, 0, -1}
	// Up is the world vertical axis.
	Up = mgl64.Vec3{0, 1, 0}
	// Right is the local pitch axis.
	Right = mgl64.Vec3{1, 0, 0}
)

// YawPitchRotation composes a rotation about world up followed by a rotation about the local pitch axis.
func YawPitchRotation(yaw, pitch float64) mgl64.Quat {
	return mgl64.QuatRotate(yaw, Up).Mul(mgl64.QuatRotate(pitch, Right))
}

// YawPitchFromDirection recovers the yaw and pitch that point Forward along direction.
func YawPitchFromDirection(direction mgl64.Vec3) (yaw, pitch float64, ok bool) {
	//1.- Reject degenerate directions so callers keep their previous orientation.
	length := direction.Len()
	if length == 0 || math.IsNaN(length) || math.IsInf(length, 0) {
		return 0, 0, false
	}
	unit := direction.Mul(1 / length)
	//2.- Yaw is measured around world up from the -Z axis, pitch from the horizontal plane.
	horizontal := math.Hypot(unit.X(), unit.Z())
	if horizontal != 0 {
		yaw = math.Atan2(-unit.X(), -unit.Z())
	}
	pitch = math.Atan2(unit.Y(), horizontal)
	return yaw, pitch, true
}

// LookRotation returns the orientation whose Forward axis points along direction, with no roll.
func LookRotation(direction mgl64.Vec3) (mgl64.Quat, bool) {
	yaw, pitch, ok := YawPitchFromDirection(direction)
	if !ok {
		return mgl64.QuatIdent(), false
	}
	return YawPitchRotation(yaw, pitch), true
}

// SlerpShortest interpolates from toward to along the shorter arc.
func SlerpShortest(from, to mgl64.Quat, amount float64) mgl64.Quat {
	//1.- q and -q encode the same rotation; flip the target so the arc never exceeds 180 degrees.
	if from.Dot(to) < 0 {
		to = to.Scale(-1)
	}
	return mgl64.QuatSlerp(from, to, amount).Normalize()
}
