package physics

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// ClampMagnitude rescales the vector so its length never exceeds limit while keeping its direction.
func ClampMagnitude(vector mgl64.Vec3, limit float64) mgl64.Vec3 {
	//1.- Skip clamping when the limit disables the guard.
	if !(limit > 0) {
		return vector
	}
	magnitudeSq := vector.Dot(vector)
	if magnitudeSq == 0 || magnitudeSq <= limit*limit {
		return vector
	}
	//2.- Scale each axis uniformly so the resulting magnitude matches the limit.
	return vector.Mul(limit / math.Sqrt(magnitudeSq))
}

// ClampBox limits each component to [-half, half] on its axis.
func ClampBox(vector, half mgl64.Vec3) mgl64.Vec3 {
	for axis := 0; axis < 3; axis++ {
		vector[axis] = mgl64.Clamp(vector[axis], -half[axis], half[axis])
	}
	return vector
}

// Ease moves current a fixed fraction of the way toward target.
func Ease(current, target, factor float64) float64 {
	return current + (target-current)*factor
}

// EaseVec is Ease applied per component.
func EaseVec(current, target mgl64.Vec3, factor float64) mgl64.Vec3 {
	return current.Add(target.Sub(current).Mul(factor))
}

// Distance returns |a - b|.
func Distance(a, b mgl64.Vec3) float64 {
	return a.Sub(b).Len()
}

// Finite reports whether every component is a real number.
func Finite(vector mgl64.Vec3) bool {
	for _, component := range vector {
		if math.IsNaN(component) || math.IsInf(component, 0) {
			return false
		}
	}
	return true
}
