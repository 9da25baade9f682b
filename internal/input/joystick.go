package input

import "math"

// Joystick is a continuous stick sample latched until replaced.
type Joystick struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Active bool    `json:"active"`
}

// SanitizeJoystick zeroes NaN axes and clamps the rest into [-1, 1].
func SanitizeJoystick(sample Joystick) Joystick {
	sample.X = clampUnit(sample.X)
	sample.Y = clampUnit(sample.Y)
	return sample
}

func clampUnit(value float64) float64 {
	switch {
	case math.IsNaN(value):
		return 0
	case value > 1:
		return 1
	case value < -1:
		return -1
	default:
		return value
	}
}
