package physics

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
)

func TestClampMagnitudePreservesDirection(t *testing.T) {
	//1.- Clamp an oversized vector and confirm both length and direction.
	clamped := ClampMagnitude(mgl64.Vec3{3, 4, 0}, 1)
	if math.Abs(clamped.Len()-1) > 1e-12 {
		t.Fatalf("expected unit length, got %.6f", clamped.Len())
	}
	if math.Abs(clamped.X()-0.6) > 1e-12 || math.Abs(clamped.Y()-0.8) > 1e-12 {
		t.Fatalf("direction changed: %v", clamped)
	}
	//2.- Vectors already inside the limit and disabled limits pass through untouched.
	if got := ClampMagnitude(mgl64.Vec3{0.1, 0, 0}, 1); got != (mgl64.Vec3{0.1, 0, 0}) {
		t.Fatalf("short vector modified: %v", got)
	}
	if got := ClampMagnitude(mgl64.Vec3{5, 0, 0}, 0); got != (mgl64.Vec3{5, 0, 0}) {
		t.Fatalf("zero limit should disable clamping: %v", got)
	}
}

func TestClampBoxLimitsEachAxis(t *testing.T) {
	got := ClampBox(mgl64.Vec3{150, -45, -101}, mgl64.Vec3{100, 30, 100})
	if got != (mgl64.Vec3{100, -30, -100}) {
		t.Fatalf("unexpected clamp %v", got)
	}
}

func TestYawPitchRotationForwardConvention(t *testing.T) {
	//1.- Zero yaw faces -Z, yaw pi faces +Z, a quarter turn left faces -X.
	cases := []struct {
		yaw  float64
		want mgl64.Vec3
	}{
		{0, mgl64.Vec3{0, 0, -1}},
		{math.Pi, mgl64.Vec3{0, 0, 1}},
		{math.Pi / 2, mgl64.Vec3{-1, 0, 0}},
	}
	for _, tc := range cases {
		got := YawPitchRotation(tc.yaw, 0).Rotate(Forward)
		if !got.ApproxEqualThreshold(tc.want, 1e-9) {
			t.Fatalf("yaw %.2f: expected %v, got %v", tc.yaw, tc.want, got)
		}
		analytic := mgl64.Vec3{-math.Sin(tc.yaw), 0, -math.Cos(tc.yaw)}
		if !got.ApproxEqualThreshold(analytic, 1e-9) {
			t.Fatalf("yaw %.2f: quaternion disagrees with analytic forward %v", tc.yaw, analytic)
		}
	}
}

func TestLookRotationPointsAtDirection(t *testing.T) {
	//1.- Build rotations for arbitrary directions and rotate Forward back onto them.
	for _, direction := range []mgl64.Vec3{{1, 2, 3}, {-4, -1, 0.5}, {0, 0, -7}, {0.2, 5, 0.1}} {
		rotation, ok := LookRotation(direction)
		if !ok {
			t.Fatalf("look rotation rejected %v", direction)
		}
		got := rotation.Rotate(Forward)
		if !got.ApproxEqualThreshold(direction.Normalize(), 1e-9) {
			t.Fatalf("expected %v, got %v", direction.Normalize(), got)
		}
	}
	//2.- Degenerate input reports failure.
	if _, ok := LookRotation(mgl64.Vec3{}); ok {
		t.Fatalf("zero direction should be rejected")
	}
}

func TestSlerpShortestTakesShortArc(t *testing.T) {
	from := YawPitchRotation(0, 0)
	to := YawPitchRotation(0.2, 0)
	//1.- Negating the target must not change the interpolated rotation.
	direct := SlerpShortest(from, to, 0.5).Rotate(Forward)
	flipped := SlerpShortest(from, to.Scale(-1), 0.5).Rotate(Forward)
	if !direct.ApproxEqualThreshold(flipped, 1e-9) {
		t.Fatalf("slerp took the long arc: %v vs %v", direct, flipped)
	}
	expected := YawPitchRotation(0.1, 0).Rotate(Forward)
	if !direct.ApproxEqualThreshold(expected, 1e-9) {
		t.Fatalf("expected halfway heading %v, got %v", expected, direct)
	}
}

func TestAgentSyncAnglesRoundTrip(t *testing.T) {
	//1.- Orient an agent with a quaternion and verify the scalar angles are recovered.
	agent := NewAgent(mgl64.Vec3{}, 0)
	agent.Rotation = YawPitchRotation(2.5, -0.3)
	agent.SyncAngles()
	if math.Abs(agent.Yaw-2.5) > 1e-9 || math.Abs(agent.Pitch+0.3) > 1e-9 {
		t.Fatalf("unexpected angles yaw=%.4f pitch=%.4f", agent.Yaw, agent.Pitch)
	}
	if agent.TargetYaw != agent.Yaw {
		t.Fatalf("target yaw not aligned: %.4f", agent.TargetYaw)
	}
}
