package warp

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/go-gl/mathgl/mgl64"

	"starfolio/navigator/internal/gameplay"
	"starfolio/navigator/internal/physics"
)

func TestStepReachesTargetExactlyOnce(t *testing.T) {
	controller := NewController(gameplay.Tuning().Warp)
	agent := physics.NewAgent(mgl64.Vec3{0, 2, 50}, math.Pi)
	target := mgl64.Vec3{-30, 2, 10}
	controller.Start(target)

	//1.- Step until arrival, checking distance shrinks monotonically and the state never flickers.
	arrivals := 0
	steps := 0
	last := agent.Position.Sub(target).Len()
	for ; steps < 10000 && controller.Active(); steps++ {
		if controller.Step(&agent) {
			arrivals++
			continue
		}
		distance := agent.Position.Sub(target).Len()
		if distance >= last {
			t.Fatalf("step %d: distance did not shrink (%.4f >= %.4f)", steps, distance, last)
		}
		last = distance
	}
	if controller.Active() || arrivals != 1 {
		t.Fatalf("expected a single arrival, got %d (active=%v)", arrivals, controller.Active())
	}
	if d := agent.Position.Sub(target).Len(); d > 3 {
		t.Fatalf("arrived %.4f away from target", d)
	}
	//2.- Further steps are no-ops once idle.
	if controller.Step(&agent) {
		t.Fatalf("idle controller reported a second arrival")
	}
}

func TestStepCapsCruiseSpeed(t *testing.T) {
	controller := NewController(gameplay.Tuning().Warp)
	agent := physics.NewAgent(mgl64.Vec3{0, 0, 0}, 0)
	controller.Start(mgl64.Vec3{100, 0, 0})
	//1.- Far from the target the step length is the 3 unit cap; close in it is 8% of the gap.
	controller.Step(&agent)
	if math.Abs(agent.Position.X()-3) > 1e-9 {
		t.Fatalf("expected capped move of 3, got %v", agent.Position)
	}
	agent.Position = mgl64.Vec3{90, 0, 0}
	controller.Step(&agent)
	if math.Abs(agent.Position.X()-90.8) > 1e-9 {
		t.Fatalf("expected proportional move of 0.8, got %v", agent.Position)
	}
}

func TestStartRetargetsMidWarp(t *testing.T) {
	controller := NewController(gameplay.Tuning().Warp)
	agent := physics.NewAgent(mgl64.Vec3{}, 0)
	controller.Start(mgl64.Vec3{50, 0, 0})
	controller.Step(&agent)
	//1.- A new request overwrites the destination and motion turns toward it immediately.
	controller.Start(mgl64.Vec3{0, 0, 50})
	before := agent.Position
	controller.Step(&agent)
	delta := agent.Position.Sub(before)
	toward := mgl64.Vec3{0, 0, 50}.Sub(before).Normalize()
	if delta.Normalize().Dot(toward) < 1-1e-9 {
		t.Fatalf("motion not aimed at the latest target: %v", delta)
	}
	if target, ok := controller.Target(); !ok || target != (mgl64.Vec3{0, 0, 50}) {
		t.Fatalf("unexpected target %v", target)
	}
}

func TestArrivalResyncsYawFromRotation(t *testing.T) {
	controller := NewController(gameplay.Tuning().Warp)
	agent := physics.NewAgent(mgl64.Vec3{0, 0, 0}, 0)
	agent.Velocity = mgl64.Vec3{0.5, 0, 0}
	controller.Start(mgl64.Vec3{-40, 0, 0})
	for controller.Active() {
		controller.Step(&agent)
	}
	//1.- The scalar yaw now describes the quaternion so flight resumes seamlessly.
	heading := agent.Heading()
	want := mgl64.Vec3{-math.Cos(agent.Pitch) * math.Sin(agent.Yaw), math.Sin(agent.Pitch), -math.Cos(agent.Pitch) * math.Cos(agent.Yaw)}
	if !heading.ApproxEqualThreshold(want, 1e-9) {
		t.Fatalf("heading %v disagrees with resynced angles %v", heading, want)
	}
	if agent.TargetYaw != agent.Yaw {
		t.Fatalf("target yaw not aligned")
	}
	//2.- The nose has swung toward -X and the ship comes to rest.
	if heading.X() > -0.5 {
		t.Fatalf("expected the nose to swing toward the target, got %v", heading)
	}
	if agent.Velocity != (mgl64.Vec3{}) {
		t.Fatalf("velocity should be cleared on arrival, got %v", agent.Velocity)
	}
}

func TestTargetNearPlacesSnapshotPoint(t *testing.T) {
	tuning := gameplay.Tuning().Warp
	//1.- The star target sits above and in front of the origin.
	if got := TargetNear(0, 0, tuning, nil); got != (mgl64.Vec3{0, 2, 5}) {
		t.Fatalf("unexpected star target %v", got)
	}
	//2.- Planet targets stay on the orbit circle within the angular spread.
	rng := rand.New(rand.NewPCG(3, 4))
	for i := 0; i < 100; i++ {
		got := TargetNear(20, 1.0, tuning, rng)
		angle := math.Atan2(got.Z()-tuning.TargetStandoff, got.X())
		if math.Abs(angle-1.0) > tuning.AngleSpread+1e-9 {
			t.Fatalf("angle %.4f outside spread", angle)
		}
		if math.Abs(math.Hypot(got.X(), got.Z()-tuning.TargetStandoff)-20) > 1e-9 || got.Y() != 2 {
			t.Fatalf("target off the orbit circle: %v", got)
		}
	}
}
