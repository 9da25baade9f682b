package gameplay

import (
	"math"
	"testing"
)

func TestTuningMatchesExpectedValues(t *testing.T) {
	//1.- Retrieve the cached tables to validate the embedded payload.
	tuning := Tuning()
	//2.- Assert the documented constants so accidental edits trigger failures.
	if tuning.Flight.RotationSpeed != 0.04 {
		t.Fatalf("unexpected rotation speed %.3f", tuning.Flight.RotationSpeed)
	}
	if tuning.Flight.YawEasing != 0.15 {
		t.Fatalf("unexpected yaw easing %.3f", tuning.Flight.YawEasing)
	}
	if tuning.Flight.BaseAcceleration != 0.02 {
		t.Fatalf("unexpected acceleration %.3f", tuning.Flight.BaseAcceleration)
	}
	if tuning.Flight.MaxSpeed != 1 || tuning.Flight.Damping != 0.97 {
		t.Fatalf("unexpected speed limits %+v", tuning.Flight)
	}
	if tuning.Flight.BoundsHorizontal != 100 || tuning.Flight.BoundsVertical != 30 {
		t.Fatalf("unexpected bounds %+v", tuning.Flight)
	}
	if tuning.Warp.ArrivalThreshold != 3 || tuning.Warp.SpeedFactor != 0.08 || tuning.Warp.MaxSpeed != 3 {
		t.Fatalf("unexpected warp tuning %+v", tuning.Warp)
	}
	if tuning.Warp.SlerpFactor != 0.05 {
		t.Fatalf("unexpected slerp factor %.3f", tuning.Warp.SlerpFactor)
	}
	if tuning.Camera.Offset != [3]float64{0, 4, 12} || tuning.Camera.FollowEasing != 0.08 {
		t.Fatalf("unexpected camera tuning %+v", tuning.Camera)
	}
	if tuning.Proximity.Margin != 5 {
		t.Fatalf("unexpected proximity margin %.2f", tuning.Proximity.Margin)
	}
	if tuning.Spawn.Position != [3]float64{0, 2, 50} || math.Abs(tuning.Spawn.Yaw-math.Pi) > 1e-12 {
		t.Fatalf("unexpected spawn %+v", tuning.Spawn)
	}
}

func TestTuningReturnsCopies(t *testing.T) {
	//1.- Mutate one copy and ensure the cached tables stay intact.
	first := Tuning()
	first.Flight.MaxSpeed = 99
	if second := Tuning(); second.Flight.MaxSpeed != 1 {
		t.Fatalf("cached tuning mutated: %.2f", second.Flight.MaxSpeed)
	}
}

func TestFlattenCoversVectorsAndScalars(t *testing.T) {
	flat := Tuning().Flatten()
	if flat["warp.max_speed"] != 3 || flat["proximity.margin"] != 5 {
		t.Fatalf("unexpected scalars %v", flat)
	}
	if flat["camera.offset_z"] != 12 || flat["spawn.position_z"] != 50 {
		t.Fatalf("unexpected vector components %v", flat)
	}
}
