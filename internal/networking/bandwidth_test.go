package networking

import (
	"math"
	"testing"
	"time"
)

func TestRoutineFramesSkipWhenBudgetSpent(t *testing.T) {
	current := time.Unix(0, 0)
	regulator := NewBandwidthRegulator(100, func() time.Time { return current })

	//1.- A fresh budget is full.
	if !regulator.Admit("pilot-1", 60, Routine) {
		t.Fatal("expected the first frame to fit")
	}
	if regulator.Admit("pilot-1", 50, Routine) {
		t.Fatal("expected the second frame to be skipped")
	}

	//2.- Half a second refills 50 bytes on top of the 40 left.
	current = current.Add(500 * time.Millisecond)
	if !regulator.Admit("pilot-1", 50, Routine) {
		t.Fatal("expected the frame to fit after refill")
	}

	current = current.Add(time.Second)
	sample, ok := regulator.SnapshotUsage()["pilot-1"]
	if !ok {
		t.Fatal("missing usage sample")
	}
	if sample.Skipped != 1 || sample.EssentialBytes != 0 {
		t.Fatalf("unexpected counters %+v", sample)
	}
	if math.Abs(sample.BytesPerSecond-110/1.5) > 1e-9 {
		t.Fatalf("unexpected throughput %.6f", sample.BytesPerSecond)
	}
	if sample.AvailableBytes != 100 {
		t.Fatalf("expected the budget to cap at one second of rate, got %.2f", sample.AvailableBytes)
	}

	regulator.Forget("pilot-1")
	if usage := regulator.SnapshotUsage(); len(usage) != 0 {
		t.Fatalf("expected no budgets after forget, got %d", len(usage))
	}
}

func TestEssentialFramesBorrowWithinOneSecond(t *testing.T) {
	current := time.Unix(0, 0)
	regulator := NewBandwidthRegulator(100, func() time.Time { return current })

	//1.- Essential frames always go out; the debt bottoms out at one second of rate.
	for i := 0; i < 5; i++ {
		if !regulator.Admit("pilot-1", 150, Essential) {
			t.Fatal("essential frames must never be skipped")
		}
	}
	if regulator.Admit("pilot-1", 10, Routine) {
		t.Fatal("expected routine frames to wait while in debt")
	}

	//2.- Two seconds clear the capped debt and leave room again.
	current = current.Add(2 * time.Second)
	if !regulator.Admit("pilot-1", 10, Routine) {
		t.Fatal("expected refill to clear the debt")
	}
	if sample := regulator.SnapshotUsage()["pilot-1"]; sample.EssentialBytes != 750 {
		t.Fatalf("expected essential bytes tallied, got %d", sample.EssentialBytes)
	}
}

func TestNilRegulatorAdmitsEverything(t *testing.T) {
	var regulator *BandwidthRegulator
	if !regulator.Admit("pilot-1", 1<<20, Routine) {
		t.Fatal("expected nil regulator to admit")
	}
	regulator.Forget("pilot-1")
	if regulator.SnapshotUsage() != nil {
		t.Fatal("expected no usage from a nil regulator")
	}
}
