package replayplayer

import (
	"strings"
	"testing"
	"time"

	"starfolio/navigator/internal/proximity"
	"starfolio/navigator/internal/replay"
	"starfolio/navigator/internal/wire"
)

func TestOpenDecodesTimeline(t *testing.T) {
	tmp := t.TempDir()
	base := time.Date(2024, 7, 10, 15, 0, 0, 0, time.UTC)
	now := base
	clock := func() time.Time { return now }

	format := wire.Format{Encoding: wire.EncodingBinary, Compression: wire.CompressionSnappy}
	writer, _, err := replay.NewWriter(tmp, "Integration", format.Label(), clock)
	if err != nil {
		t.Fatalf("new writer: %v", err)
	}

	//1.- One key edge, then two frames where the second selects a body.
	control, err := wire.EncodeControl(wire.ControlMessage{Type: wire.ControlWarp})
	if err != nil {
		t.Fatalf("encode control: %v", err)
	}
	if err := writer.AppendEvent(0, 0, "warp", control); err != nil {
		t.Fatalf("append event: %v", err)
	}
	frames := []wire.Frame{
		{Type: "frame", Tick: 1, Mode: "warp"},
		{Type: "frame", Tick: 2, Mode: "flight", Selected: "mars", WarpArrived: true, Events: []proximity.Event{{BodyID: "mars"}}},
	}
	for _, frame := range frames {
		payload, err := wire.EncodeFrame(frame, format)
		if err != nil {
			t.Fatalf("encode frame: %v", err)
		}
		now = now.Add(250 * time.Millisecond)
		if err := writer.AppendFrame(frame.Tick, int64(frame.Tick)*16, payload); err != nil {
			t.Fatalf("append frame %d: %v", frame.Tick, err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	bundle, err := Open(writer.Directory())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if len(bundle.Steps) != 3 {
		t.Fatalf("expected 3 steps, got %d", len(bundle.Steps))
	}
	if bundle.Steps[0].Control == nil || bundle.Steps[0].Control.Type != wire.ControlWarp {
		t.Fatalf("expected warp control first, got %+v", bundle.Steps[0])
	}
	last := bundle.Steps[2].Frame
	if last == nil || last.Mode != "flight" || !last.WarpArrived {
		t.Fatalf("unexpected final frame %+v", last)
	}
	if visited := bundle.Visited(); len(visited) != 1 || visited[0] != "mars" {
		t.Fatalf("unexpected visited list %v", visited)
	}
	if bundle.Header.SessionID != "Integration" {
		t.Fatalf("expected header to be loaded, got %+v", bundle.Header)
	}
}

func TestWindowAndDescribe(t *testing.T) {
	body := "mars"
	down := true
	bundle := &Bundle{Steps: []Step{
		{Tick: 1, Kind: "event", Control: &wire.ControlMessage{Type: wire.ControlKey, Key: "KeyW", Down: &down}},
		{Tick: 2, Kind: "event", Control: &wire.ControlMessage{Type: wire.ControlWarp, Body: &body}},
		{Tick: 3, Kind: "frame", Frame: &wire.Frame{Mode: "flight", WarpArrived: true, Events: []proximity.Event{{BodyID: "mars"}}}},
	}}

	//1.- The window is inclusive and a zero upper bound is open-ended.
	if got := bundle.Window(2, 0); len(got) != 2 || got[0].Tick != 2 {
		t.Fatalf("unexpected window %+v", got)
	}
	if got := bundle.Window(1, 1); len(got) != 1 {
		t.Fatalf("expected a single step, got %d", len(got))
	}

	//2.- Each kind gets a readable line.
	lines := []string{bundle.Steps[0].Describe(), bundle.Steps[1].Describe(), bundle.Steps[2].Describe()}
	for idx, fragment := range []string{"key KeyW down", "warp to mars", "arrived near mars"} {
		if !strings.Contains(lines[idx], fragment) {
			t.Fatalf("expected %q in %q", fragment, lines[idx])
		}
	}
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := Open(""); err == nil {
		t.Fatal("expected empty path to fail")
	}
}
