// Package replayplayer decodes a flight recording into a readable timeline.
package replayplayer

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"starfolio/navigator/internal/replay"
	"starfolio/navigator/internal/wire"
)

// Step is one timeline entry with its payload decoded.
type Step struct {
	Tick        uint64               `json:"tick"`
	SimulatedMs int64                `json:"simulated_ms"`
	Kind        string               `json:"kind"`
	Control     *wire.ControlMessage `json:"control,omitempty"`
	Frame       *wire.Frame          `json:"frame,omitempty"`
}

// Bundle is a decoded recording.
type Bundle struct {
	Dir      string          `json:"dir"`
	Manifest replay.Manifest `json:"manifest"`
	Header   replay.Header   `json:"header"`
	Steps    []Step          `json:"steps"`
}

// Open loads the recording at path, which may be the directory or its manifest.json.
func Open(path string) (*Bundle, error) {
	if path == "" {
		return nil, fmt.Errorf("path is required")
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	dir := path
	if !info.IsDir() {
		dir = filepath.Dir(path)
	}

	//1.- Load the raw streams, then resolve the frame format the session recorded with.
	recording, err := replay.Load(dir)
	if err != nil {
		return nil, err
	}
	if recording.Manifest.Version != 1 {
		return nil, fmt.Errorf("unsupported manifest version %d", recording.Manifest.Version)
	}
	format, err := wire.ParseLabel(recording.Manifest.FrameFormat)
	if err != nil {
		return nil, fmt.Errorf("frame format: %w", err)
	}

	bundle := &Bundle{Dir: dir, Manifest: recording.Manifest, Header: recording.Header}
	//2.- Walk the merged timeline so control input precedes the frame it produced.
	err = recording.Replay(func(entry replay.TimelineEntry) error {
		step := Step{Tick: entry.Tick, SimulatedMs: entry.SimulatedMs, Kind: entry.Type}
		switch {
		case entry.Event != nil:
			msg, err := wire.DecodeControl(entry.Event.Payload)
			if err != nil {
				return fmt.Errorf("event at tick %d: %w", entry.Tick, err)
			}
			step.Control = &msg
		case entry.Frame != nil:
			frame, err := wire.DecodeFrame(entry.Frame.Payload, format)
			if err != nil {
				return fmt.Errorf("frame at tick %d: %w", entry.Tick, err)
			}
			step.Frame = &frame
		}
		bundle.Steps = append(bundle.Steps, step)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return bundle, nil
}

// Visited lists the bodies selected during the flight, in order.
func (b *Bundle) Visited() []string {
	if b == nil {
		return nil
	}
	var visited []string
	for _, step := range b.Steps {
		if step.Frame == nil {
			continue
		}
		for _, event := range step.Frame.Events {
			if !event.Cleared {
				visited = append(visited, event.BodyID)
			}
		}
	}
	return visited
}

// Window returns the steps whose tick lies in [from, to]. A zero to means no upper bound.
func (b *Bundle) Window(from, to uint64) []Step {
	if b == nil {
		return nil
	}
	var steps []Step
	for _, step := range b.Steps {
		if step.Tick < from || (to != 0 && step.Tick > to) {
			continue
		}
		steps = append(steps, step)
	}
	return steps
}

// Describe renders a step as one terminal line.
func (s Step) Describe() string {
	prefix := fmt.Sprintf("%6d %8dms ", s.Tick, s.SimulatedMs)
	switch {
	case s.Control != nil:
		return prefix + describeControl(*s.Control)
	case s.Frame != nil:
		return prefix + describeFrame(*s.Frame)
	}
	return prefix + s.Kind
}

func describeControl(msg wire.ControlMessage) string {
	switch msg.Type {
	case wire.ControlKey:
		state := "up"
		if msg.Down != nil && *msg.Down {
			state = "down"
		}
		return fmt.Sprintf("key %s %s", msg.Key, state)
	case wire.ControlJoystick:
		if msg.Joystick == nil || !msg.Joystick.Active {
			return "joystick released"
		}
		return fmt.Sprintf("joystick x=%.2f y=%.2f", msg.Joystick.X, msg.Joystick.Y)
	case wire.ControlWarp:
		if msg.Body == nil || *msg.Body == "" {
			return "warp to star"
		}
		return "warp to " + *msg.Body
	}
	return string(msg.Type)
}

func describeFrame(frame wire.Frame) string {
	var b strings.Builder
	pos := frame.Ship.Position
	fmt.Fprintf(&b, "%-6s at (%.1f, %.1f, %.1f)", frame.Mode, pos[0], pos[1], pos[2])
	if frame.WarpArrived {
		b.WriteString(" arrived")
	}
	for _, event := range frame.Events {
		if event.Cleared {
			b.WriteString(" cleared")
		} else {
			b.WriteString(" near " + event.BodyID)
		}
	}
	return b.String()
}
