package wire

import (
	"errors"
	"math/rand/v2"
	"testing"
	"time"

	"google.golang.org/protobuf/encoding/protowire"

	"starfolio/navigator/internal/input"
	"starfolio/navigator/internal/logging"
	"starfolio/navigator/internal/navigation"
	"starfolio/navigator/internal/orbit"
)

func testRegistry(t *testing.T) *orbit.Registry {
	t.Helper()
	registry, err := orbit.NewRegistry(orbit.SolarSystem(), rand.New(rand.NewPCG(1, 2)))
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	return registry
}

func TestDecodeControlResolvesKeysAndButtons(t *testing.T) {
	msg, err := DecodeControl([]byte(`{"type":"key","key":"KeyW","down":true,"seq":3}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if button, ok := msg.Button(); !ok || button != input.Forward || !*msg.Down {
		t.Fatalf("unexpected key resolution %v %v", button, ok)
	}

	//1.- Button names are accepted as well as browser key codes.
	msg, err = DecodeControl([]byte(`{"type":"key","key":"Descend","down":false}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if button, _ := msg.Button(); button != input.Descend {
		t.Fatalf("expected descend, got %v", button)
	}
}

func TestDecodeControlSanitizesJoystick(t *testing.T) {
	msg, err := DecodeControl([]byte(`{"type":"joystick","joystick":{"x":4,"y":-0.5,"active":true},"sent_at_ms":1700000000000}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if msg.Joystick.X != 1 || msg.Joystick.Y != -0.5 || !msg.Joystick.Active {
		t.Fatalf("expected clamped joystick, got %+v", *msg.Joystick)
	}
	if msg.SentAt().UnixMilli() != 1700000000000 {
		t.Fatalf("unexpected sent at %v", msg.SentAt())
	}
}

func TestDecodeControlWarpTargets(t *testing.T) {
	msg, err := DecodeControl([]byte(`{"type":"warp","body":null}`))
	if err != nil || msg.WarpTarget() != "" {
		t.Fatalf("expected star warp, got %q err=%v", msg.WarpTarget(), err)
	}
	msg, err = DecodeControl([]byte(`{"type":"warp","body":"projects"}`))
	if err != nil || msg.WarpTarget() != "projects" {
		t.Fatalf("expected body warp, got %q err=%v", msg.WarpTarget(), err)
	}
}

func TestDecodeControlRejectsBadMessages(t *testing.T) {
	cases := map[string]error{
		`{"type":"dance"}`:                       ErrUnknownControl,
		`{"type":"key","key":"KeyW"}`:            ErrInvalidControl,
		`{"type":"key","key":"F13","down":true}`: ErrInvalidControl,
		`{"type":"joystick"}`:                    ErrInvalidControl,
		`not json`:                               ErrInvalidControl,
	}
	for raw, want := range cases {
		if _, err := DecodeControl([]byte(raw)); !errors.Is(err, want) {
			t.Fatalf("%s: expected %v, got %v", raw, want, err)
		}
	}
}

func TestParseFormat(t *testing.T) {
	format, err := ParseFormat("binary", "snappy")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if format.Label() != "binary+snappy" || !format.Binary() {
		t.Fatalf("unexpected format %+v", format)
	}
	back, err := ParseLabel(format.Label())
	if err != nil || back != format {
		t.Fatalf("label did not round trip: %+v %v", back, err)
	}
	if plain, _ := ParseFormat("", ""); plain.Binary() || plain.Label() != "json" {
		t.Fatalf("expected json default, got %+v", plain)
	}
	if _, err := ParseFormat("xml", ""); err == nil {
		t.Fatal("expected unsupported encoding error")
	}
}

func sessionFrame(t *testing.T, registry *orbit.Registry) Frame {
	t.Helper()
	session := navigation.New(registry,
		navigation.WithRand(rand.New(rand.NewPCG(3, 4))),
		navigation.WithLogger(logging.NewTestLogger()),
	)
	session.Press(input.Forward)
	session.Press(input.Left)
	out := session.Tick(250 * time.Millisecond)
	return FrameFromOutput(out, registry)
}

func TestFrameSurvivesEveryFormat(t *testing.T) {
	registry := testRegistry(t)
	frame := sessionFrame(t, registry)
	if len(frame.Bodies) != registry.Len() {
		t.Fatalf("expected %d bodies, got %d", registry.Len(), len(frame.Bodies))
	}

	for _, format := range []Format{
		{EncodingJSON, CompressionNone},
		{EncodingBinary, CompressionSnappy},
	} {
		payload, err := EncodeFrame(frame, format)
		if err != nil {
			t.Fatalf("%s: encode: %v", format.Label(), err)
		}
		decoded, err := DecodeFrame(payload, format)
		if err != nil {
			t.Fatalf("%s: decode: %v", format.Label(), err)
		}
		if decoded.Tick != frame.Tick || decoded.Mode != frame.Mode || decoded.Ship != frame.Ship || decoded.Camera != frame.Camera {
			t.Fatalf("%s: frame mismatch\nwant %+v\ngot  %+v", format.Label(), frame, decoded)
		}
		if len(decoded.Bodies) != len(frame.Bodies) || decoded.Bodies[2] != frame.Bodies[2] {
			t.Fatalf("%s: bodies mismatch", format.Label())
		}
	}
}

func TestUnmarshalFrameSkipsUnknownFields(t *testing.T) {
	payload := MarshalFrame(Frame{Tick: 9, Mode: "warp", Selected: "about"})
	//1.- A newer server may append fields this client has never seen.
	payload = protowire.AppendTag(payload, 99, protowire.BytesType)
	payload = protowire.AppendString(payload, "future")

	frame, err := UnmarshalFrame(payload)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if frame.Tick != 9 || frame.Mode != "warp" || frame.Selected != "about" {
		t.Fatalf("unexpected frame %+v", frame)
	}
	if _, err := UnmarshalFrame([]byte{0x0a, 0x05, 0x01}); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected malformed error, got %v", err)
	}
}

func TestEnvelopesRoundTrip(t *testing.T) {
	control := ControlEnvelope{PilotID: "pilot-1", Sequence: 12, Encoding: "json", Payload: []byte(`{"type":"reset"}`)}
	data, err := control.MarshalWire()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded ControlEnvelope
	if err := decoded.UnmarshalWire(data); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.PilotID != "pilot-1" || decoded.Sequence != 12 || string(decoded.Payload) != `{"type":"reset"}` {
		t.Fatalf("unexpected control envelope %+v", decoded)
	}

	frame := FrameEnvelope{Tick: 77, Encoding: "binary+snappy", Payload: []byte{1, 2, 3}}
	data, _ = frame.MarshalWire()
	var back FrameEnvelope
	if err := back.UnmarshalWire(data); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back.Tick != 77 || back.Encoding != "binary+snappy" || len(back.Payload) != 3 {
		t.Fatalf("unexpected frame envelope %+v", back)
	}
}

func TestHelloListsCatalogue(t *testing.T) {
	registry := testRegistry(t)
	hello := NewHello("abc", time.Second/60, registry, Format{Encoding: EncodingBinary})
	if hello.Type != "hello" || hello.SessionID != "abc" || hello.Encoding != "binary" || hello.Compression != "none" {
		t.Fatalf("unexpected hello header %+v", hello)
	}
	if len(hello.Bodies) != registry.Len() || hello.Star.ID != registry.Star().ID {
		t.Fatalf("unexpected catalogue in hello %+v", hello)
	}
	if hello.Bodies[0].Phase != registry.At(0).Phase {
		t.Fatalf("expected phases to be shared with the client")
	}
}

func TestNavigationListStartsWithStar(t *testing.T) {
	registry := testRegistry(t)
	entries := NavigationList(registry)
	if len(entries) != registry.Len()+1 {
		t.Fatalf("expected star plus %d bodies, got %d", registry.Len(), len(entries))
	}
	if entries[0].Kind != "star" || entries[0].ID != registry.Star().ID {
		t.Fatalf("expected star first, got %+v", entries[0])
	}
	if entries[1].Kind != "planet" || entries[1].ID != registry.At(0).ID {
		t.Fatalf("expected catalogue order after the star, got %+v", entries[1])
	}
}
