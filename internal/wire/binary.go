package wire

import (
	"errors"
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"

	"starfolio/navigator/internal/proximity"
)

// Field numbers for the binary frame layout. The layout is protobuf compatible so
// clients can decode it with a generated message if they prefer.
const (
	frameTick        protowire.Number = 1
	frameSimTime     protowire.Number = 2
	frameMode        protowire.Number = 3
	frameShip        protowire.Number = 4
	frameCamera      protowire.Number = 5
	frameBodies      protowire.Number = 6
	frameEvents      protowire.Number = 7
	frameSelected    protowire.Number = 8
	frameWarpArrived protowire.Number = 9

	shipPosition protowire.Number = 1
	shipVelocity protowire.Number = 2
	shipYaw      protowire.Number = 3
	shipPitch    protowire.Number = 4
	shipRotation protowire.Number = 5

	cameraPosition    protowire.Number = 1
	cameraLookAt      protowire.Number = 2
	cameraOrientation protowire.Number = 3

	bodyID       protowire.Number = 1
	bodyPosition protowire.Number = 2

	eventBody    protowire.Number = 1
	eventCleared protowire.Number = 2
)

// ErrMalformed reports a binary payload that cannot be parsed.
var ErrMalformed = errors.New("malformed binary payload")

// MarshalFrame encodes a frame in the binary layout.
func MarshalFrame(frame Frame) []byte {
	var b []byte
	b = appendVarint(b, frameTick, frame.Tick)
	b = appendDouble(b, frameSimTime, frame.SimTime)
	b = appendString(b, frameMode, frame.Mode)
	b = appendMessage(b, frameShip, marshalShip(frame.Ship))
	b = appendMessage(b, frameCamera, marshalCamera(frame.Camera))
	for _, body := range frame.Bodies {
		var inner []byte
		inner = appendString(inner, bodyID, body.ID)
		inner = appendMessage(inner, bodyPosition, marshalVec(body.Position[:]))
		b = appendMessage(b, frameBodies, inner)
	}
	for _, event := range frame.Events {
		var inner []byte
		inner = appendString(inner, eventBody, event.BodyID)
		inner = appendBool(inner, eventCleared, event.Cleared)
		b = appendMessage(b, frameEvents, inner)
	}
	b = appendString(b, frameSelected, frame.Selected)
	b = appendBool(b, frameWarpArrived, frame.WarpArrived)
	return b
}

// UnmarshalFrame decodes the binary layout. Unknown fields are skipped.
func UnmarshalFrame(data []byte) (Frame, error) {
	frame := Frame{Type: "frame"}
	err := walk(data, func(num protowire.Number, typ protowire.Type, value []byte, scalar uint64) error {
		switch num {
		case frameTick:
			frame.Tick = scalar
		case frameSimTime:
			frame.SimTime = math.Float64frombits(scalar)
		case frameMode:
			frame.Mode = string(value)
		case frameShip:
			return unmarshalShip(value, &frame.Ship)
		case frameCamera:
			return unmarshalCamera(value, &frame.Camera)
		case frameBodies:
			var body BodyPosition
			if err := walk(value, func(num protowire.Number, _ protowire.Type, value []byte, _ uint64) error {
				switch num {
				case bodyID:
					body.ID = string(value)
				case bodyPosition:
					return unmarshalVec(value, body.Position[:])
				}
				return nil
			}); err != nil {
				return err
			}
			frame.Bodies = append(frame.Bodies, body)
		case frameEvents:
			var event proximity.Event
			if err := walk(value, func(num protowire.Number, _ protowire.Type, value []byte, scalar uint64) error {
				switch num {
				case eventBody:
					event.BodyID = string(value)
				case eventCleared:
					event.Cleared = scalar != 0
				}
				return nil
			}); err != nil {
				return err
			}
			frame.Events = append(frame.Events, event)
		case frameSelected:
			frame.Selected = string(value)
		case frameWarpArrived:
			frame.WarpArrived = scalar != 0
		}
		return nil
	})
	if err != nil {
		return Frame{}, err
	}
	return frame, nil
}

func marshalShip(ship ShipState) []byte {
	var b []byte
	b = appendMessage(b, shipPosition, marshalVec(ship.Position[:]))
	b = appendMessage(b, shipVelocity, marshalVec(ship.Velocity[:]))
	b = appendDouble(b, shipYaw, ship.Yaw)
	b = appendDouble(b, shipPitch, ship.Pitch)
	b = appendMessage(b, shipRotation, marshalVec(ship.Rotation[:]))
	return b
}

func unmarshalShip(data []byte, ship *ShipState) error {
	return walk(data, func(num protowire.Number, _ protowire.Type, value []byte, scalar uint64) error {
		switch num {
		case shipPosition:
			return unmarshalVec(value, ship.Position[:])
		case shipVelocity:
			return unmarshalVec(value, ship.Velocity[:])
		case shipYaw:
			ship.Yaw = math.Float64frombits(scalar)
		case shipPitch:
			ship.Pitch = math.Float64frombits(scalar)
		case shipRotation:
			return unmarshalVec(value, ship.Rotation[:])
		}
		return nil
	})
}

func marshalCamera(camera CameraState) []byte {
	var b []byte
	b = appendMessage(b, cameraPosition, marshalVec(camera.Position[:]))
	b = appendMessage(b, cameraLookAt, marshalVec(camera.LookAt[:]))
	b = appendMessage(b, cameraOrientation, marshalVec(camera.Orientation[:]))
	return b
}

func unmarshalCamera(data []byte, camera *CameraState) error {
	return walk(data, func(num protowire.Number, _ protowire.Type, value []byte, _ uint64) error {
		switch num {
		case cameraPosition:
			return unmarshalVec(value, camera.Position[:])
		case cameraLookAt:
			return unmarshalVec(value, camera.LookAt[:])
		case cameraOrientation:
			return unmarshalVec(value, camera.Orientation[:])
		}
		return nil
	})
}

// marshalVec writes components as fields 1..n of fixed64 doubles.
func marshalVec(components []float64) []byte {
	var b []byte
	for idx, component := range components {
		b = appendDouble(b, protowire.Number(idx+1), component)
	}
	return b
}

func unmarshalVec(data []byte, out []float64) error {
	return walk(data, func(num protowire.Number, typ protowire.Type, _ []byte, scalar uint64) error {
		idx := int(num) - 1
		if idx < 0 || idx >= len(out) || typ != protowire.Fixed64Type {
			return nil
		}
		out[idx] = math.Float64frombits(scalar)
		return nil
	})
}

// walk visits each field. Length-delimited values arrive in value, everything else in scalar.
func walk(data []byte, visit func(num protowire.Number, typ protowire.Type, value []byte, scalar uint64) error) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(n))
		}
		data = data[n:]
		var (
			value  []byte
			scalar uint64
		)
		switch typ {
		case protowire.VarintType:
			scalar, n = protowire.ConsumeVarint(data)
		case protowire.Fixed64Type:
			scalar, n = protowire.ConsumeFixed64(data)
		case protowire.Fixed32Type:
			var v uint32
			v, n = protowire.ConsumeFixed32(data)
			scalar = uint64(v)
		case protowire.BytesType:
			value, n = protowire.ConsumeBytes(data)
		default:
			n = protowire.ConsumeFieldValue(num, typ, data)
		}
		if n < 0 {
			return fmt.Errorf("%w: field %d: %v", ErrMalformed, num, protowire.ParseError(n))
		}
		data = data[n:]
		if err := visit(num, typ, value, scalar); err != nil {
			return err
		}
	}
	return nil
}

func appendVarint(b []byte, num protowire.Number, value uint64) []byte {
	if value == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, value)
}

func appendBool(b []byte, num protowire.Number, value bool) []byte {
	if !value {
		return b
	}
	return appendVarint(b, num, 1)
}

func appendDouble(b []byte, num protowire.Number, value float64) []byte {
	if value == 0 && !math.Signbit(value) {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.Fixed64Type)
	return protowire.AppendFixed64(b, math.Float64bits(value))
}

func appendString(b []byte, num protowire.Number, value string) []byte {
	if value == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, value)
}

func appendBytes(b []byte, num protowire.Number, value []byte) []byte {
	if len(value) == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, value)
}

// appendMessage always writes the field so an all-zero submessage still round-trips as present.
func appendMessage(b []byte, num protowire.Number, inner []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, inner)
}
