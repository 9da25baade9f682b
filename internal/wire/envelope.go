package wire

import (
	"google.golang.org/protobuf/encoding/protowire"
)

const (
	controlPilotID  protowire.Number = 1
	controlSequence protowire.Number = 2
	controlEncoding protowire.Number = 3
	controlPayload  protowire.Number = 4

	frameEnvTick     protowire.Number = 1
	frameEnvEncoding protowire.Number = 2
	frameEnvPayload  protowire.Number = 3
)

// ControlEnvelope carries one JSON control message over the streaming RPC.
type ControlEnvelope struct {
	PilotID  string
	Sequence uint64
	Encoding string
	Payload  []byte
}

// MarshalWire encodes the envelope in its protobuf-compatible layout.
func (e *ControlEnvelope) MarshalWire() ([]byte, error) {
	var b []byte
	b = appendString(b, controlPilotID, e.PilotID)
	b = appendVarint(b, controlSequence, e.Sequence)
	b = appendString(b, controlEncoding, e.Encoding)
	b = appendBytes(b, controlPayload, e.Payload)
	return b, nil
}

// UnmarshalWire decodes the envelope, replacing any existing contents.
func (e *ControlEnvelope) UnmarshalWire(data []byte) error {
	*e = ControlEnvelope{}
	return walk(data, func(num protowire.Number, _ protowire.Type, value []byte, scalar uint64) error {
		switch num {
		case controlPilotID:
			e.PilotID = string(value)
		case controlSequence:
			e.Sequence = scalar
		case controlEncoding:
			e.Encoding = string(value)
		case controlPayload:
			e.Payload = append([]byte(nil), value...)
		}
		return nil
	})
}

// FrameEnvelope carries one encoded frame over the streaming RPC. Encoding is a Format label.
type FrameEnvelope struct {
	Tick     uint64
	Encoding string
	Payload  []byte
}

// MarshalWire encodes the envelope in its protobuf-compatible layout.
func (e *FrameEnvelope) MarshalWire() ([]byte, error) {
	var b []byte
	b = appendVarint(b, frameEnvTick, e.Tick)
	b = appendString(b, frameEnvEncoding, e.Encoding)
	b = appendBytes(b, frameEnvPayload, e.Payload)
	return b, nil
}

// UnmarshalWire decodes the envelope, replacing any existing contents.
func (e *FrameEnvelope) UnmarshalWire(data []byte) error {
	*e = FrameEnvelope{}
	return walk(data, func(num protowire.Number, _ protowire.Type, value []byte, scalar uint64) error {
		switch num {
		case frameEnvTick:
			e.Tick = scalar
		case frameEnvEncoding:
			e.Encoding = string(value)
		case frameEnvPayload:
			e.Payload = append([]byte(nil), value...)
		}
		return nil
	})
}
