package grpc

import (
	"fmt"

	"google.golang.org/grpc/encoding"
)

// CodecName is the gRPC content-subtype carrying navigator envelopes.
const CodecName = "navwire"

type wireMarshaler interface {
	MarshalWire() ([]byte, error)
}

type wireUnmarshaler interface {
	UnmarshalWire([]byte) error
}

// Codec encodes envelopes through their protobuf-compatible wire methods, so the
// service needs no generated message types.
type Codec struct{}

func (Codec) Name() string { return CodecName }

func (Codec) Marshal(v any) ([]byte, error) {
	m, ok := v.(wireMarshaler)
	if !ok {
		return nil, fmt.Errorf("navwire: cannot marshal %T", v)
	}
	return m.MarshalWire()
}

func (Codec) Unmarshal(data []byte, v any) error {
	m, ok := v.(wireUnmarshaler)
	if !ok {
		return fmt.Errorf("navwire: cannot unmarshal into %T", v)
	}
	return m.UnmarshalWire(data)
}

func init() {
	encoding.RegisterCodec(Codec{})
}
