package wire

import (
	"fmt"
	"strings"
)

// Encoding selects how frames are serialised.
type Encoding int

const (
	EncodingJSON Encoding = iota
	EncodingBinary
)

// String names the encoding on the wire and in envelopes.
func (e Encoding) String() string {
	if e == EncodingBinary {
		return "binary"
	}
	return "json"
}

// Compression selects the block compressor applied after encoding.
type Compression int

const (
	CompressionNone Compression = iota
	CompressionSnappy
)

// String names the compression on the wire and in envelopes.
func (c Compression) String() string {
	if c == CompressionSnappy {
		return "snappy"
	}
	return "none"
}

// Format pairs an encoding with a compression.
type Format struct {
	Encoding    Encoding
	Compression Compression
}

// Binary reports whether the encoded payload must travel as a binary message.
func (f Format) Binary() bool {
	return f.Encoding == EncodingBinary || f.Compression == CompressionSnappy
}

// Label is the compact envelope tag, for example "binary+snappy".
func (f Format) Label() string {
	if f.Compression == CompressionNone {
		return f.Encoding.String()
	}
	return f.Encoding.String() + "+" + f.Compression.String()
}

// ParseFormat accepts the query-string spelling used by clients (encoding and compress
// parameters) and rejects anything else.
func ParseFormat(encoding, compression string) (Format, error) {
	var format Format
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "", "json":
		format.Encoding = EncodingJSON
	case "binary", "proto", "protobuf":
		format.Encoding = EncodingBinary
	default:
		return Format{}, fmt.Errorf("unsupported encoding %q", encoding)
	}
	switch strings.ToLower(strings.TrimSpace(compression)) {
	case "", "none":
		format.Compression = CompressionNone
	case "snappy":
		format.Compression = CompressionSnappy
	default:
		return Format{}, fmt.Errorf("unsupported compression %q", compression)
	}
	return format, nil
}

// ParseLabel reverses Label.
func ParseLabel(label string) (Format, error) {
	encoding, compression, _ := strings.Cut(label, "+")
	return ParseFormat(encoding, compression)
}
