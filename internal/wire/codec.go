package wire

import (
	"encoding/json"
	"fmt"

	"github.com/golang/snappy"
)

// EncodeFrame serialises and optionally compresses a frame.
func EncodeFrame(frame Frame, format Format) ([]byte, error) {
	var (
		payload []byte
		err     error
	)
	switch format.Encoding {
	case EncodingBinary:
		payload = MarshalFrame(frame)
	default:
		payload, err = json.Marshal(frame)
		if err != nil {
			return nil, fmt.Errorf("encode frame: %w", err)
		}
	}
	if format.Compression == CompressionSnappy {
		payload = snappy.Encode(nil, payload)
	}
	return payload, nil
}

// DecodeFrame reverses EncodeFrame.
func DecodeFrame(data []byte, format Format) (Frame, error) {
	payload := data
	if format.Compression == CompressionSnappy {
		decoded, err := snappy.Decode(nil, data)
		if err != nil {
			return Frame{}, fmt.Errorf("snappy decode frame: %w", err)
		}
		payload = decoded
	}
	if format.Encoding == EncodingBinary {
		return UnmarshalFrame(payload)
	}
	var frame Frame
	if err := json.Unmarshal(payload, &frame); err != nil {
		return Frame{}, fmt.Errorf("decode frame: %w", err)
	}
	return frame, nil
}
