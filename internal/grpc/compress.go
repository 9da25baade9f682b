package grpc

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/gzip"
)

// maxInflated bounds a decompressed envelope. Control messages are a few hundred bytes
// and frames a few KiB, so anything near this is hostile.
const maxInflated = 1 << 20

// ErrPayloadTooLarge marks an envelope that inflates past maxInflated.
var ErrPayloadTooLarge = errors.New("payload inflates past limit")

// Compressor is the envelope codec negotiated through the encoding label suffix.
type Compressor interface {
	Name() string
	Compress(data []byte) ([]byte, error)
	Decompress(data []byte) ([]byte, error)
}

// NewCompressor resolves a configured compressor name: gzip, snappy, or none.
func NewCompressor(name string) (Compressor, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "gzip":
		return NewGZIPCompressor(), nil
	case "", "snappy":
		return NewSnappyCompressor(), nil
	case "none":
		return identityCompressor{}, nil
	default:
		return nil, fmt.Errorf("unsupported compressor %q", name)
	}
}

// gzipCompressor reuses writers across frames; a stream sends sixty per second.
type gzipCompressor struct {
	writers *sync.Pool
}

// NewGZIPCompressor constructs a Compressor backed by klauspost gzip at BestSpeed.
func NewGZIPCompressor() Compressor {
	return gzipCompressor{writers: &sync.Pool{New: func() any {
		writer, _ := gzip.NewWriterLevel(io.Discard, gzip.BestSpeed)
		return writer
	}}}
}

func (gzipCompressor) Name() string { return "gzip" }

func (c gzipCompressor) Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	writer := c.writers.Get().(*gzip.Writer)
	defer c.writers.Put(writer)
	writer.Reset(&buf)
	if _, err := writer.Write(data); err != nil {
		return nil, fmt.Errorf("gzip write: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("gzip close: %w", err)
	}
	return buf.Bytes(), nil
}

func (gzipCompressor) Decompress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, errors.New("gzip decompress: empty payload")
	}
	reader, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("gzip reader: %w", err)
	}
	defer reader.Close()
	out, err := io.ReadAll(io.LimitReader(reader, maxInflated+1))
	if err != nil {
		return nil, fmt.Errorf("gzip read: %w", err)
	}
	if len(out) > maxInflated {
		return nil, ErrPayloadTooLarge
	}
	return out, nil
}

// snappyCompressor uses snappy block encoding, trading ratio for latency.
type snappyCompressor struct{}

// NewSnappyCompressor constructs a Compressor backed by snappy blocks.
func NewSnappyCompressor() Compressor {
	return snappyCompressor{}
}

func (snappyCompressor) Name() string { return "snappy" }

func (snappyCompressor) Compress(data []byte) ([]byte, error) {
	return snappy.Encode(nil, data), nil
}

func (snappyCompressor) Decompress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, errors.New("snappy decompress: empty payload")
	}
	//1.- The block header states the inflated size, so check it before allocating.
	size, err := snappy.DecodedLen(data)
	if err != nil {
		return nil, fmt.Errorf("snappy header: %w", err)
	}
	if size > maxInflated {
		return nil, ErrPayloadTooLarge
	}
	out, err := snappy.Decode(nil, data)
	if err != nil {
		return nil, fmt.Errorf("snappy decode: %w", err)
	}
	return out, nil
}

// identityCompressor passes payloads through untouched.
type identityCompressor struct{}

func (identityCompressor) Name() string { return "" }

func (identityCompressor) Compress(data []byte) ([]byte, error) { return data, nil }

func (identityCompressor) Decompress(data []byte) ([]byte, error) {
	if len(data) > maxInflated {
		return nil, ErrPayloadTooLarge
	}
	return data, nil
}

// encodingLabel joins a payload format label with the compressor name, for example
// "binary+gzip". The identity compressor leaves the label unchanged.
func encodingLabel(base string, compressor Compressor) string {
	if compressor == nil || compressor.Name() == "" {
		return base
	}
	return base + "+" + compressor.Name()
}

// splitEncoding separates a label into its payload format and compressor suffix.
func splitEncoding(label string) (base, compressor string) {
	base, compressor, _ = strings.Cut(strings.ToLower(strings.TrimSpace(label)), "+")
	return base, compressor
}
