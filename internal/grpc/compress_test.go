package grpc

import (
	"bytes"
	"errors"
	"testing"
)

func TestCompressorRoundTrip(t *testing.T) {
	payload := []byte("frame frame frame frame frame")
	for _, name := range []string{"gzip", "snappy", "none"} {
		compressor, err := NewCompressor(name)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		compressed, err := compressor.Compress(payload)
		if err != nil {
			t.Fatalf("%s compress: %v", name, err)
		}
		if len(compressed) == 0 {
			t.Fatalf("%s: compressed payload empty", name)
		}
		decompressed, err := compressor.Decompress(compressed)
		if err != nil {
			t.Fatalf("%s decompress: %v", name, err)
		}
		if string(decompressed) != string(payload) {
			t.Fatalf("%s round trip mismatch: got %q want %q", name, decompressed, payload)
		}
	}
}

func TestDecompressEmpty(t *testing.T) {
	for _, compressor := range []Compressor{NewGZIPCompressor(), NewSnappyCompressor()} {
		if _, err := compressor.Decompress(nil); err == nil {
			t.Fatalf("%s: expected error for empty payload", compressor.Name())
		}
	}
}

func TestNewCompressorRejectsUnknown(t *testing.T) {
	if _, err := NewCompressor("brotli"); err == nil {
		t.Fatal("expected unknown compressor to fail")
	}
	compressor, err := NewCompressor("")
	if err != nil || compressor.Name() != "snappy" {
		t.Fatalf("expected snappy default, got %v %v", compressor, err)
	}
}

func TestEncodingLabel(t *testing.T) {
	if got := encodingLabel("binary", NewGZIPCompressor()); got != "binary+gzip" {
		t.Fatalf("unexpected label %q", got)
	}
	if got := encodingLabel("binary", identityCompressor{}); got != "binary" {
		t.Fatalf("unexpected identity label %q", got)
	}
	base, suffix := splitEncoding("JSON+Snappy")
	if base != "json" || suffix != "snappy" {
		t.Fatalf("unexpected split %q %q", base, suffix)
	}
}

func TestDecompressRefusesOversizedPayloads(t *testing.T) {
	//1.- Zeros compress to almost nothing, which is exactly the shape of a bomb.
	huge := bytes.Repeat([]byte{0}, maxInflated+1)
	for _, compressor := range []Compressor{NewGZIPCompressor(), NewSnappyCompressor()} {
		packed, err := compressor.Compress(huge)
		if err != nil {
			t.Fatalf("%s compress: %v", compressor.Name(), err)
		}
		if _, err := compressor.Decompress(packed); !errors.Is(err, ErrPayloadTooLarge) {
			t.Fatalf("%s: expected size refusal, got %v", compressor.Name(), err)
		}
	}
}

func TestGZIPCompressorReusesWriters(t *testing.T) {
	compressor := NewGZIPCompressor()
	for _, payload := range []string{"first frame", "second frame is longer"} {
		packed, err := compressor.Compress([]byte(payload))
		if err != nil {
			t.Fatalf("compress: %v", err)
		}
		out, err := compressor.Decompress(packed)
		if err != nil || string(out) != payload {
			t.Fatalf("expected %q back, got %q (%v)", payload, out, err)
		}
	}
}
