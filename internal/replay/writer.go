package replay

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
)

// frameInterval batches frame writes; frames themselves are never skipped.
const frameInterval = 200 * time.Millisecond

const (
	manifestName = "manifest.json"
	headerName   = "header.json"
	eventsName   = "events.jsonl.sz"
	framesName   = "frames.bin.zst"

	// frameRecordHeader is tick, simulated ms, captured unix nanos and payload length.
	frameRecordHeader = 8 + 8 + 8 + 4

	dirStamp = "20060102T150405Z"
)

var unsafeDirRunes = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// ErrWriterClosed is returned by appends after Close.
var ErrWriterClosed = errors.New("recording writer closed")

// Manifest describes the recording layout so tooling can locate artefacts.
type Manifest struct {
	Version         int    `json:"version"`
	CreatedAt       string `json:"created_at"`
	FrameIntervalMs int    `json:"frame_interval_ms"`
	FrameFormat     string `json:"frame_format"`
	EventsPath      string `json:"events_path"`
	FramesPath      string `json:"frames_path"`
}

// EventRecord is one line of the event log.
type EventRecord struct {
	Tick        uint64          `json:"tick"`
	SimulatedMs int64           `json:"simulated_ms"`
	CapturedAt  string          `json:"captured_at"`
	Type        string          `json:"type"`
	Payload     json.RawMessage `json:"payload"`
}

// sinks owns the two compressed streams of a recording.
type sinks struct {
	eventFile *os.File
	events    *snappy.Writer
	frameFile *os.File
	frames    *zstd.Encoder
}

func openSinks(dir string) (*sinks, error) {
	eventFile, err := os.Create(filepath.Join(dir, eventsName))
	if err != nil {
		return nil, err
	}
	frameFile, err := os.Create(filepath.Join(dir, framesName))
	if err != nil {
		return nil, errors.Join(err, eventFile.Close())
	}
	frames, err := zstd.NewWriter(frameFile, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		return nil, errors.Join(err, eventFile.Close(), frameFile.Close())
	}
	return &sinks{
		eventFile: eventFile,
		events:    snappy.NewBufferedWriter(eventFile),
		frameFile: frameFile,
		frames:    frames,
	}, nil
}

// close finishes both streams before their files; every step runs.
func (s *sinks) close() error {
	return errors.Join(
		s.events.Close(),
		s.eventFile.Close(),
		s.frames.Close(),
		s.frameFile.Close(),
	)
}

type pendingFrame struct {
	tick        uint64
	simulatedMs int64
	capturedAt  time.Time
	payload     []byte
}

// Writer streams one pilot's flight to disk: control input as a snappy-compressed JSON
// event log and encoded frames as a zstd-compressed length-prefixed stream.
type Writer struct {
	mu        sync.Mutex
	dir       string
	now       func() time.Time
	out       *sinks
	pending   []pendingFrame
	scratch   []byte
	lastFlush time.Time
	header    Header
	closed    bool
}

// NewWriter creates <root>/<session>-<utc stamp>, writes the manifest and opens the sinks.
func NewWriter(root, sessionID, frameFormat string, clock func() time.Time) (*Writer, Manifest, error) {
	if root == "" {
		return nil, Manifest{}, fmt.Errorf("recording root must be provided")
	}
	if clock == nil {
		clock = time.Now
	}
	created := clock().UTC()
	dir := filepath.Join(root, recordingDirName(sessionID, created))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, Manifest{}, err
	}

	manifest := Manifest{
		Version:         1,
		CreatedAt:       created.Format(time.RFC3339Nano),
		FrameIntervalMs: int(frameInterval / time.Millisecond),
		FrameFormat:     frameFormat,
		EventsPath:      eventsName,
		FramesPath:      framesName,
	}
	if err := writeManifest(dir, manifest); err != nil {
		return nil, Manifest{}, err
	}
	out, err := openSinks(dir)
	if err != nil {
		return nil, Manifest{}, err
	}
	return &Writer{
		dir: dir,
		now: clock,
		out: out,
		header: Header{
			SchemaVersion: HeaderSchemaVersion,
			SessionID:     sessionID,
			FrameFormat:   frameFormat,
			FilePointer:   manifestName,
		},
	}, manifest, nil
}

func recordingDirName(sessionID string, created time.Time) string {
	name := unsafeDirRunes.ReplaceAllString(sessionID, "")
	if name == "" {
		name = "flight"
	}
	return name + "-" + created.Format(dirStamp)
}

func writeManifest(dir string, manifest Manifest) error {
	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, manifestName), data, 0o644)
}

// Directory exposes the directory backing the recording.
func (w *Writer) Directory() string {
	if w == nil {
		return ""
	}
	return w.dir
}

// SetHeaderMetadata records what is needed to rebuild the session: seed, step, tuning and phases.
func (w *Writer) SetHeaderMetadata(seed uint64, step time.Duration, tuning TuningParameters, phases map[string]float64) {
	if w == nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.header.SessionSeed = seed
	w.header.StepMs = float64(step) / float64(time.Millisecond)
	w.header.Tuning = tuning.Clone()
	w.header.Phases = nil
	if len(phases) > 0 {
		w.header.Phases = make(map[string]float64, len(phases))
		for id, phase := range phases {
			w.header.Phases[id] = phase
		}
	}
}

// AppendEvent writes one JSON event line and flushes it, so a crash loses at most the
// frames still batched. Payload must already be valid JSON.
func (w *Writer) AppendEvent(tick uint64, simulatedMs int64, eventType string, payload []byte) error {
	if w == nil {
		return fmt.Errorf("writer not initialised")
	}
	if !json.Valid(payload) {
		return fmt.Errorf("event %q payload is not valid JSON", eventType)
	}
	line, err := json.Marshal(EventRecord{
		Tick:        tick,
		SimulatedMs: simulatedMs,
		CapturedAt:  w.now().UTC().Format(time.RFC3339Nano),
		Type:        eventType,
		Payload:     payload,
	})
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrWriterClosed
	}
	if _, err := w.out.events.Write(append(line, '\n')); err != nil {
		return err
	}
	w.header.EventCount++
	return w.out.events.Flush()
}

// AppendFrame stages an encoded frame and flushes the batch once the interval has passed.
func (w *Writer) AppendFrame(tick uint64, simulatedMs int64, payload []byte) error {
	if w == nil {
		return fmt.Errorf("writer not initialised")
	}
	frame := pendingFrame{
		tick:        tick,
		simulatedMs: simulatedMs,
		capturedAt:  w.now().UTC(),
		payload:     append([]byte(nil), payload...),
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrWriterClosed
	}
	w.pending = append(w.pending, frame)
	w.header.FrameCount++
	switch {
	case w.lastFlush.IsZero():
		w.lastFlush = frame.capturedAt
	case frame.capturedAt.Sub(w.lastFlush) >= frameInterval:
		w.lastFlush = frame.capturedAt
		return w.flushLocked()
	}
	return nil
}

// Flush forces pending frames to be written regardless of cadence.
func (w *Writer) Flush() error {
	if w == nil {
		return fmt.Errorf("writer not initialised")
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrWriterClosed
	}
	w.lastFlush = w.now().UTC()
	return w.flushLocked()
}

// Close drains pending frames, writes the header and releases the files. It is
// idempotent; every step runs and all failures are joined.
func (w *Writer) Close() error {
	if w == nil {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true

	flushErr := w.flushLocked()
	closeErr := w.out.close()
	w.header.ClosedAt = w.now().UTC()
	headerErr := WriteHeader(filepath.Join(w.dir, headerName), w.header)
	return errors.Join(flushErr, closeErr, headerErr)
}

// flushLocked writes buffered frames to the zstd stream; callers must hold the mutex.
func (w *Writer) flushLocked() error {
	for idx, frame := range w.pending {
		w.scratch = appendFrameRecord(w.scratch[:0], frame)
		if _, err := w.out.frames.Write(w.scratch); err != nil {
			w.pending = w.pending[idx:]
			return err
		}
	}
	w.pending = w.pending[:0]
	return nil
}

func appendFrameRecord(dst []byte, frame pendingFrame) []byte {
	dst = binary.LittleEndian.AppendUint64(dst, frame.tick)
	dst = binary.LittleEndian.AppendUint64(dst, uint64(frame.simulatedMs))
	dst = binary.LittleEndian.AppendUint64(dst, uint64(frame.capturedAt.UnixNano()))
	dst = binary.LittleEndian.AppendUint32(dst, uint32(len(frame.payload)))
	return append(dst, frame.payload...)
}
