package replay

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
)

// FrameRecord is one encoded frame read back from a recording.
type FrameRecord struct {
	Tick        uint64
	SimulatedMs int64
	CapturedAt  time.Time
	Payload     []byte
}

// TimelineEntry interleaves control events and frames in simulated-time order.
type TimelineEntry struct {
	Tick        uint64
	SimulatedMs int64
	Type        string
	Event       *EventRecord
	Frame       *FrameRecord
}

// Recording is a fully loaded flight recording.
type Recording struct {
	Dir      string
	Manifest Manifest
	Header   Header
	Events   []EventRecord
	Frames   []FrameRecord
}

// Load reads every artefact of the recording in dir.
func Load(dir string) (*Recording, error) {
	if dir == "" {
		return nil, fmt.Errorf("recording path must be provided")
	}
	manifest, err := ReadManifest(dir)
	if err != nil {
		return nil, err
	}
	rec := &Recording{Dir: dir, Manifest: manifest}
	//1.- A recording interrupted before Close has no header; frames and events still load.
	if header, err := ReadHeader(HeaderPath(dir)); err == nil {
		rec.Header = header
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read header: %w", err)
	}

	if rec.Events, err = readEvents(filepath.Join(dir, rec.Manifest.EventsPath)); err != nil {
		return nil, err
	}
	if rec.Frames, err = readFrames(filepath.Join(dir, rec.Manifest.FramesPath)); err != nil {
		return nil, err
	}
	return rec, nil
}

// ReadManifest loads the manifest every recording directory starts with.
func ReadManifest(dir string) (Manifest, error) {
	var manifest Manifest
	data, err := os.ReadFile(filepath.Join(dir, manifestName))
	if err != nil {
		return manifest, err
	}
	if err := json.Unmarshal(data, &manifest); err != nil {
		return manifest, fmt.Errorf("decode manifest: %w", err)
	}
	return manifest, nil
}

// HeaderPath is where a closed recording keeps its header.
func HeaderPath(dir string) string {
	return filepath.Join(dir, headerName)
}

func readEvents(path string) ([]EventRecord, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var events []EventRecord
	scanner := bufio.NewScanner(snappy.NewReader(file))
	scanner.Buffer(make([]byte, 0, 64<<10), 4<<20)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var event EventRecord
		if err := json.Unmarshal(line, &event); err != nil {
			return nil, fmt.Errorf("decode event line %d: %w", len(events)+1, err)
		}
		events = append(events, event)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read events: %w", err)
	}
	return events, nil
}

func readFrames(path string) ([]FrameRecord, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	decoder, err := zstd.NewReader(file)
	if err != nil {
		return nil, err
	}
	defer decoder.Close()

	var frames []FrameRecord
	header := make([]byte, frameRecordHeader)
	for {
		if _, err := io.ReadFull(decoder, header); err != nil {
			if errors.Is(err, io.EOF) {
				return frames, nil
			}
			return nil, fmt.Errorf("read frame header: %w", err)
		}
		frame := FrameRecord{
			Tick:        binary.LittleEndian.Uint64(header[0:8]),
			SimulatedMs: int64(binary.LittleEndian.Uint64(header[8:16])),
			CapturedAt:  time.Unix(0, int64(binary.LittleEndian.Uint64(header[16:24]))).UTC(),
			Payload:     make([]byte, binary.LittleEndian.Uint32(header[24:28])),
		}
		if _, err := io.ReadFull(decoder, frame.Payload); err != nil {
			return nil, fmt.Errorf("read frame %d payload: %w", frame.Tick, err)
		}
		frames = append(frames, frame)
	}
}

// Timeline merges events and frames. At equal ticks events sort first, since the
// control input they carry was applied before that tick's frame was produced.
func (r *Recording) Timeline() []TimelineEntry {
	if r == nil {
		return nil
	}
	entries := make([]TimelineEntry, 0, len(r.Events)+len(r.Frames))
	for idx := range r.Events {
		event := &r.Events[idx]
		entries = append(entries, TimelineEntry{Tick: event.Tick, SimulatedMs: event.SimulatedMs, Type: "event", Event: event})
	}
	for idx := range r.Frames {
		frame := &r.Frames[idx]
		entries = append(entries, TimelineEntry{Tick: frame.Tick, SimulatedMs: frame.SimulatedMs, Type: "frame", Frame: frame})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Tick == entries[j].Tick {
			return entries[i].Type < entries[j].Type
		}
		return entries[i].Tick < entries[j].Tick
	})
	return entries
}

// Replay iterates over the timeline in order, stopping at the first callback error.
func (r *Recording) Replay(apply func(TimelineEntry) error) error {
	if r == nil {
		return fmt.Errorf("recording not loaded")
	}
	if apply == nil {
		return fmt.Errorf("replay callback must be provided")
	}
	for _, entry := range r.Timeline() {
		if err := apply(entry); err != nil {
			return err
		}
	}
	return nil
}
