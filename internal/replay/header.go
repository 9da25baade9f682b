package replay

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"
)

// HeaderSchemaVersion is the newest header layout this package writes and reads.
const HeaderSchemaVersion = 1

// TuningParameters is the flattened navigation tuning, keyed like "warp.angle_spread".
type TuningParameters map[string]float64

// Clone copies the map so a writer never aliases the caller's tuning.
func (p TuningParameters) Clone() TuningParameters {
	if len(p) == 0 {
		return nil
	}
	return maps.Clone(p)
}

// Keys lists parameter names in lexical order.
func (p TuningParameters) Keys() []string {
	return slices.Sorted(maps.Keys(p))
}

// Header is written next to the manifest when a recording closes. Seed and phases
// rebuild the sky the pilot saw; the event log rebuilds the flight.
type Header struct {
	SchemaVersion int                `json:"schema_version"`
	SessionID     string             `json:"session_id"`
	SessionSeed   uint64             `json:"session_seed"`
	StepMs        float64            `json:"step_ms"`
	FrameFormat   string             `json:"frame_format"`
	EventCount    int                `json:"event_count"`
	FrameCount    int                `json:"frame_count"`
	ClosedAt      time.Time          `json:"closed_at"`
	Tuning        TuningParameters   `json:"tuning,omitempty"`
	Phases        map[string]float64 `json:"phases,omitempty"`
	FilePointer   string             `json:"file_pointer"`
}

// Step converts the recorded step back into a duration.
func (h Header) Step() time.Duration {
	return time.Duration(h.StepMs * float64(time.Millisecond))
}

// Validate reports every problem at once.
func (h Header) Validate() error {
	var problems []error
	switch {
	case h.SchemaVersion <= 0:
		problems = append(problems, errors.New("schema_version must be positive"))
	case h.SchemaVersion > HeaderSchemaVersion:
		problems = append(problems, fmt.Errorf("schema_version %d is newer than %d", h.SchemaVersion, HeaderSchemaVersion))
	}
	if strings.TrimSpace(h.FilePointer) == "" {
		problems = append(problems, errors.New("file_pointer must not be empty"))
	}
	if h.StepMs < 0 || math.IsNaN(h.StepMs) || math.IsInf(h.StepMs, 0) {
		problems = append(problems, fmt.Errorf("step_ms %v is not a usable step", h.StepMs))
	}
	if h.EventCount < 0 || h.FrameCount < 0 {
		problems = append(problems, errors.New("counts must not be negative"))
	}
	return errors.Join(problems...)
}

// WriteHeader stores the header through a temporary file so readers never see a
// partial document.
func WriteHeader(path string, header Header) error {
	if err := header.Validate(); err != nil {
		return fmt.Errorf("header %s: %w", path, err)
	}
	payload, err := json.MarshalIndent(header, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, append(payload, '\n'), 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

// ReadHeader loads a header. A missing file keeps os.ErrNotExist in the chain.
func ReadHeader(path string) (Header, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Header{}, err
	}
	var header Header
	if err := json.Unmarshal(data, &header); err != nil {
		return Header{}, fmt.Errorf("decode header %s: %w", path, err)
	}
	if err := header.Validate(); err != nil {
		return Header{}, fmt.Errorf("header %s: %w", path, err)
	}
	return header, nil
}
