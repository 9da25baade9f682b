// Package replaycatalog indexes the flight recordings under a recording root.
package replaycatalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"starfolio/navigator/internal/replay"
)

// Entry is one recording directory. Open recordings have a manifest but no header yet;
// a recording whose header cannot be read carries the reason in Problem.
type Entry struct {
	Name         string        `json:"name"`
	Dir          string        `json:"dir"`
	ManifestPath string        `json:"manifest_path"`
	Open         bool          `json:"open"`
	CreatedAt    time.Time     `json:"created_at"`
	Header       replay.Header `json:"header"`
	Problem      string        `json:"problem,omitempty"`
}

// Filter narrows a listing. Zero fields match everything.
type Filter struct {
	SessionID string
	Since     time.Time
}

func (f Filter) match(entry Entry) bool {
	if f.SessionID != "" && entry.Header.SessionID != f.SessionID {
		return false
	}
	return f.Since.IsZero() || !entry.CreatedAt.Before(f.Since)
}

// List indexes every recording directly under root, newest first.
func List(root string) ([]Entry, error) {
	return ListFiltered(root, Filter{})
}

// ListFiltered indexes the recordings under root that match filter, newest first.
// Directories without a manifest are not recordings and are skipped.
func ListFiltered(root string, filter Filter) ([]Entry, error) {
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("root directory must be provided")
	}
	dirs, err := os.ReadDir(root)
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(dirs))
	for _, dir := range dirs {
		if !dir.IsDir() {
			continue
		}
		entry, ok := inspect(filepath.Join(root, dir.Name()))
		if ok && filter.match(entry) {
			entries = append(entries, entry)
		}
	}
	slices.SortFunc(entries, func(a, b Entry) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.Name, b.Name)
	})
	return entries, nil
}

func inspect(dir string) (Entry, bool) {
	manifest, err := replay.ReadManifest(dir)
	if errors.Is(err, os.ErrNotExist) {
		return Entry{}, false
	}
	entry := Entry{Name: filepath.Base(dir), Dir: dir, ManifestPath: filepath.Join(dir, "manifest.json")}
	if err != nil {
		entry.Problem = err.Error()
		return entry, true
	}
	entry.CreatedAt, _ = time.Parse(time.RFC3339Nano, manifest.CreatedAt)

	header, err := replay.ReadHeader(replay.HeaderPath(dir))
	switch {
	case errors.Is(err, os.ErrNotExist):
		entry.Open = true
		entry.Header.FrameFormat = manifest.FrameFormat
	case err != nil:
		entry.Problem = err.Error()
	default:
		entry.Header = header
	}
	return entry, true
}

// Summary renders the entry for terminal output.
func (e Entry) Summary() string {
	var b strings.Builder
	state := "closed"
	switch {
	case e.Problem != "":
		state = "damaged"
	case e.Open:
		state = "open"
	}
	fmt.Fprintf(&b, "%s [%s, %s]\n", e.Name, state, e.Header.FrameFormat)
	if e.Problem != "" {
		fmt.Fprintf(&b, "  problem: %s\n", e.Problem)
		return b.String()
	}
	if !e.Open {
		fmt.Fprintf(&b, "  pilot %s seed %d step %v\n", e.Header.SessionID, e.Header.SessionSeed, e.Header.Step())
		fmt.Fprintf(&b, "  %d events, %d frames, closed %s\n", e.Header.EventCount, e.Header.FrameCount, e.Header.ClosedAt.Format(time.RFC3339))
	}
	return b.String()
}

// MarshalEntries produces a stable JSON representation of the entries for CLI output.
func MarshalEntries(entries []Entry) ([]byte, error) {
	return json.MarshalIndent(entries, "", "  ")
}
