package replay

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"starfolio/navigator/internal/logging"
)

func TestCleanerEnforcesMaxRecordings(t *testing.T) {
	tmp := t.TempDir()
	now := time.Date(2024, 7, 15, 12, 0, 0, 0, time.UTC)
	//1.- Seed three flights so the cleaner has something to prune.
	writeRecordingDirectory(t, tmp, "alpha-20240715T090000Z", now.Add(-3*time.Hour), 4)
	writeRecordingDirectory(t, tmp, "bravo-20240715T100000Z", now.Add(-2*time.Hour), 2)
	writeRecordingDirectory(t, tmp, "charlie-20240715T110000Z", now.Add(-time.Hour), 3)

	cleaner := NewCleaner(tmp, RetentionPolicy{MaxRecordings: 2}, logging.NewTestLogger())
	cleaner.now = func() time.Time { return now }
	cleaner.RunOnce()

	remaining := listRecordings(t, tmp)
	if len(remaining) != 2 || remaining[0] != "bravo-20240715T100000Z" || remaining[1] != "charlie-20240715T110000Z" {
		t.Fatalf("unexpected retained recordings: %v", remaining)
	}

	stats := cleaner.Stats()
	if stats.Recordings != 2 || stats.Removed != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if stats.Bytes != int64(2+3) {
		t.Fatalf("expected byte total 5, got %d", stats.Bytes)
	}
	if stats.LastSweep.IsZero() {
		t.Fatalf("expected last sweep timestamp to be recorded")
	}
}

func TestCleanerPrunesByAgeAndIgnoresFiles(t *testing.T) {
	tmp := t.TempDir()
	now := time.Date(2024, 7, 16, 9, 0, 0, 0, time.UTC)
	writeRecordingDirectory(t, tmp, "echo-20240714T080000Z", now.Add(-72*time.Hour), 3)
	writeRecordingDirectory(t, tmp, "foxtrot-20240716T070000Z", now.Add(-time.Hour), 5)
	//1.- Loose files in the root are not recordings and must survive.
	if err := os.WriteFile(filepath.Join(tmp, "README"), []byte("keep"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cleaner := NewCleaner(tmp, RetentionPolicy{MaxAge: 36 * time.Hour, MaxRecordings: 5}, logging.NewTestLogger())
	cleaner.now = func() time.Time { return now }
	cleaner.RunOnce()

	remaining := listRecordings(t, tmp)
	if len(remaining) != 1 || remaining[0] != "foxtrot-20240716T070000Z" {
		t.Fatalf("expected only foxtrot to remain, got %v", remaining)
	}
	if _, err := os.Stat(filepath.Join(tmp, "README")); err != nil {
		t.Fatalf("expected stray file to survive: %v", err)
	}
}

func TestCleanerSparesOpenFlights(t *testing.T) {
	tmp := t.TempDir()
	now := time.Now()
	//1.- A headerless recording written seconds ago is still being flown.
	writeRecordingDirectory(t, tmp, "golf-open", now.Add(-10*time.Second), 2)
	writeRecordingDirectory(t, tmp, "hotel-closed", now.Add(-5*time.Minute), 1)

	cleaner := NewCleaner(tmp, RetentionPolicy{MaxRecordings: 1, MaxAge: time.Second}, logging.NewTestLogger())
	cleaner.now = func() time.Time { return now }
	cleaner.RunOnce()

	remaining := listRecordings(t, tmp)
	if len(remaining) != 1 || remaining[0] != "golf-open" {
		t.Fatalf("expected only the open flight to remain, got %v", remaining)
	}
	if stats := cleaner.Stats(); stats.Live != 1 || stats.Removed != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestCleanerAgesByHeaderCloseTime(t *testing.T) {
	tmp := t.TempDir()
	now := time.Date(2024, 7, 16, 9, 0, 0, 0, time.UTC)
	//1.- Files were touched recently but the flight closed two days ago.
	writeRecordingDirectory(t, tmp, "india", now.Add(-time.Hour), 1)
	header := Header{SchemaVersion: HeaderSchemaVersion, FilePointer: manifestName, ClosedAt: now.Add(-48 * time.Hour)}
	if err := WriteHeader(filepath.Join(tmp, "india", headerName), header); err != nil {
		t.Fatalf("WriteHeader: %v", err)
	}
	writeRecordingDirectory(t, tmp, "juliet", now.Add(-time.Hour), 1)

	cleaner := NewCleaner(tmp, RetentionPolicy{MaxAge: 24 * time.Hour}, logging.NewTestLogger())
	cleaner.now = func() time.Time { return now }
	cleaner.RunOnce()

	remaining := listRecordings(t, tmp)
	if len(remaining) != 1 || remaining[0] != "juliet" {
		t.Fatalf("expected the long-closed flight to be pruned, got %v", remaining)
	}
}

func writeRecordingDirectory(t *testing.T, dir, name string, mod time.Time, files int) {
	t.Helper()
	recDir := filepath.Join(dir, name)
	if err := os.MkdirAll(recDir, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	for i := 0; i < files; i++ {
		path := filepath.Join(recDir, fmt.Sprintf("part-%d.bin", i))
		if err := os.WriteFile(path, []byte{byte(i)}, 0o644); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
		if err := os.Chtimes(path, mod, mod); err != nil {
			t.Fatalf("Chtimes: %v", err)
		}
	}
	if err := os.Chtimes(recDir, mod, mod); err != nil {
		t.Fatalf("Chtimes dir: %v", err)
	}
}

func listRecordings(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	return names
}
