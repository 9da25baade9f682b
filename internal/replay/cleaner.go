package replay

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"starfolio/navigator/internal/logging"
)

// liveGrace is how recently a recording without a header must have been written to
// count as an open flight. Open flights are never pruned.
const liveGrace = time.Minute

// RetentionPolicy bounds the recordings kept on disk. Zero disables a limit.
type RetentionPolicy struct {
	MaxRecordings int
	MaxAge        time.Duration
}

// StorageStats is the outcome of the last retention sweep.
type StorageStats struct {
	Recordings int
	Live       int
	Bytes      int64
	Removed    int
	LastSweep  time.Time
}

// Cleaner prunes closed recordings under a root directory.
type Cleaner struct {
	dir    string
	policy RetentionPolicy
	log    *logging.Logger
	now    func() time.Time

	mu    sync.RWMutex
	stats StorageStats
}

// NewCleaner constructs a cleaner for the provided recording root.
func NewCleaner(dir string, policy RetentionPolicy, logger *logging.Logger) *Cleaner {
	if logger == nil {
		logger = logging.L()
	}
	return &Cleaner{dir: dir, policy: policy, log: logger.With(logging.String("directory", dir)), now: time.Now}
}

// Run sweeps once immediately and then every interval until ctx ends.
func (c *Cleaner) Run(ctx context.Context, interval time.Duration) {
	if c == nil || ctx == nil {
		return
	}
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		c.RunOnce()
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// RunOnce performs a single retention sweep.
func (c *Cleaner) RunOnce() {
	if c == nil || strings.TrimSpace(c.dir) == "" {
		return
	}
	now := c.now()
	recordings, err := c.scan(now)
	if err != nil {
		c.log.Warn("recording retention scan failed", logging.Error(err))
		return
	}

	stats := StorageStats{LastSweep: now}
	kept := 0
	for _, rec := range recordings {
		if reason := c.expiry(rec, now, kept); reason != "" {
			if err := os.RemoveAll(rec.path); err != nil {
				c.log.Warn("recording retention removal failed", logging.Error(err), logging.String("recording", rec.name))
			} else {
				stats.Removed++
				c.log.Info("recording pruned", logging.String("recording", rec.name), logging.String("reason", reason))
				continue
			}
		}
		kept++
		stats.Recordings++
		stats.Bytes += rec.size
		if rec.live {
			stats.Live++
		}
	}
	c.mu.Lock()
	c.stats = stats
	c.mu.Unlock()
}

// Stats returns the outcome of the last sweep.
func (c *Cleaner) Stats() StorageStats {
	if c == nil {
		return StorageStats{}
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stats
}

type storedRecording struct {
	name string
	path string
	size int64
	// endedAt is the header's close time, or the newest write for recordings that
	// never closed.
	endedAt time.Time
	live    bool
}

// scan lists recording directories newest first. Stray files are left alone.
func (c *Cleaner) scan(now time.Time) ([]storedRecording, error) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return nil, err
	}
	recordings := make([]storedRecording, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		rec := storedRecording{name: entry.Name(), path: filepath.Join(c.dir, entry.Name())}
		size, lastWrite, err := footprint(rec.path)
		if err != nil {
			c.log.Warn("recording retention size failed", logging.Error(err), logging.String("recording", rec.name))
			continue
		}
		rec.size = size
		header, err := ReadHeader(filepath.Join(rec.path, headerName))
		switch {
		case err == nil && !header.ClosedAt.IsZero():
			rec.endedAt = header.ClosedAt
		case err == nil || errors.Is(err, os.ErrNotExist):
			rec.endedAt = lastWrite
			rec.live = err != nil && now.Sub(lastWrite) < liveGrace
		default:
			c.log.Warn("recording header unreadable", logging.Error(err), logging.String("recording", rec.name))
			rec.endedAt = lastWrite
		}
		recordings = append(recordings, rec)
	}
	slices.SortFunc(recordings, func(a, b storedRecording) int { return b.endedAt.Compare(a.endedAt) })
	return recordings, nil
}

// expiry names why rec should go, or returns "" to keep it.
func (c *Cleaner) expiry(rec storedRecording, now time.Time, kept int) string {
	if rec.live {
		return ""
	}
	var reasons []string
	if c.policy.MaxAge > 0 && now.Sub(rec.endedAt) > c.policy.MaxAge {
		reasons = append(reasons, "older than "+c.policy.MaxAge.String())
	}
	if c.policy.MaxRecordings > 0 && kept >= c.policy.MaxRecordings {
		reasons = append(reasons, "beyond newest "+strconv.Itoa(c.policy.MaxRecordings))
	}
	return strings.Join(reasons, "; ")
}

// footprint sums file sizes under root and reports the newest file write.
func footprint(root string) (int64, time.Time, error) {
	var (
		total  int64
		newest time.Time
	)
	err := filepath.WalkDir(root, func(_ string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		total += info.Size()
		if info.ModTime().After(newest) {
			newest = info.ModTime()
		}
		return nil
	})
	return total, newest, err
}
