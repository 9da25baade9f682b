package logging

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/gzip"

	"starfolio/navigator/internal/config"
)

// backupStamp sorts lexically in time order, so the backup list needs no stat calls.
const backupStamp = "20060102T150405.000000000"

// rotatingWriter appends to one file and moves it aside once a write would exceed limit.
// Backups are named <file>.<stamp>, gzip-compressed when enabled, and pruned by count
// and age after every rotation.
type rotatingWriter struct {
	mu       sync.Mutex
	path     string
	limit    int64
	keep     int
	maxAge   time.Duration
	compress bool
	now      func() time.Time

	file    *os.File
	written int64
}

func newRotatingWriter(cfg config.LoggingConfig) (*rotatingWriter, error) {
	var problems []string
	if cfg.MaxSizeMB <= 0 {
		problems = append(problems, "NAV_LOG_MAX_SIZE_MB must be positive")
	}
	if cfg.MaxBackups < 0 {
		problems = append(problems, "NAV_LOG_MAX_BACKUPS must be non-negative")
	}
	if cfg.MaxAgeDays < 0 {
		problems = append(problems, "NAV_LOG_MAX_AGE_DAYS must be non-negative")
	}
	if len(problems) > 0 {
		return nil, errors.New(strings.Join(problems, "; "))
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	w := &rotatingWriter{
		path:     cfg.Path,
		limit:    int64(cfg.MaxSizeMB) << 20,
		keep:     cfg.MaxBackups,
		maxAge:   time.Duration(cfg.MaxAgeDays) * 24 * time.Hour,
		compress: cfg.Compress,
		now:      time.Now,
	}
	if err := w.open(os.O_APPEND); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *rotatingWriter) open(mode int) error {
	file, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|mode, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return fmt.Errorf("stat log file: %w", err)
	}
	w.file = file
	w.written = info.Size()
	return nil
}

func (w *rotatingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.written > 0 && w.written+int64(len(p)) > w.limit {
		if err := w.rotate(); err != nil {
			return 0, err
		}
	}
	n, err := w.file.Write(p)
	w.written += int64(n)
	return n, err
}

func (w *rotatingWriter) Sync() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	return w.file.Sync()
}

func (w *rotatingWriter) rotate() error {
	if err := w.file.Close(); err != nil {
		return fmt.Errorf("close log file: %w", err)
	}
	backup := w.path + "." + w.now().UTC().Format(backupStamp)
	if err := os.Rename(w.path, backup); err != nil {
		return fmt.Errorf("rotate log file: %w", err)
	}
	if w.compress {
		if err := gzipInPlace(backup); err != nil {
			fmt.Fprintf(os.Stderr, "log backup %s left uncompressed: %v\n", backup, err)
		}
	}
	w.prune()
	return w.open(os.O_TRUNC)
}

// prune drops backups beyond keep (newest first) and any older than maxAge.
func (w *rotatingWriter) prune() {
	matches, err := filepath.Glob(w.path + ".*")
	if err != nil {
		return
	}
	slices.Sort(matches)
	slices.Reverse(matches)
	var cutoff time.Time
	if w.maxAge > 0 {
		cutoff = w.now().Add(-w.maxAge)
	}
	for idx, name := range matches {
		expired := w.keep > 0 && idx >= w.keep
		if !expired && !cutoff.IsZero() {
			stamp := strings.TrimSuffix(strings.TrimPrefix(name, w.path+"."), ".gz")
			if at, err := time.Parse(backupStamp, stamp); err == nil && at.Before(cutoff) {
				expired = true
			}
		}
		if expired {
			_ = os.Remove(name)
		}
	}
}

// gzipInPlace replaces path with path.gz.
func gzipInPlace(path string) error {
	src, err := os.Open(path)
	if err != nil {
		return err
	}
	defer src.Close()
	dst, err := os.OpenFile(path+".gz", os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	zw := gzip.NewWriter(dst)
	_, copyErr := io.Copy(zw, src)
	closeErr := errors.Join(zw.Close(), dst.Close())
	if err := errors.Join(copyErr, closeErr); err != nil {
		_ = os.Remove(path + ".gz")
		return err
	}
	return os.Remove(path)
}
