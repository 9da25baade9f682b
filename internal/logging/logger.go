// Package logging writes one JSON object per line. Loggers carry ordered base fields,
// share a writer with every logger derived from them, and fall back to a process-wide
// logger when nil.
package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"starfolio/navigator/internal/config"
)

// ServiceName tags every line written by the navigator server.
const ServiceName = "navigator"

// Level orders log verbosity from Debug upwards.
type Level int

const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
	FatalLevel
)

var levelNames = [...]string{"debug", "info", "warn", "error", "fatal"}

func (l Level) String() string {
	if l < DebugLevel || l > FatalLevel {
		return "info"
	}
	return levelNames[l]
}

func parseLevel(raw string) (Level, error) {
	name := strings.ToLower(strings.TrimSpace(raw))
	switch name {
	case "":
		return InfoLevel, nil
	case "warning":
		return WarnLevel, nil
	}
	for idx, candidate := range levelNames {
		if candidate == name {
			return Level(idx), nil
		}
	}
	return InfoLevel, fmt.Errorf("unknown log level %q", raw)
}

type syncWriter interface {
	io.Writer
	Sync() error
}

// sink is the writer shared by a logger and everything derived from it.
type sink struct {
	mu  sync.Mutex
	out syncWriter
}

func (s *sink) emit(line []byte, flush bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, _ = s.out.Write(line)
	if flush {
		_ = s.out.Sync()
	}
}

// Logger emits structured lines at or above its level.
type Logger struct {
	sink   *sink
	level  Level
	fields []Field
	now    func() time.Time
}

var (
	globalMu     sync.RWMutex
	globalLogger = newDiscardLogger()
)

// New builds the server logger: a rotating file mirrored to stdout. It also becomes the
// global logger.
func New(cfg config.LoggingConfig) (*Logger, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("logging path must be specified")
	}
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	file, err := newRotatingWriter(cfg)
	if err != nil {
		return nil, err
	}
	out := teeWriter{file, consoleWriter{os.Stdout}}
	logger := newLogger(out, level, String("service", ServiceName))
	ReplaceGlobals(logger)
	return logger, nil
}

// NewConsole builds a logger that writes only to w, for tools that keep no log file.
func NewConsole(w io.Writer, level string, service string) (*Logger, error) {
	if w == nil {
		return nil, errors.New("console writer must not be nil")
	}
	parsed, err := parseLevel(level)
	if err != nil {
		return nil, err
	}
	return newLogger(consoleWriter{w}, parsed, String("service", service)), nil
}

// NewTestLogger discards everything.
func NewTestLogger() *Logger {
	return newDiscardLogger()
}

func newDiscardLogger() *Logger {
	return newLogger(consoleWriter{io.Discard}, DebugLevel)
}

func newLogger(out syncWriter, level Level, fields ...Field) *Logger {
	return &Logger{
		sink:   &sink{out: out},
		level:  level,
		fields: fields,
		now:    time.Now,
	}
}

// ReplaceGlobals swaps the logger returned by L. Nil is ignored.
func ReplaceGlobals(logger *Logger) {
	if logger == nil {
		return
	}
	globalMu.Lock()
	globalLogger = logger
	globalMu.Unlock()
}

// L returns the process-wide logger.
func L() *Logger {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalLogger
}

// With derives a logger whose lines carry fields after the parent's. A key repeated in
// fields replaces the inherited value in place.
func (l *Logger) With(fields ...Field) *Logger {
	if l == nil {
		return L().With(fields...)
	}
	return &Logger{
		sink:   l.sink,
		level:  l.level,
		fields: mergeFields(l.fields, fields),
		now:    l.now,
	}
}

// Enabled reports whether a line at level would be written.
func (l *Logger) Enabled(level Level) bool {
	if l == nil {
		return L().Enabled(level)
	}
	return level >= l.level
}

// Sync flushes the underlying writers.
func (l *Logger) Sync() error {
	if l == nil || l.sink == nil {
		return nil
	}
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	return l.sink.out.Sync()
}

func (l *Logger) Debug(message string, fields ...Field) { l.log(DebugLevel, message, fields) }

func (l *Logger) Info(message string, fields ...Field) { l.log(InfoLevel, message, fields) }

func (l *Logger) Warn(message string, fields ...Field) { l.log(WarnLevel, message, fields) }

func (l *Logger) Error(message string, fields ...Field) { l.log(ErrorLevel, message, fields) }

// Fatal writes the line, flushes, and exits with status 1.
func (l *Logger) Fatal(message string, fields ...Field) { l.log(FatalLevel, message, fields) }

func (l *Logger) log(level Level, message string, fields []Field) {
	if l == nil {
		L().log(level, message, fields)
		return
	}
	if level < l.level {
		return
	}
	line := encodeLine(l.now().UTC(), level, message, mergeFields(l.fields, fields))
	l.sink.emit(line, level == FatalLevel)
	if level == FatalLevel {
		os.Exit(1)
	}
}

// encodeLine renders the envelope keys first and then the fields in order.
func encodeLine(at time.Time, level Level, message string, fields []Field) []byte {
	var buf bytes.Buffer
	buf.WriteString(`{"timestamp":`)
	writeJSONValue(&buf, at.Format(time.RFC3339Nano))
	buf.WriteString(`,"level":`)
	writeJSONValue(&buf, level.String())
	buf.WriteString(`,"message":`)
	writeJSONValue(&buf, message)
	for _, field := range fields {
		switch field.Key {
		case "timestamp", "level", "message", "":
			continue
		}
		buf.WriteByte(',')
		writeJSONValue(&buf, field.Key)
		buf.WriteByte(':')
		writeJSONValue(&buf, field.Value)
	}
	buf.WriteString("}\n")
	return buf.Bytes()
}

func writeJSONValue(buf *bytes.Buffer, value any) {
	if err, ok := value.(error); ok {
		value = err.Error()
	}
	data, err := json.Marshal(value)
	if err != nil {
		data, _ = json.Marshal(fmt.Sprint(value))
	}
	buf.Write(data)
}

// consoleWriter adapts a plain writer; there is nothing to flush.
type consoleWriter struct{ io.Writer }

func (consoleWriter) Sync() error { return nil }

// teeWriter writes every line to each target in turn and stops at the first failure.
type teeWriter []syncWriter

func (t teeWriter) Write(p []byte) (int, error) {
	for _, w := range t {
		if _, err := w.Write(p); err != nil {
			return 0, err
		}
	}
	return len(p), nil
}

func (t teeWriter) Sync() error {
	var errs []error
	for _, w := range t {
		if err := w.Sync(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
