package logging

import (
	"math"
	"strconv"
	"time"

	"github.com/go-gl/mathgl/mgl64"
)

// Field is one structured attribute of a log line.
type Field struct {
	Key   string
	Value any
}

func String(key, value string) Field { return Field{Key: key, Value: value} }

func Strings(key string, values []string) Field { return Field{Key: key, Value: values} }

func Int(key string, value int) Field { return Field{Key: key, Value: value} }

func Int64(key string, value int64) Field { return Field{Key: key, Value: value} }

// Uint64 is used for tick counters and seeds.
func Uint64(key string, value uint64) Field { return Field{Key: key, Value: value} }

// Float64 keeps NaN and infinities as strings so the line stays valid JSON.
func Float64(key string, value float64) Field { return Field{Key: key, Value: finite(value)} }

// Vec3 logs a position or velocity as a three element array.
func Vec3(key string, value mgl64.Vec3) Field {
	return Field{Key: key, Value: [3]any{finite(value[0]), finite(value[1]), finite(value[2])}}
}

// Duration renders as a Go duration string such as "16.666ms".
func Duration(key string, value time.Duration) Field { return Field{Key: key, Value: value.String()} }

func Bool(key string, value bool) Field { return Field{Key: key, Value: value} }

// Error logs err under "error"; a nil error is written as null.
func Error(err error) Field {
	if err == nil {
		return Field{Key: "error"}
	}
	return Field{Key: "error", Value: err}
}

func finite(value float64) any {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return strconv.FormatFloat(value, 'g', -1, 64)
	}
	return value
}

// mergeFields appends extra to base; a repeated key keeps its first position and takes
// the latest value.
func mergeFields(base, extra []Field) []Field {
	if len(extra) == 0 {
		return base
	}
	merged := make([]Field, len(base), len(base)+len(extra))
	copy(merged, base)
	for _, field := range extra {
		replaced := false
		for idx := range merged {
			if merged[idx].Key == field.Key {
				merged[idx].Value = field.Value
				replaced = true
				break
			}
		}
		if !replaced {
			merged = append(merged, field)
		}
	}
	return merged
}
