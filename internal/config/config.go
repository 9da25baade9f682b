package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultAddr is the default TCP address the navigator serves HTTP and WebSocket pilots on.
	DefaultAddr = ":43127"
	// DefaultGRPCAddr is the default listen address for the streaming gRPC surface. Empty disables it.
	DefaultGRPCAddr = ":43128"
	// DefaultPingInterval controls the keepalive cadence for WebSocket connections.
	DefaultPingInterval = 30 * time.Second
	// DefaultMaxPayloadBytes limits inbound WebSocket frame size.
	DefaultMaxPayloadBytes int64 = 64 << 10
	// DefaultMaxPilots bounds concurrent sessions. Zero disables the limit.
	DefaultMaxPilots = 64

	// DefaultPilotBandwidth caps outbound frame bytes per second per pilot.
	DefaultPilotBandwidth = 256 * 1024

	// DefaultSessionWindow and DefaultSessionBurst shape session admission.
	DefaultSessionWindow = time.Second
	DefaultSessionBurst  = 8

	// DefaultTickHz is the fixed step rate every per-step tuning constant assumes.
	DefaultTickHz = 60
	// DefaultMaxCatchUp bounds steps per host tick after a stall.
	DefaultMaxCatchUp = 5
	// DefaultFrameEvery emits one frame per this many steps.
	DefaultFrameEvery = 1
	// DefaultTieBreak selects the first body in catalogue order on simultaneous approaches.
	DefaultTieBreak = "first"
	// DefaultWarpSpread is the jitter around a body's current orbital angle, in radians.
	DefaultWarpSpread = 0.35

	// DefaultJoystickMaxAge drops joystick frames older than this.
	DefaultJoystickMaxAge = 500 * time.Millisecond
	// DefaultJoystickMinInterval drops joystick frames arriving faster than this.
	DefaultJoystickMinInterval = 5 * time.Millisecond

	// DefaultRecordMaxCount caps retained flight recordings. Zero keeps everything.
	DefaultRecordMaxCount = 50
	// DefaultRecordMaxAge prunes recordings older than this.
	DefaultRecordMaxAge = 7 * 24 * time.Hour

	// DefaultGRPCCompression names the gRPC frame compressor.
	DefaultGRPCCompression = "snappy"

	// DefaultLogLevel controls verbosity for navigator logs.
	DefaultLogLevel = "info"
	// DefaultLogPath is where structured logs are written.
	DefaultLogPath = "navigator.log"
	// DefaultLogMaxSizeMB caps the size of a single log file before rotation.
	DefaultLogMaxSizeMB = 100
	// DefaultLogMaxBackups limits retained rotated log files.
	DefaultLogMaxBackups = 10
	// DefaultLogMaxAgeDays controls how long rotated log files are kept on disk.
	DefaultLogMaxAgeDays = 7
	// DefaultLogCompress toggles gzip compression for rotated log files.
	DefaultLogCompress = true
)

// Config captures all runtime tunables for the navigator service.
type Config struct {
	Address         string
	AllowedOrigins  []string
	MaxPayloadBytes int64
	PingInterval    time.Duration
	MaxPilots       int
	PilotBandwidth  int
	SessionWindow   time.Duration
	SessionBurst    int
	TLSCertPath     string
	TLSKeyPath      string

	AdminToken       string
	PilotTokenSecret string

	Simulation SimulationConfig
	Gate       GateConfig
	GRPC       GRPCConfig

	Recording RecordingConfig
	Logging   LoggingConfig
}

// RecordingConfig controls per-session flight recordings. An empty Dir disables them.
type RecordingConfig struct {
	Dir      string
	MaxCount int
	MaxAge   time.Duration
}

// SimulationConfig carries the stepping and navigation policy knobs.
type SimulationConfig struct {
	TickHz     int
	MaxCatchUp int
	FrameEvery int
	TieBreak   string
	WarpSpread float64
	Seed       uint64
}

// Step converts the tick rate into the fixed step duration.
func (s SimulationConfig) Step() time.Duration {
	if s.TickHz <= 0 {
		return time.Second / DefaultTickHz
	}
	return time.Second / time.Duration(s.TickHz)
}

// GateConfig bounds joystick frame freshness and cadence.
type GateConfig struct {
	MaxAge      time.Duration
	MinInterval time.Duration
}

// GRPCConfig configures the streaming RPC surface.
type GRPCConfig struct {
	Address      string
	SharedSecret string
	Compression  string
	ClientCAPath string
}

// LoggingConfig captures structured logging configuration options.
type LoggingConfig struct {
	Level      string
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// Load reads the navigator configuration from environment variables, applying sane defaults
// and returning descriptive errors for invalid overrides.
func Load() (*Config, error) {
	cfg := &Config{
		Address:         getString("NAV_ADDR", DefaultAddr),
		AllowedOrigins:  parseList(os.Getenv("NAV_ALLOWED_ORIGINS")),
		MaxPayloadBytes: DefaultMaxPayloadBytes,
		PingInterval:    DefaultPingInterval,
		MaxPilots:       DefaultMaxPilots,
		PilotBandwidth:  DefaultPilotBandwidth,
		SessionWindow:   DefaultSessionWindow,
		SessionBurst:    DefaultSessionBurst,
		TLSCertPath:     strings.TrimSpace(os.Getenv("NAV_TLS_CERT")),
		TLSKeyPath:      strings.TrimSpace(os.Getenv("NAV_TLS_KEY")),

		AdminToken:       strings.TrimSpace(os.Getenv("NAV_ADMIN_TOKEN")),
		PilotTokenSecret: strings.TrimSpace(os.Getenv("NAV_PILOT_TOKEN_SECRET")),

		Simulation: SimulationConfig{
			TickHz:     DefaultTickHz,
			MaxCatchUp: DefaultMaxCatchUp,
			FrameEvery: DefaultFrameEvery,
			TieBreak:   strings.ToLower(getString("NAV_PROXIMITY_TIEBREAK", DefaultTieBreak)),
			WarpSpread: DefaultWarpSpread,
		},
		Gate: GateConfig{
			MaxAge:      DefaultJoystickMaxAge,
			MinInterval: DefaultJoystickMinInterval,
		},
		GRPC: GRPCConfig{
			Address:      getString("NAV_GRPC_ADDR", DefaultGRPCAddr),
			SharedSecret: strings.TrimSpace(os.Getenv("NAV_GRPC_SHARED_SECRET")),
			Compression:  strings.ToLower(getString("NAV_GRPC_COMPRESSION", DefaultGRPCCompression)),
			ClientCAPath: strings.TrimSpace(os.Getenv("NAV_GRPC_CLIENT_CA")),
		},
		Recording: RecordingConfig{
			Dir:      strings.TrimSpace(os.Getenv("NAV_RECORD_DIR")),
			MaxCount: DefaultRecordMaxCount,
			MaxAge:   DefaultRecordMaxAge,
		},
		Logging: LoggingConfig{
			Level:      strings.TrimSpace(getString("NAV_LOG_LEVEL", DefaultLogLevel)),
			Path:       strings.TrimSpace(getString("NAV_LOG_PATH", DefaultLogPath)),
			MaxSizeMB:  DefaultLogMaxSizeMB,
			MaxBackups: DefaultLogMaxBackups,
			MaxAgeDays: DefaultLogMaxAgeDays,
			Compress:   DefaultLogCompress,
		},
	}

	var problems []string

	positiveInt := func(key string, target *int) {
		raw := strings.TrimSpace(os.Getenv(key))
		if raw == "" {
			return
		}
		value, err := strconv.Atoi(raw)
		if err != nil || value <= 0 {
			problems = append(problems, fmt.Sprintf("%s must be a positive integer, got %q", key, raw))
			return
		}
		*target = value
	}
	nonNegativeInt := func(key string, target *int) {
		raw := strings.TrimSpace(os.Getenv(key))
		if raw == "" {
			return
		}
		value, err := strconv.Atoi(raw)
		if err != nil || value < 0 {
			problems = append(problems, fmt.Sprintf("%s must be a non-negative integer, got %q", key, raw))
			return
		}
		*target = value
	}
	positiveDuration := func(key string, target *time.Duration) {
		raw := strings.TrimSpace(os.Getenv(key))
		if raw == "" {
			return
		}
		duration, err := time.ParseDuration(raw)
		if err != nil || duration <= 0 {
			problems = append(problems, fmt.Sprintf("%s must be a positive duration, got %q", key, raw))
			return
		}
		*target = duration
	}

	if raw := strings.TrimSpace(os.Getenv("NAV_MAX_PAYLOAD_BYTES")); raw != "" {
		value, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || value <= 0 {
			problems = append(problems, fmt.Sprintf("NAV_MAX_PAYLOAD_BYTES must be a positive integer, got %q", raw))
		} else {
			cfg.MaxPayloadBytes = value
		}
	}

	positiveDuration("NAV_PING_INTERVAL", &cfg.PingInterval)
	nonNegativeInt("NAV_MAX_PILOTS", &cfg.MaxPilots)
	positiveInt("NAV_PILOT_BANDWIDTH", &cfg.PilotBandwidth)
	positiveDuration("NAV_SESSION_WINDOW", &cfg.SessionWindow)
	positiveInt("NAV_SESSION_BURST", &cfg.SessionBurst)

	positiveInt("NAV_TICK_HZ", &cfg.Simulation.TickHz)
	positiveInt("NAV_MAX_CATCH_UP", &cfg.Simulation.MaxCatchUp)
	positiveInt("NAV_FRAME_EVERY", &cfg.Simulation.FrameEvery)

	switch cfg.Simulation.TieBreak {
	case "first", "nearest":
	default:
		problems = append(problems, fmt.Sprintf("NAV_PROXIMITY_TIEBREAK must be first or nearest, got %q", cfg.Simulation.TieBreak))
	}

	if raw := strings.TrimSpace(os.Getenv("NAV_WARP_SPREAD")); raw != "" {
		value, err := strconv.ParseFloat(raw, 64)
		if err != nil || value < 0 {
			problems = append(problems, fmt.Sprintf("NAV_WARP_SPREAD must be a non-negative number, got %q", raw))
		} else {
			cfg.Simulation.WarpSpread = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("NAV_SEED")); raw != "" {
		value, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			problems = append(problems, fmt.Sprintf("NAV_SEED must be an unsigned integer, got %q", raw))
		} else {
			cfg.Simulation.Seed = value
		}
	}

	positiveDuration("NAV_JOYSTICK_MAX_AGE", &cfg.Gate.MaxAge)
	if raw := strings.TrimSpace(os.Getenv("NAV_JOYSTICK_MIN_INTERVAL")); raw != "" {
		duration, err := time.ParseDuration(raw)
		if err != nil || duration < 0 {
			problems = append(problems, fmt.Sprintf("NAV_JOYSTICK_MIN_INTERVAL must be a non-negative duration, got %q", raw))
		} else {
			cfg.Gate.MinInterval = duration
		}
	}

	switch cfg.GRPC.Compression {
	case "gzip", "snappy", "none":
	default:
		problems = append(problems, fmt.Sprintf("NAV_GRPC_COMPRESSION must be gzip, snappy or none, got %q", cfg.GRPC.Compression))
	}

	nonNegativeInt("NAV_RECORD_MAX_COUNT", &cfg.Recording.MaxCount)
	positiveDuration("NAV_RECORD_MAX_AGE", &cfg.Recording.MaxAge)

	positiveInt("NAV_LOG_MAX_SIZE_MB", &cfg.Logging.MaxSizeMB)
	nonNegativeInt("NAV_LOG_MAX_BACKUPS", &cfg.Logging.MaxBackups)
	nonNegativeInt("NAV_LOG_MAX_AGE_DAYS", &cfg.Logging.MaxAgeDays)

	if raw := strings.TrimSpace(os.Getenv("NAV_LOG_COMPRESS")); raw != "" {
		value, err := strconv.ParseBool(raw)
		if err != nil {
			problems = append(problems, fmt.Sprintf("NAV_LOG_COMPRESS must be a boolean value, got %q", raw))
		} else {
			cfg.Logging.Compress = value
		}
	}

	if (cfg.TLSCertPath == "") != (cfg.TLSKeyPath == "") {
		problems = append(problems, "NAV_TLS_CERT and NAV_TLS_KEY must be provided together")
	}
	if cfg.GRPC.ClientCAPath != "" && cfg.TLSCertPath == "" {
		problems = append(problems, "NAV_GRPC_CLIENT_CA requires NAV_TLS_CERT and NAV_TLS_KEY")
	}

	if len(problems) > 0 {
		return nil, errors.New(strings.Join(problems, "; "))
	}

	return cfg, nil
}

func getString(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func parseList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	values := make([]string, 0, len(parts))
	for _, part := range parts {
		if item := strings.TrimSpace(part); item != "" {
			values = append(values, item)
		}
	}
	return values
}
