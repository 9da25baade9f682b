package config

import (
	"strings"
	"testing"
	"time"
)

func clearNavigatorEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"NAV_ADDR", "NAV_ALLOWED_ORIGINS", "NAV_MAX_PAYLOAD_BYTES", "NAV_PING_INTERVAL",
		"NAV_MAX_PILOTS", "NAV_PILOT_BANDWIDTH", "NAV_SESSION_WINDOW", "NAV_SESSION_BURST", "NAV_TLS_CERT", "NAV_TLS_KEY",
		"NAV_ADMIN_TOKEN", "NAV_PILOT_TOKEN_SECRET",
		"NAV_TICK_HZ", "NAV_MAX_CATCH_UP", "NAV_FRAME_EVERY", "NAV_PROXIMITY_TIEBREAK",
		"NAV_WARP_SPREAD", "NAV_SEED", "NAV_JOYSTICK_MAX_AGE", "NAV_JOYSTICK_MIN_INTERVAL",
		"NAV_GRPC_ADDR", "NAV_GRPC_SHARED_SECRET", "NAV_GRPC_COMPRESSION", "NAV_GRPC_CLIENT_CA", "NAV_RECORD_DIR",
		"NAV_RECORD_MAX_COUNT", "NAV_RECORD_MAX_AGE",
		"NAV_LOG_LEVEL", "NAV_LOG_PATH", "NAV_LOG_MAX_SIZE_MB", "NAV_LOG_MAX_BACKUPS",
		"NAV_LOG_MAX_AGE_DAYS", "NAV_LOG_COMPRESS",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearNavigatorEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.Address != DefaultAddr {
		t.Fatalf("expected default addr %q, got %q", DefaultAddr, cfg.Address)
	}
	if cfg.AllowedOrigins != nil {
		t.Fatalf("expected no allowed origins, got %#v", cfg.AllowedOrigins)
	}
	if cfg.MaxPilots != DefaultMaxPilots {
		t.Fatalf("expected default max pilots %d, got %d", DefaultMaxPilots, cfg.MaxPilots)
	}
	if cfg.Simulation.Step() != time.Second/60 {
		t.Fatalf("expected 60Hz step, got %v", cfg.Simulation.Step())
	}
	if cfg.Simulation.TieBreak != "first" {
		t.Fatalf("expected first tie break, got %q", cfg.Simulation.TieBreak)
	}
	if cfg.Simulation.WarpSpread != DefaultWarpSpread {
		t.Fatalf("expected default warp spread, got %v", cfg.Simulation.WarpSpread)
	}
	if cfg.GRPC.Address != DefaultGRPCAddr || cfg.GRPC.Compression != "snappy" {
		t.Fatalf("unexpected grpc defaults %+v", cfg.GRPC)
	}
	if cfg.Recording.Dir != "" || cfg.Recording.MaxCount != DefaultRecordMaxCount {
		t.Fatalf("unexpected recording defaults %+v", cfg.Recording)
	}
	if cfg.Logging.Path != DefaultLogPath || !cfg.Logging.Compress {
		t.Fatalf("unexpected logging defaults %+v", cfg.Logging)
	}
}

func TestLoadOverrides(t *testing.T) {
	clearNavigatorEnv(t)
	t.Setenv("NAV_ADDR", "127.0.0.1:9000")
	t.Setenv("NAV_ALLOWED_ORIGINS", "https://example.com, https://demo.local")
	t.Setenv("NAV_MAX_PILOTS", "0")
	t.Setenv("NAV_TICK_HZ", "120")
	t.Setenv("NAV_MAX_CATCH_UP", "3")
	t.Setenv("NAV_FRAME_EVERY", "2")
	t.Setenv("NAV_PROXIMITY_TIEBREAK", "Nearest")
	t.Setenv("NAV_WARP_SPREAD", "3.14159")
	t.Setenv("NAV_SEED", "42")
	t.Setenv("NAV_JOYSTICK_MIN_INTERVAL", "0s")
	t.Setenv("NAV_GRPC_COMPRESSION", "gzip")
	t.Setenv("NAV_GRPC_SHARED_SECRET", "s3cret")
	t.Setenv("NAV_RECORD_DIR", "/tmp/flights")
	t.Setenv("NAV_RECORD_MAX_AGE", "48h")
	t.Setenv("NAV_ADMIN_TOKEN", " ops ")
	t.Setenv("NAV_PILOT_TOKEN_SECRET", "pilots")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.Address != "127.0.0.1:9000" {
		t.Fatalf("unexpected address: %q", cfg.Address)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "https://demo.local" {
		t.Fatalf("unexpected allowed origins: %#v", cfg.AllowedOrigins)
	}
	if cfg.MaxPilots != 0 {
		t.Fatalf("expected zero to disable pilot limit, got %d", cfg.MaxPilots)
	}
	if cfg.Simulation.TickHz != 120 || cfg.Simulation.MaxCatchUp != 3 || cfg.Simulation.FrameEvery != 2 {
		t.Fatalf("unexpected simulation overrides %+v", cfg.Simulation)
	}
	if cfg.Simulation.TieBreak != "nearest" {
		t.Fatalf("expected tie break to be normalised, got %q", cfg.Simulation.TieBreak)
	}
	if cfg.Simulation.Seed != 42 {
		t.Fatalf("expected seed 42, got %d", cfg.Simulation.Seed)
	}
	if cfg.Gate.MinInterval != 0 {
		t.Fatalf("expected gate interval disabled, got %v", cfg.Gate.MinInterval)
	}
	if cfg.GRPC.Compression != "gzip" || cfg.GRPC.SharedSecret != "s3cret" {
		t.Fatalf("unexpected grpc overrides %+v", cfg.GRPC)
	}
	if cfg.Recording.Dir != "/tmp/flights" || cfg.Recording.MaxAge != 48*time.Hour {
		t.Fatalf("unexpected recording overrides %+v", cfg.Recording)
	}
	if cfg.AdminToken != "ops" || cfg.PilotTokenSecret != "pilots" {
		t.Fatalf("unexpected token overrides %q %q", cfg.AdminToken, cfg.PilotTokenSecret)
	}
}

func TestLoadReturnsValidationErrors(t *testing.T) {
	clearNavigatorEnv(t)
	t.Setenv("NAV_MAX_PAYLOAD_BYTES", "-5")
	t.Setenv("NAV_PING_INTERVAL", "abc")
	t.Setenv("NAV_MAX_PILOTS", "-1")
	t.Setenv("NAV_TICK_HZ", "0")
	t.Setenv("NAV_PROXIMITY_TIEBREAK", "random")
	t.Setenv("NAV_WARP_SPREAD", "-1")
	t.Setenv("NAV_GRPC_COMPRESSION", "brotli")
	t.Setenv("NAV_TLS_CERT", "/tmp/cert.pem")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error from invalid configuration, got nil")
	}

	for _, want := range []string{
		"NAV_MAX_PAYLOAD_BYTES",
		"NAV_PING_INTERVAL",
		"NAV_MAX_PILOTS",
		"NAV_TICK_HZ",
		"NAV_PROXIMITY_TIEBREAK",
		"NAV_WARP_SPREAD",
		"NAV_GRPC_COMPRESSION",
		"NAV_TLS_CERT",
	} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("expected error to mention %s, got %q", want, err.Error())
		}
	}
}

func TestLoadIgnoresEmptyAllowedOrigins(t *testing.T) {
	clearNavigatorEnv(t)
	t.Setenv("NAV_ALLOWED_ORIGINS", " , ,https://ok.example, ")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if len(cfg.AllowedOrigins) != 1 || cfg.AllowedOrigins[0] != "https://ok.example" {
		t.Fatalf("expected single cleaned origin, got %#v", cfg.AllowedOrigins)
	}
}

func TestSimulationStepFallsBackForInvalidRate(t *testing.T) {
	if step := (SimulationConfig{}).Step(); step != time.Second/DefaultTickHz {
		t.Fatalf("expected fallback step, got %v", step)
	}
}

func TestLoadRejectsClientCAWithoutServerCertificate(t *testing.T) {
	clearNavigatorEnv(t)
	t.Setenv("NAV_GRPC_CLIENT_CA", "/tmp/ca.pem")

	_, err := Load()
	if err == nil || !strings.Contains(err.Error(), "NAV_GRPC_CLIENT_CA") {
		t.Fatalf("expected client CA problem, got %v", err)
	}
}
