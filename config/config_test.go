package config

import (
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestLoadRelayDefaults(t *testing.T) {
	cfg, err := LoadRelay()
	if err != nil {
		t.Fatalf("LoadRelay: %v", err)
	}
	if cfg.ListenAddr() != "localhost:9090" {
		t.Errorf("listen addr = %q", cfg.ListenAddr())
	}
	if cfg.TickInterval != 16*time.Millisecond || cfg.IdleTimeout != 30*time.Second {
		t.Errorf("intervals = %v / %v", cfg.TickInterval, cfg.IdleTimeout)
	}
	if cfg.LogLevel != slog.LevelInfo || !cfg.Telemetry.Enabled || cfg.Telemetry.Endpoint != "" {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestLoadRelayFromEnv(t *testing.T) {
	t.Setenv("PORT", "7000")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("OTEL_ENDPOINT", "http://collector:4318")

	cfg, err := LoadRelay()
	if err != nil {
		t.Fatalf("LoadRelay: %v", err)
	}
	if cfg.Port != "7000" || cfg.LogLevel != slog.LevelDebug || cfg.Telemetry.Endpoint != "http://collector:4318" {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestLoadRelayInvalid(t *testing.T) {
	t.Setenv("IDLE_TIMEOUT", "1s")
	t.Setenv("PING_INTERVAL", "5s")

	if _, err := LoadRelay(); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("err = %v, want ErrInvalidConfig", err)
	}
}

func TestLoadPeer(t *testing.T) {
	t.Setenv("BOT_COUNT", "5")
	t.Setenv("MODE_DURATION", "3m")

	cfg, err := LoadPeer()
	if err != nil {
		t.Fatalf("LoadPeer: %v", err)
	}
	if cfg.BotCount != 5 || cfg.ModeDuration != 3*time.Minute || cfg.Room != "default" {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestLoadPeerInvalid(t *testing.T) {
	tests := []struct {
		name, key, value string
		parse            bool
	}{
		{"zero bots", "BOT_COUNT", "0", false},
		{"negative duration", "MODE_DURATION", "-1s", false},
		{"not a number", "BOT_COUNT", "many", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := LoadPeer()
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.parse && !strings.Contains(err.Error(), "parse env:") {
				t.Errorf("expected parse env prefix, got %v", err)
			}
			if !tt.parse && !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("err = %v, want ErrInvalidConfig", err)
			}
		})
	}
}
