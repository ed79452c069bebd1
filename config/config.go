package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/caarlos0/env/v11"
)

var ErrInvalidConfig = errors.New("invalid config")

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Telemetry はトレース出力の設定です。Endpoint が空なら無効。
type Telemetry struct {
	Endpoint string `env:"OTEL_ENDPOINT"`
	Enabled  bool   `env:"OTEL_ENABLED" envDefault:"true"`
}

// Relay はリレーサーバーの設定です。
type Relay struct {
	Addr         string        `env:"ADDR" envDefault:"localhost"`
	Port         string        `env:"PORT" envDefault:"9090"`
	LogLevel     slog.Level    `env:"LOG_LEVEL" envDefault:"info"`
	TickInterval time.Duration `env:"TICK_INTERVAL" envDefault:"16ms"`
	IdleTimeout  time.Duration `env:"IDLE_TIMEOUT" envDefault:"30s"`
	PingInterval time.Duration `env:"PING_INTERVAL" envDefault:"5s"`
	MaxRooms     int           `env:"MAX_ROOMS" envDefault:"1024"`
	Telemetry    Telemetry
}

func (r Relay) ListenAddr() string {
	return net.JoinHostPort(r.Addr, r.Port)
}

func LoadRelay() (Relay, error) {
	var cfg Relay
	if err := ParseEnv(&cfg); err != nil {
		return Relay{}, err
	}
	switch {
	case cfg.Port == "":
		return Relay{}, fmt.Errorf("%w: PORT is empty", ErrInvalidConfig)
	case cfg.TickInterval <= 0:
		return Relay{}, fmt.Errorf("%w: TICK_INTERVAL must be positive", ErrInvalidConfig)
	case cfg.PingInterval <= 0 || cfg.IdleTimeout <= cfg.PingInterval:
		return Relay{}, fmt.Errorf("%w: IDLE_TIMEOUT must exceed PING_INTERVAL", ErrInvalidConfig)
	}
	return cfg, nil
}

// Peer はボット（ヘッドレスピア）の設定です。
type Peer struct {
	RelayURL       string        `env:"RELAY_URL" envDefault:"ws://localhost:9090/ws"`
	Room           string        `env:"ROOM" envDefault:"default"`
	BotCount       int           `env:"BOT_COUNT" envDefault:"3"`
	BotName        string        `env:"BOT_NAME" envDefault:"bot"`
	LogLevel       slog.Level    `env:"LOG_LEVEL" envDefault:"info"`
	ModeDuration   time.Duration `env:"MODE_DURATION" envDefault:"0s"`
	ReconnectDelay time.Duration `env:"RECONNECT_DELAY" envDefault:"2s"`
	Telemetry      Telemetry
}

func LoadPeer() (Peer, error) {
	var cfg Peer
	if err := ParseEnv(&cfg); err != nil {
		return Peer{}, err
	}
	switch {
	case cfg.RelayURL == "":
		return Peer{}, fmt.Errorf("%w: RELAY_URL is empty", ErrInvalidConfig)
	case cfg.BotCount < 1:
		return Peer{}, fmt.Errorf("%w: BOT_COUNT must be at least 1", ErrInvalidConfig)
	case cfg.ModeDuration < 0:
		return Peer{}, fmt.Errorf("%w: MODE_DURATION is negative", ErrInvalidConfig)
	}
	return cfg, nil
}
