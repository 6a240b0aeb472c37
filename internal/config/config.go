package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the system-wide settings root. Values come from defaults
// overridden by CHATCAM_* environment variables.
type Config struct {
	HTTP       HTTPConfig       `envPrefix:"CHATCAM_HTTP_"`
	WebSocket  WebSocketConfig  `envPrefix:"CHATCAM_WEBSOCKET_"`
	Rooms      RoomsConfig      `envPrefix:"CHATCAM_ROOMS_"`
	Attachment AttachmentConfig `envPrefix:"CHATCAM_ATTACHMENT_"`
	History    HistoryConfig    `envPrefix:"CHATCAM_HISTORY_"`
}

type HTTPConfig struct {
	Host         string        `env:"HOST"`
	Port         int           `env:"PORT"`
	ReadTimeout  time.Duration `env:"READ_TIMEOUT"`
	WriteTimeout time.Duration `env:"WRITE_TIMEOUT"`
}

type WebSocketConfig struct {
	PingInterval time.Duration `env:"PING_INTERVAL"`
	ReadTimeout  time.Duration `env:"READ_TIMEOUT"`
	BufferSize   int           `env:"BUFFER_SIZE"`
}

type RoomsConfig struct {
	// RetainEmpty keeps rooms after their last member leaves, for cheap
	// rejoin and for rooms created ahead of first use.
	RetainEmpty bool `env:"RETAIN_EMPTY"`
}

// Attachment store backends.
const (
	AttachmentBackendMemory = "memory"
	AttachmentBackendRedis  = "redis"
)

type AttachmentConfig struct {
	Backend   string        `env:"BACKEND"`
	RedisAddr string        `env:"REDIS_ADDR"`
	TTL       time.Duration `env:"TTL"`
}

type HistoryConfig struct {
	// Path of the client-side cache database; used by the client library,
	// carried here so a bundled client picks up the same environment.
	Path     string `env:"PATH"`
	Capacity int    `env:"CAPACITY"`
	Dedup    bool   `env:"DEDUP"`
}

// DefaultConfig returns production-ready defaults.
func DefaultConfig() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		WebSocket: WebSocketConfig{
			PingInterval: 30 * time.Second,
			ReadTimeout:  60 * time.Second,
			BufferSize:   100,
		},
		Rooms: RoomsConfig{
			RetainEmpty: false,
		},
		Attachment: AttachmentConfig{
			Backend:   AttachmentBackendMemory,
			RedisAddr: "localhost:6379",
			TTL:       24 * time.Hour,
		},
		History: HistoryConfig{
			Path:     "./chatcam-history.db",
			Capacity: 50,
			Dedup:    true,
		},
	}
}

// Load builds the configuration from defaults plus environment overrides.
func Load() (*Config, error) {
	cfg := DefaultConfig()
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations that cannot run.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("HTTP port must be between 1 and 65535")
	}
	if c.HTTP.Host == "" {
		return fmt.Errorf("HTTP host cannot be empty")
	}
	if c.HTTP.ReadTimeout <= 0 {
		return fmt.Errorf("HTTP read timeout must be positive")
	}
	if c.HTTP.WriteTimeout <= 0 {
		return fmt.Errorf("HTTP write timeout must be positive")
	}
	if c.WebSocket.PingInterval <= 0 {
		return fmt.Errorf("WebSocket ping interval must be positive")
	}
	if c.WebSocket.ReadTimeout <= 0 {
		return fmt.Errorf("WebSocket read timeout must be positive")
	}
	if c.WebSocket.BufferSize <= 0 {
		return fmt.Errorf("WebSocket buffer size must be positive")
	}
	switch c.Attachment.Backend {
	case AttachmentBackendMemory:
	case AttachmentBackendRedis:
		if c.Attachment.RedisAddr == "" {
			return fmt.Errorf("redis attachment backend requires an address")
		}
	default:
		return fmt.Errorf("unknown attachment backend %q", c.Attachment.Backend)
	}
	if c.History.Capacity <= 0 {
		return fmt.Errorf("history capacity must be positive")
	}
	if c.History.Path == "" {
		return fmt.Errorf("history path cannot be empty")
	}
	return nil
}
