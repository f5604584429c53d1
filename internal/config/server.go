package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// ServerConfig holds relay configuration
type ServerConfig struct {
	Port int `env:"PORT" env-default:"8080"`

	// AllowedOrigins restricts websocket upgrades; empty allows every origin.
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" env-separator:","`

	// Keepalive timings. PingPeriod must be less than PongWait.
	PingPeriod time.Duration `env:"PING_PERIOD" env-default:"54s"`
	PongWait   time.Duration `env:"PONG_WAIT" env-default:"60s"`
	WriteWait  time.Duration `env:"WRITE_WAIT" env-default:"10s"`

	// MaxMessageSize bounds a single inbound frame. 64 KB fits any SDP.
	MaxMessageSize int64 `env:"MAX_MESSAGE_SIZE" env-default:"65536"`

	MDNSEnabled bool   `env:"MDNS_ENABLED"`
	MDNSName    string `env:"MDNS_NAME" env-default:"warpcall"`
}

// ServerOptions carries `warpcall serve` flag overrides
type ServerOptions struct {
	Port        int
	MDNSEnabled bool
	MDNSName    string
}

// LoadServer reads relay configuration: flags > environment > defaults.
func LoadServer(opts ServerOptions) (*ServerConfig, error) {
	var cfg ServerConfig
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}

	if opts.Port != 0 {
		cfg.Port = opts.Port
	}
	if opts.MDNSEnabled {
		cfg.MDNSEnabled = true
	}
	override(&cfg.MDNSName, opts.MDNSName)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks relay settings for internal consistency
func (c *ServerConfig) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if c.PongWait <= 0 || c.WriteWait <= 0 {
		return fmt.Errorf("pong wait and write wait must be positive")
	}
	if c.PingPeriod <= 0 || c.PingPeriod >= c.PongWait {
		return fmt.Errorf("ping period %s must be positive and less than pong wait %s", c.PingPeriod, c.PongWait)
	}
	if c.MaxMessageSize <= 0 {
		return fmt.Errorf("max message size must be positive")
	}
	return nil
}

// Addr is the listen address for the HTTP server
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}
