package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/ilyakaznacheev/cleanenv"
)

// Default configuration values
const (
	DefaultServer = "ws://localhost:8080/ws"
	DefaultSTUN   = "stun:stun.l.google.com:19302"
	DefaultCodec  = "json"
)

var ErrInvalidCodec = errors.New("codec must be json or msgpack")

// Config holds participant client configuration
type Config struct {
	// Server is the relay address as given by the user or environment
	Server string `env:"WARPCALL_SERVER" env-default:"ws://localhost:8080/ws"`

	// WebSocketURL is constructed from Server
	WebSocketURL string

	// ICE servers for WebRTC
	STUNServer string `env:"STUN_SERVER" env-default:"stun:stun.l.google.com:19302"`
	TURNServer string `env:"TURN_SERVER"`
	TURNUser   string `env:"TURN_USERNAME"`
	TURNPass   string `env:"TURN_PASSWORD"`
	ForceRelay bool   `env:"FORCE_RELAY"`

	// Codec selects the signaling frame encoding: json or msgpack
	Codec string `env:"WARPCALL_CODEC" env-default:"json"`
}

// Options for loading config with CLI flag overrides
type Options struct {
	Server     string
	STUNServer string
	TURNServer string
	TURNUser   string
	TURNPass   string
	ForceRelay bool
	Codec      string
}

// Load reads configuration with the following priority:
// 1. CLI flags (passed via Options) - highest priority
// 2. Environment variables
// 3. Hardcoded defaults - lowest priority
func Load(opts Options) (*Config, error) {
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}

	override(&cfg.Server, opts.Server)
	override(&cfg.STUNServer, opts.STUNServer)
	override(&cfg.TURNServer, opts.TURNServer)
	override(&cfg.TURNUser, opts.TURNUser)
	override(&cfg.TURNPass, opts.TURNPass)
	override(&cfg.Codec, opts.Codec)
	if opts.ForceRelay {
		cfg.ForceRelay = true
	}

	cfg.Codec = strings.ToLower(cfg.Codec)
	if cfg.Codec != "json" && cfg.Codec != "msgpack" {
		return nil, fmt.Errorf("%w: got %q", ErrInvalidCodec, cfg.Codec)
	}

	wsURL, err := WebSocketURL(cfg.Server)
	if err != nil {
		return nil, err
	}
	cfg.WebSocketURL = wsURL

	return &cfg, nil
}

func override(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// WebSocketURL turns a relay address into the URL of its /ws endpoint.
// A bare host becomes wss://host/ws; http(s) schemes map to ws(s).
func WebSocketURL(server string) (string, error) {
	server = strings.TrimSpace(server)
	if server == "" {
		return "", errors.New("relay server address is empty")
	}
	if !strings.Contains(server, "://") {
		server = "wss://" + server
	}

	u, err := url.Parse(server)
	if err != nil {
		return "", fmt.Errorf("invalid server URL: %w", err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("invalid server URL %q: missing host", server)
	}

	switch u.Scheme {
	case "ws", "wss":
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported server scheme %q", u.Scheme)
	}

	if u.Path == "" || u.Path == "/" {
		u.Path = "/ws"
	}
	return u.String(), nil
}

// GetRoomLink returns the URL a second participant can pass to `warpcall join`
func (c *Config) GetRoomLink(roomID string) string {
	u, err := url.Parse(c.WebSocketURL)
	if err != nil {
		return roomID
	}
	scheme := "https"
	if u.Scheme == "ws" {
		scheme = "http"
	}
	return fmt.Sprintf("%s://%s/room/%s", scheme, u.Host, url.PathEscape(roomID))
}

// GetSTUNServers returns STUN server URLs as strings
func (c *Config) GetSTUNServers() []string {
	if c.STUNServer == "" {
		return nil
	}
	return []string{c.STUNServer}
}

// GetTURNServers returns TURN server URLs if configured
func (c *Config) GetTURNServers() []string {
	if c.TURNServer == "" {
		return nil
	}
	host := strings.TrimPrefix(c.TURNServer, "turn:")
	return []string{
		fmt.Sprintf("turn:%s:3478?transport=udp", host),
		fmt.Sprintf("turn:%s:3478?transport=tcp", host),
		fmt.Sprintf("turns:%s:5349?transport=tcp", host),
	}
}

// GetTURNCredentials returns TURN username and password
func (c *Config) GetTURNCredentials() (string, string) {
	return c.TURNUser, c.TURNPass
}
