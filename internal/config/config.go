// Package config loads server settings from YAML.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/lawnchairsociety/combatroller/internal/roll"
)

// ServerConfig holds server-wide configuration settings.
type ServerConfig struct {
	WebSocket   WebSocketConfig   `yaml:"websocket"`
	Connections ConnectionsConfig `yaml:"connections"`
	Throttle    ThrottleConfig    `yaml:"throttle"`
	Rolls       RollsConfig       `yaml:"rolls"`
}

// ConnectionsConfig holds connection limit settings.
type ConnectionsConfig struct {
	// MaxPerIP is the maximum concurrent connections allowed from a single IP address.
	// 0 means unlimited (not recommended).
	MaxPerIP int `yaml:"max_per_ip"`

	// MaxTotal is the maximum total concurrent connections to the server.
	// 0 means unlimited.
	MaxTotal int `yaml:"max_total"`

	// TrustProxyHeaders keys HTTP clients by X-Forwarded-For / X-Real-IP
	// instead of the socket address. Enable only behind a reverse proxy
	// that overwrites those headers.
	TrustProxyHeaders bool `yaml:"trust_proxy_headers"`

	// MaxLineLength caps a single telnet input line in bytes.
	MaxLineLength int `yaml:"max_line_length"`
}

// ThrottleConfig limits how fast a single connection may roll.
type ThrottleConfig struct {
	Enabled bool `yaml:"enabled"`

	// MaxRolls is the number of rolls allowed per window.
	MaxRolls int `yaml:"max_rolls"`

	// WindowSeconds is the length of the sliding window.
	WindowSeconds int `yaml:"window_seconds"`
}

// Window returns WindowSeconds as a duration.
func (c ThrottleConfig) Window() time.Duration {
	return time.Duration(c.WindowSeconds) * time.Second
}

// RollsConfig holds table rules for attack rolls.
type RollsConfig struct {
	// AdvantageDice is how many d20s are rolled with advantage.
	AdvantageDice int `yaml:"advantage_dice"`

	// DisadvantageDice is how many d20s are rolled with disadvantage.
	DisadvantageDice int `yaml:"disadvantage_dice"`
}

// AttackOptions converts the rules into roll defaults.
func (c RollsConfig) AttackOptions() roll.AttackOptions {
	opts := roll.DefaultAttackOptions()
	if c.AdvantageDice > 0 {
		opts.AdvantageDice = c.AdvantageDice
	}
	if c.DisadvantageDice > 0 {
		opts.DisadvantageDice = c.DisadvantageDice
	}
	return opts
}

// WebSocketConfig holds WebSocket-specific settings.
type WebSocketConfig struct {
	// AllowedOrigins is a list of origins allowed to connect via WebSocket.
	// Empty list enforces same-origin policy.
	// Use "*" to allow all origins (not recommended for production).
	AllowedOrigins []string `yaml:"allowed_origins"`

	// MaxMessageSize is the maximum WebSocket message size in bytes.
	MaxMessageSize int64 `yaml:"max_message_size"`
}

// DefaultConfig returns a ServerConfig with secure defaults.
func DefaultConfig() *ServerConfig {
	return &ServerConfig{
		WebSocket: WebSocketConfig{
			AllowedOrigins: []string{}, // Same-origin only by default
			MaxMessageSize: 1024,
		},
		Connections: ConnectionsConfig{
			MaxPerIP:      5,
			MaxTotal:      200,
			MaxLineLength: 1024,
		},
		Throttle: ThrottleConfig{
			Enabled:       true,
			MaxRolls:      10,
			WindowSeconds: 5,
		},
		Rolls: RollsConfig{
			AdvantageDice:    2,
			DisadvantageDice: 2,
		},
	}
}

// LoadConfig loads server configuration from a YAML file.
// A missing file yields the defaults; a malformed one yields the defaults and an error.
func LoadConfig(path string) (*ServerConfig, error) {
	config := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return config, nil
		}
		return config, fmt.Errorf("read server config: %w", err)
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return DefaultConfig(), fmt.Errorf("parse server config %s: %w", path, err)
	}

	return config, nil
}

// IsOriginAllowed checks if the given origin is allowed based on the config.
// Returns true if:
// - AllowedOrigins contains "*" (allow all)
// - AllowedOrigins contains the exact origin
// - AllowedOrigins is empty and origin matches the request host (same-origin)
func (c *WebSocketConfig) IsOriginAllowed(origin, requestHost string) bool {
	if len(c.AllowedOrigins) == 0 {
		return isSameOrigin(origin, requestHost)
	}

	for _, allowed := range c.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}

	return false
}

// isSameOrigin checks if the origin matches the request host.
func isSameOrigin(origin, requestHost string) bool {
	if origin == "" {
		return true // No origin header means a non-browser client
	}

	// "http://localhost:3000/" -> "localhost:3000"
	originHost := origin
	if idx := strings.Index(origin, "://"); idx != -1 {
		originHost = origin[idx+3:]
	}
	originHost = strings.TrimSuffix(originHost, "/")

	return originHost == requestHost
}
