// Package config defines the top-level configuration for the gateway and
// provides validation helpers.
package config

import (
	"fmt"
	"strings"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by NATSGW_* environment
// variables.
type Config struct {
	NATS      NATSConfig      `toml:"nats"`
	WS        WSConfig        `toml:"ws"`
	Log       LogConfig       `toml:"log"`
	Heartbeat HeartbeatConfig `toml:"heartbeat"`
	Server    ServerConfig    `toml:"server"`
}

// NATSConfig holds bus connection parameters. Driver selects which
// bus.Upstream implementation to wire: "nats" (default) dials a NATS core
// connection; "redis" dials Redis Pub/Sub instead, for local/dev
// deployments without a NATS broker.
type NATSConfig struct {
	Driver     string `toml:"driver"`
	URL        string `toml:"url"`
	ClientName string `toml:"client_name"`

	// Redis fields, used only when Driver == "redis".
	RedisAddr       string `toml:"redis_addr"`
	RedisPassword   string `toml:"redis_password"`
	RedisDB         int    `toml:"redis_db"`
	RedisPoolSize   int    `toml:"redis_pool_size"`
	RedisMaxRetries int    `toml:"redis_max_retries"`
}

// WSConfig holds the WebSocket listener's bind parameters.
type WSConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// LogConfig holds logging parameters.
type LogConfig struct {
	Dir   string `toml:"dir"`
	Level string `toml:"level"`
}

// HeartbeatConfig holds the device-heartbeat side-effect protocol's single
// tunable: the subscribe-payload `event` value that marks a subscription as
// heartbeat-flavored.
type HeartbeatConfig struct {
	EventName string `toml:"event_name"`
}

// ServerConfig holds the admin HTTP surface's bind parameters.
type ServerConfig struct {
	Enabled bool `toml:"enabled"`
	Port    int  `toml:"port"`
}

// Defaults returns a Config populated with reasonable default values.
func Defaults() Config {
	return Config{
		NATS: NATSConfig{
			Driver:          "nats",
			URL:             "nats://127.0.0.1:4222",
			ClientName:      "natsgw",
			RedisAddr:       "localhost:6379",
			RedisPoolSize:   20,
			RedisMaxRetries: 3,
		},
		WS: WSConfig{
			Host: "0.0.0.0",
			Port: 8765,
		},
		Log: LogConfig{
			Dir:   "./logs",
			Level: "info",
		},
		Heartbeat: HeartbeatConfig{
			EventName: "microcontroller_heartbeat",
		},
		Server: ServerConfig{
			Enabled: true,
			Port:    8080,
		},
	}
}

var validDrivers = map[string]bool{
	"nats":  true,
	"redis": true,
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found, accumulating all errors
// rather than stopping at the first.
func (c *Config) Validate() error {
	var errs []string

	if !validDrivers[strings.ToLower(c.NATS.Driver)] {
		errs = append(errs, fmt.Sprintf("nats: unknown driver %q (valid: nats, redis)", c.NATS.Driver))
	}
	if c.NATS.Driver == "nats" && c.NATS.URL == "" {
		errs = append(errs, "nats: url must not be empty")
	}
	if c.NATS.Driver == "redis" {
		if c.NATS.RedisAddr == "" {
			errs = append(errs, "nats: redis_addr must not be empty when driver is redis")
		}
		if c.NATS.RedisPoolSize < 1 {
			errs = append(errs, "nats: redis_pool_size must be >= 1")
		}
	}

	if c.WS.Port <= 0 || c.WS.Port > 65535 {
		errs = append(errs, fmt.Sprintf("ws: port must be 1-65535, got %d", c.WS.Port))
	}

	if !validLogLevels[strings.ToLower(c.Log.Level)] {
		errs = append(errs, fmt.Sprintf("log: unknown level %q (valid: debug, info, warn, error)", c.Log.Level))
	}
	if c.Log.Dir == "" {
		errs = append(errs, "log: dir must not be empty")
	}

	if c.Heartbeat.EventName == "" {
		errs = append(errs, "heartbeat: event_name must not be empty")
	}

	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
		if c.Server.Port == c.WS.Port {
			errs = append(errs, "server: port must differ from ws.port")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// Redacted returns a copy of cfg with secret-bearing fields replaced by a
// placeholder, for safe logging of the active configuration.
func Redacted(cfg *Config) Config {
	out := *cfg
	if out.NATS.RedisPassword != "" {
		out.NATS.RedisPassword = "***"
	}
	return out
}
