package config

import (
	"os"
	"strconv"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies NATSGW_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known NATSGW_* environment variables (and a
// handful of bare, service-agnostic names) and overwrites the corresponding
// Config fields when a variable is set (i.e. not empty). This lets operators
// inject deploy-time values without touching the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── NATS / bus ──
	setStr(&cfg.NATS.Driver, "NATSGW_NATS_DRIVER")
	setStr(&cfg.NATS.URL, "NATS_URL")
	setStr(&cfg.NATS.URL, "NATSGW_NATS_URL") // namespaced alias
	setStr(&cfg.NATS.ClientName, "NATS_CLIENT_NAME")
	setStr(&cfg.NATS.ClientName, "NATSGW_NATS_CLIENT_NAME")
	setStr(&cfg.NATS.RedisAddr, "NATSGW_REDIS_ADDR")
	setStr(&cfg.NATS.RedisPassword, "NATSGW_REDIS_PASSWORD")
	setInt(&cfg.NATS.RedisDB, "NATSGW_REDIS_DB")
	setInt(&cfg.NATS.RedisPoolSize, "NATSGW_REDIS_POOL_SIZE")
	setInt(&cfg.NATS.RedisMaxRetries, "NATSGW_REDIS_MAX_RETRIES")

	// ── WS ──
	setStr(&cfg.WS.Host, "WS_HOST")
	setStr(&cfg.WS.Host, "NATSGW_WS_HOST")
	setInt(&cfg.WS.Port, "WS_PORT")
	setInt(&cfg.WS.Port, "NATSGW_WS_PORT")

	// ── Log ──
	setStr(&cfg.Log.Dir, "LOG_DIR")
	setStr(&cfg.Log.Dir, "NATSGW_LOG_DIR")
	setStr(&cfg.Log.Level, "LOG_LEVEL")
	setStr(&cfg.Log.Level, "NATSGW_LOG_LEVEL")

	// ── Heartbeat ──
	setStr(&cfg.Heartbeat.EventName, "HEARTBEAT_EVENT_NAME")
	setStr(&cfg.Heartbeat.EventName, "NATSGW_HEARTBEAT_EVENT_NAME")

	// ── Server (admin HTTP surface) ──
	setBool(&cfg.Server.Enabled, "NATSGW_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "NATSGW_SERVER_PORT")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}
