package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultsValidate(t *testing.T) {
	cfg := Defaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate cleanly: %v", err)
	}
}

func TestLoadMergesTOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "natsgw.toml")
	toml := `
[nats]
url = "nats://bus.internal:4222"

[ws]
port = 9000
`
	if err := os.WriteFile(path, []byte(toml), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.NATS.URL != "nats://bus.internal:4222" {
		t.Errorf("expected overridden nats url, got %s", cfg.NATS.URL)
	}
	if cfg.WS.Port != 9000 {
		t.Errorf("expected ws port 9000, got %d", cfg.WS.Port)
	}
	// Untouched fields should retain their defaults.
	if cfg.Heartbeat.EventName != "microcontroller_heartbeat" {
		t.Errorf("expected default heartbeat event name, got %s", cfg.Heartbeat.EventName)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "natsgw.toml")
	if err := os.WriteFile(path, []byte(""), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	os.Setenv("NATS_URL", "nats://override:4222")
	os.Setenv("NATSGW_WS_PORT", "9100")
	defer os.Unsetenv("NATS_URL")
	defer os.Unsetenv("NATSGW_WS_PORT")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.NATS.URL != "nats://override:4222" {
		t.Errorf("expected env-overridden nats url, got %s", cfg.NATS.URL)
	}
	if cfg.WS.Port != 9100 {
		t.Errorf("expected env-overridden ws port, got %d", cfg.WS.Port)
	}
}

func TestValidateRejectsUnknownDriver(t *testing.T) {
	cfg := Defaults()
	cfg.NATS.Driver = "carrier-pigeon"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for unknown driver")
	}
}

func TestValidateRejectsClashingPorts(t *testing.T) {
	cfg := Defaults()
	cfg.Server.Port = cfg.WS.Port
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for clashing ports")
	}
}

func TestRedactedHidesRedisPassword(t *testing.T) {
	cfg := Defaults()
	cfg.NATS.RedisPassword = "hunter2"

	redacted := Redacted(&cfg)
	if redacted.NATS.RedisPassword != "***" {
		t.Errorf("expected redacted password, got %s", redacted.NATS.RedisPassword)
	}
	if cfg.NATS.RedisPassword != "hunter2" {
		t.Errorf("Redacted must not mutate the original config")
	}
}
