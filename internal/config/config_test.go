package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()
	if cfg.ServerPort == "" {
		t.Fatalf("expected default server port")
	}
	if cfg.SnapshotBackend != "file" {
		t.Fatalf("expected file snapshot backend")
	}
	if cfg.HostGrace != 30*time.Minute {
		t.Fatalf("expected 30m host grace, got %v", cfg.HostGrace)
	}
	if cfg.EmptyGrace != 5*time.Minute {
		t.Fatalf("expected 5m empty grace, got %v", cfg.EmptyGrace)
	}
	if cfg.SweepInterval != time.Minute {
		t.Fatalf("expected 60s sweep interval, got %v", cfg.SweepInterval)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", ":9000")
	t.Setenv("SNAPSHOT_BACKEND", "redis")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("HOST_GRACE", "10m")

	cfg := Load()
	if cfg.ServerPort != ":9000" {
		t.Fatalf("expected override port")
	}
	if cfg.SnapshotBackend != "redis" {
		t.Fatalf("expected override backend")
	}
	if cfg.RedisAddr != "redis:6379" {
		t.Fatalf("expected override redis")
	}
	if cfg.HostGrace != 10*time.Minute {
		t.Fatalf("expected override grace, got %v", cfg.HostGrace)
	}
}
