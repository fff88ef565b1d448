package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadYAMLWithEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := []byte(`
server:
  port: "9090"
store:
  driver: sqlite
  dsn: /tmp/quiz.db
redis:
  addr: localhost:6379
catalog:
  ttl: 5m
lock:
  backend: redis
log:
  level: debug
`)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("DATABASE_URL", "/tmp/override.db")
	t.Setenv("REDIS_DB", "2")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != "9090" {
		t.Fatalf("expected port from yaml, got %q", cfg.Server.Port)
	}
	if cfg.Store.Driver != "sqlite" || cfg.Store.DSN != "/tmp/override.db" {
		t.Fatalf("unexpected store config %+v", cfg.Store)
	}
	if cfg.Redis.Addr != "localhost:6379" || cfg.Redis.DB != 2 {
		t.Fatalf("unexpected redis config %+v", cfg.Redis)
	}
	if cfg.Lock.Backend != "redis" || cfg.Log.Level != "debug" {
		t.Fatalf("unexpected lock/log config %+v %+v", cfg.Lock, cfg.Log)
	}
	if got := TTLDuration(cfg.Catalog.TTL, time.Minute); got != 5*time.Minute {
		t.Fatalf("expected 5m ttl, got %s", got)
	}
}

func TestLoadMissingFileUsesEnv(t *testing.T) {
	t.Setenv("STORE_DRIVER", "postgres")
	t.Setenv("PORT", "7070")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Store.Driver != "postgres" || cfg.Server.Port != "7070" {
		t.Fatalf("unexpected config %+v", cfg)
	}
}

func TestLoadRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server: [unterminated"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestTTLDurationFallback(t *testing.T) {
	if got := TTLDuration("", time.Second); got != time.Second {
		t.Fatalf("expected fallback for empty, got %s", got)
	}
	if got := TTLDuration("soon", time.Second); got != time.Second {
		t.Fatalf("expected fallback for garbage, got %s", got)
	}
}
