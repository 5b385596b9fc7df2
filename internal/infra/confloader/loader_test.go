package confloader

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nishanthrs/redis-from-scratch/internal/server/config"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadFile(t *testing.T) {
	path := writeConfigFile(t, `
server:
  addr: "0.0.0.0:7000"
log:
  level: debug
`)

	l := NewLoader(WithConfigFile(path))
	cfg := config.Default()
	if err := l.Load(cfg); err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Addr != "0.0.0.0:7000" {
		t.Errorf("Server.Addr = %q", cfg.Server.Addr)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q", cfg.Log.Level)
	}
	// Values absent from the file keep their defaults.
	if cfg.Log.Format != "json" {
		t.Errorf("Log.Format = %q, want default json", cfg.Log.Format)
	}
	if !l.IsLoaded() {
		t.Error("IsLoaded() = false after Load")
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfigFile(t, `
server:
  addr: "0.0.0.0:7000"
`)
	t.Setenv("REDIS_SERVER_ADDR", "127.0.0.1:7001")

	l := NewLoader(WithConfigFile(path))
	cfg := config.Default()
	if err := l.Load(cfg); err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Addr != "127.0.0.1:7001" {
		t.Errorf("Server.Addr = %q, want env value", cfg.Server.Addr)
	}
}

func TestCustomEnvPrefix(t *testing.T) {
	t.Setenv("KV_LOG_LEVEL", "warn")

	l := NewLoader(WithEnvPrefix("KV_"))
	cfg := config.Default()
	if err := l.Load(cfg); err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Log.Level != "warn" {
		t.Errorf("Log.Level = %q", cfg.Log.Level)
	}
}

func TestLoadMap(t *testing.T) {
	l := NewLoader()
	if err := l.LoadMap(map[string]any{"log.level": "error"}); err != nil {
		t.Fatalf("LoadMap: %v", err)
	}

	if got := l.GetString("log.level"); got != "error" {
		t.Errorf("log.level = %q", got)
	}
}

func TestLoadMissingFile(t *testing.T) {
	l := NewLoader(WithConfigFile(filepath.Join(t.TempDir(), "absent.yaml")))
	if err := l.Load(config.Default()); err == nil {
		t.Error("Load of a missing file did not fail")
	}
}

func TestWatcherObservesWrite(t *testing.T) {
	path := writeConfigFile(t, "log:\n  level: info\n")

	w, err := NewWatcher()
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Stop()

	changed := make(chan string, 4)
	w.OnChange(func(p string) { changed <- p })

	if err := w.Watch(path); err != nil {
		t.Fatalf("Watch: %v", err)
	}
	w.StartAsync()

	if err := os.WriteFile(path, []byte("log:\n  level: debug\n"), 0o600); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}

	select {
	case <-changed:
	case <-time.After(5 * time.Second):
		t.Fatal("no change notification within 5s")
	}
}
