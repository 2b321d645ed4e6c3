package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Tracking.MinSession != 30*time.Second {
		t.Errorf("expected 30s minimum, got %v", cfg.Tracking.MinSession)
	}
	if cfg.Browser.ElementID != "break" || cfg.Engine.QueueSize != 256 {
		t.Errorf("unexpected defaults %+v", cfg)
	}
}

func TestLoad_OverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
store:
  path: /var/lib/break/breaks.db
tracking:
  min_session: 45s
spool:
  dir: /tmp/break-spool
browser:
  enabled: true
  url_match: telemonitor
  poll_interval: 250ms
ws:
  allowed_origins: ["http://localhost:3000"]
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Store.Path != "/var/lib/break/breaks.db" {
		t.Errorf("unexpected store path %q", cfg.Store.Path)
	}
	if cfg.Tracking.MinSession != 45*time.Second {
		t.Errorf("expected 45s, got %v", cfg.Tracking.MinSession)
	}
	if cfg.Browser.PollInterval != 250*time.Millisecond || !cfg.Browser.Enabled {
		t.Errorf("unexpected browser config %+v", cfg.Browser)
	}
	// Untouched nested fields keep their defaults.
	if cfg.Browser.TogglePath != "/Telemonitor/ToggleBreak" || cfg.Store.OpTimeout != 5*time.Second {
		t.Errorf("expected defaults preserved, got %+v / %+v", cfg.Browser, cfg.Store)
	}
	if len(cfg.WS.AllowedOrigins) != 1 || cfg.WS.AllowedOrigins[0] != "http://localhost:3000" {
		t.Errorf("unexpected origins %v", cfg.WS.AllowedOrigins)
	}
}

func TestLoad_EnvWins(t *testing.T) {
	path := writeConfig(t, "store:\n  path: from-file.db\n")
	t.Setenv("BREAK_DB", "from-env.db")
	t.Setenv("BREAK_LOG_LEVEL", "debug")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Store.Path != "from-env.db" || cfg.Log.Level != "debug" {
		t.Errorf("expected env overrides, got %q %q", cfg.Store.Path, cfg.Log.Level)
	}
}

func TestLoad_Malformed(t *testing.T) {
	path := writeConfig(t, "tracking: [unclosed")
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Tracking.MinSession = -time.Second
	if err := cfg.Validate(); err == nil {
		t.Error("expected negative minimum rejected")
	}

	cfg = Default()
	cfg.Browser.Enabled = true
	if err := cfg.Validate(); err == nil {
		t.Error("expected browser without target rejected")
	}
}
