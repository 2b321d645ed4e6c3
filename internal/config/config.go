package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Store    StoreConfig    `yaml:"store"`
	Tracking TrackingConfig `yaml:"tracking"`
	Engine   EngineConfig   `yaml:"engine"`
	RPC      RPCConfig      `yaml:"rpc"`
	WS       WSConfig       `yaml:"ws"`
	Spool    SpoolConfig    `yaml:"spool"`
	Browser  BrowserConfig  `yaml:"browser"`
	Log      LogConfig      `yaml:"log"`
}

type StoreConfig struct {
	Path      string        `yaml:"path"`
	OpTimeout time.Duration `yaml:"op_timeout"`
}

type TrackingConfig struct {
	MinSession time.Duration `yaml:"min_session"`
}

type EngineConfig struct {
	QueueSize int `yaml:"queue_size"`
}

type RPCConfig struct {
	Addr string `yaml:"addr"`
}

type WSConfig struct {
	Addr           string   `yaml:"addr"` // empty disables the websocket/HTTP listener
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type SpoolConfig struct {
	Dir string `yaml:"dir"` // empty disables the spool tailer
}

type BrowserConfig struct {
	Enabled      bool          `yaml:"enabled"`
	ControlURL   string        `yaml:"control_url"`
	Headless     bool          `yaml:"headless"`
	URL          string        `yaml:"url"`
	URLMatch     string        `yaml:"url_match"`
	ElementID    string        `yaml:"element_id"`
	StatusPath   string        `yaml:"status_path"`
	TogglePath   string        `yaml:"toggle_path"`
	PollInterval time.Duration `yaml:"poll_interval"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Store: StoreConfig{
			Path:      "break_tracker.db",
			OpTimeout: 5 * time.Second,
		},
		Tracking: TrackingConfig{MinSession: 30 * time.Second},
		Engine:   EngineConfig{QueueSize: 256},
		RPC:      RPCConfig{Addr: "localhost:50061"},
		WS: WSConfig{
			Addr:           "localhost:8765",
			AllowedOrigins: []string{"chrome-extension://*"},
		},
		Browser: BrowserConfig{
			ElementID:    "break",
			StatusPath:   "/Telemonitor/GetAdvisorBreakStatus",
			TogglePath:   "/Telemonitor/ToggleBreak",
			PollInterval: 500 * time.Millisecond,
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load reads path over the defaults. A missing file yields the defaults.
// Environment overrides are applied last.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides selected fields from BREAK_* variables.
func (c *Config) ApplyEnv() {
	c.Store.Path = envOr("BREAK_DB", c.Store.Path)
	c.RPC.Addr = envOr("BREAK_RPC_ADDR", c.RPC.Addr)
	c.WS.Addr = envOr("BREAK_WS_ADDR", c.WS.Addr)
	c.Log.Level = envOr("BREAK_LOG_LEVEL", c.Log.Level)
}

func (c *Config) Validate() error {
	if c.Store.Path == "" {
		return errors.New("store.path is required")
	}
	if c.Tracking.MinSession < 0 {
		return fmt.Errorf("tracking.min_session must not be negative, got %s", c.Tracking.MinSession)
	}
	if c.Engine.QueueSize < 0 {
		return fmt.Errorf("engine.queue_size must not be negative, got %d", c.Engine.QueueSize)
	}
	if c.Browser.Enabled && c.Browser.URL == "" && c.Browser.URLMatch == "" {
		return errors.New("browser.url or browser.url_match is required when the browser observer is enabled")
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
