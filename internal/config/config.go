// Package config loads daemon settings from ~/.chime.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fentz26/chime/internal/alert"
	"github.com/fentz26/chime/internal/scheduler"
	"github.com/tailscale/hujson"
	"gopkg.in/yaml.v3"
)

// Storage backends.
const (
	BackendSQLite = "sqlite"
	BackendFile   = "file"
)

// Config holds daemon configuration.
type Config struct {
	// DataDir holds the SQLite database or slot files.
	DataDir string `yaml:"data_dir" json:"data_dir"`
	// Backend selects the slot implementation: sqlite or file.
	Backend string `yaml:"backend" json:"backend"`
	// Listen is the API server address.
	Listen    string          `yaml:"listen" json:"listen"`
	Scheduler SchedulerConfig `yaml:"scheduler" json:"scheduler"`
	Alert     AlertConfig     `yaml:"alert" json:"alert"`
}

// SchedulerConfig holds reminder scanner timings as duration strings ("1s", "1m").
type SchedulerConfig struct {
	Interval string `yaml:"interval" json:"interval"`
	Window   string `yaml:"window" json:"window"`
}

// AlertConfig selects how reminders are delivered.
type AlertConfig struct {
	Title string `yaml:"title" json:"title"`
	// Notifier is auto, command, or terminal.
	Notifier string `yaml:"notifier" json:"notifier"`
	// Player is bell, command, or none.
	Player string `yaml:"player" json:"player"`
	// Sound is passed to the audio command when Player is command.
	Sound        string `yaml:"sound" json:"sound"`
	BellInterval string `yaml:"bell_interval" json:"bell_interval"`
}

// Dir returns ~/.chime, or .chime when the home directory is unknown.
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".chime"
	}
	return filepath.Join(home, ".chime")
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	sch := scheduler.DefaultConfig()
	return &Config{
		DataDir: Dir(),
		Backend: BackendSQLite,
		Listen:  "127.0.0.1:7467",
		Scheduler: SchedulerConfig{
			Interval: sch.Interval.String(),
			Window:   sch.Window.String(),
		},
		Alert: AlertConfig{
			Title:        alert.DefaultTitle,
			Notifier:     "auto",
			Player:       "bell",
			BellInterval: "2s",
		},
	}
}

// Load reads configuration from path. YAML is the default format; files
// ending in .json or .jsonc are parsed as JSON with comments.
// A missing file yields the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := DefaultConfig()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		standardized, err := hujson.Standardize(data)
		if err != nil {
			return nil, fmt.Errorf("parsing config file: invalid JSONC: %w", err)
		}
		if err := json.Unmarshal(standardized, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// LoadFromHome loads ~/.chime/config.yaml.
func LoadFromHome() (*Config, error) {
	return Load(filepath.Join(Dir(), "config.yaml"))
}

// Save writes cfg as YAML, creating parent directories if needed.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config cannot be nil")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}
	if c.Backend != BackendSQLite && c.Backend != BackendFile {
		return fmt.Errorf("invalid backend %q, must be: sqlite or file", c.Backend)
	}
	if c.Listen == "" {
		return fmt.Errorf("listen is required")
	}

	if _, err := c.SchedulerConfig(); err != nil {
		return err
	}

	validNotifiers := map[string]bool{"auto": true, "command": true, "terminal": true}
	if !validNotifiers[c.Alert.Notifier] {
		return fmt.Errorf("invalid alert.notifier %q, must be: auto, command, or terminal", c.Alert.Notifier)
	}
	validPlayers := map[string]bool{"bell": true, "command": true, "none": true}
	if !validPlayers[c.Alert.Player] {
		return fmt.Errorf("invalid alert.player %q, must be: bell, command, or none", c.Alert.Player)
	}
	if _, err := c.BellInterval(); err != nil {
		return err
	}

	return nil
}

// SchedulerConfig converts the duration strings into a scanner config.
func (c *Config) SchedulerConfig() (*scheduler.Config, error) {
	interval, err := time.ParseDuration(c.Scheduler.Interval)
	if err != nil {
		return nil, fmt.Errorf("scheduler.interval: %w", err)
	}
	window, err := time.ParseDuration(c.Scheduler.Window)
	if err != nil {
		return nil, fmt.Errorf("scheduler.window: %w", err)
	}

	cfg := &scheduler.Config{Interval: interval, Window: window}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// BellInterval returns the terminal bell repeat interval.
func (c *Config) BellInterval() (time.Duration, error) {
	d, err := time.ParseDuration(c.Alert.BellInterval)
	if err != nil {
		return 0, fmt.Errorf("alert.bell_interval: %w", err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("alert.bell_interval must be positive")
	}
	return d, nil
}

// DBPath returns the SQLite database location inside DataDir.
func (c *Config) DBPath() string {
	return filepath.Join(c.DataDir, "chime.db")
}
