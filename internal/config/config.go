// Package config loads urltrail settings: defaults, then a YAML file, then a
// .env file and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"
)

// Config is shared by the relay, the watcher and the panel.
type Config struct {
	// Listen is the relay's HTTP address.
	Listen string `yaml:"listen"`
	// Database is the SQLite file holding the shared key/value store.
	Database string `yaml:"database"`

	LogLevel      string `yaml:"log-level"`
	LogFile       string `yaml:"log-file"`
	LogMaxSizeMB  int    `yaml:"log-max-size-mb"`
	LogMaxBackups int    `yaml:"log-max-backups"`
	LogMaxAgeDays int    `yaml:"log-max-age-days"`

	Observer ObserverConfig `yaml:"observer"`
	Panel    PanelConfig    `yaml:"panel"`
}

type ObserverConfig struct {
	// DevToolsURL is the browser's remote debugging endpoint.
	DevToolsURL string `yaml:"devtools-url"`
	// RelayURL sends events to a running relay. Empty writes to the database directly.
	RelayURL          string        `yaml:"relay-url"`
	PollInterval      time.Duration `yaml:"poll-interval"`
	DiscoveryInterval time.Duration `yaml:"discovery-interval"`
}

type PanelConfig struct {
	RefreshInterval time.Duration `yaml:"refresh-interval"`
	ExportDir       string        `yaml:"export-dir"`
	// Location is an IANA zone name for row times. Empty means the local zone.
	Location string `yaml:"location"`
}

func DefaultConfig() Config {
	return Config{
		Listen:        "127.0.0.1:8123",
		Database:      filepath.Join(ApplicationDirectory(), "history.db"),
		LogLevel:      "info",
		LogMaxSizeMB:  10,
		LogMaxBackups: 3,
		LogMaxAgeDays: 28,
		Observer: ObserverConfig{
			DevToolsURL:       "http://127.0.0.1:9222",
			PollInterval:      500 * time.Millisecond,
			DiscoveryInterval: time.Second,
		},
		Panel: PanelConfig{
			RefreshInterval: time.Second,
			ExportDir:       ".",
		},
	}
}

// ApplicationDirectory is the platform-specific data directory.
func ApplicationDirectory() string {
	homeDirectory, err := os.UserHomeDir()
	if err != nil {
		return "urltrail-data"
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(homeDirectory, "Library", "Application Support", "URLTrail")
	case "windows":
		return filepath.Join(homeDirectory, "AppData", "Roaming", "URLTrail")
	default: // linux and others
		return filepath.Join(homeDirectory, ".local", "share", "URLTrail")
	}
}

// TimeLocation resolves Panel.Location.
func (c *Config) TimeLocation() (*time.Location, error) {
	if c.Panel.Location == "" || c.Panel.Location == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Panel.Location)
	if err != nil {
		return nil, fmt.Errorf("unknown panel location %q: %w", c.Panel.Location, err)
	}
	return loc, nil
}
