package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Load reads configuration relative to the working directory.
// explicitPath, when set, must exist and replaces file discovery.
func Load(explicitPath string) (*Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("getting working directory: %w", err)
	}
	return LoadFrom(cwd, explicitPath)
}

// LoadFrom is Load with an explicit project directory.
func LoadFrom(dir, explicitPath string) (*Config, error) {
	cfg := DefaultConfig()

	path := explicitPath
	if path == "" {
		path = discoverConfigPath(dir)
	}
	if path != "" {
		if err := loadFromFile(path, &cfg); err != nil {
			return nil, fmt.Errorf("loading %s: %w", path, err)
		}
		log.WithField("path", path).Debug("config file loaded")
	}

	if err := godotenv.Load(filepath.Join(dir, ".env")); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.WithError(err).Warn("failed to load .env file")
	}
	applyEnvOverrides(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return &cfg, nil
}

// discoverConfigPath returns the first existing file of ./urltrail.yaml and
// ~/.config/urltrail/config.yaml, or "" for defaults only.
func discoverConfigPath(dir string) string {
	local := filepath.Join(dir, "urltrail.yaml")
	if _, err := os.Stat(local); err == nil {
		return local
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	user := filepath.Join(home, ".config", "urltrail", "config.yaml")
	if _, err := os.Stat(user); err == nil {
		return user
	}
	return ""
}

// loadFromFile decodes YAML over cfg, so absent keys keep their defaults.
func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing YAML: %w", err)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	overrides := []struct {
		name   string
		target *string
	}{
		{"URLTRAIL_ADDRESS", &cfg.Listen},
		{"URLTRAIL_DATABASE", &cfg.Database},
		{"URLTRAIL_LOG_LEVEL", &cfg.LogLevel},
		{"URLTRAIL_LOG_FILE", &cfg.LogFile},
		{"URLTRAIL_DEVTOOLS", &cfg.Observer.DevToolsURL},
		{"URLTRAIL_RELAY_URL", &cfg.Observer.RelayURL},
	}
	for _, o := range overrides {
		if v := strings.TrimSpace(os.Getenv(o.name)); v != "" {
			*o.target = v
		}
	}
}

func validate(cfg *Config) error {
	if strings.TrimSpace(cfg.Listen) == "" {
		return fmt.Errorf("listen address must not be empty")
	}
	if strings.TrimSpace(cfg.Database) == "" {
		return fmt.Errorf("database path must not be empty")
	}
	if cfg.Observer.PollInterval <= 0 {
		return fmt.Errorf("observer.poll-interval must be positive, got %s", cfg.Observer.PollInterval)
	}
	if cfg.Observer.DiscoveryInterval <= 0 {
		return fmt.Errorf("observer.discovery-interval must be positive, got %s", cfg.Observer.DiscoveryInterval)
	}
	if cfg.Panel.RefreshInterval <= 0 {
		return fmt.Errorf("panel.refresh-interval must be positive, got %s", cfg.Panel.RefreshInterval)
	}
	if _, err := cfg.TimeLocation(); err != nil {
		return err
	}
	return nil
}
