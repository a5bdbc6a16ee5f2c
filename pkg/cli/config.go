package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// UserConfig is the content of ~/.metricql/config.yaml.
type UserConfig struct {
	CurrentProfile string             `yaml:"current-profile"`
	Profiles       map[string]Profile `yaml:"profiles"`
}

// Profile holds the defaults of one named environment. Host and User address
// a server; Warehouse and DSN are used by the local compile, run and export
// commands.
type Profile struct {
	Host      string `yaml:"host,omitempty"`
	User      string `yaml:"user,omitempty"`
	Output    string `yaml:"output,omitempty"`
	Warehouse string `yaml:"warehouse,omitempty"`
	DSN       string `yaml:"dsn,omitempty"`
}

// ActiveProfile returns the named profile, or the current one when name is
// empty. Unknown profiles yield the zero Profile.
func (c *UserConfig) ActiveProfile(name string) Profile {
	if name == "" {
		name = c.CurrentProfile
	}
	return c.Profiles[name]
}

// ConfigDir returns ~/.metricql, or "" when the home directory is unknown.
func ConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".metricql")
}

// ConfigPath returns the location of the CLI config file.
func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// LoadUserConfig reads the CLI config file.
func LoadUserConfig() (*UserConfig, error) {
	data, err := os.ReadFile(ConfigPath())
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg := &UserConfig{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", ConfigPath(), err)
	}
	if cfg.Profiles == nil {
		cfg.Profiles = map[string]Profile{}
	}
	return cfg, nil
}

// SaveUserConfig writes cfg to the CLI config file, readable by the owner only
// since profiles may hold warehouse credentials.
func SaveUserConfig(cfg *UserConfig) error {
	if err := os.MkdirAll(ConfigDir(), 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.WriteFile(ConfigPath(), data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// loadOrEmptyConfig returns the saved config, or an empty one when the file
// does not exist yet. A malformed file is reported on stderr and ignored.
func loadOrEmptyConfig() *UserConfig {
	cfg, err := LoadUserConfig()
	if err == nil {
		return cfg
	}
	if !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "warning: ignoring config: %v\n", err)
	}
	return &UserConfig{Profiles: map[string]Profile{}}
}

// firstNonEmpty implements the flag > env > profile > default precedence for
// settings whose flag was not set explicitly.
func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
