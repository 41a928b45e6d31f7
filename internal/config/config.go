// Package config handles global cstudio configuration and the per-project
// studio.yaml.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/BurntSushi/toml"
)

// Config represents the global cstudio configuration.
type Config struct {
	// DefaultProject is the name of the default project (from Projects map).
	DefaultProject string `toml:"default_project"`

	// Projects is a map of project names to paths.
	Projects map[string]string `toml:"projects"`

	// UI controls optional CLI theming preferences.
	UI UIConfig `toml:"ui"`
}

// UIConfig represents optional CLI theming preferences.
type UIConfig struct {
	// Accent is an optional accent color for CLI output.
	// Supported values are ANSI color codes ("0" to "255") or hex colors ("#RRGGBB").
	Accent string `toml:"accent"`
}

// GetProjectPath returns the path for a named project.
// If name is empty, returns the default project path.
func (c *Config) GetProjectPath(name string) (string, error) {
	if name == "" {
		name = c.DefaultProject
	}
	if name == "" {
		return "", fmt.Errorf("no default project configured")
	}
	if path, ok := c.Projects[name]; ok {
		return path, nil
	}
	return "", fmt.Errorf("project '%s' not found in config", name)
}

// ProjectNames returns the configured project names in order.
func (c *Config) ProjectNames() []string {
	names := make([]string, 0, len(c.Projects))
	for name := range c.Projects {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Load loads the configuration from the default location.
// Returns a default config if the file doesn't exist.
func Load() (*Config, error) {
	return LoadFrom(DefaultPath())
}

// LoadFrom loads the configuration from a specific path. A missing file
// yields an empty config.
func LoadFrom(path string) (*Config, error) {
	var config Config
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return &config, nil
	}
	if _, err := toml.DecodeFile(path, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return &config, nil
}

// DefaultPath returns the default config file path.
// $CSTUDIO_CONFIG wins; then ~/.config/cstudio/config.toml (XDG style);
// then the OS-specific config directory.
func DefaultPath() string {
	if p := os.Getenv("CSTUDIO_CONFIG"); p != "" {
		return p
	}
	if home, err := os.UserHomeDir(); err == nil {
		xdgPath := filepath.Join(home, ".config", "cstudio", "config.toml")
		if _, err := os.Stat(xdgPath); err == nil {
			return xdgPath
		}
	}
	if configDir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(configDir, "cstudio", "config.toml")
	}
	return filepath.Join(".", "config.toml")
}
