package config

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/aidanlsb/cstudio/internal/atomicfile"
)

// fileConfig is the on-disk shape of Config. Empty settings are omitted so a
// saved file only carries what the user set.
type fileConfig struct {
	DefaultProject *string           `toml:"default_project,omitempty"`
	Projects       map[string]string `toml:"projects,omitempty"`
	UI             *fileUI           `toml:"ui,omitempty"`
}

type fileUI struct {
	Accent *string `toml:"accent,omitempty"`
}

func optional(s string) *string {
	if s = strings.TrimSpace(s); s == "" {
		return nil
	}
	return &s
}

func (c *Config) toFile() fileConfig {
	fc := fileConfig{DefaultProject: optional(c.DefaultProject)}
	if len(c.Projects) > 0 {
		fc.Projects = c.Projects
	}
	if accent := optional(c.UI.Accent); accent != nil {
		fc.UI = &fileUI{Accent: accent}
	}
	return fc
}

// SaveTo atomically writes cfg as TOML to path, creating parent directories.
func SaveTo(path string, cfg *Config) error {
	if strings.TrimSpace(path) == "" {
		return errors.New("config path is required")
	}
	if cfg == nil {
		cfg = &Config{}
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg.toFile()); err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := atomicfile.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write config %s: %w", path, err)
	}
	return nil
}

// RegisterProject adds (or repoints) a named project. The first project
// registered becomes the default.
func (c *Config) RegisterProject(name, path string) {
	if c.Projects == nil {
		c.Projects = make(map[string]string)
	}
	c.Projects[name] = path
	if c.DefaultProject == "" {
		c.DefaultProject = name
	}
}
