package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrNoProject is returned when no project can be resolved.
var ErrNoProject = errors.New("no project specified")

// ResolveProjectPath picks the project to operate on. The order is: an
// explicit path, then a named project from cfg, then cfg's default project,
// then dir when it contains studio.yaml.
func ResolveProjectPath(explicitPath, name string, cfg *Config, dir string) (string, error) {
	if strings.TrimSpace(explicitPath) != "" {
		return filepath.Abs(explicitPath)
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if name != "" {
		p, err := cfg.GetProjectPath(name)
		if err != nil {
			return "", err
		}
		return filepath.Abs(p)
	}
	if cfg.DefaultProject != "" {
		p, err := cfg.GetProjectPath("")
		if err != nil {
			return "", err
		}
		return filepath.Abs(p)
	}
	if dir != "" {
		if _, err := os.Stat(filepath.Join(dir, ProjectFile)); err == nil {
			return filepath.Abs(dir)
		}
	}
	return "", fmt.Errorf("%w: use --project-path, --project <name>, set default_project in %s, or run inside a directory with %s",
		ErrNoProject, DefaultPath(), ProjectFile)
}
