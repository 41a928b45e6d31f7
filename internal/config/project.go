package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/aidanlsb/cstudio/internal/atomicfile"
	"github.com/aidanlsb/cstudio/internal/paths"
)

// ProjectFile is the per-project configuration file at the project root.
const ProjectFile = "studio.yaml"

// Defaults for ProjectConfig.
const (
	DefaultSchemaFile    = "_schema.yaml"
	DefaultTopReferenced = 10
	DefaultDebounce      = 150 * time.Millisecond
	DefaultServerAddr    = "127.0.0.1:7777"
	DefaultRateLimit     = 20
	DefaultBurst         = 40
)

// ProjectConfig is read from studio.yaml. Every key is optional.
type ProjectConfig struct {
	// ContentDir holds one directory per content type (default: project root).
	ContentDir string `yaml:"content_dir,omitempty"`

	// SchemaFile is the per-type-directory schema file name.
	SchemaFile string `yaml:"schema_file,omitempty"`

	// Extensions are the document file extensions indexed.
	Extensions []string `yaml:"extensions,omitempty"`

	// Ignore lists doublestar globs, relative to ContentDir, that are never scanned.
	Ignore []string `yaml:"ignore,omitempty"`

	// TopReferenced caps the analytics most-referenced list.
	TopReferenced int `yaml:"top_referenced,omitempty"`

	// LeafTypes are types whose orphans the CLI hides unless asked.
	LeafTypes []string `yaml:"leaf_types,omitempty"`

	// AuditLog records create, delete and reindex operations in
	// .cstudio/audit.log (default: true).
	AuditLog *bool `yaml:"audit_log,omitempty"`

	Watch  WatchConfig  `yaml:"watch,omitempty"`
	Server ServerConfig `yaml:"server,omitempty"`
}

// WatchConfig configures `cstudio watch`.
type WatchConfig struct {
	// Debounce is a Go duration string, e.g. "150ms".
	Debounce string `yaml:"debounce,omitempty"`
}

// ServerConfig configures `cstudio serve`.
type ServerConfig struct {
	Addr      string  `yaml:"addr,omitempty"`
	RateLimit float64 `yaml:"rate_limit,omitempty"`
	Burst     int     `yaml:"burst,omitempty"`
}

// DefaultProjectConfig returns a config with every default filled in.
func DefaultProjectConfig() *ProjectConfig {
	cfg := &ProjectConfig{}
	cfg.applyDefaults()
	return cfg
}

func (pc *ProjectConfig) applyDefaults() {
	if pc.ContentDir == "" {
		pc.ContentDir = "."
	}
	if pc.SchemaFile == "" {
		pc.SchemaFile = DefaultSchemaFile
	}
	if len(pc.Extensions) == 0 {
		pc.Extensions = []string{".yaml", ".yml"}
	}
	if pc.TopReferenced <= 0 {
		pc.TopReferenced = DefaultTopReferenced
	}
	if pc.LeafTypes == nil {
		pc.LeafTypes = []string{"areas"}
	}
	if pc.Server.Addr == "" {
		pc.Server.Addr = DefaultServerAddr
	}
	if pc.Server.RateLimit <= 0 {
		pc.Server.RateLimit = DefaultRateLimit
	}
	if pc.Server.Burst <= 0 {
		pc.Server.Burst = DefaultBurst
	}
}

// LoadProjectConfig loads studio.yaml from the project root. A missing file
// yields the defaults.
func LoadProjectConfig(projectPath string) (*ProjectConfig, error) {
	configPath := filepath.Join(projectPath, ProjectFile)

	data, err := os.ReadFile(configPath)
	if errors.Is(err, os.ErrNotExist) {
		return DefaultProjectConfig(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", ProjectFile, err)
	}

	var cfg ProjectConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", ProjectFile, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", ProjectFile, err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (pc *ProjectConfig) validate() error {
	if pc.Watch.Debounce != "" {
		d, err := time.ParseDuration(pc.Watch.Debounce)
		if err != nil {
			return fmt.Errorf("watch.debounce: %w", err)
		}
		if d < 0 {
			return fmt.Errorf("watch.debounce must not be negative")
		}
	}
	if pc.ContentDir != "" {
		rel := paths.NormalizeRel(pc.ContentDir)
		if filepath.IsAbs(pc.ContentDir) || rel == ".." || paths.TopDir(rel) == ".." {
			return fmt.Errorf("content_dir must be inside the project: %s", pc.ContentDir)
		}
	}
	return nil
}

// ContentRoot returns the absolute content directory for a project.
func (pc *ProjectConfig) ContentRoot(projectPath string) string {
	return filepath.Join(projectPath, filepath.FromSlash(paths.NormalizeRel(pc.ContentDir)))
}

// DebounceDuration returns the watcher debounce delay.
func (pc *ProjectConfig) DebounceDuration() time.Duration {
	if d, err := time.ParseDuration(pc.Watch.Debounce); err == nil && d > 0 {
		return d
	}
	return DefaultDebounce
}

// IsAuditLogEnabled reports whether the audit log is on.
func (pc *ProjectConfig) IsAuditLogEnabled() bool {
	return pc.AuditLog == nil || *pc.AuditLog
}

// IsLeafType reports whether t is listed in leaf_types.
func (pc *ProjectConfig) IsLeafType(t string) bool {
	for _, lt := range pc.LeafTypes {
		if lt == t {
			return true
		}
	}
	return false
}

// CreateDefaultProjectConfig writes a commented studio.yaml if none exists.
// It reports whether a file was written.
func CreateDefaultProjectConfig(projectPath string) (bool, error) {
	configPath := filepath.Join(projectPath, ProjectFile)
	if _, err := os.Stat(configPath); err == nil {
		return false, nil
	}

	defaultConfig := `# cstudio project configuration
# Every key is optional; the values below are the defaults.

# Directory holding one sub-directory per content type (rooms/, items/, ...)
# content_dir: .

# Per-type schema file, e.g. rooms/_schema.yaml
# schema_file: _schema.yaml

# extensions: [.yaml, .yml]

# Globs (relative to content_dir) that are never indexed
# ignore:
#   - "**/drafts/**"

# Analytics: length of the most-referenced list
# top_referenced: 10

# Types whose orphans are expected (hidden by 'cstudio analytics' unless --all)
# leaf_types: [areas]

# Record create, delete and reindex operations in .cstudio/audit.log
# audit_log: true

# watch:
#   debounce: 150ms

# server:
#   addr: 127.0.0.1:7777
#   rate_limit: 20
#   burst: 40
`
	if err := atomicfile.WriteFile(configPath, []byte(defaultConfig), 0o644); err != nil {
		return false, fmt.Errorf("failed to write %s: %w", ProjectFile, err)
	}
	return true, nil
}

// SaveProjectConfig writes cfg back to studio.yaml.
func SaveProjectConfig(projectPath string, cfg *ProjectConfig) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := atomicfile.WriteFile(filepath.Join(projectPath, ProjectFile), data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", ProjectFile, err)
	}
	return nil
}
