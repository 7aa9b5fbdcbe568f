// internal/config/config.go
//
// This package handles daemon settings and the .modgraph directory structure.
// Every project that resolves module graphs gets a .modgraph/ folder in its root.

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// Dir is the name of the directory we create in each project
	Dir = ".modgraph"

	defaultCatalog       = "modules.yaml"
	defaultConfiguration = "threads.yaml"
	defaultStateDir      = "state"
	defaultMetricsAddr   = ":9464"
	defaultSubject       = "modgraph.views"
	defaultDebounce      = 250 * time.Millisecond
)

const defaultProjectConfigYAML = `# modgraph project configuration
version: 1

# Module catalog and thread configuration, relative to the project root.
catalog: modules.yaml
configuration: threads.yaml

# Engine state (last good configuration) lives under .modgraph/<state_dir>.
state_dir: state

logging:
  level: info      # info, verbose, debug, trace
  format: console  # console or json

metrics:
  address: ":9464"

# Leave nats_url empty to disable publishing.
publish:
  nats_url: ""
  subject: modgraph.views

watch:
  enabled: true
  debounce: 250ms
`

// LoggingConfig selects verbosity and encoding.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the HTTP listener that serves views and metrics.
type MetricsConfig struct {
	Address string `yaml:"address"`
}

// PublishConfig points at the NATS server that receives new views.
type PublishConfig struct {
	NATSURL string `yaml:"nats_url"`
	Subject string `yaml:"subject"`
}

// Enabled reports whether snapshots should be published.
func (p PublishConfig) Enabled() bool {
	return p.NATSURL != ""
}

// WatchConfig controls reloads on file changes.
type WatchConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Debounce time.Duration `yaml:"debounce"`
}

// ProjectConfig models .modgraph/config.yaml.
type ProjectConfig struct {
	Version       int           `yaml:"version"`
	Catalog       string        `yaml:"catalog"`
	Configuration string        `yaml:"configuration"`
	StateDir      string        `yaml:"state_dir"`
	Logging       LoggingConfig `yaml:"logging"`
	Metrics       MetricsConfig `yaml:"metrics"`
	Publish       PublishConfig `yaml:"publish"`
	Watch         WatchConfig   `yaml:"watch"`
}

// Config holds the runtime configuration for modgraph.
type Config struct {
	// ProjectDir is the directory modgraph runs against
	ProjectDir string

	// ModgraphDir is ProjectDir/.modgraph
	ModgraphDir string

	Project ProjectConfig
}

// InitDir creates the .modgraph directory structure in the given project directory.
//
// Structure created:
// .modgraph/
// ├── config.yaml
// ├── logs/         <- modgraph.log and the resolution logbook
// └── state/        <- last good configuration
func InitDir(projectDir string) error {
	dir := filepath.Join(projectDir, Dir)
	for _, sub := range []string{
		filepath.Join(dir, "logs"),
		filepath.Join(dir, defaultStateDir),
	} {
		if err := os.MkdirAll(sub, 0o755); err != nil {
			return err
		}
	}
	return ensureProjectConfig(filepath.Join(dir, "config.yaml"))
}

// NewConfig creates a new Config instance populated with project settings.
func NewConfig(projectDir string) (*Config, error) {
	abs, err := filepath.Abs(projectDir)
	if err != nil {
		return nil, fmt.Errorf("config: resolve project dir: %w", err)
	}
	cfg := &Config{
		ProjectDir:  abs,
		ModgraphDir: filepath.Join(abs, Dir),
		Project:     defaultProjectConfig(),
	}
	if err := cfg.loadProjectConfig(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ProjectConfigPath returns the on-disk location for the project config file.
func (c *Config) ProjectConfigPath() string {
	return filepath.Join(c.ModgraphDir, "config.yaml")
}

// CatalogPath returns the absolute path of the module catalog file.
func (c *Config) CatalogPath() string {
	return c.Project.Catalog
}

// ConfigurationPath returns the absolute path of the thread configuration file.
func (c *Config) ConfigurationPath() string {
	return c.Project.Configuration
}

// LogsDir returns the path to the logs directory
func (c *Config) LogsDir() string {
	return filepath.Join(c.ModgraphDir, "logs")
}

// LogFile returns the structured log file path
func (c *Config) LogFile() string {
	return filepath.Join(c.LogsDir(), "modgraph.log")
}

// LogbookPath returns the operator logbook path
func (c *Config) LogbookPath() string {
	return filepath.Join(c.LogsDir(), "resolutions.log")
}

// StateDir returns the path to the state directory
func (c *Config) StateDir() string {
	return filepath.Join(c.ModgraphDir, c.Project.StateDir)
}

// Save validates and writes the project settings back to .modgraph/config.yaml.
// Paths are stored relative to the project root when possible.
func (c *Config) Save() error {
	if c == nil {
		return fmt.Errorf("config: nil receiver")
	}
	c.Project.applyDefaults()
	c.Project.normalize(c.ProjectDir)
	if err := c.Project.validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := os.MkdirAll(c.ModgraphDir, 0o755); err != nil {
		return fmt.Errorf("config: ensure modgraph dir: %w", err)
	}
	out := c.Project
	out.Catalog = relativePath(c.ProjectDir, out.Catalog)
	out.Configuration = relativePath(c.ProjectDir, out.Configuration)
	data, err := yaml.Marshal(out)
	if err != nil {
		return fmt.Errorf("config: encode config: %w", err)
	}
	if err := os.WriteFile(c.ProjectConfigPath(), data, 0o644); err != nil {
		return fmt.Errorf("config: write project config: %w", err)
	}
	return nil
}

func (c *Config) loadProjectConfig() error {
	path := c.ProjectConfigPath()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			c.Project.normalize(c.ProjectDir)
			return nil
		}
		return fmt.Errorf("config: read %s: %w", path, err)
	}

	parsed := defaultProjectConfig()
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}

	parsed.applyDefaults()
	parsed.normalize(c.ProjectDir)
	if err := parsed.validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	c.Project = parsed
	return nil
}

func defaultProjectConfig() ProjectConfig {
	return ProjectConfig{
		Version:       1,
		Catalog:       defaultCatalog,
		Configuration: defaultConfiguration,
		StateDir:      defaultStateDir,
		Logging:       LoggingConfig{Level: "info", Format: "console"},
		Metrics:       MetricsConfig{Address: defaultMetricsAddr},
		Publish:       PublishConfig{Subject: defaultSubject},
		Watch:         WatchConfig{Enabled: true, Debounce: defaultDebounce},
	}
}

func (pc *ProjectConfig) applyDefaults() {
	if pc.Version == 0 {
		pc.Version = 1
	}
	if strings.TrimSpace(pc.Catalog) == "" {
		pc.Catalog = defaultCatalog
	}
	if strings.TrimSpace(pc.Configuration) == "" {
		pc.Configuration = defaultConfiguration
	}
	if strings.TrimSpace(pc.StateDir) == "" {
		pc.StateDir = defaultStateDir
	}
	if pc.Logging.Level == "" {
		pc.Logging.Level = "info"
	}
	if pc.Logging.Format == "" {
		pc.Logging.Format = "console"
	}
	if pc.Publish.Subject == "" {
		pc.Publish.Subject = defaultSubject
	}
	if pc.Watch.Debounce <= 0 {
		pc.Watch.Debounce = defaultDebounce
	}
}

func (pc *ProjectConfig) normalize(base string) {
	pc.Catalog = resolvePath(base, pc.Catalog)
	pc.Configuration = resolvePath(base, pc.Configuration)
	pc.StateDir = filepath.Clean(strings.TrimSpace(pc.StateDir))
	pc.Logging.Level = strings.ToLower(strings.TrimSpace(pc.Logging.Level))
	pc.Logging.Format = strings.ToLower(strings.TrimSpace(pc.Logging.Format))
	pc.Metrics.Address = strings.TrimSpace(pc.Metrics.Address)
	pc.Publish.NATSURL = strings.TrimSpace(pc.Publish.NATSURL)
	pc.Publish.Subject = strings.Trim(strings.TrimSpace(pc.Publish.Subject), ".")
}

func (pc *ProjectConfig) validate() error {
	if pc.Version < 1 {
		return fmt.Errorf("config version must be >= 1")
	}
	if filepath.IsAbs(pc.StateDir) || strings.HasPrefix(pc.StateDir, "..") {
		return fmt.Errorf("state_dir must stay inside %s", Dir)
	}
	switch pc.Logging.Level {
	case "info", "default", "verbose", "debug", "trace", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q is not supported", pc.Logging.Level)
	}
	switch pc.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be 'console' or 'json'")
	}
	if pc.Metrics.Address != "" {
		if _, _, err := net.SplitHostPort(pc.Metrics.Address); err != nil {
			return fmt.Errorf("metrics.address: %w", err)
		}
	}
	if pc.Publish.Enabled() && pc.Publish.Subject == "" {
		return fmt.Errorf("publish.subject is required when nats_url is set")
	}
	if strings.ContainsAny(pc.Publish.Subject, " *>") {
		return fmt.Errorf("publish.subject must be a literal subject")
	}
	return nil
}

func resolvePath(base, candidate string) string {
	trimmed := strings.TrimSpace(candidate)
	if trimmed == "" {
		return ""
	}
	if filepath.IsAbs(trimmed) {
		return filepath.Clean(trimmed)
	}
	return filepath.Clean(filepath.Join(base, trimmed))
}

func relativePath(base, path string) string {
	rel, err := filepath.Rel(base, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return path
	}
	return rel
}

func ensureProjectConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return os.WriteFile(path, []byte(defaultProjectConfigYAML), 0o644)
}
