package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestNewConfigDefaultsWhenMissing(t *testing.T) {
	projectDir := t.TempDir()
	c, err := NewConfig(projectDir)
	if err != nil {
		t.Fatalf("NewConfig returned error: %v", err)
	}
	if c.Project.Version != 1 {
		t.Fatalf("expected default version == 1, got %d", c.Project.Version)
	}
	if c.CatalogPath() != filepath.Join(c.ProjectDir, defaultCatalog) {
		t.Fatalf("unexpected catalog path %s", c.CatalogPath())
	}
	if c.StateDir() != filepath.Join(c.ProjectDir, Dir, defaultStateDir) {
		t.Fatalf("unexpected state dir %s", c.StateDir())
	}
	if c.Project.Publish.Enabled() {
		t.Fatalf("publishing must be off by default")
	}
	if !c.Project.Watch.Enabled || c.Project.Watch.Debounce != defaultDebounce {
		t.Fatalf("unexpected watch defaults: %+v", c.Project.Watch)
	}
}

func TestInitDirWritesParseableDefaults(t *testing.T) {
	projectDir := t.TempDir()
	if err := InitDir(projectDir); err != nil {
		t.Fatalf("InitDir: %v", err)
	}
	for _, sub := range []string{"logs", defaultStateDir} {
		if info, err := os.Stat(filepath.Join(projectDir, Dir, sub)); err != nil || !info.IsDir() {
			t.Fatalf("expected %s directory: %v", sub, err)
		}
	}
	c, err := NewConfig(projectDir)
	if err != nil {
		t.Fatalf("NewConfig after init: %v", err)
	}
	if c.Project.Metrics.Address != defaultMetricsAddr || c.Project.Publish.Subject != defaultSubject {
		t.Fatalf("unexpected parsed defaults: %+v", c.Project)
	}
	// A second init must not clobber edits.
	if err := os.WriteFile(c.ProjectConfigPath(), []byte("version: 1\ncatalog: other.yaml\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := InitDir(projectDir); err != nil {
		t.Fatalf("InitDir again: %v", err)
	}
	data, _ := os.ReadFile(c.ProjectConfigPath())
	if !strings.Contains(string(data), "other.yaml") {
		t.Fatalf("InitDir overwrote existing config")
	}
}

func TestLoadProjectConfigParsesYaml(t *testing.T) {
	projectDir := t.TempDir()
	configYAML := strings.TrimSpace(`
version: 1
catalog: robot/modules.yaml
configuration: /etc/robot/threads.yaml
logging:
  level: DEBUG
  format: json
publish:
  nats_url: nats://127.0.0.1:4222
  subject: robot.views.
watch:
  enabled: false
  debounce: 1s
`)
	writeConfig(t, projectDir, configYAML)
	c, err := NewConfig(projectDir)
	if err != nil {
		t.Fatalf("NewConfig returned error: %v", err)
	}
	if c.CatalogPath() != filepath.Join(c.ProjectDir, "robot", "modules.yaml") {
		t.Fatalf("expected catalog path to be resolved, got %s", c.CatalogPath())
	}
	if c.ConfigurationPath() != "/etc/robot/threads.yaml" {
		t.Fatalf("absolute configuration path changed: %s", c.ConfigurationPath())
	}
	if c.Project.Logging.Level != "debug" || c.Project.Logging.Format != "json" {
		t.Fatalf("unexpected logging: %+v", c.Project.Logging)
	}
	if !c.Project.Publish.Enabled() || c.Project.Publish.Subject != "robot.views" {
		t.Fatalf("unexpected publish: %+v", c.Project.Publish)
	}
	if c.Project.Watch.Enabled || c.Project.Watch.Debounce != time.Second {
		t.Fatalf("unexpected watch: %+v", c.Project.Watch)
	}
}

func TestLoadProjectConfigValidation(t *testing.T) {
	tests := map[string]string{
		"state dir escapes": "state_dir: ../outside\n",
		"bad level":         "logging:\n  level: loud\n",
		"bad format":        "logging:\n  format: xml\n",
		"bad address":       "metrics:\n  address: localhost\n",
		"wildcard subject":  "publish:\n  nats_url: nats://x\n  subject: views.*\n",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			projectDir := t.TempDir()
			writeConfig(t, projectDir, "version: 1\n"+body)
			if _, err := NewConfig(projectDir); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestSaveRoundTripsRelativePaths(t *testing.T) {
	projectDir := t.TempDir()
	c, err := NewConfig(projectDir)
	if err != nil {
		t.Fatalf("NewConfig: %v", err)
	}
	c.Project.Catalog = filepath.Join(c.ProjectDir, "catalogs", "nao.yaml")
	c.Project.Metrics.Address = "127.0.0.1:9000"
	if err := c.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}
	data, err := os.ReadFile(c.ProjectConfigPath())
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "catalog: catalogs/nao.yaml") {
		t.Fatalf("catalog path not stored relative:\n%s", data)
	}
	reloaded, err := NewConfig(projectDir)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.CatalogPath() != c.Project.Catalog || reloaded.Project.Metrics.Address != "127.0.0.1:9000" {
		t.Fatalf("round trip mismatch: %+v", reloaded.Project)
	}
}

func writeConfig(t *testing.T, projectDir, body string) {
	t.Helper()
	dir := filepath.Join(projectDir, Dir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
}
