package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"

	"github.com/kingrea/modgraph/internal/config"
	"github.com/kingrea/modgraph/internal/workflow/engine"
)

const testCatalog = `
modules:
  - name: CameraProvider
    provides: [CameraImage]
  - name: BallPerceptor
    requires: [UpperCameraImage, JointAngles]
    provides: [BallPercept]
`

const testConfiguration = `
threads:
  - name: Upper
    providers:
      - {representation: CameraImage, module: CameraProvider}
  - name: Cognition
    providers:
      - {representation: BallPercept, module: BallPerceptor}
defaults: [JointAngles]
`

func TestOptionsFlags(t *testing.T) {
	opts := NewOptions()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	opts.AddFlags(fs)
	dir := t.TempDir()
	args := []string{"-p", dir, "--catalog", "cat.yaml", "--log-level", "debug", "--nats-url", "nats://127.0.0.1:4222", "--no-watch"}
	if err := fs.Parse(args); err != nil {
		t.Fatalf("parse: %v", err)
	}
	if err := opts.Complete(); err != nil {
		t.Fatalf("complete: %v", err)
	}
	cfg, err := config.NewConfig(dir)
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	opts.Apply(cfg)
	if cfg.CatalogPath() != filepath.Join(opts.ProjectDir, "cat.yaml") {
		t.Fatalf("catalog path = %s", cfg.CatalogPath())
	}
	if cfg.Project.Logging.Level != "debug" || cfg.Project.Watch.Enabled || !cfg.Project.Publish.Enabled() {
		t.Fatalf("flags not applied: %+v", cfg.Project)
	}
}

func TestOptionsRejectUnknownFormat(t *testing.T) {
	opts := NewOptions()
	opts.LogFormat = "xml"
	if err := opts.Complete(); err == nil {
		t.Fatalf("expected error for unknown format")
	}
}

func TestRunUsage(t *testing.T) {
	if code := run(nil); code != 2 {
		t.Fatalf("no command exit = %d, want 2", code)
	}
	if code := run([]string{"bogus"}); code != 2 {
		t.Fatalf("unknown command exit = %d, want 2", code)
	}
	if code := run([]string{"help"}); code != 0 {
		t.Fatalf("help exit = %d, want 0", code)
	}
}

func TestRunInitAndResolve(t *testing.T) {
	dir := t.TempDir()
	if code := run([]string{"init", "-p", dir}); code != 0 {
		t.Fatalf("init exit = %d", code)
	}
	if _, err := os.Stat(filepath.Join(dir, config.Dir, "config.yaml")); err != nil {
		t.Fatalf("config.yaml missing: %v", err)
	}
	writeFile(t, filepath.Join(dir, "modules.yaml"), testCatalog)
	writeFile(t, filepath.Join(dir, "threads.yaml"), testConfiguration)
	if code := run([]string{"resolve", "-p", dir}); code != 0 {
		t.Fatalf("resolve exit = %d", code)
	}
	cfg, err := config.NewConfig(dir)
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	state, err := engine.NewRepository(cfg.StateDir()).Load()
	if err != nil {
		t.Fatalf("state not persisted: %v", err)
	}
	if state.Generation != 1 {
		t.Fatalf("generation = %d, want 1", state.Generation)
	}
}

func TestRunResolveRejectsConfiguration(t *testing.T) {
	dir := t.TempDir()
	if code := run([]string{"init", "-p", dir}); code != 0 {
		t.Fatalf("init exit = %d", code)
	}
	writeFile(t, filepath.Join(dir, "modules.yaml"), testCatalog)
	writeFile(t, filepath.Join(dir, "threads.yaml"), `
threads:
  - name: Cognition
    providers:
      - {representation: BallPercept, module: BallPerceptor}
`)
	if code := run([]string{"resolve", "-p", dir}); code != 1 {
		t.Fatalf("resolve exit = %d, want 1", code)
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
