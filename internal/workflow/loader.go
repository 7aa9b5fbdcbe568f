package workflow

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultConfigurationFile is the conventional configuration file name inside
// the project's .modgraph directory.
const DefaultConfigurationFile = "threads.yaml"

// ParseConfigurationYAML decodes a thread configuration from YAML/JSON bytes.
// Only syntax and structure are checked here; semantic validation against the
// module catalog is the resolver's job.
func ParseConfigurationYAML(data []byte) (Configuration, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return Configuration{}, fmt.Errorf("workflow: configuration payload is empty")
	}
	var cfg Configuration
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Configuration{}, fmt.Errorf("workflow: decode configuration: %w", err)
	}
	cfg = cfg.normalized()
	if err := cfg.Validate(); err != nil {
		return Configuration{}, err
	}
	return cfg, nil
}

// LoadConfigurationReader reads configuration data from an io.Reader.
func LoadConfigurationReader(r io.Reader) (Configuration, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return Configuration{}, fmt.Errorf("workflow: read configuration: %w", err)
	}
	return ParseConfigurationYAML(content)
}

// LoadConfigurationFile loads a configuration from an explicit file path.
func LoadConfigurationFile(path string) (Configuration, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Configuration{}, fmt.Errorf("workflow: read %s: %w", path, err)
	}
	cfg, parseErr := ParseConfigurationYAML(content)
	if parseErr != nil {
		return Configuration{}, fmt.Errorf("workflow: %s: %w", path, parseErr)
	}
	return cfg, nil
}

// LoadConfigurationRelative loads a configuration from baseDir, defaulting the
// file name to DefaultConfigurationFile.
func LoadConfigurationRelative(baseDir, name string) (Configuration, error) {
	if name == "" {
		name = DefaultConfigurationFile
	}
	return LoadConfigurationFile(filepath.Join(baseDir, name))
}

func (c Configuration) normalized() Configuration {
	out := c.Clone()
	for i := range out.Threads {
		out.Threads[i].Name = strings.TrimSpace(out.Threads[i].Name)
		for j := range out.Threads[i].Assignments {
			a := &out.Threads[i].Assignments[j]
			a.Representation = strings.TrimSpace(a.Representation)
			a.Module = strings.TrimSpace(a.Module)
		}
	}
	defaults := out.Defaults[:0]
	seen := map[string]struct{}{}
	for _, d := range out.Defaults {
		d = strings.TrimSpace(d)
		if d == "" {
			continue
		}
		if _, dup := seen[d]; dup {
			continue
		}
		seen[d] = struct{}{}
		defaults = append(defaults, d)
	}
	if len(defaults) == 0 {
		defaults = nil
	}
	out.Defaults = defaults
	return out
}
