package module

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// CatalogFile models a YAML catalog document:
//
//	modules:
//	  - name: BallPerceptor
//	    requires: [CameraImage, FieldBoundary]
//	    provides: [BallPercept]
//	types:
//	  UpperFieldBoundary: FieldBoundary
type CatalogFile struct {
	Modules []ModuleEntry     `yaml:"modules"`
	Types   map[string]string `yaml:"types,omitempty"`
}

// ModuleEntry is one module inside a catalog document. Requirements are
// listed requires-first, then provides, each in file order.
type ModuleEntry struct {
	Name     string   `yaml:"name"`
	Requires []string `yaml:"requires,omitempty"`
	Provides []string `yaml:"provides,omitempty"`
}

// Descriptor converts the entry into a module descriptor.
func (e ModuleEntry) Descriptor() Descriptor {
	desc := Descriptor{Name: strings.TrimSpace(e.Name)}
	for _, rep := range e.Requires {
		desc.Requirements = append(desc.Requirements, Requires(strings.TrimSpace(rep)))
	}
	for _, rep := range e.Provides {
		desc.Requirements = append(desc.Requirements, Provides(strings.TrimSpace(rep)))
	}
	return desc
}

// ParseCatalogYAML decodes a catalog document and freezes it. Options are
// applied after the type table from the document, so an explicit comparator
// wins.
func ParseCatalogYAML(data []byte, opts ...CatalogOption) (*Catalog, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("module: catalog payload is empty")
	}
	var file CatalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("module: decode catalog: %w", err)
	}
	reg := NewRegistry()
	for idx, entry := range file.Modules {
		if err := reg.Register(entry.Descriptor()); err != nil {
			return nil, fmt.Errorf("module: catalog entry %d: %w", idx, err)
		}
	}
	all := append([]CatalogOption{WithTypes(file.Types)}, opts...)
	return reg.Catalog(all...)
}

// LoadCatalogReader reads catalog data from an io.Reader.
func LoadCatalogReader(r io.Reader, opts ...CatalogOption) (*Catalog, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("module: read catalog: %w", err)
	}
	return ParseCatalogYAML(content, opts...)
}

// LoadCatalogFile loads a catalog from an explicit file path.
func LoadCatalogFile(path string, opts ...CatalogOption) (*Catalog, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("module: read %s: %w", path, err)
	}
	catalog, parseErr := ParseCatalogYAML(content, opts...)
	if parseErr != nil {
		return nil, fmt.Errorf("module: %s: %w", path, parseErr)
	}
	return catalog, nil
}
