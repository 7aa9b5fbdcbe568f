package module

import (
	"fmt"
	"strings"
)

// Role states whether a module consumes or produces a representation.
type Role string

const (
	RoleRequires Role = "requires"
	RoleProvides Role = "provides"
)

// Valid reports whether the role is one of the known values.
func (r Role) Valid() bool {
	return r == RoleRequires || r == RoleProvides
}

// Requirement is one entry of a module's declared capability list.
type Requirement struct {
	Representation string `json:"representation" yaml:"representation"`
	Role           Role   `json:"role" yaml:"role"`
}

// Requires declares a consumed representation.
func Requires(representation string) Requirement {
	return Requirement{Representation: representation, Role: RoleRequires}
}

// Provides declares a produced representation.
func Provides(representation string) Requirement {
	return Requirement{Representation: representation, Role: RoleProvides}
}

func (r Requirement) String() string {
	return string(r.Role) + " " + r.Representation
}

// Descriptor is everything the resolver knows about a module: its name and the
// ordered list of representations it requires and provides.
type Descriptor struct {
	Name         string        `json:"name" yaml:"name"`
	Requirements []Requirement `json:"requirements" yaml:"requirements"`
}

// Describe builds a descriptor from a name and requirement entries.
func Describe(name string, requirements ...Requirement) Descriptor {
	return Descriptor{Name: name, Requirements: requirements}
}

// Validate ensures the descriptor is well-formed. A module may require and
// provide the same representation, but must not list the same entry twice.
func (d Descriptor) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return fmt.Errorf("module: name is required")
	}
	seen := make(map[Requirement]struct{}, len(d.Requirements))
	for idx, req := range d.Requirements {
		if strings.TrimSpace(req.Representation) == "" {
			return fmt.Errorf("module: %s requirement[%d] has no representation", d.Name, idx)
		}
		if !req.Role.Valid() {
			return fmt.Errorf("module: %s requirement[%d] has unknown role %q", d.Name, idx, req.Role)
		}
		if _, dup := seen[req]; dup {
			return fmt.Errorf("module: %s declares %s twice", d.Name, req)
		}
		seen[req] = struct{}{}
	}
	return nil
}

// Provides reports whether the module declares it produces representation.
func (d Descriptor) Provides(representation string) bool {
	return d.has(representation, RoleProvides)
}

// Requires reports whether the module declares it consumes representation.
func (d Descriptor) Requires(representation string) bool {
	return d.has(representation, RoleRequires)
}

// Required returns the consumed representations in declaration order.
func (d Descriptor) Required() []string {
	return d.filter(RoleRequires)
}

// Provided returns the produced representations in declaration order.
func (d Descriptor) Provided() []string {
	return d.filter(RoleProvides)
}

// Clone returns a deep copy of the descriptor.
func (d Descriptor) Clone() Descriptor {
	clone := Descriptor{Name: d.Name}
	if len(d.Requirements) > 0 {
		clone.Requirements = make([]Requirement, len(d.Requirements))
		copy(clone.Requirements, d.Requirements)
	}
	return clone
}

func (d Descriptor) has(representation string, role Role) bool {
	for _, req := range d.Requirements {
		if req.Role == role && req.Representation == representation {
			return true
		}
	}
	return false
}

func (d Descriptor) filter(role Role) []string {
	var out []string
	for _, req := range d.Requirements {
		if req.Role == role {
			out = append(out, req.Representation)
		}
	}
	return out
}
