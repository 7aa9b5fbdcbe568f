package workflow

import (
	"fmt"
	"strings"
)

// Assignment names the module that provides a representation in a thread.
type Assignment struct {
	Representation string `json:"representation" yaml:"representation"`
	Module         string `json:"module" yaml:"module"`
}

// Thread is one execution context and its provider assignments, in
// declaration order.
type Thread struct {
	Name        string       `json:"name" yaml:"name"`
	Assignments []Assignment `json:"providers" yaml:"providers"`
}

// Configuration is the already-parsed provider layout handed to the resolver.
type Configuration struct {
	Threads  []Thread `json:"threads" yaml:"threads"`
	Defaults []string `json:"defaults,omitempty" yaml:"defaults,omitempty"`
}

// Provider is a resolved (module, representation, thread) triple.
type Provider struct {
	Module         string `json:"module"`
	Representation string `json:"representation"`
	Thread         string `json:"thread"`
}

func (p Provider) String() string {
	return p.Module + "." + p.Representation
}

// Providers returns the thread's assignments as providers, in declaration order.
func (t Thread) Providers() []Provider {
	out := make([]Provider, 0, len(t.Assignments))
	for _, a := range t.Assignments {
		out = append(out, Provider{Module: a.Module, Representation: a.Representation, Thread: t.Name})
	}
	return out
}

// Provider returns the module assigned to representation, if any.
func (t Thread) Provider(representation string) (string, bool) {
	for _, a := range t.Assignments {
		if a.Representation == representation {
			return a.Module, true
		}
	}
	return "", false
}

// Clone returns a deep copy of the thread.
func (t Thread) Clone() Thread {
	clone := Thread{Name: t.Name}
	if len(t.Assignments) > 0 {
		clone.Assignments = make([]Assignment, len(t.Assignments))
		copy(clone.Assignments, t.Assignments)
	}
	return clone
}

// Clone returns a deep copy of the configuration.
func (c Configuration) Clone() Configuration {
	clone := Configuration{Defaults: cloneStringSlice(c.Defaults)}
	if len(c.Threads) > 0 {
		clone.Threads = make([]Thread, len(c.Threads))
		for i, t := range c.Threads {
			clone.Threads[i] = t.Clone()
		}
	}
	return clone
}

// ThreadNames returns thread names in configuration order.
func (c Configuration) ThreadNames() []string {
	names := make([]string, 0, len(c.Threads))
	for _, t := range c.Threads {
		names = append(names, t.Name)
	}
	return names
}

// Thread looks up a thread by name.
func (c Configuration) Thread(name string) (Thread, bool) {
	for _, t := range c.Threads {
		if t.Name == name {
			return t, true
		}
	}
	return Thread{}, false
}

// IsDefault reports whether representation is in the default set.
func (c Configuration) IsDefault(representation string) bool {
	for _, d := range c.Defaults {
		if d == representation {
			return true
		}
	}
	return false
}

// Validate performs the structural checks that do not need the module
// catalog: thread names are present and unique and no representation is
// assigned twice within one thread. Duplicate assignments are reported as
// DuplicateAssignment resolution errors.
func (c Configuration) Validate() error {
	threads := map[string]struct{}{}
	for idx, t := range c.Threads {
		if strings.TrimSpace(t.Name) == "" {
			return fmt.Errorf("workflow: thread[%d] name is required", idx)
		}
		if _, dup := threads[t.Name]; dup {
			return fmt.Errorf("workflow: duplicate thread %s", t.Name)
		}
		threads[t.Name] = struct{}{}
		seen := make(map[string]struct{}, len(t.Assignments))
		for _, a := range t.Assignments {
			if strings.TrimSpace(a.Representation) == "" || strings.TrimSpace(a.Module) == "" {
				return fmt.Errorf("workflow: thread %s has an incomplete provider entry", t.Name)
			}
			if _, dup := seen[a.Representation]; dup {
				return &Error{Kind: DuplicateAssignment, Thread: t.Name, Representation: a.Representation, Module: a.Module}
			}
			seen[a.Representation] = struct{}{}
		}
	}
	return nil
}

func cloneStringSlice(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	clone := make([]string, len(values))
	copy(clone, values)
	return clone
}
