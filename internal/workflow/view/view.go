// Package view assembles the per-thread execution views published after a
// successful resolution pass. A Snapshot is never mutated once built; callers
// that need to edit a view take a Clone.
package view

import (
	"fmt"
	"time"

	"github.com/kingrea/modgraph/internal/module"
	"github.com/kingrea/modgraph/internal/workflow"
	"github.com/kingrea/modgraph/internal/workflow/resolver"
)

// ModuleFlag records whether a catalog module runs in a thread.
type ModuleFlag struct {
	Name     string `json:"name"`
	Required bool   `json:"required"`
}

// ExecutionView is everything one thread needs to run a cycle.
type ExecutionView struct {
	Thread    string                         `json:"thread"`
	Providers []workflow.Provider            `json:"providers"`
	Received  map[string][]workflow.Transfer `json:"received,omitempty"`
	Sent      map[string][]string            `json:"sent,omitempty"`
	Reset     []string                       `json:"reset,omitempty"`
	Modules   []ModuleFlag                   `json:"modules"`
}

// Clone returns a deep copy of the view.
func (v ExecutionView) Clone() ExecutionView {
	out := ExecutionView{
		Thread:    v.Thread,
		Providers: append([]workflow.Provider(nil), v.Providers...),
		Reset:     append([]string(nil), v.Reset...),
		Modules:   append([]ModuleFlag(nil), v.Modules...),
	}
	if v.Received != nil {
		out.Received = make(map[string][]workflow.Transfer, len(v.Received))
		for k, list := range v.Received {
			out.Received[k] = append([]workflow.Transfer(nil), list...)
		}
	}
	if v.Sent != nil {
		out.Sent = make(map[string][]string, len(v.Sent))
		for k, list := range v.Sent {
			out.Sent[k] = append([]string(nil), list...)
		}
	}
	return out
}

// Required reports whether module runs in this thread.
func (v ExecutionView) Required(module string) bool {
	for _, flag := range v.Modules {
		if flag.Name == module {
			return flag.Required
		}
	}
	return false
}

// Snapshot is the published result of one resolution pass.
type Snapshot struct {
	Generation    uint64                 `json:"generation"`
	ResolutionID  string                 `json:"resolution_id"`
	ResolvedAt    time.Time              `json:"resolved_at"`
	Configuration workflow.Configuration `json:"configuration"`
	Threads       []ExecutionView        `json:"threads"`
	Reset         []string               `json:"reset,omitempty"`
}

// ThreadNames lists the views in configuration order.
func (s *Snapshot) ThreadNames() []string {
	if s == nil {
		return nil
	}
	names := make([]string, len(s.Threads))
	for i, v := range s.Threads {
		names[i] = v.Thread
	}
	return names
}

// Thread returns a copy of the named view.
func (s *Snapshot) Thread(name string) (ExecutionView, bool) {
	if s == nil {
		return ExecutionView{}, false
	}
	for _, v := range s.Threads {
		if v.Thread == name {
			return v.Clone(), true
		}
	}
	return ExecutionView{}, false
}

// Clone returns a deep copy of the snapshot.
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}
	out := &Snapshot{
		Generation:    s.Generation,
		ResolutionID:  s.ResolutionID,
		ResolvedAt:    s.ResolvedAt,
		Configuration: s.Configuration.Clone(),
		Reset:         append([]string(nil), s.Reset...),
		Threads:       make([]ExecutionView, len(s.Threads)),
	}
	for i, v := range s.Threads {
		out.Threads[i] = v.Clone()
	}
	return out
}

// Input gathers the outputs of the earlier stages of a pass.
type Input struct {
	Configuration workflow.Configuration
	Catalog       *module.Catalog
	Shared        *resolver.Shared
	// Orders holds the sorted providers per thread, indexed like
	// Configuration.Threads.
	Orders [][]workflow.Provider
	Reset  []string
}

// Build assembles one view per thread. Nothing in the result aliases the
// input slices.
func Build(in Input) (*Snapshot, error) {
	n := len(in.Configuration.Threads)
	if in.Catalog == nil {
		return nil, fmt.Errorf("view: module catalog is required")
	}
	if in.Shared == nil {
		return nil, fmt.Errorf("view: resolved configuration is required")
	}
	if len(in.Orders) != n || len(in.Shared.Threads()) != n {
		return nil, fmt.Errorf("view: %d threads, %d orders, %d resolved", n, len(in.Orders), len(in.Shared.Threads()))
	}
	names := in.Catalog.Names()
	snap := &Snapshot{
		Configuration: in.Configuration.Clone(),
		Reset:         append([]string(nil), in.Reset...),
		Threads:       make([]ExecutionView, n),
	}
	for idx, thread := range in.Configuration.Threads {
		v := ExecutionView{
			Thread:    thread.Name,
			Providers: append([]workflow.Provider(nil), in.Orders[idx]...),
			Reset:     append([]string(nil), in.Reset...),
			Modules:   make([]ModuleFlag, len(names)),
		}
		for other, peer := range in.Configuration.Threads {
			if received := in.Shared.Received(idx, other); len(received) > 0 {
				if v.Received == nil {
					v.Received = make(map[string][]workflow.Transfer)
				}
				v.Received[peer.Name] = received
			}
			if sent := in.Shared.Sent(idx, other); len(sent) > 0 {
				if v.Sent == nil {
					v.Sent = make(map[string][]string)
				}
				v.Sent[peer.Name] = sent
			}
		}
		assigned := make(map[string]struct{}, len(thread.Assignments))
		for _, a := range thread.Assignments {
			assigned[a.Module] = struct{}{}
		}
		for i, name := range names {
			_, ok := assigned[name]
			v.Modules[i] = ModuleFlag{Name: name, Required: ok}
		}
		snap.Threads[idx] = v
	}
	return snap, nil
}
