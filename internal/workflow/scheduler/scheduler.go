package scheduler

import (
	"fmt"

	"github.com/kingrea/modgraph/internal/module"
	"github.com/kingrea/modgraph/internal/workflow"
	"github.com/kingrea/modgraph/internal/workflow/resolver"
)

// Sorter exposes the minimal contract the engine needs to order one thread.
type Sorter interface {
	Sort(thread string, providers []workflow.Provider, external func(string) bool) ([]workflow.Provider, error)
}

// Scheduler implements Sorter on top of the module catalog.
type Scheduler struct {
	catalog *module.Catalog
}

// New wires a Scheduler to the module catalog.
func New(catalog *module.Catalog) (*Scheduler, error) {
	if catalog == nil {
		return nil, fmt.Errorf("workflow: scheduler requires a module catalog")
	}
	return &Scheduler{catalog: catalog}, nil
}

// Sort is the package-level form of Scheduler.Sort.
func Sort(thread string, providers []workflow.Provider, catalog *module.Catalog, external func(string) bool) ([]workflow.Provider, error) {
	s, err := New(catalog)
	if err != nil {
		return nil, err
	}
	return s.Sort(thread, providers, external)
}

// Plan orders every thread of cfg using the external sets computed by the
// resolver. The result is indexed like cfg.Threads.
func (s *Scheduler) Plan(cfg workflow.Configuration, shared *resolver.Shared) ([][]workflow.Provider, error) {
	if shared == nil {
		return nil, fmt.Errorf("workflow: scheduler requires a resolved configuration")
	}
	if got, want := len(shared.Threads()), len(cfg.Threads); got != want {
		return nil, fmt.Errorf("workflow: resolved %d threads, configuration has %d", got, want)
	}
	orders := make([][]workflow.Provider, len(cfg.Threads))
	for idx, thread := range cfg.Threads {
		order, err := s.Sort(thread.Name, thread.Providers(), shared.ExternalSet(idx))
		if err != nil {
			return nil, err
		}
		orders[idx] = order
	}
	return orders, nil
}

type nodeState int

const (
	unvisited nodeState = iota
	inProgress
	done
)

type node struct {
	provider workflow.Provider
	state    nodeState
	// edges point at the nodes that depend on this one.
	edges []int
	prev  int
}

type graph struct {
	thread string
	nodes  []node
	lookup map[string]int
}

// Sort returns providers in an order where each provider follows the local
// providers of everything it requires. Ties keep insertion order as far as
// the depth-first traversal allows, so equal inputs yield equal outputs.
func (s *Scheduler) Sort(thread string, providers []workflow.Provider, external func(string) bool) ([]workflow.Provider, error) {
	if external == nil {
		external = func(string) bool { return false }
	}
	g := &graph{
		thread: thread,
		nodes:  make([]node, 0, len(providers)),
		lookup: make(map[string]int, len(providers)),
	}
	for _, p := range providers {
		g.lookup[p.Representation] = len(g.nodes)
		g.nodes = append(g.nodes, node{provider: p, prev: -1})
	}
	if err := g.link(s.catalog, external); err != nil {
		return nil, err
	}
	return g.order()
}

func (g *graph) link(catalog *module.Catalog, external func(string) bool) error {
	for target := range g.nodes {
		p := g.nodes[target].provider
		desc, ok := catalog.Lookup(p.Module)
		if !ok {
			return &workflow.Error{Kind: workflow.UnknownModule, Thread: g.thread, Representation: p.Representation, Module: p.Module}
		}
		for _, req := range desc.Required() {
			if external(req) {
				continue
			}
			source, ok := g.lookup[req]
			if !ok {
				return &workflow.Error{Kind: workflow.MissingLocalProvider, Thread: g.thread, Representation: req, Module: p.Module}
			}
			if source == target {
				continue
			}
			g.nodes[source].edges = append(g.nodes[source].edges, target)
		}
	}
	return nil
}

func (g *graph) order() ([]workflow.Provider, error) {
	out := make([]workflow.Provider, len(g.nodes))
	next := len(g.nodes)
	var visit func(int) error
	visit = func(idx int) error {
		g.nodes[idx].state = inProgress
		for _, other := range g.nodes[idx].edges {
			switch g.nodes[other].state {
			case inProgress:
				return g.cycle(idx, other)
			case unvisited:
				g.nodes[other].prev = idx
				if err := visit(other); err != nil {
					return err
				}
			}
		}
		next--
		out[next] = g.nodes[idx].provider
		g.nodes[idx].state = done
		return nil
	}
	for idx := range g.nodes {
		if g.nodes[idx].state != unvisited {
			continue
		}
		if err := visit(idx); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// cycle walks prev handles from current back to the re-entered node.
func (g *graph) cycle(current, reentered int) error {
	path := []string{g.nodes[reentered].provider.String()}
	for idx := current; idx != reentered; idx = g.nodes[idx].prev {
		path = append(path, g.nodes[idx].provider.String())
	}
	path = append(path, g.nodes[reentered].provider.String())
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	head := g.nodes[reentered].provider
	return &workflow.Error{
		Kind:           workflow.CyclicDependency,
		Thread:         g.thread,
		Representation: head.Representation,
		Module:         head.Module,
		Path:           path,
	}
}
