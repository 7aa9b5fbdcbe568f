package resolver

import (
	"fmt"

	"github.com/kingrea/modgraph/internal/module"
	"github.com/kingrea/modgraph/internal/workflow"
)

// Shared is the outcome of one resolution pass. Thread indexes follow the
// configuration order.
type Shared struct {
	threads []string
	// received[c][p] lists what consumer c takes from producer p.
	received [][][]workflow.Transfer
	// sent[p][c] lists the producer-local names p hands to consumer c.
	sent [][][]string
	// external[t] holds names satisfied outside thread t.
	external []map[string]struct{}
}

// Threads returns thread names in configuration order.
func (s *Shared) Threads() []string {
	out := make([]string, len(s.threads))
	copy(out, s.threads)
	return out
}

// Received returns the transfers consumer takes from producer.
func (s *Shared) Received(consumer, producer int) []workflow.Transfer {
	return append([]workflow.Transfer(nil), s.received[consumer][producer]...)
}

// Sent returns the producer-local names producer hands to consumer.
func (s *Shared) Sent(producer, consumer int) []string {
	return append([]string(nil), s.sent[producer][consumer]...)
}

// External reports whether representation is satisfied in thread without a
// local provider, either by default or by another thread.
func (s *Shared) External(thread int, representation string) bool {
	_, ok := s.external[thread][representation]
	return ok
}

// ExternalSet returns a predicate over External for one thread.
func (s *Shared) ExternalSet(thread int) func(string) bool {
	return func(representation string) bool {
		return s.External(thread, representation)
	}
}

// Option customizes a resolution pass.
type Option func(*Resolver)

// WithAliasRule replaces the thread-prefix alias convention.
func WithAliasRule(rule workflow.AliasRule) Option {
	return func(r *Resolver) {
		if rule != nil {
			r.alias = rule
		}
	}
}

// Resolver validates a configuration against the module catalog and computes
// the cross-thread manifest.
type Resolver struct {
	catalog *module.Catalog
	alias   workflow.AliasRule
}

// New wires a resolver to the module catalog.
func New(catalog *module.Catalog, opts ...Option) (*Resolver, error) {
	if catalog == nil {
		return nil, fmt.Errorf("resolver: module catalog is required")
	}
	r := &Resolver{catalog: catalog, alias: workflow.PrefixAlias{}}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r, nil
}

// Alias returns the alias rule in use.
func (r *Resolver) Alias() workflow.AliasRule {
	return r.alias
}

// pass carries the state of a single Resolve call.
type pass struct {
	*Resolver
	cfg      workflow.Configuration
	defaults map[string]struct{}
	// local[t] maps representation to module for thread t.
	local []map[string]string
	// names[c][p] lists consumer-local names, deduplicated, in discovery order.
	names [][][]string
}

// Resolve runs the shared-representation pass over cfg. Any error aborts the
// entire pass; no partial result is returned.
func (r *Resolver) Resolve(cfg workflow.Configuration) (*Shared, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(cfg.Threads) == 0 {
		if len(cfg.Defaults) > 0 {
			return nil, &workflow.Error{Kind: workflow.UnusedDefault, Representation: cfg.Defaults[0]}
		}
		return &Shared{}, nil
	}
	p := r.newPass(cfg)
	for idx, thread := range cfg.Threads {
		for _, a := range thread.Assignments {
			if err := p.checkAssignment(idx, a); err != nil {
				return nil, err
			}
		}
	}
	shared, err := p.share()
	if err != nil {
		return nil, err
	}
	if err := p.checkDefaultsUsed(); err != nil {
		return nil, err
	}
	return shared, nil
}

func (r *Resolver) newPass(cfg workflow.Configuration) *pass {
	n := len(cfg.Threads)
	p := &pass{
		Resolver: r,
		cfg:      cfg,
		defaults: make(map[string]struct{}, len(cfg.Defaults)*(n+1)),
		local:    make([]map[string]string, n),
		names:    make([][][]string, n),
	}
	for _, d := range cfg.Defaults {
		p.defaults[d] = struct{}{}
		for _, t := range cfg.Threads {
			p.defaults[r.alias.Join(t.Name, d)] = struct{}{}
		}
	}
	for idx, t := range cfg.Threads {
		p.local[idx] = make(map[string]string, len(t.Assignments))
		for _, a := range t.Assignments {
			p.local[idx][a.Representation] = a.Module
		}
		p.names[idx] = make([][]string, n)
	}
	return p
}

func (p *pass) checkAssignment(idx int, a workflow.Assignment) error {
	thread := p.cfg.Threads[idx].Name
	desc, ok := p.catalog.Lookup(a.Module)
	if !ok {
		return &workflow.Error{Kind: workflow.UnknownModule, Thread: thread, Representation: a.Representation, Module: a.Module}
	}
	if !desc.Provides(a.Representation) {
		return &workflow.Error{Kind: workflow.ModuleCannotProvide, Thread: thread, Representation: a.Representation, Module: a.Module}
	}
	if p.cfg.IsDefault(a.Representation) {
		return &workflow.Error{Kind: workflow.DefaultConflict, Thread: thread, Representation: a.Representation, Module: a.Module}
	}
	for _, req := range desc.Required() {
		if err := p.satisfy(idx, desc.Name, req); err != nil {
			return err
		}
	}
	return nil
}

// satisfy applies the lookup rules in order: default set, own thread, exactly
// one other thread, then the alias convention.
func (p *pass) satisfy(idx int, moduleName, req string) error {
	if _, ok := p.defaults[req]; ok {
		return nil
	}
	thread := p.cfg.Threads[idx].Name
	aliasThread, canonical := p.aliasCandidate(idx, req)

	_, provided := p.local[idx][req]
	if !provided {
		producer := -1
		for other := range p.cfg.Threads {
			if other == idx {
				continue
			}
			if _, ok := p.local[other][req]; !ok {
				continue
			}
			if producer >= 0 {
				return &workflow.Error{
					Kind:           workflow.AmbiguousProvider,
					Thread:         thread,
					Representation: req,
					Module:         moduleName,
					Others:         []string{p.cfg.Threads[producer].Name, p.cfg.Threads[other].Name},
				}
			}
			producer = other
		}
		if producer >= 0 {
			provided = true
			p.receive(idx, producer, req)
		}
	}

	if aliasThread >= 0 {
		aliasName := p.cfg.Threads[aliasThread].Name
		if _, ok := p.local[aliasThread][canonical]; ok {
			if provided {
				return &workflow.Error{Kind: workflow.DuplicateAlias, Thread: thread, Representation: req, Module: moduleName, Others: []string{aliasName}}
			}
			if !p.catalog.Equivalent(req, canonical) {
				return &workflow.Error{Kind: workflow.AliasTypeMismatch, Thread: thread, Representation: req, Module: moduleName, Others: []string{aliasName}}
			}
			provided = true
			p.receive(idx, aliasThread, req)
		} else if !provided {
			return &workflow.Error{Kind: workflow.AliasNotProvided, Thread: thread, Representation: canonical, Module: moduleName, Others: []string{aliasName}}
		}
	}

	if !provided {
		return &workflow.Error{Kind: workflow.NoProvider, Thread: thread, Representation: req, Module: moduleName}
	}
	return nil
}

// aliasCandidate returns the first other thread whose alias rule claims req.
func (p *pass) aliasCandidate(idx int, req string) (int, string) {
	for other, t := range p.cfg.Threads {
		if other == idx {
			continue
		}
		if canonical, ok := p.alias.Split(t.Name, req); ok {
			return other, canonical
		}
	}
	return -1, ""
}

func (p *pass) receive(consumer, producer int, name string) {
	for _, existing := range p.names[consumer][producer] {
		if existing == name {
			return
		}
	}
	p.names[consumer][producer] = append(p.names[consumer][producer], name)
}

// share derives the sent lists from the received ones, mapping aliases back
// onto the producer's local representation names.
func (p *pass) share() (*Shared, error) {
	n := len(p.cfg.Threads)
	s := &Shared{
		threads:  p.cfg.ThreadNames(),
		received: make([][][]workflow.Transfer, n),
		sent:     make([][][]string, n),
		external: make([]map[string]struct{}, n),
	}
	for i := 0; i < n; i++ {
		s.received[i] = make([][]workflow.Transfer, n)
		s.sent[i] = make([][]string, n)
		s.external[i] = make(map[string]struct{}, len(p.defaults))
		for d := range p.defaults {
			s.external[i][d] = struct{}{}
		}
	}
	for consumer := 0; consumer < n; consumer++ {
		for producer := 0; producer < n; producer++ {
			for _, name := range p.names[consumer][producer] {
				transfer, err := p.canonical(producer, consumer, name)
				if err != nil {
					return nil, err
				}
				s.received[consumer][producer] = append(s.received[consumer][producer], transfer)
				s.sent[producer][consumer] = append(s.sent[producer][consumer], transfer.Representation)
				s.external[consumer][name] = struct{}{}
			}
		}
	}
	return s, nil
}

func (p *pass) canonical(producer, consumer int, name string) (workflow.Transfer, error) {
	if _, ok := p.local[producer][name]; ok {
		return workflow.Transfer{Representation: name}, nil
	}
	producerName := p.cfg.Threads[producer].Name
	if canonical, ok := p.alias.Split(producerName, name); ok {
		if mod, assigned := p.local[producer][canonical]; assigned {
			if desc, known := p.catalog.Lookup(mod); known && desc.Provides(canonical) {
				return workflow.Transfer{Representation: canonical, Alias: name}, nil
			}
		}
	}
	return workflow.Transfer{}, &workflow.Error{
		Kind:           workflow.AliasInternal,
		Thread:         producerName,
		Representation: name,
		Others:         []string{p.cfg.Threads[consumer].Name},
	}
}

// checkDefaultsUsed rejects defaults that no catalog module requires, either
// directly or through any thread's alias.
func (p *pass) checkDefaultsUsed() error {
	for _, d := range p.cfg.Defaults {
		names := []string{d}
		for _, t := range p.cfg.Threads {
			names = append(names, p.alias.Join(t.Name, d))
		}
		if !p.catalog.RequiredByAny(names...) {
			return &workflow.Error{Kind: workflow.UnusedDefault, Representation: d}
		}
	}
	return nil
}
