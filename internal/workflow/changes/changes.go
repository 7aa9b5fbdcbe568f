// Package changes computes which representations become stale when a
// configuration replaces its predecessor.
package changes

import "github.com/kingrea/modgraph/internal/workflow"

// source identifies who fills a representation. The zero thread and module
// with dflt set stand for the default set.
type source struct {
	thread string
	module string
	dflt   bool
}

type sourceSet map[source]struct{}

func (s sourceSet) equal(other sourceSet) bool {
	if len(s) != len(other) {
		return false
	}
	for src := range s {
		if _, ok := other[src]; !ok {
			return false
		}
	}
	return true
}

func sources(cfg workflow.Configuration) map[string]sourceSet {
	out := make(map[string]sourceSet)
	add := func(rep string, src source) {
		set, ok := out[rep]
		if !ok {
			set = make(sourceSet, 1)
			out[rep] = set
		}
		set[src] = struct{}{}
	}
	for _, t := range cfg.Threads {
		for _, a := range t.Assignments {
			add(a.Representation, source{thread: t.Name, module: a.Module})
		}
	}
	for _, d := range cfg.Defaults {
		add(d, source{dflt: true})
	}
	return out
}

// Diff lists the representations whose effective sources differ between prev
// and next: another module or thread, a switch between default and explicit,
// or no source at all. Only representations that had a source in prev are
// considered, so an empty prev yields nothing. The result follows prev's
// thread and assignment order, then prev's defaults, without duplicates.
func Diff(prev, next workflow.Configuration) []string {
	before := sources(prev)
	if len(before) == 0 {
		return nil
	}
	after := sources(next)
	var reset []string
	seen := make(map[string]struct{}, len(before))
	visit := func(rep string) {
		if _, dup := seen[rep]; dup {
			return
		}
		seen[rep] = struct{}{}
		if !before[rep].equal(after[rep]) {
			reset = append(reset, rep)
		}
	}
	for _, t := range prev.Threads {
		for _, a := range t.Assignments {
			visit(a.Representation)
		}
	}
	for _, d := range prev.Defaults {
		visit(d)
	}
	return reset
}
