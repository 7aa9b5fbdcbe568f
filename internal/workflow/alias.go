package workflow

import (
	"sort"
	"strings"
)

// AliasRule maps between a consumer-side alias and the canonical
// representation name used inside the producing thread.
type AliasRule interface {
	// Split reports whether representation is an alias for threadName and
	// returns the canonical name.
	Split(threadName, representation string) (string, bool)
	// Join builds the alias of canonical as seen from other threads.
	Join(threadName, canonical string) string
}

// PrefixAlias is the naming convention "thread name followed by the canonical
// representation name", e.g. UpperFieldBoundary for FieldBoundary in Upper.
type PrefixAlias struct{}

// Split implements AliasRule. The thread name must be a strict prefix.
func (PrefixAlias) Split(threadName, representation string) (string, bool) {
	if threadName == "" || len(representation) <= len(threadName) {
		return "", false
	}
	if !strings.HasPrefix(representation, threadName) {
		return "", false
	}
	return representation[len(threadName):], true
}

// Join implements AliasRule.
func (PrefixAlias) Join(threadName, canonical string) string {
	return threadName + canonical
}

// AliasTable is an explicit alias mapping keyed by thread name, then alias.
// It can replace PrefixAlias when naming conventions are not available.
type AliasTable map[string]map[string]string

// Split implements AliasRule.
func (t AliasTable) Split(threadName, representation string) (string, bool) {
	canonical, ok := t[threadName][representation]
	return canonical, ok
}

// Join implements AliasRule. When several aliases map to canonical the
// lexically smallest wins; unknown names fall back to the prefix convention.
func (t AliasTable) Join(threadName, canonical string) string {
	aliases := make([]string, 0, len(t[threadName]))
	for alias, name := range t[threadName] {
		if name == canonical {
			aliases = append(aliases, alias)
		}
	}
	if len(aliases) == 0 {
		return PrefixAlias{}.Join(threadName, canonical)
	}
	sort.Strings(aliases)
	return aliases[0]
}

// Transfer is one representation crossing from a producer thread to a
// consumer thread. Representation is the producer's local name; Alias is the
// name the consumer asked for when it differs.
type Transfer struct {
	Representation string `json:"representation"`
	Alias          string `json:"alias,omitempty"`
}

// Local returns the name the consumer uses for the transferred value.
func (t Transfer) Local() string {
	if t.Alias != "" {
		return t.Alias
	}
	return t.Representation
}
