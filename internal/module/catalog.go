package module

import (
	"fmt"
	"sort"
	"strings"
)

// TypeComparator decides whether two representation names refer to the same
// underlying data type. It is consulted only when validating cross-thread
// aliases.
type TypeComparator interface {
	Equivalent(a, b string) bool
}

// ComparatorFunc adapts a function to TypeComparator.
type ComparatorFunc func(a, b string) bool

// Equivalent implements TypeComparator.
func (f ComparatorFunc) Equivalent(a, b string) bool {
	return f(a, b)
}

// TypeTable maps representation names to type names. Names missing from the
// table are opaque and compare equal to anything.
type TypeTable map[string]string

// Equivalent implements TypeComparator.
func (t TypeTable) Equivalent(a, b string) bool {
	ta, okA := t[a]
	tb, okB := t[b]
	if !okA || !okB {
		return true
	}
	return ta == tb
}

// Catalog is the immutable set of module descriptors known to the process.
type Catalog struct {
	descriptors map[string]Descriptor
	names       []string
	index       map[string]int
	comparator  TypeComparator
}

// CatalogOption customizes catalog construction.
type CatalogOption func(*Catalog)

// WithComparator installs the type comparator used for alias validation.
func WithComparator(cmp TypeComparator) CatalogOption {
	return func(c *Catalog) {
		if cmp != nil {
			c.comparator = cmp
		}
	}
}

// WithTypes installs a TypeTable comparator built from a copy of types.
func WithTypes(types map[string]string) CatalogOption {
	return func(c *Catalog) {
		if len(types) == 0 {
			return
		}
		table := make(TypeTable, len(types))
		for rep, typ := range types {
			table[strings.TrimSpace(rep)] = strings.TrimSpace(typ)
		}
		c.comparator = table
	}
}

// NewCatalog validates and freezes the descriptors.
func NewCatalog(descs []Descriptor, opts ...CatalogOption) (*Catalog, error) {
	c := &Catalog{
		descriptors: make(map[string]Descriptor, len(descs)),
		names:       make([]string, 0, len(descs)),
		index:       make(map[string]int, len(descs)),
		comparator:  TypeTable(nil),
	}
	for _, desc := range descs {
		if err := desc.Validate(); err != nil {
			return nil, err
		}
		if _, exists := c.descriptors[desc.Name]; exists {
			return nil, fmt.Errorf("module: %s already registered", desc.Name)
		}
		c.descriptors[desc.Name] = desc.Clone()
		c.names = append(c.names, desc.Name)
	}
	sort.Strings(c.names)
	for i, name := range c.names {
		c.index[name] = i
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

// MustCatalog panics if the catalog cannot be built.
func MustCatalog(descs []Descriptor, opts ...CatalogOption) *Catalog {
	c, err := NewCatalog(descs, opts...)
	if err != nil {
		panic(err)
	}
	return c
}

// Lookup returns a copy of the named descriptor.
func (c *Catalog) Lookup(name string) (Descriptor, bool) {
	if c == nil {
		return Descriptor{}, false
	}
	desc, ok := c.descriptors[name]
	if !ok {
		return Descriptor{}, false
	}
	return desc.Clone(), true
}

// Names returns module names in sorted order.
func (c *Catalog) Names() []string {
	if c == nil {
		return nil
	}
	out := make([]string, len(c.names))
	copy(out, c.names)
	return out
}

// Index returns the position of the module in Names.
func (c *Catalog) Index(name string) (int, bool) {
	if c == nil {
		return 0, false
	}
	idx, ok := c.index[name]
	return idx, ok
}

// Len returns the number of modules.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.names)
}

// Descriptors returns copies of every descriptor in name order.
func (c *Catalog) Descriptors() []Descriptor {
	if c == nil {
		return nil
	}
	out := make([]Descriptor, 0, len(c.names))
	for _, name := range c.names {
		out = append(out, c.descriptors[name].Clone())
	}
	return out
}

// Equivalent reports whether two representations share a type according to
// the configured comparator.
func (c *Catalog) Equivalent(a, b string) bool {
	if c == nil || c.comparator == nil {
		return true
	}
	return c.comparator.Equivalent(a, b)
}

// RequiredByAny reports whether any module consumes one of the names.
func (c *Catalog) RequiredByAny(names ...string) bool {
	if c == nil {
		return false
	}
	for _, name := range c.names {
		desc := c.descriptors[name]
		for _, rep := range names {
			if desc.Requires(rep) {
				return true
			}
		}
	}
	return false
}
