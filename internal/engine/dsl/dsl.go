package dsl

import (
	"fmt"
	"sync"
)

// DSL is an ordered catalog of typed primitives plus the 2-gram forbidding
// table (producer name -> names it may not immediately produce). The catalog
// is immutable after construction; the table may be grown between builds and
// must be snapshot before each build starts.
type DSL struct {
	mu         sync.RWMutex
	primitives []*Primitive
	forbidden  map[string]map[string]struct{}
}

func New(primitives []*Primitive) *DSL {
	return &DSL{
		primitives: append([]*Primitive(nil), primitives...),
		forbidden:  make(map[string]map[string]struct{}),
	}
}

// Primitives returns the catalog in declaration order.
func (d *DSL) Primitives() []*Primitive {
	return append([]*Primitive(nil), d.primitives...)
}

// Lookup finds the primitives with the given name. Post-monomorphization
// catalogs can carry several instantiations under one name.
func (d *DSL) Lookup(name string) []*Primitive {
	var out []*Primitive
	for _, p := range d.primitives {
		if p.Name() == name {
			out = append(out, p)
		}
	}
	return out
}

// Forbid records that producer may not be the immediate parent of any of the
// named successors.
func (d *DSL) Forbid(producer string, successors ...string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	set, ok := d.forbidden[producer]
	if !ok {
		set = make(map[string]struct{})
		d.forbidden[producer] = set
	}
	for _, s := range successors {
		set[s] = struct{}{}
	}
}

// SnapshotForbidden deep-copies the forbidding table. Builds work on a
// snapshot so a table being grown concurrently is never observed
// mid-construction.
func (d *DSL) SnapshotForbidden() map[string]map[string]struct{} {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make(map[string]map[string]struct{}, len(d.forbidden))
	for producer, set := range d.forbidden {
		copied := make(map[string]struct{}, len(set))
		for s := range set {
			copied[s] = struct{}{}
		}
		out[producer] = copied
	}
	return out
}

// Validate checks that every catalog entry is usable by a build.
func (d *DSL) Validate() error {
	for i, p := range d.primitives {
		if p == nil {
			return fmt.Errorf("dsl: primitive %d is nil", i)
		}
		if p.Name() == "" {
			return fmt.Errorf("dsl: primitive %d has an empty name", i)
		}
		if p.Type() == nil {
			return fmt.Errorf("dsl: primitive %q has no type", p.Name())
		}
	}
	return nil
}
