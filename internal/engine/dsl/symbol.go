// Package dsl describes the domain-specific language a grammar is built
// over: the typed primitive catalog, the 2-gram forbidding table, and the
// program terms derivable from them.
package dsl

import (
	"fmt"
	"hash/fnv"

	"gramspace/internal/engine/types"
)

// Symbol is the closed set of operators a derivation can apply: a named
// primitive from the catalog, a bound argument variable, or an opaque
// constant placeholder. Dispatch on the concrete variant, never on anything
// else.
type Symbol interface {
	Type() types.Type
	// Key is the canonical identity used for rule dedupe, hashing and
	// cross-grammar comparison.
	Key() string
	String() string
	isSymbol()
}

type Primitive struct {
	name string
	typ  types.Type
	key  string
}

func NewPrimitive(name string, t types.Type) *Primitive {
	return &Primitive{name: name, typ: t, key: fmt.Sprintf("p:%s#%x", name, typeHash(t))}
}

func (p *Primitive) Name() string     { return p.name }
func (p *Primitive) Type() types.Type { return p.typ }
func (p *Primitive) Key() string      { return p.key }
func (p *Primitive) String() string   { return p.name }
func (p *Primitive) isSymbol()        {}

// Variable refers to the i-th argument bound by the grammar's type request.
type Variable struct {
	index int
	typ   types.Type
	key   string
}

func NewVariable(index int, t types.Type) *Variable {
	return &Variable{index: index, typ: t, key: fmt.Sprintf("v:%d#%x", index, typeHash(t))}
}

func (v *Variable) Index() int       { return v.index }
func (v *Variable) Type() types.Type { return v.typ }
func (v *Variable) Key() string      { return v.key }
func (v *Variable) String() string   { return fmt.Sprintf("var%d", v.index) }
func (v *Variable) isSymbol()        {}

// Constant is an opaque placeholder for a constant of the given type; the
// enumeration layer fills in concrete values later.
type Constant struct {
	typ types.Type
	key string
}

func NewConstant(t types.Type) *Constant {
	return &Constant{typ: t, key: fmt.Sprintf("c:#%x", typeHash(t))}
}

func (c *Constant) Type() types.Type { return c.typ }
func (c *Constant) Key() string      { return c.key }
func (c *Constant) String() string   { return fmt.Sprintf("cst[%s]", c.typ) }
func (c *Constant) isSymbol()        {}

func typeHash(t types.Type) uint64 {
	if t == nil {
		return 0
	}
	return t.Hash()
}

func symbolHash(s Symbol) uint64 {
	h := fnv.New64a()
	h.Write([]byte(s.Key()))
	return h.Sum64()
}
