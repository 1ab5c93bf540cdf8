// Package types holds the monomorphic type representation the grammar engine
// operates on. Unification and polymorphic instantiation happen upstream; by
// the time a type reaches this package it is ground.
package types

import (
	"hash/fnv"
	"strconv"
)

// Type is either an Atom (named ground type) or an Arrow (single-argument
// function type; curried arrows chain). The union is closed.
type Type interface {
	// Hash is a structural hash, computed once at construction.
	Hash() uint64
	String() string
	isType()
}

type Atom struct {
	name string
	hash uint64
}

func NewAtom(name string) *Atom {
	h := fnv.New64a()
	h.Write([]byte("atom:"))
	h.Write([]byte(name))
	return &Atom{name: name, hash: h.Sum64()}
}

func (a *Atom) Hash() uint64   { return a.hash }
func (a *Atom) String() string { return a.name }
func (a *Atom) isType()        {}

type Arrow struct {
	in   Type
	out  Type
	hash uint64
	str  string
}

func NewArrow(in, out Type) *Arrow {
	h := fnv.New64a()
	h.Write([]byte("arrow:"))
	h.Write([]byte(strconv.FormatUint(in.Hash(), 16)))
	h.Write([]byte(":"))
	h.Write([]byte(strconv.FormatUint(out.Hash(), 16)))

	left := in.String()
	if _, ok := in.(*Arrow); ok {
		left = "(" + left + ")"
	}
	return &Arrow{in: in, out: out, hash: h.Sum64(), str: left + " -> " + out.String()}
}

func (a *Arrow) In() Type       { return a.in }
func (a *Arrow) Out() Type      { return a.out }
func (a *Arrow) Hash() uint64   { return a.hash }
func (a *Arrow) String() string { return a.str }
func (a *Arrow) isType()        {}

// Returns is the final result type after peeling every argument.
func (a *Arrow) Returns() Type {
	t := Type(a)
	for {
		ar, ok := t.(*Arrow)
		if !ok {
			return t
		}
		t = ar.out
	}
}

// Arguments lists the argument types of a curried arrow in application order.
func (a *Arrow) Arguments() []Type {
	var args []Type
	t := Type(a)
	for {
		ar, ok := t.(*Arrow)
		if !ok {
			return args
		}
		args = append(args, ar.in)
		t = ar.out
	}
}

// FunctionType builds the curried arrow ts[0] -> ts[1] -> ... -> ts[n-1].
// A single type is returned as-is.
func FunctionType(ts ...Type) Type {
	if len(ts) == 0 {
		return nil
	}
	t := ts[len(ts)-1]
	for i := len(ts) - 2; i >= 0; i-- {
		t = NewArrow(ts[i], t)
	}
	return t
}

// Equal reports structural equality.
func Equal(a, b Type) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a == b {
		return true
	}
	if a.Hash() != b.Hash() {
		return false
	}
	switch at := a.(type) {
	case *Atom:
		bt, ok := b.(*Atom)
		return ok && at.name == bt.name
	case *Arrow:
		bt, ok := b.(*Arrow)
		return ok && Equal(at.in, bt.in) && Equal(at.out, bt.out)
	}
	return false
}

// EndsWith peels argument types off t until the remainder equals target and
// returns the peeled prefix in application order. Equal types peel the empty
// prefix, for arrows and atoms alike. The second result is false when no
// prefix works.
func EndsWith(t, target Type) ([]Type, bool) {
	args := []Type{}
	for {
		if Equal(t, target) {
			return args, true
		}
		ar, ok := t.(*Arrow)
		if !ok {
			return nil, false
		}
		args = append(args, ar.in)
		t = ar.out
	}
}
