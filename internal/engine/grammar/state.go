// Package grammar builds, cleans and counts the finite depth-bounded grammar
// that spans every syntactically valid typed program derivable from a DSL.
package grammar

import (
	"fmt"
	"strings"

	"gramspace/internal/engine/dsl"
	"gramspace/internal/engine/types"
)

// ContextEntry is one step of derivation history: which operator produced the
// current hole and at which argument position.
type ContextEntry struct {
	Producer dsl.Symbol
	ArgIndex int
}

// NonTerminal is a grammar state: produce a term of Type at Depth, given the
// most recent derivation choices in Context (most recent first, at most
// n_gram-1 entries). States are interned per build, so within one grammar
// structural equality is pointer identity.
type NonTerminal struct {
	Type    types.Type
	Context []ContextEntry
	Depth   int
	key     string
}

// Key is the canonical structural identity of the state, stable across
// grammars built from the same inputs.
func (s *NonTerminal) Key() string { return s.key }

func (s *NonTerminal) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "(%s, %d, [", s.Type, s.Depth)
	for i, e := range s.Context {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "(%s, %d)", e.Producer, e.ArgIndex)
	}
	b.WriteString("])")
	return b.String()
}

func stateKey(t types.Type, ctx []ContextEntry, depth int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%x@%d", t.Hash(), depth)
	for _, e := range ctx {
		fmt.Fprintf(&b, "|%s,%d", e.Producer.Key(), e.ArgIndex)
	}
	return b.String()
}

// interner pools canonical states for one build.
type interner struct {
	states map[string]*NonTerminal
}

func newInterner() *interner {
	return &interner{states: make(map[string]*NonTerminal)}
}

func (in *interner) get(t types.Type, ctx []ContextEntry, depth int) *NonTerminal {
	key := stateKey(t, ctx, depth)
	if s, ok := in.states[key]; ok {
		return s
	}
	s := &NonTerminal{
		Type:    t,
		Context: append([]ContextEntry(nil), ctx...),
		Depth:   depth,
		key:     key,
	}
	in.states[key] = s
	return s
}

// pushContext prepends entry and truncates to the n_gram-1 window by dropping
// the oldest element.
func pushContext(ctx []ContextEntry, entry ContextEntry, nGram int) []ContextEntry {
	limit := nGram - 1
	if limit <= 0 {
		return nil
	}
	out := make([]ContextEntry, 0, limit)
	out = append(out, entry)
	for _, e := range ctx {
		if len(out) == limit {
			break
		}
		out = append(out, e)
	}
	return out
}
