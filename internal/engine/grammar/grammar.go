package grammar

import (
	"fmt"
	"hash/fnv"
	"sort"
	"strings"

	"gramspace/internal/engine/dsl"
	"gramspace/internal/engine/types"
)

// Derivation expands a state by applying Op to one child state per remaining
// argument. No children marks a leaf.
type Derivation struct {
	Op       dsl.Symbol
	Children []*NonTerminal
}

// Grammar is the cleaned rule table produced by Build. It is immutable after
// construction and safe for concurrent reads.
type Grammar struct {
	start           *NonTerminal
	order           []*NonTerminal
	rules           map[*NonTerminal][]Derivation
	byKey           map[string]*NonTerminal
	maxProgramDepth int
	typeRequest     types.Type
	fingerprint     uint64

	prunedNonProductive int
	prunedUnreachable   int
}

func newGrammar(start *NonTerminal, order []*NonTerminal, rules map[*NonTerminal][]Derivation, maxProgramDepth int) *Grammar {
	g := &Grammar{
		start:           start,
		order:           order,
		rules:           rules,
		byKey:           make(map[string]*NonTerminal, len(order)),
		maxProgramDepth: maxProgramDepth,
	}
	for _, s := range order {
		g.byKey[s.key] = s
	}
	g.clean()
	g.typeRequest = g.reconstructTypeRequest()
	g.fingerprint = g.computeFingerprint()
	return g
}

// Start is the initial state. It may be absent from the rule table when
// cleaning proved that no program of the requested type exists.
func (g *Grammar) Start() *NonTerminal { return g.start }

func (g *Grammar) MaxProgramDepth() int { return g.maxProgramDepth }

// TypeRequest is the start type composed with the argument type of every
// distinct variable discovered in the rules, in descending index order.
func (g *Grammar) TypeRequest() types.Type { return g.typeRequest }

// States lists every retained state in table order.
func (g *Grammar) States() []*NonTerminal {
	return append([]*NonTerminal(nil), g.order...)
}

// Contains reports whether s is a key of the cleaned rule table. Callers must
// check membership before expanding or counting a state.
func (g *Grammar) Contains(s *NonTerminal) bool {
	_, ok := g.rules[s]
	return ok
}

// Lookup resolves a structural state key to this grammar's canonical state.
func (g *Grammar) Lookup(key string) (*NonTerminal, bool) {
	s, ok := g.byKey[key]
	return s, ok
}

// Derivations returns the derivations of s in insertion order. Querying a
// state outside the table is a caller error; Contains guards it.
func (g *Grammar) Derivations(s *NonTerminal) []Derivation {
	return append([]Derivation(nil), g.rules[s]...)
}

func (g *Grammar) StateCount() int { return len(g.order) }

func (g *Grammar) RuleCount() int {
	n := 0
	for _, derivs := range g.rules {
		n += len(derivs)
	}
	return n
}

// PrunedNonProductive reports how many states non-productive removal dropped.
func (g *Grammar) PrunedNonProductive() int { return g.prunedNonProductive }

// PrunedUnreachable reports how many states reachability removal dropped.
func (g *Grammar) PrunedUnreachable() int { return g.prunedUnreachable }

// Equal compares by (type request, rules).
func (g *Grammar) Equal(o *Grammar) bool {
	if o == nil {
		return false
	}
	if !types.Equal(g.typeRequest, o.typeRequest) {
		return false
	}
	return g.fingerprint == o.fingerprint && g.canonical() == o.canonical()
}

// Fingerprint is a content hash over (type request, rules).
func (g *Grammar) Fingerprint() uint64 { return g.fingerprint }

func (g *Grammar) reconstructTypeRequest() types.Type {
	typeReq := g.start.Type
	var variables []*dsl.Variable
	seen := make(map[string]bool)
	for _, s := range g.order {
		for _, d := range g.rules[s] {
			v, ok := d.Op.(*dsl.Variable)
			if !ok || seen[v.Key()] {
				continue
			}
			seen[v.Key()] = true
			variables = append(variables, v)
		}
	}
	n := len(variables)
	for i := 0; i < n; i++ {
		j := n - i - 1
		for _, v := range variables {
			if v.Index() == j {
				typeReq = types.NewArrow(v.Type(), typeReq)
			}
		}
	}
	return typeReq
}

// canonical renders the rule table in a sorted, pointer-free form used for
// fingerprinting and cross-grammar equality.
func (g *Grammar) canonical() string {
	lines := make([]string, 0, len(g.order))
	for _, s := range g.order {
		var b strings.Builder
		b.WriteString(s.key)
		b.WriteString(" ->")
		derivs := make([]string, 0, len(g.rules[s]))
		for _, d := range g.rules[s] {
			var db strings.Builder
			db.WriteString(d.Op.Key())
			for _, c := range d.Children {
				db.WriteString(" ")
				db.WriteString(c.key)
			}
			derivs = append(derivs, db.String())
		}
		sort.Strings(derivs)
		for _, d := range derivs {
			b.WriteString(" [")
			b.WriteString(d)
			b.WriteString("]")
		}
		lines = append(lines, b.String())
	}
	sort.Strings(lines)
	return strings.Join(lines, "\n")
}

func (g *Grammar) computeFingerprint() uint64 {
	h := fnv.New64a()
	if g.typeRequest != nil {
		fmt.Fprintf(h, "%x\n", g.typeRequest.Hash())
	}
	h.Write([]byte(g.canonical()))
	return h.Sum64()
}

func (g *Grammar) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "grammar for %s, max depth %d\n", g.typeRequest, g.maxProgramDepth)
	fmt.Fprintf(&b, "start: %s\n", g.start)
	for _, s := range g.order {
		fmt.Fprintf(&b, "#\n %s\n", s)
		for _, d := range g.rules[s] {
			fmt.Fprintf(&b, "   %s: %v\n", d.Op, d.Children)
		}
	}
	return b.String()
}
