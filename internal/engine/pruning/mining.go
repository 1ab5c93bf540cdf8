package pruning

import (
	"context"

	"gramspace/internal/engine/dsl"
	"gramspace/internal/engine/grammar"
)

// FindingKind classifies why a mined pattern is redundant.
type FindingKind int

const (
	// KindIdentity marks a producer/successor pair that composes to the
	// identity on all sampled inputs.
	KindIdentity FindingKind = iota
	// KindConstant marks a composition whose output ignores its input.
	KindConstant
	// KindSymmetric marks argument orders equivalent to a canonical one.
	KindSymmetric
	// KindEquivalent marks a composition observationally equal to a smaller
	// program already in its equivalence class.
	KindEquivalent
)

func (k FindingKind) String() string {
	switch k {
	case KindIdentity:
		return "identity"
	case KindConstant:
		return "constant"
	case KindSymmetric:
		return "symmetric"
	case KindEquivalent:
		return "equivalent"
	default:
		return "unknown"
	}
}

// Finding is one mined redundancy: the primitive-name chain that exhibits it,
// producer first, plus a witness program.
type Finding struct {
	Kind    FindingKind
	Pattern []string
	Witness dsl.Program
}

// Miner executes programs against sampled inputs to discover redundancies.
// Execution itself lives outside this module; implementations receive the
// mining context explicitly and must not retain it across grammars.
type Miner interface {
	Mine(ctx context.Context, g *grammar.Grammar, mc *Context) ([]Finding, error)
}

// Reduce keeps the findings whose pattern fits the 2-gram table and converts
// them to rules. Longer patterns are dropped, not split; splitting a trigram
// into bigrams would forbid programs the finding never covered.
func Reduce(findings []Finding) []Rule {
	var rules []Rule
	for _, f := range findings {
		r, err := FromPattern(f.Pattern)
		if err != nil {
			continue
		}
		rules = append(rules, r)
	}
	return rules
}

// Context threads mining state through a pass: observational equivalence
// classes and per-program output samples, both keyed by content hash. Always
// passed explicitly, one per mining run.
type Context struct {
	parent  map[uint64]uint64
	samples map[uint64][]any
}

func NewContext() *Context {
	return &Context{
		parent:  make(map[uint64]uint64),
		samples: make(map[uint64][]any),
	}
}

// Record stores the outputs of p on the run's shared inputs.
func (c *Context) Record(p dsl.Program, outputs []any) {
	c.samples[p.Hash()] = append([]any(nil), outputs...)
}

// Samples returns the recorded outputs of p.
func (c *Context) Samples(p dsl.Program) ([]any, bool) {
	out, ok := c.samples[p.Hash()]
	return out, ok
}

// Merge unions the equivalence classes of a and b.
func (c *Context) Merge(a, b dsl.Program) {
	ra, rb := c.find(a.Hash()), c.find(b.Hash())
	if ra != rb {
		c.parent[rb] = ra
	}
}

// SameClass reports whether a and b were merged into one class.
func (c *Context) SameClass(a, b dsl.Program) bool {
	return c.find(a.Hash()) == c.find(b.Hash())
}

func (c *Context) find(h uint64) uint64 {
	root := h
	for {
		p, ok := c.parent[root]
		if !ok || p == root {
			break
		}
		root = p
	}
	for h != root {
		next, ok := c.parent[h]
		if !ok {
			break
		}
		c.parent[h] = root
		h = next
	}
	return root
}
