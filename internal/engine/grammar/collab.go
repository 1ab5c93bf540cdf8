package grammar

import (
	"context"

	"gramspace/internal/engine/dsl"
)

// Collaborator surfaces. The grammar core only defines these contracts; the
// probabilistic search layer, the tree-automaton constraint layer and the
// program evaluator live outside this module.

// WeightModel assigns a normalized weight to each derivation of each state
// and yields derivations best-first for priority-ordered enumeration. For
// every state the weights over its derivations sum to 1.
type WeightModel interface {
	Weight(s *NonTerminal, d Derivation) float64
	// OrderedDerivations lists the derivations of s by non-increasing weight.
	OrderedDerivations(s *NonTerminal) []Derivation
}

// Acceptor is a finite-state term acceptor of the same shape as a grammar.
// Intersection folds richer restrictions (argument-symmetry collapses,
// equivalence-class merges, forbidding patterns longer than 2) back into a
// grammar of the same shape.
type Acceptor interface {
	Accepts(p dsl.Program) bool
	Intersect(g *Grammar) (*Grammar, error)
}

// Evaluator runs programs offline to sample input/output behavior; the
// mining of forbidding rules from those samples happens outside this core.
type Evaluator interface {
	Eval(ctx context.Context, p dsl.Program, input any) (any, error)
}
