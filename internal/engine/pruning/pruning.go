// Package pruning turns declarative forbidding rules and offline mining
// results into the literal 2-gram table a catalog carries.
package pruning

import (
	"errors"
	"fmt"

	"github.com/gobwas/glob"

	"gramspace/internal/engine/dsl"
)

// ErrPatternTooLong marks a mined pattern that does not reduce to a 2-gram
// rule. Longer patterns belong to the tree-automaton constraint layer.
var ErrPatternTooLong = errors.New("pruning: pattern does not reduce to a bigram")

// Rule forbids successor primitives directly below a producer. Both sides are
// glob patterns over primitive names, expanded against a concrete catalog.
type Rule struct {
	Producer   string
	Successors []string
}

// Apply expands rules against the catalog and installs every matching
// (producer, successor) pair. A pattern matching nothing is not an error; the
// catalog may legitimately lack the primitives a shared rule file names.
// Returns the number of literal pairs installed.
func Apply(d *dsl.DSL, rules []Rule) (int, error) {
	names := make([]string, 0)
	for _, p := range d.Primitives() {
		names = append(names, p.Name())
	}

	installed := 0
	for _, r := range rules {
		producers, err := expand(r.Producer, names)
		if err != nil {
			return installed, fmt.Errorf("pruning: producer %q: %w", r.Producer, err)
		}
		var successors []string
		for _, pat := range r.Successors {
			matched, err := expand(pat, names)
			if err != nil {
				return installed, fmt.Errorf("pruning: successor %q: %w", pat, err)
			}
			successors = append(successors, matched...)
		}
		for _, producer := range producers {
			for _, successor := range successors {
				d.Forbid(producer, successor)
				installed++
			}
		}
	}
	return installed, nil
}

func expand(pattern string, names []string) ([]string, error) {
	g, err := glob.Compile(pattern)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, n := range names {
		if g.Match(n) {
			out = append(out, n)
		}
	}
	return out, nil
}

// FromPattern reduces a mined successor chain (producer first) to a rule.
// Only bigrams fit the context window the grammar states carry.
func FromPattern(pattern []string) (Rule, error) {
	if len(pattern) != 2 {
		return Rule{}, fmt.Errorf("%w: length %d", ErrPatternTooLong, len(pattern))
	}
	return Rule{Producer: pattern[0], Successors: []string{pattern[1]}}, nil
}
