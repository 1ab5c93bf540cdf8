package grammar

import (
	"sort"

	"gramspace/internal/shared/observability"
)

// clean removes states that cannot produce a finite program, then states the
// start cannot reach. The order is load-bearing: productivity pruning can
// orphan children that were only reachable through deleted derivations, so
// reachability runs on the already-pruned table, never interleaved.
func (g *Grammar) clean() {
	g.prunedNonProductive += g.removeNonProductive()
	g.prunedUnreachable += g.removeUnreachable()

	observability.PrunedStatesTotal.WithLabelValues("non_productive").Add(float64(g.prunedNonProductive))
	observability.PrunedStatesTotal.WithLabelValues("unreachable").Add(float64(g.prunedUnreachable))
}

// removeNonProductive drops states with no derivation whose children are all
// productive. A zero-child derivation is trivially productive. Children are
// settled before parents by scanning deepest states first; iteration to a
// fixed point settles the self-recursive case.
func (g *Grammar) removeNonProductive() int {
	byDepth := append([]*NonTerminal(nil), g.order...)
	sort.SliceStable(byDepth, func(i, j int) bool {
		return byDepth[i].Depth > byDepth[j].Depth
	})

	productive := make(map[*NonTerminal]bool, len(byDepth))
	for changed := true; changed; {
		changed = false
		for _, s := range byDepth {
			if productive[s] {
				continue
			}
			for _, d := range g.rules[s] {
				if allProductive(d.Children, productive) {
					productive[s] = true
					changed = true
					break
				}
			}
		}
	}

	removed := 0
	newOrder := g.order[:0]
	for _, s := range g.order {
		if !productive[s] {
			delete(g.rules, s)
			delete(g.byKey, s.key)
			removed++
			continue
		}
		kept := g.rules[s][:0]
		for _, d := range g.rules[s] {
			if allProductive(d.Children, productive) {
				kept = append(kept, d)
			}
		}
		g.rules[s] = kept
		newOrder = append(newOrder, s)
	}
	g.order = newOrder
	return removed
}

func allProductive(children []*NonTerminal, productive map[*NonTerminal]bool) bool {
	for _, c := range children {
		if !productive[c] {
			return false
		}
	}
	return true
}

// removeUnreachable keeps the breadth-first closure of start, bounded by
// maxProgramDepth expansion rounds; the structural depth of the grammar
// cannot exceed that bound. A start already pruned as non-productive leaves
// an empty table, which is the representable "no such program" result.
func (g *Grammar) removeUnreachable() int {
	reachable := map[*NonTerminal]bool{g.start: true}
	frontier := map[*NonTerminal]bool{g.start: true}

	for round := 0; round < g.maxProgramDepth; round++ {
		next := make(map[*NonTerminal]bool)
		for s := range frontier {
			derivs, ok := g.rules[s]
			if !ok {
				continue
			}
			for _, d := range derivs {
				for _, c := range d.Children {
					next[c] = true
					reachable[c] = true
				}
			}
		}
		frontier = next
	}

	removed := 0
	newOrder := g.order[:0]
	for _, s := range g.order {
		if reachable[s] {
			newOrder = append(newOrder, s)
			continue
		}
		delete(g.rules, s)
		delete(g.byKey, s.key)
		removed++
	}
	g.order = newOrder
	return removed
}
