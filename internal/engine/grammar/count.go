package grammar

import (
	"math/big"
	"sort"
)

var one = big.NewInt(1)

// Size is the exact number of distinct finite derivation trees rooted at
// start. Counts routinely exceed machine integers at realistic depths, hence
// arbitrary precision. A start pruned away counts zero. Size allocates its
// own working state and is safe for concurrent callers.
func (g *Grammar) Size() *big.Int {
	if _, ok := g.rules[g.start]; !ok {
		return new(big.Int)
	}

	// Non-increasing depth is a valid topological order: every child,
	// self-call children included, sits strictly one level deeper than its
	// parent, so the recursion bottoms out.
	byDepth := append([]*NonTerminal(nil), g.order...)
	sort.SliceStable(byDepth, func(i, j int) bool {
		return byDepth[i].Depth > byDepth[j].Depth
	})

	totals := make(map[*NonTerminal]*big.Int, len(byDepth))
	for _, s := range byDepth {
		total := new(big.Int)
		for _, d := range g.rules[s] {
			if len(d.Children) == 0 {
				total.Add(total, one)
				continue
			}
			product := big.NewInt(1)
			for _, c := range d.Children {
				product.Mul(product, totals[c])
			}
			total.Add(total, product)
		}
		totals[s] = total
	}
	return totals[g.start]
}
