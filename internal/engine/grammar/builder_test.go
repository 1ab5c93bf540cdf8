package grammar

import (
	"math/big"
	"testing"

	"gramspace/internal/engine/dsl"
	"gramspace/internal/engine/types"
)

var intT = types.NewAtom("int")

// peanoDSL is {zero: int, succ: int -> int}.
func peanoDSL() *dsl.DSL {
	return dsl.New([]*dsl.Primitive{
		dsl.NewPrimitive("zero", intT),
		dsl.NewPrimitive("succ", types.NewArrow(intT, intT)),
	})
}

func mustBuild(t *testing.T, d *dsl.DSL, request types.Type, opts Options) *Grammar {
	t.Helper()
	g, err := Build(d, request, opts)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	return g
}

func sizeInt(t *testing.T, g *Grammar) int64 {
	t.Helper()
	s := g.Size()
	if !s.IsInt64() {
		t.Fatalf("size %s does not fit int64", s)
	}
	return s.Int64()
}

func TestBuildPeanoDepthTwo(t *testing.T) {
	// zero and succ(zero) are the only programs.
	g := mustBuild(t, peanoDSL(), intT, Options{MaxDepth: 2, NGram: 1, MinVariableDepth: 1})

	if got := sizeInt(t, g); got != 2 {
		t.Errorf("size = %d, want 2", got)
	}
	if !g.Contains(g.Start()) {
		t.Error("start missing from cleaned table")
	}
	if !types.Equal(g.TypeRequest(), intT) {
		t.Errorf("type request = %s, want int", g.TypeRequest())
	}
}

func TestBuildForbiddenSuccessor(t *testing.T) {
	unrestricted := mustBuild(t, peanoDSL(), intT, Options{MaxDepth: 3, NGram: 2, MinVariableDepth: 1})
	if got := sizeInt(t, unrestricted); got != 3 {
		t.Fatalf("unrestricted size = %d, want 3", got)
	}

	d := peanoDSL()
	d.Forbid("succ", "succ")
	restricted := mustBuild(t, d, intT, Options{MaxDepth: 3, NGram: 2, MinVariableDepth: 1})

	// succ(succ(zero)) is excluded; zero and succ(zero) remain.
	if got := sizeInt(t, restricted); got != 2 {
		t.Errorf("restricted size = %d, want 2", got)
	}
	if restricted.Size().Cmp(unrestricted.Size()) >= 0 {
		t.Error("forbidding rule did not shrink the grammar")
	}
}

func TestBuildForbiddenNeedsContext(t *testing.T) {
	// With n_gram = 1 states carry no history, so a 2-gram rule never fires.
	d := peanoDSL()
	d.Forbid("succ", "succ")
	g := mustBuild(t, d, intT, Options{MaxDepth: 3, NGram: 1, MinVariableDepth: 1})
	if got := sizeInt(t, g); got != 3 {
		t.Errorf("size = %d, want 3", got)
	}
}

func TestBuildRecursiveSelfCall(t *testing.T) {
	d := dsl.New([]*dsl.Primitive{
		dsl.NewPrimitive("inc", types.NewArrow(intT, intT)),
	})
	g := mustBuild(t, d, intT, Options{MaxDepth: 3, NGram: 2, MinVariableDepth: 1, Recursive: true})

	foundInterior := false
	for _, s := range g.States() {
		if s.Depth > g.MaxProgramDepth() {
			t.Errorf("state %s exceeds max depth", s)
		}
		for _, deriv := range g.Derivations(s) {
			for _, c := range deriv.Children {
				if c.Depth > g.MaxProgramDepth() {
					t.Errorf("child %s exceeds max depth", c)
				}
			}
			p, ok := deriv.Op.(*dsl.Primitive)
			if ok && p.Name() == SelfCall && s.Depth > 0 {
				foundInterior = true
			}
		}
	}
	if !foundInterior {
		t.Error("no self-call derivation at an interior depth")
	}
	if got := sizeInt(t, g); got == 0 {
		t.Error("recursive grammar counted empty")
	}
}

func TestBuildDepthMonotonicity(t *testing.T) {
	prev := big.NewInt(-1)
	for depth := 0; depth <= 6; depth++ {
		g := mustBuild(t, peanoDSL(), intT, Options{MaxDepth: depth, NGram: 2, MinVariableDepth: 1})
		size := g.Size()
		if size.Cmp(prev) < 0 {
			t.Errorf("size decreased from %s to %s at max depth %d", prev, size, depth)
		}
		prev = size
	}
}

func TestBuildForbidMonotonicity(t *testing.T) {
	free := dsl.New([]*dsl.Primitive{
		dsl.NewPrimitive("zero", intT),
		dsl.NewPrimitive("succ", types.NewArrow(intT, intT)),
		dsl.NewPrimitive("add", types.FunctionType(intT, intT, intT)),
	})
	opts := Options{MaxDepth: 4, NGram: 2, MinVariableDepth: 1}
	base := mustBuild(t, free, intT, opts)

	restricted := dsl.New(free.Primitives())
	restricted.Forbid("add", "add")
	pruned := mustBuild(t, restricted, intT, opts)

	if pruned.Size().Cmp(base.Size()) > 0 {
		t.Errorf("forbidding rule grew the grammar: %s > %s", pruned.Size(), base.Size())
	}
}

func TestBuildNoProgramExists(t *testing.T) {
	// No terminal of type int: every state dies in cleaning and the empty
	// table is the answer, not an error.
	d := dsl.New([]*dsl.Primitive{
		dsl.NewPrimitive("succ", types.NewArrow(intT, intT)),
	})
	g := mustBuild(t, d, intT, Options{MaxDepth: 3, NGram: 2, MinVariableDepth: 1})

	if g.Contains(g.Start()) {
		t.Error("start retained in a grammar with no programs")
	}
	if g.StateCount() != 0 {
		t.Errorf("state count = %d, want 0", g.StateCount())
	}
	if g.Size().Sign() != 0 {
		t.Errorf("size = %s, want 0", g.Size())
	}
}

func TestBuildVariablesAndMinDepth(t *testing.T) {
	request := types.NewArrow(intT, intT)

	shallow := mustBuild(t, peanoDSL(), request, Options{MaxDepth: 2, NGram: 2, MinVariableDepth: 1})
	// zero, succ(zero), succ(var0); var0 at the root is below min depth.
	if got := sizeInt(t, shallow); got != 3 {
		t.Errorf("size with min variable depth 1 = %d, want 3", got)
	}
	if !types.Equal(shallow.TypeRequest(), request) {
		t.Errorf("reconstructed type request = %s, want %s", shallow.TypeRequest(), request)
	}

	free := mustBuild(t, peanoDSL(), request, Options{MaxDepth: 2, NGram: 2, MinVariableDepth: 0})
	// var0 joins at the root.
	if got := sizeInt(t, free); got != 4 {
		t.Errorf("size with min variable depth 0 = %d, want 4", got)
	}
}

func TestBuildConstantTypes(t *testing.T) {
	with := mustBuild(t, peanoDSL(), intT, Options{
		MaxDepth: 2, NGram: 2, MinVariableDepth: 0,
		ConstantTypes: []types.Type{intT},
	})
	// cst, zero, succ(cst), succ(zero).
	if got := sizeInt(t, with); got != 4 {
		t.Errorf("size with int constants = %d, want 4", got)
	}

	foundConstant := false
	for _, s := range with.States() {
		for _, deriv := range with.Derivations(s) {
			if _, ok := deriv.Op.(*dsl.Constant); ok {
				foundConstant = true
			}
		}
	}
	if !foundConstant {
		t.Error("no constant derivation in grammar")
	}

	// A constant type never reachable is silently inert.
	without := mustBuild(t, peanoDSL(), intT, Options{
		MaxDepth: 2, NGram: 2, MinVariableDepth: 0,
		ConstantTypes: []types.Type{types.NewAtom("bool")},
	})
	if got := sizeInt(t, without); got != 2 {
		t.Errorf("size with unmatched constant type = %d, want 2", got)
	}
}

func TestBuildContextSplitsStates(t *testing.T) {
	d := dsl.New([]*dsl.Primitive{
		dsl.NewPrimitive("zero", intT),
		dsl.NewPrimitive("add", types.FunctionType(intT, intT, intT)),
	})
	g := mustBuild(t, d, intT, Options{MaxDepth: 3, NGram: 2, MinVariableDepth: 1})

	// Argument positions of add produce distinct states at the same
	// (type, depth); the count is over derivation trees, not terms.
	if got := sizeInt(t, g); got != 5 {
		t.Errorf("size = %d, want 5", got)
	}

	depthOne := map[string]bool{}
	for _, s := range g.States() {
		if s.Depth == 1 {
			depthOne[s.Key()] = true
		}
	}
	if len(depthOne) != 2 {
		t.Errorf("distinct depth-1 states = %d, want 2", len(depthOne))
	}
}

func TestBuildRejectsBadInputs(t *testing.T) {
	d := peanoDSL()
	if _, err := Build(d, nil, Options{MaxDepth: 2, NGram: 1}); err == nil {
		t.Error("nil type request accepted")
	}
	if _, err := Build(d, intT, Options{MaxDepth: -1, NGram: 1}); err == nil {
		t.Error("negative max depth accepted")
	}
	if _, err := Build(d, intT, Options{MaxDepth: 2, NGram: 0}); err == nil {
		t.Error("zero n-gram accepted")
	}
	if _, err := Build(d, intT, Options{MaxDepth: 2, NGram: 1, MinVariableDepth: -1}); err == nil {
		t.Error("negative min variable depth accepted")
	}
	bad := dsl.New([]*dsl.Primitive{dsl.NewPrimitive("broken", nil)})
	if _, err := Build(bad, intT, Options{MaxDepth: 2, NGram: 1}); err == nil {
		t.Error("catalog with untyped primitive accepted")
	}
}

func TestBuildDeterministic(t *testing.T) {
	opts := Options{MaxDepth: 4, NGram: 2, MinVariableDepth: 1}
	a := mustBuild(t, peanoDSL(), intT, opts)
	b := mustBuild(t, peanoDSL(), intT, opts)

	if !a.Equal(b) {
		t.Error("two builds from identical inputs differ")
	}
	if a.Fingerprint() != b.Fingerprint() {
		t.Error("fingerprints differ across identical builds")
	}

	c := mustBuild(t, peanoDSL(), intT, Options{MaxDepth: 5, NGram: 2, MinVariableDepth: 1})
	if a.Equal(c) {
		t.Error("grammars of different depth compare equal")
	}
}
