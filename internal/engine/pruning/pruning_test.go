package pruning

import (
	"errors"
	"testing"

	"gramspace/internal/engine/dsl"
	"gramspace/internal/engine/grammar"
	"gramspace/internal/engine/types"
)

var intT = types.NewAtom("int")

func arithmeticDSL() *dsl.DSL {
	return dsl.New([]*dsl.Primitive{
		dsl.NewPrimitive("zero", intT),
		dsl.NewPrimitive("succ", types.NewArrow(intT, intT)),
		dsl.NewPrimitive("succ_mod", types.NewArrow(intT, intT)),
		dsl.NewPrimitive("pred", types.NewArrow(intT, intT)),
	})
}

func TestApplyExpandsGlobs(t *testing.T) {
	d := arithmeticDSL()
	installed, err := Apply(d, []Rule{
		{Producer: "succ*", Successors: []string{"pred"}},
	})
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if installed != 2 {
		t.Errorf("installed = %d, want 2", installed)
	}

	table := d.SnapshotForbidden()
	for _, producer := range []string{"succ", "succ_mod"} {
		if _, ok := table[producer]["pred"]; !ok {
			t.Errorf("pair %s -> pred missing", producer)
		}
	}
	if _, ok := table["pred"]; ok {
		t.Error("pred gained a rule it never matched")
	}
}

func TestApplyUnmatchedPatternIsInert(t *testing.T) {
	d := arithmeticDSL()
	installed, err := Apply(d, []Rule{
		{Producer: "mul*", Successors: []string{"*"}},
	})
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if installed != 0 {
		t.Errorf("installed = %d, want 0", installed)
	}
	if len(d.SnapshotForbidden()) != 0 {
		t.Error("unmatched pattern installed pairs")
	}
}

func TestApplyBadGlob(t *testing.T) {
	d := arithmeticDSL()
	if _, err := Apply(d, []Rule{{Producer: "[", Successors: []string{"*"}}}); err == nil {
		t.Error("malformed producer glob accepted")
	}
	if _, err := Apply(d, []Rule{{Producer: "*", Successors: []string{"["}}}); err == nil {
		t.Error("malformed successor glob accepted")
	}
}

func TestApplyShrinksGrammar(t *testing.T) {
	opts := grammar.Options{MaxDepth: 4, NGram: 2, MinVariableDepth: 1}

	free, err := grammar.Build(arithmeticDSL(), intT, opts)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	d := arithmeticDSL()
	if _, err := Apply(d, []Rule{{Producer: "*", Successors: []string{"pred"}}}); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	restricted, err := grammar.Build(d, intT, opts)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if restricted.Size().Cmp(free.Size()) >= 0 {
		t.Errorf("rules did not shrink the count: %s vs %s", restricted.Size(), free.Size())
	}
}

func TestFromPattern(t *testing.T) {
	r, err := FromPattern([]string{"succ", "pred"})
	if err != nil {
		t.Fatalf("bigram rejected: %v", err)
	}
	if r.Producer != "succ" || len(r.Successors) != 1 || r.Successors[0] != "pred" {
		t.Errorf("unexpected rule %+v", r)
	}

	for _, pattern := range [][]string{nil, {"succ"}, {"succ", "pred", "succ"}} {
		if _, err := FromPattern(pattern); !errors.Is(err, ErrPatternTooLong) {
			t.Errorf("pattern %v: err = %v, want ErrPatternTooLong", pattern, err)
		}
	}
}

func TestReduceKeepsBigramsOnly(t *testing.T) {
	findings := []Finding{
		{Kind: KindIdentity, Pattern: []string{"succ", "pred"}},
		{Kind: KindEquivalent, Pattern: []string{"succ", "succ", "pred"}},
		{Kind: KindConstant, Pattern: []string{"zero"}},
	}
	rules := Reduce(findings)
	if len(rules) != 1 {
		t.Fatalf("rules = %d, want 1", len(rules))
	}
	if rules[0].Producer != "succ" || rules[0].Successors[0] != "pred" {
		t.Errorf("unexpected rule %+v", rules[0])
	}
}

func TestContextClasses(t *testing.T) {
	zero := dsl.NewTerm(dsl.NewPrimitive("zero", intT))
	succ := dsl.NewTerm(dsl.NewPrimitive("succ", types.NewArrow(intT, intT)))
	pred := dsl.NewTerm(dsl.NewPrimitive("pred", types.NewArrow(intT, intT)))
	roundTrip := dsl.NewApplication(succ, dsl.NewApplication(pred, zero))

	mc := NewContext()
	if mc.SameClass(zero, roundTrip) {
		t.Error("distinct programs in one class before merging")
	}
	mc.Merge(zero, roundTrip)
	if !mc.SameClass(zero, roundTrip) {
		t.Error("merged programs not in one class")
	}
	if mc.SameClass(zero, succ) {
		t.Error("merge leaked into an unrelated program")
	}

	// Transitivity through a chain of merges.
	double := dsl.NewApplication(succ, dsl.NewApplication(pred, roundTrip))
	mc.Merge(roundTrip, double)
	if !mc.SameClass(zero, double) {
		t.Error("classes are not transitive")
	}
}

func TestContextSamples(t *testing.T) {
	zero := dsl.NewTerm(dsl.NewPrimitive("zero", intT))
	mc := NewContext()

	if _, ok := mc.Samples(zero); ok {
		t.Error("samples present before recording")
	}
	outputs := []any{0, 0, 0}
	mc.Record(zero, outputs)
	got, ok := mc.Samples(zero)
	if !ok || len(got) != 3 {
		t.Fatalf("samples = %v, %v", got, ok)
	}
	outputs[0] = 99
	got, _ = mc.Samples(zero)
	if got[0] != 0 {
		t.Error("recorded samples alias the caller's slice")
	}

	// Same content hash, distinct allocation.
	other := dsl.NewTerm(dsl.NewPrimitive("zero", intT))
	if _, ok := mc.Samples(other); !ok {
		t.Error("content-identical program missed the cache")
	}
}
