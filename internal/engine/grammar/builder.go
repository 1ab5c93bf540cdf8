package grammar

import (
	"errors"
	"fmt"

	"gramspace/internal/engine/dsl"
	"gramspace/internal/engine/types"
)

// SelfCall is the synthetic primitive name used for recursive self-call
// derivations; its type is the grammar's own type request.
const SelfCall = "@self"

var (
	// ErrBadTypeRequest marks a type request that cannot be decomposed
	// consistently with the catalog. Construction fails fast on it.
	ErrBadTypeRequest = errors.New("grammar: bad type request")

	// ErrBadOptions marks out-of-range construction parameters.
	ErrBadOptions = errors.New("grammar: bad options")
)

// Options are the construction parameters; all bounds are explicit.
type Options struct {
	// MaxDepth bounds program depth. Function-application expansion stops one
	// level earlier; the last level is leaf-only.
	MaxDepth int
	// NGram is the context order; states remember up to NGram-1 derivation
	// choices. 1 means context-free.
	NGram int
	// MinVariableDepth is the shallowest depth at which argument variables and
	// opaque constants may appear as leaves.
	MinVariableDepth int
	// Recursive admits synthetic self-call derivations.
	Recursive bool
	// ConstantTypes lists the types for which an opaque constant leaf exists.
	ConstantTypes []types.Type
}

func (o Options) validate() error {
	if o.MaxDepth < 0 {
		return fmt.Errorf("%w: max depth %d", ErrBadOptions, o.MaxDepth)
	}
	if o.NGram < 1 {
		return fmt.Errorf("%w: n-gram %d", ErrBadOptions, o.NGram)
	}
	if o.MinVariableDepth < 0 {
		return fmt.Errorf("%w: min variable depth %d", ErrBadOptions, o.MinVariableDepth)
	}
	return nil
}

// Build constructs the cleaned grammar of all programs of typeRequest
// derivable from d within the given bounds. The catalog must already be
// monomorphized; the forbidding table is snapshot before construction
// starts. Build is deterministic and single-threaded; independent builds may
// run concurrently.
func Build(d *dsl.DSL, typeRequest types.Type, opts Options) (*Grammar, error) {
	if typeRequest == nil {
		return nil, fmt.Errorf("%w: nil", ErrBadTypeRequest)
	}
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if err := d.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadTypeRequest, err)
	}

	returnType := typeRequest
	var args []types.Type
	if ar, ok := typeRequest.(*types.Arrow); ok {
		returnType = ar.Returns()
		args = ar.Arguments()
	}

	forbidden := d.SnapshotForbidden()
	primitives := d.Primitives()

	in := newInterner()
	b := &tableBuilder{
		rules: make(map[*NonTerminal][]Derivation),
		index: make(map[*NonTerminal]map[string]int),
	}

	start := in.get(returnType, nil, 0)
	stack := []*NonTerminal{start}
	seen := map[*NonTerminal]bool{start: true}

	for len(stack) > 0 {
		s := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		b.touch(s)

		// Leaf derivations. The last depth level admits only these.
		if s.Depth >= opts.MinVariableDepth {
			for i, at := range args {
				if types.Equal(at, s.Type) {
					b.set(s, dsl.NewVariable(i, at), nil)
				}
			}
			for _, ct := range opts.ConstantTypes {
				if types.Equal(ct, s.Type) {
					b.set(s, dsl.NewConstant(s.Type), nil)
					break
				}
			}
		}
		for _, p := range primitives {
			if _, isArrow := p.Type().(*types.Arrow); !isArrow && types.Equal(p.Type(), s.Type) {
				b.set(s, p, nil)
			}
		}

		// Function application, with one level reserved for leaves.
		if s.Depth < opts.MaxDepth-1 {
			banned := forbidden[recentPrimitive(s)]

			for _, p := range primitives {
				if _, bad := banned[p.Name()]; bad {
					continue
				}
				argTypes, ok := types.EndsWith(p.Type(), s.Type)
				if !ok {
					continue
				}
				b.set(s, p, expandChildren(in, s, p, argTypes, opts.NGram, &stack, seen))
			}

			for vi, vt := range args {
				if _, isArrow := vt.(*types.Arrow); !isArrow {
					continue
				}
				argTypes, ok := types.EndsWith(vt, s.Type)
				if !ok {
					continue
				}
				v := dsl.NewVariable(vi, vt)
				b.set(s, v, expandChildren(in, s, v, argTypes, opts.NGram, &stack, seen))
			}

			if opts.Recursive {
				if argTypes, ok := types.EndsWith(typeRequest, s.Type); ok {
					self := dsl.NewPrimitive(SelfCall, typeRequest)
					b.set(s, self, expandChildren(in, s, self, argTypes, opts.NGram, &stack, seen))
				}
			}
		}
	}

	return newGrammar(start, b.order, b.rules, opts.MaxDepth), nil
}

// expandChildren derives one child state per remaining argument type,
// extending the context window and enqueueing unseen states.
func expandChildren(in *interner, s *NonTerminal, op dsl.Symbol, argTypes []types.Type, nGram int, stack *[]*NonTerminal, seen map[*NonTerminal]bool) []*NonTerminal {
	children := make([]*NonTerminal, 0, len(argTypes))
	for i, at := range argTypes {
		ctx := pushContext(s.Context, ContextEntry{Producer: op, ArgIndex: i}, nGram)
		child := in.get(at, ctx, s.Depth+1)
		children = append(children, child)
		if !seen[child] {
			seen[child] = true
			*stack = append(*stack, child)
		}
	}
	return children
}

// recentPrimitive is the name keying the forbidding table: the most recent
// context producer when it is a primitive, otherwise the empty string.
// Variables as producers never forbid anything.
func recentPrimitive(s *NonTerminal) string {
	if len(s.Context) == 0 {
		return ""
	}
	if p, ok := s.Context[0].Producer.(*dsl.Primitive); ok {
		return p.Name()
	}
	return ""
}

// tableBuilder accumulates the raw rule table in first-touch order, deduping
// derivations per state by operator key (last write wins, matching repeated
// discovery of the same operator).
type tableBuilder struct {
	order []*NonTerminal
	rules map[*NonTerminal][]Derivation
	index map[*NonTerminal]map[string]int
}

func (b *tableBuilder) touch(s *NonTerminal) {
	if _, ok := b.index[s]; ok {
		return
	}
	b.order = append(b.order, s)
	b.rules[s] = nil
	b.index[s] = make(map[string]int)
}

func (b *tableBuilder) set(s *NonTerminal, op dsl.Symbol, children []*NonTerminal) {
	idx := b.index[s]
	if i, ok := idx[op.Key()]; ok {
		b.rules[s][i] = Derivation{Op: op, Children: children}
		return
	}
	idx[op.Key()] = len(b.rules[s])
	b.rules[s] = append(b.rules[s], Derivation{Op: op, Children: children})
}
