package dsl

import (
	"hash/fnv"
	"strconv"
	"strings"
)

// Program is a finite derivation tree: either a leaf Term wrapping a Symbol
// or an Application of a function program to argument programs. The union is
// closed; content hashes are computed once at construction so programs can
// key caches and equivalence classes directly.
type Program interface {
	// Hash is the content-addressed identity of the whole sub-tree.
	Hash() uint64
	String() string
	isProgram()
}

type Term struct {
	sym  Symbol
	hash uint64
}

func NewTerm(sym Symbol) *Term {
	return &Term{sym: sym, hash: symbolHash(sym)}
}

func (t *Term) Symbol() Symbol { return t.sym }
func (t *Term) Hash() uint64   { return t.hash }
func (t *Term) String() string { return t.sym.String() }
func (t *Term) isProgram()     {}

type Application struct {
	fn   Program
	args []Program
	hash uint64
}

func NewApplication(fn Program, args ...Program) *Application {
	h := fnv.New64a()
	h.Write([]byte("app:"))
	h.Write([]byte(strconv.FormatUint(fn.Hash(), 16)))
	for _, a := range args {
		h.Write([]byte(":"))
		h.Write([]byte(strconv.FormatUint(a.Hash(), 16)))
	}
	return &Application{fn: fn, args: append([]Program(nil), args...), hash: h.Sum64()}
}

func (a *Application) Func() Program { return a.fn }
func (a *Application) Args() []Program {
	return append([]Program(nil), a.args...)
}
func (a *Application) Hash() uint64 { return a.hash }
func (a *Application) isProgram()   {}

func (a *Application) String() string {
	// Rendered bottom-up with an explicit stack; programs can be deep.
	rendered := make(map[Program]string)
	type frame struct {
		node    Program
		visited bool
	}
	stack := []frame{{node: a}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		app, ok := f.node.(*Application)
		if !ok {
			rendered[f.node] = f.node.String()
			continue
		}
		if !f.visited {
			stack = append(stack, frame{node: f.node, visited: true})
			stack = append(stack, frame{node: app.fn})
			for _, arg := range app.args {
				stack = append(stack, frame{node: arg})
			}
			continue
		}
		var b strings.Builder
		b.WriteString("(")
		b.WriteString(rendered[app.fn])
		for _, arg := range app.args {
			b.WriteString(" ")
			b.WriteString(rendered[arg])
		}
		b.WriteString(")")
		rendered[f.node] = b.String()
	}
	return rendered[a]
}

// Walk visits p and every sub-term in pre-order using an explicit stack, so
// arbitrarily deep programs cannot exhaust call depth. Returning false from
// visit stops the walk.
func Walk(p Program, visit func(Program) bool) {
	stack := []Program{p}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !visit(n) {
			return
		}
		if app, ok := n.(*Application); ok {
			for i := len(app.args) - 1; i >= 0; i-- {
				stack = append(stack, app.args[i])
			}
			stack = append(stack, app.fn)
		}
	}
}

// Size counts the nodes of p.
func Size(p Program) int {
	n := 0
	Walk(p, func(Program) bool {
		n++
		return true
	})
	return n
}

// Depth is the longest root-to-leaf path of p, counting nodes.
func Depth(p Program) int {
	type entry struct {
		node  Program
		depth int
	}
	max := 0
	stack := []entry{{node: p, depth: 1}}
	for len(stack) > 0 {
		e := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if e.depth > max {
			max = e.depth
		}
		if app, ok := e.node.(*Application); ok {
			stack = append(stack, entry{node: app.fn, depth: e.depth + 1})
			for _, arg := range app.args {
				stack = append(stack, entry{node: arg, depth: e.depth + 1})
			}
		}
	}
	return max
}
