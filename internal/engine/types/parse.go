package types

import (
	"fmt"
	"strings"
	"unicode"
)

// Parse reads a type expression such as "int", "int -> int" or
// "(int -> int) -> list[int]". The arrow is right-associative. This reader
// exists for the configuration layer; it is not a general grammar format.
func Parse(s string) (Type, error) {
	toks, err := lexType(s)
	if err != nil {
		return nil, err
	}
	p := &typeParser{src: s, toks: toks}
	t, err := p.parseArrow()
	if err != nil {
		return nil, err
	}
	if p.pos != len(p.toks) {
		return nil, fmt.Errorf("parse type %q: unexpected %q", s, p.toks[p.pos])
	}
	return t, nil
}

// MustParse is Parse for statically known expressions; it panics on error.
func MustParse(s string) Type {
	t, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return t
}

type typeParser struct {
	src  string
	toks []string
	pos  int
}

func (p *typeParser) parseArrow() (Type, error) {
	left, err := p.parseAtom()
	if err != nil {
		return nil, err
	}
	if p.pos < len(p.toks) && p.toks[p.pos] == "->" {
		p.pos++
		right, err := p.parseArrow()
		if err != nil {
			return nil, err
		}
		return NewArrow(left, right), nil
	}
	return left, nil
}

func (p *typeParser) parseAtom() (Type, error) {
	if p.pos >= len(p.toks) {
		return nil, fmt.Errorf("parse type %q: unexpected end", p.src)
	}
	tok := p.toks[p.pos]
	switch tok {
	case "(":
		p.pos++
		t, err := p.parseArrow()
		if err != nil {
			return nil, err
		}
		if p.pos >= len(p.toks) || p.toks[p.pos] != ")" {
			return nil, fmt.Errorf("parse type %q: missing )", p.src)
		}
		p.pos++
		return t, nil
	case ")", "->":
		return nil, fmt.Errorf("parse type %q: unexpected %q", p.src, tok)
	default:
		p.pos++
		return NewAtom(tok), nil
	}
}

func lexType(s string) ([]string, error) {
	var toks []string
	i := 0
	for i < len(s) {
		c := s[i]
		switch {
		case c == ' ' || c == '\t':
			i++
		case c == '(' || c == ')':
			toks = append(toks, string(c))
			i++
		case c == '-':
			if i+1 >= len(s) || s[i+1] != '>' {
				return nil, fmt.Errorf("lex type %q: stray '-'", s)
			}
			toks = append(toks, "->")
			i += 2
		case isNameByte(c):
			j := i
			for j < len(s) && isNameByte(s[j]) {
				j++
			}
			toks = append(toks, s[i:j])
			i = j
		default:
			return nil, fmt.Errorf("lex type %q: invalid character %q", s, string(c))
		}
	}
	if len(toks) == 0 {
		return nil, fmt.Errorf("lex type: empty expression")
	}
	return toks, nil
}

func isNameByte(c byte) bool {
	r := rune(c)
	return unicode.IsLetter(r) || unicode.IsDigit(r) || strings.ContainsRune("_[]'.", r)
}
