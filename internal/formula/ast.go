package formula

import (
	"fmt"
	"strings"
)

// MeasuresDimension is the dimension name that marks a measure reference.
const MeasuresDimension = "Measures"

// Node is a formula AST node.
type Node interface {
	node()
	String() string
}

// Text is formula text copied to the output unchanged.
type Text struct {
	Literal string
}

// MeasureRef is a [Measures].[Name] reference.
type MeasureRef struct {
	Name    string
	Literal string
}

func (*Text) node()       {}
func (*MeasureRef) node() {}

func (t *Text) String() string       { return t.Literal }
func (m *MeasureRef) String() string { return m.Literal }

// Formula is a parsed formula.
type Formula struct {
	Source string
	Nodes  []Node
}

// Parse splits source into text and measure references. Bracketed names
// that are not qualified by the measures dimension stay text, as do
// brackets inside string literals.
func Parse(source string) (*Formula, error) {
	toks := NewLexer(source).Tokens()
	f := &Formula{Source: source}
	var text strings.Builder
	flush := func() {
		if text.Len() > 0 {
			f.Nodes = append(f.Nodes, &Text{Literal: text.String()})
			text.Reset()
		}
	}
	for i := 0; i < len(toks); i++ {
		tok := toks[i]
		if tok.Type == TOKEN_ILLEGAL {
			return nil, fmt.Errorf("unterminated %q at offset %d in formula %q", tok.Literal[:1], tok.Pos, source)
		}
		if tok.Type == TOKEN_IDENT && strings.EqualFold(tok.Value, MeasuresDimension) &&
			i+2 < len(toks) && toks[i+1].Type == TOKEN_DOT && toks[i+2].Type == TOKEN_IDENT {
			flush()
			name := toks[i+2]
			f.Nodes = append(f.Nodes, &MeasureRef{
				Name:    name.Value,
				Literal: source[tok.Pos : name.Pos+len(name.Literal)],
			})
			i += 2
			continue
		}
		text.WriteString(tok.Literal)
	}
	flush()
	return f, nil
}

// References returns the measure names referenced by the formula, in order
// of first appearance.
func (f *Formula) References() []string {
	seen := map[string]bool{}
	var names []string
	for _, n := range f.Nodes {
		if ref, ok := n.(*MeasureRef); ok && !seen[ref.Name] {
			seen[ref.Name] = true
			names = append(names, ref.Name)
		}
	}
	return names
}

// Substitute renders the formula with every measure reference replaced by
// the result of resolve. Replacement text is never rescanned.
func (f *Formula) Substitute(resolve func(name string) (string, error)) (string, error) {
	var b strings.Builder
	for _, n := range f.Nodes {
		switch n := n.(type) {
		case *MeasureRef:
			s, err := resolve(n.Name)
			if err != nil {
				return "", err
			}
			b.WriteString(s)
		default:
			b.WriteString(n.String())
		}
	}
	return b.String(), nil
}

func (f *Formula) String() string {
	var b strings.Builder
	for _, n := range f.Nodes {
		b.WriteString(n.String())
	}
	return b.String()
}
